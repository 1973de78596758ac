// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"errors"
	"testing"
)

func TestUserEnvVarMatches(t *testing.T) {
	tests := []struct {
		pattern string
		owner   string
		name    string
		want    bool
	}{
		{"*/*", "acme", "widgets", true},
		{"acme/*", "acme", "widgets", true},
		{"acme/*", "other", "widgets", false},
		{"*/widgets", "anyone", "widgets", true},
		{"acme/widgets", "ACME", "Widgets", true},
		{"acme/widgets", "acme", "gadgets", false},
		{"  acme/widgets ", "acme", "widgets", true},
		{"*", "acme", "widgets", false},
		{"acme/widgets/extra", "acme", "widgets", false},
		{"", "acme", "widgets", false},
		{"acme/[", "acme", "widgets", false},
	}

	for _, test := range tests {
		variable := UserEnvVar{Name: "FOO", Value: "bar", RepositoryPattern: test.pattern}
		if got := variable.Matches(test.owner, test.name); got != test.want {
			t.Errorf("Matches(%q, %q) with pattern %q = %v, want %v",
				test.owner, test.name, test.pattern, got, test.want)
		}
	}
}

func TestWorkspaceValidate(t *testing.T) {
	if err := (&Workspace{ID: "ws1", OwnerID: "U1"}).Validate(); err != nil {
		t.Errorf("complete workspace: %v", err)
	}
	if err := (&Workspace{OwnerID: "U1"}).Validate(); !errors.Is(err, ErrMissingID) {
		t.Errorf("missing id: got %v, want ErrMissingID", err)
	}
	if err := (&Workspace{ID: "ws1"}).Validate(); !errors.Is(err, ErrMissingOwner) {
		t.Errorf("missing owner: got %v, want ErrMissingOwner", err)
	}
}

func TestInstanceValidate(t *testing.T) {
	if err := (&Instance{ID: "inst1", WorkspaceID: "ws1"}).Validate(); err != nil {
		t.Errorf("complete instance: %v", err)
	}
	if err := (&Instance{WorkspaceID: "ws1"}).Validate(); !errors.Is(err, ErrMissingID) {
		t.Errorf("missing id: got %v, want ErrMissingID", err)
	}
}
