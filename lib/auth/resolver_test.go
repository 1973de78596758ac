// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

// digestOfABC is the hex SHA-256 of "abc" (FIPS 180-2 test vector).
const digestOfABC = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

type credentialKey struct {
	kind   CredentialKind
	digest string
}

type fakeStore struct {
	owners  map[credentialKey]string
	failErr error
	lookups []credentialKey
}

func (s *fakeStore) FindCredentialOwner(_ context.Context, kind CredentialKind, digest string) (string, error) {
	s.lookups = append(s.lookups, credentialKey{kind, digest})
	if s.failErr != nil {
		return "", s.failErr
	}
	owner, ok := s.owners[credentialKey{kind, digest}]
	if !ok {
		return "", errors.New("not found")
	}
	return owner, nil
}

func newFakeStore() *fakeStore {
	return &fakeStore{owners: map[credentialKey]string{
		{KindMachineAuthToken, digestOfABC}:      "U1",
		{KindAPIAuthToken, Digest("api-token")}: "U2",
	}}
}

func TestDigest(t *testing.T) {
	if got := Digest("abc"); got != digestOfABC {
		t.Errorf("Digest(abc) = %s, want %s", got, digestOfABC)
	}
	if got := DigestPrefix(digestOfABC); got != "ba7816bf" {
		t.Errorf("DigestPrefix = %s, want ba7816bf", got)
	}
	if got := DigestPrefix("abc"); got != "abc" {
		t.Errorf("DigestPrefix(short) = %s, want abc", got)
	}
}

func TestHeaderGetCaseInsensitive(t *testing.T) {
	header := Header{"Authorization": {"Bearer abc", "Bearer other"}}
	if got := header.Get("authorization"); got != "Bearer abc" {
		t.Errorf("Get(authorization) = %q, want first value", got)
	}
	if got := header.Get("AUTHORIZATION"); got != "Bearer abc" {
		t.Errorf("Get(AUTHORIZATION) = %q", got)
	}
	if got := (Header{"authorization": nil}).Get("Authorization"); got != "" {
		t.Errorf("Get on empty value list = %q, want empty", got)
	}
	if got := (Header{}).Get("authorization"); got != "" {
		t.Errorf("Get on missing key = %q, want empty", got)
	}
}

func TestResolveValidToken(t *testing.T) {
	store := newFakeStore()
	resolver := NewResolver(store, nil)

	identity, err := resolver.Resolve(context.Background(), Header{"authorization": {"Bearer abc"}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if identity.UserID != "U1" {
		t.Errorf("UserID = %q, want U1", identity.UserID)
	}
	if len(store.lookups) != 1 {
		t.Fatalf("lookups = %d, want exactly 1", len(store.lookups))
	}
	if store.lookups[0] != (credentialKey{KindMachineAuthToken, digestOfABC}) {
		t.Errorf("lookup = %+v, want machine auth token with digest of abc", store.lookups[0])
	}
}

func TestResolveRejects(t *testing.T) {
	tests := []struct {
		name        string
		header      Header
		wantLookups int
	}{
		{"missing header", Header{}, 0},
		{"empty value", Header{"authorization": {""}}, 0},
		{"no values", Header{"authorization": {}}, 0},
		{"basic scheme", Header{"authorization": {"Basic YWJjOmRlZg=="}}, 0},
		{"lowercase scheme", Header{"authorization": {"bearer abc"}}, 0},
		{"no space", Header{"authorization": {"Bearerabc"}}, 0},
		{"scheme only", Header{"authorization": {"Bearer"}}, 0},
		{"empty token", Header{"authorization": {"Bearer "}}, 0},
		{"unknown token", Header{"authorization": {"Bearer nope"}}, 1},
		{"double space", Header{"authorization": {"Bearer  abc"}}, 1},
		{"api token is not a machine token", Header{"authorization": {"Bearer api-token"}}, 1},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			store := newFakeStore()
			resolver := NewResolver(store, nil)

			identity, err := resolver.Resolve(context.Background(), test.header)
			if !errors.Is(err, ErrUnresolved) {
				t.Fatalf("Resolve error = %v, want ErrUnresolved", err)
			}
			if identity != (Identity{}) {
				t.Errorf("identity = %+v, want zero", identity)
			}
			if len(store.lookups) != test.wantLookups {
				t.Errorf("lookups = %d, want %d", len(store.lookups), test.wantLookups)
			}
		})
	}
}

func TestResolveStoreFailureIsUnresolved(t *testing.T) {
	store := newFakeStore()
	store.failErr = errors.New("database is locked")
	resolver := NewResolver(store, nil)

	_, err := resolver.Resolve(context.Background(), Header{"authorization": {"Bearer abc"}})
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("Resolve error = %v, want ErrUnresolved", err)
	}
	if len(store.lookups) != 1 {
		t.Errorf("lookups = %d, want 1 (no retry)", len(store.lookups))
	}
}

func TestResolveNeverLogsToken(t *testing.T) {
	const token = "s3cr3t-machine-token-value"

	var output bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&output, &slog.HandlerOptions{Level: slog.LevelDebug}))

	store := newFakeStore()
	store.owners[credentialKey{KindMachineAuthToken, Digest(token)}] = "U9"
	resolver := NewResolver(store, logger)

	if _, err := resolver.Resolve(context.Background(), Header{"authorization": {"Bearer " + token}}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := resolver.Resolve(context.Background(), Header{"authorization": {"Token " + token}}); err == nil {
		t.Fatal("Resolve with wrong scheme succeeded")
	}

	logged := output.String()
	if logged == "" {
		t.Fatal("expected debug log output")
	}
	if strings.Contains(logged, token) {
		t.Errorf("log output contains the raw token:\n%s", logged)
	}
	if strings.Contains(logged, Digest(token)) {
		t.Errorf("log output contains the full digest:\n%s", logged)
	}
	if !strings.Contains(logged, DigestPrefix(Digest(token))) {
		t.Errorf("log output lacks the digest prefix:\n%s", logged)
	}
}

func TestNewResolverRequiresStore(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewResolver(nil) did not panic")
		}
	}()
	NewResolver(nil, nil)
}
