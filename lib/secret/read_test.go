// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadFromPath(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{"plain value", "AGE-SECRET-KEY-1EXAMPLE", "AGE-SECRET-KEY-1EXAMPLE"},
		{"trailing newline", "AGE-SECRET-KEY-1EXAMPLE\n", "AGE-SECRET-KEY-1EXAMPLE"},
		{"surrounding whitespace", "  AGE-SECRET-KEY-1EXAMPLE \n", "AGE-SECRET-KEY-1EXAMPLE"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(tempDir, test.name)
			if err := os.WriteFile(path, []byte(test.content), 0o600); err != nil {
				t.Fatalf("writing test file: %v", err)
			}

			result, err := ReadFromPath(path)
			if err != nil {
				t.Fatalf("ReadFromPath() error: %v", err)
			}
			defer result.Close()
			if result.String() != test.expected {
				t.Errorf("ReadFromPath() = %q, want %q", result.String(), test.expected)
			}
		})
	}
}

func TestReadFromPathErrors(t *testing.T) {
	if _, err := ReadFromPath("/nonexistent/path/to/secret"); err == nil {
		t.Error("ReadFromPath() with nonexistent file should return error")
	}

	for name, content := range map[string]string{"empty": "", "whitespace": "   \n\t\n"} {
		path := filepath.Join(t.TempDir(), name)
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("writing test file: %v", err)
		}
		if _, err := ReadFromPath(path); err == nil {
			t.Errorf("ReadFromPath() with %s file should return error", name)
		}
	}
}
