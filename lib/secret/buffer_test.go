// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"testing"
)

func TestNewZeroFilled(t *testing.T) {
	buffer, err := New(64)
	if err != nil {
		t.Fatalf("New(64): %v", err)
	}
	defer buffer.Close()

	if buffer.Len() != 64 || len(buffer.Bytes()) != 64 {
		t.Fatalf("Len = %d, len(Bytes) = %d, want 64", buffer.Len(), len(buffer.Bytes()))
	}
	for index, value := range buffer.Bytes() {
		if value != 0 {
			t.Fatalf("byte %d = %d, want 0", index, value)
		}
	}
}

func TestNewRejectsNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := New(size); err == nil {
			t.Errorf("New(%d) succeeded", size)
		}
	}
}

func TestNewFromBytesZerosSource(t *testing.T) {
	source := []byte("AGE-SECRET-KEY-1EXAMPLE")
	buffer, err := NewFromBytes(source)
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	defer buffer.Close()

	if got := buffer.String(); got != "AGE-SECRET-KEY-1EXAMPLE" {
		t.Errorf("String() = %q", got)
	}
	for index, value := range source {
		if value != 0 {
			t.Fatalf("source byte %d not zeroed: %d", index, value)
		}
	}

	if _, err := NewFromBytes(nil); err == nil {
		t.Error("NewFromBytes(nil) succeeded")
	}
}

func TestBufferWritesThroughBytes(t *testing.T) {
	buffer, err := New(8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer buffer.Close()

	copy(buffer.Bytes(), "abc")
	if got := buffer.String(); got != "abc\x00\x00\x00\x00\x00" {
		t.Errorf("String() = %q", got)
	}
}

func TestCloseReleasesAndIsIdempotent(t *testing.T) {
	buffer, err := New(32)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	copy(buffer.Bytes(), "this should be zeroed")

	if err := buffer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if buffer.data != nil {
		t.Error("data not released after Close")
	}
	if err := buffer.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestReadAfterClosePanics(t *testing.T) {
	readers := map[string]func(*Buffer){
		"Bytes":  func(b *Buffer) { b.Bytes() },
		"String": func(b *Buffer) { _ = b.String() },
	}
	for name, read := range readers {
		t.Run(name, func(t *testing.T) {
			buffer, err := New(16)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			buffer.Close()

			defer func() {
				if recover() == nil {
					t.Errorf("%s after Close did not panic", name)
				}
			}()
			read(buffer)
		})
	}
}

func TestZero(t *testing.T) {
	data := []byte{1, 2, 3}
	Zero(data)
	for index, value := range data {
		if value != 0 {
			t.Errorf("byte %d = %d after Zero", index, value)
		}
	}
}
