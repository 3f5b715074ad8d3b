// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"testing"
)

func TestNew_ValidSize(t *testing.T) {
	buffer, err := New(32)
	if err != nil {
		t.Fatalf("New(32) failed: %v", err)
	}
	defer buffer.Close()

	if buffer.Len() != 32 {
		t.Errorf("Len() = %d, want 32", buffer.Len())
	}

	// Memory is zero-initialized by mmap.
	for index, value := range buffer.Bytes() {
		if value != 0 {
			t.Fatalf("byte %d = %d, want 0", index, value)
		}
	}
}

func TestNew_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := New(size); err == nil {
			t.Errorf("New(%d) succeeded, want error", size)
		}
	}
}

func TestNewFromBytes_CopiesAndZerosSource(t *testing.T) {
	source := []byte("master-key-material")
	want := string(source)

	buffer, err := NewFromBytes(source)
	if err != nil {
		t.Fatalf("NewFromBytes failed: %v", err)
	}
	defer buffer.Close()

	if got := buffer.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	// The caller's slice must no longer hold the key.
	for index, value := range source {
		if value != 0 {
			t.Fatalf("source byte %d = %d, want 0", index, value)
		}
	}
}

func TestNewFromBytes_Empty(t *testing.T) {
	if _, err := NewFromBytes(nil); err == nil {
		t.Fatal("NewFromBytes(nil) succeeded, want error")
	}
}

func TestEqual(t *testing.T) {
	buffer, err := NewFromBytes([]byte("process-salt-value"))
	if err != nil {
		t.Fatalf("NewFromBytes failed: %v", err)
	}
	defer buffer.Close()

	if !buffer.Equal([]byte("process-salt-value")) {
		t.Error("Equal() = false for identical contents")
	}
	if buffer.Equal([]byte("process-salt-other")) {
		t.Error("Equal() = true for different contents")
	}
	if buffer.Equal([]byte("short")) {
		t.Error("Equal() = true for different lengths")
	}
}

func TestClone_Independent(t *testing.T) {
	buffer, err := NewFromBytes([]byte("session-key"))
	if err != nil {
		t.Fatalf("NewFromBytes failed: %v", err)
	}

	clone, err := buffer.Clone()
	if err != nil {
		t.Fatalf("Clone failed: %v", err)
	}
	defer clone.Close()

	// Closing the original must not affect the clone.
	if err := buffer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !bytes.Equal(clone.Bytes(), []byte("session-key")) {
		t.Errorf("clone contents = %q, want %q", clone.Bytes(), "session-key")
	}
}

func TestClose_Idempotent(t *testing.T) {
	buffer, err := New(16)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestBytes_PanicsAfterClose(t *testing.T) {
	buffer, err := New(16)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	buffer.Close()

	defer func() {
		if recover() == nil {
			t.Error("Bytes() after Close did not panic")
		}
	}()
	buffer.Bytes()
}

func TestZero(t *testing.T) {
	data := []byte{1, 2, 3}
	Zero(data)
	for index, value := range data {
		if value != 0 {
			t.Errorf("byte %d = %d, want 0", index, value)
		}
	}
}
