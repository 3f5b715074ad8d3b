// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

package result

import (
	"testing"
)

func TestOk(t *testing.T) {
	r := Ok(42)
	if !r.OK {
		t.Fatal("Ok() result is not OK")
	}
	if r.Value != 42 {
		t.Errorf("Value = %d, want 42", r.Value)
	}
	if r.Code != CodeNone {
		t.Errorf("Code = %d, want CodeNone", r.Code)
	}
}

func TestErr(t *testing.T) {
	r := Err[string](CodeHashMismatch, "signature does not match")
	if r.OK {
		t.Fatal("Err() result is OK")
	}
	if r.Code != CodeHashMismatch {
		t.Errorf("Code = %d, want %d", r.Code, CodeHashMismatch)
	}
	if r.Value != "" {
		t.Errorf("Value = %q, want zero value", r.Value)
	}
}

func TestErrInvalidSession(t *testing.T) {
	r := ErrInvalidSession[int]()
	if r.OK {
		t.Fatal("result is OK")
	}
	if !r.InvalidSession {
		t.Error("InvalidSession not set")
	}
	if r.Code != CodeInvalidSession {
		t.Errorf("Code = %d, want %d", r.Code, CodeInvalidSession)
	}
}

func TestPropagate_AppendsBreadcrumb(t *testing.T) {
	inner := Err[string](CodeSymmetricDecryption, "bad key")
	inner = inner.WithBreadcrumb("vcrypto.DecryptSymmetric")

	outer := Propagate[int](inner, "store.Passwords.Add")
	if outer.OK {
		t.Fatal("propagated result is OK")
	}
	if outer.Code != CodeSymmetricDecryption {
		t.Errorf("Code = %d, want %d", outer.Code, CodeSymmetricDecryption)
	}
	want := []string{"vcrypto.DecryptSymmetric", "store.Passwords.Add"}
	if len(outer.CallStack) != len(want) {
		t.Fatalf("CallStack = %v, want %v", outer.CallStack, want)
	}
	for i := range want {
		if outer.CallStack[i] != want[i] {
			t.Errorf("CallStack[%d] = %q, want %q", i, outer.CallStack[i], want[i])
		}
	}
}

func TestPropagate_PreservesInvalidSession(t *testing.T) {
	inner := ErrInvalidSession[string]()
	outer := Propagate[int](inner, "syncer.SyncVaults")
	if !outer.InvalidSession {
		t.Error("InvalidSession lost across Propagate")
	}
}

func TestPropagate_PanicsOnSuccess(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Propagate on success did not panic")
		}
	}()
	Propagate[int](Ok("fine"), "somewhere")
}

func TestWithBreadcrumb_NoOpOnSuccess(t *testing.T) {
	r := Ok(1).WithBreadcrumb("ignored")
	if len(r.CallStack) != 0 {
		t.Errorf("CallStack = %v, want empty", r.CallStack)
	}
}

func TestWithBreadcrumb_DoesNotAliasChild(t *testing.T) {
	inner := Err[int](CodeUnknown, "boom").WithBreadcrumb("a")
	first := inner.WithBreadcrumb("b")
	second := inner.WithBreadcrumb("c")
	if first.CallStack[1] != "b" || second.CallStack[1] != "c" {
		t.Errorf("breadcrumb slices alias: %v / %v", first.CallStack, second.CallStack)
	}
}

func TestAppendMessage(t *testing.T) {
	r := Err[int](CodeInvalidRequest, "name is required")
	r = r.AppendMessage("value is required")
	if r.Message != "name is required; value is required" {
		t.Errorf("Message = %q", r.Message)
	}

	empty := Result[int]{Code: CodeInvalidRequest}
	empty = empty.AppendMessage("only message")
	if empty.Message != "only message" {
		t.Errorf("Message = %q", empty.Message)
	}
}
