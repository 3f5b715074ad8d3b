// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

package fieldtree

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/Vaultic-LLC/Vaultic-sub003/lib/result"
	"github.com/Vaultic-LLC/Vaultic-sub003/lib/secret"
	"github.com/Vaultic-LLC/Vaultic-sub003/lib/vcrypto"
)

func testKey(t *testing.T) *secret.Buffer {
	t.Helper()
	key, err := vcrypto.NewSymmetricKey()
	if err != nil {
		t.Fatalf("NewSymmetricKey() error: %v", err)
	}
	t.Cleanup(func() { key.Close() })
	return key
}

// TestRoundTrip_NestedObject is the canonical schema/payload pair:
// one encrypted top-level field, one encrypted leaf inside a nested
// object.
func TestRoundTrip_NestedObject(t *testing.T) {
	key := testKey(t)
	schema := &Schema{
		Properties: []string{"Password"},
		Nested: map[string]*Schema{
			"Address": {Properties: []string{"Street"}},
		},
	}
	data := Payload{
		"Password": "hunter2",
		"Address":  Payload{"Street": "Main St"},
	}

	encrypted := Encrypt(schema, key, data)
	if !encrypted.OK {
		t.Fatalf("Encrypt failed: %v", encrypted)
	}

	// Both leaves must be in non-plaintext form in the intermediate
	// state.
	if encrypted.Value["Password"] == "hunter2" {
		t.Error("Password still plaintext after Encrypt")
	}
	address := encrypted.Value["Address"].(Payload)
	if address["Street"] == "Main St" {
		t.Error("Address.Street still plaintext after Encrypt")
	}

	decrypted := Decrypt(schema, key, encrypted.Value)
	if !decrypted.OK {
		t.Fatalf("Decrypt failed: %v", decrypted)
	}
	want := Payload{
		"Password": "hunter2",
		"Address":  Payload{"Street": "Main St"},
	}
	if !reflect.DeepEqual(decrypted.Value, want) {
		t.Errorf("round trip = %#v, want %#v", decrypted.Value, want)
	}
}

func TestRoundTrip_ArrayPreservesOrderAndLength(t *testing.T) {
	key := testKey(t)
	schema := &Schema{
		Nested: map[string]*Schema{
			"SecurityQuestions": {Properties: []string{"Answer"}},
		},
	}
	data := Payload{
		"SecurityQuestions": []any{
			Payload{"ID": "q1", "Answer": "blue"},
			Payload{"ID": "q2", "Answer": "paris"},
			Payload{"ID": "q3", "Answer": "rex"},
		},
	}

	encrypted := Encrypt(schema, key, data)
	if !encrypted.OK {
		t.Fatalf("Encrypt failed: %v", encrypted)
	}
	questions := encrypted.Value["SecurityQuestions"].([]any)
	if len(questions) != 3 {
		t.Fatalf("array length = %d, want 3", len(questions))
	}
	for index, want := range []string{"q1", "q2", "q3"} {
		question := questions[index].(Payload)
		if question["ID"] != want {
			t.Errorf("element %d ID = %v, want %s (order changed)", index, question["ID"], want)
		}
		if question["Answer"] == "blue" || question["Answer"] == "paris" || question["Answer"] == "rex" {
			t.Errorf("element %d Answer still plaintext", index)
		}
	}

	decrypted := Decrypt(schema, key, encrypted.Value)
	if !decrypted.OK {
		t.Fatalf("Decrypt failed: %v", decrypted)
	}
	if !reflect.DeepEqual(decrypted.Value, data) {
		t.Errorf("round trip = %#v, want %#v", decrypted.Value, data)
	}
}

func TestEncrypt_NilKeyIsNoExportKey(t *testing.T) {
	schema := &Schema{Properties: []string{"Password"}}
	r := Encrypt(schema, nil, Payload{"Password": "x"})
	if r.OK {
		t.Fatal("Encrypt with nil key succeeded")
	}
	if r.Code != result.CodeNoExportKey {
		t.Errorf("Code = %d, want %d", r.Code, result.CodeNoExportKey)
	}
}

func TestEncrypt_CanCryptFalseReturnsUnmodified(t *testing.T) {
	key := testKey(t)
	schema := &Schema{
		Properties: []string{"Password"},
		CanCrypt: func(data Payload) bool {
			managed, _ := data["Managed"].(bool)
			return !managed
		},
	}
	data := Payload{"Password": "hunter2", "Managed": true}

	r := Encrypt(schema, key, data)
	if !r.OK {
		t.Fatalf("Encrypt failed: %v", r)
	}
	if r.Value["Password"] != "hunter2" {
		t.Error("managed payload was encrypted despite CanCrypt=false")
	}
}

func TestEncrypt_MissingPropertiesSkipped(t *testing.T) {
	key := testKey(t)
	schema := &Schema{
		Properties: []string{"Password", "Notes"},
		Nested:     map[string]*Schema{"Address": {Properties: []string{"Street"}}},
	}
	// Notes and Address absent.
	data := Payload{"Password": "hunter2"}

	r := Encrypt(schema, key, data)
	if !r.OK {
		t.Fatalf("Encrypt failed: %v", r)
	}
	if _, present := r.Value["Notes"]; present {
		t.Error("absent property materialized by Encrypt")
	}
}

func TestDecrypt_LeafFailureNamesFieldPath(t *testing.T) {
	key := testKey(t)
	schema := &Schema{
		Nested: map[string]*Schema{
			"Address": {Properties: []string{"Street"}},
		},
	}
	// "not-ciphertext" cannot decrypt; failure must abort the whole
	// call and name the path.
	data := Payload{"Address": Payload{"Street": "not-ciphertext"}}

	r := Decrypt(schema, key, data)
	if r.OK {
		t.Fatal("Decrypt of garbage succeeded")
	}
	if r.Code != result.CodeEndToEndDecryption {
		t.Errorf("Code = %d, want %d", r.Code, result.CodeEndToEndDecryption)
	}
	if !strings.Contains(r.Message, "Address.Street") {
		t.Errorf("Message = %q, want it to contain the failing path", r.Message)
	}
}

func TestEncrypt_DoesNotMutateInput(t *testing.T) {
	key := testKey(t)
	schema := &Schema{Properties: []string{"Password"}}
	data := Payload{"Password": "hunter2"}

	if r := Encrypt(schema, key, data); !r.OK {
		t.Fatalf("Encrypt failed: %v", r)
	}
	if data["Password"] != "hunter2" {
		t.Error("Encrypt mutated its input payload")
	}
}

func TestLoad_JSONCSchemaFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schemas.jsonc")
	content := `{
	  // credentials synced with the vault service
	  "password": {
	    "properties": ["Password", "Notes"],
	    "nestedProperties": {
	      "SecurityQuestions": {"properties": ["Question", "Answer"]}
	    }
	  },
	  "value": {"properties": ["Value"]}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	schemas, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	password := schemas["password"]
	if password == nil {
		t.Fatal("password schema missing")
	}
	if !reflect.DeepEqual(password.Properties, []string{"Password", "Notes"}) {
		t.Errorf("password.Properties = %v", password.Properties)
	}
	questions := password.Nested["SecurityQuestions"]
	if questions == nil || !reflect.DeepEqual(questions.Properties, []string{"Question", "Answer"}) {
		t.Errorf("SecurityQuestions schema = %+v", questions)
	}
	if schemas["value"] == nil || len(schemas["value"].Properties) != 1 {
		t.Errorf("value schema = %+v", schemas["value"])
	}
}
