// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

// Package fieldtree implements selective end-to-end encryption of
// nested payloads. A Schema declares, for one payload shape, which
// top-level string fields are individually encrypted and which nested
// object or array fields recurse into a child schema.
//
// Encryption and decryption are structure-preserving: array lengths,
// key sets, and nesting depth never change. Both walks are
// all-or-nothing — the first leaf failure aborts the whole call, and
// the returned failure names the path of the failing field. The input
// payload is never mutated; a transformed copy is returned.
package fieldtree

import (
	"strings"

	"github.com/Vaultic-LLC/Vaultic-sub003/lib/result"
	"github.com/Vaultic-LLC/Vaultic-sub003/lib/secret"
	"github.com/Vaultic-LLC/Vaultic-sub003/lib/vcrypto"
)

// Payload is the JSON-like object shape the encryptor walks.
type Payload = map[string]any

// Schema describes the encrypted fields of one payload shape.
type Schema struct {
	// Properties lists the top-level string fields that are
	// individually encrypted. Properties absent from a given payload
	// are skipped, not errored.
	Properties []string

	// Nested maps field names to child schemas. A nested field
	// holding an array recurses per element, preserving order and
	// length; a nested field holding an object recurses once.
	// Missing nested values are skipped.
	Nested map[string]*Schema

	// CanCrypt, when non-nil, gates whether encryption applies to a
	// given payload instance. When it returns false the subtree is
	// returned unmodified — used for managed credential variants that
	// are never locally encrypted.
	CanCrypt func(Payload) bool
}

type direction int

const (
	encrypting direction = iota
	decrypting
)

// Encrypt returns a copy of data with every schema-listed leaf
// replaced by its symmetric ciphertext under key. A nil key is a
// NoExportKey failure, never a silent no-op.
func Encrypt(schema *Schema, key *secret.Buffer, data Payload) result.Result[Payload] {
	return walk(schema, key, data, encrypting, nil)
}

// Decrypt reverses Encrypt over the same schema and key. Decrypting
// the output of Encrypt returns the original structure and values.
func Decrypt(schema *Schema, key *secret.Buffer, data Payload) result.Result[Payload] {
	return walk(schema, key, data, decrypting, nil)
}

func walk(schema *Schema, key *secret.Buffer, data Payload, dir direction, path []string) result.Result[Payload] {
	if key == nil {
		return result.Err[Payload](result.CodeNoExportKey, "no export key available")
	}
	if data == nil {
		return result.Ok[Payload](nil)
	}
	if schema.CanCrypt != nil && !schema.CanCrypt(data) {
		return result.Ok(data)
	}

	transformed := make(Payload, len(data))
	for field, value := range data {
		transformed[field] = value
	}

	for _, property := range schema.Properties {
		value, present := data[property]
		if !present || value == nil {
			continue
		}
		plaintext, isString := value.(string)
		if !isString {
			// A listed property holding a non-string means the
			// payload predates this schema version. Left untouched.
			continue
		}

		replaced, failure := transformLeaf(key, plaintext, dir)
		if failure != nil {
			return failure.WithField(childPath(path, property))
		}
		transformed[property] = replaced
	}

	for field, child := range schema.Nested {
		value, present := data[field]
		if !present || value == nil {
			continue
		}
		fieldPath := childPath(path, field)

		switch nested := value.(type) {
		case []any:
			elements := make([]any, len(nested))
			for index, element := range nested {
				childPayload, isPayload := element.(Payload)
				if !isPayload {
					elements[index] = element
					continue
				}
				recursed := walk(child, key, childPayload, dir, fieldPath)
				if !recursed.OK {
					return recursed
				}
				elements[index] = recursed.Value
			}
			transformed[field] = elements
		case Payload:
			recursed := walk(child, key, nested, dir, fieldPath)
			if !recursed.OK {
				return recursed
			}
			transformed[field] = recursed.Value
		}
	}

	return result.Ok(transformed)
}

// childPath extends path without aliasing the parent's backing array.
func childPath(path []string, field string) []string {
	return append(append(make([]string, 0, len(path)+1), path...), field)
}

// leafFailure carries a leaf crypto error until the failing field path
// is known.
type leafFailure struct {
	code    result.Code
	message string
}

func (f *leafFailure) WithField(path []string) result.Result[Payload] {
	return result.Errf[Payload](f.code, "field %q: %s", strings.Join(path, "."), f.message)
}

func transformLeaf(key *secret.Buffer, value string, dir direction) (string, *leafFailure) {
	if dir == encrypting {
		cipherText, err := vcrypto.EncryptSymmetric(key, []byte(value))
		if err != nil {
			return "", &leafFailure{code: result.CodeSymmetricEncryption, message: err.Error()}
		}
		return cipherText, nil
	}

	plaintext, err := vcrypto.DecryptSymmetric(key, value)
	if err != nil {
		return "", &leafFailure{code: result.CodeEndToEndDecryption, message: err.Error()}
	}
	return string(plaintext), nil
}
