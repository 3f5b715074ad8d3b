// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

// Package codec provides deterministic CBOR encoding for store
// persistence and signature computation.
//
// Store signatures are keyed hashes over the encoded store contents,
// so the encoding must be byte-stable: the same logical values must
// always produce identical bytes, on every device that syncs the
// vault. The encoder is therefore configured with Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items.
package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding.
var encMode cbor.EncMode

// decMode is the CBOR decoder configured to accept standard CBOR.
// Unknown fields are silently ignored for forward compatibility with
// newer clients writing extra fields.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Field-tree payloads decode into map[string]any. The CBOR
		// default for any-typed targets is map[interface{}]interface{},
		// which is incompatible with encoding/json and the rest of the
		// payload-handling code. Store contents never use non-string
		// map keys.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
