// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"encoding/json"

	"github.com/Vaultic-LLC/Vaultic-sub003/lib/config"
	"github.com/Vaultic-LLC/Vaultic-sub003/lib/result"
	"github.com/Vaultic-LLC/Vaultic-sub003/lib/vcrypto"
)

// Codec prepares outbound bodies for one channel flavor and parses
// the matching responses. The channel itself stays ignorant of key
// material; the two codecs differ only in how they wrap and unwrap.
type Codec interface {
	// PrepareOutbound turns a plaintext body into the wire envelope.
	// A failure here means no network call is made.
	PrepareOutbound(body map[string]any) result.Result[Envelope]

	// ParseInbound decrypts and validates a response body.
	ParseInbound(raw []byte) result.Result[map[string]any]
}

// BootstrapCodec wraps bodies for the unauthenticated bootstrap
// channel. Every request carries the process's ephemeral public key
// (so the server can encrypt the response to us), the process salt,
// and the device metadata. The response must echo the salt exactly;
// a mismatch rejects the response outright, as the sole anti-replay
// check at this layer.
type BootstrapCodec struct {
	context *ChannelContext
	device  config.DeviceConfig
}

// NewBootstrapCodec returns a codec bound to the context's ephemeral
// identity and the given device metadata.
func NewBootstrapCodec(context *ChannelContext, device config.DeviceConfig) *BootstrapCodec {
	return &BootstrapCodec{context: context, device: device}
}

func (b *BootstrapCodec) PrepareOutbound(body map[string]any) result.Result[Envelope] {
	identity, salt, err := b.context.Ephemeral()
	if err != nil {
		return result.WrapErr[Envelope](result.CodeUnknown, err)
	}

	inner := make(map[string]any, len(body)+6)
	for key, value := range body {
		inner[key] = value
	}
	inner["ResponsePublicKey"] = identity.PublicKey
	inner["Salt"] = salt
	inner["MacAddress"] = b.device.MacAddress
	inner["DeviceName"] = b.device.DeviceName
	inner["Model"] = b.device.Model
	inner["Version"] = b.device.Version

	encoded, err := json.Marshal(inner)
	if err != nil {
		return result.WrapErr[Envelope](result.CodeUnknown, err)
	}
	envelope, err := Seal(b.context.ServerPublicKey(), encoded)
	if err != nil {
		return result.WrapErr[Envelope](result.CodeAsymmetricEncryption, err)
	}
	return result.Ok(envelope)
}

func (b *BootstrapCodec) ParseInbound(raw []byte) result.Result[map[string]any] {
	identity, salt, err := b.context.Ephemeral()
	if err != nil {
		return result.WrapErr[map[string]any](result.CodeUnknown, err)
	}

	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return result.WrapErr[map[string]any](result.CodeUnknown, err)
	}
	body, err := Open(envelope, identity.PrivateKey)
	if err != nil {
		return result.WrapErr[map[string]any](result.CodeAsymmetricDecryption, err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return result.WrapErr[map[string]any](result.CodeUnknown, err)
	}

	echoed, _ := parsed["Salt"].(string)
	if echoed != salt {
		return result.Err[map[string]any](result.CodeSaltMismatch,
			"response salt does not match the salt sent")
	}
	return result.Ok(parsed)
}

// SessionCodec wraps bodies for the authenticated API channel. The
// body is sealed under the session key, and that inner ciphertext
// travels with the session hash inside an outer hybrid envelope, so
// the session identifier is never visible on the wire.
type SessionCodec struct {
	context *ChannelContext
}

// NewSessionCodec returns a codec bound to the context's session key.
func NewSessionCodec(context *ChannelContext) *SessionCodec {
	return &SessionCodec{context: context}
}

func (s *SessionCodec) PrepareOutbound(body map[string]any) result.Result[Envelope] {
	key, hash, ok := s.context.Session()
	if !ok {
		return result.ErrInvalidSession[Envelope]()
	}
	identity, _, err := s.context.Ephemeral()
	if err != nil {
		return result.WrapErr[Envelope](result.CodeUnknown, err)
	}

	inner := make(map[string]any, len(body)+1)
	for k, value := range body {
		inner[k] = value
	}
	inner["ResponsePublicKey"] = identity.PublicKey

	encoded, err := json.Marshal(inner)
	if err != nil {
		return result.WrapErr[Envelope](result.CodeUnknown, err)
	}
	innerCipher, err := vcrypto.EncryptSymmetric(key, encoded)
	if err != nil {
		return result.WrapErr[Envelope](result.CodeSymmetricEncryption, err)
	}

	outer, err := json.Marshal(map[string]any{
		"SessionTokenHash": hash,
		"Data":             innerCipher,
	})
	if err != nil {
		return result.WrapErr[Envelope](result.CodeUnknown, err)
	}
	envelope, err := Seal(s.context.ServerPublicKey(), outer)
	if err != nil {
		return result.WrapErr[Envelope](result.CodeAsymmetricEncryption, err)
	}
	return result.Ok(envelope)
}

func (s *SessionCodec) ParseInbound(raw []byte) result.Result[map[string]any] {
	key, _, ok := s.context.Session()
	if !ok {
		return result.ErrInvalidSession[map[string]any]()
	}

	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return result.WrapErr[map[string]any](result.CodeUnknown, err)
	}
	body, err := vcrypto.DecryptSymmetric(key, envelope.Data)
	if err != nil {
		return result.WrapErr[map[string]any](result.CodeSymmetricDecryption, err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return result.WrapErr[map[string]any](result.CodeUnknown, err)
	}
	return result.Ok(parsed)
}
