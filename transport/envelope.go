// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"

	"github.com/Vaultic-LLC/Vaultic-sub003/lib/secret"
	"github.com/Vaultic-LLC/Vaultic-sub003/lib/vcrypto"
)

// Envelope is the only shape that crosses the wire, in either
// direction. Data is the symmetric ciphertext of a JSON body;
// CipherText is the KEM ciphertext that recovers the one-time
// symmetric key protecting Data. On session-authenticated responses
// CipherText is empty and Data is sealed under the session key
// directly.
type Envelope struct {
	CipherText string `json:"CipherText,omitempty"`
	Data       string `json:"Data"`
}

// Seal hybrid-encrypts body to the recipient: a fresh one-time
// symmetric key seals the body into Data, and the key itself travels
// inside CipherText, encrypted to the recipient's public key. The
// one-time key is destroyed before returning.
func Seal(recipientKey string, body []byte) (Envelope, error) {
	oneTime, err := vcrypto.NewSymmetricKey()
	if err != nil {
		return Envelope{}, fmt.Errorf("transport: sealing envelope: %w", err)
	}
	defer oneTime.Close()

	data, err := vcrypto.EncryptSymmetric(oneTime, body)
	if err != nil {
		return Envelope{}, fmt.Errorf("transport: sealing envelope: %w", err)
	}
	cipherText, err := vcrypto.EncryptHybrid(recipientKey, oneTime.Bytes())
	if err != nil {
		return Envelope{}, fmt.Errorf("transport: sealing envelope: %w", err)
	}
	return Envelope{CipherText: cipherText, Data: data}, nil
}

// Open reverses Seal using the recipient's private key.
func Open(envelope Envelope, privateKey *secret.Buffer) ([]byte, error) {
	rawKey, err := vcrypto.DecryptHybrid(envelope.CipherText, privateKey)
	if err != nil {
		return nil, fmt.Errorf("transport: opening envelope: %w", err)
	}
	oneTime, err := secret.NewFromBytes(rawKey)
	if err != nil {
		return nil, fmt.Errorf("transport: opening envelope: %w", err)
	}
	defer oneTime.Close()

	body, err := vcrypto.DecryptSymmetric(oneTime, envelope.Data)
	if err != nil {
		return nil, fmt.Errorf("transport: opening envelope: %w", err)
	}
	return body, nil
}
