// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

// Package vcrypto provides the cryptographic primitives consumed by
// the transport channels, the field-tree encryptor, and the local
// store engine. Nothing in here is novel cryptography: hybrid
// (KEM-based) encryption wraps filippo.io/age, symmetric encryption
// is XChaCha20-Poly1305, and hashing is BLAKE3.
//
// Ciphertext crosses package boundaries as base64 strings — the wire
// envelope and the persisted store blobs both carry string fields.
// Key material crosses boundaries as *secret.Buffer (mmap-backed,
// zeroed on close), never as raw slices.
package vcrypto

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"filippo.io/age"

	"github.com/Vaultic-LLC/Vaultic-sub003/lib/secret"
)

// Identity holds an age x25519 keypair. The private key lives in a
// secret.Buffer; the public key is a plain string, safe to transmit
// (it is sent to the server as ResponsePublicKey so the server can
// encrypt responses back to this process).
//
// The caller must call Close when the identity is no longer needed.
type Identity struct {
	// PrivateKey is the secret key in AGE-SECRET-KEY-1... format,
	// stored in mmap memory outside the Go heap. Must never be
	// logged or persisted in plaintext.
	PrivateKey *secret.Buffer

	// PublicKey is the corresponding public key in age1... format.
	PublicKey string
}

// Close releases the private key memory. Idempotent.
func (i *Identity) Close() error {
	if i.PrivateKey != nil {
		return i.PrivateKey.Close()
	}
	return nil
}

// GenerateIdentity generates a new age x25519 keypair. The transport
// layer generates one ephemeral identity per process for receiving
// encrypted responses.
func GenerateIdentity() (*Identity, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("vcrypto: generating age keypair: %w", err)
	}

	// Move the private key string into mmap-backed memory immediately.
	// The heap copy produced by identity.String() is short-lived and
	// will be collected; the mmap buffer is the durable copy.
	privateKey, err := secret.NewFromBytes([]byte(identity.String()))
	if err != nil {
		return nil, fmt.Errorf("vcrypto: protecting private key: %w", err)
	}

	return &Identity{
		PrivateKey: privateKey,
		PublicKey:  identity.Recipient().String(),
	}, nil
}

// EncryptHybrid encrypts plaintext to a recipient's age public key
// (age1... format) and returns the ciphertext as a standard base64
// string. age internally performs the KEM: an ephemeral x25519 key
// agreement wraps a fresh file key, which encrypts the payload with
// ChaCha20-Poly1305.
func EncryptHybrid(recipientKey string, plaintext []byte) (string, error) {
	recipient, err := age.ParseX25519Recipient(recipientKey)
	if err != nil {
		return "", fmt.Errorf("vcrypto: parsing recipient key: %w", err)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipient)
	if err != nil {
		return "", fmt.Errorf("vcrypto: creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return "", fmt.Errorf("vcrypto: writing plaintext: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("vcrypto: finalizing hybrid encryption: %w", err)
	}

	return base64.StdEncoding.EncodeToString(ciphertext.Bytes()), nil
}

// DecryptHybrid decrypts a base64 ciphertext with the given age
// private key. The private key buffer is borrowed, not closed.
func DecryptHybrid(cipherText string, privateKey *secret.Buffer) ([]byte, error) {
	// String conversion at the API boundary — age.ParseX25519Identity
	// requires a string. The heap copy is brief and request-scoped.
	identity, err := age.ParseX25519Identity(privateKey.String())
	if err != nil {
		return nil, fmt.Errorf("vcrypto: parsing private key: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(cipherText)
	if err != nil {
		return nil, fmt.Errorf("vcrypto: decoding base64 ciphertext: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(raw), identity)
	if err != nil {
		return nil, fmt.Errorf("vcrypto: hybrid decryption: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("vcrypto: reading decrypted payload: %w", err)
	}
	return plaintext, nil
}

// ValidatePublicKey reports whether publicKey is a well-formed age
// x25519 public key. Used to validate the configured server key at
// startup, before any request is attempted.
func ValidatePublicKey(publicKey string) error {
	if _, err := age.ParseX25519Recipient(publicKey); err != nil {
		return fmt.Errorf("vcrypto: invalid public key: %w", err)
	}
	return nil
}
