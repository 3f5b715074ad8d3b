// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

package vcrypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/Vaultic-LLC/Vaultic-sub003/lib/secret"
)

// KeySize is the symmetric key size in bytes. Session keys, export
// keys, and the master key are all this size.
const KeySize = chacha20poly1305.KeySize

// argon2id parameters for master-key derivation. Tuned for an
// interactive login on a desktop client.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
)

// NewSymmetricKey generates a random symmetric key in protected
// memory.
func NewSymmetricKey() (*secret.Buffer, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("vcrypto: generating symmetric key: %w", err)
	}
	return secret.NewFromBytes(key)
}

// EncryptSymmetric encrypts plaintext with XChaCha20-Poly1305 under
// key and returns base64(nonce || ciphertext). A fresh random 24-byte
// nonce is generated per call, so encrypting the same plaintext twice
// yields different ciphertext.
func EncryptSymmetric(key *secret.Buffer, plaintext []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		return "", fmt.Errorf("vcrypto: creating AEAD: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("vcrypto: generating nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptSymmetric reverses EncryptSymmetric. Authentication failure
// (wrong key or tampered ciphertext) returns an error.
func DecryptSymmetric(key *secret.Buffer, cipherText string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(cipherText)
	if err != nil {
		return nil, fmt.Errorf("vcrypto: decoding base64 ciphertext: %w", err)
	}
	if len(raw) < chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("vcrypto: ciphertext shorter than nonce")
	}

	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("vcrypto: creating AEAD: %w", err)
	}

	nonce, sealed := raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("vcrypto: symmetric decryption: %w", err)
	}
	return plaintext, nil
}

// DeriveExportKey derives the end-to-end field encryption key from the
// master key via HKDF-SHA256. The export key is distinct from the
// transport session key: a compromised session key never exposes
// field-level plaintext.
func DeriveExportKey(master *secret.Buffer, salt []byte) (*secret.Buffer, error) {
	reader := hkdf.New(sha256.New, master.Bytes(), salt, []byte("vaultic export key v1"))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("vcrypto: deriving export key: %w", err)
	}
	return secret.NewFromBytes(key)
}

// DeriveMasterKey derives the master symmetric key from the user's
// password via argon2id. This is the input boundary of the
// key-derivation flow — account setup and salt management live with
// the host application.
func DeriveMasterKey(password *secret.Buffer, salt []byte) (*secret.Buffer, error) {
	if len(salt) == 0 {
		return nil, fmt.Errorf("vcrypto: master key salt is required")
	}
	key := argon2.IDKey(password.Bytes(), salt, argonTime, argonMemory, argonThreads, KeySize)
	return secret.NewFromBytes(key)
}
