// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

package vcrypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/Vaultic-LLC/Vaultic-sub003/lib/secret"
)

// SaltSize is the size of store hash salts in bytes. Keyed BLAKE3
// requires exactly this key size.
const SaltSize = 32

// NewHashSalt generates a random per-store hash salt. The salt keys
// every signature and comparison key for that store, so two vaults
// holding identical values still produce unrelated hashes.
func NewHashSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("vcrypto: generating hash salt: %w", err)
	}
	return salt, nil
}

// Signature computes the keyed BLAKE3 hash of data under hashSalt,
// hex-encoded. Store signature chains are built from these.
func Signature(hashSalt, data []byte) (string, error) {
	hasher, err := blake3.NewKeyed(hashSalt)
	if err != nil {
		return "", fmt.Errorf("vcrypto: keyed hasher: %w", err)
	}
	hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// ComparisonKey computes the duplicate-index key for a sensitive
// value: keyed BLAKE3 over the plaintext, hex-encoded. Derived from
// the plaintext, not the ciphertext — symmetric encryption is
// randomized, so ciphertext comparison would never match.
func ComparisonKey(hashSalt []byte, sensitive string) (string, error) {
	return Signature(hashSalt, []byte(sensitive))
}

// TokenHash computes the unkeyed BLAKE3 hash of a session token,
// hex-encoded. Sent as SessionTokenHash inside the outer hybrid layer
// so the token itself never crosses the wire after login.
func TokenHash(token *secret.Buffer) string {
	sum := blake3.Sum256(token.Bytes())
	return hex.EncodeToString(sum[:])
}
