// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/Vaultic-LLC/Vaultic-sub003/lib/codec"
	"github.com/Vaultic-LLC/Vaultic-sub003/lib/vcrypto"
)

// State is the persisted shape of one entity store. Values hold the
// entities with sensitive fields already encrypted.
//
// CurrentSignature is recomputed from Values on every successful
// mutation. PreviousSignature is the last signature acknowledged by
// the server — when the server's record of it disagrees, a remote
// change happened out of band and must be merged before pushing.
type State[T any] struct {
	// Version increments on every successful mutation. Doubles as the
	// change-tracking version for entries produced by that mutation.
	Version int64 `cbor:"version"`

	// Hash is the unkeyed content hash of the encoded Values, used
	// for cheap equality probes that need no salt.
	Hash string `cbor:"hash"`

	// HashSalt keys CurrentSignature and the duplicate-index
	// comparison keys. Generated once when the store is created.
	HashSalt []byte `cbor:"hash_salt"`

	Values []T `cbor:"values"`

	CurrentSignature  string `cbor:"current_signature"`
	PreviousSignature string `cbor:"previous_signature"`

	// Trend carries the risk/trend series for primary-object stores.
	// Empty for group and filter stores.
	Trend TrendSeries `cbor:"trend,omitempty"`

	// DupKeys persists the duplicate index (object ID to comparison
	// key) for primary-object stores. The comparison keys cannot be
	// rebuilt from Values because the plaintexts they are derived from
	// are encrypted at rest.
	DupKeys map[string]string `cbor:"dup_keys,omitempty"`
}

// NewState initializes an empty store state with a fresh hash salt.
func NewState[T any]() (*State[T], error) {
	salt, err := vcrypto.NewHashSalt()
	if err != nil {
		return nil, fmt.Errorf("store: new state: %w", err)
	}
	state := &State[T]{HashSalt: salt}
	if err := state.Resign(); err != nil {
		return nil, err
	}
	state.PreviousSignature = state.CurrentSignature
	return state, nil
}

// Resign recomputes Hash and CurrentSignature from Values. Called
// after every mutation of Values; PreviousSignature is untouched.
func (s *State[T]) Resign() error {
	encoded, err := codec.Marshal(s.Values)
	if err != nil {
		return fmt.Errorf("store: encoding values for signature: %w", err)
	}

	sum := blake3.Sum256(encoded)
	s.Hash = fmt.Sprintf("%x", sum)

	signature, err := vcrypto.Signature(s.HashSalt, encoded)
	if err != nil {
		return fmt.Errorf("store: signing values: %w", err)
	}
	s.CurrentSignature = signature
	return nil
}

// Acknowledge records that the server accepted CurrentSignature.
func (s *State[T]) Acknowledge() {
	s.PreviousSignature = s.CurrentSignature
}

// Stale reports whether the server's last-acknowledged signature
// disagrees with ours — a remote change happened since we last synced.
func (s *State[T]) Stale(serverAcknowledged string) bool {
	return serverAcknowledged != "" && serverAcknowledged != s.PreviousSignature
}
