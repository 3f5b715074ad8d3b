// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

package store

import "time"

// EntityKind names one of the four local stores.
type EntityKind string

const (
	KindPassword EntityKind = "password"
	KindValue    EntityKind = "value"
	KindFilter   EntityKind = "filter"
	KindGroup    EntityKind = "group"
)

// SecurityQuestion is an embedded sub-record of a Password,
// independently encrypted. AnswerLength is cached before encryption so
// length-based UI validation never requires decryption.
type SecurityQuestion struct {
	ID           string `cbor:"id"`
	Question     string `cbor:"question"`
	Answer       string `cbor:"answer"`
	AnswerLength int    `cbor:"answer_length"`
}

// Password is a stored credential. Sensitive fields (Password, the
// answers of SecurityQuestions) are held encrypted under the export
// key, except on managed entries which the service encrypts itself.
//
// GroupIDs and FilterIDs are membership references; the per-group and
// per-filter member indices are derived from them and rebuilt on every
// mutation — the references here are the source of truth.
type Password struct {
	ID    string `cbor:"id"`
	Login string `cbor:"login"`
	URL   string `cbor:"url,omitempty"`
	Notes string `cbor:"notes,omitempty"`

	// Password is ciphertext at rest (plaintext on managed entries is
	// never stored locally at all — the service supplies a reference).
	Password string `cbor:"password"`

	// Managed marks a service-managed credential: never locally
	// encrypted, never deletable from this client.
	Managed bool `cbor:"managed,omitempty"`

	Pinned   bool `cbor:"pinned,omitempty"`
	Breached bool `cbor:"breached,omitempty"`

	// Derived before encryption, cached so views never decrypt.
	Weak          bool `cbor:"weak,omitempty"`
	ContainsLogin bool `cbor:"contains_login,omitempty"`
	Length        int  `cbor:"length,omitempty"`

	GroupIDs  []string `cbor:"group_ids,omitempty"`
	FilterIDs []string `cbor:"filter_ids,omitempty"`

	SecurityQuestions []SecurityQuestion `cbor:"security_questions,omitempty"`

	CreatedAt time.Time `cbor:"created_at"`
	UpdatedAt time.Time `cbor:"updated_at"`
}

// Value is a stored secure value (card number, license key, note).
// The Value field is ciphertext at rest.
type Value struct {
	ID    string `cbor:"id"`
	Name  string `cbor:"name"`
	Value string `cbor:"value"`

	// Derived before encryption.
	Length int `cbor:"length,omitempty"`

	GroupIDs  []string `cbor:"group_ids,omitempty"`
	FilterIDs []string `cbor:"filter_ids,omitempty"`

	CreatedAt time.Time `cbor:"created_at"`
	UpdatedAt time.Time `cbor:"updated_at"`
}

// Group is a named collection of primary objects. MemberIDs is the
// derived member index, rebuilt from the primary objects' GroupIDs on
// every mutation.
type Group struct {
	ID        string   `cbor:"id"`
	Name      string   `cbor:"name"`
	MemberIDs []string `cbor:"member_ids,omitempty"`
}

// Filter is a saved view over primary objects. Membership is derived:
// a primary object matches when every set constraint holds. GroupID
// constraints read the group member index, which is why group indices
// must be synchronized before filter indices during a mutation.
type Filter struct {
	ID   string `cbor:"id"`
	Name string `cbor:"name"`

	// GroupID, when set, restricts the filter to members of that
	// group.
	GroupID string `cbor:"group_id,omitempty"`

	// WeakOnly, when set, restricts the filter to weak credentials.
	WeakOnly bool `cbor:"weak_only,omitempty"`

	// MemberIDs is the derived member index.
	MemberIDs []string `cbor:"member_ids,omitempty"`
}

// ChangeOp is the kind of a change-tracking entry.
type ChangeOp string

const (
	OpCreated ChangeOp = "created"
	OpUpdated ChangeOp = "updated"
	OpDeleted ChangeOp = "deleted"
)

// ChangeEntry records one local mutation not yet acknowledged by the
// server. Entries are consumed and cleared by the sync coordinator,
// never partially applied.
type ChangeEntry struct {
	VaultID string     `cbor:"vault_id" json:"VaultID"`
	Version int64      `cbor:"version" json:"Version"`
	Kind    EntityKind `cbor:"kind" json:"Kind"`
	ID      string     `cbor:"id" json:"ID"`
	Op      ChangeOp   `cbor:"op" json:"Op"`
}
