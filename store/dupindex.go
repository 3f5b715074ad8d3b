// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

package store

// DuplicateIndex maps a comparison key (keyed hash of a sensitive
// plaintext) to the set of object IDs sharing it. It is maintained
// incrementally — entries are added and removed on every add, update,
// and delete — and never recomputed from scratch.
//
// Lookups and updates are O(1) amortized.
type DuplicateIndex struct {
	idsByKey map[string]map[string]struct{}
	keyByID  map[string]string
}

// NewDuplicateIndex returns an empty index.
func NewDuplicateIndex() *DuplicateIndex {
	return &DuplicateIndex{
		idsByKey: make(map[string]map[string]struct{}),
		keyByID:  make(map[string]string),
	}
}

// Add records id under key. If id was previously recorded under a
// different key (the sensitive value changed), the old entry is
// removed first.
func (d *DuplicateIndex) Add(id, key string) {
	if previous, known := d.keyByID[id]; known {
		if previous == key {
			return
		}
		d.Remove(id)
	}

	ids := d.idsByKey[key]
	if ids == nil {
		ids = make(map[string]struct{})
		d.idsByKey[key] = ids
	}
	ids[id] = struct{}{}
	d.keyByID[id] = key
}

// Remove deletes id from the index. When the last sharer of a key is
// removed, the key's entry disappears entirely — so the remaining
// former duplicate is no longer flagged.
func (d *DuplicateIndex) Remove(id string) {
	key, known := d.keyByID[id]
	if !known {
		return
	}
	delete(d.keyByID, id)

	ids := d.idsByKey[key]
	delete(ids, id)
	if len(ids) == 0 {
		delete(d.idsByKey, key)
	}
}

// IsDuplicate reports whether id shares its comparison key with at
// least one other object.
func (d *DuplicateIndex) IsDuplicate(id string) bool {
	key, known := d.keyByID[id]
	if !known {
		return false
	}
	return len(d.idsByKey[key]) > 1
}

// Peers returns the IDs sharing id's comparison key, excluding id
// itself. Nil when id is not indexed or has no duplicates.
func (d *DuplicateIndex) Peers(id string) []string {
	key, known := d.keyByID[id]
	if !known {
		return nil
	}
	ids := d.idsByKey[key]
	if len(ids) < 2 {
		return nil
	}
	peers := make([]string, 0, len(ids)-1)
	for candidate := range ids {
		if candidate != id {
			peers = append(peers, candidate)
		}
	}
	return peers
}

// Snapshot returns a copy of the id-to-key map, suitable for
// persisting alongside the store state.
func (d *DuplicateIndex) Snapshot() map[string]string {
	keys := make(map[string]string, len(d.keyByID))
	for id, key := range d.keyByID {
		keys[id] = key
	}
	return keys
}

// Restore rebuilds the index from a persisted id-to-key map.
func (d *DuplicateIndex) Restore(keys map[string]string) {
	for id, key := range keys {
		d.Add(id, key)
	}
}

// Len returns the number of indexed objects.
func (d *DuplicateIndex) Len() int {
	return len(d.keyByID)
}
