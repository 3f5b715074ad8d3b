// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

package store

import "sort"

// Views are read-only projections over the password store. They read
// only cached derived flags and the duplicate index — never
// ciphertext — so they cost one pass over the in-memory values.

// Weak returns credentials flagged weak, sorted by login.
func (p *PasswordStore) Weak() []Password {
	return p.project(func(entry *Password) bool { return entry.Weak })
}

// Breached returns credentials marked breached, sorted by login.
func (p *PasswordStore) Breached() []Password {
	return p.project(func(entry *Password) bool { return entry.Breached })
}

// Pinned returns pinned credentials, sorted by login.
func (p *PasswordStore) Pinned() []Password {
	return p.project(func(entry *Password) bool { return entry.Pinned })
}

// Old returns credentials whose last update is older than the
// staleness threshold, sorted by login.
func (p *PasswordStore) Old() []Password {
	now := p.clock.Now()
	return p.project(func(entry *Password) bool {
		return now.Sub(entry.UpdatedAt) > staleAfter
	})
}

// Duplicates returns credentials sharing a password with at least one
// other entry, sorted by login.
func (p *PasswordStore) Duplicates() []Password {
	return p.project(func(entry *Password) bool {
		return p.dups.IsDuplicate(entry.ID)
	})
}

func (p *PasswordStore) project(match func(*Password) bool) []Password {
	var out []Password
	for index := range p.state.Values {
		if match(&p.state.Values[index]) {
			out = append(out, p.state.Values[index])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Login < out[j].Login })
	return out
}
