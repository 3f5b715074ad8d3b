// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"

	"github.com/google/uuid"
)

// maxIDAttempts bounds collision retries. A v4 UUID collision against
// a vault-sized set is effectively impossible; the bound exists so a
// broken random source fails loudly instead of looping forever.
const maxIDAttempts = 16

// GenerateID returns a new object ID not present in existing. The
// caller supplies the current in-memory ID set of the store.
func GenerateID(existing map[string]struct{}) (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := uuid.NewString()
		if _, taken := existing[id]; !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("store: could not generate a collision-free ID after %d attempts", maxIDAttempts)
}
