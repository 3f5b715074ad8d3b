// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"strings"
	"time"
	"unicode"
)

const (
	// minStrongLength is the shortest password not flagged weak on
	// length alone.
	minStrongLength = 12

	// staleAfter is the age past which a credential stops counting as
	// safe in the trend series.
	staleAfter = 180 * 24 * time.Hour
)

// isWeakPassword flags a plaintext as weak when it is short or draws
// on fewer than three character classes. Derived once per mutation,
// before encryption, so views never need the plaintext again.
func isWeakPassword(plaintext string) bool {
	if len(plaintext) < minStrongLength {
		return true
	}
	var lower, upper, digit, symbol bool
	for _, r := range plaintext {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	classes := 0
	for _, present := range []bool{lower, upper, digit, symbol} {
		if present {
			classes++
		}
	}
	return classes < 3
}

// containsLogin reports whether the plaintext embeds the login's
// local part (the portion before any '@'), case-insensitively. Very
// short local parts are ignored to avoid false positives.
func containsLogin(plaintext, login string) bool {
	local := login
	if at := strings.IndexByte(login, '@'); at >= 0 {
		local = login[:at]
	}
	if len(local) < 3 {
		return false
	}
	return strings.Contains(strings.ToLower(plaintext), strings.ToLower(local))
}
