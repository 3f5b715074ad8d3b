// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides HTTP I/O helpers for the transport
// channels. Response body reads are bounded at MaxResponseSize so a
// misbehaving server cannot exhaust client memory — envelope responses
// are small JSON objects, orders of magnitude under the limit.
package netutil

import (
	"io"
)

// MaxResponseSize bounds envelope response body reads: 32 MB. A full
// vault sync response fits comfortably; the limit only exists to stop
// a pathological response from exhausting memory.
const MaxResponseSize int64 = 32 << 20

// ReadResponse reads an HTTP response body up to MaxResponseSize
// bytes. Use instead of io.ReadAll when reading response bodies.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}
