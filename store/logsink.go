// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"strings"
	"time"

	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/Vaultic-LLC/Vaultic-sub003/lib/result"
)

// Sink is the durable log collaborator used by the transport channels
// and the stores. Append-only and best-effort: Log reports whether the
// entry was written, and its own failures are swallowed — a broken log
// must never break the operation being logged.
type Sink interface {
	Log(code result.Code, message string, callStack []string) bool
}

// LogSink writes log entries to the local database. Unlike store
// state, log entries are plaintext rows — they carry diagnostic codes
// and messages, never vault contents.
type LogSink struct {
	persister *Persister
}

// NewLogSink returns a sink writing through the given persister.
func NewLogSink(persister *Persister) *LogSink {
	return &LogSink{persister: persister}
}

// Log appends one entry. Returns false when the write failed; the
// error itself is reported to the operational logger only.
func (s *LogSink) Log(code result.Code, message string, callStack []string) bool {
	// Log writes use a short independent deadline: a wedged database
	// must not stall the failing operation that is being logged.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := s.persister.pool.Take(ctx)
	if err != nil {
		s.persister.logger.Warn("log sink unavailable", "error", err)
		return false
	}
	defer s.persister.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO log_entries (at, code, message, call_stack) VALUES (?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				time.Now().UTC().Format(time.RFC3339Nano),
				int(code),
				message,
				strings.Join(callStack, " > "),
			},
		})
	if err != nil {
		s.persister.logger.Warn("log sink write failed", "error", err)
		return false
	}
	return true
}
