// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"path/filepath"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

func TestClose_Idempotent(t *testing.T) {
	pool, err := Open(Config{Path: filepath.Join(t.TempDir(), "vaultic.db")})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := pool.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	// A second close must not panic the process; a test harness often
	// closes once explicitly and once via cleanup.
	if err := pool.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Fatal("Open with empty path succeeded")
	}
}

func TestOpen_TakePutRoundTrip(t *testing.T) {
	pool, err := Open(Config{
		Path: filepath.Join(t.TempDir(), "vaultic.db"),
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, `CREATE TABLE IF NOT EXISTS notes (id INTEGER PRIMARY KEY, note TEXT);`, nil)
		},
	})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer pool.Close()

	ctx := context.Background()
	conn, err := pool.Take(ctx)
	if err != nil {
		t.Fatalf("Take() error: %v", err)
	}

	err = sqlitex.Execute(conn, "INSERT INTO notes (note) VALUES (?)", &sqlitex.ExecOptions{
		Args: []any{"hello"},
	})
	pool.Put(conn)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	conn, err = pool.Take(ctx)
	if err != nil {
		t.Fatalf("second Take() error: %v", err)
	}
	defer pool.Put(conn)

	var note string
	err = sqlitex.Execute(conn, "SELECT note FROM notes", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			note = stmt.ColumnText(0)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if note != "hello" {
		t.Errorf("note = %q, want hello", note)
	}
}
