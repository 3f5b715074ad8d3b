// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/klauspost/compress/zstd"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/Vaultic-LLC/Vaultic-sub003/lib/codec"
	"github.com/Vaultic-LLC/Vaultic-sub003/lib/secret"
	"github.com/Vaultic-LLC/Vaultic-sub003/lib/sqlitepool"
	"github.com/Vaultic-LLC/Vaultic-sub003/lib/vcrypto"
)

// KeyProvider supplies the export key used to encrypt persisted store
// blobs and field-tree leaves. ExportKey returns nil while the vault
// is locked.
type KeyProvider interface {
	ExportKey() *secret.Buffer
}

// schema creates the tables backing the store engine. Store states are
// opaque encrypted blobs — the only queryable structure is what the
// sync coordinator and log sink need.
const schema = `
CREATE TABLE IF NOT EXISTS store_states (
	kind       TEXT PRIMARY KEY,
	version    INTEGER NOT NULL,
	blob       BLOB NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS change_tracking (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	vault_id  TEXT NOT NULL,
	version   INTEGER NOT NULL,
	kind      TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	op        TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS sync_cursors (
	vault_id     TEXT PRIMARY KEY,
	last_version INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS log_entries (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	at         TEXT NOT NULL,
	code       INTEGER NOT NULL,
	message    TEXT NOT NULL,
	call_stack TEXT NOT NULL
);
`

// zstd encode/decode contexts are safe for concurrent EncodeAll and
// DecodeAll use.
var (
	blobEncoder *zstd.Encoder
	blobDecoder *zstd.Decoder
)

func init() {
	var err error
	blobEncoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic("store: zstd encoder initialization failed: " + err.Error())
	}
	blobDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("store: zstd decoder initialization failed: " + err.Error())
	}
}

// Persister writes and reads store state through the blob pipeline:
// deterministic CBOR, zstd compression, then symmetric encryption
// under the export key. Nothing readable reaches disk.
type Persister struct {
	pool   *sqlitepool.Pool
	keys   KeyProvider
	logger *slog.Logger
}

// PersisterConfig holds the parameters for opening a Persister.
type PersisterConfig struct {
	// Path is the SQLite database file path.
	Path string

	// Keys supplies the export key for blob encryption. Required.
	Keys KeyProvider

	// Logger receives operational messages. If nil, a discard logger
	// is used.
	Logger *slog.Logger
}

// OpenPersister opens (and if needed creates) the local database.
func OpenPersister(cfg PersisterConfig) (*Persister, error) {
	if cfg.Keys == nil {
		return nil, fmt.Errorf("store: Keys is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   cfg.Path,
		Logger: logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}

	return &Persister{pool: pool, keys: cfg.Keys, logger: logger}, nil
}

// Close releases the database pool.
func (p *Persister) Close() error {
	return p.pool.Close()
}

// SaveState persists one store's state blob. state must be
// CBOR-encodable; version is written alongside for diagnostics.
func (p *Persister) SaveState(ctx context.Context, kind EntityKind, version int64, state any) error {
	exportKey := p.keys.ExportKey()
	if exportKey == nil {
		return fmt.Errorf("store: cannot persist %s: vault is locked", kind)
	}

	encoded, err := codec.Marshal(state)
	if err != nil {
		return fmt.Errorf("store: encoding %s state: %w", kind, err)
	}
	compressed := blobEncoder.EncodeAll(encoded, nil)
	cipherText, err := vcrypto.EncryptSymmetric(exportKey, compressed)
	if err != nil {
		return fmt.Errorf("store: encrypting %s state: %w", kind, err)
	}

	conn, err := p.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer p.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO store_states (kind, version, blob, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(kind) DO UPDATE SET version=excluded.version, blob=excluded.blob, updated_at=excluded.updated_at`,
		&sqlitex.ExecOptions{
			Args: []any{string(kind), version, []byte(cipherText), time.Now().UTC().Format(time.RFC3339Nano)},
		})
	if err != nil {
		return fmt.Errorf("store: writing %s state: %w", kind, err)
	}
	return nil
}

// LoadState reads one store's state blob into out. Returns false when
// no state has been persisted for kind yet.
func (p *Persister) LoadState(ctx context.Context, kind EntityKind, out any) (bool, error) {
	exportKey := p.keys.ExportKey()
	if exportKey == nil {
		return false, fmt.Errorf("store: cannot load %s: vault is locked", kind)
	}

	conn, err := p.pool.Take(ctx)
	if err != nil {
		return false, err
	}
	defer p.pool.Put(conn)

	var blob []byte
	err = sqlitex.Execute(conn, `SELECT blob FROM store_states WHERE kind = ?`, &sqlitex.ExecOptions{
		Args: []any{string(kind)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			blob = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, blob)
			return nil
		},
	})
	if err != nil {
		return false, fmt.Errorf("store: reading %s state: %w", kind, err)
	}
	if blob == nil {
		return false, nil
	}

	compressed, err := vcrypto.DecryptSymmetric(exportKey, string(blob))
	if err != nil {
		return false, fmt.Errorf("store: decrypting %s state: %w", kind, err)
	}
	encoded, err := blobDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return false, fmt.Errorf("store: decompressing %s state: %w", kind, err)
	}
	if err := codec.Unmarshal(encoded, out); err != nil {
		return false, fmt.Errorf("store: decoding %s state: %w", kind, err)
	}
	return true, nil
}

// AppendChange records one change-tracking entry.
func (p *Persister) AppendChange(ctx context.Context, entry ChangeEntry) error {
	conn, err := p.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer p.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO change_tracking (vault_id, version, kind, entity_id, op) VALUES (?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{entry.VaultID, entry.Version, string(entry.Kind), entry.ID, string(entry.Op)},
		})
	if err != nil {
		return fmt.Errorf("store: appending change entry: %w", err)
	}
	return nil
}

// PendingChanges returns all unacknowledged change entries for a
// vault, in the order they were recorded.
func (p *Persister) PendingChanges(ctx context.Context, vaultID string) ([]ChangeEntry, error) {
	conn, err := p.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer p.pool.Put(conn)

	var entries []ChangeEntry
	err = sqlitex.Execute(conn,
		`SELECT vault_id, version, kind, entity_id, op FROM change_tracking WHERE vault_id = ? ORDER BY seq`,
		&sqlitex.ExecOptions{
			Args: []any{vaultID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				entries = append(entries, ChangeEntry{
					VaultID: stmt.ColumnText(0),
					Version: stmt.ColumnInt64(1),
					Kind:    EntityKind(stmt.ColumnText(2)),
					ID:      stmt.ColumnText(3),
					Op:      ChangeOp(stmt.ColumnText(4)),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: reading pending changes: %w", err)
	}
	return entries, nil
}

// ClearChanges removes acknowledged entries up to and including
// version, atomically with advancing the cursor. Entries are never
// partially cleared.
func (p *Persister) ClearChanges(ctx context.Context, vaultID string, upToVersion int64) (err error) {
	conn, err := p.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer p.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("store: begin clear transaction: %w", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn,
		`DELETE FROM change_tracking WHERE vault_id = ? AND version <= ?`,
		&sqlitex.ExecOptions{Args: []any{vaultID, upToVersion}})
	if err != nil {
		return fmt.Errorf("store: clearing change entries: %w", err)
	}

	err = sqlitex.Execute(conn,
		`INSERT INTO sync_cursors (vault_id, last_version) VALUES (?, ?)
		 ON CONFLICT(vault_id) DO UPDATE SET last_version=excluded.last_version`,
		&sqlitex.ExecOptions{Args: []any{vaultID, upToVersion}})
	if err != nil {
		return fmt.Errorf("store: advancing sync cursor: %w", err)
	}
	return nil
}

// Cursor returns the last change-tracking version acknowledged by the
// server for a vault. Zero when the vault has never synced.
func (p *Persister) Cursor(ctx context.Context, vaultID string) (int64, error) {
	conn, err := p.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer p.pool.Put(conn)

	var cursor int64
	err = sqlitex.Execute(conn,
		`SELECT last_version FROM sync_cursors WHERE vault_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{vaultID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				cursor = stmt.ColumnInt64(0)
				return nil
			},
		})
	if err != nil {
		return 0, fmt.Errorf("store: reading sync cursor: %w", err)
	}
	return cursor, nil
}
