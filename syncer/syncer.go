// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

// Package syncer reconciles the local stores with the server's
// authoritative copy. It pushes pending change-tracking entries
// through the authenticated channel, verifies signature agreement,
// and advances the per-vault cursor on success.
package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Vaultic-LLC/Vaultic-sub003/lib/fieldtree"
	"github.com/Vaultic-LLC/Vaultic-sub003/lib/result"
	"github.com/Vaultic-LLC/Vaultic-sub003/store"
)

// Poster is the authenticated channel surface the coordinator needs.
// transport.Channel satisfies it.
type Poster interface {
	Post(ctx context.Context, path string, body map[string]any) result.Result[map[string]any]
}

// SyncedStore is the per-store surface used for signature
// reconciliation. All four store types satisfy it.
type SyncedStore interface {
	Version() int64
	CurrentSignature() string
	Stale(serverAcknowledged string) bool
	Acknowledge(ctx context.Context) error
}

// Options tune one sync run.
type Options struct {
	// ForcePush pushes local changes even when the server's
	// acknowledged signatures show remote changes we have not
	// merged. The server's copy of the conflicting stores is
	// overwritten: last write wins. Off by default; callers must opt
	// into the overwrite explicitly.
	ForcePush bool
}

// Report summarizes a successful sync.
type Report struct {
	// Pushed is the number of change entries the server accepted.
	Pushed int

	// Cursor is the advanced change-tracking cursor.
	Cursor int64

	// Acknowledged holds the server's recorded signature per store
	// after this sync.
	Acknowledged map[store.EntityKind]string
}

// Config wires a Coordinator.
type Config struct {
	Channel   Poster
	Engine    *store.Engine
	Persister *store.Persister
	VaultID   string

	// Schema, when set, runs the sync payload through the field-tree
	// encryptor before it reaches the channel, and the response
	// through the matching decryption. Keys must be set with it.
	Schema *fieldtree.Schema
	Keys   store.KeyProvider

	Logger *slog.Logger
}

// Coordinator runs vault synchronization over the authenticated
// channel. One coordinator serves one vault.
type Coordinator struct {
	channel   Poster
	engine    *store.Engine
	persister *store.Persister
	vaultID   string
	schema    *fieldtree.Schema
	keys      store.KeyProvider
	logger    *slog.Logger
}

// New returns a coordinator for the configured vault.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Schema != nil && cfg.Keys == nil {
		return nil, fmt.Errorf("syncer: Schema set without Keys")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		channel:   cfg.Channel,
		engine:    cfg.Engine,
		persister: cfg.Persister,
		vaultID:   cfg.VaultID,
		schema:    cfg.Schema,
		keys:      cfg.Keys,
		logger:    logger,
	}, nil
}

// SyncVaults pushes all pending change entries plus the current
// cursor and store signatures, then reconciles with the server's
// response.
//
// Conflict policy: the server answers with the signature it last
// acknowledged for each store. If any store's chain disagrees — a
// remote change happened since our last sync — the push is NOT
// applied locally: the cursor stays put, pending entries stay
// pending, and the caller gets a verification failure naming the
// conflicted stores. Pushing over a known conflict requires the
// explicit ForcePush option.
func (c *Coordinator) SyncVaults(ctx context.Context, opts Options) result.Result[Report] {
	cursor, err := c.persister.Cursor(ctx, c.vaultID)
	if err != nil {
		return result.WrapErr[Report](result.CodeTransaction, err).WithBreadcrumb("syncer.SyncVaults")
	}
	pending, err := c.persister.PendingChanges(ctx, c.vaultID)
	if err != nil {
		return result.WrapErr[Report](result.CodeTransaction, err).WithBreadcrumb("syncer.SyncVaults")
	}

	changes := make([]map[string]any, 0, len(pending))
	for _, entry := range pending {
		changes = append(changes, map[string]any{
			"VaultID": entry.VaultID,
			"Version": entry.Version,
			"Kind":    string(entry.Kind),
			"ID":      entry.ID,
			"Op":      string(entry.Op),
		})
	}

	body := map[string]any{
		"VaultID": c.vaultID,
		"Cursor":  cursor,
		"Changes": changes,
		"Signatures": map[string]any{
			string(store.KindPassword): c.engine.Passwords.CurrentSignature(),
			string(store.KindValue):    c.engine.Values.CurrentSignature(),
			string(store.KindGroup):    c.engine.Groups.CurrentSignature(),
			string(store.KindFilter):   c.engine.Filters.CurrentSignature(),
		},
		"Force": opts.ForcePush,
	}

	if c.schema != nil {
		encrypted := fieldtree.Encrypt(c.schema, c.keys.ExportKey(), body)
		if !encrypted.OK {
			return result.Propagate[Report](encrypted, "syncer.SyncVaults")
		}
		body = encrypted.Value
	}

	response := c.channel.Post(ctx, "vaults/sync", body)
	if !response.OK {
		return result.Propagate[Report](response, "syncer.SyncVaults")
	}
	payload := response.Value
	if c.schema != nil {
		decrypted := fieldtree.Decrypt(c.schema, c.keys.ExportKey(), payload)
		if !decrypted.OK {
			return result.Propagate[Report](decrypted, "syncer.SyncVaults")
		}
		payload = decrypted.Value
	}

	acknowledged := acknowledgedSignatures(payload)
	if !opts.ForcePush {
		if conflicted := c.conflicts(acknowledged); len(conflicted) > 0 {
			c.logger.Warn("sync rejected: remote changes not merged",
				"vault", c.vaultID, "stores", conflicted)
			return result.Errf[Report](result.CodeVerification,
				"remote changes in %v must be merged before pushing", conflicted)
		}
	}

	latest := cursor
	for _, entry := range pending {
		if entry.Version > latest {
			latest = entry.Version
		}
	}
	if serverCursor, ok := payload["Cursor"].(float64); ok && int64(serverCursor) > latest {
		latest = int64(serverCursor)
	}

	if err := c.persister.ClearChanges(ctx, c.vaultID, latest); err != nil {
		return result.WrapErr[Report](result.CodeStoreInconsistency, err).WithBreadcrumb("syncer.SyncVaults")
	}
	for _, synced := range c.stores() {
		if err := synced.Acknowledge(ctx); err != nil {
			return result.WrapErr[Report](result.CodeStoreInconsistency, err).WithBreadcrumb("syncer.SyncVaults")
		}
	}

	c.logger.Info("vault synced",
		"vault", c.vaultID, "pushed", len(pending), "cursor", latest)
	return result.Ok(Report{
		Pushed:       len(pending),
		Cursor:       latest,
		Acknowledged: acknowledged,
	})
}

// conflicts returns the kinds whose signature chain disagrees with
// the server's acknowledged signature.
func (c *Coordinator) conflicts(acknowledged map[store.EntityKind]string) []store.EntityKind {
	var conflicted []store.EntityKind
	for kind, synced := range c.stores() {
		if synced.Stale(acknowledged[kind]) {
			conflicted = append(conflicted, kind)
		}
	}
	return conflicted
}

func (c *Coordinator) stores() map[store.EntityKind]SyncedStore {
	return map[store.EntityKind]SyncedStore{
		store.KindPassword: c.engine.Passwords,
		store.KindValue:    c.engine.Values,
		store.KindGroup:    c.engine.Groups,
		store.KindFilter:   c.engine.Filters,
	}
}

// acknowledgedSignatures extracts the per-store acknowledged
// signatures from a sync response. Missing or mistyped entries come
// back empty, which Stale treats as "server has no record" — not a
// conflict.
func acknowledgedSignatures(response map[string]any) map[store.EntityKind]string {
	acknowledged := make(map[store.EntityKind]string, 4)
	raw, _ := response["Acknowledged"].(map[string]any)
	for key, value := range raw {
		if signature, ok := value.(string); ok {
			acknowledged[store.EntityKind(key)] = signature
		}
	}
	return acknowledged
}
