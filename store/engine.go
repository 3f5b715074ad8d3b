// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Vaultic-LLC/Vaultic-sub003/lib/clock"
)

// EngineConfig wires the store engine. Keys supplies the export key
// used for field encryption; Notify, when set, fires after every
// successful mutation of any store.
type EngineConfig struct {
	Persister *Persister
	Keys      KeyProvider
	Clock     clock.Clock
	VaultID   string
	Notify    func(EntityKind)
	Logger    *slog.Logger
}

// Engine bundles the four local stores over one persister. Group and
// filter stores open first because the primary stores sync membership
// through them.
type Engine struct {
	Passwords *PasswordStore
	Values    *ValueStore
	Groups    *GroupStore
	Filters   *FilterStore

	Log *LogSink
}

// OpenEngine loads all four stores from the persister, initializing
// any that have no persisted state yet.
func OpenEngine(ctx context.Context, cfg EngineConfig) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}

	groups, err := NewGroupStore(ctx, cfg.Persister, cfg.VaultID, logger)
	if err != nil {
		return nil, fmt.Errorf("store: opening group store: %w", err)
	}
	filters, err := NewFilterStore(ctx, cfg.Persister, groups, cfg.VaultID, logger)
	if err != nil {
		return nil, fmt.Errorf("store: opening filter store: %w", err)
	}

	passwords, err := NewPasswordStore(ctx, PasswordStoreConfig{
		Persister: cfg.Persister,
		Groups:    groups,
		Filters:   filters,
		Keys:      cfg.Keys,
		Clock:     clk,
		VaultID:   cfg.VaultID,
		Notify:    cfg.Notify,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("store: opening password store: %w", err)
	}

	values, err := NewValueStore(ctx, ValueStoreConfig{
		Persister: cfg.Persister,
		Groups:    groups,
		Filters:   filters,
		Keys:      cfg.Keys,
		Clock:     clk,
		VaultID:   cfg.VaultID,
		Notify:    cfg.Notify,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("store: opening value store: %w", err)
	}

	return &Engine{
		Passwords: passwords,
		Values:    values,
		Groups:    groups,
		Filters:   filters,
		Log:       NewLogSink(cfg.Persister),
	}, nil
}
