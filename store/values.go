// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"log/slog"

	"github.com/Vaultic-LLC/Vaultic-sub003/lib/clock"
	"github.com/Vaultic-LLC/Vaultic-sub003/lib/result"
	"github.com/Vaultic-LLC/Vaultic-sub003/lib/vcrypto"
)

// ValueInput is the plaintext form of a new secure value.
type ValueInput struct {
	Name      string
	Value     string
	GroupIDs  []string
	FilterIDs []string
}

// ValueUpdate selects fields to change on an existing secure value.
type ValueUpdate struct {
	ID        string
	Name      *string
	Value     *string
	GroupIDs  []string
	FilterIDs []string
}

// ValueStoreConfig wires a ValueStore's collaborators.
type ValueStoreConfig struct {
	Persister *Persister
	Groups    *GroupStore
	Filters   *FilterStore
	Keys      KeyProvider
	Clock     clock.Clock
	VaultID   string
	Notify    func(EntityKind)
	Logger    *slog.Logger
}

// ValueStore holds secure values (card numbers, license keys, notes).
// Mutations run the same pipeline as the password store: comparison
// keys derived from plaintext, membership sync with groups before
// filters, then ordered persistence.
type ValueStore struct {
	state     *State[Value]
	dups      *DuplicateIndex
	persister *Persister
	groups    *GroupStore
	filters   *FilterStore
	keys      KeyProvider
	clock     clock.Clock
	vaultID   string
	notify    func(EntityKind)
	logger    *slog.Logger
}

// NewValueStore loads the persisted value state.
func NewValueStore(ctx context.Context, cfg ValueStoreConfig) (*ValueStore, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	state := &State[Value]{}
	loaded, err := cfg.Persister.LoadState(ctx, KindValue, state)
	if err != nil {
		return nil, err
	}
	if !loaded {
		state, err = NewState[Value]()
		if err != nil {
			return nil, err
		}
	}

	dups := NewDuplicateIndex()
	dups.Restore(state.DupKeys)

	return &ValueStore{
		state:     state,
		dups:      dups,
		persister: cfg.Persister,
		groups:    cfg.Groups,
		filters:   cfg.Filters,
		keys:      cfg.Keys,
		clock:     cfg.Clock,
		vaultID:   cfg.VaultID,
		notify:    cfg.Notify,
		logger:    logger,
	}, nil
}

// Add creates a secure value from plaintext input.
func (v *ValueStore) Add(ctx context.Context, input ValueInput) result.Result[Value] {
	if input.Name == "" || input.Value == "" {
		failure := result.Err[Value](result.CodeInvalidRequest, "name and value are required")
		return failure
	}

	id, err := GenerateID(v.idSet())
	if err != nil {
		return result.WrapErr[Value](result.CodeUnknown, err)
	}
	now := v.clock.Now()

	key, err := vcrypto.ComparisonKey(v.state.HashSalt, input.Value)
	if err != nil {
		return result.WrapErr[Value](result.CodeUnknown, err)
	}
	v.dups.Add(id, key)

	cipherText, res := v.encryptField(input.Value)
	if !res.OK {
		v.dups.Remove(id)
		return result.Propagate[Value](res, "store.Values.Add")
	}

	entry := Value{
		ID:        id,
		Name:      input.Name,
		Value:     cipherText,
		Length:    len(input.Value),
		GroupIDs:  append([]string(nil), input.GroupIDs...),
		FilterIDs: append([]string(nil), input.FilterIDs...),
		CreatedAt: now,
		UpdatedAt: now,
	}

	v.state.Values = append(v.state.Values, entry)
	v.state.Version++
	if err := v.state.Resign(); err != nil {
		return result.WrapErr[Value](result.CodeSignatureMakeup, err)
	}
	v.state.Trend.Append(now, len(v.state.Values), v.safeCount())

	v.groups.SyncMembership(id, entry.GroupIDs)
	v.filters.SyncMembership(id, entry.FilterIDs, false)

	if code, err := v.persistAll(ctx, id, OpCreated); err != nil {
		return result.WrapErr[Value](code, err).WithBreadcrumb("store.Values.Add")
	}
	v.emit()
	return result.Ok(entry)
}

// Update applies a partial update to an existing secure value.
func (v *ValueStore) Update(ctx context.Context, update ValueUpdate) result.Result[Value] {
	index, failure := v.locate(update.ID)
	if !failure.OK {
		return failure
	}
	entry := &v.state.Values[index]

	if update.Value != nil {
		key, err := vcrypto.ComparisonKey(v.state.HashSalt, *update.Value)
		if err != nil {
			return result.WrapErr[Value](result.CodeUnknown, err)
		}

		cipherText, res := v.encryptField(*update.Value)
		if !res.OK {
			return result.Propagate[Value](res, "store.Values.Update")
		}

		// Rekey only once the new ciphertext exists; a failed
		// encryption must not strand the index on a value that was
		// never stored.
		v.dups.Add(entry.ID, key)
		entry.Value = cipherText
		entry.Length = len(*update.Value)
	}
	if update.Name != nil {
		entry.Name = *update.Name
	}
	if update.GroupIDs != nil {
		entry.GroupIDs = append([]string(nil), update.GroupIDs...)
	}
	if update.FilterIDs != nil {
		entry.FilterIDs = append([]string(nil), update.FilterIDs...)
	}

	now := v.clock.Now()
	entry.UpdatedAt = now
	v.state.Version++
	if err := v.state.Resign(); err != nil {
		return result.WrapErr[Value](result.CodeSignatureMakeup, err)
	}
	v.state.Trend.Append(now, len(v.state.Values), v.safeCount())

	v.groups.SyncMembership(entry.ID, entry.GroupIDs)
	v.filters.SyncMembership(entry.ID, entry.FilterIDs, false)

	if code, err := v.persistAll(ctx, entry.ID, OpUpdated); err != nil {
		return result.WrapErr[Value](code, err).WithBreadcrumb("store.Values.Update")
	}
	v.emit()
	return result.Ok(*entry)
}

// Delete removes a secure value.
func (v *ValueStore) Delete(ctx context.Context, id string) result.Result[struct{}] {
	index, failure := v.locate(id)
	if !failure.OK {
		return result.Propagate[struct{}](failure, "store.Values.Delete")
	}

	v.dups.Remove(id)
	v.state.Values = append(v.state.Values[:index], v.state.Values[index+1:]...)
	v.groups.RemoveMember(id)
	v.filters.RemoveMember(id)

	v.state.Version++
	if err := v.state.Resign(); err != nil {
		return result.WrapErr[struct{}](result.CodeSignatureMakeup, err)
	}

	if code, err := v.persistAll(ctx, id, OpDeleted); err != nil {
		return result.WrapErr[struct{}](code, err).WithBreadcrumb("store.Values.Delete")
	}
	v.emit()
	return result.Ok(struct{}{})
}

// Reveal decrypts one value.
func (v *ValueStore) Reveal(id string) result.Result[string] {
	index, failure := v.locate(id)
	if !failure.OK {
		return result.Propagate[string](failure, "store.Values.Reveal")
	}
	key := v.keys.ExportKey()
	if key == nil {
		return result.Err[string](result.CodeNoExportKey, "no export key available")
	}
	plaintext, err := vcrypto.DecryptSymmetric(key, v.state.Values[index].Value)
	if err != nil {
		return result.WrapErr[string](result.CodeSymmetricDecryption, err)
	}
	return result.Ok(string(plaintext))
}

// Values returns a copy of the value list, ciphertext intact.
func (v *ValueStore) Values() []Value {
	return append([]Value(nil), v.state.Values...)
}

// Version returns the store's mutation version.
func (v *ValueStore) Version() int64 { return v.state.Version }

// CurrentSignature returns the keyed signature over the current
// values.
func (v *ValueStore) CurrentSignature() string { return v.state.CurrentSignature }

// Stale reports whether the server's acknowledged signature disagrees
// with ours.
func (v *ValueStore) Stale(serverAcknowledged string) bool {
	return v.state.Stale(serverAcknowledged)
}

// Acknowledge records server acceptance of the current signature and
// persists it.
func (v *ValueStore) Acknowledge(ctx context.Context) error {
	v.state.Acknowledge()
	return v.persist(ctx)
}

// Trend returns a copy of the risk/trend series.
func (v *ValueStore) Trend() TrendSeries {
	return TrendSeries{
		Current: append([]TrendPoint(nil), v.state.Trend.Current...),
		Safe:    append([]TrendPoint(nil), v.state.Trend.Safe...),
	}
}

// IsDuplicate reports whether the value shares its plaintext with
// another entry.
func (v *ValueStore) IsDuplicate(id string) bool { return v.dups.IsDuplicate(id) }

// safeCount counts values with no known weakness. Values carry no
// strength or login flags; only duplication counts against them.
func (v *ValueStore) safeCount() int {
	safe := 0
	for index := range v.state.Values {
		if !v.dups.IsDuplicate(v.state.Values[index].ID) {
			safe++
		}
	}
	return safe
}

func (v *ValueStore) locate(id string) (int, result.Result[Value]) {
	found := -1
	for index := range v.state.Values {
		if v.state.Values[index].ID != id {
			continue
		}
		if found >= 0 {
			return 0, result.Errf[Value](result.CodeDuplicateID,
				"value %s matches multiple entries", id)
		}
		found = index
	}
	if found < 0 {
		return 0, result.Errf[Value](result.CodeMissingEntity, "value %s not found", id)
	}
	return found, result.Ok(Value{})
}

func (v *ValueStore) encryptField(plaintext string) (string, result.Result[string]) {
	key := v.keys.ExportKey()
	if key == nil {
		return "", result.Err[string](result.CodeNoExportKey, "no export key available")
	}
	cipherText, err := vcrypto.EncryptSymmetric(key, []byte(plaintext))
	if err != nil {
		return "", result.WrapErr[string](result.CodeSymmetricEncryption, err)
	}
	return cipherText, result.Ok(cipherText)
}

func (v *ValueStore) persistAll(ctx context.Context, id string, op ChangeOp) (result.Code, error) {
	if err := v.groups.persist(ctx); err != nil {
		return result.CodeTransaction, err
	}
	if err := v.filters.persist(ctx); err != nil {
		return result.CodeStoreInconsistency, err
	}
	if err := v.persist(ctx); err != nil {
		return result.CodeStoreInconsistency, err
	}
	err := v.persister.AppendChange(ctx, ChangeEntry{
		VaultID: v.vaultID,
		Version: v.state.Version,
		Kind:    KindValue,
		ID:      id,
		Op:      op,
	})
	if err != nil {
		return result.CodeStoreInconsistency, err
	}
	return 0, nil
}

func (v *ValueStore) persist(ctx context.Context) error {
	v.state.DupKeys = v.dups.Snapshot()
	return v.persister.SaveState(ctx, KindValue, v.state.Version, v.state)
}

func (v *ValueStore) emit() {
	if v.notify != nil {
		v.notify(KindValue)
	}
}

func (v *ValueStore) idSet() map[string]struct{} {
	ids := make(map[string]struct{}, len(v.state.Values))
	for index := range v.state.Values {
		ids[v.state.Values[index].ID] = struct{}{}
	}
	return ids
}
