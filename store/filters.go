// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"log/slog"

	"github.com/Vaultic-LLC/Vaultic-sub003/lib/result"
)

// FilterStore holds the saved filters and their derived member
// indices. A primary object belongs to a filter when it is explicitly
// referenced by the object, or when it matches the filter's rule
// (group containment plus the weak-only toggle). Rule evaluation
// reads the group indices, so the owning mutation must sync group
// membership first.
type FilterStore struct {
	state     *State[Filter]
	groups    *GroupStore
	persister *Persister
	vaultID   string
	logger    *slog.Logger
}

// NewFilterStore loads the persisted filter state, or initializes an
// empty one on first run.
func NewFilterStore(ctx context.Context, persister *Persister, groups *GroupStore, vaultID string, logger *slog.Logger) (*FilterStore, error) {
	state := &State[Filter]{}
	loaded, err := persister.LoadState(ctx, KindFilter, state)
	if err != nil {
		return nil, err
	}
	if !loaded {
		state, err = NewState[Filter]()
		if err != nil {
			return nil, err
		}
	}
	return &FilterStore{state: state, groups: groups, persister: persister, vaultID: vaultID, logger: logger}, nil
}

// Add creates a filter. GroupID may be empty for a filter that only
// collects explicit references.
func (f *FilterStore) Add(ctx context.Context, name, groupID string, weakOnly bool) result.Result[Filter] {
	if name == "" {
		return result.Err[Filter](result.CodeInvalidRequest, "filter name is required")
	}

	id, err := GenerateID(f.idSet())
	if err != nil {
		return result.WrapErr[Filter](result.CodeUnknown, err)
	}

	filter := Filter{ID: id, Name: name, GroupID: groupID, WeakOnly: weakOnly}
	f.state.Values = append(f.state.Values, filter)
	f.state.Version++
	if err := f.state.Resign(); err != nil {
		return result.WrapErr[Filter](result.CodeSignatureMakeup, err)
	}
	if err := f.persistWithChange(ctx, id, OpCreated); err != nil {
		return result.WrapErr[Filter](result.CodeTransaction, err).WithBreadcrumb("store.Filters.Add")
	}
	return result.Ok(filter)
}

// Delete removes a filter.
func (f *FilterStore) Delete(ctx context.Context, id string) result.Result[struct{}] {
	index, found := f.indexOf(id)
	if !found {
		return result.Errf[struct{}](result.CodeMissingEntity, "filter %s not found", id)
	}

	f.state.Values = append(f.state.Values[:index], f.state.Values[index+1:]...)
	f.state.Version++
	if err := f.state.Resign(); err != nil {
		return result.WrapErr[struct{}](result.CodeSignatureMakeup, err)
	}
	if err := f.persistWithChange(ctx, id, OpDeleted); err != nil {
		return result.WrapErr[struct{}](result.CodeTransaction, err).WithBreadcrumb("store.Filters.Delete")
	}
	return result.Ok(struct{}{})
}

// SyncMembership rebuilds the member indices for one primary object.
// explicitIDs are the filters the object references directly; weak is
// the object's current weakness flag, consulted by rule-based
// filters. Like GroupStore.SyncMembership, the state is not persisted
// here.
func (f *FilterStore) SyncMembership(objectID string, explicitIDs []string, weak bool) {
	explicit := make(map[string]struct{}, len(explicitIDs))
	for _, id := range explicitIDs {
		explicit[id] = struct{}{}
	}

	for index := range f.state.Values {
		filter := &f.state.Values[index]
		_, isMember := explicit[filter.ID]
		if !isMember {
			isMember = f.matches(filter, objectID, weak)
		}
		filter.MemberIDs = setMembership(filter.MemberIDs, objectID, isMember)
	}
}

// RemoveMember drops the object from every filter index.
func (f *FilterStore) RemoveMember(objectID string) {
	for index := range f.state.Values {
		filter := &f.state.Values[index]
		filter.MemberIDs = setMembership(filter.MemberIDs, objectID, false)
	}
}

// Members returns a copy of the filter's member index.
func (f *FilterStore) Members(filterID string) []string {
	index, found := f.indexOf(filterID)
	if !found {
		return nil
	}
	return append([]string(nil), f.state.Values[index].MemberIDs...)
}

// Filters returns a copy of the filter list.
func (f *FilterStore) Filters() []Filter {
	return append([]Filter(nil), f.state.Values...)
}

// matches evaluates the filter's rule against one object. A filter
// with no group and weak-only off has no rule and matches nothing on
// its own.
func (f *FilterStore) matches(filter *Filter, objectID string, weak bool) bool {
	if filter.GroupID == "" && !filter.WeakOnly {
		return false
	}
	if filter.GroupID != "" && !f.groups.Contains(filter.GroupID, objectID) {
		return false
	}
	if filter.WeakOnly && !weak {
		return false
	}
	return true
}

// Version returns the store's mutation version.
func (f *FilterStore) Version() int64 { return f.state.Version }

// CurrentSignature returns the keyed signature over the current
// values.
func (f *FilterStore) CurrentSignature() string { return f.state.CurrentSignature }

// Stale reports whether the server's acknowledged signature disagrees
// with ours.
func (f *FilterStore) Stale(serverAcknowledged string) bool {
	return f.state.Stale(serverAcknowledged)
}

// Acknowledge records server acceptance of the current signature and
// persists it.
func (f *FilterStore) Acknowledge(ctx context.Context) error {
	f.state.Acknowledge()
	return f.persist(ctx)
}

func (f *FilterStore) persist(ctx context.Context) error {
	return f.persister.SaveState(ctx, KindFilter, f.state.Version, f.state)
}

func (f *FilterStore) persistWithChange(ctx context.Context, id string, op ChangeOp) error {
	if err := f.persist(ctx); err != nil {
		return err
	}
	return f.persister.AppendChange(ctx, ChangeEntry{
		VaultID: f.vaultID,
		Version: f.state.Version,
		Kind:    KindFilter,
		ID:      id,
		Op:      op,
	})
}

func (f *FilterStore) indexOf(id string) (int, bool) {
	for index := range f.state.Values {
		if f.state.Values[index].ID == id {
			return index, true
		}
	}
	return 0, false
}

func (f *FilterStore) idSet() map[string]struct{} {
	ids := make(map[string]struct{}, len(f.state.Values))
	for index := range f.state.Values {
		ids[f.state.Values[index].ID] = struct{}{}
	}
	return ids
}
