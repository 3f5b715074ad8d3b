// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"log/slog"

	"github.com/Vaultic-LLC/Vaultic-sub003/lib/result"
)

// GroupStore holds the group entities and their derived member
// indices. Primary stores call SyncMembership during their own
// mutations to rebuild the member index from the primary objects'
// group references; this must happen before filter membership is
// recomputed, because filter rules may read group membership.
//
// Not safe for overlapping mutations; the single-threaded caller must
// finish one mutation before issuing the next.
type GroupStore struct {
	state     *State[Group]
	persister *Persister
	vaultID   string
	logger    *slog.Logger
}

// NewGroupStore loads the persisted group state, or initializes an
// empty one on first run.
func NewGroupStore(ctx context.Context, persister *Persister, vaultID string, logger *slog.Logger) (*GroupStore, error) {
	state := &State[Group]{}
	loaded, err := persister.LoadState(ctx, KindGroup, state)
	if err != nil {
		return nil, err
	}
	if !loaded {
		state, err = NewState[Group]()
		if err != nil {
			return nil, err
		}
	}
	return &GroupStore{state: state, persister: persister, vaultID: vaultID, logger: logger}, nil
}

// Add creates a group with the given name.
func (g *GroupStore) Add(ctx context.Context, name string) result.Result[Group] {
	if name == "" {
		return result.Err[Group](result.CodeInvalidRequest, "group name is required")
	}

	id, err := GenerateID(g.idSet())
	if err != nil {
		return result.WrapErr[Group](result.CodeUnknown, err)
	}

	group := Group{ID: id, Name: name}
	g.state.Values = append(g.state.Values, group)
	g.state.Version++
	if err := g.state.Resign(); err != nil {
		return result.WrapErr[Group](result.CodeSignatureMakeup, err)
	}

	if err := g.persistWithChange(ctx, id, OpCreated); err != nil {
		return result.WrapErr[Group](result.CodeTransaction, err).WithBreadcrumb("store.Groups.Add")
	}
	return result.Ok(group)
}

// Rename changes a group's name.
func (g *GroupStore) Rename(ctx context.Context, id, name string) result.Result[Group] {
	if name == "" {
		return result.Err[Group](result.CodeInvalidRequest, "group name is required")
	}
	index, found := g.indexOf(id)
	if !found {
		return result.Errf[Group](result.CodeMissingEntity, "group %s not found", id)
	}

	g.state.Values[index].Name = name
	g.state.Version++
	if err := g.state.Resign(); err != nil {
		return result.WrapErr[Group](result.CodeSignatureMakeup, err)
	}
	if err := g.persistWithChange(ctx, id, OpUpdated); err != nil {
		return result.WrapErr[Group](result.CodeTransaction, err).WithBreadcrumb("store.Groups.Rename")
	}
	return result.Ok(g.state.Values[index])
}

// Delete removes a group. Member references held by primary objects
// are cleaned up on their next membership sync.
func (g *GroupStore) Delete(ctx context.Context, id string) result.Result[struct{}] {
	index, found := g.indexOf(id)
	if !found {
		return result.Errf[struct{}](result.CodeMissingEntity, "group %s not found", id)
	}

	g.state.Values = append(g.state.Values[:index], g.state.Values[index+1:]...)
	g.state.Version++
	if err := g.state.Resign(); err != nil {
		return result.WrapErr[struct{}](result.CodeSignatureMakeup, err)
	}
	if err := g.persistWithChange(ctx, id, OpDeleted); err != nil {
		return result.WrapErr[struct{}](result.CodeTransaction, err).WithBreadcrumb("store.Groups.Delete")
	}
	return result.Ok(struct{}{})
}

// SyncMembership rebuilds the member indices for one primary object:
// the object is removed from every group not in groupIDs and added to
// each group listed. Unknown group IDs are ignored (stale references
// from a deleted group). The updated state is NOT persisted here —
// the owning mutation persists all affected stores in its own
// sequence.
func (g *GroupStore) SyncMembership(objectID string, groupIDs []string) {
	wanted := make(map[string]struct{}, len(groupIDs))
	for _, id := range groupIDs {
		wanted[id] = struct{}{}
	}

	for index := range g.state.Values {
		group := &g.state.Values[index]
		_, isMember := wanted[group.ID]
		group.MemberIDs = setMembership(group.MemberIDs, objectID, isMember)
	}
}

// RemoveMember drops the object from every group index. Called when a
// primary object is deleted.
func (g *GroupStore) RemoveMember(objectID string) {
	for index := range g.state.Values {
		group := &g.state.Values[index]
		group.MemberIDs = setMembership(group.MemberIDs, objectID, false)
	}
}

// Contains reports whether objectID is a member of the group.
func (g *GroupStore) Contains(groupID, objectID string) bool {
	for index := range g.state.Values {
		if g.state.Values[index].ID != groupID {
			continue
		}
		for _, member := range g.state.Values[index].MemberIDs {
			if member == objectID {
				return true
			}
		}
		return false
	}
	return false
}

// Groups returns a copy of the group list.
func (g *GroupStore) Groups() []Group {
	return append([]Group(nil), g.state.Values...)
}

// Version returns the store's mutation version.
func (g *GroupStore) Version() int64 { return g.state.Version }

// CurrentSignature returns the keyed signature over the current
// values.
func (g *GroupStore) CurrentSignature() string { return g.state.CurrentSignature }

// Stale reports whether the server's acknowledged signature disagrees
// with ours.
func (g *GroupStore) Stale(serverAcknowledged string) bool {
	return g.state.Stale(serverAcknowledged)
}

// Acknowledge records server acceptance of the current signature and
// persists it.
func (g *GroupStore) Acknowledge(ctx context.Context) error {
	g.state.Acknowledge()
	return g.persist(ctx)
}

// persist writes the group state. Exposed to primary stores so their
// mutation sequence can persist the group index before the filter
// index and the primary state.
func (g *GroupStore) persist(ctx context.Context) error {
	return g.persister.SaveState(ctx, KindGroup, g.state.Version, g.state)
}

func (g *GroupStore) persistWithChange(ctx context.Context, id string, op ChangeOp) error {
	if err := g.persist(ctx); err != nil {
		return err
	}
	return g.persister.AppendChange(ctx, ChangeEntry{
		VaultID: g.vaultID,
		Version: g.state.Version,
		Kind:    KindGroup,
		ID:      id,
		Op:      op,
	})
}

func (g *GroupStore) indexOf(id string) (int, bool) {
	for index := range g.state.Values {
		if g.state.Values[index].ID == id {
			return index, true
		}
	}
	return 0, false
}

func (g *GroupStore) idSet() map[string]struct{} {
	ids := make(map[string]struct{}, len(g.state.Values))
	for index := range g.state.Values {
		ids[g.state.Values[index].ID] = struct{}{}
	}
	return ids
}

// setMembership adds or removes objectID from members, preserving
// order and avoiding duplicates.
func setMembership(members []string, objectID string, isMember bool) []string {
	position := -1
	for index, member := range members {
		if member == objectID {
			position = index
			break
		}
	}
	switch {
	case isMember && position < 0:
		return append(members, objectID)
	case !isMember && position >= 0:
		return append(members[:position], members[position+1:]...)
	default:
		return members
	}
}
