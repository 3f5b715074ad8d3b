// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

package syncer

import (
	"context"
	"crypto/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/Vaultic-LLC/Vaultic-sub003/lib/clock"
	"github.com/Vaultic-LLC/Vaultic-sub003/lib/fieldtree"
	"github.com/Vaultic-LLC/Vaultic-sub003/lib/result"
	"github.com/Vaultic-LLC/Vaultic-sub003/lib/secret"
	"github.com/Vaultic-LLC/Vaultic-sub003/store"
)

type staticKeys struct {
	key *secret.Buffer
}

func (s staticKeys) ExportKey() *secret.Buffer { return s.key }

// fakeChannel records posted bodies and plays back canned responses.
type fakeChannel struct {
	calls    int
	lastPath string
	lastBody map[string]any
	response result.Result[map[string]any]
}

func (f *fakeChannel) Post(ctx context.Context, path string, body map[string]any) result.Result[map[string]any] {
	f.calls++
	f.lastPath = path
	f.lastBody = body
	return f.response
}

type fixture struct {
	engine    *store.Engine
	persister *store.Persister
	channel   *fakeChannel

	// initial holds each store's signature before any mutation: the
	// last signature a well-behaved server would have acknowledged.
	initial map[store.EntityKind]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		t.Fatalf("generating key material: %v", err)
	}
	buffer, err := secret.NewFromBytes(raw)
	if err != nil {
		t.Fatalf("allocating key buffer: %v", err)
	}
	t.Cleanup(func() { buffer.Close() })

	persister, err := store.OpenPersister(store.PersisterConfig{
		Path: filepath.Join(t.TempDir(), "vault.db"),
		Keys: staticKeys{key: buffer},
	})
	if err != nil {
		t.Fatalf("opening persister: %v", err)
	}
	t.Cleanup(func() { persister.Close() })

	engine, err := store.OpenEngine(context.Background(), store.EngineConfig{
		Persister: persister,
		Keys:      staticKeys{key: buffer},
		Clock:     clock.Fake(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)),
		VaultID:   "vault-1",
	})
	if err != nil {
		t.Fatalf("opening engine: %v", err)
	}

	return &fixture{
		engine:    engine,
		persister: persister,
		channel:   &fakeChannel{},
		initial: map[store.EntityKind]string{
			store.KindPassword: engine.Passwords.CurrentSignature(),
			store.KindValue:    engine.Values.CurrentSignature(),
			store.KindGroup:    engine.Groups.CurrentSignature(),
			store.KindFilter:   engine.Filters.CurrentSignature(),
		},
	}
}

func (f *fixture) coordinator(t *testing.T) *Coordinator {
	t.Helper()
	coordinator, err := New(Config{
		Channel:   f.channel,
		Engine:    f.engine,
		Persister: f.persister,
		VaultID:   "vault-1",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return coordinator
}

// acknowledge builds the server response acknowledging the given
// signatures.
func acknowledge(signatures map[store.EntityKind]string, cursor int64) result.Result[map[string]any] {
	acknowledged := make(map[string]any, len(signatures))
	for kind, signature := range signatures {
		acknowledged[string(kind)] = signature
	}
	return result.Ok(map[string]any{
		"Acknowledged": acknowledged,
		"Cursor":       float64(cursor),
	})
}

func mustAdd(t *testing.T, f *fixture, login string) store.Password {
	t.Helper()
	res := f.engine.Passwords.Add(context.Background(), store.PasswordInput{
		Login:    login,
		Password: "Tr0ub4dor&3-" + login,
	})
	if !res.OK {
		t.Fatalf("Add(%q) failed: %s", login, res.String())
	}
	return res.Value
}

func TestSyncHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mustAdd(t, f, "alice")
	mustAdd(t, f, "bob")
	f.channel.response = acknowledge(f.initial, 0)

	res := f.coordinator(t).SyncVaults(ctx, Options{})
	if !res.OK {
		t.Fatalf("SyncVaults failed: %s", res.String())
	}
	if res.Value.Pushed != 2 {
		t.Errorf("Pushed = %d, want 2", res.Value.Pushed)
	}
	if f.channel.calls != 1 || f.channel.lastPath != "vaults/sync" {
		t.Errorf("channel saw %d calls to %q, want 1 to vaults/sync", f.channel.calls, f.channel.lastPath)
	}

	changes, _ := f.channel.lastBody["Changes"].([]map[string]any)
	if len(changes) != 2 {
		t.Fatalf("pushed %d changes, want 2", len(changes))
	}
	if changes[0]["Op"] != "created" {
		t.Errorf("first change op = %v, want created", changes[0]["Op"])
	}

	pending, err := f.persister.PendingChanges(ctx, "vault-1")
	if err != nil {
		t.Fatalf("PendingChanges: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("%d changes still pending after sync", len(pending))
	}
	cursor, err := f.persister.Cursor(ctx, "vault-1")
	if err != nil {
		t.Fatalf("Cursor: %v", err)
	}
	if cursor != res.Value.Cursor || cursor == 0 {
		t.Errorf("cursor = %d, want advanced to %d", cursor, res.Value.Cursor)
	}

	// The chain is acknowledged: our current signature is no longer
	// stale against itself.
	if f.engine.Passwords.Stale(f.engine.Passwords.CurrentSignature()) {
		t.Error("password store still stale after acknowledged sync")
	}
}

func TestSyncConflictRejectsPush(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mustAdd(t, f, "alice")

	// The server acknowledges a signature we never produced: another
	// device pushed in between.
	conflicting := map[store.EntityKind]string{}
	for kind, signature := range f.initial {
		conflicting[kind] = signature
	}
	conflicting[store.KindPassword] = "remote-signature"
	f.channel.response = acknowledge(conflicting, 0)

	res := f.coordinator(t).SyncVaults(ctx, Options{})
	if res.OK {
		t.Fatal("conflicted push applied")
	}
	if res.Code != result.CodeVerification {
		t.Errorf("Code = %d, want %d", res.Code, result.CodeVerification)
	}

	pending, err := f.persister.PendingChanges(ctx, "vault-1")
	if err != nil {
		t.Fatalf("PendingChanges: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("pending entries = %d after rejected push, want 1", len(pending))
	}
	cursor, err := f.persister.Cursor(ctx, "vault-1")
	if err != nil {
		t.Fatalf("Cursor: %v", err)
	}
	if cursor != 0 {
		t.Errorf("cursor advanced to %d on rejected push", cursor)
	}
}

func TestForcePushOverridesConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mustAdd(t, f, "alice")

	conflicting := map[store.EntityKind]string{store.KindPassword: "remote-signature"}
	f.channel.response = acknowledge(conflicting, 0)

	res := f.coordinator(t).SyncVaults(ctx, Options{ForcePush: true})
	if !res.OK {
		t.Fatalf("forced push failed: %s", res.String())
	}
	if force, _ := f.channel.lastBody["Force"].(bool); !force {
		t.Error("force flag not sent to the server")
	}

	pending, err := f.persister.PendingChanges(ctx, "vault-1")
	if err != nil {
		t.Fatalf("PendingChanges: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("%d changes still pending after forced push", len(pending))
	}
}

func TestSyncPropagatesChannelFailure(t *testing.T) {
	f := newFixture(t)

	mustAdd(t, f, "alice")
	f.channel.response = result.ErrInvalidSession[map[string]any]()

	res := f.coordinator(t).SyncVaults(context.Background(), Options{})
	if res.OK {
		t.Fatal("sync succeeded over a failed channel")
	}
	if !res.InvalidSession {
		t.Errorf("InvalidSession = false, want true (code %d)", res.Code)
	}
	if len(res.CallStack) == 0 || res.CallStack[len(res.CallStack)-1] != "syncer.SyncVaults" {
		t.Errorf("CallStack = %v, want syncer.SyncVaults breadcrumb", res.CallStack)
	}

	pending, err := f.persister.PendingChanges(context.Background(), "vault-1")
	if err != nil {
		t.Fatalf("PendingChanges: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("pending entries = %d, want untouched 1", len(pending))
	}
}

func TestSyncWithFieldSchema(t *testing.T) {
	f := newFixture(t)

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		t.Fatalf("generating key material: %v", err)
	}
	buffer, err := secret.NewFromBytes(raw)
	if err != nil {
		t.Fatalf("allocating key buffer: %v", err)
	}
	t.Cleanup(func() { buffer.Close() })

	mustAdd(t, f, "alice")
	f.channel.response = acknowledge(f.initial, 0)

	coordinator, err := New(Config{
		Channel:   f.channel,
		Engine:    f.engine,
		Persister: f.persister,
		VaultID:   "vault-1",
		Schema:    &fieldtree.Schema{Properties: []string{"VaultID"}},
		Keys:      staticKeys{key: buffer},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res := coordinator.SyncVaults(context.Background(), Options{})
	if !res.OK {
		t.Fatalf("SyncVaults failed: %s", res.String())
	}
	if f.channel.lastBody["VaultID"] == "vault-1" {
		t.Error("schema-listed field left in plaintext on the wire")
	}
}

func TestNewRejectsSchemaWithoutKeys(t *testing.T) {
	f := newFixture(t)

	_, err := New(Config{
		Channel:   f.channel,
		Engine:    f.engine,
		Persister: f.persister,
		VaultID:   "vault-1",
		Schema:    &fieldtree.Schema{Properties: []string{"VaultID"}},
	})
	if err == nil {
		t.Fatal("New accepted a Schema without Keys")
	}
}

func TestSyncWithNothingPending(t *testing.T) {
	f := newFixture(t)

	f.channel.response = acknowledge(f.initial, 0)
	res := f.coordinator(t).SyncVaults(context.Background(), Options{})
	if !res.OK {
		t.Fatalf("SyncVaults failed: %s", res.String())
	}
	if res.Value.Pushed != 0 {
		t.Errorf("Pushed = %d, want 0", res.Value.Pushed)
	}
}
