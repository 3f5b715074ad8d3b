// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Vaultic-LLC/Vaultic-sub003/lib/clock"
	"github.com/Vaultic-LLC/Vaultic-sub003/lib/result"
	"github.com/Vaultic-LLC/Vaultic-sub003/lib/vcrypto"
)

// SecurityQuestionInput is a plaintext security question supplied to
// Add or Update. ID is empty for new questions; on updates, an ID
// selects the existing question to replace.
type SecurityQuestionInput struct {
	ID       string
	Question string
	Answer   string
}

// PasswordInput is the plaintext form of a new credential.
type PasswordInput struct {
	Login    string
	Password string
	URL      string
	Notes    string
	Pinned   bool

	// Managed marks a service-managed credential. The Password field
	// of a managed entry is a service reference, stored verbatim and
	// excluded from local encryption and duplicate detection.
	Managed bool

	GroupIDs  []string
	FilterIDs []string

	SecurityQuestions []SecurityQuestionInput
}

// PasswordUpdate selects fields to change on an existing credential.
// Nil pointers and nil slices leave the field untouched.
type PasswordUpdate struct {
	ID string

	Login    *string
	Password *string
	URL      *string
	Notes    *string
	Pinned   *bool
	Breached *bool

	GroupIDs  []string
	FilterIDs []string

	// SecurityQuestions are merged by ID: inputs with a matching ID
	// replace that question, inputs without an ID are appended. With
	// ReplaceQuestions set, the existing questions are discarded and
	// rebuilt from the inputs alone.
	SecurityQuestions []SecurityQuestionInput
	ReplaceQuestions  bool
}

// PasswordStoreConfig wires a PasswordStore's collaborators. All
// fields except Notify and Logger are required.
type PasswordStoreConfig struct {
	Persister *Persister
	Groups    *GroupStore
	Filters   *FilterStore
	Keys      KeyProvider
	Clock     clock.Clock
	VaultID   string

	// Notify, when set, is invoked after every successful mutation so
	// the UI layer can refresh. Called synchronously on the mutating
	// goroutine.
	Notify func(EntityKind)

	Logger *slog.Logger
}

// PasswordStore is the primary credential store. All mutations follow
// the same sequence: duplicate index, derived flags, encryption,
// state update and re-sign, membership sync (groups before filters),
// then persistence of every touched store, then notification.
//
// Mutations are not safe to overlap; callers serialize them.
type PasswordStore struct {
	state     *State[Password]
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

// NewPasswordStore loads the persisted password state and rebuilds
// the duplicate index from its persisted keys.
func NewPasswordStore(ctx context.Context, cfg PasswordStoreConfig) (*PasswordStore, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	state := &State[Password]{}
	loaded, err := cfg.Persister.LoadState(ctx, KindPassword, state)
	if err != nil {
		return nil, err
	}
	if !loaded {
		state, err = NewState[Password]()
		if err != nil {
			return nil, err
		}
	}

	dups := NewDuplicateIndex()
	dups.Restore(state.DupKeys)

	return &PasswordStore{
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

// Add creates a credential from plaintext input.
func (p *PasswordStore) Add(ctx context.Context, input PasswordInput) result.Result[Password] {
	if invalid, failure := p.validateInput(input); invalid {
		return failure
	}

	id, err := GenerateID(p.idSet())
	if err != nil {
		return result.WrapErr[Password](result.CodeUnknown, err)
	}
	now := p.clock.Now()

	entry := Password{
		ID:        id,
		Login:     input.Login,
		URL:       input.URL,
		Notes:     input.Notes,
		Pinned:    input.Pinned,
		Managed:   input.Managed,
		GroupIDs:  append([]string(nil), input.GroupIDs...),
		FilterIDs: append([]string(nil), input.FilterIDs...),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if input.Managed {
		// The service reference is stored verbatim; nothing here is a
		// secret and nothing enters the duplicate index.
		entry.Password = input.Password
		entry.Length = len(input.Password)
	} else {
		// The duplicate key and derived flags come from the plaintext,
		// so both happen before encryption destroys access to it.
		key, err := vcrypto.ComparisonKey(p.state.HashSalt, input.Password)
		if err != nil {
			return result.WrapErr[Password](result.CodeUnknown, err)
		}
		p.dups.Add(id, key)

		entry.Weak = isWeakPassword(input.Password)
		entry.ContainsLogin = containsLogin(input.Password, input.Login)
		entry.Length = len(input.Password)

		cipherText, res := p.encryptField(input.Password)
		if !res.OK {
			p.dups.Remove(id)
			return result.Propagate[Password](res, "store.Passwords.Add")
		}
		entry.Password = cipherText
	}

	questions, res := p.buildQuestions(input.SecurityQuestions, input.Managed)
	if !res.OK {
		p.dups.Remove(id)
		return result.Propagate[Password](res, "store.Passwords.Add")
	}
	entry.SecurityQuestions = questions

	p.state.Values = append(p.state.Values, entry)
	p.state.Version++
	if err := p.state.Resign(); err != nil {
		return result.WrapErr[Password](result.CodeSignatureMakeup, err)
	}
	p.state.Trend.Append(now, len(p.state.Values), p.safeCount())

	p.groups.SyncMembership(id, entry.GroupIDs)
	p.filters.SyncMembership(id, entry.FilterIDs, entry.Weak)

	if code, err := p.persistAll(ctx, id, OpCreated); err != nil {
		return result.WrapErr[Password](code, err).WithBreadcrumb("store.Passwords.Add")
	}
	p.emit()
	return result.Ok(entry)
}

// Update applies a partial update to an existing credential.
func (p *PasswordStore) Update(ctx context.Context, update PasswordUpdate) result.Result[Password] {
	index, failure := p.locate(update.ID)
	if !failure.OK {
		return failure
	}
	entry := &p.state.Values[index]
	now := p.clock.Now()

	// plaintext, when known, drives flag re-derivation below. It
	// becomes known either from a supplied new password or from a
	// one-time decryption of the stored one.
	var plaintext string
	var plaintextKnown bool

	if update.Password != nil {
		if entry.Managed {
			entry.Password = *update.Password
			entry.Length = len(*update.Password)
		} else {
			plaintext = *update.Password
			plaintextKnown = true

			key, err := vcrypto.ComparisonKey(p.state.HashSalt, plaintext)
			if err != nil {
				return result.WrapErr[Password](result.CodeUnknown, err)
			}

			cipherText, res := p.encryptField(plaintext)
			if !res.OK {
				return result.Propagate[Password](res, "store.Passwords.Update")
			}

			// The index rekey and flag writes wait for the ciphertext:
			// a failed encryption must leave the entry — and its former
			// duplicates — exactly as they were.
			p.dups.Add(entry.ID, key)
			entry.Weak = isWeakPassword(plaintext)
			entry.Length = len(plaintext)
			entry.Password = cipherText
		}
	} else if update.Login != nil && !entry.Managed {
		// The password is unchanged but the login moved under it, so
		// the contains-login flag may be stale. Decrypt the stored
		// value once to re-derive it; failure keeps the old flag.
		decrypted, res := p.decryptField(entry.Password)
		if res.OK {
			plaintext = decrypted
			plaintextKnown = true
		} else {
			p.logger.Warn("password store: keeping stale contains-login flag",
				"id", entry.ID, "code", int(res.Code))
		}
	}

	if update.Login != nil {
		entry.Login = *update.Login
	}
	if update.URL != nil {
		entry.URL = *update.URL
	}
	if update.Notes != nil {
		entry.Notes = *update.Notes
	}
	if update.Pinned != nil {
		entry.Pinned = *update.Pinned
	}
	if update.Breached != nil {
		entry.Breached = *update.Breached
	}
	if plaintextKnown {
		entry.ContainsLogin = containsLogin(plaintext, entry.Login)
	}

	if update.ReplaceQuestions {
		questions, res := p.buildQuestions(update.SecurityQuestions, entry.Managed)
		if !res.OK {
			return result.Propagate[Password](res, "store.Passwords.Update")
		}
		entry.SecurityQuestions = questions
	} else if len(update.SecurityQuestions) > 0 {
		if res := p.mergeQuestions(entry, update.SecurityQuestions); !res.OK {
			return result.Propagate[Password](res, "store.Passwords.Update")
		}
	}

	if update.GroupIDs != nil {
		entry.GroupIDs = append([]string(nil), update.GroupIDs...)
	}
	if update.FilterIDs != nil {
		entry.FilterIDs = append([]string(nil), update.FilterIDs...)
	}

	entry.UpdatedAt = now
	p.state.Version++
	if err := p.state.Resign(); err != nil {
		return result.WrapErr[Password](result.CodeSignatureMakeup, err)
	}
	p.state.Trend.Append(now, len(p.state.Values), p.safeCount())

	p.groups.SyncMembership(entry.ID, entry.GroupIDs)
	p.filters.SyncMembership(entry.ID, entry.FilterIDs, entry.Weak)

	if code, err := p.persistAll(ctx, entry.ID, OpUpdated); err != nil {
		return result.WrapErr[Password](code, err).WithBreadcrumb("store.Passwords.Update")
	}
	p.emit()
	return result.Ok(*entry)
}

// Delete removes a credential. Managed credentials are protected and
// cannot be deleted from this client. Deletions do not append a trend
// point; the series records only states the user actively shaped.
func (p *PasswordStore) Delete(ctx context.Context, id string) result.Result[struct{}] {
	index, failure := p.locate(id)
	if !failure.OK {
		return result.Propagate[struct{}](failure, "store.Passwords.Delete")
	}
	if p.state.Values[index].Managed {
		return result.Errf[struct{}](result.CodeProtectedEntity,
			"credential %s is managed and cannot be deleted", id)
	}

	p.dups.Remove(id)
	p.state.Values = append(p.state.Values[:index], p.state.Values[index+1:]...)
	p.groups.RemoveMember(id)
	p.filters.RemoveMember(id)

	p.state.Version++
	if err := p.state.Resign(); err != nil {
		return result.WrapErr[struct{}](result.CodeSignatureMakeup, err)
	}

	if code, err := p.persistAll(ctx, id, OpDeleted); err != nil {
		return result.WrapErr[struct{}](code, err).WithBreadcrumb("store.Passwords.Delete")
	}
	p.emit()
	return result.Ok(struct{}{})
}

// Reveal decrypts one credential's password. Managed credentials
// return their stored service reference as-is.
func (p *PasswordStore) Reveal(id string) result.Result[string] {
	index, failure := p.locate(id)
	if !failure.OK {
		return result.Propagate[string](failure, "store.Passwords.Reveal")
	}
	entry := &p.state.Values[index]
	if entry.Managed {
		return result.Ok(entry.Password)
	}
	plaintext, res := p.decryptField(entry.Password)
	if !res.OK {
		return result.Propagate[string](res, "store.Passwords.Reveal")
	}
	return result.Ok(plaintext)
}

// Passwords returns a copy of the credential list, ciphertext intact.
func (p *PasswordStore) Passwords() []Password {
	return append([]Password(nil), p.state.Values...)
}

// Get returns the credential with the given ID.
func (p *PasswordStore) Get(id string) (Password, bool) {
	for index := range p.state.Values {
		if p.state.Values[index].ID == id {
			return p.state.Values[index], true
		}
	}
	return Password{}, false
}

// Version returns the store's mutation version.
func (p *PasswordStore) Version() int64 { return p.state.Version }

// CurrentSignature returns the keyed signature over the current
// values.
func (p *PasswordStore) CurrentSignature() string { return p.state.CurrentSignature }

// Stale reports whether the server's acknowledged signature disagrees
// with ours.
func (p *PasswordStore) Stale(serverAcknowledged string) bool {
	return p.state.Stale(serverAcknowledged)
}

// Acknowledge records server acceptance of the current signature and
// persists it.
func (p *PasswordStore) Acknowledge(ctx context.Context) error {
	p.state.Acknowledge()
	return p.persist(ctx)
}

// Trend returns the risk/trend series.
func (p *PasswordStore) Trend() TrendSeries {
	return TrendSeries{
		Current: append([]TrendPoint(nil), p.state.Trend.Current...),
		Safe:    append([]TrendPoint(nil), p.state.Trend.Safe...),
	}
}

// IsDuplicate reports whether the credential shares its password with
// another entry.
func (p *PasswordStore) IsDuplicate(id string) bool { return p.dups.IsDuplicate(id) }

func (p *PasswordStore) validateInput(input PasswordInput) (bool, result.Result[Password]) {
	var failure result.Result[Password]
	invalid := false
	if input.Login == "" {
		failure = result.Err[Password](result.CodeInvalidRequest, "login is required")
		invalid = true
	}
	if input.Password == "" {
		if invalid {
			failure = failure.AppendMessage("password is required")
		} else {
			failure = result.Err[Password](result.CodeInvalidRequest, "password is required")
			invalid = true
		}
	}
	return invalid, failure
}

// locate finds the single entry with the given ID. Zero matches is a
// missing-entity failure; more than one is an integrity failure that
// should never happen with generated IDs.
func (p *PasswordStore) locate(id string) (int, result.Result[Password]) {
	found := -1
	for index := range p.state.Values {
		if p.state.Values[index].ID != id {
			continue
		}
		if found >= 0 {
			return 0, result.Errf[Password](result.CodeDuplicateID,
				"credential %s matches multiple entries", id)
		}
		found = index
	}
	if found < 0 {
		return 0, result.Errf[Password](result.CodeMissingEntity, "credential %s not found", id)
	}
	return found, result.Ok(Password{})
}

func (p *PasswordStore) encryptField(plaintext string) (string, result.Result[string]) {
	key := p.keys.ExportKey()
	if key == nil {
		return "", result.Err[string](result.CodeNoExportKey, "no export key available")
	}
	cipherText, err := vcrypto.EncryptSymmetric(key, []byte(plaintext))
	if err != nil {
		return "", result.WrapErr[string](result.CodeSymmetricEncryption, err)
	}
	return cipherText, result.Ok(cipherText)
}

func (p *PasswordStore) decryptField(cipherText string) (string, result.Result[string]) {
	key := p.keys.ExportKey()
	if key == nil {
		return "", result.Err[string](result.CodeNoExportKey, "no export key available")
	}
	plaintext, err := vcrypto.DecryptSymmetric(key, cipherText)
	if err != nil {
		return "", result.WrapErr[string](result.CodeSymmetricDecryption, err)
	}
	return string(plaintext), result.Ok("")
}

// buildQuestions encrypts a fresh set of security questions. Answer
// lengths are cached before encryption. Managed entries keep their
// sub-records in the service's form, untouched.
func (p *PasswordStore) buildQuestions(inputs []SecurityQuestionInput, managed bool) ([]SecurityQuestion, result.Result[string]) {
	if len(inputs) == 0 {
		return nil, result.Ok("")
	}
	questions := make([]SecurityQuestion, 0, len(inputs))
	for _, input := range inputs {
		question := SecurityQuestion{
			ID:           input.ID,
			Question:     input.Question,
			AnswerLength: len(input.Answer),
		}
		if question.ID == "" {
			question.ID = uuid.NewString()
		}
		if managed {
			question.Answer = input.Answer
		} else {
			cipherText, res := p.encryptField(input.Answer)
			if !res.OK {
				return nil, res
			}
			question.Answer = cipherText
		}
		questions = append(questions, question)
	}
	return questions, result.Ok("")
}

// mergeQuestions applies selective question updates: inputs with a
// known ID replace that question in place, the rest are appended.
func (p *PasswordStore) mergeQuestions(entry *Password, inputs []SecurityQuestionInput) result.Result[string] {
	for _, input := range inputs {
		replaced := false
		for index := range entry.SecurityQuestions {
			if input.ID == "" || entry.SecurityQuestions[index].ID != input.ID {
				continue
			}
			question := &entry.SecurityQuestions[index]
			if input.Question != "" {
				question.Question = input.Question
			}
			if input.Answer != "" {
				question.AnswerLength = len(input.Answer)
				if entry.Managed {
					question.Answer = input.Answer
				} else {
					cipherText, res := p.encryptField(input.Answer)
					if !res.OK {
						return res
					}
					question.Answer = cipherText
				}
			}
			replaced = true
			break
		}
		if !replaced {
			built, res := p.buildQuestions([]SecurityQuestionInput{input}, entry.Managed)
			if !res.OK {
				return res
			}
			entry.SecurityQuestions = append(entry.SecurityQuestions, built...)
		}
	}
	return result.Ok("")
}

// safeCount counts credentials with no known weakness: not weak, not
// embedding the login, not breached, not duplicated, not stale.
func (p *PasswordStore) safeCount() int {
	now := p.clock.Now()
	safe := 0
	for index := range p.state.Values {
		entry := &p.state.Values[index]
		if entry.Weak || entry.ContainsLogin || entry.Breached {
			continue
		}
		if p.dups.IsDuplicate(entry.ID) {
			continue
		}
		if now.Sub(entry.UpdatedAt) > staleAfter {
			continue
		}
		safe++
	}
	return safe
}

// persistAll writes every store touched by a mutation, in a fixed
// order: group index, filter index, then the primary state and its
// change entry. The writes are separate commits. A failure on the
// first write leaves everything unpersisted, which is a plain
// transaction failure; a failure after the first write has succeeded
// leaves the stores inconsistent on disk and is reported as such.
func (p *PasswordStore) persistAll(ctx context.Context, id string, op ChangeOp) (result.Code, error) {
	if err := p.groups.persist(ctx); err != nil {
		return result.CodeTransaction, err
	}
	if err := p.filters.persist(ctx); err != nil {
		return result.CodeStoreInconsistency, err
	}
	if err := p.persist(ctx); err != nil {
		return result.CodeStoreInconsistency, err
	}
	err := p.persister.AppendChange(ctx, ChangeEntry{
		VaultID: p.vaultID,
		Version: p.state.Version,
		Kind:    KindPassword,
		ID:      id,
		Op:      op,
	})
	if err != nil {
		return result.CodeStoreInconsistency, err
	}
	return 0, nil
}

func (p *PasswordStore) persist(ctx context.Context) error {
	p.state.DupKeys = p.dups.Snapshot()
	return p.persister.SaveState(ctx, KindPassword, p.state.Version, p.state)
}

func (p *PasswordStore) emit() {
	if p.notify != nil {
		p.notify(KindPassword)
	}
}

func (p *PasswordStore) idSet() map[string]struct{} {
	ids := make(map[string]struct{}, len(p.state.Values))
	for index := range p.state.Values {
		ids[p.state.Values[index].ID] = struct{}{}
	}
	return ids
}
