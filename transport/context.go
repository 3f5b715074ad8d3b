// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

// Package transport implements the two encrypted HTTP channels: an
// unauthenticated bootstrap channel that establishes sessions, and a
// session-authenticated API channel. Both only ever send and receive
// the wire envelope; plaintext request bodies never leave the
// process.
package transport

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/Vaultic-LLC/Vaultic-sub003/lib/secret"
	"github.com/Vaultic-LLC/Vaultic-sub003/lib/vcrypto"
)

// ChannelContext holds the key material shared by both channels: the
// server's long-lived public key, a lazily generated per-process
// ephemeral identity and salt, and the session and export keys that
// appear after authentication. It is constructed once at startup and
// handed to every component that needs it; nothing reads it through
// package globals.
//
// Session and export key accessors are safe for concurrent use. The
// ephemeral identity and salt are generated exactly once, on first
// use, so in-flight requests never observe a rotation.
type ChannelContext struct {
	serverPublicKey string

	ephemeralOnce sync.Once
	ephemeral     *vcrypto.Identity
	salt          string
	ephemeralErr  error

	mu          sync.Mutex
	sessionKey  *secret.Buffer
	sessionHash string
	exportKey   *secret.Buffer
}

// NewChannelContext validates the server public key and returns a
// context with no session.
func NewChannelContext(serverPublicKey string) (*ChannelContext, error) {
	if err := vcrypto.ValidatePublicKey(serverPublicKey); err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	return &ChannelContext{serverPublicKey: serverPublicKey}, nil
}

// ServerPublicKey returns the service's long-lived public key.
func (c *ChannelContext) ServerPublicKey() string { return c.serverPublicKey }

// Ephemeral returns the per-process response identity and salt,
// generating both on first call.
func (c *ChannelContext) Ephemeral() (*vcrypto.Identity, string, error) {
	c.ephemeralOnce.Do(func() {
		identity, err := vcrypto.GenerateIdentity()
		if err != nil {
			c.ephemeralErr = err
			return
		}
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			identity.Close()
			c.ephemeralErr = fmt.Errorf("transport: generating salt: %w", err)
			return
		}
		c.ephemeral = identity
		c.salt = base64.StdEncoding.EncodeToString(raw)
	})
	return c.ephemeral, c.salt, c.ephemeralErr
}

// SetSession installs the symmetric session key. The context takes
// ownership of the buffer; any previous session key is destroyed. The
// session hash sent on authenticated requests is derived here, once.
func (c *ChannelContext) SetSession(key *secret.Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionKey != nil {
		c.sessionKey.Close()
	}
	c.sessionKey = key
	c.sessionHash = vcrypto.TokenHash(key)
}

// ClearSession destroys the session key, returning the channel to its
// unauthenticated state. The export key is cleared with it.
func (c *ChannelContext) ClearSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionKey != nil {
		c.sessionKey.Close()
		c.sessionKey = nil
	}
	c.sessionHash = ""
	if c.exportKey != nil {
		c.exportKey.Close()
		c.exportKey = nil
	}
}

// Session returns the session key and its hash. The boolean is false
// when no session is active.
func (c *ChannelContext) Session() (*secret.Buffer, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionKey == nil {
		return nil, "", false
	}
	return c.sessionKey, c.sessionHash, true
}

// SetExportKey installs the field-encryption key derived from the
// user's master key material. The context takes ownership.
func (c *ChannelContext) SetExportKey(key *secret.Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.exportKey != nil {
		c.exportKey.Close()
	}
	c.exportKey = key
}

// ExportKey returns the active export key, or nil before login. This
// satisfies the key-provider interfaces of the field encryptor and
// the store engine.
func (c *ChannelContext) ExportKey() *secret.Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exportKey
}

// Close destroys all key material.
func (c *ChannelContext) Close() error {
	c.ClearSession()
	if c.ephemeral != nil {
		return c.ephemeral.Close()
	}
	return nil
}
