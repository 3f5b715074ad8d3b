// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/Vaultic-LLC/Vaultic-sub003/lib/config"
	"github.com/Vaultic-LLC/Vaultic-sub003/lib/fieldtree"
	"github.com/Vaultic-LLC/Vaultic-sub003/lib/secret"
	"github.com/Vaultic-LLC/Vaultic-sub003/lib/vcrypto"
	"github.com/Vaultic-LLC/Vaultic-sub003/store"
	"github.com/Vaultic-LLC/Vaultic-sub003/syncer"
	"github.com/Vaultic-LLC/Vaultic-sub003/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath   = pflag.String("config", "/etc/vaulticd/config.yaml", "path to the daemon configuration file")
		user         = pflag.String("user", "", "account identifier to authenticate as")
		vaultID      = pflag.String("vault", "", "vault to synchronize (defaults to the server-assigned vault)")
		syncInterval = pflag.Duration("sync-interval", 5*time.Minute, "time between synchronization runs")
		forcePush    = pflag.Bool("force-push", false, "push local changes even over unmerged remote changes (last write wins)")
		logLevel     = pflag.String("log-level", "info", "log level: debug, info, warn, or error")
	)
	pflag.Parse()

	logger, err := newLogger(*logLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if *user == "" {
		return fmt.Errorf("--user is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	password, err := promptPassword()
	if err != nil {
		return err
	}
	defer password.Close()

	channelContext, err := transport.NewChannelContext(cfg.Service.ServerPublicKey)
	if err != nil {
		return err
	}
	defer channelContext.Close()

	persister, err := store.OpenPersister(store.PersisterConfig{
		Path:   cfg.Storage.DatabasePath,
		Keys:   channelContext,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer persister.Close()

	sink := store.NewLogSink(persister)

	bootstrap, err := transport.NewChannel(transport.ChannelConfig{
		BaseURL:           cfg.Service.BootstrapURL,
		Codec:             transport.NewBootstrapCodec(channelContext, cfg.Device),
		Sink:              sink,
		RequestsPerSecond: cfg.Service.RequestsPerSecond,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	assignedVault, err := login(ctx, bootstrap, channelContext, *user, password)
	if err != nil {
		return err
	}
	if *vaultID == "" {
		*vaultID = assignedVault
	}
	if *vaultID == "" {
		return fmt.Errorf("no vault assigned by the server and none given with --vault")
	}
	logger.Info("authenticated", "user", *user, "vault", *vaultID)

	// Store state is encrypted under the export key, so the engine can
	// only open after login has derived it.
	engine, err := store.OpenEngine(ctx, store.EngineConfig{
		Persister: persister,
		Keys:      channelContext,
		VaultID:   *vaultID,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	api, err := transport.NewChannel(transport.ChannelConfig{
		BaseURL:           cfg.Service.APIURL,
		Codec:             transport.NewSessionCodec(channelContext),
		Sink:              sink,
		RequestsPerSecond: cfg.Service.RequestsPerSecond,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	var syncSchema *fieldtree.Schema
	if cfg.Storage.SchemaPath != "" {
		schemas, err := fieldtree.Load(cfg.Storage.SchemaPath)
		if err != nil {
			return err
		}
		syncSchema = schemas["sync"]
	}

	coordinator, err := syncer.New(syncer.Config{
		Channel:   api,
		Engine:    engine,
		Persister: persister,
		VaultID:   *vaultID,
		Schema:    syncSchema,
		Keys:      channelContext,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	return runSyncLoop(ctx, coordinator, *syncInterval, *forcePush, logger)
}

// login authenticates over the bootstrap channel and installs the
// session and export keys on the channel context. The response is
// trusted only after the codec's salt-echo check has passed.
func login(ctx context.Context, bootstrap *transport.Channel, channelContext *transport.ChannelContext, user string, password *secret.Buffer) (string, error) {
	res := bootstrap.Post(ctx, "auth/login", map[string]any{"User": user})
	if !res.OK {
		return "", fmt.Errorf("login failed: %s", res.String())
	}

	kdfSalt, err := base64Field(res.Value, "KdfSalt")
	if err != nil {
		return "", err
	}
	rawSession, err := base64Field(res.Value, "SessionKey")
	if err != nil {
		return "", err
	}

	sessionKey, err := secret.NewFromBytes(rawSession)
	if err != nil {
		return "", err
	}
	channelContext.SetSession(sessionKey)

	master, err := vcrypto.DeriveMasterKey(password, kdfSalt)
	if err != nil {
		return "", err
	}
	defer master.Close()
	exportKey, err := vcrypto.DeriveExportKey(master, kdfSalt)
	if err != nil {
		return "", err
	}
	channelContext.SetExportKey(exportKey)

	vault, _ := res.Value["VaultID"].(string)
	return vault, nil
}

func runSyncLoop(ctx context.Context, coordinator *syncer.Coordinator, interval time.Duration, forcePush bool, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res := coordinator.SyncVaults(ctx, syncer.Options{ForcePush: forcePush})
		switch {
		case res.OK:
			logger.Debug("sync complete", "pushed", res.Value.Pushed, "cursor", res.Value.Cursor)
		case res.InvalidSession:
			return fmt.Errorf("session expired; restart vaulticd to re-authenticate")
		default:
			logger.Error("sync failed", "code", int(res.Code), "message", res.Message)
		}

		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

func promptPassword() (*secret.Buffer, error) {
	fmt.Fprint(os.Stderr, "Master password: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading master password: %w", err)
	}
	return secret.NewFromBytes(raw)
}

func base64Field(body map[string]any, field string) ([]byte, error) {
	encoded, _ := body[field].(string)
	if encoded == "" {
		return nil, fmt.Errorf("login response missing %s", field)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("login response %s: %w", field, err)
	}
	return raw, nil
}

func newLogger(level string) (*slog.Logger, error) {
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parsed})), nil
}
