// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Vaultic-LLC/Vaultic-sub003/lib/vcrypto"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vaultic.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func validConfig(t *testing.T) string {
	t.Helper()
	identity, err := vcrypto.GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity() error: %v", err)
	}
	defer identity.Close()

	return `service:
  bootstrap_url: https://sts.vaultic.test
  api_url: https://api.vaultic.test
  server_public_key: ` + identity.PublicKey + `
  requests_per_second: 10
storage:
  database_path: /tmp/vaultic.db
  schema_path: /tmp/schemas.jsonc
device:
  mac_address: "00:1b:44:11:3a:b7"
  device_name: workstation
  model: desktop
  version: "2.4.1"
`
}

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, validConfig(t))

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Service.BootstrapURL != "https://sts.vaultic.test" {
		t.Errorf("BootstrapURL = %q", cfg.Service.BootstrapURL)
	}
	if cfg.Service.RequestsPerSecond != 10 {
		t.Errorf("RequestsPerSecond = %v, want 10", cfg.Service.RequestsPerSecond)
	}
	if cfg.Device.DeviceName != "workstation" {
		t.Errorf("DeviceName = %q", cfg.Device.DeviceName)
	}
}

func TestLoad_MissingFields(t *testing.T) {
	tests := []struct {
		name    string
		drop    string
		wantErr string
	}{
		{"no bootstrap url", "bootstrap_url", "bootstrap_url is required"},
		{"no api url", "api_url", "api_url is required"},
		{"no database path", "database_path", "database_path is required"},
		{"no schema path", "schema_path", "schema_path is required"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			lines := strings.Split(validConfig(t), "\n")
			kept := lines[:0]
			for _, line := range lines {
				if !strings.Contains(line, test.drop) {
					kept = append(kept, line)
				}
			}
			path := writeConfig(t, strings.Join(kept, "\n"))

			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, test.wantErr)
			}
		})
	}
}

func TestLoad_BadServerKey(t *testing.T) {
	content := strings.Replace(validConfig(t), "server_public_key: age1", "server_public_key: bogus1", 1)
	path := writeConfig(t, content)

	if _, err := Load(path); err == nil {
		t.Fatal("Load() with malformed server key succeeded")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() of missing file succeeded")
	}
}
