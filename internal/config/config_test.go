package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.DefaultProfile = "work"
	cfg.Presence.HeartbeatInterval = Duration{2 * time.Second}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
	if loaded.Presence.HeartbeatInterval.Duration != 2*time.Second {
		t.Errorf("HeartbeatInterval = %s, want 2s", loaded.Presence.HeartbeatInterval.Duration)
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[chat_list]\nrefresh_interval = \"7s\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ChatList.RefreshInterval.Duration != 7*time.Second {
		t.Errorf("RefreshInterval = %s, want 7s", cfg.ChatList.RefreshInterval.Duration)
	}
	if cfg.Presence.StaleAfter.Duration != 10*time.Second {
		t.Errorf("StaleAfter = %s, want default 10s", cfg.Presence.StaleAfter.Duration)
	}
	if cfg.ChatList.PlaceholderName != "placeholder" {
		t.Errorf("PlaceholderName = %q, want placeholder", cfg.ChatList.PlaceholderName)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load("/nonexistent/config.toml"); err == nil {
		t.Error("Load() expected error for missing file")
	}
	cfg, err := LoadOrDefault("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Store.Backend != "sqlite" {
		t.Errorf("Store.Backend = %q, want sqlite", cfg.Store.Backend)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero heartbeat", func(c *Config) { c.Presence.HeartbeatInterval = Duration{} }, true},
		{"stale not above heartbeat", func(c *Config) { c.Presence.StaleAfter = Duration{3 * time.Second} }, true},
		{"zero refresh", func(c *Config) { c.ChatList.RefreshInterval = Duration{} }, true},
		{"mongo without uri", func(c *Config) { c.Store.Backend = "mongo" }, true},
		{"s3 without bucket", func(c *Config) { c.Blob.Backend = "s3" }, true},
		{"unknown push", func(c *Config) { c.Push.Backend = "sms" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSavePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
