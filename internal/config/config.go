package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that reads and writes as "3s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config represents the global ~/.chatcore/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`

	Account  Account  `toml:"account"`
	Store    Store    `toml:"store"`
	Presence Presence `toml:"presence"`
	ChatList ChatList `toml:"chat_list"`
	Blob     Blob     `toml:"blob"`
	Push     Push     `toml:"push"`
	Metrics  Metrics  `toml:"metrics"`
	Log      Log      `toml:"log"`
}

// Account identifies the signed-in user. Token wins over UserID when set.
type Account struct {
	UserID      string `toml:"user_id"`
	Token       string `toml:"token"`
	TokenSecret string `toml:"token_secret"`
}

type Store struct {
	Backend       string `toml:"backend"` // sqlite | mongo
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

type Presence struct {
	HeartbeatInterval Duration `toml:"heartbeat_interval"`
	StaleAfter        Duration `toml:"stale_after"`
}

type ChatList struct {
	RefreshInterval Duration `toml:"refresh_interval"`
	Concurrency     int      `toml:"concurrency"`
	PlaceholderName string   `toml:"placeholder_name"`
}

type Blob struct {
	Backend     string `toml:"backend"` // local | s3
	BaseURL     string `toml:"base_url"`
	S3Bucket    string `toml:"s3_bucket"`
	S3Region    string `toml:"s3_region"`
	S3Endpoint  string `toml:"s3_endpoint"`
	S3AccessKey string `toml:"s3_access_key"`
	S3SecretKey string `toml:"s3_secret_key"`
}

type Push struct {
	Backend         string `toml:"backend"` // none | webpush | nats
	VAPIDPublicKey  string `toml:"vapid_public_key"`
	VAPIDPrivateKey string `toml:"vapid_private_key"`
	Subscriber      string `toml:"subscriber"`
	NATSURL         string `toml:"nats_url"`
	NATSSubject     string `toml:"nats_subject"`
}

type Metrics struct {
	Addr string `toml:"addr"`
}

type Log struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Store: Store{Backend: "sqlite", MongoDatabase: "chatcore"},
		Presence: Presence{
			HeartbeatInterval: Duration{3 * time.Second},
			StaleAfter:        Duration{10 * time.Second},
		},
		ChatList: ChatList{
			RefreshInterval: Duration{5 * time.Second},
			Concurrency:     8,
			PlaceholderName: "placeholder",
		},
		Blob: Blob{Backend: "local"},
		Push: Push{Backend: "none", NATSSubject: "chatcore.push"},
		Log:  Log{Level: "info"},
	}
}

// Load reads config from the given path on top of Default. Returns error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load that treats a missing file as Default.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate checks the timing and backend settings.
func (c *Config) Validate() error {
	if c.Presence.HeartbeatInterval.Duration <= 0 {
		return fmt.Errorf("presence.heartbeat_interval must be positive")
	}
	if c.Presence.StaleAfter.Duration <= c.Presence.HeartbeatInterval.Duration {
		return fmt.Errorf("presence.stale_after (%s) must exceed heartbeat_interval (%s)",
			c.Presence.StaleAfter.Duration, c.Presence.HeartbeatInterval.Duration)
	}
	if c.ChatList.RefreshInterval.Duration <= 0 {
		return fmt.Errorf("chat_list.refresh_interval must be positive")
	}
	switch c.Store.Backend {
	case "sqlite":
	case "mongo":
		if c.Store.MongoURI == "" {
			return fmt.Errorf("store.mongo_uri is required for the mongo backend")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	switch c.Blob.Backend {
	case "local":
	case "s3":
		if c.Blob.S3Bucket == "" {
			return fmt.Errorf("blob.s3_bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown blob.backend %q", c.Blob.Backend)
	}
	switch c.Push.Backend {
	case "none", "webpush", "nats":
	default:
		return fmt.Errorf("unknown push.backend %q", c.Push.Backend)
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
