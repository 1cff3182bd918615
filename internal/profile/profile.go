// Package profile locates the on-disk state of one signed-in account.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/matheus3301/chatcore/internal/config"
)

const DefaultName = "main"

var nameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName checks that name is usable as a directory component.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid profile name %q: must match ^[a-z0-9_-]{1,64}$", name)
	}
	return nil
}

// Resolve picks the active profile: flag, then config default_profile, then "main".
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	cfg, err := config.Load(ConfigPath())
	if err == nil && cfg.DefaultProfile != "" {
		return cfg.DefaultProfile
	}
	return DefaultName
}

// BaseDir returns ~/.chatcore, or $CHATCORE_HOME when set.
func BaseDir() string {
	if dir := os.Getenv("CHATCORE_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chatcore")
}

func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// Dir returns the profile-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "profiles", name)
}

func SocketPath(name string) string {
	return filepath.Join(Dir(name), "daemon.sock")
}

func DBPath(name string) string {
	return filepath.Join(Dir(name), "chatcore.db")
}

func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

func LogPath(name string) string {
	return filepath.Join(LogDir(name), "chatd.log")
}

// BlobDir holds uploaded images for the local blob backend.
func BlobDir(name string) string {
	return filepath.Join(Dir(name), "blobs")
}

// EnsureDir creates the profile directory tree.
func EnsureDir(name string) error {
	for _, d := range []string{Dir(name), LogDir(name), BlobDir(name)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
