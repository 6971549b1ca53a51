package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	LibraryPath  string   `koanf:"library_path"`  // root of the music library on disk
	DatabasePath string   `koanf:"database_path"` // empty means XDG data dir
	Prefixes     []string `koanf:"prefixes"`      // leading articles stripped from artist names

	Art ArtConfig `koanf:"art"`
}

// ArtConfig holds album art derivative settings.
type ArtConfig struct {
	AlbumSize int `koanf:"album_size"` // resolution of the full album-page derivative
	ListSize  int `koanf:"list_size"`  // resolution of the browse-list thumbnail
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try config files in order of priority (last wins)
	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()

	cfg.LibraryPath = strings.TrimSuffix(expandPath(cfg.LibraryPath), "/")
	if cfg.DatabasePath != "" {
		cfg.DatabasePath = expandPath(cfg.DatabasePath)
	}

	return cfg, nil
}

// ApplyDefaults fills in defaults for any unset field.
func (c *Config) ApplyDefaults() {
	if len(c.Prefixes) == 0 {
		c.Prefixes = []string{"The"}
	}
	if c.Art.AlbumSize <= 0 {
		c.Art.AlbumSize = 300
	}
	if c.Art.ListSize <= 0 {
		c.Art.ListSize = 75
	}
}

// Validate checks that the library root is usable. This is the only
// configuration failure that aborts a scan outright.
func (c *Config) Validate() error {
	if c.LibraryPath == "" {
		return fmt.Errorf("library_path is not set")
	}
	info, err := os.Stat(c.LibraryPath)
	if err != nil {
		return fmt.Errorf("library_path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("library_path %s is not a directory", c.LibraryPath)
	}
	return nil
}

// ResolveDatabasePath returns the configured database path, or the
// XDG data dir default when unset.
func (c *Config) ResolveDatabasePath() (string, error) {
	if c.DatabasePath != "" {
		return c.DatabasePath, nil
	}
	return xdg.DataFile(filepath.Join("crate", "crate.db"))
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/crate/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "crate", "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
