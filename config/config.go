package config

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
)

// Config is the flat per-user settings document. Every field has a safe
// default, so a missing or corrupt file never blocks operation.
type Config struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	User        string `toml:"user"`
	Password    string `toml:"password"`
	DownloadDir string `toml:"download_dir"`
	ExtractDir  string `toml:"extract_dir"`
	Remember    bool   `toml:"remember"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	downloads := "."
	if home, err := homedir.Dir(); err == nil {
		downloads = filepath.Join(home, "Downloads")
	}
	return &Config{
		Port:        21,
		User:        "anonymous",
		DownloadDir: downloads,
		ExtractDir:  downloads,
		Remember:    true,
	}
}

// DefaultPath is the fixed per-user config location.
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".rarfetch", "config.toml"), nil
}

// Load reads the config at path. A missing file yields the defaults with a
// nil error. A corrupt file also yields the defaults, together with the
// parse error so the caller can log it and carry on.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return Default(), err
	}
	if cfg.Port == 0 {
		cfg.Port = 21
	}
	return cfg, nil
}

// Save writes the config to path, creating parent directories as needed.
// The file is written 0600 because it may hold a password.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
