package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultLinearEndpoint = "https://api.linear.app/graphql"

	// TokenEnv supplies the Linear token when none is saved in the config file.
	TokenEnv = "LINEAR_API_KEY"
	// AllowedDomainEnv adds an email domain to the login allow-list.
	AllowedDomainEnv = "CYCLELOG_ALLOWED_DOMAIN"
	// HomeEnv overrides the ~/.cyclelog directory.
	HomeEnv = "CYCLELOG_HOME"

	PolicyReject   = "reject"
	PolicyAutoStop = "auto_stop"

	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
)

type Config struct {
	LinearAPIToken      string      `toml:"linear_api_token"`
	LinearEndpoint      string      `toml:"linear_endpoint"`
	AllowedEmailDomains []string    `toml:"allowed_email_domains"`
	StartPolicy         string      `toml:"start_policy"`
	Store               StoreConfig `toml:"store"`
	OAuth               OAuthConfig `toml:"oauth"`
}

type StoreConfig struct {
	Backend          string `toml:"backend"`
	Path             string `toml:"path,omitempty"`
	FirestoreProject string `toml:"firestore_project,omitempty"`
}

type OAuthConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

func DefaultConfig() *Config {
	return &Config{
		LinearEndpoint:      DefaultLinearEndpoint,
		AllowedEmailDomains: []string{},
		StartPolicy:         PolicyReject,
		Store: StoreConfig{
			Backend: BackendSQLite,
		},
	}
}

func Dir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".cyclelog"), nil
}

func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

func SessionPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "session.toml"), nil
}

func LogPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cyclelog.log"), nil
}

// DatabasePath returns the sqlite file used by the local store, honoring
// store.path from the config when set.
func (c *Config) DatabasePath() (string, error) {
	if c.Store.Path != "" {
		return expandPath(c.Store.Path), nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "db", "cyclelog.sqlite"), nil
}

func EnsureDirectories() error {
	dir, err := Dir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.MkdirAll(filepath.Join(dir, "db"), 0755)
}

// LoadFile reads the config at path, writing defaults there first if the
// file does not exist yet.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
		if err := SaveFile(path, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

func SaveFile(path string, cfg *Config) error {
	// The file holds an API token.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func (c *Config) Validate() error {
	switch c.StartPolicy {
	case "", PolicyReject, PolicyAutoStop:
	default:
		return fmt.Errorf("unknown start_policy %q (want %q or %q)", c.StartPolicy, PolicyReject, PolicyAutoStop)
	}
	switch c.Store.Backend {
	case "", BackendSQLite:
	case BackendFirestore:
		if c.Store.FirestoreProject == "" {
			return fmt.Errorf("store.firestore_project is required for the firestore backend")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	return nil
}

// Token returns the Linear API token: the saved one first, then the
// environment default. Empty means no credential is configured.
func (c *Config) Token() string {
	if tok := strings.TrimSpace(c.LinearAPIToken); tok != "" {
		return tok
	}
	return strings.TrimSpace(os.Getenv(TokenEnv))
}

// AllowList returns the configured email domains plus the environment one.
func (c *Config) AllowList() []string {
	entries := append([]string{}, c.AllowedEmailDomains...)
	if d := strings.TrimSpace(os.Getenv(AllowedDomainEnv)); d != "" {
		entries = append(entries, d)
	}
	return entries
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
