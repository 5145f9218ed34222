// Package config loads the application configuration from
// <config_root>/<app>/config.json.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/inboxd/mailsync/internal/model"
)

const appName = "mailsync"

// AccountConfig mirrors a single entry of the config file's accounts[]
// array. Passwords never appear here; they resolve through the credential
// vault by account key and role.
type AccountConfig struct {
	Name         string `mapstructure:"name"`
	Email        string `mapstructure:"email"`
	IMAPHost     string `mapstructure:"imap_host"`
	IMAPPort     int    `mapstructure:"imap_port"`
	IMAPSecurity string `mapstructure:"imap_security"`
	IMAPUsername string `mapstructure:"imap_username"`
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPSecurity string `mapstructure:"smtp_security"`
	SMTPUsername string `mapstructure:"smtp_username"`
}

// SyncConfig holds sync-engine tunables.
type SyncConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`

	// InitialSyncLimit caps how many of a folder's most recent messages a
	// cold sync fetches. Zero (the default) means no cap: fetch_initial
	// mirrors the entire remote folder. A nonzero value is an explicit,
	// user-visible opt-in to a truncated mailbox.
	InitialSyncLimit int `mapstructure:"initial_sync_limit"`
}

// UIConfig holds UI-facing defaults; the UI process itself is out of scope.
// The core loads and saves these values but does not read them itself:
// api.Page takes its page size from the caller.
type UIConfig struct {
	PageSize               int `mapstructure:"page_size"`
	RefreshIntervalSeconds int `mapstructure:"refresh_interval_seconds"`
}

// Config is the top-level shape of config.json.
type Config struct {
	Accounts       []AccountConfig `mapstructure:"accounts"`
	DefaultAccount int             `mapstructure:"default_account"`
	Sync           SyncConfig      `mapstructure:"sync"`
	UI             UIConfig        `mapstructure:"ui"`
}

// DefaultConfigPath returns <config_root>/mailsync/config.json, honoring
// XDG_CONFIG_HOME when set.
func DefaultConfigPath() string {
	root := os.Getenv("XDG_CONFIG_HOME")
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".", appName, "config.json")
		}
		root = filepath.Join(home, ".config")
	}
	return filepath.Join(root, appName, "config.json")
}

func defaultConfig() *Config {
	return &Config{
		Sync: SyncConfig{IntervalSeconds: 30},
		UI: UIConfig{
			PageSize:               50,
			RefreshIntervalSeconds: 2,
		},
	}
}

// Load reads configuration from path using viper, configured for JSON. A
// missing file yields the defaults rather than an error, since a first run
// has no config yet.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.SetDefault("sync.interval_seconds", 30)
	v.SetDefault("ui.page_size", 50)
	v.SetDefault("ui.refresh_interval_seconds", 2)
	v.SetDefault("default_account", 0)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes cfg to path as JSON, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.Set("accounts", cfg.Accounts)
	v.Set("default_account", cfg.DefaultAccount)
	v.Set("sync", cfg.Sync)
	v.Set("ui", cfg.UI)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Validate checks the loaded configuration for the invariants the rest of
// the core relies on: at least one account, valid ports, a recognized
// security mode.
func (c *Config) Validate() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account must be configured")
	}
	if c.DefaultAccount < 0 || c.DefaultAccount >= len(c.Accounts) {
		return fmt.Errorf("default_account %d out of range", c.DefaultAccount)
	}
	for i := range c.Accounts {
		acc := &c.Accounts[i]
		if acc.Name == "" {
			return fmt.Errorf("account %d: name is required", i)
		}
		if acc.IMAPHost == "" {
			return fmt.Errorf("account %s: imap_host is required", acc.Name)
		}
		if acc.IMAPPort < 1 || acc.IMAPPort > 65535 {
			return fmt.Errorf("account %s: invalid imap_port", acc.Name)
		}
		switch model.Security(acc.IMAPSecurity) {
		case model.SecurityImplicitTLS, model.SecurityStartTLS, model.SecurityNone:
		default:
			return fmt.Errorf("account %s: invalid imap_security %q", acc.Name, acc.IMAPSecurity)
		}
		if acc.SMTPHost != "" {
			if acc.SMTPPort < 1 || acc.SMTPPort > 65535 {
				return fmt.Errorf("account %s: invalid smtp_port", acc.Name)
			}
		}
	}
	return nil
}

// ToModel converts a config account entry into the model.Account the rest
// of the core operates on.
func (ac *AccountConfig) ToModel() model.Account {
	return model.Account{
		Name:         ac.Name,
		Email:        ac.Email,
		IMAPHost:     ac.IMAPHost,
		IMAPPort:     ac.IMAPPort,
		IMAPSecurity: model.Security(ac.IMAPSecurity),
		IMAPUsername: ac.IMAPUsername,
		SMTPHost:     ac.SMTPHost,
		SMTPPort:     ac.SMTPPort,
		SMTPSecurity: model.Security(ac.SMTPSecurity),
		SMTPUsername: ac.SMTPUsername,
	}
}

// ModelAccounts returns all configured accounts as model.Account values.
func (c *Config) ModelAccounts() []model.Account {
	out := make([]model.Account, len(c.Accounts))
	for i := range c.Accounts {
		out[i] = c.Accounts[i].ToModel()
	}
	return out
}

// AccountByName finds a configured account by name.
func (c *Config) AccountByName(name string) (*AccountConfig, error) {
	for i := range c.Accounts {
		if c.Accounts[i].Name == name {
			return &c.Accounts[i], nil
		}
	}
	return nil, fmt.Errorf("account not found: %s", name)
}
