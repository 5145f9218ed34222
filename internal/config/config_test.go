package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Sync.IntervalSeconds)
	assert.Equal(t, 50, cfg.UI.PageSize)
	assert.Zero(t, cfg.Sync.InitialSyncLimit, "cold sync defaults to a complete mirror, not a capped window")
	assert.Empty(t, cfg.Accounts)
}

func TestLoadReadsAccounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{
		"accounts": [
			{
				"name": "personal",
				"email": "me@example.com",
				"imap_host": "imap.example.com",
				"imap_port": 993,
				"imap_security": "SSL",
				"imap_username": "me@example.com"
			}
		],
		"sync": {"interval_seconds": 45, "initial_sync_limit": 500}
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Accounts, 1)
	assert.Equal(t, "personal", cfg.Accounts[0].Name)
	assert.Equal(t, 993, cfg.Accounts[0].IMAPPort)
	assert.Equal(t, 45, cfg.Sync.IntervalSeconds)
	assert.Equal(t, 500, cfg.Sync.InitialSyncLimit, "a nonzero cap must be an explicit opt-in, never assumed")
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := defaultConfig()
	cfg.Accounts = []AccountConfig{{
		Name:         "work",
		Email:        "work@example.com",
		IMAPHost:     "imap.work.com",
		IMAPPort:     993,
		IMAPSecurity: "SSL",
		IMAPUsername: "work@example.com",
	}}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded.Accounts, 1)
	assert.Equal(t, "work", loaded.Accounts[0].Name)
}

func TestValidate(t *testing.T) {
	validAccount := AccountConfig{
		Name:         "personal",
		IMAPHost:     "imap.example.com",
		IMAPPort:     993,
		IMAPSecurity: "SSL",
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config passes",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "no accounts",
			mutate: func(c *Config) {
				c.Accounts = nil
			},
			wantErr: true,
		},
		{
			name: "default_account out of range",
			mutate: func(c *Config) {
				c.DefaultAccount = 5
			},
			wantErr: true,
		},
		{
			name: "missing account name",
			mutate: func(c *Config) {
				c.Accounts[0].Name = ""
			},
			wantErr: true,
		},
		{
			name: "missing imap host",
			mutate: func(c *Config) {
				c.Accounts[0].IMAPHost = ""
			},
			wantErr: true,
		},
		{
			name: "invalid imap port",
			mutate: func(c *Config) {
				c.Accounts[0].IMAPPort = 70000
			},
			wantErr: true,
		},
		{
			name: "invalid imap security",
			mutate: func(c *Config) {
				c.Accounts[0].IMAPSecurity = "Plaintext"
			},
			wantErr: true,
		},
		{
			name: "smtp host without valid port",
			mutate: func(c *Config) {
				c.Accounts[0].SMTPHost = "smtp.example.com"
				c.Accounts[0].SMTPPort = 0
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Accounts: []AccountConfig{validAccount}}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAccountByName(t *testing.T) {
	cfg := &Config{Accounts: []AccountConfig{{Name: "personal"}, {Name: "work"}}}

	found, err := cfg.AccountByName("work")
	require.NoError(t, err)
	assert.Equal(t, "work", found.Name)

	_, err = cfg.AccountByName("missing")
	assert.Error(t, err)
}

func TestModelAccounts(t *testing.T) {
	cfg := &Config{Accounts: []AccountConfig{{
		Name:         "personal",
		Email:        "me@example.com",
		IMAPSecurity: "StartTLS",
	}}}

	accounts := cfg.ModelAccounts()
	require.Len(t, accounts, 1)
	assert.Equal(t, "me@example.com", accounts[0].Email)
	assert.EqualValues(t, "StartTLS", accounts[0].IMAPSecurity)
}
