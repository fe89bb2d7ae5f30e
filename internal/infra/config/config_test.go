package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Admin:  AdminConfig{Token: "test-admin-token"},
		Player: PlayerConfig{Token: "test-player-token"},
		Settings: []SettingConfig{
			{Key: "free_mode", Value: "true", Kind: "boolean"},
			{Key: "idle_video_url", Value: "http://x/idle.mp4", Kind: "string"},
		},
		Journal: JournalConfig{Driver: DriverSQLite, DSN: "requestbox.db", BufferSize: 16},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing admin token",
			mutate:  func(c *Config) { c.Admin.Token = "" },
			wantErr: true,
			errMsg:  "Token",
		},
		{
			name:    "missing player token",
			mutate:  func(c *Config) { c.Player.Token = "" },
			wantErr: true,
			errMsg:  "Token",
		},
		{
			name:    "admin and player share a token",
			mutate:  func(c *Config) { c.Player.Token = c.Admin.Token },
			wantErr: true,
			errMsg:  "must differ",
		},
		{
			name:    "unknown setting kind",
			mutate:  func(c *Config) { c.Settings[0].Kind = "bool" },
			wantErr: true,
			errMsg:  "Kind",
		},
		{
			name:    "setting without key",
			mutate:  func(c *Config) { c.Settings[0].Key = "" },
			wantErr: true,
			errMsg:  "Key",
		},
		{
			name: "duplicate setting key",
			mutate: func(c *Config) {
				c.Settings = append(c.Settings, SettingConfig{Key: "free_mode", Value: "false", Kind: "boolean"})
			},
			wantErr: true,
			errMsg:  "duplicate settings key",
		},
		{
			name:    "unknown journal driver",
			mutate:  func(c *Config) { c.Journal.Driver = "mysql" },
			wantErr: true,
			errMsg:  "Driver",
		},
		{
			name:    "journal without dsn",
			mutate:  func(c *Config) { c.Journal.DSN = "" },
			wantErr: true,
			errMsg:  "journal.dsn",
		},
		{
			name: "no journal needs no dsn",
			mutate: func(c *Config) {
				c.Journal.Driver = DriverNone
				c.Journal.DSN = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
admin:
  token: admin-secret
player:
  token: player-secret
settings:
  - key: free_mode
    value: "false"
    kind: boolean
filters:
  requester_pending_filter:
    enabled: true
    settings:
      max_pending: 2
messages:
  payment_denied: "Payment was declined."
  default_error: "Something went wrong."
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, DriverSQLite, cfg.Journal.Driver)
	assert.Equal(t, "requestbox.db", cfg.Journal.DSN)
	assert.Equal(t, 256, cfg.Journal.BufferSize)
	require.Len(t, cfg.Settings, 1)
	assert.Equal(t, "free_mode", cfg.Settings[0].Key)

	assert.True(t, cfg.IsFilterEnabled("requester_pending_filter"))
	assert.False(t, cfg.IsFilterEnabled("title_length_filter"))
	assert.Equal(t, 2, cfg.GetFilterSettings("requester_pending_filter")["max_pending"])

	assert.Equal(t, "Payment was declined.", cfg.GetMessage("payment_denied"))
	assert.Equal(t, "Something went wrong.", cfg.GetMessage("no_such_code"))
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
admin:
  token: from-file
player:
  token: player-from-file
journal:
  driver: postgres
  dsn: postgres://file/requestbox
`)

	t.Setenv("ADMIN_TOKEN", "from-env")
	t.Setenv("PLAYER_TOKEN", "player-from-env")
	t.Setenv("REQUESTBOX_JOURNAL_DSN", "postgres://env/requestbox")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Admin.Token)
	assert.Equal(t, "player-from-env", cfg.Player.Token)
	assert.Equal(t, DriverPostgres, cfg.Journal.Driver)
	assert.Equal(t, "postgres://env/requestbox", cfg.Journal.DSN)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")

	_, err = Load(writeConfig(t, "admin: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")

	_, err = Load(writeConfig(t, "admin:\n  token: a\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}
