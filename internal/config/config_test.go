package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
timezone: Europe/London
calendar:
  timeout: 45s
  browser: true
schedule:
  weekly: "30 6 * * 1"
recurring:
  trading_day_aware: false
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Europe/London", cfg.Timezone)
	assert.Equal(t, "America/New_York", cfg.SourceTimezone)
	assert.Equal(t, 45*time.Second, cfg.Calendar.Timeout)
	assert.True(t, cfg.Calendar.Browser)
	assert.Equal(t, defaultURL, cfg.Calendar.URL)
	assert.Equal(t, "30 6 * * 1", cfg.Schedule.Weekly)
	assert.Equal(t, "0 7 * * *", cfg.Schedule.Daily)
	assert.Equal(t, 7, cfg.Schedule.WeeklyDays)
	assert.True(t, cfg.Recurring.Enabled)
	assert.False(t, cfg.Recurring.TradingDayAware)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveNeverWritesToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Discord.Token = "secret"
	cfg.Discord.ChannelID = "123"

	require.NoError(t, cfg.Save(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.Equal(t, "secret", cfg.Discord.Token)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "123", loaded.Discord.ChannelID)
	assert.Equal(t, 2*time.Minute, loaded.Schedule.JobTimeout)
}

func TestNormalize(t *testing.T) {
	var cfg Config
	cfg.LogLevel = " DEBUG "
	cfg.Normalize()

	assert.Equal(t, defaultListen, cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 1, cfg.Schedule.DailyDays)
	assert.Equal(t, defaultAPIBase, cfg.Discord.APIBase)
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("CHANNEL_ID=from-file\nGUILD_ID=guild-file\n"), 0o600))

	t.Setenv(EnvToken, "tok")
	t.Setenv(EnvChannelID, "from-env")
	// godotenv only fills unset variables; make sure GUILD_ID starts unset
	// and is restored afterwards.
	t.Setenv(EnvGuildID, "")
	require.NoError(t, os.Unsetenv(EnvGuildID))

	require.NoError(t, LoadEnv(filepath.Join(dir, "missing.env"), envFile))

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	assert.Equal(t, "tok", cfg.Discord.Token)
	assert.Equal(t, "from-env", cfg.Discord.ChannelID)
	assert.Equal(t, "guild-file", cfg.Discord.GuildID)
	assert.NoError(t, cfg.DeliveryReady())
}

func TestDeliveryReady(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.DeliveryReady()
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvToken)
	assert.Contains(t, err.Error(), EnvChannelID)
}

func TestLocations(t *testing.T) {
	cfg := DefaultConfig()
	display, source, err := cfg.Locations()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", display.String())
	assert.Equal(t, "America/New_York", source.String())

	cfg.Timezone = "Mars/Olympus"
	_, _, err = cfg.Locations()
	assert.Error(t, err)
}
