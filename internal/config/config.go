package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file. Secrets normally live only
// here (or in a .env file next to the binary).
const (
	EnvToken     = "DISCORD_TOKEN"
	EnvChannelID = "CHANNEL_ID"
	EnvGuildID   = "GUILD_ID"
	EnvLogLevel  = "LOG_LEVEL"
)

// CalendarConfig controls where and how the economic calendar is fetched.
type CalendarConfig struct {
	URL       string        `yaml:"url" json:"url"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	// Browser renders the page in headless Chromium instead of a plain GET.
	Browser bool `yaml:"browser" json:"browser"`
}

// DiscordConfig identifies the bot and where it posts.
type DiscordConfig struct {
	APIBase   string `yaml:"api_base" json:"api_base"`
	Token     string `yaml:"token,omitempty" json:"-"`
	ChannelID string `yaml:"channel_id" json:"channel_id"`
	// GuildID enables scheduled-event sync when set.
	GuildID string `yaml:"guild_id" json:"guild_id"`
}

// ScheduleConfig holds the cron expressions, evaluated in Timezone.
type ScheduleConfig struct {
	Weekly     string        `yaml:"weekly" json:"weekly"`
	Daily      string        `yaml:"daily" json:"daily"`
	WeeklyDays int           `yaml:"weekly_days" json:"weekly_days"`
	DailyDays  int           `yaml:"daily_days" json:"daily_days"`
	JobTimeout time.Duration `yaml:"job_timeout" json:"job_timeout"`
}

type RecurringConfig struct {
	Enabled         bool `yaml:"enabled" json:"enabled"`
	TradingDayAware bool `yaml:"trading_day_aware" json:"trading_day_aware"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API and metrics.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the display zone every event is converted to.
	Timezone string `yaml:"timezone" json:"timezone"`
	// SourceTimezone is the zone the calendar site publishes times in.
	SourceTimezone string `yaml:"source_timezone" json:"source_timezone"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	Calendar  CalendarConfig  `yaml:"calendar" json:"calendar"`
	Discord   DiscordConfig   `yaml:"discord" json:"discord"`
	Schedule  ScheduleConfig  `yaml:"schedule" json:"schedule"`
	Recurring RecurringConfig `yaml:"recurring" json:"recurring"`

	// BasicAuth, if set, protects every endpoint except /health and /metrics.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"-"`
}

const (
	defaultListen         = "127.0.0.1:8080"
	defaultTimezone       = "Europe/Paris"
	defaultSourceTimezone = "America/New_York"
	defaultURL            = "https://tradingeconomics.com/calendar"
	defaultUserAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	defaultAPIBase        = "https://discord.com/api/v10"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:         defaultListen,
		Timezone:       defaultTimezone,
		SourceTimezone: defaultSourceTimezone,
		LogLevel:       "info",
		Calendar: CalendarConfig{
			URL:       defaultURL,
			UserAgent: defaultUserAgent,
			Timeout:   10 * time.Second,
		},
		Discord: DiscordConfig{APIBase: defaultAPIBase},
		Schedule: ScheduleConfig{
			Weekly:     "0 7 * * 1",
			Daily:      "0 7 * * *",
			WeeklyDays: 7,
			DailyDays:  1,
			JobTimeout: 2 * time.Minute,
		},
		Recurring: RecurringConfig{Enabled: true, TradingDayAware: true},
	}
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.SourceTimezone == "" {
		c.SourceTimezone = defaultSourceTimezone
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Calendar.URL == "" {
		c.Calendar.URL = defaultURL
	}
	if c.Calendar.UserAgent == "" {
		c.Calendar.UserAgent = defaultUserAgent
	}
	if c.Calendar.Timeout <= 0 {
		c.Calendar.Timeout = 10 * time.Second
	}
	if c.Discord.APIBase == "" {
		c.Discord.APIBase = defaultAPIBase
	}
	if c.Schedule.Weekly == "" {
		c.Schedule.Weekly = "0 7 * * 1"
	}
	if c.Schedule.Daily == "" {
		c.Schedule.Daily = "0 7 * * *"
	}
	if c.Schedule.WeeklyDays <= 0 {
		c.Schedule.WeeklyDays = 7
	}
	if c.Schedule.DailyDays <= 0 {
		c.Schedule.DailyDays = 1
	}
	if c.Schedule.JobTimeout <= 0 {
		c.Schedule.JobTimeout = 2 * time.Minute
	}
}

// Locations resolves the display and source zones.
func (c *Config) Locations() (display, source *time.Location, err error) {
	display, err = time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	source, err = time.LoadLocation(c.SourceTimezone)
	if err != nil {
		return nil, nil, fmt.Errorf("source_timezone %q: %w", c.SourceTimezone, err)
	}
	return display, source, nil
}

// DeliveryReady reports whether enough is configured to post to Discord.
func (c *Config) DeliveryReady() error {
	var missing []string
	if c.Discord.Token == "" {
		missing = append(missing, EnvToken)
	}
	if c.Discord.ChannelID == "" {
		missing = append(missing, EnvChannelID)
	}
	if len(missing) > 0 {
		return fmt.Errorf("discord delivery not configured: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// LoadEnv reads .env style files into the process environment. Missing
// files are ignored; variables already set win over file values.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides secrets and ids from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvToken); v != "" {
		c.Discord.Token = v
	}
	if v := os.Getenv(EnvChannelID); v != "" {
		c.Discord.ChannelID = v
	}
	if v := os.Getenv(EnvGuildID); v != "" {
		c.Discord.GuildID = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is decoded over the defaults and normalized, so
//     keys missing from the file keep their default value.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
// The bot token is never written; it belongs in the environment.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	out := *cfg
	out.Discord.Token = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".ecocal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
