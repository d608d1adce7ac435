package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrFatal marks configuration problems that must abort startup.
var ErrFatal = errors.New("fatal config error")

// Load reads the config file (YAML or JSON), applies environment fallbacks
// and defaults. A missing file is not an error: the monitor can run from
// environment variables alone, which is how the CI scheduler invokes it.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decodeStrict(path, b, cfg); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
		// env-only mode
	default:
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if c.Discord.Token == "" {
		c.Discord.Token = getenv("DISCORD_TOKEN")
	}
	if c.Telegram.BotToken == "" {
		c.Telegram.BotToken = getenv("TELEGRAM_BOT_TOKEN")
	}
	if c.Telegram.ChatID == 0 {
		if id, err := strconv.ParseInt(getenv("TELEGRAM_CHAT_ID"), 10, 64); err == nil {
			c.Telegram.ChatID = id
		}
	}
	if len(c.Telegram.AllowedUserIDs) == 0 {
		c.Telegram.AllowedUserIDs = parseIntListCSV(getenv("TELEGRAM_ALLOWED_USER_IDS"))
	}
	if len(c.Monitoring.TrackedUsers) == 0 {
		c.Monitoring.TrackedUsers = parseIntListCSV(getenv("DISCORD_TRACKED_USERS"))
	}
	if len(c.Monitoring.TrackedGuilds) == 0 {
		c.Monitoring.TrackedGuilds = parseIntListCSV(getenv("DISCORD_TRACKED_GUILDS"))
	}
	if c.Monitoring.Timezone == "" {
		c.Monitoring.Timezone = getenv("TIMEZONE")
	}
	if c.Monitoring.BaseDuration == "" {
		c.Monitoring.BaseDuration = getenv("DM_CHECK_DURATION")
	}
	if c.Monitoring.ExtendedDuration == "" {
		c.Monitoring.ExtendedDuration = getenv("VOICE_MONITORING_DURATION")
	}
	if c.Monitoring.FirstRunStrategy == "" {
		c.Monitoring.FirstRunStrategy = getenv("FIRST_RUN_STRATEGY")
	}
	if c.Monitoring.DMRecentWindow == "" {
		c.Monitoring.DMRecentWindow = getenv("DM_RECENT_WINDOW_SECONDS")
	}
}

func (c *Config) applyDefaults() {
	if c.Monitoring.Timezone == "" {
		c.Monitoring.Timezone = "Asia/Tehran"
	}
	if c.Monitoring.FirstRunStrategy == "" {
		c.Monitoring.FirstRunStrategy = "fast_forward"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "./state.json"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the required credentials. Failures wrap ErrFatal: there is
// no point starting a run that can reach neither collaborator.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Discord.Token) == "" {
		return fmt.Errorf("%w: discord.token is required", ErrFatal)
	}
	if strings.TrimSpace(c.Telegram.BotToken) == "" {
		return fmt.Errorf("%w: telegram.bot_token is required", ErrFatal)
	}
	if c.Telegram.ChatID == 0 {
		return fmt.Errorf("%w: telegram.chat_id is required", ErrFatal)
	}
	switch c.Monitoring.FirstRunStrategy {
	case "fast_forward", "scan_recent":
	default:
		return fmt.Errorf("%w: monitoring.first_run_strategy must be fast_forward or scan_recent", ErrFatal)
	}
	return nil
}

// Options is the resolved, typed view of MonitoringConfig the run consumes.
type Options struct {
	BaseDuration     time.Duration
	ExtendedDuration time.Duration
	PollInterval     time.Duration
	FlushInterval    time.Duration
	DMRecentWindow   time.Duration
	Location         *time.Location
	FirstRunStrategy string
}

// Resolve parses duration fields and loads the timezone.
func (c *Config) Resolve() (Options, error) {
	var (
		o   Options
		err error
	)
	m := c.Monitoring
	if o.BaseDuration, err = ParseDurationOrDefault("monitoring.base_duration", m.BaseDuration, 60*time.Second); err != nil {
		return o, err
	}
	if o.ExtendedDuration, err = ParseDurationOrDefault("monitoring.extended_duration", m.ExtendedDuration, 10*time.Minute); err != nil {
		return o, err
	}
	if o.PollInterval, err = ParseDurationOrDefault("monitoring.poll_interval", m.PollInterval, 15*time.Second); err != nil {
		return o, err
	}
	if o.FlushInterval, err = ParseDurationOrDefault("monitoring.flush_interval", m.FlushInterval, 2*time.Minute); err != nil {
		return o, err
	}
	if o.DMRecentWindow, err = ParseDurationField("monitoring.dm_recent_window", m.DMRecentWindow); err != nil {
		return o, err
	}
	o.FirstRunStrategy = m.FirstRunStrategy

	o.Location, err = time.LoadLocation(m.Timezone)
	if err != nil {
		return o, fmt.Errorf("monitoring.timezone: %w", err)
	}
	return o, nil
}

// ConsoleEnabled reports whether console logging is on (default true).
func (c *Config) ConsoleEnabled() bool {
	if c.Logging.Console == nil {
		return true
	}
	return *c.Logging.Console
}

func getenv(name string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "None" {
		return ""
	}
	return v
}

func parseIntListCSV(s string) []int64 {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}
