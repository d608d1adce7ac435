package config

// Config is the on-disk configuration. YAML files are coerced to JSON and
// strict-decoded, so unknown keys are rejected rather than ignored.
//
// Every credential has an environment fallback (see applyEnv) so the file
// can omit secrets entirely when running under a CI scheduler.
type Config struct {
	Discord    DiscordConfig    `json:"discord"`
	Telegram   TelegramConfig   `json:"telegram"`
	Monitoring MonitoringConfig `json:"monitoring"`
	Storage    StorageConfig    `json:"storage,omitempty"`
	Logging    LoggingConfig    `json:"logging,omitempty"`
}

type DiscordConfig struct {
	Token string `json:"token"`

	// UserAgent overrides the browser UA sent to the Discord API.
	UserAgent string `json:"user_agent,omitempty"`
}

type TelegramConfig struct {
	BotToken string `json:"bot_token"`
	ChatID   int64  `json:"chat_id"`

	// AllowedUserIDs restricts who may receive notifications.
	// Empty means no restriction.
	AllowedUserIDs []int64 `json:"allowed_user_ids,omitempty"`
}

// MonitoringConfig controls what is observed and for how long.
//
// All durations are Go duration strings (e.g. "60s", "10m"); bare integers
// are accepted as seconds for compatibility with older configs.
type MonitoringConfig struct {
	TrackedUsers  []int64 `json:"tracked_users,omitempty"`
	TrackedGuilds []int64 `json:"tracked_guilds,omitempty"`

	Timezone string `json:"timezone,omitempty"` // default "Asia/Tehran"

	// BaseDuration is how long a quiet run observes before exiting.
	BaseDuration string `json:"base_duration,omitempty"` // default "60s"

	// ExtendedDuration replaces BaseDuration once voice activity is seen.
	ExtendedDuration string `json:"extended_duration,omitempty"` // default "10m"

	PollInterval  string `json:"poll_interval,omitempty"`  // default "15s"
	FlushInterval string `json:"flush_interval,omitempty"` // default "2m"

	// FirstRunStrategy: "fast_forward" (baseline silently, default) or
	// "scan_recent" (report DMs newer than DMRecentWindow on first run).
	FirstRunStrategy string `json:"first_run_strategy,omitempty"`
	DMRecentWindow   string `json:"dm_recent_window,omitempty"`
}

// StorageConfig selects the snapshot store backend.
//
// Example:
//
//	storage: { driver: "file", path: "./state.json" }
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`       // "file" (default) or "sqlite"
	Path        string `json:"path,omitempty"`         // default "./state.json"
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"`
	Console *bool             `json:"console,omitempty"` // default true
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}
