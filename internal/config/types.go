package config

// Config is the full daemon configuration, loaded once at startup from a
// JSON or YAML file. Secrets (bot token, Root URL, owner id) may be left out
// of the file and supplied through the environment instead.
type Config struct {
	Discord   DiscordConfig   `json:"discord"`
	Root      RootConfig      `json:"root"`
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
}

// DiscordConfig names every channel, message and role the daemon touches.
// These were hardcoded ids in an earlier incarnation; keeping them here lets
// tests supply fixtures and keeps server changes out of the binary.
type DiscordConfig struct {
	// Token is normally supplied via the DISCORD_TOKEN environment variable.
	Token string `json:"token,omitempty"`

	GuildID string `json:"guild_id"`
	OwnerID string `json:"owner_id,omitempty"`

	// StatusUpdateChannelID receives the daily status-update report.
	StatusUpdateChannelID string `json:"status_update_channel_id"`
	// GroupChannelIDs are the channels members post status updates to.
	GroupChannelIDs []string `json:"group_channel_ids"`
	// LabChannelID receives the daily presence report.
	LabChannelID string `json:"lab_channel_id"`

	// RolesMessageID is the pinned message whose reactions map to roles.
	RolesMessageID string `json:"roles_message_id,omitempty"`
	// ReactionRoles maps a unicode emoji to the role id it grants.
	ReactionRoles map[string]string `json:"reaction_roles,omitempty"`

	// ExemptAuthorIDs are user ids whose updates are accepted with relaxed
	// keyword rules.
	ExemptAuthorIDs []string `json:"exempt_author_ids,omitempty"`

	// SendRatePerSec caps outgoing messages (default 2).
	SendRatePerSec int `json:"send_rate_per_sec,omitempty"`
}

// RootConfig points at the Root GraphQL API.
type RootConfig struct {
	// URL is normally supplied via the ROOT_URL environment variable.
	URL string `json:"url,omitempty"`
	// Timeout is a Go duration string for one API request (default "15s").
	Timeout string `json:"timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string           `json:"level,omitempty"`
	Console bool             `json:"console"`
	File    LogFileConfig    `json:"file,omitempty"`
	Discord LogDiscordConfig `json:"discord,omitempty"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// LogDiscordConfig forwards warnings/errors to a log channel on the server.
type LogDiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	ChannelID  string `json:"channel_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// SchedulerConfig controls the recurring task loops.
type SchedulerConfig struct {
	// Timezone is the IANA organizational timezone every daily schedule is
	// anchored to (default "Asia/Kolkata"). Host-local time is never used.
	Timezone string `json:"timezone,omitempty"`
	// DefaultTimeout bounds one task run, as a Go duration string
	// (default "5m", "0s" disables).
	DefaultTimeout string `json:"default_timeout,omitempty"`
	// HistorySize bounds the in-memory run history ring (default 100).
	HistorySize int `json:"history_size,omitempty"`
}

// StorageConfig enables the optional sqlite run-history store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./amd.db" }
type StorageConfig struct {
	Driver string `json:"driver"`
	Path   string `json:"path"`
}
