package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Environment variables that override file settings. The token and Root URL
// are secrets and usually live only in the environment (.env in dev).
const (
	EnvDiscordToken = "DISCORD_TOKEN"
	EnvRootURL      = "ROOT_URL"
	EnvOwnerID      = "OWNER_ID"
)

const defaultTimezone = "Asia/Kolkata"

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvDiscordToken)); v != "" {
		cfg.Discord.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRootURL)); v != "" {
		cfg.Root.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvOwnerID)); v != "" {
		cfg.Discord.OwnerID = v
	}
}

// Validate checks everything the daemon cannot run without. It is called
// after env overrides, so a failure here is a fatal configuration error.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Discord.Token) == "" {
		return fmt.Errorf("discord.token is required (set %s)", EnvDiscordToken)
	}
	if strings.TrimSpace(c.Root.URL) == "" {
		return fmt.Errorf("root.url is required (set %s)", EnvRootURL)
	}
	if strings.TrimSpace(c.Discord.StatusUpdateChannelID) == "" {
		return fmt.Errorf("discord.status_update_channel_id is required")
	}
	if len(c.Discord.GroupChannelIDs) == 0 {
		return fmt.Errorf("discord.group_channel_ids must name at least one channel")
	}
	if strings.TrimSpace(c.Discord.LabChannelID) == "" {
		return fmt.Errorf("discord.lab_channel_id is required")
	}
	if _, err := time.LoadLocation(c.TimezoneOrDefault()); err != nil {
		return fmt.Errorf("scheduler.timezone: %w", err)
	}
	if _, err := ParseDurationField("scheduler.default_timeout", c.Scheduler.DefaultTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("root.timeout", c.Root.Timeout); err != nil {
		return err
	}
	if c.Storage != nil && c.Storage.Driver != "" {
		if c.Storage.Driver != "sqlite" {
			return fmt.Errorf("storage.driver: unsupported driver %q", c.Storage.Driver)
		}
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage.path is required when storage.driver is set")
		}
	}
	return nil
}

// TimezoneOrDefault returns the configured organizational timezone or the
// default when unset.
func (c *Config) TimezoneOrDefault() string {
	if tz := strings.TrimSpace(c.Scheduler.Timezone); tz != "" {
		return tz
	}
	return defaultTimezone
}

// Location resolves the organizational timezone. Validate() guarantees this
// succeeds on a committed config.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.TimezoneOrDefault())
}
