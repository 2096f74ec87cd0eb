package models

import "time"

// LifecycleConfig holds the time windows and intervals used by the lifecycle engine.
type LifecycleConfig struct {
	ResolveDelay        time.Duration `mapstructure:"resolveDelay"`
	MaxResolveDelay     time.Duration `mapstructure:"maxResolveDelay"`
	WarningWindow       time.Duration `mapstructure:"warningWindow"`
	CloseWindow         time.Duration `mapstructure:"closeWindow"`
	LockSweepInterval   time.Duration `mapstructure:"lockSweepInterval"`
	StaleSweepInterval  time.Duration `mapstructure:"staleSweepInterval"`
	GatewayTimeout      time.Duration `mapstructure:"gatewayTimeout"`
	StaleSweepAtStartup bool          `mapstructure:"staleSweepAtStartup"`
	BackfillAtStartup   bool          `mapstructure:"backfillAtStartup"`
}

// AuditConfig controls audit retention and the admin channel mirror.
type AuditConfig struct {
	RetentionDays int  `mapstructure:"retentionDays"`
	Mirror        bool `mapstructure:"mirror"`
}

// TelemetryConfig mirrors the `telemetry` block of config.yaml.
type TelemetryConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	Exporter       string  `mapstructure:"exporter"` // otlp-http, stdout, none
	Endpoint       string  `mapstructure:"endpoint"`
	ServiceName    string  `mapstructure:"serviceName"`
	SampleRate     float64 `mapstructure:"sampleRate"`
	MetricsEnabled bool    `mapstructure:"metricsEnabled"`
}

// GuildSeed is one entry of config/guilds.yaml.
type GuildSeed struct {
	Name           string   `mapstructure:"name"`
	ForumChannelID string   `mapstructure:"forum_channel_id"`
	ResolvedTagID  string   `mapstructure:"resolved_tag_id"`
	DuplicateTagID string   `mapstructure:"duplicate_tag_id"`
	UnansweredTag  string   `mapstructure:"unanswered_tag_id"`
	HelperRoleIDs  []string `mapstructure:"helper_role_ids"`
}

// Settings converts a seed entry keyed by guild id into GuildSettings.
func (g GuildSeed) Settings(guildID string) GuildSettings {
	return GuildSettings{
		GuildID:        guildID,
		GuildName:      g.Name,
		ForumChannelID: g.ForumChannelID,
		ResolvedTagID:  g.ResolvedTagID,
		DuplicateTagID: g.DuplicateTagID,
		UnansweredTag:  g.UnansweredTag,
		HelperRoleIDs:  g.HelperRoleIDs,
	}
}
