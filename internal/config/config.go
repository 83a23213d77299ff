// Package config loads and types the gateway's settings: enabled
// platforms, credentials, home channels, reset policies, and trusted
// document directories.
//
// Priority (highest first): environment variables, then the JSON5 config
// file, then built-in defaults. Configuration is loaded once at process
// start and treated as immutable for the lifetime of the process — a
// reload requires a restart.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	json5 "github.com/titanous/json5"
)

// Platform is the closed set of messaging platforms the gateway supports.
type Platform string

const (
	PlatformLocal    Platform = "local"
	PlatformTelegram Platform = "telegram"
	PlatformDiscord  Platform = "discord"
	PlatformSlack    Platform = "slack"
	PlatformWhatsApp Platform = "whatsapp"
)

// ParsePlatform validates a platform string against the closed enumeration.
func ParsePlatform(s string) (Platform, bool) {
	switch Platform(strings.ToLower(s)) {
	case PlatformLocal, PlatformTelegram, PlatformDiscord, PlatformSlack, PlatformWhatsApp:
		return Platform(strings.ToLower(s)), true
	}
	return "", false
}

// HomeChannel is the default destination for a platform when a delivery
// target names only the platform.
type HomeChannel struct {
	Platform Platform `json:"platform"`
	ChatID   string   `json:"chat_id"`
	Name     string   `json:"name,omitempty"`
}

// ResetMode controls when a session loses context.
type ResetMode string

const (
	ResetDaily ResetMode = "daily"
	ResetIdle  ResetMode = "idle"
	ResetBoth  ResetMode = "both"
)

// ResetPolicy decides when a session must be reset.
type ResetPolicy struct {
	Mode        ResetMode `json:"mode"`
	ResetHour   int       `json:"reset_hour"`   // 0-23, local time
	IdleMinutes int       `json:"idle_minutes"` // positive
}

// DefaultResetPolicy matches the teacher's original defaults (reset at
// 04:00 local, 120 minutes idle, both triggers active).
func DefaultResetPolicy() ResetPolicy {
	return ResetPolicy{Mode: ResetBoth, ResetHour: 4, IdleMinutes: 120}
}

// PlatformConfig is the per-platform settings block.
type PlatformConfig struct {
	Enabled     bool              `json:"enabled"`
	Token       string            `json:"token,omitempty"`
	HomeChannel *HomeChannel      `json:"home_channel,omitempty"`
	Extras      map[string]string `json:"extras,omitempty"`
}

// DiscordExtras are the well-known Discord extras keys, parsed out of
// PlatformConfig.Extras for convenience.
type DiscordExtras struct {
	FreeResponseChannels []string
	RequireMention       bool
}

// ParseDiscordExtras reads the Discord-specific keys out of a
// PlatformConfig's free-form Extras map: "free_response_channels" (a
// comma-separated channel ID list the bot replies in without a mention)
// and "require_mention" ("true"/"false", default true).
func ParseDiscordExtras(pc PlatformConfig) DiscordExtras {
	extras := DiscordExtras{RequireMention: true}
	if pc.Extras == nil {
		return extras
	}
	if raw := strings.TrimSpace(pc.Extras["free_response_channels"]); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				extras.FreeResponseChannels = append(extras.FreeResponseChannels, id)
			}
		}
	}
	if raw, ok := pc.Extras["require_mention"]; ok {
		extras.RequireMention = strings.EqualFold(strings.TrimSpace(raw), "true")
	}
	return extras
}

// Config is the fully resolved, typed gateway configuration.
type Config struct {
	Platforms map[Platform]PlatformConfig `json:"platforms"`

	DefaultResetPolicy ResetPolicy             `json:"default_reset_policy"`
	ResetByType        map[string]ResetPolicy  `json:"reset_by_type"`
	ResetByPlatform    map[Platform]ResetPolicy `json:"reset_by_platform"`
	ResetTriggers      []string                `json:"reset_triggers"`

	Root             string   `json:"root"`
	AlwaysLogLocal   bool     `json:"always_log_local"`
	TrustedRoots     []string `json:"trusted_roots"`
	InboundDebounceMs int     `json:"inbound_debounce_ms"`

	DatabaseURL string `json:"database_url,omitempty"`
	RedisURL    string `json:"redis_url,omitempty"`
	S3Bucket    string `json:"s3_bucket,omitempty"`
}

// SessionsDir is the root directory under which per-session JSON blobs live.
func (c *Config) SessionsDir() string { return filepath.Join(c.Root, "sessions") }

// CronDir is the root directory for cron job records and output.
func (c *Config) CronDir() string { return filepath.Join(c.Root, "cron") }

// CronOutputDir is where delivered cron/local outputs are written.
func (c *Config) CronOutputDir() string { return filepath.Join(c.CronDir(), "output") }

// LogsDir is where `gateway start` writes logs/gateway.log (not rotated).
func (c *Config) LogsDir() string { return filepath.Join(c.Root, "logs") }

// GetHomeChannel returns the configured home channel for a platform, or nil.
func (c *Config) GetHomeChannel(p Platform) *HomeChannel {
	if pc, ok := c.Platforms[p]; ok {
		return pc.HomeChannel
	}
	return nil
}

// GetConnectedPlatforms returns platforms that are enabled and credentialed.
func (c *Config) GetConnectedPlatforms() []Platform {
	var out []Platform
	for p, pc := range c.Platforms {
		if pc.Enabled && (pc.Token != "" || p == PlatformLocal || p == PlatformWhatsApp) {
			out = append(out, p)
		}
	}
	return out
}

// GetResetPolicy resolves the applicable reset policy. Lookup priority:
// platform-specific override > chat-type override > default.
func (c *Config) GetResetPolicy(platform Platform, chatType string) ResetPolicy {
	if p, ok := c.ResetByPlatform[platform]; ok {
		return p
	}
	if p, ok := c.ResetByType[chatType]; ok {
		return p
	}
	return c.DefaultResetPolicy
}

// IsResetTrigger reports whether text matches one of the configured
// explicit reset commands (default "/new", "/reset").
func (c *Config) IsResetTrigger(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	cmd := strings.ToLower(fields[0])
	for _, trig := range c.ResetTriggers {
		if strings.EqualFold(cmd, trig) {
			return true
		}
	}
	return false
}

// Default returns a Config populated with built-in defaults. Callers layer
// the JSON5 file and then environment variables on top.
func Default() *Config {
	home, _ := os.UserHomeDir()
	root := filepath.Join(home, ".hermes")
	return &Config{
		Platforms: map[Platform]PlatformConfig{
			PlatformLocal:    {Enabled: true},
			PlatformTelegram: {Enabled: false},
			PlatformDiscord:  {Enabled: false},
			PlatformSlack:    {Enabled: false},
			PlatformWhatsApp: {Enabled: false},
		},
		DefaultResetPolicy: DefaultResetPolicy(),
		ResetByType:        map[string]ResetPolicy{},
		ResetByPlatform:    map[Platform]ResetPolicy{},
		ResetTriggers:      []string{"/new", "/reset"},
		Root:               root,
		AlwaysLogLocal:     true,
		TrustedRoots:       []string{"/tmp", filepath.Join(home, ".hermes"), filepath.Join(home, "Documents")},
		InboundDebounceMs:  1000,
	}
}

// Load builds a Config by layering, lowest priority first: built-in
// defaults, the JSON5 file at path (if it exists), then environment
// variables. path may be empty, in which case only defaults and the
// environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err == nil {
			if err := json5.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parsing %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides layers environment variables on top of the file/default
// config. Only the secrets and connection strings that operators routinely
// inject via the environment (rather than checking into a config file) are
// covered here.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HERMES_ROOT"); v != "" {
		cfg.Root = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.S3Bucket = v
	}

	tokenEnvByPlatform := map[Platform]string{
		PlatformTelegram: "TELEGRAM_BOT_TOKEN",
		PlatformDiscord:  "DISCORD_BOT_TOKEN",
		PlatformSlack:    "SLACK_BOT_TOKEN",
	}
	for platform, envVar := range tokenEnvByPlatform {
		token := os.Getenv(envVar)
		if token == "" {
			continue
		}
		pc := cfg.Platforms[platform]
		pc.Token = token
		pc.Enabled = true
		if cfg.Platforms == nil {
			cfg.Platforms = map[Platform]PlatformConfig{}
		}
		cfg.Platforms[platform] = pc
	}
}
