package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	json5 "github.com/titanous/json5"
)

// ConfigFileName is the name of the JSON5 config file under Root.
const ConfigFileName = "gateway.json"

// Load resolves the gateway configuration: defaults, then the JSON5 config
// file (if present), then environment variable overrides. The cmd package
// calls it at startup and hands the result to internal/supervisor.
func Load(explicitPath string) (*Config, error) {
	cfg := Default()

	path := explicitPath
	if path == "" {
		path = filepath.Join(cfg.Root, ConfigFileName)
	}

	if data, err := os.ReadFile(path); err == nil {
		if err := mergeJSON5(cfg, data); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// mergeJSON5 decodes the file into a separate, empty Config overlay and
// merges only its non-zero fields onto cfg. Decoding into the overlay
// (rather than straight into cfg) keeps fields the operator omitted from
// clobbering the defaults.
func mergeJSON5(cfg *Config, data []byte) error {
	var overlay Config
	overlay.Platforms = map[Platform]PlatformConfig{}
	overlay.ResetByType = map[string]ResetPolicy{}
	overlay.ResetByPlatform = map[Platform]ResetPolicy{}

	if err := json5.Unmarshal(data, &overlay); err != nil {
		return err
	}

	if overlay.Root != "" {
		cfg.Root = overlay.Root
	}
	if overlay.DatabaseURL != "" {
		cfg.DatabaseURL = overlay.DatabaseURL
	}
	if overlay.RedisURL != "" {
		cfg.RedisURL = overlay.RedisURL
	}
	if overlay.S3Bucket != "" {
		cfg.S3Bucket = overlay.S3Bucket
	}
	if overlay.InboundDebounceMs != 0 {
		cfg.InboundDebounceMs = overlay.InboundDebounceMs
	}
	if len(overlay.TrustedRoots) > 0 {
		cfg.TrustedRoots = append(cfg.TrustedRoots, overlay.TrustedRoots...)
	}
	if len(overlay.ResetTriggers) > 0 {
		cfg.ResetTriggers = overlay.ResetTriggers
	}
	if (overlay.DefaultResetPolicy != ResetPolicy{}) {
		cfg.DefaultResetPolicy = overlay.DefaultResetPolicy
	}
	for k, v := range overlay.ResetByType {
		cfg.ResetByType[k] = v
	}
	for k, v := range overlay.ResetByPlatform {
		cfg.ResetByPlatform[k] = v
	}
	for p, pc := range overlay.Platforms {
		cfg.Platforms[p] = pc
	}
	cfg.AlwaysLogLocal = overlay.AlwaysLogLocal || cfg.AlwaysLogLocal

	return nil
}

// applyEnvOverrides layers environment variables on top of file/defaults,
// per spec.md §6's recognized variable list.
func applyEnvOverrides(cfg *Config) {
	setToken := func(p Platform, envVar string) {
		if tok := os.Getenv(envVar); tok != "" {
			pc := cfg.Platforms[p]
			pc.Enabled = true
			pc.Token = tok
			cfg.Platforms[p] = pc
		}
	}
	setHome := func(p Platform, envVar string) {
		if chatID := os.Getenv(envVar); chatID != "" {
			pc := cfg.Platforms[p]
			pc.HomeChannel = &HomeChannel{Platform: p, ChatID: chatID, Name: "home"}
			cfg.Platforms[p] = pc
		}
	}

	setToken(PlatformTelegram, "TELEGRAM_BOT_TOKEN")
	setHome(PlatformTelegram, "TELEGRAM_HOME_CHANNEL")

	setToken(PlatformDiscord, "DISCORD_BOT_TOKEN")
	setHome(PlatformDiscord, "DISCORD_HOME_CHANNEL")
	if v := os.Getenv("DISCORD_FREE_RESPONSE_CHANNELS"); v != "" {
		pc := cfg.Platforms[PlatformDiscord]
		if pc.Extras == nil {
			pc.Extras = map[string]string{}
		}
		pc.Extras["free_response_channels"] = v
		cfg.Platforms[PlatformDiscord] = pc
	}
	if v := os.Getenv("DISCORD_REQUIRE_MENTION"); v != "" {
		pc := cfg.Platforms[PlatformDiscord]
		if pc.Extras == nil {
			pc.Extras = map[string]string{}
		}
		pc.Extras["require_mention"] = v
		cfg.Platforms[PlatformDiscord] = pc
	}

	if v := os.Getenv("WHATSAPP_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil && b {
			pc := cfg.Platforms[PlatformWhatsApp]
			pc.Enabled = true
			cfg.Platforms[PlatformWhatsApp] = pc
		}
	}

	if v := os.Getenv("SESSION_IDLE_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DefaultResetPolicy.IdleMinutes = n
		}
	}
	if v := os.Getenv("SESSION_RESET_HOUR"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DefaultResetPolicy.ResetHour = n
		}
	}

	if v := os.Getenv("HERMES_TRUSTED_DIRS"); v != "" {
		cfg.TrustedRoots = append(cfg.TrustedRoots, strings.Split(v, string(os.PathListSeparator))...)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
}

// Validate performs startup-fatal sanity checks (ConfigError in spec.md §7).
func Validate(cfg *Config) error {
	for p, pc := range cfg.Platforms {
		if !pc.Enabled {
			continue
		}
		if p == PlatformLocal {
			continue
		}
		if p == PlatformWhatsApp {
			continue // whatsmeow authenticates via paired device, not a static token
		}
		if pc.Token == "" {
			return fmt.Errorf("%w: platform %q is enabled but has no token", ErrConfigInvalid, p)
		}
	}
	if cfg.DefaultResetPolicy.IdleMinutes <= 0 {
		return fmt.Errorf("%w: idle_minutes must be positive", ErrConfigInvalid)
	}
	if cfg.DefaultResetPolicy.ResetHour < 0 || cfg.DefaultResetPolicy.ResetHour > 23 {
		return fmt.Errorf("%w: reset_hour must be 0-23", ErrConfigInvalid)
	}
	return nil
}
