package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Mode represents the server operating mode.
type Mode string

const (
	ModeProd Mode = "prod"
	ModeDev  Mode = "dev"
)

// ParseMode parses a mode string, returning an error for invalid values.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prod", "":
		return ModeProd, nil
	case "dev":
		return ModeDev, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be one of prod, dev", s)
	}
}

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but file is missing or invalid, loading fails.
	ConfigPath string

	// ModeFlag is the --mode flag value (overrides config file mode).
	ModeFlag string

	// FlagOverrides are CLI flag values that override config file values.
	FlagOverrides FlagOverrides

	// Logger is used for warning messages (e.g., undecoded keys).
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
type FlagOverrides struct {
	ListenAddr    *string
	StoreDriver   *string
	DataDir       *string
	LoggingLevel  *string
	OwnerEmail    *string
	OwnerPassword *string
}

// fileConfig mirrors Config with a mode field and optional sections so that
// absent sections don't clobber preset values.
type fileConfig struct {
	Mode       string           `toml:"mode"`
	ListenAddr string           `toml:"listen_addr"`
	Store      *StoreConfig     `toml:"store"`
	Session    *SessionConfig   `toml:"session"`
	Realtime   *RealtimeConfig  `toml:"realtime"`
	RateLimit  *RateLimitConfig `toml:"rate_limit"`
	Logging    *LoggingConfig   `toml:"logging"`
	Bootstrap  *BootstrapConfig `toml:"bootstrap"`
}

// Load loads configuration with the following precedence:
//  1. Determine effective mode: --mode flag > mode in config file > default (prod)
//  2. Start from mode preset defaults
//  3. Overlay TOML config file values
//  4. Overlay CLI flags
//  5. Validate enum fields
//
// If ConfigPath is provided but the file is missing, unreadable, or invalid TOML,
// Load returns an error (fail fast). Unknown/undecoded TOML keys produce a warning
// but do not fail the load.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var fc fileConfig

	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigPath, err)
		}
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigPath, err)
		}

		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			logger.Warn("config file contains undecoded keys", "path", opts.ConfigPath, "keys", keys)
		}
	}

	modeStr := string(ModeProd)
	if fc.Mode != "" {
		modeStr = fc.Mode
	}
	if opts.ModeFlag != "" {
		modeStr = opts.ModeFlag
	}

	mode, err := ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	cfg := presetForMode(mode)

	if opts.ConfigPath != "" {
		overlayFileConfig(cfg, &fc)
	}

	overlayFlags(cfg, opts.FlagOverrides)

	if err := validateEnums(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// presetForMode returns the base config for a given mode.
func presetForMode(mode Mode) *Config {
	if mode == ModeDev {
		return DevConfig()
	}
	return DefaultConfig()
}

// DevConfig returns defaults for local development: verbose logging,
// in-memory storage, relaxed create quota.
func DevConfig() *Config {
	cfg := DefaultConfig()
	cfg.Logging.Level = "debug"
	cfg.Store.Driver = "memory"
	cfg.RateLimit.CreatePerMinute = 0
	cfg.RateLimit.HandshakePerMinute = 0
	return cfg
}

func overlayFileConfig(cfg *Config, fc *fileConfig) {
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.Store != nil {
		if fc.Store.Driver != "" {
			cfg.Store.Driver = fc.Store.Driver
		}
		if fc.Store.DataDir != "" {
			cfg.Store.DataDir = fc.Store.DataDir
		}
	}
	if fc.Session != nil && fc.Session.TTLHours > 0 {
		cfg.Session.TTLHours = fc.Session.TTLHours
	}
	if fc.Realtime != nil {
		if fc.Realtime.HandshakeTimeoutMS > 0 {
			cfg.Realtime.HandshakeTimeoutMS = fc.Realtime.HandshakeTimeoutMS
		}
		if fc.Realtime.WriteTimeoutMS > 0 {
			cfg.Realtime.WriteTimeoutMS = fc.Realtime.WriteTimeoutMS
		}
	}
	if fc.RateLimit != nil {
		cfg.RateLimit.CreatePerMinute = fc.RateLimit.CreatePerMinute
		cfg.RateLimit.HandshakePerMinute = fc.RateLimit.HandshakePerMinute
	}
	if fc.Logging != nil && fc.Logging.Level != "" {
		cfg.Logging.Level = fc.Logging.Level
	}
	if fc.Bootstrap != nil {
		if fc.Bootstrap.OwnerEmail != "" {
			cfg.Bootstrap.OwnerEmail = fc.Bootstrap.OwnerEmail
		}
		if fc.Bootstrap.OwnerPassword != "" {
			cfg.Bootstrap.OwnerPassword = fc.Bootstrap.OwnerPassword
		}
		if fc.Bootstrap.OwnerName != "" {
			cfg.Bootstrap.OwnerName = fc.Bootstrap.OwnerName
		}
	}
}

func overlayFlags(cfg *Config, f FlagOverrides) {
	if f.ListenAddr != nil && *f.ListenAddr != "" {
		cfg.ListenAddr = *f.ListenAddr
	}
	if f.StoreDriver != nil && *f.StoreDriver != "" {
		cfg.Store.Driver = *f.StoreDriver
	}
	if f.DataDir != nil && *f.DataDir != "" {
		cfg.Store.DataDir = *f.DataDir
	}
	if f.LoggingLevel != nil && *f.LoggingLevel != "" {
		cfg.Logging.Level = *f.LoggingLevel
	}
	if f.OwnerEmail != nil && *f.OwnerEmail != "" {
		cfg.Bootstrap.OwnerEmail = *f.OwnerEmail
	}
	if f.OwnerPassword != nil && *f.OwnerPassword != "" {
		cfg.Bootstrap.OwnerPassword = *f.OwnerPassword
	}
}

// validateEnums validates enum-style config fields.
func validateEnums(cfg *Config) error {
	switch cfg.Store.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("invalid store.driver %q: must be memory or sqlite", cfg.Store.Driver)
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q: must be debug, info, warn, or error", cfg.Logging.Level)
	}

	return nil
}
