package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lazypower/reactions/internal/policy"
	"github.com/lazypower/reactions/internal/store"
	"github.com/spf13/viper"
)

// Config holds all reactions service configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Backend BackendConfig `mapstructure:"backend"`
	Cleanup CleanupConfig `mapstructure:"cleanup"`
	Policy  policy.Policy `mapstructure:"policy"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Bind string `mapstructure:"bind"`
	Port int    `mapstructure:"port"`
}

type BackendConfig struct {
	Driver  string        `mapstructure:"driver"` // "sqlite", "badger", "memory"
	Path    string        `mapstructure:"path"`   // resolved at runtime via store.DefaultDBPath() when empty
	Timeout time.Duration `mapstructure:"timeout"`
}

type CleanupConfig struct {
	Interval time.Duration `mapstructure:"interval"` // 0 disables the periodic pass
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format"` // "text" or "json"
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
		Backend: BackendConfig{
			Driver:  store.DriverSQLite,
			Timeout: 2 * time.Second,
		},
		Cleanup: CleanupConfig{
			Interval: 5 * time.Minute,
		},
		Policy: policy.Default(),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from path (or reactions.yaml in the working
// directory and ~/.reactions when path is empty), then applies REACTIONS_*
// environment overrides such as REACTIONS_SERVER_PORT.
func Load(path string) (Config, error) {
	cfg := Default()
	v := viper.New()

	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("reactions")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.reactions")
	}

	v.SetEnvPrefix("REACTIONS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that
// the config file does not mention.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("server.bind", cfg.Server.Bind)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("backend.driver", cfg.Backend.Driver)
	v.SetDefault("backend.path", cfg.Backend.Path)
	v.SetDefault("backend.timeout", cfg.Backend.Timeout)
	v.SetDefault("cleanup.interval", cfg.Cleanup.Interval)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)

	p := cfg.Policy
	v.SetDefault("policy.max_users_per_reaction", p.MaxUsersPerReaction)
	v.SetDefault("policy.max_reactions_per_message", p.MaxReactionsPerMessage)
	v.SetDefault("policy.cleanup_threshold", p.CleanupThreshold)
	v.SetDefault("policy.retention_factor", p.RetentionFactor)
	v.SetDefault("policy.failure_threshold", p.FailureThreshold)
	v.SetDefault("policy.cooldown", p.Cooldown)
	v.SetDefault("policy.max_tracked_messages", p.MaxTrackedMessages)
	v.SetDefault("policy.global_target_factor", p.GlobalTargetFactor)
	v.SetDefault("policy.popularity_count_weight", p.PopularityCountWeight)
	v.SetDefault("policy.popularity_half_life", p.PopularityHalfLife)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Backend.Driver {
	case store.DriverSQLite, store.DriverBadger, store.DriverMemory:
	default:
		return fmt.Errorf("config: backend.driver %q must be sqlite, badger, or memory", c.Backend.Driver)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Cleanup.Interval < 0 {
		return fmt.Errorf("config: cleanup.interval must not be negative")
	}
	return c.Policy.Validate()
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
