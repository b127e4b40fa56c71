package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides (TRAINER_DATABASE_PATH, ...).
const EnvPrefix = "TRAINER"

// Config holds application configuration loaded from files and environment variables.
type Config struct {
	Env      string  `mapstructure:"env"`       // local, dev, production
	LogLevel string  `mapstructure:"log_level"` // debug, info, warn, error
	DB       DB      `mapstructure:"database"`
	Scripts  Scripts `mapstructure:"scripts"`
	LLM      LLM     `mapstructure:"llm"`
	Server   Server  `mapstructure:"server"`
}

// DB contains database connection parameters.
type DB struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "postgres"
	DSN    string `mapstructure:"dsn"`    // full DSN; overrides Path
	Path   string `mapstructure:"path"`   // sqlite file path
}

// Scripts configures the scripted module runtime.
type Scripts struct {
	Dir     string        `mapstructure:"dir"`
	Timeout time.Duration `mapstructure:"timeout"`
	Watch   bool          `mapstructure:"watch"`
}

// LLM configures the word-problem module's provider.
type LLM struct {
	Provider    string        `mapstructure:"provider"` // "", anthropic, openai, openrouter, gemini, mock
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"-"` // environment only
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// Server configures the HTTP API.
type Server struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Enabled reports whether an LLM provider has been selected.
func (l LLM) Enabled() bool {
	return l.Provider != ""
}

// Load reads configuration from an optional YAML file, a .env file and
// TRAINER_* environment variables. path may be empty.
func Load(path string) (*Config, error) {
	// .env is optional; a missing file is not an error.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		if dir, err := configHome(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.LLM.APIKey = apiKeyFor(cfg.LLM.Provider)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "local")
	v.SetDefault("log_level", "info")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.path", "")
	v.SetDefault("scripts.dir", "")
	v.SetDefault("scripts.timeout", "2s")
	v.SetDefault("scripts.watch", true)
	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("llm.max_attempts", 3)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.DB.Driver)
	}
	if c.DB.Driver == "postgres" && c.DB.DSN == "" {
		return fmt.Errorf("database.dsn is required for the postgres driver")
	}
	switch c.LLM.Provider {
	case "", "mock":
	case "anthropic", "openai", "gemini", "openrouter":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("an API key is required for the %s provider", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("unknown LLM provider %q", c.LLM.Provider)
	}
	if c.Scripts.Timeout <= 0 {
		return fmt.Errorf("scripts.timeout must be positive")
	}
	return nil
}

// apiKeyFor reads the provider key from TRAINER_<PROVIDER>_API_KEY, falling
// back to the vendor's conventional variable.
func apiKeyFor(provider string) string {
	if provider == "" || provider == "mock" {
		return ""
	}
	name := strings.ToUpper(provider)
	if k := os.Getenv(EnvPrefix + "_" + name + "_API_KEY"); k != "" {
		return k
	}
	return os.Getenv(name + "_API_KEY")
}

// configHome returns $XDG_CONFIG_HOME/trainer or ~/.config/trainer.
func configHome() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "trainer"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "trainer"), nil
}
