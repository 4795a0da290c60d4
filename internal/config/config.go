// Package config loads the server configuration from defaults, an optional config file, a .env file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "APPROVALS"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Approval ApprovalConfig `mapstructure:"approval"`
	Store    StoreConfig    `mapstructure:"store"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
	CORS bool   `mapstructure:"cors"`
}

type ApprovalConfig struct {
	Timeout       time.Duration `mapstructure:"timeout" validate:"gt=0"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`

	// RecoverGrace is how long a run must be idle before it is considered abandoned and recovered
	RecoverGrace time.Duration `mapstructure:"recover_grace" validate:"gte=0"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=memory sqlite mysql redis"`
	Path    string `mapstructure:"path" validate:"required_if=Backend sqlite"`

	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`

	CheckpointCache CacheConfig `mapstructure:"checkpoint_cache"`
}

type MySQLConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db" validate:"gte=0"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// CacheConfig configures the checkpoint cache. A size of 0 disables it.
type CacheConfig struct {
	Size int           `mapstructure:"size" validate:"gte=0"`
	TTL  time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

type LLMConfig struct {
	Provider       string        `mapstructure:"provider" validate:"oneof=gemini anthropic"`
	Model          string        `mapstructure:"model"`
	APIKey         string        `mapstructure:"api_key" validate:"required"`
	MaxRetries     uint64        `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"gt=0"`
}

type TracingConfig struct {
	Exporter string `mapstructure:"exporter" validate:"oneof=none stdout otlp"`
	Endpoint string `mapstructure:"endpoint"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

var defaults = map[string]any{
	"server.addr": ":8016",
	"server.cors": true,

	"approval.timeout":        300 * time.Second,
	"approval.sweep_interval": 30 * time.Second,
	"approval.recover_grace":  2 * time.Minute,

	"store.backend":               "memory",
	"store.path":                  "data/approvals.sqlite",
	"store.mysql.host":            "localhost",
	"store.mysql.port":            3306,
	"store.mysql.user":            "root",
	"store.mysql.password":        "",
	"store.mysql.database":        "approvals",
	"store.redis.addr":            "localhost:6379",
	"store.redis.password":        "",
	"store.redis.db":              0,
	"store.redis.key_prefix":      "approvals",
	"store.checkpoint_cache.size": 128,
	"store.checkpoint_cache.ttl":  10 * time.Minute,

	"llm.provider":        "gemini",
	"llm.model":           "",
	"llm.api_key":         "",
	"llm.max_retries":     3,
	"llm.initial_backoff": 500 * time.Millisecond,

	"tracing.exporter": "none",
	"tracing.endpoint": "",

	"log.level":  "info",
	"log.format": "text",
}

var validate = validator.New()

// Load reads the configuration. configFile is optional. Variables from a .env file in the working
// directory are loaded into the environment first, without overriding variables already set.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Variable names understood by earlier deployments
	_ = v.BindEnv("approval.timeout_seconds", "APPROVAL_TIMEOUT_SECONDS")
	_ = v.BindEnv("llm.google_api_key", "GOOGLE_API_KEY")
	_ = v.BindEnv("llm.anthropic_api_key", "ANTHROPIC_API_KEY")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %v: %w", configFile, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if v.IsSet("approval.timeout_seconds") {
		c.Approval.Timeout = time.Duration(v.GetInt("approval.timeout_seconds")) * time.Second
	}

	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "gemini":
			c.LLM.APIKey = v.GetString("llm.google_api_key")
		case "anthropic":
			c.LLM.APIKey = v.GetString("llm.anthropic_api_key")
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	switch c.Store.Backend {
	case "mysql":
		if c.Store.MySQL.Host == "" || c.Store.MySQL.Database == "" {
			return errors.New("invalid config: store.mysql.host and store.mysql.database are required for the mysql backend")
		}
	case "redis":
		if c.Store.Redis.Addr == "" {
			return errors.New("invalid config: store.redis.addr is required for the redis backend")
		}
	}

	if c.Tracing.Exporter == "otlp" && c.Tracing.Endpoint == "" {
		return errors.New("invalid config: tracing.endpoint is required for the otlp exporter")
	}

	return nil
}

// NewLogger returns a logger writing to w with the configured level and format.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}
