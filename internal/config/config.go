package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	StoreMemory   = "memory"
	StoreDynamoDB = "dynamodb"
	StoreRedis    = "redis"
	StoreSQLite   = "sqlite"
)

// modelDefaults holds the chat and catalog models used when CHAT_MODEL or
// CATALOG_MODEL is unset, per provider.
var modelDefaults = map[string]struct{ chat, catalog string }{
	ProviderGemini: {chat: "gemini-3-pro-preview", catalog: "gemini-3-flash-preview"},
	ProviderOpenAI: {chat: "gpt-4o", catalog: "gpt-4o-mini"},
}

type Completion struct {
	Provider        string        `yaml:"provider" env:"COMPLETION_PROVIDER" env-default:"gemini"`
	BaseURL         string        `yaml:"base_url" env:"COMPLETION_BASE_URL"`
	ChatModel       string        `yaml:"chat_model" env:"CHAT_MODEL"`
	CatalogModel    string        `yaml:"catalog_model" env:"CATALOG_MODEL"`
	DispatchTimeout time.Duration `yaml:"dispatch_timeout" env:"DISPATCH_TIMEOUT" env-default:"30s"`
	APIKeyParam     string        `yaml:"api_key_param" env:"API_KEY_PARAM"`
}

type Store struct {
	Backend       string        `yaml:"backend" env:"STORE_BACKEND" env-default:"memory"`
	Table         string        `yaml:"table" env:"STATE_TABLE"`
	RedisAddr     string        `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" env:"REDIS_DB" env-default:"0"`
	SQLitePath    string        `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"mimic.db"`
	SessionTTL    time.Duration `yaml:"session_ttl" env:"SESSION_TTL" env-default:"720h"`
}

type HTTP struct {
	Addr             string `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
	MaxMessageLength int    `yaml:"max_message_length" env:"MAX_MESSAGE_LENGTH" env-default:"2000"`
}

type Config struct {
	Completion Completion `yaml:"completion"`
	Store      Store      `yaml:"store"`
	HTTP       HTTP       `yaml:"http"`
	LogLevel   string     `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
}

// Load reads the YAML file named by CONFIG_PATH when set, then applies
// environment overrides and defaults.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_PATH"))
}

func LoadFile(path string) (*Config, error) {
	var cfg Config
	if strings.TrimSpace(path) != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	c.Completion.Provider = strings.ToLower(strings.TrimSpace(c.Completion.Provider))
	defaults, ok := modelDefaults[c.Completion.Provider]
	if !ok {
		return fmt.Errorf("config: unknown completion provider %q", c.Completion.Provider)
	}
	c.Completion.ChatModel = strings.TrimSpace(c.Completion.ChatModel)
	if c.Completion.ChatModel == "" {
		c.Completion.ChatModel = defaults.chat
	}
	c.Completion.CatalogModel = strings.TrimSpace(c.Completion.CatalogModel)
	if c.Completion.CatalogModel == "" {
		c.Completion.CatalogModel = defaults.catalog
	}
	if c.Completion.DispatchTimeout < 0 {
		return fmt.Errorf("config: dispatch timeout must not be negative")
	}

	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	switch c.Store.Backend {
	case StoreMemory:
	case StoreDynamoDB:
		if strings.TrimSpace(c.Store.Table) == "" {
			return fmt.Errorf("config: STATE_TABLE is required for the dynamodb store")
		}
	case StoreRedis:
		if strings.TrimSpace(c.Store.RedisAddr) == "" {
			return fmt.Errorf("config: REDIS_ADDR is required for the redis store")
		}
	case StoreSQLite:
		if strings.TrimSpace(c.Store.SQLitePath) == "" {
			return fmt.Errorf("config: SQLITE_PATH is required for the sqlite store")
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	if c.HTTP.MaxMessageLength <= 0 {
		return fmt.Errorf("config: max message length must be positive")
	}
	return nil
}
