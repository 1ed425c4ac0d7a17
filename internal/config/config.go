// README: Config loader; QUICKFIX_* environment variables parsed with envconfig.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "QUICKFIX"

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	DirectoryStore = "store"
	DirectoryRedis = "redis"

	CacheLRU   = "lru"
	CacheRedis = "redis"

	AuthHeader   = "header"
	AuthFirebase = "firebase"
)

type Config struct {
	App        AppConfig
	HTTP       HTTPConfig
	DB         DBConfig
	Redis      RedisConfig
	Reroute    RerouteConfig
	Enrichment EnrichmentConfig
	Auth       AuthConfig
	Maps       MapsConfig
	Notify     NotifyConfig
}

type AppConfig struct {
	Env      string `envconfig:"ENV" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

func (a AppConfig) IsDev() bool { return strings.EqualFold(a.Env, "dev") }

type HTTPConfig struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

type DBConfig struct {
	Store    string `envconfig:"STORE" default:"memory"`
	DSN      string `envconfig:"DSN"`
	MaxConns int32  `envconfig:"MAX_CONNS" default:"16"`
}

type RedisConfig struct {
	Addr string `envconfig:"ADDR"`
	DB   int    `envconfig:"DB" default:"0"`
}

type RerouteConfig struct {
	AcceptWindow time.Duration `envconfig:"ACCEPT_WINDOW" default:"60s"`
	Exclusion    string        `envconfig:"EXCLUSION" default:"one_step"`
	// Directory selects where routing reads qualified vendors from.
	Directory string `envconfig:"DIRECTORY" default:"store"`
}

type EnrichmentConfig struct {
	GeminiKey   string        `envconfig:"GEMINI_KEY"`
	VisionModel string        `envconfig:"VISION_MODEL" default:"gemini-2.0-flash"`
	TextModel   string        `envconfig:"TEXT_MODEL" default:"gemini-2.0-flash"`
	Timeout     time.Duration `envconfig:"TIMEOUT" default:"20s"`
	Cache       string        `envconfig:"CACHE" default:"lru"`
	CacheSize   int           `envconfig:"CACHE_SIZE" default:"4096"`
	CacheTTL    time.Duration `envconfig:"CACHE_TTL" default:"720h"`
}

type AuthConfig struct {
	Mode                string `envconfig:"MODE" default:"header"`
	FirebaseProjectID   string `envconfig:"FIREBASE_PROJECT_ID"`
	FirebaseCredentials string `envconfig:"FIREBASE_CREDENTIALS"`
}

type MapsConfig struct {
	APIKey string `envconfig:"API_KEY"`
}

type NotifyConfig struct {
	Enabled bool `envconfig:"ENABLED" default:"false"`
}

// Load reads QUICKFIX_<SECTION>_<KEY> variables, e.g. QUICKFIX_DB_DSN or
// QUICKFIX_REROUTE_EXCLUSION.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DB.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("QUICKFIX_DB_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store %q", c.DB.Store)
	}
	if c.Reroute.AcceptWindow <= 0 {
		return fmt.Errorf("accept window must be positive, got %s", c.Reroute.AcceptWindow)
	}
	needsRedis := false
	switch c.Reroute.Directory {
	case DirectoryStore:
	case DirectoryRedis:
		needsRedis = true
	default:
		return fmt.Errorf("unknown routing directory %q", c.Reroute.Directory)
	}
	switch c.Enrichment.Cache {
	case CacheLRU:
	case CacheRedis:
		needsRedis = true
	default:
		return fmt.Errorf("unknown enrichment cache %q", c.Enrichment.Cache)
	}
	if needsRedis && c.Redis.Addr == "" {
		return fmt.Errorf("QUICKFIX_REDIS_ADDR is required for redis-backed components")
	}
	switch c.Auth.Mode {
	case AuthHeader:
	case AuthFirebase:
		if c.Auth.FirebaseProjectID == "" {
			return fmt.Errorf("QUICKFIX_AUTH_FIREBASE_PROJECT_ID is required for firebase auth")
		}
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}
	if c.Notify.Enabled && c.Auth.FirebaseProjectID == "" {
		return fmt.Errorf("QUICKFIX_AUTH_FIREBASE_PROJECT_ID is required for push notifications")
	}
	return nil
}
