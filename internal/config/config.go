package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite"
)

type Config struct {
	App       App       `yaml:"app"`
	HTTP      HTTP      `yaml:"http"`
	GRPC      GRPC      `yaml:"grpc"`
	Log       Log       `yaml:"log"`
	Storage   Storage   `yaml:"storage"`
	Hive      Hive      `yaml:"hive"`
	Redis     Redis     `yaml:"redis"`
	Payment   Payment   `yaml:"payment"`
	Admin     Admin     `yaml:"admin"`
	RateLimit RateLimit `yaml:"rate_limit"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"cinexpo-backend"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

type HTTP struct {
	Addr            string        `yaml:"addr" env:"HTTP_ADDR" env-default:":8000"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
	// Empty allows any origin
	AllowedOrigins []string `yaml:"allowed_origins" env:"HTTP_ALLOWED_ORIGINS" env-separator:","`
	// Honor X-Real-IP / X-Forwarded-For; enable only behind a proxy that sets them
	TrustProxyHeaders bool `yaml:"trust_proxy_headers" env:"HTTP_TRUST_PROXY_HEADERS" env-default:"false"`
}

type GRPC struct {
	Enabled bool   `yaml:"enabled" env:"GRPC_ENABLED" env-default:"true"`
	Addr    string `yaml:"addr" env:"GRPC_ADDR" env-default:":8080"`
}

type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

type Storage struct {
	Driver     string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"sqlite"`
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"tickets.db"`
	// DSN takes precedence over the individual Postgres fields
	DSN      string `yaml:"dsn" env:"DB_CONN_STR"`
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"DB_USER" env-default:"postgres"`
	Password string `yaml:"password" env:"DB_PASSWORD" env-default:"postgres"`
	DBName   string `yaml:"dbname" env:"DB_NAME" env-default:"cinexpo"`
	SSLMode  string `yaml:"sslmode" env:"DB_SSLMODE" env-default:"disable"`
}

// PostgresDSN returns the lib/pq connection string
func (s Storage) PostgresDSN() string {
	if s.DSN != "" {
		return s.DSN
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		s.Host, s.Port, s.User, s.Password, s.DBName, s.SSLMode)
}

type Hive struct {
	Nodes             []string      `yaml:"nodes" env:"HIVE_NODES" env-separator:"," env-default:"https://api.hive.blog,https://rpc.ecency.com"`
	RequestTimeout    time.Duration `yaml:"request_timeout" env:"HIVE_REQUEST_TIMEOUT" env-default:"5s"`
	ResolveTimeout    time.Duration `yaml:"resolve_timeout" env:"HIVE_RESOLVE_TIMEOUT" env-default:"10s"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"HIVE_REQUESTS_PER_SECOND" env-default:"10"`
	Burst             int           `yaml:"burst" env:"HIVE_BURST" env-default:"5"`
}

type Redis struct {
	Enabled  bool          `yaml:"enabled" env:"REDIS_ENABLED" env-default:"false"`
	Addr     string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	TTL      time.Duration `yaml:"ttl" env:"REDIS_TTL" env-default:"24h"`
}

type Payment struct {
	Destination string `yaml:"destination" env:"EXPECTED_DEST" env-default:"cinexpo"`
	Amount      string `yaml:"amount" env:"EXPECTED_AMOUNT" env-default:"0.500"`
	Currency    string `yaml:"currency" env:"EXPECTED_CURRENCY" env-default:"HBD"`
	QRSize      int    `yaml:"qr_size" env:"QR_SIZE" env-default:"256"`
}

type Admin struct {
	Usernames []string `yaml:"usernames" env:"ADMIN_USERNAMES" env-separator:"," env-default:"admin,cinexpo"`
}

type RateLimit struct {
	RequestsPerMinute int `yaml:"requests_per_minute" env:"RATE_LIMIT_RPM" env-default:"30"`
	Burst             int `yaml:"burst" env:"RATE_LIMIT_BURST" env-default:"10"`
}

// New reads config.yaml (or the file named by CONFIG_PATH) and lets env vars override it.
// Without a file only env vars and defaults apply.
func New() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return Load(path)
}

// Load reads the config from path, falling back to env vars if the file does not exist
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	return cfg, nil
}

// Validate checks the values that defaults cannot make safe
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageDriverPostgres, StorageDriverSQLite:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if len(c.Hive.Nodes) == 0 {
		return errors.New("at least one hive node is required")
	}

	admins := 0
	for _, u := range c.Admin.Usernames {
		if strings.TrimSpace(u) != "" {
			admins++
		}
	}
	if admins == 0 {
		return errors.New("at least one admin username is required")
	}

	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return errors.New("rate limit values cannot be negative")
	}

	return nil
}
