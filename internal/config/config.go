package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvDevelopment is the only environment allowed to run without a JWT secret.
const EnvDevelopment = "development"

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendBolt     = "bolt"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Store       StoreConfig
	Database    DatabaseConfig
	Bolt        BoltConfig
	Redis       RedisConfig
	Events      EventsConfig
	Ingester    IngesterConfig
	JWT         JWTConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
}

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type StoreConfig struct {
	Backend string
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type BoltConfig struct {
	Path string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type EventsConfig struct {
	Stream         string
	Group          string
	Consumer       string
	PublishTimeout time.Duration
	MaxLen         int64
	TrimInterval   time.Duration
}

type IngesterConfig struct {
	Enabled      bool
	BatchSize    int
	Block        time.Duration
	StoreTimeout time.Duration
	Backoff      time.Duration
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so the service can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "todolog"
	}

	cfg := &Config{
		AppName:     getString("APP_NAME", "todolog"),
		Environment: getString("APP_ENV", EnvDevelopment),
		HTTP: HTTPConfig{
			Host:         getString("SERVER_HOST", "0.0.0.0"),
			Port:         getString("SERVER_PORT", "5000"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Store: StoreConfig{
			Backend: getString("STORE_BACKEND", BackendPostgres),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "todolog"),
			User:            getString("DB_USER", "todolog"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Bolt: BoltConfig{
			Path: getString("BOLTDB_PATH", "./data/todolog.db"),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		Events: EventsConfig{
			Stream:         getString("EVENTS_STREAM", "todo-events"),
			Group:          getString("EVENTS_GROUP", "todo-audit"),
			Consumer:       getString("EVENTS_CONSUMER", hostname),
			PublishTimeout: getDuration("EVENTS_PUBLISH_TIMEOUT", 3*time.Second),
			MaxLen:         int64(getInt("EVENTS_MAX_LEN", 100_000)),
			TrimInterval:   getDuration("EVENTS_TRIM_INTERVAL", 10*time.Minute),
		},
		Ingester: IngesterConfig{
			Enabled:      getBool("INGESTER_ENABLED", true),
			BatchSize:    getInt("INGESTER_BATCH_SIZE", 50),
			Block:        getDuration("INGESTER_BLOCK", 2*time.Second),
			StoreTimeout: getDuration("INGESTER_STORE_TIMEOUT", 5*time.Second),
			Backoff:      getDuration("INGESTER_BACKOFF", time.Second),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			Issuer: os.Getenv("JWT_ISSUER"),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendPostgres, BackendBolt:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	if c.Events.Stream == "" || c.Events.Group == "" || c.Events.Consumer == "" {
		return fmt.Errorf("events stream, group and consumer must be set")
	}
	if c.Ingester.BatchSize <= 0 {
		return fmt.Errorf("INGESTER_BATCH_SIZE must be positive, got %d", c.Ingester.BatchSize)
	}
	if c.Ingester.Block <= 0 {
		return fmt.Errorf("INGESTER_BLOCK must be positive, got %s", c.Ingester.Block)
	}
	if c.JWT.Secret == "" && c.Environment != EnvDevelopment {
		return fmt.Errorf("JWT_SECRET is required when APP_ENV=%s", c.Environment)
	}
	return nil
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
