package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const envPrefix = "NLQUERY_"

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Database      DatabaseConfig
	Generate      GenerateConfig
	AI            AIConfig
	CORS          CORSConfig
	Console       ConsoleConfig
	Journal       JournalConfig
	ObjectStore   ObjectStoreConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type GenerateConfig struct {
	RowLimit int
	// Schema is a literal table description for the prompt. SchemaFile is read when
	// Schema is empty. With neither set the schema is read from the database.
	Schema            string
	SchemaFile        string
	DependencyTimeout time.Duration
}

type AIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

type CORSConfig struct {
	AllowedOrigin string
}

type ConsoleConfig struct {
	Address          string
	Endpoint         string
	APIKey           string
	RequestTimeout   time.Duration
	StatusClearDelay time.Duration
}

type JournalConfig struct {
	Enabled       bool
	Prefix        string
	BatchSize     int
	MaxPending    int
	FlushInterval time.Duration
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup(envPrefix + "PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid %sPROFILE: %q", envPrefix, profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	env := envReader{lookup: lookup}
	env.String("SERVICE_NAME", &cfg.Service.Name)

	env.String("HTTP_ADDR", &cfg.HTTP.Address)
	env.Duration("HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout)
	env.Duration("HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout)
	env.Duration("HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout)

	env.String("DB_DRIVER", &cfg.Database.Driver)
	env.String("DB_DSN", &cfg.Database.DSN)
	env.Int("DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns)
	env.Int("DB_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns)
	env.Duration("DB_CONN_MAX_IDLE_TIME", &cfg.Database.ConnMaxIdleTime)
	env.Duration("DB_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime)

	env.Int("GENERATE_ROW_LIMIT", &cfg.Generate.RowLimit)
	env.String("GENERATE_SCHEMA", &cfg.Generate.Schema)
	env.String("GENERATE_SCHEMA_FILE", &cfg.Generate.SchemaFile)
	env.Duration("GENERATE_DEPENDENCY_TIMEOUT", &cfg.Generate.DependencyTimeout)

	env.String("AI_BASE_URL", &cfg.AI.BaseURL)
	if _, ok := lookup(envPrefix + "AI_API_KEY"); ok {
		env.String("AI_API_KEY", &cfg.AI.APIKey)
	} else if raw, ok := lookup("DEEPSEEK_API_KEY"); ok {
		cfg.AI.APIKey = strings.TrimSpace(raw)
	}
	env.String("AI_MODEL", &cfg.AI.Model)
	env.Float("AI_TEMPERATURE", &cfg.AI.Temperature)
	env.Duration("AI_TIMEOUT", &cfg.AI.Timeout)

	env.String("CORS_ALLOWED_ORIGIN", &cfg.CORS.AllowedOrigin)

	env.String("CONSOLE_ADDR", &cfg.Console.Address)
	env.String("CONSOLE_ENDPOINT", &cfg.Console.Endpoint)
	env.String("CONSOLE_API_KEY", &cfg.Console.APIKey)
	env.Duration("CONSOLE_REQUEST_TIMEOUT", &cfg.Console.RequestTimeout)
	env.Duration("CONSOLE_STATUS_CLEAR_DELAY", &cfg.Console.StatusClearDelay)

	env.Bool("JOURNAL_ENABLED", &cfg.Journal.Enabled)
	env.String("JOURNAL_PREFIX", &cfg.Journal.Prefix)
	env.Int("JOURNAL_BATCH_SIZE", &cfg.Journal.BatchSize)
	env.Int("JOURNAL_MAX_PENDING", &cfg.Journal.MaxPending)
	env.Duration("JOURNAL_FLUSH_INTERVAL", &cfg.Journal.FlushInterval)

	env.String("OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint)
	env.String("OBJECTSTORE_REGION", &cfg.ObjectStore.Region)
	env.String("OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket)
	env.String("OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID)
	env.String("OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey)
	env.Bool("OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL)
	env.String("OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix)
	env.Bool("OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket)

	env.Bool("LOG_JSON", &cfg.Observability.LogJSON)
	env.LogLevel("LOG_LEVEL", &cfg.Observability.LogLevel)

	env.Bool("AUTH_REQUIRED", &cfg.Auth.Required)
	env.String("AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys)

	if err := env.Err(); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.Service.Name == "" {
		errs = append(errs, fmt.Errorf("service name is required"))
	}
	if c.HTTP.Address == "" {
		errs = append(errs, fmt.Errorf("http address is required"))
	}
	if c.Generate.RowLimit < 0 {
		errs = append(errs, fmt.Errorf("generate row limit must be >= 0"))
	}
	if c.Journal.Enabled && c.Journal.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("journal batch size must be > 0"))
	}
	if c.Console.StatusClearDelay < 0 {
		errs = append(errs, fmt.Errorf("console status clear delay must be >= 0"))
	}
	return errors.Join(errs...)
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "nlquery-api"},
		HTTP: HTTPConfig{
			Address:      ":5678",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "mysql",
			DSN:             "readonly:readonly@tcp(localhost:3306)/hr_data",
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Generate: GenerateConfig{
			RowLimit:          1000,
			DependencyTimeout: 90 * time.Second,
		},
		AI: AIConfig{
			BaseURL:     "https://api.deepseek.com",
			Model:       "deepseek-chat",
			Temperature: 0,
			Timeout:     60 * time.Second,
		},
		CORS: CORSConfig{AllowedOrigin: "*"},
		Console: ConsoleConfig{
			Address:          ":8080",
			Endpoint:         "http://localhost:5678/generate_sql",
			StatusClearDelay: 2500 * time.Millisecond,
		},
		Journal: JournalConfig{
			Enabled:       false,
			Prefix:        "journal",
			BatchSize:     100,
			MaxPending:    1000,
			FlushInterval: 30 * time.Second,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "nlquery",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			AutoCreateBucket: true,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":15678"
		cfg.Console.Address = ":18080"
		cfg.Database.Driver = "sqlite"
		cfg.Database.DSN = ":memory:"
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.CORS.AllowedOrigin = ""
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}
