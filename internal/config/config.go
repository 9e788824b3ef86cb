package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/taskforcehq/taskforce-forecast/internal/utils"
)

// Config captures every setting required to boot the forecast engine.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Dataset   DatasetConfig   `yaml:"dataset"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Logging   LoggingConfig   `yaml:"logging"`
	Cache     CacheConfig     `yaml:"cache"`
}

// ServerConfig controls the gRPC and HTTP listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	HTTPAddress     string        `yaml:"httpAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
	RateLimitRPS    float64       `yaml:"rateLimitRPS"`
	RateLimitBurst  int           `yaml:"rateLimitBurst"`
}

// DatabaseConfig configures the PostgreSQL dataset source.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxConns        int           `yaml:"maxConns"`
	MinConns        int           `yaml:"minConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `yaml:"connMaxIdleTime"`
	MigrationsPath  string        `yaml:"migrationsPath"`
	AutoMigrate     bool          `yaml:"autoMigrate"`
}

// DatasetConfig describes where history comes from and how often it is refreshed.
type DatasetConfig struct {
	CSVPath         string        `yaml:"csvPath"`
	Epoch           string        `yaml:"epoch"`
	RefreshInterval time.Duration `yaml:"refreshInterval"`
}

// ArtifactsConfig points at the trained model bundle.
type ArtifactsConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls caching of dataset snapshots.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Backend      string        `yaml:"backend"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	DatasetTTL   time.Duration `yaml:"datasetTTL"`
}

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendValkey = "valkey"
)

// Load initialises Config from defaults, an optional YAML file, an optional .env file and the environment.
func Load(path string) (*Config, error) {
	// .env is optional; real environment variables take precedence over it.
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("TASKFORCE_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50051",
			HTTPAddress:     ":8080",
			GracefulTimeout: 10 * time.Second,
			RateLimitRPS:    10,
			RateLimitBurst:  20,
		},
		Database: DatabaseConfig{
			MaxConns:        10,
			MinConns:        1,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			MigrationsPath:  "migrations",
		},
		Dataset: DatasetConfig{
			Epoch:           "2021-01-01",
			RefreshInterval: time.Hour,
		},
		Artifacts: ArtifactsConfig{Path: "configs/artifacts.yaml"},
		Logging:   LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Enabled:      false,
			Backend:      CacheBackendMemory,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			DatasetTTL:   time.Hour,
		},
	}
}

// Validate aggregates every configuration problem into a single error.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.URL == "" && c.Dataset.CSVPath == "" {
		errs = append(errs, "one of database.url or dataset.csvPath is required")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		errs = append(errs, "database.minConns cannot exceed database.maxConns")
	}
	if c.Artifacts.Path == "" {
		errs = append(errs, "artifacts.path is required")
	}
	if c.Dataset.Epoch != "" {
		if _, err := utils.ParseDate(c.Dataset.Epoch); err != nil {
			errs = append(errs, fmt.Sprintf("dataset.epoch: %v", err))
		}
	}
	if c.Dataset.RefreshInterval < 0 {
		errs = append(errs, "dataset.refreshInterval cannot be negative")
	}
	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case CacheBackendMemory:
		case CacheBackendValkey:
			if c.Cache.Addr == "" {
				errs = append(errs, "cache.addr is required for the valkey backend")
			}
		default:
			errs = append(errs, fmt.Sprintf("cache.backend %q is not one of memory, valkey", c.Cache.Backend))
		}
	}

	if len(errs) > 0 {
		return errors.New("configuration errors:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}

// EpochTime returns the parsed dataset epoch, or the zero time when unset.
func (c *Config) EpochTime() time.Time {
	t, err := utils.ParseDate(c.Dataset.Epoch)
	if err != nil {
		return time.Time{}
	}
	return t
}

func applyEnvOverrides(cfg *Config) {
	setString("TASKFORCE_SERVER_ADDRESS", &cfg.Server.Address)
	setString("TASKFORCE_HTTP_ADDRESS", &cfg.Server.HTTPAddress)
	setDuration("TASKFORCE_GRACEFUL_TIMEOUT", &cfg.Server.GracefulTimeout)
	if v := os.Getenv("TASKFORCE_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.Server.AllowedOrigins = append(cfg.Server.AllowedOrigins, origin)
			}
		}
	}
	if v := os.Getenv("TASKFORCE_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Server.RateLimitRPS = f
		}
	}
	setInt("TASKFORCE_RATE_LIMIT_BURST", &cfg.Server.RateLimitBurst)

	setString("TASKFORCE_DATABASE_URL", &cfg.Database.URL)
	setInt("TASKFORCE_DB_MAX_CONNS", &cfg.Database.MaxConns)
	setInt("TASKFORCE_DB_MIN_CONNS", &cfg.Database.MinConns)
	setString("TASKFORCE_MIGRATIONS_PATH", &cfg.Database.MigrationsPath)
	setBool("TASKFORCE_AUTO_MIGRATE", &cfg.Database.AutoMigrate)

	setString("TASKFORCE_DATASET_CSV", &cfg.Dataset.CSVPath)
	setString("TASKFORCE_DATASET_EPOCH", &cfg.Dataset.Epoch)
	setDuration("TASKFORCE_DATASET_REFRESH_INTERVAL", &cfg.Dataset.RefreshInterval)

	setString("TASKFORCE_ARTIFACTS_PATH", &cfg.Artifacts.Path)

	setString("TASKFORCE_LOG_LEVEL", &cfg.Logging.Level)
	if v := os.Getenv("TASKFORCE_LOG_FORMAT"); v != "" {
		cfg.Logging.JSON = strings.EqualFold(v, "json")
	}

	setBool("TASKFORCE_CACHE_ENABLED", &cfg.Cache.Enabled)
	setString("TASKFORCE_CACHE_BACKEND", &cfg.Cache.Backend)
	setString("TASKFORCE_CACHE_ADDR", &cfg.Cache.Addr)
	setString("TASKFORCE_CACHE_USERNAME", &cfg.Cache.Username)
	setString("TASKFORCE_CACHE_PASSWORD", &cfg.Cache.Password)
	setInt("TASKFORCE_CACHE_DB", &cfg.Cache.DB)
	setBool("TASKFORCE_CACHE_TLS", &cfg.Cache.TLS)
	setInt("TASKFORCE_CACHE_MAX_RETRIES", &cfg.Cache.MaxRetries)
	setDuration("TASKFORCE_CACHE_DATASET_TTL", &cfg.Cache.DatasetTTL)
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.EqualFold(v, "true") || v == "1"
	}
}

func setDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
