package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Identity storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendValkey = "valkey"
	BackendMemory = "memory"
	BackendNone   = "none"
)

// Config captures the settings of the risk client and its local mock service.
type Config struct {
	Clients  ClientsConfig  `yaml:"clients"`
	Identity IdentityConfig `yaml:"identity"`
	History  HistoryConfig  `yaml:"history"`
	Batch    BatchConfig    `yaml:"batch"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Mock     MockConfig     `yaml:"mock"`
}

// ClientsConfig groups integrations with remote services.
type ClientsConfig struct {
	Scoring ScoringClientConfig `yaml:"scoring"`
}

// ScoringClientConfig configures access to the scoring and run-storage service.
type ScoringClientConfig struct {
	BaseURL             string        `yaml:"baseURL"`
	PredictPath         string        `yaml:"predictPath"`
	PredictAndStorePath string        `yaml:"predictAndStorePath"`
	UserRunsPath        string        `yaml:"userRunsPath"`
	RunsPath            string        `yaml:"runsPath"`
	UsersPath           string        `yaml:"usersPath"`
	HealthPath          string        `yaml:"healthPath"`
	ModelsPath          string        `yaml:"modelsPath"`
	UserHeader          string        `yaml:"userHeader"`
	Timeout             time.Duration `yaml:"timeout"`
}

// IdentityConfig selects where the device user identifier is persisted.
type IdentityConfig struct {
	Backend    string       `yaml:"backend"`
	Key        string       `yaml:"key"`
	Fallback   string       `yaml:"fallback"`
	Path       string       `yaml:"path"`
	SQLitePath string       `yaml:"sqlitePath"`
	Valkey     ValkeyConfig `yaml:"valkey"`
}

// ValkeyConfig holds connection parameters for the Valkey identity backend.
type ValkeyConfig struct {
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
}

// HistoryConfig controls history paging.
type HistoryConfig struct {
	PageSize int `yaml:"pageSize"`
}

// BatchConfig controls concurrent batch submission.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// MetricsConfig controls Prometheus textfile export. An empty Textfile disables it.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// MockConfig configures the local mock scoring service.
type MockConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes"`
	ModelCycle      string        `yaml:"modelCycle"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("RISK_CLIENT_CONFIG")
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
	return &cfg, nil
}

// Default returns the built-in configuration without file or environment input.
func Default() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Clients: ClientsConfig{
			Scoring: ScoringClientConfig{
				BaseURL:             "http://localhost:8000",
				PredictPath:         "/v1/predict/t2d",
				PredictAndStorePath: "/v1/predict-and-store/t2d",
				UserRunsPath:        "/v1/users/{userId}/runs",
				RunsPath:            "/v1/runs",
				UsersPath:           "/v1/users",
				HealthPath:          "/v1/health",
				ModelsPath:          "/v1/models",
				UserHeader:          "X-User-ID",
				Timeout:             10 * time.Second,
			},
		},
		Identity: IdentityConfig{
			Backend:    BackendFile,
			Key:        "risk_user_id",
			Fallback:   "demo-user",
			Path:       defaultStatePath("identity.yaml"),
			SQLitePath: defaultStatePath("identity.db"),
			Valkey: ValkeyConfig{
				DialTimeout:  2 * time.Second,
				ReadTimeout:  500 * time.Millisecond,
				WriteTimeout: 500 * time.Millisecond,
				MaxRetries:   2,
			},
		},
		History: HistoryConfig{PageSize: 50},
		Batch:   BatchConfig{Concurrency: 4},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Mock: MockConfig{
			Address:         ":8000",
			GracefulTimeout: 5 * time.Second,
			MaxBodyBytes:    200000,
			ModelCycle:      "2017-2018",
		},
	}
}

func defaultStatePath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return name
	}
	return filepath.Join(dir, "risk-client", name)
}

// Validate reports settings the client cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Clients.Scoring.BaseURL) == "" {
		return errors.New("clients.scoring.baseURL is required")
	}
	if c.Clients.Scoring.Timeout <= 0 {
		return fmt.Errorf("clients.scoring.timeout must be positive, got %s", c.Clients.Scoring.Timeout)
	}
	switch c.Identity.Backend {
	case BackendFile, BackendSQLite, BackendValkey, BackendMemory, BackendNone:
	default:
		return fmt.Errorf("unknown identity backend %q", c.Identity.Backend)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RISK_CLIENT_BASE_URL"); v != "" {
		cfg.Clients.Scoring.BaseURL = v
	}
	if v := os.Getenv("RISK_CLIENT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Clients.Scoring.Timeout = d
		}
	}
	if v := os.Getenv("RISK_CLIENT_USER_HEADER"); v != "" {
		cfg.Clients.Scoring.UserHeader = v
	}
	if v := os.Getenv("RISK_CLIENT_IDENTITY_BACKEND"); v != "" {
		cfg.Identity.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("RISK_CLIENT_IDENTITY_PATH"); v != "" {
		cfg.Identity.Path = v
	}
	if v := os.Getenv("RISK_CLIENT_IDENTITY_KEY"); v != "" {
		cfg.Identity.Key = v
	}
	if v := os.Getenv("RISK_CLIENT_SQLITE_PATH"); v != "" {
		cfg.Identity.SQLitePath = v
	}
	if v := os.Getenv("RISK_CLIENT_VALKEY_ADDR"); v != "" {
		cfg.Identity.Valkey.Addr = v
	}
	if v := os.Getenv("RISK_CLIENT_VALKEY_PASSWORD"); v != "" {
		cfg.Identity.Valkey.Password = v
	}
	if v := os.Getenv("RISK_CLIENT_VALKEY_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Identity.Valkey.DB = db
		}
	}
	if v := os.Getenv("RISK_CLIENT_VALKEY_TLS"); strings.EqualFold(v, "true") || strings.EqualFold(v, "1") {
		cfg.Identity.Valkey.TLS = true
	}
	if v := os.Getenv("RISK_CLIENT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RISK_CLIENT_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("RISK_CLIENT_METRICS_TEXTFILE"); v != "" {
		cfg.Metrics.Textfile = v
	}
	if v := os.Getenv("RISK_CLIENT_BATCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Batch.Concurrency = n
		}
	}
	if v := os.Getenv("RISK_CLIENT_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.History.PageSize = n
		}
	}
	if v := os.Getenv("RISK_MOCK_ADDRESS"); v != "" {
		cfg.Mock.Address = v
	}
	if v := os.Getenv("RISK_MOCK_METRICS_ADDRESS"); v != "" {
		cfg.Mock.MetricsAddress = v
	}
}
