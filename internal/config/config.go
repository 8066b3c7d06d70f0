// Package config loads the server configuration. Values are layered: built-in
// defaults, then an optional YAML file, then a .env file, then the process
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAdminKey = "fixit-admin-2026"
	DefaultPort     = "8080"

	// ConfigPathEnv names the YAML file when --config is not given
	ConfigPathEnv = "FIXIT_CONFIG"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Image    ImageConfig    `yaml:"image"`
	Auth     AuthConfig     `yaml:"auth"`
	MongoDB  MongoDBConfig  `yaml:"mongodb"`
	Progress ProgressConfig `yaml:"progress"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	BodyLimit       string        `yaml:"body_limit"`
}

type GeminiConfig struct {
	APIKey          string `yaml:"api_key"`
	Model           string `yaml:"model"`
	MaxOutputTokens int32  `yaml:"max_output_tokens"`
}

type GatewayConfig struct {
	CallsPerMinute int           `yaml:"calls_per_minute"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	CacheSize      int           `yaml:"cache_size"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
	DailyBudget    int           `yaml:"daily_budget"`
}

type PipelineConfig struct {
	EnableWebGrounding bool    `yaml:"enable_web_grounding"`
	LocalizationFloor  float64 `yaml:"localization_floor"`
}

type ImageConfig struct {
	MaxDimension int `yaml:"max_dimension"`
	JPEGQuality  int `yaml:"jpeg_quality"`
}

type AuthConfig struct {
	AdminKey  string        `yaml:"admin_key"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// MongoDBConfig enables the MongoDB audit log when URI is set
type MongoDBConfig struct {
	URI       string        `yaml:"uri"`
	Database  string        `yaml:"database"`
	Retention time.Duration `yaml:"retention"`
}

type ProgressConfig struct {
	BacklogTTL      time.Duration `yaml:"backlog_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            DefaultPort,
			ShutdownTimeout: 10 * time.Second,
			BodyLimit:       "25M",
		},
		Gemini: GeminiConfig{
			Model:           "gemini-2.5-flash",
			MaxOutputTokens: 8000,
		},
		Gateway: GatewayConfig{
			CallsPerMinute: 5,
			CacheTTL:       5 * time.Minute,
			CacheSize:      256,
			RetryBackoff:   2 * time.Second,
			CallTimeout:    60 * time.Second,
			DailyBudget:    1500,
		},
		Pipeline: PipelineConfig{
			EnableWebGrounding: true,
			LocalizationFloor:  0.3,
		},
		Image: ImageConfig{
			MaxDimension: 1024,
			JPEGQuality:  85,
		},
		Auth: AuthConfig{
			AdminKey: DefaultAdminKey,
			TokenTTL: time.Hour,
		},
		MongoDB: MongoDBConfig{
			Database: "fixit",
		},
		Progress: ProgressConfig{
			BacklogTTL:      10 * time.Minute,
			CleanupInterval: 5 * time.Minute,
		},
	}
}

// Load builds the configuration. path may be empty, in which case FIXIT_CONFIG
// is consulted; a missing .env file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&c.Gemini.Model, "GEMINI_MODEL_NAME")
	setString(&c.Server.Port, "PORT")
	setString(&c.Auth.AdminKey, "ADMIN_KEY")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.MongoDB.URI, "MONGODB_URI")
	setString(&c.MongoDB.Database, "MONGODB_DATABASE")

	var errs []error
	errs = append(errs,
		setBool(&c.Pipeline.EnableWebGrounding, "ENABLE_WEB_GROUNDING"),
		setInt(&c.Gateway.CallsPerMinute, "CALLS_PER_MINUTE"),
		setInt(&c.Gateway.DailyBudget, "DAILY_REQUEST_BUDGET"),
		setDuration(&c.Gateway.CacheTTL, "CACHE_TTL"),
		setDuration(&c.Gateway.CallTimeout, "MODEL_CALL_TIMEOUT"),
	)
	return errors.Join(errs...)
}

// Validate checks ranges and fills secrets that can be derived
func (c *Config) Validate() error {
	c.Server.Port = strings.TrimPrefix(strings.TrimSpace(c.Server.Port), ":")
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("server port must be numeric, got %q", c.Server.Port)
	}
	if c.Gateway.CallsPerMinute <= 0 {
		return fmt.Errorf("calls per minute must be positive, got %d", c.Gateway.CallsPerMinute)
	}
	if c.Gateway.DailyBudget <= 0 {
		return fmt.Errorf("daily budget must be positive, got %d", c.Gateway.DailyBudget)
	}
	if c.Gateway.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive, got %d", c.Gateway.CacheSize)
	}
	if c.Pipeline.LocalizationFloor <= 0 || c.Pipeline.LocalizationFloor >= 1 {
		return fmt.Errorf("localization floor must be between 0 and 1, got %f", c.Pipeline.LocalizationFloor)
	}
	if c.Image.JPEGQuality < 1 || c.Image.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality must be between 1 and 100, got %d", c.Image.JPEGQuality)
	}
	if c.Image.MaxDimension <= 0 {
		return fmt.Errorf("max image dimension must be positive, got %d", c.Image.MaxDimension)
	}
	if c.Auth.AdminKey == "" {
		return fmt.Errorf("admin key is required")
	}
	// Tokens stay verifiable across restarts only with an explicit secret
	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = c.Auth.AdminKey
	}
	return nil
}

// UseMockModel reports whether no model credentials are configured
func (c *Config) UseMockModel() bool {
	return c.Gemini.APIKey == ""
}

// UseMongoDB reports whether the audit log goes to MongoDB
func (c *Config) UseMongoDB() bool {
	return c.MongoDB.URI != ""
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
