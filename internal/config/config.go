package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/searchbridge/internal/domain/search/profile"
)

// Record store drivers.
const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config holds the searchbridge configuration.
type Config struct {
	HTTP     HTTPConfig      `yaml:"http"`
	Auth     AuthConfig      `yaml:"auth"`
	Elastic  ElasticConfig   `yaml:"elastic"`
	Records  RecordsConfig   `yaml:"records"`
	NATS     NATSConfig      `yaml:"nats"`
	Profiles []ProfileConfig `yaml:"profiles"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// ElasticConfig holds search backend settings.
type ElasticConfig struct {
	Addrs            []string      `yaml:"addrs"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	Index            string        `yaml:"index"`
	ReadinessTimeout int           `yaml:"readiness_timeout_sec"`
	Breaker          BreakerConfig `yaml:"breaker"`
}

// BreakerConfig holds circuit breaker settings for the search backend.
type BreakerConfig struct {
	Enabled          bool    `yaml:"enabled"`
	MinRequests      uint32  `yaml:"min_requests"`
	FailureRatio     float64 `yaml:"failure_ratio"`
	OpenTimeoutSec   int     `yaml:"open_timeout_sec"`
	HalfOpenMaxCalls uint32  `yaml:"half_open_max_calls"`
}

// RecordsConfig holds authoritative record store settings.
type RecordsConfig struct {
	Driver           string            `yaml:"driver"` // postgres, redis (default: postgres)
	DSN              string            `yaml:"dsn"`
	Tables           map[string]string `yaml:"tables"` // document type -> table (postgres)
	Addrs            []string          `yaml:"addrs"`
	Password         string            `yaml:"password"`
	KeyPrefix        string            `yaml:"key_prefix"`
	ReadinessTimeout int               `yaml:"readiness_timeout_sec"`
}

// NATSConfig holds change-feed settings. The consumer is off when URL is empty.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	Queue   string `yaml:"queue"`
}

// Enabled reports whether the change-feed consumer should run.
func (c NATSConfig) Enabled() bool { return c.URL != "" }

// ProfileConfig is the per-document-type search configuration.
type ProfileConfig struct {
	Type     string         `yaml:"type"`
	KeyField string         `yaml:"key_field"`
	Boost    []BoostConfig  `yaml:"boost"`
	Recency  *RecencyConfig `yaml:"recency"`
}

// BoostConfig is one boosted query field.
type BoostConfig struct {
	Field  string  `yaml:"field"`
	Weight float64 `yaml:"weight"`
}

// RecencyConfig is the implicit time window of a document type.
type RecencyConfig struct {
	Field      string `yaml:"field"`
	WindowDays int    `yaml:"window_days"`
	Mode       string `yaml:"mode"` // include (default), exclude
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates raw YAML.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Elastic.ReadinessTimeout <= 0 {
		c.Elastic.ReadinessTimeout = 30
	}
	if c.Records.Driver == "" {
		c.Records.Driver = DriverPostgres
	}
	if c.Records.ReadinessTimeout <= 0 {
		c.Records.ReadinessTimeout = 10
	}
	if c.NATS.Enabled() && c.NATS.Queue == "" {
		c.NATS.Queue = "searchbridge"
	}
	for i := range c.Profiles {
		if r := c.Profiles[i].Recency; r != nil && r.Mode == "" {
			r.Mode = string(profile.Include)
		}
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Elastic.Addrs) == 0 {
		return fmt.Errorf("elastic.addrs is required")
	}
	if c.Elastic.Index == "" {
		return fmt.Errorf("elastic.index is required")
	}
	if r := c.Elastic.Breaker.FailureRatio; r < 0 || r > 1 {
		return fmt.Errorf("elastic.breaker.failure_ratio must be between 0 and 1, got %v", r)
	}
	switch c.Records.Driver {
	case DriverPostgres:
		if c.Records.DSN == "" {
			return fmt.Errorf("records.dsn is required for driver %q", DriverPostgres)
		}
	case DriverRedis:
		if len(c.Records.Addrs) == 0 {
			return fmt.Errorf("records.addrs is required for driver %q", DriverRedis)
		}
	default:
		return fmt.Errorf("records.driver must be %q or %q, got %q", DriverPostgres, DriverRedis, c.Records.Driver)
	}
	if c.NATS.Enabled() && c.NATS.Subject == "" {
		return fmt.Errorf("nats.subject is required when nats.url is set")
	}
	if _, err := c.ProfileSet(); err != nil {
		return fmt.Errorf("profiles: %w", err)
	}
	return nil
}

// DomainProfiles converts configured profiles into domain profiles without validating them.
func (c *Config) DomainProfiles() []profile.Profile {
	profiles := make([]profile.Profile, 0, len(c.Profiles))
	for _, pc := range c.Profiles {
		p := profile.Profile{DocType: pc.Type, KeyField: pc.KeyField}
		for _, b := range pc.Boost {
			p.Boost = append(p.Boost, profile.Field{Name: b.Field, Weight: b.Weight})
		}
		if r := pc.Recency; r != nil {
			p.Recency = &profile.Recency{
				Field:  r.Field,
				Window: time.Duration(r.WindowDays) * 24 * time.Hour,
				Mode:   profile.RecencyMode(r.Mode),
			}
		}
		profiles = append(profiles, p)
	}
	return profiles
}

// ProfileSet converts configured profiles into the validated domain profile set.
func (c *Config) ProfileSet() (profile.Set, error) {
	set, err := profile.NewSet(c.DomainProfiles()...)
	if err != nil {
		return profile.Set{}, fmt.Errorf("build profile set: %w", err)
	}
	return set, nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
