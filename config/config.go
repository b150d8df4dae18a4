// config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Freshness and retry policy defaults. The staleness window approximates the
// publication cadence of the synoptic models.
const (
	DefaultStalenessWindow = 6 * time.Hour
	DefaultRetryBackoff    = 30 * time.Second
	DefaultMaxRetries      = 3
	DefaultProbeTimeout    = 20 * time.Second
	DefaultFetchTimeout    = 10 * time.Minute
	DefaultParallelism     = 2
	DefaultUserAgent       = "nwpsync/1.0"
)

type ServerConfig struct {
	Port string `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

// Enabled reports whether a download ledger database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != "" && d.DBName != ""
}

type CacheConfig struct {
	Root string `yaml:"root"`
}

type NetworkConfig struct {
	Proxies         map[string]string `yaml:"proxies"` // scheme -> proxy URL
	ProbeTimeoutStr string            `yaml:"probe_timeout"`
	FetchTimeoutStr string            `yaml:"fetch_timeout"`
	UserAgent       string            `yaml:"user_agent"`
	ProbeTimeout    time.Duration     `yaml:"-"`
	FetchTimeout    time.Duration     `yaml:"-"`
}

type DataFreshnessConfig struct {
	StalenessWindowStr string        `yaml:"staleness_window"`
	RetryBackoffStr    string        `yaml:"retry_backoff"`
	MaxRetries         *int          `yaml:"max_retries"`
	StalenessWindow    time.Duration `yaml:"-"`
	RetryBackoff       time.Duration `yaml:"-"`
}

// Retries returns the configured retry count, or the default when unset.
func (d DataFreshnessConfig) Retries() int {
	if d.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *d.MaxRetries
}

type SyncConfig struct {
	Parallelism int `yaml:"parallelism"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// ModelOverride adjusts a built-in model descriptor. Zero values keep the
// built-in setting.
type ModelOverride struct {
	Name            string `yaml:"name"`
	BaseURL         string `yaml:"base_url"`
	MaxForecastHour int    `yaml:"max_forecast_hour"`
	LookbackDays    int    `yaml:"lookback_days"`
}

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Cache         CacheConfig         `yaml:"cache"`
	Network       NetworkConfig       `yaml:"network"`
	DataFreshness DataFreshnessConfig `yaml:"data_freshness"`
	Sync          SyncConfig          `yaml:"sync"`
	Logging       LoggingConfig       `yaml:"logging"`
	Models        []ModelOverride     `yaml:"models"`
}

var AppConfig Config

// LoadConfig reads a .env file if present, then the YAML file at configPath,
// and stores the result in AppConfig. An empty path searches the usual
// locations.
func LoadConfig(configPath string) error {
	// .env is optional
	_ = godotenv.Load()

	if configPath == "" {
		for _, p := range []string{"config.yaml", "config/config.yaml", "../config/config.yaml"} {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
		if configPath == "" {
			return fmt.Errorf("config.yaml not found in standard locations")
		}
	}

	file, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(file)
	if err != nil {
		return err
	}
	applyEnv(&cfg)

	if err := os.MkdirAll(cfg.Cache.Root, 0755); err != nil {
		return fmt.Errorf("failed to create cache root %s: %w", cfg.Cache.Root, err)
	}

	AppConfig = cfg
	return nil
}

// Parse unmarshals YAML and fills defaults. It does not touch the
// environment or the filesystem.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var err error
	if cfg.DataFreshness.StalenessWindow, err = parseDuration(cfg.DataFreshness.StalenessWindowStr, DefaultStalenessWindow); err != nil {
		return Config{}, fmt.Errorf("failed to parse staleness_window: %w", err)
	}
	if cfg.DataFreshness.RetryBackoff, err = parseDuration(cfg.DataFreshness.RetryBackoffStr, DefaultRetryBackoff); err != nil {
		return Config{}, fmt.Errorf("failed to parse retry_backoff: %w", err)
	}
	if cfg.Network.ProbeTimeout, err = parseDuration(cfg.Network.ProbeTimeoutStr, DefaultProbeTimeout); err != nil {
		return Config{}, fmt.Errorf("failed to parse probe_timeout: %w", err)
	}
	if cfg.Network.FetchTimeout, err = parseDuration(cfg.Network.FetchTimeoutStr, DefaultFetchTimeout); err != nil {
		return Config{}, fmt.Errorf("failed to parse fetch_timeout: %w", err)
	}
	if cfg.DataFreshness.Retries() < 0 {
		return Config{}, fmt.Errorf("max_retries must not be negative")
	}

	if cfg.Network.UserAgent == "" {
		cfg.Network.UserAgent = DefaultUserAgent
	}
	if cfg.Sync.Parallelism <= 0 {
		cfg.Sync.Parallelism = DefaultParallelism
	}
	if cfg.Cache.Root == "" {
		cfg.Cache.Root = "data"
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "3306"
	}
	for i := range cfg.Models {
		cfg.Models[i].Name = strings.ToLower(strings.TrimSpace(cfg.Models[i].Name))
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("NWPSYNC_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("NWPSYNC_CACHE_ROOT"); v != "" {
		cfg.Cache.Root = v
	}
	// proxies from the environment only fill schemes the file left unset
	for scheme, env := range map[string]string{"http": "HTTP_PROXY", "https": "HTTPS_PROXY"} {
		v := os.Getenv(env)
		if v == "" {
			v = os.Getenv(strings.ToLower(env))
		}
		if v == "" {
			continue
		}
		if cfg.Network.Proxies == nil {
			cfg.Network.Proxies = map[string]string{}
		}
		if _, ok := cfg.Network.Proxies[scheme]; !ok {
			cfg.Network.Proxies[scheme] = v
		}
	}
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}
