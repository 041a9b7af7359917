package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// HTTP server
	ServerAddr        string `mapstructure:"server_addr" yaml:"server_addr"`
	BodyLimit         string `mapstructure:"body_limit" yaml:"body_limit"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec"`
	EnableCORS        bool   `mapstructure:"enable_cors" yaml:"enable_cors"`
	RequestLogging    bool   `mapstructure:"request_logging" yaml:"request_logging"`

	// Ingestion
	PreviewRows      int `mapstructure:"preview_rows" yaml:"preview_rows"`
	SmallDatasetRows int `mapstructure:"small_dataset_rows" yaml:"small_dataset_rows"`
	MaxRows          int `mapstructure:"max_rows" yaml:"max_rows"`

	// Narrative
	NarrativeEnabled     bool    `mapstructure:"narrative_enabled" yaml:"narrative_enabled"`
	NarrativeProvider    string  `mapstructure:"narrative_provider" yaml:"narrative_provider"`
	NarrativeModel       string  `mapstructure:"narrative_model" yaml:"narrative_model"`
	NarrativeMaxTokens   int     `mapstructure:"narrative_max_tokens" yaml:"narrative_max_tokens"`
	NarrativeTemperature float64 `mapstructure:"narrative_temperature" yaml:"narrative_temperature"`
	APIKey               string  `mapstructure:"api_key" yaml:"api_key"`
	BaseURL              string  `mapstructure:"base_url" yaml:"base_url"`
	OllamaHost           string  `mapstructure:"ollama_host" yaml:"ollama_host"`

	// HTTP/Retry configuration for LLM runtimes
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Result cache
	CacheBackend    string `mapstructure:"cache_backend" yaml:"cache_backend"`
	CacheTTLMinutes int    `mapstructure:"cache_ttl_minutes" yaml:"cache_ttl_minutes"`
	CacheMaxEntries int    `mapstructure:"cache_max_entries" yaml:"cache_max_entries"`
	RedisAddr       string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword   string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB         int    `mapstructure:"redis_db" yaml:"redis_db"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

var defaults = map[string]any{
	"server_addr":           ":8080",
	"body_limit":            "20M",
	"request_timeout_sec":   120,
	"enable_cors":           true,
	"request_logging":       true,
	"preview_rows":          5,
	"small_dataset_rows":    10,
	"max_rows":              100000,
	"narrative_enabled":     false,
	"narrative_provider":    "ollama",
	"narrative_model":       "llama3.1:8b-instruct",
	"narrative_max_tokens":  600,
	"narrative_temperature": 0.3,
	"api_key":               "",
	"base_url":              "",
	"ollama_host":           "http://127.0.0.1:11434",
	"http_timeout_sec":      60,
	"retry_max_attempts":    3,
	"retry_base_delay_ms":   500,
	"retry_max_delay_ms":    4000,
	"cache_backend":         "memory",
	"cache_ttl_minutes":     120,
	"cache_max_entries":     500,
	"redis_addr":            "",
	"redis_password":        "",
	"redis_db":              0,
	"log_level":             "info",
	"log_format":            "text",
}

// Keys lists every configuration key.
func Keys() []string {
	out := make([]string, 0, len(defaults))
	for k := range defaults {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DefaultPath returns ~/.statloom/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".statloom", "config.yaml"), nil
}

// Save writes the given configuration to cfgFile, or to DefaultPath when empty.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from defaults, the config file and STATLOOM_* env.
// Precedence: env > config file > defaults; flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("STATLOOM")
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		path, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(filepath.Dir(path))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// the default file is optional
		_ = v.ReadInConfig()
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks enumerated and bounded values.
func (c *Global) Validate() error {
	switch c.NarrativeProvider {
	case "openai", "openrouter", "ollama":
	default:
		return fmt.Errorf("invalid narrative_provider: %s (use openai, openrouter or ollama)", c.NarrativeProvider)
	}
	switch c.CacheBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid cache_backend: %s (use memory or redis)", c.CacheBackend)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format: %s (use text or json)", c.LogFormat)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level: %s", c.LogLevel)
	}
	if c.PreviewRows <= 0 || c.MaxRows <= 0 {
		return fmt.Errorf("preview_rows and max_rows must be positive")
	}
	return nil
}

// Set assigns key from its string form. c is left unchanged when the
// resulting configuration would be invalid.
func (c *Global) Set(key, val string) error {
	next := *c
	if err := next.assign(key, val); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

func (c *Global) assign(key, val string) error {
	atoi := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	var err error
	switch key {
	case "server_addr":
		c.ServerAddr = val
	case "body_limit":
		c.BodyLimit = val
	case "request_timeout_sec":
		c.RequestTimeoutSec, err = atoi()
	case "enable_cors", "request_logging", "narrative_enabled":
		b, perr := strconv.ParseBool(val)
		if perr != nil {
			return fmt.Errorf("invalid bool for %s: %v", key, val)
		}
		switch key {
		case "enable_cors":
			c.EnableCORS = b
		case "request_logging":
			c.RequestLogging = b
		default:
			c.NarrativeEnabled = b
		}
	case "preview_rows":
		c.PreviewRows, err = atoi()
	case "small_dataset_rows":
		c.SmallDatasetRows, err = atoi()
	case "max_rows":
		c.MaxRows, err = atoi()
	case "narrative_provider":
		c.NarrativeProvider = strings.ToLower(val)
	case "narrative_model":
		c.NarrativeModel = val
	case "narrative_max_tokens":
		c.NarrativeMaxTokens, err = atoi()
	case "narrative_temperature":
		f, perr := strconv.ParseFloat(val, 64)
		if perr != nil || f < 0 || f > 2 {
			return fmt.Errorf("invalid float for narrative_temperature: %v", val)
		}
		c.NarrativeTemperature = f
	case "api_key":
		c.APIKey = val
	case "base_url":
		c.BaseURL = val
	case "ollama_host":
		c.OllamaHost = val
	case "http_timeout_sec":
		c.HTTPTimeoutSec, err = atoi()
	case "retry_max_attempts":
		c.RetryMaxAttempts, err = atoi()
	case "retry_base_delay_ms":
		c.RetryBaseDelayMs, err = atoi()
	case "retry_max_delay_ms":
		c.RetryMaxDelayMs, err = atoi()
	case "cache_backend":
		c.CacheBackend = strings.ToLower(val)
	case "cache_ttl_minutes":
		c.CacheTTLMinutes, err = atoi()
	case "cache_max_entries":
		c.CacheMaxEntries, err = atoi()
	case "redis_addr":
		c.RedisAddr = val
	case "redis_password":
		c.RedisPassword = val
	case "redis_db":
		c.RedisDB, err = atoi()
	case "log_level":
		c.LogLevel = strings.ToLower(val)
	case "log_format":
		c.LogFormat = strings.ToLower(val)
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

func (c *Global) HTTPTimeout() time.Duration { return time.Duration(c.HTTPTimeoutSec) * time.Second }
func (c *Global) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMs) * time.Millisecond
}
func (c *Global) RetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelayMs) * time.Millisecond
}
func (c *Global) CacheTTL() time.Duration { return time.Duration(c.CacheTTLMinutes) * time.Minute }
func (c *Global) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}
