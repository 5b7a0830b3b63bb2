package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the collector.
type Config struct {
	// Source credentials and transport settings
	Source SourceConfig `yaml:"source" json:"source"`

	// Rate limiting for the primary collection path
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry behavior for transient failures
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Collection engine policy
	Collector CollectorConfig `yaml:"collector" json:"collector"`

	// Fallback collection path policy
	Fallback FallbackConfig `yaml:"fallback" json:"fallback"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SourceConfig holds credentials and transport settings for the remote source.
type SourceConfig struct {
	AuthToken   string        `yaml:"auth_token" json:"auth_token"`
	CSRFToken   string        `yaml:"csrf_token" json:"csrf_token"`
	BearerToken string        `yaml:"bearer_token" json:"bearer_token"`
	UserAgent   string        `yaml:"user_agent" json:"user_agent"`
	BaseURL     string        `yaml:"base_url" json:"base_url"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

// RateLimitConfig holds pacing configuration for one collection path.
type RateLimitConfig struct {
	MinDelay             time.Duration `yaml:"min_delay" json:"min_delay"`
	MaxRequestsPerWindow int           `yaml:"max_requests_per_window" json:"max_requests_per_window"`
	WindowDuration       time.Duration `yaml:"window_duration" json:"window_duration"`
	JitterFactor         float64       `yaml:"jitter_factor" json:"jitter_factor"`
}

// RetryConfig holds retry and backoff configuration.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier float64       `yaml:"multiplier" json:"multiplier"`
	Jitter     float64       `yaml:"jitter" json:"jitter"`
}

// CollectorConfig holds the primary collection policy. All thresholds are
// tunable policy constants, not structural requirements.
type CollectorConfig struct {
	BatchSize             int           `yaml:"batch_size" json:"batch_size"`
	IncludeReplies        bool          `yaml:"include_replies" json:"include_replies"`
	ConsecutiveKnownLimit int           `yaml:"consecutive_known_limit" json:"consecutive_known_limit"`
	ProgressTimeout       time.Duration `yaml:"progress_timeout" json:"progress_timeout"`
	CoverageThreshold     float64       `yaml:"coverage_threshold" json:"coverage_threshold"`
	RateLimitEscalation   int           `yaml:"rate_limit_escalation" json:"rate_limit_escalation"`
	CheckpointInterval    int           `yaml:"checkpoint_interval" json:"checkpoint_interval"`
}

// FallbackConfig holds the fallback collection policy.
type FallbackConfig struct {
	Enabled           bool            `yaml:"enabled" json:"enabled"`
	SessionCap        time.Duration   `yaml:"session_cap" json:"session_cap"`
	StagnantPassLimit int             `yaml:"stagnant_pass_limit" json:"stagnant_pass_limit"`
	RateLimit         RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
}

// OutputConfig holds output and state directory configuration.
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
	ExportJSON    bool   `yaml:"export_json" json:"export_json"`
	ArchiveSQLite bool   `yaml:"archive_sqlite" json:"archive_sqlite"`
	StateDir      string `yaml:"state_dir" json:"state_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with the observed policy defaults.
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			BaseURL:   "https://x.com",
			Timeout:   30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			MinDelay:             2 * time.Second,
			MaxRequestsPerWindow: 50,
			WindowDuration:       15 * time.Minute,
			JitterFactor:         0,
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  2 * time.Second,
			MaxDelay:   60 * time.Second,
			Multiplier: 2.0,
			Jitter:     0.1,
		},
		Collector: CollectorConfig{
			BatchSize:             100,
			IncludeReplies:        true,
			ConsecutiveKnownLimit: 50,
			ProgressTimeout:       5 * time.Minute,
			CoverageThreshold:     0.8,
			RateLimitEscalation:   3,
			CheckpointInterval:    5,
		},
		Fallback: FallbackConfig{
			Enabled:           true,
			SessionCap:        30 * time.Minute,
			StagnantPassLimit: 3,
			RateLimit: RateLimitConfig{
				MinDelay:             5 * time.Second,
				MaxRequestsPerWindow: 100,
				WindowDuration:       30 * time.Minute,
				JitterFactor:         0.5,
			},
		},
		Output: OutputConfig{
			BaseDirectory: "./archive",
			ExportJSON:    true,
			ArchiveSQLite: false,
			StateDir:      "",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables.
func (c *Config) LoadFromEnv() error {
	if token := os.Getenv("XSCRAPER_AUTH_TOKEN"); token != "" {
		c.Source.AuthToken = token
	}
	if csrf := os.Getenv("XSCRAPER_CSRF_TOKEN"); csrf != "" {
		c.Source.CSRFToken = csrf
	}
	if bearer := os.Getenv("XSCRAPER_BEARER_TOKEN"); bearer != "" {
		c.Source.BearerToken = bearer
	}
	if ua := os.Getenv("XSCRAPER_USER_AGENT"); ua != "" {
		c.Source.UserAgent = ua
	}
	if base := os.Getenv("XSCRAPER_BASE_URL"); base != "" {
		c.Source.BaseURL = base
	}

	if rpw := os.Getenv("XSCRAPER_REQUESTS_PER_WINDOW"); rpw != "" {
		var val int
		fmt.Sscanf(rpw, "%d", &val)
		if val > 0 {
			c.RateLimit.MaxRequestsPerWindow = val
		}
	}
	if delay := os.Getenv("XSCRAPER_MIN_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil && d > 0 {
			c.RateLimit.MinDelay = d
		}
	}

	if outputDir := os.Getenv("XSCRAPER_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if stateDir := os.Getenv("XSCRAPER_STATE_DIR"); stateDir != "" {
		c.Output.StateDir = stateDir
	}

	if fallback := os.Getenv("XSCRAPER_FALLBACK_ENABLED"); fallback != "" {
		c.Fallback.Enabled = strings.ToLower(fallback) == "true"
	}

	if logLevel := os.Getenv("XSCRAPER_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations.
func (c *Config) findConfigFile() string {
	locations := []string{
		".xscraper.yaml",
		".xscraper.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "xscraper", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "xscraper", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".xscraper.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if c.RateLimit.MinDelay < 0 {
		errs = append(errs, errors.New("min delay cannot be negative"))
	}
	if c.RateLimit.MaxRequestsPerWindow <= 0 {
		errs = append(errs, errors.New("max requests per window must be positive"))
	}
	if c.RateLimit.WindowDuration <= 0 {
		errs = append(errs, errors.New("window duration must be positive"))
	}

	if c.Retry.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.Retry.Multiplier < 1.0 {
		errs = append(errs, errors.New("retry multiplier must be at least 1.0"))
	}

	if c.Collector.BatchSize <= 0 {
		errs = append(errs, errors.New("batch size must be positive"))
	}
	if c.Collector.ConsecutiveKnownLimit <= 0 {
		errs = append(errs, errors.New("consecutive known limit must be positive"))
	}
	if c.Collector.ProgressTimeout <= 0 {
		errs = append(errs, errors.New("progress timeout must be positive"))
	}
	if c.Collector.CoverageThreshold <= 0 || c.Collector.CoverageThreshold > 1 {
		errs = append(errs, errors.New("coverage threshold must be in (0, 1]"))
	}
	if c.Collector.RateLimitEscalation <= 0 {
		errs = append(errs, errors.New("rate limit escalation threshold must be positive"))
	}

	if c.Fallback.Enabled {
		if c.Fallback.SessionCap <= 0 {
			errs = append(errs, errors.New("fallback session cap must be positive"))
		}
		if c.Fallback.StagnantPassLimit <= 0 {
			errs = append(errs, errors.New("fallback stagnant pass limit must be positive"))
		}
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// ValidateCredentials checks that the source credentials required for any
// network activity are present. Reported before collection starts.
func (c *Config) ValidateCredentials() error {
	var errs []error

	if c.Source.AuthToken == "" {
		errs = append(errs, errors.New("source auth token is required"))
	}
	if c.Source.CSRFToken == "" {
		errs = append(errs, errors.New("source CSRF token is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Save saves the configuration to a file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeFlags merges command line flag values into the configuration.
func (c *Config) MergeFlags(flags map[string]interface{}) {
	if token, ok := flags["auth-token"].(string); ok && token != "" {
		c.Source.AuthToken = token
	}
	if csrf, ok := flags["csrf-token"].(string); ok && csrf != "" {
		c.Source.CSRFToken = csrf
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if batch, ok := flags["batch-size"].(int); ok && batch > 0 {
		c.Collector.BatchSize = batch
	}
	if retries, ok := flags["max-retries"].(int); ok && retries >= 0 {
		c.Retry.MaxRetries = retries
	}
	if coverage, ok := flags["coverage-threshold"].(float64); ok && coverage > 0 {
		c.Collector.CoverageThreshold = coverage
	}
	if replies, ok := flags["include-replies"].(bool); ok {
		c.Collector.IncludeReplies = replies
	}
	if fallback, ok := flags["fallback"].(bool); ok {
		c.Fallback.Enabled = fallback
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment variables > .env file > config file > defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".xscraper.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
