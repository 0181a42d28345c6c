package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the recipe card crawler
type Config struct {
	// Remote endpoints and request settings
	Site SiteConfig `yaml:"site" json:"site"`

	// Catalog search parameters
	Search SearchConfig `yaml:"search" json:"search"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SiteConfig holds the marketing site and API locations
type SiteConfig struct {
	SiteURL           string        `yaml:"site_url" json:"site_url"`
	APIURL            string        `yaml:"api_url" json:"api_url"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	RequestTimeout    time.Duration `yaml:"request_timeout" json:"request_timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// SearchConfig holds the initial search query settings
type SearchConfig struct {
	Locale        string   `yaml:"locale" json:"locale"`
	Limit         int      `yaml:"limit" json:"limit"`
	Products      []string `yaml:"products" json:"products"`
	MaxPrepTime   int      `yaml:"max_prep_time" json:"max_prep_time"`
	CeilPageCount bool     `yaml:"ceil_page_count" json:"ceil_page_count"`
}

// DownloadConfig holds card download settings
type DownloadConfig struct {
	ParallelDownloads int           `yaml:"parallel_downloads" json:"parallel_downloads"`
	MaxRetryAttempts  int           `yaml:"max_retry_attempts" json:"max_retry_attempts"`
	RetryDelayMin     time.Duration `yaml:"retry_delay_min" json:"retry_delay_min"`
	RetryDelayMax     time.Duration `yaml:"retry_delay_max" json:"retry_delay_max"`
	BatchDelay        time.Duration `yaml:"batch_delay" json:"batch_delay"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	SaveDirectory string `yaml:"save_directory" json:"save_directory"`
	Checkpoint    bool   `yaml:"checkpoint" json:"checkpoint"`
	Metadata      bool   `yaml:"metadata" json:"metadata"`
	Resume        bool   `yaml:"-" json:"-"`
}

// MetricsConfig holds the metrics listener configuration
type MetricsConfig struct {
	Address string `yaml:"address" json:"address"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// LocaleSettings is the API locale and country pair for a site locale.
type LocaleSettings struct {
	Locale  string
	Country string
}

// Locales lists the supported site locales.
var Locales = map[string]LocaleSettings{
	"US": {Locale: "en-US", Country: "us"},
	"GB": {Locale: "en-GB", Country: "gb"},
	"DE": {Locale: "de-DE", Country: "de"},
	"FR": {Locale: "fr-FR", Country: "fr"},
}

// LocaleNames returns the supported locale codes in display order.
func LocaleNames() []string {
	return []string{"US", "GB", "DE", "FR"}
}

// ResolveLocale maps a site locale code (case-insensitive) to its API settings.
func ResolveLocale(code string) (LocaleSettings, error) {
	settings, ok := Locales[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return LocaleSettings{}, fmt.Errorf("unsupported locale %q (choose one of %s)", code, strings.Join(LocaleNames(), ", "))
	}
	return settings, nil
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			SiteURL:           "https://www.hellofresh.com",
			APIURL:            "https://gw.hellofresh.com/api/",
			UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			RequestTimeout:    30 * time.Second,
			RequestsPerMinute: 60,
		},
		Search: SearchConfig{
			Locale:      "US",
			Limit:       500,
			Products:    []string{"classic-box", "veggie-box", "meal-plan", "family-box"},
			MaxPrepTime: 60,
		},
		Download: DownloadConfig{
			ParallelDownloads: 10,
			MaxRetryAttempts:  3,
			RetryDelayMin:     1 * time.Second,
			RetryDelayMax:     6 * time.Second,
			BatchDelay:        250 * time.Millisecond,
			Timeout:           60 * time.Second,
		},
		Output: OutputConfig{
			SaveDirectory: "./recipe-card-pdfs",
			Checkpoint:    true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("RECIPECARDS_LOCALE"); v != "" {
		c.Search.Locale = v
	}
	if v := os.Getenv("RECIPECARDS_SAVE_DIR"); v != "" {
		c.Output.SaveDirectory = v
	}
	if v := os.Getenv("RECIPECARDS_SITE_URL"); v != "" {
		c.Site.SiteURL = v
	}
	if v := os.Getenv("RECIPECARDS_API_URL"); v != "" {
		c.Site.APIURL = v
	}
	if v := os.Getenv("RECIPECARDS_USER_AGENT"); v != "" {
		c.Site.UserAgent = v
	}
	if v := os.Getenv("RECIPECARDS_PARALLEL_DOWNLOADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("RECIPECARDS_PARALLEL_DOWNLOADS: %w", err))
		} else {
			c.Download.ParallelDownloads = n
		}
	}
	if v := os.Getenv("RECIPECARDS_MAX_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("RECIPECARDS_MAX_RETRY_ATTEMPTS: %w", err))
		} else {
			c.Download.MaxRetryAttempts = n
		}
	}
	if v := os.Getenv("RECIPECARDS_METADATA"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("RECIPECARDS_METADATA: %w", err))
		} else {
			c.Output.Metadata = b
		}
	}
	if v := os.Getenv("RECIPECARDS_METRICS_ADDR"); v != "" {
		c.Metrics.Address = v
	}
	if v := os.Getenv("RECIPECARDS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
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

func findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".recipecards.yaml",
		".recipecards.yml",
		filepath.Join(home, ".config", "recipecards", "config.yaml"),
		filepath.Join(home, ".recipecards.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Site.SiteURL == "" {
		errs = append(errs, errors.New("site url is required"))
	}
	if c.Site.APIURL == "" {
		errs = append(errs, errors.New("api url is required"))
	}
	if c.Site.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.Site.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	if _, err := ResolveLocale(c.Search.Locale); err != nil {
		errs = append(errs, err)
	}
	if c.Search.Limit <= 0 {
		errs = append(errs, errors.New("search limit must be positive"))
	}

	if c.Download.ParallelDownloads <= 0 {
		errs = append(errs, errors.New("parallel downloads must be positive"))
	}
	if c.Download.MaxRetryAttempts < 0 {
		errs = append(errs, errors.New("max retry attempts cannot be negative"))
	}
	if c.Download.RetryDelayMin < 0 || c.Download.RetryDelayMax < c.Download.RetryDelayMin {
		errs = append(errs, errors.New("retry delay range is invalid"))
	}
	if c.Download.BatchDelay < 0 {
		errs = append(errs, errors.New("batch delay cannot be negative"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}

	if c.Output.SaveDirectory == "" {
		errs = append(errs, errors.New("save directory is required"))
	}
	if c.Output.Resume && !c.Output.Checkpoint {
		errs = append(errs, errors.New("resume requires checkpoints to be enabled"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges explicitly set command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["locale"].(string); ok && v != "" {
		c.Search.Locale = v
	}
	if v, ok := flags["save-dir"].(string); ok && v != "" {
		c.Output.SaveDirectory = v
	}
	if v, ok := flags["parallel"].(int); ok && v > 0 {
		c.Download.ParallelDownloads = v
	}
	if v, ok := flags["max-retries"].(int); ok && v >= 0 {
		c.Download.MaxRetryAttempts = v
	}
	if v, ok := flags["resume"].(bool); ok {
		c.Output.Resume = v
	}
	if v, ok := flags["metadata"].(bool); ok {
		c.Output.Metadata = v
	}
	if v, ok := flags["metrics-addr"].(string); ok && v != "" {
		c.Metrics.Address = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["no-color"].(bool); ok && v {
		c.Logging.NoColor = true
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".recipecards.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
