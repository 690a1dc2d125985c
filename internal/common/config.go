package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Queue       QueueConfig     `toml:"queue"`
	Pipeline    PipelineConfig  `toml:"pipeline"`
	Logging     LoggingConfig   `toml:"logging"`
	Templates   TemplatesConfig `toml:"templates"`
	LLM         LLMConfig       `toml:"llm"`
	Claude      ClaudeConfig    `toml:"claude"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Cleanup     CleanupConfig   `toml:"cleanup"`
	RateLimit   RateLimitConfig `toml:"rate_limit"`
	Admin       AdminConfig     `toml:"admin"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger  BadgerConfig `toml:"badger"`
	Exports string       `toml:"exports"` // Directory for exported PDF files
	Uploads string       `toml:"uploads"` // Directory for uploaded manuals/CSV files
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// QueueConfig controls the durable queue and its worker pool
type QueueConfig struct {
	Mode               string `toml:"mode"`                // "durable" or "background"
	FallbackBackground bool   `toml:"fallback_background"` // Fall back to local execution when durable enqueue fails
	PollInterval       string `toml:"poll_interval"`       // e.g. "1s" - how often workers poll for messages
	Concurrency        int    `toml:"concurrency"`         // Number of concurrent workers
	VisibilityTimeout  string `toml:"visibility_timeout"`  // e.g. "5m" - message lease before redelivery
	MaxReceive         int    `toml:"max_receive"`         // Max deliveries before a message is dropped
	QueueName          string `toml:"queue_name"`          // Queue name prefix in Badger
}

// PipelineConfig controls pipeline execution limits
type PipelineConfig struct {
	StaleAfter     string `toml:"stale_after"`     // Running jobs without a heartbeat past this are reaped as failed
	ReaperSchedule string `toml:"reaper_schedule"` // Cron schedule for the stale-job reaper
	PreviewRows    int    `toml:"preview_rows"`    // CSV preview rows passed to the writer
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// TemplatesConfig points at optional rule-set override files
type TemplatesConfig struct {
	Dir string `toml:"dir"` // Directory containing template rule-set overrides (YAML)
}

// LLMConfig selects the content-generation provider
type LLMConfig struct {
	DefaultProvider string `toml:"default_provider"` // "claude", "gemini" or "offline"
	Model           string `toml:"model"`            // Optional model override, provider detected from prefix
}

type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
}

type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature"`
}

// CleanupConfig controls scheduled artifact cleanup
type CleanupConfig struct {
	Enabled     bool   `toml:"enabled"`
	Schedule    string `toml:"schedule"`      // Cron schedule format
	MaxAgeHours int    `toml:"max_age_hours"` // Artifacts older than this are deleted
}

// RateLimitConfig throttles job submissions per client
type RateLimitConfig struct {
	Enabled bool    `toml:"enabled"`
	Rate    float64 `toml:"rate"`  // Submissions per second
	Burst   int     `toml:"burst"` // Burst size
}

// AdminConfig protects destructive endpoints
type AdminConfig struct {
	APIKey string `toml:"api_key"` // Empty disables the check
}

// NewDefaultConfig returns the built-in defaults, overridden by files and env
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/scriba",
				ResetOnStartup: false,
			},
			Exports: "./data/exports",
			Uploads: "./data/uploads",
		},
		Queue: QueueConfig{
			Mode:               "durable",
			FallbackBackground: true,
			PollInterval:       "1s",
			Concurrency:        2,
			VisibilityTimeout:  "10m",
			MaxReceive:         3,
			QueueName:          "document_jobs",
		},
		Pipeline: PipelineConfig{
			StaleAfter:     "30m",
			ReaperSchedule: "*/5 * * * *",
			PreviewRows:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		LLM: LLMConfig{
			DefaultProvider: "claude",
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-20250514",
			Timeout:     "120s",
			MaxTokens:   8192,
			Temperature: 0.2,
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			Timeout:     "120s",
			Temperature: 0.2,
		},
		Cleanup: CleanupConfig{
			Enabled:     true,
			Schedule:    "0 * * * *",
			MaxAgeHours: 24 * 7,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Rate:    0.5,
			Burst:   5,
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files; environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SCRIBA_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("SCRIBA_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("SCRIBA_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if mode := os.Getenv("SCRIBA_QUEUE_MODE"); mode != "" {
		config.Queue.Mode = mode
	}
	if fallback := os.Getenv("SCRIBA_QUEUE_FALLBACK"); fallback != "" {
		config.Queue.FallbackBackground = isTruthy(fallback)
	}
	if pollInterval := os.Getenv("SCRIBA_QUEUE_POLL_INTERVAL"); pollInterval != "" {
		config.Queue.PollInterval = pollInterval
	}
	if concurrency := os.Getenv("SCRIBA_QUEUE_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Queue.Concurrency = c
		}
	}
	if queueName := os.Getenv("SCRIBA_QUEUE_NAME"); queueName != "" {
		config.Queue.QueueName = queueName
	}

	if badgerPath := os.Getenv("SCRIBA_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("SCRIBA_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("SCRIBA_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	if provider := os.Getenv("SCRIBA_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = provider
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}

	if key := os.Getenv("SCRIBA_ADMIN_API_KEY"); key != "" {
		config.Admin.APIKey = key
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// PollInterval parses the queue poll interval with a safe default
func (q *QueueConfig) PollIntervalDuration() time.Duration {
	d, err := time.ParseDuration(q.PollInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// VisibilityTimeoutDuration parses the message lease duration with a safe default
func (q *QueueConfig) VisibilityTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(q.VisibilityTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// StaleAfterDuration parses the reaper threshold with a safe default
func (p *PipelineConfig) StaleAfterDuration() time.Duration {
	d, err := time.ParseDuration(p.StaleAfter)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// IsProduction returns true when running in production mode
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
