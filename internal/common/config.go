package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
	Sites       SitesConfig      `toml:"sites"`
	Scheduler   SchedulerConfig  `toml:"scheduler"`
	Browser     BrowserConfig    `toml:"browser"`
	Detector    DetectorConfig   `toml:"detector"`
	Classifier  ClassifierConfig `toml:"classifier"`
	Vectorizer  VectorizerConfig `toml:"vectorizer"`
	Retry       RetryConfig      `toml:"retry"`
	Breaker     BreakerConfig    `toml:"breaker"`
	Workflow    WorkflowConfig   `toml:"workflow"`
	Claude      ClaudeConfig     `toml:"claude"`
	Gemini      GeminiConfig     `toml:"gemini"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gte=0,lte=65535"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// SitesConfig contains configuration for site definition file loading
type SitesConfig struct {
	DefinitionsDir string `toml:"definitions_dir"` // Directory containing site definition files (TOML)
	KeepScans      int    `toml:"keep_scans"`      // Snapshots retained per site; 0 disables pruning
}

// SchedulerConfig controls the monitoring job scheduler
type SchedulerConfig struct {
	MaxConcurrentJobs   int `toml:"max_concurrent_jobs" validate:"gte=1"`
	MisfireGraceSeconds int `toml:"misfire_grace_seconds" validate:"gte=0"`
}

// BrowserConfig controls the headless browser pool
type BrowserConfig struct {
	PoolSize           int           `toml:"pool_size" validate:"gte=1"`
	Headless           bool          `toml:"headless"`
	NoSandbox          bool          `toml:"no_sandbox"`
	NavigationTimeout  time.Duration `toml:"navigation_timeout"`
	JavaScriptWaitTime time.Duration `toml:"javascript_wait_time"`
	UserAgents         []string      `toml:"user_agents"`     // Rotation list; empty uses built-in defaults
	BlockedResources   []string      `toml:"block_resources"` // e.g. "Image", "Media", "Font"
}

// DetectorConfig holds change detection thresholds, per-site overridable
type DetectorConfig struct {
	SimilarityThreshold     float64 `toml:"similarity_threshold" validate:"gte=0,lte=1"`
	StructuralThreshold     float64 `toml:"structural_threshold" validate:"gte=0,lte=1"`
	CriticalChangeThreshold float64 `toml:"critical_change_threshold" validate:"gte=0,lte=1"`
	MaxContentBytes         int     `toml:"max_content_bytes"` // Oversize pages are truncated before hashing
}

// ClassifierConfig holds ensemble classification settings
type ClassifierConfig struct {
	BaseWeights          map[string]float64 `toml:"base_weights"`          // llm/semantic/rules -> weight
	ConfidenceThresholds map[string]float64 `toml:"confidence_thresholds"` // very_high/high/medium/low -> floor
	LLMTimeout           time.Duration      `toml:"llm_timeout"`
	LLMMaxTokens         int                `toml:"llm_max_tokens"`
}

// VectorizerConfig controls embedding preprocessing
type VectorizerConfig struct {
	MaxContentLength int `toml:"max_content_length" validate:"gte=0"`
	ChunkThreshold   int `toml:"chunk_threshold" validate:"gte=0"`
	Dimension        int `toml:"dimension" validate:"gte=1"`
}

// RetryConfig controls fetch retry behavior
type RetryConfig struct {
	MaxAttempts     int           `toml:"max_attempts" validate:"gte=1"`
	InitialDelay    time.Duration `toml:"initial_delay"`
	MaxDelay        time.Duration `toml:"max_delay"`
	ExponentialBase float64       `toml:"exponential_base"`
	Jitter          bool          `toml:"jitter"`
}

// BreakerConfig controls the per-site circuit breaker
type BreakerConfig struct {
	FailureThreshold int           `toml:"failure_threshold" validate:"gte=1"`
	RecoveryTimeout  time.Duration `toml:"recovery_timeout"`
}

// WorkflowConfig controls per-check workflow execution
type WorkflowConfig struct {
	TotalDeadline time.Duration `toml:"total_deadline"`
	FetchTimeout  time.Duration `toml:"fetch_timeout"`
	DrainDeadline time.Duration `toml:"drain_deadline"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"`
	RateLimit   string  `toml:"rate_limit"`
	Temperature float32 `toml:"temperature"`
}

// GeminiConfig contains Google Gemini API configuration (embeddings)
type GeminiConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	RateLimit string `toml:"rate_limit"`
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability; only
// user-facing settings should normally be changed in vigil.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Sites: SitesConfig{
			DefinitionsDir: "./site-definitions",
			KeepScans:      50,
		},
		Scheduler: SchedulerConfig{
			MaxConcurrentJobs:   5,
			MisfireGraceSeconds: 30,
		},
		Browser: BrowserConfig{
			PoolSize:           3,
			Headless:           true,
			NoSandbox:          true,
			NavigationTimeout:  30 * time.Second,
			JavaScriptWaitTime: 3 * time.Second,
			BlockedResources:   []string{"Image", "Media"},
		},
		Detector: DetectorConfig{
			SimilarityThreshold:     0.85,
			StructuralThreshold:     0.90,
			CriticalChangeThreshold: 0.50,
			MaxContentBytes:         2 * 1024 * 1024,
		},
		Classifier: ClassifierConfig{
			BaseWeights: map[string]float64{
				"llm":      0.5,
				"semantic": 0.3,
				"rules":    0.2,
			},
			ConfidenceThresholds: map[string]float64{
				"very_high": 0.8,
				"high":      0.6,
				"medium":    0.4,
				"low":       0.2,
			},
			LLMTimeout:   60 * time.Second,
			LLMMaxTokens: 1024,
		},
		Vectorizer: VectorizerConfig{
			MaxContentLength: 8000,
			ChunkThreshold:   1000,
			Dimension:        768,
		},
		Retry: RetryConfig{
			MaxAttempts:     3,
			InitialDelay:    time.Second,
			MaxDelay:        30 * time.Second,
			ExponentialBase: 2.0,
			Jitter:          true,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  60 * time.Second,
		},
		Workflow: WorkflowConfig{
			TotalDeadline: 120 * time.Second,
			FetchTimeout:  30 * time.Second,
			DrainDeadline: 30 * time.Second,
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   1024,
			Timeout:     "60s",
			RateLimit:   "1s",
			Temperature: 0.0,
		},
		Gemini: GeminiConfig{
			Model:     "gemini-embedding-001",
			RateLimit: "4s",
		},
	}
}

// LoadConfig loads configuration from the given TOML files in order, with
// later files overriding earlier ones, then applies environment overrides.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Detector.CriticalChangeThreshold > c.Detector.SimilarityThreshold {
		return fmt.Errorf("invalid configuration: detector.critical_change_threshold (%.2f) must not exceed detector.similarity_threshold (%.2f)",
			c.Detector.CriticalChangeThreshold, c.Detector.SimilarityThreshold)
	}

	total := 0.0
	for _, w := range c.Classifier.BaseWeights {
		if w < 0 {
			return fmt.Errorf("invalid configuration: classifier base weights must be non-negative")
		}
		total += w
	}
	if total == 0 {
		return fmt.Errorf("invalid configuration: classifier base weights sum to zero")
	}

	return nil
}

// applyEnvOverrides applies VIGIL_* environment variables over file values
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("VIGIL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("VIGIL_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("VIGIL_LOG_LEVEL"); v != "" {
		config.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("VIGIL_DATA_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && config.Claude.APIKey == "" {
		config.Claude.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && config.Gemini.APIKey == "" {
		config.Gemini.APIKey = v
	}
}
