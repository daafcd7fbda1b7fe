package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultConfigPath is the YAML file Load reads when it exists.
const DefaultConfigPath = "config.yaml"

// Config holds all configuration for ekaya-questionnaire.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr        string        `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port            string        `yaml:"port" env:"PORT" env-default:"8000"`
	Env             string        `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel        string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"30s"`
	CORSOrigins     []string      `yaml:"cors_origins" env:"CORS_ORIGINS" env-separator:"," env-default:"http://localhost:3000"`
	Version         string        `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis is optional; without it generation jobs are locked in-process only.
	Redis RedisConfig `yaml:"redis"`

	// Generative model configuration
	LLM LLMConfig `yaml:"llm"`

	Prompts PromptsConfig `yaml:"prompts"`
	Upload  UploadConfig  `yaml:"upload"`

	AnswerLibrary AnswerLibraryConfig `yaml:"answer_library"`

	Metrics MetricsConfig `yaml:"metrics"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ekaya"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ekaya_questionnaire"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	// LockTTL bounds how long a crashed server can hold a questionnaire's generation lock.
	LockTTL time.Duration `yaml:"lock_ttl" env:"REDIS_LOCK_TTL" env-default:"5m"`
}

// LLMConfig configures the generative model used to draft answers.
type LLMConfig struct {
	Provider       string        `yaml:"provider" env:"LLM_PROVIDER" env-default:"anthropic"`
	Model          string        `yaml:"model" env:"LLM_MODEL" env-default:"claude-3-5-sonnet-20241022"`
	BaseURL        string        `yaml:"base_url" env:"LLM_BASE_URL" env-default:""`
	APIKey         string        `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	MaxTokens      int           `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"1000"`
	Temperature    float64       `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.3"`
	Throttle       time.Duration `yaml:"throttle" env:"LLM_THROTTLE" env-default:"1s"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"LLM_REQUEST_TIMEOUT" env-default:"60s"`
	MaxRetries     int           `yaml:"max_retries" env:"LLM_MAX_RETRIES" env-default:"2"`
}

// PromptsConfig locates the answer-generation instruction template.
type PromptsConfig struct {
	TemplatePath string `yaml:"template_path" env:"PROMPT_TEMPLATE_PATH" env-default:"prompts/answer_generation.yaml"`
}

// UploadConfig holds the upload-boundary gating rules.
type UploadConfig struct {
	MaxFileSize             int64    `yaml:"max_file_size" env:"MAX_FILE_SIZE" env-default:"10485760"`
	PolicyExtensions        []string `yaml:"policy_extensions" env:"POLICY_EXTENSIONS" env-separator:"," env-default:".pdf"`
	QuestionnaireExtensions []string `yaml:"questionnaire_extensions" env:"QUESTIONNAIRE_EXTENSIONS" env-separator:"," env-default:".xlsx,.xlsm,.csv"`
}

// AnswerLibraryConfig bounds bulk imports into the answer library.
type AnswerLibraryConfig struct {
	MaxBulkImport int `yaml:"max_bulk_import" env:"ANSWER_LIBRARY_MAX_BULK_IMPORT" env-default:"1000"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED" env-default:"true"`
	Path    string `yaml:"path" env:"METRICS_PATH" env-default:"/metrics"`
}

// Load reads configuration from config.yaml (when present) with environment
// variable overrides. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	return LoadFrom(DefaultConfigPath, version)
}

// LoadFrom is Load with an explicit YAML path. A missing file is not an
// error; configuration then comes from the environment alone.
func LoadFrom(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, fs.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// normalize lower-cases extensions and makes sure each has a leading dot.
func (c *Config) normalize() {
	c.Upload.PolicyExtensions = normalizeExtensions(c.Upload.PolicyExtensions)
	c.Upload.QuestionnaireExtensions = normalizeExtensions(c.Upload.QuestionnaireExtensions)
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

// Validate checks the values the rest of the service relies on.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "anthropic", "openai", "gemini":
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm model is required")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm max_tokens must be positive")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		return fmt.Errorf("llm temperature must be between 0 and 1")
	}
	if c.LLM.Throttle < 0 {
		return fmt.Errorf("llm throttle must not be negative")
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm max_retries must not be negative")
	}
	if c.Upload.MaxFileSize <= 0 {
		return fmt.Errorf("upload max_file_size must be positive")
	}
	if len(c.Upload.QuestionnaireExtensions) == 0 {
		return fmt.Errorf("at least one questionnaire extension is required")
	}
	if c.AnswerLibrary.MaxBulkImport <= 0 {
		return fmt.Errorf("answer_library max_bulk_import must be positive")
	}
	if c.Prompts.TemplatePath == "" {
		return fmt.Errorf("prompts template_path is required")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// URL returns the connection string in URL form, as golang-migrate expects it.
func (c *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

// HasExtension reports whether filename ends in one of exts (case-insensitive).
func HasExtension(filename string, exts []string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
