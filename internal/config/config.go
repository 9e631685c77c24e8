package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Host           string   `yaml:"host" env:"SERVER_HOST"`
		Port           int      `yaml:"port" env:"PORT"`
		BodyLimitMB    int      `yaml:"body_limit_mb" env:"SERVER_BODY_LIMIT_MB"`
		AllowedOrigins string   `yaml:"allowed_origins" env:"SERVER_ALLOWED_ORIGINS"`
		PublicURL      string   `yaml:"public_url" env:"PUBLIC_URL"`
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"server"`

	Storage struct {
		Driver    string `yaml:"driver" env:"DB_DRIVER"`
		DSN       string `yaml:"dsn" env:"DB_DSN"`
		TempDir   string `yaml:"temp_dir" env:"STORAGE_TEMP_DIR"`
		OutputDir string `yaml:"output_dir" env:"STORAGE_OUTPUT_DIR"`
	} `yaml:"storage"`

	Workers struct {
		Count     int `yaml:"count" env:"WORKERS_COUNT"`
		QueueSize int `yaml:"queue_size" env:"WORKERS_QUEUE_SIZE"`
	} `yaml:"workers"`

	OpenAI struct {
		APIKey             string `yaml:"api_key" env:"OPENAI_API_KEY"`
		BaseURL            string `yaml:"base_url" env:"OPENAI_BASE_URL"`
		TranscriptionModel string `yaml:"transcription_model" env:"OPENAI_TRANSCRIPTION_MODEL"`
		CompletionModel    string `yaml:"completion_model" env:"OPENAI_COMPLETION_MODEL"`
	} `yaml:"openai"`

	Gemini struct {
		APIKey string `yaml:"api_key" env:"GEMINI_API_KEY"`
		Model  string `yaml:"model" env:"GEMINI_MODEL"`
	} `yaml:"gemini"`

	Completion struct {
		Provider string `yaml:"provider" env:"COMPLETION_PROVIDER"`
	} `yaml:"completion"`

	Limits struct {
		MaxFileSizeMB      int `yaml:"max_file_size_mb" env:"LIMITS_MAX_FILE_SIZE_MB"`
		FreeTranscriptions int `yaml:"free_transcriptions" env:"LIMITS_FREE_TRANSCRIPTIONS"`
	} `yaml:"limits"`

	Pipeline struct {
		HeartbeatIntervalMS int `yaml:"heartbeat_interval_ms" env:"PIPELINE_HEARTBEAT_INTERVAL_MS"`
		RetryAttempts       int `yaml:"retry_attempts" env:"PIPELINE_RETRY_ATTEMPTS"`
		RetryBaseDelayMS    int `yaml:"retry_base_delay_ms" env:"PIPELINE_RETRY_BASE_DELAY_MS"`
	} `yaml:"pipeline"`

	QA struct {
		CacheSize int `yaml:"cache_size" env:"QA_CACHE_SIZE"`
	} `yaml:"qa"`

	Cleanup struct {
		IntervalMinutes       int `yaml:"interval_minutes" env:"CLEANUP_INTERVAL_MINUTES"`
		MaxAgeHours           int `yaml:"max_age_hours" env:"CLEANUP_MAX_AGE_HOURS"`
		AbandonedAfterMinutes int `yaml:"abandoned_after_minutes" env:"CLEANUP_ABANDONED_AFTER_MINUTES"`
	} `yaml:"cleanup"`

	GoogleDrive struct {
		CredentialsFile string `yaml:"credentials_file" env:"GDRIVE_CREDENTIALS_FILE"`
		TokenFile       string `yaml:"token_file" env:"GDRIVE_TOKEN_FILE"`
		FolderName      string `yaml:"folder_name" env:"GDRIVE_FOLDER_NAME"`
	} `yaml:"google_drive"`

	Stripe struct {
		SecretKey     string `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
		WebhookSecret string `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
		PriceID       string `yaml:"price_id" env:"STRIPE_PRICE_ID"`
	} `yaml:"stripe"`

	Auth struct {
		JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
		Issuer    string `yaml:"issuer" env:"JWT_ISSUER"`
	} `yaml:"auth"`

	Logging struct {
		Level string `yaml:"level" env:"LOG_LEVEL"`
		JSON  bool   `yaml:"json" env:"LOG_JSON"`
	} `yaml:"logging"`

	Tracing struct {
		Enabled     bool   `yaml:"enabled" env:"TRACING_ENABLED"`
		ServiceName string `yaml:"service_name" env:"TRACING_SERVICE_NAME"`
	} `yaml:"tracing"`
}

// Load reads the YAML file at path, overlays environment variables and validates.
// A missing file is not an error; the environment alone can configure the server.
func Load(path string) (*Config, error) {
	var cfg Config

	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required values and fills defaults
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	switch c.Storage.Driver {
	case "":
		c.Storage.Driver = "sqlite"
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("storage.driver must be sqlite or postgres, got %q", c.Storage.Driver)
	}
	if c.Storage.DSN == "" {
		if c.Storage.Driver == "postgres" {
			return fmt.Errorf("storage.dsn is required for postgres")
		}
		c.Storage.DSN = "data/meetings.db"
	}

	switch c.Completion.Provider {
	case "":
		c.Completion.Provider = "openai"
	case "openai", "gemini":
	default:
		return fmt.Errorf("completion.provider must be openai or gemini, got %q", c.Completion.Provider)
	}

	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.AllowedOrigins == "" {
		c.Server.AllowedOrigins = "*"
	}
	if c.Storage.TempDir == "" {
		c.Storage.TempDir = "temp"
	}
	if c.Storage.OutputDir == "" {
		c.Storage.OutputDir = "outputs"
	}
	if c.Workers.Count <= 0 {
		c.Workers.Count = 2
	}
	if c.Workers.QueueSize <= 0 {
		c.Workers.QueueSize = 100
	}
	if c.OpenAI.TranscriptionModel == "" {
		c.OpenAI.TranscriptionModel = "whisper-1"
	}
	if c.OpenAI.CompletionModel == "" {
		c.OpenAI.CompletionModel = "gpt-4"
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.5-flash"
	}
	if c.Limits.MaxFileSizeMB <= 0 {
		c.Limits.MaxFileSizeMB = 25
	}
	if c.Limits.FreeTranscriptions <= 0 {
		c.Limits.FreeTranscriptions = 2
	}
	if c.Server.BodyLimitMB < c.Limits.MaxFileSizeMB {
		// Leave room for multipart framing so oversized files reach the validator
		c.Server.BodyLimitMB = c.Limits.MaxFileSizeMB + 8
	}
	if c.Pipeline.HeartbeatIntervalMS <= 0 {
		c.Pipeline.HeartbeatIntervalMS = 200
	}
	if c.Pipeline.RetryAttempts <= 0 {
		c.Pipeline.RetryAttempts = 3
	}
	if c.Pipeline.RetryBaseDelayMS <= 0 {
		c.Pipeline.RetryBaseDelayMS = 1000
	}
	if c.QA.CacheSize <= 0 {
		c.QA.CacheSize = 1024
	}
	if c.Cleanup.IntervalMinutes <= 0 {
		c.Cleanup.IntervalMinutes = 30
	}
	if c.Cleanup.MaxAgeHours <= 0 {
		c.Cleanup.MaxAgeHours = 24
	}
	if c.Cleanup.AbandonedAfterMinutes <= 0 {
		c.Cleanup.AbandonedAfterMinutes = 30
	}
	if c.GoogleDrive.FolderName == "" {
		c.GoogleDrive.FolderName = "Meeting Transcripts"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "meeting-insights"
	}

	return nil
}

// HeartbeatInterval is the synthetic progress tick
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Pipeline.HeartbeatIntervalMS) * time.Millisecond
}

// RetryBaseDelay is multiplied by the attempt number between retries
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Pipeline.RetryBaseDelayMS) * time.Millisecond
}

// MaxFileSize is the upload ceiling in bytes
func (c *Config) MaxFileSize() int64 {
	return int64(c.Limits.MaxFileSizeMB) << 20
}
