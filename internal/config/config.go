// Package config loads and validates application configuration from
// environment variables and an optional config file.
package config

// Config holds all application configuration, organized into logical groups.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"      validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// ServerConfig contains the HTTP server settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`

	// Realtime enables the in-memory event hub for realtime push
	// transports. When off, job events are logged instead.
	Realtime bool `mapstructure:"realtime"`
}

// DatabaseConfig contains the database settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	JWTSecret          string `mapstructure:"jwt_secret"           validate:"required,min=32"`
	TokenLifetimeHours int    `mapstructure:"token_lifetime_hours" validate:"gte=0"`
}

// LLMConfig contains the provider API settings. Provider keys are optional
// individually, but at least one optimizer provider must be configured for
// optimization jobs to run.
type LLMConfig struct {
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	GeminiAPIKey    string `mapstructure:"gemini_api_key"`
	OpenAIModel     string `mapstructure:"openai_model"`
	AnthropicModel  string `mapstructure:"anthropic_model"`
	GeminiModel     string `mapstructure:"gemini_model"`
}

// WorkerConfig tunes the job queue and worker pools.
type WorkerConfig struct {
	Concurrency       int `mapstructure:"concurrency"         validate:"gte=0"`
	JobTimeoutSeconds int `mapstructure:"job_timeout_seconds" validate:"gte=0"`
	RetryBaseSeconds  int `mapstructure:"retry_base_seconds"  validate:"gte=0"`
}

// PipelineConfig holds the startup values of the pipeline's mutable policy.
type PipelineConfig struct {
	AutoClassification bool `mapstructure:"auto_classification"`
	AutoOptimization   bool `mapstructure:"auto_optimization"`
	DuplicateDetection bool `mapstructure:"duplicate_detection"`
	QualityAssessment  bool `mapstructure:"quality_assessment"`
	BatchSize          int  `mapstructure:"batch_size" validate:"gte=0"`
}
