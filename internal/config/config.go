package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the articleforge server.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Queue      QueueConfig
	Generation GenerationConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// QueueConfig configures the durable queue backend. An empty URL disables the
// durable path and every dispatch falls back to a direct call.
type QueueConfig struct {
	URL          string
	Name         string
	PollInterval time.Duration
}

// GenerationConfig configures the generation backend and the orchestration
// budgets around it.
type GenerationConfig struct {
	Provider string

	// MaxConcurrent is the resource limiter capacity: how many generation
	// calls may be in flight against the backend at once.
	MaxConcurrent int

	// MaxActivePerOwner is the admission budget: submissions are rejected
	// once an owner has this many jobs in non-terminal states.
	MaxActivePerOwner int

	// BudgetScope is "shared" (single-article and bulk jobs count against
	// one budget) or "per-kind" (independent budgets per job kind).
	BudgetScope string

	// UnitDeadline bounds one article's backend call. Bulk calls get
	// UnitDeadline per unit, capped at BulkDeadlineCap.
	UnitDeadline    time.Duration
	BulkDeadlineCap time.Duration

	// SettleDelay is how long the worker waits after a transport failure
	// before checking whether output landed anyway.
	SettleDelay time.Duration

	// SweepInterval and SweepMargin drive the out-of-band pass that
	// reconciles jobs stuck in processing. The margin is slack beyond each
	// job's own execution deadline, not an absolute age.
	SweepInterval time.Duration
	SweepMargin   time.Duration

	MaxBulkTopics int

	Ollama    OllamaConfig
	VLLM      VLLMConfig
	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type VLLMConfig struct {
	BaseURL string
	Model   string
}

type OpenAIConfig struct {
	APIKey string
	Model  string
}

type AnthropicConfig struct {
	APIKey string
	Model  string
}

var validProviders = map[string]bool{
	"ollama":    true,
	"vllm":      true,
	"openai":    true,
	"anthropic": true,
	"mock":      true,
}

// Budget scopes for per-owner admission accounting.
const (
	BudgetScopeShared  = "shared"
	BudgetScopePerKind = "per-kind"
)

var validBudgetScopes = map[string]bool{
	BudgetScopeShared:  true,
	BudgetScopePerKind: true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("ARTICLEFORGE_PORT", 8080),
			Env:  envString("ARTICLEFORGE_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Queue: QueueConfig{
			URL:          os.Getenv("QUEUE_REDIS_URL"),
			Name:         envString("QUEUE_NAME", "articleforge:generation"),
			PollInterval: envDuration("QUEUE_POLL_INTERVAL", 2*time.Second),
		},
		Generation: GenerationConfig{
			Provider:          os.Getenv("GENERATION_PROVIDER"),
			MaxConcurrent:     envInt("MAX_CONCURRENT_ARTICLES", 2),
			MaxActivePerOwner: envInt("GENERATION_MAX_ACTIVE_PER_OWNER", 10),
			BudgetScope:       envString("GENERATION_BUDGET_SCOPE", "shared"),
			UnitDeadline:      envDuration("GENERATION_UNIT_DEADLINE", 10*time.Minute),
			BulkDeadlineCap:   envDuration("GENERATION_BULK_DEADLINE_CAP", 60*time.Minute),
			SettleDelay:       envDuration("GENERATION_SETTLE_DELAY", 3*time.Second),
			SweepInterval:     envDuration("GENERATION_SWEEP_INTERVAL", time.Minute),
			SweepMargin:       envDuration("GENERATION_SWEEP_MARGIN", 5*time.Minute),
			MaxBulkTopics:     envInt("GENERATION_MAX_BULK_TOPICS", 50),
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_MODEL", "llama3"),
			},
			VLLM: VLLMConfig{
				BaseURL: envString("VLLM_BASE_URL", "http://localhost:8000"),
				Model:   envString("VLLM_MODEL", ""),
			},
			OpenAI: OpenAIConfig{
				APIKey: os.Getenv("OPENAI_API_KEY"),
				Model:  envString("OPENAI_MODEL", "gpt-4"),
			},
			Anthropic: AnthropicConfig{
				APIKey: os.Getenv("ANTHROPIC_API_KEY"),
				Model:  envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Generation.Provider == "" {
		return fmt.Errorf("GENERATION_PROVIDER is required")
	}
	if !validProviders[c.Generation.Provider] {
		return fmt.Errorf("GENERATION_PROVIDER must be one of ollama, vllm, openai, anthropic, mock; got %q", c.Generation.Provider)
	}

	if c.Generation.Provider == "openai" && c.Generation.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when GENERATION_PROVIDER is openai")
	}
	if c.Generation.Provider == "anthropic" && c.Generation.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when GENERATION_PROVIDER is anthropic")
	}

	if c.Generation.MaxConcurrent < 1 {
		return fmt.Errorf("MAX_CONCURRENT_ARTICLES must be at least 1, got %d", c.Generation.MaxConcurrent)
	}
	if c.Generation.MaxActivePerOwner < 1 {
		return fmt.Errorf("GENERATION_MAX_ACTIVE_PER_OWNER must be at least 1, got %d", c.Generation.MaxActivePerOwner)
	}
	if !validBudgetScopes[c.Generation.BudgetScope] {
		return fmt.Errorf("GENERATION_BUDGET_SCOPE must be shared or per-kind, got %q", c.Generation.BudgetScope)
	}
	if c.Generation.MaxBulkTopics < 1 {
		return fmt.Errorf("GENERATION_MAX_BULK_TOPICS must be at least 1, got %d", c.Generation.MaxBulkTopics)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
