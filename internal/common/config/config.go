// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers" validate:"dive"`
	APIs          APIsConfig              `mapstructure:"apis"`
	Reasoning     ReasoningConfig         `mapstructure:"reasoning"`
	Retrieval     RetrievalConfig         `mapstructure:"retrieval"`
	Tasks         TasksConfig             `mapstructure:"tasks"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address" validate:"required"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active" validate:"gte=1"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses     []string `mapstructure:"addresses"`
	Username      string   `mapstructure:"username"`
	Password      string   `mapstructure:"password"`
	SSLEnabled    bool     `mapstructure:"ssl_enabled"`
	URL           string   `mapstructure:"url"`
	AnswerIndex   string   `mapstructure:"answer_index"`
	CitationIndex string   `mapstructure:"citation_index"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active" validate:"gte=1"`
	Timeout       int  `mapstructure:"timeout" validate:"gte=1"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries" validate:"gte=0"`
}

// APIsConfig selects and configures the answer-generation provider.
type APIsConfig struct {
	Provider string       `mapstructure:"provider" validate:"oneof=openai genai local"`
	OpenAI   OpenAIConfig `mapstructure:"openai"`
	GenAI    GenAIConfig  `mapstructure:"genai"`
}

// OpenAIConfig points at any OpenAI-compatible chat completion API (Grok included).
type OpenAIConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `mapstructure:"max_tokens" validate:"gte=1"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds
}

type GenAIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// ReasoningConfig tunes the chat pipeline.
type ReasoningConfig struct {
	HistoryLimit          int `mapstructure:"history_limit" validate:"gte=1"`
	VerifyMinAnswerLength int `mapstructure:"verify_min_answer_length" validate:"gte=0"`
	MaxCitations          int `mapstructure:"max_citations" validate:"gte=1"`
}

type RetrievalConfig struct {
	Backend      string `mapstructure:"backend" validate:"oneof=elasticsearch memory"`
	CacheEnabled bool   `mapstructure:"cache_enabled"`
	CacheTTL     int    `mapstructure:"cache_ttl"` // milliseconds
	CorpusPath   string `mapstructure:"corpus_path"`
}

type TasksConfig struct {
	Concurrency int `mapstructure:"concurrency" validate:"gte=1"`
	StatusTTL   int `mapstructure:"status_ttl"` // milliseconds
}

// NotificationConfig holds settings for the batch completion notice.
type NotificationConfig struct {
	Region string `mapstructure:"region"`
	SNS    struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn" validate:"required_if=Enabled true"`
	} `mapstructure:"sns"`
	SES struct {
		Enabled   bool     `mapstructure:"enabled"`
		FromEmail string   `mapstructure:"from_email" validate:"omitempty,email"`
		ToEmails  []string `mapstructure:"to_emails" validate:"omitempty,dive,email"`
	} `mapstructure:"ses"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console text"`
	Output string `mapstructure:"output"`
}
