package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseYAML = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: docqa
    user: docqa
  elasticsearch:
    addresses: ["http://localhost:9200"]
  redis:
    address: localhost:6379
workers:
  generate-chat-response:
    enabled: true
    timeout: 60000
apis:
  provider: genai
  genai:
    base_url: ${TEST_GENAI_URL}
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaultsAndExpandsEnv(t *testing.T) {
	t.Setenv("TEST_GENAI_URL", "http://genai.local")

	cfg, err := LoadFromFile(writeConfig(t, baseYAML))
	require.NoError(t, err)

	assert.Equal(t, "http://genai.local", cfg.APIs.GenAI.BaseURL)
	assert.Equal(t, "http://localhost:9200", cfg.Database.Elasticsearch.URL)
	assert.Equal(t, "docqa-answer-chunks", cfg.Database.Elasticsearch.AnswerIndex)
	assert.Equal(t, "docqa-citation-chunks", cfg.Database.Elasticsearch.CitationIndex)

	assert.Equal(t, 20, cfg.Reasoning.HistoryLimit)
	assert.Equal(t, 50, cfg.Reasoning.VerifyMinAnswerLength)
	assert.Equal(t, 5, cfg.Reasoning.MaxCitations)
	assert.Equal(t, 4, cfg.Tasks.Concurrency)
	assert.Equal(t, 24*time.Hour, GetDuration(cfg.Tasks.StatusTTL))
	assert.Equal(t, 5*time.Minute, GetDuration(cfg.Retrieval.CacheTTL))
	assert.Equal(t, "grok-beta", cfg.APIs.OpenAI.Model)

	wc := GetWorkerConfig(cfg, "generate-chat-response")
	assert.Equal(t, 60000, wc.Timeout)
	assert.Equal(t, 5, wc.MaxJobsActive)
	assert.Equal(t, 3, wc.MaxRetries)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing broker",
			yaml:    "database:\n  postgres:\n    host: h\n    database: d\n    user: u\nretrieval:\n  backend: memory\n",
			wantErr: "BrokerAddress",
		},
		{
			name:    "unknown provider",
			yaml:    "camunda:\n  broker_address: b\napis:\n  provider: bard\nretrieval:\n  backend: memory\n",
			wantErr: "Provider",
		},
		{
			name:    "elasticsearch backend without address",
			yaml:    "camunda:\n  broker_address: b\ndatabase:\n  postgres:\n    host: h\n    database: d\n    user: u\n",
			wantErr: "elasticsearch",
		},
		{
			name:    "cache without redis",
			yaml:    "camunda:\n  broker_address: b\ndatabase:\n  postgres:\n    host: h\n    database: d\n    user: u\nretrieval:\n  backend: memory\n  cache_enabled: true\n",
			wantErr: "redis",
		},
		{
			name:    "openai without key",
			yaml:    "camunda:\n  broker_address: b\ndatabase:\n  postgres:\n    host: h\n    database: d\n    user: u\nretrieval:\n  backend: memory\napis:\n  provider: openai\n",
			wantErr: "api_key",
		},
		{
			name:    "batch worker without postgres",
			yaml:    "camunda:\n  broker_address: b\nretrieval:\n  backend: memory\n",
			wantErr: "postgres",
		},
		{
			name:    "ses without recipients",
			yaml:    "camunda:\n  broker_address: b\ndatabase:\n  postgres:\n    host: h\n    database: d\n    user: u\nretrieval:\n  backend: memory\nnotifications:\n  ses:\n    enabled: true\n    from_email: a@b.co\n",
			wantErr: "ses",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", "")
			t.Setenv("GROK_API_KEY", "")

			_, err := LoadFromFile(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_EnvOverride(t *testing.T) {
	t.Setenv("GROK_API_KEY", "xai-test")
	t.Setenv("OPENAI_API_KEY", "")

	yaml := "camunda:\n  broker_address: b\ndatabase:\n  postgres:\n    host: h\n    database: d\n    user: u\nretrieval:\n  backend: memory\napis:\n  provider: openai\n"
	cfg, err := LoadFromFile(writeConfig(t, yaml))
	require.NoError(t, err)
	assert.Equal(t, "xai-test", cfg.APIs.OpenAI.APIKey)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "local", cfg.APIs.Provider)
	assert.Equal(t, "memory", cfg.Retrieval.Backend)
	assert.Equal(t, 20, cfg.Reasoning.HistoryLimit)
}

func TestIsWorkerEnabled(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{"search-evidence": {Enabled: false}}}
	assert.False(t, IsWorkerEnabled(cfg, "search-evidence"))
	assert.True(t, IsWorkerEnabled(cfg, "generate-chat-response"))
}

func TestLoadFromFile_PostgresOptionalWithoutBatchWorker(t *testing.T) {
	yaml := "camunda:\n  broker_address: b\nretrieval:\n  backend: memory\nworkers:\n  generate-project-answers:\n    enabled: false\n"
	cfg, err := LoadFromFile(writeConfig(t, yaml))
	require.NoError(t, err)
	assert.Empty(t, cfg.Database.Postgres.Host)
	assert.Equal(t, 5, GetWorkerConfig(cfg, "generate-project-answers").MaxJobsActive)
}
