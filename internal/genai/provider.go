// Package genai talks to answer-generation providers. Every provider turns a
// question plus evidence chunks into a draft answer.
package genai

import (
	"context"
	"fmt"

	"docqa-workers/internal/common/config"
	"docqa-workers/internal/common/logger"
	"docqa-workers/internal/common/metrics"
	"docqa-workers/internal/models"
)

const (
	ProviderOpenAI = "openai"
	ProviderGenAI  = "genai"
	ProviderLocal  = "local"
)

// Generation is one provider answer. Simulated marks answers produced by the
// local heuristic instead of a model.
type Generation struct {
	Answer    string `json:"answer"`
	Model     string `json:"model"`
	Success   bool   `json:"success"`
	Simulated bool   `json:"simulated"`
}

type Provider interface {
	Name() string
	Generate(ctx context.Context, question string, chunks []models.EvidenceChunk) (Generation, error)
}

// Params are the sampling settings shared by the remote providers.
type Params struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// Fallback wraps a remote provider and answers locally whenever it fails.
// Generate on a Fallback never returns an error.
type Fallback struct {
	primary Provider
	local   *Local
	log     logger.Logger
}

func WithFallback(primary Provider, log logger.Logger) *Fallback {
	return &Fallback{
		primary: primary,
		local:   NewLocal(),
		log:     logger.OrNoOp(log).With(map[string]interface{}{"component": "genai", "provider": primary.Name()}),
	}
}

func (f *Fallback) Name() string { return f.primary.Name() }

func (f *Fallback) Generate(ctx context.Context, question string, chunks []models.EvidenceChunk) (Generation, error) {
	gen, err := f.primary.Generate(ctx, question, chunks)
	if err == nil {
		return gen, nil
	}

	metrics.ProviderFallbacks.WithLabelValues(f.primary.Name()).Inc()
	f.log.Warn("Provider failed, answering locally", map[string]interface{}{
		"error":  err.Error(),
		"chunks": len(chunks),
	})
	return f.local.Generate(ctx, question, chunks)
}

// NewFromConfig builds the configured provider. Remote providers come wrapped
// in a Fallback.
func NewFromConfig(cfg config.APIsConfig, log logger.Logger) (Provider, error) {
	params := Params{
		Model:       cfg.OpenAI.Model,
		Temperature: cfg.OpenAI.Temperature,
		MaxTokens:   cfg.OpenAI.MaxTokens,
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		return WithFallback(NewOpenAI(cfg.OpenAI), log), nil
	case ProviderGenAI:
		return WithFallback(NewGenAI(cfg.GenAI, params), log), nil
	case ProviderLocal, "":
		return NewLocal(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
