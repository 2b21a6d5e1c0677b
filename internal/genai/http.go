package genai

import (
	"context"
	stderrors "errors"
	"strings"

	"docqa-workers/internal/common/config"
	"docqa-workers/internal/common/errors"
	commonhttp "docqa-workers/internal/common/http"
	"docqa-workers/internal/models"
)

const generatePath = "/api/ai/generate"

type genAIRequest struct {
	Prompt      string       `json:"prompt"`
	System      string       `json:"system"`
	Context     genAIContext `json:"context"`
	MaxTokens   int          `json:"max_tokens"`
	Temperature float32      `json:"temperature"`
}

type genAIContext struct {
	Sources []genAISource `json:"sources"`
}

type genAISource struct {
	DocumentID string  `json:"documentId"`
	Name       string  `json:"name"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

type genAIResponse struct {
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
}

// GenAI calls the internal GenAI gateway over plain JSON.
type GenAI struct {
	client  *commonhttp.Client
	baseURL string
	params  Params
}

func NewGenAI(cfg config.GenAIConfig, params Params) *GenAI {
	client := commonhttp.NewClient(config.GetDuration(cfg.Timeout))
	if cfg.APIKey != "" {
		client.WithHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	return &GenAI{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		params:  params,
	}
}

func (g *GenAI) Name() string { return ProviderGenAI }

func (g *GenAI) Generate(ctx context.Context, question string, chunks []models.EvidenceChunk) (Generation, error) {
	req := genAIRequest{
		Prompt:      BuildPrompt(question, chunks),
		System:      SystemPrompt,
		MaxTokens:   g.params.MaxTokens,
		Temperature: g.params.Temperature,
	}
	for i, c := range chunks {
		if i == promptChunks {
			break
		}
		req.Context.Sources = append(req.Context.Sources, genAISource{
			DocumentID: c.DocumentID,
			Name:       c.SourceName(),
			Text:       c.Text,
			Score:      c.Score,
		})
	}

	var resp genAIResponse
	if err := g.client.PostJSON(ctx, g.baseURL+generatePath, req, &resp); err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return Generation{}, errors.NewProviderTimeoutError(ProviderGenAI)
		}
		return Generation{}, errors.NewProviderFailedError(ProviderGenAI, err)
	}

	if strings.TrimSpace(resp.Text) == "" {
		return Generation{}, errors.NewProviderFailedError(ProviderGenAI, stderrors.New("empty answer"))
	}

	return Generation{Answer: resp.Text, Model: ProviderGenAI, Success: true}, nil
}
