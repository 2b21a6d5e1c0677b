package genai

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"docqa-workers/internal/common/config"
	"docqa-workers/internal/common/errors"
	"docqa-workers/internal/models"
)

// OpenAI calls any OpenAI-compatible chat completions API; the default base
// URL points at Grok.
type OpenAI struct {
	client *openai.Client
	params Params
}

func NewOpenAI(cfg config.OpenAIConfig) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: config.GetDuration(cfg.Timeout)}

	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		params: Params{Model: cfg.Model, Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens},
	}
}

func (o *OpenAI) Name() string { return ProviderOpenAI }

func (o *OpenAI) Generate(ctx context.Context, question string, chunks []models.EvidenceChunk) (Generation, error) {
	req := openai.ChatCompletionRequest{
		Model: o.params.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(question, chunks)},
		},
		Temperature: o.params.Temperature,
		MaxTokens:   o.params.MaxTokens,
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return Generation{}, errors.NewProviderTimeoutError(ProviderOpenAI)
		}
		return Generation{}, errors.NewProviderFailedError(ProviderOpenAI, err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Generation{}, errors.NewProviderFailedError(ProviderOpenAI, stderrors.New("empty completion"))
	}

	return Generation{
		Answer:  resp.Choices[0].Message.Content,
		Model:   o.params.Model,
		Success: true,
	}, nil
}
