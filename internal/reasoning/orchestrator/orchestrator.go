// Package orchestrator sequences the reasoning pipeline for one chat
// question: context resolution, query analysis, reasoning, then answer
// verification and self-correction.
package orchestrator

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"docqa-workers/internal/common/config"
	"docqa-workers/internal/common/errors"
	"docqa-workers/internal/common/logger"
	"docqa-workers/internal/common/metrics"
	"docqa-workers/internal/common/observability"
	"docqa-workers/internal/genai"
	"docqa-workers/internal/models"
	contextmanager "docqa-workers/internal/reasoning/context-manager"
	"docqa-workers/internal/reasoning/engine"
	queryanalyzer "docqa-workers/internal/reasoning/query-analyzer"
	"docqa-workers/internal/reasoning/verifier"
	"docqa-workers/internal/retrieval"
)

const (
	ClarificationAnswer = "Could you clarify your question? Please name the company, document or topic you are asking about."

	DefaultVerifyMinAnswerLength = 50
)

type Config struct {
	HistoryLimit          int
	VerifyMinAnswerLength int
	MaxCitations          int
}

// ConfigFrom maps the reasoning section of the service configuration.
func ConfigFrom(cfg config.ReasoningConfig) Config {
	return Config{
		HistoryLimit:          cfg.HistoryLimit,
		VerifyMinAnswerLength: cfg.VerifyMinAnswerLength,
		MaxCitations:          cfg.MaxCitations,
	}
}

type ChatRequest struct {
	Question            string                    `json:"question"`
	DocumentIDs         []string                  `json:"documentIds,omitempty"`
	ConversationHistory []models.ConversationTurn `json:"conversationHistory,omitempty"`
}

// Orchestrator composes the stateless reasoning components. It is safe for
// concurrent use.
type Orchestrator struct {
	contexts     *contextmanager.Manager
	analyzer     *queryanalyzer.Analyzer
	engine       *engine.Engine
	verifier     *verifier.Verifier
	obs          *observability.Observability
	minVerifyLen int
	log          logger.Logger
}

func New(cfg Config, index retrieval.Index, provider genai.Provider, obs *observability.Observability, log logger.Logger) *Orchestrator {
	log = logger.OrNoOp(log)
	if obs == nil {
		obs = observability.Nop()
	}
	if cfg.VerifyMinAnswerLength <= 0 {
		cfg.VerifyMinAnswerLength = DefaultVerifyMinAnswerLength
	}

	return &Orchestrator{
		contexts:     contextmanager.New(contextmanager.Config{HistoryLimit: cfg.HistoryLimit}, log),
		analyzer:     queryanalyzer.New(log),
		engine:       engine.New(engine.Config{MaxCitations: cfg.MaxCitations}, index, provider, log),
		verifier:     verifier.New(log),
		obs:          obs,
		minVerifyLen: cfg.VerifyMinAnswerLength,
		log:          log.With(map[string]interface{}{"component": "orchestrator"}),
	}
}

// GenerateChatResponse answers a chat question. The only error is
// INVALID_QUERY for an empty question; every other outcome is a response.
func (o *Orchestrator) GenerateChatResponse(ctx context.Context, req ChatRequest) (models.ChatResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return models.ChatResponse{}, errors.NewInvalidQueryError("question must not be empty")
	}

	ctx, span := o.obs.StartSpan(ctx, "chat.generate_response",
		attribute.Int("history.turns", len(req.ConversationHistory)),
		attribute.Int("documents", len(req.DocumentIDs)),
	)
	defer span.End()

	_, end := o.obs.Stage(ctx, observability.StageContext)
	prepared := o.contexts.Prepare(question, req.ConversationHistory)
	end()

	contextUsed := len(prepared.RelevantHistory) > 0 || prepared.AugmentedQuery != question

	if prepared.NeedsClarification {
		metrics.ReasoningClarifications.Inc()
		metrics.ReasoningRequests.WithLabelValues(string(models.ReasoningClarification)).Inc()
		span.SetAttributes(attribute.String("reasoning.type", string(models.ReasoningClarification)))
		o.log.Info("Question needs clarification", map[string]interface{}{"question": question})

		return models.ChatResponse{
			Answer:             ClarificationAnswer,
			Citations:          []models.Citation{},
			ReasoningType:      models.ReasoningClarification,
			ReasoningSteps:     []models.ReasoningStep{},
			ContextUsed:        contextUsed,
			NeedsClarification: true,
		}, nil
	}

	prompt := ""
	if len(prepared.RelevantHistory) > 0 {
		prompt = contextmanager.FormatForProvider(prepared)
	}

	resp := o.reason(ctx, span, prepared.AugmentedQuery, prompt, req.ConversationHistory, req.DocumentIDs)
	resp.ContextUsed = contextUsed
	return resp, nil
}

// AnswerQuestion runs a standalone question, such as one questionnaire
// entry, without the conversational stage.
func (o *Orchestrator) AnswerQuestion(ctx context.Context, question string, documentIDs []string) (models.ChatResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return models.ChatResponse{}, errors.NewInvalidQueryError("question must not be empty")
	}

	ctx, span := o.obs.StartSpan(ctx, "batch.answer_question", attribute.Int("documents", len(documentIDs)))
	defer span.End()

	return o.reason(ctx, span, question, "", nil, documentIDs), nil
}

// Analyze exposes the analyzer on its own for tooling.
func (o *Orchestrator) Analyze(question string) models.QueryAnalysis {
	return o.analyzer.Analyze(question, nil)
}

func (o *Orchestrator) reason(ctx context.Context, span trace.Span, query, prompt string, history []models.ConversationTurn, documentIDs []string) models.ChatResponse {
	_, end := o.obs.Stage(ctx, observability.StageAnalyze)
	analysis := o.analyzer.Analyze(query, history)
	end()

	reasonCtx, end := o.obs.Stage(ctx, observability.StageReason)
	result := o.engine.Process(reasonCtx, engine.Request{
		Query:       query,
		Prompt:      prompt,
		Analysis:    analysis,
		DocumentIDs: documentIDs,
	})
	end()

	resp := models.ChatResponse{
		Answer:          result.Answer,
		Citations:       result.Citations,
		ConfidenceScore: result.Confidence,
		RelevantChunks:  result.RelevantChunks,
		ReasoningType:   result.ReasoningType,
		QueryType:       analysis.QueryType,
		Complexity:      analysis.Complexity,
		ReasoningSteps:  result.Steps,
	}

	if len(resp.Answer) > o.minVerifyLen {
		_, end := o.obs.Stage(ctx, observability.StageVerify)
		verification := o.verifier.Verify(resp.Answer, result.Evidence)
		fix := o.verifier.Correct(resp.Answer, verification)
		if fix.Corrected {
			metrics.AnswerCorrections.Inc()
			resp.Answer = fix.Answer
			verification = o.verifier.Verify(resp.Answer, result.Evidence)
		}
		resp.Verification = &verification
		end()
	}

	metrics.ReasoningRequests.WithLabelValues(string(resp.ReasoningType)).Inc()
	span.SetAttributes(
		attribute.String("query.type", string(resp.QueryType)),
		attribute.String("query.complexity", string(resp.Complexity)),
		attribute.String("reasoning.type", string(resp.ReasoningType)),
		attribute.Int("chunks", resp.RelevantChunks),
	)

	o.log.Info("Question answered", map[string]interface{}{
		"queryType":     resp.QueryType,
		"complexity":    resp.Complexity,
		"reasoningType": resp.ReasoningType,
		"chunks":        resp.RelevantChunks,
		"confidence":    resp.ConfidenceScore,
	})
	return resp
}
