// Package generatechatresponse answers a document question from a BPMN
// process, optionally in the context of a prior conversation.
package generatechatresponse

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"docqa-workers/internal/common/camunda"
	"docqa-workers/internal/common/config"
	"docqa-workers/internal/common/logger"
	"docqa-workers/internal/common/observability"
	"docqa-workers/internal/models"
	"docqa-workers/internal/reasoning/orchestrator"
)

const TaskType = "generate-chat-response"

// Responder is the chat pipeline. *orchestrator.Orchestrator implements it.
type Responder interface {
	GenerateChatResponse(ctx context.Context, req orchestrator.ChatRequest) (models.ChatResponse, error)
}

type Handler struct {
	runner    *camunda.JobRunner
	responder Responder
}

func NewHandler(wcfg config.WorkerConfig, responder Responder, log logger.Logger, obs *observability.Observability) *Handler {
	return &Handler{
		runner:    camunda.NewJobRunner(TaskType, wcfg, log, obs),
		responder: responder,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.runner.Run(client, job, func(ctx context.Context) (interface{}, error) {
		input, err := h.parseInput(job)
		if err != nil {
			return nil, err
		}
		return h.Execute(ctx, input)
	})
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	var input Input
	if err := camunda.DecodeVariables(job, inputSchema, &input); err != nil {
		return nil, err
	}
	return &input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	resp, err := h.responder.GenerateChatResponse(ctx, orchestrator.ChatRequest{
		Question:            input.Question,
		DocumentIDs:         input.DocumentIDs,
		ConversationHistory: input.ConversationHistory,
	})
	if err != nil {
		return nil, err
	}

	h.runner.Logger.Info("Chat response generated", map[string]interface{}{
		"reasoningType":  resp.ReasoningType,
		"confidence":     resp.ConfidenceScore,
		"citations":      len(resp.Citations),
		"relevantChunks": resp.RelevantChunks,
	})
	return &resp, nil
}
