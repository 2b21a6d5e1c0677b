// Package getrequeststatus reports the state of a queued background request.
package getrequeststatus

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"docqa-workers/internal/common/camunda"
	"docqa-workers/internal/common/config"
	"docqa-workers/internal/common/logger"
	"docqa-workers/internal/common/observability"
	"docqa-workers/internal/common/validation"
	"docqa-workers/internal/models"
)

const TaskType = "get-request-status"

type Input struct {
	RequestID string `json:"requestId"`
}

// Output carries requestDone so a BPMN loop can gate on a single boolean.
type Output struct {
	RequestID    string                 `json:"requestId"`
	Type         string                 `json:"requestType"`
	Status       models.RequestStatus   `json:"requestStatus"`
	Progress     int                    `json:"progress"`
	Result       map[string]interface{} `json:"result,omitempty"`
	ErrorMessage string                 `json:"errorMessage,omitempty"`
	Done         bool                   `json:"requestDone"`
}

var inputSchema = validation.MustCompile(map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"requestId"},
	"properties": map[string]interface{}{
		"requestId": map[string]interface{}{"type": "string", "pattern": "^req_"},
	},
})

// StatusReader looks up a request. Every tasks.Tracker implements it.
type StatusReader interface {
	Get(ctx context.Context, id string) (models.AsyncRequest, error)
}

type Handler struct {
	runner  *camunda.JobRunner
	tracker StatusReader
}

func NewHandler(wcfg config.WorkerConfig, tracker StatusReader, log logger.Logger, obs *observability.Observability) *Handler {
	return &Handler{
		runner:  camunda.NewJobRunner(TaskType, wcfg, log, obs),
		tracker: tracker,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.runner.Run(client, job, func(ctx context.Context) (interface{}, error) {
		var input Input
		if err := camunda.DecodeVariables(job, inputSchema, &input); err != nil {
			return nil, err
		}
		return h.Execute(ctx, &input)
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	req, err := h.tracker.Get(ctx, input.RequestID)
	if err != nil {
		return nil, err
	}
	return &Output{
		RequestID:    req.ID,
		Type:         req.Type,
		Status:       req.Status,
		Progress:     req.Progress,
		Result:       req.Result,
		ErrorMessage: req.ErrorMessage,
		Done:         req.Status.IsTerminal(),
	}, nil
}
