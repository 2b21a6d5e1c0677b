// Package generateprojectanswers queues a batch run that answers every
// question of a questionnaire project.
package generateprojectanswers

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"docqa-workers/internal/answers"
	"docqa-workers/internal/common/camunda"
	"docqa-workers/internal/common/config"
	"docqa-workers/internal/common/logger"
	"docqa-workers/internal/common/observability"
	"docqa-workers/internal/common/validation"
	"docqa-workers/internal/models"
)

const TaskType = "generate-project-answers"

type Input struct {
	ProjectID string `json:"projectId"`
}

// Output hands the process a request id to poll with get-request-status.
type Output struct {
	RequestID string               `json:"requestId"`
	Status    models.RequestStatus `json:"requestStatus"`
}

var inputSchema = validation.MustCompile(map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"projectId"},
	"properties": map[string]interface{}{
		"projectId": map[string]interface{}{"type": "string", "minLength": 1},
	},
})

// BatchStarter queues a batch run. *answers.Service implements it.
type BatchStarter interface {
	Start(ctx context.Context, queue answers.Submitter, projectID string) (string, error)
}

type Handler struct {
	runner  *camunda.JobRunner
	service BatchStarter
	queue   answers.Submitter
}

func NewHandler(wcfg config.WorkerConfig, service BatchStarter, queue answers.Submitter, log logger.Logger, obs *observability.Observability) *Handler {
	return &Handler{
		runner:  camunda.NewJobRunner(TaskType, wcfg, log, obs),
		service: service,
		queue:   queue,
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
	id, err := h.service.Start(ctx, h.queue, input.ProjectID)
	if err != nil {
		return nil, err
	}

	h.runner.Logger.Info("Batch answering queued", map[string]interface{}{
		"projectId": input.ProjectID,
		"requestId": id,
	})
	return &Output{RequestID: id, Status: models.RequestPending}, nil
}
