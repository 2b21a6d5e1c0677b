// Package searchevidence exposes a raw evidence search over either index
// layer so a process can inspect what the reasoning core would see.
package searchevidence

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"docqa-workers/internal/common/camunda"
	"docqa-workers/internal/common/config"
	"docqa-workers/internal/common/errors"
	"docqa-workers/internal/common/logger"
	"docqa-workers/internal/common/observability"
	"docqa-workers/internal/models"
	"docqa-workers/internal/retrieval"
)

const TaskType = "search-evidence"

type Handler struct {
	runner *camunda.JobRunner
	index  retrieval.Index
}

func NewHandler(wcfg config.WorkerConfig, index retrieval.Index, log logger.Logger, obs *observability.Observability) *Handler {
	return &Handler{
		runner: camunda.NewJobRunner(TaskType, wcfg, log, obs),
		index:  index,
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
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, errors.NewInvalidQueryError("query must not be empty")
	}

	layer := retrieval.Layer(input.Layer)
	if layer == "" {
		layer = retrieval.LayerAnswer
	}
	topK := input.TopK
	if topK <= 0 {
		topK = retrieval.DefaultTopK
	}

	chunks, err := retrieval.Search(ctx, h.index, layer, query, input.DocumentIDs, topK)
	if err != nil {
		return nil, classify(ctx, layer, err)
	}

	if chunks == nil {
		chunks = []models.EvidenceChunk{}
	}
	out := &Output{Chunks: chunks, TotalHits: len(chunks)}
	for _, c := range chunks {
		out.MaxScore = max(out.MaxScore, c.Score)
	}

	h.runner.Logger.Info("Evidence search completed", map[string]interface{}{
		"layer":     layer,
		"totalHits": out.TotalHits,
	})
	return out, nil
}

// classify keeps coded errors from the index and maps the rest to
// SEARCH_TIMEOUT or RETRIEVAL_FAILED.
func classify(ctx context.Context, layer retrieval.Layer, err error) error {
	if _, ok := errors.AsStandardError(err); ok {
		return err
	}
	if stderrors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return errors.NewSearchTimeoutError(string(layer))
	}
	return errors.NewRetrievalFailedError(string(layer), err)
}
