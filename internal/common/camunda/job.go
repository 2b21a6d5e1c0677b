package camunda

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"docqa-workers/internal/common/config"
	"docqa-workers/internal/common/errors"
	"docqa-workers/internal/common/logger"
	"docqa-workers/internal/common/metrics"
	"docqa-workers/internal/common/observability"
	"docqa-workers/internal/common/validation"
)

const DefaultJobTimeout = 30 * time.Second

// JobRunner carries the reporting side every worker handler shares: metrics,
// completion and failure through the ErrorHandler.
type JobRunner struct {
	TaskType string
	Timeout  time.Duration
	Logger   logger.Logger
	Errors   *errors.ErrorHandler
	Obs      *observability.Observability
	Retry    *RetryConfig
}

// NewJobRunner scopes log to taskType and takes the job timeout from wcfg.
func NewJobRunner(taskType string, wcfg config.WorkerConfig, log logger.Logger, obs *observability.Observability) *JobRunner {
	timeout := DefaultJobTimeout
	if wcfg.Timeout > 0 {
		timeout = config.GetDuration(wcfg.Timeout)
	}
	if obs == nil {
		obs = observability.Nop()
	}
	scoped := logger.OrNoOp(log).With(map[string]interface{}{"taskType": taskType})
	return &JobRunner{
		TaskType: taskType,
		Timeout:  timeout,
		Logger:   scoped,
		Errors:   errors.NewErrorHandler(scoped),
		Obs:      obs,
		Retry:    DefaultRetryConfig,
	}
}

// Run executes exec under the job timeout and reports the outcome to the
// broker. exec returns the variables to complete the job with.
func (r *JobRunner) Run(client worker.JobClient, job entities.Job, exec func(ctx context.Context) (interface{}, error)) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(r.TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(r.TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), r.Timeout)
	defer cancel()

	ctx, span := r.Obs.StartSpan(ctx, "job."+r.TaskType)
	defer span.End()

	r.Logger.Info("Processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	output, err := exec(ctx)
	if err != nil {
		stdErr := r.Errors.HandleJobError(ctx, client, job, err)
		metrics.WorkerJobsFailed.WithLabelValues(r.TaskType, string(stdErr.Code)).Inc()
		r.Obs.RecordJobProcessed(ctx, "failed")
		r.Obs.RecordJobDuration(ctx, time.Since(start), "failed")
		return
	}

	if err := r.complete(ctx, client, job, output); err != nil {
		r.Logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(r.TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(r.TaskType).Observe(time.Since(start).Seconds())
	r.Obs.RecordJobProcessed(ctx, "completed")
	r.Obs.RecordJobDuration(ctx, time.Since(start), "completed")
}

func (r *JobRunner) complete(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		return errors.NewInternalError(err)
	}
	return ExecuteWithRetry(ctx, r.Retry, "complete "+r.TaskType, func(ctx context.Context) error {
		_, err := cmd.Send(ctx)
		return err
	})
}

// DecodeVariables validates the job variables against schema and decodes
// them into out.
func DecodeVariables(job entities.Job, schema *validation.Schema, out interface{}) error {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return errors.NewInputParsingError(err)
	}
	if res := schema.Validate(variables); !res.Valid {
		return res.ToStandardError()
	}
	if err := json.Unmarshal([]byte(job.GetVariables()), out); err != nil {
		return errors.NewInputParsingError(err)
	}
	return nil
}
