package tasks

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"docqa-workers/internal/common/errors"
	"docqa-workers/internal/common/logger"
	"docqa-workers/internal/models"
)

const (
	DefaultConcurrency = 4

	// progress reported once a job has been picked up
	startedProgress = 10
	trackerTimeout  = 5 * time.Second
)

// ErrQueueClosed is returned by Submit after Shutdown.
var ErrQueueClosed = stderrors.New("task queue is shut down")

// Func is the body of a background job. It should return promptly once ctx
// is cancelled and may report progress in percent.
type Func func(ctx context.Context, progress func(percent int)) (map[string]interface{}, error)

// Future is the handle of one submitted job.
type Future struct {
	ID string

	cancel context.CancelFunc
	done   chan struct{}
	result map[string]interface{}
	err    error
}

// Cancel asks the job to stop. The tracker records it as cancelled once the
// job returns.
func (f *Future) Cancel() { f.cancel() }

func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the job finishes or ctx ends.
func (f *Future) Wait(ctx context.Context) (map[string]interface{}, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type QueueConfig struct {
	Concurrency int
}

// Queue runs jobs on a bounded errgroup. Submissions beyond the limit are
// rejected with TASK_QUEUE_FULL instead of waiting.
type Queue struct {
	group   *errgroup.Group
	base    context.Context
	stop    context.CancelFunc
	tracker Tracker
	limit   int
	log     logger.Logger

	mu      sync.Mutex
	closed  bool
	running map[string]*Future
}

func NewQueue(cfg QueueConfig, tracker Tracker, log logger.Logger) *Queue {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	group := &errgroup.Group{}
	group.SetLimit(cfg.Concurrency)
	base, stop := context.WithCancel(context.Background())

	return &Queue{
		group:   group,
		base:    base,
		stop:    stop,
		tracker: tracker,
		limit:   cfg.Concurrency,
		log:     logger.OrNoOp(log).With(map[string]interface{}{"component": "task-queue"}),
		running: make(map[string]*Future),
	}
}

// Submit records a pending request and starts fn in the background.
func (q *Queue) Submit(ctx context.Context, requestType string, fn Func) (*Future, error) {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return nil, ErrQueueClosed
	}

	req, err := q.tracker.Create(ctx, requestType)
	if err != nil {
		return nil, err
	}

	jobCtx, cancel := context.WithCancel(q.base)
	fut := &Future{ID: req.ID, cancel: cancel, done: make(chan struct{})}

	// closed is re-checked under the same lock as TryGo so no job starts
	// once Shutdown is waiting on the group.
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		cancel()
		q.record(req.ID, Update{Status: models.RequestCancelled, ErrorMessage: "task queue is shut down"})
		return nil, ErrQueueClosed
	}
	q.running[req.ID] = fut
	started := q.group.TryGo(func() error {
		q.run(jobCtx, fut, fn)
		return nil
	})
	if !started {
		delete(q.running, req.ID)
	}
	q.mu.Unlock()

	if !started {
		cancel()
		q.record(req.ID, Update{Status: models.RequestFailed, ErrorMessage: "task queue is full"})
		return nil, errors.NewTaskQueueFullError(q.limit)
	}

	q.log.Info("Task submitted", map[string]interface{}{
		"requestId": req.ID,
		"type":      requestType,
	})
	return fut, nil
}

// Cancel stops a running job by request id. It reports whether the job was
// still running.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()
	fut, ok := q.running[id]
	q.mu.Unlock()
	if ok {
		fut.Cancel()
	}
	return ok
}

// Shutdown rejects new work, cancels running jobs and waits for them to
// return or for ctx to end.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.stop()

	done := make(chan struct{})
	go func() {
		_ = q.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for tasks: %w", ctx.Err())
	}
}

func (q *Queue) run(ctx context.Context, fut *Future, fn Func) {
	defer close(fut.done)
	defer q.forget(fut.ID)
	defer fut.cancel()

	q.record(fut.ID, Update{Status: models.RequestInProgress, Progress: Progress(startedProgress)})

	progress := func(percent int) {
		q.record(fut.ID, Update{Progress: Progress(percent)})
	}

	result, err := q.safeCall(ctx, fn, progress)
	fut.result, fut.err = result, err

	switch {
	case err != nil && ctx.Err() != nil && stderrors.Is(err, context.Canceled):
		q.record(fut.ID, Update{Status: models.RequestCancelled, ErrorMessage: "cancelled"})
		q.log.Info("Task cancelled", map[string]interface{}{"requestId": fut.ID})
	case err != nil:
		q.record(fut.ID, Update{Status: models.RequestFailed, ErrorMessage: err.Error()})
		q.log.Error("Task failed", map[string]interface{}{"requestId": fut.ID, "error": err.Error()})
	default:
		q.record(fut.ID, Update{Status: models.RequestCompleted, Result: result})
		q.log.Info("Task completed", map[string]interface{}{"requestId": fut.ID})
	}
}

// safeCall turns a panicking job into a failed one.
func (q *Queue) safeCall(ctx context.Context, fn Func, progress func(int)) (result map[string]interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx, progress)
}

// record writes a status change outside the job context so cancellation
// is still recorded.
func (q *Queue) record(id string, update Update) {
	ctx, cancel := context.WithTimeout(context.Background(), trackerTimeout)
	defer cancel()
	if _, err := q.tracker.Update(ctx, id, update); err != nil {
		q.log.Warn("Failed to record task status", map[string]interface{}{
			"requestId": id,
			"status":    update.Status,
			"error":     err.Error(),
		})
	}
}

func (q *Queue) forget(id string) {
	q.mu.Lock()
	delete(q.running, id)
	q.mu.Unlock()
}
