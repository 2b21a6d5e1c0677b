// Package tasks runs long operations such as batch answering in the
// background and tracks their status so callers can poll it.
package tasks

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"docqa-workers/internal/common/errors"
	"docqa-workers/internal/models"
)

const (
	DefaultStatusTTL = 24 * time.Hour

	statusKeyPrefix = "docqa:request:"
)

// Tracker stores AsyncRequest records. Get returns REQUEST_NOT_FOUND for
// unknown ids.
type Tracker interface {
	Create(ctx context.Context, requestType string) (models.AsyncRequest, error)
	Update(ctx context.Context, id string, update Update) (models.AsyncRequest, error)
	Get(ctx context.Context, id string) (models.AsyncRequest, error)
}

// Update is a partial change. Zero fields are left untouched.
type Update struct {
	Status       models.RequestStatus
	Progress     *int
	Result       map[string]interface{}
	ErrorMessage string
}

func Progress(percent int) *int {
	return &percent
}

// apply mutates r. Terminal requests never change again.
func (u Update) apply(r *models.AsyncRequest, now time.Time) {
	if r.Status.IsTerminal() {
		return
	}
	if u.Status != "" {
		r.Status = u.Status
		if u.Status == models.RequestCompleted {
			r.Progress = 100
		}
	}
	if u.Progress != nil && r.Status != models.RequestCompleted {
		r.Progress = clampPercent(*u.Progress)
	}
	if u.Result != nil {
		r.Result = u.Result
	}
	if u.ErrorMessage != "" {
		r.ErrorMessage = u.ErrorMessage
	}
	r.UpdatedAt = now
}

func newRequest(requestType string, now time.Time) models.AsyncRequest {
	return models.AsyncRequest{
		ID:        "req_" + uuid.NewString(),
		Type:      requestType,
		Status:    models.RequestPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func clampPercent(p int) int {
	return max(0, min(100, p))
}

// ==========================
// In-memory tracker
// ==========================

type MemoryTracker struct {
	mu       sync.RWMutex
	requests map[string]models.AsyncRequest
	now      func() time.Time
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{requests: make(map[string]models.AsyncRequest), now: time.Now}
}

func (m *MemoryTracker) Create(_ context.Context, requestType string) (models.AsyncRequest, error) {
	req := newRequest(requestType, m.now())
	m.mu.Lock()
	m.requests[req.ID] = req
	m.mu.Unlock()
	return req, nil
}

func (m *MemoryTracker) Update(_ context.Context, id string, update Update) (models.AsyncRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return models.AsyncRequest{}, errors.NewRequestNotFoundError(id)
	}
	update.apply(&req, m.now())
	m.requests[id] = req
	return req, nil
}

func (m *MemoryTracker) Get(_ context.Context, id string) (models.AsyncRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requests[id]
	if !ok {
		return models.AsyncRequest{}, errors.NewRequestNotFoundError(id)
	}
	return req, nil
}

// ==========================
// Redis tracker
// ==========================

// RedisTracker keeps each request as a JSON document under
// docqa:request:<id> with a sliding TTL. Updates are read-modify-write;
// one runner owns each request, so writers do not contend.
type RedisTracker struct {
	rdb redis.Cmdable
	ttl time.Duration
	now func() time.Time
}

func NewRedisTracker(rdb redis.Cmdable, ttl time.Duration) *RedisTracker {
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	return &RedisTracker{rdb: rdb, ttl: ttl, now: time.Now}
}

func StatusKey(id string) string {
	return statusKeyPrefix + id
}

func (r *RedisTracker) Create(ctx context.Context, requestType string) (models.AsyncRequest, error) {
	req := newRequest(requestType, r.now())
	if err := r.save(ctx, req); err != nil {
		return models.AsyncRequest{}, err
	}
	return req, nil
}

func (r *RedisTracker) Update(ctx context.Context, id string, update Update) (models.AsyncRequest, error) {
	req, err := r.Get(ctx, id)
	if err != nil {
		return models.AsyncRequest{}, err
	}
	update.apply(&req, r.now())
	if err := r.save(ctx, req); err != nil {
		return models.AsyncRequest{}, err
	}
	return req, nil
}

func (r *RedisTracker) Get(ctx context.Context, id string) (models.AsyncRequest, error) {
	raw, err := r.rdb.Get(ctx, StatusKey(id)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return models.AsyncRequest{}, errors.NewRequestNotFoundError(id)
	}
	if err != nil {
		return models.AsyncRequest{}, errors.NewTaskStatusUnavailableError(err)
	}

	var req models.AsyncRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return models.AsyncRequest{}, errors.NewTaskStatusUnavailableError(err)
	}
	return req, nil
}

func (r *RedisTracker) save(ctx context.Context, req models.AsyncRequest) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return errors.NewInternalError(err)
	}
	if err := r.rdb.Set(ctx, StatusKey(req.ID), raw, r.ttl).Err(); err != nil {
		return errors.NewTaskStatusUnavailableError(err)
	}
	return nil
}
