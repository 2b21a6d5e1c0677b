package getrequeststatus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa-workers/internal/common/camunda"
	"docqa-workers/internal/common/config"
	"docqa-workers/internal/common/errors"
	"docqa-workers/internal/models"
	"docqa-workers/internal/tasks"
)

func newRedisTracker(t *testing.T) *tasks.RedisTracker {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return tasks.NewRedisTracker(rdb, time.Hour)
}

func TestHandler_Execute(t *testing.T) {
	ctx := context.Background()
	tracker := newRedisTracker(t)
	h := NewHandler(config.WorkerConfig{}, tracker, nil, nil)

	req, err := tracker.Create(ctx, "generate_all_answers")
	require.NoError(t, err)

	out, err := h.Execute(ctx, &Input{RequestID: req.ID})
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, out.Status)
	assert.False(t, out.Done)

	_, err = tracker.Update(ctx, req.ID, tasks.Update{
		Status: models.RequestCompleted,
		Result: map[string]interface{}{"generated": 3},
	})
	require.NoError(t, err)

	out, err = h.Execute(ctx, &Input{RequestID: req.ID})
	require.NoError(t, err)
	assert.True(t, out.Done)
	assert.Equal(t, 100, out.Progress)
	assert.Equal(t, "generate_all_answers", out.Type)
	assert.EqualValues(t, 3, out.Result["generated"])
}

func TestHandler_ExecuteFailedRequest(t *testing.T) {
	ctx := context.Background()
	tracker := tasks.NewMemoryTracker()
	req, _ := tracker.Create(ctx, "generate_all_answers")
	_, _ = tracker.Update(ctx, req.ID, tasks.Update{Status: models.RequestFailed, ErrorMessage: "project vanished"})

	out, err := NewHandler(config.WorkerConfig{}, tracker, nil, nil).Execute(ctx, &Input{RequestID: req.ID})

	require.NoError(t, err)
	assert.True(t, out.Done)
	assert.Equal(t, "project vanished", out.ErrorMessage)
}

func TestHandler_ExecuteUnknownRequest(t *testing.T) {
	h := NewHandler(config.WorkerConfig{}, tasks.NewMemoryTracker(), nil, nil)

	_, err := h.Execute(context.Background(), &Input{RequestID: "req_missing"})

	assert.True(t, errors.HasCode(err, errors.ErrCodeRequestNotFound))
}

func TestInputSchema(t *testing.T) {
	job := func(id string) entities.Job {
		vars, _ := json.Marshal(map[string]interface{}{"requestId": id})
		return entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 1, Variables: string(vars)}}
	}

	var input Input
	require.NoError(t, camunda.DecodeVariables(job("req_123"), inputSchema, &input))
	assert.Equal(t, "req_123", input.RequestID)

	err := camunda.DecodeVariables(job("123"), inputSchema, &input)
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))
}
