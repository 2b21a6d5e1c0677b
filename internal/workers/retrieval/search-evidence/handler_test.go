package searchevidence

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa-workers/internal/common/camunda"
	"docqa-workers/internal/common/config"
	"docqa-workers/internal/common/database"
	"docqa-workers/internal/common/errors"
	"docqa-workers/internal/common/logger"
	"docqa-workers/internal/models"
	"docqa-workers/internal/retrieval"
)

// ==========================
// Test Helper Functions
// ==========================

func createMockJob(variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:       7,
		Type:      TaskType,
		Retries:   3,
		Variables: string(variablesJSON),
	}}
}

func newMemoryHandler(t *testing.T) *Handler {
	idx := retrieval.NewMemory()
	idx.AddDocument(retrieval.Document{
		ID:    "acme",
		Name:  "acme-10k.pdf",
		Pages: []string{"Acme Corp revenue grew to $12M in 2023 driven by new customers."},
	})
	idx.AddDocument(retrieval.Document{
		ID:    "fund",
		Name:  "fund-overview.pdf",
		Pages: []string{"The fund's investment strategy focuses on mid-market buyouts in Europe."},
	})
	return NewHandler(config.WorkerConfig{}, idx, logger.NewTestLogger(t), nil)
}

type failingIndex struct {
	err error
}

func (f failingIndex) SearchForAnswer(context.Context, string, []string, int) ([]models.EvidenceChunk, error) {
	return nil, f.err
}

func (f failingIndex) SearchForCitations(context.Context, string, []string, int) ([]models.EvidenceChunk, error) {
	return nil, f.err
}

// ==========================
// Execute Tests
// ==========================

func TestHandler_Execute(t *testing.T) {
	h := newMemoryHandler(t)

	tests := []struct {
		name    string
		input   Input
		wantDoc string
	}{
		{"answer layer by default", Input{Query: "Acme revenue"}, "acme"},
		{"citation layer", Input{Query: "investment strategy", Layer: "citation"}, "fund"},
		{"scoped to documents", Input{Query: "revenue strategy", DocumentIDs: []string{"fund"}, TopK: 1}, "fund"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := h.Execute(context.Background(), &tt.input)
			require.NoError(t, err)
			require.NotEmpty(t, out.Chunks)
			assert.Equal(t, tt.wantDoc, out.Chunks[0].DocumentID)
			assert.Equal(t, len(out.Chunks), out.TotalHits)
			assert.Equal(t, out.Chunks[0].Score, out.MaxScore)
		})
	}
}

func TestHandler_ExecuteNoHits(t *testing.T) {
	out, err := newMemoryHandler(t).Execute(context.Background(), &Input{Query: "weather forecast"})

	require.NoError(t, err)
	assert.Empty(t, out.Chunks)
	assert.Zero(t, out.TotalHits)
}

func TestHandler_ExecuteErrors(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name     string
		ctx      context.Context
		err      error
		wantCode errors.ErrorCode
	}{
		{"plain failure", context.Background(), stderrors.New("boom"), errors.ErrCodeRetrievalFailed},
		{"deadline", context.Background(), context.DeadlineExceeded, errors.ErrCodeSearchTimeout},
		{"cancelled context", cancelled, stderrors.New("aborted"), errors.ErrCodeSearchTimeout},
		{"coded error kept", context.Background(), errors.NewIndexNotFoundError("docqa-answers"), errors.ErrCodeIndexNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(config.WorkerConfig{}, failingIndex{err: tt.err}, nil, nil)
			_, err := h.Execute(tt.ctx, &Input{Query: "revenue"})
			assert.True(t, errors.HasCode(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestHandler_ExecuteEmptyQuery(t *testing.T) {
	_, err := newMemoryHandler(t).Execute(context.Background(), &Input{Query: " "})
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidQuery))
}

func TestHandler_ElasticsearchIndexMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/" {
			_, _ = w.Write([]byte(`{"version":{"number":"8.11.0"}}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"index_not_found_exception"},"status":404}`))
	}))
	defer srv.Close()

	es, err := database.NewElasticsearch(config.ElasticsearchConfig{
		Addresses:     []string{srv.URL},
		AnswerIndex:   "docqa-answers",
		CitationIndex: "docqa-citations",
	})
	require.NoError(t, err)
	h := NewHandler(config.WorkerConfig{}, retrieval.NewElasticsearch(es, nil), nil, nil)

	_, err = h.Execute(context.Background(), &Input{Query: "revenue"})

	assert.True(t, errors.HasCode(err, errors.ErrCodeIndexNotFound), "got %v", err)
}

// ==========================
// Input Validation Tests
// ==========================

func TestInputSchema(t *testing.T) {
	tests := []struct {
		name  string
		vars  map[string]interface{}
		valid bool
	}{
		{"minimal", map[string]interface{}{"query": "revenue"}, true},
		{"full", map[string]interface{}{"query": "revenue", "layer": "citation", "topK": 10, "documentIds": []string{"a"}}, true},
		{"bad layer", map[string]interface{}{"query": "revenue", "layer": "summary"}, false},
		{"topK too large", map[string]interface{}{"query": "revenue", "topK": 500}, false},
		{"missing query", map[string]interface{}{"topK": 3}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var input Input
			err := camunda.DecodeVariables(createMockJob(tt.vars), inputSchema, &input)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed), "got %v", err)
			}
		})
	}
}
