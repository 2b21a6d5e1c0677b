package retrieval

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa-workers/internal/common/config"
	"docqa-workers/internal/common/database"
	"docqa-workers/internal/common/errors"
	"docqa-workers/internal/common/logger"
)

func newESIndex(t *testing.T, handler http.HandlerFunc) *Elasticsearch {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client, err := database.NewElasticsearch(config.ElasticsearchConfig{
		URL:           server.URL,
		AnswerIndex:   "answers",
		CitationIndex: "citations",
	})
	require.NoError(t, err)
	return NewElasticsearch(client, logger.NewTestLogger(t))
}

func TestElasticsearch_SearchNormalisesScores(t *testing.T) {
	idx := newESIndex(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/answers/_search", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 3, body["size"])
		filter := body["query"].(map[string]interface{})["bool"].(map[string]interface{})["filter"]
		assert.NotNil(t, filter)

		_, _ = io.WriteString(w, `{"hits":{"max_score":4.0,"hits":[
			{"_id":"c1","_score":4.0,"_source":{"text":"fee is two percent","document_id":"fund","chunk_id":"c1","metadata":{"source":"fund.pdf"}}},
			{"_id":"c2","_score":1.0,"_source":{"text":"carry","document_id":"fund","page_number":2}}
		]}}`)
	})

	chunks, err := idx.SearchForAnswer(context.Background(), "fee", []string{"fund"}, 3)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, 1.0, chunks[0].Score)
	assert.Equal(t, 0.25, chunks[1].Score)
	assert.Equal(t, "fund.pdf", chunks[0].SourceName())
	assert.Equal(t, "c2", chunks[1].ChunkID)
	require.NotNil(t, chunks[1].PageNumber)
	assert.Equal(t, 2, *chunks[1].PageNumber)
}

func TestElasticsearch_CitationLayerUsesCitationIndex(t *testing.T) {
	idx := newESIndex(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/citations/_search", r.URL.Path)
		_, _ = io.WriteString(w, `{"hits":{"max_score":null,"hits":[]}}`)
	})

	chunks, err := idx.SearchForCitations(context.Background(), "fee", nil, 1)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestElasticsearch_SearchErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   errors.ErrorCode
	}{
		{"missing index", http.StatusNotFound, errors.ErrCodeIndexNotFound},
		{"server error", http.StatusBadRequest, errors.ErrCodeRetrievalFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := newESIndex(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"error":{"type":"x"}}`)
			})

			_, err := idx.SearchForAnswer(context.Background(), "fee", nil, 3)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), err.Error())
		})
	}
}

func TestElasticsearch_IndexDocumentBulk(t *testing.T) {
	var lines []string
	idx := newESIndex(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_bulk", r.URL.Path)
		assert.Equal(t, "wait_for", r.URL.Query().Get("refresh"))
		raw, _ := io.ReadAll(r.Body)
		lines = strings.Split(strings.TrimSpace(string(raw)), "\n")
		_, _ = io.WriteString(w, `{"errors":false,"items":[]}`)
	})

	err := idx.IndexDocument(context.Background(), Document{ID: "acme", Name: "acme.txt", Pages: []string{"Acme revenue grew"}})
	require.NoError(t, err)

	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], `"_index":"answers"`)
	assert.Contains(t, lines[1], `"document_id":"acme"`)
	assert.Contains(t, lines[2], `"_index":"citations"`)
}

func TestElasticsearch_IndexDocumentItemErrors(t *testing.T) {
	idx := newESIndex(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"errors":true,"items":[]}`)
	})

	err := idx.IndexDocument(context.Background(), Document{ID: "acme", Pages: []string{"text"}})
	assert.True(t, errors.HasCode(err, errors.ErrCodeRetrievalFailed))
}
