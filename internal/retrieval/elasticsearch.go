package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"docqa-workers/internal/common/database"
	"docqa-workers/internal/common/errors"
	"docqa-workers/internal/common/logger"
	"docqa-workers/internal/models"
)

// ChunkMapping is the index mapping shared by both layers.
const ChunkMapping = `{
  "mappings": {
    "properties": {
      "text":        {"type": "text"},
      "document_id": {"type": "keyword"},
      "chunk_id":    {"type": "keyword"},
      "page_number": {"type": "integer"},
      "seq":         {"type": "long"},
      "metadata":    {"type": "object", "enabled": false}
    }
  }
}`

type esChunk struct {
	Text       string                 `json:"text"`
	DocumentID string                 `json:"document_id"`
	ChunkID    string                 `json:"chunk_id"`
	PageNumber *int                   `json:"page_number,omitempty"`
	Seq        int                    `json:"seq"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

type esSearchResponse struct {
	Hits struct {
		MaxScore *float64 `json:"max_score"`
		Hits     []struct {
			ID     string  `json:"_id"`
			Score  float64 `json:"_score"`
			Source esChunk `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Elasticsearch serves both layers from two indexes. Scores are normalised
// by the max score of each response so they fall in [0,1].
type Elasticsearch struct {
	es  *database.ElasticsearchClient
	log logger.Logger
}

func NewElasticsearch(client *database.ElasticsearchClient, log logger.Logger) *Elasticsearch {
	return &Elasticsearch{
		es:  client,
		log: logger.OrNoOp(log).With(map[string]interface{}{"component": "retrieval", "backend": "elasticsearch"}),
	}
}

// EnsureIndexes creates both layer indexes when missing.
func (e *Elasticsearch) EnsureIndexes(ctx context.Context) error {
	for _, index := range []string{e.es.AnswerIndex, e.es.CitationIndex} {
		if err := e.es.EnsureIndex(ctx, index, ChunkMapping); err != nil {
			return err
		}
	}
	return nil
}

func (e *Elasticsearch) SearchForAnswer(ctx context.Context, query string, documentIDs []string, topK int) ([]models.EvidenceChunk, error) {
	return e.search(ctx, LayerAnswer, e.es.AnswerIndex, query, documentIDs, topK)
}

func (e *Elasticsearch) SearchForCitations(ctx context.Context, text string, documentIDs []string, topK int) ([]models.EvidenceChunk, error) {
	return e.search(ctx, LayerCitation, e.es.CitationIndex, text, documentIDs, topK)
}

func buildSearchBody(query string, documentIDs []string, topK int) map[string]interface{} {
	boolQuery := map[string]interface{}{
		"must": []interface{}{
			map[string]interface{}{"match": map[string]interface{}{"text": map[string]interface{}{"query": query}}},
		},
	}
	if len(documentIDs) > 0 {
		boolQuery["filter"] = []interface{}{
			map[string]interface{}{"terms": map[string]interface{}{"document_id": documentIDs}},
		}
	}
	return map[string]interface{}{
		"size":  topK,
		"query": map[string]interface{}{"bool": boolQuery},
		"sort": []interface{}{
			map[string]interface{}{"_score": "desc"},
			map[string]interface{}{"seq": "asc"},
		},
		"track_scores": true,
	}
}

func (e *Elasticsearch) search(ctx context.Context, layer Layer, index, query string, documentIDs []string, topK int) ([]models.EvidenceChunk, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	body, err := json.Marshal(buildSearchBody(query, documentIDs, topK))
	if err != nil {
		return nil, errors.NewRetrievalFailedError(string(layer), err)
	}

	req := esapi.SearchRequest{
		Index: []string{index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, e.es.Client)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, errors.NewSearchTimeoutError(string(layer))
		}
		return nil, errors.NewRetrievalFailedError(string(layer), err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, errors.NewIndexNotFoundError(index)
	}
	if res.IsError() {
		return nil, errors.NewRetrievalFailedError(string(layer), fmt.Errorf("search %s: %s", index, res.Status()))
	}

	var parsed esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errors.NewRetrievalFailedError(string(layer), fmt.Errorf("decode response: %w", err))
	}

	maxScore := 0.0
	if parsed.Hits.MaxScore != nil {
		maxScore = *parsed.Hits.MaxScore
	} else {
		for _, hit := range parsed.Hits.Hits {
			maxScore = max(maxScore, hit.Score)
		}
	}

	chunks := make([]models.EvidenceChunk, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		score := hit.Score
		if maxScore > 0 {
			score /= maxScore
		}
		chunkID := hit.Source.ChunkID
		if chunkID == "" {
			chunkID = hit.ID
		}
		chunks = append(chunks, models.EvidenceChunk{
			Text:       hit.Source.Text,
			DocumentID: hit.Source.DocumentID,
			ChunkID:    chunkID,
			PageNumber: hit.Source.PageNumber,
			Score:      score,
			Metadata:   hit.Source.Metadata,
		})
	}

	e.log.Debug("Evidence search completed", map[string]interface{}{
		"layer":  layer,
		"chunks": len(chunks),
	})
	return chunks, nil
}

// IndexDocument chunks doc and bulk-indexes both layers. Chunk ids are the
// document ids in Elasticsearch, so re-indexing overwrites in place.
func (e *Elasticsearch) IndexDocument(ctx context.Context, doc Document) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	for _, layer := range []Layer{LayerAnswer, LayerCitation} {
		index := e.es.AnswerIndex
		if layer == LayerCitation {
			index = e.es.CitationIndex
		}
		for i, c := range ChunkDocument(doc, layer) {
			action := map[string]interface{}{"index": map[string]interface{}{"_index": index, "_id": c.ChunkID}}
			if err := enc.Encode(action); err != nil {
				return err
			}
			if err := enc.Encode(esChunk{
				Text:       c.Text,
				DocumentID: c.DocumentID,
				ChunkID:    c.ChunkID,
				PageNumber: c.PageNumber,
				Seq:        i,
				Metadata:   c.Metadata,
			}); err != nil {
				return err
			}
		}
	}

	req := esapi.BulkRequest{Body: &buf, Refresh: "wait_for"}
	res, err := req.Do(ctx, e.es.Client)
	if err != nil {
		return errors.NewRetrievalFailedError("bulk", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.NewRetrievalFailedError("bulk", fmt.Errorf("bulk index %s: %s", doc.ID, res.Status()))
	}

	var summary struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&summary); err == nil && summary.Errors {
		return errors.NewRetrievalFailedError("bulk", fmt.Errorf("bulk index %s reported item errors", doc.ID))
	}

	e.log.Info("Document indexed", map[string]interface{}{"documentId": doc.ID})
	return nil
}
