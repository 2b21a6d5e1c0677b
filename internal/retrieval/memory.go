package retrieval

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"docqa-workers/internal/models"
	"docqa-workers/internal/reasoning/textutil"
)

type indexedChunk struct {
	chunk models.EvidenceChunk
	terms textutil.TokenSet
}

// Memory is an in-process keyword index over both layers, used for local
// runs and tests. Scores are the share of query words found in a chunk.
type Memory struct {
	mu       sync.RWMutex
	answer   []indexedChunk
	citation []indexedChunk
}

func NewMemory() *Memory {
	return &Memory{}
}

// AddDocument indexes doc on both layers, replacing any earlier version.
func (m *Memory) AddDocument(doc Document) (answerChunks, citationChunks int) {
	answer := indexChunks(ChunkDocument(doc, LayerAnswer))
	citation := indexChunks(ChunkDocument(doc, LayerCitation))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.answer = append(dropDocument(m.answer, doc.ID), answer...)
	m.citation = append(dropDocument(m.citation, doc.ID), citation...)
	return len(answer), len(citation)
}

func (m *Memory) DeleteDocument(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answer = dropDocument(m.answer, id)
	m.citation = dropDocument(m.citation, id)
}

// DocumentIDs lists indexed documents in insertion order.
func (m *Memory) DocumentIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	seen := make(map[string]bool)
	for _, c := range m.answer {
		if !seen[c.chunk.DocumentID] {
			seen[c.chunk.DocumentID] = true
			ids = append(ids, c.chunk.DocumentID)
		}
	}
	return ids
}

func (m *Memory) SearchForAnswer(_ context.Context, query string, documentIDs []string, topK int) ([]models.EvidenceChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return search(m.answer, query, documentIDs, topK), nil
}

func (m *Memory) SearchForCitations(_ context.Context, text string, documentIDs []string, topK int) ([]models.EvidenceChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return search(m.citation, text, documentIDs, topK), nil
}

func search(chunks []indexedChunk, query string, documentIDs []string, topK int) []models.EvidenceChunk {
	if topK <= 0 {
		topK = DefaultTopK
	}
	terms := textutil.NewTokenSet(query)
	if len(terms) == 0 {
		return nil
	}

	var allowed map[string]bool
	if len(documentIDs) > 0 {
		allowed = make(map[string]bool, len(documentIDs))
		for _, id := range documentIDs {
			allowed[id] = true
		}
	}

	var results []models.EvidenceChunk
	for _, c := range chunks {
		if allowed != nil && !allowed[c.chunk.DocumentID] {
			continue
		}
		score := textutil.OverlapRatio(terms, c.terms)
		if score == 0 {
			continue
		}
		hit := c.chunk
		hit.Score = score
		results = append(results, hit)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

func indexChunks(chunks []models.EvidenceChunk) []indexedChunk {
	out := make([]indexedChunk, len(chunks))
	for i, c := range chunks {
		out[i] = indexedChunk{chunk: c, terms: textutil.NewTokenSet(c.Text)}
	}
	return out
}

func dropDocument(chunks []indexedChunk, id string) []indexedChunk {
	out := chunks[:0:0]
	for _, c := range chunks {
		if c.chunk.DocumentID != id {
			out = append(out, c)
		}
	}
	return out
}

// LoadCorpus reads every .txt and .md file under dir. Form feeds separate
// pages. The document id is the path relative to dir.
func LoadCorpus(dir string) ([]Document, error) {
	var docs []Document
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".txt" && ext != ".md" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		docs = append(docs, Document{
			ID:    filepath.ToSlash(rel),
			Name:  filepath.Base(path),
			Pages: strings.Split(string(data), "\f"),
		})
		return nil
	})
	return docs, err
}
