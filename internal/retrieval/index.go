// Package retrieval implements the two-layer evidence index: coarse answer
// chunks for drafting answers and fine citation chunks for pinpointing
// sources.
package retrieval

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"docqa-workers/internal/models"
	"docqa-workers/internal/reasoning/textutil"
)

type Layer string

const (
	LayerAnswer   Layer = "answer"
	LayerCitation Layer = "citation"
)

const (
	AnswerChunkSize   = 1000
	CitationChunkSize = 300

	DefaultTopK = 5
)

// Index is the read side used by the reasoning core. Results are ordered by
// descending score; ties keep insertion order.
type Index interface {
	SearchForAnswer(ctx context.Context, query string, documentIDs []string, topK int) ([]models.EvidenceChunk, error)
	SearchForCitations(ctx context.Context, text string, documentIDs []string, topK int) ([]models.EvidenceChunk, error)
}

// Search dispatches to the layer's search method.
func Search(ctx context.Context, idx Index, layer Layer, query string, documentIDs []string, topK int) ([]models.EvidenceChunk, error) {
	switch layer {
	case LayerAnswer, "":
		return idx.SearchForAnswer(ctx, query, documentIDs, topK)
	case LayerCitation:
		return idx.SearchForCitations(ctx, query, documentIDs, topK)
	default:
		return nil, fmt.Errorf("unknown layer %q", layer)
	}
}

// Document is raw text already extracted from a source file. Pages are
// numbered from 1; a single-page document may leave numbering implicit.
type Document struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Pages []string `json:"pages"`
}

// ChunkDocument splits every page of doc into chunks for layer.
func ChunkDocument(doc Document, layer Layer) []models.EvidenceChunk {
	size := AnswerChunkSize
	if layer == LayerCitation {
		size = CitationChunkSize
	}

	var chunks []models.EvidenceChunk
	for p, page := range doc.Pages {
		pageNumber := p + 1
		for _, text := range ChunkText(page, size) {
			idx := len(chunks)
			chunk := models.EvidenceChunk{
				Text:       text,
				DocumentID: doc.ID,
				ChunkID:    ChunkID(doc.ID, layer, idx),
				Metadata: map[string]interface{}{
					"source": doc.Name,
					"layer":  string(layer),
				},
			}
			if len(doc.Pages) > 1 || layer == LayerCitation {
				n := pageNumber
				chunk.PageNumber = &n
			}
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

// ChunkID is the md5 of "docID:layer:index".
func ChunkID(documentID string, layer Layer, index int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%s:%d", documentID, layer, index)))
	return hex.EncodeToString(sum[:])
}

// ChunkText packs whitespace separated words into chunks of at most size
// bytes. A single word longer than size is cut.
func ChunkText(text string, size int) []string {
	var (
		chunks  []string
		current strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, word := range strings.Fields(text) {
		if len(word) > size {
			flush()
			chunks = append(chunks, textutil.CutRunes(word, size))
			continue
		}
		if current.Len() > 0 && current.Len()+1+len(word) > size {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	flush()
	return chunks
}
