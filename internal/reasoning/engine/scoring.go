package engine

import (
	"math"
	"sort"
	"strings"

	"docqa-workers/internal/models"
	"docqa-workers/internal/reasoning/textutil"
)

const (
	confidenceTopChunks = 3
	sourceBoostPerChunk = 0.05
	maxSourceBoost      = 0.2
	longAnswerLen       = 200
	longAnswerBoost     = 0.1
	simulatedPenalty    = 0.1

	// used when no step produced a positive confidence
	neutralConfidence = 0.5

	rerankPhraseBoost     = 0.2
	rerankOverlapWeight   = 0.15
	rerankPositionPenalty = 0.01

	citationTextLen = 200
)

// Confidence grades one generated answer against the chunks behind it.
func Confidence(chunks []models.EvidenceChunk, answer string, simulated bool) float64 {
	if len(chunks) == 0 {
		return 0
	}

	top := head(chunks, confidenceTopChunks)
	sum := 0.0
	for _, c := range top {
		sum += c.Score
	}
	score := sum / float64(len(top))

	score += math.Min(sourceBoostPerChunk*float64(len(chunks)), maxSourceBoost)
	if len(answer) > longAnswerLen {
		score += longAnswerBoost
	}
	if simulated {
		score -= simulatedPenalty
	}
	return clamp01(score)
}

// OverallConfidence is the mean of the positive step confidences, rounded to
// two decimals.
func OverallConfidence(steps []models.ReasoningStep) float64 {
	sum, n := 0.0, 0
	for _, s := range steps {
		if s.Confidence > 0 {
			sum += s.Confidence
			n++
		}
	}
	if n == 0 {
		return neutralConfidence
	}
	return clamp01(math.Round(sum/float64(n)*100) / 100)
}

// Rerank reorders chunks by base score plus phrase and overlap boosts minus
// a small penalty for original position. It never drops a chunk.
func Rerank(query string, chunks []models.EvidenceChunk) []models.EvidenceChunk {
	queryLower := strings.ToLower(query)
	queryTerms := textutil.NewTokenSet(query)

	type ranked struct {
		chunk models.EvidenceChunk
		score float64
	}
	items := make([]ranked, len(chunks))
	for i, c := range chunks {
		score := c.Score
		if strings.Contains(strings.ToLower(c.Text), queryLower) {
			score += rerankPhraseBoost
		}
		score += rerankOverlapWeight * textutil.OverlapRatio(queryTerms, textutil.NewTokenSet(c.Text))
		score -= rerankPositionPenalty * float64(i)
		items[i] = ranked{chunk: c, score: score}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].score > items[j].score })

	out := make([]models.EvidenceChunk, len(items))
	for i, it := range items {
		out[i] = it.chunk
	}
	return out
}

// NewCitation builds a citation from a citation-layer hit, carrying the
// relevance of the answer chunk it was resolved from.
func NewCitation(hit models.EvidenceChunk, relevance float64) models.Citation {
	return models.Citation{
		DocumentID:     hit.DocumentID,
		DocumentName:   hit.SourceName(),
		ChunkID:        hit.ChunkID,
		PageNumber:     hit.PageNumber,
		Text:           textutil.Truncate(hit.Text, citationTextLen),
		RelevanceScore: relevance,
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
