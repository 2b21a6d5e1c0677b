package engine

import (
	"fmt"
	"strings"

	"docqa-workers/internal/models"
	"docqa-workers/internal/reasoning/textutil"
)

const (
	// a sentence sharing this much vocabulary with kept text is a near duplicate
	nearDuplicateOverlap = 0.7

	consistencyChunks      = 5
	sentenceSupportOverlap = 0.3
	consistencyPassRatio   = 0.6
	consistentConfidence   = 0.9
	inconsistentConfidence = 0.6

	insufficientEvidenceNote = "Insufficient information for verification"
)

// FallbackSubQuestions builds retrieval steps for a multi-step query the
// analyzer could not decompose: entity steps first, then type templates.
func FallbackSubQuestions(query string, analysis models.QueryAnalysis) []string {
	var steps []string

	if terms := analysis.Entities.FinancialTerms; len(terms) > 0 {
		if len(terms) > 2 {
			terms = terms[:2]
		}
		steps = append(steps, fmt.Sprintf("What financial information is available about %s?", strings.Join(terms, ", ")))
	}
	if orgs := analysis.Entities.Organizations; len(orgs) > 0 {
		steps = append(steps, fmt.Sprintf("What information is available about %s?", orgs[0]))
	}

	switch analysis.QueryType {
	case models.QueryTypeAnalytical:
		steps = append(steps,
			"What are the key facts and data points?",
			"What are the trends and patterns?",
			"What are the implications?",
		)
	case models.QueryTypeComparative:
		steps = append(steps,
			"What are the characteristics of the first entity?",
			"What are the characteristics of the second entity?",
		)
	default:
		steps = append(steps,
			"General information: "+query,
			"Detailed context: "+query,
		)
	}

	if len(steps) > maxFallbackSteps {
		steps = steps[:maxFallbackSteps]
	}
	return steps
}

// Concatenate merges drafts sentence by sentence, skipping sentences whose
// content words mostly repeat what is already kept.
func Concatenate(drafts []string) string {
	var kept []string
	seen := textutil.TokenSet{}

	for _, draft := range drafts {
		for _, sentence := range textutil.SplitSentences(draft) {
			sentence = strings.TrimSuffix(sentence, ".")
			key := textutil.NewTokenSet(sentence).Without(textutil.Stopwords)
			if float64(key.Intersect(seen)) < nearDuplicateOverlap*float64(len(key)) {
				kept = append(kept, sentence)
				seen.Add(key)
			}
		}
	}

	if len(kept) == 0 {
		return NoFindingAnswer
	}

	answer := strings.Join(kept, ". ")
	if !strings.HasSuffix(answer, ".") {
		answer += "."
	}
	return answer
}

// ConsistencyCheck is the outcome of checking a synthesized answer against
// the first collected chunks.
type ConsistencyCheck struct {
	Consistent bool
	Supported  int
	Total      int
	Notes      string
}

// Confidence is the verification step's contribution to overall confidence.
func (c ConsistencyCheck) Confidence() float64 {
	if c.Consistent {
		return consistentConfidence
	}
	return inconsistentConfidence
}

// CheckConsistency counts the sentences of answer sharing more than 30% of
// their words with one of the first five chunks.
func CheckConsistency(answer string, chunks []models.EvidenceChunk) ConsistencyCheck {
	if len(chunks) == 0 || strings.TrimSpace(answer) == "" {
		return ConsistencyCheck{Notes: insufficientEvidenceNote}
	}

	evidence := head(chunks, consistencyChunks)
	chunkTerms := make([]textutil.TokenSet, len(evidence))
	for i, c := range evidence {
		chunkTerms[i] = textutil.NewTokenSet(c.Text)
	}

	sentences := textutil.SplitSentences(answer)
	supported := 0
	for _, sentence := range sentences {
		words := textutil.NewTokenSet(sentence)
		for _, terms := range chunkTerms {
			if float64(words.Intersect(terms)) > sentenceSupportOverlap*float64(len(words)) {
				supported++
				break
			}
		}
	}

	check := ConsistencyCheck{Supported: supported, Total: len(sentences)}
	if check.Total > 0 {
		check.Consistent = float64(supported)/float64(check.Total) >= consistencyPassRatio
	}

	check.Notes = fmt.Sprintf("Verified %d/%d claims against source documents. ", supported, check.Total)
	if check.Consistent {
		check.Notes += "Answer is well-supported by sources."
	} else {
		check.Notes += "Answer may contain unsupported claims."
	}
	return check
}

func joinParagraphs(parts []string) string {
	return strings.Join(parts, "\n\n")
}
