package genai

import (
	"context"
	"strings"

	"docqa-workers/internal/models"
	"docqa-workers/internal/reasoning/textutil"
)

const (
	CannotAnswer = "Based on the available documentation, I cannot provide a specific answer " +
		"to this question as no relevant information was found."

	localChunks       = 3
	localChunkPreview = 300
	localAnswerLen    = 500
)

// questionSuffixes are tried in order; the first whose words appear in the
// question is appended.
var questionSuffixes = []struct {
	words  []string
	suffix string
}{
	{[]string{"what", "describe"}, " The documents indicate relevant details about this topic."},
	{[]string{"how", "process"}, " The process outlined in the documentation suggests a structured approach."},
	{[]string{"who", "team"}, " The organizational structure as described shows key personnel involved."},
	{[]string{"when", "timeline"}, " The timeline referenced in the materials provides specific dates and milestones."},
}

// Local is the deterministic heuristic generator. It needs no network and
// never fails.
type Local struct{}

func NewLocal() *Local { return &Local{} }

func (*Local) Name() string { return ProviderLocal }

func (*Local) Generate(_ context.Context, question string, chunks []models.EvidenceChunk) (Generation, error) {
	if len(chunks) == 0 {
		return Generation{Answer: CannotAnswer, Model: "simulated", Simulated: true}, nil
	}

	top := chunks
	if len(top) > localChunks {
		top = top[:localChunks]
	}
	previews := make([]string, len(top))
	for i, c := range top {
		previews[i] = textutil.CutRunes(c.Text, localChunkPreview)
	}
	answer := "Based on the available documentation: " +
		textutil.CutRunes(strings.Join(previews, " "), localAnswerLen)

	lower := strings.ToLower(question)
	for _, s := range questionSuffixes {
		if containsAnyWord(lower, s.words) {
			answer += s.suffix
			break
		}
	}

	return Generation{Answer: answer, Model: "simulated-enhanced", Success: true, Simulated: true}, nil
}

func containsAnyWord(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
