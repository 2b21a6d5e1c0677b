package verifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa-workers/internal/common/logger"
	"docqa-workers/internal/models"
)

func evidence(texts ...string) []models.EvidenceChunk {
	out := make([]models.EvidenceChunk, len(texts))
	for i, t := range texts {
		out[i] = models.EvidenceChunk{Text: t, DocumentID: "fund", ChunkID: t}
	}
	return out
}

func TestVerify_VerbatimAndOverlap(t *testing.T) {
	v := New(logger.NewTestLogger(t))
	chunks := evidence(
		"The management fee is two percent of committed capital.",
		"Carried interest is twenty percent above an eight percent hurdle.",
	)

	res := v.Verify("The management fee is two percent. Carried interest is twenty percent annually.", chunks)

	require.Equal(t, 2, res.TotalClaims)
	assert.Equal(t, 2, res.SupportedClaims)
	assert.True(t, res.IsVerified)
	assert.Equal(t, 1.0, res.VerificationScore)
	assert.Empty(t, res.UnsupportedClaims)

	require.Len(t, res.Claims, 2)
	assert.Equal(t, 1.0, res.Claims[0].SupportScore, "verbatim substring")
	assert.GreaterOrEqual(t, res.Claims[1].SupportScore, 0.4)
	assert.Less(t, res.Claims[1].SupportScore, 1.0)
}

func TestVerify_NoClaims(t *testing.T) {
	v := New(nil)

	res := v.Verify("Yes. No.", evidence("anything"))

	assert.Zero(t, res.TotalClaims)
	assert.Zero(t, res.VerificationScore)
	assert.False(t, res.IsVerified)
	assert.NotNil(t, res.UnsupportedClaims)
}

func TestVerify_ScoreBounds(t *testing.T) {
	v := New(nil)
	chunks := evidence("revenue grew ten percent in 2023")

	answers := []string{
		"",
		"Revenue grew ten percent in 2023.",
		"Dragons guard the vault. Revenue grew ten percent in 2023. Unicorns audit the books.",
		"Completely unrelated statement here. Another unrelated statement here.",
	}
	for _, a := range answers {
		res := v.Verify(a, chunks)
		assert.GreaterOrEqual(t, res.VerificationScore, 0.0, a)
		assert.LessOrEqual(t, res.VerificationScore, 1.0, a)
		assert.Equal(t, res.TotalClaims, res.SupportedClaims+len(res.UnsupportedClaims), a)
	}
}

func TestVerify_IgnoresDisclaimer(t *testing.T) {
	v := New(nil)
	chunks := evidence("revenue grew ten percent in 2023")

	res := v.Verify("Revenue grew ten percent in 2023. "+Disclaimer, chunks)

	assert.Equal(t, 1, res.TotalClaims)
	assert.True(t, res.IsVerified)
}

func TestCorrect_DropsWeakSentences(t *testing.T) {
	v := New(logger.NewTestLogger(t))
	chunks := evidence("revenue grew ten percent in 2023")
	answer := "Dragons guard the vault. Revenue grew ten percent in 2023. Unicorns audit the books."

	res := v.Verify(answer, chunks)
	require.False(t, res.IsVerified)

	fix := v.Correct(answer, res)

	assert.True(t, fix.Corrected)
	assert.Equal(t, "Revenue grew ten percent in 2023. "+Disclaimer, fix.Answer)
	assert.Equal(t, []string{"Dragons guard the vault", "Unicorns audit the books"}, fix.Removed)
}

func TestCorrect_Idempotent(t *testing.T) {
	v := New(nil)
	chunks := evidence("revenue grew ten percent in 2023")
	answer := "Dragons guard the vault. Revenue grew ten percent in 2023. Unicorns audit the books."

	first := v.Correct(answer, v.Verify(answer, chunks))
	require.True(t, first.Corrected)

	second := v.Correct(first.Answer, v.Verify(first.Answer, chunks))
	assert.False(t, second.Corrected)
	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, 1, strings.Count(second.Answer, Disclaimer))
}

func TestCorrect_NoOpCases(t *testing.T) {
	v := New(nil)

	tests := []struct {
		name   string
		answer string
		chunks []models.EvidenceChunk
	}{
		{
			name:   "verified",
			answer: "Revenue grew ten percent in 2023.",
			chunks: evidence("revenue grew ten percent in 2023"),
		},
		{
			name:   "nothing would remain",
			answer: "Dragons guard the vault. Unicorns audit the books.",
			chunks: evidence("revenue grew ten percent in 2023"),
		},
		{
			name:   "unverified but no weak claim",
			answer: "Revenue grew strongly during the quarter. Costs rose modestly during the year.",
			chunks: evidence("revenue during costs"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fix := v.Correct(tt.answer, v.Verify(tt.answer, tt.chunks))
			assert.False(t, fix.Corrected)
			assert.Equal(t, tt.answer, fix.Answer)
		})
	}
}
