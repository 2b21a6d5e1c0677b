// Package verifier checks the claims of a final answer against the evidence
// it was built from and prunes the ones nothing supports.
package verifier

import (
	"fmt"
	"strings"

	"docqa-workers/internal/common/logger"
	"docqa-workers/internal/models"
	"docqa-workers/internal/reasoning/textutil"
)

// Disclaimer is appended once to answers that lost sentences in correction.
const Disclaimer = "Note: some statements were removed because they could not be verified against the source documents."

const (
	claimMinTokens = 3

	// token overlap at which a chunk supports a claim
	supportOverlap = 0.4
	verifiedRatio  = 0.6
	// claims below this are dropped by correction
	weakSupport = 0.2

	verbatimSupport = 1.0
)

type Verifier struct {
	log logger.Logger
}

func New(log logger.Logger) *Verifier {
	return &Verifier{log: logger.OrNoOp(log).With(map[string]interface{}{"component": "verifier"})}
}

// Verify scores every claim of answer against evidence. An earlier
// correction disclaimer is not treated as a claim.
func (v *Verifier) Verify(answer string, evidence []models.EvidenceChunk) models.VerificationResult {
	claims := textutil.SplitClaims(stripDisclaimer(answer), claimMinTokens)

	chunkTerms := make([]textutil.TokenSet, len(evidence))
	for i, c := range evidence {
		chunkTerms[i] = textutil.NewTokenSet(c.Text)
	}

	result := models.VerificationResult{
		TotalClaims:       len(claims),
		UnsupportedClaims: []string{},
		Claims:            make([]models.ClaimSupport, 0, len(claims)),
	}
	for _, claim := range claims {
		support := scoreClaim(claim, evidence, chunkTerms)
		if support.Supported {
			result.SupportedClaims++
		} else {
			result.UnsupportedClaims = append(result.UnsupportedClaims, claim)
		}
		result.Claims = append(result.Claims, support)
	}

	if result.TotalClaims > 0 {
		result.VerificationScore = float64(result.SupportedClaims) / float64(result.TotalClaims)
		result.IsVerified = result.VerificationScore >= verifiedRatio
	}

	v.log.Debug("Answer verified", map[string]interface{}{
		"claims":    result.TotalClaims,
		"supported": result.SupportedClaims,
		"verified":  result.IsVerified,
	})
	return result
}

// scoreClaim stops at the first chunk that supports the claim. Unsupported
// claims carry the best overlap seen.
func scoreClaim(claim string, evidence []models.EvidenceChunk, chunkTerms []textutil.TokenSet) models.ClaimSupport {
	terms := textutil.NewTokenSet(claim)
	best := 0.0

	for i, chunk := range evidence {
		if textutil.ContainsFold(chunk.Text, claim) {
			return models.ClaimSupport{Text: claim, SupportScore: verbatimSupport, Supported: true}
		}
		overlap := textutil.OverlapRatio(terms, chunkTerms[i])
		if overlap >= supportOverlap {
			return models.ClaimSupport{Text: claim, SupportScore: overlap, Supported: true}
		}
		if overlap > best {
			best = overlap
		}
	}
	return models.ClaimSupport{Text: claim, SupportScore: best}
}

type Correction struct {
	Answer    string   `json:"answer"`
	Corrected bool     `json:"corrected"`
	Removed   []string `json:"removed,omitempty"`
	Notes     string   `json:"notes"`
}

// Correct drops the weakly supported sentences of an unverified answer.
// Verified answers, answers with no weak claim and answers that would end
// up empty are returned unchanged.
func (v *Verifier) Correct(answer string, verification models.VerificationResult) Correction {
	if verification.IsVerified {
		return Correction{Answer: answer, Notes: "answer verified"}
	}

	weak := make(map[string]bool)
	for _, c := range verification.Claims {
		if c.SupportScore < weakSupport {
			weak[c.Text] = true
		}
	}
	if len(weak) == 0 {
		return Correction{Answer: answer, Notes: "no weakly supported claims"}
	}

	var kept, removed []string
	for _, seg := range strings.Split(stripDisclaimer(answer), ".") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		if weak[seg] {
			removed = append(removed, seg)
			continue
		}
		kept = append(kept, seg)
	}

	if len(kept) == 0 {
		return Correction{Answer: answer, Notes: "every claim is weakly supported, answer kept"}
	}
	if len(removed) == 0 {
		return Correction{Answer: answer, Notes: "no weakly supported claims"}
	}

	corrected := strings.Join(kept, ". ") + ". " + Disclaimer
	v.log.Info("Answer corrected", map[string]interface{}{
		"removed": len(removed),
		"kept":    len(kept),
	})
	return Correction{
		Answer:    corrected,
		Corrected: true,
		Removed:   removed,
		Notes:     fmt.Sprintf("removed %d unsupported statement(s)", len(removed)),
	}
}

func stripDisclaimer(answer string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(answer), Disclaimer))
}
