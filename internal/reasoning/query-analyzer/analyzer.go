// Package queryanalyzer classifies a question, grades its complexity and
// proposes how it should be retrieved and broken down.
package queryanalyzer

import (
	"regexp"
	"strings"

	"docqa-workers/internal/common/logger"
	"docqa-workers/internal/models"
	"docqa-workers/internal/reasoning/textutil"
)

const recentHistoryTurns = 6

type Analyzer struct {
	log logger.Logger
}

func New(log logger.Logger) *Analyzer {
	return &Analyzer{
		log: logger.OrNoOp(log).With(map[string]interface{}{"component": "query-analyzer"}),
	}
}

// Analyze produces the full analysis for query. history only feeds the
// context analysis.
func (a *Analyzer) Analyze(query string, history []models.ConversationTurn) models.QueryAnalysis {
	lower := strings.ToLower(query)

	queryType := Classify(lower)
	complexity := AssessComplexity(query, queryType)

	analysis := models.QueryAnalysis{
		Query:                 query,
		QueryType:             queryType,
		Complexity:            complexity,
		Entities:              ExtractEntities(query),
		SubQuestions:          Decompose(query, queryType, complexity),
		RetrievalStrategy:     Strategy(queryType, complexity),
		ContextAnalysis:       analyzeContext(lower, history),
		RequiresMultiStep:     complexity.RequiresMultiStep(),
		EstimatedChunksNeeded: estimatedChunks[complexity],
	}

	a.log.Debug("Query analyzed", map[string]interface{}{
		"queryType":    queryType,
		"complexity":   complexity,
		"subQuestions": len(analysis.SubQuestions),
		"approach":     analysis.RetrievalStrategy.Approach,
		"topK":         analysis.RetrievalStrategy.TopKInitial,
	})
	return analysis
}

var estimatedChunks = map[models.Complexity]int{
	models.ComplexitySimple:      3,
	models.ComplexityModerate:    5,
	models.ComplexityComplex:     8,
	models.ComplexityVeryComplex: 12,
}

var (
	referenceWords    = textutil.SetOf([]string{"it", "this", "that", "these", "those", "them", "they", "also", "additionally"})
	continuationWords = textutil.SetOf([]string{"also", "and", "furthermore", "moreover", "additionally"})
)

func analyzeContext(lower string, history []models.ConversationTurn) models.ContextAnalysis {
	if len(history) == 0 {
		return models.ContextAnalysis{}
	}

	ca := models.ContextAnalysis{HasContext: true}

	tokens := textutil.Tokens(lower)
	for i, tok := range tokens {
		if i < 3 && referenceWords.Has(tok) {
			ca.ReferencesPrevious = true
		}
		if continuationWords.Has(tok) {
			ca.Continuation = true
		}
	}
	if strings.Contains(lower, "what about") {
		ca.Continuation = true
	}

	if len(history) > recentHistoryTurns {
		history = history[len(history)-recentHistoryTurns:]
	}
	ca.RecentHistory = append([]models.ConversationTurn(nil), history...)
	return ca
}

// ==========================
// Entities
// ==========================

var (
	financialTerms = []string{
		"revenue", "profit", "loss", "ebitda", "cash flow", "assets", "liabilities",
		"equity", "valuation", "investment", "funding", "capital", "debt", "margin",
		"earnings", "income", "expense", "cost", "roi", "irr", "multiple",
	}

	businessConcepts = []string{
		"strategy", "risk", "compliance", "governance", "management", "operations",
		"market", "competition", "customer", "product", "service", "team", "technology",
		"growth", "performance", "due diligence", "audit", "valuation",
	}

	temporalRe = regexp.MustCompile(`(?i)\b(?:20\d{2}|q[1-4]|quarter|year|month|fy\d{2})\b`)
	metricRe   = regexp.MustCompile(`(?i)\b\d+(?:[.,]\d+)?\s?(?:%|(?:million|billion|thousand|m|b|k)\b)`)
)

const minOrganizationLen = 4

// ExtractEntities finds vocabulary hits in the query itself.
func ExtractEntities(query string) models.QueryEntities {
	lower := strings.ToLower(query)

	var orgs []string
	for _, run := range textutil.CapitalizedRuns(query) {
		if len(run) >= minOrganizationLen {
			orgs = append(orgs, run)
		}
	}

	return models.QueryEntities{
		FinancialTerms:     containedTerms(lower, financialTerms),
		TemporalReferences: unique(temporalRe.FindAllString(lower, -1)),
		Organizations:      orgs,
		Metrics:            metricRe.FindAllString(lower, -1),
		GeneralConcepts:    containedTerms(lower, businessConcepts),
	}
}

func containedTerms(lower string, vocab []string) []string {
	var out []string
	for _, term := range vocab {
		if strings.Contains(lower, term) {
			out = append(out, term)
		}
	}
	return out
}

func unique(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
