package queryanalyzer

import (
	"regexp"
	"strings"

	"docqa-workers/internal/models"
)

// typeRule labels a query when its predicate holds. Rules are evaluated in
// slice order and the first match wins.
type typeRule struct {
	queryType models.QueryType
	matches   func(lower string) bool
}

var (
	factualPatterns     = compileAll(`\bwhat is\b`, `\bwho is\b`, `\bwhere is\b`, `\bwhen (?:was|did|is)\b`, `\bdefine\b`, `\blist\b`, `\bname\b`)
	analyticalPatterns  = compileAll(`\banalyze\b`, `\bevaluate\b`, `\bassess\b`, `\bcompare\b`, `\bcontrast\b`, `\bdifference\b`, `\bsimilarity\b`)
	proceduralPatterns  = compileAll(`\bhow to\b`, `\bhow do\b`, `\bprocess\b`, `\bsteps\b`, `\bprocedure\b`, `\bmethod\b`, `\bapproach\b`)
	explanatoryPatterns = compileAll(`\bwhy\b`, `\bexplain\b`, `\breason\b`, `\bcause\b`, `\bjustify\b`, `\brationale\b`)
	numericalPatterns   = compileAll(`\bhow much\b`, `\bhow many\b`, `\bcost\b`, `\bprice\b`, `\brevenue\b`, `\bprofit\b`, `\bfinancial\b`, `\bnumber\b`, `\bpercentage\b`, `\brate\b`, `\bamount\b`)

	questionWordRe = regexp.MustCompile(`\b(?:what|who|where|when|why|how)\b`)

	temporalWords = []string{"when", "timeline", "schedule", "date", "period", "duration"}
)

var typeRules = []typeRule{
	{models.QueryTypeMultiPart, isMultiPart},
	{models.QueryTypeNumerical, anyMatch(numericalPatterns)},
	{models.QueryTypeComparative, func(q string) bool {
		return anyMatch(analyticalPatterns)(q) && (strings.Contains(q, "compare") || strings.Contains(q, "difference"))
	}},
	{models.QueryTypeAnalytical, anyMatch(analyticalPatterns)},
	{models.QueryTypeExplanatory, anyMatch(explanatoryPatterns)},
	{models.QueryTypeProcedural, anyMatch(proceduralPatterns)},
	{models.QueryTypeFactual, anyMatch(factualPatterns)},
	{models.QueryTypeTemporal, containsAny(temporalWords)},
}

// Classify returns the query type of a lowercased query.
func Classify(lower string) models.QueryType {
	for _, rule := range typeRules {
		if rule.matches(lower) {
			return rule.queryType
		}
	}
	return models.QueryTypeFactual
}

// isMultiPart holds for two or more distinct question words or a literal
// " and ".
func isMultiPart(lower string) bool {
	if strings.Contains(lower, " and ") {
		return true
	}
	distinct := make(map[string]bool)
	for _, w := range questionWordRe.FindAllString(lower, -1) {
		distinct[w] = true
	}
	return len(distinct) >= 2
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

func anyMatch(patterns []*regexp.Regexp) func(string) bool {
	return func(q string) bool {
		for _, re := range patterns {
			if re.MatchString(q) {
				return true
			}
		}
		return false
	}
}

func containsAny(words []string) func(string) bool {
	return func(q string) bool {
		for _, w := range words {
			if strings.Contains(q, w) {
				return true
			}
		}
		return false
	}
}

// ==========================
// Complexity
// ==========================

const (
	longQueryWords       = 20
	mediumQueryWords     = 12
	analyticalComplexLen = 15

	veryComplexScore = 5
	complexScore     = 3
	moderateScore    = 1
)

// scoreRule adds weight once for every term found in the lowercased query.
// Terms are plain substrings; clause joiners carry their own spaces.
type scoreRule struct {
	weight int
	terms  []string
}

var scoreRules = []scoreRule{
	{1, []string{" and ", " or ", " but ", " because ", " if ", " when "}},
	{1, []string{"comprehensive", "detailed", "thorough", "complete", "entire", "all"}},
	{2, []string{"overall", "total", "summary", "synthesize", "aggregate", "combine"}},
}

// AssessComplexity grades query given its type.
func AssessComplexity(query string, queryType models.QueryType) models.Complexity {
	words := len(strings.Fields(query))

	switch queryType {
	case models.QueryTypeMultiPart:
		return models.ComplexityComplex
	case models.QueryTypeAnalytical, models.QueryTypeComparative:
		if words < analyticalComplexLen {
			return models.ComplexityModerate
		}
		return models.ComplexityComplex
	}

	score := 0
	switch {
	case words > longQueryWords:
		score += 2
	case words > mediumQueryWords:
		score++
	}

	lower := strings.ToLower(query)
	for _, rule := range scoreRules {
		for _, term := range rule.terms {
			if strings.Contains(lower, term) {
				score += rule.weight
			}
		}
	}

	switch {
	case score >= veryComplexScore:
		return models.ComplexityVeryComplex
	case score >= complexScore:
		return models.ComplexityComplex
	case score >= moderateScore:
		return models.ComplexityModerate
	default:
		return models.ComplexitySimple
	}
}

// ==========================
// Retrieval strategy
// ==========================

const (
	defaultTopK   = 5
	multiPassTopK = 10
	crossDocTopK  = 8
	numericalTopK = 7
	multiPartTopK = 12
)

// strategyOverride adjusts s in place. Overrides run in slice order so later
// ones win.
type strategyOverride func(s *models.RetrievalStrategy, qt models.QueryType, c models.Complexity)

var strategyOverrides = []strategyOverride{
	func(s *models.RetrievalStrategy, _ models.QueryType, c models.Complexity) {
		if c.RequiresMultiStep() {
			s.Approach = models.ApproachMultiPass
			s.TopKInitial = multiPassTopK
			s.EnableReranking = true
			s.ExpandContext = true
		}
	},
	func(s *models.RetrievalStrategy, qt models.QueryType, _ models.Complexity) {
		if qt == models.QueryTypeComparative || qt == models.QueryTypeAnalytical {
			s.CrossDocument = true
			s.TopKInitial = max(s.TopKInitial, crossDocTopK)
		}
	},
	func(s *models.RetrievalStrategy, qt models.QueryType, _ models.Complexity) {
		if qt == models.QueryTypeNumerical {
			s.EnableReranking = true
			s.TopKInitial = max(s.TopKInitial, numericalTopK)
		}
	},
	func(s *models.RetrievalStrategy, qt models.QueryType, _ models.Complexity) {
		if qt == models.QueryTypeMultiPart {
			s.Approach = models.ApproachHierarchical
			s.TopKInitial = multiPartTopK
		}
	},
}

// Strategy returns the retrieval strategy for a query type and complexity.
func Strategy(qt models.QueryType, c models.Complexity) models.RetrievalStrategy {
	s := models.RetrievalStrategy{
		Approach:    models.ApproachSinglePass,
		TopKInitial: defaultTopK,
	}
	for _, override := range strategyOverrides {
		override(&s, qt, c)
	}
	return s
}

// ==========================
// Decomposition
// ==========================

// Decompose breaks multi-step queries into sub-questions. Types without a
// template return nil and the engine builds its own steps.
func Decompose(query string, qt models.QueryType, c models.Complexity) []string {
	if !c.RequiresMultiStep() {
		return nil
	}
	lower := strings.ToLower(query)

	switch qt {
	case models.QueryTypeMultiPart:
		if !strings.Contains(lower, " and ") {
			return nil
		}
		var subs []string
		for _, part := range splitFold(query, " and ") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if !strings.HasSuffix(part, "?") {
				part += "?"
			}
			subs = append(subs, part)
		}
		return subs

	case models.QueryTypeComparative:
		if !strings.Contains(lower, "difference between") && !strings.Contains(lower, "compare") {
			return nil
		}
		return []string{
			"What are the key characteristics of the first entity?",
			"What are the key characteristics of the second entity?",
			"What are the main differences?",
		}

	case models.QueryTypeAnalytical:
		subject := lower
		if i := strings.LastIndex(lower, "analyze"); i >= 0 {
			subject = lower[i+len("analyze"):]
		}
		subject = strings.TrimRight(strings.TrimSpace(subject), "?")
		return []string{
			"What are the relevant facts about " + subject + "?",
			"What are the key metrics and indicators?",
			"What are the implications or conclusions?",
		}

	case models.QueryTypeProcedural:
		return []string{
			"What is the overall process?",
			"What are the key steps involved?",
			"What are the requirements or prerequisites?",
		}
	}
	return nil
}

// splitFold splits s around every case-insensitive occurrence of sep,
// keeping the original casing of the pieces.
func splitFold(s, sep string) []string {
	lower := strings.ToLower(s)
	var parts []string
	for {
		i := strings.Index(lower, sep)
		if i < 0 {
			return append(parts, s)
		}
		parts = append(parts, s[:i])
		s, lower = s[i+len(sep):], lower[i+len(sep):]
	}
}
