// internal/models/analysis.go
package models

type QueryType string

const (
	QueryTypeFactual     QueryType = "factual"
	QueryTypeAnalytical  QueryType = "analytical"
	QueryTypeProcedural  QueryType = "procedural"
	QueryTypeNumerical   QueryType = "numerical"
	QueryTypeTemporal    QueryType = "temporal"
	QueryTypeComparative QueryType = "comparative"
	QueryTypeExplanatory QueryType = "explanatory"
	QueryTypeMultiPart   QueryType = "multi_part"
)

type Complexity string

const (
	ComplexitySimple      Complexity = "simple"
	ComplexityModerate    Complexity = "moderate"
	ComplexityComplex     Complexity = "complex"
	ComplexityVeryComplex Complexity = "very_complex"
)

// Rank orders complexities from simple (0) to very_complex (3).
func (c Complexity) Rank() int {
	switch c {
	case ComplexityModerate:
		return 1
	case ComplexityComplex:
		return 2
	case ComplexityVeryComplex:
		return 3
	default:
		return 0
	}
}

// RequiresMultiStep reports whether queries of this complexity are answered
// through a multi-step plan.
func (c Complexity) RequiresMultiStep() bool {
	return c == ComplexityComplex || c == ComplexityVeryComplex
}

type RetrievalApproach string

const (
	ApproachSinglePass   RetrievalApproach = "single_pass"
	ApproachMultiPass    RetrievalApproach = "multi_pass"
	ApproachHierarchical RetrievalApproach = "hierarchical"
)

type RetrievalStrategy struct {
	Approach        RetrievalApproach `json:"approach"`
	TopKInitial     int               `json:"topKInitial"`
	EnableReranking bool              `json:"enableReranking"`
	ExpandContext   bool              `json:"expandContext"`
	CrossDocument   bool              `json:"crossDocument"`
}

// QueryEntities groups vocabulary hits found in the query text itself.
type QueryEntities struct {
	FinancialTerms     []string `json:"financialTerms"`
	TemporalReferences []string `json:"temporalReferences"`
	Organizations      []string `json:"organizations"`
	Metrics            []string `json:"metrics"`
	GeneralConcepts    []string `json:"generalConcepts"`
}

type ContextAnalysis struct {
	HasContext         bool               `json:"hasContext"`
	ReferencesPrevious bool               `json:"referencesPrevious"`
	Continuation       bool               `json:"continuation"`
	RecentHistory      []ConversationTurn `json:"recentHistory"`
}

// QueryAnalysis is immutable once produced by the analyzer.
type QueryAnalysis struct {
	Query                 string            `json:"query"`
	QueryType             QueryType         `json:"queryType"`
	Complexity            Complexity        `json:"complexity"`
	Entities              QueryEntities     `json:"entities"`
	SubQuestions          []string          `json:"subQuestions"`
	RetrievalStrategy     RetrievalStrategy `json:"retrievalStrategy"`
	ContextAnalysis       ContextAnalysis   `json:"contextAnalysis"`
	RequiresMultiStep     bool              `json:"requiresMultiStep"`
	EstimatedChunksNeeded int               `json:"estimatedChunksNeeded"`
}
