package queryanalyzer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa-workers/internal/common/logger"
	"docqa-workers/internal/models"
)

func TestAnalyze_SimpleFactualQuestion(t *testing.T) {
	a := New(logger.NewTestLogger(t))

	got := a.Analyze("What is the fund's investment strategy?", nil)

	assert.Equal(t, models.QueryTypeFactual, got.QueryType)
	assert.Equal(t, models.ComplexitySimple, got.Complexity)
	assert.False(t, got.RequiresMultiStep)
	assert.Empty(t, got.SubQuestions)
	assert.Equal(t, 3, got.EstimatedChunksNeeded)
	assert.Equal(t, models.RetrievalStrategy{Approach: models.ApproachSinglePass, TopKInitial: 5}, got.RetrievalStrategy)
	assert.False(t, got.ContextAnalysis.HasContext)
}

func TestAnalyze_MultiPartBeatsComparative(t *testing.T) {
	got := New(nil).Analyze("Compare the 2024 revenue and the 2025 revenue", nil)

	assert.Equal(t, models.QueryTypeMultiPart, got.QueryType)
	assert.Equal(t, models.ComplexityComplex, got.Complexity)
	assert.True(t, got.RequiresMultiStep)
	assert.Equal(t, []string{"Compare the 2024 revenue?", "the 2025 revenue?"}, got.SubQuestions)
	assert.Equal(t, models.ApproachHierarchical, got.RetrievalStrategy.Approach)
	assert.Equal(t, 12, got.RetrievalStrategy.TopKInitial)
	assert.True(t, got.RetrievalStrategy.EnableReranking)
	assert.Equal(t, 8, got.EstimatedChunksNeeded)
}

// ==========================
// Classification
// ==========================

func TestClassify(t *testing.T) {
	tests := []struct {
		query string
		want  models.QueryType
	}{
		{"who manages the fund, where is it based?", models.QueryTypeMultiPart},
		{"what is what?", models.QueryTypeFactual},
		{"how much did the fund raise?", models.QueryTypeNumerical},
		{"what is the difference between the two funds?", models.QueryTypeComparative},
		{"evaluate the board structure", models.QueryTypeAnalytical},
		{"why did margins fall?", models.QueryTypeExplanatory},
		{"how to onboard a vendor", models.QueryTypeProcedural},
		{"define carried interest", models.QueryTypeFactual},
		{"timeline for the fundraise", models.QueryTypeTemporal},
		{"tell me about the portfolio", models.QueryTypeFactual},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.query))
		})
	}
}

// ==========================
// Complexity
// ==========================

func TestAssessComplexity(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		queryType models.QueryType
		want      models.Complexity
	}{
		{"multi part", "a and b", models.QueryTypeMultiPart, models.ComplexityComplex},
		{"short comparative", "compare the funds", models.QueryTypeComparative, models.ComplexityModerate},
		{"long analytical", "one two three four five six seven eight nine ten eleven twelve thirteen fourteen fifteen", models.QueryTypeAnalytical, models.ComplexityComplex},
		{"plain", "What is the fee?", models.QueryTypeFactual, models.ComplexitySimple},
		{"one keyword", "Give a detailed view", models.QueryTypeFactual, models.ComplexityModerate},
		{"synthesis keyword", "What is the total exposure?", models.QueryTypeFactual, models.ComplexityModerate},
		{"two synthesis keywords", "Give the overall summary", models.QueryTypeFactual, models.ComplexityVeryComplex},
		{"synthesis and clause", "the total if rates rise", models.QueryTypeFactual, models.ComplexityComplex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AssessComplexity(tt.query, tt.queryType))
		})
	}
}

func TestAssessComplexity_TwoSynthesisKeywordsAtLeastComplex(t *testing.T) {
	for _, q := range []string{
		"overall summary",
		"Provide a total and aggregate view",
		"combine the figures and synthesize them",
	} {
		got := AssessComplexity(q, Classify(q))
		assert.GreaterOrEqual(t, got.Rank(), models.ComplexityComplex.Rank(), q)
	}
}

// ==========================
// Strategy
// ==========================

func TestStrategy_MonotoneInComplexity(t *testing.T) {
	types := []models.QueryType{
		models.QueryTypeFactual, models.QueryTypeAnalytical, models.QueryTypeProcedural,
		models.QueryTypeNumerical, models.QueryTypeTemporal, models.QueryTypeComparative,
		models.QueryTypeExplanatory, models.QueryTypeMultiPart,
	}
	levels := []models.Complexity{
		models.ComplexitySimple, models.ComplexityModerate,
		models.ComplexityComplex, models.ComplexityVeryComplex,
	}

	for _, qt := range types {
		prev := Strategy(qt, levels[0])
		for _, c := range levels[1:] {
			cur := Strategy(qt, c)
			assert.GreaterOrEqual(t, cur.TopKInitial, prev.TopKInitial, fmt.Sprintf("%s/%s", qt, c))
			if prev.EnableReranking {
				assert.True(t, cur.EnableReranking, fmt.Sprintf("%s/%s", qt, c))
			}
			prev = cur
		}
	}
}

func TestStrategy_Overrides(t *testing.T) {
	comparative := Strategy(models.QueryTypeComparative, models.ComplexityModerate)
	assert.True(t, comparative.CrossDocument)
	assert.Equal(t, 8, comparative.TopKInitial)
	assert.False(t, comparative.EnableReranking)

	numerical := Strategy(models.QueryTypeNumerical, models.ComplexitySimple)
	assert.True(t, numerical.EnableReranking)
	assert.Equal(t, 7, numerical.TopKInitial)

	complexAnalytical := Strategy(models.QueryTypeAnalytical, models.ComplexityComplex)
	assert.Equal(t, models.ApproachMultiPass, complexAnalytical.Approach)
	assert.Equal(t, 10, complexAnalytical.TopKInitial)
	assert.True(t, complexAnalytical.ExpandContext)
	assert.True(t, complexAnalytical.CrossDocument)
}

// ==========================
// Decomposition
// ==========================

func TestAnalyze_AnalyticalDecomposition(t *testing.T) {
	q := "Please analyze the customer concentration risk across the portfolio companies over the last three fiscal periods?"

	got := New(nil).Analyze(q, nil)

	require.Equal(t, models.QueryTypeAnalytical, got.QueryType)
	require.Equal(t, models.ComplexityComplex, got.Complexity)
	assert.Equal(t, []string{
		"What are the relevant facts about the customer concentration risk across the portfolio companies over the last three fiscal periods?",
		"What are the key metrics and indicators?",
		"What are the implications or conclusions?",
	}, got.SubQuestions)
}

func TestDecompose(t *testing.T) {
	assert.Nil(t, Decompose("compare a and b", models.QueryTypeComparative, models.ComplexityModerate))

	assert.Len(t, Decompose("compare the funds", models.QueryTypeComparative, models.ComplexityComplex), 3)
	assert.Nil(t, Decompose("contrast the funds", models.QueryTypeComparative, models.ComplexityComplex))

	procedural := Decompose("what is the process", models.QueryTypeProcedural, models.ComplexityVeryComplex)
	assert.Equal(t, "What is the overall process?", procedural[0])

	assert.Nil(t, Decompose("why", models.QueryTypeExplanatory, models.ComplexityVeryComplex))
	assert.Equal(t, []string{"Fees?", "carry?"}, Decompose("Fees AND carry?", models.QueryTypeMultiPart, models.ComplexityComplex))
}

// ==========================
// Entities and context
// ==========================

func TestExtractEntities(t *testing.T) {
	got := ExtractEntities("What was Acme Holdings revenue growth in Q3 2024, up 12% to $5 million?")

	assert.Equal(t, []string{"revenue"}, got.FinancialTerms)
	assert.ElementsMatch(t, []string{"q3", "2024"}, got.TemporalReferences)
	assert.Equal(t, []string{"Acme Holdings"}, got.Organizations)
	assert.Equal(t, []string{"12%", "5 million"}, got.Metrics)
	assert.Equal(t, []string{"growth"}, got.GeneralConcepts)
}

func TestAnalyze_ContextAnalysis(t *testing.T) {
	var history []models.ConversationTurn
	for i := 0; i < 8; i++ {
		history = append(history, models.ConversationTurn{Role: models.RoleUser, Content: fmt.Sprintf("turn %d", i)})
	}

	got := New(nil).Analyze("Also, what about their debt?", history).ContextAnalysis

	assert.True(t, got.HasContext)
	assert.True(t, got.ReferencesPrevious)
	assert.True(t, got.Continuation)
	require.Len(t, got.RecentHistory, 6)
	assert.Equal(t, "turn 2", got.RecentHistory[0].Content)
}
