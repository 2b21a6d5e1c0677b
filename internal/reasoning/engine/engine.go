// Package engine runs the retrieval and generation plan for an analysed
// query: a single retrieval pass for simple questions, or per-step retrieval
// followed by synthesis and a consistency check for complex ones.
package engine

import (
	"context"
	"fmt"

	"docqa-workers/internal/common/logger"
	"docqa-workers/internal/genai"
	"docqa-workers/internal/models"
	"docqa-workers/internal/retrieval"
)

const (
	NotFoundAnswer  = "I couldn't find relevant information to answer this question."
	NoFindingAnswer = "Unable to generate a comprehensive answer based on available information."

	DefaultMaxCitations = 5

	stepTopK          = 5
	simpleCitations   = 3
	multiCitations    = 5
	maxFallbackSteps  = 4
	synthesisQuestion = "Synthesize final answer"
	verifyQuestion    = "Verify answer consistency"
)

type Config struct {
	MaxCitations int
}

// Engine holds no per-request state and is safe for concurrent use.
type Engine struct {
	index        retrieval.Index
	provider     genai.Provider
	maxCitations int
	log          logger.Logger
}

// New wires the engine. Providers that can fail are wrapped so generation
// always degrades to the local heuristic.
func New(cfg Config, index retrieval.Index, provider genai.Provider, log logger.Logger) *Engine {
	log = logger.OrNoOp(log)
	switch provider.(type) {
	case *genai.Fallback, *genai.Local:
	case nil:
		provider = genai.NewLocal()
	default:
		provider = genai.WithFallback(provider, log)
	}
	if cfg.MaxCitations <= 0 {
		cfg.MaxCitations = DefaultMaxCitations
	}
	return &Engine{
		index:        index,
		provider:     provider,
		maxCitations: cfg.MaxCitations,
		log:          log.With(map[string]interface{}{"component": "reasoning-engine"}),
	}
}

// Request is one question to reason about. Query drives retrieval; Prompt is
// what the provider sees for the top-level answer and defaults to Query.
type Request struct {
	Query       string
	Prompt      string
	Analysis    models.QueryAnalysis
	DocumentIDs []string
}

type Result struct {
	Answer         string
	Steps          []models.ReasoningStep
	Confidence     float64
	Citations      []models.Citation
	ReasoningType  models.ReasoningType
	Evidence       []models.EvidenceChunk
	RelevantChunks int
}

// Process never fails: retrieval and provider errors are logged and
// degrade the answer instead.
func (e *Engine) Process(ctx context.Context, req Request) Result {
	if req.Prompt == "" {
		req.Prompt = req.Query
	}
	if req.Analysis.RequiresMultiStep {
		return e.multiStep(ctx, req)
	}
	return e.simple(ctx, req)
}

func (e *Engine) simple(ctx context.Context, req Request) Result {
	strategy := req.Analysis.RetrievalStrategy
	chunks := e.retrieve(ctx, req.Query, req.DocumentIDs, strategy.TopKInitial)

	step := models.ReasoningStep{
		StepNumber: 1,
		Question:   req.Query,
		StepType:   models.StepRetrieval,
		ChunksUsed: len(chunks),
	}

	if len(chunks) == 0 {
		return Result{
			Answer:        NotFoundAnswer,
			Steps:         []models.ReasoningStep{step},
			Citations:     []models.Citation{},
			ReasoningType: models.ReasoningSimpleRetrieval,
		}
	}

	if strategy.EnableReranking {
		chunks = Rerank(req.Query, chunks)
	}

	gen := e.generate(ctx, req.Prompt, chunks)
	step.Confidence = Confidence(chunks, gen.Answer, gen.Simulated)

	return Result{
		Answer:         gen.Answer,
		Steps:          []models.ReasoningStep{step},
		Confidence:     step.Confidence,
		Citations:      e.citations(ctx, head(chunks, simpleCitations)),
		ReasoningType:  models.ReasoningSimpleRetrieval,
		Evidence:       chunks,
		RelevantChunks: len(chunks),
	}
}

func (e *Engine) multiStep(ctx context.Context, req Request) Result {
	subQuestions := req.Analysis.SubQuestions
	if len(subQuestions) == 0 {
		subQuestions = FallbackSubQuestions(req.Query, req.Analysis)
	}

	var (
		steps     []models.ReasoningStep
		allChunks []models.EvidenceChunk
		drafts    []string
	)

	for i, sub := range subQuestions {
		step := models.ReasoningStep{
			StepNumber: i + 1,
			Question:   sub,
			StepType:   models.StepRetrieval,
		}

		chunks := e.retrieve(ctx, sub, req.DocumentIDs, stepTopK)
		if len(chunks) > 0 {
			allChunks = append(allChunks, chunks...)

			gen := e.generate(ctx, sub, chunks)
			step.ChunksUsed = len(chunks)
			step.DraftAnswer = gen.Answer
			step.Confidence = Confidence(chunks, gen.Answer, gen.Simulated)
			if gen.Answer != "" {
				drafts = append(drafts, gen.Answer)
			}
		}
		steps = append(steps, step)
	}

	answer := e.synthesize(ctx, req.Query, drafts)
	steps = append(steps, models.ReasoningStep{
		StepNumber:  len(steps) + 1,
		Question:    synthesisQuestion,
		StepType:    models.StepSynthesis,
		ChunksUsed:  len(allChunks),
		DraftAnswer: answer,
	})

	check := CheckConsistency(answer, allChunks)
	steps = append(steps, models.ReasoningStep{
		StepNumber:  len(steps) + 1,
		Question:    verifyQuestion,
		StepType:    models.StepVerification,
		ChunksUsed:  len(head(allChunks, consistencyChunks)),
		DraftAnswer: check.Notes,
		Confidence:  check.Confidence(),
	})

	e.log.Debug("Multi-step plan finished", map[string]interface{}{
		"subQuestions": len(subQuestions),
		"chunks":       len(allChunks),
		"consistent":   check.Consistent,
	})

	return Result{
		Answer:         answer,
		Steps:          steps,
		Confidence:     OverallConfidence(steps),
		Citations:      e.citations(ctx, head(allChunks, multiCitations)),
		ReasoningType:  models.ReasoningMultiStep,
		Evidence:       allChunks,
		RelevantChunks: len(allChunks),
	}
}

func (e *Engine) retrieve(ctx context.Context, query string, documentIDs []string, topK int) []models.EvidenceChunk {
	if topK <= 0 {
		topK = retrieval.DefaultTopK
	}
	chunks, err := e.index.SearchForAnswer(ctx, query, documentIDs, topK)
	if err != nil {
		e.log.Warn("Retrieval failed, continuing without evidence", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	return chunks
}

func (e *Engine) generate(ctx context.Context, question string, chunks []models.EvidenceChunk) genai.Generation {
	gen, err := e.provider.Generate(ctx, question, chunks)
	if err != nil {
		e.log.Warn("Generation failed", map[string]interface{}{"error": err.Error()})
		return genai.Generation{Answer: genai.CannotAnswer, Simulated: true}
	}
	return gen
}

// synthesize combines step drafts. A real model answer is used as is;
// otherwise the drafts are merged locally.
func (e *Engine) synthesize(ctx context.Context, query string, drafts []string) string {
	if len(drafts) == 0 {
		return NoFindingAnswer
	}

	findings := make([]string, len(drafts))
	for i, d := range drafts {
		findings[i] = fmt.Sprintf("Finding %d: %s", i+1, d)
	}
	synthetic := models.EvidenceChunk{
		Text:     joinParagraphs(findings),
		Metadata: map[string]interface{}{"source": "synthesis"},
	}

	gen := e.generate(ctx, query, []models.EvidenceChunk{synthetic})
	if gen.Success && !gen.Simulated && gen.Answer != "" {
		return gen.Answer
	}
	return Concatenate(drafts)
}

// citations re-resolves source chunks against the citation layer. Sources
// are deduplicated by chunk id, first seen wins.
func (e *Engine) citations(ctx context.Context, chunks []models.EvidenceChunk) []models.Citation {
	out := []models.Citation{}
	seen := make(map[string]bool, len(chunks))

	for _, chunk := range chunks {
		if seen[chunk.ChunkID] {
			continue
		}
		seen[chunk.ChunkID] = true

		hits, err := e.index.SearchForCitations(ctx, chunk.Text, []string{chunk.DocumentID}, 1)
		if err != nil {
			e.log.Warn("Citation lookup failed", map[string]interface{}{
				"chunkId": chunk.ChunkID,
				"error":   err.Error(),
			})
			continue
		}
		if len(hits) == 0 {
			continue
		}

		out = append(out, NewCitation(hits[0], chunk.Score))
		if len(out) == e.maxCitations {
			break
		}
	}
	return out
}

func head(chunks []models.EvidenceChunk, n int) []models.EvidenceChunk {
	if len(chunks) > n {
		return chunks[:n]
	}
	return chunks
}
