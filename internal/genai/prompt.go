package genai

import (
	"fmt"
	"strings"

	"docqa-workers/internal/models"
)

const SystemPrompt = "You are an expert analyst helping with due diligence questionnaires. " +
	"Provide accurate, concise answers based on the provided context."

// at most this many chunks are shown to a provider
const promptChunks = 5

// BuildContext renders the top chunks as numbered sources.
func BuildContext(chunks []models.EvidenceChunk) string {
	if len(chunks) > promptChunks {
		chunks = chunks[:promptChunks]
	}
	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		parts = append(parts, fmt.Sprintf("[Source %d: %s]\n%s\n", i+1, c.SourceName(), c.Text))
	}
	return strings.Join(parts, "\n")
}

func BuildPrompt(question string, chunks []models.EvidenceChunk) string {
	return "Based on the following context from due diligence documents, please answer the question accurately and concisely.\n\n" +
		"Context:\n" + BuildContext(chunks) + "\n\n" +
		"Question: " + question + "\n\n" +
		"Instructions:\n" +
		"1. Provide a direct, factual answer based only on the information in the context\n" +
		"2. If the context doesn't contain enough information, state that clearly\n" +
		"3. Be concise but thorough\n" +
		"4. Use professional language appropriate for due diligence\n\n" +
		"Answer:"
}
