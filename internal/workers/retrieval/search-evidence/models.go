package searchevidence

import (
	"docqa-workers/internal/common/validation"
	"docqa-workers/internal/models"
)

type Input struct {
	Query       string   `json:"query"`
	Layer       string   `json:"layer,omitempty"`
	DocumentIDs []string `json:"documentIds,omitempty"`
	TopK        int      `json:"topK,omitempty"`
}

type Output struct {
	Chunks    []models.EvidenceChunk `json:"chunks"`
	TotalHits int                    `json:"totalHits"`
	MaxScore  float64                `json:"maxScore"`
}

const maxTopK = 50

var inputSchema = validation.MustCompile(map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"query"},
	"properties": map[string]interface{}{
		"query": map[string]interface{}{"type": "string", "minLength": 1},
		"layer": map[string]interface{}{"type": "string", "enum": []interface{}{"answer", "citation"}},
		"documentIds": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string", "minLength": 1},
		},
		"topK": map[string]interface{}{"type": "integer", "minimum": 1, "maximum": maxTopK},
	},
})
