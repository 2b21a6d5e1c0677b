package generatechatresponse

import (
	"docqa-workers/internal/common/validation"
	"docqa-workers/internal/models"
)

type Input struct {
	Question            string                    `json:"question"`
	DocumentIDs         []string                  `json:"documentIds,omitempty"`
	ConversationHistory []models.ConversationTurn `json:"conversationHistory,omitempty"`
}

// Output is the chat response flattened into process variables.
type Output = models.ChatResponse

var inputSchema = validation.MustCompile(map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"question"},
	"properties": map[string]interface{}{
		"question": map[string]interface{}{"type": "string"},
		"documentIds": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string", "minLength": 1},
		},
		"conversationHistory": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"role", "content"},
				"properties": map[string]interface{}{
					"role":    map[string]interface{}{"type": "string", "enum": []interface{}{"user", "assistant"}},
					"content": map[string]interface{}{"type": "string"},
				},
			},
		},
	},
})
