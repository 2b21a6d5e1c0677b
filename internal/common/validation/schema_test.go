package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa-workers/internal/common/errors"
)

var questionSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"question"},
	"properties": map[string]interface{}{
		"question": map[string]interface{}{"type": "string", "minLength": 1},
		"topK":     map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 50},
		"layer":    map[string]interface{}{"type": "string", "enum": []interface{}{"answer", "citation"}},
	},
}

func TestSchema_Validate(t *testing.T) {
	schema := MustCompile(questionSchema)

	tests := []struct {
		name      string
		input     map[string]interface{}
		wantValid bool
		wantField string
	}{
		{"valid", map[string]interface{}{"question": "What is revenue?", "topK": 5}, true, ""},
		{"missing question", map[string]interface{}{"topK": 5}, false, "(root)"},
		{"empty question", map[string]interface{}{"question": ""}, false, "question"},
		{"topK out of range", map[string]interface{}{"question": "q", "topK": 500}, false, "topK"},
		{"bad layer", map[string]interface{}{"question": "q", "layer": "summary"}, false, "layer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := schema.Validate(tt.input)
			assert.Equal(t, tt.wantValid, res.Valid)
			if !tt.wantValid {
				require.NotEmpty(t, res.Errors)
				assert.Equal(t, tt.wantField, res.Errors[0].Field)

				stdErr := res.ToStandardError()
				require.NotNil(t, stdErr)
				assert.Equal(t, errors.ErrCodeValidationFailed, stdErr.Code)
			} else {
				assert.Nil(t, res.ToStandardError())
			}
		})
	}
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile(map[string]interface{}{"type": 42})
	assert.Error(t, err)
}
