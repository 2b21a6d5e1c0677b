package models

type StepType string

const (
	StepRetrieval    StepType = "retrieval"
	StepSynthesis    StepType = "synthesis"
	StepVerification StepType = "verification"
)

type ReasoningType string

const (
	ReasoningSimpleRetrieval ReasoningType = "simple_retrieval"
	ReasoningMultiStep       ReasoningType = "multi_step"
	ReasoningClarification   ReasoningType = "clarification"
)

// ReasoningStep is one entry of the per-request audit trail. Step numbers are
// contiguous from 1.
type ReasoningStep struct {
	StepNumber  int      `json:"stepNumber"`
	Question    string   `json:"question"`
	StepType    StepType `json:"stepType"`
	ChunksUsed  int      `json:"chunksUsed"`
	DraftAnswer string   `json:"draftAnswer,omitempty"`
	Confidence  float64  `json:"confidence"`
}

type ClaimSupport struct {
	Text         string  `json:"text"`
	SupportScore float64 `json:"supportScore"`
	Supported    bool    `json:"supported"`
}

type VerificationResult struct {
	IsVerified        bool           `json:"isVerified"`
	VerificationScore float64        `json:"verificationScore"`
	SupportedClaims   int            `json:"supportedClaims"`
	TotalClaims       int            `json:"totalClaims"`
	UnsupportedClaims []string       `json:"unsupportedClaims"`
	Claims            []ClaimSupport `json:"claims,omitempty"`
}

type ChatResponse struct {
	Answer             string              `json:"answer"`
	Citations          []Citation          `json:"citations"`
	ConfidenceScore    float64             `json:"confidenceScore"`
	RelevantChunks     int                 `json:"relevantChunks"`
	ReasoningType      ReasoningType       `json:"reasoningType"`
	QueryType          QueryType           `json:"queryType,omitempty"`
	Complexity         Complexity          `json:"complexity,omitempty"`
	ReasoningSteps     []ReasoningStep     `json:"reasoningSteps"`
	ContextUsed        bool                `json:"contextUsed"`
	NeedsClarification bool                `json:"needsClarification"`
	Verification       *VerificationResult `json:"verification,omitempty"`
}
