package models

import "time"

type DocumentScope string

const (
	DocumentScopeAllDocs      DocumentScope = "ALL_DOCS"
	DocumentScopeSelectedDocs DocumentScope = "SELECTED_DOCS"
)

type ProjectStatus string

const (
	ProjectStatusGenerating ProjectStatus = "GENERATING"
	ProjectStatusReady      ProjectStatus = "READY"
)

type AnswerStatus string

const (
	AnswerStatusGenerated   AnswerStatus = "GENERATED"
	AnswerStatusMissingData AnswerStatus = "MISSING_DATA"
)

// Project is a questionnaire scoped to a set of indexed documents.
type Project struct {
	ID                  string        `json:"id" db:"id"`
	Name                string        `json:"name" db:"name"`
	DocumentScope       DocumentScope `json:"documentScope" db:"document_scope"`
	SelectedDocumentIDs []string      `json:"selectedDocumentIds" db:"selected_document_ids"`
	Status              ProjectStatus `json:"status" db:"status"`
}

type Question struct {
	ID        string `json:"id" db:"id"`
	ProjectID string `json:"projectId" db:"project_id"`
	Text      string `json:"text" db:"text"`
	Position  int    `json:"position" db:"position"`
}

type Answer struct {
	QuestionID      string       `json:"questionId" db:"question_id"`
	IsAnswerable    bool         `json:"isAnswerable" db:"is_answerable"`
	AIAnswer        *string      `json:"aiAnswer,omitempty" db:"ai_answer"`
	Citations       []Citation   `json:"citations" db:"citations"`
	ConfidenceScore float64      `json:"confidenceScore" db:"confidence_score"`
	Status          AnswerStatus `json:"status" db:"status"`
	UpdatedAt       time.Time    `json:"updatedAt" db:"updated_at"`
}

// BatchSummary is the result of answering every question of a project.
type BatchSummary struct {
	ProjectID      string `json:"projectId"`
	TotalQuestions int    `json:"totalQuestions"`
	Generated      int    `json:"generated"`
	Failed         int    `json:"failed"`
}
