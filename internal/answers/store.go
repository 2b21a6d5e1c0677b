// Package answers persists questionnaire projects and answers them in bulk
// through the reasoning pipeline.
package answers

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/lib/pq"

	"docqa-workers/internal/common/errors"
	"docqa-workers/internal/models"
)

// Schema creates the tables the store reads and writes.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	is_questionnaire BOOLEAN NOT NULL DEFAULT FALSE,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS projects (
	id                    TEXT PRIMARY KEY,
	name                  TEXT NOT NULL,
	document_scope        TEXT NOT NULL DEFAULT 'ALL_DOCS',
	selected_document_ids TEXT[] NOT NULL DEFAULT '{}',
	status                TEXT NOT NULL DEFAULT 'READY',
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS questions (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	text       TEXT NOT NULL,
	position   INT NOT NULL
);
CREATE TABLE IF NOT EXISTS answers (
	question_id      TEXT PRIMARY KEY REFERENCES questions(id) ON DELETE CASCADE,
	is_answerable    BOOLEAN NOT NULL,
	ai_answer        TEXT,
	citations        JSONB NOT NULL DEFAULT '[]',
	confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	status           TEXT NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);`

const (
	queryGetProject = `SELECT id, name, document_scope, selected_document_ids, status FROM projects WHERE id = $1`

	querySetProjectStatus = `UPDATE projects SET status = $2, updated_at = $3 WHERE id = $1`

	queryListQuestions = `SELECT id, project_id, text, position FROM questions WHERE project_id = $1 ORDER BY position, id`

	queryListDocuments = `SELECT id FROM documents WHERE is_questionnaire = FALSE ORDER BY created_at, id`

	queryUpsertAnswer = `INSERT INTO answers (question_id, is_answerable, ai_answer, citations, confidence_score, status, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (question_id) DO UPDATE SET
	is_answerable = EXCLUDED.is_answerable,
	ai_answer = EXCLUDED.ai_answer,
	citations = EXCLUDED.citations,
	confidence_score = EXCLUDED.confidence_score,
	status = EXCLUDED.status,
	updated_at = EXCLUDED.updated_at`
)

type Store interface {
	GetProject(ctx context.Context, id string) (models.Project, error)
	SetProjectStatus(ctx context.Context, id string, status models.ProjectStatus) error
	ListQuestions(ctx context.Context, projectID string) ([]models.Question, error)
	ListDocumentIDs(ctx context.Context) ([]string, error)
	SaveAnswer(ctx context.Context, answer models.Answer) error
}

type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return errors.NewQueryExecutionFailedError("ensure_schema", err)
	}
	return nil
}

func (s *PostgresStore) GetProject(ctx context.Context, id string) (models.Project, error) {
	var p models.Project
	err := s.db.QueryRowContext(ctx, queryGetProject, id).Scan(
		&p.ID, &p.Name, &p.DocumentScope, pq.Array(&p.SelectedDocumentIDs), &p.Status,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return models.Project{}, errors.NewProjectNotFoundError(id)
	}
	if err != nil {
		return models.Project{}, errors.NewQueryExecutionFailedError("get_project", err)
	}
	return p, nil
}

func (s *PostgresStore) SetProjectStatus(ctx context.Context, id string, status models.ProjectStatus) error {
	res, err := s.db.ExecContext(ctx, querySetProjectStatus, id, string(status), s.now().UTC())
	if err != nil {
		return errors.NewQueryExecutionFailedError("set_project_status", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewProjectNotFoundError(id)
	}
	return nil
}

func (s *PostgresStore) ListQuestions(ctx context.Context, projectID string) ([]models.Question, error) {
	rows, err := s.db.QueryContext(ctx, queryListQuestions, projectID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_questions", err)
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(&q.ID, &q.ProjectID, &q.Text, &q.Position); err != nil {
			return nil, errors.NewQueryExecutionFailedError("list_questions", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_questions", err)
	}
	return questions, nil
}

// ListDocumentIDs returns every indexed document that is not itself a
// questionnaire.
func (s *PostgresStore) ListDocumentIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, queryListDocuments)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_documents", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.NewQueryExecutionFailedError("list_documents", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_documents", err)
	}
	return ids, nil
}

func (s *PostgresStore) SaveAnswer(ctx context.Context, a models.Answer) error {
	citations := a.Citations
	if citations == nil {
		citations = []models.Citation{}
	}
	raw, err := json.Marshal(citations)
	if err != nil {
		return errors.NewInternalError(err)
	}

	updatedAt := a.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.now().UTC()
	}

	_, err = s.db.ExecContext(ctx, queryUpsertAnswer,
		a.QuestionID, a.IsAnswerable, a.AIAnswer, raw, a.ConfidenceScore, string(a.Status), updatedAt,
	)
	if err != nil {
		return errors.NewQueryExecutionFailedError("save_answer", err)
	}
	return nil
}
