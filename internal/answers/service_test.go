package answers

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docqa-workers/internal/common/errors"
	"docqa-workers/internal/common/logger"
	"docqa-workers/internal/models"
	"docqa-workers/internal/tasks"
)

// ==========================
// Test doubles
// ==========================

type memStore struct {
	mu        sync.Mutex
	projects  map[string]models.Project
	questions map[string][]models.Question
	documents []string
	answers   map[string]models.Answer
	statuses  []models.ProjectStatus
	saveErr   map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		projects: map[string]models.Project{
			"proj_1": {ID: "proj_1", Name: "Fund DDQ", DocumentScope: models.DocumentScopeAllDocs},
		},
		questions: map[string][]models.Question{
			"proj_1": {
				{ID: "q_1", ProjectID: "proj_1", Text: "What is the management fee?", Position: 1},
				{ID: "q_2", ProjectID: "proj_1", Text: "Who audits the fund?", Position: 2},
				{ID: "q_3", ProjectID: "proj_1", Text: "What is the hurdle rate?", Position: 3},
			},
		},
		documents: []string{"doc_a", "doc_b"},
		answers:   map[string]models.Answer{},
		saveErr:   map[string]error{},
	}
}

func (m *memStore) GetProject(_ context.Context, id string) (models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return models.Project{}, errors.NewProjectNotFoundError(id)
	}
	return p, nil
}

func (m *memStore) SetProjectStatus(_ context.Context, id string, status models.ProjectStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.projects[id]
	p.Status = status
	m.projects[id] = p
	m.statuses = append(m.statuses, status)
	return nil
}

func (m *memStore) ListQuestions(_ context.Context, projectID string) ([]models.Question, error) {
	return m.questions[projectID], nil
}

func (m *memStore) ListDocumentIDs(context.Context) ([]string, error) {
	return m.documents, nil
}

func (m *memStore) SaveAnswer(_ context.Context, a models.Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.saveErr[a.QuestionID]; err != nil {
		return err
	}
	m.answers[a.QuestionID] = a
	return nil
}

// scriptedAnswerer answers fee questions with evidence and everything else
// without.
type scriptedAnswerer struct {
	scopes [][]string
}

func (s *scriptedAnswerer) AnswerQuestion(_ context.Context, question string, documentIDs []string) (models.ChatResponse, error) {
	s.scopes = append(s.scopes, documentIDs)
	if question == "What is the management fee?" {
		return models.ChatResponse{
			Answer:          "The management fee is two percent.",
			Citations:       []models.Citation{{DocumentID: "doc_a", ChunkID: "c1"}},
			ConfidenceScore: 0.82,
			RelevantChunks:  2,
		}, nil
	}
	return models.ChatResponse{Answer: "I couldn't find relevant information to answer this question."}, nil
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, subject, body string) error {
	return m.Called(ctx, subject, body).Error(0)
}

// ==========================
// Service Tests
// ==========================

func TestGenerateAll(t *testing.T) {
	store := newMemStore()
	answerer := &scriptedAnswerer{}
	notifier := new(mockNotifier)
	notifier.On("Notify", mock.Anything, "Questionnaire answers ready: Fund DDQ", mock.Anything).Return(nil)

	svc := NewService(store, answerer, notifier, logger.NewTestLogger(t))
	var progress []int

	summary, err := svc.GenerateAll(context.Background(), "proj_1", func(p int) { progress = append(progress, p) })

	require.NoError(t, err)
	assert.Equal(t, models.BatchSummary{ProjectID: "proj_1", TotalQuestions: 3, Generated: 3}, summary)
	assert.Equal(t, []models.ProjectStatus{models.ProjectStatusGenerating, models.ProjectStatusReady}, store.statuses)

	fee := store.answers["q_1"]
	assert.Equal(t, models.AnswerStatusGenerated, fee.Status)
	assert.True(t, fee.IsAnswerable)
	require.NotNil(t, fee.AIAnswer)
	assert.Equal(t, "The management fee is two percent.", *fee.AIAnswer)
	assert.Equal(t, 0.82, fee.ConfidenceScore)

	auditor := store.answers["q_2"]
	assert.Equal(t, models.AnswerStatusMissingData, auditor.Status)
	assert.False(t, auditor.IsAnswerable)
	assert.Nil(t, auditor.AIAnswer)
	assert.NotNil(t, auditor.Citations)

	assert.Equal(t, []string{"doc_a", "doc_b"}, answerer.scopes[0])
	assert.Equal(t, []int{38, 66, 95}, progress)
	notifier.AssertExpectations(t)
}

func TestGenerateAll_SelectedDocsAndFailures(t *testing.T) {
	store := newMemStore()
	store.projects["proj_1"] = models.Project{
		ID:                  "proj_1",
		Name:                "Fund DDQ",
		DocumentScope:       models.DocumentScopeSelectedDocs,
		SelectedDocumentIDs: []string{"doc_b"},
	}
	store.saveErr["q_2"] = stderrors.New("disk full")

	notifier := new(mockNotifier)
	notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything).Return(stderrors.New("sns down"))

	answerer := &scriptedAnswerer{}
	svc := NewService(store, answerer, notifier, nil)

	summary, err := svc.GenerateAll(context.Background(), "proj_1", nil)

	require.NoError(t, err, "notification failures are only logged")
	assert.Equal(t, 2, summary.Generated)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, []string{"doc_b"}, answerer.scopes[0])
	assert.Equal(t, models.ProjectStatusReady, store.projects["proj_1"].Status)
}

func TestGenerateAll_CancelledLeavesProjectReady(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, &scriptedAnswerer{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.GenerateAll(ctx, "proj_1", nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.ProjectStatusReady, store.projects["proj_1"].Status)
	assert.Empty(t, store.answers)
}

func TestStart_UnknownProject(t *testing.T) {
	queue := tasks.NewQueue(tasks.QueueConfig{Concurrency: 1}, tasks.NewMemoryTracker(), nil)
	defer func() { _ = queue.Shutdown(context.Background()) }()

	_, err := NewService(newMemStore(), &scriptedAnswerer{}, nil, nil).Start(context.Background(), queue, "nope")

	assert.True(t, errors.HasCode(err, errors.ErrCodeProjectNotFound))
}

func TestStart_RunsThroughQueue(t *testing.T) {
	tracker := tasks.NewMemoryTracker()
	queue := tasks.NewQueue(tasks.QueueConfig{Concurrency: 1}, tracker, logger.NewTestLogger(t))
	defer func() { _ = queue.Shutdown(context.Background()) }()

	svc := NewService(newMemStore(), &scriptedAnswerer{}, nil, nil)
	id, err := svc.Start(context.Background(), queue, "proj_1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		req, err := tracker.Get(context.Background(), id)
		return err == nil && req.Status == models.RequestCompleted
	}, 5*time.Second, 10*time.Millisecond)

	req, _ := tracker.Get(context.Background(), id)
	assert.Equal(t, RequestType, req.Type)
	assert.Equal(t, 3, req.Result["generated"])
	assert.Equal(t, 100, req.Progress)
}
