package answers

import (
	"context"
	"fmt"
	"time"

	"docqa-workers/internal/common/aws"
	"docqa-workers/internal/common/logger"
	"docqa-workers/internal/common/metrics"
	"docqa-workers/internal/models"
	"docqa-workers/internal/tasks"
)

const (
	RequestType = "generate_all_answers"

	// progress the queue reports before the first question is answered
	startProgress = 10
	endProgress   = 95

	statusTimeout = 5 * time.Second
)

// Answerer answers one standalone question against a document scope.
type Answerer interface {
	AnswerQuestion(ctx context.Context, question string, documentIDs []string) (models.ChatResponse, error)
}

// Submitter starts background work. *tasks.Queue implements it.
type Submitter interface {
	Submit(ctx context.Context, requestType string, fn tasks.Func) (*tasks.Future, error)
}

type Service struct {
	store    Store
	answerer Answerer
	notifier aws.Notifier
	log      logger.Logger
	now      func() time.Time
}

func NewService(store Store, answerer Answerer, notifier aws.Notifier, log logger.Logger) *Service {
	if notifier == nil {
		notifier = aws.NopNotifier{}
	}
	return &Service{
		store:    store,
		answerer: answerer,
		notifier: notifier,
		log:      logger.OrNoOp(log).With(map[string]interface{}{"component": "batch-answers"}),
		now:      time.Now,
	}
}

// Start checks the project exists and queues a batch run for it. It returns
// the request id to poll.
func (s *Service) Start(ctx context.Context, queue Submitter, projectID string) (string, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return "", err
	}

	fut, err := queue.Submit(ctx, RequestType, func(ctx context.Context, progress func(int)) (map[string]interface{}, error) {
		summary, err := s.GenerateAll(ctx, projectID, progress)
		if err != nil {
			return nil, err
		}
		return SummaryResult(summary), nil
	})
	if err != nil {
		return "", err
	}
	return fut.ID, nil
}

// GenerateAll answers every question of a project in order. A question that
// fails is counted and skipped; store failures on the project itself abort
// the run.
func (s *Service) GenerateAll(ctx context.Context, projectID string, progress func(int)) (models.BatchSummary, error) {
	if progress == nil {
		progress = func(int) {}
	}

	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return models.BatchSummary{}, err
	}
	if err := s.store.SetProjectStatus(ctx, projectID, models.ProjectStatusGenerating); err != nil {
		return models.BatchSummary{}, err
	}
	// the project leaves GENERATING on every exit path
	defer s.markReady(projectID)

	documentIDs, err := s.documentScope(ctx, project)
	if err != nil {
		return models.BatchSummary{}, err
	}

	questions, err := s.store.ListQuestions(ctx, projectID)
	if err != nil {
		return models.BatchSummary{}, err
	}

	summary := models.BatchSummary{ProjectID: projectID, TotalQuestions: len(questions)}
	s.log.Info("Batch answering started", map[string]interface{}{
		"projectId": projectID,
		"questions": len(questions),
		"documents": len(documentIDs),
	})

	for i, q := range questions {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		status, err := s.answerOne(ctx, q, documentIDs)
		if err != nil {
			summary.Failed++
			metrics.BatchQuestions.WithLabelValues("failed").Inc()
			s.log.Warn("Failed to answer question", map[string]interface{}{
				"projectId":  projectID,
				"questionId": q.ID,
				"error":      err.Error(),
			})
		} else {
			summary.Generated++
			metrics.BatchQuestions.WithLabelValues(string(status)).Inc()
		}

		progress(startProgress + (i+1)*(endProgress-startProgress)/len(questions))
	}

	s.log.Info("Batch answering finished", map[string]interface{}{
		"projectId": projectID,
		"generated": summary.Generated,
		"failed":    summary.Failed,
	})
	s.notify(ctx, project, summary)
	return summary, nil
}

func (s *Service) answerOne(ctx context.Context, q models.Question, documentIDs []string) (models.AnswerStatus, error) {
	resp, err := s.answerer.AnswerQuestion(ctx, q.Text, documentIDs)
	if err != nil {
		return "", err
	}

	answer := models.Answer{
		QuestionID: q.ID,
		Citations:  []models.Citation{},
		Status:     models.AnswerStatusMissingData,
		UpdatedAt:  s.now().UTC(),
	}
	if resp.RelevantChunks > 0 {
		text := resp.Answer
		answer.IsAnswerable = true
		answer.AIAnswer = &text
		answer.Citations = resp.Citations
		answer.ConfidenceScore = resp.ConfidenceScore
		answer.Status = models.AnswerStatusGenerated
	}

	if err := s.store.SaveAnswer(ctx, answer); err != nil {
		return "", err
	}
	return answer.Status, nil
}

// documentScope resolves ALL_DOCS to every non-questionnaire document.
func (s *Service) documentScope(ctx context.Context, p models.Project) ([]string, error) {
	if p.DocumentScope == models.DocumentScopeSelectedDocs {
		return p.SelectedDocumentIDs, nil
	}
	return s.store.ListDocumentIDs(ctx)
}

func (s *Service) markReady(projectID string) {
	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()
	if err := s.store.SetProjectStatus(ctx, projectID, models.ProjectStatusReady); err != nil {
		s.log.Error("Failed to mark project ready", map[string]interface{}{
			"projectId": projectID,
			"error":     err.Error(),
		})
	}
}

func (s *Service) notify(ctx context.Context, p models.Project, summary models.BatchSummary) {
	subject := fmt.Sprintf("Questionnaire answers ready: %s", p.Name)
	body := fmt.Sprintf("Project %s (%s): %d of %d questions answered, %d failed.",
		p.Name, p.ID, summary.Generated, summary.TotalQuestions, summary.Failed)

	if err := s.notifier.Notify(ctx, subject, body); err != nil {
		s.log.Warn("Batch notification failed", map[string]interface{}{
			"projectId": p.ID,
			"error":     err.Error(),
		})
	}
}

// SummaryResult is the request result recorded for a finished batch run.
func SummaryResult(summary models.BatchSummary) map[string]interface{} {
	return map[string]interface{}{
		"projectId":      summary.ProjectID,
		"totalQuestions": summary.TotalQuestions,
		"generated":      summary.Generated,
		"failed":         summary.Failed,
	}
}
