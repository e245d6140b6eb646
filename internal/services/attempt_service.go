package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/openlms/attempt-service/internal/archive"
	"github.com/openlms/attempt-service/internal/attempt"
	"github.com/openlms/attempt-service/internal/events"
	"github.com/openlms/attempt-service/internal/gateway"
	"github.com/openlms/attempt-service/internal/models"
	"github.com/openlms/attempt-service/internal/utils"
)

// ===== REQUEST / RESPONSE TYPES =====

type StartAttemptRequest struct {
	AssessmentID int64 `json:"assessment_id" validate:"required,gt=0"`
}

type AnswerRequest struct {
	QuestionKey string `json:"question_key" validate:"required"`
	Answer      string `json:"answer" validate:"required"`
}

type JumpRequest struct {
	QuestionIndex int `json:"question_index" validate:"gte=0"`
}

// QuestionView is the current question as shown to the learner. Options is
// empty for essay assessments.
type QuestionView struct {
	Key     string                `json:"key"`
	Text    string                `json:"text"`
	Options []models.ChoiceOption `json:"options,omitempty"`
}

// AttemptView is the full view of an attempt returned by every operation.
// The client renders from this alone; answer keys never leave the service.
type AttemptView struct {
	AttemptID    string                `json:"attempt_id"`
	AssessmentID int64                 `json:"assessment_id"`
	Title        string                `json:"title"`
	Deadline     string                `json:"deadline,omitempty"`
	Type         models.AssessmentType `json:"type"`
	State        attempt.State         `json:"state"`

	TotalQuestions       int           `json:"total_questions"`
	CurrentQuestionIndex int           `json:"current_question_index"`
	CurrentQuestion      *QuestionView `json:"current_question,omitempty"`
	CurrentAnswer        string        `json:"current_answer,omitempty"`
	Answered             []bool        `json:"answered"`

	// Set only while the attempt awaits submit confirmation.
	ConfirmationWarning string `json:"confirmation_warning,omitempty"`

	// Set only after a failed submission.
	SubmitError string `json:"submit_error,omitempty"`

	// Score is set on submitted choices attempts; x out of TotalQuestions.
	Score *int `json:"score,omitempty"`

	// EssayAnswers summarizes a submitted essay attempt.
	EssayAnswers []models.EssayQuestionAnswer `json:"essay_answers,omitempty"`
}

// ===== SERVICE =====

type AttemptService interface {
	Start(ctx context.Context, req *StartAttemptRequest, roleID string) (*AttemptView, error)
	Get(ctx context.Context, attemptID, roleID string) (*AttemptView, error)
	Answer(ctx context.Context, attemptID, roleID string, req *AnswerRequest) (*AttemptView, error)
	Jump(ctx context.Context, attemptID, roleID string, req *JumpRequest) (*AttemptView, error)
	RequestSubmit(ctx context.Context, attemptID, roleID string) (*AttemptView, error)
	CancelSubmit(ctx context.Context, attemptID, roleID string) (*AttemptView, error)
	Submit(ctx context.Context, attemptID, roleID string) (*AttemptView, error)
	Restart(ctx context.Context, attemptID, roleID string) (*AttemptView, error)
}

type attemptService struct {
	gateway   gateway.Client
	archive   archive.Store
	publisher events.EventPublisher
	validator *utils.Validator
	logger    *slog.Logger

	// Essay submissions go to the archive; forward upstream too when set.
	essayUpstreamSubmit bool

	mu       sync.RWMutex
	attempts map[string]*attemptEntry
}

// attemptEntry serializes all operations on one attempt. The entry lock is
// held across state transitions but released around upstream calls; the
// Submitting state keeps concurrent submits out in the meantime.
type attemptEntry struct {
	mu      sync.Mutex
	session *attempt.Session
}

func NewAttemptService(
	gw gateway.Client,
	store archive.Store,
	publisher events.EventPublisher,
	validator *utils.Validator,
	logger *slog.Logger,
	essayUpstreamSubmit bool,
) AttemptService {
	return &attemptService{
		gateway:             gw,
		archive:             store,
		publisher:           publisher,
		validator:           validator,
		logger:              logger,
		essayUpstreamSubmit: essayUpstreamSubmit,
		attempts:            make(map[string]*attemptEntry),
	}
}

// ===== CORE ATTEMPT OPERATIONS =====

func (s *attemptService) Start(ctx context.Context, req *StartAttemptRequest, roleID string) (*AttemptView, error) {
	s.logger.Info("Starting attempt",
		"assessment_id", req.AssessmentID,
		"role_id", roleID)

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	assessment, err := s.gateway.GetAssessmentDetails(ctx, req.AssessmentID)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to fetch assessment: %w", err)
	}

	session, err := attempt.NewSession(assessment, roleID)
	if err != nil {
		if errors.Is(err, attempt.ErrNoQuestions) {
			return nil, ErrAssessmentHasNoQuestions
		}
		return nil, fmt.Errorf("failed to create attempt session: %w", err)
	}

	attemptID := uuid.NewString()
	s.mu.Lock()
	s.attempts[attemptID] = &attemptEntry{session: session}
	s.mu.Unlock()

	s.logger.Info("Attempt started",
		"attempt_id", attemptID,
		"assessment_id", req.AssessmentID,
		"type", assessment.Type,
		"total_questions", session.TotalQuestions())

	return s.view(attemptID, session), nil
}

func (s *attemptService) Get(ctx context.Context, attemptID, roleID string) (*AttemptView, error) {
	entry, err := s.entryFor(attemptID, roleID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return s.view(attemptID, entry.session), nil
}

func (s *attemptService) Answer(ctx context.Context, attemptID, roleID string, req *AnswerRequest) (*AttemptView, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	entry, err := s.entryFor(attemptID, roleID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	session := entry.session
	if session.Assessment().Type == models.TypeChoices {
		if err := s.validateChoiceAnswer(session, req); err != nil {
			return nil, err
		}
	}

	if err := session.SetAnswer(req.QuestionKey, req.Answer); err != nil {
		return nil, s.mapSessionError(err)
	}
	return s.view(attemptID, session), nil
}

func (s *attemptService) Jump(ctx context.Context, attemptID, roleID string, req *JumpRequest) (*AttemptView, error) {
	entry, err := s.entryFor(attemptID, roleID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	// Out-of-range indexes are a silent no-op; the view reflects whatever
	// the session accepted.
	entry.session.JumpToQuestion(req.QuestionIndex)
	return s.view(attemptID, entry.session), nil
}

func (s *attemptService) RequestSubmit(ctx context.Context, attemptID, roleID string) (*AttemptView, error) {
	entry, err := s.entryFor(attemptID, roleID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := entry.session.RequestSubmit(); err != nil {
		return nil, s.mapSessionError(err)
	}
	return s.view(attemptID, entry.session), nil
}

func (s *attemptService) CancelSubmit(ctx context.Context, attemptID, roleID string) (*AttemptView, error) {
	entry, err := s.entryFor(attemptID, roleID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := entry.session.CancelSubmit(); err != nil {
		return nil, s.mapSessionError(err)
	}
	return s.view(attemptID, entry.session), nil
}

func (s *attemptService) Submit(ctx context.Context, attemptID, roleID string) (*AttemptView, error) {
	entry, err := s.entryFor(attemptID, roleID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	session := entry.session
	if err := session.BeginSubmit(); err != nil {
		entry.mu.Unlock()
		return nil, s.mapSessionError(err)
	}

	assessment := session.Assessment()
	var submitErr error
	var score *int

	switch assessment.Type {
	case models.TypeChoices:
		score, submitErr = s.submitChoices(ctx, entry, session)
	case models.TypeEssay:
		submitErr = s.submitEssay(ctx, entry, session)
	default:
		submitErr = ErrAssessmentInvalidType
	}

	// entry.mu is held again here regardless of outcome.
	defer entry.mu.Unlock()

	if submitErr != nil {
		session.FailSubmit(submitErr.Error())
		s.logger.Error("Submission failed",
			"attempt_id", attemptID,
			"assessment_id", assessment.AssessmentID,
			"error", submitErr)
		return nil, fmt.Errorf("%w: %v", ErrSubmitFailed, submitErr)
	}

	if err := session.CompleteSubmit(score); err != nil {
		return nil, s.mapSessionError(err)
	}

	s.publishSubmission(ctx, session, score)

	s.logger.Info("Attempt submitted",
		"attempt_id", attemptID,
		"assessment_id", assessment.AssessmentID,
		"type", assessment.Type)

	return s.view(attemptID, session), nil
}

func (s *attemptService) Restart(ctx context.Context, attemptID, roleID string) (*AttemptView, error) {
	entry, err := s.entryFor(attemptID, roleID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	fresh, err := entry.session.Restart()
	if err != nil {
		return nil, s.mapSessionError(err)
	}

	newID := uuid.NewString()
	s.mu.Lock()
	s.attempts[newID] = &attemptEntry{session: fresh}
	delete(s.attempts, attemptID)
	s.mu.Unlock()

	s.logger.Info("Attempt restarted",
		"previous_attempt_id", attemptID,
		"attempt_id", newID,
		"assessment_id", fresh.Assessment().AssessmentID)

	return s.view(newID, fresh), nil
}

// ===== SUBMISSION HELPERS =====

// submitChoices scores the attempt, posts the payload upstream, and archives
// a copy. Called with entry.mu held; the lock is released around the upstream
// call and re-acquired before returning.
func (s *attemptService) submitChoices(ctx context.Context, entry *attemptEntry, session *attempt.Session) (*int, error) {
	score, err := session.CalculateScore()
	if err != nil {
		return nil, err
	}
	payload, err := session.BuildChoicesPayload()
	if err != nil {
		return nil, err
	}
	assessmentID := session.Assessment().AssessmentID

	entry.mu.Unlock()
	_, submitErr := s.gateway.SubmitAssessment(ctx, assessmentID, payload)
	entry.mu.Lock()

	if submitErr != nil {
		return nil, submitErr
	}

	// Upstream accepted; archiving is best effort from here.
	if err := s.archiveSubmission(ctx, session, &score, payload); err != nil {
		s.logger.Error("Failed to archive choices submission",
			"assessment_id", assessmentID,
			"error", err)
	}
	return &score, nil
}

// submitEssay archives the essay payload as the system of record and
// optionally forwards it upstream. Called with entry.mu held; the lock is
// released around the upstream call and re-acquired before returning.
func (s *attemptService) submitEssay(ctx context.Context, entry *attemptEntry, session *attempt.Session) error {
	payload, err := session.BuildEssayPayload()
	if err != nil {
		return err
	}
	assessmentID := session.Assessment().AssessmentID

	if s.essayUpstreamSubmit {
		entry.mu.Unlock()
		_, submitErr := s.gateway.SubmitAssessment(ctx, assessmentID, payload)
		entry.mu.Lock()
		if submitErr != nil {
			return submitErr
		}
	}

	if err := s.archiveSubmission(ctx, session, nil, payload); err != nil {
		return fmt.Errorf("failed to archive essay submission: %w", err)
	}
	return nil
}

func (s *attemptService) archiveSubmission(ctx context.Context, session *attempt.Session, score *int, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal submission payload: %w", err)
	}

	assessment := session.Assessment()
	return s.archive.Save(ctx, &models.ArchivedSubmission{
		AssessmentID:   assessment.AssessmentID,
		RoleID:         session.RoleID(),
		Type:           assessment.Type,
		Score:          score,
		TotalQuestions: session.TotalQuestions(),
		Payload:        datatypes.JSON(raw),
		SubmittedAt:    time.Now().UTC(),
	})
}

func (s *attemptService) publishSubmission(ctx context.Context, session *attempt.Session, score *int) {
	assessment := session.Assessment()
	event := events.NewSubmissionEvent(events.SubmissionEventData{
		AssessmentID:   assessment.AssessmentID,
		RoleID:         session.RoleID(),
		AssessmentType: string(assessment.Type),
		Score:          score,
		TotalQuestions: session.TotalQuestions(),
	})
	if err := s.publisher.PublishSubmissionEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish submission event",
			"assessment_id", assessment.AssessmentID,
			"error", err)
	}
}

// ===== INTERNAL HELPERS =====

func (s *attemptService) entryFor(attemptID, roleID string) (*attemptEntry, error) {
	s.mu.RLock()
	entry, ok := s.attempts[attemptID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrAttemptNotFound
	}
	if entry.session.RoleID() != roleID {
		return nil, ErrAttemptAccessDenied
	}
	return entry, nil
}

func (s *attemptService) validateChoiceAnswer(session *attempt.Session, req *AnswerRequest) error {
	for _, q := range session.Assessment().Questions {
		if q.Key != req.QuestionKey {
			continue
		}
		for _, opt := range q.Options {
			if opt.Key == req.Answer {
				return nil
			}
		}
		return NewValidationError("answer", "answer is not an option of this question", req.Answer)
	}
	// Unknown question keys fall through to the session's own check.
	return nil
}

func (s *attemptService) mapSessionError(err error) error {
	switch {
	case errors.Is(err, attempt.ErrUnknownQuestion):
		return NewValidationError("question_key", "question does not exist in this assessment", nil)
	case errors.Is(err, attempt.ErrNotAnswering):
		return ErrAttemptNotAnswering
	case errors.Is(err, attempt.ErrNotConfirming):
		return ErrAttemptNotConfirming
	case errors.Is(err, attempt.ErrSubmissionInFlight):
		return ErrSubmissionInFlight
	case errors.Is(err, attempt.ErrAlreadySubmitted):
		return ErrAttemptAlreadySubmitted
	case errors.Is(err, attempt.ErrNotSubmitted):
		return ErrAttemptNotSubmitted
	case errors.Is(err, attempt.ErrWrongType):
		return ErrAssessmentInvalidType
	default:
		return err
	}
}

func (s *attemptService) view(attemptID string, session *attempt.Session) *AttemptView {
	assessment := session.Assessment()

	view := &AttemptView{
		AttemptID:            attemptID,
		AssessmentID:         assessment.AssessmentID,
		Title:                assessment.Title,
		Deadline:             assessment.Deadline,
		Type:                 assessment.Type,
		State:                session.State(),
		TotalQuestions:       session.TotalQuestions(),
		CurrentQuestionIndex: session.CurrentQuestionIndex(),
		Answered:             session.AnsweredFlags(),
		Score:                session.Score(),
	}

	q := session.CurrentQuestion()
	view.CurrentQuestion = &QuestionView{
		Key:     q.Key,
		Text:    q.Text,
		Options: q.Options,
	}
	if answer, ok := session.Answer(q.Key); ok {
		view.CurrentAnswer = answer
	}

	switch session.State() {
	case attempt.StateConfirming:
		view.ConfirmationWarning = attempt.ConfirmationWarning
	case attempt.StateSubmitFailed:
		view.SubmitError = session.SubmitFailure()
	case attempt.StateSubmitted:
		if assessment.Type == models.TypeEssay {
			if payload, err := session.BuildEssayPayload(); err == nil {
				view.EssayAnswers = payload.Questions
			}
		}
	}

	return view
}
