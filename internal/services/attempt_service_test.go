package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlms/attempt-service/internal/archive"
	"github.com/openlms/attempt-service/internal/attempt"
	"github.com/openlms/attempt-service/internal/events"
	"github.com/openlms/attempt-service/internal/gateway"
	"github.com/openlms/attempt-service/internal/models"
	"github.com/openlms/attempt-service/internal/utils"
)

// stubGateway serves canned assessments and records submissions.
type stubGateway struct {
	assessments map[int64]*models.AssessmentDetails
	submissions []stubSubmission
	submitErr   error
}

type stubSubmission struct {
	assessmentID int64
	payload      interface{}
}

func (g *stubGateway) GetAssessmentDetails(_ context.Context, assessmentID int64) (*models.AssessmentDetails, error) {
	details, ok := g.assessments[assessmentID]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	return details, nil
}

func (g *stubGateway) SubmitAssessment(_ context.Context, assessmentID int64, payload interface{}) (*models.SubmissionResponse, error) {
	if g.submitErr != nil {
		return nil, g.submitErr
	}
	g.submissions = append(g.submissions, stubSubmission{assessmentID: assessmentID, payload: payload})
	return &models.SubmissionResponse{SubmissionID: 1, AssessmentID: assessmentID}, nil
}

func choicesDetails() *models.AssessmentDetails {
	return &models.AssessmentDetails{
		AssessmentID: 42,
		Title:        "Networking Basics",
		Deadline:     "2025-10-01",
		Type:         models.TypeChoices,
		Questions: []models.Question{
			{Key: "Q1", Text: "Q1", Options: []models.ChoiceOption{
				{Key: "option1", Text: "A"}, {Key: "option2", Text: "B"},
			}},
			{Key: "Q2", Text: "Q2", Options: []models.ChoiceOption{
				{Key: "option1", Text: "A"}, {Key: "option2", Text: "B"}, {Key: "option3", Text: "C"},
			}},
			{Key: "Q3", Text: "Q3", Options: []models.ChoiceOption{
				{Key: "option1", Text: "A"}, {Key: "option2", Text: "B"},
			}},
		},
		AnswerKey: map[string]string{"Q1": "option1", "Q2": "option3", "Q3": "option2"},
	}
}

func essayDetails() *models.AssessmentDetails {
	return &models.AssessmentDetails{
		AssessmentID: 7,
		Title:        "Reflection",
		Type:         models.TypeEssay,
		Questions: []models.Question{
			{Key: "question1", Text: "Describe your project."},
			{Key: "question2", Text: "What would you improve?"},
		},
	}
}

type serviceFixture struct {
	service   AttemptService
	gateway   *stubGateway
	store     *archive.MemoryStore
	publisher *events.MockEventPublisher
}

func newFixture(t *testing.T, essayUpstream bool) *serviceFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	gw := &stubGateway{assessments: map[int64]*models.AssessmentDetails{
		42: choicesDetails(),
		7:  essayDetails(),
	}}
	store := archive.NewMemoryStore()
	publisher := events.NewMockEventPublisher(logger)

	service := NewAttemptService(gw, store, publisher, utils.NewValidator(), logger, essayUpstream)
	return &serviceFixture{service: service, gateway: gw, store: store, publisher: publisher}
}

func TestStartAttempt(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	view, err := f.service.Start(ctx, &StartAttemptRequest{AssessmentID: 42}, "student-1")
	require.NoError(t, err)

	assert.NotEmpty(t, view.AttemptID)
	assert.Equal(t, int64(42), view.AssessmentID)
	assert.Equal(t, "Networking Basics", view.Title)
	assert.Equal(t, models.TypeChoices, view.Type)
	assert.Equal(t, attempt.StateAnswering, view.State)
	assert.Equal(t, 3, view.TotalQuestions)
	assert.Equal(t, 0, view.CurrentQuestionIndex)
	require.NotNil(t, view.CurrentQuestion)
	assert.Equal(t, "Q1", view.CurrentQuestion.Key)
	assert.Len(t, view.CurrentQuestion.Options, 2)
	assert.Equal(t, []bool{false, false, false}, view.Answered)
	assert.Empty(t, view.ConfirmationWarning)
}

func TestStartAttemptAssessmentNotFound(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.service.Start(context.Background(), &StartAttemptRequest{AssessmentID: 999}, "student-1")
	assert.ErrorIs(t, err, ErrAssessmentNotFound)
}

func TestStartAttemptEmptyAssessment(t *testing.T) {
	f := newFixture(t, false)
	f.gateway.assessments[50] = &models.AssessmentDetails{AssessmentID: 50, Type: models.TypeEssay}

	_, err := f.service.Start(context.Background(), &StartAttemptRequest{AssessmentID: 50}, "student-1")
	assert.ErrorIs(t, err, ErrAssessmentHasNoQuestions)
}

func TestAttemptOwnership(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	view, err := f.service.Start(ctx, &StartAttemptRequest{AssessmentID: 42}, "student-1")
	require.NoError(t, err)

	_, err = f.service.Get(ctx, view.AttemptID, "student-2")
	assert.ErrorIs(t, err, ErrAttemptAccessDenied)

	_, err = f.service.Get(ctx, "no-such-attempt", "student-1")
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestChoicesFlowEndToEnd(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	view, err := f.service.Start(ctx, &StartAttemptRequest{AssessmentID: 42}, "student-1")
	require.NoError(t, err)
	id := view.AttemptID

	// Answer Q1 correctly, Q2 wrong, leave Q3 empty.
	view, err = f.service.Answer(ctx, id, "student-1", &AnswerRequest{QuestionKey: "Q1", Answer: "option1"})
	require.NoError(t, err)
	assert.Equal(t, "option1", view.CurrentAnswer)

	_, err = f.service.Answer(ctx, id, "student-1", &AnswerRequest{QuestionKey: "Q2", Answer: "option1"})
	require.NoError(t, err)

	// Navigation preserves answers and pre-fills the current one.
	view, err = f.service.Jump(ctx, id, "student-1", &JumpRequest{QuestionIndex: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, view.CurrentQuestionIndex)
	assert.Equal(t, "option1", view.CurrentAnswer)
	assert.Equal(t, []bool{true, true, false}, view.Answered)

	// Out-of-range jump is a no-op.
	view, err = f.service.Jump(ctx, id, "student-1", &JumpRequest{QuestionIndex: 99})
	require.NoError(t, err)
	assert.Equal(t, 1, view.CurrentQuestionIndex)

	// Confirmation step carries the warning.
	view, err = f.service.RequestSubmit(ctx, id, "student-1")
	require.NoError(t, err)
	assert.Equal(t, attempt.StateConfirming, view.State)
	assert.Equal(t, attempt.ConfirmationWarning, view.ConfirmationWarning)

	// Cancel returns to answering with answers intact.
	view, err = f.service.CancelSubmit(ctx, id, "student-1")
	require.NoError(t, err)
	assert.Equal(t, attempt.StateAnswering, view.State)
	assert.Equal(t, []bool{true, true, false}, view.Answered)

	// Submit requires confirmation.
	_, err = f.service.Submit(ctx, id, "student-1")
	assert.ErrorIs(t, err, ErrAttemptNotConfirming)

	_, err = f.service.RequestSubmit(ctx, id, "student-1")
	require.NoError(t, err)
	view, err = f.service.Submit(ctx, id, "student-1")
	require.NoError(t, err)

	assert.Equal(t, attempt.StateSubmitted, view.State)
	require.NotNil(t, view.Score)
	assert.Equal(t, 1, *view.Score)
	assert.Equal(t, 3, view.TotalQuestions)

	// Upstream received the answer state.
	require.Len(t, f.gateway.submissions, 1)
	payload, ok := f.gateway.submissions[0].payload.(*models.ChoicesSubmission)
	require.True(t, ok)
	assert.Equal(t, "student-1", payload.RoleID)
	assert.Equal(t, map[string]string{"Q1": "option1", "Q2": "option1"}, payload.Answer)

	// Archived alongside the upstream POST.
	archived, err := f.store.Get(ctx, 42, "student-1")
	require.NoError(t, err)
	assert.Equal(t, models.TypeChoices, archived.Type)
	require.NotNil(t, archived.Score)
	assert.Equal(t, 1, *archived.Score)

	// One submission event.
	published := f.publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventAttemptSubmitted, published[0].Type)
	assert.Equal(t, int64(42), published[0].Data.AssessmentID)

	// Submitted is terminal.
	_, err = f.service.Submit(ctx, id, "student-1")
	assert.ErrorIs(t, err, ErrAttemptAlreadySubmitted)
}

func TestSubmitFailurePreservesAnswers(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	view, err := f.service.Start(ctx, &StartAttemptRequest{AssessmentID: 42}, "student-1")
	require.NoError(t, err)
	id := view.AttemptID

	_, err = f.service.Answer(ctx, id, "student-1", &AnswerRequest{QuestionKey: "Q1", Answer: "option1"})
	require.NoError(t, err)
	_, err = f.service.RequestSubmit(ctx, id, "student-1")
	require.NoError(t, err)

	f.gateway.submitErr = errors.New("upstream returned status 503")
	_, err = f.service.Submit(ctx, id, "student-1")
	assert.ErrorIs(t, err, ErrSubmitFailed)

	view, err = f.service.Get(ctx, id, "student-1")
	require.NoError(t, err)
	assert.Equal(t, attempt.StateSubmitFailed, view.State)
	assert.Contains(t, view.SubmitError, "503")
	assert.Equal(t, []bool{true, false, false}, view.Answered)

	// Nothing archived, nothing published.
	_, err = f.store.Get(ctx, 42, "student-1")
	assert.ErrorIs(t, err, archive.ErrSubmissionNotFound)
	assert.Empty(t, f.publisher.GetPublishedEvents())

	// Retry succeeds once the upstream recovers.
	f.gateway.submitErr = nil
	_, err = f.service.RequestSubmit(ctx, id, "student-1")
	require.NoError(t, err)
	view, err = f.service.Submit(ctx, id, "student-1")
	require.NoError(t, err)
	assert.Equal(t, attempt.StateSubmitted, view.State)
}

func TestEssayFlow(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	view, err := f.service.Start(ctx, &StartAttemptRequest{AssessmentID: 7}, "student-1")
	require.NoError(t, err)
	id := view.AttemptID
	assert.Equal(t, models.TypeEssay, view.Type)
	assert.Empty(t, view.CurrentQuestion.Options)

	_, err = f.service.Answer(ctx, id, "student-1", &AnswerRequest{
		QuestionKey: "question1",
		Answer:      "We built an attempt service.",
	})
	require.NoError(t, err)

	_, err = f.service.RequestSubmit(ctx, id, "student-1")
	require.NoError(t, err)
	view, err = f.service.Submit(ctx, id, "student-1")
	require.NoError(t, err)

	assert.Equal(t, attempt.StateSubmitted, view.State)
	assert.Nil(t, view.Score)
	require.Len(t, view.EssayAnswers, 2)
	assert.Equal(t, "We built an attempt service.", view.EssayAnswers[0].Answer)
	assert.Equal(t, models.NoAnswerPlaceholder, view.EssayAnswers[1].Answer)

	// Essay submissions are archived locally, not posted upstream.
	assert.Empty(t, f.gateway.submissions)

	archived, err := f.store.Get(ctx, 7, "student-1")
	require.NoError(t, err)
	assert.Equal(t, models.TypeEssay, archived.Type)
	assert.Nil(t, archived.Score)

	var payload models.EssaySubmission
	require.NoError(t, json.Unmarshal(archived.Payload, &payload))
	assert.Equal(t, int64(7), payload.AssessmentID)
	require.Len(t, payload.Questions, 2)
	assert.Equal(t, "Describe your project.", payload.Questions[0].Question)
	assert.Equal(t, models.NoAnswerPlaceholder, payload.Questions[1].Answer)

	require.Len(t, f.publisher.GetPublishedEvents(), 1)
}

func TestEssayUpstreamForwarding(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	view, err := f.service.Start(ctx, &StartAttemptRequest{AssessmentID: 7}, "student-1")
	require.NoError(t, err)

	_, err = f.service.RequestSubmit(ctx, view.AttemptID, "student-1")
	require.NoError(t, err)
	_, err = f.service.Submit(ctx, view.AttemptID, "student-1")
	require.NoError(t, err)

	require.Len(t, f.gateway.submissions, 1)
	payload, ok := f.gateway.submissions[0].payload.(*models.EssaySubmission)
	require.True(t, ok)
	assert.Equal(t, int64(7), payload.AssessmentID)
}

func TestAnswerValidation(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	view, err := f.service.Start(ctx, &StartAttemptRequest{AssessmentID: 42}, "student-1")
	require.NoError(t, err)
	id := view.AttemptID

	// Missing fields fail struct validation.
	_, err = f.service.Answer(ctx, id, "student-1", &AnswerRequest{QuestionKey: "Q1"})
	assert.Error(t, err)
	assert.True(t, IsValidation(err))

	// Unknown question.
	_, err = f.service.Answer(ctx, id, "student-1", &AnswerRequest{QuestionKey: "Q9", Answer: "option1"})
	assert.True(t, IsValidation(err))

	// Not an option of the question.
	_, err = f.service.Answer(ctx, id, "student-1", &AnswerRequest{QuestionKey: "Q1", Answer: "option9"})
	assert.True(t, IsValidation(err))
}

func TestRestart(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	view, err := f.service.Start(ctx, &StartAttemptRequest{AssessmentID: 42}, "student-1")
	require.NoError(t, err)
	id := view.AttemptID

	// Restart requires a submitted attempt.
	_, err = f.service.Restart(ctx, id, "student-1")
	assert.ErrorIs(t, err, ErrAttemptNotSubmitted)

	_, err = f.service.Answer(ctx, id, "student-1", &AnswerRequest{QuestionKey: "Q1", Answer: "option1"})
	require.NoError(t, err)
	_, err = f.service.RequestSubmit(ctx, id, "student-1")
	require.NoError(t, err)
	_, err = f.service.Submit(ctx, id, "student-1")
	require.NoError(t, err)

	fresh, err := f.service.Restart(ctx, id, "student-1")
	require.NoError(t, err)
	assert.NotEqual(t, id, fresh.AttemptID)
	assert.Equal(t, attempt.StateAnswering, fresh.State)
	assert.Equal(t, []bool{false, false, false}, fresh.Answered)
	assert.Nil(t, fresh.Score)

	// The old attempt id is gone.
	_, err = f.service.Get(ctx, id, "student-1")
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}
