package attempt

import (
	"errors"

	"github.com/openlms/attempt-service/internal/models"
)

// State is the lifecycle phase of one attempt. Submitted is terminal: no
// transition leaves it, and a restart builds a fresh session instead of
// mutating the submitted one.
type State string

const (
	StateAnswering    State = "answering"
	StateConfirming   State = "confirming_submission"
	StateSubmitting   State = "submitting"
	StateSubmitted    State = "submitted"
	StateSubmitFailed State = "submit_failed"
)

// ConfirmationWarning is the irreversible-framing text shown while the
// attempt waits for submission confirmation.
const ConfirmationWarning = "Once you submit, you cannot change your answers."

var (
	ErrNilAssessment      = errors.New("assessment details are nil")
	ErrNoQuestions        = errors.New("assessment has no questions")
	ErrUnknownQuestion    = errors.New("question is not part of the assessment")
	ErrNotAnswering       = errors.New("attempt is not accepting answers")
	ErrNotConfirming      = errors.New("attempt is not awaiting submission confirmation")
	ErrNotSubmitting      = errors.New("attempt has no submission in progress")
	ErrAlreadySubmitted   = errors.New("attempt already submitted")
	ErrSubmissionInFlight = errors.New("submission already in progress")
	ErrNotSubmitted       = errors.New("attempt is not submitted")
	ErrWrongType          = errors.New("operation not valid for this assessment type")
)

// Session holds the in-progress state of one learner taking one assessment.
// The question set and answer key are immutable for the session's lifetime;
// only the answer state, the focused index and the lifecycle state mutate.
//
// Session is not safe for concurrent use; callers serialize access.
type Session struct {
	assessment *models.AssessmentDetails
	roleID     string

	current int
	answers map[string]string
	state   State

	score         *int   // set on the terminal transition, choices only
	submitFailure string // last submission failure, cleared on retry
}

// NewSession starts a fresh attempt in the Answering state.
func NewSession(assessment *models.AssessmentDetails, roleID string) (*Session, error) {
	if assessment == nil {
		return nil, ErrNilAssessment
	}
	if len(assessment.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	return &Session{
		assessment: assessment,
		roleID:     roleID,
		answers:    make(map[string]string),
		state:      StateAnswering,
	}, nil
}

func (s *Session) Assessment() *models.AssessmentDetails { return s.assessment }
func (s *Session) RoleID() string                        { return s.roleID }
func (s *Session) State() State                          { return s.state }
func (s *Session) CurrentQuestionIndex() int             { return s.current }

func (s *Session) CurrentQuestion() models.Question {
	return s.assessment.Questions[s.current]
}

// TotalQuestions is the question-set count, the denominator for score display.
func (s *Session) TotalQuestions() int {
	return len(s.assessment.Questions)
}

// JumpToQuestion moves the focus to the given index. Out-of-range jumps are
// silently ignored, and navigation is only meaningful while answering.
// Navigation never touches the answer state.
func (s *Session) JumpToQuestion(index int) {
	if s.state != StateAnswering {
		return
	}
	if index < 0 || index >= len(s.assessment.Questions) {
		return
	}
	s.current = index
}

// SetAnswer records the learner's answer for a question, overwriting any
// prior answer (single answer per question, no multi-select). The value is
// not validated beyond belonging to the question set; empty answers may
// remain and do not block submission.
func (s *Session) SetAnswer(questionKey, value string) error {
	if s.state != StateAnswering {
		return ErrNotAnswering
	}
	if !s.hasQuestion(questionKey) {
		return ErrUnknownQuestion
	}
	s.answers[questionKey] = value
	return nil
}

// Answer returns the stored answer for a question; ok reports whether the
// question has been answered at all ("answered" is exactly "key present").
func (s *Session) Answer(questionKey string) (value string, ok bool) {
	value, ok = s.answers[questionKey]
	return value, ok
}

// AnsweredFlags reports, in question order, which questions carry an answer.
// Drives the navigation-index highlighting.
func (s *Session) AnsweredFlags() []bool {
	flags := make([]bool, len(s.assessment.Questions))
	for i, q := range s.assessment.Questions {
		_, flags[i] = s.answers[q.Key]
	}
	return flags
}

// AnswerState returns a copy of the learner's current answers.
func (s *Session) AnswerState() map[string]string {
	out := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}

// Score returns the recorded score after a submitted choices attempt.
func (s *Session) Score() *int { return s.score }

// SubmitFailure returns the message of the last failed submission, if any.
func (s *Session) SubmitFailure() string { return s.submitFailure }

// RequestSubmit moves the attempt to the confirmation step. Also valid after
// a failed submission, as a retry.
func (s *Session) RequestSubmit() error {
	switch s.state {
	case StateAnswering, StateSubmitFailed:
		s.state = StateConfirming
		s.submitFailure = ""
		return nil
	case StateSubmitting:
		return ErrSubmissionInFlight
	case StateSubmitted:
		return ErrAlreadySubmitted
	default:
		return ErrNotAnswering
	}
}

// CancelSubmit returns from the confirmation step (or a failed submission)
// to answering, leaving the answer state untouched.
func (s *Session) CancelSubmit() error {
	switch s.state {
	case StateConfirming, StateSubmitFailed:
		s.state = StateAnswering
		s.submitFailure = ""
		return nil
	case StateSubmitting:
		return ErrSubmissionInFlight
	case StateSubmitted:
		return ErrAlreadySubmitted
	default:
		return ErrNotConfirming
	}
}

// BeginSubmit starts the single-shot submission. Only a confirmed attempt may
// submit, and only once at a time.
func (s *Session) BeginSubmit() error {
	switch s.state {
	case StateConfirming:
		s.state = StateSubmitting
		return nil
	case StateSubmitting:
		return ErrSubmissionInFlight
	case StateSubmitted:
		return ErrAlreadySubmitted
	default:
		return ErrNotConfirming
	}
}

// CompleteSubmit finalizes the attempt. score is nil for essay attempts.
func (s *Session) CompleteSubmit(score *int) error {
	if s.state != StateSubmitting {
		return ErrNotSubmitting
	}
	s.state = StateSubmitted
	s.score = score
	return nil
}

// FailSubmit records a failed submission. The answer state is preserved and
// the confirmation step stays reachable for a retry.
func (s *Session) FailSubmit(reason string) error {
	if s.state != StateSubmitting {
		return ErrNotSubmitting
	}
	s.state = StateSubmitFailed
	s.submitFailure = reason
	return nil
}

// Restart builds a fresh Answering session over the same assessment: empty
// answer state, index reset to 0. Only a submitted attempt can restart.
func (s *Session) Restart() (*Session, error) {
	if s.state != StateSubmitted {
		return nil, ErrNotSubmitted
	}
	return NewSession(s.assessment, s.roleID)
}

func (s *Session) hasQuestion(key string) bool {
	for _, q := range s.assessment.Questions {
		if q.Key == key {
			return true
		}
	}
	return false
}
