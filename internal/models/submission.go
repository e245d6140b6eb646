package models

import (
	"time"

	"gorm.io/datatypes"
)

// NoAnswerPlaceholder is the literal answer text recorded for essay questions
// the learner never answered (or answered with an empty string). It is applied
// when the submission payload is built, not earlier, so both cases normalize
// identically at the boundary.
const NoAnswerPlaceholder = "No answer provided."

// ChoicesSubmission is the payload posted upstream for a multiple-choice
// attempt. Answer carries the learner's final answer state keyed by question.
type ChoicesSubmission struct {
	RoleID string            `json:"role_id"`
	Answer map[string]string `json:"answer"`
}

// EssayQuestionAnswer pairs one essay question with the learner's answer text.
type EssayQuestionAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// EssaySubmission is the finalized essay attempt, in original question order.
type EssaySubmission struct {
	AssessmentID int64                 `json:"assessment_id"`
	Questions    []EssayQuestionAnswer `json:"questions"`
}

// SubmissionResponse is the upstream acknowledgement of a posted submission.
type SubmissionResponse struct {
	SubmissionID int64    `json:"submission_id"`
	AssessmentID int64    `json:"assessment_id"`
	Score        *float64 `json:"score,omitempty"`
	SubmittedAt  string   `json:"submitted_at,omitempty"`
}

// ArchivedSubmission is the locally stored record of a finalized attempt.
// Essay attempts are always archived here (the upstream POST is optional);
// choices attempts are archived alongside the upstream submission so
// instructors can list and export them.
type ArchivedSubmission struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	AssessmentID int64          `json:"assessment_id" gorm:"not null;index"`
	RoleID       string         `json:"role_id" gorm:"not null;index;size:255"`
	Type         AssessmentType `json:"type" gorm:"not null;size:20"`

	// Score is nil for essay submissions (ungraded by this service).
	Score          *int `json:"score"`
	TotalQuestions int  `json:"total_questions"`

	// Payload holds the submission payload as posted or archived:
	// ChoicesSubmission or EssaySubmission, JSON-encoded.
	Payload datatypes.JSON `json:"payload" gorm:"type:jsonb"`

	SubmittedAt time.Time `json:"submitted_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (ArchivedSubmission) TableName() string {
	return "archived_submissions"
}
