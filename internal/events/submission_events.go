package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventAttemptSubmitted EventType = "attempt.submitted"
)

const (
	eventSource  = "attempt-service"
	eventVersion = "1.0"
)

// SubmissionEvent is published after an attempt reaches its terminal
// Submitted state. Downstream consumers (gradebook sync, notifications)
// subscribe to the topic; this service only produces.
type SubmissionEvent struct {
	ID        string              `json:"id"`
	Type      EventType           `json:"type"`
	Source    string              `json:"source"`
	Version   string              `json:"version"`
	Timestamp time.Time           `json:"timestamp"`
	Data      SubmissionEventData `json:"data"`
}

type SubmissionEventData struct {
	AssessmentID   int64  `json:"assessment_id"`
	RoleID         string `json:"role_id"`
	AssessmentType string `json:"assessment_type"`

	// Score is nil for essay submissions.
	Score          *int `json:"score,omitempty"`
	TotalQuestions int  `json:"total_questions"`
}

// NewSubmissionEvent builds an attempt.submitted event envelope.
func NewSubmissionEvent(data SubmissionEventData) *SubmissionEvent {
	return &SubmissionEvent{
		ID:        uuid.NewString(),
		Type:      EventAttemptSubmitted,
		Source:    eventSource,
		Version:   eventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
