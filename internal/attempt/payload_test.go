package attempt

import (
	"errors"
	"testing"

	"github.com/openlms/attempt-service/internal/models"
)

func TestBuildChoicesPayload(t *testing.T) {
	s, _ := NewSession(choicesAssessment(), "student-1")
	s.SetAnswer("Q1", "option1")
	s.SetAnswer("Q3", "option2")

	payload, err := s.BuildChoicesPayload()
	if err != nil {
		t.Fatalf("BuildChoicesPayload failed: %v", err)
	}

	if payload.RoleID != "student-1" {
		t.Errorf("Expected role_id student-1, got %q", payload.RoleID)
	}
	if len(payload.Answer) != 2 {
		t.Fatalf("Expected 2 answers, got %d", len(payload.Answer))
	}
	if payload.Answer["Q1"] != "option1" || payload.Answer["Q3"] != "option2" {
		t.Errorf("Unexpected answer mapping: %v", payload.Answer)
	}
	// Unanswered questions stay absent, not empty.
	if _, ok := payload.Answer["Q2"]; ok {
		t.Errorf("Unanswered question appeared in the payload")
	}

	if _, err := s.BuildEssayPayload(); !errors.Is(err, ErrWrongType) {
		t.Errorf("Expected ErrWrongType building essay payload, got %v", err)
	}
}

func TestBuildEssayPayloadAppliesPlaceholder(t *testing.T) {
	s, _ := NewSession(essayAssessment(), "student-1")
	s.SetAnswer("question1", "We built an attempt service.")

	payload, err := s.BuildEssayPayload()
	if err != nil {
		t.Fatalf("BuildEssayPayload failed: %v", err)
	}

	if payload.AssessmentID != 7 {
		t.Errorf("Expected assessment_id 7, got %d", payload.AssessmentID)
	}
	if len(payload.Questions) != 2 {
		t.Fatalf("Expected 2 question entries, got %d", len(payload.Questions))
	}

	if payload.Questions[0].Question != "Describe your project." {
		t.Errorf("Payload lost the question text: %q", payload.Questions[0].Question)
	}
	if payload.Questions[0].Answer != "We built an attempt service." {
		t.Errorf("Unexpected first answer: %q", payload.Questions[0].Answer)
	}
	// Untouched question gets the placeholder.
	if payload.Questions[1].Answer != models.NoAnswerPlaceholder {
		t.Errorf("Expected placeholder for unanswered question, got %q", payload.Questions[1].Answer)
	}
}

func TestBuildEssayPayloadNormalizesEmptyAnswer(t *testing.T) {
	s, _ := NewSession(essayAssessment(), "student-1")
	// An explicitly empty answer and a never-touched question serialize the same.
	s.SetAnswer("question1", "")

	payload, err := s.BuildEssayPayload()
	if err != nil {
		t.Fatalf("BuildEssayPayload failed: %v", err)
	}
	if payload.Questions[0].Answer != models.NoAnswerPlaceholder {
		t.Errorf("Expected placeholder for empty answer, got %q", payload.Questions[0].Answer)
	}
}
