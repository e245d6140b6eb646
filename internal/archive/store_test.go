package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/openlms/attempt-service/internal/models"
)

func sampleSubmission(assessmentID int64, roleID string) *models.ArchivedSubmission {
	score := 2
	return &models.ArchivedSubmission{
		AssessmentID:   assessmentID,
		RoleID:         roleID,
		Type:           models.TypeChoices,
		Score:          &score,
		TotalQuestions: 3,
		Payload:        datatypes.JSON(`{"role_id":"` + roleID + `","answer":{"Q1":"option1"}}`),
		SubmittedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

func TestMemoryStoreSaveAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Save(ctx, sampleSubmission(42, "student-1")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	sub, err := store.Get(ctx, 42, "student-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if sub.RoleID != "student-1" || sub.AssessmentID != 42 {
		t.Errorf("Unexpected submission: %+v", sub)
	}
	if sub.Score == nil || *sub.Score != 2 {
		t.Errorf("Score not preserved: %v", sub.Score)
	}

	if _, err := store.Get(ctx, 42, "student-2"); !errors.Is(err, ErrSubmissionNotFound) {
		t.Errorf("Expected ErrSubmissionNotFound, got %v", err)
	}
	if _, err := store.Get(ctx, 99, "student-1"); !errors.Is(err, ErrSubmissionNotFound) {
		t.Errorf("Expected ErrSubmissionNotFound for unknown assessment, got %v", err)
	}
}

func TestMemoryStoreOverwritesResubmission(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := sampleSubmission(42, "student-1")
	store.Save(ctx, first)

	second := sampleSubmission(42, "student-1")
	newScore := 3
	second.Score = &newScore
	store.Save(ctx, second)

	sub, err := store.Get(ctx, 42, "student-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if *sub.Score != 3 {
		t.Errorf("Resubmission did not overwrite, score %d", *sub.Score)
	}

	subs, err := store.ListByAssessment(ctx, 42)
	if err != nil {
		t.Fatalf("ListByAssessment failed: %v", err)
	}
	if len(subs) != 1 {
		t.Errorf("Expected 1 submission after overwrite, got %d", len(subs))
	}
}

func TestMemoryStoreListSortedByRole(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Save(ctx, sampleSubmission(42, "student-3"))
	store.Save(ctx, sampleSubmission(42, "student-1"))
	store.Save(ctx, sampleSubmission(42, "student-2"))
	store.Save(ctx, sampleSubmission(99, "student-4")) // different assessment

	subs, err := store.ListByAssessment(ctx, 42)
	if err != nil {
		t.Fatalf("ListByAssessment failed: %v", err)
	}
	if len(subs) != 3 {
		t.Fatalf("Expected 3 submissions, got %d", len(subs))
	}
	for i, want := range []string{"student-1", "student-2", "student-3"} {
		if subs[i].RoleID != want {
			t.Errorf("Position %d: expected %q, got %q", i, want, subs[i].RoleID)
		}
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Save(ctx, sampleSubmission(42, "student-1"))

	sub, _ := store.Get(ctx, 42, "student-1")
	sub.RoleID = "tampered"

	again, _ := store.Get(ctx, 42, "student-1")
	if again.RoleID != "student-1" {
		t.Errorf("Store leaked internal state: %q", again.RoleID)
	}
}
