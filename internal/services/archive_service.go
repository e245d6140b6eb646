package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/openlms/attempt-service/internal/archive"
	"github.com/openlms/attempt-service/internal/models"
)

// ArchiveService exposes the submission archive to instructors: per-learner
// lookup, per-assessment listing, and an Excel export of the results.
type ArchiveService interface {
	GetSubmission(ctx context.Context, assessmentID int64, roleID string) (*models.ArchivedSubmission, error)
	ListSubmissions(ctx context.Context, assessmentID int64) ([]*models.ArchivedSubmission, error)
	ExportSubmissionsToExcel(ctx context.Context, assessmentID int64) ([]byte, error)
}

type archiveService struct {
	store  archive.Store
	logger *slog.Logger
}

func NewArchiveService(store archive.Store, logger *slog.Logger) ArchiveService {
	return &archiveService{
		store:  store,
		logger: logger,
	}
}

func (s *archiveService) GetSubmission(ctx context.Context, assessmentID int64, roleID string) (*models.ArchivedSubmission, error) {
	sub, err := s.store.Get(ctx, assessmentID, roleID)
	if err != nil {
		if errors.Is(err, archive.ErrSubmissionNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get archived submission: %w", err)
	}
	return sub, nil
}

func (s *archiveService) ListSubmissions(ctx context.Context, assessmentID int64) ([]*models.ArchivedSubmission, error) {
	subs, err := s.store.ListByAssessment(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived submissions: %w", err)
	}
	return subs, nil
}

func (s *archiveService) ExportSubmissionsToExcel(ctx context.Context, assessmentID int64) ([]byte, error) {
	subs, err := s.store.ListByAssessment(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived submissions: %w", err)
	}

	f := excelize.NewFile()
	sheetName := "Submissions"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{
		"Role ID", "Type", "Score", "Total Questions", "Submitted At", "Answers",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIndex, sub := range subs {
		row := []interface{}{
			sub.RoleID,
			sub.Type,
		}

		if sub.Score != nil {
			row = append(row, fmt.Sprintf("%d out of %d", *sub.Score, sub.TotalQuestions))
		} else {
			row = append(row, "")
		}

		row = append(row,
			sub.TotalQuestions,
			sub.SubmittedAt.Format("2006-01-02 15:04:05"),
			summarizePayload(sub),
		)

		for colIndex, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	s.logger.Info("Exported submissions to Excel",
		"assessment_id", assessmentID,
		"submission_count", len(subs))

	return buf.Bytes(), nil
}

// summarizePayload flattens the archived payload into a single cell:
// "Q1: option1; Q2: option3" for choices, "Q: ... A: ..." pairs for essays.
func summarizePayload(sub *models.ArchivedSubmission) string {
	switch sub.Type {
	case models.TypeChoices:
		var payload models.ChoicesSubmission
		if err := json.Unmarshal(sub.Payload, &payload); err != nil {
			return ""
		}
		keys := make([]string, 0, len(payload.Answer))
		for k := range payload.Answer {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := ""
		for i, k := range keys {
			if i > 0 {
				out += "; "
			}
			out += fmt.Sprintf("%s: %s", k, payload.Answer[k])
		}
		return out
	case models.TypeEssay:
		var payload models.EssaySubmission
		if err := json.Unmarshal(sub.Payload, &payload); err != nil {
			return ""
		}
		out := ""
		for i, qa := range payload.Questions {
			if i > 0 {
				out += "; "
			}
			out += fmt.Sprintf("Q: %s A: %s", qa.Question, qa.Answer)
		}
		return out
	default:
		return ""
	}
}
