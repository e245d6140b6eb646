package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/openlms/attempt-service/internal/models"
)

// Client talks to the upstream LMS REST API on behalf of the attempt service.
// Both operations are the only suspension points of an attempt: everything
// else is synchronous in-memory state.
type Client interface {
	// GetAssessmentDetails fetches an assessment by id. A missing assessment
	// is reported as ErrNotFound, not as a generic failure.
	GetAssessmentDetails(ctx context.Context, assessmentID int64) (*models.AssessmentDetails, error)

	// SubmitAssessment posts a finalized submission payload
	// (ChoicesSubmission or EssaySubmission) for the assessment.
	SubmitAssessment(ctx context.Context, assessmentID int64, payload interface{}) (*models.SubmissionResponse, error)
}

var ErrNotFound = errors.New("assessment not found upstream")

// HTTPClient is the production Client against the LMS REST API.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

func NewHTTPClient(baseURL, token string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

func (c *HTTPClient) GetAssessmentDetails(ctx context.Context, assessmentID int64) (*models.AssessmentDetails, error) {
	url := fmt.Sprintf("%s/api/v1/assessments/%d/details", c.baseURL, assessmentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build assessment request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assessment details: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("assessment fetch returned status %d", resp.StatusCode)
	}

	var details models.AssessmentDetails
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, fmt.Errorf("failed to decode assessment details: %w", err)
	}

	c.logger.Info("Fetched assessment details",
		"assessment_id", assessmentID,
		"type", details.Type,
		"questions", len(details.Questions))

	return &details, nil
}

func (c *HTTPClient) SubmitAssessment(ctx context.Context, assessmentID int64, payload interface{}) (*models.SubmissionResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal submission payload: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/assessments/%d/submissions", c.baseURL, assessmentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to submit assessment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// drain so the connection can be reused
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("submission returned status %d", resp.StatusCode)
	}

	var submission models.SubmissionResponse
	if err := json.NewDecoder(resp.Body).Decode(&submission); err != nil {
		return nil, fmt.Errorf("failed to decode submission response: %w", err)
	}

	c.logger.Info("Submitted assessment upstream",
		"assessment_id", assessmentID,
		"submission_id", submission.SubmissionID)

	return &submission, nil
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
