package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openlms/attempt-service/internal/models"
)

// RedisStore keeps the submission archive in redis with a TTL, mirroring the
// ephemeral client-side storage the archive replaces.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (r *RedisStore) Save(ctx context.Context, sub *models.ArchivedSubmission) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal archived submission: %w", err)
	}

	key := submissionKey(sub.AssessmentID, sub.RoleID)
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to archive submission: %w", err)
	}

	r.logger.Info("Archived submission",
		"assessment_id", sub.AssessmentID,
		"role_id", sub.RoleID,
		"type", sub.Type)

	return nil
}

func (r *RedisStore) Get(ctx context.Context, assessmentID int64, roleID string) (*models.ArchivedSubmission, error) {
	data, err := r.client.Get(ctx, submissionKey(assessmentID, roleID)).Bytes()
	if err == redis.Nil {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read archived submission: %w", err)
	}

	var sub models.ArchivedSubmission
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("failed to unmarshal archived submission: %w", err)
	}
	return &sub, nil
}

func (r *RedisStore) ListByAssessment(ctx context.Context, assessmentID int64) ([]*models.ArchivedSubmission, error) {
	pattern := fmt.Sprintf("submission:%d:*", assessmentID)

	var out []*models.ArchivedSubmission
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			continue // expired between scan and get
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read archived submission: %w", err)
		}
		var sub models.ArchivedSubmission
		if err := json.Unmarshal(data, &sub); err != nil {
			return nil, fmt.Errorf("failed to unmarshal archived submission: %w", err)
		}
		out = append(out, &sub)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan archived submissions: %w", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RoleID < out[j].RoleID })
	return out, nil
}

func submissionKey(assessmentID int64, roleID string) string {
	return fmt.Sprintf("submission:%d:%s", assessmentID, roleID)
}
