package archive

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/openlms/attempt-service/internal/models"
)

// Store archives finalized submissions keyed by assessment and learner role.
// Essay attempts are always archived here; choices attempts are archived
// alongside the upstream POST so instructors can list and export them.
type Store interface {
	Save(ctx context.Context, sub *models.ArchivedSubmission) error
	Get(ctx context.Context, assessmentID int64, roleID string) (*models.ArchivedSubmission, error)
	ListByAssessment(ctx context.Context, assessmentID int64) ([]*models.ArchivedSubmission, error)
}

var ErrSubmissionNotFound = errors.New("archived submission not found")

// MemoryStore keeps submissions in process memory. Used in development and
// tests; a restart loses the archive, matching the ephemeral contract.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[memoryKey]*models.ArchivedSubmission
}

type memoryKey struct {
	assessmentID int64
	roleID       string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[memoryKey]*models.ArchivedSubmission)}
}

func (m *MemoryStore) Save(_ context.Context, sub *models.ArchivedSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *sub
	m.subs[memoryKey{sub.AssessmentID, sub.RoleID}] = &clone
	return nil
}

func (m *MemoryStore) Get(_ context.Context, assessmentID int64, roleID string) (*models.ArchivedSubmission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subs[memoryKey{assessmentID, roleID}]
	if !ok {
		return nil, ErrSubmissionNotFound
	}
	clone := *sub
	return &clone, nil
}

func (m *MemoryStore) ListByAssessment(_ context.Context, assessmentID int64) ([]*models.ArchivedSubmission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.ArchivedSubmission
	for key, sub := range m.subs {
		if key.assessmentID == assessmentID {
			clone := *sub
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoleID < out[j].RoleID })
	return out, nil
}
