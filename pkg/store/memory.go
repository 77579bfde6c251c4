package store

import (
	"context"
	"sync"

	"github.com/xhad/distill/internal/models"
)

// MemoryStore keeps the latest update per job in memory. Used when no
// database is configured, and by tests.
type MemoryStore struct {
	mu      sync.Mutex
	updates map[string][]models.JobUpdate
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		updates: make(map[string][]models.JobUpdate),
	}
}

func (ms *MemoryStore) UpdateStatus(_ context.Context, update models.JobUpdate) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.updates[update.JobID] = append(ms.updates[update.JobID], update)
	return nil
}

// Updates returns every update recorded for a job, oldest first.
func (ms *MemoryStore) Updates(jobID string) []models.JobUpdate {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	out := make([]models.JobUpdate, len(ms.updates[jobID]))
	copy(out, ms.updates[jobID])
	return out
}

// Latest returns the most recent update for a job, if any.
func (ms *MemoryStore) Latest(jobID string) (models.JobUpdate, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	updates := ms.updates[jobID]
	if len(updates) == 0 {
		return models.JobUpdate{}, false
	}
	return updates[len(updates)-1], true
}

func (ms *MemoryStore) Close() {}
