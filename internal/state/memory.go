package state

import (
	"context"
	"sync"
	"time"

	"github.com/chameleon-systems/chameleon/internal/models"
)

// MemoryRepository keeps attacker state in process memory. Mutations hold
// a per-IP lock for the whole read-modify-write, so two concurrent
// requests from one address serialize instead of racing.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	mu    sync.Mutex
	state models.AttackerState
}

// NewMemoryRepository creates an empty in-memory state store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		entries: make(map[string]*memoryEntry),
	}
}

func (r *MemoryRepository) entry(ip string) *memoryEntry {
	r.mu.RLock()
	e, ok := r.entries[ip]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[ip]; ok {
		return e
	}
	e = &memoryEntry{state: models.AttackerState{IP: ip}}
	r.entries[ip] = e
	return e
}

// GetOrCreate returns a copy of the state for ip.
func (r *MemoryRepository) GetOrCreate(_ context.Context, ip string) (*models.AttackerState, error) {
	e := r.entry(ip)
	e.mu.Lock()
	defer e.mu.Unlock()

	copied := e.state
	copied.RecentDeltas = append([]int64(nil), e.state.RecentDeltas...)
	if e.state.LastRequestAt != nil {
		at := *e.state.LastRequestAt
		copied.LastRequestAt = &at
	}
	return &copied, nil
}

// RecordContact folds one request into the state under the per-IP lock.
func (r *MemoryRepository) RecordContact(_ context.Context, ip string, now time.Time) (*models.ContactSnapshot, error) {
	e := r.entry(ip)
	e.mu.Lock()
	defer e.mu.Unlock()

	var delta *int64
	if e.state.LastRequestAt != nil {
		d := now.Sub(*e.state.LastRequestAt).Milliseconds()
		delta = &d
		e.state.RecentDeltas = append(e.state.RecentDeltas, d)
		if n := len(e.state.RecentDeltas); n > models.MaxRecentDeltas {
			e.state.RecentDeltas = e.state.RecentDeltas[n-models.MaxRecentDeltas:]
		}
	}

	at := now
	e.state.LastRequestAt = &at
	e.state.RequestCount++

	return &models.ContactSnapshot{
		DeltaMS:      delta,
		RequestCount: e.state.RequestCount,
		FailedLogins: e.state.FailedLogins,
	}, nil
}

// RecordFailure atomically increments failed logins for ip.
func (r *MemoryRepository) RecordFailure(_ context.Context, ip string) (int64, error) {
	e := r.entry(ip)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.FailedLogins++
	return e.state.FailedLogins, nil
}

// Close is a no-op for the in-memory store.
func (r *MemoryRepository) Close() error {
	return nil
}
