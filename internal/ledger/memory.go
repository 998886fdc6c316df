package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/chameleon-systems/chameleon/internal/models"
)

// MemoryRepository keeps the ledger in process memory. Used for
// development and tests; the durability guarantees obviously do not hold
// across restarts.
type MemoryRepository struct {
	mu      sync.Mutex
	events  []*models.Event
	batches []*models.MerkleBatchRecord
	counter models.LedgerCounter
}

// NewMemoryRepository creates an empty in-memory ledger store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev *models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.Seq = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

func (r *MemoryRepository) IncrementCounter(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counter.TotalEvents++
	return r.counter.TotalEvents, nil
}

func (r *MemoryRepository) RecentHashes(_ context.Context, n int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := len(r.events) - n
	if start < 0 {
		start = 0
	}

	hashes := make([]string, 0, len(r.events)-start)
	for _, ev := range r.events[start:] {
		hashes = append(hashes, ev.ContentHash)
	}
	return hashes, nil
}

func (r *MemoryRepository) InsertBatch(_ context.Context, batch *models.MerkleBatchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.batches = append(r.batches, batch)
	return nil
}

func (r *MemoryRepository) SetLastMerkle(_ context.Context, root string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counter.LastMerkleRoot = root
	r.counter.LastMerkleAt = &at
	return nil
}

func (r *MemoryRepository) Counter(_ context.Context) (*models.LedgerCounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := r.counter
	return &copied, nil
}

func (r *MemoryRepository) RecentEvents(_ context.Context, n int) ([]*models.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := len(r.events) - n
	if start < 0 {
		start = 0
	}

	out := make([]*models.Event, 0, len(r.events)-start)
	for _, ev := range r.events[start:] {
		copied := *ev
		out = append(out, &copied)
	}
	return out, nil
}

func (r *MemoryRepository) Batches(_ context.Context) ([]*models.MerkleBatchRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.MerkleBatchRecord, 0, len(r.batches))
	for _, b := range r.batches {
		copied := *b
		out = append(out, &copied)
	}
	return out, nil
}

func (r *MemoryRepository) Close() {}
