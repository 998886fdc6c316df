package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/chameleon-systems/chameleon/internal/models"
)

// ErrCounterMissing indicates the ledger counter singleton has not been
// initialized in the backing store.
var ErrCounterMissing = errors.New("ledger counter not initialized")

// Repository is the durable store behind the forensic ledger. Events and
// batch records are append-only; the counter is the only mutable row and
// every increment must be atomic.
type Repository interface {
	// InsertEvent persists a hashed event and assigns its sequence number.
	InsertEvent(ctx context.Context, ev *models.Event) error

	// IncrementCounter atomically advances total_events and returns the
	// new value. The returned value decides Merkle batch boundaries:
	// exactly one append observes each multiple of the batch size.
	IncrementCounter(ctx context.Context) (int64, error)

	// RecentHashes returns the content hashes of the n most recent
	// events, ordered oldest to newest.
	RecentHashes(ctx context.Context, n int) ([]string, error)

	// InsertBatch persists a completed Merkle batch record.
	InsertBatch(ctx context.Context, batch *models.MerkleBatchRecord) error

	// SetLastMerkle updates the counter singleton's last root fields.
	SetLastMerkle(ctx context.Context, root string, at time.Time) error

	// Counter returns the counter singleton.
	Counter(ctx context.Context) (*models.LedgerCounter, error)

	// RecentEvents returns the n most recent events, oldest first, with
	// their stored hashes and sequence numbers.
	RecentEvents(ctx context.Context, n int) ([]*models.Event, error)

	// Batches returns all Merkle batch records, oldest first.
	Batches(ctx context.Context) ([]*models.MerkleBatchRecord, error)

	Close()
}
