// Package ledger implements the forensic event ledger: an append-only,
// hash-chained, Merkle-batched record of attacker interactions. Per-event
// content hashes let an auditor verify a single event; periodic Merkle
// roots let them verify a whole batch without re-hashing the ledger.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chameleon-systems/chameleon/internal/logging"
	"github.com/chameleon-systems/chameleon/internal/metrics"
	"github.com/chameleon-systems/chameleon/internal/models"
)

// DefaultBatchSize is how many events complete a Merkle batch.
const DefaultBatchSize = 50

// Publisher mirrors appended events to an external sink (e.g. a message
// bus). Must never block or fail the append.
type Publisher interface {
	Publish(ev *models.Event)
}

// Options tunes the ledger service.
type Options struct {
	// BatchSize is the Merkle batch size B; 0 uses DefaultBatchSize.
	BatchSize int

	// RetryAttempts is how many times a failed insert is retried before
	// the event goes to the spool.
	RetryAttempts int

	// RetryBackoff is the base delay between retries, doubled per attempt.
	RetryBackoff time.Duration

	// Publisher, when set, receives every appended event.
	Publisher Publisher

	// Spool receives events whose insert exhausted all retries.
	Spool *Spool
}

// Service is the forensic ledger. Append is the only write path.
type Service struct {
	repo   Repository
	opts   Options
	logger *logging.Logger
}

// NewService creates a ledger over repo.
func NewService(repo Repository, opts Options, logger *logging.Logger) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 100 * time.Millisecond
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, opts: opts, logger: logger}
}

// Append assigns identity to ev if missing, computes its content hash
// exactly once, persists it, and advances the global counter. When the
// counter lands on a batch boundary this appender — and only this one,
// since the increment is atomic — seals the Merkle batch.
//
// A persistence failure is retried with backoff and then spooled rather
// than dropped; the returned error reports the degradation but the event
// bytes are durable either way.
func (s *Service) Append(ctx context.Context, ev *models.Event) error {
	start := time.Now()
	defer func() {
		metrics.LedgerAppendDuration.Observe(time.Since(start).Seconds())
	}()

	if ev.EventID == "" {
		ev.EventID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	hash, err := ContentHash(ev)
	if err != nil {
		return fmt.Errorf("failed to hash event: %w", err)
	}
	ev.ContentHash = hash

	if err := s.insertWithRetry(ctx, ev); err != nil {
		metrics.LedgerAppendErrors.Inc()
		s.logger.ErrorContext(ctx, "Ledger insert failed, spooling event",
			logging.EventID(ev.EventID), logging.Err(err))

		if s.opts.Spool == nil {
			return fmt.Errorf("ledger insert failed with no spool configured: %w", err)
		}
		if spoolErr := s.opts.Spool.Write(ev); spoolErr != nil {
			s.logger.ErrorContext(ctx, "Spool write failed, event lost",
				logging.EventID(ev.EventID), logging.Err(spoolErr))
			return fmt.Errorf("ledger insert and spool both failed: %w", spoolErr)
		}
		return fmt.Errorf("ledger insert failed, event spooled: %w", err)
	}

	metrics.LedgerAppends.Inc()

	total, err := s.repo.IncrementCounter(ctx)
	if err != nil {
		return fmt.Errorf("failed to advance ledger counter: %w", err)
	}

	if s.opts.Publisher != nil {
		s.opts.Publisher.Publish(ev)
	}

	if total%int64(s.opts.BatchSize) == 0 {
		if err := s.sealBatch(ctx); err != nil {
			return fmt.Errorf("failed to seal merkle batch: %w", err)
		}
	}

	return nil
}

func (s *Service) insertWithRetry(ctx context.Context, ev *models.Event) error {
	var err error
	backoff := s.opts.RetryBackoff

	for attempt := 0; attempt < s.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}

		if err = s.repo.InsertEvent(ctx, ev); err == nil {
			return nil
		}
	}
	return err
}

// sealBatch reads the most recent batch of hashes, computes the root, and
// persists the batch record. Runs on exactly one appender per boundary.
func (s *Service) sealBatch(ctx context.Context) error {
	hashes, err := s.repo.RecentHashes(ctx, s.opts.BatchSize)
	if err != nil {
		return err
	}

	root := MerkleRoot(hashes)
	if root == "" {
		// Unreachable under the boundary trigger, but an empty batch has
		// no defined root and must not produce a record.
		return nil
	}

	now := time.Now().UTC()
	if err := s.repo.InsertBatch(ctx, &models.MerkleBatchRecord{
		RootHash:   root,
		ComputedAt: now,
	}); err != nil {
		return err
	}
	if err := s.repo.SetLastMerkle(ctx, root, now); err != nil {
		return err
	}

	metrics.MerkleBatches.Inc()
	s.logger.InfoContext(ctx, "Merkle batch sealed", "root", root, "batch_size", s.opts.BatchSize)
	return nil
}

// Counter exposes the ledger counter singleton.
func (s *Service) Counter(ctx context.Context) (*models.LedgerCounter, error) {
	return s.repo.Counter(ctx)
}

// RecentEvents exposes the n most recent stored events, oldest first.
func (s *Service) RecentEvents(ctx context.Context, n int) ([]*models.Event, error) {
	return s.repo.RecentEvents(ctx, n)
}

// Batches exposes all sealed Merkle batch records.
func (s *Service) Batches(ctx context.Context) ([]*models.MerkleBatchRecord, error) {
	return s.repo.Batches(ctx)
}
