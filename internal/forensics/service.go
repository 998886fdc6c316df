// Package forensics is the operator-facing read side of the event ledger:
// recent events, chain status, and an on-demand integrity sweep. It never
// writes.
package forensics

import (
	"context"
	"fmt"

	"github.com/chameleon-systems/chameleon/internal/ledger"
	"github.com/chameleon-systems/chameleon/internal/models"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

// Service answers operator queries against the ledger.
type Service struct {
	ledger *ledger.Service
}

func NewService(ledgerSvc *ledger.Service) *Service {
	return &Service{ledger: ledgerSvc}
}

// StatusReport is the ledger chain summary.
type StatusReport struct {
	Counter *models.LedgerCounter       `json:"counter"`
	Batches []*models.MerkleBatchRecord `json:"batches"`
}

// VerifyReport is the result of an integrity sweep over recent events.
type VerifyReport struct {
	Checked  int      `json:"checked"`
	Tampered []string `json:"tampered,omitempty"`
}

// Events returns the most recent events, oldest first. A non-positive
// limit gets the default; anything above the cap is clamped.
func (s *Service) Events(ctx context.Context, limit int) ([]*models.Event, error) {
	if limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}
	return s.ledger.RecentEvents(ctx, limit)
}

// Status returns the counter and every sealed batch.
func (s *Service) Status(ctx context.Context) (*StatusReport, error) {
	counter, err := s.ledger.Counter(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger counter: %w", err)
	}
	batches, err := s.ledger.Batches(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read merkle batches: %w", err)
	}
	return &StatusReport{Counter: counter, Batches: batches}, nil
}

// Verify recomputes the content hash of the most recent events and reports
// any whose stored hash no longer matches.
func (s *Service) Verify(ctx context.Context, limit int) (*VerifyReport, error) {
	events, err := s.Events(ctx, limit)
	if err != nil {
		return nil, err
	}

	report := &VerifyReport{Checked: len(events)}
	for _, ev := range events {
		ok, err := ledger.VerifyEvent(ev)
		if err != nil {
			return nil, fmt.Errorf("failed to verify event %s: %w", ev.EventID, err)
		}
		if !ok {
			report.Tampered = append(report.Tampered, ev.EventID)
		}
	}
	return report, nil
}
