// Package state tracks per-IP attacker behavior. Each mutation is atomic
// per IP so that concurrent requests from the same address cannot
// undercount failures near the ban and tarpit thresholds.
package state

import (
	"context"
	"time"

	"github.com/chameleon-systems/chameleon/internal/models"
)

// Repository is the AttackerState store. Records are created lazily on
// first contact with zeroed counters and are never deleted unless the
// backend enforces a retention TTL.
type Repository interface {
	// GetOrCreate returns the state for ip, inserting a zeroed record if
	// none exists.
	GetOrCreate(ctx context.Context, ip string) (*models.AttackerState, error)

	// RecordContact folds one request into the state: computes the delta
	// to the previous contact (nil on first contact), appends it to the
	// bounded delta history, advances last_request_at, and increments the
	// request counter. Returns the behavioral snapshot for the event.
	// Called on every request regardless of outcome.
	RecordContact(ctx context.Context, ip string, now time.Time) (*models.ContactSnapshot, error)

	// RecordFailure atomically increments the failed-login counter and
	// returns the new value. Called only on the generic-failure branch.
	RecordFailure(ctx context.Context, ip string) (int64, error)

	Close() error
}
