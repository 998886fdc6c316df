package models

import "time"

// MaxRecentDeltas bounds the inter-request delta history kept per IP.
const MaxRecentDeltas = 200

// AttackerState is the per-IP behavioral record. Counters only grow;
// records are created lazily on first contact and never deleted unless a
// retention TTL is configured on the backing store.
type AttackerState struct {
	IP            string     `json:"ip"`
	FailedLogins  int64      `json:"failed_logins"`
	RequestCount  int64      `json:"request_count"`
	LastRequestAt *time.Time `json:"last_request_at,omitempty"`
	RecentDeltas  []int64    `json:"recent_deltas,omitempty"`
}

// ContactSnapshot is what RecordContact returns: the behavioral view the
// deception engine folds into the event for this request.
type ContactSnapshot struct {
	// DeltaMS is the gap to the previous request from this IP, nil on
	// first contact.
	DeltaMS *int64

	// RequestCount includes the contact being recorded.
	RequestCount int64

	// FailedLogins is the count before this request's outcome is known.
	FailedLogins int64
}

// Classification is the PayloadClassifier adapter result.
type Classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// LedgerCounter is the process-wide ledger singleton.
type LedgerCounter struct {
	TotalEvents    int64      `json:"total_events"`
	LastMerkleRoot string     `json:"last_merkle_root,omitempty"`
	LastMerkleAt   *time.Time `json:"last_merkle_at,omitempty"`
}

// MerkleBatchRecord is one completed hash batch. Append-only.
type MerkleBatchRecord struct {
	RootHash   string    `json:"root_hash"`
	ComputedAt time.Time `json:"computed_at"`
}
