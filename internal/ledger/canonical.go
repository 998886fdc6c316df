package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/chameleon-systems/chameleon/internal/models"
)

// CanonicalSerialization returns the byte-stable serialization of an event
// with the content hash and ledger sequence excluded. The event is first
// flattened to a generic map and re-encoded, which sorts object keys, so
// the bytes do not depend on struct field order.
func CanonicalSerialization(ev *models.Event) ([]byte, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize event: %w", err)
	}

	var flat map[string]any
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("failed to flatten event: %w", err)
	}
	delete(flat, "content_hash")
	delete(flat, "seq")

	canonical, err := json.Marshal(flat)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize event: %w", err)
	}
	return canonical, nil
}

// ContentHash computes the SHA-256 hex digest of the canonical
// serialization. Called exactly once per event, at append time.
func ContentHash(ev *models.Event) (string, error) {
	canonical, err := CanonicalSerialization(ev)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyEvent recomputes the content hash of a stored event and reports
// whether it matches. Used by auditors to detect retroactive edits.
func VerifyEvent(ev *models.Event) (bool, error) {
	expected, err := ContentHash(ev)
	if err != nil {
		return false, err
	}
	return expected == ev.ContentHash, nil
}
