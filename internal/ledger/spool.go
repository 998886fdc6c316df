package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/chameleon-systems/chameleon/internal/models"
)

// Spool is the last-ditch durable sink for events the repository refused
// after retries. An unlogged attacker interaction defeats the honeypot's
// purpose, so losing the event is worse than writing it somewhere odd.
// Events are appended as JSON lines for later replay.
type Spool struct {
	mu   sync.Mutex
	path string
}

// NewSpool creates a spool writing to path.
func NewSpool(path string) *Spool {
	return &Spool{path: path}
}

// Write appends one event to the spool file.
func (s *Spool) Write(ev *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode spooled event: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open spool file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write spooled event: %w", err)
	}
	return nil
}
