// Package mirror forwards appended forensic events to an external message
// bus so a downstream SIEM can consume them live. Publishing is
// fire-and-forget: a mirror outage must never delay or fail a ledger
// append, and the ledger remains the durable record.
package mirror

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/chameleon-systems/chameleon/internal/logging"
	"github.com/chameleon-systems/chameleon/internal/models"
)

// DefaultSubject is the NATS subject events are published to.
const DefaultSubject = "chameleon.events"

// Publisher mirrors events to NATS.
type Publisher struct {
	conn    *nats.Conn
	subject string
	logger  *logging.Logger
}

// NewPublisher connects to the NATS server at url. An empty subject uses
// DefaultSubject.
func NewPublisher(url, subject string, logger *logging.Logger) (*Publisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = logging.Default()
	}

	conn, err := nats.Connect(url,
		nats.Name("chameleon-mirror"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}

	return &Publisher{conn: conn, subject: subject, logger: logger}, nil
}

// Publish mirrors one event. Failures are logged and dropped; the ledger
// already holds the event durably.
func (p *Publisher) Publish(ev *models.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("Failed to encode event for mirror", logging.EventID(ev.EventID), logging.Err(err))
		return
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		p.logger.Error("Failed to mirror event", logging.EventID(ev.EventID), logging.Err(err))
	}
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
