// Package decoy provides the read-only pre-seeded data store behind the
// fake "leak" response. The store runs one fixed query; failures are
// captured as a synthetic error row instead of propagating, preserving the
// illusion of a flaky backend.
package decoy

import "context"

// Store is the DecoyDataStore capability: a single fixed query against the
// decoy users table. Dump never returns an error — trouble becomes a row.
type Store interface {
	Dump(ctx context.Context) []map[string]any
	Close()
}

// errorRow captures a query failure as leakable data.
func errorRow(err error) []map[string]any {
	return []map[string]any{{"error": err.Error()}}
}
