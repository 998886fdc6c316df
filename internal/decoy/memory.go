package decoy

import (
	"context"
	"fmt"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
)

// adminHash is the fixed bcrypt hash seeded for the decoy admin row. It
// does not correspond to any real credential.
const adminHash = "$2y$10$IO14zXCwe3a7HdvuUzDoaeTxaxNbltaojDOaAw.v430eWfI.Dw6BS"

// MemoryStore serves the decoy dump from a pre-seeded in-memory table.
// Used when no Postgres decoy database is configured.
type MemoryStore struct {
	rows []map[string]any
}

// NewMemoryStore seeds a decoy users table: a fixed admin row plus count
// generated accounts with plausible usernames, emails, and bcrypt hashes.
// seed fixes the generator so repeated runs leak identical data.
func NewMemoryStore(count int, seed int64) *MemoryStore {
	faker := gofakeit.New(seed)

	rows := []map[string]any{
		{
			"id":            1,
			"username":      "admin",
			"password_hash": adminHash,
			"email":         "admin@acme.example",
		},
	}

	for i := 0; i < count; i++ {
		// MinCost keeps seeding fast; the hashes only need to look real.
		hash, err := bcrypt.GenerateFromPassword([]byte(faker.Password(true, true, true, false, false, 12)), bcrypt.MinCost)
		if err != nil {
			// bcrypt only fails on invalid cost; keep the row anyway.
			hash = []byte(adminHash)
		}

		rows = append(rows, map[string]any{
			"id":            i + 2,
			"username":      faker.Username(),
			"password_hash": string(hash),
			"email":         fmt.Sprintf("%s@%s", faker.Username(), faker.DomainName()),
		})
	}

	return &MemoryStore{rows: rows}
}

// Dump returns the seeded rows.
func (s *MemoryStore) Dump(ctx context.Context) []map[string]any {
	return s.rows
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() {}
