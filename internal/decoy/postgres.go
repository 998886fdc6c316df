package decoy

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// dumpQuery is the one fixed query the decoy store runs. The table is
// seeded by migrations and never written at runtime.
const dumpQuery = `SELECT id, username, password_hash, email FROM decoy_users ORDER BY id`

// PostgresStore serves the decoy dump from a pre-seeded Postgres table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the decoy database.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse decoy database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoy connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping decoy database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Dump runs the fixed query. Failures come back as a single error row so
// the bait response can render them as a broken backend.
func (s *PostgresStore) Dump(ctx context.Context) []map[string]any {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.pool.Query(ctx, dumpQuery)
	if err != nil {
		return errorRow(err)
	}
	defer rows.Close()

	var result []map[string]any
	for rows.Next() {
		var (
			id                            int64
			username, passwordHash, email string
		)
		if err := rows.Scan(&id, &username, &passwordHash, &email); err != nil {
			return errorRow(err)
		}
		result = append(result, map[string]any{
			"id":            id,
			"username":      username,
			"password_hash": passwordHash,
			"email":         email,
		})
	}
	if err := rows.Err(); err != nil {
		return errorRow(err)
	}

	return result
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
