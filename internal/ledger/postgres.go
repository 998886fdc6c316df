package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chameleon-systems/chameleon/internal/models"
)

// PostgresRepository persists the ledger in Postgres. The events and
// merkle_batches tables are insert-only; ledger_counter holds the single
// mutable row and is advanced with an atomic UPDATE ... RETURNING.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects to the forensics database. The schema is
// managed by the migrations in migrations/.
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) InsertEvent(ctx context.Context, ev *models.Event) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	doc, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	query := `
		INSERT INTO events (event_id, ts, source_ip, kind, doc, content_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq
	`

	err = r.pool.QueryRow(ctx, query,
		ev.EventID, ev.Timestamp, ev.SourceIP, ev.Kind, doc, ev.ContentHash,
	).Scan(&ev.Seq)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

func (r *PostgresRepository) IncrementCounter(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		UPDATE ledger_counter
		SET total_events = total_events + 1
		WHERE id = 1
		RETURNING total_events
	`

	var total int64
	err := r.pool.QueryRow(ctx, query).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrCounterMissing
		}
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}

	return total, nil
}

func (r *PostgresRepository) RecentHashes(ctx context.Context, n int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT content_hash FROM (
			SELECT seq, content_hash FROM events ORDER BY seq DESC LIMIT $1
		) recent
		ORDER BY seq ASC
	`

	rows, err := r.pool.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to read recent hashes: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan hash: %w", err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

func (r *PostgresRepository) InsertBatch(ctx context.Context, batch *models.MerkleBatchRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `INSERT INTO merkle_batches (root_hash, computed_at) VALUES ($1, $2)`

	if _, err := r.pool.Exec(ctx, query, batch.RootHash, batch.ComputedAt); err != nil {
		return fmt.Errorf("failed to insert merkle batch: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SetLastMerkle(ctx context.Context, root string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `UPDATE ledger_counter SET last_merkle_root = $1, last_merkle_at = $2 WHERE id = 1`

	if _, err := r.pool.Exec(ctx, query, root, at); err != nil {
		return fmt.Errorf("failed to update last merkle root: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Counter(ctx context.Context) (*models.LedgerCounter, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `SELECT total_events, last_merkle_root, last_merkle_at FROM ledger_counter WHERE id = 1`

	var counter models.LedgerCounter
	err := r.pool.QueryRow(ctx, query).Scan(
		&counter.TotalEvents, &counter.LastMerkleRoot, &counter.LastMerkleAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCounterMissing
		}
		return nil, fmt.Errorf("failed to read ledger counter: %w", err)
	}

	return &counter, nil
}

func (r *PostgresRepository) RecentEvents(ctx context.Context, n int) ([]*models.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT doc, seq FROM (
			SELECT seq, doc FROM events ORDER BY seq DESC LIMIT $1
		) recent
		ORDER BY seq ASC
	`

	rows, err := r.pool.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to read recent events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var (
			doc []byte
			seq int64
		)
		if err := rows.Scan(&doc, &seq); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		var ev models.Event
		if err := json.Unmarshal(doc, &ev); err != nil {
			return nil, fmt.Errorf("failed to decode stored event: %w", err)
		}
		ev.Seq = seq
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func (r *PostgresRepository) Batches(ctx context.Context) ([]*models.MerkleBatchRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `SELECT root_hash, computed_at FROM merkle_batches ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read merkle batches: %w", err)
	}
	defer rows.Close()

	var batches []*models.MerkleBatchRecord
	for rows.Next() {
		var b models.MerkleBatchRecord
		if err := rows.Scan(&b.RootHash, &b.ComputedAt); err != nil {
			return nil, fmt.Errorf("failed to scan merkle batch: %w", err)
		}
		batches = append(batches, &b)
	}
	return batches, rows.Err()
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}
