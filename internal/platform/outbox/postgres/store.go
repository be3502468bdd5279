package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"accountopen/internal/platform/outbox"
)

// maxBatch caps a single fetch.
const maxBatch = 1000

// Store implements outbox.Store on the event_outbox table.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append adds a new entry to the outbox table.
func (s *Store) Append(ctx context.Context, entry *outbox.Entry) error {
	return s.append(ctx, s.db, entry)
}

// AppendTx adds an entry inside an existing transaction so the event commits
// or rolls back with the business write.
func (s *Store) AppendTx(ctx context.Context, tx *sql.Tx, entry *outbox.Entry) error {
	return s.append(ctx, tx, entry)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) append(ctx context.Context, db execer, entry *outbox.Entry) error {
	headers, err := json.Marshal(headersOrEmpty(entry.Headers))
	if err != nil {
		return fmt.Errorf("encode outbox headers: %w", err)
	}
	query := `
		INSERT INTO event_outbox (id, aggregate_id, event_type, payload, headers, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = db.ExecContext(ctx, query,
		entry.ID,
		entry.AggregateID,
		entry.EventType,
		string(entry.Payload),
		string(headers),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// FetchUnprocessed returns up to limit pending entries, oldest first. SKIP
// LOCKED lets several relays poll the table without blocking each other.
func (s *Store) FetchUnprocessed(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	if limit > maxBatch {
		limit = maxBatch
	}
	query := `
		SELECT id, aggregate_id, event_type, payload, headers, created_at, processed_at
		FROM event_outbox
		WHERE processed_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unprocessed entries: %w", err)
	}
	defer rows.Close()

	var entries []*outbox.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}
	return entries, nil
}

// MarkProcessed marks an entry as delivered.
func (s *Store) MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE event_outbox SET processed_at = $2 WHERE id = $1 AND processed_at IS NULL`,
		id, processedAt,
	)
	if err != nil {
		return fmt.Errorf("mark outbox entry processed: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", id, outbox.ErrNotPending)
	}
	return nil
}

// CountPending returns the number of unprocessed entries.
func (s *Store) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM event_outbox WHERE processed_at IS NULL`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending entries: %w", err)
	}
	return count, nil
}

// DeleteProcessedBefore removes old processed entries.
func (s *Store) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM event_outbox WHERE processed_at IS NOT NULL AND processed_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("delete processed entries: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return rowsAffected, nil
}

func scanEntry(rows *sql.Rows) (*outbox.Entry, error) {
	var (
		entry       outbox.Entry
		payload     []byte
		headers     []byte
		processedAt sql.NullTime
	)
	if err := rows.Scan(
		&entry.ID,
		&entry.AggregateID,
		&entry.EventType,
		&payload,
		&headers,
		&entry.CreatedAt,
		&processedAt,
	); err != nil {
		return nil, fmt.Errorf("scan outbox entry: %w", err)
	}
	entry.Payload = payload
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &entry.Headers); err != nil {
			return nil, fmt.Errorf("decode outbox headers: %w", err)
		}
	}
	if processedAt.Valid {
		entry.ProcessedAt = &processedAt.Time
	}
	return &entry, nil
}

func headersOrEmpty(h map[string]string) map[string]string {
	if h == nil {
		return map[string]string{}
	}
	return h
}
