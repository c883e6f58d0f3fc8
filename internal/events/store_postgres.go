package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres persists events in the case_events table. Rows double as the
// outbox for the Kafka relay via the published flag.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Append inserts the event; duplicate IDs are ignored so webhook redelivery
// cannot double-append.
func (s *Postgres) Append(ctx context.Context, event Event) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	query := `
		INSERT INTO case_events (id, token, type, data, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = s.pool.Exec(ctx, query, event.ID, event.Token, event.Type, data, event.Timestamp)
	if err != nil {
		return fmt.Errorf("insert case event: %w", err)
	}
	return nil
}

func (s *Postgres) ListByToken(ctx context.Context, token string, limit int) ([]Event, error) {
	query := `
		SELECT id, token, type, data, created_at
		FROM case_events
		WHERE token = $1
		ORDER BY created_at DESC
		LIMIT NULLIF($2, 0)
	`
	rows, err := s.pool.Query(ctx, query, token, limit)
	if err != nil {
		return nil, fmt.Errorf("query case events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *Postgres) NextUnpublished(ctx context.Context, limit int) ([]Event, error) {
	query := `
		SELECT id, token, type, data, created_at
		FROM case_events
		WHERE NOT published
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query unpublished events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *Postgres) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `UPDATE case_events SET published = TRUE WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("mark events published: %w", err)
	}
	return nil
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEvents(rows pgxRows) ([]Event, error) {
	var out []Event
	for rows.Next() {
		var (
			e    Event
			data []byte
		)
		if err := rows.Scan(&e.ID, &e.Token, &e.Type, &data, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan case event: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				return nil, fmt.Errorf("unmarshal event data: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate case events: %w", err)
	}
	return out, nil
}
