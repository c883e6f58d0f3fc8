package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"caseflow/internal/cases/models"
	"caseflow/pkg/platform/sentinel"
)

// Postgres stores cases in a single table keyed by token. The jsonb `||`
// operator gives the shallow field-level merge the case payload contract
// requires, executed server-side in one statement so concurrent merges cannot
// lose each other's keys.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const caseColumns = `
	id, token, status, unlocked, COALESCE(email, ''), payload,
	COALESCE(checkout_session_id, ''), COALESCE(payment_intent_id, ''),
	COALESCE(amount_total, 0), COALESCE(currency, ''),
	created_at, updated_at`

func (s *Postgres) Upsert(ctx context.Context, token string, fragment map[string]any, now time.Time) (models.Case, bool, error) {
	payload, err := json.Marshal(fragment)
	if err != nil {
		return models.Case{}, false, fmt.Errorf("marshal payload fragment: %w", err)
	}

	// xmax = 0 distinguishes a fresh insert from a conflict-update.
	query := `
		INSERT INTO cases (id, token, status, unlocked, payload, created_at, updated_at)
		VALUES ($1, $2, $3, FALSE, $4, $5, $5)
		ON CONFLICT (token) DO UPDATE
		SET payload = cases.payload || EXCLUDED.payload,
		    updated_at = EXCLUDED.updated_at
		RETURNING ` + caseColumns + `, (xmax = 0)`

	row := s.pool.QueryRow(ctx, query, uuid.NewString(), token, models.StatusNew, payload, now)

	var (
		c       models.Case
		raw     []byte
		created bool
	)
	if err := scanCase(row, &c, &raw, &created); err != nil {
		return models.Case{}, false, fmt.Errorf("upsert case: %w", err)
	}
	if err := json.Unmarshal(raw, &c.Payload); err != nil {
		return models.Case{}, false, fmt.Errorf("unmarshal case payload: %w", err)
	}
	return c, created, nil
}

func (s *Postgres) Find(ctx context.Context, token string) (models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE token = $1`
	row := s.pool.QueryRow(ctx, query, token)

	var (
		c   models.Case
		raw []byte
	)
	if err := scanCase(row, &c, &raw, nil); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Case{}, sentinel.ErrNotFound
		}
		return models.Case{}, fmt.Errorf("find case: %w", err)
	}
	if err := json.Unmarshal(raw, &c.Payload); err != nil {
		return models.Case{}, fmt.Errorf("unmarshal case payload: %w", err)
	}
	return c, nil
}

func (s *Postgres) MergePayload(ctx context.Context, token string, fragment map[string]any, now time.Time) (models.Case, error) {
	payload, err := json.Marshal(fragment)
	if err != nil {
		return models.Case{}, fmt.Errorf("marshal payload fragment: %w", err)
	}

	query := `
		UPDATE cases
		SET payload = payload || $2, updated_at = $3
		WHERE token = $1
		RETURNING ` + caseColumns
	row := s.pool.QueryRow(ctx, query, token, payload, now)

	var (
		c   models.Case
		raw []byte
	)
	if err := scanCase(row, &c, &raw, nil); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Case{}, sentinel.ErrNotFound
		}
		return models.Case{}, fmt.Errorf("merge case payload: %w", err)
	}
	if err := json.Unmarshal(raw, &c.Payload); err != nil {
		return models.Case{}, fmt.Errorf("unmarshal case payload: %w", err)
	}
	return c, nil
}

func (s *Postgres) SetCheckout(ctx context.Context, token, email string, now time.Time) error {
	query := `
		UPDATE cases
		SET email = $2, status = $3, updated_at = $4
		WHERE token = $1
	`
	tag, err := s.pool.Exec(ctx, query, token, email, models.StatusPendingPayment, now)
	if err != nil {
		return fmt.Errorf("set checkout contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) MarkPaid(ctx context.Context, token string, receipt PaymentReceipt, now time.Time) error {
	query := `
		UPDATE cases
		SET status = $2, unlocked = TRUE,
		    checkout_session_id = $3, payment_intent_id = $4,
		    amount_total = $5, currency = $6, updated_at = $7
		WHERE token = $1
	`
	tag, err := s.pool.Exec(ctx, query, token, models.StatusPaid,
		receipt.CheckoutSessionID, receipt.PaymentIntentID,
		receipt.AmountTotal, receipt.Currency, now)
	if err != nil {
		return fmt.Errorf("mark case paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanCase(row pgx.Row, c *models.Case, rawPayload *[]byte, created *bool) error {
	dest := []any{
		&c.ID, &c.Token, &c.Status, &c.Unlocked, &c.Email, rawPayload,
		&c.CheckoutSessionID, &c.PaymentIntentID,
		&c.AmountTotal, &c.Currency,
		&c.CreatedAt, &c.UpdatedAt,
	}
	if created != nil {
		dest = append(dest, created)
	}
	return row.Scan(dest...)
}
