package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByOrderID(ctx context.Context, orderID string) (*Payment, error)
	ListByBooking(ctx context.Context, bookingID string) ([]*Payment, error)
	// WithOrderLock locks the payment row of orderID for the duration of fn
	// and saves the row after fn returns nil. Concurrent captures of one order
	// run one after the other.
	WithOrderLock(ctx context.Context, orderID string, fn func(p *Payment) error) (*Payment, error)
	// RecordWebhookEvent stores a processor notification id. It reports false
	// when the event was seen before.
	RecordWebhookEvent(ctx context.Context, provider, eventID, eventType string, payload []byte) (bool, error)
}

var paymentColumns = []string{
	"id", "booking_id", "provider", "order_id", "idempotency_key", "amount", "currency", "status",
	"transaction_id", "approval_url", "refund_reason", "created_at", "updated_at", "captured_at",
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID, &p.BookingID, &p.Provider, &p.OrderID, &p.IdempotencyKey, &p.Amount, &p.Currency, &p.Status,
		&p.TransactionID, &p.ApprovalURL, &p.RefundReason, &p.CreatedAt, &p.UpdatedAt, &p.CapturedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type pgxRepository struct {
	pool *pgxpool.Pool
	psql squirrel.StatementBuilderType
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{
		pool: pool,
		psql: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *pgxRepository) Create(ctx context.Context, p *Payment) error {
	query, args, err := r.psql.Insert("public.payments").
		Columns("booking_id", "provider", "order_id", "idempotency_key", "amount", "currency", "status", "approval_url").
		Values(p.BookingID, p.Provider, p.OrderID, p.IdempotencyKey, p.Amount, p.Currency, p.Status, p.ApprovalURL).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert payment query failed: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("insert payment failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByOrderID(ctx context.Context, orderID string) (*Payment, error) {
	query, args, err := r.psql.Select(paymentColumns...).
		From("public.payments").
		Where(squirrel.Eq{"order_id": orderID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get payment query failed: %w", err)
	}

	p, err := scanPayment(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get payment failed: %w", err)
	}
	return p, nil
}

func (r *pgxRepository) ListByBooking(ctx context.Context, bookingID string) ([]*Payment, error) {
	query, args, err := r.psql.Select(paymentColumns...).
		From("public.payments").
		Where(squirrel.Eq{"booking_id": bookingID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list payments query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments failed: %w", err)
	}
	defer rows.Close()

	var out []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment failed: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *pgxRepository) WithOrderLock(ctx context.Context, orderID string, fn func(p *Payment) error) (*Payment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin payment tx failed: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query, args, err := r.psql.Select(paymentColumns...).
		From("public.payments").
		Where(squirrel.Eq{"order_id": orderID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lock payment query failed: %w", err)
	}
	p, err := scanPayment(tx.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock payment failed: %w", err)
	}

	if err := fn(p); err != nil {
		return nil, err
	}

	query, args, err = r.psql.Update("public.payments").
		Set("status", p.Status).
		Set("transaction_id", p.TransactionID).
		Set("captured_at", p.CapturedAt).
		Set("refund_reason", p.RefundReason).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": p.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update payment query failed: %w", err)
	}
	if err := tx.QueryRow(ctx, query, args...).Scan(&p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update payment failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit payment tx failed: %w", err)
	}
	return p, nil
}

func (r *pgxRepository) RecordWebhookEvent(ctx context.Context, provider, eventID, eventType string, payload []byte) (bool, error) {
	query, args, err := r.psql.Insert("public.payment_webhook_events").
		Columns("provider", "event_id", "event_type", "payload").
		Values(provider, eventID, eventType, payload).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert webhook event query failed: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return false, nil
		}
		return false, fmt.Errorf("insert webhook event failed: %w", err)
	}
	return true, nil
}
