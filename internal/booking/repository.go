package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Tx exposes the statements that must run inside one transaction to keep
// check-and-reserve atomic.
type Tx interface {
	// LockService serializes writers of one service's calendar until commit.
	LockService(ctx context.Context, serviceID string) error
	// HasOverlap checks blocking bookings only; excludeID skips the booking itself.
	HasOverlap(ctx context.Context, serviceID string, start, end time.Time, excludeID string) (bool, error)
	Insert(ctx context.Context, b *Booking) error
	GetForUpdate(ctx context.Context, id string) (*Booking, error)
	Update(ctx context.Context, b *Booking) error
	InsertAudit(ctx context.Context, e *AuditEntry) error
}

type Repository interface {
	// WithTx runs fn in a transaction, committing only when fn returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	GetByID(ctx context.Context, id string) (*Booking, error)
	List(ctx context.Context, filter Filter) ([]*Booking, int, error)
	// ListByServiceAndRange returns non-cancelled bookings overlapping [from, to).
	ListByServiceAndRange(ctx context.Context, serviceID string, from, to time.Time) ([]*Booking, error)
	ListAudit(ctx context.Context, bookingID string) ([]*AuditEntry, error)
}

var bookingColumns = []string{
	"b.id", "b.service_id", "s.name", "b.user_id",
	"b.customer_name", "b.customer_email", "b.customer_phone", "b.notes", "b.timezone",
	"b.start_time", "b.end_time", "b.status", "b.payment_declined_at",
	"b.confirmed_at", "b.cancelled_at", "b.cancel_reason", "b.created_at", "b.updated_at",
}

func scanBooking(row pgx.Row, extra ...any) (*Booking, error) {
	var b Booking
	dest := []any{
		&b.ID, &b.ServiceID, &b.ServiceName, &b.UserID,
		&b.CustomerName, &b.CustomerEmail, &b.CustomerPhone, &b.Notes, &b.Timezone,
		&b.StartTime, &b.EndTime, &b.Status, &b.PaymentDeclinedAt,
		&b.ConfirmedAt, &b.CancelledAt, &b.CancelReason, &b.CreatedAt, &b.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &b, nil
}

func isUniqueViolation(err error) bool {
	var e *pgconn.PgError
	return errors.As(err, &e) && e.Code == pgerrcode.UniqueViolation
}

// blockingCond matches bookings that keep their slot out of availability.
var blockingCond = squirrel.Or{
	squirrel.Eq{"status": StatusConfirmed},
	squirrel.And{
		squirrel.Eq{"status": StatusPending},
		squirrel.Eq{"payment_declined_at": nil},
	},
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

func (r *pgxRepository) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin booking tx failed: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgxTx{tx: tx, psql: r.psql}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return ErrTimeConflict
		}
		return fmt.Errorf("commit booking tx failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) selectBookings() squirrel.SelectBuilder {
	return r.psql.Select(bookingColumns...).
		From("public.bookings b").
		Join("public.services s ON b.service_id = s.id")
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	query, args, err := r.selectBookings().Where(squirrel.Eq{"b.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking query failed: %w", err)
	}

	b, err := scanBooking(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking failed: %w", err)
	}
	return b, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	query := r.psql.Select(append(bookingColumns, "count(*) OVER() AS total_count")...).
		From("public.bookings b").
		Join("public.services s ON b.service_id = s.id")

	if filter.UserID != "" {
		query = query.Where(squirrel.Eq{"b.user_id": filter.UserID})
	}
	if filter.ServiceID != "" {
		query = query.Where(squirrel.Eq{"b.service_id": filter.ServiceID})
	}
	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"b.status": filter.Status})
	}
	// Date range filtering (intersection logic)
	if filter.From != nil {
		query = query.Where(squirrel.GtOrEq{"b.end_time": *filter.From})
	}
	if filter.To != nil {
		query = query.Where(squirrel.LtOrEq{"b.start_time": *filter.To})
	}

	orderBy := "b.start_time"
	if filter.SortBy != "" {
		orderBy = "b." + filter.SortBy
	}
	orderDir := "DESC"
	if filter.SortOrder != "" {
		orderDir = filter.SortOrder
	}
	query = query.OrderBy(orderBy + " " + orderDir)

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize
	query = query.Limit(uint64(filter.PageSize)).Offset(uint64(offset))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list bookings query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings failed: %w", err)
	}
	defer rows.Close()

	var bookings []*Booking
	var total int
	for rows.Next() {
		b, err := scanBooking(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan booking failed: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate bookings failed: %w", err)
	}
	return bookings, total, nil
}

func (r *pgxRepository) ListByServiceAndRange(ctx context.Context, serviceID string, from, to time.Time) ([]*Booking, error) {
	sql, args, err := r.selectBookings().
		Where(squirrel.Eq{"b.service_id": serviceID}).
		Where(squirrel.NotEq{"b.status": StatusCancelled}).
		Where(squirrel.Lt{"b.start_time": to}).
		Where(squirrel.Gt{"b.end_time": from}).
		OrderBy("b.start_time ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build range bookings query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list range bookings failed: %w", err)
	}
	defer rows.Close()

	var bookings []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking failed: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate range bookings failed: %w", err)
	}
	return bookings, nil
}

func (r *pgxRepository) ListAudit(ctx context.Context, bookingID string) ([]*AuditEntry, error) {
	sql, args, err := r.psql.Select("id", "action", "entity_type", "entity_id", "user_id", "details", "created_at").
		From("public.audit_logs").
		Where(squirrel.Eq{"entity_type": "booking", "entity_id": bookingID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list audit query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit failed: %w", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.EntityType, &e.EntityID, &e.UserID, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit failed: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit failed: %w", err)
	}
	return entries, nil
}

type pgxTx struct {
	tx   pgx.Tx
	psql squirrel.StatementBuilderType
}

func (t *pgxTx) LockService(ctx context.Context, serviceID string) error {
	if _, err := t.tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", serviceID); err != nil {
		return fmt.Errorf("lock service calendar failed: %w", err)
	}
	return nil
}

func (t *pgxTx) HasOverlap(ctx context.Context, serviceID string, start, end time.Time, excludeID string) (bool, error) {
	// Time overlaps: (NewStart < ExistingEnd) AND (NewEnd > ExistingStart)
	sub := t.psql.Select("1").
		From("public.bookings").
		Where(squirrel.Eq{"service_id": serviceID}).
		Where(blockingCond).
		Where(squirrel.Lt{"start_time": end}).
		Where(squirrel.Gt{"end_time": start})
	if excludeID != "" {
		sub = sub.Where(squirrel.NotEq{"id": excludeID})
	}

	sql, args, err := sub.ToSql()
	if err != nil {
		return false, fmt.Errorf("build check overlap query failed: %w", err)
	}

	var exists bool
	if err := t.tx.QueryRow(ctx, "SELECT EXISTS ("+sql+")", args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check overlap failed: %w", err)
	}
	return exists, nil
}

func (t *pgxTx) Insert(ctx context.Context, b *Booking) error {
	query, args, err := t.psql.Insert("public.bookings").
		Columns(
			"service_id", "user_id", "customer_name", "customer_email", "customer_phone",
			"notes", "timezone", "start_time", "end_time", "status",
		).
		Values(
			b.ServiceID, b.UserID, b.CustomerName, b.CustomerEmail, b.CustomerPhone,
			b.Notes, b.Timezone, b.StartTime, b.EndTime, b.Status,
		).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create booking query failed: %w", err)
	}

	if err := t.tx.QueryRow(ctx, query, args...).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrTimeConflict
		}
		return fmt.Errorf("create booking failed: %w", err)
	}
	return nil
}

func (t *pgxTx) GetForUpdate(ctx context.Context, id string) (*Booking, error) {
	query, args, err := t.psql.Select(bookingColumns...).
		From("public.bookings b").
		Join("public.services s ON b.service_id = s.id").
		Where(squirrel.Eq{"b.id": id}).
		Suffix("FOR UPDATE OF b").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lock booking query failed: %w", err)
	}

	b, err := scanBooking(t.tx.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock booking failed: %w", err)
	}
	return b, nil
}

func (t *pgxTx) Update(ctx context.Context, b *Booking) error {
	query, args, err := t.psql.Update("public.bookings").
		Set("start_time", b.StartTime).
		Set("end_time", b.EndTime).
		Set("status", b.Status).
		Set("payment_declined_at", b.PaymentDeclinedAt).
		Set("confirmed_at", b.ConfirmedAt).
		Set("cancelled_at", b.CancelledAt).
		Set("cancel_reason", b.CancelReason).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": b.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update booking query failed: %w", err)
	}

	if err := t.tx.QueryRow(ctx, query, args...).Scan(&b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return ErrTimeConflict
		}
		return fmt.Errorf("update booking failed: %w", err)
	}
	return nil
}

func (t *pgxTx) InsertAudit(ctx context.Context, e *AuditEntry) error {
	query, args, err := t.psql.Insert("public.audit_logs").
		Columns("action", "entity_type", "entity_id", "user_id", "details").
		Values(e.Action, e.EntityType, e.EntityID, e.UserID, e.Details).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert audit query failed: %w", err)
	}

	if err := t.tx.QueryRow(ctx, query, args...).Scan(&e.ID, &e.CreatedAt); err != nil {
		return fmt.Errorf("insert audit failed: %w", err)
	}
	return nil
}
