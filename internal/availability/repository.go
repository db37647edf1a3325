package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	CreateRule(ctx context.Context, r *Rule) error
	GetRule(ctx context.Context, id string) (*Rule, error)
	ListRulesForService(ctx context.Context, serviceID string, activeOnly bool) ([]*Rule, error)
	UpdateRule(ctx context.Context, r *Rule) error
	DeleteRule(ctx context.Context, id string) error

	CreateBlackout(ctx context.Context, b *Blackout) error
	GetBlackout(ctx context.Context, id string) (*Blackout, error)
	ListBlackouts(ctx context.Context, filter BlackoutFilter) ([]*Blackout, int, error)
	UpdateBlackout(ctx context.Context, b *Blackout) error
	DeleteBlackout(ctx context.Context, id string) error
}

var (
	ruleColumns     = []string{"id", "service_id", "day_of_week", "start_time", "end_time", "timezone", "is_active", "created_at", "updated_at"}
	blackoutColumns = []string{"id", "service_id", "start_date", "end_date", "reason", "is_active", "created_at"}
)

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

func scanRule(row pgx.Row) (*Rule, error) {
	var r Rule
	if err := row.Scan(
		&r.ID, &r.ServiceID, &r.DayOfWeek, &r.StartTime, &r.EndTime,
		&r.Timezone, &r.IsActive, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanBlackout(row pgx.Row, extra ...any) (*Blackout, error) {
	var b Blackout
	dest := []any{&b.ID, &b.ServiceID, &b.StartDate, &b.EndDate, &b.Reason, &b.IsActive, &b.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &b, nil
}

// === Rules ===

func (r *pgxRepository) CreateRule(ctx context.Context, rule *Rule) error {
	query, args, err := r.psql.Insert("public.availability_rules").
		Columns("service_id", "day_of_week", "start_time", "end_time", "timezone", "is_active").
		Values(rule.ServiceID, int(rule.DayOfWeek), rule.StartTime, rule.EndTime, rule.Timezone, rule.IsActive).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create rule query failed: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
		return fmt.Errorf("create rule failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetRule(ctx context.Context, id string) (*Rule, error) {
	query, args, err := r.psql.Select(ruleColumns...).
		From("public.availability_rules").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get rule query failed: %w", err)
	}

	rule, err := scanRule(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("get rule failed: %w", err)
	}
	return rule, nil
}

func (r *pgxRepository) ListRulesForService(ctx context.Context, serviceID string, activeOnly bool) ([]*Rule, error) {
	query := r.psql.Select(ruleColumns...).
		From("public.availability_rules").
		Where(squirrel.Eq{"service_id": serviceID})
	if activeOnly {
		query = query.Where(squirrel.Eq{"is_active": true})
	}

	sql, args, err := query.OrderBy("day_of_week ASC", "start_time ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list rules query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list rules failed: %w", err)
	}
	defer rows.Close()

	var rules []*Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule failed: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules failed: %w", err)
	}
	return rules, nil
}

func (r *pgxRepository) UpdateRule(ctx context.Context, rule *Rule) error {
	query, args, err := r.psql.Update("public.availability_rules").
		Set("day_of_week", int(rule.DayOfWeek)).
		Set("start_time", rule.StartTime).
		Set("end_time", rule.EndTime).
		Set("timezone", rule.Timezone).
		Set("is_active", rule.IsActive).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": rule.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update rule query failed: %w", err)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update rule failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (r *pgxRepository) DeleteRule(ctx context.Context, id string) error {
	query, args, err := r.psql.Delete("public.availability_rules").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete rule query failed: %w", err)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete rule failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// === Blackouts ===

func (r *pgxRepository) CreateBlackout(ctx context.Context, b *Blackout) error {
	query, args, err := r.psql.Insert("public.blackouts").
		Columns("service_id", "start_date", "end_date", "reason", "is_active").
		Values(b.ServiceID, b.StartDate, b.EndDate, b.Reason, b.IsActive).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create blackout query failed: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&b.ID, &b.CreatedAt); err != nil {
		return fmt.Errorf("create blackout failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetBlackout(ctx context.Context, id string) (*Blackout, error) {
	query, args, err := r.psql.Select(blackoutColumns...).
		From("public.blackouts").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get blackout query failed: %w", err)
	}

	b, err := scanBlackout(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlackoutNotFound
		}
		return nil, fmt.Errorf("get blackout failed: %w", err)
	}
	return b, nil
}

// ListBlackouts returns blackouts intersecting [From, To]. With a ServiceID
// set, global blackouts are included alongside the service's own.
func (r *pgxRepository) ListBlackouts(ctx context.Context, filter BlackoutFilter) ([]*Blackout, int, error) {
	query := r.psql.Select(append(blackoutColumns, "count(*) OVER() AS total_count")...).
		From("public.blackouts")

	if filter.ServiceID != "" {
		query = query.Where(squirrel.Or{
			squirrel.Eq{"service_id": nil},
			squirrel.Eq{"service_id": filter.ServiceID},
		})
	}
	if filter.ActiveOnly {
		query = query.Where(squirrel.Eq{"is_active": true})
	}
	if filter.From != nil {
		query = query.Where(squirrel.GtOrEq{"end_date": *filter.From})
	}
	if filter.To != nil {
		query = query.Where(squirrel.LtOrEq{"start_date": *filter.To})
	}

	query = query.OrderBy("start_date ASC")
	if filter.PageSize > 0 {
		if filter.Page < 1 {
			filter.Page = 1
		}
		query = query.Limit(uint64(filter.PageSize)).Offset(uint64((filter.Page - 1) * filter.PageSize))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list blackouts query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list blackouts failed: %w", err)
	}
	defer rows.Close()

	var result []*Blackout
	var total int
	for rows.Next() {
		b, err := scanBlackout(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan blackout failed: %w", err)
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate blackouts failed: %w", err)
	}
	return result, total, nil
}

func (r *pgxRepository) UpdateBlackout(ctx context.Context, b *Blackout) error {
	query, args, err := r.psql.Update("public.blackouts").
		Set("start_date", b.StartDate).
		Set("end_date", b.EndDate).
		Set("reason", b.Reason).
		Set("is_active", b.IsActive).
		Where(squirrel.Eq{"id": b.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update blackout query failed: %w", err)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update blackout failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrBlackoutNotFound
	}
	return nil
}

func (r *pgxRepository) DeleteBlackout(ctx context.Context, id string) error {
	query, args, err := r.psql.Delete("public.blackouts").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete blackout query failed: %w", err)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete blackout failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrBlackoutNotFound
	}
	return nil
}
