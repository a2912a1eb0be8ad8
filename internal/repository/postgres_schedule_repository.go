package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/courtbook/courtbook/internal/domain"
	"github.com/courtbook/courtbook/pkg/telemetry"
)

// PostgresScheduleRepository implements ScheduleRepository using PostgreSQL
type PostgresScheduleRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresScheduleRepository creates a new PostgresScheduleRepository
func NewPostgresScheduleRepository(pool *pgxpool.Pool) *PostgresScheduleRepository {
	return &PostgresScheduleRepository{pool: pool}
}

// GetBranch retrieves a branch by ID
func (r *PostgresScheduleRepository) GetBranch(ctx context.Context, id string) (*domain.Branch, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.schedule.get_branch")
	defer span.End()

	span.SetAttributes(attribute.String("branch_id", id))

	query := `
		SELECT id, company_id, name, timezone, created_at, updated_at, deleted_at
		FROM branches
		WHERE id = $1 AND deleted_at IS NULL
	`

	branch := &domain.Branch{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&branch.ID,
		&branch.CompanyID,
		&branch.Name,
		&branch.Timezone,
		&branch.CreatedAt,
		&branch.UpdatedAt,
		&branch.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrBranchNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get branch: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return branch, nil
}

// GetCourt retrieves a court by ID
func (r *PostgresScheduleRepository) GetCourt(ctx context.Context, id string) (*domain.Court, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.schedule.get_court")
	defer span.End()

	span.SetAttributes(attribute.String("court_id", id))

	query := `
		SELECT id, branch_id, name, hourly_rate, currency, status, created_at, updated_at, deleted_at
		FROM courts
		WHERE id = $1
	`

	court, err := scanCourt(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrCourtNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get court: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return court, nil
}

// ListCourts returns all non-deleted courts of a branch, stable order
func (r *PostgresScheduleRepository) ListCourts(ctx context.Context, branchID string) ([]*domain.Court, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.schedule.list_courts")
	defer span.End()

	span.SetAttributes(attribute.String("branch_id", branchID))

	query := `
		SELECT id, branch_id, name, hourly_rate, currency, status, created_at, updated_at, deleted_at
		FROM courts
		WHERE branch_id = $1 AND deleted_at IS NULL
		ORDER BY name, id
	`

	rows, err := r.pool.Query(ctx, query, branchID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list courts: %w", err)
	}
	defer rows.Close()

	var courts []*domain.Court
	for rows.Next() {
		court, err := scanCourt(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		courts = append(courts, court)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("error iterating courts: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(courts)))
	span.SetStatus(codes.Ok, "")
	return courts, nil
}

// GetBusinessHours returns the weekly schedule of a branch
func (r *PostgresScheduleRepository) GetBusinessHours(ctx context.Context, branchID string) ([]*domain.BusinessHours, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.schedule.get_business_hours")
	defer span.End()

	span.SetAttributes(attribute.String("branch_id", branchID))

	query := `
		SELECT id, branch_id, day_of_week, open_minute, close_minute, closed, created_at, updated_at
		FROM business_hours
		WHERE branch_id = $1
		ORDER BY day_of_week
	`

	rows, err := r.pool.Query(ctx, query, branchID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get business hours: %w", err)
	}
	defer rows.Close()

	var hours []*domain.BusinessHours
	for rows.Next() {
		h := &domain.BusinessHours{}
		var open, close int
		if err := rows.Scan(&h.ID, &h.BranchID, &h.DayOfWeek, &open, &close, &h.Closed, &h.CreatedAt, &h.UpdatedAt); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan business hours: %w", err)
		}
		h.OpenMinute = domain.MinutesOfDay(open)
		h.CloseMinute = domain.MinutesOfDay(close)
		hours = append(hours, h)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("error iterating business hours: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(hours)))
	span.SetStatus(codes.Ok, "")
	return hours, nil
}

// GetSpecialHours returns the override for a calendar date, or nil
func (r *PostgresScheduleRepository) GetSpecialHours(ctx context.Context, branchID string, date time.Time) (*domain.SpecialHours, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.schedule.get_special_hours")
	defer span.End()

	span.SetAttributes(
		attribute.String("branch_id", branchID),
		attribute.String("date", date.Format("2006-01-02")),
	)

	query := `
		SELECT id, branch_id, date, open_minute, close_minute, closed, created_at, updated_at
		FROM special_hours
		WHERE branch_id = $1 AND date = $2
	`

	h := &domain.SpecialHours{}
	var open, close int
	err := r.pool.QueryRow(ctx, query, branchID, date).Scan(
		&h.ID, &h.BranchID, &h.Date, &open, &close, &h.Closed, &h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "no override")
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get special hours: %w", err)
	}
	h.OpenMinute = domain.MinutesOfDay(open)
	h.CloseMinute = domain.MinutesOfDay(close)

	span.SetStatus(codes.Ok, "")
	return h, nil
}

// ListResourceBlocks returns active blocks overlapping the window
func (r *PostgresScheduleRepository) ListResourceBlocks(ctx context.Context, branchID string, window domain.TimeWindow) ([]*domain.ResourceBlock, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.schedule.list_resource_blocks")
	defer span.End()

	span.SetAttributes(attribute.String("branch_id", branchID))

	query := `
		SELECT id, branch_id, court_id, start_time, end_time, reason, active, created_at, updated_at, deleted_at
		FROM resource_blocks
		WHERE branch_id = $1
			AND active
			AND deleted_at IS NULL
			AND start_time < $3
			AND $2 < end_time
		ORDER BY start_time, id
	`

	rows, err := r.pool.Query(ctx, query, branchID, window.Start, window.End)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list resource blocks: %w", err)
	}
	defer rows.Close()

	var blocks []*domain.ResourceBlock
	for rows.Next() {
		b := &domain.ResourceBlock{}
		var start, end time.Time
		var reason string
		if err := rows.Scan(&b.ID, &b.BranchID, &b.CourtID, &start, &end, &reason, &b.Active, &b.CreatedAt, &b.UpdatedAt, &b.DeletedAt); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan resource block: %w", err)
		}
		w, err := domain.NewTimeWindow(start, end)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("resource block %s has invalid window: %w", b.ID, err)
		}
		b.Window = w
		b.Reason = domain.BlockReason(reason)
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("error iterating resource blocks: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(blocks)))
	span.SetStatus(codes.Ok, "")
	return blocks, nil
}

// ListRateRules returns active rules valid on the given day. Branch-wide
// rules sort before court-specific ones so that a later, more specific
// match wins during resolution.
func (r *PostgresScheduleRepository) ListRateRules(ctx context.Context, branchID string, at time.Time) ([]*domain.RateRule, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.schedule.list_rate_rules")
	defer span.End()

	span.SetAttributes(attribute.String("branch_id", branchID))

	query := `
		SELECT id, branch_id, court_id, day_of_week, start_minute, end_minute,
			rate_per_hour, valid_from, valid_until, active, created_at, updated_at, deleted_at
		FROM rate_rules
		WHERE branch_id = $1
			AND active
			AND deleted_at IS NULL
			AND valid_from <= $2
			AND (valid_until IS NULL OR valid_until >= $3)
		ORDER BY (court_id IS NOT NULL), created_at, id
	`

	dayEnd := at.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	dayStart := dayEnd.Add(-24 * time.Hour)

	rows, err := r.pool.Query(ctx, query, branchID, dayEnd, dayStart)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list rate rules: %w", err)
	}
	defer rows.Close()

	var rules []*domain.RateRule
	for rows.Next() {
		rule := &domain.RateRule{}
		var start, end int
		if err := rows.Scan(
			&rule.ID, &rule.BranchID, &rule.CourtID, &rule.DayOfWeek, &start, &end,
			&rule.RatePerHour, &rule.ValidFrom, &rule.ValidUntil, &rule.Active,
			&rule.CreatedAt, &rule.UpdatedAt, &rule.DeletedAt,
		); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan rate rule: %w", err)
		}
		rule.StartMinute = domain.MinutesOfDay(start)
		rule.EndMinute = domain.MinutesOfDay(end)
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("error iterating rate rules: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(rules)))
	span.SetStatus(codes.Ok, "")
	return rules, nil
}

func scanCourt(row pgx.Row) (*domain.Court, error) {
	court := &domain.Court{}
	var status string

	err := row.Scan(
		&court.ID,
		&court.BranchID,
		&court.Name,
		&court.HourlyRate,
		&court.Currency,
		&status,
		&court.CreatedAt,
		&court.UpdatedAt,
		&court.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan court: %w", err)
	}

	court.Status = domain.CourtStatus(status)
	return court, nil
}

// Ensure PostgresScheduleRepository implements ScheduleRepository
var _ ScheduleRepository = (*PostgresScheduleRepository)(nil)
