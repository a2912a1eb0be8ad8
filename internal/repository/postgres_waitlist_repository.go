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

// PostgresWaitlistRepository implements WaitlistRepository using PostgreSQL
type PostgresWaitlistRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresWaitlistRepository creates a new PostgresWaitlistRepository
func NewPostgresWaitlistRepository(pool *pgxpool.Pool) *PostgresWaitlistRepository {
	return &PostgresWaitlistRepository{pool: pool}
}

const waitlistColumns = `
	id, branch_id, court_id, service_id, user_id,
	start_time, end_time, priority, status, expires_at,
	booking_id, created_at, updated_at, deleted_at
`

// Create inserts a new waitlist entry
func (r *PostgresWaitlistRepository) Create(ctx context.Context, entry *domain.BookingWaitlist) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.waitlist.create")
	defer span.End()

	span.SetAttributes(
		attribute.String("waitlist_id", entry.ID),
		attribute.String("court_id", entry.CourtID),
		attribute.String("user_id", entry.UserID),
	)

	query := `
		INSERT INTO booking_waitlists (
			id, branch_id, court_id, service_id, user_id,
			start_time, end_time, priority, status, expires_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.BranchID,
		entry.CourtID,
		entry.ServiceID,
		entry.UserID,
		entry.Window.Start,
		entry.Window.End,
		entry.Priority,
		string(entry.Status),
		entry.ExpiresAt,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create waitlist entry: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByID retrieves a waitlist entry by ID
func (r *PostgresWaitlistRepository) GetByID(ctx context.Context, id string) (*domain.BookingWaitlist, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.waitlist.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("waitlist_id", id))

	query := `SELECT ` + waitlistColumns + ` FROM booking_waitlists WHERE id = $1 AND deleted_at IS NULL`

	entry, err := scanWaitlist(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrWaitlistNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get waitlist entry: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return entry, nil
}

// ListActiveBySlot returns active entries for the court whose windows
// overlap, priority order
func (r *PostgresWaitlistRepository) ListActiveBySlot(ctx context.Context, courtID string, window domain.TimeWindow) ([]*domain.BookingWaitlist, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.waitlist.list_active_by_slot")
	defer span.End()

	span.SetAttributes(attribute.String("court_id", courtID))

	query := `
		SELECT ` + waitlistColumns + `
		FROM booking_waitlists
		WHERE court_id = $1
			AND status = 'active'
			AND deleted_at IS NULL
			AND start_time < $3
			AND $2 < end_time
		ORDER BY priority, created_at, id
	`

	rows, err := r.pool.Query(ctx, query, courtID, window.Start, window.End)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list waitlist entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.BookingWaitlist
	for rows.Next() {
		entry, err := scanWaitlist(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("error iterating waitlist entries: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(entries)))
	span.SetStatus(codes.Ok, "")
	return entries, nil
}

// MarkPromoted links the entry to the booking created for it
func (r *PostgresWaitlistRepository) MarkPromoted(ctx context.Context, id, bookingID string, at time.Time) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.waitlist.mark_promoted")
	defer span.End()

	span.SetAttributes(
		attribute.String("waitlist_id", id),
		attribute.String("booking_id", bookingID),
	)

	query := `
		UPDATE booking_waitlists SET
			status = 'promoted',
			booking_id = $2,
			updated_at = $3
		WHERE id = $1 AND status = 'active' AND deleted_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, id, bookingID, at)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to mark waitlist entry promoted: %w", err)
	}

	if result.RowsAffected() == 0 {
		var status string
		err := r.pool.QueryRow(ctx, "SELECT status FROM booking_waitlists WHERE id = $1 AND deleted_at IS NULL", id).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				span.SetStatus(codes.Error, "not found")
				return domain.ErrWaitlistNotFound
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("failed to check waitlist status: %w", err)
		}
		if domain.WaitlistStatus(status) == domain.WaitlistStatusPromoted {
			span.SetStatus(codes.Error, "already promoted")
			return domain.ErrAlreadyPromoted
		}
		span.SetStatus(codes.Error, "inactive")
		return domain.ErrWaitlistInactive
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// ExpireStale flips active entries past their deadline to expired
func (r *PostgresWaitlistRepository) ExpireStale(ctx context.Context, now time.Time, limit int) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.waitlist.expire_stale")
	defer span.End()

	span.SetAttributes(attribute.Int("limit", limit))

	query := `
		UPDATE booking_waitlists SET
			status = 'expired',
			updated_at = $1
		WHERE id IN (
			SELECT id FROM booking_waitlists
			WHERE status = 'active'
				AND expires_at < $1
				AND deleted_at IS NULL
			ORDER BY expires_at
			LIMIT $2
		)
	`

	result, err := r.pool.Exec(ctx, query, now, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to expire waitlist entries: %w", err)
	}

	count := int(result.RowsAffected())
	span.SetAttributes(attribute.Int("count", count))
	span.SetStatus(codes.Ok, "")
	return count, nil
}

// Remove soft-removes a user's own entry
func (r *PostgresWaitlistRepository) Remove(ctx context.Context, id, userID string) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.waitlist.remove")
	defer span.End()

	span.SetAttributes(
		attribute.String("waitlist_id", id),
		attribute.String("user_id", userID),
	)

	query := `
		UPDATE booking_waitlists SET
			status = 'removed',
			updated_at = $3
		WHERE id = $1 AND user_id = $2 AND status = 'active' AND deleted_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, id, userID, time.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to remove waitlist entry: %w", err)
	}

	if result.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "not found")
		return domain.ErrWaitlistNotFound
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func scanWaitlist(row pgx.Row) (*domain.BookingWaitlist, error) {
	entry := &domain.BookingWaitlist{}
	var (
		start, end time.Time
		status     string
	)

	err := row.Scan(
		&entry.ID,
		&entry.BranchID,
		&entry.CourtID,
		&entry.ServiceID,
		&entry.UserID,
		&start,
		&end,
		&entry.Priority,
		&status,
		&entry.ExpiresAt,
		&entry.BookingID,
		&entry.CreatedAt,
		&entry.UpdatedAt,
		&entry.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan waitlist entry: %w", err)
	}

	window, err := domain.NewTimeWindow(start, end)
	if err != nil {
		return nil, fmt.Errorf("waitlist entry %s has invalid window: %w", entry.ID, err)
	}
	entry.Window = window
	entry.Status = domain.WaitlistStatus(status)

	return entry, nil
}

// Ensure PostgresWaitlistRepository implements WaitlistRepository
var _ WaitlistRepository = (*PostgresWaitlistRepository)(nil)
