package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/courtbook/courtbook/internal/domain"
	"github.com/courtbook/courtbook/pkg/telemetry"
)

// PostgresBookingRepository implements BookingRepository using PostgreSQL with pgxpool
type PostgresBookingRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresBookingRepository creates a new PostgresBookingRepository
func NewPostgresBookingRepository(pool *pgxpool.Pool) *PostgresBookingRepository {
	return &PostgresBookingRepository{pool: pool}
}

const bookingColumns = `
	id, booking_number, company_id, branch_id, user_id,
	status, payment_status, payment_id,
	subtotal, discount_amount, tax_amount, fee_amount, total_amount,
	currency, promo_code, idempotency_key,
	cancelled_at, cancelled_by, cancel_reason,
	confirmed_at, expires_at, created_at, updated_at, deleted_at
`

// CreateBooking commits a booking inside one transaction. Requested court
// rows are locked in a stable order, then every item window is re-checked
// against live bookings and active blocks before any insert happens.
func (r *PostgresBookingRepository) CreateBooking(ctx context.Context, booking *domain.Booking) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.create")
	defer span.End()

	span.SetAttributes(
		attribute.String("booking_id", booking.ID),
		attribute.String("branch_id", booking.BranchID),
		attribute.String("user_id", booking.UserID),
		attribute.Int("item_count", len(booking.Items)),
	)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := r.lockCourts(ctx, tx, booking); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	for _, item := range booking.Items {
		if err := r.checkSlot(ctx, tx, booking.BranchID, item); err != nil {
			span.SetAttributes(attribute.String("conflict_court_id", item.CourtID))
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	if err := r.insertBooking(ctx, tx, booking); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to commit booking: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// lockCourts takes row locks on every requested court in a stable order so
// concurrent bookings for the same courts serialize instead of deadlocking.
func (r *PostgresBookingRepository) lockCourts(ctx context.Context, tx pgx.Tx, booking *domain.Booking) error {
	seen := make(map[string]bool, len(booking.Items))
	courtIDs := make([]string, 0, len(booking.Items))
	for _, item := range booking.Items {
		if !seen[item.CourtID] {
			seen[item.CourtID] = true
			courtIDs = append(courtIDs, item.CourtID)
		}
	}

	query := `
		SELECT id, status, deleted_at
		FROM courts
		WHERE id = ANY($1) AND branch_id = $2
		ORDER BY id
		FOR UPDATE
	`

	rows, err := tx.Query(ctx, query, courtIDs, booking.BranchID)
	if err != nil {
		return fmt.Errorf("failed to lock courts: %w", err)
	}
	defer rows.Close()

	locked := 0
	for rows.Next() {
		var (
			id        string
			status    string
			deletedAt *time.Time
		)
		if err := rows.Scan(&id, &status, &deletedAt); err != nil {
			return fmt.Errorf("failed to scan court row: %w", err)
		}
		if domain.CourtStatus(status) != domain.CourtStatusActive || deletedAt != nil {
			return domain.ErrCourtUnavailable
		}
		locked++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating court rows: %w", err)
	}

	if locked != len(courtIDs) {
		return domain.ErrCourtNotFound
	}
	return nil
}

// checkSlot verifies inside the transaction that the item's window is free
// of live bookings and active resource blocks.
func (r *PostgresBookingRepository) checkSlot(ctx context.Context, tx pgx.Tx, branchID string, item *domain.BookingItem) error {
	overlapQuery := `
		SELECT EXISTS(
			SELECT 1
			FROM booking_items bi
			JOIN bookings b ON b.id = bi.booking_id
			WHERE bi.court_id = $1
				AND b.status NOT IN ('cancelled', 'expired')
				AND b.deleted_at IS NULL
				AND bi.start_time < $3
				AND $2 < bi.end_time
		)
	`

	var taken bool
	err := tx.QueryRow(ctx, overlapQuery, item.CourtID, item.Window.Start, item.Window.End).Scan(&taken)
	if err != nil {
		return fmt.Errorf("failed to check slot overlap: %w", err)
	}
	if taken {
		return domain.ErrSlotUnavailable
	}

	blockQuery := `
		SELECT EXISTS(
			SELECT 1
			FROM resource_blocks
			WHERE branch_id = $1
				AND active
				AND deleted_at IS NULL
				AND (court_id IS NULL OR court_id = $2)
				AND start_time < $4
				AND $3 < end_time
		)
	`

	var blocked bool
	err = tx.QueryRow(ctx, blockQuery, branchID, item.CourtID, item.Window.Start, item.Window.End).Scan(&blocked)
	if err != nil {
		return fmt.Errorf("failed to check resource blocks: %w", err)
	}
	if blocked {
		return domain.ErrSlotBlocked
	}

	return nil
}

func (r *PostgresBookingRepository) insertBooking(ctx context.Context, tx pgx.Tx, booking *domain.Booking) error {
	bookingQuery := `
		INSERT INTO bookings (
			id, booking_number, company_id, branch_id, user_id,
			status, payment_status,
			subtotal, discount_amount, tax_amount, fee_amount, total_amount,
			currency, promo_code, idempotency_key,
			expires_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15,
			$16, $17, $18
		)
	`

	_, err := tx.Exec(ctx, bookingQuery,
		booking.ID,
		booking.BookingNumber,
		booking.CompanyID,
		booking.BranchID,
		booking.UserID,
		booking.Status.String(),
		booking.PaymentStatus.String(),
		booking.Subtotal,
		booking.DiscountAmount,
		booking.TaxAmount,
		booking.FeeAmount,
		booking.TotalAmount,
		booking.Currency,
		nullString(booking.PromoCode),
		nullString(booking.IdempotencyKey),
		booking.ExpiresAt,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	itemQuery := `
		INSERT INTO booking_items (
			id, booking_id, court_id, service_id,
			start_time, end_time, duration_minutes,
			unit_price, subtotal, total, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	participantQuery := `
		INSERT INTO booking_participants (
			id, booking_item_id, user_id,
			guest_name, guest_email, guest_phone,
			is_primary, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, item := range booking.Items {
		_, err := tx.Exec(ctx, itemQuery,
			item.ID,
			booking.ID,
			item.CourtID,
			item.ServiceID,
			item.Window.Start,
			item.Window.End,
			item.DurationMinutes,
			item.UnitPrice,
			item.Subtotal,
			item.Total,
			item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert booking item: %w", err)
		}

		for _, p := range item.Participants {
			_, err := tx.Exec(ctx, participantQuery,
				p.ID,
				item.ID,
				p.UserID,
				nullString(p.GuestName),
				nullString(p.GuestEmail),
				nullString(p.GuestPhone),
				p.IsPrimary,
				p.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert booking participant: %w", err)
			}
		}
	}

	entry := domain.NewChangeLog(booking.ID, domain.ChangeTypeCreated, "", booking.Status.String(), "", booking.UserID, booking.CreatedAt)
	entry.ID = uuid.New().String()
	if err := insertChangeLog(ctx, tx, entry); err != nil {
		return err
	}

	return nil
}

// GetByID retrieves a booking with its items and participants
func (r *PostgresBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("booking_id", id))

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 AND deleted_at IS NULL`

	row := r.pool.QueryRow(ctx, query, id)
	booking, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrBookingNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	if err := r.loadItems(ctx, booking); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return booking, nil
}

// GetByIdempotencyKey retrieves a prior booking by idempotency key.
// Returns nil without error when no booking used the key.
func (r *PostgresBookingRepository) GetByIdempotencyKey(ctx context.Context, companyID, key string) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.get_by_idempotency_key")
	defer span.End()

	span.SetAttributes(attribute.String("idempotency_key", key))

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE company_id = $1 AND idempotency_key = $2 AND deleted_at IS NULL`

	row := r.pool.QueryRow(ctx, query, companyID, key)
	booking, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "not found")
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get booking by idempotency key: %w", err)
	}

	if err := r.loadItems(ctx, booking); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("booking_id", booking.ID))
	span.SetStatus(codes.Ok, "")
	return booking, nil
}

// ListByUser retrieves a user's bookings, newest first
func (r *PostgresBookingRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.list_by_user")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.Int("limit", limit),
		attribute.Int("offset", offset),
	)

	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	bookings, err := r.queryBookings(ctx, query, userID, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(bookings)))
	span.SetStatus(codes.Ok, "")
	return bookings, nil
}

// ListByBranch retrieves bookings whose items overlap the window
func (r *PostgresBookingRepository) ListByBranch(ctx context.Context, branchID string, window domain.TimeWindow, limit, offset int) ([]*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.list_by_branch")
	defer span.End()

	span.SetAttributes(
		attribute.String("branch_id", branchID),
		attribute.Int("limit", limit),
		attribute.Int("offset", offset),
	)

	query := `
		SELECT DISTINCT ` + bookingColumns + `
		FROM bookings
		WHERE branch_id = $1
			AND deleted_at IS NULL
			AND id IN (
				SELECT booking_id FROM booking_items
				WHERE start_time < $3 AND $2 < end_time
			)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`

	bookings, err := r.queryBookings(ctx, query, branchID, window.Start, window.End, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(bookings)))
	span.SetStatus(codes.Ok, "")
	return bookings, nil
}

// ItemsInWindow returns slot-holding items of live bookings overlapping the window
func (r *PostgresBookingRepository) ItemsInWindow(ctx context.Context, branchID string, window domain.TimeWindow) ([]*domain.BookingItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.items_in_window")
	defer span.End()

	span.SetAttributes(attribute.String("branch_id", branchID))

	query := `
		SELECT
			bi.id, bi.booking_id, bi.court_id, bi.service_id,
			bi.start_time, bi.end_time, bi.duration_minutes,
			bi.unit_price, bi.subtotal, bi.total, bi.created_at
		FROM booking_items bi
		JOIN bookings b ON b.id = bi.booking_id
		WHERE b.branch_id = $1
			AND b.status NOT IN ('cancelled', 'expired')
			AND b.deleted_at IS NULL
			AND bi.start_time < $3
			AND $2 < bi.end_time
		ORDER BY bi.court_id, bi.start_time
	`

	rows, err := r.pool.Query(ctx, query, branchID, window.Start, window.End)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get items in window: %w", err)
	}
	defer rows.Close()

	var items []*domain.BookingItem
	for rows.Next() {
		item, err := scanBookingItem(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("error iterating booking items: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(items)))
	span.SetStatus(codes.Ok, "")
	return items, nil
}

// Confirm transitions a pending booking to confirmed
func (r *PostgresBookingRepository) Confirm(ctx context.Context, id, paymentID string, at time.Time) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.confirm")
	defer span.End()

	span.SetAttributes(
		attribute.String("booking_id", id),
		attribute.String("payment_id", paymentID),
	)

	query := `
		UPDATE bookings SET
			status = $2,
			payment_status = $3,
			payment_id = $4,
			confirmed_at = $5,
			expires_at = NULL,
			updated_at = $5
		WHERE id = $1 AND status = 'pending' AND deleted_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, id,
		domain.BookingStatusConfirmed.String(),
		domain.PaymentStatusSucceeded.String(),
		nullString(paymentID),
		at,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to confirm booking: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.classifyGuardFailure(ctx, span, id, domain.BookingStatusConfirmed)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Cancel transitions a pending or confirmed booking to cancelled
func (r *PostgresBookingRepository) Cancel(ctx context.Context, id, byUserID, reason string, at time.Time) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.cancel")
	defer span.End()

	span.SetAttributes(attribute.String("booking_id", id))

	query := `
		UPDATE bookings SET
			status = $2,
			cancelled_at = $3,
			cancelled_by = $4,
			cancel_reason = $5,
			updated_at = $3
		WHERE id = $1 AND status IN ('pending', 'confirmed') AND deleted_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, id,
		domain.BookingStatusCancelled.String(),
		at,
		nullString(byUserID),
		nullString(reason),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to cancel booking: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.classifyGuardFailure(ctx, span, id, domain.BookingStatusCancelled)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// MarkExpired transitions a pending booking to expired
func (r *PostgresBookingRepository) MarkExpired(ctx context.Context, id string, at time.Time) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.mark_expired")
	defer span.End()

	span.SetAttributes(attribute.String("booking_id", id))

	query := `
		UPDATE bookings SET
			status = $2,
			updated_at = $3
		WHERE id = $1 AND status = 'pending' AND deleted_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, id, domain.BookingStatusExpired.String(), at)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to mark booking as expired: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.classifyGuardFailure(ctx, span, id, domain.BookingStatusExpired)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// classifyGuardFailure resolves why a guarded status update matched no rows
func (r *PostgresBookingRepository) classifyGuardFailure(ctx context.Context, span trace.Span, id string, target domain.BookingStatus) error {
	var status string
	err := r.pool.QueryRow(ctx, "SELECT status FROM bookings WHERE id = $1 AND deleted_at IS NULL", id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return domain.ErrBookingNotFound
		}
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to check booking status: %w", err)
	}

	current := domain.BookingStatus(status)
	switch {
	case current == target && target == domain.BookingStatusCancelled:
		span.SetStatus(codes.Error, "already cancelled")
		return domain.ErrAlreadyCancelled
	case current == target && target == domain.BookingStatusConfirmed:
		span.SetStatus(codes.Error, "already confirmed")
		return domain.ErrAlreadyConfirmed
	case current.IsTerminal():
		span.SetStatus(codes.Error, "finalized")
		return domain.ErrBookingFinalized
	default:
		span.SetStatus(codes.Error, "invalid transition")
		return domain.ErrInvalidTransition
	}
}

// GetExpiredPending returns pending bookings whose hold deadline passed
func (r *PostgresBookingRepository) GetExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.get_expired_pending")
	defer span.End()

	span.SetAttributes(attribute.Int("limit", limit))

	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'pending'
			AND expires_at IS NOT NULL
			AND expires_at < $1
			AND deleted_at IS NULL
		ORDER BY expires_at
		LIMIT $2
	`

	bookings, err := r.queryBookings(ctx, query, now, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(bookings)))
	span.SetStatus(codes.Ok, "")
	return bookings, nil
}

// CountActiveByUser counts a user's pending plus confirmed bookings in a branch
func (r *PostgresBookingRepository) CountActiveByUser(ctx context.Context, userID, branchID string) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.count_active_by_user")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("branch_id", branchID),
	)

	query := `
		SELECT COUNT(*) FROM bookings
		WHERE user_id = $1 AND branch_id = $2
			AND status IN ('pending', 'confirmed')
			AND deleted_at IS NULL
	`

	var count int
	if err := r.pool.QueryRow(ctx, query, userID, branchID).Scan(&count); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to count active bookings: %w", err)
	}

	span.SetAttributes(attribute.Int("count", count))
	span.SetStatus(codes.Ok, "")
	return count, nil
}

// UpdatePaymentStatus records a payment state change, guarded on the
// current payment status
func (r *PostgresBookingRepository) UpdatePaymentStatus(ctx context.Context, id string, from, to domain.PaymentStatus, paymentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.update_payment_status")
	defer span.End()

	span.SetAttributes(
		attribute.String("booking_id", id),
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	)

	query := `
		UPDATE bookings SET
			payment_status = $2,
			payment_id = COALESCE($3, payment_id),
			updated_at = $4
		WHERE id = $1 AND payment_status = $5 AND deleted_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, id, to.String(), nullString(paymentID), time.Now(), from.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM bookings WHERE id = $1 AND deleted_at IS NULL)", id).Scan(&exists); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("failed to check booking existence: %w", err)
		}
		if !exists {
			span.SetStatus(codes.Error, "not found")
			return domain.ErrBookingNotFound
		}
		span.SetStatus(codes.Error, "invalid payment transition")
		return domain.ErrInvalidTransition
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// AppendChangeLog appends an audit entry
func (r *PostgresBookingRepository) AppendChangeLog(ctx context.Context, entry *domain.BookingChangeLog) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.append_change_log")
	defer span.End()

	span.SetAttributes(
		attribute.String("booking_id", entry.BookingID),
		attribute.String("change_type", string(entry.ChangeType)),
	)

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	if err := insertChangeLog(ctx, r.pool, entry); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// ListChangeLogs returns a booking's audit trail, oldest first
func (r *PostgresBookingRepository) ListChangeLogs(ctx context.Context, bookingID string) ([]*domain.BookingChangeLog, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.list_change_logs")
	defer span.End()

	span.SetAttributes(attribute.String("booking_id", bookingID))

	query := `
		SELECT id, booking_id, change_type, old_value, new_value, reason, changed_by, changed_at
		FROM booking_change_logs
		WHERE booking_id = $1
		ORDER BY changed_at, id
	`

	rows, err := r.pool.Query(ctx, query, bookingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list change logs: %w", err)
	}
	defer rows.Close()

	var entries []*domain.BookingChangeLog
	for rows.Next() {
		entry := &domain.BookingChangeLog{}
		var changeType string
		var oldValue, newValue, reason, changedBy *string
		if err := rows.Scan(&entry.ID, &entry.BookingID, &changeType, &oldValue, &newValue, &reason, &changedBy, &entry.ChangedAt); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan change log: %w", err)
		}
		entry.ChangeType = domain.ChangeType(changeType)
		entry.OldValue = derefString(oldValue)
		entry.NewValue = derefString(newValue)
		entry.Reason = derefString(reason)
		entry.ChangedBy = derefString(changedBy)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("error iterating change logs: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(entries)))
	span.SetStatus(codes.Ok, "")
	return entries, nil
}

// queryBookings runs a bookings query and loads items for each result
func (r *PostgresBookingRepository) queryBookings(ctx context.Context, query string, args ...interface{}) ([]*domain.Booking, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bookings: %w", err)
	}

	for _, booking := range bookings {
		if err := r.loadItems(ctx, booking); err != nil {
			return nil, err
		}
	}
	return bookings, nil
}

// loadItems populates a booking's items and their participants
func (r *PostgresBookingRepository) loadItems(ctx context.Context, booking *domain.Booking) error {
	itemQuery := `
		SELECT
			id, booking_id, court_id, service_id,
			start_time, end_time, duration_minutes,
			unit_price, subtotal, total, created_at
		FROM booking_items
		WHERE booking_id = $1
		ORDER BY start_time, id
	`

	rows, err := r.pool.Query(ctx, itemQuery, booking.ID)
	if err != nil {
		return fmt.Errorf("failed to load booking items: %w", err)
	}
	defer rows.Close()

	var items []*domain.BookingItem
	for rows.Next() {
		item, err := scanBookingItem(rows)
		if err != nil {
			return err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating booking items: %w", err)
	}
	booking.Items = items

	if len(items) == 0 {
		return nil
	}

	itemIDs := make([]string, len(items))
	byID := make(map[string]*domain.BookingItem, len(items))
	for i, item := range items {
		itemIDs[i] = item.ID
		byID[item.ID] = item
	}

	participantQuery := `
		SELECT
			id, booking_item_id, user_id,
			guest_name, guest_email, guest_phone,
			is_primary, created_at
		FROM booking_participants
		WHERE booking_item_id = ANY($1)
		ORDER BY created_at, id
	`

	pRows, err := r.pool.Query(ctx, participantQuery, itemIDs)
	if err != nil {
		return fmt.Errorf("failed to load booking participants: %w", err)
	}
	defer pRows.Close()

	for pRows.Next() {
		p := &domain.BookingParticipant{}
		var guestName, guestEmail, guestPhone *string
		if err := pRows.Scan(&p.ID, &p.BookingItemID, &p.UserID, &guestName, &guestEmail, &guestPhone, &p.IsPrimary, &p.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan booking participant: %w", err)
		}
		p.GuestName = derefString(guestName)
		p.GuestEmail = derefString(guestEmail)
		p.GuestPhone = derefString(guestPhone)
		if item, ok := byID[p.BookingItemID]; ok {
			item.Participants = append(item.Participants, p)
		}
	}
	if err := pRows.Err(); err != nil {
		return fmt.Errorf("error iterating booking participants: %w", err)
	}

	return nil
}

// scanBooking scans one bookings row in bookingColumns order
func scanBooking(row pgx.Row) (*domain.Booking, error) {
	booking := &domain.Booking{}
	var (
		status         string
		paymentStatus  string
		paymentID      *string
		promoCode      *string
		idempotencyKey *string
		cancelledBy    *string
		cancelReason   *string
	)

	err := row.Scan(
		&booking.ID,
		&booking.BookingNumber,
		&booking.CompanyID,
		&booking.BranchID,
		&booking.UserID,
		&status,
		&paymentStatus,
		&paymentID,
		&booking.Subtotal,
		&booking.DiscountAmount,
		&booking.TaxAmount,
		&booking.FeeAmount,
		&booking.TotalAmount,
		&booking.Currency,
		&promoCode,
		&idempotencyKey,
		&booking.CancelledAt,
		&cancelledBy,
		&cancelReason,
		&booking.ConfirmedAt,
		&booking.ExpiresAt,
		&booking.CreatedAt,
		&booking.UpdatedAt,
		&booking.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan booking: %w", err)
	}

	booking.Status = domain.BookingStatus(status)
	booking.PaymentStatus = domain.PaymentStatus(paymentStatus)
	booking.PaymentID = derefString(paymentID)
	booking.PromoCode = derefString(promoCode)
	booking.IdempotencyKey = derefString(idempotencyKey)
	booking.CancelledBy = derefString(cancelledBy)
	booking.CancelReason = derefString(cancelReason)

	return booking, nil
}

// scanBookingItem scans one booking_items row
func scanBookingItem(row pgx.Row) (*domain.BookingItem, error) {
	item := &domain.BookingItem{}
	var start, end time.Time

	err := row.Scan(
		&item.ID,
		&item.BookingID,
		&item.CourtID,
		&item.ServiceID,
		&start,
		&end,
		&item.DurationMinutes,
		&item.UnitPrice,
		&item.Subtotal,
		&item.Total,
		&item.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan booking item: %w", err)
	}

	window, err := domain.NewTimeWindow(start, end)
	if err != nil {
		return nil, fmt.Errorf("booking item %s has invalid window: %w", item.ID, err)
	}
	item.Window = window

	return item, nil
}

// execer covers both pgxpool.Pool and pgx.Tx for shared insert helpers
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func insertChangeLog(ctx context.Context, db execer, entry *domain.BookingChangeLog) error {
	query := `
		INSERT INTO booking_change_logs (
			id, booking_id, change_type, old_value, new_value, reason, changed_by, changed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := db.Exec(ctx, query,
		entry.ID,
		entry.BookingID,
		string(entry.ChangeType),
		nullString(entry.OldValue),
		nullString(entry.NewValue),
		nullString(entry.Reason),
		nullString(entry.ChangedBy),
		entry.ChangedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert change log: %w", err)
	}
	return nil
}

// nullString converts empty string to nil pointer
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Ensure PostgresBookingRepository implements BookingRepository
var _ BookingRepository = (*PostgresBookingRepository)(nil)
