package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/courtbook/courtbook/internal/domain"
)

// skipIfNoIntegration skips unless INTEGRATION_TEST=true
func skipIfNoIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test; set INTEGRATION_TEST=true to run")
	}
}

// getPostgresPool creates a PostgreSQL connection pool for testing
func getPostgresPool(t *testing.T) *pgxpool.Pool {
	skipIfNoIntegration(t)

	host := os.Getenv("TEST_POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}

	port := os.Getenv("TEST_POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}

	user := os.Getenv("TEST_POSTGRES_USER")
	if user == "" {
		user = "postgres"
	}

	password := os.Getenv("TEST_POSTGRES_PASSWORD")
	if password == "" {
		password = "postgres"
	}

	dbname := os.Getenv("TEST_POSTGRES_DB")
	if dbname == "" {
		dbname = "courtbook_test"
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		user, password, host, port, dbname)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to create PostgreSQL pool: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("Failed to ping PostgreSQL: %v", err)
	}

	cleanupTestData(t, pool)

	return pool
}

func cleanupTestData(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	// Reverse dependency order
	tables := []string{
		"booking_change_logs",
		"booking_participants",
		"booking_items",
		"booking_waitlists",
		"bookings",
		"resource_blocks",
		"rate_rules",
		"special_hours",
		"business_hours",
		"courts",
		"branches",
	}
	for _, table := range tables {
		if _, err := pool.Exec(ctx, "DELETE FROM "+table); err != nil {
			t.Logf("Warning: failed to clean up %s: %v", table, err)
		}
	}
}

// seedBranchAndCourt inserts a branch and one active court and returns their IDs
func seedBranchAndCourt(t *testing.T, pool *pgxpool.Pool) (string, string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	branchID := uuid.New().String()
	courtID := uuid.New().String()

	_, err := pool.Exec(ctx, `
		INSERT INTO branches (id, company_id, name, timezone, created_at, updated_at)
		VALUES ($1, $2, 'Test Branch', 'UTC', $3, $3)
	`, branchID, uuid.New().String(), now)
	if err != nil {
		t.Fatalf("Failed to seed branch: %v", err)
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO courts (id, branch_id, name, hourly_rate, currency, status, created_at, updated_at)
		VALUES ($1, $2, 'Court 1', 500, 'THB', 'active', $3, $3)
	`, courtID, branchID, now)
	if err != nil {
		t.Fatalf("Failed to seed court: %v", err)
	}

	return branchID, courtID
}

func newTestBooking(branchID, courtID string, start, end time.Time) *domain.Booking {
	now := time.Now().UTC()
	expires := now.Add(15 * time.Minute)
	w, _ := domain.NewTimeWindow(start, end)

	bookingID := uuid.New().String()
	return &domain.Booking{
		ID:            bookingID,
		BookingNumber: domain.NewBookingNumber(now),
		CompanyID:     uuid.New().String(),
		BranchID:      branchID,
		UserID:        uuid.New().String(),
		Status:        domain.BookingStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		Subtotal:      decimal.NewFromInt(500),
		TaxAmount:     decimal.NewFromInt(35),
		TotalAmount:   decimal.NewFromInt(535),
		Currency:      "THB",
		Items: []*domain.BookingItem{
			{
				ID:              uuid.New().String(),
				BookingID:       bookingID,
				CourtID:         courtID,
				ServiceID:       uuid.New().String(),
				Window:          w,
				DurationMinutes: int(end.Sub(start) / time.Minute),
				UnitPrice:       decimal.NewFromInt(500),
				Subtotal:        decimal.NewFromInt(500),
				Total:           decimal.NewFromInt(500),
				CreatedAt:       now,
			},
		},
		ExpiresAt: &expires,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPostgresBookingRepository_CreateAndGet(t *testing.T) {
	pool := getPostgresPool(t)
	defer pool.Close()

	repo := NewPostgresBookingRepository(pool)
	ctx := context.Background()

	branchID, courtID := seedBranchAndCourt(t, pool)
	start := time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)
	booking := newTestBooking(branchID, courtID, start, start.Add(time.Hour))

	if err := repo.CreateBooking(ctx, booking); err != nil {
		t.Fatalf("CreateBooking() error = %v", err)
	}

	retrieved, err := repo.GetByID(ctx, booking.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if retrieved.ID != booking.ID {
		t.Errorf("GetByID() ID = %v, want %v", retrieved.ID, booking.ID)
	}
	if len(retrieved.Items) != 1 {
		t.Fatalf("GetByID() items = %d, want 1", len(retrieved.Items))
	}
	if !retrieved.TotalAmount.Equal(booking.TotalAmount) {
		t.Errorf("GetByID() TotalAmount = %v, want %v", retrieved.TotalAmount, booking.TotalAmount)
	}
	if !retrieved.Items[0].Window.Start.Equal(start) {
		t.Errorf("GetByID() item start = %v, want %v", retrieved.Items[0].Window.Start, start)
	}

	logs, err := repo.ListChangeLogs(ctx, booking.ID)
	if err != nil {
		t.Fatalf("ListChangeLogs() error = %v", err)
	}
	if len(logs) != 1 || logs[0].ChangeType != domain.ChangeTypeCreated {
		t.Errorf("ListChangeLogs() = %+v, want one created entry", logs)
	}
}

func TestPostgresBookingRepository_GetByID_NotFound(t *testing.T) {
	pool := getPostgresPool(t)
	defer pool.Close()

	repo := NewPostgresBookingRepository(pool)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, uuid.New().String())
	if !errors.Is(err, domain.ErrBookingNotFound) {
		t.Errorf("GetByID() error = %v, want %v", err, domain.ErrBookingNotFound)
	}
}

func TestPostgresBookingRepository_OverlapRejected(t *testing.T) {
	pool := getPostgresPool(t)
	defer pool.Close()

	repo := NewPostgresBookingRepository(pool)
	ctx := context.Background()

	branchID, courtID := seedBranchAndCourt(t, pool)
	start := time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)

	first := newTestBooking(branchID, courtID, start, start.Add(time.Hour))
	if err := repo.CreateBooking(ctx, first); err != nil {
		t.Fatalf("CreateBooking() first error = %v", err)
	}

	overlapping := newTestBooking(branchID, courtID, start.Add(30*time.Minute), start.Add(90*time.Minute))
	err := repo.CreateBooking(ctx, overlapping)
	if !errors.Is(err, domain.ErrSlotUnavailable) {
		t.Errorf("CreateBooking() overlapping error = %v, want %v", err, domain.ErrSlotUnavailable)
	}

	// Touching windows share an endpoint but no time, so both commit
	adjacent := newTestBooking(branchID, courtID, start.Add(time.Hour), start.Add(2*time.Hour))
	if err := repo.CreateBooking(ctx, adjacent); err != nil {
		t.Errorf("CreateBooking() adjacent error = %v, want nil", err)
	}
}

func TestPostgresBookingRepository_BlockedSlotRejected(t *testing.T) {
	pool := getPostgresPool(t)
	defer pool.Close()

	repo := NewPostgresBookingRepository(pool)
	ctx := context.Background()

	branchID, courtID := seedBranchAndCourt(t, pool)
	start := time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)
	now := time.Now().UTC()

	_, err := pool.Exec(ctx, `
		INSERT INTO resource_blocks (id, branch_id, court_id, start_time, end_time, reason, active, created_at, updated_at)
		VALUES ($1, $2, NULL, $3, $4, 'maintenance', true, $5, $5)
	`, uuid.New().String(), branchID, start, start.Add(2*time.Hour), now)
	if err != nil {
		t.Fatalf("Failed to seed resource block: %v", err)
	}

	booking := newTestBooking(branchID, courtID, start.Add(time.Hour), start.Add(90*time.Minute))
	err = repo.CreateBooking(ctx, booking)
	if !errors.Is(err, domain.ErrSlotBlocked) {
		t.Errorf("CreateBooking() error = %v, want %v", err, domain.ErrSlotBlocked)
	}
}

// TestPostgresBookingRepository_ConcurrentSameSlot races N writers at one
// slot; exactly one must win.
func TestPostgresBookingRepository_ConcurrentSameSlot(t *testing.T) {
	pool := getPostgresPool(t)
	defer pool.Close()

	repo := NewPostgresBookingRepository(pool)
	ctx := context.Background()

	branchID, courtID := seedBranchAndCourt(t, pool)
	start := time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)

	const writers = 10
	var wg sync.WaitGroup
	results := make(chan error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			booking := newTestBooking(branchID, courtID, start, start.Add(time.Hour))
			results <- repo.CreateBooking(ctx, booking)
		}()
	}
	wg.Wait()
	close(results)

	succeeded, conflicted := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrSlotUnavailable):
			conflicted++
		default:
			t.Errorf("CreateBooking() unexpected error = %v", err)
		}
	}

	if succeeded != 1 {
		t.Errorf("succeeded = %d, want exactly 1", succeeded)
	}
	if conflicted != writers-1 {
		t.Errorf("conflicted = %d, want %d", conflicted, writers-1)
	}
}

func TestPostgresBookingRepository_ConfirmAndCancelGuards(t *testing.T) {
	pool := getPostgresPool(t)
	defer pool.Close()

	repo := NewPostgresBookingRepository(pool)
	ctx := context.Background()

	branchID, courtID := seedBranchAndCourt(t, pool)
	start := time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)
	booking := newTestBooking(branchID, courtID, start, start.Add(time.Hour))

	if err := repo.CreateBooking(ctx, booking); err != nil {
		t.Fatalf("CreateBooking() error = %v", err)
	}

	now := time.Now().UTC()
	if err := repo.Confirm(ctx, booking.ID, "pay-1", now); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}

	// Confirming twice must surface the duplicate
	err := repo.Confirm(ctx, booking.ID, "pay-2", now)
	if !errors.Is(err, domain.ErrAlreadyConfirmed) {
		t.Errorf("Confirm() second error = %v, want %v", err, domain.ErrAlreadyConfirmed)
	}

	if err := repo.Cancel(ctx, booking.ID, booking.UserID, "test", now); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	err = repo.Cancel(ctx, booking.ID, booking.UserID, "again", now)
	if !errors.Is(err, domain.ErrAlreadyCancelled) {
		t.Errorf("Cancel() second error = %v, want %v", err, domain.ErrAlreadyCancelled)
	}

	// A cancelled booking frees the slot for the next writer
	rebook := newTestBooking(branchID, courtID, start, start.Add(time.Hour))
	if err := repo.CreateBooking(ctx, rebook); err != nil {
		t.Errorf("CreateBooking() after cancel error = %v, want nil", err)
	}
}

func TestPostgresBookingRepository_MarkExpired(t *testing.T) {
	pool := getPostgresPool(t)
	defer pool.Close()

	repo := NewPostgresBookingRepository(pool)
	ctx := context.Background()

	branchID, courtID := seedBranchAndCourt(t, pool)
	start := time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)
	booking := newTestBooking(branchID, courtID, start, start.Add(time.Hour))
	past := time.Now().UTC().Add(-time.Minute)
	booking.ExpiresAt = &past

	if err := repo.CreateBooking(ctx, booking); err != nil {
		t.Fatalf("CreateBooking() error = %v", err)
	}

	expired, err := repo.GetExpiredPending(ctx, time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("GetExpiredPending() error = %v", err)
	}
	if len(expired) != 1 || expired[0].ID != booking.ID {
		t.Fatalf("GetExpiredPending() = %d entries, want the seeded booking", len(expired))
	}

	if err := repo.MarkExpired(ctx, booking.ID, time.Now().UTC()); err != nil {
		t.Fatalf("MarkExpired() error = %v", err)
	}

	retrieved, err := repo.GetByID(ctx, booking.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if retrieved.Status != domain.BookingStatusExpired {
		t.Errorf("Status = %v, want %v", retrieved.Status, domain.BookingStatusExpired)
	}
}

func TestPostgresBookingRepository_GetByIdempotencyKey(t *testing.T) {
	pool := getPostgresPool(t)
	defer pool.Close()

	repo := NewPostgresBookingRepository(pool)
	ctx := context.Background()

	branchID, courtID := seedBranchAndCourt(t, pool)
	start := time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)
	booking := newTestBooking(branchID, courtID, start, start.Add(time.Hour))
	booking.IdempotencyKey = uuid.New().String()

	if err := repo.CreateBooking(ctx, booking); err != nil {
		t.Fatalf("CreateBooking() error = %v", err)
	}

	found, err := repo.GetByIdempotencyKey(ctx, booking.CompanyID, booking.IdempotencyKey)
	if err != nil {
		t.Fatalf("GetByIdempotencyKey() error = %v", err)
	}
	if found == nil || found.ID != booking.ID {
		t.Errorf("GetByIdempotencyKey() = %+v, want booking %s", found, booking.ID)
	}

	missing, err := repo.GetByIdempotencyKey(ctx, booking.CompanyID, uuid.New().String())
	if err != nil {
		t.Fatalf("GetByIdempotencyKey() unknown key error = %v", err)
	}
	if missing != nil {
		t.Errorf("GetByIdempotencyKey() unknown key = %+v, want nil", missing)
	}
}
