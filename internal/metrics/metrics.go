package metrics

import (
	"context"
	"sync"

	"github.com/courtbook/courtbook/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// Booking counters
	BookingsCreated    *telemetry.Counter
	BookingsConfirmed  *telemetry.Counter
	BookingsCancelled  *telemetry.Counter
	BookingsExpired    *telemetry.Counter
	BookingsFailed     *telemetry.Counter
	WaitlistJoins      *telemetry.Counter
	WaitlistPromotions *telemetry.Counter

	// Error tracking counters
	ErrorsTotal       *telemetry.Counter
	SlowRequestsTotal *telemetry.Counter

	// Histograms
	ConfirmationLag *telemetry.Histogram
	RequestDuration *telemetry.Histogram

	// Gauges
	PendingHolds *telemetry.UpDownCounter

	initOnce sync.Once
	initErr  error
)

// Init initializes all booking metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	var err error

	BookingsCreated, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "courtbook_bookings_created_total",
		Description: "Total number of bookings created",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	BookingsConfirmed, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "courtbook_bookings_confirmed_total",
		Description: "Total number of bookings confirmed",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	BookingsCancelled, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "courtbook_bookings_cancelled_total",
		Description: "Total number of bookings cancelled",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	BookingsExpired, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "courtbook_bookings_expired_total",
		Description: "Total number of pending bookings expired",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	BookingsFailed, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "courtbook_booking_failures_total",
		Description: "Total number of rejected booking attempts",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	WaitlistJoins, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "courtbook_waitlist_joins_total",
		Description: "Total number of waitlist entries created",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	WaitlistPromotions, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "courtbook_waitlist_promotions_total",
		Description: "Total number of waitlist entries promoted to bookings",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	// Lag from creation to confirmation, dominated by payment latency
	ConfirmationLag, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "courtbook_confirmation_lag_seconds",
		Description: "Duration from booking creation to confirmation",
		Unit:        "s",
	}, []float64{1, 5, 10, 30, 60, 120, 300, 600, 900})
	if err != nil {
		return err
	}

	RequestDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "courtbook_request_duration_seconds",
		Description: "HTTP request duration in seconds",
		Unit:        "s",
	}, []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10})
	if err != nil {
		return err
	}

	ErrorsTotal, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "courtbook_errors_total",
		Description: "Total number of errors by type",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	SlowRequestsTotal, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "courtbook_slow_requests_total",
		Description: "Total number of slow requests (>1s)",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	PendingHolds, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "courtbook_pending_holds",
		Description: "Current number of pending bookings holding slots",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	return nil
}

// RecordBookingCreated records a booking creation
func RecordBookingCreated(ctx context.Context, branchID string, items int, pending bool) {
	if BookingsCreated != nil {
		BookingsCreated.Inc(ctx,
			attribute.String("branch_id", branchID),
			attribute.Int("items", items),
		)
	}
	if pending && PendingHolds != nil {
		PendingHolds.Inc(ctx)
	}
}

// RecordConfirmation records a booking confirmation
func RecordConfirmation(ctx context.Context, branchID string, lagSeconds float64) {
	if BookingsConfirmed != nil {
		BookingsConfirmed.Inc(ctx,
			attribute.String("branch_id", branchID),
		)
	}
	if ConfirmationLag != nil {
		ConfirmationLag.Record(ctx, lagSeconds,
			attribute.String("branch_id", branchID),
		)
	}
	if PendingHolds != nil {
		PendingHolds.Dec(ctx)
	}
}

// RecordCancellation records a booking cancellation
func RecordCancellation(ctx context.Context, branchID string, wasPending bool) {
	if BookingsCancelled != nil {
		BookingsCancelled.Inc(ctx,
			attribute.String("branch_id", branchID),
		)
	}
	if wasPending && PendingHolds != nil {
		PendingHolds.Dec(ctx)
	}
}

// RecordExpiration records expired pending bookings
func RecordExpiration(ctx context.Context, count int64) {
	if BookingsExpired != nil {
		BookingsExpired.Add(ctx, count)
	}
	if PendingHolds != nil {
		PendingHolds.Add(ctx, -count)
	}
}

// RecordFailure records a rejected booking attempt
func RecordFailure(ctx context.Context, branchID, reason string) {
	if BookingsFailed != nil {
		BookingsFailed.Inc(ctx,
			attribute.String("branch_id", branchID),
			attribute.String("reason", reason),
		)
	}
}

// RecordWaitlistJoin records a waitlist entry creation
func RecordWaitlistJoin(ctx context.Context, branchID string) {
	if WaitlistJoins != nil {
		WaitlistJoins.Inc(ctx,
			attribute.String("branch_id", branchID),
		)
	}
}

// RecordWaitlistPromotion records a waitlist promotion
func RecordWaitlistPromotion(ctx context.Context, branchID string) {
	if WaitlistPromotions != nil {
		WaitlistPromotions.Inc(ctx,
			attribute.String("branch_id", branchID),
		)
	}
}

// RecordError records an error by type and operation
func RecordError(ctx context.Context, errorType, operation string) {
	if ErrorsTotal != nil {
		ErrorsTotal.Inc(ctx,
			attribute.String("error_type", errorType),
			attribute.String("operation", operation),
		)
	}
}

// RecordRequestDuration records HTTP request duration and tracks slow requests
func RecordRequestDuration(ctx context.Context, operation string, durationSeconds float64) {
	if RequestDuration != nil {
		RequestDuration.Record(ctx, durationSeconds,
			attribute.String("operation", operation),
		)
	}
	if durationSeconds > 1.0 && SlowRequestsTotal != nil {
		SlowRequestsTotal.Inc(ctx,
			attribute.String("operation", operation),
		)
	}
}
