package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/courtbook/courtbook/internal/dto"
)

type fakeLifecycleService struct {
	expireCalls atomic.Int64
	expireCount int
	expireErr   error
}

func (f *fakeLifecycleService) CancelBooking(ctx context.Context, bookingID, actingUserID, reason string) (*dto.BookingResponse, error) {
	return nil, nil
}

func (f *fakeLifecycleService) HandlePaymentCallback(ctx context.Context, bookingID, paymentID string, succeeded bool) error {
	return nil
}

func (f *fakeLifecycleService) ExpirePendingBookings(ctx context.Context, limit int) (int, error) {
	f.expireCalls.Add(1)
	return f.expireCount, f.expireErr
}

type fakeWaitlistService struct {
	expireCalls atomic.Int64
	expireCount int
}

func (f *fakeWaitlistService) JoinWaitlist(ctx context.Context, userID string, req *dto.JoinWaitlistRequest) (*dto.WaitlistResponse, error) {
	return nil, nil
}

func (f *fakeWaitlistService) LeaveWaitlist(ctx context.Context, entryID, userID string) error {
	return nil
}

func (f *fakeWaitlistService) PromoteEntry(ctx context.Context, entryID, actingUserID string) (*dto.BookingResponse, error) {
	return nil, nil
}

func (f *fakeWaitlistService) ExpireStaleEntries(ctx context.Context, limit int) (int, error) {
	f.expireCalls.Add(1)
	return f.expireCount, nil
}

func TestExpiryWorker_SweepCountsBothSources(t *testing.T) {
	lifecycle := &fakeLifecycleService{expireCount: 3}
	waitlist := &fakeWaitlistService{expireCount: 2}

	w := NewExpiryWorker(lifecycle, waitlist, &ExpiryWorkerConfig{
		ScanInterval: time.Minute,
		BatchSize:    50,
	})

	w.sweep(context.Background())

	stats := w.GetStats()
	if stats.TotalBookingsExpired != 3 {
		t.Errorf("TotalBookingsExpired = %d, want 3", stats.TotalBookingsExpired)
	}
	if stats.TotalEntriesExpired != 2 {
		t.Errorf("TotalEntriesExpired = %d, want 2", stats.TotalEntriesExpired)
	}
	if stats.LastExpiredCount != 5 {
		t.Errorf("LastExpiredCount = %d, want 5", stats.LastExpiredCount)
	}
}

func TestExpiryWorker_BookingSweepFailureStillRunsWaitlistSweep(t *testing.T) {
	lifecycle := &fakeLifecycleService{expireErr: errors.New("db down")}
	waitlist := &fakeWaitlistService{expireCount: 1}

	w := NewExpiryWorker(lifecycle, waitlist, nil)

	w.sweep(context.Background())

	if waitlist.expireCalls.Load() != 1 {
		t.Error("waitlist sweep should run even when the booking sweep fails")
	}
	if w.GetStats().TotalEntriesExpired != 1 {
		t.Errorf("TotalEntriesExpired = %d, want 1", w.GetStats().TotalEntriesExpired)
	}
}

func TestExpiryWorker_StartStop(t *testing.T) {
	lifecycle := &fakeLifecycleService{}
	waitlist := &fakeWaitlistService{}

	w := NewExpiryWorker(lifecycle, waitlist, &ExpiryWorkerConfig{
		ScanInterval: 10 * time.Millisecond,
		BatchSize:    10,
	})

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := w.Start(context.Background()); err == nil {
		t.Error("second Start() should fail while running")
	}

	time.Sleep(35 * time.Millisecond)
	w.Stop()

	if lifecycle.expireCalls.Load() < 2 {
		t.Errorf("expected at least 2 sweeps, got %d", lifecycle.expireCalls.Load())
	}
	if w.GetStats().IsRunning {
		t.Error("worker should report stopped")
	}

	// Stop is idempotent
	w.Stop()
}
