package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/courtbook/courtbook/internal/service"
	"github.com/courtbook/courtbook/pkg/logger"
)

// ExpiryWorkerConfig contains configuration for the expiry worker
type ExpiryWorkerConfig struct {
	// ScanInterval is the interval between expiry sweeps
	ScanInterval time.Duration
	// BatchSize is the maximum rows flipped per sweep
	BatchSize int
}

// DefaultExpiryWorkerConfig returns default configuration
func DefaultExpiryWorkerConfig() *ExpiryWorkerConfig {
	return &ExpiryWorkerConfig{
		ScanInterval: 30 * time.Second,
		BatchSize:    100,
	}
}

// ExpiryWorker sweeps pending bookings past their hold deadline and
// waitlist entries past their expiry. Both sweeps use guarded updates,
// so running more than one worker is safe.
type ExpiryWorker struct {
	lifecycle service.LifecycleService
	waitlist  service.WaitlistService
	config    *ExpiryWorkerConfig
	log       *logger.Logger
	stopCh    chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool

	// Stats
	totalBookingsExpired int64
	totalEntriesExpired  int64
	lastScanTime         time.Time
	lastExpiredCount     int
}

// NewExpiryWorker creates a new expiry worker
func NewExpiryWorker(
	lifecycle service.LifecycleService,
	waitlist service.WaitlistService,
	config *ExpiryWorkerConfig,
) *ExpiryWorker {
	if config == nil {
		config = DefaultExpiryWorkerConfig()
	}

	return &ExpiryWorker{
		lifecycle: lifecycle,
		waitlist:  waitlist,
		config:    config,
		log:       logger.Get(),
		stopCh:    make(chan struct{}),
	}
}

// Start starts the expiry worker
func (w *ExpiryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("expiry worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Starting expiry worker")

	w.wg.Add(1)
	go w.scanLoop(ctx)

	return nil
}

// Stop stops the expiry worker
func (w *ExpiryWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.log.Info("Stopping expiry worker")
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Expiry worker stopped")
}

// scanLoop runs expiry sweeps on a fixed interval
func (w *ExpiryWorker) scanLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.ScanInterval)
	defer ticker.Stop()

	// Run immediately on start
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep runs one booking sweep and one waitlist sweep
func (w *ExpiryWorker) sweep(ctx context.Context) {
	w.mu.Lock()
	w.lastScanTime = time.Now()
	w.mu.Unlock()

	bookings, err := w.lifecycle.ExpirePendingBookings(ctx, w.config.BatchSize)
	if err != nil {
		w.log.Error(fmt.Sprintf("Failed to expire pending bookings: %v", err))
	} else if bookings > 0 {
		w.log.Info(fmt.Sprintf("Expired %d pending bookings", bookings))
	}

	entries, err := w.waitlist.ExpireStaleEntries(ctx, w.config.BatchSize)
	if err != nil {
		w.log.Error(fmt.Sprintf("Failed to expire waitlist entries: %v", err))
	} else if entries > 0 {
		w.log.Info(fmt.Sprintf("Expired %d waitlist entries", entries))
	}

	w.mu.Lock()
	w.totalBookingsExpired += int64(bookings)
	w.totalEntriesExpired += int64(entries)
	w.lastExpiredCount = bookings + entries
	w.mu.Unlock()
}

// GetStats returns worker statistics
func (w *ExpiryWorker) GetStats() *ExpiryWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return &ExpiryWorkerStats{
		IsRunning:            w.running,
		TotalBookingsExpired: w.totalBookingsExpired,
		TotalEntriesExpired:  w.totalEntriesExpired,
		LastScanTime:         w.lastScanTime,
		LastExpiredCount:     w.lastExpiredCount,
	}
}

// ExpiryWorkerStats contains worker statistics
type ExpiryWorkerStats struct {
	IsRunning            bool      `json:"is_running"`
	TotalBookingsExpired int64     `json:"total_bookings_expired"`
	TotalEntriesExpired  int64     `json:"total_entries_expired"`
	LastScanTime         time.Time `json:"last_scan_time"`
	LastExpiredCount     int       `json:"last_expired_count"`
}
