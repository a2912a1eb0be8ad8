package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// ErrRetriesExhausted is returned when every attempt allowed by the
// config has failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Config controls the exponential backoff between attempts.
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	// Zero means a single attempt with no retries.
	MaxRetries int
	// InitialInterval is the delay before the first retry.
	InitialInterval time.Duration
	// MaxInterval caps the backoff growth.
	MaxInterval time.Duration
	// Multiplier scales the interval after each failed attempt.
	Multiplier float64
	// JitterFactor randomizes each interval by up to the given
	// fraction in either direction, so concurrent callers do not
	// retry in lockstep.
	JitterFactor float64
}

// DefaultConfig retries three times over roughly seven seconds.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:      3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     10 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.1,
	}
}

// Operation is the unit of work being retried.
type Operation func(ctx context.Context) error

// PermanentError wraps an error that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent marks an error as not worth retrying. Do stops
// immediately when an operation returns one.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Result reports how a retried operation finished.
type Result struct {
	// Err is nil on success. On failure it wraps ErrRetriesExhausted,
	// the permanent error, or the context error.
	Err error
	// Attempts is how many times the operation ran.
	Attempts int
	// LastError is the error from the final attempt.
	LastError error
	// TotalDuration covers all attempts including backoff sleeps.
	TotalDuration time.Duration
}

// Do runs op until it succeeds, returns a permanent error, the
// context is done, or all retries are used up. A nil config falls
// back to DefaultConfig.
func Do(ctx context.Context, config *Config, op Operation) *Result {
	if config == nil {
		config = DefaultConfig()
	}

	start := time.Now()
	result := &Result{}

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			result.Err = err
			result.TotalDuration = time.Since(start)
			return result
		}

		result.Attempts++
		err := op(ctx)
		if err == nil {
			result.TotalDuration = time.Since(start)
			return result
		}
		result.LastError = err

		var perm *PermanentError
		if errors.As(err, &perm) {
			result.Err = perm.Err
			result.LastError = perm.Err
			result.TotalDuration = time.Since(start)
			return result
		}

		if attempt == config.MaxRetries {
			break
		}

		select {
		case <-time.After(backoffInterval(config, attempt)):
		case <-ctx.Done():
			result.Err = ctx.Err()
			result.TotalDuration = time.Since(start)
			return result
		}
	}

	result.Err = fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, result.Attempts, result.LastError)
	result.TotalDuration = time.Since(start)
	return result
}

// backoffInterval computes the jittered delay before retry number
// attempt+1.
func backoffInterval(config *Config, attempt int) time.Duration {
	interval := float64(config.InitialInterval)
	for i := 0; i < attempt; i++ {
		interval *= config.Multiplier
		if interval >= float64(config.MaxInterval) {
			interval = float64(config.MaxInterval)
			break
		}
	}

	if config.JitterFactor > 0 {
		delta := interval * config.JitterFactor
		interval = interval - delta + rand.Float64()*2*delta
	}

	if interval > float64(config.MaxInterval) {
		interval = float64(config.MaxInterval)
	}
	if interval < 0 {
		interval = 0
	}
	return time.Duration(interval)
}
