package service

import (
	"context"

	"github.com/courtbook/courtbook/internal/domain"
	"github.com/courtbook/courtbook/internal/repository"
	"github.com/courtbook/courtbook/pkg/telemetry"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// RateResolver resolves the effective hourly price for a court and window.
type RateResolver interface {
	// ResolveRate returns the hourly rate in effect for the window. Rules
	// override the court's base rate; among matching rules, branch-wide
	// rules are applied before court-specific ones and the last match in
	// creation order wins. The result is deterministic for a fixed rule
	// set.
	ResolveRate(ctx context.Context, courtID string, window domain.TimeWindow) (decimal.Decimal, error)

	// QuoteWindow prices a window without reserving it: the resolved
	// hourly rate, the total for the duration, and the court's currency.
	QuoteWindow(ctx context.Context, courtID string, window domain.TimeWindow) (*RateQuote, error)
}

// RateQuote is a non-binding price for a court window.
type RateQuote struct {
	RatePerHour decimal.Decimal
	Total       decimal.Decimal
	Currency    string
}

type rateResolver struct {
	scheduleRepo repository.ScheduleRepository
}

// NewRateResolver creates a rate resolver backed by schedule data
func NewRateResolver(scheduleRepo repository.ScheduleRepository) RateResolver {
	return &rateResolver{scheduleRepo: scheduleRepo}
}

var _ RateResolver = (*rateResolver)(nil)

func (r *rateResolver) ResolveRate(ctx context.Context, courtID string, window domain.TimeWindow) (decimal.Decimal, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.rate.resolve")
	defer span.End()

	span.SetAttributes(
		attribute.String("court_id", courtID),
		attribute.String("window_start", window.Start.String()),
	)

	if courtID == "" {
		span.SetStatus(codes.Error, "invalid court_id")
		return decimal.Zero, domain.ErrInvalidCourtID
	}
	if !window.End.After(window.Start) {
		span.SetStatus(codes.Error, "invalid time range")
		return decimal.Zero, domain.ErrInvalidTimeRange
	}

	court, err := r.scheduleRepo.GetCourt(ctx, courtID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return decimal.Zero, err
	}

	rules, err := r.scheduleRepo.ListRateRules(ctx, court.BranchID, window.Start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return decimal.Zero, err
	}

	// Rules arrive ordered branch-wide first, then court-specific, then by
	// creation order. Applying them in sequence makes the last match win.
	rate := court.HourlyRate
	matched := 0
	for _, rule := range rules {
		if rule.Matches(courtID, window) {
			rate = rule.RatePerHour
			matched++
		}
	}

	span.SetAttributes(
		attribute.Int("rules_matched", matched),
		attribute.String("rate_per_hour", rate.String()),
	)
	span.SetStatus(codes.Ok, "")
	return rate, nil
}

func (r *rateResolver) QuoteWindow(ctx context.Context, courtID string, window domain.TimeWindow) (*RateQuote, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.rate.quote")
	defer span.End()

	rate, err := r.ResolveRate(ctx, courtID, window)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	court, err := r.scheduleRepo.GetCourt(ctx, courtID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	quote := &RateQuote{
		RatePerHour: rate,
		Total:       PriceForWindow(rate, window),
		Currency:    court.Currency,
	}
	span.SetAttributes(attribute.String("total", quote.Total.String()))
	span.SetStatus(codes.Ok, "")
	return quote, nil
}

// PriceForWindow converts an hourly rate to the price of a window, exact to
// the minute.
func PriceForWindow(rate decimal.Decimal, window domain.TimeWindow) decimal.Decimal {
	mins, _ := window.DurationMinutes()
	return rate.Mul(decimal.NewFromInt(int64(mins))).Div(decimal.NewFromInt(60))
}
