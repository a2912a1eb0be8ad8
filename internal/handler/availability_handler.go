package handler

import (
	"net/http"
	"time"

	"github.com/courtbook/courtbook/internal/domain"
	"github.com/courtbook/courtbook/internal/dto"
	"github.com/courtbook/courtbook/internal/service"
	"github.com/courtbook/courtbook/pkg/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// AvailabilityHandler serves read-only schedule queries: what is free,
// when the branch is open, and what a slot would cost
type AvailabilityHandler struct {
	availability service.AvailabilityService
	rates        service.RateResolver
}

// NewAvailabilityHandler creates a new availability handler
func NewAvailabilityHandler(availability service.AvailabilityService, rates service.RateResolver) *AvailabilityHandler {
	return &AvailabilityHandler{
		availability: availability,
		rates:        rates,
	}
}

// GetBranchAvailability handles GET /branches/:id/availability
// Returns open hours plus busy and blocked windows per court for the range
func (h *AvailabilityHandler) GetBranchAvailability(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.availability.branch")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	branchID := c.Param("id")
	if branchID == "" {
		span.SetStatus(codes.Error, "branch id required")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "branch id required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	var q dto.AvailabilityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid query")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid query",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	window, err := domain.NewTimeWindow(q.From, q.To)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetAttributes(
		attribute.String("branch_id", branchID),
		attribute.String("from", q.From.Format(time.RFC3339)),
		attribute.String("to", q.To.Format(time.RFC3339)),
	)

	snapshot, err := h.availability.GetBranchAvailability(ctx, branchID, window)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("courts", len(snapshot.Courts)))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, availabilityResponse(branchID, window, snapshot))
}

// GetCourtRate handles GET /courts/:id/rate
// Quotes the hourly rate and total price for a window without booking it
func (h *AvailabilityHandler) GetCourtRate(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.availability.rate")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	courtID := c.Param("id")
	if courtID == "" {
		span.SetStatus(codes.Error, "court id required")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "court id required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	var q dto.RateQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid query")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid query",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	window, err := domain.NewTimeWindow(q.Start, q.End)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetAttributes(
		attribute.String("court_id", courtID),
		attribute.Float64("hours", window.Hours()),
	)

	quote, err := h.rates.QuoteWindow(ctx, courtID, window)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, dto.RateResponse{
		CourtID:     courtID,
		StartTime:   window.Start,
		EndTime:     window.End,
		RatePerHour: quote.RatePerHour.String(),
		Total:       quote.Total.String(),
		Currency:    quote.Currency,
	})
}

// availabilityResponse flattens a snapshot into the wire shape
func availabilityResponse(branchID string, window domain.TimeWindow, snapshot *service.AvailabilitySnapshot) dto.AvailabilityResponse {
	resp := dto.AvailabilityResponse{
		BranchID: branchID,
		From:     window.Start,
		To:       window.End,
	}

	for day := truncateToDay(window.Start); day.Before(window.End); day = day.AddDate(0, 0, 1) {
		open, close, closed := snapshot.OpenHoursOn(day)
		hours := dto.OpenHoursResponse{
			Date:   day.Format("2006-01-02"),
			Closed: closed,
		}
		if !closed {
			hours.Open = open.String()
			hours.Close = close.String()
		}
		resp.Hours = append(resp.Hours, hours)
	}

	for _, court := range snapshot.Courts {
		entry := dto.CourtAvailabilityResponse{
			CourtID:    court.ID,
			Name:       court.Name,
			Status:     string(court.Status),
			HourlyRate: court.HourlyRate.String(),
			Currency:   court.Currency,
		}
		for _, w := range snapshot.BusyWindows(court.ID) {
			entry.Busy = append(entry.Busy, dto.WindowResponse{StartTime: w.Start, EndTime: w.End})
		}
		for _, w := range snapshot.BlockedWindows(court.ID) {
			entry.Blocked = append(entry.Blocked, dto.WindowResponse{StartTime: w.Start, EndTime: w.End})
		}
		resp.Courts = append(resp.Courts, entry)
	}

	return resp
}

func truncateToDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// handleError converts domain errors to HTTP responses
func (h *AvailabilityHandler) handleError(c *gin.Context, err error) {
	switch {
	case domain.IsNotFoundError(err):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "NOT_FOUND",
		})
	case domain.IsValidationError(err):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REQUEST",
		})
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error: "internal server error",
			Code:  "INTERNAL_ERROR",
		})
	}
}
