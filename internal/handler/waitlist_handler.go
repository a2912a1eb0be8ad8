package handler

import (
	"errors"
	"net/http"

	"github.com/courtbook/courtbook/internal/domain"
	"github.com/courtbook/courtbook/internal/dto"
	"github.com/courtbook/courtbook/internal/service"
	"github.com/courtbook/courtbook/pkg/middleware"
	"github.com/courtbook/courtbook/pkg/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// WaitlistHandler handles waitlist HTTP requests
type WaitlistHandler struct {
	waitlist service.WaitlistService
}

// NewWaitlistHandler creates a new waitlist handler
func NewWaitlistHandler(waitlist service.WaitlistService) *WaitlistHandler {
	return &WaitlistHandler{waitlist: waitlist}
}

// JoinWaitlist handles POST /waitlist
func (h *WaitlistHandler) JoinWaitlist(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.waitlist.join")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "unauthorized",
			Code:  "UNAUTHORIZED",
		})
		return
	}

	var req dto.JoinWaitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid request",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("court_id", req.CourtID),
	)

	result, err := h.waitlist.JoinWaitlist(ctx, userID, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("entry_id", result.ID))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, result)
}

// LeaveWaitlist handles DELETE /waitlist/:id
func (h *WaitlistHandler) LeaveWaitlist(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.waitlist.leave")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "unauthorized",
			Code:  "UNAUTHORIZED",
		})
		return
	}

	entryID := c.Param("id")
	if entryID == "" {
		span.SetStatus(codes.Error, "entry id required")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "entry id required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	span.SetAttributes(
		attribute.String("entry_id", entryID),
		attribute.String("user_id", userID),
	)

	if err := h.waitlist.LeaveWaitlist(ctx, entryID, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true})
}

// PromoteEntry handles POST /waitlist/:id/promote
// Staff-only: creates a booking for the entry's user if the slot is free
func (h *WaitlistHandler) PromoteEntry(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.waitlist.promote")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "unauthorized",
			Code:  "UNAUTHORIZED",
		})
		return
	}

	entryID := c.Param("id")
	if entryID == "" {
		span.SetStatus(codes.Error, "entry id required")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "entry id required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	span.SetAttributes(
		attribute.String("entry_id", entryID),
		attribute.String("acting_user_id", userID),
	)

	booking, err := h.waitlist.PromoteEntry(ctx, entryID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("booking_id", booking.ID))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, booking)
}

// handleError converts domain errors to HTTP responses
func (h *WaitlistHandler) handleError(c *gin.Context, err error) {
	switch {
	case domain.IsNotFoundError(err):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "NOT_FOUND",
		})
	case errors.Is(err, domain.ErrWaitlistExpired):
		c.JSON(http.StatusGone, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "WAITLIST_EXPIRED",
		})
	case errors.Is(err, domain.ErrAlreadyPromoted):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "ALREADY_PROMOTED",
		})
	case errors.Is(err, domain.ErrWaitlistInactive):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "WAITLIST_INACTIVE",
		})
	case errors.Is(err, domain.ErrSlotUnavailable),
		errors.Is(err, domain.ErrSlotBlocked):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error:   err.Error(),
			Code:    "SLOT_UNAVAILABLE",
			Message: "The slot is still taken; the entry stays on the waitlist",
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
