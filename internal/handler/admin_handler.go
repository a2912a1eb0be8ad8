package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/courtbook/courtbook/internal/dto"
	"github.com/courtbook/courtbook/internal/service"
	"github.com/gin-gonic/gin"
)

// AdminHandler handles admin HTTP requests
// The expiry worker runs these sweeps on a schedule; the endpoints exist
// for manual intervention and for ops runbooks
type AdminHandler struct {
	lifecycle service.LifecycleService
	waitlist  service.WaitlistService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(lifecycle service.LifecycleService, waitlist service.WaitlistService) *AdminHandler {
	return &AdminHandler{
		lifecycle: lifecycle,
		waitlist:  waitlist,
	}
}

// SweepResponse represents the response for an expiry sweep
type SweepResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Expired int    `json:"expired"`
}

// ExpireBookings handles POST /admin/expire-bookings
// Flips pending bookings past their hold deadline to expired
func (h *AdminHandler) ExpireBookings(c *gin.Context) {
	limit := parseLimit(c, 100)

	count, err := h.lifecycle.ExpirePendingBookings(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "failed to expire bookings",
			Code:    "SWEEP_FAILED",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, SweepResponse{
		Success: true,
		Message: fmt.Sprintf("Expired %d pending bookings", count),
		Expired: count,
	})
}

// ExpireWaitlist handles POST /admin/expire-waitlist
// Flips active waitlist entries past their deadline to expired
func (h *AdminHandler) ExpireWaitlist(c *gin.Context) {
	limit := parseLimit(c, 100)

	count, err := h.waitlist.ExpireStaleEntries(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "failed to expire waitlist entries",
			Code:    "SWEEP_FAILED",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, SweepResponse{
		Success: true,
		Message: fmt.Sprintf("Expired %d waitlist entries", count),
		Expired: count,
	})
}

func parseLimit(c *gin.Context, def int) int {
	limit := def
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	return limit
}
