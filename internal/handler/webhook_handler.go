package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/courtbook/courtbook/internal/service"
	"github.com/courtbook/courtbook/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// WebhookHandler handles Stripe webhook events
// Payment verdicts drive booking confirmation through the lifecycle service
type WebhookHandler struct {
	lifecycle     service.LifecycleService
	webhookSecret string
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(lifecycle service.LifecycleService, webhookSecret string) *WebhookHandler {
	return &WebhookHandler{
		lifecycle:     lifecycle,
		webhookSecret: webhookSecret,
	}
}

// HandleStripeWebhook handles incoming Stripe webhook events
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	log := logger.Get()

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Error(fmt.Sprintf("Failed to read webhook body: %v", err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")
	if sigHeader == "" {
		log.Warn("Missing Stripe-Signature header")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing Stripe-Signature header"})
		return
	}

	event, err := webhook.ConstructEvent(payload, sigHeader, h.webhookSecret)
	if err != nil {
		log.Error(fmt.Sprintf("Failed to verify webhook signature: %v", err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	log.Info(fmt.Sprintf("Received Stripe webhook event: %s", event.Type))

	switch event.Type {
	case "payment_intent.succeeded":
		h.handlePaymentIntent(c, event, true)
	case "payment_intent.payment_failed", "payment_intent.canceled":
		h.handlePaymentIntent(c, event, false)
	default:
		log.Info(fmt.Sprintf("Unhandled event type: %s", event.Type))
		c.JSON(http.StatusOK, gin.H{"received": true, "message": "Event type not handled"})
	}
}

// handlePaymentIntent applies a payment verdict to the referenced booking
func (h *WebhookHandler) handlePaymentIntent(c *gin.Context, event stripe.Event, succeeded bool) {
	log := logger.Get()

	var paymentIntent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &paymentIntent); err != nil {
		log.Error(fmt.Sprintf("Failed to parse %s: %v", event.Type, err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse event data"})
		return
	}

	bookingID := paymentIntent.Metadata["booking_id"]
	if bookingID == "" {
		log.Warn(fmt.Sprintf("Payment intent %s carries no booking_id metadata", paymentIntent.ID))
		c.JSON(http.StatusOK, gin.H{"received": true, "message": "No booking reference"})
		return
	}

	log.Info(fmt.Sprintf("Payment verdict: booking_id=%s, payment_id=%s, succeeded=%t, amount=%d %s",
		bookingID, paymentIntent.ID, succeeded, paymentIntent.Amount, paymentIntent.Currency))

	if err := h.lifecycle.HandlePaymentCallback(c.Request.Context(), bookingID, paymentIntent.ID, succeeded); err != nil {
		log.Error(fmt.Sprintf("Failed to apply payment verdict for booking %s: %v", bookingID, err))
		// Still return 200 to acknowledge receipt; Stripe retries on 5xx
		// and a terminal booking state will never accept the verdict.
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
