// README: Stripe webhook endpoint; unauthenticated, trusted by signature only.
package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"gigmarket/internal/modules/payment"
)

// maxWebhookBody matches the limit Stripe documents for event payloads.
const maxWebhookBody = 65536

type WebhookProcessor interface {
	Handle(ctx context.Context, payload []byte, signature string) (payment.Result, error)
}

type PaymentHandler struct {
	webhooks WebhookProcessor
}

func NewPaymentHandler(webhooks WebhookProcessor) *PaymentHandler {
	return &PaymentHandler{webhooks: webhooks}
}

func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		writeError(c, http.StatusServiceUnavailable, "read body")
		return
	}
	res, err := h.webhooks.Handle(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"received":  true,
		"handled":   res.Handled,
		"duplicate": res.Duplicate,
		"order_id":  res.OrderID,
	})
}
