package handlers

import (
	"context"
	"errors"

	"github.com/conciliai/reconcile-gateway/internal/payments"
	xhttp "github.com/conciliai/reconcile-gateway/pkg/http"
	"github.com/fasthttp/router"
)

type WebhookService interface {
	HandleWebhook(ctx context.Context, body []byte, signatureHeader string) error
}

type WebhookHandler struct {
	svc WebhookService
}

func NewWebhookHandler(svc WebhookService) *WebhookHandler {
	return &WebhookHandler{
		svc: svc,
	}
}

func RegisterWebhookRoutes(e *router.Group, h *WebhookHandler) {
	e.POST("/webhooks/payments", h.Payments)
}

// Payments receives provider events. The raw body is verified against the
// signature header before anything is decoded.
func (h *WebhookHandler) Payments(ctx *xhttp.RequestCtx) {
	body := ctx.PostBody()
	signature := string(ctx.Request.Header.Peek("Stripe-Signature"))

	if err := h.svc.HandleWebhook(ctx, body, signature); err != nil {
		if errors.Is(err, payments.ErrSignatureInvalid) {
			writeError(ctx, 400, err.Error())
			return
		}
		// Transient failure: the provider retries on 5xx.
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, map[string]string{"received": "true"})
}
