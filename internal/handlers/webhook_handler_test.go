package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/conciliai/reconcile-gateway/internal/payments"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockWebhookService struct {
	mock.Mock
}

func (m *MockWebhookService) HandleWebhook(ctx context.Context, body []byte, signatureHeader string) error {
	return m.Called(ctx, body, signatureHeader).Error(0)
}

func TestWebhookHandler_Payments(t *testing.T) {
	t.Run("valid event acknowledged", func(t *testing.T) {
		svc := new(MockWebhookService)
		handler := NewWebhookHandler(svc)

		body := []byte(`{"type":"checkout.session.completed"}`)
		svc.On("HandleWebhook", mock.Anything, body, "t=1,v1=abc").Return(nil)

		ctx := setupTestContext("POST", "/webhooks/payments", body)
		ctx.Request.Header.Set("Stripe-Signature", "t=1,v1=abc")
		handler.Payments(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("invalid signature returns 400", func(t *testing.T) {
		svc := new(MockWebhookService)
		handler := NewWebhookHandler(svc)

		svc.On("HandleWebhook", mock.Anything, mock.Anything, mock.Anything).
			Return(payments.ErrSignatureInvalid)

		ctx := setupTestContext("POST", "/webhooks/payments", []byte(`{}`))
		handler.Payments(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("transient failure returns 500 for provider retry", func(t *testing.T) {
		svc := new(MockWebhookService)
		handler := NewWebhookHandler(svc)

		svc.On("HandleWebhook", mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("db down"))

		ctx := setupTestContext("POST", "/webhooks/payments", []byte(`{}`))
		handler.Payments(ctx)

		assert.Equal(t, 500, ctx.Response.StatusCode())
	})
}
