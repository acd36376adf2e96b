package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/conciliai/reconcile-gateway/internal/model"
	"github.com/conciliai/reconcile-gateway/internal/payments"
	"github.com/conciliai/reconcile-gateway/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookSecret = "whsec_test_secret"

func signBody(body []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(body)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func setupBillingService(t *testing.T) (*BillingService, *repository.ProfileRepository) {
	profiles := repository.NewProfileRepository(repository.SetupTestDB(t))
	verifier := payments.NewVerifier(webhookSecret, 5*time.Minute)
	return NewBillingService(verifier, profiles), profiles
}

func TestBillingService_CheckoutUpgradesToPro(t *testing.T) {
	svc, profiles := setupBillingService(t)
	profile := seedProfile(t, profiles, "ana@example.com")
	require.Equal(t, model.TierFree, profile.Tier)

	body := []byte(`{
		"type": "checkout.session.completed",
		"data": { "object": { "customer_details": { "email": "ana@example.com" } } }
	}`)

	require.NoError(t, svc.HandleWebhook(context.Background(), body, signBody(body)))

	updated, err := profiles.Get(context.Background(), profile.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TierPro, updated.Tier)
	assert.Equal(t, uint(model.ProTierCredits), updated.CreditsRemaining)
}

func TestBillingService_InvalidSignatureLeavesProfileUntouched(t *testing.T) {
	svc, profiles := setupBillingService(t)
	profile := seedProfile(t, profiles, "ana@example.com")

	body := []byte(`{
		"type": "checkout.session.completed",
		"data": { "object": { "customer_details": { "email": "ana@example.com" } } }
	}`)

	err := svc.HandleWebhook(context.Background(), body, "t=12345,v1=deadbeef")
	assert.ErrorIs(t, err, payments.ErrSignatureInvalid)

	updated, getErr := profiles.Get(context.Background(), profile.ID)
	require.NoError(t, getErr)
	assert.Equal(t, model.TierFree, updated.Tier)
	assert.Equal(t, uint(model.FreeTierCredits), updated.CreditsRemaining)
}

func TestBillingService_SubscriptionDeletedDowngrades(t *testing.T) {
	svc, profiles := setupBillingService(t)
	profile := seedProfile(t, profiles, "ana@example.com")
	require.NoError(t, profiles.SetTier(context.Background(), "ana@example.com", model.TierPro, model.ProTierCredits))

	body := []byte(`{
		"type": "customer.subscription.deleted",
		"data": { "object": { "customer_email": "ana@example.com" } }
	}`)

	require.NoError(t, svc.HandleWebhook(context.Background(), body, signBody(body)))

	updated, err := profiles.Get(context.Background(), profile.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TierFree, updated.Tier)
	assert.Equal(t, uint(model.FreeTierCredits), updated.CreditsRemaining)
}

func TestBillingService_UnknownEventAcked(t *testing.T) {
	svc, _ := setupBillingService(t)

	body := []byte(`{"type":"invoice.paid"}`)
	assert.NoError(t, svc.HandleWebhook(context.Background(), body, signBody(body)))
}

func TestBillingService_UnknownProfileAcked(t *testing.T) {
	svc, _ := setupBillingService(t)

	body := []byte(`{
		"type": "checkout.session.completed",
		"data": { "object": { "customer_details": { "email": "nobody@example.com" } } }
	}`)
	assert.NoError(t, svc.HandleWebhook(context.Background(), body, signBody(body)))
}
