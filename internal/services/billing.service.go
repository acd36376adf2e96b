package services

import (
	"context"
	"errors"

	"github.com/conciliai/reconcile-gateway/internal/model"
	"github.com/conciliai/reconcile-gateway/internal/payments"
	"github.com/conciliai/reconcile-gateway/internal/repository"
	"github.com/conciliai/reconcile-gateway/pkg/logger"
)

// BillingService applies verified payment webhooks to user profiles.
type BillingService struct {
	verifier *payments.Verifier
	profiles *repository.ProfileRepository
}

func NewBillingService(verifier *payments.Verifier, profiles *repository.ProfileRepository) *BillingService {
	return &BillingService{
		verifier: verifier,
		profiles: profiles,
	}
}

// HandleWebhook verifies the signature, decodes the event and applies the
// tier change. Nothing is mutated on an invalid signature; unhandled event
// types are acknowledged without effect.
func (s *BillingService) HandleWebhook(ctx context.Context, body []byte, signatureHeader string) error {
	if err := s.verifier.Verify(body, signatureHeader); err != nil {
		return err
	}

	event, err := payments.Decode(body)
	if err != nil {
		if errors.Is(err, payments.ErrEventIgnored) {
			logger.Debug("webhook event ignored", "error", err)
			return nil
		}
		return err
	}

	credits := creditsFor(event.Tier)
	if err := s.profiles.SetTier(ctx, event.Email, event.Tier, credits); err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			// The customer paid before ever logging in. Acknowledge so the
			// provider stops retrying; first login creates the profile and
			// the next subscription event will land.
			logger.Warn("webhook for unknown profile", "event", event.Type, "email", event.Email)
			return nil
		}
		return err
	}

	logger.Info("tier updated from webhook", "event", event.Type, "tier", event.Tier, "credits", credits)
	return nil
}

func creditsFor(tier model.UserTier) uint {
	switch tier {
	case model.TierPro, model.TierEnterprise:
		return model.ProTierCredits
	default:
		return model.FreeTierCredits
	}
}
