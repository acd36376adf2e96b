package services

import (
	"context"

	"github.com/conciliai/reconcile-gateway/internal/model"
	"github.com/conciliai/reconcile-gateway/internal/repository"
)

// ProfileService exposes the profile surface: who the user is, what tier
// they are on, how many credits remain.
type ProfileService struct {
	profiles *repository.ProfileRepository
}

func NewProfileService(profiles *repository.ProfileRepository) *ProfileService {
	return &ProfileService{
		profiles: profiles,
	}
}

// GetOrCreate resolves the profile for an authenticated identity,
// provisioning a FREE-tier profile on first sight.
func (s *ProfileService) GetOrCreate(ctx context.Context, userID, email string) (*model.UserProfile, error) {
	return s.profiles.GetOrCreate(ctx, userID, email)
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*model.UserProfile, error) {
	return s.profiles.Get(ctx, userID)
}

// SetOpeningBalances updates the session opening balances the calculator
// starts from. Either side may be nil to leave it untouched.
func (s *ProfileService) SetOpeningBalances(ctx context.Context, userID string, bank, ledger *model.Cents) error {
	return s.profiles.SetOpeningBalances(ctx, userID, bank, ledger)
}
