package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/conciliai/reconcile-gateway/internal/model"
	"github.com/conciliai/reconcile-gateway/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrProfileNotFound     = errors.New("profile not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrConcurrentUpdate    = errors.New("concurrent update detected")
	ErrMaxRetriesExceeded  = errors.New("max retries exceeded")
)

type ProfileRepository struct {
	*pg.DB
}

func NewProfileRepository(db *pg.DB) *ProfileRepository {
	return &ProfileRepository{
		db,
	}
}

// GetOrCreate fetches the profile for an authenticated identity, creating a
// FREE-tier profile with the starter credit allotment on first login. The
// profile is keyed by the identity-provider user id so every id-scoped query
// (credits, attempts, transactions) lands on the same row; the email is kept
// alongside because payment webhooks only know the customer by email.
func (r *ProfileRepository) GetOrCreate(ctx context.Context, userID, email string) (*model.UserProfile, error) {
	var entity ProfileEntity

	err := r.Read(ctx).WithContext(ctx).
		Where("id = ? OR email = ?", userID, email).
		First(&entity).
		Error
	if err == nil {
		return toProfileModel(&entity), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	entity = ProfileEntity{
		ID:               userID,
		Email:            email,
		Tier:             string(model.TierFree),
		CreditsRemaining: model.FreeTierCredits,
	}
	if err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&entity).Error; err != nil {
		return nil, err
	}

	// Re-read in case a concurrent first login won the insert.
	if err := r.Read(ctx).WithContext(ctx).Where("id = ?", userID).First(&entity).Error; err != nil {
		return nil, err
	}
	return toProfileModel(&entity), nil
}

func (r *ProfileRepository) Get(ctx context.Context, userID string) (*model.UserProfile, error) {
	var entity ProfileEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", userID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return toProfileModel(&entity), nil
}

// DeductCredits atomically spends `units` credits (one per billable page)
// and bumps the lifetime processed-page counter. The guarded update is the
// authoritative gate: a client-side pre-check is advisory only. LIFETIME
// profiles skip the decrement but still count pages.
func (r *ProfileRepository) DeductCredits(ctx context.Context, userID string, units uint) error {
	const maxRetries = 3
	const baseDelay = 2 * time.Millisecond

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := r.deductCreditsAttempt(ctx, userID, units)

		if err == nil {
			return nil
		}

		// Don't retry on permanent errors
		if errors.Is(err, ErrProfileNotFound) ||
			errors.Is(err, ErrInsufficientCredits) {
			return err
		}

		if attempt < maxRetries {
			delay := baseDelay * time.Duration(1<<attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				continue
			}
		}
	}

	return fmt.Errorf("%w: failed after %d attempts", ErrMaxRetriesExceeded, maxRetries+1)
}

func (r *ProfileRepository) deductCreditsAttempt(ctx context.Context, userID string, units uint) error {
	var entity ProfileEntity

	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProfileNotFound
		}
		return err
	}

	if model.UserTier(entity.Tier).Unlimited() {
		result := r.Write(ctx).WithContext(ctx).
			Model(&ProfileEntity{}).
			Where("id = ?", userID).
			Update("total_processed_pages", gorm.Expr("total_processed_pages + ?", units))
		return result.Error
	}

	if entity.CreditsRemaining < units {
		return ErrInsufficientCredits
	}

	// The WHERE clause re-checks the floor so two racing deductions can
	// never drive credits_remaining below zero.
	result := r.Write(ctx).WithContext(ctx).
		Model(&ProfileEntity{}).
		Where("id = ? AND credits_remaining >= ?", userID, units).
		Updates(map[string]interface{}{
			"credits_remaining":     gorm.Expr("credits_remaining - ?", units),
			"total_processed_pages": gorm.Expr("total_processed_pages + ?", units),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrInsufficientCredits
	}

	return nil
}

// AddCredits refunds or grants credits.
func (r *ProfileRepository) AddCredits(ctx context.Context, userID string, units uint) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&ProfileEntity{}).
		Where("id = ?", userID).
		Update("credits_remaining", gorm.Expr("credits_remaining + ?", units))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// SetTier applies a payment event: replaces the tier and resets the credit
// balance to the tier allotment, keyed by email because that is what the
// payments provider knows the customer by.
func (r *ProfileRepository) SetTier(ctx context.Context, email string, tier model.UserTier, credits uint) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&ProfileEntity{}).
		Where("email = ?", email).
		Updates(map[string]interface{}{
			"tier":              string(tier),
			"credits_remaining": credits,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (r *ProfileRepository) IncrementReconciliations(ctx context.Context, userID string) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&ProfileEntity{}).
		Where("id = ?", userID).
		Update("reconciliations_count", gorm.Expr("reconciliations_count + 1"))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// SetOpeningBalances stores the session opening balances used by the
// balance calculator.
func (r *ProfileRepository) SetOpeningBalances(ctx context.Context, userID string, bank, ledger *model.Cents) error {
	updates := map[string]interface{}{}
	if bank != nil {
		updates["initial_bank_balance"] = int64(*bank)
	}
	if ledger != nil {
		updates["initial_ledger_balance"] = int64(*ledger)
	}
	if len(updates) == 0 {
		return nil
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&ProfileEntity{}).
		Where("id = ?", userID).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (r *ProfileRepository) GetCredits(ctx context.Context, userID string) (uint, error) {
	var entity ProfileEntity
	err := r.Read(ctx).WithContext(ctx).
		Select("credits_remaining").
		Where("id = ?", userID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrProfileNotFound
		}
		return 0, err
	}

	return entity.CreditsRemaining, nil
}
