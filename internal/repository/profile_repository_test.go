package repository

import (
	"context"
	"testing"

	"github.com/conciliai/reconcile-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileRepository_DeductCredits(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewProfileRepository(db)
	ctx := context.Background()

	t.Run("successful deduction", func(t *testing.T) {
		profile := &ProfileEntity{
			ID:               "u1",
			Email:            "u1@example.com",
			Tier:             "FREE",
			CreditsRemaining: 10,
		}
		err := db.Write(ctx).Create(profile).Error
		require.NoError(t, err)

		err = repo.DeductCredits(ctx, "u1", 3)
		assert.NoError(t, err)

		credits, err := repo.GetCredits(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, uint(7), credits)
	})

	t.Run("deduction bumps processed pages", func(t *testing.T) {
		profile := &ProfileEntity{
			ID:               "u2",
			Email:            "u2@example.com",
			Tier:             "PRO",
			CreditsRemaining: 500,
		}
		err := db.Write(ctx).Create(profile).Error
		require.NoError(t, err)

		err = repo.DeductCredits(ctx, "u2", 4)
		require.NoError(t, err)

		got, err := repo.Get(ctx, "u2")
		require.NoError(t, err)
		assert.Equal(t, uint(496), got.CreditsRemaining)
		assert.Equal(t, uint(4), got.TotalProcessedPages)
	})

	t.Run("insufficient credits", func(t *testing.T) {
		profile := &ProfileEntity{
			ID:               "u3",
			Email:            "u3@example.com",
			Tier:             "FREE",
			CreditsRemaining: 2,
		}
		err := db.Write(ctx).Create(profile).Error
		require.NoError(t, err)

		err = repo.DeductCredits(ctx, "u3", 3)
		assert.ErrorIs(t, err, ErrInsufficientCredits)

		credits, err := repo.GetCredits(ctx, "u3")
		require.NoError(t, err)
		assert.Equal(t, uint(2), credits)
	})

	t.Run("profile not found", func(t *testing.T) {
		err := repo.DeductCredits(ctx, "missing", 1)
		assert.ErrorIs(t, err, ErrProfileNotFound)
	})

	t.Run("exact balance deduction hits the floor", func(t *testing.T) {
		profile := &ProfileEntity{
			ID:               "u4",
			Email:            "u4@example.com",
			Tier:             "FREE",
			CreditsRemaining: 5,
		}
		err := db.Write(ctx).Create(profile).Error
		require.NoError(t, err)

		err = repo.DeductCredits(ctx, "u4", 5)
		assert.NoError(t, err)

		credits, err := repo.GetCredits(ctx, "u4")
		require.NoError(t, err)
		assert.Equal(t, uint(0), credits)

		err = repo.DeductCredits(ctx, "u4", 1)
		assert.ErrorIs(t, err, ErrInsufficientCredits)
	})

	t.Run("lifetime tier skips the decrement", func(t *testing.T) {
		profile := &ProfileEntity{
			ID:               "vip",
			Email:            "vip@example.com",
			Tier:             "LIFETIME",
			CreditsRemaining: 1,
		}
		err := db.Write(ctx).Create(profile).Error
		require.NoError(t, err)

		err = repo.DeductCredits(ctx, "vip", 40)
		assert.NoError(t, err)

		got, err := repo.Get(ctx, "vip")
		require.NoError(t, err)
		assert.Equal(t, uint(1), got.CreditsRemaining)
		assert.Equal(t, uint(40), got.TotalProcessedPages)
	})
}

// Two deductions racing over the last credit: the loser's advisory read saw
// a positive balance, but the guarded UPDATE re-checks the floor and rejects
// it. Interleaved sequentially because SQLite serializes writers anyway; the
// same WHERE clause is what closes the race under PostgreSQL.
func TestProfileRepository_StaleReadDeduction(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewProfileRepository(db)
	ctx := context.Background()

	profile := &ProfileEntity{
		ID:               "contended",
		Email:            "contended@example.com",
		Tier:             "FREE",
		CreditsRemaining: 1,
	}
	require.NoError(t, db.Write(ctx).Create(profile).Error)

	// Both callers pre-check and see one credit available.
	credits, err := repo.GetCredits(ctx, "contended")
	require.NoError(t, err)
	require.Equal(t, uint(1), credits)

	// The competing deduction lands first and drains the balance.
	require.NoError(t, repo.DeductCredits(ctx, "contended", 1))

	// The caller holding the stale pre-check is rejected by the guard.
	err = repo.DeductCredits(ctx, "contended", 1)
	assert.ErrorIs(t, err, ErrInsufficientCredits)

	credits, err = repo.GetCredits(ctx, "contended")
	require.NoError(t, err)
	assert.Equal(t, uint(0), credits, "the floor holds at zero")

	// Exactly one deduction was charged.
	got, err := repo.Get(ctx, "contended")
	require.NoError(t, err)
	assert.Equal(t, uint(1), got.TotalProcessedPages)
}

func TestProfileRepository_GetOrCreate(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewProfileRepository(db)
	ctx := context.Background()

	t.Run("first login creates FREE profile keyed by the provider id", func(t *testing.T) {
		p, err := repo.GetOrCreate(ctx, "auth0|64fe21ab", "new@example.com")
		require.NoError(t, err)
		assert.Equal(t, model.TierFree, p.Tier)
		assert.Equal(t, uint(model.FreeTierCredits), p.CreditsRemaining)
		assert.Equal(t, "auth0|64fe21ab", p.ID)

		// Every id-scoped lookup must land on the row created at login.
		got, err := repo.Get(ctx, "auth0|64fe21ab")
		require.NoError(t, err)
		assert.Equal(t, "new@example.com", got.Email)

		credits, err := repo.GetCredits(ctx, "auth0|64fe21ab")
		require.NoError(t, err)
		assert.Equal(t, uint(model.FreeTierCredits), credits)
	})

	t.Run("second login returns the same profile", func(t *testing.T) {
		first, err := repo.GetOrCreate(ctx, "auth0|aaa111", "again@example.com")
		require.NoError(t, err)

		second, err := repo.GetOrCreate(ctx, "auth0|aaa111", "again@example.com")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("pre-provisioned email is claimed by id", func(t *testing.T) {
		seeded := &ProfileEntity{
			ID:               "seeded",
			Email:            "early@example.com",
			Tier:             "PRO",
			CreditsRemaining: 500,
		}
		require.NoError(t, db.Write(ctx).Create(seeded).Error)

		p, err := repo.GetOrCreate(ctx, "auth0|bbb222", "early@example.com")
		require.NoError(t, err)
		assert.Equal(t, "seeded", p.ID)
		assert.Equal(t, model.TierPro, p.Tier)
	})
}

func TestProfileRepository_SetTier(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewProfileRepository(db)
	ctx := context.Background()

	profile := &ProfileEntity{
		ID:               "u1",
		Email:            "payer@example.com",
		Tier:             "FREE",
		CreditsRemaining: 2,
	}
	require.NoError(t, db.Write(ctx).Create(profile).Error)

	t.Run("upgrade to PRO resets credits", func(t *testing.T) {
		err := repo.SetTier(ctx, "payer@example.com", model.TierPro, model.ProTierCredits)
		require.NoError(t, err)

		got, err := repo.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, model.TierPro, got.Tier)
		assert.Equal(t, uint(model.ProTierCredits), got.CreditsRemaining)
	})

	t.Run("downgrade to FREE", func(t *testing.T) {
		err := repo.SetTier(ctx, "payer@example.com", model.TierFree, model.FreeTierCredits)
		require.NoError(t, err)

		got, err := repo.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, model.TierFree, got.Tier)
		assert.Equal(t, uint(model.FreeTierCredits), got.CreditsRemaining)
	})

	t.Run("unknown email", func(t *testing.T) {
		err := repo.SetTier(ctx, "nobody@example.com", model.TierPro, 500)
		assert.ErrorIs(t, err, ErrProfileNotFound)
	})
}

func TestProfileRepository_AddCredits(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewProfileRepository(db)
	ctx := context.Background()

	profile := &ProfileEntity{
		ID:               "u1",
		Email:            "refund@example.com",
		Tier:             "FREE",
		CreditsRemaining: 3,
	}
	require.NoError(t, db.Write(ctx).Create(profile).Error)

	err := repo.AddCredits(ctx, "u1", 2)
	require.NoError(t, err)

	credits, err := repo.GetCredits(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, uint(5), credits)
}
