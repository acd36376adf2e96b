package repository

import (
	"context"
	"testing"

	"github.com/conciliai/reconcile-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAttempt(t *testing.T, db *testDB, id string, state model.AttemptState) {
	t.Helper()
	err := db.Write(context.Background()).Create(&AttemptEntity{
		ID:        id,
		UserID:    "u1",
		Filename:  "extracto.pdf",
		MimeType:  "application/pdf",
		Source:    "BANK",
		UnitCount: 2,
		State:     string(state),
		Payload:   []byte("%PDF-1.4"),
	}).Error
	require.NoError(t, err)
}

func TestAttemptRepository_Transition(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttemptRepository(db.DB)
	ctx := context.Background()

	t.Run("legal transition", func(t *testing.T) {
		seedAttempt(t, db, "a1", model.AttemptPrechecked)

		err := repo.Transition(ctx, "a1", model.AttemptPrechecked, model.AttemptConfirmed, nil)
		require.NoError(t, err)

		got, err := repo.Get(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, model.AttemptConfirmed, got.State)
	})

	t.Run("illegal transition rejected up front", func(t *testing.T) {
		seedAttempt(t, db, "a2", model.AttemptPrechecked)

		err := repo.Transition(ctx, "a2", model.AttemptPrechecked, model.AttemptIngested, nil)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("stale prior state rejected by the guarded update", func(t *testing.T) {
		seedAttempt(t, db, "a3", model.AttemptConfirmed)

		// Caller believes the attempt is still PRECHECKED.
		err := repo.Transition(ctx, "a3", model.AttemptPrechecked, model.AttemptConfirmed, nil)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("missing attempt", func(t *testing.T) {
		err := repo.Transition(ctx, "ghost", model.AttemptPrechecked, model.AttemptConfirmed, nil)
		assert.ErrorIs(t, err, ErrAttemptNotFound)
	})
}

func TestAttemptRepository_Fail(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttemptRepository(db.DB)
	ctx := context.Background()

	t.Run("fails an in-flight attempt", func(t *testing.T) {
		seedAttempt(t, db, "a1", model.AttemptExtracting)

		err := repo.Fail(ctx, "a1", "extraction returned no transactions")
		require.NoError(t, err)

		got, err := repo.Get(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, model.AttemptFailed, got.State)
		assert.Equal(t, "extraction returned no transactions", got.LastError)
	})

	t.Run("terminal attempts stay put", func(t *testing.T) {
		seedAttempt(t, db, "a2", model.AttemptIngested)

		err := repo.Fail(ctx, "a2", "late failure")
		assert.ErrorIs(t, err, ErrAttemptNotFound)

		got, err := repo.Get(ctx, "a2")
		require.NoError(t, err)
		assert.Equal(t, model.AttemptIngested, got.State)
	})
}

func TestAttemptRepository_ClearPayload(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttemptRepository(db.DB)
	ctx := context.Background()

	seedAttempt(t, db, "a1", model.AttemptIngested)

	err := repo.ClearPayload(ctx, "a1")
	require.NoError(t, err)

	got, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, got.Payload)
	assert.Empty(t, got.RawText)
}
