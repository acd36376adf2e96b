package services

import (
	"context"
	"testing"

	"github.com/conciliai/reconcile-gateway/internal/model"
	"github.com/conciliai/reconcile-gateway/internal/precheck"
	"github.com/conciliai/reconcile-gateway/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	published []model.ExtractionJob
	err       error
}

func (f *fakePublisher) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.published = append(f.published, data.(model.ExtractionJob))
	return "1-0", nil
}

func setupImportService(t *testing.T) (*ImportService, *repository.AttemptRepository, *repository.ProfileRepository, *fakePublisher) {
	db := repository.SetupTestDB(t)
	attempts := repository.NewAttemptRepository(db)
	profiles := repository.NewProfileRepository(db)
	pub := &fakePublisher{}
	return NewImportService(attempts, profiles, pub), attempts, profiles, pub
}

func seedProfile(t *testing.T, profiles *repository.ProfileRepository, email string) *model.UserProfile {
	t.Helper()
	profile, err := profiles.GetOrCreate(context.Background(), "auth0|"+email, email)
	require.NoError(t, err)
	return profile
}

func TestImportService_Precheck_TextAlwaysOneUnit(t *testing.T) {
	svc, _, profiles, _ := setupImportService(t)
	profile := seedProfile(t, profiles, "ana@example.com")

	attempt, err := svc.Precheck(context.Background(), model.ImportRequest{
		UserID:  profile.ID,
		Source:  model.SourceBank,
		RawText: "SALDO ANTERIOR 1359797.86\nRETIRO CAJERO -50000",
	})
	require.NoError(t, err)

	assert.Equal(t, model.AttemptPrechecked, attempt.State)
	assert.Equal(t, 1, attempt.UnitCount)
	assert.Zero(t, attempt.Shortfall)
}

func TestImportService_Precheck_BlocksOnShortfall(t *testing.T) {
	svc, _, profiles, _ := setupImportService(t)
	profile := seedProfile(t, profiles, "ana@example.com")

	// Burn the balance down to 2 credits, then quote a 3-page document.
	require.NoError(t, profiles.DeductCredits(context.Background(), profile.ID, model.FreeTierCredits-2))

	attempt, err := svc.Precheck(context.Background(), model.ImportRequest{
		UserID:   profile.ID,
		Filename: "extracto.pdf",
		MimeType: "application/pdf",
		Source:   model.SourceBank,
		Data:     buildTestPDF(3),
	})
	require.NoError(t, err)

	assert.Equal(t, model.AttemptBlocked, attempt.State)
	assert.Equal(t, 3, attempt.UnitCount)
	assert.Equal(t, 1, attempt.Shortfall)

	// Blocked attempts never spend anything.
	credits, err := profiles.GetCredits(context.Background(), profile.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(2), credits)
}

func TestImportService_Precheck_UnreadableDocument(t *testing.T) {
	svc, attempts, profiles, _ := setupImportService(t)
	profile := seedProfile(t, profiles, "ana@example.com")

	_, err := svc.Precheck(context.Background(), model.ImportRequest{
		UserID:   profile.ID,
		Filename: "broken.pdf",
		MimeType: "application/pdf",
		Source:   model.SourceBank,
		Data:     []byte("%PDF-1.4 garbage"),
	})
	assert.ErrorIs(t, err, precheck.ErrDocumentUnreadable)

	list, err := attempts.List(context.Background(), profile.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.AttemptFailed, list[0].State)
}

func TestImportService_Confirm_Enqueues(t *testing.T) {
	svc, _, profiles, pub := setupImportService(t)
	profile := seedProfile(t, profiles, "ana@example.com")

	attempt, err := svc.Precheck(context.Background(), model.ImportRequest{
		UserID: profile.ID, Source: model.SourceBank, RawText: "ABONO 100",
	})
	require.NoError(t, err)

	confirmed, err := svc.Confirm(context.Background(), attempt.ID, profile.ID)
	require.NoError(t, err)

	assert.Equal(t, model.AttemptConfirmed, confirmed.State)
	require.Len(t, pub.published, 1)
	assert.Equal(t, attempt.ID, pub.published[0].AttemptID)
	assert.Equal(t, profile.ID, pub.published[0].UserID)
}

func TestImportService_Confirm_BlockedAttemptRefused(t *testing.T) {
	svc, _, profiles, pub := setupImportService(t)
	profile := seedProfile(t, profiles, "ana@example.com")
	require.NoError(t, profiles.DeductCredits(context.Background(), profile.ID, model.FreeTierCredits))

	attempt, err := svc.Precheck(context.Background(), model.ImportRequest{
		UserID: profile.ID, Source: model.SourceBank, RawText: "ABONO 100",
	})
	require.NoError(t, err)
	require.Equal(t, model.AttemptBlocked, attempt.State)

	_, err = svc.Confirm(context.Background(), attempt.ID, profile.ID)
	assert.ErrorIs(t, err, ErrAttemptNotConfirmable)
	assert.Empty(t, pub.published, "blocked attempts must never reach the queue")
}

func TestImportService_Confirm_Twice(t *testing.T) {
	svc, _, profiles, pub := setupImportService(t)
	profile := seedProfile(t, profiles, "ana@example.com")

	attempt, err := svc.Precheck(context.Background(), model.ImportRequest{
		UserID: profile.ID, Source: model.SourceBank, RawText: "ABONO 100",
	})
	require.NoError(t, err)

	_, err = svc.Confirm(context.Background(), attempt.ID, profile.ID)
	require.NoError(t, err)

	_, err = svc.Confirm(context.Background(), attempt.ID, profile.ID)
	assert.ErrorIs(t, err, ErrAttemptNotConfirmable)
	assert.Len(t, pub.published, 1, "double confirm must not enqueue twice")
}

func TestImportService_Confirm_WrongOwner(t *testing.T) {
	svc, _, profiles, _ := setupImportService(t)
	owner := seedProfile(t, profiles, "ana@example.com")
	other := seedProfile(t, profiles, "eve@example.com")

	attempt, err := svc.Precheck(context.Background(), model.ImportRequest{
		UserID: owner.ID, Source: model.SourceBank, RawText: "ABONO 100",
	})
	require.NoError(t, err)

	_, err = svc.Confirm(context.Background(), attempt.ID, other.ID)
	assert.ErrorIs(t, err, repository.ErrAttemptNotFound)
}
