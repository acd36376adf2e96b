package e2e

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/conciliai/reconcile-gateway/internal/config"
	"github.com/conciliai/reconcile-gateway/internal/model"
	"github.com/conciliai/reconcile-gateway/internal/processor"
	"github.com/conciliai/reconcile-gateway/internal/queue"
	"github.com/conciliai/reconcile-gateway/internal/repository"
	"github.com/conciliai/reconcile-gateway/internal/services"
	"github.com/conciliai/reconcile-gateway/pkg/pg"
	"github.com/conciliai/reconcile-gateway/pkg/redis"
	"github.com/conciliai/reconcile-gateway/test/fixtures"
	"github.com/conciliai/reconcile-gateway/test/helpers"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExtractor struct {
	result *model.ImportResult
	err    error
	calls  int
}

func (s *stubExtractor) ParseDocument(ctx context.Context, data []byte, mimeType string, userID string, source model.TransactionSource) (*model.ImportResult, error) {
	s.calls++
	return s.result, s.err
}

func (s *stubExtractor) ParseText(ctx context.Context, rawText string, userID string, source model.TransactionSource) (*model.ImportResult, error) {
	s.calls++
	return s.result, s.err
}

type TestEnvironment struct {
	DB              *pg.DB
	Redis           *miniredis.Miniredis
	Queue           *queue.Queue
	ProfileRepo     *repository.ProfileRepository
	AttemptRepo     *repository.AttemptRepository
	BatchRepo       *repository.BatchRepository
	TransactionRepo *repository.TransactionRepository
	ImportService   *services.ImportService
	Extractor       *stubExtractor
	Processor       *processor.ExtractionProcessor
}

func setupE2EEnvironment(t *testing.T) *TestEnvironment {
	config.Set(&config.Config{ExtractionTimeout: 5 * time.Second})

	db := helpers.SetupTestDB(t)

	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Use unique connection name per test to avoid global adapter caching issues
	connName := fmt.Sprintf("test-%d", time.Now().UnixNano())
	redisAdapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	queueConfig := queue.QueueConfig{
		Name:              "test:extractions",
		ConsumerGroup:     "test-group",
		ConsumerName:      "test-consumer",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      100 * time.Millisecond,
		BatchSize:         10,
		MaxLen:            1000,
		EnableDLQ:         true,
	}

	q, err := queue.NewQueue(redisAdapter, queueConfig)
	require.NoError(t, err)

	profileRepo := repository.NewProfileRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)

	importService := services.NewImportService(attemptRepo, profileRepo, q)

	extractor := &stubExtractor{}
	idempotency := processor.NewIdempotencyService(redisAdapter, processor.DefaultIdempotencyConfig())
	proc := processor.NewExtractionProcessor(attemptRepo, profileRepo, batchRepo, transactionRepo, extractor, idempotency)

	return &TestEnvironment{
		DB:              db,
		Redis:           mr,
		Queue:           q,
		ProfileRepo:     profileRepo,
		AttemptRepo:     attemptRepo,
		BatchRepo:       batchRepo,
		TransactionRepo: transactionRepo,
		ImportService:   importService,
		Extractor:       extractor,
		Processor:       proc,
	}
}

func (env *TestEnvironment) Cleanup() {
	// Stop queue first (gracefully drain messages)
	if env.Queue != nil {
		_ = env.Queue.Stop(5 * time.Second)
	}
	// Give time for any in-flight operations to complete
	time.Sleep(100 * time.Millisecond)
	// Then close Redis
	if env.Redis != nil {
		env.Redis.Close()
	}
}

func (env *TestEnvironment) startWorker(t *testing.T) {
	err := env.Queue.Consume(func(ctx context.Context, msg *queue.Message) error {
		return env.Processor.Process(ctx, msg)
	})
	require.NoError(t, err)
}

func TestE2E_ImportFlow(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	profile, err := env.ProfileRepo.GetOrCreate(ctx, "auth0|ana", "ana@example.com")
	require.NoError(t, err)
	require.Equal(t, uint(model.FreeTierCredits), profile.CreditsRemaining)

	env.Extractor.result = fixtures.StatementResult(profile.ID, model.SourceBank)

	attempt, err := env.ImportService.Precheck(ctx, fixtures.NewTextImportRequest(profile.ID, model.SourceBank))
	require.NoError(t, err)
	assert.Equal(t, model.AttemptPrechecked, attempt.State)
	assert.Equal(t, 1, attempt.UnitCount)

	attempt, err = env.ImportService.Confirm(ctx, attempt.ID, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptConfirmed, attempt.State)

	env.startWorker(t)

	helpers.AssertEventually(t, 5*time.Second, func() bool {
		got, err := env.AttemptRepo.Get(ctx, attempt.ID)
		return err == nil && got.State == model.AttemptIngested
	}, "attempt not ingested within timeout")

	got, err := env.AttemptRepo.Get(ctx, attempt.ID)
	require.NoError(t, err)
	require.NotNil(t, got.BatchID)

	batch, err := env.BatchRepo.Get(ctx, *got.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Count)
	assert.False(t, batch.HasDiscrepancy())

	txns, total, err := env.TransactionRepo.List(ctx, fixtures.TransactionFilterByUser(profile.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, txn := range txns {
		assert.Equal(t, *got.BatchID, txn.BatchID)
	}

	updated, err := env.ProfileRepo.Get(ctx, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(model.FreeTierCredits-1), updated.CreditsRemaining)
	assert.Equal(t, model.Cents(135979786), updated.InitialBankBalance)
}

func TestE2E_BlockedOnCredits(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	profile, err := env.ProfileRepo.GetOrCreate(ctx, "auth0|empty", "empty@example.com")
	require.NoError(t, err)
	require.NoError(t, env.ProfileRepo.DeductCredits(ctx, profile.ID, model.FreeTierCredits-2))

	attempt, err := env.ImportService.Precheck(ctx,
		fixtures.NewDocumentImportRequest(profile.ID, model.SourceBank, helpers.BuildTestPDF(3)))
	require.NoError(t, err)
	assert.Equal(t, model.AttemptBlocked, attempt.State)
	assert.Equal(t, 3, attempt.UnitCount)
	assert.Equal(t, 1, attempt.Shortfall)

	_, err = env.ImportService.Confirm(ctx, attempt.ID, profile.ID)
	assert.ErrorIs(t, err, services.ErrAttemptNotConfirmable)

	// No credits were spent and nothing was enqueued.
	updated, err := env.ProfileRepo.Get(ctx, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(2), updated.CreditsRemaining)

	stats, err := env.Queue.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalMessages)
}

func TestE2E_ExtractionFailureRefunds(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	profile, err := env.ProfileRepo.GetOrCreate(ctx, "auth0|carlos", "carlos@example.com")
	require.NoError(t, err)

	env.Extractor.err = fmt.Errorf("model unavailable")

	attempt, err := env.ImportService.Precheck(ctx, fixtures.NewTextImportRequest(profile.ID, model.SourceBank))
	require.NoError(t, err)

	_, err = env.ImportService.Confirm(ctx, attempt.ID, profile.ID)
	require.NoError(t, err)

	env.startWorker(t)

	helpers.AssertEventually(t, 5*time.Second, func() bool {
		got, err := env.AttemptRepo.Get(ctx, attempt.ID)
		return err == nil && got.State == model.AttemptFailed
	}, "attempt not failed within timeout")

	// The deducted credit came back: users only pay for extractions that
	// produce data.
	updated, err := env.ProfileRepo.Get(ctx, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(model.FreeTierCredits), updated.CreditsRemaining)

	batches, err := env.BatchRepo.List(ctx, profile.ID)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestE2E_ManualEntryAndMatch(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	profile, err := env.ProfileRepo.GetOrCreate(ctx, "auth0|lucia", "lucia@example.com")
	require.NoError(t, err)

	svc := services.NewReconcileService(env.TransactionRepo, env.BatchRepo, env.ProfileRepo, nil)

	bank, err := svc.CreateTransaction(ctx, model.TransactionCreateRequest{
		UserID:      profile.ID,
		Date:        "2025-03-05",
		Description: "PAGO PROVEEDOR ACME",
		AmountCents: -5000000,
		Source:      model.SourceBank,
	})
	require.NoError(t, err)

	ledger, err := svc.CreateTransaction(ctx, model.TransactionCreateRequest{
		UserID:      profile.ID,
		Date:        "2025-03-05",
		Description: "FACTURA ACME",
		AmountCents: -5000000,
		Source:      model.SourceLedger,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Match(ctx, profile.ID, bank.ID, ledger.ID))

	stats, err := svc.Stats(ctx, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Matched)
	assert.Equal(t, 0, stats.Pending)
	assert.True(t, stats.Balanced)
}
