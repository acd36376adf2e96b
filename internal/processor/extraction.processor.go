package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/conciliai/reconcile-gateway/internal/config"
	"github.com/conciliai/reconcile-gateway/internal/model"
	"github.com/conciliai/reconcile-gateway/internal/queue"
	"github.com/conciliai/reconcile-gateway/internal/reconcile"
	"github.com/conciliai/reconcile-gateway/internal/repository"
	"github.com/conciliai/reconcile-gateway/pkg/logger"
	"github.com/conciliai/reconcile-gateway/pkg/prom"
	"github.com/google/uuid"
)

// Extractor is the slice of the extraction client the worker needs.
type Extractor interface {
	ParseDocument(ctx context.Context, data []byte, mimeType string, userID string, source model.TransactionSource) (*model.ImportResult, error)
	ParseText(ctx context.Context, rawText string, userID string, source model.TransactionSource) (*model.ImportResult, error)
}

// ExtractionProcessor drives one confirmed attempt through deduction,
// extraction and ingestion. Credits are deducted server-side before the
// extraction call; any failure after deduction refunds them and marks the
// attempt FAILED. Billable failures are never retried automatically: a
// retry is a new attempt the user confirms again.
type ExtractionProcessor struct {
	attempts     *repository.AttemptRepository
	profiles     *repository.ProfileRepository
	batches      *repository.BatchRepository
	transactions *repository.TransactionRepository
	extractor    Extractor
	idempotency  *IdempotencyService
}

func NewExtractionProcessor(
	attempts *repository.AttemptRepository,
	profiles *repository.ProfileRepository,
	batches *repository.BatchRepository,
	transactions *repository.TransactionRepository,
	extractor Extractor,
	idempotency *IdempotencyService,
) *ExtractionProcessor {
	return &ExtractionProcessor{
		attempts:     attempts,
		profiles:     profiles,
		batches:      batches,
		transactions: transactions,
		extractor:    extractor,
		idempotency:  idempotency,
	}
}

func (p *ExtractionProcessor) GetType() string {
	return "extraction"
}

// Process handles one queue message with idempotency guarantees.
func (p *ExtractionProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	var job model.ExtractionJob
	if err := json.Unmarshal(queueMessage.Data, &job); err != nil {
		logger.Error("Failed to unmarshal extraction job", "error", err)
		return err // move to DLQ, nothing to mark failed
	}

	procCtx, err := p.idempotency.AcquireProcessingLock(ctx, job.AttemptID)
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			return nil
		}
		if errors.Is(err, ErrMaxRetriesExceeded) {
			logger.Error("Max retries exceeded for attempt", "attempt_id", job.AttemptID)
			if failErr := p.attempts.Fail(ctx, job.AttemptID, "max processing retries exceeded"); failErr != nil && !errors.Is(failErr, repository.ErrAttemptNotFound) {
				logger.Error("Failed to mark attempt failed", "attempt_id", job.AttemptID, "error", failErr)
			}
			return nil // ACK to move to DLQ
		}
		if errors.Is(err, ErrLockAcquireFailed) {
			return errors.New("lock held by another consumer")
		}
		return err
	}

	defer func() {
		if procCtx.lockAcquired {
			p.idempotency.ReleaseLock(ctx, procCtx)
		}
	}()

	attempt, err := p.attempts.Get(ctx, job.AttemptID)
	if err != nil {
		if errors.Is(err, repository.ErrAttemptNotFound) {
			logger.Warn("Attempt vanished, dropping job", "attempt_id", job.AttemptID)
			return p.idempotency.MarkSuccess(ctx, procCtx)
		}
		if markErr := p.idempotency.MarkFailure(ctx, procCtx, err); markErr != nil {
			logger.Error("Failed to mark failure", "attempt_id", job.AttemptID, "error", markErr)
		}
		return err
	}

	if attempt.State.Terminal() {
		logger.Info("Attempt already terminal, skipping", "attempt_id", attempt.ID, "state", attempt.State)
		return p.idempotency.MarkSuccess(ctx, procCtx)
	}

	logger.Info("Processing extraction",
		"attempt_id", attempt.ID,
		"units", attempt.UnitCount,
		"retry_count", procCtx.RetryCount)

	start := time.Now()
	err = p.run(ctx, attempt)
	if err != nil {
		prom.AddExtractionDuration(time.Since(start).Seconds(), "failed")
		// run already moved the attempt to FAILED and refunded; retrying
		// would double-bill, so the message is acked either way.
		if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
			logger.Error("Failed to mark processed", "attempt_id", attempt.ID, "error", markErr)
		}
		return nil
	}

	prom.AddExtractionDuration(time.Since(start).Seconds(), "ingested")
	if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
		logger.Error("Failed to mark processed", "attempt_id", attempt.ID, "error", markErr)
	}
	return nil
}

// run drives the state machine for one attempt. On any failure after the
// deduction it refunds the credits, records the reason on the attempt and
// returns the error.
func (p *ExtractionProcessor) run(ctx context.Context, attempt *model.ImportAttempt) error {
	units := uint(attempt.UnitCount)

	if err := p.attempts.Transition(ctx, attempt.ID, model.AttemptConfirmed, model.AttemptDeducting, nil); err != nil {
		return p.fail(ctx, attempt.ID, fmt.Errorf("enter deduction: %w", err))
	}

	profile, err := p.profiles.Get(ctx, attempt.UserID)
	if err != nil {
		return p.fail(ctx, attempt.ID, err)
	}

	if err := p.profiles.DeductCredits(ctx, attempt.UserID, units); err != nil {
		if errors.Is(err, repository.ErrInsufficientCredits) {
			logger.Warn("Deduction refused, balance changed since pre-check",
				"attempt_id", attempt.ID, "units", units)
		}
		return p.fail(ctx, attempt.ID, fmt.Errorf("deduct credits: %w", err))
	}
	prom.AddCreditsSpent(float64(units), string(profile.Tier))

	// LIFETIME profiles never had credits decremented, so nothing to refund.
	refundUnits := units
	if profile.Tier.Unlimited() {
		refundUnits = 0
	}

	if err := p.attempts.Transition(ctx, attempt.ID, model.AttemptDeducting, model.AttemptExtracting, nil); err != nil {
		return p.refundAndFail(ctx, attempt, refundUnits, fmt.Errorf("enter extraction: %w", err))
	}

	extractCtx, cancel := context.WithTimeout(ctx, config.Get().ExtractionTimeout)
	defer cancel()

	var result *model.ImportResult
	if len(attempt.Payload) > 0 {
		result, err = p.extractor.ParseDocument(extractCtx, attempt.Payload, attempt.MimeType, attempt.UserID, attempt.Source)
	} else {
		result, err = p.extractor.ParseText(extractCtx, attempt.RawText, attempt.UserID, attempt.Source)
	}
	if err != nil {
		return p.refundAndFail(ctx, attempt, refundUnits, fmt.Errorf("extraction: %w", err))
	}

	batchID, err := p.ingest(ctx, attempt, result)
	if err != nil {
		return p.refundAndFail(ctx, attempt, refundUnits, fmt.Errorf("ingest: %w", err))
	}

	if err := p.attempts.Transition(ctx, attempt.ID, model.AttemptExtracting, model.AttemptIngested, map[string]interface{}{
		"batch_id": batchID,
	}); err != nil {
		return p.refundAndFail(ctx, attempt, refundUnits, fmt.Errorf("finalize: %w", err))
	}

	if err := p.attempts.ClearPayload(ctx, attempt.ID); err != nil {
		logger.Warn("Failed to clear attempt payload", "attempt_id", attempt.ID, "error", err)
	}

	logger.Info("Extraction ingested",
		"attempt_id", attempt.ID,
		"batch_id", batchID,
		"transactions", len(result.Transactions))
	return nil
}

// ingest persists the batch, its transactions, and seeds the opening
// balance for the imported side when the statement reported one.
func (p *ExtractionProcessor) ingest(ctx context.Context, attempt *model.ImportAttempt, result *model.ImportResult) (string, error) {
	batch := &model.ImportBatch{
		ID:        uuid.NewString(),
		UserID:    attempt.UserID,
		Filename:  attempt.Filename,
		Source:    attempt.Source,
		Count:     len(result.Transactions),
		CreatedAt: time.Now(),
	}

	if result.Summary != nil {
		expected := result.Summary.FinalBalance
		computed, _ := reconcile.VerifyStatement(result.Summary, result.Transactions)
		batch.ExpectedFinalBalance = &expected
		batch.ActualFinalBalance = &computed
	}

	if _, err := p.batches.Create(ctx, batch); err != nil {
		return "", err
	}

	for _, txn := range result.Transactions {
		txn.BatchID = batch.ID
	}
	if err := p.transactions.CreateBatch(ctx, result.Transactions); err != nil {
		return "", err
	}

	if result.Summary != nil {
		opening := result.Summary.InitialBalance
		var bank, ledger *model.Cents
		if attempt.Source == model.SourceBank {
			bank = &opening
		} else {
			ledger = &opening
		}
		if err := p.profiles.SetOpeningBalances(ctx, attempt.UserID, bank, ledger); err != nil {
			logger.Warn("Failed to seed opening balance", "attempt_id", attempt.ID, "error", err)
		}
	}

	return batch.ID, nil
}

func (p *ExtractionProcessor) fail(ctx context.Context, attemptID string, cause error) error {
	logger.Error("Extraction attempt failed", "attempt_id", attemptID, "error", cause)
	if err := p.attempts.Fail(ctx, attemptID, cause.Error()); err != nil {
		logger.Error("Failed to record attempt failure", "attempt_id", attemptID, "error", err)
	}
	return cause
}

// refundAndFail returns the spent credits before recording the failure.
// Users only pay for extractions that produce data.
func (p *ExtractionProcessor) refundAndFail(ctx context.Context, attempt *model.ImportAttempt, units uint, cause error) error {
	if err := p.profiles.AddCredits(ctx, attempt.UserID, units); err != nil {
		logger.Error("Refund failed", "attempt_id", attempt.ID, "units", units, "error", err)
	} else {
		logger.Info("Credits refunded", "attempt_id", attempt.ID, "units", units)
	}
	return p.fail(ctx, attempt.ID, cause)
}
