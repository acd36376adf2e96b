package services

import (
	"context"
	"time"

	"github.com/conciliai/reconcile-gateway/internal/model"
	"github.com/conciliai/reconcile-gateway/internal/reconcile"
	"github.com/conciliai/reconcile-gateway/internal/repository"
	"github.com/conciliai/reconcile-gateway/pkg/logger"
	"github.com/google/uuid"
)

// Suggester produces advisory match suggestions for pending movements.
type Suggester interface {
	SuggestMatches(ctx context.Context, bank, ledger []*model.Transaction) []model.MatchSuggestion
}

// ReconcileService is the workspace API: transactions, matching, balance
// stats and session completion.
type ReconcileService struct {
	transactions *repository.TransactionRepository
	batches      *repository.BatchRepository
	profiles     *repository.ProfileRepository
	suggester    Suggester
}

func NewReconcileService(
	transactions *repository.TransactionRepository,
	batches *repository.BatchRepository,
	profiles *repository.ProfileRepository,
	suggester Suggester,
) *ReconcileService {
	return &ReconcileService{
		transactions: transactions,
		batches:      batches,
		profiles:     profiles,
		suggester:    suggester,
	}
}

func (s *ReconcileService) CreateTransaction(ctx context.Context, req model.TransactionCreateRequest) (*model.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.transactions.Create(ctx, &model.Transaction{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		Date:        req.Date,
		Description: req.Description,
		AmountCents: req.AmountCents,
		Source:      req.Source,
		Status:      model.StatusPending,
		IsEdited:    true,
		CreatedAt:   time.Now(),
	})
}

func (s *ReconcileService) ListTransactions(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	return s.transactions.List(ctx, f)
}

func (s *ReconcileService) Match(ctx context.Context, userID, bankID, ledgerID string) error {
	if err := s.ownsAll(ctx, userID, bankID, ledgerID); err != nil {
		return err
	}
	return s.transactions.Match(ctx, bankID, ledgerID)
}

func (s *ReconcileService) Unmatch(ctx context.Context, userID, id string) error {
	if err := s.ownsAll(ctx, userID, id); err != nil {
		return err
	}
	return s.transactions.Unmatch(ctx, id)
}

func (s *ReconcileService) FlagDiscrepancy(ctx context.Context, userID, id, note string) error {
	if err := s.ownsAll(ctx, userID, id); err != nil {
		return err
	}
	return s.transactions.FlagDiscrepancy(ctx, id, note)
}

func (s *ReconcileService) UpdateNotes(ctx context.Context, userID, id, notes string) error {
	if err := s.ownsAll(ctx, userID, id); err != nil {
		return err
	}
	return s.transactions.UpdateNotes(ctx, id, notes)
}

// Stats computes the live balance picture from the profile's opening
// balances and every movement in the workspace.
func (s *ReconcileService) Stats(ctx context.Context, userID string) (*reconcile.Stats, error) {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	txns, _, err := s.transactions.List(ctx, model.TransactionFilter{UserID: userID})
	if err != nil {
		return nil, err
	}

	stats := reconcile.Compute(profile.InitialBankBalance, profile.InitialLedgerBalance, txns)
	return &stats, nil
}

// Suggestions asks the model for advisory pairings over the PENDING
// movements. A suggester failure yields an empty list, never an error.
func (s *ReconcileService) Suggestions(ctx context.Context, userID string) ([]model.MatchSuggestion, error) {
	pending := []model.TransactionStatus{model.StatusPending}

	bankSource := model.SourceBank
	bank, _, err := s.transactions.List(ctx, model.TransactionFilter{UserID: userID, Source: &bankSource, Statuses: pending})
	if err != nil {
		return nil, err
	}

	ledgerSource := model.SourceLedger
	ledger, _, err := s.transactions.List(ctx, model.TransactionFilter{UserID: userID, Source: &ledgerSource, Statuses: pending})
	if err != nil {
		return nil, err
	}

	if len(bank) == 0 || len(ledger) == 0 {
		return nil, nil
	}
	return s.suggester.SuggestMatches(ctx, bank, ledger), nil
}

// Complete closes the current session: bumps the lifetime reconciliation
// counter and returns the final stats snapshot.
func (s *ReconcileService) Complete(ctx context.Context, userID string) (*reconcile.Stats, error) {
	stats, err := s.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.profiles.IncrementReconciliations(ctx, userID); err != nil {
		return nil, err
	}

	logger.Info("reconciliation completed",
		"user_id", userID, "difference", stats.Difference, "balanced", stats.Balanced)
	return stats, nil
}

func (s *ReconcileService) ListBatches(ctx context.Context, userID string) ([]*model.ImportBatch, error) {
	return s.batches.List(ctx, userID)
}

// DeleteBatch removes an import and all its transactions.
func (s *ReconcileService) DeleteBatch(ctx context.Context, userID, batchID string) error {
	batch, err := s.batches.Get(ctx, batchID)
	if err != nil {
		return err
	}
	if batch.UserID != userID {
		return repository.ErrBatchNotFound
	}
	return s.batches.Delete(ctx, batchID)
}

// ownsAll verifies every id belongs to the caller before any mutation.
func (s *ReconcileService) ownsAll(ctx context.Context, userID string, ids ...string) error {
	for _, id := range ids {
		txn, err := s.transactions.Get(ctx, id)
		if err != nil {
			return err
		}
		if txn.UserID != userID {
			return repository.ErrTransactionNotFound
		}
	}
	return nil
}
