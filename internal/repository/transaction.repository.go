package repository

import (
	"context"
	"errors"

	"github.com/conciliai/reconcile-gateway/internal/model"
	"github.com/conciliai/reconcile-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrSourceConflict      = errors.New("matched transactions must come from opposite sources")
)

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	entity := toTransactionEntity(txn)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toTransactionModel(entity), nil
}

// CreateBatch inserts all transactions from one import in a single call.
func (r *TransactionRepository) CreateBatch(ctx context.Context, txns []*model.Transaction) error {
	if len(txns) == 0 {
		return nil
	}
	entities := make([]*TransactionEntity, len(txns))
	for i, t := range txns {
		entities[i] = toTransactionEntity(t)
	}
	return r.Write(ctx).WithContext(ctx).Create(&entities).Error
}

func (r *TransactionRepository) Get(ctx context.Context, id string) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

func (r *TransactionRepository) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&TransactionEntity{}).Where("user_id = ?", f.UserID)

	if f.Source != nil {
		q = q.Where("source = ?", string(*f.Source))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status IN ?", statuses)
	}
	if f.BatchID != nil {
		q = q.Where("batch_id = ?", *f.BatchID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "date ASC, created_at ASC"
	if f.Desc {
		order = "date DESC, created_at DESC"
	}
	q = q.Order(order)

	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var entities []*TransactionEntity
	if err := q.Find(&entities).Error; err != nil {
		return nil, 0, err
	}
	return toTransactionModels(entities), total, nil
}

// Match marks a BANK/LEDGER pair as reconciled, cross-referencing the two
// rows. Source is immutable, so the pair must straddle the two sides.
func (r *TransactionRepository) Match(ctx context.Context, bankID, ledgerID string) error {
	return r.WithinTransaction(ctx, func(ctx context.Context) error {
		var bank, ledger TransactionEntity
		if err := r.Write(ctx).WithContext(ctx).Where("id = ?", bankID).First(&bank).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTransactionNotFound
			}
			return err
		}
		if err := r.Write(ctx).WithContext(ctx).Where("id = ?", ledgerID).First(&ledger).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTransactionNotFound
			}
			return err
		}

		if bank.Source != string(model.SourceBank) || ledger.Source != string(model.SourceLedger) {
			return ErrSourceConflict
		}

		if err := r.Write(ctx).WithContext(ctx).
			Model(&TransactionEntity{}).
			Where("id = ?", bankID).
			Updates(map[string]interface{}{"status": string(model.StatusMatched), "matched_with_id": ledgerID}).
			Error; err != nil {
			return err
		}
		return r.Write(ctx).WithContext(ctx).
			Model(&TransactionEntity{}).
			Where("id = ?", ledgerID).
			Updates(map[string]interface{}{"status": string(model.StatusMatched), "matched_with_id": bankID}).
			Error
	})
}

// Unmatch returns both sides of a matched pair to PENDING.
func (r *TransactionRepository) Unmatch(ctx context.Context, id string) error {
	return r.WithinTransaction(ctx, func(ctx context.Context) error {
		var entity TransactionEntity
		if err := r.Write(ctx).WithContext(ctx).Where("id = ?", id).First(&entity).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTransactionNotFound
			}
			return err
		}

		ids := []string{entity.ID}
		if entity.MatchedWithID != nil {
			ids = append(ids, *entity.MatchedWithID)
		}

		return r.Write(ctx).WithContext(ctx).
			Model(&TransactionEntity{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{"status": string(model.StatusPending), "matched_with_id": nil}).
			Error
	})
}

// FlagDiscrepancy marks a transaction DISCREPANCY with an explanatory note.
func (r *TransactionRepository) FlagDiscrepancy(ctx context.Context, id string, note string) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": string(model.StatusDiscrepancy), "notes": note})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// UpdateNotes edits the free-text note and flips the edited flag.
func (r *TransactionRepository) UpdateNotes(ctx context.Context, id string, notes string) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"notes": notes, "is_edited": true})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *TransactionRepository) DeleteByBatch(ctx context.Context, batchID string) error {
	return r.Write(ctx).WithContext(ctx).
		Where("batch_id = ?", batchID).
		Delete(&TransactionEntity{}).
		Error
}
