package repository

import (
	"context"
	"errors"

	"github.com/conciliai/reconcile-gateway/internal/model"
	"github.com/conciliai/reconcile-gateway/pkg/pg"
	"gorm.io/gorm"
)

var ErrBatchNotFound = errors.New("import batch not found")

type BatchRepository struct {
	*pg.DB
}

func NewBatchRepository(db *pg.DB) *BatchRepository {
	return &BatchRepository{
		db,
	}
}

func (r *BatchRepository) Create(ctx context.Context, batch *model.ImportBatch) (*model.ImportBatch, error) {
	entity := toBatchEntity(batch)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toBatchModel(entity), nil
}

func (r *BatchRepository) Get(ctx context.Context, id string) (*model.ImportBatch, error) {
	var entity BatchEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}
	return toBatchModel(&entity), nil
}

func (r *BatchRepository) List(ctx context.Context, userID string) ([]*model.ImportBatch, error) {
	var entities []*BatchEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toBatchModels(entities), nil
}

// Delete removes a batch and cascades deletion of its transactions.
func (r *BatchRepository) Delete(ctx context.Context, id string) error {
	return r.WithinTransaction(ctx, func(ctx context.Context) error {
		var entity BatchEntity
		if err := r.Write(ctx).WithContext(ctx).Where("id = ?", id).First(&entity).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBatchNotFound
			}
			return err
		}

		if err := r.Write(ctx).WithContext(ctx).
			Where("batch_id = ?", id).
			Delete(&TransactionEntity{}).
			Error; err != nil {
			return err
		}

		return r.Write(ctx).WithContext(ctx).
			Where("id = ?", id).
			Delete(&BatchEntity{}).
			Error
	})
}
