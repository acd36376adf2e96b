package repository

import (
	"context"
	"errors"

	"github.com/conciliai/reconcile-gateway/internal/model"
	"github.com/conciliai/reconcile-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrAttemptNotFound   = errors.New("import attempt not found")
	ErrInvalidTransition = errors.New("invalid attempt state transition")
)

type AttemptRepository struct {
	*pg.DB
}

func NewAttemptRepository(db *pg.DB) *AttemptRepository {
	return &AttemptRepository{
		db,
	}
}

func (r *AttemptRepository) Create(ctx context.Context, a *model.ImportAttempt) (*model.ImportAttempt, error) {
	entity := toAttemptEntity(a)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toAttemptModel(entity), nil
}

func (r *AttemptRepository) Get(ctx context.Context, id string) (*model.ImportAttempt, error) {
	var entity AttemptEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	return toAttemptModel(&entity), nil
}

// Transition moves the attempt to a new state, enforcing the state machine
// at the persistence layer: the guarded UPDATE only fires when the row is
// still in the expected prior state, so two racing workers cannot both
// move the same attempt forward.
func (r *AttemptRepository) Transition(ctx context.Context, id string, from, to model.AttemptState, updates map[string]interface{}) error {
	if !from.CanTransition(to) {
		return ErrInvalidTransition
	}

	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["state"] = string(to)

	result := r.Write(ctx).WithContext(ctx).
		Model(&AttemptEntity{}).
		Where("id = ? AND state = ?", id, string(from)).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Row exists in another state, or not at all.
		var count int64
		if err := r.Read(ctx).WithContext(ctx).Model(&AttemptEntity{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrAttemptNotFound
		}
		return ErrInvalidTransition
	}
	return nil
}

// Fail is the one transition allowed from any non-terminal state.
func (r *AttemptRepository) Fail(ctx context.Context, id string, reason string) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&AttemptEntity{}).
		Where("id = ? AND state NOT IN ?", id, []string{
			string(model.AttemptBlocked),
			string(model.AttemptIngested),
			string(model.AttemptFailed),
		}).
		Updates(map[string]interface{}{
			"state":      string(model.AttemptFailed),
			"last_error": reason,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAttemptNotFound
	}
	return nil
}

// ClearPayload drops the stored document once the attempt is terminal.
func (r *AttemptRepository) ClearPayload(ctx context.Context, id string) error {
	return r.Write(ctx).WithContext(ctx).
		Model(&AttemptEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"payload": nil, "raw_text": ""}).
		Error
}

func (r *AttemptRepository) List(ctx context.Context, userID string, limit int) ([]*model.ImportAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	var entities []*AttemptEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	models := make([]*model.ImportAttempt, len(entities))
	for i, e := range entities {
		models[i] = toAttemptModel(e)
	}
	return models, nil
}
