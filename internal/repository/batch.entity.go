package repository

import (
	"time"

	"github.com/conciliai/reconcile-gateway/internal/model"
)

type BatchEntity struct {
	ID                   string    `db:"id"                     gorm:"primaryKey;column:id"`
	UserID               string    `db:"user_id"                gorm:"column:user_id;not null;index"`
	Filename             string    `db:"filename"               gorm:"column:filename;not null"`
	Source               string    `db:"source"                 gorm:"column:source;not null"`
	Count                int       `db:"count"                  gorm:"column:count;not null;default:0"`
	ExpectedFinalBalance *int64    `db:"expected_final_balance" gorm:"column:expected_final_balance"`
	ActualFinalBalance   *int64    `db:"actual_final_balance"   gorm:"column:actual_final_balance"`
	CreatedAt            time.Time `db:"created_at"             gorm:"column:created_at;autoCreateTime"`
}

func (BatchEntity) TableName() string {
	return "import_batches"
}

func toBatchEntity(m *model.ImportBatch) *BatchEntity {
	if m == nil {
		return nil
	}
	e := &BatchEntity{
		ID:        m.ID,
		UserID:    m.UserID,
		Filename:  m.Filename,
		Source:    string(m.Source),
		Count:     m.Count,
		CreatedAt: m.CreatedAt,
	}
	if m.ExpectedFinalBalance != nil {
		v := int64(*m.ExpectedFinalBalance)
		e.ExpectedFinalBalance = &v
	}
	if m.ActualFinalBalance != nil {
		v := int64(*m.ActualFinalBalance)
		e.ActualFinalBalance = &v
	}
	return e
}

func toBatchModel(e *BatchEntity) *model.ImportBatch {
	if e == nil {
		return nil
	}
	m := &model.ImportBatch{
		ID:        e.ID,
		UserID:    e.UserID,
		Filename:  e.Filename,
		Source:    model.TransactionSource(e.Source),
		Count:     e.Count,
		CreatedAt: e.CreatedAt,
	}
	if e.ExpectedFinalBalance != nil {
		v := model.Cents(*e.ExpectedFinalBalance)
		m.ExpectedFinalBalance = &v
	}
	if e.ActualFinalBalance != nil {
		v := model.Cents(*e.ActualFinalBalance)
		m.ActualFinalBalance = &v
	}
	return m
}

func toBatchModels(entities []*BatchEntity) []*model.ImportBatch {
	if entities == nil {
		return nil
	}
	models := make([]*model.ImportBatch, len(entities))
	for i, e := range entities {
		models[i] = toBatchModel(e)
	}
	return models
}
