package repository

import (
	"time"

	"github.com/conciliai/reconcile-gateway/internal/model"
)

type TransactionEntity struct {
	ID            string    `db:"id"              gorm:"primaryKey;column:id"`
	BatchID       *string   `db:"batch_id"        gorm:"column:batch_id;index"`
	UserID        string    `db:"user_id"         gorm:"column:user_id;not null;index"`
	Date          string    `db:"date"            gorm:"column:date;not null"`
	Description   string    `db:"description"     gorm:"column:description;not null"`
	AmountCents   int64     `db:"amount_cents"    gorm:"column:amount_cents;not null"`
	Source        string    `db:"source"          gorm:"column:source;not null"`
	Status        string    `db:"status"          gorm:"column:status;not null;default:PENDING"`
	MatchedWithID *string   `db:"matched_with_id" gorm:"column:matched_with_id"`
	Notes         *string   `db:"notes"           gorm:"column:notes"`
	IsEdited      bool      `db:"is_edited"       gorm:"column:is_edited;not null;default:false"`
	CreatedAt     time.Time `db:"created_at"      gorm:"column:created_at;autoCreateTime"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	// An empty batch id marks a manual entry; it is stored as NULL so the
	// foreign key to import_batches stays satisfied.
	var batchID *string
	if m.BatchID != "" {
		b := m.BatchID
		batchID = &b
	}
	return &TransactionEntity{
		ID:            m.ID,
		BatchID:       batchID,
		UserID:        m.UserID,
		Date:          m.Date,
		Description:   m.Description,
		AmountCents:   int64(m.AmountCents),
		Source:        string(m.Source),
		Status:        string(m.Status),
		MatchedWithID: m.MatchedWithID,
		Notes:         m.Notes,
		IsEdited:      m.IsEdited,
		CreatedAt:     m.CreatedAt,
	}
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	var batchID string
	if e.BatchID != nil {
		batchID = *e.BatchID
	}
	return &model.Transaction{
		ID:            e.ID,
		BatchID:       batchID,
		UserID:        e.UserID,
		Date:          e.Date,
		Description:   e.Description,
		AmountCents:   model.Cents(e.AmountCents),
		Source:        model.TransactionSource(e.Source),
		Status:        model.TransactionStatus(e.Status),
		MatchedWithID: e.MatchedWithID,
		Notes:         e.Notes,
		IsEdited:      e.IsEdited,
		CreatedAt:     e.CreatedAt,
	}
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}
