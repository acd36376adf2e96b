package repository

import (
	"time"

	"github.com/conciliai/reconcile-gateway/internal/model"
)

type AttemptEntity struct {
	ID        string    `db:"id"         gorm:"primaryKey;column:id"`
	UserID    string    `db:"user_id"    gorm:"column:user_id;not null;index"`
	Filename  string    `db:"filename"   gorm:"column:filename;not null"`
	MimeType  string    `db:"mime_type"  gorm:"column:mime_type"`
	Source    string    `db:"source"     gorm:"column:source;not null"`
	UnitCount int       `db:"unit_count" gorm:"column:unit_count;not null;default:0"`
	State     string    `db:"state"      gorm:"column:state;not null"`
	Shortfall int       `db:"shortfall"  gorm:"column:shortfall;not null;default:0"`
	BatchID   *string   `db:"batch_id"   gorm:"column:batch_id"`
	LastError string    `db:"last_error" gorm:"column:last_error"`
	Payload   []byte    `db:"payload"    gorm:"column:payload"`
	RawText   string    `db:"raw_text"   gorm:"column:raw_text"`
	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `db:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (AttemptEntity) TableName() string {
	return "import_attempts"
}

func toAttemptEntity(m *model.ImportAttempt) *AttemptEntity {
	if m == nil {
		return nil
	}
	return &AttemptEntity{
		ID:        m.ID,
		UserID:    m.UserID,
		Filename:  m.Filename,
		MimeType:  m.MimeType,
		Source:    string(m.Source),
		UnitCount: m.UnitCount,
		State:     string(m.State),
		Shortfall: m.Shortfall,
		BatchID:   m.BatchID,
		LastError: m.LastError,
		Payload:   m.Payload,
		RawText:   m.RawText,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toAttemptModel(e *AttemptEntity) *model.ImportAttempt {
	if e == nil {
		return nil
	}
	return &model.ImportAttempt{
		ID:        e.ID,
		UserID:    e.UserID,
		Filename:  e.Filename,
		MimeType:  e.MimeType,
		Source:    model.TransactionSource(e.Source),
		UnitCount: e.UnitCount,
		State:     model.AttemptState(e.State),
		Shortfall: e.Shortfall,
		BatchID:   e.BatchID,
		LastError: e.LastError,
		Payload:   e.Payload,
		RawText:   e.RawText,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}
