package repository

import (
	"github.com/conciliai/reconcile-gateway/internal/model"
)

type ProfileEntity struct {
	ID                   string `db:"id"                    gorm:"primaryKey;column:id"`
	Email                string `db:"email"                 gorm:"column:email;not null;unique"`
	Tier                 string `db:"tier"                  gorm:"column:tier;not null;default:FREE"`
	CreditsRemaining     uint   `db:"credits_remaining"     gorm:"column:credits_remaining;not null;default:0"`
	TotalProcessedPages  uint   `db:"total_processed_pages" gorm:"column:total_processed_pages;not null;default:0"`
	ReconciliationsCount uint   `db:"reconciliations_count" gorm:"column:reconciliations_count;not null;default:0"`
	InitialBankBalance   int64  `db:"initial_bank_balance"   gorm:"column:initial_bank_balance;not null;default:0"`
	InitialLedgerBalance int64  `db:"initial_ledger_balance" gorm:"column:initial_ledger_balance;not null;default:0"`
}

func (ProfileEntity) TableName() string {
	return "profiles"
}

func toProfileEntity(m *model.UserProfile) *ProfileEntity {
	if m == nil {
		return nil
	}
	return &ProfileEntity{
		ID:                   m.ID,
		Email:                m.Email,
		Tier:                 string(m.Tier),
		CreditsRemaining:     m.CreditsRemaining,
		TotalProcessedPages:  m.TotalProcessedPages,
		ReconciliationsCount: m.ReconciliationsCount,
		InitialBankBalance:   int64(m.InitialBankBalance),
		InitialLedgerBalance: int64(m.InitialLedgerBalance),
	}
}

func toProfileModel(e *ProfileEntity) *model.UserProfile {
	if e == nil {
		return nil
	}
	return &model.UserProfile{
		ID:                   e.ID,
		Email:                e.Email,
		Tier:                 model.UserTier(e.Tier),
		CreditsRemaining:     e.CreditsRemaining,
		TotalProcessedPages:  e.TotalProcessedPages,
		ReconciliationsCount: e.ReconciliationsCount,
		InitialBankBalance:   model.Cents(e.InitialBankBalance),
		InitialLedgerBalance: model.Cents(e.InitialLedgerBalance),
	}
}
