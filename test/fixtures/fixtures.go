package fixtures

import (
	"time"

	"github.com/conciliai/reconcile-gateway/internal/model"
	"github.com/google/uuid"
)

// StatementText is a pasted bank statement in the shape users actually
// paste: Spanish labels, thousands separators, mixed sign conventions.
const StatementText = `ESTADO DE CUENTA - MARZO 2025
SALDO ANTERIOR                    $1,359,797.86
05/03/2025 PAGO PROVEEDOR ACME       $50,000.00
12/03/2025 CONSIGNACION CLIENTE      $20,000.00
TOTAL ABONOS                         $20,000.00
TOTAL CARGOS                         $50,000.00
SALDO ACTUAL                      $1,329,797.86`

var (
	TestProfileFree = model.UserProfile{
		ID:               "profile-free",
		Email:            "ana@example.com",
		Tier:             model.TierFree,
		CreditsRemaining: model.FreeTierCredits,
	}

	TestProfilePro = model.UserProfile{
		ID:               "profile-pro",
		Email:            "carlos@example.com",
		Tier:             model.TierPro,
		CreditsRemaining: model.ProTierCredits,
	}

	TestProfileLifetime = model.UserProfile{
		ID:               "profile-lifetime",
		Email:            "lucia@example.com",
		Tier:             model.TierLifetime,
		CreditsRemaining: 0,
	}

	TestProfileDrained = model.UserProfile{
		ID:               "profile-drained",
		Email:            "empty@example.com",
		Tier:             model.TierFree,
		CreditsRemaining: 0,
	}
)

func NewTestTransaction(userID string, amount model.Cents, source model.TransactionSource) *model.Transaction {
	return &model.Transaction{
		UserID:      userID,
		Date:        "2025-03-05",
		Description: "PAGO PROVEEDOR ACME",
		AmountCents: amount,
		Source:      source,
		Status:      model.StatusPending,
		CreatedAt:   time.Now(),
	}
}

func NewTextImportRequest(userID string, source model.TransactionSource) model.ImportRequest {
	return model.ImportRequest{
		UserID:  userID,
		Source:  source,
		RawText: StatementText,
	}
}

func NewDocumentImportRequest(userID string, source model.TransactionSource, data []byte) model.ImportRequest {
	return model.ImportRequest{
		UserID:   userID,
		Filename: "extracto_marzo.pdf",
		MimeType: "application/pdf",
		Source:   source,
		Data:     data,
	}
}

// StatementResult mirrors what the extraction client returns for
// StatementText: debits negative, credits positive, balances in cents.
func StatementResult(userID string, source model.TransactionSource) *model.ImportResult {
	return &model.ImportResult{
		Summary: &model.AccountSummary{
			InitialBalance: 135979786,
			TotalCredits:   2000000,
			TotalDebits:    -5000000,
			FinalBalance:   132979786,
		},
		Transactions: []*model.Transaction{
			{
				ID:          uuid.NewString(),
				UserID:      userID,
				Date:        "2025-03-05",
				Description: "PAGO PROVEEDOR ACME",
				AmountCents: -5000000,
				Source:      source,
				Status:      model.StatusPending,
			},
			{
				ID:          uuid.NewString(),
				UserID:      userID,
				Date:        "2025-03-12",
				Description: "CONSIGNACION CLIENTE",
				AmountCents: 2000000,
				Source:      source,
				Status:      model.StatusPending,
			},
		},
	}
}

func TransactionFilterByUser(userID string) model.TransactionFilter {
	return model.TransactionFilter{
		UserID: userID,
		Limit:  50,
	}
}

func TransactionFilterBySource(userID string, source model.TransactionSource) model.TransactionFilter {
	return model.TransactionFilter{
		UserID: userID,
		Source: &source,
		Limit:  50,
	}
}
