package model

import "time"

// ImportBatch groups the transactions produced from one imported document.
// Deleting a batch cascades deletion of its transactions.
type ImportBatch struct {
	ID                   string            `json:"id"`
	UserID               string            `json:"user_id"`
	Filename             string            `json:"filename"`
	Source               TransactionSource `json:"source"`
	Count                int               `json:"count"`
	ExpectedFinalBalance *Cents            `json:"expected_final_balance,omitempty"`
	ActualFinalBalance   *Cents            `json:"actual_final_balance,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
}

// HasDiscrepancy reports whether the statement's own closing balance
// disagrees with the balance computed from the imported movements.
func (b *ImportBatch) HasDiscrepancy() bool {
	if b.ExpectedFinalBalance == nil || b.ActualFinalBalance == nil {
		return false
	}
	return *b.ExpectedFinalBalance != *b.ActualFinalBalance
}

// AccountSummary is the statement-level figure block an extraction may
// report. It is transient: used to seed opening balances and for
// discrepancy display, never persisted on its own.
type AccountSummary struct {
	InitialBalance Cents `json:"initial_balance"`
	TotalCredits   Cents `json:"total_credits"`
	TotalDebits    Cents `json:"total_debits"`
	FinalBalance   Cents `json:"final_balance"`
}

// ImportResult is what the extraction client returns for one document.
type ImportResult struct {
	Summary      *AccountSummary `json:"summary"`
	Transactions []*Transaction  `json:"transactions"`
}

// MatchSuggestion proposes pairing one BANK transaction with one LEDGER
// transaction. Advisory only, never auto-applied.
type MatchSuggestion struct {
	BankID   string `json:"bank_id"`
	LedgerID string `json:"ledger_id"`
	Reason   string `json:"reason"`
}
