package model

import (
	"errors"
	"time"
)

// TransactionSource identifies which side of the reconciliation a movement
// belongs to. It never changes after the transaction is created.
type TransactionSource string

const (
	SourceBank   TransactionSource = "BANK"
	SourceLedger TransactionSource = "LEDGER"
)

func (s TransactionSource) Valid() bool {
	return s == SourceBank || s == SourceLedger
}

// TransactionStatus is the reconciliation state of a movement.
type TransactionStatus string

const (
	StatusPending     TransactionStatus = "PENDING"
	StatusMatched     TransactionStatus = "MATCHED"
	StatusDiscrepancy TransactionStatus = "DISCREPANCY"
)

// Transaction is a single statement movement. Negative amounts are
// debits/outflows, positive amounts are credits/inflows.
type Transaction struct {
	ID            string            `json:"id"`
	BatchID       string            `json:"batch_id"`
	UserID        string            `json:"user_id"`
	Date          string            `json:"date"` // YYYY-MM-DD
	Description   string            `json:"description"`
	AmountCents   Cents             `json:"amount_cents"`
	Source        TransactionSource `json:"source"`
	Status        TransactionStatus `json:"status"`
	MatchedWithID *string           `json:"matched_with_id,omitempty"`
	Notes         *string           `json:"notes,omitempty"`
	IsEdited      bool              `json:"is_edited"`
	CreatedAt     time.Time         `json:"created_at"`
}

// TransactionCreateRequest is the input for a manual entry.
type TransactionCreateRequest struct {
	UserID      string
	Date        string
	Description string
	AmountCents Cents
	Source      TransactionSource
}

func (p TransactionCreateRequest) Validate() error {
	if p.UserID == "" {
		return errors.New("user_id is required")
	}
	if p.Description == "" {
		return errors.New("description is required")
	}
	if !p.Source.Valid() {
		return errors.New("source must be BANK or LEDGER")
	}
	if _, err := time.Parse("2006-01-02", p.Date); err != nil {
		return errors.New("date must be YYYY-MM-DD")
	}
	return nil
}

// TransactionFilter controls List queries.
type TransactionFilter struct {
	UserID   string
	Source   *TransactionSource
	Statuses []TransactionStatus
	BatchID  *string
	Limit    int
	Offset   int
	Desc     bool
}
