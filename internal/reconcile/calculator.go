// Package reconcile holds the pure balance arithmetic. Everything here is
// deterministic integer math over cents; no storage, no I/O.
package reconcile

import "github.com/conciliai/reconcile-gateway/internal/model"

// Totals is the per-side sum breakdown for one source.
type Totals struct {
	Opening Cents `json:"opening"`
	Credits Cents `json:"credits"`
	Debits  Cents `json:"debits"`
	Final   Cents `json:"final"`
	Count   int   `json:"count"`
}

type Cents = model.Cents

// Stats is the full reconciliation picture across both sources.
type Stats struct {
	Bank        Totals `json:"bank"`
	Ledger      Totals `json:"ledger"`
	Difference  Cents  `json:"difference"`
	Matched     int    `json:"matched"`
	Pending     int    `json:"pending"`
	Discrepancy int    `json:"discrepancy"`
	Balanced    bool   `json:"balanced"`
}

// Sum adds the amounts of the given transactions to the opening balance.
// Debits are stored negative so plain addition yields the running balance.
func Sum(opening Cents, txns []*model.Transaction) Totals {
	t := Totals{Opening: opening, Final: opening}
	for _, txn := range txns {
		if txn.AmountCents >= 0 {
			t.Credits += txn.AmountCents
		} else {
			t.Debits += txn.AmountCents
		}
		t.Final += txn.AmountCents
		t.Count++
	}
	return t
}

// Compute splits the movements by source, sums each side from its opening
// balance, and reports the bank-minus-ledger difference. An empty input
// yields the opening balances untouched and a difference of their gap.
func Compute(openingBank, openingLedger Cents, txns []*model.Transaction) Stats {
	var bank, ledger []*model.Transaction
	var matched, pending, discrepancy int

	for _, txn := range txns {
		switch txn.Source {
		case model.SourceBank:
			bank = append(bank, txn)
		case model.SourceLedger:
			ledger = append(ledger, txn)
		}
		switch txn.Status {
		case model.StatusMatched:
			matched++
		case model.StatusPending:
			pending++
		case model.StatusDiscrepancy:
			discrepancy++
		}
	}

	s := Stats{
		Bank:   Sum(openingBank, bank),
		Ledger: Sum(openingLedger, ledger),
	}
	s.Difference = s.Bank.Final - s.Ledger.Final
	s.Balanced = s.Difference == 0 && pending == 0 && discrepancy == 0
	s.Matched = matched
	s.Pending = pending
	s.Discrepancy = discrepancy
	return s
}

// VerifyStatement checks an extracted summary against the movements that
// came with it. It returns the computed closing balance and whether it
// agrees with the statement's own figure.
func VerifyStatement(summary *model.AccountSummary, txns []*model.Transaction) (computed Cents, ok bool) {
	if summary == nil {
		return 0, true
	}
	computed = Sum(summary.InitialBalance, txns).Final
	return computed, computed == summary.FinalBalance
}
