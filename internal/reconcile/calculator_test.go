package reconcile

import (
	"testing"

	"github.com/conciliai/reconcile-gateway/internal/model"
	"github.com/stretchr/testify/assert"
)

func txn(source model.TransactionSource, amount Cents, status model.TransactionStatus) *model.Transaction {
	return &model.Transaction{Source: source, AmountCents: amount, Status: status}
}

func TestSum(t *testing.T) {
	// 1,359,797.86 - 50,000 + 20,000 = 1,329,797.86
	got := Sum(135979786, []*model.Transaction{
		txn(model.SourceBank, -5000000, model.StatusPending),
		txn(model.SourceBank, 2000000, model.StatusPending),
	})

	assert.Equal(t, Cents(135979786), got.Opening)
	assert.Equal(t, Cents(2000000), got.Credits)
	assert.Equal(t, Cents(-5000000), got.Debits)
	assert.Equal(t, Cents(132979786), got.Final)
	assert.Equal(t, 2, got.Count)
}

func TestSum_Empty(t *testing.T) {
	got := Sum(100, nil)
	assert.Equal(t, Cents(100), got.Final)
	assert.Zero(t, got.Count)
}

func TestCompute_SplitsBySource(t *testing.T) {
	stats := Compute(100000, 90000, []*model.Transaction{
		txn(model.SourceBank, -5000, model.StatusMatched),
		txn(model.SourceBank, 2000, model.StatusPending),
		txn(model.SourceLedger, -5000, model.StatusMatched),
	})

	assert.Equal(t, Cents(97000), stats.Bank.Final)
	assert.Equal(t, Cents(85000), stats.Ledger.Final)
	assert.Equal(t, Cents(12000), stats.Difference)
	assert.Equal(t, 2, stats.Matched)
	assert.Equal(t, 1, stats.Pending)
	assert.False(t, stats.Balanced)
}

func TestCompute_Balanced(t *testing.T) {
	stats := Compute(50000, 50000, []*model.Transaction{
		txn(model.SourceBank, -1000, model.StatusMatched),
		txn(model.SourceLedger, -1000, model.StatusMatched),
	})

	assert.Zero(t, stats.Difference)
	assert.True(t, stats.Balanced)
}

func TestCompute_PendingBlocksBalanced(t *testing.T) {
	stats := Compute(0, 0, []*model.Transaction{
		txn(model.SourceBank, 500, model.StatusPending),
		txn(model.SourceLedger, 500, model.StatusPending),
	})

	assert.Zero(t, stats.Difference)
	assert.False(t, stats.Balanced, "pending movements mean work remains even at zero difference")
}

func TestCompute_Empty(t *testing.T) {
	stats := Compute(30000, 10000, nil)
	assert.Equal(t, Cents(30000), stats.Bank.Final)
	assert.Equal(t, Cents(10000), stats.Ledger.Final)
	assert.Equal(t, Cents(20000), stats.Difference)
}

func TestVerifyStatement(t *testing.T) {
	summary := &model.AccountSummary{InitialBalance: 135979786, FinalBalance: 132979786}
	txns := []*model.Transaction{
		txn(model.SourceBank, -5000000, model.StatusPending),
		txn(model.SourceBank, 2000000, model.StatusPending),
	}

	computed, ok := VerifyStatement(summary, txns)
	assert.True(t, ok)
	assert.Equal(t, Cents(132979786), computed)

	summary.FinalBalance = 132979785
	_, ok = VerifyStatement(summary, txns)
	assert.False(t, ok)
}

func TestVerifyStatement_NoSummary(t *testing.T) {
	_, ok := VerifyStatement(nil, nil)
	assert.True(t, ok, "nothing to disagree with")
}
