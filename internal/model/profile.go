package model

// UserTier gates feature access and the monthly credit allotment.
type UserTier string

const (
	TierFree       UserTier = "FREE"
	TierPro        UserTier = "PRO"
	TierEnterprise UserTier = "ENTERPRISE"
	TierLifetime   UserTier = "LIFETIME"
)

const (
	FreeTierCredits = 10
	ProTierCredits  = 500
)

// Unlimited reports whether the tier bypasses credit accounting.
func (t UserTier) Unlimited() bool {
	return t == TierLifetime
}

// UserProfile holds the credit ledger and usage counters for one user,
// keyed by the identity provider's stable user id/email.
type UserProfile struct {
	ID                   string   `json:"id"`
	Email                string   `json:"email"`
	Tier                 UserTier `json:"tier"`
	CreditsRemaining     uint     `json:"credits_remaining"`
	TotalProcessedPages  uint     `json:"total_processed_pages"`
	ReconciliationsCount uint     `json:"reconciliations_count"`

	// Session opening balances for the balance calculator. Seeded from an
	// extraction summary or edited directly by the user.
	InitialBankBalance   Cents `json:"initial_bank_balance"`
	InitialLedgerBalance Cents `json:"initial_ledger_balance"`
}
