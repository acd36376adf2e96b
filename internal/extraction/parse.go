package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/conciliai/reconcile-gateway/internal/model"
	"github.com/google/uuid"
)

var (
	// ErrParse means the model's reply was not the JSON shape we demanded.
	ErrParse = errors.New("extraction response is not valid JSON")
	// ErrEmpty means the reply parsed but carried no summary and no movements.
	ErrEmpty = errors.New("extraction returned no transactions and no summary")
)

// wire shapes, exactly what the instruction template demands.
type wireSummary struct {
	InitialBalance float64 `json:"initialBalance"`
	TotalCredits   float64 `json:"totalCredits"`
	TotalDebits    float64 `json:"totalDebits"`
	FinalBalance   float64 `json:"finalBalance"`
}

type wireTransaction struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

type wireResult struct {
	Summary      *wireSummary      `json:"summary"`
	Transactions []wireTransaction `json:"transactions"`
}

// cleanJSON strips Markdown code fences the model sometimes wraps its
// reply in despite being told not to.
func cleanJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}

	if strings.Contains(s, "```") {
		if start := strings.Index(s, "```"); start != -1 {
			rest := s[start+3:]
			rest = strings.TrimPrefix(rest, "json")
			if end := strings.Index(rest, "```"); end != -1 {
				return strings.TrimSpace(rest[:end])
			}
			s = strings.ReplaceAll(s, "```json", "")
			s = strings.ReplaceAll(s, "```", "")
			return strings.TrimSpace(s)
		}
	}
	return s
}

// debit/credit keywords used to enforce the sign convention when the model
// reports a magnitude with the wrong sign.
var debitKeywords = []string{
	"CARGO", "RETIRO", "PAGO", "COMPRA", "CUOTA", "COMISION", "COMISIÓN",
	"INTERESES PAGADOS", "WITHDRAWAL", "FEE", "PAYMENT", "PURCHASE",
}

var creditKeywords = []string{
	"ABONO", "CONSIGNACION", "CONSIGNACIÓN", "DEPOSITO", "DEPÓSITO",
	"TRANSFERENCIA RECIBIDA", "DEPOSIT", "INCOMING",
}

func containsAny(s string, words []string) bool {
	up := strings.ToUpper(s)
	for _, w := range words {
		if strings.Contains(up, w) {
			return true
		}
	}
	return false
}

// enforceSign validates the requested convention instead of trusting it:
// movements that reduce the balance must be negative, movements that
// increase it must be positive.
func enforceSign(description string, amount model.Cents) model.Cents {
	if amount > 0 && containsAny(description, debitKeywords) && !containsAny(description, creditKeywords) {
		return -amount
	}
	if amount < 0 && containsAny(description, creditKeywords) && !containsAny(description, debitKeywords) {
		return -amount
	}
	return amount
}

// decodeResult turns the raw model reply into a validated ImportResult.
// Every transaction is tagged with the caller's source and starts PENDING;
// the batch id is assigned later, at ingest.
func decodeResult(raw string, userID string, source model.TransactionSource) (*model.ImportResult, error) {
	clean := cleanJSON(raw)
	if clean == "" {
		return nil, ErrEmpty
	}

	var wire wireResult
	if err := json.Unmarshal([]byte(clean), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	if wire.Summary == nil && len(wire.Transactions) == 0 {
		return nil, ErrEmpty
	}

	result := &model.ImportResult{}
	if wire.Summary != nil {
		result.Summary = &model.AccountSummary{
			InitialBalance: model.CentsFromFloat(wire.Summary.InitialBalance),
			TotalCredits:   model.CentsFromFloat(wire.Summary.TotalCredits),
			TotalDebits:    model.CentsFromFloat(wire.Summary.TotalDebits),
			FinalBalance:   model.CentsFromFloat(wire.Summary.FinalBalance),
		}
	}

	now := time.Now()
	for _, wt := range wire.Transactions {
		desc := strings.TrimSpace(wt.Description)
		if desc == "" && wt.Amount == 0 {
			continue
		}
		amount := enforceSign(desc, model.CentsFromFloat(wt.Amount))
		result.Transactions = append(result.Transactions, &model.Transaction{
			ID:          uuid.NewString(),
			UserID:      userID,
			Date:        normalizeDate(wt.Date),
			Description: desc,
			AmountCents: amount,
			Source:      source,
			Status:      model.StatusPending,
			CreatedAt:   now,
		})
	}

	if result.Summary == nil && len(result.Transactions) == 0 {
		return nil, ErrEmpty
	}
	return result, nil
}

// normalizeDate keeps YYYY-MM-DD as-is and makes a best effort for the
// couple of other formats statements use. Unrecognized values pass
// through untouched so the user can still see and fix them.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if _, err := time.Parse("2006-01-02", s); err == nil {
		return s
	}
	for _, layout := range []string{"02/01/2006", "2006/01/02", "02-01-2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

// wire shape for match suggestions.
type wireMatch struct {
	BankID   string `json:"bId"`
	LedgerID string `json:"lId"`
	Reason   string `json:"r"`
}

func decodeSuggestions(raw string) []model.MatchSuggestion {
	clean := cleanJSON(raw)

	var matches []wireMatch
	if err := json.Unmarshal([]byte(clean), &matches); err != nil {
		return nil
	}

	out := make([]model.MatchSuggestion, 0, len(matches))
	for _, m := range matches {
		if m.BankID == "" || m.LedgerID == "" {
			continue
		}
		reason := m.Reason
		if reason == "" {
			reason = "Cruce automático"
		}
		out = append(out, model.MatchSuggestion{BankID: m.BankID, LedgerID: m.LedgerID, Reason: reason})
	}
	return out
}
