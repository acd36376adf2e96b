package model

import (
	"errors"
	"time"
)

// AttemptState is the lifecycle state of one import attempt. Extraction is
// billable and irreversible, so confirmation is an explicit user action and
// FAILED is terminal (retries are new attempts).
type AttemptState string

const (
	AttemptSelected   AttemptState = "SELECTED"
	AttemptPrechecked AttemptState = "PRECHECKED"
	AttemptBlocked    AttemptState = "BLOCKED"
	AttemptConfirmed  AttemptState = "CONFIRMED"
	AttemptDeducting  AttemptState = "DEDUCTING"
	AttemptExtracting AttemptState = "EXTRACTING"
	AttemptIngested   AttemptState = "INGESTED"
	AttemptFailed     AttemptState = "FAILED"
)

// Terminal reports whether the attempt can make no further transition.
func (s AttemptState) Terminal() bool {
	return s == AttemptBlocked || s == AttemptIngested || s == AttemptFailed
}

var attemptTransitions = map[AttemptState][]AttemptState{
	AttemptSelected:   {AttemptPrechecked, AttemptBlocked, AttemptFailed},
	AttemptPrechecked: {AttemptConfirmed, AttemptBlocked},
	AttemptConfirmed:  {AttemptDeducting, AttemptFailed},
	AttemptDeducting:  {AttemptExtracting, AttemptFailed},
	AttemptExtracting: {AttemptIngested, AttemptFailed},
}

// CanTransition reports whether from -> to is a legal state change.
func (s AttemptState) CanTransition(to AttemptState) bool {
	for _, next := range attemptTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ImportAttempt tracks one document through pre-check, confirmation,
// credit deduction, extraction and ingestion.
type ImportAttempt struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Filename  string            `json:"filename"`
	MimeType  string            `json:"mime_type"`
	Source    TransactionSource `json:"source"`
	UnitCount int               `json:"unit_count"`
	State     AttemptState      `json:"state"`
	// Shortfall is required-available when the attempt was BLOCKED.
	Shortfall int     `json:"shortfall,omitempty"`
	BatchID   *string `json:"batch_id,omitempty"`
	LastError string  `json:"last_error,omitempty"`
	// Payload holds the uploaded document between pre-check and
	// extraction. Never returned over the API.
	Payload   []byte    `json:"-"`
	RawText   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExtractionJob is the queue payload linking a confirmed attempt to the
// worker that will run its extraction.
type ExtractionJob struct {
	AttemptID string `json:"attempt_id"`
	UserID    string `json:"user_id"`
}

// ImportRequest is the pre-check input. Exactly one of Data or RawText is
// set: a document upload or pasted statement text.
type ImportRequest struct {
	UserID   string
	Filename string
	MimeType string
	Source   TransactionSource
	Data     []byte
	RawText  string
}

func (p ImportRequest) Validate() error {
	if p.UserID == "" {
		return errors.New("user_id is required")
	}
	if !p.Source.Valid() {
		return errors.New("source must be BANK or LEDGER")
	}
	if len(p.Data) == 0 && p.RawText == "" {
		return errors.New("document data or raw text is required")
	}
	if len(p.Data) > 0 && p.Filename == "" {
		return errors.New("filename is required for document uploads")
	}
	return nil
}
