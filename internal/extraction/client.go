// Package extraction wraps the Gemini API for statement-to-JSON document
// extraction and advisory match suggestions.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/conciliai/reconcile-gateway/internal/model"
	"github.com/conciliai/reconcile-gateway/pkg/logger"
	"google.golang.org/genai"
)

// External failure categories. The UI shows a different message per
// category, so this mapping is part of the contract, not incidental.
var (
	ErrMissingCredentials = errors.New("extraction service credentials are not configured")
	ErrQuotaExceeded      = errors.New("extraction service quota exceeded")
	ErrMalformedInput     = errors.New("extraction service rejected the document")
	ErrUnavailable        = errors.New("extraction service unavailable")
)

type Config struct {
	APIKey string
	Model  string
}

type Client struct {
	genai *genai.Client
	model string
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{genai: gc, model: cfg.Model}, nil
}

// ParseDocument sends a statement document (PDF or image) for extraction.
// The returned transactions are tagged with source and status PENDING.
func (c *Client) ParseDocument(ctx context.Context, data []byte, mimeType string, userID string, source model.TransactionSource) (*model.ImportResult, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: documentPrompt},
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
			},
		},
	}
	return c.generate(ctx, contents, userID, source)
}

// ParseText sends pasted statement text for extraction.
func (c *Client) ParseText(ctx context.Context, rawText string, userID string, source model.TransactionSource) (*model.ImportResult, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: textPromptPrefix + rawText}},
		},
	}
	return c.generate(ctx, contents, userID, source)
}

func (c *Client) generate(ctx context.Context, contents []*genai.Content, userID string, source model.TransactionSource) (*model.ImportResult, error) {
	resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}},
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return nil, mapServiceError(err)
	}

	raw := resp.Text()
	if raw == "" {
		return nil, ErrEmpty
	}

	return decodeResult(raw, userID, source)
}

// SuggestMatches asks the model to pair PENDING bank movements with ledger
// movements. Suggestions are advisory: failures degrade to no suggestions
// rather than failing the caller.
func (c *Client) SuggestMatches(ctx context.Context, bank, ledger []*model.Transaction) []model.MatchSuggestion {
	if len(bank) == 0 || len(ledger) == 0 {
		return nil
	}

	type row struct {
		ID   string  `json:"id"`
		D    string  `json:"d"`
		A    float64 `json:"a"`
		Date string  `json:"date"`
	}
	compact := func(txns []*model.Transaction) []row {
		rows := make([]row, len(txns))
		for i, t := range txns {
			rows[i] = row{ID: t.ID, D: t.Description, A: t.AmountCents.Float(), Date: t.Date}
		}
		return rows
	}

	bankJSON, _ := json.Marshal(compact(bank))
	ledgerJSON, _ := json.Marshal(compact(ledger))
	prompt := fmt.Sprintf("Realiza el cruce de estas dos fuentes:\nBANCO: %s\nLIBROS: %s", bankJSON, ledgerJSON)

	resp, err := c.genai.Models.GenerateContent(ctx, c.model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: matchInstruction}}},
			ResponseMIMEType:  "application/json",
		})
	if err != nil {
		logger.Warn("match suggestion call failed", "error", err)
		return nil
	}

	return decodeSuggestions(resp.Text())
}

// mapServiceError sorts an external failure into one of the user-facing
// categories. The API error code is checked first, the message text is the
// fallback for transport-level failures.
func mapServiceError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 401, 403:
			return fmt.Errorf("%w: %s", ErrMissingCredentials, apiErr.Message)
		case 429:
			return fmt.Errorf("%w: %s", ErrQuotaExceeded, apiErr.Message)
		case 400:
			return fmt.Errorf("%w: %s", ErrMalformedInput, apiErr.Message)
		default:
			return fmt.Errorf("%w: %s", ErrUnavailable, apiErr.Message)
		}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "API key") || strings.Contains(msg, "API_KEY"):
		return fmt.Errorf("%w: %v", ErrMissingCredentials, err)
	case strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "quota"):
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	case strings.Contains(msg, "400"):
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}
