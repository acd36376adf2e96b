// Package payments verifies and decodes provider webhook events that drive
// tier changes. Verification happens before any JSON is parsed; an invalid
// signature means the body is never trusted.
package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/conciliai/reconcile-gateway/internal/model"
)

var (
	ErrSignatureInvalid = errors.New("webhook signature invalid")
	ErrEventIgnored     = errors.New("webhook event type not handled")
)

// Event is a decoded, verified webhook event reduced to what billing needs.
type Event struct {
	Type  string
	Email string
	Tier  model.UserTier
}

// Verifier checks provider signatures in the "t=<unix>,v1=<hex hmac>"
// scheme: the signed payload is "<t>.<body>" under HMAC-SHA256.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	return &Verifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

// Verify checks the signature header against the raw body. Timestamps
// outside the tolerance window are rejected to stop replays.
func (v *Verifier) Verify(body []byte, header string) error {
	ts, sigs, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	age := v.now().Sub(time.Unix(ts, 0))
	if age > v.tolerance || age < -v.tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrSignatureInvalid)
	}

	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, sig := range sigs {
		got, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, got) {
			return nil
		}
	}
	return fmt.Errorf("%w: no matching v1 signature", ErrSignatureInvalid)
}

func parseSignatureHeader(header string) (ts int64, sigs []string, err error) {
	if header == "" {
		return 0, nil, fmt.Errorf("%w: missing signature header", ErrSignatureInvalid)
	}

	for _, part := range strings.Split(header, ",") {
		k, val, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			ts, err = strconv.ParseInt(val, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: bad timestamp", ErrSignatureInvalid)
			}
		case "v1":
			sigs = append(sigs, val)
		}
	}

	if ts == 0 || len(sigs) == 0 {
		return 0, nil, fmt.Errorf("%w: malformed signature header", ErrSignatureInvalid)
	}
	return ts, sigs, nil
}

// webhook payload shapes, just the fields billing reads.
type wireEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			CustomerEmail string `json:"customer_email"`
			CustomerDetails struct {
				Email string `json:"email"`
			} `json:"customer_details"`
			Status string `json:"status"`
		} `json:"object"`
	} `json:"data"`
}

// Decode maps a verified body to a billing event. Checkout completion and
// an active subscription grant PRO; cancellation drops back to FREE.
// Everything else is ErrEventIgnored.
func Decode(body []byte) (Event, error) {
	var wire wireEvent
	if err := json.Unmarshal(body, &wire); err != nil {
		return Event{}, fmt.Errorf("decode webhook body: %w", err)
	}

	email := wire.Data.Object.CustomerEmail
	if email == "" {
		email = wire.Data.Object.CustomerDetails.Email
	}

	switch wire.Type {
	case "checkout.session.completed":
		return Event{Type: wire.Type, Email: email, Tier: model.TierPro}, nil

	case "customer.subscription.created", "customer.subscription.updated":
		if wire.Data.Object.Status != "active" {
			return Event{}, fmt.Errorf("%w: subscription status %q", ErrEventIgnored, wire.Data.Object.Status)
		}
		return Event{Type: wire.Type, Email: email, Tier: model.TierPro}, nil

	case "customer.subscription.deleted":
		return Event{Type: wire.Type, Email: email, Tier: model.TierFree}, nil

	default:
		return Event{}, fmt.Errorf("%w: %s", ErrEventIgnored, wire.Type)
	}
}
