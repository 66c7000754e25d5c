package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Event is the outer Stripe webhook event envelope. Data.Object is left raw
// because its shape depends on the event type.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// CheckoutSessionObject is the data.object of checkout.session.completed.
type CheckoutSessionObject struct {
	ID           string            `json:"id"`
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

// InvoiceObject is the data.object of invoice.* events.
type InvoiceObject struct {
	ID           string `json:"id"`
	Subscription string `json:"subscription"`
}

// signatureTolerance bounds how old a webhook timestamp may be before the
// event is rejected as a potential replay.
const signatureTolerance = 5 * time.Minute

// VerifySignature checks a Stripe-Signature header against the raw payload.
// The header carries "t=<unix>,v1=<hex hmac>[,v1=...]"; the signed payload is
// "<t>.<body>" with HMAC-SHA256 over the endpoint secret.
func VerifySignature(payload []byte, header, secret string) error {
	return verifySignatureAt(payload, header, secret, time.Now())
}

func verifySignatureAt(payload []byte, header, secret string, now time.Time) error {
	if header == "" {
		return fmt.Errorf("missing Stripe-Signature header")
	}

	var ts string
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "t="):
			ts = strings.TrimPrefix(part, "t=")
		case strings.HasPrefix(part, "v1="):
			candidates = append(candidates, strings.TrimPrefix(part, "v1="))
		}
	}

	if ts == "" || len(candidates) == 0 {
		return fmt.Errorf("invalid signature header format")
	}

	tsUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid signature timestamp")
	}
	if diff := now.Sub(time.Unix(tsUnix, 0)); diff > signatureTolerance || diff < -signatureTolerance {
		return fmt.Errorf("signature timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range candidates {
		if hmac.Equal([]byte(candidate), []byte(expected)) {
			return nil
		}
	}
	return fmt.Errorf("no matching signature")
}

// ParseEvent decodes the webhook envelope after signature verification.
func ParseEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	return &event, nil
}
