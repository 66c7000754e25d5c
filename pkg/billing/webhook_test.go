package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test_secret"

func signPayload(t *testing.T, payload []byte, ts time.Time, secret string) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	header := signPayload(t, payload, now, testSecret)
	assert.NoError(t, verifySignatureAt(payload, header, testSecret, now))

	// slight clock skew within tolerance is fine
	assert.NoError(t, verifySignatureAt(payload, header, testSecret, now.Add(4*time.Minute)))
}

func TestVerifySignatureRejections(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	header := signPayload(t, payload, now, testSecret)

	tests := []struct {
		name    string
		payload []byte
		header  string
		at      time.Time
	}{
		{"missing header", payload, "", now},
		{"garbage header", payload, "not-a-signature", now},
		{"wrong secret", payload, signPayload(t, payload, now, "whsec_other"), now},
		{"tampered payload", []byte(`{"id":"evt_2"}`), header, now},
		{"stale timestamp", payload, header, now.Add(6 * time.Minute)},
		{"future timestamp", payload, signPayload(t, payload, now.Add(10*time.Minute), testSecret), now},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, verifySignatureAt(tt.payload, tt.header, testSecret, tt.at))
		})
	}
}

func TestVerifySignatureMultipleCandidates(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// a rotated-secret header carries several v1 entries; any match passes
	valid := signPayload(t, payload, now, testSecret)
	header := valid + ",v1=deadbeef"
	assert.NoError(t, verifySignatureAt(payload, header, testSecret, now))

	header = fmt.Sprintf("t=%d,v1=deadbeef,v1=cafebabe", now.Unix())
	assert.Error(t, verifySignatureAt(payload, header, testSecret, now))
}

func TestParseEvent(t *testing.T) {
	event, err := ParseEvent([]byte(`{
		"id": "evt_1",
		"type": "customer.subscription.updated",
		"data": {"object": {"id": "sub_123", "status": "active"}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, "customer.subscription.updated", event.Type)
	assert.NotEmpty(t, event.Data.Object)

	_, err = ParseEvent([]byte("not json"))
	assert.Error(t, err)
}
