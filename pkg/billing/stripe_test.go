package billing

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkoutStub(t *testing.T, captured *url.Values) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		*captured = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_test_1","url":"https://checkout.example/cs_test_1"}`))
	}))
}

func TestCreateCheckoutSessionEncodesTrial(t *testing.T) {
	var form url.Values
	srv := checkoutStub(t, &form)
	defer srv.Close()

	client := NewClient("sk_test_123").WithBaseURL(srv.URL)
	session, err := client.CreateCheckoutSession(CheckoutParams{
		PriceID:       "price_abc",
		SuccessURL:    "https://example.com/success",
		CancelURL:     "https://example.com/cancel",
		TrialDays:     7,
		UserID:        "user-1",
		OwnerID:       "org-1",
		OwnerType:     "organisation",
		Plan:          "team",
		BillingPeriod: "monthly",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", session.ID)
	assert.Equal(t, "https://checkout.example/cs_test_1", session.URL)

	assert.Equal(t, "subscription", form.Get("mode"))
	assert.Equal(t, "price_abc", form.Get("line_items[0][price]"))
	assert.Equal(t, "7", form.Get("subscription_data[trial_period_days]"))
	assert.Equal(t, "org-1", form.Get("metadata[owner_id]"))
	assert.Equal(t, "organisation", form.Get("subscription_data[metadata][owner_type]"))
	assert.Equal(t, "team", form.Get("metadata[plan]"))
}

func TestCreateCheckoutSessionOmitsZeroTrial(t *testing.T) {
	var form url.Values
	srv := checkoutStub(t, &form)
	defer srv.Close()

	client := NewClient("sk_test_123").WithBaseURL(srv.URL)
	_, err := client.CreateCheckoutSession(CheckoutParams{
		PriceID:    "price_abc",
		SuccessURL: "https://example.com/success",
		CancelURL:  "https://example.com/cancel",
		UserID:     "user-1",
	})
	require.NoError(t, err)
	assert.False(t, form.Has("subscription_data[trial_period_days]"))
}

func TestCreateCheckoutSessionAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such price"}}`))
	}))
	defer srv.Close()

	client := NewClient("sk_test_123").WithBaseURL(srv.URL)
	_, err := client.CreateCheckoutSession(CheckoutParams{PriceID: "price_gone"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No such price")
}
