// Package billing is a thin client for the Stripe REST API. It covers the
// three calls this backend makes (checkout sessions, billing portal sessions,
// price listing) plus subscription retrieval for webhook enrichment; the
// subscription lifecycle itself is owned by Stripe and mirrored through
// webhooks.
package billing

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"device-entitlement-backend/pkg/plans"

	"github.com/sirupsen/logrus"
)

const defaultBaseURL = "https://api.stripe.com"

// Client talks to the Stripe API with form-encoded requests.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *logrus.Entry
}

// NewClient creates a Stripe client with a request timeout suited to
// short-lived invocations.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: logrus.WithField("component", "billing"),
	}
}

// WithBaseURL points the client at an alternate API host. Tests point it at
// a local stub server.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

// apiError is Stripe's error envelope.
type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(method, path string, form url.Values, out interface{}) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("stripe: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stripe: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("stripe: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("stripe: %s %s: %s", method, path, apiErr.Error.Message)
		}
		return fmt.Errorf("stripe: %s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("stripe: decode response: %w", err)
		}
	}
	return nil
}

// CheckoutParams are the inputs for a subscription checkout session.
type CheckoutParams struct {
	PriceID       string
	SuccessURL    string
	CancelURL     string
	TrialDays     int
	UserID        string
	OwnerID       string
	OwnerType     string
	Plan          string
	BillingPeriod string
}

// CheckoutSession is the subset of Stripe's checkout session we use.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateCheckoutSession creates a subscription-mode checkout session. The
// metadata rides through to the webhook so lifecycle sync can attribute the
// subscription to the right owner.
func (c *Client) CreateCheckoutSession(params CheckoutParams) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("line_items[0][price]", params.PriceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	form.Set("allow_promotion_codes", "true")

	meta := map[string]string{
		"user_id":        params.UserID,
		"owner_id":       params.OwnerID,
		"owner_type":     params.OwnerType,
		"plan":           params.Plan,
		"billing_period": params.BillingPeriod,
	}
	for k, v := range meta {
		form.Set("metadata["+k+"]", v)
		form.Set("subscription_data[metadata]["+k+"]", v)
	}
	if params.TrialDays > 0 {
		form.Set("subscription_data[trial_period_days]", strconv.Itoa(params.TrialDays))
	}

	var session CheckoutSession
	if err := c.do(http.MethodPost, "/v1/checkout/sessions", form, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// PortalSession is the subset of Stripe's billing portal session we use.
type PortalSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreatePortalSession creates a billing portal session for a customer.
func (c *Client) CreatePortalSession(customerID, returnURL string) (*PortalSession, error) {
	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("return_url", returnURL)

	var session PortalSession
	if err := c.do(http.MethodPost, "/v1/billing_portal/sessions", form, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Subscription is the subset of Stripe's subscription object consumed by
// lifecycle sync.
type Subscription struct {
	ID                 string            `json:"id"`
	Status             string            `json:"status"`
	Customer           string            `json:"customer"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	TrialEnd           int64             `json:"trial_end"`
	Metadata           map[string]string `json:"metadata"`
	Items              struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// PriceID returns the first item's price ID, or empty when none.
func (s *Subscription) PriceID() string {
	if len(s.Items.Data) == 0 {
		return ""
	}
	return s.Items.Data[0].Price.ID
}

// GetSubscription retrieves a subscription by its Stripe id.
func (c *Client) GetSubscription(id string) (*Subscription, error) {
	var sub Subscription
	if err := c.do(http.MethodGet, "/v1/subscriptions/"+id, nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// priceList is Stripe's price listing envelope with products expanded.
type priceList struct {
	Data []struct {
		ID        string `json:"id"`
		Recurring *struct {
			Interval string `json:"interval"`
		} `json:"recurring"`
		Product struct {
			Metadata map[string]string `json:"metadata"`
		} `json:"product"`
	} `json:"data"`
}

// ListPrices implements plans.PriceSource: active prices mapped to plan keys
// via product metadata. Prices without a plan_key or a recognized recurring
// interval are skipped.
func (c *Client) ListPrices() ([]plans.PriceMapping, error) {
	path := "/v1/prices?active=true&limit=100&" + url.Values{"expand[]": {"data.product"}}.Encode()

	var list priceList
	if err := c.do(http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}

	var mappings []plans.PriceMapping
	for _, price := range list.Data {
		planKey := price.Product.Metadata["plan_key"]
		if planKey == "" || price.Recurring == nil {
			continue
		}

		var billingPeriod string
		switch price.Recurring.Interval {
		case "month":
			billingPeriod = "monthly"
		case "year":
			billingPeriod = "yearly"
		default:
			continue
		}

		mappings = append(mappings, plans.PriceMapping{
			PriceID:       price.ID,
			PlanKey:       planKey,
			BillingPeriod: billingPeriod,
		})
	}

	c.log.WithField("prices", len(mappings)).Debug("loaded prices from stripe")
	return mappings, nil
}
