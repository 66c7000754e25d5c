package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"device-entitlement-backend/pkg/billing"
	"device-entitlement-backend/pkg/config"
	"device-entitlement-backend/pkg/entitlement"
	"device-entitlement-backend/pkg/models"
	"device-entitlement-backend/pkg/plans"
	"device-entitlement-backend/pkg/utils"

	"github.com/sirupsen/logrus"
)

// maxWebhookBody bounds how much of a webhook payload is read.
const maxWebhookBody = 1 << 20

// WebhookHandler receives billing-provider events and feeds lifecycle sync.
type WebhookHandler struct {
	config  *config.Config
	syncer  *entitlement.Syncer
	stripe  *billing.Client
	catalog *plans.Catalog
	log     *logrus.Entry
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(cfg *config.Config, syncer *entitlement.Syncer, stripe *billing.Client, catalog *plans.Catalog) *WebhookHandler {
	return &WebhookHandler{
		config:  cfg,
		syncer:  syncer,
		stripe:  stripe,
		catalog: catalog,
		log:     logrus.WithField("component", "webhook"),
	}
}

// HandleStripe handles POST /api/webhooks/stripe.
//
// A bad signature is rejected with 400 so the provider knows delivery
// failed. Processing errors after verification are logged and acknowledged
// with 200: the event is well-formed and retrying it would fail the same
// way, so letting the provider retry only produces noise.
func (h *WebhookHandler) HandleStripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		utils.WriteBadRequestResponse(w, "Failed to read request body")
		return
	}

	if err := billing.VerifySignature(payload, r.Header.Get("Stripe-Signature"), h.config.StripeWebhookSecret); err != nil {
		h.log.WithError(err).Warn("webhook signature rejected")
		utils.WriteBadRequestResponse(w, "Invalid signature")
		return
	}

	event, err := billing.ParseEvent(payload)
	if err != nil {
		utils.WriteBadRequestResponse(w, "Invalid payload")
		return
	}

	if err := h.process(event); err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).Error("webhook processing failed")
	}
	utils.WriteSuccessResponse(w, map[string]bool{"received": true})
}

func (h *WebhookHandler) process(event *billing.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		return h.handleCheckoutCompleted(event)
	case "customer.subscription.updated":
		return h.handleSubscriptionUpdated(event)
	case "customer.subscription.deleted":
		return h.handleSubscriptionDeleted(event)
	case "invoice.payment_failed":
		return h.handlePaymentFailed(event)
	default:
		h.log.WithField("event_type", event.Type).Debug("webhook event ignored")
		return nil
	}
}

func (h *WebhookHandler) handleCheckoutCompleted(event *billing.Event) error {
	var session billing.CheckoutSessionObject
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return err
	}
	if session.Subscription == "" {
		// one-time payment sessions carry no subscription
		return nil
	}

	// The session metadata is authoritative for attribution; the provider
	// subscription fills in period and trial detail.
	ev := models.SubscriptionEvent{
		StripeSubscriptionID: session.Subscription,
		StripeCustomerID:     session.Customer,
		OwnerID:              session.Metadata["owner_id"],
		OwnerType:            models.OwnerType(session.Metadata["owner_type"]),
		CreatedByUserID:      session.Metadata["user_id"],
		Plan:                 session.Metadata["plan"],
		BillingPeriod:        session.Metadata["billing_period"],
	}
	if ev.OwnerID == "" {
		ev.OwnerID = session.Metadata["user_id"]
	}

	if sub, err := h.stripe.GetSubscription(session.Subscription); err != nil {
		h.log.WithError(err).WithField("stripe_subscription_id", session.Subscription).
			Warn("could not enrich checkout from provider subscription")
	} else {
		ev.Status = models.SubscriptionStatus(sub.Status)
		ev.PeriodStart = unixTime(sub.CurrentPeriodStart)
		ev.PeriodEnd = unixTime(sub.CurrentPeriodEnd)
		ev.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		ev.TrialEnd = unixTime(sub.TrialEnd)
		if ev.Plan == "" {
			if planKey, period, ok := h.catalog.PlanFromPrice(sub.PriceID()); ok {
				ev.Plan = planKey
				ev.BillingPeriod = period
			}
		}
	}

	return h.syncer.ApplyCheckoutCompleted(ev)
}

func (h *WebhookHandler) handleSubscriptionUpdated(event *billing.Event) error {
	var sub billing.Subscription
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return err
	}

	ev := models.SubscriptionEvent{
		StripeSubscriptionID: sub.ID,
		StripeCustomerID:     sub.Customer,
		Status:               models.SubscriptionStatus(sub.Status),
		PeriodStart:          unixTime(sub.CurrentPeriodStart),
		PeriodEnd:            unixTime(sub.CurrentPeriodEnd),
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
		TrialEnd:             unixTime(sub.TrialEnd),
	}
	if planKey, period, ok := h.catalog.PlanFromPrice(sub.PriceID()); ok {
		ev.Plan = planKey
		ev.BillingPeriod = period
	}

	return h.syncer.ApplySubscriptionUpdated(ev)
}

func (h *WebhookHandler) handleSubscriptionDeleted(event *billing.Event) error {
	var sub billing.Subscription
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return err
	}
	return h.syncer.ApplySubscriptionDeleted(sub.ID)
}

func (h *WebhookHandler) handlePaymentFailed(event *billing.Event) error {
	var invoice billing.InvoiceObject
	if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
		return err
	}
	if invoice.Subscription == "" {
		return nil
	}
	return h.syncer.ApplyPaymentFailed(invoice.Subscription)
}

func unixTime(v int64) *time.Time {
	if v <= 0 {
		return nil
	}
	t := time.Unix(v, 0).UTC()
	return &t
}
