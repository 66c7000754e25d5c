package handlers

import (
	"net/http"

	"device-entitlement-backend/pkg/billing"
	"device-entitlement-backend/pkg/config"
	"device-entitlement-backend/pkg/entitlement"
	"device-entitlement-backend/pkg/middleware"
	"device-entitlement-backend/pkg/models"
	"device-entitlement-backend/pkg/plans"
	"device-entitlement-backend/pkg/utils"
)

// SubscriptionHandler exposes subscription inspection and the checkout and
// billing-portal flows.
type SubscriptionHandler struct {
	config     *config.Config
	resolver   *entitlement.Resolver
	accountant *entitlement.Accountant
	guard      *entitlement.Guard
	stripe     *billing.Client
	catalog    *plans.Catalog
}

// NewSubscriptionHandler creates a SubscriptionHandler.
func NewSubscriptionHandler(cfg *config.Config, resolver *entitlement.Resolver, accountant *entitlement.Accountant, guard *entitlement.Guard, stripe *billing.Client, catalog *plans.Catalog) *SubscriptionHandler {
	return &SubscriptionHandler{
		config:     cfg,
		resolver:   resolver,
		accountant: accountant,
		guard:      guard,
		stripe:     stripe,
		catalog:    catalog,
	}
}

type checkoutRequest struct {
	Plan          string `json:"plan"`
	BillingPeriod string `json:"billing_period"`
	OwnerType     string `json:"owner_type"`
	SuccessURL    string `json:"success_url"`
	CancelURL     string `json:"cancel_url"`
}

type quotaPayload struct {
	Current int  `json:"current"`
	Max     *int `json:"max"`
}

// Get handles GET /api/subscription, returning the caller's effective
// subscription with quota usage.
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	sub, scope, err := h.resolver.EffectiveSubscription(user.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	payload := map[string]interface{}{
		"has_access":      sub != nil,
		"is_organisation": scope.Org,
		"subscription":    sub,
	}

	deviceUsage, err := h.accountant.DeviceUsage(scope)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	userUsage, err := h.accountant.UserUsage(scope)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	payload["limits"] = map[string]quotaPayload{
		"users":   {Current: userUsage, Max: entitlement.UserLimitOf(sub)},
		"devices": {Current: deviceUsage, Max: entitlement.DeviceLimitOf(sub)},
	}
	if sub != nil {
		payload["plan"] = plans.Resolve(sub.Plan)
	}

	utils.WriteSuccessResponse(w, payload)
}

// Checkout handles POST /api/subscription/checkout. It starts a provider
// checkout session for the requested plan.
func (h *SubscriptionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req checkoutRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if !plans.Known(req.Plan) {
		utils.WriteValidationErrorResponse(w, "Unknown plan")
		return
	}
	if req.BillingPeriod != "monthly" && req.BillingPeriod != "yearly" {
		utils.WriteValidationErrorResponse(w, "billing_period must be 'monthly' or 'yearly'")
		return
	}
	ownerType := models.OwnerType(req.OwnerType)
	if ownerType == "" {
		ownerType = models.OwnerUser
	}
	if ownerType != models.OwnerUser && ownerType != models.OwnerOrganisation {
		utils.WriteValidationErrorResponse(w, "owner_type must be 'user' or 'organisation'")
		return
	}

	plan := plans.Resolve(req.Plan)
	multiUser := plan.UserLimit == nil || *plan.UserLimit > 1
	if multiUser && ownerType != models.OwnerOrganisation {
		utils.WriteValidationErrorResponse(w, "Multi-user plans must be purchased for an organisation")
		return
	}

	ownerID := user.ID
	if ownerType == models.OwnerOrganisation {
		m, err := h.guard.AuthorizeAny(user.ID, entitlement.ActionPurchase)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		ownerID = m.OrganisationID
	}

	priceID, ok := h.catalog.PriceFor(req.Plan, req.BillingPeriod)
	if !ok {
		utils.WriteUpstreamErrorResponse(w, "No price configured for this plan")
		return
	}

	successURL := req.SuccessURL
	if successURL == "" {
		successURL = h.config.WebsiteURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}"
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = h.config.WebsiteURL + "/pricing"
	}

	session, err := h.stripe.CreateCheckoutSession(billing.CheckoutParams{
		PriceID:       priceID,
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
		TrialDays:     plans.TrialPeriodDays,
		UserID:        user.ID,
		OwnerID:       ownerID,
		OwnerType:     string(ownerType),
		Plan:          req.Plan,
		BillingPeriod: req.BillingPeriod,
	})
	if err != nil {
		writeEngineError(w, &entitlement.UpstreamError{Op: "create checkout session", Err: err})
		return
	}
	utils.WriteSuccessResponse(w, map[string]string{
		"session_id":   session.ID,
		"checkout_url": session.URL,
	})
}

// Portal handles POST /api/subscription/portal. It opens the provider's
// billing portal for the customer behind the caller's effective
// subscription. Managing an organisation's billing requires admin or owner.
func (h *SubscriptionHandler) Portal(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	sub, scope, err := h.resolver.EffectiveSubscription(user.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if sub == nil {
		utils.WriteNotFoundResponse(w, "No subscription to manage")
		return
	}
	if sub.StripeCustomerID == "" {
		utils.WriteNotFoundResponse(w, "Subscription has no billing customer")
		return
	}
	if scope.Org {
		if _, err := h.guard.Authorize(user.ID, scope.OwnerID, entitlement.ActionManageBilling); err != nil {
			writeEngineError(w, err)
			return
		}
	}

	session, err := h.stripe.CreatePortalSession(sub.StripeCustomerID, h.config.WebsiteURL+"/account")
	if err != nil {
		writeEngineError(w, &entitlement.UpstreamError{Op: "create portal session", Err: err})
		return
	}
	utils.WriteSuccessResponse(w, map[string]string{"portal_url": session.URL})
}
