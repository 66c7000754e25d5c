package models

import "time"

// SubscriptionStatus represents the status of a subscription
type SubscriptionStatus string

const (
	StatusActive     SubscriptionStatus = "active"
	StatusTrialing   SubscriptionStatus = "trialing"
	StatusCanceled   SubscriptionStatus = "canceled"
	StatusPastDue    SubscriptionStatus = "past_due"
	StatusUnpaid     SubscriptionStatus = "unpaid"
	StatusIncomplete SubscriptionStatus = "incomplete"
)

// IsEffective reports whether a subscription with this status currently
// grants entitlements.
func (s SubscriptionStatus) IsEffective() bool {
	return s == StatusActive || s == StatusTrialing
}

// OwnerType discriminates who owns a subscription.
type OwnerType string

const (
	OwnerUser         OwnerType = "user"
	OwnerOrganisation OwnerType = "organisation"
)

// Subscription is the internal record of a billing-provider subscription.
// It is created and updated only by webhook-driven lifecycle sync, never by
// end-user requests directly.
type Subscription struct {
	ID                   string             `json:"subscription_id" db:"subscription_id"`
	OwnerID              string             `json:"owner_id" db:"owner_id"`
	OwnerType            OwnerType          `json:"owner_type" db:"owner_type"`
	Plan                 string             `json:"plan" db:"plan"`
	BillingPeriod        string             `json:"billing_period" db:"billing_period"`
	Status               SubscriptionStatus `json:"status" db:"status"`
	CurrentPeriodStart   *time.Time         `json:"current_period_start,omitempty" db:"current_period_start"`
	CurrentPeriodEnd     *time.Time         `json:"current_period_end,omitempty" db:"current_period_end"`
	CancelAtPeriodEnd    bool               `json:"cancel_at_period_end" db:"cancel_at_period_end"`
	CanceledAt           *time.Time         `json:"canceled_at,omitempty" db:"canceled_at"`
	TrialEnd             *time.Time         `json:"trial_end,omitempty" db:"trial_end"`
	UserLimit            *int               `json:"user_limit,omitempty" db:"user_limit"`
	DeviceLimit          *int               `json:"device_limit,omitempty" db:"device_limit"`
	StripeSubscriptionID string             `json:"stripe_subscription_id" db:"stripe_subscription_id"`
	StripeCustomerID     string             `json:"stripe_customer_id,omitempty" db:"stripe_customer_id"`
	CreatedByUserID      string             `json:"created_by_user_id,omitempty" db:"created_by_user_id"`
	CreatedAt            time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at" db:"updated_at"`
}

// SubscriptionEvent is a normalized billing fact consumed by lifecycle sync.
// Webhook parsing and signature verification happen before one of these is
// constructed.
type SubscriptionEvent struct {
	StripeSubscriptionID string
	StripeCustomerID     string
	OwnerID              string
	OwnerType            OwnerType
	CreatedByUserID      string
	Plan                 string
	BillingPeriod        string
	Status               SubscriptionStatus
	PeriodStart          *time.Time
	PeriodEnd            *time.Time
	CancelAtPeriodEnd    bool
	TrialEnd             *time.Time
}
