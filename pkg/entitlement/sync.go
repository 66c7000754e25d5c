package entitlement

import (
	"errors"
	"fmt"
	"time"

	"device-entitlement-backend/pkg/database"
	"device-entitlement-backend/pkg/models"
	"device-entitlement-backend/pkg/plans"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Syncer applies billing-provider lifecycle facts to the subscription store.
// Every Apply method is idempotent: re-delivering the same event leaves the
// store unchanged, which is what webhook retry semantics demand.
type Syncer struct {
	store Store
	log   *logrus.Entry
}

// NewSyncer creates a Syncer over store.
func NewSyncer(store Store) *Syncer {
	return &Syncer{
		store: store,
		log:   logrus.WithField("component", "sync"),
	}
}

// ApplyCheckoutCompleted records a subscription created by a completed
// checkout. A record already holding the provider subscription id means the
// event was delivered before, so the call is a no-op.
func (s *Syncer) ApplyCheckoutCompleted(ev models.SubscriptionEvent) error {
	if ev.StripeSubscriptionID == "" {
		return &ValidationError{Field: "subscription", Reason: "Event carries no subscription id"}
	}
	if ev.OwnerID == "" {
		return &ValidationError{Field: "owner_id", Reason: "Event carries no owner"}
	}

	if _, err := s.store.SubscriptionByStripeID(ev.StripeSubscriptionID); err == nil {
		s.log.WithField("stripe_subscription_id", ev.StripeSubscriptionID).
			Debug("checkout already recorded")
		return nil
	} else if !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("lookup subscription %s: %w", ev.StripeSubscriptionID, err)
	}

	ownerType := ev.OwnerType
	if ownerType == "" {
		ownerType = models.OwnerUser
	}
	status := ev.Status
	if status == "" {
		status = models.StatusActive
	}

	sub := &models.Subscription{
		ID:                   uuid.New().String(),
		OwnerID:              ev.OwnerID,
		OwnerType:            ownerType,
		Plan:                 ev.Plan,
		BillingPeriod:        ev.BillingPeriod,
		Status:               status,
		CurrentPeriodStart:   ev.PeriodStart,
		CurrentPeriodEnd:     ev.PeriodEnd,
		CancelAtPeriodEnd:    ev.CancelAtPeriodEnd,
		TrialEnd:             ev.TrialEnd,
		UserLimit:            plans.Resolve(ev.Plan).UserLimit,
		DeviceLimit:          plans.Resolve(ev.Plan).DeviceLimit,
		StripeSubscriptionID: ev.StripeSubscriptionID,
		StripeCustomerID:     ev.StripeCustomerID,
		CreatedByUserID:      ev.CreatedByUserID,
	}
	if err := s.store.CreateSubscription(sub); err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"subscription_id": sub.ID,
		"owner_id":        sub.OwnerID,
		"owner_type":      sub.OwnerType,
		"plan":            sub.Plan,
	}).Info("subscription created from checkout")
	return nil
}

// ApplySubscriptionUpdated merges a provider-side change into the stored
// record. An unknown subscription id is logged and dropped; the checkout
// event that creates the record may still be in flight and the provider
// will retry. When the merge changes nothing the write is skipped.
func (s *Syncer) ApplySubscriptionUpdated(ev models.SubscriptionEvent) error {
	sub, err := s.store.SubscriptionByStripeID(ev.StripeSubscriptionID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.log.WithField("stripe_subscription_id", ev.StripeSubscriptionID).
				Warn("update for unknown subscription dropped")
			return nil
		}
		return fmt.Errorf("lookup subscription %s: %w", ev.StripeSubscriptionID, err)
	}

	changed := false
	if ev.Status != "" && ev.Status != sub.Status {
		sub.Status = ev.Status
		changed = true
	}
	if ev.Plan != "" && ev.Plan != sub.Plan {
		sub.Plan = ev.Plan
		// Plan changed: stamped limits follow the new plan.
		sub.UserLimit = plans.Resolve(ev.Plan).UserLimit
		sub.DeviceLimit = plans.Resolve(ev.Plan).DeviceLimit
		changed = true
	}
	if ev.BillingPeriod != "" && ev.BillingPeriod != sub.BillingPeriod {
		sub.BillingPeriod = ev.BillingPeriod
		changed = true
	}
	if !timePtrEqual(ev.PeriodStart, sub.CurrentPeriodStart) && ev.PeriodStart != nil {
		sub.CurrentPeriodStart = ev.PeriodStart
		changed = true
	}
	if !timePtrEqual(ev.PeriodEnd, sub.CurrentPeriodEnd) && ev.PeriodEnd != nil {
		sub.CurrentPeriodEnd = ev.PeriodEnd
		changed = true
	}
	if ev.CancelAtPeriodEnd != sub.CancelAtPeriodEnd {
		sub.CancelAtPeriodEnd = ev.CancelAtPeriodEnd
		changed = true
	}
	if ev.TrialEnd != nil && !timePtrEqual(ev.TrialEnd, sub.TrialEnd) {
		sub.TrialEnd = ev.TrialEnd
		changed = true
	}
	if !changed {
		s.log.WithField("stripe_subscription_id", ev.StripeSubscriptionID).
			Debug("subscription update carried no changes")
		return nil
	}

	if err := s.store.UpdateSubscription(sub); err != nil {
		return fmt.Errorf("update subscription %s: %w", sub.ID, err)
	}
	s.log.WithFields(logrus.Fields{
		"subscription_id": sub.ID,
		"status":          sub.Status,
		"plan":            sub.Plan,
	}).Info("subscription updated")
	return nil
}

// ApplySubscriptionDeleted marks the stored record canceled. Missing records
// are a no-op, and a record already canceled keeps its original canceled_at.
func (s *Syncer) ApplySubscriptionDeleted(stripeSubscriptionID string) error {
	sub, err := s.store.SubscriptionByStripeID(stripeSubscriptionID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.log.WithField("stripe_subscription_id", stripeSubscriptionID).
				Warn("deletion for unknown subscription dropped")
			return nil
		}
		return fmt.Errorf("lookup subscription %s: %w", stripeSubscriptionID, err)
	}
	if sub.Status == models.StatusCanceled {
		return nil
	}

	now := time.Now().UTC()
	sub.Status = models.StatusCanceled
	sub.CanceledAt = &now
	if err := s.store.UpdateSubscription(sub); err != nil {
		return fmt.Errorf("cancel subscription %s: %w", sub.ID, err)
	}
	s.log.WithFields(logrus.Fields{
		"subscription_id": sub.ID,
		"owner_id":        sub.OwnerID,
	}).Info("subscription canceled")
	return nil
}

// ApplyPaymentFailed moves the stored record to past_due, taking it out of
// effective status until the provider reports recovery.
func (s *Syncer) ApplyPaymentFailed(stripeSubscriptionID string) error {
	sub, err := s.store.SubscriptionByStripeID(stripeSubscriptionID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.log.WithField("stripe_subscription_id", stripeSubscriptionID).
				Warn("payment failure for unknown subscription dropped")
			return nil
		}
		return fmt.Errorf("lookup subscription %s: %w", stripeSubscriptionID, err)
	}
	if sub.Status == models.StatusPastDue {
		return nil
	}

	sub.Status = models.StatusPastDue
	if err := s.store.UpdateSubscription(sub); err != nil {
		return fmt.Errorf("mark subscription %s past_due: %w", sub.ID, err)
	}
	s.log.WithFields(logrus.Fields{
		"subscription_id": sub.ID,
		"owner_id":        sub.OwnerID,
	}).Info("subscription marked past_due")
	return nil
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
