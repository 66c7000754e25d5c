package entitlement

import (
	"testing"
	"time"

	"device-entitlement-backend/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkoutEvent() models.SubscriptionEvent {
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return models.SubscriptionEvent{
		StripeSubscriptionID: "sub_123",
		StripeCustomerID:     "cus_123",
		OwnerID:              "org-1",
		OwnerType:            models.OwnerOrganisation,
		CreatedByUserID:      "user-1",
		Plan:                 "team",
		BillingPeriod:        "monthly",
		Status:               models.StatusActive,
		PeriodStart:          &start,
		PeriodEnd:            &end,
	}
}

func TestApplyCheckoutCompleted(t *testing.T) {
	store := newFakeStore()
	syncer := NewSyncer(store)

	require.NoError(t, syncer.ApplyCheckoutCompleted(checkoutEvent()))

	sub, err := store.SubscriptionByStripeID("sub_123")
	require.NoError(t, err)
	assert.Equal(t, "org-1", sub.OwnerID)
	assert.Equal(t, models.OwnerOrganisation, sub.OwnerType)
	assert.Equal(t, "team", sub.Plan)
	assert.Equal(t, "user-1", sub.CreatedByUserID)
	// plan limits are stamped onto the record at creation
	require.NotNil(t, sub.UserLimit)
	assert.Equal(t, 3, *sub.UserLimit)
	require.NotNil(t, sub.DeviceLimit)
	assert.Equal(t, 10, *sub.DeviceLimit)
}

func TestApplyCheckoutCompletedIsIdempotent(t *testing.T) {
	store := newFakeStore()
	syncer := NewSyncer(store)

	require.NoError(t, syncer.ApplyCheckoutCompleted(checkoutEvent()))
	first, err := store.SubscriptionByStripeID("sub_123")
	require.NoError(t, err)

	// redelivery must not create a second record or change the first
	require.NoError(t, syncer.ApplyCheckoutCompleted(checkoutEvent()))
	assert.Len(t, store.subscriptions, 1)
	second, err := store.SubscriptionByStripeID("sub_123")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestApplyCheckoutCompletedValidation(t *testing.T) {
	syncer := NewSyncer(newFakeStore())

	ev := checkoutEvent()
	ev.StripeSubscriptionID = ""
	assert.True(t, IsValidation(syncer.ApplyCheckoutCompleted(ev)))

	ev = checkoutEvent()
	ev.OwnerID = ""
	assert.True(t, IsValidation(syncer.ApplyCheckoutCompleted(ev)))
}

func TestApplySubscriptionUpdated(t *testing.T) {
	store := newFakeStore()
	syncer := NewSyncer(store)
	require.NoError(t, syncer.ApplyCheckoutCompleted(checkoutEvent()))

	// plan change recomputes the stamped limits
	require.NoError(t, syncer.ApplySubscriptionUpdated(models.SubscriptionEvent{
		StripeSubscriptionID: "sub_123",
		Plan:                 "business",
		Status:               models.StatusActive,
	}))

	sub, err := store.SubscriptionByStripeID("sub_123")
	require.NoError(t, err)
	assert.Equal(t, "business", sub.Plan)
	require.NotNil(t, sub.UserLimit)
	assert.Equal(t, 10, *sub.UserLimit)
	require.NotNil(t, sub.DeviceLimit)
	assert.Equal(t, 30, *sub.DeviceLimit)
}

func TestApplySubscriptionUpdatedSkipsNoopWrites(t *testing.T) {
	store := newFakeStore()
	syncer := NewSyncer(store)
	require.NoError(t, syncer.ApplyCheckoutCompleted(checkoutEvent()))

	before, err := store.SubscriptionByStripeID("sub_123")
	require.NoError(t, err)

	// reapplying the same facts must leave the record untouched
	ev := checkoutEvent()
	require.NoError(t, syncer.ApplySubscriptionUpdated(ev))

	after, err := store.SubscriptionByStripeID("sub_123")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
}

func TestApplySubscriptionUpdatedUnknownIsNoop(t *testing.T) {
	store := newFakeStore()
	syncer := NewSyncer(store)

	require.NoError(t, syncer.ApplySubscriptionUpdated(models.SubscriptionEvent{
		StripeSubscriptionID: "sub_ghost",
		Status:               models.StatusActive,
	}))
	assert.Empty(t, store.subscriptions)
}

func TestApplySubscriptionDeleted(t *testing.T) {
	store := newFakeStore()
	syncer := NewSyncer(store)
	require.NoError(t, syncer.ApplyCheckoutCompleted(checkoutEvent()))

	require.NoError(t, syncer.ApplySubscriptionDeleted("sub_123"))

	sub, err := store.SubscriptionByStripeID("sub_123")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, sub.Status)
	require.NotNil(t, sub.CanceledAt)
	canceledAt := *sub.CanceledAt

	// redelivery keeps the original cancellation time
	require.NoError(t, syncer.ApplySubscriptionDeleted("sub_123"))
	sub, err = store.SubscriptionByStripeID("sub_123")
	require.NoError(t, err)
	assert.Equal(t, canceledAt, *sub.CanceledAt)

	// unknown ids are dropped silently
	assert.NoError(t, syncer.ApplySubscriptionDeleted("sub_ghost"))
}

func TestApplyPaymentFailed(t *testing.T) {
	store := newFakeStore()
	syncer := NewSyncer(store)
	require.NoError(t, syncer.ApplyCheckoutCompleted(checkoutEvent()))

	require.NoError(t, syncer.ApplyPaymentFailed("sub_123"))
	sub, err := store.SubscriptionByStripeID("sub_123")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPastDue, sub.Status)
	// past_due takes the subscription out of effect
	assert.False(t, sub.Status.IsEffective())

	assert.NoError(t, syncer.ApplyPaymentFailed("sub_ghost"))
}
