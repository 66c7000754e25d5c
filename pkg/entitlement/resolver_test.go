package entitlement

import (
	"testing"

	"device-entitlement-backend/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(store *fakeStore) *Resolver {
	return NewResolver(store, NewDirectory(store))
}

func TestEffectiveSubscriptionPersonal(t *testing.T) {
	store := newFakeStore()
	store.seedSubscription("user-1", models.OwnerUser, "single", models.StatusActive)

	sub, scope, err := newResolver(store).EffectiveSubscription("user-1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "single", sub.Plan)
	assert.Equal(t, "user-1", scope.OwnerID)
	assert.False(t, scope.Org)
}

func TestEffectiveSubscriptionNone(t *testing.T) {
	store := newFakeStore()

	sub, scope, err := newResolver(store).EffectiveSubscription("user-1")
	require.NoError(t, err)
	assert.Nil(t, sub)
	assert.Equal(t, "user-1", scope.OwnerID)
	assert.False(t, scope.Org)
}

func TestOrgSubscriptionBeatsPersonal(t *testing.T) {
	store := newFakeStore()
	store.seedOrg("org-1", "owner-1")
	store.seedMember("org-1", "user-1", models.RoleMember)
	// personal business plan vs organisation team plan: the organisation
	// wins regardless of tier
	store.seedSubscription("user-1", models.OwnerUser, "business", models.StatusActive)
	store.seedSubscription("org-1", models.OwnerOrganisation, "team", models.StatusActive)

	sub, scope, err := newResolver(store).EffectiveSubscription("user-1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "team", sub.Plan)
	assert.Equal(t, "org-1", scope.OwnerID)
	assert.True(t, scope.Org)
}

func TestOrgWithoutSubscriptionFallsBackToPersonal(t *testing.T) {
	store := newFakeStore()
	store.seedOrg("org-1", "owner-1")
	store.seedMember("org-1", "user-1", models.RoleMember)
	store.seedSubscription("user-1", models.OwnerUser, "single", models.StatusActive)

	sub, scope, err := newResolver(store).EffectiveSubscription("user-1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "single", sub.Plan)
	assert.False(t, scope.Org)
}

func TestNonEffectiveStatusesIgnored(t *testing.T) {
	store := newFakeStore()
	store.seedSubscription("user-1", models.OwnerUser, "single", models.StatusCanceled)
	store.seedSubscription("user-1", models.OwnerUser, "team", models.StatusPastDue)
	store.seedSubscription("user-1", models.OwnerUser, "business", models.StatusUnpaid)

	sub, _, err := newResolver(store).EffectiveSubscription("user-1")
	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestTrialingCountsAsEffective(t *testing.T) {
	store := newFakeStore()
	store.seedSubscription("user-1", models.OwnerUser, "single", models.StatusTrialing)

	sub, _, err := newResolver(store).EffectiveSubscription("user-1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, models.StatusTrialing, sub.Status)
}

func TestMostRecentEffectiveSubscriptionWins(t *testing.T) {
	store := newFakeStore()
	store.seedSubscription("user-1", models.OwnerUser, "single", models.StatusActive)
	store.seedSubscription("user-1", models.OwnerUser, "team", models.StatusActive)

	sub, _, err := newResolver(store).EffectiveSubscription("user-1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "team", sub.Plan)
}
