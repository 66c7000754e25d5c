package entitlement

import (
	"fmt"

	"device-entitlement-backend/pkg/models"

	"github.com/sirupsen/logrus"
)

// Scope identifies whose subscription governs a user: either the user's own
// personal scope or their organisation's shared scope.
type Scope struct {
	OwnerID string
	Org     bool
}

// Resolver answers the central question of the engine: which subscription is
// in effect for a given user. Organisation subscriptions always take
// precedence over personal ones, regardless of plan tier, so that seat
// members inherit the organisation's entitlements.
type Resolver struct {
	directory *Directory
	store     Store
	log       *logrus.Entry
}

// NewResolver creates a Resolver over store.
func NewResolver(store Store, directory *Directory) *Resolver {
	return &Resolver{
		directory: directory,
		store:     store,
		log:       logrus.WithField("component", "resolver"),
	}
}

// EffectiveSubscription resolves the subscription governing userID.
//
// The organisation scope is consulted first when the user belongs to one;
// only if the organisation holds no effective subscription does resolution
// fall back to the user's personal subscriptions. A nil subscription with a
// nil error means the user simply has none, which is a normal state, not a
// failure. The returned Scope reports which owner was resolved so that
// usage accounting can aggregate at the right level.
func (r *Resolver) EffectiveSubscription(userID string) (*models.Subscription, Scope, error) {
	membership, err := r.directory.MembershipOf(userID)
	switch {
	case err == nil:
		sub, ferr := r.effectiveForOwner(membership.OrganisationID)
		if ferr != nil {
			return nil, Scope{}, ferr
		}
		if sub != nil {
			return sub, Scope{OwnerID: membership.OrganisationID, Org: true}, nil
		}
	case IsNotFound(err):
		// No membership; personal scope only.
	default:
		return nil, Scope{}, err
	}

	sub, err := r.effectiveForOwner(userID)
	if err != nil {
		return nil, Scope{}, err
	}
	return sub, Scope{OwnerID: userID, Org: false}, nil
}

// effectiveForOwner picks the effective subscription among an owner's
// records: most recently created wins when more than one is live, which can
// happen transiently while a plan change settles.
func (r *Resolver) effectiveForOwner(ownerID string) (*models.Subscription, error) {
	subs, err := r.store.SubscriptionsByOwner(ownerID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions for owner %s: %w", ownerID, err)
	}

	var picked *models.Subscription
	live := 0
	for i := range subs {
		if !subs[i].Status.IsEffective() {
			continue
		}
		live++
		// SubscriptionsByOwner orders newest first.
		if picked == nil {
			picked = &subs[i]
		}
	}
	if live > 1 {
		r.log.WithFields(logrus.Fields{
			"owner_id": ownerID,
			"count":    live,
		}).Warn("owner has multiple effective subscriptions; using most recent")
	}
	return picked, nil
}
