// Package plans defines the static plan tiers and resolves billing-provider
// price identifiers to internal plan keys.
//
// PRICING MODEL:
//   - single:     1 user, 3 devices
//   - team:       up to 3 users (via organisation), 10 devices shared
//   - business:   up to 10 users (via organisation), 30 devices shared
//   - enterprise: 10+ users, custom pricing, no fixed limits
//
// Each Stripe Product must carry metadata plan_key = "single" | "team" |
// "business" | "enterprise" so price IDs can differ between environments.
package plans

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
)

// Plan describes one tier. A nil limit means unlimited (or custom, for
// enterprise); zero is a real limit that admits nothing.
type Plan struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	UserLimit   *int   `json:"user_limit"`
	DeviceLimit *int   `json:"device_limit"`
	MinUsers    int    `json:"min_users,omitempty"`
}

// Default limits applied when a plan key is unknown. Callers get these back
// instead of an error so a stale plan key on an old subscription degrades to
// minimal entitlement rather than a hard failure.
const (
	DefaultUserLimit   = 1
	DefaultDeviceLimit = 0
)

// TrialPeriodDays is the free trial every new subscription starts with,
// applied at checkout regardless of tier.
const TrialPeriodDays = 7

func intPtr(v int) *int { return &v }

var table = map[string]Plan{
	"single": {
		Key:         "single",
		Name:        "1 User",
		UserLimit:   intPtr(1),
		DeviceLimit: intPtr(3),
	},
	"team": {
		Key:         "team",
		Name:        "Up To 3 Users",
		UserLimit:   intPtr(3),
		DeviceLimit: intPtr(10),
	},
	"business": {
		Key:         "business",
		Name:        "Up To 10 Users",
		UserLimit:   intPtr(10),
		DeviceLimit: intPtr(30),
	},
	"enterprise": {
		Key:      "enterprise",
		Name:     "Enterprise",
		MinUsers: 10,
		// nil limits: unlimited or custom
	},
}

// Resolve returns the plan for a key. Unknown keys return a fallback plan
// carrying the default limits, never an error.
func Resolve(key string) Plan {
	if p, ok := table[key]; ok {
		return p
	}
	return Plan{
		Key:         key,
		Name:        key,
		UserLimit:   intPtr(DefaultUserLimit),
		DeviceLimit: intPtr(DefaultDeviceLimit),
	}
}

// Known reports whether key is a configured plan.
func Known(key string) bool {
	_, ok := table[key]
	return ok
}

// UserLimitFor returns the user limit for a plan, preferring a per-subscription
// custom limit when one is set. nil means unlimited.
func UserLimitFor(key string, custom *int) *int {
	if custom != nil {
		return custom
	}
	return Resolve(key).UserLimit
}

// DeviceLimitFor returns the device limit for a plan, preferring a
// per-subscription custom limit when one is set. nil means unlimited.
func DeviceLimitFor(key string, custom *int) *int {
	if custom != nil {
		return custom
	}
	return Resolve(key).DeviceLimit
}

// PricePlan identifies the plan and billing period behind one provider price.
type PricePlan struct {
	PlanKey       string
	BillingPeriod string
}

// PriceMapping is one provider price resolved to an internal plan.
type PriceMapping struct {
	PriceID       string
	PlanKey       string
	BillingPeriod string
}

// PriceSource lists the currently active provider prices. The Stripe client
// implements this; tests use a static source.
type PriceSource interface {
	ListPrices() ([]PriceMapping, error)
}

// minRefreshInterval stops unknown price IDs from turning every lookup into
// a provider round trip.
const minRefreshInterval = 30 * time.Second

// Catalog resolves price IDs to plans and back through an explicit TTL cache.
// Entries expire after the configured TTL and Invalidate drops them eagerly,
// so price changes in the provider dashboard propagate without a restart.
type Catalog struct {
	mu          sync.Mutex
	source      PriceSource
	byPrice     *expirable.LRU[string, PricePlan]
	byPlan      *expirable.LRU[string, string]
	lastRefresh time.Time
	log         *logrus.Entry
}

// NewCatalog creates a Catalog backed by source with the given cache TTL.
func NewCatalog(source PriceSource, ttl time.Duration) *Catalog {
	return &Catalog{
		source:  source,
		byPrice: expirable.NewLRU[string, PricePlan](256, nil, ttl),
		byPlan:  expirable.NewLRU[string, string](256, nil, ttl),
		log:     logrus.WithField("component", "plans"),
	}
}

// PlanFromPrice resolves a provider price ID to (planKey, billingPeriod).
func (c *Catalog) PlanFromPrice(priceID string) (string, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pp, ok := c.byPrice.Get(priceID); ok {
		return pp.PlanKey, pp.BillingPeriod, true
	}
	c.refreshLocked()
	if pp, ok := c.byPrice.Get(priceID); ok {
		return pp.PlanKey, pp.BillingPeriod, true
	}
	return "", "", false
}

// PriceFor resolves (planKey, billingPeriod) to a provider price ID.
func (c *Catalog) PriceFor(planKey, billingPeriod string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := planKey + "/" + billingPeriod
	if id, ok := c.byPlan.Get(key); ok {
		return id, true
	}
	c.refreshLocked()
	if id, ok := c.byPlan.Get(key); ok {
		return id, true
	}
	return "", false
}

// Invalidate drops all cached mappings, forcing a provider refresh on the
// next lookup.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byPrice.Purge()
	c.byPlan.Purge()
	c.lastRefresh = time.Time{}
}

func (c *Catalog) refreshLocked() {
	if time.Since(c.lastRefresh) < minRefreshInterval {
		return
	}
	c.lastRefresh = time.Now()

	mappings, err := c.source.ListPrices()
	if err != nil {
		c.log.WithError(err).Warn("failed to refresh price mappings")
		return
	}

	for _, m := range mappings {
		if !Known(m.PlanKey) {
			continue
		}
		c.byPrice.Add(m.PriceID, PricePlan{PlanKey: m.PlanKey, BillingPeriod: m.BillingPeriod})
		c.byPlan.Add(m.PlanKey+"/"+m.BillingPeriod, m.PriceID)
	}
	c.log.WithField("prices", len(mappings)).Debug("price mappings refreshed")
}
