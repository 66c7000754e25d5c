package entitlement

import (
	"fmt"

	"device-entitlement-backend/pkg/models"
	"device-entitlement-backend/pkg/plans"

	"github.com/sirupsen/logrus"
)

// Accountant measures current resource usage against subscription quotas.
// It never enforces anything itself; callers combine its counts with Admit
// to decide whether an acquisition goes through.
type Accountant struct {
	directory *Directory
	store     Store
	log       *logrus.Entry
}

// NewAccountant creates an Accountant over store.
func NewAccountant(store Store, directory *Directory) *Accountant {
	return &Accountant{
		directory: directory,
		store:     store,
		log:       logrus.WithField("component", "accountant"),
	}
}

// DeviceUsage counts the devices charged against scope. For an organisation
// scope every member's devices count toward the shared pool, so the count is
// summed across the membership. A member with no devices contributes zero.
func (a *Accountant) DeviceUsage(scope Scope) (int, error) {
	if !scope.Org {
		n, err := a.store.CountDevices(scope.OwnerID)
		if err != nil {
			return 0, fmt.Errorf("count devices for user %s: %w", scope.OwnerID, err)
		}
		return n, nil
	}

	members, err := a.directory.MembersOf(scope.OwnerID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, m := range members {
		n, err := a.store.CountDevices(m.UserID)
		if err != nil {
			return 0, fmt.Errorf("count devices for member %s: %w", m.UserID, err)
		}
		total += n
	}
	return total, nil
}

// UserUsage counts the seats consumed in an organisation scope. A personal
// scope always consumes exactly one seat.
func (a *Accountant) UserUsage(scope Scope) (int, error) {
	if !scope.Org {
		return 1, nil
	}
	members, err := a.directory.MembersOf(scope.OwnerID)
	if err != nil {
		return 0, err
	}
	return len(members), nil
}

// DeviceLimitOf returns the device quota of sub: the per-record override
// when one is set, otherwise the plan's default. Nil means unlimited.
func DeviceLimitOf(sub *models.Subscription) *int {
	if sub == nil {
		v := plans.DefaultDeviceLimit
		return &v
	}
	return plans.DeviceLimitFor(sub.Plan, sub.DeviceLimit)
}

// UserLimitOf returns the seat quota of sub, nil meaning unlimited.
func UserLimitOf(sub *models.Subscription) *int {
	if sub == nil {
		v := plans.DefaultUserLimit
		return &v
	}
	return plans.UserLimitFor(sub.Plan, sub.UserLimit)
}

// Admit reports whether one more unit fits under limit given current usage.
// A nil limit admits unconditionally.
func Admit(current int, limit *int) bool {
	if limit == nil {
		return true
	}
	return current < *limit
}
