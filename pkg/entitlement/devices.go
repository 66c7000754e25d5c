package entitlement

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"device-entitlement-backend/pkg/database"
	"device-entitlement-backend/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Registry manages a user's devices under the quota of their effective
// subscription. Devices are always owned by the registering user; only the
// quota pool may be shared through an organisation.
type Registry struct {
	store      Store
	resolver   *Resolver
	accountant *Accountant
	log        *logrus.Entry
}

// NewRegistry creates a Registry over store.
func NewRegistry(store Store, resolver *Resolver, accountant *Accountant) *Registry {
	return &Registry{
		store:      store,
		resolver:   resolver,
		accountant: accountant,
		log:        logrus.WithField("component", "devices"),
	}
}

// RegisterParams carries the caller-supplied device attributes.
type RegisterParams struct {
	Name        string
	Fingerprint string
	Browser     string
	UserAgent   string
	DeviceType  string
}

// DeviceLimits summarizes quota state for device listings. Max is nil when
// the plan is unlimited.
type DeviceLimits struct {
	Current int    `json:"current"`
	Max     *int   `json:"max"`
	Plan    string `json:"plan"`
	Shared  bool   `json:"is_shared"`
}

// Register admits a device under the user's effective subscription.
//
// Registration is idempotent on fingerprint: re-registering a known
// fingerprint refreshes last_active and returns the existing record without
// consuming quota. A user with no effective subscription cannot register at
// all, and a full quota pool surfaces as a LimitError carrying the counts.
func (r *Registry) Register(userID string, params RegisterParams) (*models.Device, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" || len(name) > 100 {
		return nil, &ValidationError{Field: "name", Reason: "Device name must be between 1 and 100 characters"}
	}
	fingerprint := strings.TrimSpace(params.Fingerprint)
	if fingerprint == "" {
		return nil, &ValidationError{Field: "fingerprint", Reason: "Device fingerprint is required"}
	}

	// Idempotent path first: a known fingerprint is a heartbeat, not a new
	// registration, and must succeed even when the pool is full.
	existing, err := r.store.DeviceByFingerprint(userID, fingerprint)
	if err == nil {
		return r.touch(existing)
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("lookup device by fingerprint: %w", err)
	}

	sub, scope, err := r.resolver.EffectiveSubscription(userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, &ForbiddenError{
			Rule:   "device_registration",
			Reason: "No active subscription. A subscription is required to register devices",
		}
	}

	limit := DeviceLimitOf(sub)
	current, err := r.accountant.DeviceUsage(scope)
	if err != nil {
		return nil, err
	}
	if !Admit(current, limit) {
		return nil, &LimitError{
			Resource: "device",
			Current:  current,
			Max:      *limit,
			Shared:   scope.Org,
		}
	}

	now := time.Now().UTC()
	device := &models.Device{
		UserID:       userID,
		DeviceID:     uuid.New().String(),
		Name:         name,
		Fingerprint:  fingerprint,
		Browser:      params.Browser,
		UserAgent:    params.UserAgent,
		DeviceType:   params.DeviceType,
		RegisteredAt: now,
		LastActive:   now,
	}
	if err := r.store.CreateDevice(device); err != nil {
		// Lost the race against a concurrent registration of the same
		// fingerprint; fall back to the idempotent path.
		if errors.Is(err, database.ErrDuplicate) {
			existing, lerr := r.store.DeviceByFingerprint(userID, fingerprint)
			if lerr != nil {
				return nil, fmt.Errorf("lookup device after duplicate: %w", lerr)
			}
			return r.touch(existing)
		}
		return nil, fmt.Errorf("create device: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"user_id":   userID,
		"device_id": device.DeviceID,
		"usage":     current + 1,
	}).Info("device registered")
	return device, nil
}

func (r *Registry) touch(d *models.Device) (*models.Device, error) {
	updated, err := r.store.TouchDevice(d.UserID, d.DeviceID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return d, nil
		}
		return nil, fmt.Errorf("touch device %s: %w", d.DeviceID, err)
	}
	return updated, nil
}

// Heartbeat refreshes a device's last_active timestamp. Heartbeats never
// check quota; an already-registered device stays usable even after a plan
// downgrade shrinks the pool below current usage.
func (r *Registry) Heartbeat(userID, deviceID string) (*models.Device, error) {
	updated, err := r.store.TouchDevice(userID, deviceID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Resource: "device"}
		}
		return nil, fmt.Errorf("touch device %s: %w", deviceID, err)
	}
	return updated, nil
}

// Remove deletes one of the user's own devices, freeing its quota slot.
// Ownership is the only rule: organisation admins cannot remove another
// member's devices.
func (r *Registry) Remove(userID, deviceID string) error {
	if _, err := r.store.GetDevice(userID, deviceID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return &NotFoundError{Resource: "device"}
		}
		return fmt.Errorf("get device %s: %w", deviceID, err)
	}
	if err := r.store.DeleteDevice(userID, deviceID); err != nil && !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("delete device %s: %w", deviceID, err)
	}
	r.log.WithFields(logrus.Fields{
		"user_id":   userID,
		"device_id": deviceID,
	}).Info("device removed")
	return nil
}

// List returns the user's own devices together with the quota state of
// their effective scope. The listing never includes other members' devices,
// but Current counts the whole shared pool when the scope is an
// organisation.
func (r *Registry) List(userID string) ([]models.Device, DeviceLimits, error) {
	devices, err := r.store.DevicesByUser(userID)
	if err != nil {
		return nil, DeviceLimits{}, fmt.Errorf("list devices for user %s: %w", userID, err)
	}

	sub, scope, err := r.resolver.EffectiveSubscription(userID)
	if err != nil {
		return nil, DeviceLimits{}, err
	}
	limits := DeviceLimits{
		Max:    DeviceLimitOf(sub),
		Shared: scope.Org,
	}
	if sub != nil {
		limits.Plan = sub.Plan
	}
	current, err := r.accountant.DeviceUsage(scope)
	if err != nil {
		return nil, DeviceLimits{}, err
	}
	limits.Current = current
	return devices, limits, nil
}
