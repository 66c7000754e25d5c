package database

import (
	"errors"
	"time"

	"device-entitlement-backend/pkg/models"
)

// Sentinel errors returned by implementations. Callers translate these into
// the user-facing error taxonomy; the store itself stays taxonomy-agnostic.
var (
	// ErrNotFound is returned when a keyed lookup matches no row.
	ErrNotFound = errors.New("database: not found")
	// ErrDuplicate is returned when a conditional insert hits an existing
	// row, e.g. a second membership for a user or a reused fingerprint.
	ErrDuplicate = errors.New("database: duplicate")
)

// DatabaseInterface defines the persistent store operations
type DatabaseInterface interface {
	// Profiles
	CreateProfile(p *models.Profile) error
	GetProfile(userID string) (*models.Profile, error)
	UpdateProfile(userID string, patch map[string]interface{}) (*models.Profile, error)

	// Organisations
	CreateOrganisation(org *models.Organisation) error
	GetOrganisation(orgID string) (*models.Organisation, error)
	UpdateOrganisationName(orgID, name string) (*models.Organisation, error)
	DeleteOrganisation(orgID string) error

	// Memberships. CreateMembership is conditional on the user having no
	// existing membership anywhere and returns ErrDuplicate otherwise.
	CreateMembership(m *models.OrganisationMembership) error
	MembershipsByUser(userID string) ([]models.OrganisationMembership, error)
	MembersOf(orgID string) ([]models.OrganisationMembership, error)
	GetMembership(orgID, userID string) (*models.OrganisationMembership, error)
	UpdateMembershipRole(orgID, userID string, role models.OrgMemberRole) (*models.OrganisationMembership, error)
	DeleteMembership(orgID, userID string) error
	DeleteMembershipsByOrganisation(orgID string) error

	// Invitations
	CreateInvitation(inv *models.OrganisationInvitation) error
	PendingInvitation(orgID, email string) (*models.OrganisationInvitation, error)
	InvitationByToken(token string) (*models.OrganisationInvitation, error)
	UpdateInvitation(inv *models.OrganisationInvitation) error
	DeleteInvitationsByOrganisation(orgID string) error

	// Subscriptions
	CreateSubscription(sub *models.Subscription) error
	UpdateSubscription(sub *models.Subscription) error
	SubscriptionsByOwner(ownerID string) ([]models.Subscription, error)
	SubscriptionByStripeID(stripeSubscriptionID string) (*models.Subscription, error)

	// Devices. CreateDevice is conditional on (user_id, fingerprint) being
	// unused and returns ErrDuplicate otherwise.
	CreateDevice(d *models.Device) error
	DevicesByUser(userID string) ([]models.Device, error)
	DeviceByFingerprint(userID, fingerprint string) (*models.Device, error)
	GetDevice(userID, deviceID string) (*models.Device, error)
	TouchDevice(userID, deviceID string, lastActive time.Time) (*models.Device, error)
	DeleteDevice(userID, deviceID string) error
	CountDevices(userID string) (int, error)

	// Health
	HealthCheck() error
	Close() error
}
