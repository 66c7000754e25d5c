// Package entitlement is the core of the backend: it resolves which
// subscription governs a principal, accounts resource usage against that
// subscription's quotas, and enforces the role hierarchy over organisation
// membership. Everything else in the repository is transport or persistence
// plumbing around this package.
package entitlement

import (
	"time"

	"device-entitlement-backend/pkg/models"
)

// Store is the slice of the persistent store the engine needs. The Postgres
// implementation in pkg/database satisfies it; tests use an in-memory fake.
// Conditional-create methods return database.ErrDuplicate on uniqueness
// violations and lookups return database.ErrNotFound on missing rows.
type Store interface {
	// Memberships
	CreateMembership(m *models.OrganisationMembership) error
	MembershipsByUser(userID string) ([]models.OrganisationMembership, error)
	MembersOf(orgID string) ([]models.OrganisationMembership, error)
	GetMembership(orgID, userID string) (*models.OrganisationMembership, error)
	UpdateMembershipRole(orgID, userID string, role models.OrgMemberRole) (*models.OrganisationMembership, error)
	DeleteMembership(orgID, userID string) error
	DeleteMembershipsByOrganisation(orgID string) error

	// Organisations
	CreateOrganisation(org *models.Organisation) error
	GetOrganisation(orgID string) (*models.Organisation, error)
	UpdateOrganisationName(orgID, name string) (*models.Organisation, error)
	DeleteOrganisation(orgID string) error

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

	// Devices
	CreateDevice(d *models.Device) error
	DevicesByUser(userID string) ([]models.Device, error)
	DeviceByFingerprint(userID, fingerprint string) (*models.Device, error)
	GetDevice(userID, deviceID string) (*models.Device, error)
	TouchDevice(userID, deviceID string, lastActive time.Time) (*models.Device, error)
	DeleteDevice(userID, deviceID string) error
	CountDevices(userID string) (int, error)

	// Profiles (member listings join display names)
	GetProfile(userID string) (*models.Profile, error)
}
