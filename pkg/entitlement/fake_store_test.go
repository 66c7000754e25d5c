package entitlement

import (
	"sort"
	"time"

	"device-entitlement-backend/pkg/database"
	"device-entitlement-backend/pkg/models"
)

// fakeStore is an in-memory Store honoring the same conditional-write and
// ordering contracts as the Postgres implementation.
type fakeStore struct {
	memberships   []models.OrganisationMembership
	organisations map[string]models.Organisation
	invitations   []models.OrganisationInvitation
	subscriptions []models.Subscription
	devices       []models.Device
	profiles      map[string]models.Profile

	now time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		organisations: make(map[string]models.Organisation),
		profiles:      make(map[string]models.Profile),
		now:           time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	}
}

// tick advances the fake clock so created_at ordering is deterministic.
func (f *fakeStore) tick() time.Time {
	f.now = f.now.Add(time.Second)
	return f.now
}

// ==== Memberships ====

func (f *fakeStore) CreateMembership(m *models.OrganisationMembership) error {
	for _, existing := range f.memberships {
		if existing.UserID == m.UserID {
			return database.ErrDuplicate
		}
	}
	m.JoinedAt = f.tick()
	m.UpdatedAt = m.JoinedAt
	f.memberships = append(f.memberships, *m)
	return nil
}

func (f *fakeStore) MembershipsByUser(userID string) ([]models.OrganisationMembership, error) {
	var out []models.OrganisationMembership
	for _, m := range f.memberships {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (f *fakeStore) MembersOf(orgID string) ([]models.OrganisationMembership, error) {
	var out []models.OrganisationMembership
	for _, m := range f.memberships {
		if m.OrganisationID == orgID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Role.Priority() != out[j].Role.Priority() {
			return out[i].Role.Priority() < out[j].Role.Priority()
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

func (f *fakeStore) GetMembership(orgID, userID string) (*models.OrganisationMembership, error) {
	for _, m := range f.memberships {
		if m.OrganisationID == orgID && m.UserID == userID {
			cp := m
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) UpdateMembershipRole(orgID, userID string, role models.OrgMemberRole) (*models.OrganisationMembership, error) {
	for i, m := range f.memberships {
		if m.OrganisationID == orgID && m.UserID == userID {
			f.memberships[i].Role = role
			f.memberships[i].UpdatedAt = f.tick()
			cp := f.memberships[i]
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) DeleteMembership(orgID, userID string) error {
	for i, m := range f.memberships {
		if m.OrganisationID == orgID && m.UserID == userID {
			f.memberships = append(f.memberships[:i], f.memberships[i+1:]...)
			return nil
		}
	}
	return database.ErrNotFound
}

func (f *fakeStore) DeleteMembershipsByOrganisation(orgID string) error {
	kept := f.memberships[:0]
	for _, m := range f.memberships {
		if m.OrganisationID != orgID {
			kept = append(kept, m)
		}
	}
	f.memberships = kept
	return nil
}

// ==== Organisations ====

func (f *fakeStore) CreateOrganisation(org *models.Organisation) error {
	org.CreatedAt = f.tick()
	org.UpdatedAt = org.CreatedAt
	f.organisations[org.ID] = *org
	return nil
}

func (f *fakeStore) GetOrganisation(orgID string) (*models.Organisation, error) {
	org, ok := f.organisations[orgID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &org, nil
}

func (f *fakeStore) UpdateOrganisationName(orgID, name string) (*models.Organisation, error) {
	org, ok := f.organisations[orgID]
	if !ok {
		return nil, database.ErrNotFound
	}
	org.Name = name
	org.UpdatedAt = f.tick()
	f.organisations[orgID] = org
	return &org, nil
}

func (f *fakeStore) DeleteOrganisation(orgID string) error {
	if _, ok := f.organisations[orgID]; !ok {
		return database.ErrNotFound
	}
	delete(f.organisations, orgID)
	return nil
}

// ==== Invitations ====

func (f *fakeStore) CreateInvitation(inv *models.OrganisationInvitation) error {
	for _, existing := range f.invitations {
		if existing.OrganisationID == inv.OrganisationID &&
			existing.Email == inv.Email &&
			existing.Status == models.InvitationPending {
			return database.ErrDuplicate
		}
	}
	inv.CreatedAt = f.tick()
	f.invitations = append(f.invitations, *inv)
	return nil
}

func (f *fakeStore) PendingInvitation(orgID, email string) (*models.OrganisationInvitation, error) {
	for _, inv := range f.invitations {
		if inv.OrganisationID == orgID && inv.Email == email && inv.Status == models.InvitationPending {
			cp := inv
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) InvitationByToken(token string) (*models.OrganisationInvitation, error) {
	for _, inv := range f.invitations {
		if inv.Token == token {
			cp := inv
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) UpdateInvitation(inv *models.OrganisationInvitation) error {
	for i, existing := range f.invitations {
		if existing.OrganisationID == inv.OrganisationID && existing.InvitationID == inv.InvitationID {
			f.invitations[i] = *inv
			return nil
		}
	}
	return database.ErrNotFound
}

func (f *fakeStore) DeleteInvitationsByOrganisation(orgID string) error {
	kept := f.invitations[:0]
	for _, inv := range f.invitations {
		if inv.OrganisationID != orgID {
			kept = append(kept, inv)
		}
	}
	f.invitations = kept
	return nil
}

// ==== Subscriptions ====

func (f *fakeStore) CreateSubscription(sub *models.Subscription) error {
	sub.CreatedAt = f.tick()
	sub.UpdatedAt = sub.CreatedAt
	f.subscriptions = append(f.subscriptions, *sub)
	return nil
}

func (f *fakeStore) UpdateSubscription(sub *models.Subscription) error {
	for i, existing := range f.subscriptions {
		if existing.ID == sub.ID {
			sub.UpdatedAt = f.tick()
			f.subscriptions[i] = *sub
			return nil
		}
	}
	return database.ErrNotFound
}

func (f *fakeStore) SubscriptionsByOwner(ownerID string) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, sub := range f.subscriptions {
		if sub.OwnerID == ownerID {
			out = append(out, sub)
		}
	}
	// newest first, matching the store contract
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) SubscriptionByStripeID(stripeSubscriptionID string) (*models.Subscription, error) {
	for _, sub := range f.subscriptions {
		if sub.StripeSubscriptionID == stripeSubscriptionID {
			cp := sub
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

// ==== Devices ====

func (f *fakeStore) CreateDevice(d *models.Device) error {
	for _, existing := range f.devices {
		if existing.UserID == d.UserID && existing.Fingerprint == d.Fingerprint {
			return database.ErrDuplicate
		}
	}
	f.devices = append(f.devices, *d)
	return nil
}

func (f *fakeStore) DevicesByUser(userID string) ([]models.Device, error) {
	var out []models.Device
	for _, d := range f.devices {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) DeviceByFingerprint(userID, fingerprint string) (*models.Device, error) {
	for _, d := range f.devices {
		if d.UserID == userID && d.Fingerprint == fingerprint {
			cp := d
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) GetDevice(userID, deviceID string) (*models.Device, error) {
	for _, d := range f.devices {
		if d.UserID == userID && d.DeviceID == deviceID {
			cp := d
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) TouchDevice(userID, deviceID string, lastActive time.Time) (*models.Device, error) {
	for i, d := range f.devices {
		if d.UserID == userID && d.DeviceID == deviceID {
			f.devices[i].LastActive = lastActive
			cp := f.devices[i]
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) DeleteDevice(userID, deviceID string) error {
	for i, d := range f.devices {
		if d.UserID == userID && d.DeviceID == deviceID {
			f.devices = append(f.devices[:i], f.devices[i+1:]...)
			return nil
		}
	}
	return database.ErrNotFound
}

func (f *fakeStore) CountDevices(userID string) (int, error) {
	count := 0
	for _, d := range f.devices {
		if d.UserID == userID {
			count++
		}
	}
	return count, nil
}

// ==== Profiles ====

func (f *fakeStore) GetProfile(userID string) (*models.Profile, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &p, nil
}

// ==== Test fixtures ====

// seedOrg creates an organisation with an owner membership directly in the
// store, bypassing service validation.
func (f *fakeStore) seedOrg(orgID, ownerID string) {
	f.organisations[orgID] = models.Organisation{
		ID: orgID, Name: "Test Org", OwnerID: ownerID,
		CreatedAt: f.tick(), UpdatedAt: f.now,
	}
	f.memberships = append(f.memberships, models.OrganisationMembership{
		OrganisationID: orgID, UserID: ownerID, Role: models.RoleOwner,
		JoinedAt: f.tick(), UpdatedAt: f.now,
	})
}

// seedMember adds a membership directly.
func (f *fakeStore) seedMember(orgID, userID string, role models.OrgMemberRole) {
	f.memberships = append(f.memberships, models.OrganisationMembership{
		OrganisationID: orgID, UserID: userID, Role: role,
		JoinedAt: f.tick(), UpdatedAt: f.now,
	})
}

// seedSubscription adds an active subscription directly.
func (f *fakeStore) seedSubscription(ownerID string, ownerType models.OwnerType, plan string, status models.SubscriptionStatus) *models.Subscription {
	sub := models.Subscription{
		ID:                   "sub-" + ownerID + "-" + plan,
		OwnerID:              ownerID,
		OwnerType:            ownerType,
		Plan:                 plan,
		BillingPeriod:        "monthly",
		Status:               status,
		StripeSubscriptionID: "stripe-" + ownerID + "-" + plan,
		CreatedAt:            f.tick(),
		UpdatedAt:            f.now,
	}
	f.subscriptions = append(f.subscriptions, sub)
	return &sub
}

// seedDevice adds a device directly.
func (f *fakeStore) seedDevice(userID, deviceID, fingerprint string) {
	f.devices = append(f.devices, models.Device{
		UserID: userID, DeviceID: deviceID, Name: "Device " + deviceID,
		Fingerprint: fingerprint, RegisteredAt: f.tick(), LastActive: f.now,
	})
}
