package database

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"device-entitlement-backend/pkg/models"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// PostgresDatabase implements DatabaseInterface on PostgreSQL.
type PostgresDatabase struct {
	db *sql.DB
}

// NewPostgresDatabase opens a connection pool sized for short-lived
// serverless invocations and verifies connectivity before returning.
func NewPostgresDatabase(dsn string) (DatabaseInterface, error) {
	dsn = strings.TrimSpace(dsn)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	logrus.WithField("component", "database").Info("postgres connection established")
	return &PostgresDatabase{db: db}, nil
}

// ==== Profiles ====

func (p *PostgresDatabase) CreateProfile(profile *models.Profile) error {
	query := `
		INSERT INTO profiles (user_id, email, display_name, bio, phone, company, address, city, state, country, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
		RETURNING created_at, updated_at
	`
	err := p.db.QueryRow(query,
		profile.UserID, profile.Email, profile.DisplayName, profile.Bio, profile.Phone,
		profile.Company, profile.Address, profile.City, profile.State, profile.Country,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

func (p *PostgresDatabase) GetProfile(userID string) (*models.Profile, error) {
	query := `
		SELECT user_id, COALESCE(email,''), display_name, bio, phone, company, address, city, state, country, created_at, updated_at
		FROM profiles WHERE user_id = $1
	`
	var profile models.Profile
	err := p.db.QueryRow(query, userID).Scan(
		&profile.UserID, &profile.Email, &profile.DisplayName, &profile.Bio, &profile.Phone,
		&profile.Company, &profile.Address, &profile.City, &profile.State, &profile.Country,
		&profile.CreatedAt, &profile.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

// allowed patch keys for UpdateProfile
var profileColumns = map[string]bool{
	"email": true, "display_name": true, "bio": true, "phone": true, "company": true,
	"address": true, "city": true, "state": true, "country": true,
}

// UpdateProfile applies a partial update built from the provided patch map.
// Unknown keys are rejected rather than ignored.
func (p *PostgresDatabase) UpdateProfile(userID string, patch map[string]interface{}) (*models.Profile, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{userID}

	// Deterministic column order keeps the statement stable for tests.
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !profileColumns[k] {
			return nil, fmt.Errorf("unknown profile column %q", k)
		}
		args = append(args, patch[k])
		sets = append(sets, fmt.Sprintf("%s = $%d", k, len(args)))
	}

	query := fmt.Sprintf(`
		UPDATE profiles SET %s WHERE user_id = $1
		RETURNING user_id, COALESCE(email,''), display_name, bio, phone, company, address, city, state, country, created_at, updated_at
	`, strings.Join(sets, ", "))

	var profile models.Profile
	err := p.db.QueryRow(query, args...).Scan(
		&profile.UserID, &profile.Email, &profile.DisplayName, &profile.Bio, &profile.Phone,
		&profile.Company, &profile.Address, &profile.City, &profile.State, &profile.Country,
		&profile.CreatedAt, &profile.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return &profile, nil
}

// ==== Organisations ====

func (p *PostgresDatabase) CreateOrganisation(org *models.Organisation) error {
	query := `
		INSERT INTO organisations (organisation_id, name, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := p.db.QueryRow(query, org.ID, org.Name, org.OwnerID).Scan(&org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organisation: %w", err)
	}
	return nil
}

func (p *PostgresDatabase) GetOrganisation(orgID string) (*models.Organisation, error) {
	query := `
		SELECT organisation_id, name, owner_id, created_at, updated_at
		FROM organisations WHERE organisation_id = $1
	`
	var org models.Organisation
	err := p.db.QueryRow(query, orgID).Scan(&org.ID, &org.Name, &org.OwnerID, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organisation: %w", err)
	}
	return &org, nil
}

func (p *PostgresDatabase) UpdateOrganisationName(orgID, name string) (*models.Organisation, error) {
	query := `
		UPDATE organisations SET name = $2, updated_at = NOW()
		WHERE organisation_id = $1
		RETURNING organisation_id, name, owner_id, created_at, updated_at
	`
	var org models.Organisation
	err := p.db.QueryRow(query, orgID, name).Scan(&org.ID, &org.Name, &org.OwnerID, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update organisation: %w", err)
	}
	return &org, nil
}

func (p *PostgresDatabase) DeleteOrganisation(orgID string) error {
	if _, err := p.db.Exec(`DELETE FROM organisations WHERE organisation_id = $1`, orgID); err != nil {
		return fmt.Errorf("failed to delete organisation: %w", err)
	}
	return nil
}

// ==== Memberships ====

// CreateMembership inserts a membership only when the user has no existing
// membership row anywhere; the unique index on user_id makes the
// single-membership invariant a store-level guarantee rather than a
// read-then-write check.
func (p *PostgresDatabase) CreateMembership(m *models.OrganisationMembership) error {
	query := `
		INSERT INTO org_members (organisation_id, user_id, role, joined_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
		RETURNING joined_at, updated_at
	`
	err := p.db.QueryRow(query, m.OrganisationID, m.UserID, m.Role).Scan(&m.JoinedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create membership: %w", err)
	}
	return nil
}

func (p *PostgresDatabase) MembershipsByUser(userID string) ([]models.OrganisationMembership, error) {
	query := `
		SELECT organisation_id, user_id, role, joined_at, updated_at
		FROM org_members WHERE user_id = $1
		ORDER BY joined_at ASC
	`
	return p.queryMemberships(query, userID)
}

func (p *PostgresDatabase) MembersOf(orgID string) ([]models.OrganisationMembership, error) {
	query := `
		SELECT organisation_id, user_id, role, joined_at, updated_at
		FROM org_members WHERE organisation_id = $1
		ORDER BY CASE role WHEN 'owner' THEN 0 WHEN 'admin' THEN 1 ELSE 2 END, joined_at ASC
	`
	return p.queryMemberships(query, orgID)
}

func (p *PostgresDatabase) queryMemberships(query string, arg interface{}) ([]models.OrganisationMembership, error) {
	rows, err := p.db.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer rows.Close()

	var members []models.OrganisationMembership
	for rows.Next() {
		var m models.OrganisationMembership
		if err := rows.Scan(&m.OrganisationID, &m.UserID, &m.Role, &m.JoinedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (p *PostgresDatabase) GetMembership(orgID, userID string) (*models.OrganisationMembership, error) {
	query := `
		SELECT organisation_id, user_id, role, joined_at, updated_at
		FROM org_members WHERE organisation_id = $1 AND user_id = $2
	`
	var m models.OrganisationMembership
	err := p.db.QueryRow(query, orgID, userID).Scan(&m.OrganisationID, &m.UserID, &m.Role, &m.JoinedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return &m, nil
}

func (p *PostgresDatabase) UpdateMembershipRole(orgID, userID string, role models.OrgMemberRole) (*models.OrganisationMembership, error) {
	query := `
		UPDATE org_members SET role = $3, updated_at = NOW()
		WHERE organisation_id = $1 AND user_id = $2
		RETURNING organisation_id, user_id, role, joined_at, updated_at
	`
	var m models.OrganisationMembership
	err := p.db.QueryRow(query, orgID, userID, role).Scan(&m.OrganisationID, &m.UserID, &m.Role, &m.JoinedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update membership role: %w", err)
	}
	return &m, nil
}

func (p *PostgresDatabase) DeleteMembership(orgID, userID string) error {
	res, err := p.db.Exec(`DELETE FROM org_members WHERE organisation_id = $1 AND user_id = $2`, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresDatabase) DeleteMembershipsByOrganisation(orgID string) error {
	if _, err := p.db.Exec(`DELETE FROM org_members WHERE organisation_id = $1`, orgID); err != nil {
		return fmt.Errorf("failed to delete memberships: %w", err)
	}
	return nil
}

// ==== Invitations ====

func (p *PostgresDatabase) CreateInvitation(inv *models.OrganisationInvitation) error {
	// Partial unique index on (organisation_id, email) WHERE status = 'pending'
	// backs the one-pending-invite invariant.
	query := `
		INSERT INTO org_invitations (organisation_id, invitation_id, email, role, token, invited_by, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), $8)
		ON CONFLICT DO NOTHING
		RETURNING created_at
	`
	err := p.db.QueryRow(query,
		inv.OrganisationID, inv.InvitationID, inv.Email, inv.Role,
		inv.Token, inv.InvitedBy, inv.Status, inv.ExpiresAt,
	).Scan(&inv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

func (p *PostgresDatabase) PendingInvitation(orgID, email string) (*models.OrganisationInvitation, error) {
	query := `
		SELECT organisation_id, invitation_id, email, role, token, invited_by, status, created_at, expires_at, accepted_by
		FROM org_invitations
		WHERE organisation_id = $1 AND email = $2 AND status = 'pending'
	`
	return p.queryInvitation(query, orgID, email)
}

func (p *PostgresDatabase) InvitationByToken(token string) (*models.OrganisationInvitation, error) {
	query := `
		SELECT organisation_id, invitation_id, email, role, token, invited_by, status, created_at, expires_at, accepted_by
		FROM org_invitations WHERE token = $1
	`
	return p.queryInvitation(query, token)
}

func (p *PostgresDatabase) queryInvitation(query string, args ...interface{}) (*models.OrganisationInvitation, error) {
	var inv models.OrganisationInvitation
	err := p.db.QueryRow(query, args...).Scan(
		&inv.OrganisationID, &inv.InvitationID, &inv.Email, &inv.Role, &inv.Token,
		&inv.InvitedBy, &inv.Status, &inv.CreatedAt, &inv.ExpiresAt, &inv.AcceptedBy,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return &inv, nil
}

func (p *PostgresDatabase) UpdateInvitation(inv *models.OrganisationInvitation) error {
	query := `
		UPDATE org_invitations SET status = $3, accepted_by = $4
		WHERE organisation_id = $1 AND invitation_id = $2
	`
	if _, err := p.db.Exec(query, inv.OrganisationID, inv.InvitationID, inv.Status, inv.AcceptedBy); err != nil {
		return fmt.Errorf("failed to update invitation: %w", err)
	}
	return nil
}

func (p *PostgresDatabase) DeleteInvitationsByOrganisation(orgID string) error {
	if _, err := p.db.Exec(`DELETE FROM org_invitations WHERE organisation_id = $1`, orgID); err != nil {
		return fmt.Errorf("failed to delete invitations: %w", err)
	}
	return nil
}

// ==== Subscriptions ====

func (p *PostgresDatabase) CreateSubscription(sub *models.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			subscription_id, owner_id, owner_type, plan, billing_period, status,
			current_period_start, current_period_end, cancel_at_period_end, canceled_at, trial_end,
			user_limit, device_limit, stripe_subscription_id, stripe_customer_id, created_by_user_id,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := p.db.QueryRow(query,
		sub.ID, sub.OwnerID, sub.OwnerType, sub.Plan, sub.BillingPeriod, sub.Status,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd, sub.CanceledAt, sub.TrialEnd,
		sub.UserLimit, sub.DeviceLimit, sub.StripeSubscriptionID, sub.StripeCustomerID, sub.CreatedByUserID,
	).Scan(&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func (p *PostgresDatabase) UpdateSubscription(sub *models.Subscription) error {
	query := `
		UPDATE subscriptions SET
			plan = $2, billing_period = $3, status = $4,
			current_period_start = $5, current_period_end = $6,
			cancel_at_period_end = $7, canceled_at = $8, trial_end = $9,
			user_limit = $10, device_limit = $11, updated_at = NOW()
		WHERE subscription_id = $1
	`
	res, err := p.db.Exec(query,
		sub.ID, sub.Plan, sub.BillingPeriod, sub.Status,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd, sub.CanceledAt, sub.TrialEnd,
		sub.UserLimit, sub.DeviceLimit,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresDatabase) SubscriptionsByOwner(ownerID string) ([]models.Subscription, error) {
	query := subscriptionColumns + ` FROM subscriptions WHERE owner_id = $1 ORDER BY created_at DESC`
	rows, err := p.db.Query(query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func (p *PostgresDatabase) SubscriptionByStripeID(stripeSubscriptionID string) (*models.Subscription, error) {
	query := subscriptionColumns + ` FROM subscriptions WHERE stripe_subscription_id = $1`
	row := p.db.QueryRow(query, stripeSubscriptionID)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sub, err
}

const subscriptionColumns = `
	SELECT subscription_id, owner_id, owner_type, plan, billing_period, status,
		current_period_start, current_period_end, cancel_at_period_end, canceled_at, trial_end,
		user_limit, device_limit, stripe_subscription_id, COALESCE(stripe_customer_id,''),
		COALESCE(created_by_user_id,''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var sub models.Subscription
	err := row.Scan(
		&sub.ID, &sub.OwnerID, &sub.OwnerType, &sub.Plan, &sub.BillingPeriod, &sub.Status,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.CancelAtPeriodEnd, &sub.CanceledAt, &sub.TrialEnd,
		&sub.UserLimit, &sub.DeviceLimit, &sub.StripeSubscriptionID, &sub.StripeCustomerID,
		&sub.CreatedByUserID, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}
	return &sub, nil
}

// ==== Devices ====

// CreateDevice inserts a device only when the fingerprint is unused for this
// user; the unique index on (user_id, fingerprint) closes the read-then-write
// race between concurrent registrations of the same device.
func (p *PostgresDatabase) CreateDevice(d *models.Device) error {
	query := `
		INSERT INTO devices (user_id, device_id, name, fingerprint, browser, user_agent, device_type, registered_at, last_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, fingerprint) DO NOTHING
		RETURNING device_id
	`
	var inserted string
	err := p.db.QueryRow(query,
		d.UserID, d.DeviceID, d.Name, d.Fingerprint, d.Browser, d.UserAgent, d.DeviceType,
		d.RegisteredAt, d.LastActive,
	).Scan(&inserted)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

const deviceColumns = `
	SELECT user_id, device_id, name, fingerprint, COALESCE(browser,''), COALESCE(user_agent,''),
		COALESCE(device_type,''), registered_at, last_active`

func (p *PostgresDatabase) DevicesByUser(userID string) ([]models.Device, error) {
	query := deviceColumns + ` FROM devices WHERE user_id = $1 ORDER BY last_active DESC`
	rows, err := p.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		var d models.Device
		if err := rows.Scan(&d.UserID, &d.DeviceID, &d.Name, &d.Fingerprint, &d.Browser,
			&d.UserAgent, &d.DeviceType, &d.RegisteredAt, &d.LastActive); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func (p *PostgresDatabase) DeviceByFingerprint(userID, fingerprint string) (*models.Device, error) {
	query := deviceColumns + ` FROM devices WHERE user_id = $1 AND fingerprint = $2`
	return p.queryDevice(query, userID, fingerprint)
}

func (p *PostgresDatabase) GetDevice(userID, deviceID string) (*models.Device, error) {
	query := deviceColumns + ` FROM devices WHERE user_id = $1 AND device_id = $2`
	return p.queryDevice(query, userID, deviceID)
}

func (p *PostgresDatabase) queryDevice(query string, args ...interface{}) (*models.Device, error) {
	var d models.Device
	err := p.db.QueryRow(query, args...).Scan(
		&d.UserID, &d.DeviceID, &d.Name, &d.Fingerprint, &d.Browser,
		&d.UserAgent, &d.DeviceType, &d.RegisteredAt, &d.LastActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return &d, nil
}

func (p *PostgresDatabase) TouchDevice(userID, deviceID string, lastActive time.Time) (*models.Device, error) {
	query := `
		UPDATE devices SET last_active = $3
		WHERE user_id = $1 AND device_id = $2
		RETURNING user_id, device_id, name, fingerprint, COALESCE(browser,''), COALESCE(user_agent,''),
			COALESCE(device_type,''), registered_at, last_active
	`
	var d models.Device
	err := p.db.QueryRow(query, userID, deviceID, lastActive).Scan(
		&d.UserID, &d.DeviceID, &d.Name, &d.Fingerprint, &d.Browser,
		&d.UserAgent, &d.DeviceType, &d.RegisteredAt, &d.LastActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to touch device: %w", err)
	}
	return &d, nil
}

func (p *PostgresDatabase) DeleteDevice(userID, deviceID string) error {
	res, err := p.db.Exec(`DELETE FROM devices WHERE user_id = $1 AND device_id = $2`, userID, deviceID)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresDatabase) CountDevices(userID string) (int, error) {
	var count int
	err := p.db.QueryRow(`SELECT COUNT(*) FROM devices WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count devices: %w", err)
	}
	return count, nil
}

// ==== Health ====

func (p *PostgresDatabase) HealthCheck() error {
	return p.db.Ping()
}

func (p *PostgresDatabase) Close() error {
	return p.db.Close()
}
