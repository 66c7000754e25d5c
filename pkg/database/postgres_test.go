package database

import (
	"database/sql"
	"testing"
	"time"

	"device-entitlement-backend/pkg/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*PostgresDatabase, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &PostgresDatabase{db: db}, mock
}

func TestCreateMembershipConflictReturnsDuplicate(t *testing.T) {
	pg, mock := newMockDB(t)

	// ON CONFLICT DO NOTHING yields no RETURNING row on a duplicate
	mock.ExpectQuery(`INSERT INTO org_members`).
		WithArgs("org-1", "user-1", "member").
		WillReturnError(sql.ErrNoRows)

	err := pg.CreateMembership(&models.OrganisationMembership{
		OrganisationID: "org-1",
		UserID:         "user-1",
		Role:           models.RoleMember,
	})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMembership(t *testing.T) {
	pg, mock := newMockDB(t)

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO org_members`).
		WithArgs("org-1", "user-1", "owner").
		WillReturnRows(sqlmock.NewRows([]string{"joined_at", "updated_at"}).AddRow(now, now))

	m := &models.OrganisationMembership{OrganisationID: "org-1", UserID: "user-1", Role: models.RoleOwner}
	require.NoError(t, pg.CreateMembership(m))
	assert.Equal(t, now, m.JoinedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfileNotFound(t *testing.T) {
	pg, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT .* FROM profiles`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := pg.GetProfile("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDeviceConflictReturnsDuplicate(t *testing.T) {
	pg, mock := newMockDB(t)

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO devices`).
		WillReturnError(sql.ErrNoRows)

	err := pg.CreateDevice(&models.Device{
		UserID: "user-1", DeviceID: "d1", Name: "MacBook", Fingerprint: "fp-1",
		RegisteredAt: now, LastActive: now,
	})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMembershipMissingReturnsNotFound(t *testing.T) {
	pg, mock := newMockDB(t)

	mock.ExpectExec(`DELETE FROM org_members`).
		WithArgs("org-1", "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := pg.DeleteMembership("org-1", "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProfileRejectsUnknownColumn(t *testing.T) {
	pg, _ := newMockDB(t)

	_, err := pg.UpdateProfile("user-1", map[string]interface{}{
		"display_name": "ok",
		"role":         "owner", // not a profile column
	})
	assert.Error(t, err)
}

func TestSubscriptionsByOwner(t *testing.T) {
	pg, mock := newMockDB(t)

	cols := []string{
		"subscription_id", "owner_id", "owner_type", "plan", "billing_period", "status",
		"current_period_start", "current_period_end", "cancel_at_period_end", "canceled_at", "trial_end",
		"user_limit", "device_limit", "stripe_subscription_id", "stripe_customer_id",
		"created_by_user_id", "created_at", "updated_at",
	}
	now := time.Now()
	mock.ExpectQuery(`SELECT .* FROM subscriptions WHERE owner_id`).
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("sub-2", "org-1", "organisation", "business", "monthly", "active",
				nil, nil, false, nil, nil, 10, 30, "stripe-2", "cus-1", "user-1", now, now).
			AddRow("sub-1", "org-1", "organisation", "team", "monthly", "canceled",
				nil, nil, false, nil, nil, 3, 10, "stripe-1", "cus-1", "user-1", now.Add(-time.Hour), now))

	subs, err := pg.SubscriptionsByOwner("org-1")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "sub-2", subs[0].ID)
	assert.Equal(t, models.StatusActive, subs[0].Status)
	require.NotNil(t, subs[0].DeviceLimit)
	assert.Equal(t, 30, *subs[0].DeviceLimit)
	assert.NoError(t, mock.ExpectationsWereMet())
}
