package entitlement

import (
	"testing"

	"device-entitlement-backend/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMembershipOf(t *testing.T) {
	store := newFakeStore()
	store.seedOrg("org-1", "owner-1")
	directory := NewDirectory(store)

	m, err := directory.MembershipOf("owner-1")
	require.NoError(t, err)
	assert.Equal(t, "org-1", m.OrganisationID)
	assert.Equal(t, models.RoleOwner, m.Role)

	_, err = directory.MembershipOf("stranger")
	assert.True(t, IsNotFound(err))
}

func TestMembershipOfAnomalyOldestWins(t *testing.T) {
	store := newFakeStore()
	// two rows for one user should be impossible, but the directory must
	// still answer deterministically if the index ever degrades
	store.seedMember("org-old", "user-1", models.RoleMember)
	store.seedMember("org-new", "user-1", models.RoleAdmin)

	m, err := NewDirectory(store).MembershipOf("user-1")
	require.NoError(t, err)
	assert.Equal(t, "org-old", m.OrganisationID)
}

func TestOrganisationOf(t *testing.T) {
	store := newFakeStore()
	store.seedOrg("org-1", "owner-1")
	directory := NewDirectory(store)

	orgID, err := directory.OrganisationOf("owner-1")
	require.NoError(t, err)
	assert.Equal(t, "org-1", orgID)

	_, err = directory.OrganisationOf("stranger")
	assert.True(t, IsNotFound(err))
}
