package entitlement

import (
	"errors"
	"fmt"

	"device-entitlement-backend/pkg/database"
	"device-entitlement-backend/pkg/models"

	"github.com/sirupsen/logrus"
)

// Directory answers membership questions: which organisation a user belongs
// to and who the members of an organisation are. It is read-only; membership
// mutations go through OrgService.
type Directory struct {
	store Store
	log   *logrus.Entry
}

// NewDirectory creates a Directory over store.
func NewDirectory(store Store) *Directory {
	return &Directory{
		store: store,
		log:   logrus.WithField("component", "directory"),
	}
}

// MembershipOf returns the user's membership, or a NotFoundError when the
// user belongs to no organisation. A user holds at most one membership; if
// the index ever returns more (a data anomaly the conditional insert should
// prevent), the oldest row wins and the anomaly is logged, not fatal.
func (d *Directory) MembershipOf(userID string) (*models.OrganisationMembership, error) {
	memberships, err := d.store.MembershipsByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("lookup membership for user %s: %w", userID, err)
	}
	if len(memberships) == 0 {
		return nil, &NotFoundError{Resource: "membership", Reason: "Not a member of any organisation"}
	}
	if len(memberships) > 1 {
		d.log.WithFields(logrus.Fields{
			"user_id": userID,
			"count":   len(memberships),
		}).Warn("user has multiple memberships; using the oldest")
	}
	return &memberships[0], nil
}

// OrganisationOf returns the id of the user's organisation, or "" with a
// NotFoundError when there is none.
func (d *Directory) OrganisationOf(userID string) (string, error) {
	m, err := d.MembershipOf(userID)
	if err != nil {
		return "", err
	}
	return m.OrganisationID, nil
}

// MembersOf lists an organisation's memberships ordered owner first, then
// admins, then members, with joined_at ascending inside each role.
func (d *Directory) MembersOf(orgID string) ([]models.OrganisationMembership, error) {
	members, err := d.store.MembersOf(orgID)
	if err != nil {
		return nil, fmt.Errorf("list members of organisation %s: %w", orgID, err)
	}
	return members, nil
}

// memberInfo joins one membership with its profile for display; a missing
// profile degrades to placeholder fields rather than failing the listing.
func (d *Directory) memberInfo(m models.OrganisationMembership) models.MemberInfo {
	info := models.MemberInfo{
		UserID:      m.UserID,
		Role:        m.Role,
		JoinedAt:    m.JoinedAt,
		DisplayName: "Unknown",
	}
	profile, err := d.store.GetProfile(m.UserID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			d.log.WithError(err).WithField("user_id", m.UserID).Warn("failed to load member profile")
		}
		return info
	}
	if profile.DisplayName != "" {
		info.DisplayName = profile.DisplayName
	}
	info.Email = profile.Email
	return info
}

// MemberInfos lists an organisation's members joined with profile data.
func (d *Directory) MemberInfos(orgID string) ([]models.MemberInfo, error) {
	members, err := d.MembersOf(orgID)
	if err != nil {
		return nil, err
	}
	infos := make([]models.MemberInfo, 0, len(members))
	for _, m := range members {
		infos = append(infos, d.memberInfo(m))
	}
	return infos, nil
}
