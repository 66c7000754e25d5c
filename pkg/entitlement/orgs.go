package entitlement

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"device-entitlement-backend/pkg/database"
	"device-entitlement-backend/pkg/models"
	"device-entitlement-backend/pkg/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// invitationTTL is how long an invitation stays acceptable.
const invitationTTL = 7 * 24 * time.Hour

// OrgService carries the organisation lifecycle: create, rename, delete,
// membership management and the invitation flow. Every mutation runs through
// the Guard's role rules first.
type OrgService struct {
	store     Store
	directory *Directory
	guard     *Guard
	log       *logrus.Entry
}

// NewOrgService creates an OrgService over store.
func NewOrgService(store Store, directory *Directory, guard *Guard) *OrgService {
	return &OrgService{
		store:     store,
		directory: directory,
		guard:     guard,
		log:       logrus.WithField("component", "orgs"),
	}
}

func validateOrgName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len(name) < 2 || len(name) > 100 {
		return "", &ValidationError{Field: "name", Reason: "Name must be between 2 and 100 characters"}
	}
	return name, nil
}

// Create creates an organisation owned by userID and enrolls the creator as
// its owner. The membership insert is conditional on the user holding no
// membership anywhere; losing that race surfaces as a ConflictError and the
// freshly created organisation is rolled back.
func (s *OrgService) Create(userID, name string) (*models.Organisation, error) {
	name, err := validateOrgName(name)
	if err != nil {
		return nil, err
	}

	org := &models.Organisation{
		ID:      uuid.New().String(),
		Name:    name,
		OwnerID: userID,
	}
	if err := s.store.CreateOrganisation(org); err != nil {
		return nil, fmt.Errorf("create organisation: %w", err)
	}

	membership := &models.OrganisationMembership{
		OrganisationID: org.ID,
		UserID:         userID,
		Role:           models.RoleOwner,
	}
	if err := s.store.CreateMembership(membership); err != nil {
		if derr := s.store.DeleteOrganisation(org.ID); derr != nil {
			s.log.WithError(derr).WithField("organisation_id", org.ID).
				Error("failed to roll back organisation after membership conflict")
		}
		if errors.Is(err, database.ErrDuplicate) {
			return nil, &ConflictError{Reason: "Already a member of an organisation"}
		}
		return nil, fmt.Errorf("create owner membership: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"organisation_id": org.ID,
		"owner_id":        userID,
	}).Info("organisation created")
	return org, nil
}

// Get returns the organisation userID belongs to along with their role.
func (s *OrgService) Get(userID string) (*models.Organisation, models.OrgMemberRole, error) {
	m, err := s.directory.MembershipOf(userID)
	if err != nil {
		return nil, "", err
	}
	org, err := s.store.GetOrganisation(m.OrganisationID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, "", &NotFoundError{Resource: "organisation"}
		}
		return nil, "", fmt.Errorf("get organisation %s: %w", m.OrganisationID, err)
	}
	return org, m.Role, nil
}

// Update renames the organisation. Admins and the owner may rename.
func (s *OrgService) Update(userID, orgID, name string) (*models.Organisation, error) {
	name, err := validateOrgName(name)
	if err != nil {
		return nil, err
	}
	if _, err := s.guard.Authorize(userID, orgID, ActionUpdateOrganisation); err != nil {
		return nil, err
	}
	org, err := s.store.UpdateOrganisationName(orgID, name)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Resource: "organisation"}
		}
		return nil, fmt.Errorf("update organisation %s: %w", orgID, err)
	}
	return org, nil
}

// Delete removes the organisation with all of its memberships and
// invitations. Owner only. Deletion order keeps a crash mid-way re-runnable:
// memberships first, then invitations, then the organisation row itself.
func (s *OrgService) Delete(userID, orgID string) error {
	if _, err := s.guard.Authorize(userID, orgID, ActionDeleteOrganisation); err != nil {
		return err
	}
	if err := s.store.DeleteMembershipsByOrganisation(orgID); err != nil {
		return fmt.Errorf("delete memberships of %s: %w", orgID, err)
	}
	if err := s.store.DeleteInvitationsByOrganisation(orgID); err != nil {
		return fmt.Errorf("delete invitations of %s: %w", orgID, err)
	}
	if err := s.store.DeleteOrganisation(orgID); err != nil && !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("delete organisation %s: %w", orgID, err)
	}
	s.log.WithField("organisation_id", orgID).Info("organisation deleted")
	return nil
}

// Members lists the organisation's members with profile display data.
func (s *OrgService) Members(userID, orgID string) ([]models.MemberInfo, error) {
	if _, err := s.guard.Authorize(userID, orgID, ActionViewMembers); err != nil {
		return nil, err
	}
	return s.directory.MemberInfos(orgID)
}

// Invite creates a pending invitation for email at role. At most one pending
// invitation may exist per (organisation, email); a second attempt conflicts
// rather than silently reissuing.
func (s *OrgService) Invite(userID, orgID, email string, role models.OrgMemberRole) (*models.OrganisationInvitation, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, &ValidationError{Field: "email", Reason: "A valid email address is required"}
	}

	actor, err := s.guard.Authorize(userID, orgID, ActionInviteMember)
	if err != nil {
		return nil, err
	}
	if err := CheckInvite(actor.Role, role); err != nil {
		return nil, err
	}

	if _, err := s.store.PendingInvitation(orgID, email); err == nil {
		return nil, &ConflictError{Reason: "A pending invitation already exists for this email"}
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("check pending invitation: %w", err)
	}

	token, err := utils.GenerateURLToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate invitation token: %w", err)
	}
	inv := &models.OrganisationInvitation{
		OrganisationID: orgID,
		InvitationID:   uuid.New().String(),
		Email:          email,
		Role:           role,
		Token:          token,
		InvitedBy:      userID,
		Status:         models.InvitationPending,
		ExpiresAt:      time.Now().Add(invitationTTL),
	}
	if err := s.store.CreateInvitation(inv); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, &ConflictError{Reason: "A pending invitation already exists for this email"}
		}
		return nil, fmt.Errorf("create invitation: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"organisation_id": orgID,
		"invitation_id":   inv.InvitationID,
		"role":            role,
	}).Info("invitation created")
	return inv, nil
}

// UpdateMemberRole changes a member's role. Admins may demote admins to
// member; promotion to admin is owner-only, and the owner role is immutable.
func (s *OrgService) UpdateMemberRole(userID, orgID, targetID string, role models.OrgMemberRole) (*models.OrganisationMembership, error) {
	actor, err := s.guard.Authorize(userID, orgID, ActionUpdateMemberRole)
	if err != nil {
		return nil, err
	}
	target, err := s.store.GetMembership(orgID, targetID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Resource: "member"}
		}
		return nil, fmt.Errorf("get membership of %s: %w", targetID, err)
	}
	if err := CheckRoleChange(actor.Role, target.Role, role); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateMembershipRole(orgID, targetID, role)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Resource: "member"}
		}
		return nil, fmt.Errorf("update role of %s: %w", targetID, err)
	}
	return updated, nil
}

// RemoveMember removes targetID from the organisation.
func (s *OrgService) RemoveMember(userID, orgID, targetID string) error {
	actor, err := s.guard.Authorize(userID, orgID, ActionRemoveMember)
	if err != nil {
		return err
	}
	target, err := s.store.GetMembership(orgID, targetID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return &NotFoundError{Resource: "member"}
		}
		return fmt.Errorf("get membership of %s: %w", targetID, err)
	}
	if err := CheckRemoval(actor.Role, target.Role, userID == targetID); err != nil {
		return err
	}
	if err := s.store.DeleteMembership(orgID, targetID); err != nil && !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("remove member %s: %w", targetID, err)
	}
	s.log.WithFields(logrus.Fields{
		"organisation_id": orgID,
		"member_id":       targetID,
	}).Info("member removed")
	return nil
}

// Leave removes the caller's own membership. The owner cannot leave.
func (s *OrgService) Leave(userID string) error {
	m, err := s.directory.MembershipOf(userID)
	if err != nil {
		return err
	}
	if err := CheckLeave(m.Role); err != nil {
		return err
	}
	if err := s.store.DeleteMembership(m.OrganisationID, userID); err != nil && !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("leave organisation %s: %w", m.OrganisationID, err)
	}
	return nil
}

// AcceptInvitation redeems an invitation token for userID. The invitation
// must be pending and unexpired; joining is a conditional insert, so a user
// who already belongs to an organisation gets a ConflictError and the
// invitation stays pending.
func (s *OrgService) AcceptInvitation(userID, token string) (*models.OrganisationMembership, error) {
	if token == "" {
		return nil, &ValidationError{Field: "token", Reason: "Invitation token is required"}
	}
	inv, err := s.store.InvitationByToken(token)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Resource: "invitation"}
		}
		return nil, fmt.Errorf("lookup invitation: %w", err)
	}
	if inv.Status != models.InvitationPending {
		return nil, &NotFoundError{Resource: "invitation", Reason: "Invitation is no longer valid"}
	}
	if time.Now().After(inv.ExpiresAt) {
		inv.Status = models.InvitationExpired
		if uerr := s.store.UpdateInvitation(inv); uerr != nil {
			s.log.WithError(uerr).WithField("invitation_id", inv.InvitationID).
				Warn("failed to mark invitation expired")
		}
		return nil, &NotFoundError{Resource: "invitation", Reason: "Invitation has expired"}
	}

	membership := &models.OrganisationMembership{
		OrganisationID: inv.OrganisationID,
		UserID:         userID,
		Role:           inv.Role,
	}
	if err := s.store.CreateMembership(membership); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, &ConflictError{Reason: "Already a member of an organisation"}
		}
		return nil, fmt.Errorf("join organisation %s: %w", inv.OrganisationID, err)
	}

	inv.Status = models.InvitationAccepted
	inv.AcceptedBy = &userID
	if err := s.store.UpdateInvitation(inv); err != nil {
		s.log.WithError(err).WithField("invitation_id", inv.InvitationID).
			Warn("membership created but invitation not marked accepted")
	}

	s.log.WithFields(logrus.Fields{
		"organisation_id": inv.OrganisationID,
		"user_id":         userID,
		"role":            inv.Role,
	}).Info("invitation accepted")
	return membership, nil
}
