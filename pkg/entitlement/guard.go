package entitlement

import (
	"fmt"

	"device-entitlement-backend/pkg/models"
)

// Action names an operation subject to role-based authorization on an
// organisation.
type Action string

const (
	ActionViewOrganisation   Action = "view_organisation"
	ActionUpdateOrganisation Action = "update_organisation"
	ActionDeleteOrganisation Action = "delete_organisation"
	ActionViewMembers        Action = "view_members"
	ActionInviteMember       Action = "invite_member"
	ActionUpdateMemberRole   Action = "update_member_role"
	ActionRemoveMember       Action = "remove_member"
	ActionLeave              Action = "leave"
	ActionPurchase           Action = "purchase"
	ActionManageBilling      Action = "manage_billing"
)

// minRole is the minimum role each action demands. Target-sensitive rules
// (who may be demoted, who may be removed) layer on top of this floor in the
// Can* functions below.
var minRole = map[Action]models.OrgMemberRole{
	ActionViewOrganisation:   models.RoleMember,
	ActionViewMembers:        models.RoleMember,
	ActionLeave:              models.RoleMember,
	ActionUpdateOrganisation: models.RoleAdmin,
	ActionInviteMember:       models.RoleAdmin,
	ActionUpdateMemberRole:   models.RoleAdmin,
	ActionRemoveMember:       models.RoleAdmin,
	ActionPurchase:           models.RoleAdmin,
	ActionManageBilling:      models.RoleAdmin,
	ActionDeleteOrganisation: models.RoleOwner,
}

// allows reports whether role meets the floor for action. Unknown actions
// are denied.
func allows(role models.OrgMemberRole, action Action) bool {
	floor, ok := minRole[action]
	if !ok {
		return false
	}
	return role.Priority() <= floor.Priority()
}

// Guard enforces the role hierarchy over organisation operations. All rules
// are pure functions of the actor's and target's memberships; the Guard only
// adds the membership lookups.
type Guard struct {
	directory *Directory
}

// NewGuard creates a Guard resolving memberships through directory.
func NewGuard(directory *Directory) *Guard {
	return &Guard{directory: directory}
}

// Authorize checks that userID may perform action on orgID and returns the
// actor's membership on success. A user who is not a member of orgID gets a
// NotFoundError, never a ForbiddenError, so that outsiders cannot probe for
// an organisation's existence.
func (g *Guard) Authorize(userID, orgID string, action Action) (*models.OrganisationMembership, error) {
	m, err := g.directory.MembershipOf(userID)
	if err != nil {
		return nil, err
	}
	if m.OrganisationID != orgID {
		return nil, &NotFoundError{Resource: "membership", Reason: "Not a member of this organisation"}
	}
	if !allows(m.Role, action) {
		return nil, &ForbiddenError{
			Rule:   string(action),
			Reason: fmt.Sprintf("Requires %s role or higher", minRole[action]),
		}
	}
	return m, nil
}

// AuthorizeAny checks that userID may perform action on whichever
// organisation they belong to. Used where the organisation is implied by
// membership rather than named in the request.
func (g *Guard) AuthorizeAny(userID string, action Action) (*models.OrganisationMembership, error) {
	m, err := g.directory.MembershipOf(userID)
	if err != nil {
		return nil, err
	}
	if !allows(m.Role, action) {
		return nil, &ForbiddenError{
			Rule:   string(action),
			Reason: fmt.Sprintf("Requires %s role or higher", minRole[action]),
		}
	}
	return m, nil
}

// CheckInvite validates inviting a new member at inviteRole. Admins may
// invite members; only the owner may invite at the admin role.
func CheckInvite(actor models.OrgMemberRole, inviteRole models.OrgMemberRole) error {
	if inviteRole != models.RoleMember && inviteRole != models.RoleAdmin {
		return &ValidationError{Field: "role", Reason: "Role must be 'member' or 'admin'"}
	}
	if inviteRole == models.RoleAdmin && actor != models.RoleOwner {
		return &ForbiddenError{
			Rule:   string(ActionInviteMember),
			Reason: "Only the owner can invite admins",
		}
	}
	return nil
}

// CheckRoleChange validates changing target's role to newRole by actor.
// The owner role can be neither assigned nor taken away, and promotion to
// admin is the owner's prerogative.
func CheckRoleChange(actor, target models.OrgMemberRole, newRole models.OrgMemberRole) error {
	if newRole != models.RoleMember && newRole != models.RoleAdmin {
		return &ValidationError{Field: "role", Reason: "Role must be 'member' or 'admin'"}
	}
	if target == models.RoleOwner {
		return &ForbiddenError{
			Rule:   string(ActionUpdateMemberRole),
			Reason: "The owner's role cannot be changed",
		}
	}
	if newRole == models.RoleAdmin && actor != models.RoleOwner {
		return &ForbiddenError{
			Rule:   string(ActionUpdateMemberRole),
			Reason: "Only the owner can promote members to admin",
		}
	}
	return nil
}

// CheckRemoval validates actor removing target from the organisation.
// Owners cannot be removed, admins can only be removed by the owner, and
// self-removal must go through the leave operation so that the owner-leaving
// rule cannot be bypassed.
func CheckRemoval(actor, target models.OrgMemberRole, self bool) error {
	if self {
		return &ForbiddenError{
			Rule:   string(ActionRemoveMember),
			Reason: "Use the leave endpoint to remove yourself",
		}
	}
	if target == models.RoleOwner {
		return &ForbiddenError{
			Rule:   string(ActionRemoveMember),
			Reason: "The owner cannot be removed",
		}
	}
	if target == models.RoleAdmin && actor != models.RoleOwner {
		return &ForbiddenError{
			Rule:   string(ActionRemoveMember),
			Reason: "Only the owner can remove admins",
		}
	}
	return nil
}

// CheckLeave validates actor leaving their organisation. The owner cannot
// leave; deleting the organisation is the owner's exit.
func CheckLeave(actor models.OrgMemberRole) error {
	if actor == models.RoleOwner {
		return &ForbiddenError{
			Rule:   string(ActionLeave),
			Reason: "The owner cannot leave; delete the organisation instead",
		}
	}
	return nil
}
