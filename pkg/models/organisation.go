package models

import "time"

// Organisation is a shared workspace owned by the user who created it.
// owner_id never changes; there is no ownership transfer operation, so an
// owner's only way out is deleting the organisation.
type Organisation struct {
	ID        string    `json:"organisation_id" db:"organisation_id"`
	Name      string    `json:"name" db:"name"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type OrgMemberRole string

const (
	RoleOwner  OrgMemberRole = "owner"
	RoleAdmin  OrgMemberRole = "admin"
	RoleMember OrgMemberRole = "member"
)

// Priority returns the display/sort priority of a role, owner first.
func (r OrgMemberRole) Priority() int {
	switch r {
	case RoleOwner:
		return 0
	case RoleAdmin:
		return 1
	case RoleMember:
		return 2
	default:
		return 3
	}
}

// OrganisationMembership relates one user to at most one organisation.
type OrganisationMembership struct {
	OrganisationID string        `json:"organisation_id" db:"organisation_id"`
	UserID         string        `json:"user_id" db:"user_id"`
	Role           OrgMemberRole `json:"role" db:"role"`
	JoinedAt       time.Time     `json:"joined_at" db:"joined_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// MemberInfo is a membership joined with profile data for member listings.
type MemberInfo struct {
	UserID      string        `json:"user_id"`
	Role        OrgMemberRole `json:"role"`
	JoinedAt    time.Time     `json:"joined_at"`
	DisplayName string        `json:"display_name"`
	Email       string        `json:"email"`
}
