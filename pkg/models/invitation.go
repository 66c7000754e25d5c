package models

import "time"

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationExpired  InvitationStatus = "expired"
)

// OrganisationInvitation is an invite to join an organisation with a given
// role. At most one pending invitation may exist per (organisation, email).
type OrganisationInvitation struct {
	OrganisationID string           `json:"organisation_id" db:"organisation_id"`
	InvitationID   string           `json:"invitation_id" db:"invitation_id"`
	Email          string           `json:"email" db:"email"`
	Role           OrgMemberRole    `json:"role" db:"role"`
	Token          string           `json:"token" db:"token"`
	InvitedBy      string           `json:"invited_by" db:"invited_by"`
	Status         InvitationStatus `json:"status" db:"status"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	ExpiresAt      time.Time        `json:"expires_at" db:"expires_at"`
	AcceptedBy     *string          `json:"accepted_by,omitempty" db:"accepted_by"`
}
