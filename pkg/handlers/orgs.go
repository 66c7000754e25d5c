package handlers

import (
	"net/http"

	"device-entitlement-backend/pkg/entitlement"
	"device-entitlement-backend/pkg/middleware"
	"device-entitlement-backend/pkg/models"
	"device-entitlement-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

// OrgHandler exposes the organisation lifecycle and membership management.
type OrgHandler struct {
	orgs *entitlement.OrgService
}

// NewOrgHandler creates an OrgHandler.
func NewOrgHandler(orgs *entitlement.OrgService) *OrgHandler {
	return &OrgHandler{orgs: orgs}
}

type orgRequest struct {
	Name string `json:"name"`
}

type inviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type roleRequest struct {
	Role string `json:"role"`
}

type acceptInvitationRequest struct {
	Token string `json:"token"`
}

// Create handles POST /api/organisation
func (h *OrgHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req orgRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	org, err := h.orgs.Create(user.ID, req.Name)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	utils.WriteCreatedResponse(w, org)
}

// Get handles GET /api/organisation, returning the caller's own organisation.
func (h *OrgHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	org, role, err := h.orgs.Get(user.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"organisation": org,
		"role":         role,
	})
}

// Update handles PUT /api/organisation/{org_id}
func (h *OrgHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req orgRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	org, err := h.orgs.Update(user.ID, chi.URLParam(r, "org_id"), req.Name)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, org)
}

// Delete handles DELETE /api/organisation/{org_id}
func (h *OrgHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	if err := h.orgs.Delete(user.ID, chi.URLParam(r, "org_id")); err != nil {
		writeEngineError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]string{"message": "Organisation deleted"})
}

// Members handles GET /api/organisation/{org_id}/members
func (h *OrgHandler) Members(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	members, err := h.orgs.Members(user.ID, chi.URLParam(r, "org_id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"members": members,
		"count":   len(members),
	})
}

// Invite handles POST /api/organisation/{org_id}/members/invite
func (h *OrgHandler) Invite(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req inviteRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	role := models.OrgMemberRole(req.Role)
	if req.Role == "" {
		role = models.RoleMember
	}

	inv, err := h.orgs.Invite(user.ID, chi.URLParam(r, "org_id"), req.Email, role)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	utils.WriteCreatedResponse(w, inv)
}

// UpdateMemberRole handles PUT /api/organisation/{org_id}/members/{member_id}
func (h *OrgHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req roleRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	m, err := h.orgs.UpdateMemberRole(user.ID, chi.URLParam(r, "org_id"),
		chi.URLParam(r, "member_id"), models.OrgMemberRole(req.Role))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, m)
}

// RemoveMember handles DELETE /api/organisation/{org_id}/members/{member_id}
func (h *OrgHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	if err := h.orgs.RemoveMember(user.ID, chi.URLParam(r, "org_id"), chi.URLParam(r, "member_id")); err != nil {
		writeEngineError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]string{"message": "Member removed"})
}

// Leave handles POST /api/organisation/leave
func (h *OrgHandler) Leave(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	if err := h.orgs.Leave(user.ID); err != nil {
		writeEngineError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]string{"message": "Left organisation"})
}

// AcceptInvitation handles POST /api/organisation/invitations/accept
func (h *OrgHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req acceptInvitationRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	m, err := h.orgs.AcceptInvitation(user.ID, req.Token)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, m)
}
