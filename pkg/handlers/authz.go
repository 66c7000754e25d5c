package handlers

import (
	"net/http"

	"device-entitlement-backend/pkg/entitlement"
	"device-entitlement-backend/pkg/middleware"
	"device-entitlement-backend/pkg/utils"
)

// AuthzHandler exposes authorization pre-flight checks so clients can hide
// actions the caller would be denied.
type AuthzHandler struct {
	guard *entitlement.Guard
}

// NewAuthzHandler creates an AuthzHandler.
func NewAuthzHandler(guard *entitlement.Guard) *AuthzHandler {
	return &AuthzHandler{guard: guard}
}

type authzCheckRequest struct {
	Action         string `json:"action"`
	OrganisationID string `json:"organisation_id"`
}

// Check handles POST /api/authz/check. The response always carries HTTP 200;
// the verdict and denial reason live in the payload so a denial is not
// mistaken for a transport failure.
func (h *AuthzHandler) Check(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req authzCheckRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.Action == "" {
		utils.WriteValidationErrorResponse(w, "action is required")
		return
	}

	action := entitlement.Action(req.Action)
	var m interface{}
	var cerr error
	if req.OrganisationID != "" {
		m, cerr = h.guard.Authorize(user.ID, req.OrganisationID, action)
	} else {
		m, cerr = h.guard.AuthorizeAny(user.ID, action)
	}
	if cerr != nil {
		utils.WriteSuccessResponse(w, map[string]interface{}{
			"allowed": false,
			"reason":  cerr.Error(),
		})
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"allowed":    true,
		"membership": m,
	})
}
