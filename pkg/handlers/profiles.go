package handlers

import (
	"errors"
	"net/http"

	"device-entitlement-backend/pkg/database"
	"device-entitlement-backend/pkg/middleware"
	"device-entitlement-backend/pkg/models"
	"device-entitlement-backend/pkg/utils"
)

// ProfileHandler exposes the caller's own profile.
type ProfileHandler struct {
	db database.DatabaseInterface
}

// NewProfileHandler creates a ProfileHandler.
func NewProfileHandler(db database.DatabaseInterface) *ProfileHandler {
	return &ProfileHandler{db: db}
}

type createProfileRequest struct {
	DisplayName string  `json:"display_name"`
	Bio         *string `json:"bio"`
	Phone       *string `json:"phone"`
	Company     *string `json:"company"`
	Address     *string `json:"address"`
	City        *string `json:"city"`
	State       *string `json:"state"`
	Country     *string `json:"country"`
}

// Create handles POST /api/profile
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req createProfileRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.DisplayName == "" {
		utils.WriteValidationErrorResponse(w, "display_name is required")
		return
	}

	profile := &models.Profile{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		Phone:       req.Phone,
		Company:     req.Company,
		Address:     req.Address,
		City:        req.City,
		State:       req.State,
		Country:     req.Country,
	}
	if err := h.db.CreateProfile(profile); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			utils.WriteConflictResponse(w, "Profile already exists")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to create profile")
		return
	}
	utils.WriteCreatedResponse(w, profile)
}

// Get handles GET /api/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	profile, err := h.db.GetProfile(user.ID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Profile not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to load profile")
		return
	}
	utils.WriteSuccessResponse(w, profile)
}

// Update handles PUT /api/profile with a partial patch; only provided
// fields change.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var patch map[string]interface{}
	if err := utils.ParseJSONBody(r, &patch); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if len(patch) == 0 {
		utils.WriteValidationErrorResponse(w, "No fields to update")
		return
	}

	profile, err := h.db.UpdateProfile(user.ID, patch)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Profile not found")
			return
		}
		utils.WriteBadRequestResponse(w, err.Error())
		return
	}
	utils.WriteSuccessResponse(w, profile)
}
