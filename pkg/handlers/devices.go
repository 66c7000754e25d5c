package handlers

import (
	"net/http"

	"device-entitlement-backend/pkg/entitlement"
	"device-entitlement-backend/pkg/middleware"
	"device-entitlement-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

// DeviceHandler exposes device registration and lifecycle.
type DeviceHandler struct {
	registry *entitlement.Registry
}

// NewDeviceHandler creates a DeviceHandler.
func NewDeviceHandler(registry *entitlement.Registry) *DeviceHandler {
	return &DeviceHandler{registry: registry}
}

type registerDeviceRequest struct {
	Name        string `json:"name"`
	Fingerprint string `json:"fingerprint"`
	Browser     string `json:"browser"`
	UserAgent   string `json:"user_agent"`
	DeviceType  string `json:"device_type"`
}

// Register handles POST /api/devices
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req registerDeviceRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	device, err := h.registry.Register(user.ID, entitlement.RegisterParams{
		Name:        req.Name,
		Fingerprint: req.Fingerprint,
		Browser:     req.Browser,
		UserAgent:   req.UserAgent,
		DeviceType:  req.DeviceType,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	utils.WriteCreatedResponse(w, device)
}

// List handles GET /api/devices
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	devices, limits, err := h.registry.List(user.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"devices": devices,
		"count":   len(devices),
		"limits":  limits,
	})
}

// Heartbeat handles POST /api/devices/{device_id}/heartbeat
func (h *DeviceHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	device, err := h.registry.Heartbeat(user.ID, chi.URLParam(r, "device_id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, device)
}

// Remove handles DELETE /api/devices/{device_id}
func (h *DeviceHandler) Remove(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	if err := h.registry.Remove(user.ID, chi.URLParam(r, "device_id")); err != nil {
		writeEngineError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]string{"message": "Device removed"})
}
