package handler

import (
	"context"
	"net/http"

	"notesync/internal/domain"
	"notesync/internal/middleware"
	"notesync/pkg/response"

	"github.com/gorilla/mux"
)

type DeviceService interface {
	List(ctx context.Context, identity domain.Identity) ([]domain.DeviceSession, error)
	Revoke(ctx context.Context, identity domain.Identity, sessionID string) error
}

type DeviceHandler struct {
	service DeviceService
}

func NewDeviceHandler(service DeviceService) *DeviceHandler {
	return &DeviceHandler{service: service}
}

func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r)
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	devices, err := h.service.List(r.Context(), identity)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, devices)
}

func (h *DeviceHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r)
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	sessionID := mux.Vars(r)["id"]
	if sessionID == "" {
		response.BadRequest(w, "Device ID is required")
		return
	}

	if err := h.service.Revoke(r.Context(), identity, sessionID); err != nil {
		writeError(w, err)
		return
	}

	response.Message(w, "Device signed out")
}
