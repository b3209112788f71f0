package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"notesync/internal/domain"
	"notesync/internal/middleware"
	"notesync/pkg/response"

	"github.com/go-playground/validator/v10"
)

const maxSyncBodyBytes = 16 << 20

type SyncService interface {
	Sync(ctx context.Context, identity domain.Identity, req *domain.SyncRequest) (*domain.SyncResponse, error)
}

type SyncHandler struct {
	syncService SyncService
	validator   *validator.Validate
}

func NewSyncHandler(syncService SyncService) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		validator:   validator.New(),
	}
}

// Sync runs one push/pull round for the authenticated caller.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r)
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req domain.SyncRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSyncBodyBytes)).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	res, err := h.syncService.Sync(r.Context(), identity, &req)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, res)
}
