package handler

import (
	"context"
	"net/http"

	"notesync/internal/domain"
	"notesync/internal/middleware"
	"notesync/pkg/response"
)

type UserService interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

type UserHandler struct {
	userService UserService
}

func NewUserHandler(userService UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, user)
}
