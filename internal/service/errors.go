package service

import (
	"fmt"

	"notesync/internal/domain"
)

var (
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	ErrSessionRevoked     = fmt.Errorf("session expired or revoked: %w", domain.ErrUnauthorized)
	ErrEmailTaken         = fmt.Errorf("email already registered: %w", domain.ErrAlreadyExists)
	ErrUsernameTaken      = fmt.Errorf("username already taken: %w", domain.ErrAlreadyExists)
)
