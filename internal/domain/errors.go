package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("note belongs to another user")
	ErrTransport     = errors.New("transport failure")
	ErrValidation    = errors.New("validation failure")
)
