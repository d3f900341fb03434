package models

import "errors"

// Sentinel errors shared by the store, auth, ai and http layers. Match them
// with errors.Is; detail is attached with fmt.Errorf("%w: ...").
var (
	ErrValidation         = errors.New("validation error")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrUpstream           = errors.New("upstream ai failure")
)
