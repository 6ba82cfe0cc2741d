package domain

import "errors"

// Sentinel errors returned by repositories and services. Handlers match them
// with errors.Is and turn them into user-facing replies.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrAlreadyAdmin      = errors.New("already an admin")
	ErrProtectedUser     = errors.New("cannot remove an admin")
	ErrAmbiguousUsername = errors.New("username matches more than one user")
)
