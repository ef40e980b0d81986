package domain

import "errors"

var (
	ErrSessionExpired     = errors.New("session expired")
	ErrNoResults          = errors.New("no results")
	ErrTerminalEscalation = errors.New("no deeper source available")
	ErrEndOfResults       = errors.New("no more results")
	ErrReleaseNotFound    = errors.New("release not found")
	ErrUnknownEngine      = errors.New("unknown engine")
	ErrInvalidQuery       = errors.New("query is required")
	ErrOptionOutOfRange   = errors.New("option index out of range")
)
