package session

import "errors"

var (
	// ErrInvalidToken is returned when a refresh token fails verification
	// (bad signature, expired, malformed, or bound to a vanished user).
	ErrInvalidToken = errors.New("invalid token")

	// ErrSessionNotFound is returned when no session matches the device id
	// (and, where required, the token's iat).
	ErrSessionNotFound = errors.New("session not found")

	// ErrNotOwner is returned when a user targets another user's device.
	ErrNotOwner = errors.New("session belongs to another user")

	// ErrUnknownUser is what Users implementations return for missing or deleted users.
	ErrUnknownUser = errors.New("unknown user")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
