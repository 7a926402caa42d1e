package session

import (
	"context"
	"time"
)

// Session is one logged-in device.
type Session struct {
	DeviceID string
	UserID   string
	IP       string
	Title    string
	// LastActiveDate equals the iat of the device's current refresh token.
	LastActiveDate time.Time
	ExpiresAt      time.Time
	CreatedAt      time.Time
}

// Store abstracts persistence for session state. Timestamps are compared at
// whole-second precision; callers always pass truncated values.
type Store interface {
	Create(ctx context.Context, s Session) error

	// Get loads a session by device id regardless of its iat.
	Get(ctx context.Context, deviceID string) (Session, error)

	// GetActive loads the session only if its LastActiveDate equals issuedAt.
	GetActive(ctx context.Context, deviceID string, issuedAt time.Time) (Session, error)

	// Rotate moves LastActiveDate from prev to next and sets the new expiry in
	// one conditional write. It returns ErrSessionNotFound when the session
	// no longer carries prev.
	Rotate(ctx context.Context, deviceID string, prev, next, expiresAt time.Time) error

	// DeleteActive deletes the session only if its LastActiveDate equals issuedAt.
	DeleteActive(ctx context.Context, deviceID string, issuedAt time.Time) error

	Delete(ctx context.Context, deviceID string) error

	// ListByUser returns the user's sessions that expire after now.
	ListByUser(ctx context.Context, userID string, now time.Time) ([]Session, error)

	// DeleteOthers deletes every session of userID except keepDeviceID.
	DeleteOthers(ctx context.Context, userID, keepDeviceID string) (int64, error)

	DeleteAll(ctx context.Context) error
}
