package authapi

import (
	"context"
	"fmt"

	"bloggers/cmd/identity"
	"bloggers/cmd/internal/auth/session"
)

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Login:     u.Login,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.UTC(),
	}
}

func toDeviceResponse(s session.Session) deviceResponse {
	return deviceResponse{
		IP:             s.IP,
		Title:          s.Title,
		LastActiveDate: s.LastActiveDate.UTC(),
		DeviceID:       s.DeviceID,
	}
}

// SessionUsers adapts the identity service to session.Users: missing or
// deleted users become session.ErrUnknownUser.
func SessionUsers(ids *identity.Service) session.Users {
	return sessionUsers{ids: ids}
}

type sessionUsers struct {
	ids *identity.Service
}

func (u sessionUsers) LoginByID(ctx context.Context, userID string) (string, error) {
	login, err := u.ids.LoginByID(ctx, userID)
	if identity.IsNotFound(err) {
		return "", fmt.Errorf("%w: %w", session.ErrUnknownUser, err)
	}
	return login, err
}
