package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"bloggers/cmd/identity/ids"
	"bloggers/cmd/security/token"
)

// Tokens is satisfied by *token.Manager.
type Tokens interface {
	IssueAccess(userID, login string, now time.Time) (token.Signed, error)
	IssueRefresh(userID, deviceID string, issuedAt time.Time) (token.Signed, error)
	ParseRefresh(raw string) (token.RefreshClaims, error)
}

// Users resolves the current login of a user. Missing or deleted users
// yield ErrUnknownUser.
type Users interface {
	LoginByID(ctx context.Context, userID string) (string, error)
}

// Principal is an authenticated user.
type Principal struct {
	UserID string
	Login  string
}

// Device describes the client that logs in.
type Device struct {
	IP    string
	Title string
}

// Issued is the result of a login or a refresh.
type Issued struct {
	DeviceID     string
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshIat   time.Time
	RefreshExp   time.Time
}

// Service implements the session lifecycle: login, refresh rotation,
// logout and device revocation.
type Service struct {
	cfg    Config
	store  Store
	tokens Tokens
	users  Users
	log    *slog.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func NewService(cfg Config, store Store, tokens Tokens, users Users, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil || tokens == nil || users == nil {
		return nil, fmt.Errorf("%w: store, tokens and users are required", ErrConfig)
	}
	s := &Service{
		cfg:    cfg,
		store:  store,
		tokens: tokens,
		users:  users,
		log:    slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// nextIssuedAt returns the iat for a device's next refresh token: now in
// whole seconds, but always strictly after the previous iat.
func nextIssuedAt(now, prev time.Time) time.Time {
	next := now.UTC().Truncate(time.Second)
	if !next.After(prev) {
		next = prev.UTC().Truncate(time.Second).Add(time.Second)
	}
	return next
}

func (s *Service) title(raw string) string {
	t := strings.TrimSpace(raw)
	if t == "" {
		return s.cfg.UnknownTitle
	}
	if utf8.RuneCountInString(t) > s.cfg.TitleMaxLen {
		t = string([]rune(t)[:s.cfg.TitleMaxLen])
	}
	return t
}

// Login opens a session on a new device.
func (s *Service) Login(ctx context.Context, p Principal, dev Device) (Issued, error) {
	now := s.now().UTC()

	deviceID, err := ids.NewULID(now)
	if err != nil {
		return Issued{}, err
	}

	refresh, err := s.tokens.IssueRefresh(p.UserID, deviceID, now)
	if err != nil {
		return Issued{}, err
	}
	access, err := s.tokens.IssueAccess(p.UserID, p.Login, now)
	if err != nil {
		return Issued{}, err
	}

	err = s.store.Create(ctx, Session{
		DeviceID:       deviceID,
		UserID:         p.UserID,
		IP:             strings.TrimSpace(dev.IP),
		Title:          s.title(dev.Title),
		LastActiveDate: refresh.IssuedAt,
		ExpiresAt:      refresh.ExpiresAt,
		CreatedAt:      now,
	})
	if err != nil {
		return Issued{}, err
	}

	return Issued{
		DeviceID:     deviceID,
		AccessToken:  access.Token,
		AccessExp:    access.ExpiresAt,
		RefreshToken: refresh.Token,
		RefreshIat:   refresh.IssuedAt,
		RefreshExp:   refresh.ExpiresAt,
	}, nil
}

func (s *Service) verify(raw string) (token.RefreshClaims, error) {
	claims, err := s.tokens.ParseRefresh(raw)
	if err != nil {
		return token.RefreshClaims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

// active returns the session bound to the token's device and iat.
func (s *Service) active(ctx context.Context, claims token.RefreshClaims) (Session, error) {
	sess, err := s.store.GetActive(ctx, claims.DeviceID, claims.Issued())
	if err != nil {
		return Session{}, err
	}
	if sess.UserID != claims.UserID {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

// Refresh rotates the device's refresh token. A token is accepted once:
// presenting it again, or after logout, yields ErrSessionNotFound.
func (s *Service) Refresh(ctx context.Context, raw string) (Issued, error) {
	claims, err := s.verify(raw)
	if err != nil {
		return Issued{}, err
	}
	sess, err := s.active(ctx, claims)
	if err != nil {
		return Issued{}, err
	}

	login, err := s.users.LoginByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUnknownUser) {
			if derr := s.store.Delete(ctx, sess.DeviceID); derr != nil && !errors.Is(derr, ErrSessionNotFound) {
				s.log.Warn("session.refresh.cleanup.fail", "device_id", sess.DeviceID, "err", derr)
			}
			return Issued{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
		return Issued{}, err
	}

	now := s.now().UTC()
	refresh, err := s.tokens.IssueRefresh(claims.UserID, sess.DeviceID, nextIssuedAt(now, sess.LastActiveDate))
	if err != nil {
		return Issued{}, err
	}
	access, err := s.tokens.IssueAccess(claims.UserID, login, now)
	if err != nil {
		return Issued{}, err
	}

	if err := s.store.Rotate(ctx, sess.DeviceID, sess.LastActiveDate, refresh.IssuedAt, refresh.ExpiresAt); err != nil {
		return Issued{}, err
	}

	return Issued{
		DeviceID:     sess.DeviceID,
		AccessToken:  access.Token,
		AccessExp:    access.ExpiresAt,
		RefreshToken: refresh.Token,
		RefreshIat:   refresh.IssuedAt,
		RefreshExp:   refresh.ExpiresAt,
	}, nil
}

// Logout ends the session the refresh token belongs to.
func (s *Service) Logout(ctx context.Context, raw string) (Session, error) {
	claims, err := s.verify(raw)
	if err != nil {
		return Session{}, err
	}
	sess, err := s.active(ctx, claims)
	if err != nil {
		return Session{}, err
	}
	if err := s.store.DeleteActive(ctx, sess.DeviceID, sess.LastActiveDate); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Authenticate resolves a refresh token to its live session without rotating it.
func (s *Service) Authenticate(ctx context.Context, raw string) (Session, error) {
	claims, err := s.verify(raw)
	if err != nil {
		return Session{}, err
	}
	return s.active(ctx, claims)
}

// Devices lists the user's unexpired sessions.
func (s *Service) Devices(ctx context.Context, userID string) ([]Session, error) {
	return s.store.ListByUser(ctx, userID, s.now().UTC())
}

// RevokeOthers ends every session of userID except currentDeviceID.
func (s *Service) RevokeOthers(ctx context.Context, userID, currentDeviceID string) (int64, error) {
	return s.store.DeleteOthers(ctx, userID, currentDeviceID)
}

// RevokeDevice ends one session of userID. ErrSessionNotFound when the
// device is unknown, ErrNotOwner when it belongs to someone else.
func (s *Service) RevokeDevice(ctx context.Context, userID, deviceID string) error {
	sess, err := s.store.Get(ctx, deviceID)
	if err != nil {
		return err
	}
	if sess.UserID != userID {
		return ErrNotOwner
	}
	return s.store.Delete(ctx, deviceID)
}

// Wipe deletes every session.
func (s *Service) Wipe(ctx context.Context) error {
	return s.store.DeleteAll(ctx)
}
