package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bloggers/cmd/identity/ids"
	"bloggers/cmd/internal/paging"
	"bloggers/cmd/security/password"
)

// Hasher is satisfied by password.Config.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(encodedHash, plain string) (bool, error)
	NeedsRehash(encodedHash string) bool
}

type Config struct {
	ConfirmationTTL time.Duration
	RecoveryTTL     time.Duration
	// RequireConfirmed rejects logins of users who never confirmed their email.
	RequireConfirmed bool
	// PublicBaseURL prefixes the links placed in emails.
	PublicBaseURL string
	MailTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		ConfirmationTTL: time.Hour,
		RecoveryTTL:     time.Hour,
		PublicBaseURL:   "http://localhost:8080",
		MailTimeout:     15 * time.Second,
	}
}

// Service implements account operations.
type Service struct {
	cfg    Config
	store  Store
	hasher Hasher
	mailer Mailer
	log    *slog.Logger
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash string

	mailWG sync.WaitGroup
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

func NewService(cfg Config, store Store, hasher Hasher, mailer Mailer, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		store:  store,
		hasher: hasher,
		mailer: mailer,
		log:    slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.cfg.ConfirmationTTL <= 0 {
		s.cfg.ConfirmationTTL = time.Hour
	}
	if s.cfg.RecoveryTTL <= 0 {
		s.cfg.RecoveryTTL = time.Hour
	}
	if s.cfg.MailTimeout <= 0 {
		s.cfg.MailTimeout = 15 * time.Second
	}
	return s
}

type RegisterInput struct {
	Login    string
	Email    string
	Password string
}

// Register stores an unconfirmed user and mails the confirmation code.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	const op = "identity.Register"
	now := s.now().UTC()

	u, err := s.newUser(op, in, now)
	if err != nil {
		return User{}, err
	}
	u.Confirmation = s.newCode(now, s.cfg.ConfirmationTTL)

	if err := s.store.Insert(ctx, u); err != nil {
		return User{}, err
	}

	s.sendAsync(confirmationMessage(s.cfg.PublicBaseURL, u.Email, u.Confirmation.Value))
	return u, nil
}

// Create stores an already confirmed user (admin path).
func (s *Service) Create(ctx context.Context, in RegisterInput) (User, error) {
	const op = "identity.Create"
	now := s.now().UTC()

	u, err := s.newUser(op, in, now)
	if err != nil {
		return User{}, err
	}
	u.EmailConfirmed = true

	if err := s.store.Insert(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Service) newUser(op string, in RegisterInput, now time.Time) (User, error) {
	login := strings.TrimSpace(in.Login)
	email := NormalizeEmail(in.Email)
	if login == "" {
		return User{}, invalid(op, "login", "login is required")
	}
	if email == "" {
		return User{}, invalid(op, "email", "email is required")
	}

	hash, err := s.hash(op, "password", in.Password)
	if err != nil {
		return User{}, err
	}

	return User{
		ID:           ids.NewObjectID(),
		Login:        login,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
	}, nil
}

func (s *Service) hash(op, field, plain string) (string, error) {
	h, err := s.hasher.Hash(plain)
	switch {
	case err == nil:
		return h, nil
	case errors.Is(err, password.ErrPasswordTooShort),
		errors.Is(err, password.ErrPasswordTooLong),
		errors.Is(err, password.ErrWeakPassword):
		return "", invalid(op, field, err.Error())
	default:
		return "", err
	}
}

func (s *Service) newCode(now time.Time, ttl time.Duration) Code {
	return Code{Value: uuid.NewString(), ExpiresAt: now.Add(ttl)}
}

// Confirm marks the email behind code as confirmed.
func (s *Service) Confirm(ctx context.Context, code string) error {
	const op = "identity.Confirm"
	code = strings.TrimSpace(code)
	if code == "" {
		return invalid(op, "code", "code is required")
	}

	u, err := s.store.ByConfirmationCode(ctx, code)
	if err != nil {
		if IsNotFound(err) {
			return invalid(op, "code", "code is incorrect")
		}
		return err
	}
	if u.EmailConfirmed {
		return invalid(op, "code", "email is already confirmed")
	}
	if !u.Confirmation.Valid(code, s.now()) {
		return invalid(op, "code", "code is expired")
	}

	if err := s.store.MarkConfirmed(ctx, u.ID, code); err != nil {
		if IsNotFound(err) {
			return invalid(op, "code", "email is already confirmed")
		}
		return err
	}
	return nil
}

// ResendConfirmation issues a fresh confirmation code and mails it.
func (s *Service) ResendConfirmation(ctx context.Context, email string) error {
	const op = "identity.ResendConfirmation"

	u, err := s.store.ByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if IsNotFound(err) {
			return invalid(op, "email", "user with this email does not exist")
		}
		return err
	}
	if u.EmailConfirmed {
		return invalid(op, "email", "email is already confirmed")
	}

	c := s.newCode(s.now().UTC(), s.cfg.ConfirmationTTL)
	if err := s.store.SetConfirmation(ctx, u.ID, c); err != nil {
		return err
	}

	s.sendAsync(confirmationMessage(s.cfg.PublicBaseURL, u.Email, c.Value))
	return nil
}

// RecoverPassword mails a recovery code when the email belongs to a user.
// Unknown emails succeed silently.
func (s *Service) RecoverPassword(ctx context.Context, email string) error {
	u, err := s.store.ByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if IsNotFound(err) {
			s.log.Debug("identity.recovery.unknown_email")
			return nil
		}
		return err
	}

	c := s.newCode(s.now().UTC(), s.cfg.RecoveryTTL)
	if err := s.store.SetRecovery(ctx, u.ID, c); err != nil {
		return err
	}

	s.sendAsync(recoveryMessage(s.cfg.PublicBaseURL, u.Email, c.Value))
	return nil
}

// SetNewPassword replaces the password of the user holding recoveryCode.
func (s *Service) SetNewPassword(ctx context.Context, newPassword, recoveryCode string) error {
	const op = "identity.SetNewPassword"
	recoveryCode = strings.TrimSpace(recoveryCode)
	if recoveryCode == "" {
		return invalid(op, "recoveryCode", "recovery code is incorrect")
	}

	u, err := s.store.ByRecoveryCode(ctx, recoveryCode)
	if err != nil {
		if IsNotFound(err) {
			return invalid(op, "recoveryCode", "recovery code is incorrect")
		}
		return err
	}
	if !u.Recovery.Valid(recoveryCode, s.now()) {
		return invalid(op, "recoveryCode", "recovery code is expired")
	}

	hash, err := s.hash(op, "newPassword", newPassword)
	if err != nil {
		return err
	}
	return s.store.SetPassword(ctx, u.ID, hash)
}

// CheckCredentials resolves loginOrEmail and verifies the password.
// Unknown users and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) CheckCredentials(ctx context.Context, loginOrEmail, plain string) (User, error) {
	const op = "identity.CheckCredentials"

	u, err := s.store.ByLoginOrEmail(ctx, strings.TrimSpace(loginOrEmail))
	if err != nil {
		if !IsNotFound(err) {
			return User{}, err
		}
		// Spend comparable time on unknown users.
		_, _ = s.hasher.Verify(s.dummy(), plain)
		return User{}, OpError{Op: op, Kind: ErrInvalidCredentials}
	}

	ok, err := s.hasher.Verify(u.PasswordHash, plain)
	if err != nil {
		s.log.Warn("identity.credentials.bad_hash", "user_id", u.ID, "err", err)
		return User{}, OpError{Op: op, Kind: ErrInvalidCredentials}
	}
	if !ok {
		return User{}, OpError{Op: op, Kind: ErrInvalidCredentials}
	}
	if s.cfg.RequireConfirmed && !u.EmailConfirmed {
		return User{}, OpError{Op: op, Kind: ErrNotConfirmed}
	}

	if s.hasher.NeedsRehash(u.PasswordHash) {
		s.rehash(ctx, u, plain)
	}
	return u, nil
}

func (s *Service) rehash(ctx context.Context, u User, plain string) {
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		// Legacy passwords may sit outside the current policy; keep the old hash.
		s.log.Debug("identity.rehash.skip", "user_id", u.ID, "err", err)
		return
	}
	if err := s.store.SetPassword(ctx, u.ID, hash); err != nil {
		s.log.Warn("identity.rehash.fail", "user_id", u.ID, "err", err)
	}
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("dummy-password")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

// Get returns a live user by id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.store.ByID(ctx, id)
}

// LoginByID returns the current login of a live user.
func (s *Service) LoginByID(ctx context.Context, id string) (string, error) {
	u, err := s.store.ByID(ctx, id)
	if err != nil {
		return "", err
	}
	return u.Login, nil
}

func (s *Service) List(ctx context.Context, f ListFilter, q paging.Query) (paging.Page[User], error) {
	items, total, err := s.store.List(ctx, f, q)
	if err != nil {
		return paging.Page[User]{}, err
	}
	return paging.NewPage(q, total, items), nil
}

// Delete soft-deletes a user.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.SoftDelete(ctx, id, s.now().UTC())
}

// Wipe removes every user.
func (s *Service) Wipe(ctx context.Context) error {
	return s.store.DeleteAll(ctx)
}

// Wait blocks until queued mail deliveries finish.
func (s *Service) Wait() { s.mailWG.Wait() }

func (s *Service) sendAsync(m Message) {
	if s.mailer == nil {
		return
	}
	s.mailWG.Add(1)
	go func() {
		defer s.mailWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.MailTimeout)
		defer cancel()

		if err := s.mailer.Send(ctx, m); err != nil {
			s.log.Error("identity.mail.send.fail", "subject", m.Subject, "err", err)
			return
		}
		s.log.Debug("identity.mail.sent", "subject", m.Subject)
	}()
}
