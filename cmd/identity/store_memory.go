package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"bloggers/cmd/internal/paging"
)

// MemoryStore keeps users in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]User)}
}

var userComparators = paging.Comparators[User]{
	"createdAt": func(a, b User) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"login":     paging.Compare(func(u User) string { return u.Login }),
	"email":     paging.Compare(func(u User) string { return u.Email }),
}

func (s *MemoryStore) Insert(ctx context.Context, u User) error {
	const op = "identity.MemoryStore.Insert"
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if NormalizeLogin(existing.Login) == NormalizeLogin(u.Login) {
			return ConflictError{Op: op, Field: "login"}
		}
		if existing.Email == u.Email {
			return ConflictError{Op: op, Field: "email"}
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) ByID(ctx context.Context, id string) (User, error) {
	return s.find(ctx, "identity.MemoryStore.ByID", func(u User) bool { return u.ID == id })
}

func (s *MemoryStore) ByLoginOrEmail(ctx context.Context, v string) (User, error) {
	login, email := NormalizeLogin(v), NormalizeEmail(v)
	return s.find(ctx, "identity.MemoryStore.ByLoginOrEmail", func(u User) bool {
		return NormalizeLogin(u.Login) == login || u.Email == email
	})
}

func (s *MemoryStore) ByEmail(ctx context.Context, email string) (User, error) {
	return s.find(ctx, "identity.MemoryStore.ByEmail", func(u User) bool { return u.Email == email })
}

func (s *MemoryStore) ByConfirmationCode(ctx context.Context, code string) (User, error) {
	return s.find(ctx, "identity.MemoryStore.ByConfirmationCode", func(u User) bool {
		return code != "" && u.Confirmation.Value == code
	})
}

func (s *MemoryStore) ByRecoveryCode(ctx context.Context, code string) (User, error) {
	return s.find(ctx, "identity.MemoryStore.ByRecoveryCode", func(u User) bool {
		return code != "" && u.Recovery.Value == code
	})
}

func (s *MemoryStore) find(ctx context.Context, op string, match func(User) bool) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.DeletedAt == nil && match(u) {
			return u, nil
		}
	}
	return User{}, NotFoundError{Op: op}
}

func (s *MemoryStore) MarkConfirmed(ctx context.Context, id, code string) error {
	return s.update(ctx, "identity.MemoryStore.MarkConfirmed", id, func(u *User) bool {
		if u.EmailConfirmed || u.Confirmation.Value != code {
			return false
		}
		u.EmailConfirmed = true
		return true
	})
}

func (s *MemoryStore) SetConfirmation(ctx context.Context, id string, c Code) error {
	return s.update(ctx, "identity.MemoryStore.SetConfirmation", id, func(u *User) bool {
		u.Confirmation = c
		return true
	})
}

func (s *MemoryStore) SetRecovery(ctx context.Context, id string, c Code) error {
	return s.update(ctx, "identity.MemoryStore.SetRecovery", id, func(u *User) bool {
		u.Recovery = c
		return true
	})
}

func (s *MemoryStore) SetPassword(ctx context.Context, id, hash string) error {
	return s.update(ctx, "identity.MemoryStore.SetPassword", id, func(u *User) bool {
		u.PasswordHash = hash
		u.Recovery = Code{}
		return true
	})
}

func (s *MemoryStore) SoftDelete(ctx context.Context, id string, now time.Time) error {
	return s.update(ctx, "identity.MemoryStore.SoftDelete", id, func(u *User) bool {
		u.DeletedAt = &now
		return true
	})
}

// update applies fn to a live user; fn returning false reports not found.
func (s *MemoryStore) update(ctx context.Context, op, id string, fn func(*User) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil || !fn(&u) {
		return NotFoundError{Op: op, Key: id}
	}
	s.users[id] = u
	return nil
}

func (s *MemoryStore) List(ctx context.Context, f ListFilter, q paging.Query) ([]User, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	loginTerm := strings.ToLower(strings.TrimSpace(f.SearchLogin))
	emailTerm := strings.ToLower(strings.TrimSpace(f.SearchEmail))

	s.mu.RLock()
	matched := make([]User, 0, len(s.users))
	for _, u := range s.users {
		if u.DeletedAt != nil {
			continue
		}
		if loginTerm == "" && emailTerm == "" {
			matched = append(matched, u)
			continue
		}
		if (loginTerm != "" && strings.Contains(strings.ToLower(u.Login), loginTerm)) ||
			(emailTerm != "" && strings.Contains(u.Email, emailTerm)) {
			matched = append(matched, u)
		}
	}
	s.mu.RUnlock()

	items, total := paging.Slice(matched, q, userComparators)
	return items, total, nil
}

func (s *MemoryStore) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.users = make(map[string]User)
	s.mu.Unlock()
	return nil
}

var _ Store = (*MemoryStore)(nil)
