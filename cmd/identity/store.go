package identity

import (
	"context"
	"time"

	"bloggers/cmd/internal/paging"
)

// Code is a one-time code with an expiry (email confirmation, password recovery).
type Code struct {
	Value     string
	ExpiresAt time.Time
}

func (c Code) Valid(value string, now time.Time) bool {
	return c.Value != "" && c.Value == value && now.Before(c.ExpiresAt)
}

// User is the account record.
type User struct {
	ID           string
	Login        string
	Email        string
	PasswordHash string
	CreatedAt    time.Time

	EmailConfirmed bool
	Confirmation   Code
	Recovery       Code

	DeletedAt *time.Time
}

// ListFilter narrows the admin user list. Non-empty terms are OR-combined
// case-insensitive substring matches.
type ListFilter struct {
	SearchLogin string
	SearchEmail string
}

// UserSortFields are the sortBy values the user list accepts.
var UserSortFields = []string{"createdAt", "login", "email"}

// Store is the account persistence boundary. Lookups never return soft-deleted users.
type Store interface {
	// Insert fails with ConflictError{Field: "login"|"email"} on duplicates.
	Insert(ctx context.Context, u User) error
	ByID(ctx context.Context, id string) (User, error)
	ByLoginOrEmail(ctx context.Context, loginOrEmail string) (User, error)
	ByEmail(ctx context.Context, email string) (User, error)
	ByConfirmationCode(ctx context.Context, code string) (User, error)
	ByRecoveryCode(ctx context.Context, code string) (User, error)

	// MarkConfirmed flips the confirmation flag only while code is still the
	// stored confirmation code, so a code confirms at most once.
	MarkConfirmed(ctx context.Context, id, code string) error
	SetConfirmation(ctx context.Context, id string, c Code) error
	SetRecovery(ctx context.Context, id string, c Code) error
	// SetPassword replaces the hash and clears any recovery code.
	SetPassword(ctx context.Context, id, hash string) error

	SoftDelete(ctx context.Context, id string, now time.Time) error
	List(ctx context.Context, f ListFilter, q paging.Query) ([]User, int64, error)
	DeleteAll(ctx context.Context) error
}
