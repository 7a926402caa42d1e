package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL (table sessions).
// The pool is owned by the caller.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const selectSession = `
	SELECT device_id, user_id, ip, title, last_active_at, expires_at, created_at
	FROM sessions
`

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	err := row.Scan(&s.DeviceID, &s.UserID, &s.IP, &s.Title, &s.LastActiveDate, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	s.LastActiveDate = s.LastActiveDate.UTC()
	s.ExpiresAt = s.ExpiresAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	return s, nil
}

func (s *PostgresStore) Create(ctx context.Context, sess Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (
			device_id, user_id, ip, title, last_active_at, expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, sess.DeviceID, sess.UserID, sess.IP, sess.Title, sess.LastActiveDate, sess.ExpiresAt, sess.CreatedAt)
	if err != nil {
		return fmt.Errorf("session: create: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, deviceID string) (Session, error) {
	return scanSession(s.pool.QueryRow(ctx, selectSession+`WHERE device_id = $1`, deviceID))
}

func (s *PostgresStore) GetActive(ctx context.Context, deviceID string, issuedAt time.Time) (Session, error) {
	return scanSession(s.pool.QueryRow(ctx,
		selectSession+`WHERE device_id = $1 AND last_active_at = $2`,
		deviceID, issuedAt,
	))
}

// Rotate is a single UPDATE guarded by the previous iat; concurrent callers
// serialize on the row lock and all but one see zero rows affected.
func (s *PostgresStore) Rotate(ctx context.Context, deviceID string, prev, next, expiresAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions
		SET last_active_at = $3, expires_at = $4
		WHERE device_id = $1 AND last_active_at = $2
	`, deviceID, prev, next, expiresAt)
	if err != nil {
		return fmt.Errorf("session: rotate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteActive(ctx context.Context, deviceID string, issuedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM sessions WHERE device_id = $1 AND last_active_at = $2`,
		deviceID, issuedAt,
	)
	if err != nil {
		return fmt.Errorf("session: delete active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, deviceID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE device_id = $1`, deviceID)
	if err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, now time.Time) ([]Session, error) {
	rows, err := s.pool.Query(ctx,
		selectSession+`WHERE user_id = $1 AND expires_at > $2 ORDER BY created_at`,
		userID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteOthers(ctx context.Context, userID, keepDeviceID string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM sessions WHERE user_id = $1 AND device_id <> $2`,
		userID, keepDeviceID,
	)
	if err != nil {
		return 0, fmt.Errorf("session: delete others: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) DeleteAll(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions`); err != nil {
		return fmt.Errorf("session: delete all: %w", err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
