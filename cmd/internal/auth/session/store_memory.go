package session

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. All methods are safe for
// concurrent use; Rotate is atomic under the store mutex.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (s *MemoryStore) Create(ctx context.Context, sess Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.DeviceID]; ok {
		return fmt.Errorf("session: create: device %q already exists", sess.DeviceID)
	}
	s.sessions[sess.DeviceID] = sess
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, deviceID string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[deviceID]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

func (s *MemoryStore) GetActive(ctx context.Context, deviceID string, issuedAt time.Time) (Session, error) {
	sess, err := s.Get(ctx, deviceID)
	if err != nil {
		return Session{}, err
	}
	if !sess.LastActiveDate.Equal(issuedAt) {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

func (s *MemoryStore) Rotate(ctx context.Context, deviceID string, prev, next, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[deviceID]
	if !ok || !sess.LastActiveDate.Equal(prev) {
		return ErrSessionNotFound
	}
	sess.LastActiveDate = next
	sess.ExpiresAt = expiresAt
	s.sessions[deviceID] = sess
	return nil
}

func (s *MemoryStore) DeleteActive(ctx context.Context, deviceID string, issuedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[deviceID]
	if !ok || !sess.LastActiveDate.Equal(issuedAt) {
		return ErrSessionNotFound
	}
	delete(s.sessions, deviceID)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, deviceID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[deviceID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, deviceID)
	return nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID string, now time.Time) ([]Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Session
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.ExpiresAt.After(now) {
			out = append(out, sess)
		}
	}
	slices.SortFunc(out, func(a, b Session) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s *MemoryStore) DeleteOthers(ctx context.Context, userID, keepDeviceID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, sess := range s.sessions {
		if sess.UserID == userID && id != keepDeviceID {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.sessions = make(map[string]Session)
	s.mu.Unlock()
	return nil
}

var _ Store = (*MemoryStore)(nil)
