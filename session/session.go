package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	mathrand "math/rand/v2"
	"time"
)

// Attribute keys holding the authenticated principal.
const (
	UserIDKey   = "user.id"
	UserNameKey = "user.name"
)

var (
	// ErrNotFound is returned for unknown, invalidated or expired sessions.
	ErrNotFound = errors.New("session not found")
	// ErrConflict is returned when a save races a newer version.
	ErrConflict = errors.New("session modified concurrently")
)

// DefaultUpdateAttempts bounds the read-modify-write retries of Update.
const DefaultUpdateAttempts = 32

// Session is a server-side record keyed by an opaque identifier.
type Session struct {
	ID         string            `json:"id"`
	CreatedAt  time.Time         `json:"created_at"`
	LastAccess time.Time         `json:"last_access"`
	Values     map[string]string `json:"values"`
	Version    int64             `json:"version"`
}

// Get returns a value.
func (s *Session) Get(key string) string {
	return s.Values[key]
}

// Set sets a key value.
func (s *Session) Set(key, value string) {
	if s.Values == nil {
		s.Values = map[string]string{}
	}
	s.Values[key] = value
}

// Delete removes a key.
func (s *Session) Delete(key string) {
	delete(s.Values, key)
}

// UserID returns the authenticated user id, if any.
func (s *Session) UserID() (string, bool) {
	if s == nil {
		return "", false
	}
	id, ok := s.Values[UserIDKey]
	return id, ok && id != ""
}

// SetUser records the authenticated principal.
func (s *Session) SetUser(id, name string) {
	s.Set(UserIDKey, id)
	s.Set(UserNameKey, name)
}

// ClearUser drops the authenticated principal.
func (s *Session) ClearUser() {
	s.Delete(UserIDKey)
	s.Delete(UserNameKey)
}

// Anonymous reports whether no principal is attached.
func (s *Session) Anonymous() bool {
	_, ok := s.UserID()
	return !ok
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Values = copyValues(s.Values)
	return &clone
}

// Store persists sessions.
//
// Save is a compare-and-swap on Version: it fails with ErrConflict when the
// stored version moved on since the session was loaded.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Create(ctx context.Context) (*Session, error)
	Save(ctx context.Context, sess *Session) error
	Invalidate(ctx context.Context, id string) error
}

// Updater is implemented by stores that serialize updates natively.
type Updater interface {
	Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error)
}

// Update applies fn to the current state of session id and saves it.
// Conflicting writers are retried until DefaultUpdateAttempts is exhausted.
func Update(ctx context.Context, store Store, id string, fn func(*Session) error) (*Session, error) {
	if updater, ok := store.(Updater); ok {
		return updater.Update(ctx, id, fn)
	}

	for attempt := 0; attempt < DefaultUpdateAttempts; attempt++ {
		sess, err := store.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(sess); err != nil {
			return nil, err
		}
		err = store.Save(ctx, sess)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		if err := backoff(ctx, attempt); err != nil {
			return nil, err
		}
	}
	return nil, ErrConflict
}

func backoff(ctx context.Context, attempt int) error {
	ceiling := time.Duration(min(attempt+1, 10)) * time.Millisecond
	timer := time.NewTimer(time.Duration(mathrand.Int64N(int64(ceiling))) + time.Millisecond/2)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func newSessionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func copyValues(values map[string]string) map[string]string {
	copy := make(map[string]string, len(values))
	for key, value := range values {
		copy[key] = value
	}
	return copy
}
