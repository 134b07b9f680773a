// Package session owns the authentication session lifecycle.
//
// A Manager is either empty or holds one active Session. Login persists the
// session through the durable key-value boundary; Restore reloads it at
// startup without contacting the server; Logout clears both the in-memory
// and durable copies unconditionally.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/roach88/listsync/internal/apperr"
	"github.com/roach88/listsync/internal/kv"
)

// DefaultKey is the durable key the session is stored under.
const DefaultKey = "loggedListsyncUser"

// Session is an authenticated principal and its bearer token.
type Session struct {
	Token    string `json:"token"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// Authenticator exchanges credentials for a session (the remote auth API).
type Authenticator interface {
	Login(ctx context.Context, username, password string) (Session, error)
}

// Manager holds the current session.
type Manager struct {
	auth   Authenticator
	store  kv.Store
	key    string
	logger *slog.Logger

	mu      sync.RWMutex
	current *Session
}

// Option configures a Manager.
type Option func(*Manager)

// WithKey overrides the durable key.
func WithKey(key string) Option {
	return func(m *Manager) { m.key = key }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager returns a Manager with no active session.
func NewManager(auth Authenticator, store kv.Store, opts ...Option) *Manager {
	m := &Manager{
		auth:   auth,
		store:  store,
		key:    DefaultKey,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Login authenticates and, on success, activates and persists the session.
//
// Any failure is an AUTHENTICATION_FAILED error and leaves the current state
// as it was. Blank credentials fail validation without a network call.
func (m *Manager) Login(ctx context.Context, username, password string) (Session, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return Session{}, apperr.Validation("login", "username and password are required")
	}

	s, err := m.auth.Login(ctx, username, password)
	if err != nil {
		m.logger.Debug("login failed", "username", username, "error", err)
		return Session{}, apperr.Wrap(apperr.CodeAuthFailed, "login", "wrong username or password", err)
	}
	if s.Token == "" {
		return Session{}, apperr.New(apperr.CodeAuthFailed, "login", "server returned no token")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.CodeAuthFailed, "login", "encode session", err)
	}
	if err := m.store.Set(ctx, m.key, string(data)); err != nil {
		return Session{}, apperr.Wrap(apperr.CodeAuthFailed, "login", "persist session", err)
	}

	m.mu.Lock()
	m.current = &s
	m.mu.Unlock()

	m.logger.Info("logged in", "username", s.Username)
	return s, nil
}

// Restore loads a persisted session without re-validating its token.
// A stored value that cannot be decoded is removed and treated as absent.
func (m *Manager) Restore(ctx context.Context) (Session, bool, error) {
	raw, ok, err := m.store.Get(ctx, m.key)
	if err != nil {
		return Session{}, false, err
	}
	if !ok {
		return Session{}, false, nil
	}

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil || s.Token == "" {
		m.logger.Warn("discarding unreadable stored session", "key", m.key, "error", err)
		if rmErr := m.store.Remove(ctx, m.key); rmErr != nil {
			return Session{}, false, rmErr
		}
		return Session{}, false, nil
	}

	m.mu.Lock()
	m.current = &s
	m.mu.Unlock()

	m.logger.Debug("session restored", "username", s.Username)
	return s, true, nil
}

// Logout clears the session. There is no server round trip.
// The in-memory session is dropped even when the durable remove fails.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	if err := m.store.Remove(ctx, m.key); err != nil {
		return err
	}
	m.logger.Info("logged out")
	return nil
}

// CurrentToken returns the active token, or ("", false) when there is no session.
func (m *Manager) CurrentToken() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return "", false
	}
	return m.current.Token, true
}

// Current returns a copy of the active session.
func (m *Manager) Current() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Session{}, false
	}
	return *m.current, true
}
