// Package session owns the stat-office session lifecycle: lazy creation,
// proactive renewal, invalidation on session faults and best-effort logout.
// Creation is single-flight: concurrent callers with no valid session share
// one login instead of triggering duplicates.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vietddude/regfetch/internal/core/domain"
	"github.com/vietddude/regfetch/internal/core/fault"
)

// Authenticator performs the protocol login/logout for the stateful source.
type Authenticator interface {
	Login(ctx context.Context, correlationID string) (*domain.Session, error)
	Logout(ctx context.Context, s *domain.Session) error
}

// Store optionally persists the session across restarts (session reuse).
type Store interface {
	Load(ctx context.Context) (*domain.Session, error)
	Save(ctx context.Context, s *domain.Session) error
	Delete(ctx context.Context) error
}

// Manager caches the cross-request session singleton.
type Manager struct {
	auth          Authenticator
	store         Store // nil when no external cache is configured
	refreshBuffer time.Duration
	log           *slog.Logger

	sf  singleflight.Group
	mu  sync.RWMutex
	cur *domain.Session
}

// NewManager creates a session manager. store may be nil.
func NewManager(auth Authenticator, store Store, refreshBuffer time.Duration) *Manager {
	if refreshBuffer == 0 {
		refreshBuffer = time.Minute
	}
	return &Manager{
		auth:          auth,
		store:         store,
		refreshBuffer: refreshBuffer,
		log:           slog.Default().With("component", "session"),
	}
}

// Get returns a valid session, creating one if needed. Under concurrent
// callers exactly one login runs; the rest await its result.
func (m *Manager) Get(ctx context.Context, correlationID string) (*domain.Session, error) {
	now := time.Now()

	m.mu.RLock()
	cur := m.cur
	m.mu.RUnlock()
	if cur.ValidAt(now, m.refreshBuffer) {
		return cur, nil
	}

	type result struct{ s *domain.Session }
	ch := m.sf.DoChan("session", func() (any, error) {
		s, err := m.create(ctx, correlationID)
		if err != nil {
			return nil, err
		}
		return result{s}, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, fault.Normalize(r.Err, fault.SourceStatOffice, correlationID)
		}
		return r.Val.(result).s, nil
	case <-ctx.Done():
		// The in-flight login keeps running for other waiters.
		return nil, fault.Normalize(ctx.Err(), fault.SourceStatOffice, correlationID)
	}
}

func (m *Manager) create(ctx context.Context, correlationID string) (*domain.Session, error) {
	now := time.Now()

	// A session cached externally may already be usable (process restart).
	if m.store != nil {
		if s, err := m.store.Load(ctx); err == nil && s.ValidAt(now, m.refreshBuffer) {
			m.log.Debug("Adopted cached session", "session_id", s.ID)
			m.adopt(s)
			return s, nil
		}
	}

	s, err := m.auth.Login(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	m.log.Info("Created stat-office session",
		"session_id", s.ID, "expires_at", s.ExpiresAt, "correlation_id", correlationID)

	if m.store != nil {
		if err := m.store.Save(ctx, s); err != nil {
			m.log.Warn("Failed to cache session", "error", err)
		}
	}
	m.adopt(s)
	return s, nil
}

func (m *Manager) adopt(s *domain.Session) {
	m.mu.Lock()
	m.cur = s
	m.mu.Unlock()
}

// Clear drops the cached session. Invoked by the error layer when an
// upstream call reports the session invalid or expired.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.cur = nil
	m.mu.Unlock()
	if m.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := m.store.Delete(ctx); err != nil {
			m.log.Warn("Failed to drop cached session", "error", err)
		}
	}
	m.log.Debug("Session cleared")
}

// Logout releases the current session. Best-effort; never returns an error.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	cur := m.cur
	m.cur = nil
	m.mu.Unlock()
	if cur == nil {
		return
	}
	if err := m.auth.Logout(ctx, cur); err != nil {
		m.log.Warn("Logout failed", "error", err)
	}
	if m.store != nil {
		if err := m.store.Delete(ctx); err != nil {
			m.log.Warn("Failed to drop cached session", "error", err)
		}
	}
}
