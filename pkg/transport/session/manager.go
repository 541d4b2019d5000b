// Package session tracks live MCP sessions: one engine instance per
// session id, with idle eviction and credential snapshot rules.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redditmcp/redditmcp/pkg/logger"
	"github.com/redditmcp/redditmcp/pkg/mcp"
	"github.com/redditmcp/redditmcp/pkg/telemetry"
)

const (
	// DefaultTTL is how long an idle session survives.
	DefaultTTL = 60 * time.Minute

	// DefaultJanitorInterval is how often idle sessions are collected.
	DefaultJanitorInterval = 5 * time.Minute
)

// ErrNotFound is returned when a session id is unknown or already evicted.
var ErrNotFound = fmt.Errorf("session not found")

// Session pairs a session id with its engine instance and activity times.
type Session struct {
	id        string
	instance  *mcp.Instance
	createdAt time.Time

	mu        sync.Mutex
	updatedAt time.Time
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Instance returns the session's engine.
func (s *Session) Instance() *mcp.Instance { return s.instance }

// CreatedAt returns the creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// UpdatedAt returns the last activity time.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Touch refreshes the last activity time.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatedAt = time.Now()
}

// InstanceFactory builds a fresh engine for a session id and credential
// snapshot.
type InstanceFactory func(sessionID string, creds mcp.Credentials) *mcp.Instance

// Table is the in-memory session registry. A janitor goroutine evicts idle
// sessions and closes their engines.
type Table struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	factory         InstanceFactory
	ttl             time.Duration
	janitorInterval time.Duration

	stopJanitor chan struct{}
	janitorDone chan struct{}
}

// TableOption configures a Table.
type TableOption func(*Table)

// WithTTL overrides the idle eviction TTL.
func WithTTL(ttl time.Duration) TableOption {
	return func(t *Table) { t.ttl = ttl }
}

// WithJanitorInterval overrides the janitor cadence.
func WithJanitorInterval(d time.Duration) TableOption {
	return func(t *Table) { t.janitorInterval = d }
}

// NewTable creates a Table and starts its janitor.
func NewTable(factory InstanceFactory, opts ...TableOption) *Table {
	t := &Table{
		sessions:        make(map[string]*Session),
		factory:         factory,
		ttl:             DefaultTTL,
		janitorInterval: DefaultJanitorInterval,
		stopJanitor:     make(chan struct{}),
		janitorDone:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	go t.janitor()
	return t
}

// Create registers a new session with a fresh id and engine.
func (t *Table) Create(creds mcp.Credentials) *Session {
	id := uuid.NewString()
	now := time.Now()
	sess := &Session{
		id:        id,
		instance:  t.factory(id, creds),
		createdAt: now,
		updatedAt: now,
	}

	t.mu.Lock()
	t.sessions[id] = sess
	count := len(t.sessions)
	t.mu.Unlock()

	telemetry.ActiveSessions.Set(float64(count))
	logger.Infow("session created", "session", id, "user", creds.UserID)
	return sess
}

// Get returns a live session and refreshes its activity time. A session
// idle past the TTL is evicted inline and reported as not found; the
// janitor is only backstop cleanup.
func (t *Table) Get(id string) (*Session, error) {
	t.mu.RLock()
	sess, ok := t.sessions[id]
	t.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if t.expired(sess) {
		t.expire(id)
		return nil, ErrNotFound
	}
	sess.Touch()
	return sess, nil
}

func (t *Table) expired(s *Session) bool {
	return time.Since(s.UpdatedAt()) > t.ttl
}

// expire removes a session if it is still past the TTL once the write lock
// is held, then closes its engine.
func (t *Table) expire(id string) {
	t.mu.Lock()
	sess, ok := t.sessions[id]
	if !ok || !t.expired(sess) {
		t.mu.Unlock()
		return
	}
	delete(t.sessions, id)
	count := len(t.sessions)
	t.mu.Unlock()

	sess.instance.Close()
	telemetry.ActiveSessions.Set(float64(count))
	logger.Infow("session evicted after idle timeout", "session", id)
}

// Bind returns the session for id, rebuilding its engine when the caller
// presents credentials with a different upstream token. The snapshot never
// silently weakens: a rebuild replaces the whole engine, it does not mutate
// the old one.
func (t *Table) Bind(id string, creds mcp.Credentials) (*Session, error) {
	t.mu.Lock()
	sess, ok := t.sessions[id]
	if !ok {
		t.mu.Unlock()
		return nil, ErrNotFound
	}

	if t.expired(sess) {
		delete(t.sessions, id)
		count := len(t.sessions)
		t.mu.Unlock()

		sess.instance.Close()
		telemetry.ActiveSessions.Set(float64(count))
		logger.Infow("session evicted after idle timeout", "session", id)
		return nil, ErrNotFound
	}

	if sess.instance.Credentials().UpstreamAccessToken != creds.UpstreamAccessToken {
		logger.Infow("rebuilding session for fresher credentials", "session", id, "user", creds.UserID)
		old := sess.instance
		sess.instance = t.factory(id, creds)
		t.mu.Unlock()

		old.Close()
		sess.Touch()
		return sess, nil
	}
	t.mu.Unlock()

	sess.Touch()
	return sess, nil
}

// Delete removes a session and closes its engine.
func (t *Table) Delete(id string) {
	t.mu.Lock()
	sess, ok := t.sessions[id]
	if ok {
		delete(t.sessions, id)
	}
	count := len(t.sessions)
	t.mu.Unlock()

	if ok {
		sess.instance.Close()
		telemetry.ActiveSessions.Set(float64(count))
		logger.Infow("session deleted", "session", id)
	}
}

// Len returns the live session count.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// Shutdown stops the janitor and closes every session.
func (t *Table) Shutdown() {
	close(t.stopJanitor)
	<-t.janitorDone

	t.mu.Lock()
	sessions := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		sessions = append(sessions, s)
	}
	t.sessions = make(map[string]*Session)
	t.mu.Unlock()

	for _, s := range sessions {
		s.instance.Close()
	}
	telemetry.ActiveSessions.Set(0)
}

func (t *Table) janitor() {
	defer close(t.janitorDone)

	ticker := time.NewTicker(t.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopJanitor:
			return
		case <-ticker.C:
			t.evictIdle()
		}
	}
}

// evictIdle collects sessions idle past the TTL, then closes them outside
// the lock.
func (t *Table) evictIdle() {
	cutoff := time.Now().Add(-t.ttl)

	t.mu.Lock()
	var evicted []*Session
	for id, s := range t.sessions {
		if s.UpdatedAt().Before(cutoff) {
			delete(t.sessions, id)
			evicted = append(evicted, s)
		}
	}
	count := len(t.sessions)
	t.mu.Unlock()

	for _, s := range evicted {
		s.instance.Close()
		logger.Infow("session evicted after idle timeout", "session", s.id)
	}
	if len(evicted) > 0 {
		telemetry.ActiveSessions.Set(float64(count))
	}
}
