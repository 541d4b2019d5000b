package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/redditmcp/redditmcp/pkg/logger"
)

// timedEntry wraps a value with its creation time for TTL tracking.
type timedEntry[T any] struct {
	value     T
	createdAt time.Time
	expiresAt time.Time
}

// Store holds the three OAuth state tables with TTL tracking and a
// background sweeper. All operations are safe under concurrent access;
// single-use rows are removed atomically with their read.
type Store struct {
	mu sync.Mutex

	// pendingAuthorizations tracks authorize requests awaiting the upstream
	// callback, keyed by the storage key embedded in the upstream state.
	pendingAuthorizations map[string]*timedEntry[*PendingAuthorization]

	// authCodes maps authorization code -> grant context. Codes are
	// one-time-use; a second take fails ErrNotFound.
	authCodes map[string]*timedEntry[*AuthorizationCode]

	// refreshTokens maps refresh-token id -> stored upstream pair.
	refreshTokens map[string]*timedEntry[*RefreshTokenRecord]

	maxEntries    int
	sweepInterval time.Duration

	stopSweep chan struct{}
	sweepDone chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithSweepInterval sets a custom sweep interval.
func WithSweepInterval(interval time.Duration) Option {
	return func(s *Store) {
		s.sweepInterval = interval
	}
}

// WithMaxEntries bounds each table to n rows.
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		s.maxEntries = n
	}
}

// NewStore creates a Store with initialized tables and starts the
// background sweeper.
func NewStore(opts ...Option) *Store {
	s := &Store{
		pendingAuthorizations: make(map[string]*timedEntry[*PendingAuthorization]),
		authCodes:             make(map[string]*timedEntry[*AuthorizationCode]),
		refreshTokens:         make(map[string]*timedEntry[*RefreshTokenRecord]),
		maxEntries:            DefaultMaxEntriesPerTable,
		sweepInterval:         DefaultSweepInterval,
		stopSweep:             make(chan struct{}),
		sweepDone:             make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	go s.sweepLoop()

	return s
}

// Close stops the background sweeper and waits for it to finish.
func (s *Store) Close() error {
	close(s.stopSweep)
	<-s.sweepDone
	return nil
}

func (s *Store) sweepLoop() {
	defer close(s.sweepDone)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopSweep:
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

// sweepExpired removes all expired rows from every table.
func (s *Store) sweepExpired() {
	now := time.Now()
	removed := 0

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, e := range s.pendingAuthorizations {
		if now.After(e.expiresAt) {
			delete(s.pendingAuthorizations, k)
			removed++
		}
	}
	for k, e := range s.authCodes {
		if now.After(e.expiresAt) {
			delete(s.authCodes, k)
			removed++
		}
	}
	for k, e := range s.refreshTokens {
		if now.After(e.expiresAt) {
			delete(s.refreshTokens, k)
			removed++
		}
	}

	if removed > 0 {
		logger.Debugw("swept expired oauth state", "removed", removed)
	}
}

// evictForCapacity makes room in a full table. Expired rows go first; if
// none are expired the oldest live row is evicted, which fails that row's
// in-flight flow.
func evictForCapacity[T any](table map[string]*timedEntry[T], now time.Time) {
	var (
		oldestKey     string
		oldestCreated time.Time
	)
	for k, e := range table {
		if now.After(e.expiresAt) {
			delete(table, k)
			return
		}
		if oldestKey == "" || e.createdAt.Before(oldestCreated) {
			oldestKey = k
			oldestCreated = e.createdAt
		}
	}
	if oldestKey != "" {
		logger.Warnw("oauth state table full, evicting oldest row", "created_at", oldestCreated)
		delete(table, oldestKey)
	}
}

// put inserts a row, evicting for capacity when the table is full.
func put[T any](table map[string]*timedEntry[T], key string, value T, ttl time.Duration, max int) error {
	if key == "" {
		return fmt.Errorf("storage key cannot be empty")
	}

	now := time.Now()
	if len(table) >= max {
		evictForCapacity(table, now)
	}

	table[key] = &timedEntry[T]{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	return nil
}

// PutPendingAuthorization stores a pending authorization under the given
// storage key with the standard TTL.
func (s *Store) PutPendingAuthorization(key string, pending *PendingAuthorization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return put(s.pendingAuthorizations, key, pending, DefaultPendingAuthorizationTTL, s.maxEntries)
}

// TakePendingAuthorization atomically removes and returns the pending
// authorization for the key. Concurrent callers for the same key resolve
// exactly one to success; the rest get ErrNotFound.
func (s *Store) TakePendingAuthorization(key string) (*PendingAuthorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.pendingAuthorizations[key]
	if !ok {
		return nil, fmt.Errorf("%w: pending authorization", ErrNotFound)
	}
	delete(s.pendingAuthorizations, key)

	if time.Now().After(entry.expiresAt) {
		return nil, fmt.Errorf("%w: pending authorization", ErrExpired)
	}
	return entry.value, nil
}

// PutAuthorizationCode stores a one-shot authorization code.
func (s *Store) PutAuthorizationCode(code string, grant *AuthorizationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return put(s.authCodes, code, grant, DefaultAuthCodeTTL, s.maxEntries)
}

// TakeAuthorizationCode atomically removes and returns the grant bound to
// the code. Replayed codes fail ErrNotFound regardless of PKCE validity.
func (s *Store) TakeAuthorizationCode(code string) (*AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.authCodes[code]
	if !ok {
		return nil, fmt.Errorf("%w: authorization code", ErrNotFound)
	}
	delete(s.authCodes, code)

	if time.Now().After(entry.expiresAt) {
		return nil, fmt.Errorf("%w: authorization code", ErrExpired)
	}
	return entry.value, nil
}

// PutRefreshToken stores a refresh-token record.
func (s *Store) PutRefreshToken(id string, record *RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return put(s.refreshTokens, id, record, DefaultRefreshTokenTTL, s.maxEntries)
}

// GetRefreshToken returns the record for the id without consuming it.
// Expired records are removed and reported as ErrExpired.
func (s *Store) GetRefreshToken(id string) (*RefreshTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.refreshTokens[id]
	if !ok {
		return nil, fmt.Errorf("%w: refresh token", ErrNotFound)
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.refreshTokens, id)
		return nil, fmt.Errorf("%w: refresh token", ErrExpired)
	}

	// Defensive copy so callers cannot mutate the stored row.
	rec := *entry.value
	return &rec, nil
}

// UpdateRefreshToken replaces the upstream pair on an existing record,
// keeping its original expiry. Used after an opportunistic upstream refresh.
func (s *Store) UpdateRefreshToken(id string, record *RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.refreshTokens[id]
	if !ok {
		return fmt.Errorf("%w: refresh token", ErrNotFound)
	}

	rec := *record
	entry.value = &rec
	return nil
}

// DeleteRefreshToken removes a record. Used when rotation invalidates the
// prior id.
func (s *Store) DeleteRefreshToken(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refreshTokens, id)
}

// Stats reports current row counts, for tests and the health endpoint.
type Stats struct {
	PendingAuthorizations int
	AuthorizationCodes    int
	RefreshTokens         int
}

// Stats returns current row counts.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		PendingAuthorizations: len(s.pendingAuthorizations),
		AuthorizationCodes:    len(s.authCodes),
		RefreshTokens:         len(s.refreshTokens),
	}
}
