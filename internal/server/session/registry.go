// Package session keeps server-side session contexts in memory. A session
// binds an opaque id to an optional authenticated identity and the
// anti-forgery token issued for it. Sessions expire after a period of
// inactivity.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/thejerf/abtime"
)

// Session is a snapshot of a server-side session. Mutating it does not
// change the registry.
type Session struct {
	ID        string
	Identity  *models.Identity
	CSRFToken string
	CreatedAt time.Time
	LastSeen  time.Time
}

// Authenticated reports whether an identity is bound to the session.
func (s *Session) Authenticated() bool {
	return s != nil && s.Identity != nil
}

// Registry is a concurrency-safe map of live sessions. All state, including
// expiry bookkeeping, is guarded by one mutex.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	timeout  time.Duration
	clock    abtime.AbstractTime
	newID    func() (string, error)
}

// NewRegistry returns a registry whose sessions expire after timeout of
// inactivity. A nil clock means real time.
func NewRegistry(timeout time.Duration, clock abtime.AbstractTime) *Registry {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	return &Registry{
		sessions: map[string]*Session{},
		timeout:  timeout,
		clock:    clock,
		newID:    newSessionID,
	}
}

func newSessionID() (string, error) {
	return common.MakeRandHexString(32)
}

func (r *Registry) expired(s *Session, now time.Time) bool {
	return s.LastSeen.Add(r.timeout).Before(now)
}

// lookup returns the live session for id, dropping it when expired.
// Callers hold r.mu.
func (r *Registry) lookup(id string, now time.Time) (*Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if r.expired(s, now) {
		delete(r.sessions, id)
		return nil, common.ErrorNotFound
	}
	return s, nil
}

func snapshot(s *Session) *Session {
	c := *s
	if s.Identity != nil {
		id := *s.Identity
		id.Roles = append([]string(nil), s.Identity.Roles...)
		c.Identity = &id
	}
	return &c
}

// Create starts a new anonymous session.
func (r *Registry) Create() (*Session, error) {
	return r.insert(nil, "")
}

func (r *Registry) insert(identity *models.Identity, csrfToken string) (*Session, error) {
	id, err := r.newID()
	if err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}

	now := r.clock.Now()
	s := &Session{ID: id, Identity: identity, CSRFToken: csrfToken, CreatedAt: now, LastSeen: now}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = s
	return snapshot(s), nil
}

// Get returns the session for id and refreshes its inactivity timer.
// Missing and expired sessions yield common.ErrorNotFound.
func (r *Registry) Get(id string) (*Session, error) {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.lookup(id, now)
	if err != nil {
		return nil, err
	}
	s.LastSeen = now
	return snapshot(s), nil
}

// Destroy removes the session. Unknown ids are ignored.
func (r *Registry) Destroy(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Establish replaces the session previousID (which may be empty or unknown)
// with a fresh session carrying identity and csrfToken. The old id and its
// token stop being valid at the same moment the new ones appear.
func (r *Registry) Establish(previousID string, identity *models.Identity, csrfToken string) (*Session, error) {
	id, err := r.newID()
	if err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}

	now := r.clock.Now()
	s := &Session{ID: id, Identity: identity, CSRFToken: csrfToken, CreatedAt: now, LastSeen: now}

	r.mu.Lock()
	defer r.mu.Unlock()
	if previousID != "" {
		delete(r.sessions, previousID)
	}
	r.sessions[id] = s
	return snapshot(s), nil
}

// LoadOrStoreCSRF returns the token bound to the session, generating and
// binding one with gen when none exists yet. The check and the bind happen
// under one lock, so concurrent callers always observe a single token.
func (r *Registry) LoadOrStoreCSRF(id string, gen func() (string, error)) (string, error) {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.lookup(id, now)
	if err != nil {
		return "", err
	}
	s.LastSeen = now
	if s.CSRFToken != "" {
		return s.CSRFToken, nil
	}

	token, err := gen()
	if err != nil {
		return "", err
	}
	s.CSRFToken = token
	return token, nil
}

// Purge drops every expired session and returns how many were removed.
func (r *Registry) Purge() int {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, s := range r.sessions {
		if r.expired(s, now) {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

// Len returns the number of stored sessions, expired ones included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Timeout is the inactivity period after which sessions expire.
func (r *Registry) Timeout() time.Duration { return r.timeout }
