// Package session tracks the short-lived dialog state of each requester
// while they walk through verification: idle, waiting for a nickname, then
// waiting for the code to appear. State lives in memory only; a requester
// who goes quiet past the interaction deadline collapses back to idle, so a
// restart or timeout never strands anyone mid-dialog.
package session

import (
	"sync"
	"time"
)

// State is a dialog position.
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingNickname State = "awaiting_nickname"
	StateAwaitingCode     State = "awaiting_code"
)

// DefaultTTL is the interaction deadline between dialog steps.
const DefaultTTL = 2 * time.Minute

// Session is a requester's current dialog position.
type Session struct {
	RequesterID int64
	State       State
	// Nickname is captured when the dialog advances past awaiting_nickname.
	Nickname string
	// Deadline is when the session collapses back to idle.
	Deadline time.Time
}

// Store holds per-requester sessions. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[int64]Session

	now func() time.Time
}

// NewStore constructs a Store; ttl <= 0 falls back to DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:      ttl,
		sessions: make(map[int64]Session),
		now:      time.Now,
	}
}

// Get returns the requester's session, collapsing expired ones to idle.
func (s *Store) Get(requesterID int64) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current(requesterID)
}

// Begin starts (or restarts) the dialog at awaiting_nickname. Beginning from
// any state is allowed; a fresh dialog discards the previous one.
func (s *Store) Begin(requesterID int64) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := Session{
		RequesterID: requesterID,
		State:       StateAwaitingNickname,
		Deadline:    s.now().Add(s.ttl),
	}
	s.sessions[requesterID] = sess
	return sess
}

// SetNickname records the claimed nickname and advances to awaiting_code.
// Returns false when the dialog is not at awaiting_nickname (including when
// it expired underneath the caller); the session is left idle in that case.
func (s *Store) SetNickname(requesterID int64, nickname string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.current(requesterID)
	if sess.State != StateAwaitingNickname {
		return sess, false
	}
	sess.State = StateAwaitingCode
	sess.Nickname = nickname
	sess.Deadline = s.now().Add(s.ttl)
	s.sessions[requesterID] = sess
	return sess, true
}

// Touch extends the deadline of an active dialog without changing state.
func (s *Store) Touch(requesterID int64) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.current(requesterID)
	if sess.State == StateIdle {
		return sess
	}
	sess.Deadline = s.now().Add(s.ttl)
	s.sessions[requesterID] = sess
	return sess
}

// Reset drops the requester back to idle.
func (s *Store) Reset(requesterID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, requesterID)
}

// current must be called with the lock held.
func (s *Store) current(requesterID int64) Session {
	sess, ok := s.sessions[requesterID]
	if !ok {
		return Session{RequesterID: requesterID, State: StateIdle}
	}
	if s.now().After(sess.Deadline) {
		delete(s.sessions, requesterID)
		return Session{RequesterID: requesterID, State: StateIdle}
	}
	return sess
}
