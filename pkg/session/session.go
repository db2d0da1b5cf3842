package session

import (
	"slices"
	"sync"
	"time"
)

// Role identifies the author of a conversation turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSystem is only produced by prompt assembly; stores never hold it.
	RoleSystem Role = "system"
)

// Turn represents a single conversation turn
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the conversation state of one user
type Session struct {
	UserID    string
	CreatedAt time.Time

	mu                   sync.Mutex
	history              []Turn
	jurisdiction         string
	awaitingJurisdiction bool
	greeted              bool
	updatedAt            time.Time
}

func newSession(userID string) *Session {
	now := time.Now()
	return &Session{
		UserID:               userID,
		CreatedAt:            now,
		awaitingJurisdiction: true,
		updatedAt:            now,
	}
}

// Lock acquires the session's writer lock. At most one request mutates a
// session at a time.
func (s *Session) Lock() {
	s.mu.Lock()
}

// Unlock releases the session's writer lock.
func (s *Session) Unlock() {
	s.mu.Unlock()
}

// Jurisdiction returns the detected jurisdiction, if any. Caller must hold the lock.
func (s *Session) Jurisdiction() (string, bool) {
	return s.jurisdiction, s.jurisdiction != ""
}

// AwaitingJurisdiction reports whether the single detection attempt is still pending.
// Caller must hold the lock.
func (s *Session) AwaitingJurisdiction() bool {
	return s.awaitingJurisdiction
}

// Greeted reports whether the opening greeting was emitted. Caller must hold the lock.
func (s *Session) Greeted() bool {
	return s.greeted
}

// Len returns the number of stored turns. Caller must hold the lock.
func (s *Session) Len() int {
	return len(s.history)
}

// Snapshot is an immutable copy of a session's state.
type Snapshot struct {
	UserID               string
	History              []Turn
	Jurisdiction         string
	AwaitingJurisdiction bool
	Greeted              bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// HasJurisdiction reports whether a jurisdiction is set.
func (s Snapshot) HasJurisdiction() bool {
	return s.Jurisdiction != ""
}

// Snapshot returns a defensive copy of the session. Caller must hold the lock.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		UserID:               s.UserID,
		History:              slices.Clone(s.history),
		Jurisdiction:         s.jurisdiction,
		AwaitingJurisdiction: s.awaitingJurisdiction,
		Greeted:              s.greeted,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.updatedAt,
	}
}
