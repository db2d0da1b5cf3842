package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/trvlai/lawyerai/internal/observability"
)

// Store maps user IDs to sessions for the lifetime of the process
type Store struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	logger   zerolog.Logger
}

// NewStore creates an empty session store
func NewStore(logger zerolog.Logger) *Store {
	observability.EnsureRegistered()
	observability.SetActiveSessions(0)

	return &Store{
		sessions: make(map[string]*Session),
		logger:   logger.With().Str("component", "session-store").Logger(),
	}
}

// GetOrCreate returns the session for userID, creating it on first contact.
// The boolean reports whether this call created it. Callers must reject empty
// user IDs before calling.
func (st *Store) GetOrCreate(userID string) (*Session, bool) {
	st.mu.RLock()
	s, exists := st.sessions[userID]
	st.mu.RUnlock()
	if exists {
		return s, false
	}

	st.mu.Lock()
	// Another request may have created it between the two locks
	if s, exists = st.sessions[userID]; exists {
		st.mu.Unlock()
		return s, false
	}
	s = newSession(userID)
	st.sessions[userID] = s
	count := len(st.sessions)
	st.mu.Unlock()

	observability.SetActiveSessions(count)
	st.logger.Debug().
		Str("user_id", userID).
		Int("sessions", count).
		Msg("Session created")

	return s, true
}

// Get returns the session for userID without creating one
func (st *Store) Get(userID string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, exists := st.sessions[userID]
	return s, exists
}

// Len returns the number of live sessions
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// AppendUser appends a user turn. Caller must hold the session lock.
func (st *Store) AppendUser(s *Session, text string) {
	st.appendTurn(s, RoleUser, text)
}

// AppendAssistant appends an assistant turn. Caller must hold the session lock.
func (st *Store) AppendAssistant(s *Session, text string) {
	st.appendTurn(s, RoleAssistant, text)
}

func (st *Store) appendTurn(s *Session, role Role, text string) {
	now := time.Now()
	s.history = append(s.history, Turn{Role: role, Content: text, Timestamp: now})
	s.updatedAt = now

	st.logger.Debug().
		Str("user_id", s.UserID).
		Str("role", string(role)).
		Int("turns", len(s.history)).
		Msg("Turn appended")
}

// SetJurisdiction records the user's jurisdiction. The first non-empty value
// wins; later calls are no-ops. Caller must hold the session lock.
func (st *Store) SetJurisdiction(s *Session, value string) {
	if value == "" || s.jurisdiction != "" {
		return
	}
	s.jurisdiction = value
	s.updatedAt = time.Now()

	st.logger.Info().
		Str("user_id", s.UserID).
		Str("jurisdiction", value).
		Msg("Jurisdiction set")
}

// ResolveAwaiting ends the jurisdiction detection window. Idempotent.
// Caller must hold the session lock.
func (st *Store) ResolveAwaiting(s *Session) {
	s.awaitingJurisdiction = false
}

// MarkGreeted records that the opening greeting was emitted. Caller must hold
// the session lock.
func (st *Store) MarkGreeted(s *Session) {
	s.greeted = true
}

// Close drops all sessions. The store is empty but usable afterwards.
func (st *Store) Close() error {
	st.mu.Lock()
	count := len(st.sessions)
	st.sessions = make(map[string]*Session)
	st.mu.Unlock()

	observability.SetActiveSessions(0)
	st.logger.Info().Int("sessions", count).Msg("Session store closed")

	return nil
}
