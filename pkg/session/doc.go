// Package session keeps per-user conversation state in process memory.
//
// Invariants:
//   - Exactly one Session exists per user ID; it is created on first contact and lives until the
//     process exits (no expiry, no persistence).
//   - History is append-only. Only user and assistant turns are stored; system turns are never stored.
//   - Jurisdiction is first-write-wins and awaitingJurisdiction only ever goes from true to false.
//   - Mutating methods and Snapshot require the session's writer lock (Session.Lock).
//
// Usage:
//
//	store := session.NewStore(logger)
//	s, created := store.GetOrCreate("device-123")
//	s.Lock()
//	store.AppendUser(s, "hello")
//	snap := s.Snapshot()
//	s.Unlock()
//	_, _ = created, snap
package session
