package monitor

import (
	"context"
	"sync"

	"busz-backend/internal/tago"
)

type record struct {
	session Session
	cancel  context.CancelFunc
}

// Store is the single shared mutable resource of the monitoring subsystem: a
// synchronized map of session records, each holding the cancellation handle
// of its worker. One mutex guards the whole map.
type Store struct {
	baseCtx context.Context

	mu      sync.Mutex
	records map[string]*record
	wg      sync.WaitGroup
}

// NewStore creates a Store whose worker contexts derive from baseCtx, so
// cancelling it (process shutdown) cancels every worker.
func NewStore(baseCtx context.Context) *Store {
	return &Store{
		baseCtx: baseCtx,
		records: make(map[string]*record),
	}
}

// Create registers a session and returns the context its worker must run
// under. An existing session for the same ID is cancelled and replaced.
func (s *Store) Create(sess Session) context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.records[sess.ID]; ok {
		old.cancel()
		delete(s.records, sess.ID)
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	sess.Status = StatusActive
	s.records[sess.ID] = &record{session: sess, cancel: cancel}
	return ctx
}

// Spawn runs fn in a tracked goroutine so Shutdown can wait for it.
func (s *Store) Spawn(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// Get returns a copy of the session record.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return Session{}, false
	}
	return rec.session, true
}

// IsActiveAndValid reports whether id names a live, active session.
func (s *Store) IsActiveAndValid(id string) bool {
	if id == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	return ok && rec.session.Status == StatusActive
}

// Remove cancels the bound worker and deletes the record as one step under
// the lock. Returns whether a session was present. Idempotent.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return false
	}
	rec.cancel()
	delete(s.records, id)
	return true
}

// SetCachedStop records the resolved nearest stop for a session so snapshot
// reads can reuse it. No-op when the session is already gone.
func (s *Store) SetCachedStop(id string, stop *tago.Stop) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[id]; ok {
		rec.session.CachedStop = stop
	}
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Shutdown cancels every session and blocks until all workers have exited.
func (s *Store) Shutdown() {
	s.mu.Lock()
	for id, rec := range s.records {
		rec.cancel()
		delete(s.records, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
