package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is a thread-safe in-memory session registry with TTL eviction.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	log      *slog.Logger
	now      func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewStore(ttl time.Duration, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		log:      log,
		now:      time.Now,
	}
}

// Create registers a fresh session with a random ID.
func (st *Store) Create() *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := newSession(uuid.NewString(), st.now())
	st.sessions[s.ID] = s
	return s
}

// Get returns the session and marks it used, or nil if unknown.
func (st *Store) Get(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.sessions[id]
	if s != nil {
		s.touched = st.now()
	}
	return s
}

// Delete drops a session and releases its document.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	s := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if s != nil {
		s.close()
	}
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Cleanup evicts sessions idle longer than the TTL and returns how many
// were removed.
func (st *Store) Cleanup() int {
	st.mu.Lock()
	now := st.now()
	var expired []*Session
	for id, s := range st.sessions {
		if now.Sub(s.touched) > st.ttl {
			expired = append(expired, s)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()

	for _, s := range expired {
		s.close()
		st.log.Info("session evicted", "session_id", s.ID)
	}
	return len(expired)
}

// Start launches the janitor that runs Cleanup every interval.
func (st *Store) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	janitorCtx, cancel := context.WithCancel(ctx)
	st.cancel = cancel

	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-janitorCtx.Done():
				return
			case <-ticker.C:
				st.Cleanup()
			}
		}
	}()
}

// Stop halts the janitor and releases every remaining session.
func (st *Store) Stop() {
	if st.cancel != nil {
		st.cancel()
	}
	st.wg.Wait()

	st.mu.Lock()
	all := make([]*Session, 0, len(st.sessions))
	for id, s := range st.sessions {
		all = append(all, s)
		delete(st.sessions, id)
	}
	st.mu.Unlock()
	for _, s := range all {
		s.close()
	}
}
