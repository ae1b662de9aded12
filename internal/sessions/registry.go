package sessions

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is an isolated execution context for one (job, worker) pair.
// A worker invocation running inside a session never observes state from
// another worker or another job.
type Session struct {
	ID        string
	JobID     string
	Worker    string
	CreatedAt time.Time
}

// Registry hands out sessions keyed by (job, worker). Sessions live for the
// process lifetime; there is no independent teardown.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

func key(jobID, worker string) string {
	return fmt.Sprintf("%s/%s", jobID, worker)
}

// Create returns the session for (jobID, worker), allocating it on first use.
// Repeated calls for the same pair return the same session.
func (r *Registry) Create(jobID, worker string) *Session {
	k := key(jobID, worker)

	r.mu.RLock()
	s, ok := r.sessions[k]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[k]; ok {
		return s
	}
	s = &Session{
		ID:        uuid.New().String(),
		JobID:     jobID,
		Worker:    worker,
		CreatedAt: time.Now(),
	}
	r.sessions[k] = s
	return s
}

// Get looks up an existing session without allocating one.
func (r *Registry) Get(jobID, worker string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[key(jobID, worker)]
	return s, ok
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
