package viewer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry holds the live sessions of the process. Nothing is persisted:
// a restart starts every viewer over from the seed.
type Registry struct {
	deps Deps
	ttl  time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(deps Deps, ttl time.Duration) *Registry {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Registry{deps: deps, ttl: ttl, sessions: map[string]*Session{}}
}

// Get returns an existing session.
func (r *Registry) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		s.Touch()
	}
	return s, ok
}

// Create starts a new session with a random id.
func (r *Registry) Create() *Session {
	s := NewSession(uuid.NewString(), r.deps)
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	r.deps.Log.Debug("session created", zap.String("session", s.ID))
	return s
}

// GetOrCreate returns the session for id, creating a new one when id is
// unknown or expired. created reports whether a new session was made.
func (r *Registry) GetOrCreate(id string) (s *Session, created bool) {
	if s, ok := r.Get(id); ok {
		return s, false
	}
	return r.Create(), true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep closes sessions idle for longer than the TTL with no mounted surface.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.Mounted() == 0 && now.Sub(s.IdleSince()) > r.ttl {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		r.deps.Log.Info("sessions expired", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// RunSweeper sweeps on every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}

// CloseAll shuts every session down.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = map[string]*Session{}
	r.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}
