package checkin

import (
	"context"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
)

// Registry owns the open sessions of the app.
// An event has at most one session: opening a new one closes the previous.
// A session nobody fetched for Settings.IdleTimeout is closed and forgotten.
type Registry struct {
	ctx      context.Context
	settings Settings
	deps     Deps

	mu       sync.RWMutex
	sessions map[string]*Session     // {sessionID: *Session}
	byEvent  map[string]string       // {eventID: sessionID}
	idle     map[string]*clock.Timer // {sessionID: expiry timer}
}

func NewRegistry(settings Settings, deps Deps) *Registry {
	return &Registry{
		ctx:      context.Background(),
		settings: settings,
		deps:     withDefaults(deps),
		sessions: make(map[string]*Session),
		byEvent:  make(map[string]string),
		idle:     make(map[string]*clock.Timer),
	}
}

// Open opens a new Session for `target`, replacing the current session of the same event.
func (r *Registry) Open(target Target) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prevID, ok := r.byEvent[target.EventID]; ok {
		r.forgetLocked(prevID)
	}

	s := Open(r.ctx, target, r.settings, r.deps)
	id := s.ID()
	r.sessions[id] = s
	r.byEvent[target.EventID] = id
	if r.settings.IdleTimeout > 0 {
		r.idle[id] = r.deps.Clock.AfterFunc(r.settings.IdleTimeout, func() { r.expire(s) })
	}
	r.deps.Logger.Debug(fmt.Sprintf("checkin: session %s opened for event %s", id, target.EventID))
	return s
}

// Get returns the session `id` and postpones its idle expiry.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if timer, ok := r.idle[id]; ok {
		timer.Reset(r.settings.IdleTimeout)
	}
	return s, nil
}

// Close closes and forgets the session `id`.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.forgetLocked(id) {
		return ErrSessionNotFound
	}
	return nil
}

// CloseEvent closes the session of `eventID`, if any, and reports whether there was one.
func (r *Registry) CloseEvent(eventID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byEvent[eventID]
	if !ok {
		return false
	}
	r.forgetLocked(id)
	delete(r.byEvent, eventID)
	return true
}

func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.sessions {
		r.forgetLocked(id)
	}
	r.byEvent = make(map[string]string)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// expire drops `s` once it went idle, unless it was already replaced or closed.
func (r *Registry) expire(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[s.ID()] != s {
		return
	}
	r.forgetLocked(s.ID())
	r.deps.Logger.Info(fmt.Sprintf("checkin: session %s of event %s expired", s.ID(), s.Target().EventID))
}

// forgetLocked closes the session `id` and drops every reference to it.
func (r *Registry) forgetLocked(id string) bool {
	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	s.Close()
	delete(r.sessions, id)
	if timer, ok := r.idle[id]; ok {
		timer.Stop()
		delete(r.idle, id)
	}
	if r.byEvent[s.Target().EventID] == id {
		delete(r.byEvent, s.Target().EventID)
	}
	return true
}
