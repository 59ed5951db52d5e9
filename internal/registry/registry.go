// Package registry owns the global set of live sessions and the reusable
// id pool bounded at the configured session capacity. It is mutated only
// by the I/O thread, never by worker goroutines.
package registry

import (
	"errors"

	"pongserver/internal/session"
)

// ErrRegistryFull is returned when the live session count has reached the
// registry's configured capacity.
var ErrRegistryFull = errors.New("registry: session capacity exhausted")

// ErrSessionNotFound is returned by operations addressing a session id
// that isn't currently live.
var ErrSessionNotFound = errors.New("registry: session not found")

// Registry tracks live sessions in creation order alongside a free list
// of reusable ids. Not safe for concurrent use; callers (the I/O thread)
// serialize all access, and the scheduler only ever touches sessions it
// was handed for the current tick.
type Registry struct {
	maxSessions int

	sessions map[uint32]*session.Session
	order    []uint32
	freeIDs  []uint32
	nextID   uint32
}

// New returns an empty registry that rejects Create once it holds
// maxSessions live sessions, matching the operator-configured limit
// (config.Config.MaxSessions) rather than a fixed ceiling.
func New(maxSessions int) *Registry {
	return &Registry{
		maxSessions: maxSessions,
		sessions:    make(map[uint32]*session.Session),
	}
}

// Create allocates a fresh id, constructs a session with it via newFn, and
// registers it. newFn receives the allocated id so the caller can build
// the session in one step.
func (r *Registry) Create(newFn func(id uint32) *session.Session) (*session.Session, error) {
	if len(r.sessions) >= r.maxSessions {
		return nil, ErrRegistryFull
	}

	id := r.allocateID()
	s := newFn(id)
	r.sessions[id] = s
	r.order = append(r.order, id)
	return s, nil
}

func (r *Registry) allocateID() uint32 {
	if n := len(r.freeIDs); n > 0 {
		id := r.freeIDs[n-1]
		r.freeIDs = r.freeIDs[:n-1]
		return id
	}
	id := r.nextID
	r.nextID++
	return id
}

// Get looks up a live session by id.
func (r *Registry) Get(id uint32) (*session.Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// Remove deletes a session and releases its id for reuse.
func (r *Registry) Remove(id uint32) error {
	if _, ok := r.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	r.freeIDs = append(r.freeIDs, id)
	r.removeFromOrder(id)
	return nil
}

func (r *Registry) removeFromOrder(id uint32) {
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

// Len reports the number of currently live sessions.
func (r *Registry) Len() int { return len(r.sessions) }

// All returns the live sessions in registry (creation) order. The slice is
// owned by the caller; mutating it does not affect the registry.
func (r *Registry) All() []*session.Session {
	out := make([]*session.Session, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sessions[id])
	}
	return out
}

// Running returns the subset of live sessions with an active round, in
// registry order — the set the scheduler partitions across workers each
// tick.
func (r *Registry) Running() []*session.Session {
	out := make([]*session.Session, 0, len(r.order))
	for _, id := range r.order {
		s := r.sessions[id]
		if s.IsRoundRunning() {
			out = append(out, s)
		}
	}
	return out
}

// RemoveEnded deletes every session with SessionEnded set, releasing its
// id, and returns how many were removed.
func (r *Registry) RemoveEnded() int {
	removed := 0
	for _, id := range append([]uint32(nil), r.order...) {
		if r.sessions[id].IsSessionEnded() {
			_ = r.Remove(id)
			removed++
		}
	}
	return removed
}
