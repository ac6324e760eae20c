package core

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/huddlehq/huddle/internal/domain"
)

type connEntry struct {
	RoomID domain.RoomID
	Sender Sender
	Cancel context.CancelFunc
}

// ConnRegistry tracks live connections and, for each, the room it currently
// occupies. It is the reverse index used to clean up a disconnecting
// connection without scanning all rooms, and the lookup table for addressed
// delivery.
type ConnRegistry struct {
	mu    sync.RWMutex
	conns map[domain.ConnID]*connEntry
}

func NewConnRegistry() *ConnRegistry {
	return &ConnRegistry{conns: make(map[domain.ConnID]*connEntry)}
}

// Bind registers a freshly attached connection with no room association yet.
func (r *ConnRegistry) Bind(id domain.ConnID, s Sender, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = &connEntry{Sender: s, Cancel: cancel}
	log.Info().Str("module", "core.registry").Str("conn", string(id)).Msg("bound connection")
}

// SetRoom records the room a connection occupies. Exactly one room at a time.
func (r *ConnRegistry) SetRoom(id domain.ConnID, roomID domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return false
	}
	e.RoomID = roomID
	return true
}

func (r *ConnRegistry) ClearRoom(id domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[id]; ok {
		e.RoomID = ""
	}
}

func (r *ConnRegistry) RoomOf(id domain.ConnID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok || e.RoomID == "" {
		return "", false
	}
	return e.RoomID, true
}

func (r *ConnRegistry) SenderOf(id domain.ConnID) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	return e.Sender, true
}

// Unbind drops the connection entirely and cancels its context, if any.
func (r *ConnRegistry) Unbind(id domain.ConnID) {
	r.mu.Lock()
	e, ok := r.conns[id]
	delete(r.conns, id)
	r.mu.Unlock()
	if ok && e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "core.registry").Str("conn", string(id)).Msg("unbound connection")
}

func (r *ConnRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
