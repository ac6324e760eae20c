package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/huddlehq/huddle/internal/domain"
)

// RoomRegistry creates rooms on first join, looks them up by id and deletes
// them once empty. The insert-if-absent is serialized on the registry mutex,
// independent of any room's own lock, so two connections racing to create
// the same unseen id always observe a single Room instance.
type RoomRegistry struct {
	mu     sync.RWMutex
	rooms  map[domain.RoomID]*Room
	notify Notifier
}

func NewRoomRegistry(notify Notifier) *RoomRegistry {
	return &RoomRegistry{
		rooms:  make(map[domain.RoomID]*Room),
		notify: notify,
	}
}

func (rr *RoomRegistry) GetOrCreate(id domain.RoomID) *Room {
	rr.mu.RLock()
	room, ok := rr.rooms[id]
	rr.mu.RUnlock()
	if ok {
		return room
	}

	rr.mu.Lock()
	defer rr.mu.Unlock()
	if room, ok = rr.rooms[id]; ok {
		return room
	}
	room = NewRoom(id, rr.notify)
	rr.rooms[id] = room
	log.Info().Str("module", "core.rooms").Str("room", string(id)).Msg("room created")
	return room
}

func (rr *RoomRegistry) Get(id domain.RoomID) (*Room, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	room, ok := rr.rooms[id]
	return room, ok
}

// DeleteIfEmpty removes the room when both members and pending are empty.
// The room is closed under its own lock while the registry lock is held, so
// a join that resolved the instance before the removal is refused instead of
// landing in an orphan. Returns the removed room so the caller can hand its
// stats to the history collaborator.
func (rr *RoomRegistry) DeleteIfEmpty(id domain.RoomID) (*Room, bool) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	room, ok := rr.rooms[id]
	if !ok || !room.closeIfEmpty() {
		return nil, false
	}
	delete(rr.rooms, id)
	log.Info().Str("module", "core.rooms").Str("room", string(id)).Msg("room deleted")
	return room, true
}

func (rr *RoomRegistry) List() []RoomInfo {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	out := make([]RoomInfo, 0, len(rr.rooms))
	for id, room := range rr.rooms {
		out = append(out, RoomInfo{ID: id, MemberCount: room.MemberCount()})
	}
	return out
}
