package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/huddlehq/huddle/internal/core"
	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/history"
	"github.com/huddlehq/huddle/internal/protocol"
)

const historyTimeout = 5 * time.Second

// Handler binds inbound named events from a connection to room, registry and
// relay operations. The sender identity is always the transport-assigned
// connection id, never a client-supplied field, so a client cannot speak as
// the host or as another peer. Malformed or unauthorized events degrade to
// logged no-ops; the room stays available.
type Handler struct {
	Conns   *core.ConnRegistry
	Rooms   *core.RoomRegistry
	Relay   *Relay
	Notify  core.Notifier
	History history.Recorder
	Limiter *JoinLimiter
}

func NewHandler(
	conns *core.ConnRegistry,
	rooms *core.RoomRegistry,
	relay *Relay,
	notify core.Notifier,
	rec history.Recorder,
	limiter *JoinLimiter,
) *Handler {
	if rec == nil {
		rec = history.Nop{}
	}
	return &Handler{
		Conns:   conns,
		Rooms:   rooms,
		Relay:   relay,
		Notify:  notify,
		History: rec,
		Limiter: limiter,
	}
}

// HandleEvent dispatches one inbound frame. Events from the same connection
// arrive in order (single read loop per socket); events from different
// connections race and are serialized per room by the room itself.
func (h *Handler) HandleEvent(from domain.ConnID, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "app.handler").Str("conn", string(from)).Msg("bad json")
		return
	}

	switch env.Event {
	case protocol.EvJoinRequest:
		h.handleJoin(from, data)
	case protocol.EvApproveJoin:
		h.handleApprove(from, data)
	case protocol.EvRejectJoin:
		h.handleReject(from, data)
	case protocol.EvGetMembers:
		h.handleGetMembers(from, data)
	case protocol.EvSignal:
		h.handleSignal(from, data)
	case protocol.EvMediaUpdate:
		h.handleMediaUpdate(from, data)
	case protocol.EvRaiseHand:
		h.handleRaiseHand(from, data)
	case protocol.EvScreenShareStarted:
		h.handleShareStarted(from, data)
	case protocol.EvScreenShareStopped:
		h.handleShareStopped(from, data)
	case protocol.EvLeave:
		h.leaveRoom(from)
	case protocol.EvPing:
		h.Notify.Unicast(from, protocol.Pong{Event: protocol.EvPong})
	default:
		log.Warn().Str("module", "app.handler").Str("event", env.Event).Msg("unknown event")
	}
}

// OnDisconnect is the single mandatory cleanup path: remove the connection
// from its room, then drop its registry entry. No other handler may leave
// room state and registry state out of step.
func (h *Handler) OnDisconnect(from domain.ConnID) {
	h.leaveRoom(from)
	if h.Limiter != nil {
		h.Limiter.Forget(from)
	}
	h.Conns.Unbind(from)
}

func (h *Handler) handleJoin(from domain.ConnID, data []byte) {
	var p protocol.JoinRequest
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "app.handler").Msg("bad join-request payload")
		return
	}
	if err := domain.ValidateRoomID(p.Room); err != nil {
		log.Warn().Err(err).Str("module", "app.handler").Str("conn", string(from)).Msg("join-request dropped")
		return
	}
	if h.Limiter != nil && !h.Limiter.Allow(from) {
		log.Warn().Str("module", "app.handler").Str("conn", string(from)).Msg("join-request rate limited")
		return
	}

	// A connection occupies at most one room; switching rooms implies
	// leaving the old one first. Re-joining the same room is idempotent.
	if cur, ok := h.Conns.RoomOf(from); ok && cur != p.Room {
		h.leaveRoom(from)
	}

	// Associate before admitting, so a host decision delivered during the
	// join cannot have its registry cleanup overwritten by this handler.
	h.Conns.SetRoom(from, p.Room)
	for {
		room := h.Rooms.GetOrCreate(p.Room)
		if room.Join(from, p.Username) {
			return
		}
		// Lost the race with an empty-room teardown: the instance we
		// resolved is closed and already out of the registry, so the
		// next lookup creates the id fresh.
	}
}

func (h *Handler) handleApprove(from domain.ConnID, data []byte) {
	var p protocol.ApproveJoin
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "app.handler").Msg("bad approve-join payload")
		return
	}
	room, ok := h.Rooms.Get(p.Room)
	if !ok {
		return
	}
	room.Approve(from, p.UserID)
}

func (h *Handler) handleReject(from domain.ConnID, data []byte) {
	var p protocol.RejectJoin
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "app.handler").Msg("bad reject-join payload")
		return
	}
	room, ok := h.Rooms.Get(p.Room)
	if !ok {
		return
	}
	if room.Reject(from, p.UserID) {
		h.Conns.ClearRoom(p.UserID)
	}
}

func (h *Handler) handleGetMembers(from domain.ConnID, data []byte) {
	var p protocol.GetMembers
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "app.handler").Msg("bad get-members payload")
		return
	}
	members := []domain.Participant{}
	if room, ok := h.Rooms.Get(p.Room); ok {
		members = room.Snapshot()
	}
	// Point query, sender only; a deleted room reads as empty.
	h.Notify.Unicast(from, protocol.Members{
		Event:   protocol.EvMembers,
		Room:    p.Room,
		Members: members,
	})
}

func (h *Handler) handleSignal(from domain.ConnID, data []byte) {
	var p protocol.SignalIn
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "app.handler").Msg("bad signal payload")
		return
	}
	if p.To == "" {
		log.Warn().Str("module", "app.handler").Str("conn", string(from)).Msg("signal without target dropped")
		return
	}
	h.Relay.Forward(from, p.To, p.Type, p.Data)
}

func (h *Handler) handleMediaUpdate(from domain.ConnID, data []byte) {
	var p protocol.MediaUpdate
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "app.handler").Msg("bad media-update payload")
		return
	}
	room, ok := h.Rooms.Get(p.Room)
	if !ok {
		return
	}
	room.UpdateMedia(from, p.Mic, p.Cam)
}

func (h *Handler) handleRaiseHand(from domain.ConnID, data []byte) {
	var p protocol.RaiseHandIn
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "app.handler").Msg("bad raise-hand payload")
		return
	}
	room, ok := h.Rooms.Get(p.Room)
	if !ok {
		return
	}
	room.RaiseHand(from, p.Raised)
}

func (h *Handler) handleShareStarted(from domain.ConnID, data []byte) {
	var p protocol.ScreenShareStartedIn
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "app.handler").Msg("bad screen-share-started payload")
		return
	}
	room, ok := h.Rooms.Get(p.Room)
	if !ok {
		return
	}
	room.StartScreenShare(from, p.SharingID)
}

func (h *Handler) handleShareStopped(from domain.ConnID, data []byte) {
	var p protocol.ScreenShareStoppedIn
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "app.handler").Msg("bad screen-share-stopped payload")
		return
	}
	room, ok := h.Rooms.Get(p.Room)
	if !ok {
		return
	}
	room.StopScreenShare(from)
}

// leaveRoom removes the connection from its current room, deletes the room
// if that emptied it, and clears the reverse index entry.
func (h *Handler) leaveRoom(from domain.ConnID) {
	roomID, ok := h.Conns.RoomOf(from)
	if !ok {
		return
	}
	if room, ok := h.Rooms.Get(roomID); ok {
		_, empty := room.Leave(from)
		if empty {
			if removed, ok := h.Rooms.DeleteIfEmpty(roomID); ok {
				h.recordSession(removed)
			}
		}
	}
	h.Conns.ClearRoom(from)
}

func (h *Handler) recordSession(room *core.Room) {
	startedAt, participants := room.Stats()
	s := history.Session{
		RoomID:       string(room.ID()),
		Participants: participants,
		StartedAt:    startedAt,
		EndedAt:      time.Now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		defer cancel()
		if err := h.History.Record(ctx, s); err != nil {
			log.Warn().Err(err).Str("module", "app.handler").Str("room", s.RoomID).Msg("history record failed")
		}
	}()
}
