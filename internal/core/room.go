package core

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/protocol"
)

// Room owns the membership, lobby and screen-share state for one room.
// Every mutating operation takes the room mutex, and the snapshots that feed
// the resulting notifications are read under that same mutex, so concurrent
// events can never observe a torn membership list. Different rooms never
// share a lock.
//
// members keeps insertion order; that order is the host-succession order.
type Room struct {
	id domain.RoomID

	mu         sync.Mutex
	closed     bool
	host       domain.ConnID
	members    []*domain.Participant
	pending    []*domain.Participant
	shareOwner domain.ConnID
	shareID    string
	createdAt  time.Time
	seen       map[domain.ConnID]string

	notify Notifier
}

func NewRoom(id domain.RoomID, notify Notifier) *Room {
	return &Room{
		id:        id,
		createdAt: time.Now(),
		seen:      make(map[domain.ConnID]string),
		notify:    notify,
	}
}

func (r *Room) ID() domain.RoomID { return r.id }

// Join admits the first connection as host immediately; everyone after that
// is queued for host approval. A re-join from a connection already present
// is answered with the current state and mutates nothing.
//
// Reports false when the room has already been torn down: the caller
// resolved a stale instance and must look the id up again.
func (r *Room) Join(connID domain.ConnID, displayName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}

	if _, p := r.findMember(connID); p != nil {
		r.notify.Unicast(connID, protocol.Joined{
			Event:   protocol.EvJoined,
			Room:    r.id,
			Members: r.snapshot(),
			IsHost:  connID == r.host,
		})
		return true
	}
	if _, p := r.findPending(connID); p != nil {
		r.notify.Unicast(connID, protocol.WaitingApproval{Event: protocol.EvWaitingApproval, Room: r.id})
		return true
	}

	p := domain.NewParticipant(connID, displayName)
	r.seen[connID] = p.DisplayName

	if len(r.members) == 0 {
		// First come, first host. No approval round.
		p.Admitted = true
		r.members = append(r.members, p)
		r.host = connID
		log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("conn", string(connID)).Msg("first join, promoted to host")

		r.notify.Unicast(connID, protocol.Joined{
			Event:   protocol.EvJoined,
			Room:    r.id,
			Members: r.snapshot(),
			IsHost:  true,
		})
		r.broadcastJoined(p)
		return true
	}

	r.pending = append(r.pending, p)
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("conn", string(connID)).Msg("queued pending approval")

	r.notify.Unicast(connID, protocol.WaitingApproval{Event: protocol.EvWaitingApproval, Room: r.id})
	r.notify.Unicast(r.host, protocol.JoinPending{
		Event:    protocol.EvJoinPending,
		Room:     r.id,
		UserID:   connID,
		Username: p.DisplayName,
	})
	return true
}

// Approve moves a pending participant into the members tail. Host only;
// anything else is a logged no-op.
func (r *Room) Approve(caller, target domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.host {
		log.Warn().Str("module", "core.room").Str("room", string(r.id)).Str("conn", string(caller)).Msg("approve from non-host ignored")
		return
	}
	i, p := r.findPending(target)
	if p == nil {
		return
	}
	r.pending = append(r.pending[:i], r.pending[i+1:]...)
	p.Admitted = true
	r.members = append(r.members, p)

	approved := protocol.Approved{
		Event:   protocol.EvApproved,
		Room:    r.id,
		Members: r.snapshot(),
	}
	if r.shareOwner != "" {
		approved.SharingID = r.shareID
	}
	r.notify.Unicast(target, approved)
	r.broadcastJoined(p)
}

// Reject removes a pending participant and tells it so. Host only.
// The pending list is host-private, so there is no room broadcast.
// Reports whether the target was actually removed, so the caller can drop
// its reverse-index entry.
func (r *Room) Reject(caller, target domain.ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.host {
		log.Warn().Str("module", "core.room").Str("room", string(r.id)).Str("conn", string(caller)).Msg("reject from non-host ignored")
		return false
	}
	i, p := r.findPending(target)
	if p == nil {
		return false
	}
	r.pending = append(r.pending[:i], r.pending[i+1:]...)
	r.notify.Unicast(target, protocol.Rejected{Event: protocol.EvRejected, Room: r.id})
	return true
}

// UpdateMedia applies only the fields present. No-op for connections that
// are not admitted members.
func (r *Room) UpdateMedia(connID domain.ConnID, mic, cam *bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, p := r.findMember(connID)
	if p == nil {
		return
	}
	if mic != nil {
		p.MicOn = *mic
	}
	if cam != nil {
		p.CamOn = *cam
	}
	r.broadcastMembers()
}

// RaiseHand notifies the host directly and broadcasts to the room. The host
// receives both; clients depend on the duplicate, so it is not deduplicated.
func (r *Room) RaiseHand(connID domain.ConnID, raised bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, p := r.findMember(connID)
	if p == nil {
		return
	}
	p.HandRaised = raised

	ev := protocol.RaiseHand{
		Event:    protocol.EvRaiseHand,
		Room:     r.id,
		From:     connID,
		Username: p.DisplayName,
		Raised:   raised,
	}
	r.notify.Unicast(r.host, ev)
	r.notify.Broadcast(r.memberIDs(), ev)
	r.broadcastMembers()
}

// StartScreenShare records the share owner. A start while another owner is
// active overwrites it: last writer wins, no queueing.
func (r *Room) StartScreenShare(connID domain.ConnID, sharingID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, p := r.findMember(connID); p == nil {
		return
	}
	r.shareOwner = connID
	r.shareID = sharingID
	r.notify.Broadcast(r.memberIDs(), protocol.ScreenShareStarted{
		Event:     protocol.EvScreenShareStarted,
		Room:      r.id,
		SharingID: sharingID,
	})
}

func (r *Room) StopScreenShare(connID domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, p := r.findMember(connID); p == nil {
		return
	}
	r.shareOwner = ""
	r.shareID = ""
	r.notify.Broadcast(r.memberIDs(), protocol.ScreenShareStopped{Event: protocol.EvScreenShareStopped, Room: r.id})
}

// Leave removes the connection from whichever of members/pending holds it.
// A departing host is succeeded by the first remaining member in arrival
// order. Reports whether the room is now empty; the registry deletes empty
// rooms as part of the same event.
func (r *Room) Leave(connID domain.ConnID) (removed, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i, p := r.findPending(connID); p != nil {
		r.pending = append(r.pending[:i], r.pending[i+1:]...)
		// The host's pending view refreshes on its own; membership is
		// re-broadcast anyway to keep client state simple.
		r.broadcastMembers()
		return true, r.emptyLocked()
	}

	i, p := r.findMember(connID)
	if p == nil {
		return false, r.emptyLocked()
	}
	r.members = append(r.members[:i], r.members[i+1:]...)

	if r.shareOwner == connID {
		r.shareOwner = ""
		r.shareID = ""
		r.notify.Broadcast(r.memberIDs(), protocol.ScreenShareStopped{Event: protocol.EvScreenShareStopped, Room: r.id})
	}

	r.notify.Broadcast(r.memberIDs(), protocol.UserLeft{
		Event:    protocol.EvUserLeft,
		Room:     r.id,
		ID:       connID,
		Username: p.DisplayName,
	})

	if r.host == connID {
		r.host = ""
		if len(r.members) > 0 {
			r.host = r.members[0].ConnID
			log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("conn", string(r.host)).Msg("host left, promoted successor")
			r.notify.Unicast(r.host, protocol.PromotedHost{Event: protocol.EvPromotedHost, Room: r.id})
		}
	}

	r.broadcastMembers()
	return true, r.emptyLocked()
}

// Snapshot returns value copies of the admitted members in arrival order.
func (r *Room) Snapshot() []domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

func (r *Room) Host() domain.ConnID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.host
}

func (r *Room) ShareOwner() domain.ConnID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shareOwner
}

func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (r *Room) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Room) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emptyLocked()
}

// Stats reports the data the meeting-history collaborator wants at teardown:
// when the room started and every display name that ever entered it.
func (r *Room) Stats() (createdAt time.Time, participants []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	participants = make([]string, 0, len(r.seen))
	for _, name := range r.seen {
		participants = append(participants, name)
	}
	return r.createdAt, participants
}

// closeIfEmpty marks the room torn down when nothing occupies it. A closed
// room refuses joins, so a caller that resolved the instance before the
// teardown cannot strand a member in a room the registry no longer holds.
func (r *Room) closeIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.emptyLocked() {
		return false
	}
	r.closed = true
	return true
}

// ---- internals, all called with r.mu held ----

func (r *Room) emptyLocked() bool {
	return len(r.members) == 0 && len(r.pending) == 0
}

func (r *Room) findMember(id domain.ConnID) (int, *domain.Participant) {
	for i, p := range r.members {
		if p.ConnID == id {
			return i, p
		}
	}
	return -1, nil
}

func (r *Room) findPending(id domain.ConnID) (int, *domain.Participant) {
	for i, p := range r.pending {
		if p.ConnID == id {
			return i, p
		}
	}
	return -1, nil
}

func (r *Room) snapshot() []domain.Participant {
	out := make([]domain.Participant, 0, len(r.members))
	for _, p := range r.members {
		out = append(out, *p)
	}
	return out
}

func (r *Room) memberIDs() []domain.ConnID {
	out := make([]domain.ConnID, 0, len(r.members))
	for _, p := range r.members {
		out = append(out, p.ConnID)
	}
	return out
}

func (r *Room) broadcastMembers() {
	r.notify.Broadcast(r.memberIDs(), protocol.Members{
		Event:   protocol.EvMembers,
		Room:    r.id,
		Members: r.snapshot(),
	})
}

func (r *Room) broadcastJoined(p *domain.Participant) {
	r.notify.Broadcast(r.memberIDs(), protocol.UserJoined{
		Event:    protocol.EvUserJoined,
		Room:     r.id,
		ID:       p.ConnID,
		Username: p.DisplayName,
	})
	r.broadcastMembers()
}
