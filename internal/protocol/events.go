// Package protocol defines the named-message wire format spoken over the
// signaling connection. The envelope discriminator is the "event" field;
// "type" stays free for the relayed negotiation payloads.
package protocol

import (
	"encoding/json"

	"github.com/huddlehq/huddle/internal/domain"
)

// Inbound event names.
const (
	EvJoinRequest        = "join-request"
	EvApproveJoin        = "approve-join"
	EvRejectJoin         = "reject-join"
	EvGetMembers         = "get-members"
	EvSignal             = "signal"
	EvMediaUpdate        = "media-update"
	EvRaiseHand          = "raise-hand"
	EvScreenShareStarted = "screen-share-started"
	EvScreenShareStopped = "screen-share-stopped"
	EvLeave              = "leave"
	EvPing               = "ping"
)

// Outbound event names.
const (
	EvJoined          = "joined"
	EvWaitingApproval = "waiting-approval"
	EvJoinPending     = "join-pending"
	EvApproved        = "approved"
	EvRejected        = "rejected"
	EvMembers         = "members"
	EvUserJoined      = "user-joined"
	EvUserLeft        = "user-left"
	EvPromotedHost    = "promoted-host"
	EvPong            = "pong"
)

// Envelope is the minimal view used to dispatch an inbound frame.
type Envelope struct {
	Event string `json:"event"`
}

// ---- inbound payloads ----

type JoinRequest struct {
	Room     domain.RoomID `json:"room"`
	Username string        `json:"username"`
}

type ApproveJoin struct {
	Room   domain.RoomID `json:"room"`
	UserID domain.ConnID `json:"userId"`
}

type RejectJoin struct {
	Room   domain.RoomID `json:"room"`
	UserID domain.ConnID `json:"userId"`
}

type GetMembers struct {
	Room domain.RoomID `json:"room"`
}

// SignalIn carries an opaque negotiation payload addressed to one
// connection. Data is never inspected.
type SignalIn struct {
	To   domain.ConnID   `json:"to"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MediaUpdate updates only the fields present.
type MediaUpdate struct {
	Room domain.RoomID `json:"room"`
	Mic  *bool         `json:"mic,omitempty"`
	Cam  *bool         `json:"cam,omitempty"`
}

type RaiseHandIn struct {
	Room   domain.RoomID `json:"room"`
	Raised bool          `json:"raised"`
}

type ScreenShareStartedIn struct {
	Room      domain.RoomID `json:"room"`
	SharingID string        `json:"sharingId"`
}

type ScreenShareStoppedIn struct {
	Room domain.RoomID `json:"room"`
}

// ---- outbound payloads ----

type Joined struct {
	Event   string               `json:"event"`
	Room    domain.RoomID        `json:"room"`
	Members []domain.Participant `json:"members"`
	IsHost  bool                 `json:"isHost"`
}

type WaitingApproval struct {
	Event string        `json:"event"`
	Room  domain.RoomID `json:"room"`
}

type JoinPending struct {
	Event    string        `json:"event"`
	Room     domain.RoomID `json:"room"`
	UserID   domain.ConnID `json:"userId"`
	Username string        `json:"username"`
}

type Approved struct {
	Event   string               `json:"event"`
	Room    domain.RoomID        `json:"room"`
	Members []domain.Participant `json:"members"`
	// SharingID carries the active screen-share stream, if any, so a
	// freshly admitted participant can attach to it.
	SharingID string `json:"sharingId,omitempty"`
}

type Rejected struct {
	Event string        `json:"event"`
	Room  domain.RoomID `json:"room"`
}

type Members struct {
	Event   string               `json:"event"`
	Room    domain.RoomID        `json:"room"`
	Members []domain.Participant `json:"members"`
}

type UserJoined struct {
	Event    string        `json:"event"`
	Room     domain.RoomID `json:"room"`
	ID       domain.ConnID `json:"id"`
	Username string        `json:"username"`
}

type UserLeft struct {
	Event    string        `json:"event"`
	Room     domain.RoomID `json:"room"`
	ID       domain.ConnID `json:"id"`
	Username string        `json:"username"`
}

// Signal is the relayed form of SignalIn: the sender identity is stamped
// by the relay, never taken from the client.
type Signal struct {
	Event string          `json:"event"`
	From  domain.ConnID   `json:"from"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
}

type RaiseHand struct {
	Event    string        `json:"event"`
	Room     domain.RoomID `json:"room"`
	From     domain.ConnID `json:"from"`
	Username string        `json:"username"`
	Raised   bool          `json:"raised"`
}

type ScreenShareStarted struct {
	Event     string        `json:"event"`
	Room      domain.RoomID `json:"room"`
	SharingID string        `json:"sharingId"`
}

type ScreenShareStopped struct {
	Event string        `json:"event"`
	Room  domain.RoomID `json:"room"`
}

type PromotedHost struct {
	Event string        `json:"event"`
	Room  domain.RoomID `json:"room"`
}

type Pong struct {
	Event string `json:"event"`
}
