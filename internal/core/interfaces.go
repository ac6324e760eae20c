package core

import "github.com/huddlehq/huddle/internal/domain"

// Sender is the transport endpoint for one connection.
// Owned by the adapter; the adapter must Close() it.
type Sender interface {
	TrySend(data []byte) error
	Close()
}

// Notifier pushes events out to connections. Room operations call it while
// holding the room lock so that every emitted snapshot is consistent;
// implementations must therefore never block.
type Notifier interface {
	Unicast(to domain.ConnID, v any)
	Broadcast(to []domain.ConnID, v any)
}

// RoomInfo is a read-only view for APIs (no transport fields).
type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"memberCount"`
}
