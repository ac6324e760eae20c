// Package history records finished meetings for the out-of-band history
// collaborator. The signaling core reports teardowns here but never depends
// on a record landing.
package history

import (
	"context"
	"time"
)

// Session is one finished meeting: the room, everyone who ever entered it,
// and its lifetime.
type Session struct {
	RoomID       string
	Participants []string
	StartedAt    time.Time
	EndedAt      time.Time
}

type Recorder interface {
	Record(ctx context.Context, s Session) error
	Close() error
}

// Nop discards records; used when no history store is configured.
type Nop struct{}

func (Nop) Record(context.Context, Session) error { return nil }
func (Nop) Close() error                          { return nil }
