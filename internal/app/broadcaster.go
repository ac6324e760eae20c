package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/huddlehq/huddle/internal/core"
	"github.com/huddlehq/huddle/internal/domain"
)

// Broadcaster resolves connection ids to their transport endpoints and
// delivers formatted events, either to one addressed connection or to every
// occupant of a room. Delivery is TrySend: a slow consumer drops the frame
// instead of blocking the room lock held by the caller.
type Broadcaster struct {
	conns *core.ConnRegistry
}

func NewBroadcaster(conns *core.ConnRegistry) *Broadcaster {
	return &Broadcaster{conns: conns}
}

func (b *Broadcaster) Unicast(to domain.ConnID, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.broadcast").Msg("marshal event")
		return
	}
	b.send(to, data)
}

func (b *Broadcaster) Broadcast(to []domain.ConnID, v any) {
	if len(to) == 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.broadcast").Msg("marshal event")
		return
	}
	for _, id := range to {
		b.send(id, data)
	}
}

func (b *Broadcaster) send(to domain.ConnID, data []byte) {
	s, ok := b.conns.SenderOf(to)
	if !ok {
		log.Debug().Str("module", "app.broadcast").Str("conn", string(to)).Msg("no sender, dropped")
		return
	}
	if err := s.TrySend(data); err != nil {
		log.Warn().Err(err).Str("module", "app.broadcast").Str("conn", string(to)).Msg("send failed, dropped")
	}
}
