package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/huddlehq/huddle/internal/core"
	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/protocol"
)

// Relay is the stateless pass-through for peer-negotiation payloads. It
// stamps the transport-assigned sender identity and forwards the payload
// byte-for-byte; it never looks inside. A target that is no longer live is
// a silent drop: negotiation layers above are expected to renegotiate.
type Relay struct {
	conns *core.ConnRegistry
}

func NewRelay(conns *core.ConnRegistry) *Relay {
	return &Relay{conns: conns}
}

func (r *Relay) Forward(from, to domain.ConnID, signalType string, data json.RawMessage) {
	if to == "" {
		return
	}
	s, ok := r.conns.SenderOf(to)
	if !ok {
		log.Debug().Str("module", "app.relay").Str("to", string(to)).Msg("target gone, dropped")
		return
	}
	out, err := json.Marshal(protocol.Signal{
		Event: protocol.EvSignal,
		From:  from,
		Type:  signalType,
		Data:  data,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Msg("marshal signal")
		return
	}
	if err := s.TrySend(out); err != nil {
		log.Warn().Err(err).Str("module", "app.relay").Str("to", string(to)).Msg("send failed, dropped")
	}
}
