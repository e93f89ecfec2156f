package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duo/internal/app"
	"github.com/dkeye/Duo/internal/core"
	"github.com/dkeye/Duo/internal/domain"
	"github.com/dkeye/Duo/internal/protocol"
)

// Join admits the connection into roomID. The joiner is queued a joined
// message carrying the pre-admission size and the member already present is
// queued user-joined, both under the room lock.
func (o *Orchestrator) Join(id domain.ClientID, roomID domain.RoomID) (int, error) {
	sess, ok := o.Registry.GetSession(id)
	if !ok {
		return 0, app.ErrUnknownClient
	}
	if err := o.Registry.ClaimRoom(id, roomID); err != nil {
		return 0, err
	}

	welcome := func(prior int) core.Frame {
		return protocol.MustEncode(protocol.Joined{ClientID: id, RoomSize: prior})
	}
	notify := core.Frame(protocol.MustEncode(protocol.UserJoined{}))

	_, prior, err := o.Rooms.Join(roomID, sess, welcome, notify)
	if err != nil {
		o.Registry.ReleaseRoom(id)
		log.Info().Err(err).Str("module", "orch").Str("client_id", string(id)).
			Str("room", string(roomID)).Msg("join rejected")
		return 0, err
	}
	log.Info().Str("module", "orch").Str("client_id", string(id)).
		Str("room", string(roomID)).Int("room_size", prior).Msg("joined")
	return prior, nil
}

// Leave removes the connection from its room, if any.
func (o *Orchestrator) Leave(id domain.ClientID) bool {
	roomID, _, ok := o.Registry.RoomOf(id)
	if !ok {
		return false
	}
	removed := o.Rooms.Leave(roomID, id)
	o.Registry.ReleaseRoom(id)
	log.Info().Str("module", "orch").Str("client_id", string(id)).Str("room", string(roomID)).Msg("left")
	return removed
}

// Kick removes the member from its room and cancels its connection.
func (o *Orchestrator) Kick(id domain.ClientID) {
	o.Leave(id)
	o.Registry.Cancel(id)
}
