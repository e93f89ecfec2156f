package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duo/internal/app"
	"github.com/dkeye/Duo/internal/core"
	"github.com/dkeye/Duo/internal/domain"
)

type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomManager
	Policy   app.Policy
}

func New(rooms core.RoomManager, registry *app.Registry, policy app.Policy) *Orchestrator {
	return &Orchestrator{Registry: registry, Rooms: rooms, Policy: policy}
}

// Connect registers a freshly accepted connection. cancel stops its pumps.
func (o *Orchestrator) Connect(ms core.MemberSession, cancel context.CancelFunc) {
	o.Registry.BindSignal(ms, cancel)
}

// Disconnect removes the connection from its room and forgets it.
func (o *Orchestrator) Disconnect(id domain.ClientID) {
	o.Leave(id)
	o.Registry.Unbind(id)
}

// Relay forwards data verbatim to the other member of the sender's room.
// Frames from connections that have not joined are dropped.
func (o *Orchestrator) Relay(from domain.ClientID, data core.Frame) int {
	roomID, _, ok := o.Registry.RoomOf(from)
	if !ok {
		log.Debug().Str("module", "orch").Str("client_id", string(from)).Msg("relay before join dropped")
		return 0
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return 0
	}

	res := room.Broadcast(from, data)
	if o.Policy == nil {
		return res.SendTo
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("client_id", string(slow.Meta().ID)).
				Str("room", string(roomID)).Msg("kick slow member")
			o.Kick(slow.Meta().ID)
		case app.NoAction:
		}
	}
	return res.SendTo
}

// Shutdown cancels every live connection.
func (o *Orchestrator) Shutdown() int {
	n := o.Registry.CancelAll()
	log.Info().Str("module", "orch").Int("connections", n).Msg("shutdown")
	return n
}
