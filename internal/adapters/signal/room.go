package signal

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duo/internal/app"
	"github.com/dkeye/Duo/internal/core"
	"github.com/dkeye/Duo/internal/domain"
	"github.com/dkeye/Duo/internal/protocol"
)

func (ctl *SignalWSController) handleJoin(
	id domain.ClientID,
	conn *WsSignalConn,
	m protocol.Join,
) {
	log.Info().Str("module", "signal").Str("client_id", string(id)).Str("room", string(m.RoomID)).Msg("join")

	_, err := ctl.Orch.Join(id, m.RoomID)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrRoomFull):
		ctl.sendError(conn, protocol.ErrMsgRoomFull)
		conn.Close()
	case errors.Is(err, app.ErrAlreadyJoined):
		ctl.sendError(conn, protocol.ErrMsgAlreadyJoined)
	default:
		log.Error().Err(err).Str("module", "signal").Str("client_id", string(id)).Msg("join failed")
		ctl.sendError(conn, "Join failed")
	}
}
