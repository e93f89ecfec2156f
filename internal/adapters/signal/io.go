package signal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duo/internal/core"
	"github.com/dkeye/Duo/internal/domain"
	"github.com/dkeye/Duo/internal/protocol"
)

func (ctl *SignalWSController) writePump(ctx context.Context, cancel context.CancelFunc, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping failed")
				return
			}
		}
	}
}

// readPump owns the membership of the connection: leaving the loop for any
// reason removes it from its room.
func (ctl *SignalWSController) readPump(ctx context.Context, id domain.ClientID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("client_id", string(id)).Msg("readPump closing")
		ctl.Orch.Disconnect(id)
		ctl.Limiter.Forget(id)
		c.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.cfg.PongWait))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("module", "signal").Str("client_id", string(id)).Msg("readPump read error")
			}
			return
		}
		ctl.handleSignal(id, c, data)
	}
}

func (ctl *SignalWSController) handleSignal(id domain.ClientID, c *WsSignalConn, data []byte) {
	if !ctl.Limiter.Allow(id) {
		log.Warn().Str("module", "signal").Str("client_id", string(id)).Msg("rate limited")
		ctl.sendError(c, protocol.ErrMsgRateLimited)
		return
	}

	msg, err := protocol.Decode(data)
	if err != nil {
		var me *protocol.MalformedError
		if errors.As(err, &me) {
			log.Warn().Err(err).Str("module", "signal").Str("client_id", string(id)).Msg("bad message")
			ctl.sendError(c, me.Reply())
		}
		return
	}

	switch m := msg.(type) {
	case protocol.Join:
		ctl.handleJoin(id, c, m)
	default:
		if !protocol.Relayable(msg.Type()) {
			log.Warn().Str("module", "signal").Str("type", string(msg.Type())).Msg("unexpected signal")
			ctl.sendError(c, fmt.Sprintf("Unexpected message type %q", msg.Type()))
			return
		}
		// forwarded as received so fields this server does not model survive
		ctl.Orch.Relay(id, core.Frame(data))
	}
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, text string) {
	ctl.send(c, protocol.Error{Message: text})
}

func (ctl *SignalWSController) send(c *WsSignalConn, m protocol.Message) {
	b, err := protocol.Encode(m)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("send encode")
		return
	}
	_ = c.TrySend(b)
}
