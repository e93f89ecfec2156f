package session

import (
	"errors"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Duo/internal/protocol"
)

func (c *Controller) handleMessage(m protocol.Message) {
	if c.hangingUp {
		return
	}
	switch m := m.(type) {
	case protocol.Joined:
		c.handleJoined(m)
	case protocol.UserJoined:
		c.log.Info().Msg("peer joined the room")
	case protocol.Offer:
		c.handleOffer(m.SDP)
	case protocol.Answer:
		c.handleAnswer(m.SDP)
	case protocol.ICECandidate:
		c.handleCandidate(m.Candidate)
	case protocol.Hangup:
		c.log.Info().Msg("remote hangup")
		c.finish(StateEnded, EndRemoteHangup)
	case protocol.Error:
		c.handleRelayError(m.Message)
	default:
		c.log.Warn().Str("type", string(m.Type())).Msg("unexpected message from relay")
	}
}

// handleJoined elects the role: the member that found one other member
// already waiting makes the offer, the first arrival waits for it.
func (c *Controller) handleJoined(m protocol.Joined) {
	if c.state() != StateJoining {
		c.log.Warn().Msg("duplicate joined ignored")
		return
	}
	c.log.Info().Str("client_id", string(m.ClientID)).Int("room_size", m.RoomSize).Msg("joined")
	c.update(func(s *Snapshot) {
		s.ClientID = m.ClientID
		s.State = StateRoleElection
	})

	if m.RoomSize == 1 {
		c.makeOffer()
		return
	}
	c.polite = true
	if c.cfg.OfferFallback > 0 {
		c.mu.Lock()
		c.fallback = time.AfterFunc(c.cfg.OfferFallback, func() { c.post(c.handleFallback) })
		c.mu.Unlock()
	}
}

func (c *Controller) handleFallback() {
	snap := c.Snapshot()
	if snap.State != StateRoleElection || snap.Role != RoleUndetermined {
		return
	}
	c.log.Info().Dur("after", c.cfg.OfferFallback).Msg("no offer received, offering")
	c.makeOffer()
}

func (c *Controller) makeOffer() {
	offer, err := c.peer.CreateOffer()
	if err != nil {
		c.fail(KindNegotiation, MsgCallFailed, err)
		return
	}
	if err := c.peer.SetLocalDescription(offer); err != nil {
		c.fail(KindNegotiation, MsgCallFailed, err)
		return
	}
	c.update(func(s *Snapshot) {
		s.Role = RoleOfferer
		if s.State == StateRoleElection {
			s.State = StateNegotiating
		}
	})
	if err := c.transport.Send(protocol.Offer{SDP: offer}); err != nil {
		c.fail(KindTransport, MsgTransportFailed, err)
		return
	}
	c.log.Info().Msg("offer sent")
}

func (c *Controller) handleOffer(desc webrtc.SessionDescription) {
	if st := c.state(); st != StateRoleElection && st != StateNegotiating {
		c.log.Warn().Stringer("state", st).Msg("offer ignored")
		return
	}
	if c.peer.HasRemoteDescription() {
		c.log.Debug().Msg("duplicate offer ignored")
		return
	}
	if c.peer.SignalingState() == webrtc.SignalingStateHaveLocalOffer {
		// Both sides offered. The elected offerer keeps its offer; the side
		// that offered only on fallback starts over on a fresh connection.
		if !c.polite {
			c.log.Info().Msg("offer collision, keeping local offer")
			return
		}
		c.log.Info().Msg("offer collision, replacing peer connection")
		if err := c.replacePeer(); err != nil {
			c.fail(KindNegotiation, MsgCallFailed, err)
			return
		}
	}
	c.stopFallback()

	if err := c.peer.SetRemoteDescription(desc); err != nil {
		c.fail(KindNegotiation, MsgCallFailed, err)
		return
	}
	c.flushCandidates()

	answer, err := c.peer.CreateAnswer()
	if err != nil {
		c.fail(KindNegotiation, MsgCallFailed, err)
		return
	}
	if err := c.peer.SetLocalDescription(answer); err != nil {
		c.fail(KindNegotiation, MsgCallFailed, err)
		return
	}
	c.update(func(s *Snapshot) {
		s.Role = RoleAnswerer
		if s.State == StateRoleElection {
			s.State = StateNegotiating
		}
	})
	if err := c.transport.Send(protocol.Answer{SDP: answer}); err != nil {
		c.fail(KindTransport, MsgTransportFailed, err)
		return
	}
	c.log.Info().Msg("answer sent")
}

func (c *Controller) handleAnswer(desc webrtc.SessionDescription) {
	if c.peer.HasRemoteDescription() {
		c.log.Debug().Msg("duplicate answer ignored")
		return
	}
	if c.peer.SignalingState() != webrtc.SignalingStateHaveLocalOffer {
		c.log.Debug().Msg("answer without local offer ignored")
		return
	}
	if err := c.peer.SetRemoteDescription(desc); err != nil {
		c.log.Warn().Err(err).Msg("apply answer")
		return
	}
	c.flushCandidates()
	c.log.Info().Msg("answer applied")
}

// handleCandidate holds candidates that overtake the description they belong
// to until a remote description exists.
func (c *Controller) handleCandidate(candidate webrtc.ICECandidateInit) {
	if !c.peer.HasRemoteDescription() {
		c.pending = append(c.pending, candidate)
		return
	}
	c.addCandidate(candidate)
}

func (c *Controller) flushCandidates() {
	pending := c.pending
	c.pending = nil
	for _, candidate := range pending {
		c.addCandidate(candidate)
	}
}

func (c *Controller) addCandidate(candidate webrtc.ICECandidateInit) {
	if err := c.peer.AddICECandidate(candidate); err != nil {
		c.log.Debug().Err(err).Msg("add ice candidate")
	}
}

func (c *Controller) handleRelayError(msg string) {
	if msg == protocol.ErrMsgRoomFull {
		c.fail(KindProtocol, msg, ErrRoomFull)
		return
	}
	// the only frame sent while joining is the join itself
	if c.state() == StateJoining {
		c.fail(KindProtocol, msg, ErrJoinRejected)
		return
	}
	c.log.Warn().Str("reply", msg).Msg("relay error")
	c.setError(KindProtocol, msg, nil)
}

func (c *Controller) handleTransportClosed(err error) {
	c.transportLost = true
	if c.hangingUp {
		return
	}
	if err == nil {
		err = errors.New("relay closed the connection")
	}
	if c.state() == StateConnected {
		c.log.Warn().Err(err).Msg("relay connection lost")
		c.setError(KindTransport, MsgTransportFailed, err)
		return
	}
	c.fail(KindTransport, MsgTransportFailed, err)
}

func (c *Controller) handlePeerState(s webrtc.PeerConnectionState) {
	c.log.Info().Stringer("peer_state", s).Msg("peer connection state")
	if c.hangingUp {
		return
	}
	st := c.state()
	switch s {
	case webrtc.PeerConnectionStateConnected:
		if st == StateRoleElection || st == StateNegotiating {
			c.setState(StateConnected)
		}
	case webrtc.PeerConnectionStateDisconnected,
		webrtc.PeerConnectionStateFailed,
		webrtc.PeerConnectionStateClosed:
		if st == StateNegotiating || st == StateConnected {
			c.finish(StateEnded, EndPeerLost)
		}
	}
}

func (c *Controller) handleTrack(streamID string) {
	if c.hangingUp || c.trackSeen {
		return
	}
	c.trackSeen = true
	c.update(func(s *Snapshot) {
		s.RemoteStreamID = streamID
		if s.State == StateRoleElection || s.State == StateNegotiating {
			s.State = StateConnected
		}
	})
}

// hangup runs on the loop.
func (c *Controller) hangup() {
	if c.hangingUp || c.finished() {
		return
	}
	c.hangingUp = true
	c.stopFallback()

	if !c.transportLost && c.transport != nil {
		if err := c.transport.Send(protocol.Hangup{}); err == nil && c.cfg.HangupGrace > 0 {
			c.mu.Lock()
			c.grace = time.AfterFunc(c.cfg.HangupGrace, func() {
				c.post(func() { c.finish(StateEnded, EndLocalHangup) })
			})
			c.mu.Unlock()
			return
		}
	}
	c.finish(StateEnded, EndLocalHangup)
}

func (c *Controller) stopFallback() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fallback != nil {
		c.fallback.Stop()
		c.fallback = nil
	}
}

// relayCandidate runs on the peer connection's goroutine and only touches
// the transport, which is safe for concurrent use.
func (c *Controller) relayCandidate(peer PeerConnection, candidate webrtc.ICECandidateInit) {
	c.mu.Lock()
	transport, current := c.transport, c.peer
	c.mu.Unlock()
	if transport == nil || current != peer || c.finished() {
		return
	}
	if err := transport.Send(protocol.ICECandidate{Candidate: candidate}); err != nil {
		c.log.Debug().Err(err).Msg("relay candidate")
	}
}

// receiveTrack runs on the peer connection's goroutine for every remote
// track and blocks while the sink consumes it.
func (c *Controller) receiveTrack(peer PeerConnection, track RemoteTrack) {
	if c.currentPeer() != peer {
		return
	}
	c.log.Info().Str("track_id", track.ID()).Str("stream_id", track.StreamID()).
		Stringer("kind", track.Kind()).Msg("remote track")
	c.post(func() { c.handleTrack(track.StreamID()) })
	if c.deps.Sink != nil {
		c.deps.Sink.Consume(track)
	}
}
