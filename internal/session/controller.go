package session

import (
	"context"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duo/internal/domain"
	"github.com/dkeye/Duo/internal/protocol"
)

const eventBuffer = 64

type Config struct {
	RoomID domain.RoomID
	// OfferFallback is how long the first arrival waits for an offer before
	// making one itself.
	OfferFallback time.Duration
	// HangupGrace delays teardown after sending hangup so the frame is flushed.
	HangupGrace    time.Duration
	ConnectTimeout time.Duration
}

type Deps struct {
	Media  MediaSource
	Peers  PeerFactory
	Dialer Dialer
	// Sink and Observer are optional.
	Sink     RemoteSink
	Observer func(Snapshot)
}

// Controller runs a single call. All negotiation state is owned by one event
// loop goroutine; transport, peer and timer callbacks only post events to it.
type Controller struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger

	events chan func()
	done   chan struct{}
	once   sync.Once

	// loop-owned
	polite        bool
	hangingUp     bool
	transportLost bool
	trackSeen     bool
	pending       []webrtc.ICECandidateInit

	mu        sync.Mutex
	started   bool
	snap      Snapshot
	media     LocalMedia
	peer      PeerConnection
	transport Transport
	fallback  *time.Timer
	grace     *time.Timer
}

func New(cfg Config, deps Deps) *Controller {
	return &Controller{
		cfg:    cfg,
		deps:   deps,
		log:    log.With().Str("module", "session").Str("room", string(cfg.RoomID)).Logger(),
		events: make(chan func(), eventBuffer),
		done:   make(chan struct{}),
	}
}

// Start acquires local media, connects to the relay and sends join. It
// returns once the join is sent; the rest of the call runs in the background
// until Done is closed. Cancelling ctx after Start returns hangs up.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	media, err := c.deps.Media.Acquire(ctx)
	if err != nil {
		return c.abort(KindMedia, MsgMediaFailed, err)
	}
	c.mu.Lock()
	c.media = media
	c.mu.Unlock()

	if err := c.buildPeer(media); err != nil {
		return c.abort(KindNegotiation, MsgCallFailed, err)
	}

	c.setState(StateJoining)

	dialCtx := ctx
	if c.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
	}
	transport, err := c.deps.Dialer.Dial(dialCtx, TransportEvents{
		OnMessage: func(m protocol.Message) {
			c.post(func() { c.handleMessage(m) })
		},
		OnClose: func(err error) {
			c.post(func() { c.handleTransportClosed(err) })
		},
	})
	if err != nil {
		return c.abort(KindTransport, MsgTransportFailed, err)
	}
	c.mu.Lock()
	c.transport = transport
	c.mu.Unlock()

	if err := transport.Send(protocol.Join{RoomID: c.cfg.RoomID}); err != nil {
		return c.abort(KindTransport, MsgTransportFailed, err)
	}
	c.log.Info().Msg("join sent")

	go c.run(ctx)
	return nil
}

// Hangup ends the call from this side. The other party is told first and
// local resources are released after the grace delay.
func (c *Controller) Hangup() {
	c.mu.Lock()
	if !c.started {
		c.started = true
		c.mu.Unlock()
		c.finish(StateEnded, EndLocalHangup)
		return
	}
	c.mu.Unlock()
	c.post(c.hangup)
}

// ToggleAudio flips the local microphone and reports whether it is now muted.
func (c *Controller) ToggleAudio() bool {
	return c.toggle(webrtc.RTPCodecTypeAudio)
}

// ToggleVideo flips the local camera and reports whether it is now off.
func (c *Controller) ToggleVideo() bool {
	return c.toggle(webrtc.RTPCodecTypeVideo)
}

func (c *Controller) toggle(kind webrtc.RTPCodecType) bool {
	c.mu.Lock()
	media := c.media
	off := c.snap.AudioMuted
	if kind == webrtc.RTPCodecTypeVideo {
		off = c.snap.VideoOff
	}
	c.mu.Unlock()
	if media == nil {
		return off
	}

	enabled := !media.Enabled(kind)
	if !media.SetEnabled(kind, enabled) {
		return off
	}
	c.update(func(s *Snapshot) {
		if kind == webrtc.RTPCodecTypeAudio {
			s.AudioMuted = !enabled
		} else {
			s.VideoOff = !enabled
		}
	})
	return !enabled
}

// DismissError clears the error slot. It never changes the call state.
func (c *Controller) DismissError() {
	c.update(func(s *Snapshot) { s.Err = nil })
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Done is closed once the call reached Ended or Failed and every resource
// was released.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// buildPeer creates a peer connection carrying every local track and makes
// it the current one. Callbacks from a connection that is no longer current
// are dropped.
func (c *Controller) buildPeer(media LocalMedia) error {
	peer, err := c.deps.Peers.NewPeer()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.peer = peer
	c.mu.Unlock()
	for _, track := range media.Tracks() {
		if err := peer.AddTrack(track); err != nil {
			return err
		}
	}
	peer.OnICECandidate(func(candidate webrtc.ICECandidateInit) {
		c.relayCandidate(peer, candidate)
	})
	peer.OnTrack(func(track RemoteTrack) {
		c.receiveTrack(peer, track)
	})
	peer.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.post(func() {
			if c.peer == peer {
				c.handlePeerState(s)
			}
		})
	})
	return nil
}

// replacePeer swaps the current peer connection for a fresh one. pion has no
// local rollback, so this is how a pending local offer is abandoned.
func (c *Controller) replacePeer() error {
	old := c.peer
	c.mu.Lock()
	media := c.media
	c.mu.Unlock()

	err := c.buildPeer(media)
	if cerr := old.Close(); cerr != nil {
		c.log.Warn().Err(cerr).Msg("close replaced peer")
	}
	return err
}

func (c *Controller) currentPeer() PeerConnection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peer
}

func (c *Controller) run(ctx context.Context) {
	ctxDone := ctx.Done()
	for {
		select {
		case <-c.done:
			return
		case fn := <-c.events:
			if c.finished() {
				return
			}
			fn()
		case <-ctxDone:
			ctxDone = nil
			c.hangup()
		}
	}
}

func (c *Controller) post(fn func()) {
	select {
	case c.events <- fn:
	case <-c.done:
	}
}

func (c *Controller) finished() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Controller) update(fn func(s *Snapshot)) {
	c.mu.Lock()
	fn(&c.snap)
	snap := c.snap
	c.mu.Unlock()
	if c.deps.Observer != nil {
		c.deps.Observer(snap)
	}
}

func (c *Controller) setState(s State) {
	c.log.Debug().Stringer("state", s).Msg("transition")
	c.update(func(snap *Snapshot) { snap.State = s })
}

func (c *Controller) state() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.State
}

func (c *Controller) setError(kind ErrorKind, msg string, err error) *Error {
	e := &Error{Kind: kind, Message: msg, Err: err}
	c.update(func(s *Snapshot) { s.Err = e })
	return e
}

// abort fails the call while Start is still running.
func (c *Controller) abort(kind ErrorKind, msg string, err error) error {
	c.log.Error().Err(err).Stringer("kind", kind).Msg(msg)
	e := c.setError(kind, msg, err)
	c.finish(StateFailed, EndFailed)
	return e
}

func (c *Controller) fail(kind ErrorKind, msg string, err error) {
	c.log.Error().Err(err).Stringer("kind", kind).Msg(msg)
	c.setError(kind, msg, err)
	c.finish(StateFailed, EndFailed)
}

// finish moves to a terminal state and releases everything exactly once.
func (c *Controller) finish(s State, reason EndReason) {
	c.once.Do(func() {
		c.log.Info().Stringer("state", s).Stringer("reason", reason).Msg("call finished")
		c.stopTimers()

		c.mu.Lock()
		media, peer, transport := c.media, c.peer, c.transport
		c.mu.Unlock()
		if media != nil {
			media.Stop()
		}
		if peer != nil {
			if err := peer.Close(); err != nil {
				c.log.Warn().Err(err).Msg("peer close")
			}
		}
		if transport != nil {
			_ = transport.Close()
		}

		c.update(func(snap *Snapshot) {
			snap.State = s
			snap.EndReason = reason
			if reason == EndPeerLost {
				snap.RemoteStreamID = ""
			}
		})
		close(c.done)
	})
}

func (c *Controller) stopTimers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fallback != nil {
		c.fallback.Stop()
	}
	if c.grace != nil {
		c.grace.Stop()
	}
}
