package session

import (
	"context"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Duo/internal/protocol"
)

// PeerConnection is the subset of a WebRTC peer connection the controller
// drives. Callbacks may fire on any goroutine.
type PeerConnection interface {
	AddTrack(track webrtc.TrackLocal) error
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	HasRemoteDescription() bool
	SignalingState() webrtc.SignalingState
	AddICECandidate(candidate webrtc.ICECandidateInit) error

	OnICECandidate(fn func(webrtc.ICECandidateInit))
	OnTrack(fn func(RemoteTrack))
	OnConnectionStateChange(fn func(webrtc.PeerConnectionState))

	Close() error
}

type PeerFactory interface {
	NewPeer() (PeerConnection, error)
}

// RemoteTrack is a media track received from the other party.
type RemoteTrack interface {
	ID() string
	StreamID() string
	Kind() webrtc.RTPCodecType
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// RemoteSink consumes received tracks. Consume blocks until the track ends.
type RemoteSink interface {
	Consume(track RemoteTrack)
}

// LocalMedia is the set of captured tracks for one call.
type LocalMedia interface {
	Tracks() []webrtc.TrackLocal
	// SetEnabled turns every track of kind on or off and reports whether any
	// such track exists.
	SetEnabled(kind webrtc.RTPCodecType, enabled bool) bool
	Enabled(kind webrtc.RTPCodecType) bool
	Stop()
}

type MediaSource interface {
	Acquire(ctx context.Context) (LocalMedia, error)
}

// Transport is an open, ordered connection to the relay.
type Transport interface {
	Send(m protocol.Message) error
	Close() error
}

// TransportEvents are invoked from the transport's reader goroutine.
// OnClose fires at most once, and never after Close was called locally.
type TransportEvents struct {
	OnMessage func(protocol.Message)
	OnClose   func(error)
}

type Dialer interface {
	Dial(ctx context.Context, events TransportEvents) (Transport, error)
}
