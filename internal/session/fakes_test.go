package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Duo/internal/protocol"
)

var errClosed = errors.New("closed")

type fakePeer struct {
	mu         sync.Mutex
	tracks     []webrtc.TrackLocal
	local      *webrtc.SessionDescription
	remote     *webrtc.SessionDescription
	signaling  webrtc.SignalingState
	candidates []webrtc.ICECandidateInit
	offers     int
	remoteSets int
	closed     bool

	offerErr  error
	remoteErr error

	onICE   func(webrtc.ICECandidateInit)
	onTrack func(RemoteTrack)
	onState func(webrtc.PeerConnectionState)
}

func newFakePeer() *fakePeer {
	return &fakePeer{signaling: webrtc.SignalingStateStable}
}

// fakePeers hands out first on the first call and fresh fakes afterwards.
type fakePeers struct {
	mu    sync.Mutex
	first *fakePeer
	made  []*fakePeer
}

func (f *fakePeers) NewPeer() (PeerConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.first
	if p == nil || len(f.made) > 0 {
		p = newFakePeer()
	}
	f.made = append(f.made, p)
	return p, nil
}

func (f *fakePeers) all() []*fakePeer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakePeer(nil), f.made...)
}

func (p *fakePeer) AddTrack(track webrtc.TrackLocal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracks = append(p.tracks, track)
	return nil
}

func (p *fakePeer) CreateOffer() (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.offerErr != nil {
		return webrtc.SessionDescription{}, p.offerErr
	}
	p.offers++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: fmt.Sprintf("offer-%d", p.offers)}, nil
}

func (p *fakePeer) CreateAnswer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer"}, nil
}

func (p *fakePeer) SetLocalDescription(d webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errClosed
	}
	// same transitions pion accepts; it has no local rollback
	switch {
	case d.Type == webrtc.SDPTypeOffer && p.signaling == webrtc.SignalingStateStable:
		p.signaling = webrtc.SignalingStateHaveLocalOffer
	case d.Type == webrtc.SDPTypeAnswer && p.signaling == webrtc.SignalingStateHaveRemoteOffer:
		p.signaling = webrtc.SignalingStateStable
	default:
		return fmt.Errorf("invalid transition %s->SetLocal(%s)", p.signaling, d.Type)
	}
	p.local = &d
	return nil
}

func (p *fakePeer) SetRemoteDescription(d webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remoteErr != nil {
		return p.remoteErr
	}
	switch d.Type {
	case webrtc.SDPTypeOffer:
		if p.signaling == webrtc.SignalingStateHaveLocalOffer {
			return errors.New("glare")
		}
		p.signaling = webrtc.SignalingStateHaveRemoteOffer
	case webrtc.SDPTypeAnswer:
		if p.signaling != webrtc.SignalingStateHaveLocalOffer {
			return errors.New("unexpected answer")
		}
		p.signaling = webrtc.SignalingStateStable
	}
	p.remoteSets++
	p.remote = &d
	return nil
}

func (p *fakePeer) HasRemoteDescription() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remote != nil
}

func (p *fakePeer) SignalingState() webrtc.SignalingState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signaling
}

func (p *fakePeer) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil {
		return errors.New("no remote description")
	}
	p.candidates = append(p.candidates, c)
	return nil
}

func (p *fakePeer) OnICECandidate(fn func(webrtc.ICECandidateInit)) { p.onICE = fn }

func (p *fakePeer) OnTrack(fn func(RemoteTrack)) { p.onTrack = fn }

func (p *fakePeer) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) { p.onState = fn }

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePeer) snapshot() (remoteSets, candidates int, closed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remoteSets, len(p.candidates), p.closed
}

type fakeTransport struct {
	mu      sync.Mutex
	sent    []protocol.Message
	closed  bool
	events  TransportEvents
	dialed  bool
	dialErr error
}

func (t *fakeTransport) Dial(ctx context.Context, events TransportEvents) (Transport, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dialed = true
	if t.dialErr != nil {
		return nil, t.dialErr
	}
	t.events = events
	return t, nil
}

func (t *fakeTransport) Send(m protocol.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errClosed
	}
	t.sent = append(t.sent, m)
	return nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) deliver(m protocol.Message) { t.events.OnMessage(m) }

func (t *fakeTransport) drop(err error) { t.events.OnClose(err) }

func (t *fakeTransport) sentOf(typ protocol.Type) []protocol.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []protocol.Message
	for _, m := range t.sent {
		if m.Type() == typ {
			out = append(out, m)
		}
	}
	return out
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

type fakeMedia struct {
	mu      sync.Mutex
	err     error
	tracks  []webrtc.TrackLocal
	enabled map[webrtc.RTPCodecType]bool
	stopped bool
}

func newFakeMedia() *fakeMedia {
	audio, _ := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "local")
	video, _ := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "local")
	return &fakeMedia{
		tracks: []webrtc.TrackLocal{audio, video},
		enabled: map[webrtc.RTPCodecType]bool{
			webrtc.RTPCodecTypeAudio: true,
			webrtc.RTPCodecTypeVideo: true,
		},
	}
}

func (m *fakeMedia) Acquire(context.Context) (LocalMedia, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m, nil
}

func (m *fakeMedia) Tracks() []webrtc.TrackLocal { return m.tracks }

func (m *fakeMedia) SetEnabled(kind webrtc.RTPCodecType, enabled bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.enabled[kind]; !ok {
		return false
	}
	m.enabled[kind] = enabled
	return true
}

func (m *fakeMedia) Enabled(kind webrtc.RTPCodecType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled[kind]
}

func (m *fakeMedia) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

func (m *fakeMedia) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

type fakeRemoteTrack struct {
	id, stream string
	kind       webrtc.RTPCodecType
}

func (t fakeRemoteTrack) ID() string                { return t.id }
func (t fakeRemoteTrack) StreamID() string          { return t.stream }
func (t fakeRemoteTrack) Kind() webrtc.RTPCodecType { return t.kind }
func (t fakeRemoteTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	return nil, nil, io.EOF
}

type countingSink struct {
	mu     sync.Mutex
	tracks []string
}

func (s *countingSink) Consume(track RemoteTrack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = append(s.tracks, track.ID())
}

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tracks)
}
