package rtc

import (
	"context"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/vnet"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Duo/internal/adapters/media"
	"github.com/dkeye/Duo/internal/session"
)

func newVNetFactories(t *testing.T) (*Factory, *Factory) {
	t.Helper()
	router, err := vnet.NewRouter(&vnet.RouterConfig{
		CIDR:          "10.0.0.0/24",
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	require.NoError(t, err)

	netA, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{"10.0.0.1"}})
	require.NoError(t, err)
	netB, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{"10.0.0.2"}})
	require.NoError(t, err)
	require.NoError(t, router.AddNet(netA))
	require.NoError(t, router.AddNet(netB))
	require.NoError(t, router.Start())
	t.Cleanup(func() { _ = router.Stop() })

	a, err := NewFactory(Options{Net: netA})
	require.NoError(t, err)
	b, err := NewFactory(Options{Net: netB})
	require.NoError(t, err)
	return a, b
}

func newPeer(t *testing.T, f *Factory) session.PeerConnection {
	t.Helper()
	pc, err := f.NewPeer()
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })
	return pc
}

func TestConfiguration(t *testing.T) {
	cfg := Configuration([]string{"stun:a:1", "stun:b:2"})
	require.Len(t, cfg.ICEServers, 2)
	assert.Equal(t, []string{"stun:b:2"}, cfg.ICEServers[1].URLs)
	assert.Empty(t, Configuration(nil).ICEServers)
}

// An abandoned local offer cannot be rolled back in pion; a fresh connection
// answers the remote offer instead.
func TestFreshPeerAnswersAfterAbandonedOffer(t *testing.T) {
	fa, fb := newVNetFactories(t)
	stale, b := newPeer(t, fa), newPeer(t, fb)

	local, err := media.NewSource(media.Options{Audio: true}).Acquire(context.Background())
	require.NoError(t, err)
	defer local.Stop()
	require.NoError(t, stale.AddTrack(local.Tracks()[0]))
	require.NoError(t, b.AddTrack(local.Tracks()[0]))

	mine, err := stale.CreateOffer()
	require.NoError(t, err)
	require.NoError(t, stale.SetLocalDescription(mine))
	assert.Equal(t, webrtc.SignalingStateHaveLocalOffer, stale.SignalingState())
	assert.Error(t, stale.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeRollback, SDP: mine.SDP}))
	require.NoError(t, stale.Close())

	theirs, err := b.CreateOffer()
	require.NoError(t, err)
	require.NoError(t, b.SetLocalDescription(theirs))

	a := newPeer(t, fa)
	require.NoError(t, a.AddTrack(local.Tracks()[0]))
	require.NoError(t, a.SetRemoteDescription(theirs))
	answer, err := a.CreateAnswer()
	require.NoError(t, err)
	require.NoError(t, a.SetLocalDescription(answer))
	require.NoError(t, b.SetRemoteDescription(answer))
	assert.Equal(t, webrtc.SignalingStateStable, a.SignalingState())
	assert.True(t, a.HasRemoteDescription())
}

func TestPeersConnectAndReceiveTrack(t *testing.T) {
	fa, fb := newVNetFactories(t)
	a, b := newPeer(t, fa), newPeer(t, fb)

	local, err := media.NewSource(media.Options{Audio: true}).Acquire(context.Background())
	require.NoError(t, err)
	defer local.Stop()
	require.NoError(t, a.AddTrack(local.Tracks()[0]))

	a.OnICECandidate(func(c webrtc.ICECandidateInit) { _ = b.AddICECandidate(c) })
	b.OnICECandidate(func(c webrtc.ICECandidateInit) { _ = a.AddICECandidate(c) })

	connected := make(chan struct{}, 2)
	onState := func(s webrtc.PeerConnectionState) {
		if s == webrtc.PeerConnectionStateConnected {
			connected <- struct{}{}
		}
	}
	a.OnConnectionStateChange(onState)
	b.OnConnectionStateChange(onState)

	tracks := make(chan session.RemoteTrack, 1)
	b.OnTrack(func(tr session.RemoteTrack) {
		select {
		case tracks <- tr:
		default:
		}
	})

	offer, err := a.CreateOffer()
	require.NoError(t, err)
	require.NoError(t, a.SetLocalDescription(offer))
	require.NoError(t, b.SetRemoteDescription(offer))
	answer, err := b.CreateAnswer()
	require.NoError(t, err)
	require.NoError(t, b.SetLocalDescription(answer))
	require.NoError(t, a.SetRemoteDescription(answer))
	assert.True(t, a.HasRemoteDescription())

	for range 2 {
		select {
		case <-connected:
		case <-time.After(10 * time.Second):
			t.Fatal("peers did not connect")
		}
	}
	select {
	case tr := <-tracks:
		assert.Equal(t, webrtc.RTPCodecTypeAudio, tr.Kind())
		assert.Equal(t, "duo", tr.StreamID())
	case <-time.After(10 * time.Second):
		t.Fatal("no remote track")
	}
}
