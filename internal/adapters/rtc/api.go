package rtc

import (
	"fmt"

	"github.com/pion/logging"
	"github.com/pion/transport/v3"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Duo/internal/session"
)

type Options struct {
	ICEServers []string
	// Net replaces the host network, e.g. with a vnet in tests.
	Net           transport.Net
	LoggerFactory logging.LoggerFactory
}

func NewAPI(opts Options) (*webrtc.API, error) {
	se := webrtc.SettingEngine{}
	se.LoggerFactory = opts.LoggerFactory
	if se.LoggerFactory == nil {
		se.LoggerFactory = NewLoggerFactory()
	}
	if opts.Net != nil {
		se.SetNet(opts.Net)
	}

	me := &webrtc.MediaEngine{}
	if err := me.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	return webrtc.NewAPI(
		webrtc.WithSettingEngine(se),
		webrtc.WithMediaEngine(me),
	), nil
}

func Configuration(iceServers []string) webrtc.Configuration {
	cfg := webrtc.Configuration{}
	for _, url := range iceServers {
		cfg.ICEServers = append(cfg.ICEServers, webrtc.ICEServer{URLs: []string{url}})
	}
	return cfg
}

// Factory builds peer connections that share one API.
type Factory struct {
	api *webrtc.API
	cfg webrtc.Configuration
}

func NewFactory(opts Options) (*Factory, error) {
	api, err := NewAPI(opts)
	if err != nil {
		return nil, err
	}
	return &Factory{api: api, cfg: Configuration(opts.ICEServers)}, nil
}

func (f *Factory) NewPeer() (session.PeerConnection, error) {
	pc, err := f.api.NewPeerConnection(f.cfg)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	return newWebRTCConnection(pc), nil
}
