// Package media provides headless local tracks and a sink for remote ones.
package media

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duo/internal/session"
)

var ErrNoTracks = errors.New("no audio or video requested")

const (
	audioInterval = 20 * time.Millisecond
	videoInterval = 33 * time.Millisecond
)

var (
	// one opus frame of silence
	opusSilence = []byte{0xf8, 0xff, 0xfe}
	// placeholder VP8 key frame payload
	vp8Frame = []byte{0x10, 0x02, 0x00, 0x9d, 0x01, 0x2a, 0x10, 0x00, 0x10, 0x00}
)

type Options struct {
	Audio    bool
	Video    bool
	StreamID string
}

// Source produces synthetic tracks that stand in for a camera and microphone.
type Source struct {
	opts Options
}

func NewSource(opts Options) *Source {
	if opts.StreamID == "" {
		opts.StreamID = "duo"
	}
	return &Source{opts: opts}
}

func (s *Source) Acquire(ctx context.Context) (session.LocalMedia, error) {
	if !s.opts.Audio && !s.opts.Video {
		return nil, ErrNoTracks
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	genCtx, cancel := context.WithCancel(context.Background())
	local := &Local{cancel: cancel}
	if s.opts.Audio {
		if err := local.add(genCtx, webrtc.MimeTypeOpus, "audio", s.opts.StreamID, webrtc.RTPCodecTypeAudio, opusSilence, audioInterval); err != nil {
			local.Stop()
			return nil, err
		}
	}
	if s.opts.Video {
		if err := local.add(genCtx, webrtc.MimeTypeVP8, "video", s.opts.StreamID, webrtc.RTPCodecTypeVideo, vp8Frame, videoInterval); err != nil {
			local.Stop()
			return nil, err
		}
	}
	log.Info().Str("module", "media").Bool("audio", s.opts.Audio).Bool("video", s.opts.Video).Msg("local media acquired")
	return local, nil
}

type localTrack struct {
	track    *webrtc.TrackLocalStaticSample
	kind     webrtc.RTPCodecType
	enabled  atomic.Bool
	payload  []byte
	interval time.Duration
}

// Local is one acquisition of local tracks. A disabled track stays attached
// but stops producing samples.
type Local struct {
	tracks []*localTrack
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func (l *Local) add(ctx context.Context, mime, id, streamID string, kind webrtc.RTPCodecType, payload []byte, interval time.Duration) error {
	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: mime}, id, streamID)
	if err != nil {
		return fmt.Errorf("new %s track: %w", id, err)
	}
	lt := &localTrack{track: track, kind: kind, payload: payload, interval: interval}
	lt.enabled.Store(true)
	l.tracks = append(l.tracks, lt)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		lt.generate(ctx)
	}()
	return nil
}

func (t *localTrack) generate(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !t.enabled.Load() {
				continue
			}
			// errors only mean no peer is bound yet
			_ = t.track.WriteSample(pionmedia.Sample{Data: t.payload, Duration: t.interval})
		}
	}
}

func (l *Local) Tracks() []webrtc.TrackLocal {
	out := make([]webrtc.TrackLocal, 0, len(l.tracks))
	for _, t := range l.tracks {
		out = append(out, t.track)
	}
	return out
}

func (l *Local) SetEnabled(kind webrtc.RTPCodecType, enabled bool) bool {
	found := false
	for _, t := range l.tracks {
		if t.kind == kind {
			t.enabled.Store(enabled)
			found = true
		}
	}
	return found
}

func (l *Local) Enabled(kind webrtc.RTPCodecType) bool {
	for _, t := range l.tracks {
		if t.kind == kind && t.enabled.Load() {
			return true
		}
	}
	return false
}

func (l *Local) Stop() {
	l.once.Do(func() {
		l.cancel()
		l.wg.Wait()
		for _, t := range l.tracks {
			t.enabled.Store(false)
		}
		log.Info().Str("module", "media").Msg("local media stopped")
	})
}
