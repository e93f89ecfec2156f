package media

import (
	"sort"
	"sync"

	"github.com/pion/rtp"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duo/internal/session"
)

type TrackStats struct {
	ID       string `json:"id"`
	StreamID string `json:"stream_id"`
	Kind     string `json:"kind"`
	SSRC     uint32 `json:"ssrc"`
	Packets  uint64 `json:"packets"`
	Bytes    uint64 `json:"bytes"`
	LastSeq  uint16 `json:"last_seq"`
}

// Sink reads remote tracks to completion and keeps per-track counters.
type Sink struct {
	mu    sync.Mutex
	stats map[string]*TrackStats
}

func NewSink() *Sink {
	return &Sink{stats: make(map[string]*TrackStats)}
}

func (s *Sink) Consume(track session.RemoteTrack) {
	s.mu.Lock()
	st := &TrackStats{ID: track.ID(), StreamID: track.StreamID(), Kind: track.Kind().String()}
	s.stats[track.ID()] = st
	s.mu.Unlock()

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			log.Debug().Err(err).Str("module", "media").Str("track_id", st.ID).Msg("remote track ended")
			return
		}
		s.record(st, pkt)
	}
}

func (s *Sink) record(st *TrackStats, pkt *rtp.Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.SSRC = pkt.SSRC
	st.Packets++
	st.Bytes += uint64(len(pkt.Payload))
	st.LastSeq = pkt.SequenceNumber
}

func (s *Sink) Stats() []TrackStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TrackStats, 0, len(s.stats))
	for _, st := range s.stats {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Sink) Packets() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n uint64
	for _, st := range s.stats {
		n += st.Packets
	}
	return n
}
