package core

import (
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duo/internal/domain"
)

// roomImpl is a threadsafe in-memory room of at most domain.RoomCapacity
// members. It never closes adapter-owned resources.
type roomImpl struct {
	room    *domain.Room
	mu      sync.RWMutex
	members []MemberSession // join order
	closed  bool
}

func NewRoomService(room *domain.Room) RoomService {
	return &roomImpl{
		room:    room,
		members: make([]MemberSession, 0, domain.RoomCapacity),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *roomImpl) IsMember(id domain.ClientID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexLocked(id) >= 0
}

func (r *roomImpl) indexLocked(id domain.ClientID) int {
	return slices.IndexFunc(r.members, func(ms MemberSession) bool {
		return ms.Meta().ID == id
	})
}

func (r *roomImpl) Admit(ms MemberSession, welcome func(prior int) Frame, notify Frame) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrRoomClosed
	}
	prior := len(r.members)
	if prior >= domain.RoomCapacity {
		log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("client_id", string(ms.Meta().ID)).Msg("room full")
		return prior, ErrRoomFull
	}

	if welcome != nil {
		if err := ms.Signal().TrySend(welcome(prior)); err != nil {
			log.Warn().Err(err).Str("module", "core.room").Str("client_id", string(ms.Meta().ID)).Msg("welcome not queued")
		}
	}
	if notify != nil {
		for _, m := range r.members {
			if err := m.Signal().TrySend(notify); err != nil {
				log.Warn().Err(err).Str("module", "core.room").Str("client_id", string(m.Meta().ID)).Msg("join notification not queued")
			}
		}
	}
	r.members = append(r.members, ms)

	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("client_id", string(ms.Meta().ID)).Int("prior", prior).Msg("member added")
	return prior, nil
}

func (r *roomImpl) RemoveMember(id domain.ClientID) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(id)
	if i < 0 {
		return len(r.members), false
	}
	r.members = slices.Delete(r.members, i, i+1)
	if len(r.members) == 0 {
		r.closed = true
	}
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("client_id", string(id)).Int("remaining", len(r.members)).Msg("member removed")
	return len(r.members), true
}

// Broadcast queues data to every member except from. A sender that is not a
// member gets nothing relayed.
func (r *roomImpl) Broadcast(from domain.ClientID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	if r.indexLocked(from) < 0 {
		return res
	}
	for _, m := range r.members {
		if m.Meta().ID == from {
			continue
		}
		if err := m.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("from", string(from)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberDTO, 0, len(r.members))
	for _, ms := range r.members {
		m := ms.Meta()
		out = append(out, MemberDTO{ID: m.ID, JoinedAt: m.JoinedAt})
	}
	return out
}
