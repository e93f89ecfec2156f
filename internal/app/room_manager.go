package app

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duo/internal/core"
	"github.com/dkeye/Duo/internal/domain"
)

type RoomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService
}

func NewRoomManager() *RoomManagerImpl {
	return &RoomManagerImpl{rooms: make(map[domain.RoomID]core.RoomService)}
}

func (f *RoomManagerImpl) getOrCreate(id domain.RoomID) core.RoomService {
	f.mu.RLock()
	room, ok := f.rooms[id]
	f.mu.RUnlock()
	if ok {
		return room
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok = f.rooms[id]; ok {
		return room
	}
	room = core.NewRoomService(&domain.Room{ID: id})
	f.rooms[id] = room
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room created")
	return room
}

// Join retries when it races with the last member leaving: the room it
// fetched is closed by then and a fresh one replaces it in the map.
func (f *RoomManagerImpl) Join(
	id domain.RoomID,
	ms core.MemberSession,
	welcome func(prior int) core.Frame,
	notify core.Frame,
) (core.RoomService, int, error) {
	for {
		room := f.getOrCreate(id)
		prior, err := room.Admit(ms, welcome, notify)
		if errors.Is(err, core.ErrRoomClosed) {
			continue
		}
		return room, prior, err
	}
}

func (f *RoomManagerImpl) Leave(id domain.RoomID, member domain.ClientID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		return false
	}
	remaining, removed := room.RemoveMember(member)
	if removed && remaining == 0 {
		delete(f.rooms, id)
		log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room deleted")
	}
	return removed
}

func (f *RoomManagerImpl) Get(id domain.RoomID) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[id]
	return room, ok
}

// NewRoomID picks a generated identifier that is not currently in use.
func (f *RoomManagerImpl) NewRoomID() domain.RoomID {
	for {
		id := domain.NewRoomID()
		if _, ok := f.Get(id); !ok {
			return id
		}
	}
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for id, r := range f.rooms {
		out = append(out, core.RoomInfo{ID: id, MemberCount: r.MemberCount()})
	}
	return out
}
