package app

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duo/internal/core"
	"github.com/dkeye/Duo/internal/domain"
)

var (
	ErrAlreadyJoined = errors.New("already joined")
	ErrUnknownClient = errors.New("unknown client")
)

type sessionEntry struct {
	RoomID  domain.RoomID
	Session core.MemberSession
	Cancel  context.CancelFunc
}

// Registry tracks every live connection and the room it joined, if any.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.ClientID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.ClientID]*sessionEntry),
	}
}

func (r *Registry) BindSignal(sess core.MemberSession, cancel context.CancelFunc) {
	id := sess.Meta().ID
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = &sessionEntry{Session: sess, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("client_id", string(id)).Msg("bound signal")
}

func (r *Registry) GetSession(id domain.ClientID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[id]; ok {
		return e.Session, true
	}
	return nil, false
}

func (r *Registry) Unbind(id domain.ClientID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	log.Info().Str("module", "app.registry").Str("client_id", string(id)).Msg("unbind session")
}

func (r *Registry) RoomOf(id domain.ClientID) (domain.RoomID, core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[id]
	if !ok || entry.RoomID == "" {
		return "", nil, false
	}
	return entry.RoomID, entry.Session, true
}

// ClaimRoom records the room a connection is joining. A connection joins at
// most once for its lifetime.
func (r *Registry) ClaimRoom(id domain.ClientID, room domain.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[id]
	if !ok {
		return ErrUnknownClient
	}
	if entry.RoomID != "" {
		return ErrAlreadyJoined
	}
	entry.RoomID = room
	log.Info().Str("module", "app.registry").Str("client_id", string(id)).Str("room", string(room)).Msg("claimed room")
	return nil
}

func (r *Registry) ReleaseRoom(id domain.ClientID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.sessions[id]; ok {
		entry.RoomID = ""
	}
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) Cancel(id domain.ClientID) bool {
	r.mu.RLock()
	e, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("client_id", string(id)).Msg("canceled session")
	return true
}

// CancelAll stops every bound connection, used on shutdown.
func (r *Registry) CancelAll() int {
	r.mu.RLock()
	cancels := make([]context.CancelFunc, 0, len(r.sessions))
	for _, e := range r.sessions {
		if e.Cancel != nil {
			cancels = append(cancels, e.Cancel)
		}
	}
	r.mu.RUnlock()
	for _, cancel := range cancels {
		cancel()
	}
	return len(cancels)
}
