package core

import (
	"errors"
	"time"

	"github.com/dkeye/Duo/internal/domain"
)

var (
	ErrRoomFull   = errors.New("room full")
	ErrRoomClosed = errors.New("room closed")
)

// Frame is one encoded signaling message.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// MemberSession binds domain.Member and its transport endpoint.
// This is what a room stores and fans out to.
type MemberSession interface {
	Meta() *domain.Member
	Signal() SignalConnection
}

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID       domain.ClientID `json:"id"`
	JoinedAt time.Time       `json:"joined_at"`
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []MemberDTO
	IsMember(id domain.ClientID) bool

	// Admit adds ms unless the room is full or closed. welcome is called with
	// the member count prior to admission and its frame is queued to ms;
	// notify is queued to every member already present. Both are queued
	// before any other frame can reach ms through Broadcast.
	Admit(ms MemberSession, welcome func(prior int) Frame, notify Frame) (prior int, err error)
	// RemoveMember drops id and reports the remaining count. A room that
	// becomes empty is closed and never admits again.
	RemoveMember(id domain.ClientID) (remaining int, removed bool)
	Broadcast(from domain.ClientID, data Frame) PublishResult
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
}

type RoomManager interface {
	// Join admits ms into the room named id, creating the room on first use.
	Join(id domain.RoomID, ms MemberSession, welcome func(prior int) Frame, notify Frame) (RoomService, int, error)
	// Leave removes a member and deletes the room once it is empty.
	Leave(id domain.RoomID, member domain.ClientID) bool
	Get(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
}
