// Package session drives one two-party call from the client side: it acquires
// local media, joins a room through the relay, elects who makes the offer,
// exchanges descriptions and candidates, and tears everything down when the
// call ends.
package session

import (
	"errors"
	"fmt"

	"github.com/dkeye/Duo/internal/domain"
)

type State int

const (
	StateIdle State = iota
	StateJoining
	StateRoleElection
	StateNegotiating
	StateConnected
	StateEnded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateJoining:
		return "joining"
	case StateRoleElection:
		return "role-election"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateEnded:
		return "ended"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateEnded || s == StateFailed
}

type Role int

const (
	RoleUndetermined Role = iota
	RoleOfferer
	RoleAnswerer
)

func (r Role) String() string {
	switch r {
	case RoleOfferer:
		return "offerer"
	case RoleAnswerer:
		return "answerer"
	default:
		return "undetermined"
	}
}

type EndReason int

const (
	EndNone EndReason = iota
	EndLocalHangup
	EndRemoteHangup
	EndPeerLost
	EndFailed
)

func (r EndReason) String() string {
	switch r {
	case EndLocalHangup:
		return "local-hangup"
	case EndRemoteHangup:
		return "remote-hangup"
	case EndPeerLost:
		return "peer-lost"
	case EndFailed:
		return "failed"
	default:
		return "none"
	}
}

type ErrorKind int

const (
	KindMedia ErrorKind = iota
	KindTransport
	KindNegotiation
	KindProtocol
)

func (k ErrorKind) String() string {
	switch k {
	case KindMedia:
		return "media"
	case KindTransport:
		return "transport"
	case KindNegotiation:
		return "negotiation"
	case KindProtocol:
		return "protocol"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Messages shown to the user for each failure class. Relay error replies are
// shown verbatim instead.
const (
	MsgMediaFailed     = "Failed to access camera/microphone"
	MsgTransportFailed = "Failed to connect to signaling server"
	MsgCallFailed      = "Failed to start call"
)

var (
	ErrAlreadyStarted = errors.New("session already started")
	ErrRoomFull       = errors.New("room full")
	ErrJoinRejected   = errors.New("join rejected")
)

// Error is the content of the controller's error slot.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Snapshot is a consistent copy of the observable call state.
type Snapshot struct {
	State          State
	Role           Role
	ClientID       domain.ClientID
	EndReason      EndReason
	Err            *Error
	RemoteStreamID string
	AudioMuted     bool
	VideoOff       bool
}
