// Package protocol defines the signaling messages exchanged between call
// clients and the relay. Every frame carries exactly one message, tagged by
// its "type" field.
package protocol

import (
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Duo/internal/domain"
)

type Type string

const (
	TypeJoin         Type = "join"
	TypeJoined       Type = "joined"
	TypeUserJoined   Type = "user-joined"
	TypeOffer        Type = "offer"
	TypeAnswer       Type = "answer"
	TypeICECandidate Type = "ice-candidate"
	TypeHangup       Type = "hangup"
	TypeError        Type = "error"
)

// Message is implemented only by the variants below.
type Message interface {
	Type() Type
	isMessage()
}

type Join struct {
	RoomID domain.RoomID
}

type Joined struct {
	ClientID domain.ClientID
	// RoomSize is the member count before this client was admitted.
	RoomSize int
}

type UserJoined struct{}

type Offer struct {
	SDP webrtc.SessionDescription
}

type Answer struct {
	SDP webrtc.SessionDescription
}

type ICECandidate struct {
	Candidate webrtc.ICECandidateInit
}

type Hangup struct{}

type Error struct {
	Message string
}

func (Join) Type() Type         { return TypeJoin }
func (Joined) Type() Type       { return TypeJoined }
func (UserJoined) Type() Type   { return TypeUserJoined }
func (Offer) Type() Type        { return TypeOffer }
func (Answer) Type() Type       { return TypeAnswer }
func (ICECandidate) Type() Type { return TypeICECandidate }
func (Hangup) Type() Type       { return TypeHangup }
func (Error) Type() Type        { return TypeError }

func (Join) isMessage()         {}
func (Joined) isMessage()       {}
func (UserJoined) isMessage()   {}
func (Offer) isMessage()        {}
func (Answer) isMessage()       {}
func (ICECandidate) isMessage() {}
func (Hangup) isMessage()       {}
func (Error) isMessage()        {}

// Relayable reports whether the relay forwards messages of type t between
// room members.
func Relayable(t Type) bool {
	switch t {
	case TypeOffer, TypeAnswer, TypeICECandidate, TypeHangup:
		return true
	default:
		return false
	}
}

// Server replies used by the relay.
const (
	ErrMsgRoomFull      = "Room full"
	ErrMsgInvalidJSON   = "Invalid JSON"
	ErrMsgAlreadyJoined = "Already joined"
	ErrMsgRateLimited   = "Rate limit exceeded"
)
