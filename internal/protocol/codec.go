package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Duo/internal/domain"
)

var (
	ErrInvalidJSON  = errors.New("invalid json")
	ErrMissingField = errors.New("missing required field")
	ErrInvalidField = errors.New("invalid field")
	ErrUnknownType  = errors.New("unknown message type")
)

// MalformedError describes a frame that could not be turned into a Message.
type MalformedError struct {
	Type  Type
	Field string
	Err   error
}

func (e *MalformedError) Error() string {
	switch {
	case e.Field != "":
		return fmt.Sprintf("%s: %v %q", e.Type, e.Err, e.Field)
	case e.Type != "":
		return fmt.Sprintf("%v %q", e.Err, e.Type)
	default:
		return e.Err.Error()
	}
}

func (e *MalformedError) Unwrap() error { return e.Err }

// Reply is the text sent back to the peer that produced the frame.
func (e *MalformedError) Reply() string {
	switch {
	case errors.Is(e.Err, ErrInvalidJSON):
		return ErrMsgInvalidJSON
	case errors.Is(e.Err, ErrUnknownType):
		return fmt.Sprintf("Unknown message type %q", e.Type)
	case e.Type == "":
		return "Missing type"
	case errors.Is(e.Err, ErrInvalidField):
		return fmt.Sprintf("Invalid %s in %s", e.Field, e.Type)
	default:
		return fmt.Sprintf("Missing %s in %s", e.Field, e.Type)
	}
}

// envelope is the flat wire shape shared by every variant.
type envelope struct {
	Type      Type                     `json:"type"`
	RoomID    *string                  `json:"roomId,omitempty"`
	ClientID  string                   `json:"clientId,omitempty"`
	RoomSize  *int                     `json:"roomSize,omitempty"`
	SDP       *sessionDescription      `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	Message   *string                  `json:"message,omitempty"`
}

// sessionDescription mirrors RTCSessionDescriptionInit. pion's own type
// rejects unknown "type" strings during unmarshal, which would turn a bad
// offer into an invalid-JSON reply instead of a missing-field one.
type sessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Decode parses one frame. Errors are always *MalformedError.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &MalformedError{Err: fmt.Errorf("%w: %v", ErrInvalidJSON, err)}
	}
	missing := func(field string) error {
		return &MalformedError{Type: env.Type, Field: field, Err: ErrMissingField}
	}

	switch env.Type {
	case TypeJoin:
		if env.RoomID == nil {
			return nil, missing("roomId")
		}
		id, err := domain.ParseRoomID(*env.RoomID)
		if errors.Is(err, domain.ErrRoomIDEmpty) {
			return nil, missing("roomId")
		}
		if err != nil {
			return nil, &MalformedError{Type: env.Type, Field: "roomId", Err: fmt.Errorf("%w: %v", ErrInvalidField, err)}
		}
		return Join{RoomID: id}, nil
	case TypeJoined:
		if env.ClientID == "" {
			return nil, missing("clientId")
		}
		if env.RoomSize == nil {
			return nil, missing("roomSize")
		}
		return Joined{ClientID: domain.ClientID(env.ClientID), RoomSize: *env.RoomSize}, nil
	case TypeUserJoined:
		return UserJoined{}, nil
	case TypeOffer, TypeAnswer:
		want := webrtc.SDPTypeOffer
		if env.Type == TypeAnswer {
			want = webrtc.SDPTypeAnswer
		}
		if env.SDP == nil || env.SDP.SDP == "" {
			return nil, missing("sdp")
		}
		if env.SDP.Type != "" && webrtc.NewSDPType(env.SDP.Type) != want {
			return nil, &MalformedError{Type: env.Type, Field: "sdp.type", Err: ErrMissingField}
		}
		desc := webrtc.SessionDescription{Type: want, SDP: env.SDP.SDP}
		if env.Type == TypeOffer {
			return Offer{SDP: desc}, nil
		}
		return Answer{SDP: desc}, nil
	case TypeICECandidate:
		if env.Candidate == nil {
			return nil, missing("candidate")
		}
		return ICECandidate{Candidate: *env.Candidate}, nil
	case TypeHangup:
		return Hangup{}, nil
	case TypeError:
		msg := ""
		if env.Message != nil {
			msg = *env.Message
		}
		return Error{Message: msg}, nil
	case "":
		return nil, missing("type")
	default:
		return nil, &MalformedError{Type: env.Type, Err: ErrUnknownType}
	}
}

// Encode renders m in its wire shape.
func Encode(m Message) ([]byte, error) {
	env := envelope{Type: m.Type()}
	switch v := m.(type) {
	case Join:
		id := string(v.RoomID)
		env.RoomID = &id
	case Joined:
		size := v.RoomSize
		env.ClientID = string(v.ClientID)
		env.RoomSize = &size
	case Offer:
		env.SDP = &sessionDescription{Type: v.SDP.Type.String(), SDP: v.SDP.SDP}
	case Answer:
		env.SDP = &sessionDescription{Type: v.SDP.Type.String(), SDP: v.SDP.SDP}
	case ICECandidate:
		c := v.Candidate
		env.Candidate = &c
	case Error:
		msg := v.Message
		env.Message = &msg
	case UserJoined, Hangup:
	default:
		return nil, fmt.Errorf("encode %T: %w", m, ErrUnknownType)
	}
	return json.Marshal(env)
}

// MustEncode is Encode for messages built in code, which cannot fail.
func MustEncode(m Message) []byte {
	b, err := Encode(m)
	if err != nil {
		panic(err)
	}
	return b
}
