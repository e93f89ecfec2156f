// Package domain contains entity without logic, just meta-data
package domain

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

const (
	MaxRoomIDLen  = 128
	RoomCapacity  = 2
	roomIDLen     = 6
	roomIDCharset = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var (
	ErrRoomIDEmpty   = errors.New("room id empty")
	ErrRoomIDTooLong = errors.New("room id too long")
)

type RoomID string

type Room struct {
	ID RoomID
}

// ParseRoomID trims surrounding whitespace and validates the identifier.
func ParseRoomID(raw string) (RoomID, error) {
	id := strings.TrimSpace(raw)
	if len(id) == 0 {
		return "", ErrRoomIDEmpty
	}
	if len(id) > MaxRoomIDLen {
		return "", ErrRoomIDTooLong
	}
	return RoomID(id), nil
}

// NewRoomID returns a short random base-36 identifier suitable for a share link.
func NewRoomID() RoomID {
	var sb strings.Builder
	sb.Grow(roomIDLen)
	limit := big.NewInt(int64(len(roomIDCharset)))
	for range roomIDLen {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			panic("domain: crypto/rand failed: " + err.Error())
		}
		sb.WriteByte(roomIDCharset[n.Int64()])
	}
	return RoomID(sb.String())
}
