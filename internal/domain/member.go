package domain

import (
	"time"

	"github.com/google/uuid"
)

type ClientID string

// Member represents a connection's participation meta for a room.
// No transport or lifecycle logic here.
type Member struct {
	ID       ClientID
	JoinedAt time.Time
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember() *Member {
	return &Member{ID: ClientID(uuid.NewString()), JoinedAt: time.Now()}
}
