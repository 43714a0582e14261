package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType defines the type of event
type EventType string

const (
	EventRoomCreated     EventType = "room.created"
	EventRoomDeleted     EventType = "room.deleted"
	EventJoinRequested   EventType = "join.requested"
	EventRequestApproved EventType = "request.approved"
	EventRequestRejected EventType = "request.rejected"
	EventMemberLeft      EventType = "member.left"
)

// Event is an audit-worthy lobby action
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	UserID    string         `json:"user_id,omitempty"`
	RoomID    string         `json:"room_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

func generateEventID() string {
	return "evt_" + uuid.NewString()
}
