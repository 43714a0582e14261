package websocket

const (
	MembershipView = "membership.view"
	RoomDeleted    = "room.deleted"
)

type WSMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	Data   any    `json:"data,omitempty"`
}

type RoomDeletedPayload struct {
	RoomID string `json:"roomId"`
}

func NewMembershipView(roomID string, view any) *WSMessage {
	return &WSMessage{
		Type:   MembershipView,
		RoomID: roomID,
		Data:   view,
	}
}

func NewRoomDeleted(roomID string) *WSMessage {
	return &WSMessage{
		Type:   RoomDeleted,
		RoomID: roomID,
		Data: RoomDeletedPayload{
			RoomID: roomID,
		},
	}
}
