package model

import "time"

type JoinRequestStatus string

const (
	JoinRequestPending  JoinRequestStatus = "pending"
	JoinRequestApproved JoinRequestStatus = "approved"
)

func (s JoinRequestStatus) Valid() bool {
	return s == JoinRequestPending || s == JoinRequestApproved
}

// JoinRequest is a pending or approved claim by a user to belong to a room.
// Rejected requests are deleted, so every stored row is active.
type JoinRequest struct {
	ID        string            `json:"id" gorm:"type:VARCHAR(36);primaryKey"`
	RoomID    string            `json:"roomId" gorm:"type:VARCHAR(36);not null;uniqueIndex:idx_join_requests_room_user,priority:1;index:idx_join_requests_room_status,priority:1"`
	UserID    string            `json:"userId" gorm:"type:VARCHAR(128);not null;uniqueIndex:idx_join_requests_room_user,priority:2"`
	Status    JoinRequestStatus `json:"status" gorm:"type:VARCHAR(16);not null;default:'pending';index:idx_join_requests_room_status,priority:2"`
	CreatedAt time.Time         `json:"createdAt" gorm:"type:TIMESTAMP with time zone;not null"`

	Room *Room `json:"-" gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
}

func (JoinRequest) TableName() string {
	return "join_requests"
}

func (r JoinRequest) IsApproved() bool {
	return r.Status == JoinRequestApproved
}
