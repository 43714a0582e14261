package model

import (
	"regexp"
	"time"
)

const RoomCodeLength = 6

var roomCodePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

type Room struct {
	ID        string    `json:"id" gorm:"type:VARCHAR(36);primaryKey"`
	Name      string    `json:"name" gorm:"type:VARCHAR(120);not null"`
	Code      string    `json:"code" gorm:"type:CHAR(6);not null;uniqueIndex:idx_rooms_code"`
	HostID    string    `json:"hostId" gorm:"type:VARCHAR(128);not null;index:idx_rooms_host_created,priority:1"`
	CreatedAt time.Time `json:"createdAt" gorm:"type:TIMESTAMP with time zone;not null;index:idx_rooms_host_created,priority:2"`
}

func (Room) TableName() string {
	return "rooms"
}

func (r Room) IsHost(userID string) bool {
	return userID != "" && r.HostID == userID
}

// IsValidRoomCode reports whether code has the canonical room code shape.
func IsValidRoomCode(code string) bool {
	return roomCodePattern.MatchString(code)
}
