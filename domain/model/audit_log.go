package model

import (
	"database/sql"
	"time"
)

type AuditLog struct {
	ID        int       `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"type:TIMESTAMP with time zone;not null;index"`

	EventID   string `gorm:"type:VARCHAR(64);not null;uniqueIndex"`
	EventType string `gorm:"type:VARCHAR(64);not null;index"`

	// Actors come from the identity provider, so no FK constraints
	UserID string         `gorm:"type:VARCHAR(128);not null;index"`
	RoomID sql.NullString `gorm:"type:VARCHAR(36);null;index"`

	Payload []byte `gorm:"type:JSONB;not null"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
