package repository

import (
	"context"
	"time"
)

type ChangeOp string

const (
	ChangeInsert ChangeOp = "insert"
	ChangeUpdate ChangeOp = "update"
	ChangeDelete ChangeOp = "delete"
	// ChangeResync is emitted by a feed after it re-established its
	// subscription; notifications may have been missed in between.
	ChangeResync ChangeOp = "resync"
)

const (
	TableRooms        = "rooms"
	TableJoinRequests = "join_requests"
)

// ChangeEvent says that something changed for a room. Consumers must treat it
// only as a hint to re-fetch; delivery is at-least-once and unordered.
type ChangeEvent struct {
	RoomID string    `json:"roomId"`
	Table  string    `json:"table,omitempty"`
	Op     ChangeOp  `json:"op,omitempty"`
	RowID  string    `json:"rowId,omitempty"`
	At     time.Time `json:"at"`
}

type ChangePublisher interface {
	Publish(ctx context.Context, event ChangeEvent) error
}

type FeedSubscription interface {
	Events() <-chan ChangeEvent
	Close() error
}

// ChangeFeed opens a subscription to the changes of a single room.
type ChangeFeed interface {
	Subscribe(ctx context.Context, roomID string) (FeedSubscription, error)
}
