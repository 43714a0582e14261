package model

import (
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// MembershipView is the derived snapshot of a room's members and pending requests.
// It is rebuilt from the ledger on every change and never patched in place.
type MembershipView struct {
	RoomID          string        `json:"roomId"`
	Members         []JoinRequest `json:"members"`
	PendingRequests []JoinRequest `json:"pendingRequests"`
	RoomDeleted     bool          `json:"roomDeleted"`
	DerivedAt       time.Time     `json:"derivedAt"`
}

// NewMembershipView builds a view from the two ledger queries. Both inputs are
// expected oldest-first.
func NewMembershipView(roomID string, approved, pending []JoinRequest, roomDeleted bool) MembershipView {
	if approved == nil {
		approved = []JoinRequest{}
	}
	if pending == nil {
		pending = []JoinRequest{}
	}
	return MembershipView{
		RoomID:          roomID,
		Members:         approved,
		PendingRequests: pending,
		RoomDeleted:     roomDeleted,
		DerivedAt:       time.Now().UTC(),
	}
}

// MemberIDs returns approved user ids in request order.
func (v MembershipView) MemberIDs() []string {
	ids := make([]string, 0, len(v.Members))
	for _, m := range v.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

func (v MembershipView) MemberSet() mapset.Set[string] {
	return mapset.NewThreadUnsafeSet(v.MemberIDs()...)
}

func (v MembershipView) PendingUserSet() mapset.Set[string] {
	set := mapset.NewThreadUnsafeSet[string]()
	for _, r := range v.PendingRequests {
		set.Add(r.UserID)
	}
	return set
}

// Participants is every user holding an active request in the room.
func (v MembershipView) Participants() mapset.Set[string] {
	return v.MemberSet().Union(v.PendingUserSet())
}
