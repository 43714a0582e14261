package room

import (
	"time"

	"github.com/hilthontt/lobby/domain/model"
)

type CreateRoomRequest struct {
	Name string `json:"name" binding:"required,notblank,max=120"`
}

type JoinByCodeRequest struct {
	Code string `json:"code" binding:"required,roomcode"`
}

type RoomResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	HostID    string    `json:"host_id"`
	CreatedAt time.Time `json:"created_at"`
	IsHost    bool      `json:"is_host"`
}

type JoinRequestResponse struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type MembershipViewResponse struct {
	RoomID          string                `json:"room_id"`
	Members         []JoinRequestResponse `json:"members"`
	PendingRequests []JoinRequestResponse `json:"pending_requests"`
	RoomDeleted     bool                  `json:"room_deleted"`
	DerivedAt       time.Time             `json:"derived_at"`
}

type SuccessResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func ToRoomResponse(r *model.Room, callerID string) RoomResponse {
	return RoomResponse{
		ID:        r.ID,
		Name:      r.Name,
		Code:      r.Code,
		HostID:    r.HostID,
		CreatedAt: r.CreatedAt,
		IsHost:    r.IsHost(callerID),
	}
}

func ToJoinRequestResponse(r *model.JoinRequest) JoinRequestResponse {
	return JoinRequestResponse{
		ID:        r.ID,
		RoomID:    r.RoomID,
		UserID:    r.UserID,
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt,
	}
}

func ToMembershipViewResponse(view model.MembershipView) MembershipViewResponse {
	return MembershipViewResponse{
		RoomID:          view.RoomID,
		Members:         toJoinRequestResponses(view.Members),
		PendingRequests: toJoinRequestResponses(view.PendingRequests),
		RoomDeleted:     view.RoomDeleted,
		DerivedAt:       view.DerivedAt,
	}
}

func toJoinRequestResponses(requests []model.JoinRequest) []JoinRequestResponse {
	out := make([]JoinRequestResponse, 0, len(requests))
	for i := range requests {
		out = append(out, ToJoinRequestResponse(&requests[i]))
	}
	return out
}
