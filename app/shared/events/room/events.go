// Package roomevents defines the topics and payloads of the room lifecycle:
// timer ticks driving creation, adapter acknowledgements, live status and chat
// from the race room, and the closed-room results handed to reconciliation.
package roomevents

import (
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

const (
	RoomOpenDueV1       = "room.open.due.v1"
	RoomCreateRetryDueV1 = "room.create.retry.due.v1"

	RoomCreatedV1           = "room.created.v1"
	RoomCreationFailedV1    = "room.creation.failed.v1"
	RoomCreationAbandonedV1 = "room.creation.abandoned.v1"
	RoomOpenedV1            = "room.opened.v1"

	RoomStatusChangedV1 = "room.status.changed.v1"
	RoomChatReceivedV1  = "room.chat.received.v1"
	RoomClosedV1        = "room.closed.v1"
)

// Room status values as reported by the chat service.
const (
	StatusOpen       = "open"
	StatusInvitation = "invitational"
	StatusInProgress = "in_progress"
	StatusFinished   = "finished"
	StatusCancelled  = "cancelled"
)

type OpenDuePayloadV1 struct {
	RaceID sharedtypes.RaceID   `json:"race_id"`
	Kind   sharedtypes.RoomKind `json:"kind"`
}

type CreateRetryDuePayloadV1 struct {
	RaceID  sharedtypes.RaceID   `json:"race_id"`
	Kind    sharedtypes.RoomKind `json:"kind"`
	Attempt int                  `json:"attempt"`
}

type CreatedPayloadV1 struct {
	RaceID sharedtypes.RaceID     `json:"race_id"`
	Kind   sharedtypes.RoomKind   `json:"kind"`
	Handle sharedtypes.RoomHandle `json:"handle"`
}

type CreationFailedPayloadV1 struct {
	RaceID  sharedtypes.RaceID   `json:"race_id"`
	Kind    sharedtypes.RoomKind `json:"kind"`
	Reason  string               `json:"reason"`
	Attempt int                  `json:"attempt"`
}

type CreationAbandonedPayloadV1 struct {
	RaceID   sharedtypes.RaceID   `json:"race_id"`
	Kind     sharedtypes.RoomKind `json:"kind"`
	Attempts int                  `json:"attempts"`
	Reason   string               `json:"reason"`
}

type OpenedPayloadV1 struct {
	RaceID sharedtypes.RaceID     `json:"race_id"`
	Kind   sharedtypes.RoomKind   `json:"kind"`
	Handle sharedtypes.RoomHandle `json:"handle"`
}

// RoomEntrantV1 is the chat service's view of one entrant in the room.
type RoomEntrantV1 struct {
	UserID     sharedtypes.UserID       `json:"user_id"`
	Name       string                   `json:"name"`
	Status     string                   `json:"status"`
	FinishTime *sharedtypes.FinishTime  `json:"finish_time,omitempty"`
	Place      int                      `json:"place,omitempty"`
}

type StatusChangedPayloadV1 struct {
	Handle   sharedtypes.RoomHandle `json:"handle"`
	Status   string                 `json:"status"`
	Entrants []RoomEntrantV1        `json:"entrants"`
}

type ChatReceivedPayloadV1 struct {
	Handle    sharedtypes.RoomHandle `json:"handle"`
	UserID    sharedtypes.UserID     `json:"user_id"`
	UserName  string                 `json:"user_name"`
	Text      string                 `json:"text"`
	IsMonitor bool                   `json:"is_monitor"`
}

// EntrantResultV1 is one entrant's outcome extracted from a closed room,
// already mapped back to a team.
type EntrantResultV1 struct {
	TeamID     sharedtypes.TeamID      `json:"team_id"`
	FinishTime *sharedtypes.FinishTime `json:"finish_time,omitempty"`
	Forfeited  bool                    `json:"forfeited"`
	DQ         bool                    `json:"dq"`
	Place      int                     `json:"place,omitempty"`
}

type ClosedPayloadV1 struct {
	RaceID    sharedtypes.RaceID     `json:"race_id"`
	Kind      sharedtypes.RoomKind   `json:"kind"`
	Handle    sharedtypes.RoomHandle `json:"handle"`
	Cancelled bool                   `json:"cancelled"`
	Results   []EntrantResultV1      `json:"results"`
}
