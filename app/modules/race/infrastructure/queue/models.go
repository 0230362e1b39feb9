package racequeue

import (
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

// RoomOpenJob fires when a race's room-open window begins. The worker only
// publishes the corresponding timer event; the room module owns the logic.
type RoomOpenJob struct {
	RaceID sharedtypes.RaceID   `json:"race_id"`
	Room   sharedtypes.RoomKind `json:"room_kind"`
}

func (RoomOpenJob) Kind() string { return "room_open" }

// RoomCreateRetryJob re-attempts a failed room creation after backoff.
type RoomCreateRetryJob struct {
	RaceID  sharedtypes.RaceID   `json:"race_id"`
	Room    sharedtypes.RoomKind `json:"room_kind"`
	Attempt int                  `json:"attempt"`
}

func (RoomCreateRetryJob) Kind() string { return "room_create_retry" }

// SeedRollJob fires when a race's seed should be rolled (start minus the
// event's seed lead), and again on retry after a generator failure.
type SeedRollJob struct {
	RaceID  sharedtypes.RaceID `json:"race_id"`
	Attempt int                `json:"attempt"`
}

func (SeedRollJob) Kind() string { return "seed_roll" }

// DraftReminderJob nudges the team whose draft turn has been pending too
// long. StepsDone lets the handler drop reminders for steps that advanced.
type DraftReminderJob struct {
	RaceID    sharedtypes.RaceID `json:"race_id"`
	StepsDone int                `json:"steps_done"`
}

func (DraftReminderJob) Kind() string { return "draft_reminder" }

// raceJobKinds enumerates every job kind cancelled on withdrawal or
// reschedule.
var raceJobKinds = []string{"room_open", "room_create_retry", "seed_roll", "draft_reminder"}
