// Package raceevents defines the topics and payloads owned by the race module:
// race creation, scheduling, locking, withdrawal, and entrant snapshots.
package raceevents

import (
	"time"

	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

const (
	RaceCreateRequestedV1 = "race.create.requested.v1"
	RaceCreatedV1         = "race.created.v1"
	RaceCreationFailedV1  = "race.creation.failed.v1"

	RaceScheduleSetRequestedV1    = "race.schedule.set.requested.v1"
	RaceScheduleSetV1             = "race.schedule.set.v1"
	RaceScheduleRemoveRequestedV1 = "race.schedule.remove.requested.v1"
	RaceScheduleRemovedV1         = "race.schedule.removed.v1"
	RaceScheduleRejectedV1        = "race.schedule.rejected.v1"

	RaceLockRequestedV1   = "race.lock.requested.v1"
	RaceLockedV1          = "race.locked.v1"
	RaceUnlockRequestedV1 = "race.unlock.requested.v1"
	RaceUnlockedV1        = "race.unlocked.v1"
	RaceLockFailedV1      = "race.lock.failed.v1"

	RaceWithdrawRequestedV1 = "race.withdraw.requested.v1"
	RaceWithdrawnV1         = "race.withdrawn.v1"
	RaceWithdrawFailedV1    = "race.withdraw.failed.v1"

	RaceEntrantsUpdatedV1 = "race.entrants.updated.v1"
)

// EntrantRefV1 names one participating team and its seat in the matchup.
// Seat 0 is the higher seed.
type EntrantRefV1 struct {
	TeamID sharedtypes.TeamID `json:"team_id"`
	Seat   int                `json:"seat"`
}

type RaceCreateRequestedPayloadV1 struct {
	EventID   sharedtypes.EventID `json:"event_id"`
	SetID     sharedtypes.SetID   `json:"set_id"`
	Phase     string              `json:"phase"`
	Round     string              `json:"round"`
	Game      int                 `json:"game"`
	GameCount int                 `json:"game_count"`
	Entrants  []EntrantRefV1      `json:"entrants"`
	// LoserPicksFirst carries the previous game's loser when this race is the
	// follow-up game of an undecided match.
	LoserPicksFirst *sharedtypes.TeamID `json:"loser_picks_first,omitempty"`
	Source          string              `json:"source"`
}

type RaceCreatedPayloadV1 struct {
	RaceID        sharedtypes.RaceID  `json:"race_id"`
	EventID       sharedtypes.EventID `json:"event_id"`
	SetID         sharedtypes.SetID   `json:"set_id"`
	Phase         string              `json:"phase"`
	Round         string              `json:"round"`
	Game          int                 `json:"game"`
	GameCount     int                 `json:"game_count"`
	Entrants      []EntrantRefV1      `json:"entrants"`
	DraftRequired bool                `json:"draft_required"`
}

type RaceCreationFailedPayloadV1 struct {
	EventID sharedtypes.EventID `json:"event_id"`
	SetID   sharedtypes.SetID   `json:"set_id"`
	Reason  string              `json:"reason"`
}

// ScheduleSetRequestedPayloadV1 proposes a start time. Exactly one of Start or
// AsyncStarts is set; AsyncStarts maps room kinds to per-half start times.
type ScheduleSetRequestedPayloadV1 struct {
	RaceID      sharedtypes.RaceID                      `json:"race_id"`
	Start       *time.Time                              `json:"start,omitempty"`
	AsyncStarts map[sharedtypes.RoomKind]time.Time      `json:"async_starts,omitempty"`
	RequestedBy sharedtypes.UserID                      `json:"requested_by"`
	Source      string                                  `json:"source"`
}

type ScheduleSetPayloadV1 struct {
	RaceID      sharedtypes.RaceID                 `json:"race_id"`
	Start       *time.Time                         `json:"start,omitempty"`
	AsyncStarts map[sharedtypes.RoomKind]time.Time `json:"async_starts,omitempty"`
	By          sharedtypes.UserID                 `json:"by"`
}

type ScheduleRemoveRequestedPayloadV1 struct {
	RaceID      sharedtypes.RaceID `json:"race_id"`
	RequestedBy sharedtypes.UserID `json:"requested_by"`
}

type ScheduleRemovedPayloadV1 struct {
	RaceID sharedtypes.RaceID `json:"race_id"`
	By     sharedtypes.UserID `json:"by"`
}

type ScheduleRejectedPayloadV1 struct {
	RaceID      sharedtypes.RaceID `json:"race_id"`
	RequestedBy sharedtypes.UserID `json:"requested_by"`
	Reason      string             `json:"reason"`
	// Locked distinguishes a ScheduleLocked refusal from a policy rejection.
	Locked bool `json:"locked"`
}

type LockRequestedPayloadV1 struct {
	RaceID      sharedtypes.RaceID `json:"race_id"`
	RequestedBy sharedtypes.UserID `json:"requested_by"`
	Lock        bool               `json:"lock"`
}

type LockChangedPayloadV1 struct {
	RaceID sharedtypes.RaceID `json:"race_id"`
	Locked bool               `json:"locked"`
	By     sharedtypes.UserID `json:"by"`
}

type LockFailedPayloadV1 struct {
	RaceID sharedtypes.RaceID `json:"race_id"`
	Reason string             `json:"reason"`
}

type WithdrawRequestedPayloadV1 struct {
	RaceID      sharedtypes.RaceID `json:"race_id"`
	TeamID      sharedtypes.TeamID `json:"team_id"`
	RequestedBy sharedtypes.UserID `json:"requested_by"`
	Reason      string             `json:"reason"`
}

type RaceWithdrawnPayloadV1 struct {
	RaceID sharedtypes.RaceID `json:"race_id"`
	TeamID sharedtypes.TeamID `json:"team_id"`
	By     sharedtypes.UserID `json:"by"`
}

type WithdrawFailedPayloadV1 struct {
	RaceID sharedtypes.RaceID `json:"race_id"`
	Reason string             `json:"reason"`
}

// EntrantsUpdatedPayloadV1 is emitted when a confirmation snapshot changes on
// an active race (driven by team membership events).
type EntrantsUpdatedPayloadV1 struct {
	RaceID       sharedtypes.RaceID `json:"race_id"`
	AllConfirmed bool               `json:"all_confirmed"`
}
