package sharedtypes

import (
	"time"

	"github.com/google/uuid"
)

// RaceID identifies a single runnable race (one game of a match).
type RaceID string

// NewRaceID returns a fresh random RaceID.
func NewRaceID() RaceID { return RaceID(uuid.NewString()) }

// TeamID identifies a team (or solo entrant) within an event.
type TeamID string

// NewTeamID returns a fresh random TeamID.
func NewTeamID() TeamID { return TeamID(uuid.NewString()) }

// UserID is a platform-scoped user identifier (chat service or thread service).
type UserID string

// EventID is the slug of a tournament event ("s5", "league-2026").
type EventID string

// SetID references a bracket-service set; games of one match share it.
type SetID string

// RoomHandle is the chat service's identifier for a race room.
type RoomHandle string

// ThreadRef is the scheduling service's identifier for a coordination thread.
type ThreadRef string

// SystemActor is the audit author recorded for automated mutations.
const SystemActor UserID = "system"

// RoomKind distinguishes the live room from the halves of an async race.
type RoomKind string

const (
	RoomKindNormal RoomKind = "normal"
	RoomKindAsync1 RoomKind = "async1"
	RoomKindAsync2 RoomKind = "async2"
	RoomKindAsync3 RoomKind = "async3"
)

// AsyncIndex returns 1..3 for async kinds and 0 for the normal room.
func (k RoomKind) AsyncIndex() int {
	switch k {
	case RoomKindAsync1:
		return 1
	case RoomKindAsync2:
		return 2
	case RoomKindAsync3:
		return 3
	default:
		return 0
	}
}

// RaceStatus is the lifecycle phase of a race record.
type RaceStatus string

const (
	RaceStatusScheduling  RaceStatus = "scheduling"
	RaceStatusDrafting    RaceStatus = "drafting"
	RaceStatusPendingRoom RaceStatus = "pending_room"
	RaceStatusInProgress  RaceStatus = "in_progress"
	RaceStatusRecorded    RaceStatus = "recorded"
	RaceStatusWithdrawn   RaceStatus = "withdrawn"
	RaceStatusNeedsReview RaceStatus = "needs_review"
)

// Terminal reports whether no further automated transitions are allowed.
func (s RaceStatus) Terminal() bool {
	return s == RaceStatusRecorded || s == RaceStatusWithdrawn
}

// FinishTime is an entrant's finish duration measured from race start.
type FinishTime time.Duration

func (f FinishTime) Duration() time.Duration { return time.Duration(f) }

func (f FinishTime) String() string {
	d := time.Duration(f).Round(time.Second)
	return d.String()
}

// ValidationError marks a payload or state shape the handler cannot act on.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string { return e.Message }
