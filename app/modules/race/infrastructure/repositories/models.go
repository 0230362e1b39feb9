package racedb

import (
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	draftdomain "github.com/midoshouse/midos.house/app/modules/draft/domain"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

// Entrant is one participating team's slot on a race, including the
// confirmation snapshot taken from the team registry and the finish record
// filled in by result reconciliation. Seat 0 is the higher seed.
type Entrant struct {
	TeamID    sharedtypes.TeamID `json:"team_id"`
	Seat      int                `json:"seat"`
	Confirmed bool               `json:"confirmed"`

	FinishTime *sharedtypes.FinishTime `json:"finish_time,omitempty"`
	Forfeited  bool                    `json:"forfeited,omitempty"`
	DQ         bool                    `json:"dq,omitempty"`
	Place      int                     `json:"place,omitempty"`
}

// RoomState is the per-kind bookkeeping attached to a race's room reference.
type RoomState struct {
	AutoOpened bool   `json:"auto_opened,omitempty"`
	Monitoring bool   `json:"monitoring,omitempty"`
	LastStatus string `json:"last_status,omitempty"`
	Attempts   int    `json:"attempts,omitempty"`
	Failed     bool   `json:"failed,omitempty"`
}

// RoomMeta maps room kinds to their bookkeeping.
type RoomMeta map[sharedtypes.RoomKind]*RoomState

// BreakConfig records the break cadence agreed in-room.
type BreakConfig struct {
	Duration time.Duration `json:"duration"`
	Interval time.Duration `json:"interval"`
}

// Race is the authoritative persisted race record. Every mutation flows
// through Repository.UpdateRace, which linearizes writes per race via the
// revision column.
type Race struct {
	bun.BaseModel `bun:"table:races,alias:rc"`

	ID        sharedtypes.RaceID  `bun:"id,pk,type:uuid"`
	EventID   sharedtypes.EventID `bun:"event_id,notnull"`
	Phase     string              `bun:"phase,nullzero"`
	Round     string              `bun:"round,nullzero"`
	Game      int                 `bun:"game,notnull,default:1"`
	GameCount int                 `bun:"game_count,notnull,default:1"`
	SetID     sharedtypes.SetID   `bun:"set_id,nullzero"`

	Entrants []Entrant `bun:"entrants,type:jsonb"`

	ScheduledStart *time.Time `bun:"scheduled_start,nullzero"`
	AsyncStart1    *time.Time `bun:"async_start_1,nullzero"`
	AsyncStart2    *time.Time `bun:"async_start_2,nullzero"`
	AsyncStart3    *time.Time `bun:"async_start_3,nullzero"`

	DraftState *draftdomain.State `bun:"draft_state,type:jsonb,nullzero"`
	Settings   map[string]string  `bun:"settings,type:jsonb,nullzero"`

	Room       sharedtypes.RoomHandle `bun:"room,nullzero"`
	AsyncRoom1 sharedtypes.RoomHandle `bun:"async_room_1,nullzero"`
	AsyncRoom2 sharedtypes.RoomHandle `bun:"async_room_2,nullzero"`
	AsyncRoom3 sharedtypes.RoomHandle `bun:"async_room_3,nullzero"`
	RoomMeta   RoomMeta               `bun:"room_meta,type:jsonb"`

	SchedulingThread sharedtypes.ThreadRef `bun:"scheduling_thread,nullzero"`

	SeedFile      string `bun:"seed_file,nullzero"`
	SpoilerPath   string `bun:"spoiler_path,nullzero"`
	SpoilerLocked bool   `bun:"spoiler_locked"`
	Hash1         string `bun:"hash_1,nullzero"`
	Hash2         string `bun:"hash_2,nullzero"`
	Hash3         string `bun:"hash_3,nullzero"`
	Hash4         string `bun:"hash_4,nullzero"`
	Hash5         string `bun:"hash_5,nullzero"`

	Status         sharedtypes.RaceStatus `bun:"status,notnull"`
	WinnerTeamID   *sharedtypes.TeamID    `bun:"winner_team_id,nullzero"`
	Recorded       bool                   `bun:"recorded"`
	FPAInvoked     bool                   `bun:"fpa_invoked"`
	Breaks         *BreakConfig           `bun:"breaks,type:jsonb,nullzero"`
	ScheduleLocked bool                   `bun:"schedule_locked"`

	LastEditedBy *sharedtypes.UserID `bun:"last_edited_by,nullzero"`
	LastEditedAt *time.Time          `bun:"last_edited_at,nullzero"`

	Revision  int64     `bun:"revision,notnull,default:0"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// Async reports whether the race runs as independent async halves.
func (r *Race) Async() bool {
	return r.AsyncStart1 != nil || r.AsyncStart2 != nil || r.AsyncStart3 != nil
}

// StartFor returns the start time governing the given room kind.
func (r *Race) StartFor(kind sharedtypes.RoomKind) *time.Time {
	switch kind {
	case sharedtypes.RoomKindAsync1:
		return r.AsyncStart1
	case sharedtypes.RoomKindAsync2:
		return r.AsyncStart2
	case sharedtypes.RoomKindAsync3:
		return r.AsyncStart3
	default:
		return r.ScheduledStart
	}
}

// RoomHandle returns the recorded handle for kind ("" when none).
func (r *Race) RoomHandle(kind sharedtypes.RoomKind) sharedtypes.RoomHandle {
	switch kind {
	case sharedtypes.RoomKindAsync1:
		return r.AsyncRoom1
	case sharedtypes.RoomKindAsync2:
		return r.AsyncRoom2
	case sharedtypes.RoomKindAsync3:
		return r.AsyncRoom3
	default:
		return r.Room
	}
}

// ErrRoomExists guards the write-once room handle invariant.
var ErrRoomExists = errors.New("room handle already recorded")

// SetRoomHandle records the handle for kind; a second write for the same kind
// fails with ErrRoomExists unless it repeats the identical handle.
func (r *Race) SetRoomHandle(kind sharedtypes.RoomKind, handle sharedtypes.RoomHandle) error {
	existing := r.RoomHandle(kind)
	if existing != "" {
		if existing == handle {
			return nil
		}
		return fmt.Errorf("%w: %s has %s", ErrRoomExists, kind, existing)
	}
	switch kind {
	case sharedtypes.RoomKindAsync1:
		r.AsyncRoom1 = handle
	case sharedtypes.RoomKindAsync2:
		r.AsyncRoom2 = handle
	case sharedtypes.RoomKindAsync3:
		r.AsyncRoom3 = handle
	default:
		r.Room = handle
	}
	return nil
}

// Meta returns the room bookkeeping for kind, creating it on first use.
func (r *Race) Meta(kind sharedtypes.RoomKind) *RoomState {
	if r.RoomMeta == nil {
		r.RoomMeta = RoomMeta{}
	}
	if r.RoomMeta[kind] == nil {
		r.RoomMeta[kind] = &RoomState{}
	}
	return r.RoomMeta[kind]
}

// Entrant returns the slot for teamID, or nil.
func (r *Race) Entrant(teamID sharedtypes.TeamID) *Entrant {
	for i := range r.Entrants {
		if r.Entrants[i].TeamID == teamID {
			return &r.Entrants[i]
		}
	}
	return nil
}

// AllConfirmed reports whether every entrant's team is fully confirmed.
func (r *Race) AllConfirmed() bool {
	if len(r.Entrants) == 0 {
		return false
	}
	for _, e := range r.Entrants {
		if !e.Confirmed {
			return false
		}
	}
	return true
}

// HashIcons returns the verification quintuple, or nil when not yet attached.
func (r *Race) HashIcons() []string {
	if r.Hash1 == "" {
		return nil
	}
	return []string{r.Hash1, r.Hash2, r.Hash3, r.Hash4, r.Hash5}
}

// SetHashIcons attaches the quintuple; all five must be present.
func (r *Race) SetHashIcons(icons []string) error {
	if len(icons) != 5 {
		return fmt.Errorf("hash icons must be a quintuple, got %d", len(icons))
	}
	for _, icon := range icons {
		if icon == "" {
			return errors.New("hash icons must all be set")
		}
	}
	r.Hash1, r.Hash2, r.Hash3, r.Hash4, r.Hash5 = icons[0], icons[1], icons[2], icons[3], icons[4]
	return nil
}

// Touch stamps the last-edit audit pair. Automated mutations pass
// sharedtypes.SystemActor.
func (r *Race) Touch(by sharedtypes.UserID, at time.Time) {
	r.LastEditedBy = &by
	r.LastEditedAt = &at
}

// Validate checks the record's cross-field invariants before a write.
func (r *Race) Validate() error {
	if r.ScheduledStart != nil && r.Async() {
		return errors.New("race has both a start time and async start times")
	}
	hashes := []string{r.Hash1, r.Hash2, r.Hash3, r.Hash4, r.Hash5}
	set := 0
	for _, h := range hashes {
		if h != "" {
			set++
		}
	}
	if set != 0 && set != 5 {
		return fmt.Errorf("hash icons partially set (%d of 5)", set)
	}
	if (r.LastEditedBy == nil) != (r.LastEditedAt == nil) {
		return errors.New("last-edit author and timestamp must be set together")
	}
	return nil
}
