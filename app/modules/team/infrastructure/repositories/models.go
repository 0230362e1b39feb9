package teamdb

import (
	"time"

	"github.com/uptrace/bun"

	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

// MemberStatus tracks a roster slot's confirmation lifecycle.
type MemberStatus string

const (
	MemberStatusCreated     MemberStatus = "created"
	MemberStatusConfirmed   MemberStatus = "confirmed"
	MemberStatusUnconfirmed MemberStatus = "unconfirmed"
)

// Member is one roster slot.
type Member struct {
	UserID      sharedtypes.UserID `json:"user_id"`
	DisplayName string             `json:"display_name"`
	Status      MemberStatus       `json:"status"`
}

// OptIns are a team's consent flags.
type OptIns struct {
	HardSettingsOK bool `json:"hard_settings_ok"`
	RestreamOK     bool `json:"restream_ok"`
}

// Team is a participant in an event's races, shared across that event's
// races.
type Team struct {
	bun.BaseModel `bun:"table:teams,alias:tm"`

	ID       sharedtypes.TeamID  `bun:"id,pk,type:uuid"`
	EventID  sharedtypes.EventID `bun:"event_id,notnull"`
	Name     string              `bun:"name,notnull"`
	Members  []Member            `bun:"members,type:jsonb"`
	OptIns   OptIns              `bun:"opt_ins,type:jsonb"`
	Resigned bool                `bun:"resigned"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// Member returns the roster slot for userID, or nil.
func (t *Team) Member(userID sharedtypes.UserID) *Member {
	for i := range t.Members {
		if t.Members[i].UserID == userID {
			return &t.Members[i]
		}
	}
	return nil
}

// Confirmed reports whether every member has confirmed. An unconfirmed member
// blocks automatic race confirmation.
func (t *Team) Confirmed() bool {
	if len(t.Members) == 0 {
		return false
	}
	for _, m := range t.Members {
		if m.Status != MemberStatusConfirmed {
			return false
		}
	}
	return true
}
