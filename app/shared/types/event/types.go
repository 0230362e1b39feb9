// Package eventtypes holds the per-event configuration record: scheduling
// policy, room and seed lead times, and the draft step layout. The draft
// engine consumes DraftConfig directly.
package eventtypes

import (
	"time"

	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

// Draft step kinds. A "choice" step fixes a single named setting to one of its
// options (event-specific yes/no style choices); ban and pick operate over the
// remaining draftable settings.
const (
	StepGoFirst = "go_first"
	StepBan     = "ban"
	StepPick    = "pick"
	StepChoice  = "choice"
)

// DraftOption is one legal value of a draftable setting.
type DraftOption struct {
	Value   string `json:"value"`
	Display string `json:"display"`
}

// DraftSetting is one negotiable game setting. Banning it locks Default.
type DraftSetting struct {
	Name    string        `json:"name"`
	Display string        `json:"display"`
	Default string        `json:"default"`
	Options []DraftOption `json:"options"`
	// Hard marks settings requiring the hard-settings opt-in from both teams.
	Hard bool `json:"hard,omitempty"`
}

// DraftStep is one negotiation turn. Seat 0 is the first picker, seat 1 the
// second; the go-first choice (when configured) resolves who sits where.
type DraftStep struct {
	Seat      int    `json:"seat"`
	Kind      string `json:"kind"`
	Setting   string `json:"setting,omitempty"`
	Skippable bool   `json:"skippable,omitempty"`
}

// DraftConfig is an event's full draft layout.
type DraftConfig struct {
	// OpeningChoice prepends a go-first step assigned to the higher seed.
	OpeningChoice bool           `json:"opening_choice"`
	Settings      []DraftSetting `json:"settings"`
	Steps         []DraftStep    `json:"steps"`
}

// Setting returns the named setting, if configured.
func (c *DraftConfig) Setting(name string) (DraftSetting, bool) {
	for _, s := range c.Settings {
		if s.Name == name {
			return s, true
		}
	}
	return DraftSetting{}, false
}

// PickSteps counts configured pick steps.
func (c *DraftConfig) PickSteps() int {
	n := 0
	for _, s := range c.Steps {
		if s.Kind == StepPick {
			n++
		}
	}
	return n
}

// BlackoutWindow is a half-open [From, To) interval during which no race may
// be scheduled.
type BlackoutWindow struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t falls inside the window.
func (w BlackoutWindow) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// EventConfig is the static per-event configuration record.
type EventConfig struct {
	ID          sharedtypes.EventID `json:"id"`
	Series      string              `json:"series"`
	DisplayName string              `json:"display_name"`

	Draft     *DraftConfig `json:"draft,omitempty"`
	GameCount int          `json:"game_count"`

	MinScheduleNotice time.Duration    `json:"min_schedule_notice"`
	OpenRoomLead      time.Duration    `json:"open_room_lead"`
	SeedLead          time.Duration    `json:"seed_lead"`
	Blackouts         []BlackoutWindow `json:"blackouts,omitempty"`

	AutoReport   bool          `json:"auto_report"`
	RetimeWindow time.Duration `json:"retime_window"`
	FPAEnabled   bool          `json:"fpa_enabled"`

	RestreamConsentRequired bool `json:"restream_consent_required"`

	// Organizers may lock schedules and act on races they are not entered in.
	Organizers []sharedtypes.UserID `json:"organizers,omitempty"`
}

// IsOrganizer reports whether userID is one of the event's organizers.
func (c *EventConfig) IsOrganizer(userID sharedtypes.UserID) bool {
	for _, id := range c.Organizers {
		if id == userID {
			return true
		}
	}
	return false
}

// DraftRequired reports whether races of this event negotiate settings.
func (c *EventConfig) DraftRequired() bool {
	return c.Draft != nil && len(c.Draft.Steps) > 0
}
