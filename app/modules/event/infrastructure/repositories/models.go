package eventdb

import (
	"time"

	"github.com/uptrace/bun"

	eventtypes "github.com/midoshouse/midos.house/app/shared/types/event"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

// EventConfigModel is the persisted shape of an event configuration. Duration
// fields are stored as nanoseconds, matching time.Duration's JSON behavior
// elsewhere in the schema.
type EventConfigModel struct {
	bun.BaseModel `bun:"table:event_configs,alias:ec"`

	ID          sharedtypes.EventID `bun:"id,pk"`
	Series      string              `bun:"series,nullzero"`
	DisplayName string              `bun:"display_name,notnull"`

	Draft     *eventtypes.DraftConfig `bun:"draft_config,type:jsonb,nullzero"`
	GameCount int                     `bun:"game_count,notnull,default:1"`

	MinScheduleNotice time.Duration               `bun:"min_schedule_notice,notnull,default:0"`
	OpenRoomLead      time.Duration               `bun:"open_room_lead,notnull,default:0"`
	SeedLead          time.Duration               `bun:"seed_lead,notnull,default:0"`
	Blackouts         []eventtypes.BlackoutWindow `bun:"blackouts,type:jsonb,nullzero"`

	AutoReport   bool          `bun:"auto_report"`
	RetimeWindow time.Duration `bun:"retime_window,notnull,default:0"`
	FPAEnabled   bool          `bun:"fpa_enabled"`

	RestreamConsentRequired bool `bun:"restream_consent_required"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// ToConfig converts the row to the shared config type.
func (m *EventConfigModel) ToConfig() *eventtypes.EventConfig {
	return &eventtypes.EventConfig{
		ID:                      m.ID,
		Series:                  m.Series,
		DisplayName:             m.DisplayName,
		Draft:                   m.Draft,
		GameCount:               m.GameCount,
		MinScheduleNotice:       m.MinScheduleNotice,
		OpenRoomLead:            m.OpenRoomLead,
		SeedLead:                m.SeedLead,
		Blackouts:               m.Blackouts,
		AutoReport:              m.AutoReport,
		RetimeWindow:            m.RetimeWindow,
		FPAEnabled:              m.FPAEnabled,
		RestreamConsentRequired: m.RestreamConsentRequired,
	}
}

// FromConfig builds a row from the shared config type.
func FromConfig(cfg *eventtypes.EventConfig) *EventConfigModel {
	return &EventConfigModel{
		ID:                      cfg.ID,
		Series:                  cfg.Series,
		DisplayName:             cfg.DisplayName,
		Draft:                   cfg.Draft,
		GameCount:               cfg.GameCount,
		MinScheduleNotice:       cfg.MinScheduleNotice,
		OpenRoomLead:            cfg.OpenRoomLead,
		SeedLead:                cfg.SeedLead,
		Blackouts:               cfg.Blackouts,
		AutoReport:              cfg.AutoReport,
		RetimeWindow:            cfg.RetimeWindow,
		FPAEnabled:              cfg.FPAEnabled,
		RestreamConsentRequired: cfg.RestreamConsentRequired,
	}
}
