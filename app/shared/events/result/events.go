// Package resultevents defines the topics and payloads of result
// reconciliation: recorded games, decided matches, and review flags.
package resultevents

import (
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"

	roomevents "github.com/midoshouse/midos.house/app/shared/events/room"
)

const (
	ResultRecordedV1     = "result.recorded.v1"
	ResultMatchDecidedV1 = "result.match.decided.v1"
	ResultNeedsReviewV1  = "result.needs.review.v1"
	ResultConfirmedV1    = "result.confirmed.v1"
)

type RecordedPayloadV1 struct {
	RaceID    sharedtypes.RaceID           `json:"race_id"`
	EventID   sharedtypes.EventID          `json:"event_id"`
	SetID     sharedtypes.SetID            `json:"set_id"`
	Game      int                          `json:"game"`
	GameCount int                          `json:"game_count"`
	Winner    *sharedtypes.TeamID          `json:"winner,omitempty"`
	Results   []roomevents.EntrantResultV1 `json:"results"`
	// Wins tallies recorded game wins per team across the whole set.
	Wins    map[sharedtypes.TeamID]int `json:"wins"`
	Decided bool                       `json:"decided"`
}

type MatchDecidedPayloadV1 struct {
	EventID   sharedtypes.EventID        `json:"event_id"`
	SetID     sharedtypes.SetID          `json:"set_id"`
	RaceID    sharedtypes.RaceID         `json:"race_id"`
	Winner    sharedtypes.TeamID         `json:"winner"`
	Wins      map[sharedtypes.TeamID]int `json:"wins"`
	GameCount int                        `json:"game_count"`
}

type NeedsReviewPayloadV1 struct {
	RaceID sharedtypes.RaceID `json:"race_id"`
	Reason string             `json:"reason"`
}

type ConfirmedPayloadV1 struct {
	RaceID sharedtypes.RaceID `json:"race_id"`
	SetID  sharedtypes.SetID  `json:"set_id"`
}
