// Package bracketevents defines the bracket-service boundary: inbound set
// updates from the webhook receiver and the outbound report effect consumed by
// the bracket adapter.
package bracketevents

import (
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

const (
	BracketSetUpdatedV1   = "bracket.set.updated.v1"
	BracketReportSubmitV1 = "bracket.report.submit.v1"
	BracketReportAckedV1  = "bracket.report.acked.v1"
	BracketReportFailedV1 = "bracket.report.failed.v1"
)

// SetEntrantV1 is one side of a bracket set, keyed by the bracket service's
// own entrant reference plus our team mapping when known.
type SetEntrantV1 struct {
	EntrantRef string              `json:"entrant_ref"`
	TeamID     sharedtypes.TeamID  `json:"team_id,omitempty"`
	Seat       int                 `json:"seat"`
}

type SetUpdatedPayloadV1 struct {
	EventID   sharedtypes.EventID `json:"event_id"`
	SetID     sharedtypes.SetID   `json:"set_id"`
	Phase     string              `json:"phase"`
	Round     string              `json:"round"`
	GameCount int                 `json:"game_count"`
	Entrants  []SetEntrantV1      `json:"entrants"`
	// ReportedWinner is set when the bracket side already carries an outcome;
	// used to confirm or dispute our recorded result.
	ReportedWinner *sharedtypes.TeamID `json:"reported_winner,omitempty"`
}

// GameLineV1 is one game's outcome inside a set report.
type GameLineV1 struct {
	Game   int                `json:"game"`
	Winner sharedtypes.TeamID `json:"winner"`
}

type ReportSubmitPayloadV1 struct {
	RaceID  sharedtypes.RaceID  `json:"race_id"`
	EventID sharedtypes.EventID `json:"event_id"`
	SetID   sharedtypes.SetID   `json:"set_id"`
	Winner  sharedtypes.TeamID  `json:"winner"`
	Games   []GameLineV1        `json:"games"`
}

type ReportAckedPayloadV1 struct {
	RaceID sharedtypes.RaceID `json:"race_id"`
	SetID  sharedtypes.SetID  `json:"set_id"`
}

type ReportFailedPayloadV1 struct {
	RaceID sharedtypes.RaceID `json:"race_id"`
	SetID  sharedtypes.SetID  `json:"set_id"`
	Reason string             `json:"reason"`
	// Ambiguous marks responses where the submission may or may not have been
	// applied; the adapter retries those only after a reconciling read.
	Ambiguous bool `json:"ambiguous"`
}
