// Package draftevents defines the topics and payloads of the settings draft:
// action submissions arriving from room chat or the scheduling thread, and the
// engine's advancement, rejection, and completion notifications.
package draftevents

import (
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

const (
	DraftActionSubmittedV1 = "draft.action.submitted.v1"
	DraftStartedV1         = "draft.started.v1"
	DraftAdvancedV1        = "draft.advanced.v1"
	DraftRejectedV1        = "draft.rejected.v1"
	DraftCompletedV1       = "draft.completed.v1"
	DraftReminderDueV1     = "draft.reminder.due.v1"
)

// Action kinds as they travel on the wire. They mirror the draft domain's
// closed action set.
const (
	ActionGoFirst = "go_first"
	ActionBan     = "ban"
	ActionPick    = "pick"
	ActionChoice  = "choice"
	ActionSkip    = "skip"
)

// ActionV1 is one submitted draft action.
type ActionV1 struct {
	Kind    string `json:"kind"`
	Setting string `json:"setting,omitempty"`
	Value   string `json:"value,omitempty"`
	// First is the go-first decision: true picks first, false defers.
	First bool `json:"first,omitempty"`
}

type ActionSubmittedPayloadV1 struct {
	RaceID sharedtypes.RaceID `json:"race_id"`
	TeamID sharedtypes.TeamID `json:"team_id"`
	By     sharedtypes.UserID `json:"by"`
	Action ActionV1           `json:"action"`
	// Source is "room" or "thread"; rejections are replied to the source.
	Source string `json:"source"`
}

type StartedPayloadV1 struct {
	RaceID sharedtypes.RaceID `json:"race_id"`
	Turn   sharedtypes.TeamID `json:"turn"`
	Prompt string             `json:"prompt"`
}

type AdvancedPayloadV1 struct {
	RaceID   sharedtypes.RaceID  `json:"race_id"`
	By       sharedtypes.TeamID  `json:"by"`
	Summary  string              `json:"summary"`
	NextTurn *sharedtypes.TeamID `json:"next_turn,omitempty"`
	Prompt   string              `json:"prompt,omitempty"`
	Complete bool                `json:"complete"`
}

type RejectedPayloadV1 struct {
	RaceID sharedtypes.RaceID `json:"race_id"`
	TeamID sharedtypes.TeamID `json:"team_id"`
	By     sharedtypes.UserID `json:"by"`
	Reason string             `json:"reason"`
	Source string             `json:"source"`
}

type CompletedPayloadV1 struct {
	RaceID   sharedtypes.RaceID `json:"race_id"`
	Settings map[string]string  `json:"settings"`
	Picked   map[string]string  `json:"picked"`
}

type ReminderDuePayloadV1 struct {
	RaceID sharedtypes.RaceID `json:"race_id"`
	// StepsDone guards against reminding about a step that has since advanced.
	StepsDone int `json:"steps_done"`
}
