// Package draftdomain implements the settings-draft state machine: a pure,
// deterministic negotiation over an ordered step list. It performs no I/O and
// holds no globals; state lives on the race record and is JSON-serializable so
// a draft can be replayed after a crash.
package draftdomain

import (
	"errors"
	"fmt"
	"strings"

	eventtypes "github.com/midoshouse/midos.house/app/shared/types/event"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

var (
	// ErrWrongParty rejects a submission from a team whose turn it is not.
	ErrWrongParty = errors.New("not your turn")
	// ErrInvalidChoice rejects an action that is not legal for the current step.
	ErrInvalidChoice = errors.New("invalid choice")
	// ErrComplete rejects submissions after the step list has emptied.
	ErrComplete = errors.New("draft already complete")
)

// Action is one submitted negotiation move. Kind is one of the eventtypes step
// kinds plus "skip"; Setting/Value apply to ban, pick, and choice; First
// carries the go-first decision.
type Action struct {
	Kind    string `json:"kind"`
	Setting string `json:"setting,omitempty"`
	Value   string `json:"value,omitempty"`
	First   bool   `json:"first,omitempty"`
}

// ActionSkip consumes a skippable step without banning or picking.
const ActionSkip = "skip"

// State is the draft's full mutable state. Pending holds the steps not yet
// consumed; StepsDone counts consumed steps so stale reminders can be
// detected.
type State struct {
	Pending   []eventtypes.DraftStep `json:"pending"`
	StepsDone int                    `json:"steps_done"`

	Picks  map[string]string `json:"picks"`
	Banned []string          `json:"banned,omitempty"`
	// SkippedBans counts skippable ban steps the acting team declined to use.
	SkippedBans int `json:"skipped_bans"`
	// HardOK opens hard settings for drafting; it is set only when every
	// entrant team carried the hard-settings opt-in at race creation.
	HardOK bool `json:"hard_ok,omitempty"`

	HighSeed sharedtypes.TeamID `json:"high_seed"`
	LowSeed  sharedtypes.TeamID `json:"low_seed"`
	// FirstPicker occupies seat 0. Empty until the opening go-first choice
	// resolves it.
	FirstPicker  sharedtypes.TeamID `json:"first_picker,omitempty"`
	SecondPicker sharedtypes.TeamID `json:"second_picker,omitempty"`
}

// Outcome describes a successful transition for message rendering.
type Outcome struct {
	By      sharedtypes.TeamID
	Summary string
	// NextTurn is nil when the draft completed.
	NextTurn *sharedtypes.TeamID
	Prompt   string
	Complete bool
}

// New materializes the step list for the first game of a match. When the
// config opens with a go-first choice, that step (acted by the high seed)
// precedes the configured steps; otherwise the high seed picks first.
func New(cfg *eventtypes.DraftConfig, highSeed, lowSeed sharedtypes.TeamID) State {
	s := State{
		Picks:    map[string]string{},
		HighSeed: highSeed,
		LowSeed:  lowSeed,
	}
	if cfg.OpeningChoice {
		s.Pending = append(s.Pending, eventtypes.DraftStep{Kind: eventtypes.StepGoFirst})
	} else {
		s.FirstPicker = highSeed
		s.SecondPicker = lowSeed
	}
	s.Pending = append(s.Pending, cfg.Steps...)
	return s
}

// ForNextGame builds the draft for a follow-up game of an undecided match:
// the loser of the previous game picks first and no go-first choice is
// offered.
func ForNextGame(cfg *eventtypes.DraftConfig, loser, winner sharedtypes.TeamID) State {
	s := State{
		Picks:        map[string]string{},
		HighSeed:     loser,
		LowSeed:      winner,
		FirstPicker:  loser,
		SecondPicker: winner,
	}
	s.Pending = append(s.Pending, cfg.Steps...)
	return s
}

// Complete reports whether no steps remain.
func (s State) Complete() bool { return len(s.Pending) == 0 }

// CurrentTurn returns the team whose action is awaited.
func (s State) CurrentTurn() (sharedtypes.TeamID, bool) {
	if len(s.Pending) == 0 {
		return "", false
	}
	return s.actor(s.Pending[0]), true
}

// IsBanned reports whether setting was banned in an earlier step.
func (s State) IsBanned(setting string) bool {
	for _, b := range s.Banned {
		if b == setting {
			return true
		}
	}
	return false
}

func (s State) actor(step eventtypes.DraftStep) sharedtypes.TeamID {
	if step.Kind == eventtypes.StepGoFirst {
		return s.HighSeed
	}
	if step.Seat == 0 {
		return s.FirstPicker
	}
	return s.SecondPicker
}

// Submit applies one action from party. On a protocol violation the returned
// state is the input state unchanged and the error is ErrWrongParty or
// ErrInvalidChoice (wrapped with the reason). On success the step is
// consumed, the fixed settings are updated, and the outcome carries the next
// turn or completion.
func Submit(cfg *eventtypes.DraftConfig, s State, party sharedtypes.TeamID, action Action) (State, Outcome, error) {
	if len(s.Pending) == 0 {
		return s, Outcome{}, ErrComplete
	}
	step := s.Pending[0]
	if s.actor(step) != party {
		return s, Outcome{}, ErrWrongParty
	}

	next := clone(s)
	var summary string

	switch step.Kind {
	case eventtypes.StepGoFirst:
		if action.Kind != eventtypes.StepGoFirst {
			return s, Outcome{}, invalid("a go-first decision is required")
		}
		if action.First {
			next.FirstPicker, next.SecondPicker = s.HighSeed, s.LowSeed
			summary = "chose to pick first"
		} else {
			next.FirstPicker, next.SecondPicker = s.LowSeed, s.HighSeed
			summary = "chose to pick second"
		}

	case eventtypes.StepBan:
		if action.Kind == ActionSkip {
			if !step.Skippable {
				return s, Outcome{}, invalid("this ban cannot be skipped")
			}
			next.SkippedBans++
			summary = "skipped their ban"
			break
		}
		if action.Kind != eventtypes.StepBan {
			return s, Outcome{}, invalid("a ban is required")
		}
		setting, err := draftable(cfg, s, action.Setting)
		if err != nil {
			return s, Outcome{}, err
		}
		next.Banned = append(next.Banned, setting.Name)
		summary = fmt.Sprintf("banned %s (locking %s)", setting.Display, setting.Default)

	case eventtypes.StepPick:
		if action.Kind != eventtypes.StepPick {
			return s, Outcome{}, invalid("a pick is required")
		}
		setting, err := draftable(cfg, s, action.Setting)
		if err != nil {
			return s, Outcome{}, err
		}
		value, err := legalValue(setting, action.Value)
		if err != nil {
			return s, Outcome{}, err
		}
		next.Picks[setting.Name] = value
		summary = fmt.Sprintf("picked %s: %s", setting.Display, value)

	case eventtypes.StepChoice:
		if action.Kind != eventtypes.StepChoice {
			return s, Outcome{}, invalid("a choice is required")
		}
		setting, ok := cfg.Setting(step.Setting)
		if !ok {
			return s, Outcome{}, invalid(fmt.Sprintf("unknown setting %q", step.Setting))
		}
		if action.Setting != "" && action.Setting != setting.Name {
			return s, Outcome{}, invalid(fmt.Sprintf("this step decides %s", setting.Display))
		}
		value, err := legalValue(setting, action.Value)
		if err != nil {
			return s, Outcome{}, err
		}
		next.Picks[setting.Name] = value
		summary = fmt.Sprintf("set %s: %s", setting.Display, value)

	default:
		return s, Outcome{}, invalid(fmt.Sprintf("unknown step kind %q", step.Kind))
	}

	next.Pending = next.Pending[1:]
	next.StepsDone++

	out := Outcome{By: party, Summary: summary, Complete: next.Complete()}
	if turn, ok := next.CurrentTurn(); ok {
		out.NextTurn = &turn
		out.Prompt = Prompt(cfg, next)
	}
	return next, out, nil
}

// FinalSettings resolves the finalized snapshot: every configured setting at
// its default, overridden by picks. A ban locks the default by never letting
// the setting reach a pick.
func FinalSettings(cfg *eventtypes.DraftConfig, s State) map[string]string {
	out := make(map[string]string, len(cfg.Settings))
	for _, setting := range cfg.Settings {
		out[setting.Name] = setting.Default
	}
	for name, value := range s.Picks {
		out[name] = value
	}
	return out
}

// Prompt renders the instruction for the current step.
func Prompt(cfg *eventtypes.DraftConfig, s State) string {
	if len(s.Pending) == 0 {
		return ""
	}
	step := s.Pending[0]
	switch step.Kind {
	case eventtypes.StepGoFirst:
		return "decide whether to pick first or second (!first / !second)"
	case eventtypes.StepBan:
		options := remainingNames(cfg, s)
		if step.Skippable {
			return fmt.Sprintf("ban a setting (%s) or !skip", strings.Join(options, ", "))
		}
		return fmt.Sprintf("ban a setting (%s)", strings.Join(options, ", "))
	case eventtypes.StepPick:
		return fmt.Sprintf("pick a setting (%s)", strings.Join(remainingNames(cfg, s), ", "))
	case eventtypes.StepChoice:
		if setting, ok := cfg.Setting(step.Setting); ok {
			values := make([]string, len(setting.Options))
			for i, o := range setting.Options {
				values[i] = o.Value
			}
			return fmt.Sprintf("choose %s (%s)", setting.Display, strings.Join(values, ", "))
		}
	}
	return ""
}

// RemainingSettings lists settings still eligible for a ban or pick.
func RemainingSettings(cfg *eventtypes.DraftConfig, s State) []eventtypes.DraftSetting {
	var out []eventtypes.DraftSetting
	for _, setting := range cfg.Settings {
		if setting.Hard && !s.HardOK {
			continue
		}
		if s.IsBanned(setting.Name) {
			continue
		}
		if _, picked := s.Picks[setting.Name]; picked {
			continue
		}
		out = append(out, setting)
	}
	return out
}

func remainingNames(cfg *eventtypes.DraftConfig, s State) []string {
	remaining := RemainingSettings(cfg, s)
	names := make([]string, len(remaining))
	for i, setting := range remaining {
		names[i] = setting.Name
	}
	return names
}

func draftable(cfg *eventtypes.DraftConfig, s State, name string) (eventtypes.DraftSetting, error) {
	setting, ok := cfg.Setting(name)
	if !ok {
		return eventtypes.DraftSetting{}, invalid(fmt.Sprintf("unknown setting %q", name))
	}
	if setting.Hard && !s.HardOK {
		return eventtypes.DraftSetting{}, invalid(fmt.Sprintf("%s requires the hard-settings opt-in from both teams", setting.Display))
	}
	if s.IsBanned(setting.Name) {
		return eventtypes.DraftSetting{}, invalid(fmt.Sprintf("%s is banned", setting.Display))
	}
	if _, picked := s.Picks[setting.Name]; picked {
		return eventtypes.DraftSetting{}, invalid(fmt.Sprintf("%s is already picked", setting.Display))
	}
	return setting, nil
}

func legalValue(setting eventtypes.DraftSetting, value string) (string, error) {
	for _, o := range setting.Options {
		if o.Value == value {
			return o.Value, nil
		}
	}
	return "", invalid(fmt.Sprintf("%q is not an option for %s", value, setting.Display))
}

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidChoice, reason)
}

func clone(s State) State {
	next := s
	next.Pending = append([]eventtypes.DraftStep(nil), s.Pending...)
	next.Banned = append([]string(nil), s.Banned...)
	next.Picks = make(map[string]string, len(s.Picks))
	for k, v := range s.Picks {
		next.Picks[k] = v
	}
	return next
}
