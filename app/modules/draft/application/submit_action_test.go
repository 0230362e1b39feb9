package draftservice

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	draftdomain "github.com/midoshouse/midos.house/app/modules/draft/domain"
	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	draftevents "github.com/midoshouse/midos.house/app/shared/events/draft"
	"github.com/midoshouse/midos.house/app/shared/observability/metrics"
	eventtypes "github.com/midoshouse/midos.house/app/shared/types/event"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

func draftConfig() *eventtypes.EventConfig {
	return &eventtypes.EventConfig{
		ID:          "s5",
		DisplayName: "Season 5",
		GameCount:   3,
		Draft: &eventtypes.DraftConfig{
			Settings: []eventtypes.DraftSetting{
				{Name: "bridge", Display: "Bridge", Default: "open",
					Options: []eventtypes.DraftOption{{Value: "open"}, {Value: "medallions"}}},
				{Name: "trials", Display: "Trials", Default: "0",
					Options: []eventtypes.DraftOption{{Value: "0"}, {Value: "3"}}},
			},
			Steps: []eventtypes.DraftStep{
				{Seat: 0, Kind: eventtypes.StepBan},
				{Seat: 1, Kind: eventtypes.StepPick},
			},
		},
	}
}

type draftEnv struct {
	svc   *DraftService
	repo  *fakeRaceRepo
	queue *fakeQueue
}

func newDraftEnv(t *testing.T) (*draftEnv, *racedb.Race) {
	t.Helper()
	cfg := draftConfig()
	repo := newFakeRaceRepo()
	queue := &fakeQueue{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracer := noop.NewTracerProvider().Tracer("test")
	svc := NewDraftService(repo, &fakeEventRepo{cfg: cfg}, queue, logger, metrics.Noop{}, tracer)
	svc.clock = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }

	state := draftdomain.New(cfg.Draft, "team-a", "team-b")
	race := &racedb.Race{
		ID:         "race-1",
		EventID:    "s5",
		Status:     sharedtypes.RaceStatusDrafting,
		Entrants:   []racedb.Entrant{{TeamID: "team-a", Seat: 0}, {TeamID: "team-b", Seat: 1}},
		DraftState: &state,
	}
	if err := repo.CreateRace(context.Background(), race); err != nil {
		t.Fatal(err)
	}
	return &draftEnv{svc: svc, repo: repo, queue: queue}, race
}

func submit(teamID sharedtypes.TeamID, action draftevents.ActionV1) *draftevents.ActionSubmittedPayloadV1 {
	return &draftevents.ActionSubmittedPayloadV1{
		RaceID: "race-1",
		TeamID: teamID,
		By:     "user",
		Action: action,
		Source: "thread",
	}
}

func TestSubmitAction_Advances(t *testing.T) {
	env, race := newDraftEnv(t)

	result, err := env.svc.SubmitAction(context.Background(), submit("team-a",
		draftevents.ActionV1{Kind: draftevents.ActionBan, Setting: "bridge"}))
	if err != nil {
		t.Fatalf("SubmitAction returned error: %v", err)
	}
	advanced, ok := result.Success.(*draftevents.AdvancedPayloadV1)
	if !ok {
		t.Fatalf("expected AdvancedPayloadV1, got %T (failure %v)", result.Success, result.Failure)
	}
	if advanced.Complete {
		t.Error("draft should not be complete after one of two steps")
	}
	if advanced.NextTurn == nil || *advanced.NextTurn != "team-b" {
		t.Errorf("NextTurn = %v, want team-b", advanced.NextTurn)
	}

	stored, _ := env.repo.GetRace(context.Background(), race.ID)
	if stored.DraftState.StepsDone != 1 {
		t.Errorf("StepsDone = %d, want 1", stored.DraftState.StepsDone)
	}
	if len(env.queue.calls) != 1 || env.queue.calls[0] != "draft_reminder:race-1:1" {
		t.Errorf("queue calls = %v, want one reminder armed for step 1", env.queue.calls)
	}
}

func TestSubmitAction_WrongParty(t *testing.T) {
	env, race := newDraftEnv(t)

	result, err := env.svc.SubmitAction(context.Background(), submit("team-b",
		draftevents.ActionV1{Kind: draftevents.ActionBan, Setting: "bridge"}))
	if err != nil {
		t.Fatalf("SubmitAction returned error: %v", err)
	}
	rejected, ok := result.Failure.(*draftevents.RejectedPayloadV1)
	if !ok {
		t.Fatalf("expected RejectedPayloadV1, got %T", result.Failure)
	}
	if !strings.Contains(rejected.Reason, "not your turn") {
		t.Errorf("reason = %q", rejected.Reason)
	}
	if rejected.Source != "thread" {
		t.Errorf("source = %q, want thread", rejected.Source)
	}

	stored, _ := env.repo.GetRace(context.Background(), race.ID)
	if stored.DraftState.StepsDone != 0 {
		t.Error("rejected submission must not advance the draft")
	}
}

func TestSubmitAction_CompletionFinalizesSettings(t *testing.T) {
	env, race := newDraftEnv(t)
	start := time.Date(2026, 3, 12, 19, 0, 0, 0, time.UTC)
	if _, err := env.repo.UpdateRace(context.Background(), race.ID, func(r *racedb.Race) error {
		r.ScheduledStart = &start
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := env.svc.SubmitAction(context.Background(), submit("team-a",
		draftevents.ActionV1{Kind: draftevents.ActionBan, Setting: "bridge"})); err != nil {
		t.Fatal(err)
	}
	result, err := env.svc.SubmitAction(context.Background(), submit("team-b",
		draftevents.ActionV1{Kind: draftevents.ActionPick, Setting: "trials", Value: "3"}))
	if err != nil {
		t.Fatalf("SubmitAction returned error: %v", err)
	}

	completion, ok := result.Success.(*Completion)
	if !ok {
		t.Fatalf("expected Completion, got %T (failure %v)", result.Success, result.Failure)
	}
	if !completion.Advanced.Complete {
		t.Error("Advanced.Complete = false on the final step")
	}
	want := map[string]string{"bridge": "open", "trials": "3"}
	for name, value := range want {
		if completion.Completed.Settings[name] != value {
			t.Errorf("settings[%s] = %q, want %q", name, completion.Completed.Settings[name], value)
		}
	}

	stored, _ := env.repo.GetRace(context.Background(), race.ID)
	if stored.Settings == nil {
		t.Fatal("settings snapshot not persisted")
	}
	if stored.Status != sharedtypes.RaceStatusPendingRoom {
		t.Errorf("status = %q, want pending_room for a scheduled race", stored.Status)
	}
	if stored.DraftState != nil {
		t.Error("draft state still present after settings were finalized")
	}
}

func TestSubmitAction_CompletionWithoutScheduleStaysScheduling(t *testing.T) {
	env, race := newDraftEnv(t)

	if _, err := env.svc.SubmitAction(context.Background(), submit("team-a",
		draftevents.ActionV1{Kind: draftevents.ActionBan, Setting: "bridge"})); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.SubmitAction(context.Background(), submit("team-b",
		draftevents.ActionV1{Kind: draftevents.ActionPick, Setting: "trials", Value: "0"})); err != nil {
		t.Fatal(err)
	}

	stored, _ := env.repo.GetRace(context.Background(), race.ID)
	if stored.Status != sharedtypes.RaceStatusScheduling {
		t.Errorf("status = %q, want scheduling until a start time exists", stored.Status)
	}
}

func TestRemind(t *testing.T) {
	env, race := newDraftEnv(t)

	result, err := env.svc.Remind(context.Background(), race.ID, 0)
	if err != nil {
		t.Fatalf("Remind returned error: %v", err)
	}
	started, ok := result.Success.(*draftevents.StartedPayloadV1)
	if !ok {
		t.Fatalf("expected StartedPayloadV1, got %T", result.Success)
	}
	if started.Turn != "team-a" {
		t.Errorf("turn = %q, want team-a", started.Turn)
	}
	if started.Prompt == "" {
		t.Error("prompt must not be empty")
	}
}

func TestRemind_StaleIsDropped(t *testing.T) {
	env, race := newDraftEnv(t)
	if _, err := env.svc.SubmitAction(context.Background(), submit("team-a",
		draftevents.ActionV1{Kind: draftevents.ActionBan, Setting: "bridge"})); err != nil {
		t.Fatal(err)
	}

	result, err := env.svc.Remind(context.Background(), race.ID, 0)
	if err != nil {
		t.Fatalf("Remind returned error: %v", err)
	}
	if result.Success != nil || result.Failure != nil {
		t.Errorf("stale reminder must be silent, got %+v", result)
	}
}

func TestStartDraft_NoDraftIsSilent(t *testing.T) {
	env, _ := newDraftEnv(t)
	plain := &racedb.Race{
		ID:      "race-2",
		EventID: "s5",
		Status:  sharedtypes.RaceStatusScheduling,
	}
	if err := env.repo.CreateRace(context.Background(), plain); err != nil {
		t.Fatal(err)
	}

	result, err := env.svc.StartDraft(context.Background(), "race-2")
	if err != nil {
		t.Fatalf("StartDraft returned error: %v", err)
	}
	if result.Success != nil || result.Failure != nil {
		t.Errorf("expected silence for a draftless race, got %+v", result)
	}
}
