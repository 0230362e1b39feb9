package raceservice

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	teamdb "github.com/midoshouse/midos.house/app/modules/team/infrastructure/repositories"
	raceevents "github.com/midoshouse/midos.house/app/shared/events/race"
	"github.com/midoshouse/midos.house/app/shared/observability/metrics"
	eventtypes "github.com/midoshouse/midos.house/app/shared/types/event"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils/ptr"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	svc   *RaceService
	repo  *FakeRaceRepository
	queue *FakeQueue
	teams *FakeTeamRepo
	cfg   *eventtypes.EventConfig
}

func newTestEnv() *testEnv {
	cfg := &eventtypes.EventConfig{
		ID:                "s5",
		DisplayName:       "Season 5",
		GameCount:         3,
		MinScheduleNotice: 30 * time.Minute,
		OpenRoomLead:      30 * time.Minute,
		SeedLead:          15 * time.Minute,
		Draft: &eventtypes.DraftConfig{
			Settings: []eventtypes.DraftSetting{
				{Name: "bridge", Display: "Bridge", Default: "open",
					Options: []eventtypes.DraftOption{{Value: "open"}, {Value: "medallions"}}},
			},
			Steps: []eventtypes.DraftStep{
				{Seat: 0, Kind: eventtypes.StepBan},
				{Seat: 1, Kind: eventtypes.StepPick},
			},
		},
	}

	teams := &FakeTeamRepo{Teams: map[sharedtypes.TeamID]*teamdb.Team{
		"team-a": {ID: "team-a", EventID: "s5", Name: "A", Members: []teamdb.Member{
			{UserID: "u1", Status: teamdb.MemberStatusConfirmed},
		}},
		"team-b": {ID: "team-b", EventID: "s5", Name: "B", Members: []teamdb.Member{
			{UserID: "u2", Status: teamdb.MemberStatusCreated},
		}},
	}}

	repo := NewFakeRaceRepository()
	queue := &FakeQueue{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracer := noop.NewTracerProvider().Tracer("test")
	svc := NewRaceService(repo, &FakeEventRepo{Config: cfg}, teams, queue, logger, metrics.Noop{}, tracer)
	svc.clock = func() time.Time { return testNow }

	return &testEnv{svc: svc, repo: repo, queue: queue, teams: teams, cfg: cfg}
}

func createRequest() *raceevents.RaceCreateRequestedPayloadV1 {
	return &raceevents.RaceCreateRequestedPayloadV1{
		EventID:   "s5",
		SetID:     "set-1",
		Phase:     "bracket",
		Round:     "quarterfinal",
		Game:      1,
		GameCount: 3,
		Entrants: []raceevents.EntrantRefV1{
			{TeamID: "team-a", Seat: 0},
			{TeamID: "team-b", Seat: 1},
		},
		Source: "bracket",
	}
}

func (e *testEnv) mustCreate(t *testing.T) *racedb.Race {
	t.Helper()
	result, err := e.svc.CreateRace(context.Background(), createRequest())
	if err != nil {
		t.Fatalf("CreateRace returned error: %v", err)
	}
	created, ok := result.Success.(*raceevents.RaceCreatedPayloadV1)
	if !ok {
		t.Fatalf("expected RaceCreatedPayloadV1, got failure %v", result.Failure)
	}
	race, err := e.repo.GetRace(context.Background(), created.RaceID)
	if err != nil {
		t.Fatalf("stored race not found: %v", err)
	}
	return race
}

func TestCreateRace(t *testing.T) {
	env := newTestEnv()
	race := env.mustCreate(t)

	if race.Status != sharedtypes.RaceStatusScheduling {
		t.Errorf("status = %q, want scheduling", race.Status)
	}
	if race.DraftState == nil {
		t.Fatal("draft state not initialized for a draft event")
	}
	if race.DraftState.HighSeed != "team-a" || race.DraftState.LowSeed != "team-b" {
		t.Errorf("seeds = %q/%q", race.DraftState.HighSeed, race.DraftState.LowSeed)
	}
	if !race.Entrants[0].Confirmed {
		t.Error("fully confirmed team-a should snapshot as confirmed")
	}
	if race.Entrants[1].Confirmed {
		t.Error("team-b has an unconfirmed member, snapshot must be false")
	}
}

func TestCreateRace_Failures(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*raceevents.RaceCreateRequestedPayloadV1)
		wantReason string
	}{
		{
			name:       "unknown event",
			mutate:     func(r *raceevents.RaceCreateRequestedPayloadV1) { r.EventID = "nope" },
			wantReason: "not configured",
		},
		{
			name:       "one entrant",
			mutate:     func(r *raceevents.RaceCreateRequestedPayloadV1) { r.Entrants = r.Entrants[:1] },
			wantReason: "2 or 3 entrants",
		},
		{
			name: "bad seats",
			mutate: func(r *raceevents.RaceCreateRequestedPayloadV1) {
				r.Entrants[0].Seat = 1
			},
			wantReason: "count up from 0",
		},
		{
			name: "unregistered team",
			mutate: func(r *raceevents.RaceCreateRequestedPayloadV1) {
				r.Entrants[0].TeamID = "ghost"
			},
			wantReason: "not registered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			req := createRequest()
			tt.mutate(req)

			result, err := env.svc.CreateRace(context.Background(), req)
			if err != nil {
				t.Fatalf("CreateRace returned error: %v", err)
			}
			failure, ok := result.Failure.(*raceevents.RaceCreationFailedPayloadV1)
			if !ok {
				t.Fatalf("expected RaceCreationFailedPayloadV1, got %T", result.Failure)
			}
			if !strings.Contains(failure.Reason, tt.wantReason) {
				t.Errorf("reason = %q, want it to contain %q", failure.Reason, tt.wantReason)
			}
		})
	}
}

func TestCreateRace_ThreeEntrants(t *testing.T) {
	env := newTestEnv()
	env.cfg.Draft = nil
	env.teams.Teams["team-c"] = &teamdb.Team{ID: "team-c", EventID: "s5", Name: "C", Members: []teamdb.Member{
		{UserID: "u3", Status: teamdb.MemberStatusConfirmed},
	}}
	req := createRequest()
	req.Entrants = append(req.Entrants, raceevents.EntrantRefV1{TeamID: "team-c", Seat: 2})

	result, err := env.svc.CreateRace(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateRace returned error: %v", err)
	}
	created, ok := result.Success.(*raceevents.RaceCreatedPayloadV1)
	if !ok {
		t.Fatalf("expected RaceCreatedPayloadV1, got failure %v", result.Failure)
	}
	race, _ := env.repo.GetRace(context.Background(), created.RaceID)
	if len(race.Entrants) != 3 {
		t.Fatalf("entrants = %d, want 3", len(race.Entrants))
	}
	if race.Entrants[2].TeamID != "team-c" || race.Entrants[2].Seat != 2 {
		t.Errorf("third entrant = %+v", race.Entrants[2])
	}
}

func TestCreateRace_DraftNeedsTwoEntrants(t *testing.T) {
	env := newTestEnv()
	env.teams.Teams["team-c"] = &teamdb.Team{ID: "team-c", EventID: "s5", Name: "C", Members: []teamdb.Member{
		{UserID: "u3", Status: teamdb.MemberStatusConfirmed},
	}}
	req := createRequest()
	req.Entrants = append(req.Entrants, raceevents.EntrantRefV1{TeamID: "team-c", Seat: 2})

	result, err := env.svc.CreateRace(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateRace returned error: %v", err)
	}
	failure, ok := result.Failure.(*raceevents.RaceCreationFailedPayloadV1)
	if !ok {
		t.Fatalf("expected RaceCreationFailedPayloadV1, got success %v", result.Success)
	}
	if !strings.Contains(failure.Reason, "settings draft needs exactly 2") {
		t.Errorf("reason = %q", failure.Reason)
	}
}

func TestCreateRace_HardSettingsOptIn(t *testing.T) {
	env := newTestEnv()
	race := env.mustCreate(t)
	if race.DraftState.HardOK {
		t.Error("hard settings open without both opt-ins")
	}

	env.teams.Teams["team-a"].OptIns.HardSettingsOK = true
	env.teams.Teams["team-b"].OptIns.HardSettingsOK = true
	race = env.mustCreate(t)
	if !race.DraftState.HardOK {
		t.Error("hard settings stayed closed with both teams opted in")
	}
}

func TestCreateRace_LoserPicksFirst(t *testing.T) {
	env := newTestEnv()
	req := createRequest()
	req.Game = 2
	req.LoserPicksFirst = ptr.To(sharedtypes.TeamID("team-b"))

	result, err := env.svc.CreateRace(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateRace returned error: %v", err)
	}
	created := result.Success.(*raceevents.RaceCreatedPayloadV1)
	race, _ := env.repo.GetRace(context.Background(), created.RaceID)
	if race.DraftState.FirstPicker != "team-b" {
		t.Errorf("FirstPicker = %q, want the previous loser", race.DraftState.FirstPicker)
	}
}

func TestSetSchedule(t *testing.T) {
	env := newTestEnv()
	race := env.mustCreate(t)
	start := testNow.Add(2 * time.Hour)

	result, err := env.svc.SetSchedule(context.Background(), &raceevents.ScheduleSetRequestedPayloadV1{
		RaceID:      race.ID,
		Start:       &start,
		RequestedBy: "u1",
	})
	if err != nil {
		t.Fatalf("SetSchedule returned error: %v", err)
	}
	if result.Success == nil {
		t.Fatalf("expected success, got failure %v", result.Failure)
	}

	stored, _ := env.repo.GetRace(context.Background(), race.ID)
	if stored.ScheduledStart == nil || !stored.ScheduledStart.Equal(start) {
		t.Errorf("stored start = %v, want %v", stored.ScheduledStart, start)
	}
	if stored.Status != sharedtypes.RaceStatusDrafting {
		t.Errorf("status = %q, want drafting while settings are open", stored.Status)
	}
	if stored.LastEditedBy == nil || *stored.LastEditedBy != "u1" {
		t.Error("audit author not stamped")
	}

	wantOpen := "room_open:" + string(race.ID) + ":normal:" + start.Add(-env.cfg.OpenRoomLead).Format(time.RFC3339)
	wantSeed := "seed_roll:" + string(race.ID) + ":1:" + start.Add(-env.cfg.SeedLead).Format(time.RFC3339)
	var haveCancel, haveOpen, haveSeed bool
	for _, call := range env.queue.Calls {
		switch call {
		case "cancel:" + string(race.ID):
			haveCancel = true
		case wantOpen:
			haveOpen = true
		case wantSeed:
			haveSeed = true
		}
	}
	if !haveCancel || !haveOpen || !haveSeed {
		t.Errorf("queue calls = %v, want cancel + room open + seed roll", env.queue.Calls)
	}
}

func TestSetSchedule_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		req        func(race *racedb.Race) *raceevents.ScheduleSetRequestedPayloadV1
		prepare    func(env *testEnv, race *racedb.Race)
		wantReason string
		wantLocked bool
	}{
		{
			name: "too little notice",
			req: func(race *racedb.Race) *raceevents.ScheduleSetRequestedPayloadV1 {
				start := testNow.Add(10 * time.Minute)
				return &raceevents.ScheduleSetRequestedPayloadV1{RaceID: race.ID, Start: &start, RequestedBy: "u1"}
			},
			wantReason: "at least 30m0s away",
		},
		{
			name: "blackout window",
			prepare: func(env *testEnv, _ *racedb.Race) {
				env.cfg.Blackouts = []eventtypes.BlackoutWindow{
					{From: testNow.Add(time.Hour), To: testNow.Add(3 * time.Hour)},
				}
			},
			req: func(race *racedb.Race) *raceevents.ScheduleSetRequestedPayloadV1 {
				start := testNow.Add(2 * time.Hour)
				return &raceevents.ScheduleSetRequestedPayloadV1{RaceID: race.ID, Start: &start, RequestedBy: "u1"}
			},
			wantReason: "blackout",
		},
		{
			name: "both start shapes",
			req: func(race *racedb.Race) *raceevents.ScheduleSetRequestedPayloadV1 {
				start := testNow.Add(2 * time.Hour)
				return &raceevents.ScheduleSetRequestedPayloadV1{
					RaceID: race.ID,
					Start:  &start,
					AsyncStarts: map[sharedtypes.RoomKind]time.Time{
						sharedtypes.RoomKindAsync1: start,
					},
					RequestedBy: "u1",
				}
			},
			wantReason: "exactly one",
		},
		{
			name: "locked schedule",
			prepare: func(env *testEnv, race *racedb.Race) {
				if _, err := env.svc.SetLock(context.Background(), race.ID, true, "organizer"); err != nil {
					panic(err)
				}
			},
			req: func(race *racedb.Race) *raceevents.ScheduleSetRequestedPayloadV1 {
				start := testNow.Add(2 * time.Hour)
				return &raceevents.ScheduleSetRequestedPayloadV1{RaceID: race.ID, Start: &start, RequestedBy: "u1"}
			},
			wantReason: "locked",
			wantLocked: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			race := env.mustCreate(t)
			if tt.prepare != nil {
				tt.prepare(env, race)
			}

			result, err := env.svc.SetSchedule(context.Background(), tt.req(race))
			if err != nil {
				t.Fatalf("SetSchedule returned error: %v", err)
			}
			rejected, ok := result.Failure.(*raceevents.ScheduleRejectedPayloadV1)
			if !ok {
				t.Fatalf("expected ScheduleRejectedPayloadV1, got %T", result.Failure)
			}
			if !strings.Contains(rejected.Reason, tt.wantReason) {
				t.Errorf("reason = %q, want it to contain %q", rejected.Reason, tt.wantReason)
			}
			if rejected.Locked != tt.wantLocked {
				t.Errorf("locked = %v, want %v", rejected.Locked, tt.wantLocked)
			}
		})
	}
}

func TestSetSchedule_SystemActorBypassesNotice(t *testing.T) {
	env := newTestEnv()
	race := env.mustCreate(t)
	start := testNow.Add(5 * time.Minute)

	result, err := env.svc.SetSchedule(context.Background(), &raceevents.ScheduleSetRequestedPayloadV1{
		RaceID:      race.ID,
		Start:       &start,
		RequestedBy: sharedtypes.SystemActor,
	})
	if err != nil {
		t.Fatalf("SetSchedule returned error: %v", err)
	}
	if result.Success == nil {
		t.Fatalf("expected success, got failure %v", result.Failure)
	}
}

func TestRemoveSchedule(t *testing.T) {
	env := newTestEnv()
	race := env.mustCreate(t)
	start := testNow.Add(2 * time.Hour)
	if _, err := env.svc.SetSchedule(context.Background(), &raceevents.ScheduleSetRequestedPayloadV1{
		RaceID: race.ID, Start: &start, RequestedBy: "u1",
	}); err != nil {
		t.Fatal(err)
	}

	result, err := env.svc.RemoveSchedule(context.Background(), race.ID, "u2")
	if err != nil {
		t.Fatalf("RemoveSchedule returned error: %v", err)
	}
	if result.Success == nil {
		t.Fatalf("expected success, got failure %v", result.Failure)
	}

	stored, _ := env.repo.GetRace(context.Background(), race.ID)
	if stored.ScheduledStart != nil {
		t.Error("start not cleared")
	}
	if stored.Status != sharedtypes.RaceStatusScheduling {
		t.Errorf("status = %q, want scheduling", stored.Status)
	}
}

func TestWithdraw(t *testing.T) {
	env := newTestEnv()
	race := env.mustCreate(t)

	result, err := env.svc.Withdraw(context.Background(), race.ID, "team-b", "u2", "cannot make it")
	if err != nil {
		t.Fatalf("Withdraw returned error: %v", err)
	}
	if _, ok := result.Success.(*raceevents.RaceWithdrawnPayloadV1); !ok {
		t.Fatalf("expected RaceWithdrawnPayloadV1, got failure %v", result.Failure)
	}

	stored, _ := env.repo.GetRace(context.Background(), race.ID)
	if stored.Status != sharedtypes.RaceStatusWithdrawn {
		t.Errorf("status = %q, want withdrawn", stored.Status)
	}

	var cancelled bool
	for _, call := range env.queue.Calls {
		if call == "cancel:"+string(race.ID) {
			cancelled = true
		}
	}
	if !cancelled {
		t.Error("pending timers not cancelled on withdrawal")
	}

	// Withdrawal is idempotent.
	again, err := env.svc.Withdraw(context.Background(), race.ID, "team-b", "u2", "dup")
	if err != nil {
		t.Fatalf("second Withdraw returned error: %v", err)
	}
	if again.Success == nil {
		t.Fatalf("second withdrawal should be a no-op success, got %v", again.Failure)
	}
}

func TestWithdraw_RecordedRaceRefused(t *testing.T) {
	env := newTestEnv()
	race := env.mustCreate(t)
	if _, err := env.repo.UpdateRace(context.Background(), race.ID, func(r *racedb.Race) error {
		r.Status = sharedtypes.RaceStatusRecorded
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	result, err := env.svc.Withdraw(context.Background(), race.ID, "team-b", "u2", "late")
	if err != nil {
		t.Fatalf("Withdraw returned error: %v", err)
	}
	failure, ok := result.Failure.(*raceevents.WithdrawFailedPayloadV1)
	if !ok {
		t.Fatalf("expected WithdrawFailedPayloadV1, got %T", result.Failure)
	}
	if !strings.Contains(failure.Reason, "already recorded") {
		t.Errorf("reason = %q", failure.Reason)
	}
}

func TestSyncTeamConfirmation(t *testing.T) {
	env := newTestEnv()
	race := env.mustCreate(t)

	env.teams.Teams["team-b"].Members[0].Status = teamdb.MemberStatusConfirmed

	updates, err := env.svc.SyncTeamConfirmation(context.Background(), "team-b")
	if err != nil {
		t.Fatalf("SyncTeamConfirmation returned error: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(updates))
	}
	if updates[0].RaceID != race.ID || !updates[0].AllConfirmed {
		t.Errorf("update = %+v", updates[0])
	}

	// Redelivery settles to silence.
	updates, err = env.svc.SyncTeamConfirmation(context.Background(), "team-b")
	if err != nil {
		t.Fatalf("second SyncTeamConfirmation returned error: %v", err)
	}
	if len(updates) != 0 {
		t.Errorf("redelivered sync produced %d updates, want 0", len(updates))
	}
}

func TestWithdrawTeam(t *testing.T) {
	env := newTestEnv()
	race := env.mustCreate(t)

	withdrawn, err := env.svc.WithdrawTeam(context.Background(), "team-a")
	if err != nil {
		t.Fatalf("WithdrawTeam returned error: %v", err)
	}
	if len(withdrawn) != 1 || withdrawn[0].RaceID != race.ID {
		t.Fatalf("withdrawn = %+v, want the one active race", withdrawn)
	}
	if withdrawn[0].By != sharedtypes.SystemActor {
		t.Errorf("By = %q, want system actor", withdrawn[0].By)
	}
}
