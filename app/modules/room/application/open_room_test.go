package roomservice

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/trace/noop"

	draftdomain "github.com/midoshouse/midos.house/app/modules/draft/domain"
	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	teamdb "github.com/midoshouse/midos.house/app/modules/team/infrastructure/repositories"
	racechatevents "github.com/midoshouse/midos.house/app/shared/events/racechat"
	roomevents "github.com/midoshouse/midos.house/app/shared/events/room"
	"github.com/midoshouse/midos.house/app/shared/observability/metrics"
	eventtypes "github.com/midoshouse/midos.house/app/shared/types/event"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type roomEnv struct {
	svc   *RoomService
	cfg   *eventtypes.EventConfig
	repo  *fakeRaceRepo
	teams *fakeTeamRepo
	queue *fakeQueue
}

func newRoomEnv(t *testing.T) *roomEnv {
	t.Helper()
	cfg := &eventtypes.EventConfig{
		ID:                      "s5",
		DisplayName:             "Season 5",
		GameCount:               1,
		FPAEnabled:              true,
		RestreamConsentRequired: true,
		Organizers:              []sharedtypes.UserID{"org-1"},
	}
	repo := newFakeRaceRepo()
	teams := &fakeTeamRepo{teams: map[sharedtypes.TeamID]*teamdb.Team{
		"team-a": {ID: "team-a", EventID: "s5", Name: "Alpha", Members: []teamdb.Member{
			{UserID: "user-a1", DisplayName: "Ana", Status: teamdb.MemberStatusConfirmed},
			{UserID: "user-a2", DisplayName: "Avi", Status: teamdb.MemberStatusConfirmed},
		}},
		"team-b": {ID: "team-b", EventID: "s5", Name: "Bravo", Members: []teamdb.Member{
			{UserID: "user-b1", DisplayName: "Bea", Status: teamdb.MemberStatusConfirmed},
		}},
	}}
	queue := &fakeQueue{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracer := noop.NewTracerProvider().Tracer("test")
	svc, err := NewRoomService(repo, &fakeEventRepo{cfg: cfg}, teams, queue, logger, metrics.Noop{}, tracer)
	if err != nil {
		t.Fatal(err)
	}
	svc.clock = func() time.Time { return testNow }
	return &roomEnv{svc: svc, cfg: cfg, repo: repo, teams: teams, queue: queue}
}

func (e *roomEnv) seedRace(t *testing.T, mutate func(race *racedb.Race)) *racedb.Race {
	t.Helper()
	start := testNow.Add(30 * time.Minute)
	race := &racedb.Race{
		ID:             "race-1",
		EventID:        "s5",
		Game:           1,
		GameCount:      1,
		Phase:          "Swiss",
		Round:          "Round 3",
		Status:         sharedtypes.RaceStatusPendingRoom,
		ScheduledStart: &start,
		Settings:       map[string]string{"bridge": "open", "trials": "0"},
		Entrants: []racedb.Entrant{
			{TeamID: "team-a", Seat: 0, Confirmed: true},
			{TeamID: "team-b", Seat: 1, Confirmed: true},
		},
	}
	if mutate != nil {
		mutate(race)
	}
	if err := e.repo.CreateRace(context.Background(), race); err != nil {
		t.Fatal(err)
	}
	return race
}

func TestEvaluateOpen_BuildsCreateRequest(t *testing.T) {
	env := newRoomEnv(t)
	env.seedRace(t, nil)

	result, err := env.svc.EvaluateOpen(context.Background(), "race-1", sharedtypes.RoomKindNormal, 0)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := result.Success.(*racechatevents.RoomCreatePayloadV1)
	if !ok {
		t.Fatalf("expected RoomCreatePayloadV1, got %T", result.Success)
	}
	want := &racechatevents.RoomCreatePayloadV1{
		RaceID:  "race-1",
		Kind:    sharedtypes.RoomKindNormal,
		Attempt: 1,
		Config: racechatevents.RoomConfigV1{
			Goal:              "Season 5 - Swiss - Round 3",
			Info:              "bridge: open, trials: 0",
			StreamingRequired: true,
			InviteUserIDs:     []sharedtypes.UserID{"user-a1", "user-a2", "user-b1"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("create request mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateOpen_AsyncRoomIsUnlisted(t *testing.T) {
	env := newRoomEnv(t)
	env.seedRace(t, func(race *racedb.Race) {
		race.ScheduledStart = nil
		start := testNow.Add(15 * time.Minute)
		race.AsyncStart1 = &start
	})

	result, err := env.svc.EvaluateOpen(context.Background(), "race-1", sharedtypes.RoomKindAsync1, 1)
	if err != nil {
		t.Fatal(err)
	}
	payload := result.Success.(*racechatevents.RoomCreatePayloadV1)
	if !payload.Config.Unlisted {
		t.Error("async room should be unlisted")
	}
}

func TestEvaluateOpen_Guards(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(race *racedb.Race)
		kind   sharedtypes.RoomKind
	}{
		{"race recorded", func(r *racedb.Race) { r.Status = sharedtypes.RaceStatusRecorded }, sharedtypes.RoomKindNormal},
		{"needs review", func(r *racedb.Race) { r.Status = sharedtypes.RaceStatusNeedsReview }, sharedtypes.RoomKindNormal},
		{"creation abandoned", func(r *racedb.Race) { r.Meta(sharedtypes.RoomKindNormal).Failed = true }, sharedtypes.RoomKindNormal},
		{"room already exists", func(r *racedb.Race) { r.Room = "oot/abc" }, sharedtypes.RoomKindNormal},
		{"no start for kind", nil, sharedtypes.RoomKindAsync1},
		{"draft not complete", func(r *racedb.Race) {
			r.Settings = nil
			r.DraftState = &draftdomain.State{HighSeed: "team-a", LowSeed: "team-b"}
		}, sharedtypes.RoomKindNormal},
		{"unconfirmed entrant", func(r *racedb.Race) { r.Entrants[1].Confirmed = false }, sharedtypes.RoomKindNormal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newRoomEnv(t)
			env.seedRace(t, tc.mutate)
			result, err := env.svc.EvaluateOpen(context.Background(), "race-1", tc.kind, 1)
			if err != nil {
				t.Fatal(err)
			}
			if result.Success != nil || result.Failure != nil {
				t.Errorf("expected empty result, got %+v", result)
			}
		})
	}
}

func TestEvaluateOpen_StartOutsideOpenWindow(t *testing.T) {
	env := newRoomEnv(t)
	env.seedRace(t, func(r *racedb.Race) {
		start := testNow.Add(30 * 24 * time.Hour)
		r.ScheduledStart = &start
	})

	result, err := env.svc.EvaluateOpen(context.Background(), "race-1", sharedtypes.RoomKindNormal, 1)
	if err != nil {
		t.Fatal(err)
	}
	if result.Success != nil {
		t.Errorf("room must not open a month before the start, got %+v", result.Success)
	}
}

func TestEvaluateOpen_ConfiguredLeadBoundsWindow(t *testing.T) {
	env := newRoomEnv(t)
	env.cfg.OpenRoomLead = 10 * time.Minute
	env.seedRace(t, nil)

	result, err := env.svc.EvaluateOpen(context.Background(), "race-1", sharedtypes.RoomKindNormal, 1)
	if err != nil {
		t.Fatal(err)
	}
	if result.Success != nil {
		t.Errorf("start 30m out is beyond a 10m lead, got %+v", result.Success)
	}
}

func TestEvaluateOpen_MissingRaceIsSilent(t *testing.T) {
	env := newRoomEnv(t)
	result, err := env.svc.EvaluateOpen(context.Background(), "nope", sharedtypes.RoomKindNormal, 1)
	if err != nil {
		t.Fatal(err)
	}
	if result.Success != nil {
		t.Errorf("expected empty result, got %+v", result.Success)
	}
}

func TestEvaluateAll_OnlyOpenableKinds(t *testing.T) {
	env := newRoomEnv(t)
	env.seedRace(t, nil)

	out, err := env.svc.EvaluateAll(context.Background(), "race-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one create request, got %d", len(out))
	}
	if out[0].Topic != racechatevents.RoomCreateV1 {
		t.Errorf("unexpected topic %s", out[0].Topic)
	}
}

func TestRecordCreated_StoresHandleAndMonitors(t *testing.T) {
	env := newRoomEnv(t)
	env.seedRace(t, nil)

	result, err := env.svc.RecordCreated(context.Background(), "race-1", sharedtypes.RoomKindNormal, "oot/brave-link-1234")
	if err != nil {
		t.Fatal(err)
	}
	opened := result.Success.(*roomevents.OpenedPayloadV1)
	if opened.Handle != "oot/brave-link-1234" {
		t.Errorf("unexpected handle %s", opened.Handle)
	}

	race, err := env.repo.GetRace(context.Background(), "race-1")
	if err != nil {
		t.Fatal(err)
	}
	if race.Room != "oot/brave-link-1234" {
		t.Errorf("handle not stored: %s", race.Room)
	}
	meta := race.Meta(sharedtypes.RoomKindNormal)
	if !meta.AutoOpened || !meta.Monitoring || meta.LastStatus != roomevents.StatusOpen {
		t.Errorf("unexpected room meta %+v", meta)
	}
}

func TestRecordCreated_RedeliveryIsNoOp(t *testing.T) {
	env := newRoomEnv(t)
	env.seedRace(t, nil)

	if _, err := env.svc.RecordCreated(context.Background(), "race-1", sharedtypes.RoomKindNormal, "oot/abc"); err != nil {
		t.Fatal(err)
	}
	before, _ := env.repo.GetRace(context.Background(), "race-1")

	result, err := env.svc.RecordCreated(context.Background(), "race-1", sharedtypes.RoomKindNormal, "oot/abc")
	if err != nil {
		t.Fatal(err)
	}
	if result.Success != nil {
		t.Error("redelivered acknowledgement should publish nothing")
	}
	after, _ := env.repo.GetRace(context.Background(), "race-1")
	if after.Revision != before.Revision {
		t.Errorf("redelivery must not write: revision %d -> %d", before.Revision, after.Revision)
	}
}

func TestRecordCreated_ConflictingHandleDropped(t *testing.T) {
	env := newRoomEnv(t)
	env.seedRace(t, nil)

	if _, err := env.svc.RecordCreated(context.Background(), "race-1", sharedtypes.RoomKindNormal, "oot/first"); err != nil {
		t.Fatal(err)
	}
	result, err := env.svc.RecordCreated(context.Background(), "race-1", sharedtypes.RoomKindNormal, "oot/second")
	if err != nil {
		t.Fatal(err)
	}
	if result.Success != nil {
		t.Error("conflicting acknowledgement should publish nothing")
	}
	race, _ := env.repo.GetRace(context.Background(), "race-1")
	if race.Room != "oot/first" {
		t.Errorf("authoritative handle lost: %s", race.Room)
	}
}

func TestRecordCreationFailure_SchedulesBackoffRetry(t *testing.T) {
	env := newRoomEnv(t)
	env.seedRace(t, nil)

	result, err := env.svc.RecordCreationFailure(context.Background(), &roomevents.CreationFailedPayloadV1{
		RaceID: "race-1", Kind: sharedtypes.RoomKindNormal, Attempt: 1, Reason: "503",
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Success != nil {
		t.Error("first failure should not abandon")
	}
	want := []string{"room_retry:race-1:normal:2:" + testNow.Add(2*time.Minute).Format(time.RFC3339)}
	if diff := cmp.Diff(want, env.queue.calls); diff != "" {
		t.Errorf("queue calls mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordCreationFailure_AbandonsAtLimit(t *testing.T) {
	env := newRoomEnv(t)
	env.seedRace(t, func(r *racedb.Race) { r.Meta(sharedtypes.RoomKindNormal).Attempts = 2 })

	result, err := env.svc.RecordCreationFailure(context.Background(), &roomevents.CreationFailedPayloadV1{
		RaceID: "race-1", Kind: sharedtypes.RoomKindNormal, Attempt: 3, Reason: "503",
	})
	if err != nil {
		t.Fatal(err)
	}
	abandoned := result.Success.(*roomevents.CreationAbandonedPayloadV1)
	if abandoned.Attempts != 3 {
		t.Errorf("unexpected attempt count %d", abandoned.Attempts)
	}
	if len(env.queue.calls) != 0 {
		t.Errorf("no retry should be scheduled, got %v", env.queue.calls)
	}
	race, _ := env.repo.GetRace(context.Background(), "race-1")
	if !race.Meta(sharedtypes.RoomKindNormal).Failed {
		t.Error("room should be flagged as failed")
	}
}

func TestRecordCreationFailure_RedeliveredAttemptIgnored(t *testing.T) {
	env := newRoomEnv(t)
	env.seedRace(t, func(r *racedb.Race) { r.Meta(sharedtypes.RoomKindNormal).Attempts = 2 })

	result, err := env.svc.RecordCreationFailure(context.Background(), &roomevents.CreationFailedPayloadV1{
		RaceID: "race-1", Kind: sharedtypes.RoomKindNormal, Attempt: 2, Reason: "503",
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Success != nil {
		t.Error("redelivered failure should publish nothing")
	}
	if len(env.queue.calls) != 0 {
		t.Errorf("redelivered failure must not schedule another retry, got %v", env.queue.calls)
	}
}

func TestRecordStatus_InProgressAdvancesRace(t *testing.T) {
	env := newRoomEnv(t)
	env.seedRace(t, func(r *racedb.Race) {
		r.Room = "oot/abc"
		r.Meta(sharedtypes.RoomKindNormal).Monitoring = true
		r.Meta(sharedtypes.RoomKindNormal).LastStatus = roomevents.StatusOpen
	})

	result, err := env.svc.RecordStatus(context.Background(), &roomevents.StatusChangedPayloadV1{
		Handle: "oot/abc", Status: roomevents.StatusInProgress,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Success != nil {
		t.Error("in-progress is not a closing status")
	}
	race, _ := env.repo.GetRace(context.Background(), "race-1")
	if race.Status != sharedtypes.RaceStatusInProgress {
		t.Errorf("race status = %s, want in_progress", race.Status)
	}
}

func TestRecordStatus_DuplicateDropped(t *testing.T) {
	env := newRoomEnv(t)
	env.seedRace(t, func(r *racedb.Race) {
		r.Room = "oot/abc"
		r.Meta(sharedtypes.RoomKindNormal).LastStatus = roomevents.StatusInProgress
	})
	before, _ := env.repo.GetRace(context.Background(), "race-1")

	result, err := env.svc.RecordStatus(context.Background(), &roomevents.StatusChangedPayloadV1{
		Handle: "oot/abc", Status: roomevents.StatusInProgress,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Success != nil {
		t.Error("duplicate status should publish nothing")
	}
	after, _ := env.repo.GetRace(context.Background(), "race-1")
	if after.Revision != before.Revision {
		t.Error("duplicate status must not write")
	}
}

func TestRecordStatus_UnknownRoomIsSilent(t *testing.T) {
	env := newRoomEnv(t)
	result, err := env.svc.RecordStatus(context.Background(), &roomevents.StatusChangedPayloadV1{
		Handle: "oot/stranger", Status: roomevents.StatusFinished,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Success != nil {
		t.Error("unknown room should publish nothing")
	}
}

func TestRecordStatus_FinishedExtractsTeamResults(t *testing.T) {
	env := newRoomEnv(t)
	env.seedRace(t, func(r *racedb.Race) {
		r.Room = "oot/abc"
		r.Status = sharedtypes.RaceStatusInProgress
		r.Meta(sharedtypes.RoomKindNormal).Monitoring = true
		r.Meta(sharedtypes.RoomKindNormal).LastStatus = roomevents.StatusInProgress
	})

	fast := sharedtypes.FinishTime(90 * time.Minute)
	slow := sharedtypes.FinishTime(95 * time.Minute)
	result, err := env.svc.RecordStatus(context.Background(), &roomevents.StatusChangedPayloadV1{
		Handle: "oot/abc",
		Status: roomevents.StatusFinished,
		Entrants: []roomevents.RoomEntrantV1{
			{UserID: "user-a1", Status: "done", FinishTime: &fast, Place: 1},
			{UserID: "user-a2", Status: "done", FinishTime: &slow, Place: 2},
			{UserID: "user-b1", Status: "dnf"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	closed := result.Success.(*roomevents.ClosedPayloadV1)
	if closed.Cancelled {
		t.Error("finished room is not cancelled")
	}
	want := []roomevents.EntrantResultV1{
		{TeamID: "team-a", FinishTime: &slow, Place: 1},
		{TeamID: "team-b", Forfeited: true},
	}
	if diff := cmp.Diff(want, closed.Results); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}

	race, _ := env.repo.GetRace(context.Background(), "race-1")
	if race.Meta(sharedtypes.RoomKindNormal).Monitoring {
		t.Error("monitoring should stop on close")
	}
}

func TestRecordStatus_AbsentTeamForfeits(t *testing.T) {
	env := newRoomEnv(t)
	env.seedRace(t, func(r *racedb.Race) {
		r.Room = "oot/abc"
		r.Meta(sharedtypes.RoomKindNormal).LastStatus = roomevents.StatusInProgress
	})

	result, err := env.svc.RecordStatus(context.Background(), &roomevents.StatusChangedPayloadV1{
		Handle:   "oot/abc",
		Status:   roomevents.StatusCancelled,
		Entrants: nil,
	})
	if err != nil {
		t.Fatal(err)
	}
	closed := result.Success.(*roomevents.ClosedPayloadV1)
	if !closed.Cancelled {
		t.Error("cancelled room should be flagged")
	}
	for _, r := range closed.Results {
		if !r.Forfeited {
			t.Errorf("team %s with nobody in the room should forfeit", r.TeamID)
		}
	}
}
