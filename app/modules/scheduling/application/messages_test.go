package schedulingservice

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/trace/noop"

	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	teamdb "github.com/midoshouse/midos.house/app/modules/team/infrastructure/repositories"
	draftevents "github.com/midoshouse/midos.house/app/shared/events/draft"
	raceevents "github.com/midoshouse/midos.house/app/shared/events/race"
	schedevents "github.com/midoshouse/midos.house/app/shared/events/scheduling"
	threadevents "github.com/midoshouse/midos.house/app/shared/events/schedthread"
	"github.com/midoshouse/midos.house/app/shared/observability/metrics"
	eventtypes "github.com/midoshouse/midos.house/app/shared/types/event"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) // a Tuesday

type schedEnv struct {
	svc   *SchedulingService
	repo  *fakeRaceRepo
	teams *fakeTeamRepo
}

func newSchedEnv(t *testing.T) *schedEnv {
	t.Helper()
	cfg := &eventtypes.EventConfig{
		ID:          "s5",
		DisplayName: "Season 5",
		GameCount:   1,
		Organizers:  []sharedtypes.UserID{"org-1"},
	}
	repo := newFakeRaceRepo()
	teams := &fakeTeamRepo{teams: map[sharedtypes.TeamID]*teamdb.Team{
		"team-a": {ID: "team-a", EventID: "s5", Name: "Alpha", Members: []teamdb.Member{
			{UserID: "user-a1", DisplayName: "Ana", Status: teamdb.MemberStatusConfirmed},
		}},
		"team-b": {ID: "team-b", EventID: "s5", Name: "Bravo", Members: []teamdb.Member{
			{UserID: "user-b1", DisplayName: "Bea", Status: teamdb.MemberStatusConfirmed},
		}},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracer := noop.NewTracerProvider().Tracer("test")
	svc, err := NewSchedulingService(repo, &fakeEventRepo{cfg: cfg}, teams, logger, metrics.Noop{}, tracer)
	if err != nil {
		t.Fatal(err)
	}
	svc.clock = func() time.Time { return testNow }
	return &schedEnv{svc: svc, repo: repo, teams: teams}
}

func (e *schedEnv) seedRace(t *testing.T, mutate func(race *racedb.Race)) {
	t.Helper()
	race := &racedb.Race{
		ID:               "race-1",
		EventID:          "s5",
		Game:             1,
		GameCount:        1,
		Status:           sharedtypes.RaceStatusScheduling,
		SchedulingThread: "thread-1",
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
}

func threadMsg(author sharedtypes.UserID, text string) *schedevents.ThreadMessageReceivedPayloadV1 {
	return &schedevents.ThreadMessageReceivedPayloadV1{
		Ref:        "thread-1",
		AuthorID:   author,
		AuthorName: "Ana",
		Text:       text,
	}
}

func TestHandleMessage_ChatterIgnored(t *testing.T) {
	env := newSchedEnv(t)
	env.seedRace(t, nil)

	out, err := env.svc.HandleMessage(context.Background(), threadMsg("user-a1", "does thursday work?"))
	if err != nil {
		t.Fatal(err)
	}
	if out != nil {
		t.Errorf("chatter should yield nothing, got %v", out)
	}
}

func TestHandleMessage_UntrackedThreadIgnored(t *testing.T) {
	env := newSchedEnv(t)

	out, err := env.svc.HandleMessage(context.Background(), threadMsg("user-a1", "!schedule friday 7pm"))
	if err != nil {
		t.Fatal(err)
	}
	if out != nil {
		t.Errorf("untracked thread should yield nothing, got %v", out)
	}
}

func TestHandleMessage_ScheduleProposal(t *testing.T) {
	env := newSchedEnv(t)
	env.seedRace(t, nil)

	out, err := env.svc.HandleMessage(context.Background(), threadMsg("user-a1", "!schedule friday 7pm utc"))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Topic != raceevents.RaceScheduleSetRequestedV1 {
		t.Fatalf("expected a schedule request, got %v", out)
	}
	got := out[0].Payload.(*raceevents.ScheduleSetRequestedPayloadV1)
	wantStart := time.Date(2026, 3, 13, 19, 0, 0, 0, time.UTC)
	want := &raceevents.ScheduleSetRequestedPayloadV1{
		RaceID:      "race-1",
		Start:       &wantStart,
		RequestedBy: "user-a1",
		Source:      "thread",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleMessage_AsyncScheduleProposal(t *testing.T) {
	env := newSchedEnv(t)
	env.seedRace(t, nil)

	out, err := env.svc.HandleMessage(context.Background(), threadMsg("user-a1", "!schedule async1 friday 7pm utc"))
	if err != nil {
		t.Fatal(err)
	}
	got := out[0].Payload.(*raceevents.ScheduleSetRequestedPayloadV1)
	if got.Start != nil {
		t.Error("async proposal must not set the shared start")
	}
	want := map[sharedtypes.RoomKind]time.Time{
		sharedtypes.RoomKindAsync1: time.Date(2026, 3, 13, 19, 0, 0, 0, time.UTC),
	}
	if diff := cmp.Diff(want, got.AsyncStarts); diff != "" {
		t.Errorf("async starts mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleMessage_UnparsableTimeGetsReply(t *testing.T) {
	env := newSchedEnv(t)
	env.seedRace(t, nil)

	out, err := env.svc.HandleMessage(context.Background(), threadMsg("user-a1", "!schedule whenever"))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Topic != threadevents.MessagePostV1 {
		t.Fatalf("expected an error reply, got %v", out)
	}
	reply := out[0].Payload.(*threadevents.MessagePostPayloadV1)
	if !strings.Contains(reply.Text, "recognize") {
		t.Errorf("unexpected reply %q", reply.Text)
	}
}

func TestHandleMessage_PastTimeGetsReply(t *testing.T) {
	env := newSchedEnv(t)
	env.seedRace(t, nil)

	out, err := env.svc.HandleMessage(context.Background(), threadMsg("user-a1", "!schedule yesterday 7pm"))
	if err != nil {
		t.Fatal(err)
	}
	reply := out[0].Payload.(*threadevents.MessagePostPayloadV1)
	if !strings.Contains(reply.Text, "past") {
		t.Errorf("unexpected reply %q", reply.Text)
	}
}

func TestHandleMessage_NonEntrantRejected(t *testing.T) {
	env := newSchedEnv(t)
	env.seedRace(t, nil)

	out, err := env.svc.HandleMessage(context.Background(), threadMsg("stranger", "!schedule friday 7pm"))
	if err != nil {
		t.Fatal(err)
	}
	reply := out[0].Payload.(*threadevents.MessagePostPayloadV1)
	if !strings.Contains(reply.Text, "entrants") {
		t.Errorf("unexpected reply %q", reply.Text)
	}
}

func TestHandleMessage_Withdraw(t *testing.T) {
	env := newSchedEnv(t)
	env.seedRace(t, nil)

	out, err := env.svc.HandleMessage(context.Background(), threadMsg("user-b1", "!withdraw"))
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Topic != raceevents.RaceWithdrawRequestedV1 {
		t.Fatalf("expected a withdraw request, got %v", out)
	}
	got := out[0].Payload.(*raceevents.WithdrawRequestedPayloadV1)
	if got.TeamID != "team-b" || got.RequestedBy != "user-b1" {
		t.Errorf("unexpected withdraw request %+v", got)
	}
}

func TestHandleMessage_LockRequiresOrganizer(t *testing.T) {
	env := newSchedEnv(t)
	env.seedRace(t, nil)

	out, err := env.svc.HandleMessage(context.Background(), threadMsg("user-a1", "!lock"))
	if err != nil {
		t.Fatal(err)
	}
	reply := out[0].Payload.(*threadevents.MessagePostPayloadV1)
	if !strings.Contains(reply.Text, "organizers") {
		t.Errorf("unexpected reply %q", reply.Text)
	}

	out, err = env.svc.HandleMessage(context.Background(), threadMsg("org-1", "!lock"))
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Topic != raceevents.RaceLockRequestedV1 {
		t.Fatalf("expected a lock request, got %v", out)
	}
	got := out[0].Payload.(*raceevents.LockRequestedPayloadV1)
	if !got.Lock {
		t.Error("lock command should request locking")
	}
}

func TestHandleMessage_UnlockByOrganizer(t *testing.T) {
	env := newSchedEnv(t)
	env.seedRace(t, nil)

	out, err := env.svc.HandleMessage(context.Background(), threadMsg("org-1", "!unlock"))
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Topic != raceevents.RaceUnlockRequestedV1 {
		t.Fatalf("expected an unlock request, got %v", out)
	}
	got := out[0].Payload.(*raceevents.LockRequestedPayloadV1)
	if got.Lock {
		t.Error("unlock command should request unlocking")
	}
}

func TestHandleMessage_DraftActionFromThread(t *testing.T) {
	env := newSchedEnv(t)
	env.seedRace(t, nil)

	out, err := env.svc.HandleMessage(context.Background(), threadMsg("user-a1", "!pick bridge open"))
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Topic != draftevents.DraftActionSubmittedV1 {
		t.Fatalf("expected a draft action, got %v", out)
	}
	got := out[0].Payload.(*draftevents.ActionSubmittedPayloadV1)
	want := &draftevents.ActionSubmittedPayloadV1{
		RaceID: "race-1",
		TeamID: "team-a",
		By:     "user-a1",
		Action: draftevents.ActionV1{Kind: draftevents.ActionPick, Setting: "bridge", Value: "open"},
		Source: "thread",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("action mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleMessage_OrganizerCannotDraft(t *testing.T) {
	env := newSchedEnv(t)
	env.seedRace(t, nil)

	out, err := env.svc.HandleMessage(context.Background(), threadMsg("org-1", "!skip"))
	if err != nil {
		t.Fatal(err)
	}
	reply := out[0].Payload.(*threadevents.MessagePostPayloadV1)
	if !strings.Contains(reply.Text, "entrants") {
		t.Errorf("unexpected reply %q", reply.Text)
	}
}
