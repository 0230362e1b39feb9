package ops

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"

	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	teamdb "github.com/midoshouse/midos.house/app/modules/team/infrastructure/repositories"
	bracketevents "github.com/midoshouse/midos.house/app/shared/events/bracket"
	"github.com/midoshouse/midos.house/app/shared/spoilertoken"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils"
	"github.com/midoshouse/midos.house/app/shared/utils/ptr"
)

type fakeRaceRepo struct {
	races    map[sharedtypes.RaceID]*racedb.Race
	recorded []*racedb.Race
}

var _ racedb.Repository = (*fakeRaceRepo)(nil)

func (f *fakeRaceRepo) CreateRace(context.Context, *racedb.Race) error { return nil }

func (f *fakeRaceRepo) GetRace(_ context.Context, id sharedtypes.RaceID) (*racedb.Race, error) {
	race, ok := f.races[id]
	if !ok {
		return nil, racedb.ErrRaceNotFound
	}
	return race, nil
}

func (f *fakeRaceRepo) UpdateRace(context.Context, sharedtypes.RaceID, racedb.Mutation) (*racedb.Race, error) {
	return nil, racedb.ErrRaceNotFound
}

func (f *fakeRaceRepo) FindActiveByTeam(context.Context, sharedtypes.TeamID) ([]*racedb.Race, error) {
	return nil, nil
}

func (f *fakeRaceRepo) FindByRoom(context.Context, sharedtypes.RoomHandle) (*racedb.Race, sharedtypes.RoomKind, error) {
	return nil, sharedtypes.RoomKindNormal, racedb.ErrRaceNotFound
}

func (f *fakeRaceRepo) FindByThread(context.Context, sharedtypes.ThreadRef) (*racedb.Race, error) {
	return nil, racedb.ErrRaceNotFound
}

func (f *fakeRaceRepo) FindBySet(context.Context, sharedtypes.EventID, sharedtypes.SetID) ([]*racedb.Race, error) {
	return nil, nil
}

func (f *fakeRaceRepo) ListRoomCandidates(context.Context, time.Time, time.Duration) ([]*racedb.Race, error) {
	return nil, nil
}

func (f *fakeRaceRepo) ListSeedCandidates(context.Context, time.Time, time.Duration) ([]*racedb.Race, error) {
	return nil, nil
}

func (f *fakeRaceRepo) ListRecordedByEvent(context.Context, sharedtypes.EventID) ([]*racedb.Race, error) {
	return f.recorded, nil
}

type fakeTeamRepo struct {
	teams []*teamdb.Team
}

var _ teamdb.Repository = (*fakeTeamRepo)(nil)

func (f *fakeTeamRepo) CreateTeam(context.Context, *teamdb.Team) error { return nil }
func (f *fakeTeamRepo) GetTeam(context.Context, sharedtypes.TeamID) (*teamdb.Team, error) {
	return nil, teamdb.ErrTeamNotFound
}
func (f *fakeTeamRepo) UpdateTeam(context.Context, *teamdb.Team) error { return nil }
func (f *fakeTeamRepo) ListByEvent(context.Context, sharedtypes.EventID) ([]*teamdb.Team, error) {
	return f.teams, nil
}

type fakeBus struct {
	mu        sync.Mutex
	topics    []string
	published []*message.Message
}

func (f *fakeBus) Publish(topic string, msgs ...*message.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, msgs...)
	for range msgs {
		f.topics = append(f.topics, topic)
	}
	return nil
}

func (f *fakeBus) Subscribe(context.Context, string) (<-chan *message.Message, error) {
	return nil, errors.New("not subscribable in tests")
}

func (f *fakeBus) Close() error { return nil }

type opsEnv struct {
	server *Server
	repo   *fakeRaceRepo
	bus    *fakeBus
	signer *spoilertoken.Signer
}

func newOpsEnv(t *testing.T, probes ...Probe) *opsEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := &fakeRaceRepo{races: map[sharedtypes.RaceID]*racedb.Race{}}
	teams := &fakeTeamRepo{teams: []*teamdb.Team{
		{ID: "team-a", EventID: "s5", Name: "Alpha"},
		{ID: "team-b", EventID: "s5", Name: "Bravo"},
	}}
	bus := &fakeBus{}
	signer := spoilertoken.NewSigner([]byte("test-secret"), time.Hour)
	server := NewServer(
		Config{Addr: ":0", WebhookToken: "hook-secret", ArtifactBaseURL: "https://cdn.midos.house"},
		logger, repo, teams, bus, utils.NewHelper(logger), signer,
		prometheus.NewRegistry(), probes...,
	)
	return &opsEnv{server: server, repo: repo, bus: bus, signer: signer}
}

func (e *opsEnv) do(method, target, token string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if token != "" {
		req.Header.Set("X-Webhook-Token", token)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	env := newOpsEnv(t)
	if rec := env.do(http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz returned %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	healthy := Probe{Name: "db", Check: func(context.Context) error { return nil }}
	broken := Probe{Name: "queue", Check: func(context.Context) error { return errors.New("connection refused") }}

	env := newOpsEnv(t, healthy)
	if rec := env.do(http.MethodGet, "/readyz", "", nil); rec.Code != http.StatusOK {
		t.Errorf("readyz with healthy probes returned %d", rec.Code)
	}

	env = newOpsEnv(t, healthy, broken)
	rec := env.do(http.MethodGet, "/readyz", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with a broken probe returned %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "queue") {
		t.Errorf("readyz body does not name the broken probe: %q", rec.Body.String())
	}
}

func TestBracketWebhook(t *testing.T) {
	env := newOpsEnv(t)

	body := `{"event_id":"s5","set_id":"set-9","game_count":3}`
	rec := env.do(http.MethodPost, "/webhooks/bracket", "hook-secret", strings.NewReader(body))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("webhook returned %d: %s", rec.Code, rec.Body.String())
	}
	if len(env.bus.topics) != 1 || env.bus.topics[0] != bracketevents.BracketSetUpdatedV1 {
		t.Fatalf("published topics: %v", env.bus.topics)
	}
	var payload bracketevents.SetUpdatedPayloadV1
	if err := json.Unmarshal(env.bus.published[0].Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.SetID != "set-9" || payload.GameCount != 3 {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestBracketWebhook_Rejections(t *testing.T) {
	env := newOpsEnv(t)

	if rec := env.do(http.MethodPost, "/webhooks/bracket", "wrong", strings.NewReader(`{}`)); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token returned %d", rec.Code)
	}
	if rec := env.do(http.MethodPost, "/webhooks/bracket", "hook-secret", strings.NewReader(`{`)); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body returned %d", rec.Code)
	}
	if rec := env.do(http.MethodPost, "/webhooks/bracket", "hook-secret", strings.NewReader(`{"set_id":"set-9"}`)); rec.Code != http.StatusBadRequest {
		t.Errorf("missing event_id returned %d", rec.Code)
	}
	if len(env.bus.topics) != 0 {
		t.Errorf("rejected webhooks published: %v", env.bus.topics)
	}
}

func TestSpoilerDownload(t *testing.T) {
	env := newOpsEnv(t)
	env.repo.races["race-1"] = &racedb.Race{
		ID:          "race-1",
		EventID:     "s5",
		Status:      sharedtypes.RaceStatusRecorded,
		SpoilerPath: "spoilers/seed-1.json",
	}
	token, err := env.signer.Mint("race-1", time.Now())
	if err != nil {
		t.Fatal(err)
	}

	rec := env.do(http.MethodGet, "/seeds/race-1/spoiler?token="+token, "", nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("spoiler returned %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != "https://cdn.midos.house/spoilers/seed-1.json" {
		t.Errorf("redirect location = %q", got)
	}
}

func TestSpoilerDownload_Denied(t *testing.T) {
	env := newOpsEnv(t)
	env.repo.races["race-1"] = &racedb.Race{
		ID:            "race-1",
		EventID:       "s5",
		Status:        sharedtypes.RaceStatusInProgress,
		SpoilerPath:   "spoilers/seed-1.json",
		SpoilerLocked: true,
	}
	token, err := env.signer.Mint("race-1", time.Now())
	if err != nil {
		t.Fatal(err)
	}

	if rec := env.do(http.MethodGet, "/seeds/race-1/spoiler?token=garbage", "", nil); rec.Code != http.StatusForbidden {
		t.Errorf("garbage token returned %d", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/seeds/race-2/spoiler?token="+token, "", nil); rec.Code != http.StatusForbidden {
		t.Errorf("token for another race returned %d", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/seeds/race-1/spoiler?token="+token, "", nil); rec.Code != http.StatusForbidden {
		t.Errorf("locked spoiler returned %d", rec.Code)
	}
}

func TestConfigUpdate(t *testing.T) {
	env := newOpsEnv(t)

	body := `{"id":"s5","display_name":"Season 5","game_count":3}`
	rec := env.do(http.MethodPut, "/events/s5/config", "", strings.NewReader(body))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("config update returned %d: %s", rec.Code, rec.Body.String())
	}
	if len(env.bus.topics) != 1 {
		t.Fatalf("published topics: %v", env.bus.topics)
	}

	rec = env.do(http.MethodPut, "/events/other/config", "", strings.NewReader(body))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("mismatched id returned %d", rec.Code)
	}
}

func recordedRace(id sharedtypes.RaceID, winner sharedtypes.TeamID, finishes map[sharedtypes.TeamID]time.Duration) *racedb.Race {
	race := &racedb.Race{
		ID:           id,
		EventID:      "s5",
		Phase:        "Swiss",
		Round:        "Round 3",
		Game:         1,
		Status:       sharedtypes.RaceStatusRecorded,
		Recorded:     true,
		WinnerTeamID: ptr.To(winner),
	}
	for team, d := range finishes {
		ft := sharedtypes.FinishTime(d)
		race.Entrants = append(race.Entrants, racedb.Entrant{
			TeamID:     team,
			Confirmed:  true,
			FinishTime: &ft,
			Place:      1,
		})
	}
	return race
}

func TestResultsExport(t *testing.T) {
	env := newOpsEnv(t)
	env.repo.recorded = []*racedb.Race{
		recordedRace("race-1", "team-a", map[sharedtypes.TeamID]time.Duration{
			"team-a": 90 * time.Minute,
			"team-b": 95 * time.Minute,
		}),
	}

	rec := env.do(http.MethodGet, "/events/s5/results.xlsx", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export returned %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "spreadsheetml") {
		t.Errorf("content type = %q", got)
	}
	if rec.Body.Len() == 0 {
		t.Error("export body is empty")
	}
}

func TestDurationsChart(t *testing.T) {
	env := newOpsEnv(t)
	env.repo.recorded = []*racedb.Race{
		recordedRace("race-1", "team-a", map[sharedtypes.TeamID]time.Duration{
			"team-a": 90 * time.Minute,
			"team-b": 95 * time.Minute,
		}),
	}

	rec := env.do(http.MethodGet, "/events/s5/durations.png", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("chart returned %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("content type = %q", got)
	}
}

func TestDurationsChart_NoFinishes(t *testing.T) {
	env := newOpsEnv(t)
	if rec := env.do(http.MethodGet, "/events/s5/durations.png", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("empty chart returned %d", rec.Code)
	}
}
