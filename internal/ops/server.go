// Package ops is the operator HTTP surface: health and readiness probes,
// Prometheus metrics, the bracket webhook receiver, spoiler downloads, and
// per-event exports.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	teamdb "github.com/midoshouse/midos.house/app/modules/team/infrastructure/repositories"
	"github.com/midoshouse/midos.house/app/shared/eventbus"
	bracketevents "github.com/midoshouse/midos.house/app/shared/events/bracket"
	configevents "github.com/midoshouse/midos.house/app/shared/events/config"
	eventtypes "github.com/midoshouse/midos.house/app/shared/types/event"
	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	"github.com/midoshouse/midos.house/app/shared/spoilertoken"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils"
)

// Config configures the ops server.
type Config struct {
	Addr string `yaml:"addr"`
	// WebhookToken authenticates the bracket service's webhook calls.
	WebhookToken string `yaml:"webhook_token"`
	// ArtifactBaseURL is where seed artifacts (including spoiler logs) are
	// served from; the spoiler endpoint redirects there.
	ArtifactBaseURL string `yaml:"artifact_base_url"`
}

// Probe is one readiness dependency.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server is the operator HTTP surface.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	raceRepo racedb.Repository
	teamRepo teamdb.Repository
	bus      eventbus.EventBus
	helper   utils.Helpers
	signer   *spoilertoken.Signer
	registry *prometheus.Registry
	probes   []Probe

	http *http.Server
}

// NewServer builds the ops server and its routes.
func NewServer(
	cfg Config,
	logger *slog.Logger,
	raceRepo racedb.Repository,
	teamRepo teamdb.Repository,
	bus eventbus.EventBus,
	helper utils.Helpers,
	signer *spoilertoken.Signer,
	registry *prometheus.Registry,
	probes ...Probe,
) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		raceRepo: raceRepo,
		teamRepo: teamRepo,
		bus:      bus,
		helper:   helper,
		signer:   signer,
		registry: registry,
		probes:   probes,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Post("/webhooks/bracket", s.handleBracketWebhook)
	r.Get("/seeds/{race}/spoiler", s.handleSpoiler)
	r.Get("/events/{event}/results.xlsx", s.handleResultsExport)
	r.Get("/events/{event}/durations.png", s.handleDurationsChart)
	r.Put("/events/{event}/config", s.handleConfigUpdate)

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("Ops server listening", attr.String("addr", s.cfg.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ops server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the route tree, used by tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz fails when any dependency probe fails.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var failures []string
	for _, probe := range s.probes {
		if err := probe.Check(ctx); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", probe.Name, err))
		}
	}
	if len(failures) > 0 {
		http.Error(w, strings.Join(failures, "\n"), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleBracketWebhook turns bracket-service callbacks into set update events.
func (s *Server) handleBracketWebhook(w http.ResponseWriter, r *http.Request) {
	if s.cfg.WebhookToken != "" && r.Header.Get("X-Webhook-Token") != s.cfg.WebhookToken {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var payload bracketevents.SetUpdatedPayloadV1
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}
	if payload.EventID == "" || payload.SetID == "" {
		http.Error(w, "event_id and set_id are required", http.StatusBadRequest)
		return
	}

	if err := s.publish(bracketevents.BracketSetUpdatedV1, &payload); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to publish bracket webhook", attr.Error(err))
		http.Error(w, "publish failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleSpoiler validates the unlock token and redirects to the artifact.
func (s *Server) handleSpoiler(w http.ResponseWriter, r *http.Request) {
	raceID := sharedtypes.RaceID(chi.URLParam(r, "race"))
	tokenRace, err := s.signer.Verify(r.URL.Query().Get("token"))
	if err != nil || tokenRace != raceID {
		http.Error(w, "invalid or expired token", http.StatusForbidden)
		return
	}

	race, err := s.raceRepo.GetRace(r.Context(), raceID)
	if err != nil {
		if errors.Is(err, racedb.ErrRaceNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if race.SpoilerPath == "" || race.SpoilerLocked {
		http.Error(w, "spoiler is not available", http.StatusForbidden)
		return
	}

	target := strings.TrimRight(s.cfg.ArtifactBaseURL, "/") + "/" + race.SpoilerPath
	http.Redirect(w, r, target, http.StatusFound)
}

// handleConfigUpdate publishes an event-config update request; the event
// module owns validation and the write.
func (s *Server) handleConfigUpdate(w http.ResponseWriter, r *http.Request) {
	eventID := sharedtypes.EventID(chi.URLParam(r, "event"))

	var cfg eventtypes.EventConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}
	if cfg.ID != eventID {
		http.Error(w, "config id does not match path", http.StatusBadRequest)
		return
	}

	if err := s.publish(configevents.EventConfigUpdateRequestedV1, &configevents.UpdateRequestedPayloadV1{Config: cfg}); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to publish config update", attr.Error(err))
		http.Error(w, "publish failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) publish(topic string, payload any) error {
	msg, err := s.helper.CreateNewMessage(payload, topic)
	if err != nil {
		return err
	}
	return s.bus.Publish(topic, msg)
}
