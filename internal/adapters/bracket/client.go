// Package bracket adapts the tournament bracket service: result submission
// with ambiguity-aware retry, and set fetches used both for reconciliation and
// by the webhook receiver.
package bracket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

// Config configures the bracket service connection.
type Config struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	// Timeout bounds each round trip.
	Timeout time.Duration `yaml:"timeout"`
}

// Set is the bracket service's view of one set.
type Set struct {
	SetID     sharedtypes.SetID   `json:"set_id"`
	EventID   sharedtypes.EventID `json:"event_id"`
	Phase     string              `json:"phase"`
	Round     string              `json:"round"`
	GameCount int                 `json:"game_count"`
	// Winner is set once the bracket side carries an outcome.
	Winner *sharedtypes.TeamID `json:"winner,omitempty"`
}

// GameLine is one game's outcome inside a report.
type GameLine struct {
	Game   int                `json:"game"`
	Winner sharedtypes.TeamID `json:"winner"`
}

// Report is a set result submission.
type Report struct {
	SetID  sharedtypes.SetID  `json:"set_id"`
	Winner sharedtypes.TeamID `json:"winner"`
	Games  []GameLine         `json:"games"`
}

// ErrAmbiguous marks a submission whose outcome is unknown: the request may
// or may not have been applied. Callers must reconcile with GetSet before
// retrying.
var ErrAmbiguous = errors.New("bracket response ambiguous")

// Client is the bracket service surface the adapter uses.
type Client interface {
	SubmitReport(ctx context.Context, eventID sharedtypes.EventID, report Report) error
	GetSet(ctx context.Context, eventID sharedtypes.EventID, setID sharedtypes.SetID) (*Set, error)
}

// HTTPClient implements Client over the bracket service's JSON API.
type HTTPClient struct {
	cfg  Config
	http *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient.
func NewHTTPClient(cfg Config) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{cfg: cfg, http: &http.Client{Timeout: timeout}}
}

func (c *HTTPClient) SubmitReport(ctx context.Context, eventID sharedtypes.EventID, report Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	path := fmt.Sprintf("/events/%s/sets/%s/report", eventID, report.SetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and connection drops after the request left us are
		// ambiguous: the report may have landed.
		return fmt.Errorf("%w: %v", ErrAmbiguous, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s returned %d", ErrAmbiguous, path, resp.StatusCode)
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, snippet)
	}
}

func (c *HTTPClient) GetSet(ctx context.Context, eventID sharedtypes.EventID, setID sharedtypes.SetID) (*Set, error) {
	path := fmt.Sprintf("/events/%s/sets/%s", eventID, setID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s returned %d", path, resp.StatusCode)
	}

	var set Set
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to decode set: %w", err)
	}
	return &set, nil
}
