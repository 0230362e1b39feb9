// Package seedgen adapts the seed-generation service: job submission plus a
// polling loop per job, reporting completion or failure back onto the bus.
package seedgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config configures the generator connection.
type Config struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	// PollInterval is the delay between job status polls.
	PollInterval time.Duration `yaml:"poll_interval"`
	// JobDeadline bounds a single generation job end to end.
	JobDeadline time.Duration `yaml:"job_deadline"`
}

// Job status values reported by the generator.
const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
)

// JobStatus is one poll of a generation job.
type JobStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	// Populated when Status == done.
	File        string   `json:"file,omitempty"`
	HashIcons   []string `json:"hash_icons,omitempty"`
	SpoilerPath string   `json:"spoiler_path,omitempty"`
	// Populated when Status == failed.
	Error string `json:"error,omitempty"`
}

// Client is the generator surface the adapter uses.
type Client interface {
	SubmitJob(ctx context.Context, settings map[string]string) (jobID string, err error)
	PollJob(ctx context.Context, jobID string) (*JobStatus, error)
}

// HTTPClient implements Client over the generator's JSON API.
type HTTPClient struct {
	cfg  Config
	http *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient.
func NewHTTPClient(cfg Config) *HTTPClient {
	return &HTTPClient{cfg: cfg, http: &http.Client{Timeout: 30 * time.Second}}
}

func (c *HTTPClient) SubmitJob(ctx context.Context, settings map[string]string) (string, error) {
	body := struct {
		Settings map[string]string `json:"settings"`
	}{Settings: settings}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/jobs", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("job submit returned %d: %s", resp.StatusCode, snippet)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode job id: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("generator accepted job without an id")
	}
	return out.ID, nil
}

func (c *HTTPClient) PollJob(ctx context.Context, jobID string) (*JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/jobs/"+jobID, nil)
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
		return nil, fmt.Errorf("job poll returned %d", resp.StatusCode)
	}

	var status JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode job status: %w", err)
	}
	return &status, nil
}
