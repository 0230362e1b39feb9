// Package racechat adapts the race-room chat service: REST calls for room
// creation and messaging, and one WebSocket monitor per open room feeding
// status and chat back onto the bus.
package racechat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

// Config configures the chat service connection.
type Config struct {
	BaseURL      string `yaml:"base_url"`
	WSBaseURL    string `yaml:"ws_base_url"`
	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	// RequestsPerSecond caps outbound REST calls; the service bans abusive
	// clients.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// RoomRequest is the room configuration sent to the chat service.
type RoomRequest struct {
	Goal              string               `json:"goal"`
	Info              string               `json:"info_user"`
	Unlisted          bool                 `json:"unlisted"`
	AutoStart         bool                 `json:"auto_start"`
	StreamingRequired bool                 `json:"streaming_required"`
	InviteUserIDs     []sharedtypes.UserID `json:"invite_user_ids"`
}

// Client is the REST surface the adapter needs from the chat service.
type Client interface {
	CreateRoom(ctx context.Context, req RoomRequest) (sharedtypes.RoomHandle, error)
	SendMessage(ctx context.Context, handle sharedtypes.RoomHandle, text string, pin bool) error
}

// ErrExternalCall marks a transient chat-service failure after retries.
var ErrExternalCall = errors.New("chat service call failed")

const (
	callAttempts = 3
	callBackoff  = 2 * time.Second
)

// HTTPClient implements Client over the chat service's REST API with OAuth2
// client-credentials auth and client-side rate limiting.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient.
func NewHTTPClient(cfg Config, logger *slog.Logger) *HTTPClient {
	creds := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		http:    creds.Client(context.Background()),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger,
	}
}

func (c *HTTPClient) CreateRoom(ctx context.Context, req RoomRequest) (sharedtypes.RoomHandle, error) {
	var resp struct {
		Handle sharedtypes.RoomHandle `json:"name"`
	}
	if err := c.post(ctx, "/o/startrace", req, &resp); err != nil {
		return "", err
	}
	if resp.Handle == "" {
		return "", fmt.Errorf("%w: room created without a handle", ErrExternalCall)
	}
	return resp.Handle, nil
}

func (c *HTTPClient) SendMessage(ctx context.Context, handle sharedtypes.RoomHandle, text string, pin bool) error {
	body := struct {
		Message string `json:"message"`
		Pinned  bool   `json:"pinned"`
	}{Message: text, Pinned: pin}
	return c.post(ctx, fmt.Sprintf("/o/%s/message", handle), body, nil)
}

// post sends a JSON request with bounded retry on transient failures.
func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request for %s: %w", path, err)
	}

	var lastErr error
	for attempt := 1; attempt <= callAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		lastErr = c.do(ctx, path, data, out)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.WarnContext(ctx, "Chat service call failed",
			attr.String("path", path),
			attr.Int("attempt", attempt),
			attr.Error(lastErr),
		)
		if attempt < callAttempts {
			select {
			case <-time.After(callBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrExternalCall, path, lastErr)
}

func (c *HTTPClient) do(ctx context.Context, path string, data []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, snippet)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
