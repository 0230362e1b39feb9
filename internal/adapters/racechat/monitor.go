package racechat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	roomevents "github.com/midoshouse/midos.house/app/shared/events/room"
	"github.com/midoshouse/midos.house/app/shared/eventbus"
	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
	"github.com/midoshouse/midos.house/app/shared/utils"
)

const (
	reconnectBase = time.Second
	reconnectMax  = time.Minute
)

// wireFrame is one message on the room's WebSocket stream.
type wireFrame struct {
	Type string `json:"type"`

	// type == "room.update"
	Status   string        `json:"status,omitempty"`
	Entrants []wireEntrant `json:"entrants,omitempty"`

	// type == "chat.message"
	UserID    sharedtypes.UserID `json:"user_id,omitempty"`
	UserName  string             `json:"user_name,omitempty"`
	Text      string             `json:"text,omitempty"`
	IsMonitor bool               `json:"is_monitor,omitempty"`
}

type wireEntrant struct {
	UserID        sharedtypes.UserID `json:"user_id"`
	Name          string             `json:"name"`
	Status        string             `json:"status"`
	FinishSeconds *int64             `json:"finish_seconds,omitempty"`
	Place         int                `json:"place,omitempty"`
}

// Monitor owns one WebSocket goroutine per watched room, translating frames
// into room status and chat events on the bus. Duplicate status events after a
// reconnect are expected; handlers downstream converge them to no-ops.
type Monitor struct {
	wsBaseURL string
	bus       eventbus.EventBus
	helper    utils.Helpers
	logger    *slog.Logger

	mu      sync.Mutex
	watched map[sharedtypes.RoomHandle]context.CancelFunc
	wg      sync.WaitGroup
}

// NewMonitor creates a Monitor.
func NewMonitor(wsBaseURL string, bus eventbus.EventBus, helper utils.Helpers, logger *slog.Logger) *Monitor {
	return &Monitor{
		wsBaseURL: wsBaseURL,
		bus:       bus,
		helper:    helper,
		logger:    logger,
		watched:   map[sharedtypes.RoomHandle]context.CancelFunc{},
	}
}

// Watch starts a monitor goroutine for handle. Watching an already-watched
// room is a no-op, which makes attach-after-restart idempotent.
func (m *Monitor) Watch(ctx context.Context, handle sharedtypes.RoomHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.watched[handle]; ok {
		return
	}
	roomCtx, cancel := context.WithCancel(ctx)
	m.watched[handle] = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.Unwatch(handle)
		m.run(roomCtx, handle)
	}()
}

// Unwatch stops the monitor goroutine for handle.
func (m *Monitor) Unwatch(handle sharedtypes.RoomHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.watched[handle]; ok {
		cancel()
		delete(m.watched, handle)
	}
}

// Close stops every monitor goroutine and waits for them to exit.
func (m *Monitor) Close() {
	m.mu.Lock()
	for handle, cancel := range m.watched {
		cancel()
		delete(m.watched, handle)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// run dials the room's stream and pumps frames until ctx is cancelled,
// reconnecting with capped exponential backoff.
func (m *Monitor) run(ctx context.Context, handle sharedtypes.RoomHandle) {
	backoff := reconnectBase
	for {
		if ctx.Err() != nil {
			return
		}
		err := m.pump(ctx, handle)
		if ctx.Err() != nil {
			return
		}
		m.logger.WarnContext(ctx, "Room stream disconnected, reconnecting",
			attr.RoomHandle("handle", handle),
			attr.Duration("backoff", backoff),
			attr.Error(err),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

func (m *Monitor) pump(ctx context.Context, handle sharedtypes.RoomHandle) error {
	url := fmt.Sprintf("%s/ws/o/%s", m.wsBaseURL, handle)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Close the socket when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var frame wireFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			m.logger.WarnContext(ctx, "Dropping malformed room frame",
				attr.RoomHandle("handle", handle),
				attr.Error(err),
			)
			continue
		}
		m.dispatch(ctx, handle, frame)
	}
}

func (m *Monitor) dispatch(ctx context.Context, handle sharedtypes.RoomHandle, frame wireFrame) {
	switch frame.Type {
	case "room.update":
		entrants := make([]roomevents.RoomEntrantV1, len(frame.Entrants))
		for i, e := range frame.Entrants {
			entrant := roomevents.RoomEntrantV1{
				UserID: e.UserID,
				Name:   e.Name,
				Status: e.Status,
				Place:  e.Place,
			}
			if e.FinishSeconds != nil {
				ft := sharedtypes.FinishTime(time.Duration(*e.FinishSeconds) * time.Second)
				entrant.FinishTime = &ft
			}
			entrants[i] = entrant
		}
		m.publish(ctx, roomevents.RoomStatusChangedV1, &roomevents.StatusChangedPayloadV1{
			Handle:   handle,
			Status:   frame.Status,
			Entrants: entrants,
		})
		if frame.Status == roomevents.StatusFinished || frame.Status == roomevents.StatusCancelled {
			m.Unwatch(handle)
		}
	case "chat.message":
		m.publish(ctx, roomevents.RoomChatReceivedV1, &roomevents.ChatReceivedPayloadV1{
			Handle:    handle,
			UserID:    frame.UserID,
			UserName:  frame.UserName,
			Text:      frame.Text,
			IsMonitor: frame.IsMonitor,
		})
	default:
		// Pings and frame types we do not consume.
	}
}

func (m *Monitor) publish(ctx context.Context, topic string, payload any) {
	msg, err := m.helper.CreateNewMessage(payload, topic)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to build room event", attr.Error(err))
		return
	}
	if err := m.bus.Publish(topic, msg); err != nil {
		m.logger.ErrorContext(ctx, "Failed to publish room event",
			attr.String("topic", topic),
			attr.Error(err),
		)
	}
}
