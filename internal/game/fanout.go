package game

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/skyconnfig/qdq/internal/domain"
)

const publishTimeout = 2 * time.Second

// eventPublisher relays broadcasts to sibling instances.
type eventPublisher interface {
	Publish(ctx context.Context, sessionID int64, event string, data json.RawMessage) error
}

// FanOut broadcasts to local subscribers through the hub and relays the
// same event to other instances via the event bus. Relay failures are
// logged and swallowed; local delivery never waits on Redis.
type FanOut struct {
	local  domain.Broadcaster
	bus    eventPublisher
	logger *slog.Logger
}

var _ domain.Broadcaster = (*FanOut)(nil)

// NewFanOut creates the combined broadcaster. bus may be nil when the
// deployment is a single instance.
func NewFanOut(local domain.Broadcaster, bus eventPublisher, logger *slog.Logger) *FanOut {
	return &FanOut{local: local, bus: bus, logger: logger}
}

func (f *FanOut) Broadcast(sessionID int64, event string, payload any) {
	f.local.Broadcast(sessionID, event, payload)

	if f.bus == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		f.logger.Error("failed to marshal relay payload", "event", event, "error", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := f.bus.Publish(ctx, sessionID, event, data); err != nil {
			f.logger.Warn("failed to relay broadcast", "session_id", sessionID, "event", event, "error", err)
		}
	}()
}

// DeliverRemote hands a relayed foreign broadcast to local subscribers.
// Wired as the event bus delivery callback.
func (f *FanOut) DeliverRemote(sessionID int64, event string, data json.RawMessage) {
	f.local.Broadcast(sessionID, event, data)
}
