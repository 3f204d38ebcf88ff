package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/skyconnfig/qdq/internal/metrics"
)

const eventChannelPattern = "quiz:events:*"

func eventChannel(sessionID int64) string {
	return "quiz:events:" + strconv.FormatInt(sessionID, 10)
}

// relayMessage is the wire form of a cross-instance broadcast. Origin
// carries the publisher's instance id so it can skip its own messages.
type relayMessage struct {
	Origin string          `json:"origin"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
}

// EventBus relays session broadcasts between instances via Redis Pub/Sub.
// A broadcast published on one instance reaches subscribers connected to
// every other instance without those instances sharing any state.
type EventBus struct {
	rdb        *goredis.Client
	instanceID string
	logger     *slog.Logger
}

func NewEventBus(client *Client, logger *slog.Logger) *EventBus {
	return &EventBus{
		rdb:        client.rdb,
		instanceID: uuid.NewString(),
		logger:     logger,
	}
}

// Publish relays an already-marshalled event payload to sibling instances.
func (b *EventBus) Publish(ctx context.Context, sessionID int64, event string, data json.RawMessage) error {
	msg, err := json.Marshal(relayMessage{
		Origin: b.instanceID,
		Event:  event,
		Data:   data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal relay message: %w", err)
	}

	if err := b.rdb.Publish(ctx, eventChannel(sessionID), msg).Err(); err != nil {
		return fmt.Errorf("failed to publish relay message: %w", err)
	}
	metrics.RelayPublished.Inc()
	return nil
}

// Run consumes relayed broadcasts until the context is cancelled, handing
// each foreign message to deliver. Messages this instance published are
// skipped; malformed ones are dropped and counted.
func (b *EventBus) Run(ctx context.Context, deliver func(sessionID int64, event string, data json.RawMessage)) error {
	sub := b.rdb.PSubscribe(ctx, eventChannelPattern)
	defer func() { _ = sub.Close() }()

	// Fail early if the subscription never established.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to event channels: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return errors.New("event subscription channel closed")
			}
			b.handleMessage(msg, deliver)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *EventBus) handleMessage(msg *goredis.Message, deliver func(sessionID int64, event string, data json.RawMessage)) {
	sessionID, err := sessionIDFromChannel(msg.Channel)
	if err != nil {
		metrics.RelayDropped.Inc()
		b.logger.Warn("dropping relay message on unexpected channel", "channel", msg.Channel)
		return
	}

	var relay relayMessage
	if err := json.Unmarshal([]byte(msg.Payload), &relay); err != nil {
		metrics.RelayDropped.Inc()
		b.logger.Warn("dropping malformed relay message", "channel", msg.Channel, "error", err)
		return
	}

	if relay.Origin == b.instanceID {
		return
	}

	metrics.RelayDelivered.Inc()
	deliver(sessionID, relay.Event, relay.Data)
}

func sessionIDFromChannel(channel string) (int64, error) {
	raw, ok := strings.CutPrefix(channel, "quiz:events:")
	if !ok {
		return 0, fmt.Errorf("channel %q does not match event channel prefix", channel)
	}
	return strconv.ParseInt(raw, 10, 64)
}
