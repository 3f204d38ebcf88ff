package hub

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/skyconnfig/qdq/internal/domain"
	"github.com/skyconnfig/qdq/internal/metrics"
	"github.com/skyconnfig/qdq/internal/protocol"
)

const commandBufferSize = 256

var (
	// ErrConnectionUnknown is returned when a command names a connection
	// id the hub has never registered or has already cleaned up.
	ErrConnectionUnknown = errors.New("hub: unknown connection")

	// ErrSessionFull is returned when a session topic is at capacity.
	ErrSessionFull = errors.New("hub: session at capacity")
)

// Hub tracks live WebSocket connections and their session subscriptions.
// All state lives behind a single goroutine that consumes tagged commands,
// so no mutexes guard the maps and command effects are totally ordered.
type Hub struct {
	commandChannel chan command
	clock          clockwork.Clock
	logger         *slog.Logger

	maxClientsPerSession int

	clients      map[uuid.UUID]*client
	topics       map[int64]map[uuid.UUID]*client
	participants map[domain.Participant]uuid.UUID
}

type client struct {
	id          uuid.UUID
	writer      *clientWriter
	topics      map[int64]struct{}
	participant domain.Participant
	hasIdentity bool
}

type command interface {
	isCommand()
}

type registerCommand struct {
	connection *websocket.Conn
	reply      chan uuid.UUID
}

type subscribeCommand struct {
	connectionID uuid.UUID
	sessionID    int64
	participant  domain.Participant
	hasIdentity  bool
	reply        chan error
}

type unsubscribeCommand struct {
	connectionID uuid.UUID
	sessionID    int64
}

type connectionClosedCommand struct {
	connectionID uuid.UUID
}

type broadcastCommand struct {
	sessionID int64
	event     string
	message   []byte
}

type sendCommand struct {
	connectionID uuid.UUID
	message      []byte
}

type sendParticipantCommand struct {
	sessionID   int64
	participant domain.Participant
	message     []byte
}

type clientCountCommand struct {
	sessionID int64
	reply     chan int
}

type onlineCountCommand struct {
	reply chan int
}

type stopCommand struct {
	done chan struct{}
}

func (registerCommand) isCommand()         {}
func (subscribeCommand) isCommand()        {}
func (unsubscribeCommand) isCommand()      {}
func (connectionClosedCommand) isCommand() {}
func (broadcastCommand) isCommand()        {}
func (sendCommand) isCommand()             {}
func (sendParticipantCommand) isCommand()  {}
func (clientCountCommand) isCommand()      {}
func (onlineCountCommand) isCommand()      {}
func (stopCommand) isCommand()             {}

func NewHub(clock clockwork.Clock, maxClientsPerSession int, logger *slog.Logger) *Hub {
	h := &Hub{
		commandChannel:       make(chan command, commandBufferSize),
		clock:                clock,
		logger:               logger,
		maxClientsPerSession: maxClientsPerSession,
		clients:              make(map[uuid.UUID]*client),
		topics:               make(map[int64]map[uuid.UUID]*client),
		participants:         make(map[domain.Participant]uuid.UUID),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for cmd := range h.commandChannel {
		metrics.HubCommandChannelDepth.Set(float64(len(h.commandChannel)))

		switch c := cmd.(type) {
		case registerCommand:
			h.handleRegister(c)
		case subscribeCommand:
			h.handleSubscribe(c)
		case unsubscribeCommand:
			h.handleUnsubscribe(c.connectionID, c.sessionID)
		case connectionClosedCommand:
			h.handleConnectionClosed(c.connectionID, "")
		case broadcastCommand:
			h.handleBroadcast(c)
		case sendCommand:
			h.handleSend(c)
		case sendParticipantCommand:
			h.handleSendParticipant(c)
		case clientCountCommand:
			h.handleClientCount(c)
		case onlineCountCommand:
			c.reply <- len(h.clients)
		case stopCommand:
			h.handleStop(c)
			return
		}
	}
}

// Register adopts a freshly upgraded connection and returns its hub-assigned
// connection id. The hub owns all writes to the connection from here on.
func (h *Hub) Register(connection *websocket.Conn) uuid.UUID {
	reply := make(chan uuid.UUID, 1)
	h.commandChannel <- registerCommand{connection: connection, reply: reply}
	return <-reply
}

// Subscribe adds the connection to a session's fan-out set. A participant
// identity is optional: hosts and big-screen viewers subscribe without one.
func (h *Hub) Subscribe(connectionID uuid.UUID, sessionID int64, participant *domain.Participant) error {
	cmd := subscribeCommand{
		connectionID: connectionID,
		sessionID:    sessionID,
		reply:        make(chan error, 1),
	}
	if participant != nil {
		cmd.participant = *participant
		cmd.hasIdentity = true
	}
	h.commandChannel <- cmd
	return <-cmd.reply
}

func (h *Hub) Unsubscribe(connectionID uuid.UUID, sessionID int64) {
	h.commandChannel <- unsubscribeCommand{connectionID: connectionID, sessionID: sessionID}
}

// ConnectionClosed performs the unified cleanup for a gone connection:
// subscription removal, identity unbinding and writer shutdown.
func (h *Hub) ConnectionClosed(connectionID uuid.UUID) {
	h.commandChannel <- connectionClosedCommand{connectionID: connectionID}
}

// Broadcast fans an event out to every subscriber of the session.
func (h *Hub) Broadcast(sessionID int64, event string, payload any) {
	message, err := protocol.Encode(event, payload, h.clock.Now())
	if err != nil {
		h.logger.Error("failed to encode broadcast envelope", "event", event, "error", err)
		return
	}
	h.commandChannel <- broadcastCommand{sessionID: sessionID, event: event, message: message}
}

// Send delivers an event to a single connection.
func (h *Hub) Send(connectionID uuid.UUID, event string, payload any) {
	message, err := protocol.Encode(event, payload, h.clock.Now())
	if err != nil {
		h.logger.Error("failed to encode envelope", "event", event, "error", err)
		return
	}
	h.commandChannel <- sendCommand{connectionID: connectionID, message: message}
}

// SendToParticipant delivers an event to the connection currently bound to
// the participant, if any. Targeting a departed participant is a no-op.
func (h *Hub) SendToParticipant(sessionID int64, participant domain.Participant, event string, payload any) {
	message, err := protocol.Encode(event, payload, h.clock.Now())
	if err != nil {
		h.logger.Error("failed to encode envelope", "event", event, "error", err)
		return
	}
	h.commandChannel <- sendParticipantCommand{sessionID: sessionID, participant: participant, message: message}
}

// ClientCount reports the number of connections subscribed to a session.
func (h *Hub) ClientCount(sessionID int64) int {
	reply := make(chan int, 1)
	h.commandChannel <- clientCountCommand{sessionID: sessionID, reply: reply}
	return <-reply
}

// OnlineCount reports the number of registered connections hub-wide.
func (h *Hub) OnlineCount() int {
	reply := make(chan int, 1)
	h.commandChannel <- onlineCountCommand{reply: reply}
	return <-reply
}

// Stop disconnects every client with a close frame and shuts the hub down.
func (h *Hub) Stop(timeout time.Duration) {
	done := make(chan struct{})
	h.commandChannel <- stopCommand{done: done}
	select {
	case <-done:
	case <-h.clock.After(timeout):
		h.logger.Warn("hub shutdown timed out")
	}
}

func (h *Hub) handleRegister(cmd registerCommand) {
	id := uuid.New()
	h.clients[id] = &client{
		id:     id,
		writer: newClientWriter(cmd.connection, h.clock),
		topics: make(map[int64]struct{}),
	}
	metrics.HubConnectedClients.Set(float64(len(h.clients)))
	cmd.reply <- id
}

func (h *Hub) handleSubscribe(cmd subscribeCommand) {
	c, ok := h.clients[cmd.connectionID]
	if !ok {
		cmd.reply <- ErrConnectionUnknown
		return
	}

	subscribers, ok := h.topics[cmd.sessionID]
	if !ok {
		subscribers = make(map[uuid.UUID]*client)
		h.topics[cmd.sessionID] = subscribers
		metrics.HubActiveTopics.Set(float64(len(h.topics)))
	}

	if _, already := subscribers[c.id]; !already {
		if h.maxClientsPerSession > 0 && len(subscribers) >= h.maxClientsPerSession {
			cmd.reply <- ErrSessionFull
			return
		}
		subscribers[c.id] = c
		c.topics[cmd.sessionID] = struct{}{}
	}

	if cmd.hasIdentity {
		// A participant reconnecting from a new tab displaces the stale
		// binding so targeted sends reach the live connection.
		if prev, bound := h.participants[cmd.participant]; bound && prev != c.id {
			if stale, exists := h.clients[prev]; exists {
				stale.hasIdentity = false
			}
		}
		h.participants[cmd.participant] = c.id
		c.participant = cmd.participant
		c.hasIdentity = true
	}

	cmd.reply <- nil
}

func (h *Hub) handleUnsubscribe(connectionID uuid.UUID, sessionID int64) {
	c, ok := h.clients[connectionID]
	if !ok {
		return
	}
	h.removeFromTopic(c, sessionID)
	if c.hasIdentity && len(c.topics) == 0 {
		h.unbindParticipant(c)
	}
}

func (h *Hub) handleConnectionClosed(connectionID uuid.UUID, reason string) {
	c, ok := h.clients[connectionID]
	if !ok {
		return
	}
	for sessionID := range c.topics {
		h.removeFromTopic(c, sessionID)
	}
	h.unbindParticipant(c)
	delete(h.clients, connectionID)
	metrics.HubConnectedClients.Set(float64(len(h.clients)))

	if reason == "" {
		c.writer.stop()
	} else {
		c.writer.stopGraceful(reason)
	}
}

func (h *Hub) handleBroadcast(cmd broadcastCommand) {
	subscribers := h.topics[cmd.sessionID]
	if len(subscribers) == 0 {
		return
	}
	metrics.HubBroadcastsTotal.WithLabelValues(cmd.event).Inc()

	var slow []uuid.UUID
	for id, c := range subscribers {
		select {
		case c.writer.sendChannel <- cmd.message:
		default:
			slow = append(slow, id)
		}
	}

	// A full send buffer means the reader on the other end stopped
	// draining. Dropping the connection beats stalling the whole fan-out.
	for _, id := range slow {
		h.logger.Warn("evicting slow client", "connection_id", id, "session_id", cmd.sessionID)
		metrics.HubSlowClientsEvicted.Inc()
		h.handleConnectionClosed(id, "")
	}
}

func (h *Hub) handleSend(cmd sendCommand) {
	c, ok := h.clients[cmd.connectionID]
	if !ok {
		return
	}
	select {
	case c.writer.sendChannel <- cmd.message:
	default:
		metrics.HubSlowClientsEvicted.Inc()
		h.handleConnectionClosed(cmd.connectionID, "")
	}
}

func (h *Hub) handleSendParticipant(cmd sendParticipantCommand) {
	connectionID, ok := h.participants[cmd.participant]
	if !ok {
		return
	}
	c, ok := h.clients[connectionID]
	if !ok {
		return
	}
	if _, subscribed := c.topics[cmd.sessionID]; !subscribed {
		return
	}
	select {
	case c.writer.sendChannel <- cmd.message:
	default:
		metrics.HubSlowClientsEvicted.Inc()
		h.handleConnectionClosed(connectionID, "")
	}
}

func (h *Hub) handleClientCount(cmd clientCountCommand) {
	cmd.reply <- len(h.topics[cmd.sessionID])
}

func (h *Hub) handleStop(cmd stopCommand) {
	for id := range h.clients {
		h.handleConnectionClosed(id, "server shutting down")
	}
	close(cmd.done)
}

func (h *Hub) removeFromTopic(c *client, sessionID int64) {
	subscribers, ok := h.topics[sessionID]
	if !ok {
		return
	}
	delete(subscribers, c.id)
	delete(c.topics, sessionID)
	if len(subscribers) == 0 {
		delete(h.topics, sessionID)
		metrics.HubActiveTopics.Set(float64(len(h.topics)))
	}
}

func (h *Hub) unbindParticipant(c *client) {
	if !c.hasIdentity {
		return
	}
	if bound, ok := h.participants[c.participant]; ok && bound == c.id {
		delete(h.participants, c.participant)
	}
	c.hasIdentity = false
}
