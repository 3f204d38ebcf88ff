package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/skyconnfig/qdq/internal/domain"
	"github.com/skyconnfig/qdq/internal/metrics"
	"github.com/skyconnfig/qdq/internal/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Clients connect from arbitrary quiz frontends
	},
}

func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	connID := s.hub.Register(conn)
	s.hub.Send(connID, protocol.EventConnected, protocol.ConnectedPayload{ConnectionID: connID.String()})

	// Read pump — blocks until the connection closes.
	s.readLoop(c.Request().Context(), conn, connID)
	return nil
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, connID uuid.UUID) {
	defer s.hub.ConnectionClosed(connID)

	limiter := rate.NewLimiter(rate.Limit(s.config.ClientMessageRate), s.config.ClientMessageBurst)
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}

		if !limiter.Allow() {
			metrics.WSRateLimited.Inc()
			s.hub.Send(connID, protocol.EventError, protocol.ErrorPayload{Message: "rate limit exceeded"})
			continue
		}

		s.dispatch(ctx, connID, frame)
	}
}

// dispatch decodes one inbound frame and routes it by concrete event
// type. Decode rejects unknown events, so the switch is exhaustive.
func (s *Server) dispatch(ctx context.Context, connID uuid.UUID, frame []byte) {
	event, err := protocol.DecodeClientEvent(frame)
	if err != nil {
		metrics.WSInvalidMessages.Inc()
		s.hub.Send(connID, protocol.EventError, protocol.ErrorPayload{Message: err.Error()})
		return
	}

	switch ev := event.(type) {
	case protocol.JoinSession:
		metrics.WSMessagesReceived.WithLabelValues("join_session").Inc()
		s.handleJoin(connID, ev)
	case protocol.LeaveSession:
		metrics.WSMessagesReceived.WithLabelValues("leave_session").Inc()
		s.handleLeave(connID, ev)
	case protocol.ClientBuzz:
		metrics.WSMessagesReceived.WithLabelValues("client_buzz").Inc()
		s.handleBuzz(ctx, connID, ev)
	case protocol.Ping:
		metrics.WSMessagesReceived.WithLabelValues("ping").Inc()
		s.hub.Send(connID, protocol.EventPong, nil)
	}
}

func (s *Server) handleJoin(connID uuid.UUID, ev protocol.JoinSession) {
	if ev.SessionID <= 0 {
		s.hub.Send(connID, protocol.EventError, protocol.ErrorPayload{Message: "invalid session id"})
		return
	}

	var identity *domain.Participant
	memberID := ""
	if p, ok := ev.Participant(); ok {
		identity = &p
		memberID = p.String()
	}

	if err := s.hub.Subscribe(connID, ev.SessionID, identity); err != nil {
		s.hub.Send(connID, protocol.EventError, protocol.ErrorPayload{Message: err.Error()})
		return
	}

	s.hub.Send(connID, protocol.EventJoinSuccess, protocol.JoinSuccessPayload{
		SessionID: ev.SessionID,
		MemberID:  memberID,
	})
}

func (s *Server) handleLeave(connID uuid.UUID, ev protocol.LeaveSession) {
	if ev.SessionID <= 0 {
		s.hub.Send(connID, protocol.EventError, protocol.ErrorPayload{Message: "invalid session id"})
		return
	}

	s.hub.Unsubscribe(connID, ev.SessionID)
	s.hub.Send(connID, protocol.EventLeaveSuccess, protocol.LeaveSuccessPayload{SessionID: ev.SessionID})
}

func (s *Server) handleBuzz(ctx context.Context, connID uuid.UUID, ev protocol.ClientBuzz) {
	if ev.SessionID <= 0 || ev.QuestionID <= 0 {
		s.hub.Send(connID, protocol.EventError, protocol.ErrorPayload{Message: "invalid buzz target"})
		return
	}

	participant, ok := ev.Participant()
	if !ok {
		s.hub.Send(connID, protocol.EventError, protocol.ErrorPayload{Message: "buzz requires a user or team id"})
		return
	}

	ack := s.game.HandleBuzz(ctx, ev.SessionID, ev.QuestionID, participant)
	s.hub.Send(connID, protocol.EventBuzzResponse, ack)
}
