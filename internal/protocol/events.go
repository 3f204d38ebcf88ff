package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/skyconnfig/qdq/internal/domain"
)

// Server → client event names.
const (
	EventConnected         = "connected"
	EventJoinSuccess       = "join_success"
	EventLeaveSuccess      = "leave_success"
	EventBuzzResponse      = "buzz_response"
	EventBuzzResult        = "buzz_result"
	EventQuestionPush      = "question_push"
	EventSessionState      = "session_state"
	EventCountdown         = "countdown"
	EventLeaderboardUpdate = "leaderboard_update"
	EventPong              = "pong"
	EventError             = "error"
)

// Client → server event names.
const (
	eventJoinSession  = "join_session"
	eventLeaveSession = "leave_session"
	eventClientBuzz   = "client_buzz"
	eventPing         = "ping"
)

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrEmptyEvent   = errors.New("missing event name")
)

// ClientEvent is the sealed set of inbound events. The only
// implementations live in this package; handlers switch over the
// concrete types exhaustively.
type ClientEvent interface{ clientEvent() }

type baseClientEvent struct{}

func (baseClientEvent) clientEvent() {}

type JoinSession struct {
	baseClientEvent
	SessionID int64  `json:"sessionId"`
	UserID    int64  `json:"userId,omitempty"`
	TeamID    int64  `json:"teamId,omitempty"`
	Token     string `json:"token,omitempty"`
}

type LeaveSession struct {
	baseClientEvent
	SessionID int64 `json:"sessionId"`
}

type ClientBuzz struct {
	baseClientEvent
	SessionID  int64 `json:"sessionId"`
	QuestionID int64 `json:"questionId"`
	UserID     int64 `json:"userId,omitempty"`
	TeamID     int64 `json:"teamId,omitempty"`
}

type Ping struct {
	baseClientEvent
}

// Participant derives the buzzing identity. Teams take precedence so a
// team member buzzing on behalf of the team counts once for the team.
func (b ClientBuzz) Participant() (domain.Participant, bool) {
	switch {
	case b.TeamID > 0:
		return domain.TeamParticipant(b.TeamID), true
	case b.UserID > 0:
		return domain.UserParticipant(b.UserID), true
	default:
		return domain.Participant{}, false
	}
}

// Participant derives the optional identity bound at join time.
func (j JoinSession) Participant() (domain.Participant, bool) {
	switch {
	case j.TeamID > 0:
		return domain.TeamParticipant(j.TeamID), true
	case j.UserID > 0:
		return domain.UserParticipant(j.UserID), true
	default:
		return domain.Participant{}, false
	}
}

// DecodeClientEvent parses an inbound frame into its tagged variant.
// Unknown event names fail here, before any handler runs.
func DecodeClientEvent(frame []byte) (ClientEvent, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if env.Event == "" {
		return nil, ErrEmptyEvent
	}

	data := env.Data
	if len(data) == 0 {
		data = []byte("{}")
	}

	switch env.Event {
	case eventJoinSession:
		var ev JoinSession
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Event, err)
		}
		return ev, nil
	case eventLeaveSession:
		var ev LeaveSession
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Event, err)
		}
		return ev, nil
	case eventClientBuzz:
		var ev ClientBuzz
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Event, err)
		}
		return ev, nil
	case eventPing:
		return Ping{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}
