package protocol

import "github.com/skyconnfig/qdq/internal/domain"

// Outbound payload shapes. Broadcast payloads reuse domain types
// directly where the JSON tags already match the wire format.

type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
}

type JoinSuccessPayload struct {
	SessionID int64  `json:"sessionId"`
	MemberID  string `json:"memberId,omitempty"`
}

type LeaveSuccessPayload struct {
	SessionID int64 `json:"sessionId"`
}

type SessionStatePayload struct {
	SessionID int64  `json:"sessionId"`
	Status    string `json:"status"`
}

type CountdownPayload struct {
	SessionID  int64 `json:"sessionId"`
	QuestionID int64 `json:"questionId"`
	Seconds    int   `json:"seconds"`
}

type LeaderboardPayload struct {
	SessionID   int64               `json:"sessionId"`
	Leaderboard []domain.TallyEntry `json:"leaderboard"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
