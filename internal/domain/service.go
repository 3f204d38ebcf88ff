package domain

import "context"

// GameService is the host-facing application surface: session lifecycle
// control, question advancement, and buzz arbitration. Implemented by
// the game coordinator; the HTTP and WebSocket layers depend on this
// interface only.
type GameService interface {
	StartSession(ctx context.Context, id int64) (*Session, error)
	PauseSession(ctx context.Context, id int64) (*Session, error)
	ResumeSession(ctx context.Context, id int64) (*Session, error)
	FinishSession(ctx context.Context, id int64) (*Session, error)

	NextQuestion(ctx context.Context, id int64) (*Question, error)
	CurrentQuestion(ctx context.Context, id int64) (*Question, error)

	HandleBuzz(ctx context.Context, sessionID, questionID int64, p Participant) BuzzAck
	ResolveBuzz(ctx context.Context, sessionID, questionID int64) (*Resolution, error)
	CloseBuzz(ctx context.Context, sessionID, questionID int64) error

	BroadcastLeaderboard(ctx context.Context, sessionID int64) error
}
