package domain

import "context"

// SessionRepository loads sessions and persists lifecycle changes.
type SessionRepository interface {
	GetSession(ctx context.Context, id int64) (*Session, error)
	SaveSessionState(ctx context.Context, s *Session) error
}

// QuestionRepository loads question content.
type QuestionRepository interface {
	GetQuestion(ctx context.Context, id int64) (*Question, error)
}

// BuzzLogRepository is the durable audit sink for resolved arrivals.
// Writes are best-effort: the in-memory resolution stays authoritative
// even when a write fails.
type BuzzLogRepository interface {
	RecordBuzz(ctx context.Context, rec BuzzRecord) error
}

// StateCache mirrors live session state into a shared cache so other
// instances and collaborators can read it without hitting the database.
type StateCache interface {
	CacheSessionState(ctx context.Context, s *Session) error
	ClearSessionState(ctx context.Context, sessionID int64) error
}

// TallyEntry is one row of the buzz-first tally.
type TallyEntry struct {
	MemberID string `json:"memberId"`
	Firsts   int64  `json:"firsts"`
}

// BuzzTally counts how often each participant won a buzz race.
type BuzzTally interface {
	IncrFirst(ctx context.Context, sessionID int64, p Participant) error
	Top(ctx context.Context, sessionID int64, n int64) ([]TallyEntry, error)
}

// Broadcaster fans an event out to every viewer of a session topic.
// Delivery is best-effort and never returns an error to the caller.
type Broadcaster interface {
	Broadcast(sessionID int64, event string, payload any)
}
