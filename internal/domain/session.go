package domain

import "time"

// SessionStatus is the lifecycle state of a competition session.
// The numeric values match the persisted representation.
type SessionStatus int

const (
	StatusDraft     SessionStatus = 0
	StatusScheduled SessionStatus = 1
	StatusRunning   SessionStatus = 2
	StatusPaused    SessionStatus = 3
	StatusFinished  SessionStatus = 4
)

func (s SessionStatus) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusScheduled:
		return "scheduled"
	case StatusRunning:
		return "running"
	case StatusPaused:
		return "paused"
	case StatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// SessionConfig is the per-session competition configuration.
type SessionConfig struct {
	QuestionTimeLimit int  `json:"questionTimeLimit"`
	BuzzEnabled       bool `json:"buzzEnabled"`
}

// Session is a competition round: an ordered question list plus
// lifecycle state. CurrentIndex is -1 before the first question is
// pushed. All transition methods enforce their guards and return a
// sentinel error when the transition is not allowed; they never leave
// the session in a half-changed state.
type Session struct {
	ID           int64
	Name         string
	Status       SessionStatus
	QuestionIDs  []int64
	CurrentIndex int
	Config       SessionConfig
	StartedAt    *time.Time
	EndedAt      *time.Time
}

// Start moves the session into RUNNING. A session needs at least one
// queued question; finished sessions stay finished.
func (s *Session) Start(now time.Time) error {
	switch {
	case s.Status == StatusRunning:
		return ErrSessionRunning
	case s.Status == StatusFinished:
		return ErrSessionFinished
	case len(s.QuestionIDs) == 0:
		return ErrNoQuestions
	}

	s.Status = StatusRunning
	s.CurrentIndex = -1
	s.StartedAt = &now
	return nil
}

func (s *Session) Pause() error {
	if s.Status != StatusRunning {
		return ErrSessionNotRunning
	}
	s.Status = StatusPaused
	return nil
}

func (s *Session) Resume() error {
	if s.Status != StatusPaused {
		return ErrSessionNotPaused
	}
	s.Status = StatusRunning
	return nil
}

// Finish is terminal and allowed from any non-finished state.
func (s *Session) Finish(now time.Time) error {
	if s.Status == StatusFinished {
		return ErrSessionFinished
	}
	s.Status = StatusFinished
	s.EndedAt = &now
	return nil
}

// Advance moves to the next question and returns its id.
func (s *Session) Advance() (int64, error) {
	if s.Status != StatusRunning {
		return 0, ErrSessionNotRunning
	}
	if len(s.QuestionIDs) == 0 {
		return 0, ErrNoQuestions
	}
	next := s.CurrentIndex + 1
	if next >= len(s.QuestionIDs) {
		return 0, ErrLastQuestion
	}
	s.CurrentIndex = next
	return s.QuestionIDs[next], nil
}

// CurrentQuestionID returns the active question, if any.
func (s *Session) CurrentQuestionID() (int64, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.QuestionIDs) {
		return 0, false
	}
	return s.QuestionIDs[s.CurrentIndex], true
}

func (s *Session) IsRunning() bool { return s.Status == StatusRunning }
