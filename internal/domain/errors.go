package domain

import "errors"

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionNotRunning = errors.New("session is not running")
	ErrSessionRunning    = errors.New("session is already running")
	ErrSessionNotPaused  = errors.New("session is not paused")
	ErrSessionFinished   = errors.New("session is finished")
	ErrNoQuestions       = errors.New("session has no questions")
	ErrLastQuestion      = errors.New("already at the last question")
	ErrNoCurrentQuestion = errors.New("no question is active")
	ErrQuestionNotFound  = errors.New("question not found")
	ErrStaleQuestion     = errors.New("question is no longer current")

	ErrWindowNotOpen  = errors.New("buzz window is not open")
	ErrDuplicateBuzz  = errors.New("participant already buzzed")
	ErrNoResolution   = errors.New("buzz window has no resolution")
	ErrBuzzDisabled   = errors.New("buzzing is disabled for this session")
	ErrBadParticipant = errors.New("invalid participant identifier")
)
