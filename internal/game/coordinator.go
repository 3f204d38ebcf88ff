package game

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/skyconnfig/qdq/internal/arbiter"
	"github.com/skyconnfig/qdq/internal/domain"
	"github.com/skyconnfig/qdq/internal/protocol"
)

// Coordinator implements domain.GameService. It is the only component
// that references multiple domain collaborators and orchestrates all
// host-facing use cases.
type Coordinator struct {
	sessions    domain.SessionRepository
	questions   domain.QuestionRepository
	cache       domain.StateCache
	tally       domain.BuzzTally
	arbiter     *arbiter.Arbiter
	broadcaster domain.Broadcaster
	clock       clockwork.Clock
	logger      *slog.Logger

	leaderboardSize int64

	// group collapses concurrent identical host commands (double-clicked
	// buttons, retried requests) into one execution per session.
	group singleflight.Group
}

func NewCoordinator(
	sessions domain.SessionRepository,
	questions domain.QuestionRepository,
	cache domain.StateCache,
	tally domain.BuzzTally,
	arb *arbiter.Arbiter,
	broadcaster domain.Broadcaster,
	clock clockwork.Clock,
	leaderboardSize int64,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		sessions:        sessions,
		questions:       questions,
		cache:           cache,
		tally:           tally,
		arbiter:         arb,
		broadcaster:     broadcaster,
		clock:           clock,
		leaderboardSize: leaderboardSize,
		logger:          logger,
	}
}

var _ domain.GameService = (*Coordinator)(nil)

func groupKey(op string, sessionID int64) string {
	return op + ":" + strconv.FormatInt(sessionID, 10)
}

// transition loads the session, applies mutate, persists the result and
// announces the new state to all subscribers.
func (c *Coordinator) transition(ctx context.Context, id int64, op string, mutate func(*domain.Session) error) (*domain.Session, error) {
	v, err, _ := c.group.Do(groupKey(op, id), func() (any, error) {
		s, err := c.sessions.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := mutate(s); err != nil {
			return nil, err
		}
		if err := c.sessions.SaveSessionState(ctx, s); err != nil {
			return nil, err
		}
		c.mirrorState(ctx, s)
		c.announceState(s)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Session), nil
}

func (c *Coordinator) StartSession(ctx context.Context, id int64) (*domain.Session, error) {
	s, err := c.transition(ctx, id, "start", func(s *domain.Session) error {
		return s.Start(c.clock.Now())
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("session started", "session_id", id, "questions", len(s.QuestionIDs))
	return s, nil
}

func (c *Coordinator) PauseSession(ctx context.Context, id int64) (*domain.Session, error) {
	return c.transition(ctx, id, "pause", func(s *domain.Session) error {
		return s.Pause()
	})
}

func (c *Coordinator) ResumeSession(ctx context.Context, id int64) (*domain.Session, error) {
	return c.transition(ctx, id, "resume", func(s *domain.Session) error {
		return s.Resume()
	})
}

// FinishSession is terminal: besides the state transition it drops the
// session's buzz windows and evicts the cached state mirror.
func (c *Coordinator) FinishSession(ctx context.Context, id int64) (*domain.Session, error) {
	v, err, _ := c.group.Do(groupKey("finish", id), func() (any, error) {
		s, err := c.sessions.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.Finish(c.clock.Now()); err != nil {
			return nil, err
		}
		if err := c.sessions.SaveSessionState(ctx, s); err != nil {
			return nil, err
		}

		c.arbiter.DropSession(id)
		if err := c.cache.ClearSessionState(ctx, id); err != nil {
			c.logger.Warn("failed to clear session state cache", "session_id", id, "error", err)
		}
		c.announceState(s)
		c.logger.Info("session finished", "session_id", id)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Session), nil
}

// NextQuestion advances the running session, opens the buzz window for
// the new question and pushes the answer-stripped question to everyone.
func (c *Coordinator) NextQuestion(ctx context.Context, id int64) (*domain.Question, error) {
	v, err, _ := c.group.Do(groupKey("next", id), func() (any, error) {
		s, err := c.sessions.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}

		prevID, hadPrev := s.CurrentQuestionID()
		questionID, err := s.Advance()
		if err != nil {
			return nil, err
		}

		q, err := c.questions.GetQuestion(ctx, questionID)
		if err != nil {
			return nil, err
		}

		if err := c.sessions.SaveSessionState(ctx, s); err != nil {
			return nil, err
		}
		c.mirrorState(ctx, s)

		// A still-open window on the previous question can no longer
		// be resolved meaningfully.
		if hadPrev {
			if err := c.arbiter.CloseWindow(id, prevID); err != nil && !errors.Is(err, domain.ErrWindowNotOpen) {
				c.logger.Warn("failed to close previous buzz window", "session_id", id, "question_id", prevID, "error", err)
			}
		}
		if s.Config.BuzzEnabled {
			c.arbiter.OpenWindow(id, q.ID)
		}

		c.broadcaster.Broadcast(id, protocol.EventQuestionPush, q.Public())
		if s.Config.QuestionTimeLimit > 0 {
			c.broadcaster.Broadcast(id, protocol.EventCountdown, protocol.CountdownPayload{
				SessionID:  id,
				QuestionID: q.ID,
				Seconds:    s.Config.QuestionTimeLimit,
			})
		}

		c.logger.Info("question pushed", "session_id", id, "question_id", q.ID, "index", s.CurrentIndex)
		return q, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Question), nil
}

func (c *Coordinator) CurrentQuestion(ctx context.Context, id int64) (*domain.Question, error) {
	s, err := c.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	questionID, ok := s.CurrentQuestionID()
	if !ok {
		return nil, domain.ErrNoCurrentQuestion
	}
	return c.questions.GetQuestion(ctx, questionID)
}

// HandleBuzz validates a buzz attempt against the live session and hands
// it to the arbiter. It always returns an ack; rejection reasons travel
// in the ack message rather than as errors.
func (c *Coordinator) HandleBuzz(ctx context.Context, sessionID, questionID int64, p domain.Participant) domain.BuzzAck {
	reject := func(message string) domain.BuzzAck {
		return domain.BuzzAck{
			Accepted:   false,
			Message:    message,
			MemberID:   p.String(),
			ServerTime: c.clock.Now().UnixMilli(),
		}
	}

	s, err := c.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return reject("session not found")
		}
		c.logger.Error("failed to load session for buzz", "session_id", sessionID, "error", err)
		return reject("session unavailable")
	}

	if !s.IsRunning() {
		return reject("session is not running")
	}
	if !s.Config.BuzzEnabled {
		return reject("buzzing is disabled for this session")
	}
	if currentID, ok := s.CurrentQuestionID(); !ok || currentID != questionID {
		return reject("question is no longer active")
	}

	serverTime, err := c.arbiter.Register(sessionID, questionID, p)
	switch {
	case errors.Is(err, domain.ErrDuplicateBuzz):
		return reject("already buzzed for this question")
	case errors.Is(err, domain.ErrWindowNotOpen):
		return reject("buzz window is closed")
	case err != nil:
		c.logger.Error("failed to register buzz", "session_id", sessionID, "question_id", questionID, "error", err)
		return reject("buzz failed")
	}

	return domain.BuzzAck{
		Accepted:   true,
		Message:    "buzz registered",
		MemberID:   p.String(),
		ServerTime: serverTime,
	}
}

// ResolveBuzz finalizes the buzz race for a question, broadcasts the
// ranked outcome and credits the winner in the session tally. Repeated
// calls return the cached resolution without re-announcing it.
func (c *Coordinator) ResolveBuzz(ctx context.Context, sessionID, questionID int64) (*domain.Resolution, error) {
	if res, err := c.arbiter.Result(sessionID, questionID); err == nil {
		return res, nil
	}

	key := groupKey("resolve", sessionID) + ":" + strconv.FormatInt(questionID, 10)
	v, err, _ := c.group.Do(key, func() (any, error) {
		res, err := c.arbiter.Resolve(ctx, sessionID, questionID)
		if err != nil {
			return nil, err
		}

		c.broadcaster.Broadcast(sessionID, protocol.EventBuzzResult, res)

		if first, ok := res.First(); ok {
			winner, err := domain.ParseParticipant(first.MemberID)
			if err != nil {
				c.logger.Error("resolution winner has invalid member id", "member_id", first.MemberID, "error", err)
			} else if err := c.tally.IncrFirst(ctx, sessionID, winner); err != nil {
				c.logger.Warn("failed to credit buzz winner", "session_id", sessionID, "member_id", first.MemberID, "error", err)
			}
		}

		c.logger.Info("buzz resolved", "session_id", sessionID, "question_id", questionID, "qualified", len(res.Entries))
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Resolution), nil
}

// CloseBuzz shuts the window without producing a resolution.
func (c *Coordinator) CloseBuzz(ctx context.Context, sessionID, questionID int64) error {
	return c.arbiter.CloseWindow(sessionID, questionID)
}

// BroadcastLeaderboard pushes the current buzz-first standings to every
// subscriber of the session.
func (c *Coordinator) BroadcastLeaderboard(ctx context.Context, sessionID int64) error {
	entries, err := c.tally.Top(ctx, sessionID, c.leaderboardSize)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []domain.TallyEntry{}
	}

	c.broadcaster.Broadcast(sessionID, protocol.EventLeaderboardUpdate, protocol.LeaderboardPayload{
		SessionID:   sessionID,
		Leaderboard: entries,
	})
	return nil
}

// mirrorState refreshes the shared state cache; the write is best-effort.
func (c *Coordinator) mirrorState(ctx context.Context, s *domain.Session) {
	if err := c.cache.CacheSessionState(ctx, s); err != nil {
		c.logger.Warn("failed to mirror session state", "session_id", s.ID, "error", err)
	}
}

func (c *Coordinator) announceState(s *domain.Session) {
	c.broadcaster.Broadcast(s.ID, protocol.EventSessionState, protocol.SessionStatePayload{
		SessionID: s.ID,
		Status:    s.Status.String(),
	})
}
