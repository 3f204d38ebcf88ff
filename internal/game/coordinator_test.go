package game

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyconnfig/qdq/internal/arbiter"
	"github.com/skyconnfig/qdq/internal/domain"
	"github.com/skyconnfig/qdq/internal/protocol"
)

// --- Mock implementations ---

type mockSessionRepo struct {
	mu       sync.Mutex
	sessions map[int64]*domain.Session
	saves    int
	saveErr  error
}

func newMockSessionRepo(sessions ...*domain.Session) *mockSessionRepo {
	repo := &mockSessionRepo{sessions: make(map[int64]*domain.Session)}
	for _, s := range sessions {
		repo.sessions[s.ID] = s
	}
	return repo
}

func (m *mockSessionRepo) GetSession(_ context.Context, id int64) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	copied := *stored
	return &copied, nil
}

func (m *mockSessionRepo) SaveSessionState(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, ok := m.sessions[s.ID]; !ok {
		return domain.ErrSessionNotFound
	}
	copied := *s
	m.sessions[s.ID] = &copied
	m.saves++
	return nil
}

type mockQuestionRepo struct {
	questions map[int64]*domain.Question
}

func (m *mockQuestionRepo) GetQuestion(_ context.Context, id int64) (*domain.Question, error) {
	q, ok := m.questions[id]
	if !ok {
		return nil, domain.ErrQuestionNotFound
	}
	copied := *q
	return &copied, nil
}

type mockStateCache struct {
	mu      sync.Mutex
	cached  []int64
	cleared []int64
}

func (m *mockStateCache) CacheSessionState(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = append(m.cached, s.ID)
	return nil
}

func (m *mockStateCache) ClearSessionState(_ context.Context, sessionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = append(m.cleared, sessionID)
	return nil
}

type mockTally struct {
	mu       sync.Mutex
	credited []string
	topFn    func(sessionID int64, n int64) ([]domain.TallyEntry, error)
}

func (m *mockTally) IncrFirst(_ context.Context, _ int64, p domain.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credited = append(m.credited, p.String())
	return nil
}

func (m *mockTally) Top(_ context.Context, sessionID int64, n int64) ([]domain.TallyEntry, error) {
	if m.topFn != nil {
		return m.topFn(sessionID, n)
	}
	return nil, fmt.Errorf("not implemented")
}

type broadcastCall struct {
	sessionID int64
	event     string
	payload   any
}

type recordingBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (r *recordingBroadcaster) Broadcast(sessionID int64, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, broadcastCall{sessionID, event, payload})
}

func (r *recordingBroadcaster) byEvent(event string) []broadcastCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []broadcastCall
	for _, c := range r.calls {
		if c.event == event {
			out = append(out, c)
		}
	}
	return out
}

type noopBuzzLog struct{}

func (noopBuzzLog) RecordBuzz(context.Context, domain.BuzzRecord) error { return nil }

// --- Test fixture ---

type fixture struct {
	coordinator *Coordinator
	sessions    *mockSessionRepo
	questions   *mockQuestionRepo
	cache       *mockStateCache
	tally       *mockTally
	broadcasts  *recordingBroadcaster
	clock       *clockwork.FakeClock
}

func newFixture(t *testing.T, sessions ...*domain.Session) *fixture {
	t.Helper()

	f := &fixture{
		sessions: newMockSessionRepo(sessions...),
		questions: &mockQuestionRepo{questions: map[int64]*domain.Question{
			101: {ID: 101, Type: 1, Title: "first", Answer: []byte(`"A"`), Analysis: "because"},
			102: {ID: 102, Type: 1, Title: "second", Answer: []byte(`"B"`)},
		}},
		cache:      &mockStateCache{},
		tally:      &mockTally{},
		broadcasts: &recordingBroadcaster{},
		clock:      clockwork.NewFakeClock(),
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	arb := arbiter.New(f.clock, 100*time.Millisecond, noopBuzzLog{})
	f.coordinator = NewCoordinator(f.sessions, f.questions, f.cache, f.tally, arb, f.broadcasts, f.clock, 10, logger)
	return f
}

func scheduledSession(id int64) *domain.Session {
	return &domain.Session{
		ID:           id,
		Name:         "friday night quiz",
		Status:       domain.StatusScheduled,
		QuestionIDs:  []int64{101, 102},
		CurrentIndex: -1,
		Config:       domain.SessionConfig{QuestionTimeLimit: 30, BuzzEnabled: true},
	}
}

func runningFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, scheduledSession(1))
	_, err := f.coordinator.StartSession(context.Background(), 1)
	require.NoError(t, err)
	return f
}

// --- Lifecycle ---

func TestStartSession_TransitionsAndAnnounces(t *testing.T) {
	f := newFixture(t, scheduledSession(1))

	s, err := f.coordinator.StartSession(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, s.Status)
	assert.Equal(t, -1, s.CurrentIndex)
	require.NotNil(t, s.StartedAt)

	stored, _ := f.sessions.GetSession(context.Background(), 1)
	assert.Equal(t, domain.StatusRunning, stored.Status)
	assert.Equal(t, []int64{1}, f.cache.cached)

	states := f.broadcasts.byEvent(protocol.EventSessionState)
	require.Len(t, states, 1)
	assert.Equal(t, protocol.SessionStatePayload{SessionID: 1, Status: "running"}, states[0].payload)
}

func TestStartSession_GuardErrorsDoNotAnnounce(t *testing.T) {
	f := runningFixture(t)

	_, err := f.coordinator.StartSession(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrSessionRunning)
	assert.Len(t, f.broadcasts.byEvent(protocol.EventSessionState), 1, "only the first start announces")
}

func TestStartSession_UnknownSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.coordinator.StartSession(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestPauseAndResume(t *testing.T) {
	f := runningFixture(t)
	ctx := context.Background()

	s, err := f.coordinator.PauseSession(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaused, s.Status)

	_, err = f.coordinator.PauseSession(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrSessionNotRunning)

	s, err = f.coordinator.ResumeSession(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, s.Status)

	states := f.broadcasts.byEvent(protocol.EventSessionState)
	require.Len(t, states, 3)
	assert.Equal(t, "paused", states[1].payload.(protocol.SessionStatePayload).Status)
	assert.Equal(t, "running", states[2].payload.(protocol.SessionStatePayload).Status)
}

func TestFinishSession_DropsWindowsAndClearsCache(t *testing.T) {
	f := runningFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.NextQuestion(ctx, 1)
	require.NoError(t, err)

	s, err := f.coordinator.FinishSession(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFinished, s.Status)
	require.NotNil(t, s.EndedAt)
	assert.Equal(t, []int64{1}, f.cache.cleared)

	// The question's buzz window went down with the session.
	ack := f.coordinator.HandleBuzz(ctx, 1, 101, domain.UserParticipant(5))
	assert.False(t, ack.Accepted)

	_, err = f.coordinator.FinishSession(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrSessionFinished)
}

// --- Question advancement ---

func TestNextQuestion_PushesStrippedQuestionAndCountdown(t *testing.T) {
	f := runningFixture(t)

	q, err := f.coordinator.NextQuestion(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(101), q.ID)
	assert.NotNil(t, q.Answer, "the host-facing question keeps its answer")

	pushes := f.broadcasts.byEvent(protocol.EventQuestionPush)
	require.Len(t, pushes, 1)
	pushed := pushes[0].payload.(domain.Question)
	assert.Equal(t, int64(101), pushed.ID)
	assert.Nil(t, pushed.Answer, "broadcast question must not leak the answer")
	assert.Empty(t, pushed.Analysis)

	countdowns := f.broadcasts.byEvent(protocol.EventCountdown)
	require.Len(t, countdowns, 1)
	assert.Equal(t, protocol.CountdownPayload{SessionID: 1, QuestionID: 101, Seconds: 30}, countdowns[0].payload)
}

func TestNextQuestion_OpensBuzzWindow(t *testing.T) {
	f := runningFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.NextQuestion(ctx, 1)
	require.NoError(t, err)

	ack := f.coordinator.HandleBuzz(ctx, 1, 101, domain.UserParticipant(5))
	assert.True(t, ack.Accepted)
	assert.Equal(t, "user:5", ack.MemberID)
}

func TestNextQuestion_ClosesPreviousWindow(t *testing.T) {
	f := runningFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.NextQuestion(ctx, 1)
	require.NoError(t, err)
	q, err := f.coordinator.NextQuestion(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(102), q.ID)

	// Question 101's window is gone; 102's is live.
	assert.False(t, f.coordinator.HandleBuzz(ctx, 1, 101, domain.UserParticipant(5)).Accepted)
	assert.True(t, f.coordinator.HandleBuzz(ctx, 1, 102, domain.UserParticipant(5)).Accepted)
}

func TestNextQuestion_ExhaustedList(t *testing.T) {
	f := runningFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.NextQuestion(ctx, 1)
	require.NoError(t, err)
	_, err = f.coordinator.NextQuestion(ctx, 1)
	require.NoError(t, err)

	_, err = f.coordinator.NextQuestion(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrLastQuestion)
}

func TestNextQuestion_RequiresRunningSession(t *testing.T) {
	f := newFixture(t, scheduledSession(1))

	_, err := f.coordinator.NextQuestion(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrSessionNotRunning)
}

func TestCurrentQuestion(t *testing.T) {
	f := runningFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.CurrentQuestion(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNoCurrentQuestion)

	_, err = f.coordinator.NextQuestion(ctx, 1)
	require.NoError(t, err)

	q, err := f.coordinator.CurrentQuestion(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(101), q.ID)
}

// --- Buzz handling ---

func TestHandleBuzz_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("session not running", func(t *testing.T) {
		f := newFixture(t, scheduledSession(1))
		ack := f.coordinator.HandleBuzz(ctx, 1, 101, domain.UserParticipant(5))
		assert.False(t, ack.Accepted)
		assert.Contains(t, ack.Message, "not running")
	})

	t.Run("buzzing disabled", func(t *testing.T) {
		s := scheduledSession(1)
		s.Config.BuzzEnabled = false
		f := newFixture(t, s)
		_, err := f.coordinator.StartSession(ctx, 1)
		require.NoError(t, err)
		_, err = f.coordinator.NextQuestion(ctx, 1)
		require.NoError(t, err)

		ack := f.coordinator.HandleBuzz(ctx, 1, 101, domain.UserParticipant(5))
		assert.False(t, ack.Accepted)
		assert.Contains(t, ack.Message, "disabled")
	})

	t.Run("stale question", func(t *testing.T) {
		f := runningFixture(t)
		_, err := f.coordinator.NextQuestion(ctx, 1)
		require.NoError(t, err)

		ack := f.coordinator.HandleBuzz(ctx, 1, 102, domain.UserParticipant(5))
		assert.False(t, ack.Accepted)
		assert.Contains(t, ack.Message, "no longer active")
	})

	t.Run("duplicate buzz", func(t *testing.T) {
		f := runningFixture(t)
		_, err := f.coordinator.NextQuestion(ctx, 1)
		require.NoError(t, err)

		first := f.coordinator.HandleBuzz(ctx, 1, 101, domain.UserParticipant(5))
		require.True(t, first.Accepted)

		second := f.coordinator.HandleBuzz(ctx, 1, 101, domain.UserParticipant(5))
		assert.False(t, second.Accepted)
		assert.Contains(t, second.Message, "already buzzed")
	})

	t.Run("unknown session", func(t *testing.T) {
		f := newFixture(t)
		ack := f.coordinator.HandleBuzz(ctx, 99, 101, domain.UserParticipant(5))
		assert.False(t, ack.Accepted)
		assert.Contains(t, ack.Message, "not found")
	})
}

func TestResolveBuzz_BroadcastsAndCreditsWinner(t *testing.T) {
	f := runningFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.NextQuestion(ctx, 1)
	require.NoError(t, err)

	require.True(t, f.coordinator.HandleBuzz(ctx, 1, 101, domain.UserParticipant(5)).Accepted)
	f.clock.Advance(40 * time.Millisecond)
	require.True(t, f.coordinator.HandleBuzz(ctx, 1, 101, domain.TeamParticipant(3)).Accepted)

	res, err := f.coordinator.ResolveBuzz(ctx, 1, 101)
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "user:5", res.Entries[0].MemberID)
	assert.True(t, res.Entries[0].IsFirst)

	results := f.broadcasts.byEvent(protocol.EventBuzzResult)
	require.Len(t, results, 1)
	assert.Same(t, res, results[0].payload)

	assert.Equal(t, []string{"user:5"}, f.tally.credited)
}

func TestResolveBuzz_RepeatedCallIsQuiet(t *testing.T) {
	f := runningFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.NextQuestion(ctx, 1)
	require.NoError(t, err)
	require.True(t, f.coordinator.HandleBuzz(ctx, 1, 101, domain.UserParticipant(5)).Accepted)

	first, err := f.coordinator.ResolveBuzz(ctx, 1, 101)
	require.NoError(t, err)
	again, err := f.coordinator.ResolveBuzz(ctx, 1, 101)
	require.NoError(t, err)
	assert.Same(t, first, again)

	assert.Len(t, f.broadcasts.byEvent(protocol.EventBuzzResult), 1, "cached resolution must not re-announce")
	assert.Equal(t, []string{"user:5"}, f.tally.credited, "winner credited once")
}

func TestResolveBuzz_NoWindow(t *testing.T) {
	f := runningFixture(t)

	_, err := f.coordinator.ResolveBuzz(context.Background(), 1, 101)
	assert.ErrorIs(t, err, domain.ErrWindowNotOpen)
}

func TestCloseBuzz(t *testing.T) {
	f := runningFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.NextQuestion(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, f.coordinator.CloseBuzz(ctx, 1, 101))
	assert.False(t, f.coordinator.HandleBuzz(ctx, 1, 101, domain.UserParticipant(5)).Accepted)

	_, err = f.coordinator.ResolveBuzz(ctx, 1, 101)
	assert.ErrorIs(t, err, domain.ErrWindowNotOpen)
}

// --- Leaderboard ---

func TestBroadcastLeaderboard(t *testing.T) {
	f := runningFixture(t)
	f.tally.topFn = func(sessionID int64, n int64) ([]domain.TallyEntry, error) {
		assert.Equal(t, int64(10), n)
		return []domain.TallyEntry{
			{MemberID: "user:5", Firsts: 3},
			{MemberID: "team:3", Firsts: 1},
		}, nil
	}

	require.NoError(t, f.coordinator.BroadcastLeaderboard(context.Background(), 1))

	updates := f.broadcasts.byEvent(protocol.EventLeaderboardUpdate)
	require.Len(t, updates, 1)
	payload := updates[0].payload.(protocol.LeaderboardPayload)
	assert.Equal(t, int64(1), payload.SessionID)
	require.Len(t, payload.Leaderboard, 2)
	assert.Equal(t, "user:5", payload.Leaderboard[0].MemberID)
}

func TestBroadcastLeaderboard_EmptyTally(t *testing.T) {
	f := runningFixture(t)
	f.tally.topFn = func(int64, int64) ([]domain.TallyEntry, error) {
		return nil, nil
	}

	require.NoError(t, f.coordinator.BroadcastLeaderboard(context.Background(), 1))

	updates := f.broadcasts.byEvent(protocol.EventLeaderboardUpdate)
	require.Len(t, updates, 1)
	payload := updates[0].payload.(protocol.LeaderboardPayload)
	assert.NotNil(t, payload.Leaderboard)
	assert.Empty(t, payload.Leaderboard)
}
