package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/skyconnfig/qdq/internal/config"
	"github.com/skyconnfig/qdq/internal/domain"
	"github.com/skyconnfig/qdq/internal/hub"
)

// --- Mock implementations ---

type mockGameService struct {
	startFn                func(ctx context.Context, id int64) (*domain.Session, error)
	pauseFn                func(ctx context.Context, id int64) (*domain.Session, error)
	resumeFn               func(ctx context.Context, id int64) (*domain.Session, error)
	finishFn               func(ctx context.Context, id int64) (*domain.Session, error)
	nextQuestionFn         func(ctx context.Context, id int64) (*domain.Question, error)
	currentQuestionFn      func(ctx context.Context, id int64) (*domain.Question, error)
	handleBuzzFn           func(ctx context.Context, sessionID, questionID int64, p domain.Participant) domain.BuzzAck
	resolveBuzzFn          func(ctx context.Context, sessionID, questionID int64) (*domain.Resolution, error)
	closeBuzzFn            func(ctx context.Context, sessionID, questionID int64) error
	broadcastLeaderboardFn func(ctx context.Context, sessionID int64) error
}

var errNotImplemented = errors.New("not implemented")

func (m *mockGameService) StartSession(ctx context.Context, id int64) (*domain.Session, error) {
	if m.startFn != nil {
		return m.startFn(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *mockGameService) PauseSession(ctx context.Context, id int64) (*domain.Session, error) {
	if m.pauseFn != nil {
		return m.pauseFn(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *mockGameService) ResumeSession(ctx context.Context, id int64) (*domain.Session, error) {
	if m.resumeFn != nil {
		return m.resumeFn(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *mockGameService) FinishSession(ctx context.Context, id int64) (*domain.Session, error) {
	if m.finishFn != nil {
		return m.finishFn(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *mockGameService) NextQuestion(ctx context.Context, id int64) (*domain.Question, error) {
	if m.nextQuestionFn != nil {
		return m.nextQuestionFn(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *mockGameService) CurrentQuestion(ctx context.Context, id int64) (*domain.Question, error) {
	if m.currentQuestionFn != nil {
		return m.currentQuestionFn(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *mockGameService) HandleBuzz(ctx context.Context, sessionID, questionID int64, p domain.Participant) domain.BuzzAck {
	if m.handleBuzzFn != nil {
		return m.handleBuzzFn(ctx, sessionID, questionID, p)
	}
	return domain.BuzzAck{Accepted: false, Message: "not implemented"}
}

func (m *mockGameService) ResolveBuzz(ctx context.Context, sessionID, questionID int64) (*domain.Resolution, error) {
	if m.resolveBuzzFn != nil {
		return m.resolveBuzzFn(ctx, sessionID, questionID)
	}
	return nil, errNotImplemented
}

func (m *mockGameService) CloseBuzz(ctx context.Context, sessionID, questionID int64) error {
	if m.closeBuzzFn != nil {
		return m.closeBuzzFn(ctx, sessionID, questionID)
	}
	return errNotImplemented
}

func (m *mockGameService) BroadcastLeaderboard(ctx context.Context, sessionID int64) error {
	if m.broadcastLeaderboardFn != nil {
		return m.broadcastLeaderboardFn(ctx, sessionID)
	}
	return errNotImplemented
}

// --- Test fixture ---

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:               "test",
		Port:                 "0",
		TieWindow:            100 * time.Millisecond,
		MaxClientsPerSession: 10,
		ClientMessageRate:    20,
		ClientMessageBurst:   40,
		LeaderboardSize:      10,
	}
}

func newTestServer(t *testing.T, game domain.GameService, healthChecks ...HealthCheck) *Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := hub.NewHub(clockwork.NewRealClock(), 10, logger)
	t.Cleanup(func() { h.Stop(time.Second) })

	return NewServer(testConfig(), game, h, healthChecks, logger)
}
