package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyconnfig/qdq/internal/domain"
)

func doRequest(srv *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func TestLifecycleCommands_Success(t *testing.T) {
	session := &domain.Session{
		ID:          42,
		Name:        "friday trivia",
		Status:      domain.StatusRunning,
		QuestionIDs: []int64{101, 102},
	}
	command := func(_ context.Context, id int64) (*domain.Session, error) {
		assert.Equal(t, int64(42), id)
		return session, nil
	}

	tests := []struct {
		name string
		path string
		game *mockGameService
	}{
		{"start", "/api/sessions/42/start", &mockGameService{startFn: command}},
		{"pause", "/api/sessions/42/pause", &mockGameService{pauseFn: command}},
		{"resume", "/api/sessions/42/resume", &mockGameService{resumeFn: command}},
		{"finish", "/api/sessions/42/finish", &mockGameService{finishFn: command}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.game)

			rec := doRequest(srv, http.MethodPost, tt.path)

			require.Equal(t, http.StatusOK, rec.Code)
			var resp sessionResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, int64(42), resp.ID)
			assert.Equal(t, "friday trivia", resp.Name)
			assert.Equal(t, "running", resp.Status)
			assert.Equal(t, 2, resp.QuestionCount)
		})
	}
}

func TestSessionCommand_InvalidID(t *testing.T) {
	srv := newTestServer(t, &mockGameService{})

	for _, target := range []string{"/api/sessions/abc/start", "/api/sessions/0/start", "/api/sessions/-3/start"} {
		rec := doRequest(srv, http.MethodPost, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestSessionCommand_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", domain.ErrSessionNotFound, http.StatusNotFound},
		{"already running", domain.ErrSessionRunning, http.StatusConflict},
		{"not running", domain.ErrSessionNotRunning, http.StatusConflict},
		{"finished", domain.ErrSessionFinished, http.StatusConflict},
		{"no questions", domain.ErrNoQuestions, http.StatusConflict},
		{"internal", errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			game := &mockGameService{
				startFn: func(context.Context, int64) (*domain.Session, error) {
					return nil, tt.err
				},
			}
			srv := newTestServer(t, game)

			rec := doRequest(srv, http.MethodPost, "/api/sessions/42/start")

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	game := &mockGameService{
		startFn: func(context.Context, int64) (*domain.Session, error) {
			return nil, errors.New("pq: relation sessions does not exist")
		},
	}
	srv := newTestServer(t, game)

	rec := doRequest(srv, http.MethodPost, "/api/sessions/42/start")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}

func TestNextQuestion(t *testing.T) {
	game := &mockGameService{
		nextQuestionFn: func(_ context.Context, id int64) (*domain.Question, error) {
			assert.Equal(t, int64(42), id)
			return &domain.Question{ID: 101, Title: "capital of France", Score: 10}, nil
		},
	}
	srv := newTestServer(t, game)

	rec := doRequest(srv, http.MethodPost, "/api/sessions/42/next-question")

	require.Equal(t, http.StatusOK, rec.Code)
	var q domain.Question
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.Equal(t, int64(101), q.ID)
	assert.Equal(t, "capital of France", q.Title)
}

func TestNextQuestion_Exhausted(t *testing.T) {
	game := &mockGameService{
		nextQuestionFn: func(context.Context, int64) (*domain.Question, error) {
			return nil, domain.ErrLastQuestion
		},
	}
	srv := newTestServer(t, game)

	rec := doRequest(srv, http.MethodPost, "/api/sessions/42/next-question")

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCurrentQuestion(t *testing.T) {
	game := &mockGameService{
		currentQuestionFn: func(context.Context, int64) (*domain.Question, error) {
			return &domain.Question{ID: 102, Title: "second"}, nil
		},
	}
	srv := newTestServer(t, game)

	rec := doRequest(srv, http.MethodGet, "/api/sessions/42/current-question")

	require.Equal(t, http.StatusOK, rec.Code)
	var q domain.Question
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.Equal(t, int64(102), q.ID)
}

func TestCurrentQuestion_NoneActive(t *testing.T) {
	game := &mockGameService{
		currentQuestionFn: func(context.Context, int64) (*domain.Question, error) {
			return nil, domain.ErrNoCurrentQuestion
		},
	}
	srv := newTestServer(t, game)

	rec := doRequest(srv, http.MethodGet, "/api/sessions/42/current-question")

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestOnlineCount(t *testing.T) {
	srv := newTestServer(t, &mockGameService{})

	rec := doRequest(srv, http.MethodGet, "/api/sessions/42/online-count")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sessionId":42,"online":0}`, rec.Body.String())
}

func TestBroadcastLeaderboard(t *testing.T) {
	var called int64
	game := &mockGameService{
		broadcastLeaderboardFn: func(_ context.Context, id int64) error {
			called = id
			return nil
		},
	}
	srv := newTestServer(t, game)

	rec := doRequest(srv, http.MethodPost, "/api/sessions/42/leaderboard/broadcast")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, int64(42), called)
}

func TestResolveBuzz(t *testing.T) {
	game := &mockGameService{
		resolveBuzzFn: func(_ context.Context, sessionID, questionID int64) (*domain.Resolution, error) {
			assert.Equal(t, int64(42), sessionID)
			assert.Equal(t, int64(101), questionID)
			return &domain.Resolution{
				SessionID:  42,
				QuestionID: 101,
				Entries: []domain.BuzzEntry{
					{Rank: 1, MemberID: "user:7", ServerTime: 1000, IsFirst: true},
					{Rank: 2, MemberID: "team:3", ServerTime: 1042},
				},
			}, nil
		},
	}
	srv := newTestServer(t, game)

	rec := doRequest(srv, http.MethodPost, "/api/sessions/42/questions/101/resolve-buzz")

	require.Equal(t, http.StatusOK, rec.Code)
	var res domain.Resolution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "user:7", res.Entries[0].MemberID)
	assert.True(t, res.Entries[0].IsFirst)
}

func TestResolveBuzz_WindowNeverOpened(t *testing.T) {
	game := &mockGameService{
		resolveBuzzFn: func(context.Context, int64, int64) (*domain.Resolution, error) {
			return nil, domain.ErrWindowNotOpen
		},
	}
	srv := newTestServer(t, game)

	rec := doRequest(srv, http.MethodPost, "/api/sessions/42/questions/101/resolve-buzz")

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestResolveBuzz_InvalidQuestionID(t *testing.T) {
	srv := newTestServer(t, &mockGameService{})

	rec := doRequest(srv, http.MethodPost, "/api/sessions/42/questions/nope/resolve-buzz")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCloseBuzz(t *testing.T) {
	var gotSession, gotQuestion int64
	game := &mockGameService{
		closeBuzzFn: func(_ context.Context, sessionID, questionID int64) error {
			gotSession, gotQuestion = sessionID, questionID
			return nil
		},
	}
	srv := newTestServer(t, game)

	rec := doRequest(srv, http.MethodPost, "/api/sessions/42/questions/101/close-buzz")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(42), gotSession)
	assert.Equal(t, int64(101), gotQuestion)
}

func TestCloseBuzz_AlreadyClosed(t *testing.T) {
	game := &mockGameService{
		closeBuzzFn: func(context.Context, int64, int64) error {
			return domain.ErrWindowNotOpen
		},
	}
	srv := newTestServer(t, game)

	rec := doRequest(srv, http.MethodPost, "/api/sessions/42/questions/101/close-buzz")

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLiveness(t *testing.T) {
	srv := newTestServer(t, &mockGameService{})

	rec := doRequest(srv, http.MethodGet, "/health/live")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestReadiness(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		srv := newTestServer(t, &mockGameService{},
			HealthCheck{Name: "postgres", Check: func(context.Context) error { return nil }},
			HealthCheck{Name: "redis", Check: func(context.Context) error { return nil }},
		)

		rec := doRequest(srv, http.MethodGet, "/health/ready")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
	})

	t.Run("failing check reported", func(t *testing.T) {
		srv := newTestServer(t, &mockGameService{},
			HealthCheck{Name: "postgres", Check: func(context.Context) error { return nil }},
			HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
		)

		rec := doRequest(srv, http.MethodGet, "/health/ready")

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"failed_check":"redis"`)
	})
}
