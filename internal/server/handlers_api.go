package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/skyconnfig/qdq/internal/domain"
)

// sessionResponse is the host-facing view of a session after a command.
type sessionResponse struct {
	ID                   int64      `json:"id"`
	Name                 string     `json:"name"`
	Status               string     `json:"status"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex"`
	QuestionCount        int        `json:"questionCount"`
	StartedAt            *time.Time `json:"startedAt,omitempty"`
	EndedAt              *time.Time `json:"endedAt,omitempty"`
}

func toSessionResponse(s *domain.Session) sessionResponse {
	return sessionResponse{
		ID:                   s.ID,
		Name:                 s.Name,
		Status:               s.Status.String(),
		CurrentQuestionIndex: s.CurrentIndex,
		QuestionCount:        len(s.QuestionIDs),
		StartedAt:            s.StartedAt,
		EndedAt:              s.EndedAt,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func sessionID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	return id, nil
}

func questionID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("questionID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid question id")
	}
	return id, nil
}

// respondError maps domain sentinels onto HTTP statuses: missing things
// are 404, rejected transitions are 409, everything else is a 500.
func (s *Server) respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrQuestionNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrSessionRunning),
		errors.Is(err, domain.ErrSessionNotRunning),
		errors.Is(err, domain.ErrSessionNotPaused),
		errors.Is(err, domain.ErrSessionFinished),
		errors.Is(err, domain.ErrNoQuestions),
		errors.Is(err, domain.ErrLastQuestion),
		errors.Is(err, domain.ErrNoCurrentQuestion),
		errors.Is(err, domain.ErrWindowNotOpen),
		errors.Is(err, domain.ErrNoResolution):
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		s.logger.Error("request failed", "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *Server) handleSessionCommand(c echo.Context, command func(ctx echo.Context, id int64) (*domain.Session, error)) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	session, err := command(c, id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResponse(session))
}

func (s *Server) handleStartSession(c echo.Context) error {
	return s.handleSessionCommand(c, func(c echo.Context, id int64) (*domain.Session, error) {
		return s.game.StartSession(c.Request().Context(), id)
	})
}

func (s *Server) handlePauseSession(c echo.Context) error {
	return s.handleSessionCommand(c, func(c echo.Context, id int64) (*domain.Session, error) {
		return s.game.PauseSession(c.Request().Context(), id)
	})
}

func (s *Server) handleResumeSession(c echo.Context) error {
	return s.handleSessionCommand(c, func(c echo.Context, id int64) (*domain.Session, error) {
		return s.game.ResumeSession(c.Request().Context(), id)
	})
}

func (s *Server) handleFinishSession(c echo.Context) error {
	return s.handleSessionCommand(c, func(c echo.Context, id int64) (*domain.Session, error) {
		return s.game.FinishSession(c.Request().Context(), id)
	})
}

func (s *Server) handleNextQuestion(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	question, err := s.game.NextQuestion(c.Request().Context(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, question)
}

func (s *Server) handleCurrentQuestion(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	question, err := s.game.CurrentQuestion(c.Request().Context(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, question)
}

func (s *Server) handleOnlineCount(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"sessionId": id,
		"online":    s.hub.ClientCount(id),
	})
}

func (s *Server) handleBroadcastLeaderboard(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	if err := s.game.BroadcastLeaderboard(c.Request().Context(), id); err != nil {
		return s.respondError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleResolveBuzz(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	qid, err := questionID(c)
	if err != nil {
		return err
	}

	resolution, err := s.game.ResolveBuzz(c.Request().Context(), id, qid)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, resolution)
}

func (s *Server) handleCloseBuzz(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	qid, err := questionID(c)
	if err != nil {
		return err
	}

	if err := s.game.CloseBuzz(c.Request().Context(), id, qid); err != nil {
		return s.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
