package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/skyconnfig/qdq/internal/config"
	"github.com/skyconnfig/qdq/internal/domain"
)

// HealthCheck is a named health check function.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// sessionHub is the slice of the hub the transport layer needs.
type sessionHub interface {
	Register(conn *websocket.Conn) uuid.UUID
	Subscribe(connectionID uuid.UUID, sessionID int64, participant *domain.Participant) error
	Unsubscribe(connectionID uuid.UUID, sessionID int64)
	ConnectionClosed(connectionID uuid.UUID)
	Send(connectionID uuid.UUID, event string, payload any)
	ClientCount(sessionID int64) int
	OnlineCount() int
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	logger *slog.Logger

	game domain.GameService
	hub  sessionHub

	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, game domain.GameService, h sessionHub, healthChecks []HealthCheck, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		config:       cfg,
		logger:       logger,
		game:         game,
		hub:          h,
		healthChecks: healthChecks,
		startTime:    time.Now(),
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	s.logger.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
