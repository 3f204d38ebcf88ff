package server

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())

	s.echo.GET("/ws", s.handleWebSocket)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.registerHealthRoutes()

	api := s.echo.Group("/api")
	sessions := api.Group("/sessions/:id")
	sessions.POST("/start", s.handleStartSession)
	sessions.POST("/pause", s.handlePauseSession)
	sessions.POST("/resume", s.handleResumeSession)
	sessions.POST("/finish", s.handleFinishSession)
	sessions.POST("/next-question", s.handleNextQuestion)
	sessions.GET("/current-question", s.handleCurrentQuestion)
	sessions.GET("/online-count", s.handleOnlineCount)
	sessions.POST("/leaderboard/broadcast", s.handleBroadcastLeaderboard)
	sessions.POST("/questions/:questionID/resolve-buzz", s.handleResolveBuzz)
	sessions.POST("/questions/:questionID/close-buzz", s.handleCloseBuzz)
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.Info("Request", attrs...)
			return nil
		},
	})
}
