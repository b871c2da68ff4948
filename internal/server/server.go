// Package server assembles the echo HTTP server from registered handlers.
package server

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Handler registers routes on the echo instance.
type Handler interface {
	Register(e *echo.Echo)
}

// Server wraps the echo instance and its listen address.
type Server struct {
	echo *echo.Echo
	addr string
}

// New builds the server with recover, CORS, and request logging middleware,
// then registers every handler.
func New(log *slog.Logger, addr string, handlers ...Handler) *Server {
	if addr == "" {
		addr = ":8080"
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", c.RealIP()),
			)
			return nil
		},
	}))

	for _, h := range handlers {
		if h != nil {
			h.Register(e)
		}
	}

	return &Server{echo: e, addr: addr}
}

// Echo exposes the underlying echo instance for tests.
func (s *Server) Echo() *echo.Echo { return s.echo }

// Start listens on the configured address until Stop.
func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

// Stop drains connections and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
