// Package server exposes the board over HTTP: a JSON API for the viewer,
// a server-sent event stream of changes, and static files from the doc root.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/stopmidnight/taskboard/internal/activity"
	"github.com/stopmidnight/taskboard/internal/board"
	tbfs "github.com/stopmidnight/taskboard/internal/fs"
	"github.com/stopmidnight/taskboard/internal/notify"
)

const shutdownTimeout = 5 * time.Second

// Config wires a Server. Board, Hub and Root are required.
type Config struct {
	Board    *board.Board
	Hub      *notify.Hub
	Activity *activity.Log
	FS       tbfs.FS

	// Root is the doc root served as static files.
	Root string
	// AltViewerRoot serves /viewer/* files missing under Root.
	AltViewerRoot string

	Now    func() time.Time
	Logger log.FieldLogger
}

// Server is the HTTP front of one board.
type Server struct {
	cfg  Config
	echo *echo.Echo

	closing   chan struct{}
	closeOnce sync.Once
}

// New builds the server and registers its routes.
func New(cfg Config) *Server {
	if cfg.FS == nil {
		cfg.FS = tbfs.NewReal()
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.Logger == nil {
		cfg.Logger = log.StandardLogger()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{cfg: cfg, echo: e, closing: make(chan struct{})}

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(requestLogger(cfg.Logger))
	e.Use(allowAnyOrigin)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodPost, http.MethodPut, http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	s.routes()

	return s
}

func (s *Server) routes() {
	e := s.echo

	e.OPTIONS("/api/*", preflight)
	e.GET("/events", s.events)

	api := e.Group("/api")
	api.GET("/ping", ping)
	api.GET("/activity", s.recentActivity)
	api.GET("/templates", templates)
	api.GET("/tasks/get", s.getTask)
	api.PUT("/tasks/save", s.saveTask)
	api.POST("/tasks", s.createTask)
	api.POST("/tasks/undo", s.undoTask)
	api.POST("/tasks/status", s.changeStatus)

	e.GET("/*", s.static)
}

// ServeHTTP lets the server be mounted or tested as a plain handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Run listens on addr until ctx is done, then shuts down gracefully.
// Open event streams are ended first.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)

	go func() {
		errCh <- s.echo.Start(addr)
	}()

	s.cfg.Logger.WithField("addr", addr).Info("task viewer listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
	}

	s.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return s.echo.Shutdown(shutdownCtx)
}

// Close ends open event streams.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.closing) })
}

func requestLogger(logger log.FieldLogger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			entry := logger.WithFields(log.Fields{
				"request_id": v.RequestID,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency,
			})

			if v.Error != nil {
				entry.WithError(v.Error).Warn("request failed")

				return nil
			}

			entry.Debug("request")

			return nil
		},
	})
}

// allowAnyOrigin marks API and event responses as readable from any origin,
// also for clients that send no Origin header.
func allowAnyOrigin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if p := c.Request().URL.Path; strings.HasPrefix(p, "/api/") || p == "/events" {
			c.Response().Header().Set(echo.HeaderAccessControlAllowOrigin, "*")
		}

		return next(c)
	}
}

func preflight(c echo.Context) error {
	h := c.Response().Header()
	h.Set(echo.HeaderAccessControlAllowOrigin, "*")
	h.Set(echo.HeaderAccessControlAllowMethods, "POST, PUT, GET, OPTIONS")
	h.Set(echo.HeaderAccessControlAllowHeaders, "Content-Type, Authorization")

	return c.NoContent(http.StatusNoContent)
}
