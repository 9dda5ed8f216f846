package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"PriceShaper/pkg/http/middleware"
	applogger "PriceShaper/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerOption func(*Server)

// WithPort sets the listen port on all interfaces.
func WithPort(port int) ServerOption {
	return func(s *Server) { s.addr = fmt.Sprintf(":%d", port) }
}

// WithTimeouts sets the read and write timeouts.
func WithTimeouts(read, write time.Duration) ServerOption {
	return func(s *Server) {
		s.readTimeout = read
		s.writeTimeout = write
	}
}

// WithCORS sets the allowed origins. No origins disables CORS.
func WithCORS(origins ...string) ServerOption {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithMetrics sets the scrape path. Empty disables HTTP metrics.
func WithMetrics(path string, slow time.Duration) ServerOption {
	return func(s *Server) {
		s.metricsPath = path
		s.slow = slow
	}
}

func WithLogger(l *applogger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.l = l
		}
	}
}

// Server is the Echo instance serving the overlay API.
type Server struct {
	echo         *echo.Echo
	l            *applogger.Logger
	addr         string
	readTimeout  time.Duration
	writeTimeout time.Duration
	corsOrigins  []string
	metricsPath  string
	slow         time.Duration
}

func NewServer(handler Handler, opts ...ServerOption) *Server {
	s := &Server{
		l:            applogger.Nop(),
		addr:         ":8080",
		readTimeout:  10 * time.Second,
		writeTimeout: 10 * time.Second,
		corsOrigins:  []string{"*"},
		metricsPath:  "/metrics",
		slow:         time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = s.readTimeout
	e.Server.WriteTimeout = s.writeTimeout
	e.HTTPErrorHandler = s.errorHandler

	e.Use(middleware.Recover(s.l))
	e.Use(middleware.RequestLogging(s.l))
	if s.metricsPath != "" {
		e.Use(middleware.Metrics(s.l, s.slow))
	}
	if len(s.corsOrigins) > 0 {
		e.Use(middleware.CORS(middleware.CORSConfig{
			AllowOrigins: s.corsOrigins,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			MaxAge:       3600,
		}))
	}

	if handler != nil {
		handler.RegisterRoutes(e)
	}
	if s.metricsPath != "" {
		e.GET(s.metricsPath, echo.WrapHandler(promhttp.Handler()))
	}

	s.echo = e
	return s
}

// errorHandler keeps router errors (404, 405) in the API envelope.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
	}
	if status >= http.StatusInternalServerError {
		s.l.Error("http handler error", applogger.String("path", c.Path()), applogger.Error(err))
	}
	code := "ERR_HTTP"
	if status == http.StatusNotFound {
		code = "ERR_NOT_FOUND"
	}
	if werr := dataResponse(c, status, []*AppError{newAppError(code, http.StatusText(status), status)}); werr != nil {
		s.l.Warn("write error response", applogger.Error(werr))
	}
}

// Start listens in the background.
func (s *Server) Start() error {
	go func() {
		s.l.Info("http server listening", applogger.String("addr", s.addr))
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Error("http server error", applogger.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.l.Info("http server stopped")
	return nil
}

func (s *Server) Echo() *echo.Echo {
	return s.echo
}
