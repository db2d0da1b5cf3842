package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/trvlai/lawyerai/internal/observability"
)

// Server is the chat HTTP server
type Server struct {
	options   Options
	server    *http.Server
	handler   http.Handler
	chat      ChatHandler
	sessions  SessionCounter
	validator *requestValidator
	scheduler *cron.Cron
	logger    zerolog.Logger
	startTime time.Time

	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer creates a new chat server
func NewServer(options Options, chatHandler ChatHandler, sessions SessionCounter, logger zerolog.Logger) (*Server, error) {
	if options.Port == 0 {
		options.Port = 3000
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}
	if options.StatsSchedule == "" {
		options.StatsSchedule = "@every 1m"
	}
	if options.ShutdownTimeout == 0 {
		options.ShutdownTimeout = 30 * time.Second
	}

	if chatHandler == nil {
		return nil, fmt.Errorf("chat handler is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session counter is required")
	}

	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}

	observability.EnsureRegistered()

	s := &Server{
		options:   options,
		chat:      chatHandler,
		sessions:  sessions,
		validator: validator,
		logger:    logger.With().Str("component", "http").Logger(),
		startTime: time.Now(),
	}

	s.scheduler = cron.New()
	if _, err := s.scheduler.AddFunc(options.StatsSchedule, s.housekeeping); err != nil {
		return nil, fmt.Errorf("invalid stats schedule %q: %w", options.StatsSchedule, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/health", s.handleHealth)
	if !options.DisableMetrics {
		mux.Handle("/metrics", observability.MetricsHandler())
	}

	s.handler = withRequestContext(s.logger,
		withRecovery(s.logger,
			withCORS(options.AllowedOrigins, mux)))

	return s, nil
}

// Handler returns the server's root handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return net.JoinHostPort(s.options.Host, fmt.Sprintf("%d", s.options.Port))
}

// Start listens on the configured address and serves until Stop is called
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Stop is called
func (s *Server) Serve(ln net.Listener) error {
	s.shutdownMu.Lock()
	if s.isShuttingDown {
		s.shutdownMu.Unlock()
		_ = ln.Close()
		return nil
	}
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.server
	s.shutdownMu.Unlock()

	s.scheduler.Start()

	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Msg("Starting chat server")

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}

	return nil
}

// Stop refuses new chat requests, waits for in-flight turns, then shuts down
// the listener and the housekeeping scheduler.
func (s *Server) Stop(ctx context.Context) error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	srv := s.server
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down chat server")

	waitCtx, cancel := context.WithTimeout(ctx, s.options.ShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-waitCtx.Done():
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	<-s.scheduler.Stop().Done()

	if srv != nil {
		if err := srv.Shutdown(waitCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("failed to shutdown chat server: %w", err)
		}
	}

	s.logger.Info().Msg("Chat server stopped")
	return nil
}

// housekeeping refreshes the session gauge
func (s *Server) housekeeping() {
	count := s.sessions.Len()
	observability.SetActiveSessions(count)
	s.logger.Info().Int("sessions", count).Msg("Session stats")
}

// beginRequest registers an in-flight request unless shutdown has started.
// The flag check and Add share the lock Stop takes before it waits.
func (s *Server) beginRequest() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	if s.isShuttingDown {
		return false
	}
	s.inFlightReqs.Add(1)
	return true
}

func (s *Server) shuttingDown() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	return s.isShuttingDown
}
