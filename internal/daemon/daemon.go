package daemon

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trvlai/lawyerai/internal/config"
	"github.com/trvlai/lawyerai/internal/logger"
	"github.com/trvlai/lawyerai/internal/observability"
	"github.com/trvlai/lawyerai/internal/tracing"
	"github.com/trvlai/lawyerai/pkg/chat"
	"github.com/trvlai/lawyerai/pkg/completion"
	"github.com/trvlai/lawyerai/pkg/detect"
	"github.com/trvlai/lawyerai/pkg/prompt"
	"github.com/trvlai/lawyerai/pkg/server"
	"github.com/trvlai/lawyerai/pkg/session"
)

// Daemon wires the chat service together
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	store        *session.Store
	classifier   detect.TextClassifier
	provider     completion.Provider
	orchestrator *chat.Orchestrator
	server       *server.Server

	tracingEnabled bool
	audit          *observability.AuditLogger
	watcher        *config.Watcher

	mu        sync.RWMutex
	running   bool
	stopped   bool
	startTime time.Time
}

// Status describes a running daemon
type Status struct {
	Running   bool
	Uptime    time.Duration
	StartTime time.Time
	Sessions  int
}

var newProvider = func(ctx context.Context, settings completion.Settings) (completion.Provider, error) {
	factory := &completion.ProviderFactory{}
	return factory.NewProvider(ctx, settings)
}

// New creates a new daemon instance
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}

	observability.EnsureRegistered()

	d := &Daemon{
		config: cfg,
		logger: log,
	}

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(cfg.Tracing.ServiceName, cfg.Tracing.SampleRatio); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
		} else {
			d.tracingEnabled = true
			log.Info().Float64("sample_ratio", cfg.Tracing.SampleRatio).Msg("Tracing initialized")
		}
	}

	if cfg.Logging.AuditFile != "" {
		audit, err := observability.InitAuditLogger(cfg.Logging.AuditFile)
		if err != nil {
			d.shutdownTracing()
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		d.audit = audit
		log.Info().Str("path", cfg.Logging.AuditFile).Msg("Audit trail enabled")
	}

	if err := d.initialize(); err != nil {
		d.closeAudit()
		d.shutdownTracing()
		return nil, err
	}

	return d, nil
}

func (d *Daemon) initialize() error {
	zl := d.logger.GetZerolog()

	d.store = session.NewStore(zl)
	d.logger.Info().Msg("Session store initialized")

	d.classifier = detect.NewClassifier(d.config.Chat.Jurisdictions)

	provider, err := newProvider(context.Background(), completion.Settings{
		Provider: d.config.AI.Provider,
		APIKey:   d.config.AI.APIKey,
		BaseURL:  d.config.AI.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to create completion provider: %w", err)
	}
	d.provider = completion.Instrument(provider)
	d.logger.Info().
		Str("provider", provider.Provider()).
		Str("model", d.config.AI.Model).
		Msg("Completion provider initialized")

	d.orchestrator, err = chat.NewOrchestrator(chat.Config{
		Store:         d.store,
		Provider:      d.provider,
		Classifier:    d.classifier,
		Assembler:     prompt.NewAssembler(d.classifier),
		Logger:        zl,
		Model:         d.config.AI.Model,
		Temperature:   d.config.AI.Temperature,
		MaxTokens:     d.config.AI.MaxTokens,
		Timeout:       time.Duration(d.config.AI.TimeoutSeconds) * time.Second,
		GreetingMode:  chat.GreetingMode(d.config.Chat.GreetingMode),
		DetectionMode: chat.DetectionMode(d.config.Chat.DetectionMode),
		Greeting:      d.config.Chat.Greeting,
		FollowUp:      d.config.Chat.FollowUp,
	})
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	d.server, err = server.NewServer(server.Options{
		Host:            d.config.Server.Host,
		Port:            d.config.Server.Port,
		AllowedOrigins:  d.config.CORS.AllowedOrigins,
		DisableMetrics:  !d.config.Metrics.Enabled,
		StatsSchedule:   d.config.Server.StatsSchedule,
		ShutdownTimeout: time.Duration(d.config.Server.ShutdownTimeout) * time.Second,
	}, d.orchestrator, d.store, zl)
	if err != nil {
		return fmt.Errorf("failed to create chat server: %w", err)
	}

	return nil
}

// Run listens on the configured address and serves until ctx is cancelled
func (d *Daemon) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", d.server.Addr())
	if err != nil {
		_ = d.Stop()
		return fmt.Errorf("failed to listen on %s: %w", d.server.Addr(), err)
	}
	return d.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled or the server fails, then stops
// the daemon.
func (d *Daemon) Serve(ctx context.Context, ln net.Listener) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		_ = ln.Close()
		return fmt.Errorf("daemon is already running")
	}
	if d.stopped {
		d.mu.Unlock()
		_ = ln.Close()
		return fmt.Errorf("daemon has been stopped")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	log := d.logger.GetZerolog().With().Str("trace_id", tracing.NewTraceID()).Logger()
	log.Info().Str("addr", ln.Addr().String()).Msg("Starting lawyerai daemon")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return d.server.Serve(ln)
	})
	g.Go(func() error {
		<-gctx.Done()
		return d.Stop()
	})

	err := g.Wait()
	if err != nil {
		log.Error().Err(err).Msg("Daemon exited with error")
		return err
	}
	log.Info().Msg("Daemon exited")
	return nil
}

// Stop stops the daemon gracefully. It is safe to call more than once.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	d.running = false
	watcher := d.watcher
	d.mu.Unlock()

	d.logger.Info().Msg("Stopping lawyerai daemon")

	timeout := time.Duration(d.config.Server.ShutdownTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to stop config watcher")
		}
	}

	var stopErr error
	if err := d.server.Stop(ctx); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop chat server")
		stopErr = err
	}

	if err := d.store.Close(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to close session store")
	}

	d.closeAudit()
	d.shutdownTracing()

	d.logger.Info().Msg("Daemon stopped successfully")
	return stopErr
}

func (d *Daemon) shutdownTracing() {
	if !d.tracingEnabled {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to flush traces")
	}
	d.tracingEnabled = false
}

// WatchConfig reloads path when it changes and applies the settings that
// can change at runtime. Currently that is logging.level.
func (d *Daemon) WatchConfig(path string) error {
	watcher, err := config.NewWatcher(config.WatcherConfig{
		Path:     path,
		OnChange: d.applyConfig,
	})
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		_ = watcher.Stop()
		return err
	}

	d.mu.Lock()
	d.watcher = watcher
	d.mu.Unlock()
	return nil
}

func (d *Daemon) applyConfig(cfg *config.Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cfg.Logging.Level != d.config.Logging.Level {
		if err := d.logger.SetLevel(cfg.Logging.Level); err != nil {
			return err
		}
		d.logger.Info().
			Str("from", d.config.Logging.Level).
			Str("to", cfg.Logging.Level).
			Msg("Log level changed")
		d.config.Logging.Level = cfg.Logging.Level
	}

	rest := *cfg
	rest.Logging.Level = d.config.Logging.Level
	if !reflect.DeepEqual(rest, *d.config) {
		d.logger.Warn().Msg("Config changed on disk; settings other than logging.level apply after restart")
	}
	return nil
}

func (d *Daemon) closeAudit() {
	if d.audit == nil {
		return
	}
	observability.SetAuditLogger(nil)
	if err := d.audit.Close(); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to close audit log")
	}
	d.audit = nil
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running:  d.running,
		Sessions: d.store.Len(),
	}
	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
	}
	return status
}

// Handler returns the HTTP handler serving the chat API
func (d *Daemon) Handler() http.Handler {
	return d.server.Handler()
}

// Addr returns the configured listen address
func (d *Daemon) Addr() string {
	return d.server.Addr()
}
