package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-backend/config"
	"storefront-backend/internal/api"
	"storefront-backend/internal/auth"
	"storefront-backend/internal/db"
	"storefront-backend/internal/mw"
	"storefront-backend/internal/push"
	"storefront-backend/internal/realtime"
	"storefront-backend/internal/supervisor"
)

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("sequencer already started")

// Option customises a Sequencer.
type Option func(*Sequencer)

// WithConnector replaces the database connector built from the config.
func WithConnector(c *db.Connector) Option {
	return func(s *Sequencer) { s.connector = c }
}

// WithAddr overrides the listen address derived from the configured port.
func WithAddr(addr string) Option {
	return func(s *Sequencer) { s.addr = addr }
}

// Sequencer brings the server up in a fixed order of states and, outside
// production, binds the listening socket. In production the configured
// handler is left for an external host to invoke.
type Sequencer struct {
	cfg      *config.Config
	log      *zap.Logger
	reporter supervisor.Reporter
	addr     string

	connector *db.Connector
	engine    *gin.Engine
	hub       *realtime.Hub
	server    *http.Server
	listener  net.Listener
	mounted   []string
	cancel    context.CancelFunc

	mu          sync.RWMutex
	state       State
	transitions []Transition
	started     bool
	connecting  bool
}

// New creates a sequencer in StateInitializing.
func New(cfg *config.Config, log *zap.Logger, reporter supervisor.Reporter, opts ...Option) *Sequencer {
	s := &Sequencer{
		cfg:      cfg,
		log:      log,
		reporter: reporter,
		addr:     fmt.Sprintf(":%d", cfg.Server.Port),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.connector == nil {
		s.connector = db.NewConnector(&cfg.Database, log)
	}
	return s
}

// Start runs the sequence up to Listening or Exported. Only a push
// configuration error or a failure to bind stops it; the database connects
// in the background and its failure is logged.
func (s *Sequencer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if err := s.start(runCtx); err != nil {
		cancel()
		return err
	}
	return nil
}

func (s *Sequencer) start(ctx context.Context) error {
	mode := s.cfg.Mode

	s.transition(StateConfiguringMiddleware)
	if mode.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	corsHandler, err := mw.CORS(mode, s.cfg.Server.AllowedOrigins)
	if err != nil {
		return fmt.Errorf("configure cors: %w", err)
	}
	metrics := mw.NewMetrics()

	// gin runs global middleware in registration order ahead of route
	// handlers, so logging and error translation go first to cover every route.
	s.engine = gin.New()
	// ClientIP keys the rate limiter, so forwarding headers are only honoured
	// from configured proxies.
	if err := s.engine.SetTrustedProxies(s.cfg.Server.TrustedProxies); err != nil {
		return fmt.Errorf("configure trusted proxies: %w", err)
	}
	s.engine.Use(
		mw.RequestLogger(s.log),
		metrics.Middleware(),
		mw.ErrorHandler(s.log),
		corsHandler,
		mw.BodyLimit(s.cfg.Server.BodyLimitBytes),
	)

	s.transition(StateConnectingDatabase)
	s.connector.ConnectAsync(ctx, s.reporter)
	s.connecting = true

	if !mode.IsProduction() {
		s.hub = realtime.NewHub(s.log)
		supervisor.Go(ctx, s.reporter, "realtime-hub", s.hub.Run)
	}

	s.transition(StateConfiguringPush)
	webpushOptions, err := push.Configure(s.cfg.Push)
	if err != nil {
		return fmt.Errorf("configure push: %w", err)
	}
	dispatcher := push.NewDispatcher(s.cfg.WorkerPool.Size, s.connector, webpushOptions, s.log, s.reporter)
	dispatcher.Start(ctx)

	s.transition(StateMountingRoutes)
	if s.cfg.Auth.JWTSecret == "" {
		s.log.Warn("JWT_SECRET is not set; authenticated routes will reject every token")
	}
	authService := auth.NewService(s.cfg.Auth.JWTSecret, time.Duration(s.cfg.Auth.TokenTTLHours)*time.Hour)
	handler := api.NewHandler(s.connector, webpushOptions, dispatcher, mode, s.log)
	s.mounted = api.Mount(s.engine, api.Modules(handler, authService, &s.cfg.Server), &s.cfg.Server)
	s.engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	if s.hub != nil {
		s.engine.GET("/ws", s.hub.ServeWS)
	}

	if mode.IsProduction() {
		s.transition(StateExported)
		s.log.Info("request handler exported", zap.String("mode", string(mode)))
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.transition(StateListening)
	s.log.Info("server listening", zap.String("addr", ln.Addr().String()), zap.String("mode", string(mode)))

	server := s.server
	supervisor.Go(ctx, s.reporter, "http-server", func(ctx context.Context) {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.reporter.Report(ctx, fmt.Errorf("http server: %w", err))
		}
	})
	return nil
}

func (s *Sequencer) transition(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.transitions = append(s.transitions, Transition{From: from, To: to, At: time.Now()})
	s.mu.Unlock()

	s.log.Debug("startup state", zap.Stringer("from", from), zap.Stringer("to", to))
}

// State returns the current state.
func (s *Sequencer) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Transitions returns a copy of the recorded state changes.
func (s *Sequencer) Transitions() []Transition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Transition(nil), s.transitions...)
}

// Handler returns the configured request handler. It is nil before Start
// has mounted the middleware.
func (s *Sequencer) Handler() http.Handler {
	if s.engine == nil {
		return nil
	}
	return s.engine
}

// Addr returns the bound address, or "" when no socket was bound.
func (s *Sequencer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Mounted returns the route families in the order they were mounted.
func (s *Sequencer) Mounted() []string { return s.mounted }

// Hub returns the realtime hub; nil in production.
func (s *Sequencer) Hub() *realtime.Hub { return s.hub }

// Connector returns the database connector.
func (s *Sequencer) Connector() *db.Connector { return s.connector }

// Shutdown stops accepting connections, waits for in-flight requests until
// ctx expires, then stops background work and closes the database.
func (s *Sequencer) Shutdown(ctx context.Context) error {
	var errs []error
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.connecting {
		select {
		case <-s.connector.Done():
		case <-ctx.Done():
		}
	}
	if err := s.connector.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}
