package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-appliances/internal/appliance"
	"github.com/nerrad567/gray-logic-appliances/internal/audit"
	"github.com/nerrad567/gray-logic-appliances/internal/cloud"
	"github.com/nerrad567/gray-logic-appliances/internal/entity"
	"github.com/nerrad567/gray-logic-appliances/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-appliances/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// channelStateChanged is the WebSocket channel carrying entity snapshots.
const channelStateChanged = "entity.state_changed"

// EntityHost is the part of the host the API drives. *host.Host implements it.
type EntityHost interface {
	IsRegistered(key entity.Key) bool
	IsDisabled(key entity.Key) bool
	SetDisabled(ctx context.Context, key entity.Key, disabled bool) error
	Remove(ctx context.Context, key entity.Key) error
	OnState(fn func(entity.Snapshot))
}

// Refresher triggers an out-of-band cloud poll. *cloud.Poller implements it.
type Refresher interface {
	Trigger()
	Status() cloud.PollStatus
}

// DispatchReporter exposes action queue counters. *cloud.Dispatcher
// implements it.
type DispatchReporter interface {
	Stats() cloud.DispatchStats
}

// CommandLog records and lists entity commands. *audit.SQLiteRepository
// implements it.
type CommandLog interface {
	audit.Recorder
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Registry *entity.Registry
	Host     EntityHost
	Cache    *appliance.Cache

	// Optional. Without a Refresher, POST /refresh returns 503; without
	// a CommandLog, GET /commands does.
	Poller     Refresher
	Dispatcher DispatchReporter
	Commands   CommandLog

	Version string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	registry   *entity.Registry
	host       EntityHost
	cache      *appliance.Cache
	poller     Refresher
	dispatcher DispatchReporter
	commands   CommandLog
	version    string
	server     *http.Server
	hub        *Hub
	cancel     context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called. Logger, Registry,
// Host and Cache are required.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("entity registry is required")
	}
	if deps.Host == nil {
		return nil, fmt.Errorf("host is required")
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("appliance cache is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		logger:     deps.Logger,
		registry:   deps.Registry,
		host:       deps.Host,
		cache:      deps.Cache,
		poller:     deps.Poller,
		dispatcher: deps.Dispatcher,
		commands:   deps.Commands,
		version:    deps.Version,
		hub:        NewHub(deps.WS, deps.Logger),
	}

	s.hub.SetCurrentState(s.currentViews)
	s.host.OnState(func(snap entity.Snapshot) {
		s.hub.BroadcastEntity(channelStateChanged, snap.Key(), s.entityView(snap))
	})

	return s, nil
}

// Hub returns the server's WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routed HTTP handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start runs the WebSocket hub and launches the HTTP listener in a
// background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
