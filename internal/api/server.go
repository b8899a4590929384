package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hirehub/hirehub-core/internal/audit"
	"github.com/hirehub/hirehub-core/internal/auth"
	"github.com/hirehub/hirehub-core/internal/category"
	"github.com/hirehub/hirehub-core/internal/guard"
	"github.com/hirehub/hirehub-core/internal/infrastructure/config"
	"github.com/hirehub/hirehub-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is implemented by optional dependencies reported by
// /health, such as the MQTT client.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger

	// DB backs the health check and the expired-token sweep. Optional.
	DB *sql.DB

	Sessions      *auth.SessionManager
	Authenticator auth.Authenticator
	Users         auth.UserRepository
	Categories    category.Repository
	Audit         audit.Repository // optional
	Routes        *guard.Table
	GuardMode     guard.Mode

	// MQTT is reported by /health when set.
	MQTT HealthChecker

	// WebDir serves the web shell from disk instead of the embedded copy.
	WebDir  string
	Clock   auth.Clock
	Version string
}

// Server is the HTTP API server. Create it with New and start it with Start.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	db        *sql.DB
	sessions  *auth.SessionManager
	authn     auth.Authenticator
	userRepo  auth.UserRepository
	catRepo   category.Repository
	auditRepo audit.Repository
	recorder  *audit.Recorder
	routes    *guard.Table
	guardMode guard.Mode
	mqtt      HealthChecker
	webDir    string
	now       auth.Clock
	version   string
	startTime time.Time

	hub    *Hub
	server *http.Server
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New validates deps and creates a server. Nothing listens until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if deps.Authenticator == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	if deps.Categories == nil {
		return nil, fmt.Errorf("category repository is required")
	}
	if deps.Routes == nil {
		deps.Routes = guard.MustTable(guard.DefaultRoutes())
	}
	if deps.GuardMode == "" {
		deps.GuardMode = guard.ModeEnforce
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Security.Session.CookieName == "" {
		deps.Security.Session.CookieName = "hirehub_session"
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		db:        deps.DB,
		sessions:  deps.Sessions,
		authn:     deps.Authenticator,
		userRepo:  deps.Users,
		catRepo:   deps.Categories,
		auditRepo: deps.Audit,
		recorder:  audit.NewRecorder(deps.Audit, deps.Logger.With("component", "audit").Logger),
		routes:    deps.Routes,
		guardMode: deps.GuardMode,
		mqtt:      deps.MQTT,
		webDir:    deps.WebDir,
		now:       deps.Clock,
		version:   deps.Version,
		startTime: deps.Clock(),
	}
	s.hub = NewHub(s.wsCfg, s.logger)

	return s, nil
}

// Handler builds the router. Start uses it; tests can call it directly.
func (s *Server) Handler() (http.Handler, error) {
	return s.buildRouter()
}

// Start launches the background workers (WebSocket hub, audit writer,
// session sweeper) and the HTTP listener. Close stops all of them.
func (s *Server) Start(ctx context.Context) error {
	router, err := s.buildRouter()
	if err != nil {
		return fmt.Errorf("building router: %w", err)
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.goBackground(func() { s.hub.Run(srvCtx) })
	s.goBackground(func() { s.recorder.Run(srvCtx) })
	s.goBackground(func() { s.sweepLoop(srvCtx) })

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
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

func (s *Server) goBackground(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// Close gracefully shuts down the listener, then stops the background
// workers. Pending audit entries are written before it returns.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	shutdownErr := s.server.Shutdown(ctx)

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	if shutdownErr != nil {
		return fmt.Errorf("shutting down API server: %w", shutdownErr)
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
