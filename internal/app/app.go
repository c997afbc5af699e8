package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/alpha-matrix/internal/auth"
	"github.com/bobmcallan/alpha-matrix/internal/cache"
	"github.com/bobmcallan/alpha-matrix/internal/client"
	"github.com/bobmcallan/alpha-matrix/internal/common"
	"github.com/bobmcallan/alpha-matrix/internal/config"
	"github.com/bobmcallan/alpha-matrix/internal/dashboard"
	"github.com/bobmcallan/alpha-matrix/internal/handlers"
	"github.com/bobmcallan/alpha-matrix/internal/mcp"
	"github.com/bobmcallan/alpha-matrix/internal/metrics"
)

// App holds all application components and dependencies.
type App struct {
	Config  *config.Config
	Logger  *common.Logger
	Metrics *metrics.Registry

	Client   *client.MatrixClient
	Reports  *cache.ReportCache
	Sessions auth.SessionStore
	Gate     *auth.Gate
	Boards   *dashboard.Registry

	// HTTP handlers
	PageHandler         *handlers.PageHandler
	HealthHandler       *handlers.HealthHandler
	VersionHandler      *handlers.VersionHandler
	AuthHandler         *handlers.AuthHandler
	DashboardHandler    *handlers.DashboardHandler
	APIHandler          *handlers.APIHandler
	ServerHealthHandler *handlers.ServerHealthHandler
	MCPHandler          *mcp.Handler
}

// New initializes the application with all dependencies.
func New(cfg *config.Config, logger *common.Logger) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	env := strings.ToLower(strings.TrimSpace(cfg.Environment))
	if cfg.IsDevMode() {
		logger.Warn().Msg("RUNNING IN DEV MODE: build version shown on the landing page, do not use in production")
	} else if env != "prod" && env != "" {
		logger.Warn().
			Str("environment", cfg.Environment).
			Msg("unrecognized environment value, defaulting to prod behavior")
	}

	if err := a.initSessions(); err != nil {
		return nil, err
	}
	a.initClient()
	a.initHandlers()

	logger.Info().Msg("application initialization complete")

	return a, nil
}

// initSessions opens the configured session store and builds the gate.
func (a *App) initSessions() error {
	switch strings.ToLower(a.Config.Session.Backend) {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		store, err := auth.NewRedisStore(ctx, a.Config.Session.Redis)
		if err != nil {
			return fmt.Errorf("failed to open redis session store: %w", err)
		}
		a.Sessions = store
		a.Logger.Info().Str("addr", a.Config.Session.Redis.Addr).Msg("Sessions stored in redis")
	default:
		a.Sessions = auth.NewMemoryStore()
		a.Logger.Debug().Msg("Sessions stored in memory")
	}

	a.Gate = auth.NewGate(auth.GateOptions{
		Password:   a.Config.Auth.Password,
		CookieName: a.Config.Auth.CookieName,
		TTL:        a.Config.Session.GetTTL(),
		Secure:     a.Config.Auth.SecureCookie,
		Store:      a.Sessions,
		Logger:     a.Logger,
		Metrics:    a.Metrics,
	})
	return nil
}

// initClient builds the backend client and the per-session boards over it.
func (a *App) initClient() {
	if ttl := a.Config.Report.GetCacheTTL(); ttl > 0 {
		a.Reports = cache.New(ttl, a.Config.Report.CacheEntries)
		a.Logger.Info().Dur("ttl", ttl).Msg("Strategy report cache enabled")
	}

	a.Client = client.NewMatrixClient(a.Config.API.URL, client.Options{
		Timeout:          a.Config.API.GetTimeout(),
		MaxFailures:      a.Config.Breaker.MaxFailures,
		OpenTimeout:      a.Config.Breaker.GetOpenTimeout(),
		ReportsPerMinute: a.Config.Report.RatePerMinute,
		ReportCache:      a.Reports,
		Metrics:          a.Metrics,
		Logger:           a.Logger,
	})

	a.Boards = dashboard.NewRegistry(a.Client, a.Logger, a.Metrics)
}

// initHandlers initializes all HTTP handlers.
func (a *App) initHandlers() {
	devMode := a.Config.IsDevMode()

	a.PageHandler = handlers.NewPageHandler(a.Logger, devMode, a.Gate)
	a.HealthHandler = handlers.NewHealthHandler(a.Logger)
	a.VersionHandler = handlers.NewVersionHandler(a.Logger)
	a.AuthHandler = handlers.NewAuthHandler(a.Logger, a.Gate, a.Boards)
	a.DashboardHandler = handlers.NewDashboardHandler(a.Logger, devMode, a.Gate, a.Boards)
	a.APIHandler = handlers.NewAPIHandler(a.Logger, a.Gate, a.Boards)
	a.ServerHealthHandler = handlers.NewServerHealthHandler(a.Logger, a.Client)
	a.MCPHandler = mcp.NewHandler(a.Logger, a.Gate, a.Boards, a.Client, a.Client)

	a.Logger.Debug().Msg("HTTP handlers initialized")
}

// SweepSessions removes expired sessions from the memory store and drops
// the boards of sessions that are no longer authorized. It returns the
// number of boards dropped.
func (a *App) SweepSessions(ctx context.Context) int {
	if mem, ok := a.Sessions.(*auth.MemoryStore); ok {
		mem.Cleanup()
	}

	dropped := 0
	for _, id := range a.Boards.Sessions() {
		if _, ok := a.Gate.Lookup(ctx, id); !ok {
			a.Boards.Drop(id)
			dropped++
		}
	}
	if dropped > 0 {
		a.Logger.Debug().Int("boards", dropped).Msg("Dropped boards of expired sessions")
	}
	return dropped
}

// Close closes all application resources.
func (a *App) Close() error {
	if a.Sessions != nil {
		return a.Sessions.Close()
	}
	return nil
}
