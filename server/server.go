package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/onchaincommerce/minibet/auth"
	"github.com/onchaincommerce/minibet/config"
	"github.com/onchaincommerce/minibet/middleware"
)

// App represents the minibet HTTP service
type App struct {
	engine     *gin.Engine
	config     *config.Config
	logger     zerolog.Logger
	services   Services
	httpServer *http.Server
	onShutdown []func()

	gameHandler    *GameHandler
	jackpotHandler *JackpotHandler
	winsHandler    *WinsHandler
	adminHandler   *AdminHandler

	winFeedCancel context.CancelFunc
	winFeedDone   chan struct{}

	// stopping is closed when shutdown begins; stream handlers return on it.
	stopping  chan struct{}
	closeOnce sync.Once

	shutdownTimeout time.Duration
}

// Options holds server configuration options
type Options struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Services Services
}

// New creates a new minibet application
func New(opts Options) *App {
	// Configure decimal.Decimal to marshal as JSON number instead of string
	decimal.MarshalJSONWithoutQuotes = true

	if opts.Config.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	app := &App{
		engine:   gin.New(),
		config:   opts.Config,
		logger:   opts.Logger,
		services: opts.Services,
		stopping: make(chan struct{}),

		shutdownTimeout: 30 * time.Second,
	}

	app.gameHandler = NewGameHandler(app)
	app.jackpotHandler = NewJackpotHandler(app, opts.Services.Jackpot)
	app.winsHandler = NewWinsHandler(app, opts.Services.Wins)
	app.adminHandler = NewAdminHandler(app, opts.Services.Admin)

	return app
}

// UseCommonMiddlewares adds common middlewares to the application
func (a *App) UseCommonMiddlewares() {
	// Recovery middleware (must be first)
	a.engine.Use(middleware.Recovery(a.logger))
	a.engine.Use(middleware.TraceID())
	a.engine.Use(middleware.Metrics())
	a.engine.Use(middleware.Logging(a.logger, a.config.Network))

	if a.config.Server.EnableCORS {
		a.engine.Use(middleware.CORS())
	}
}

// UseMiddleware adds a custom middleware
func (a *App) UseMiddleware(m gin.HandlerFunc) {
	a.engine.Use(m)
}

// RegisterHealthCheck adds health check endpoints
func (a *App) RegisterHealthCheck() {
	a.engine.GET("/health", a.healthCheck)
	a.engine.GET("/api/health", a.healthCheck)
}

func (a *App) healthCheck(c *gin.Context) {
	body := gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"service":   a.config.Environment,
		"network":   a.config.Network,
	}
	if n, err := a.config.ActiveNetwork(); err == nil {
		body["contract"] = n.ContractAddress.Hex()
	}
	c.JSON(http.StatusOK, body)
}

// RegisterMetrics exposes the Prometheus registry at /metrics.
func (a *App) RegisterMetrics() {
	a.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// RegisterManifest serves the mini-app manifest.
func (a *App) RegisterManifest() {
	a.engine.GET("/.well-known/farcaster.json", func(c *gin.Context) {
		c.JSON(http.StatusOK, a.config.Frame)
	})
}

// RegisterAPIRoutes registers the public and admin API.
//
// Routes registered:
//   - GET  /api/config                         -> GameHandler.GetConfig
//   - GET  /api/jackpot                        -> JackpotHandler.GetStatus
//   - GET  /api/jackpot/updates                -> JackpotHandler.StreamUpdates (SSE)
//   - GET  /api/jackpot/updates/ws             -> JackpotHandler.StreamUpdatesWebSocket
//   - GET  /api/players/{address}/stats        -> GameHandler.GetStats
//   - GET  /api/players/{address}/history      -> GameHandler.GetHistory
//   - GET  /api/tx/{hash}                      -> GameHandler.GetTx
//   - GET  /api/wins/recent                    -> WinsHandler.GetRecent
//   - GET  /api/wins/stream                    -> WinsHandler.StreamWins (SSE)
//   - GET  /api/admin/overview                 -> AdminHandler.GetOverview (JWT, owner)
//   - POST /api/admin/withdraw                 -> AdminHandler.Withdraw (JWT, owner)
func (a *App) RegisterAPIRoutes() {
	api := a.engine.Group("/api")
	{
		// Request deadline only on unary routes; streams stay open.
		unary := api.Group("", middleware.Timeout(a.config.Server.WriteTimeout))
		unary.GET("/config", a.gameHandler.GetConfig)
		unary.GET("/jackpot", a.jackpotHandler.GetStatus)
		unary.GET("/tx/:hash", a.gameHandler.GetTx)
		unary.GET("/wins/recent", a.winsHandler.GetRecent)

		players := unary.Group("/players/:address", PlayerAddress())
		players.GET("/stats", a.gameHandler.GetStats)
		players.GET("/history", a.gameHandler.GetHistory)

		api.GET("/jackpot/updates", a.jackpotHandler.StreamUpdates)
		api.GET("/jackpot/updates/ws", a.jackpotHandler.StreamUpdatesWebSocket)
		api.GET("/wins/stream", a.winsHandler.StreamWins)
	}

	admin := a.AuthGroup("/api/admin")
	admin.Use(a.OwnerOnly())
	{
		admin.GET("/overview", a.adminHandler.GetOverview)
		admin.POST("/withdraw", a.adminHandler.Withdraw)
	}

	a.logger.Info().Str("network", a.config.Network).Msg("API routes registered: /api")
}

// Router returns the Gin engine for custom route registration
func (a *App) Router() *gin.Engine {
	return a.engine
}

// Group creates a route group
func (a *App) Group(path string, handlers ...gin.HandlerFunc) *gin.RouterGroup {
	return a.engine.Group(path, handlers...)
}

// AuthGroup creates a route group with JWT authentication
func (a *App) AuthGroup(path string) *gin.RouterGroup {
	return a.engine.Group(path, auth.JWTMiddleware(a.config.JWT.Secret, a.logger))
}

// AttachWinFeed drops cached history pages of every player the feed reports
// a win for. It replaces any previously attached feed.
func (a *App) AttachWinFeed() {
	a.detachWinFeed()
	feed, hist := a.services.Wins, a.services.History
	if feed == nil || hist == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := feed.SubscribeAll()
	done := make(chan struct{})
	a.winFeedCancel = cancel
	a.winFeedDone = done

	go func() {
		defer close(done)
		defer feed.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-sub.Channel:
				if !ok {
					return
				}
				hist.Invalidate(ctx, evt.Player)
				a.logger.Debug().
					Str("player", evt.Player).
					Str("tx_hash", evt.Spin.TxHash).
					Msg("History invalidated by win event")
			}
		}
	}()
}

func (a *App) detachWinFeed() {
	if a.winFeedCancel == nil {
		return
	}
	a.winFeedCancel()
	<-a.winFeedDone
	a.winFeedCancel = nil
	a.winFeedDone = nil
}

// OnShutdown registers a function to be called on shutdown
func (a *App) OnShutdown(fn func()) {
	a.onShutdown = append(a.onShutdown, fn)
}

func (a *App) newHTTPServer() *http.Server {
	return &http.Server{
		Addr:        fmt.Sprintf(":%d", a.config.Server.Port),
		Handler:     a.engine,
		ReadTimeout: a.config.Server.ReadTimeout,
		// No WriteTimeout: SSE and WebSocket responses are long-lived. Unary
		// routes are bounded by the timeout middleware.
		IdleTimeout: a.config.Server.IdleTimeout,
	}
}

// Run starts the HTTP server and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	a.httpServer = a.newHTTPServer()

	go func() {
		a.logger.Info().
			Int("port", a.config.Server.Port).
			Str("environment", a.config.Environment).
			Str("network", a.config.Network).
			Msg("Starting HTTP server")

		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	return a.waitForShutdown()
}

// RunWithContext starts the HTTP server with context
func (a *App) RunWithContext(ctx context.Context) error {
	a.httpServer = a.newHTTPServer()

	errChan := make(chan error, 1)
	go func() {
		a.logger.Info().
			Int("port", a.config.Server.Port).
			Str("environment", a.config.Environment).
			Str("network", a.config.Network).
			Msg("Starting HTTP server")

		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return a.shutdown()
	case err := <-errChan:
		return err
	}
}

func (a *App) waitForShutdown() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	return a.shutdown()
}

// Stopping is closed once shutdown begins.
func (a *App) Stopping() <-chan struct{} {
	return a.stopping
}

func (a *App) closeStreams() {
	a.closeOnce.Do(func() {
		close(a.stopping)
	})
}

func (a *App) shutdown() error {
	a.logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	// Open SSE and WebSocket streams would otherwise hold Shutdown until the
	// deadline.
	a.closeStreams()
	a.detachWinFeed()

	var shutdownErr error
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.logger.Error().Err(err).Msg("Error during server shutdown")
			shutdownErr = err
		}
	}

	// Registered handlers run after in-flight requests finish so they can
	// close clients those requests use. They run even when Shutdown failed.
	for _, fn := range a.onShutdown {
		fn()
	}

	if shutdownErr != nil {
		return shutdownErr
	}
	a.logger.Info().Msg("Server shutdown complete")
	return nil
}

// Config returns the application configuration
func (a *App) Config() *config.Config {
	return a.config
}

// Logger returns the application logger
func (a *App) Logger() zerolog.Logger {
	return a.logger
}
