package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"bot-mirror/src/control"
	"bot-mirror/src/effects"
	"bot-mirror/src/interfaces"
	"bot-mirror/src/logger"
	"bot-mirror/src/models"
	"bot-mirror/src/router"
	"bot-mirror/src/state"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// DashboardServer
// -----------------------------------------------------------------------------

// Options wires the server to the rest of the client. Router and Reconnect
// are optional.
type Options struct {
	Store     *state.Store
	Control   *control.ControlService
	Sched     interfaces.IScheduler
	Router    *router.Router
	Reconnect func()
}

type DashboardServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	engine *gin.Engine
	http   *http.Server

	store     *state.Store
	control   *control.ControlService
	sched     interfaces.IScheduler
	router    *router.Router
	reconnect func()

	// WebSocket viewers
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	changed    chan struct{}
	alerts     chan effects.Alert
	quit       chan struct{}
	viewers    atomic.Int64

	hubOnce  sync.Once
	stopOnce sync.Once
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewDashboardServer(cfg *models.MConfig, opts Options, log *logger.Logger) *DashboardServer {
	// Set Gin mode
	if !strings.EqualFold(cfg.LogLevel, "DEBUG") {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = logger.NewNop("Dashboard")
	}

	s := &DashboardServer{
		Config:     cfg,
		Logger:     log,
		engine:     gin.New(),
		store:      opts.Store,
		control:    opts.Control,
		sched:      opts.Sched,
		router:     opts.Router,
		reconnect:  opts.Reconnect,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		// one pending signal is enough; the hub always reads the latest snapshot
		changed: make(chan struct{}, 1),
		alerts:  make(chan effects.Alert, 32),
		quit:    make(chan struct{}),
	}
	s.engine.Use(gin.Recovery())

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	s.setupRoutes()
	s.store.Subscribe(s)
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *DashboardServer) setupRoutes() {
	api := s.engine.Group("/api")

	// read side
	api.GET("/snapshot", s.getSnapshot)
	api.GET("/health", s.getHealth)
	api.GET("/summary", s.getSummary)

	// parameters
	api.GET("/params", s.getParams)
	api.PUT("/params", s.putParams)

	// bot commands
	api.POST("/control/:command", s.postCommand)
	api.POST("/authenticate", s.postAuthenticate)
	api.GET("/auth/status", s.getAuthStatus)
	api.POST("/optimize", s.postOptimize)
	api.POST("/watchlist", s.postWatchlist)

	// local actions
	api.POST("/notices/dismiss", s.postDismissNotices)
	api.POST("/reconnect", s.postReconnect)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Handler exposes the routes, mainly for tests.
func (s *DashboardServer) Handler() http.Handler {
	s.startHub()
	return s.engine
}

// -----------------------------------------------------------------------------

// Start serves until Stop is called.
func (s *DashboardServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting dashboard on %s", addr)

	s.startHub()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("dashboard server: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		close(s.quit)
		if s.http != nil {
			err = s.http.Shutdown(ctx)
		}
	})
	return err
}

// -----------------------------------------------------------------------------

// Viewers is the number of connected dashboard sockets.
func (s *DashboardServer) Viewers() int64 {
	return s.viewers.Load()
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) startHub() {
	s.hubOnce.Do(func() { go s.handleWebsockets() })
}
