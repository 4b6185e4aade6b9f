package api

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/moyoez/snapshare/api/controllers"
	"github.com/moyoez/snapshare/api/middlewares"
	"github.com/moyoez/snapshare/metrics"
	"github.com/moyoez/snapshare/p2p"
	"github.com/moyoez/snapshare/presence"
	"github.com/moyoez/snapshare/stream"
	"github.com/moyoez/snapshare/tool"
	"github.com/moyoez/snapshare/transfer"
	"github.com/moyoez/snapshare/types"
)

// Deps are the components the HTTP layer serves.
type Deps struct {
	Registry *presence.Registry
	Streamer *stream.Streamer
	Router   *transfer.Router
	Rooms    *p2p.Rooms
}

// Server is the HTTP API server.
type Server struct {
	cfg    types.ServerConfig
	deps   Deps
	engine *gin.Engine
	server *http.Server
	mu     sync.RWMutex
}

func NewServer(cfg types.ServerConfig, deps Deps) *Server {
	return &Server{cfg: cfg, deps: deps}
}

// Engine returns the router, building it on first use.
func (s *Server) Engine() *gin.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		s.engine = s.setupRoutes()
	}
	return s.engine
}

func (s *Server) setupRoutes() *gin.Engine {
	if gin.Mode() != gin.TestMode {
		if tool.DefaultLogger.GetLevel() == log.DebugLevel {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middlewares.AccessLog())
	engine.Use(middlewares.SecureHeaders())
	engine.Use(middlewares.AllowAllCORS())
	engine.Use(middlewares.RateLimit(s.cfg.RateLimitPerMinute))

	presenceCtrl := controllers.NewPresenceController(s.deps.Registry)
	eventsCtrl := controllers.NewEventsController(s.deps.Streamer)
	filesCtrl := controllers.NewFilesController(s.deps.Router, s.cfg.MaxUploadBytes)
	p2pCtrl := controllers.NewP2PController(s.deps.Rooms)
	infoCtrl := controllers.NewInfoController(s.cfg.Port)

	apiGroup := engine.Group("/api")
	{
		apiGroup.POST("/register", presenceCtrl.HandleRegister)
		apiGroup.GET("/device/:id", presenceCtrl.HandleGetDevice)
		apiGroup.GET("/events", eventsCtrl.HandleEvents)
		apiGroup.GET("/events/ws", eventsCtrl.HandleEventsWS)
		apiGroup.GET("/files", filesCtrl.HandleList)
		apiGroup.POST("/upload", filesCtrl.HandleUpload)
		apiGroup.DELETE("/delete/*name", filesCtrl.HandleDelete)
		apiGroup.GET("/info", infoCtrl.HandleInfo)
		apiGroup.GET("/qrcode", infoCtrl.HandleQRCode)
	}
	p2pGroup := engine.Group("/api/p2p")
	{
		p2pGroup.POST("/create", p2pCtrl.HandleCreate)
		p2pGroup.POST("/signal", p2pCtrl.HandleSignal)
		p2pGroup.GET("/poll", p2pCtrl.HandlePoll)
	}
	engine.GET("/download/*name", filesCtrl.HandleDownload)
	engine.GET("/health", controllers.HandleHealth)
	if s.cfg.Metrics {
		engine.GET("/metrics", middlewares.OnlyAllowLocal, gin.WrapH(metrics.Handler()))
	}

	if s.cfg.WebDir != "" {
		engine.NoRoute(webHandler(os.DirFS(s.cfg.WebDir)))
		tool.DefaultLogger.Infof("[Server] Serving web UI from %s", s.cfg.WebDir)
	} else {
		engine.NoRoute(notFound)
	}
	return engine
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, tool.FastReturnError("not found"))
}

// pathExists returns true if name exists as file or as dir (with index.html) in the FS.
func pathExists(f fs.FS, name string) bool {
	name = strings.TrimPrefix(name, "/")
	if name == "" || name == "." {
		_, err := fs.Stat(f, "index.html")
		return err == nil
	}
	if _, err := fs.Stat(f, name); err == nil {
		return true
	}
	_, err := fs.Stat(f, name+"/index.html")
	return err == nil
}

// webHandler serves the browser UI for unmatched GET routes. Assets are served
// as files; any other path gets index.html so the page handles its own routing.
func webHandler(webFS fs.FS) gin.HandlerFunc {
	fileServer := http.FileServer(http.FS(webFS))
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			notFound(c)
			return
		}
		path := strings.TrimPrefix(c.Request.URL.Path, "/")
		if strings.HasPrefix(path, "api/") {
			notFound(c)
			return
		}
		if path == "" {
			path = "index.html"
		}

		if ext := filepath.Ext(path); ext != "" && ext != ".html" {
			if pathExists(webFS, path) {
				fileServer.ServeHTTP(c.Writer, c.Request)
				return
			}
			notFound(c)
			return
		}

		data, err := fs.ReadFile(webFS, "index.html")
		if err != nil {
			notFound(c)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", data)
	}
}

// Start serves until Shutdown. Every request context derives from ctx, so
// cancelling ctx ends open event streams.
func (s *Server) Start(ctx context.Context) error {
	engine := s.Engine()

	s.mu.Lock()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	srv := s.server
	s.mu.Unlock()

	tool.DefaultLogger.Infof("Starting API server on http://0.0.0.0:%d (LAN: %s)", s.cfg.Port, tool.LANURL(s.cfg.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
