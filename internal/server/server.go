// Package server exposes the launch service over HTTP. The handlers
// are thin glue: extraction, composition, and orchestration live in
// their own packages and are wired together here.
package server

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/scriptdeck/scriptdeck/internal/browse"
	"github.com/scriptdeck/scriptdeck/internal/config"
	"github.com/scriptdeck/scriptdeck/internal/history"
	"github.com/scriptdeck/scriptdeck/internal/launch"
)

// Server wraps the HTTP router and its collaborators.
type Server struct {
	cfg       config.Server
	store     *config.Store
	history   *history.Store
	favorites *browse.FavoritesStore
	launcher  *launch.Launcher
	logger    *zap.Logger
	router    *gin.Engine
}

// New assembles the router. The history store may be nil, in which
// case history endpoints report empty results and launches skip
// recording.
func New(cfg config.Server, store *config.Store, hist *history.Store, launcher *launch.Launcher, logger *zap.Logger) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:       cfg,
		store:     store,
		history:   hist,
		favorites: browse.NewFavoritesStore(filepath.Join(store.HistoryDir(), "favorites.json")),
		launcher:  launcher,
		logger:    logger,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Accept", "Origin"},
		MaxAge:       12 * time.Hour,
	}))

	r.GET("/healthz", s.handleHealth)

	api := r.Group("/api")
	{
		api.POST("/parse-script", s.handleParseScript)
		api.POST("/run-command", s.handleRunCommand)
		api.POST("/validate", s.handleValidate)

		api.GET("/config", s.handleGetSettings)
		api.POST("/config", s.handleUpdateSettings)

		api.GET("/configs", s.handleListConfigs)
		api.POST("/configs", s.handleSaveConfig)
		api.DELETE("/configs", s.handleDeleteConfig)
		api.GET("/configs/:name", s.handleGetConfig)

		api.GET("/presets/args", s.handleListPresets)
		api.POST("/presets/args", s.handleSavePreset)
		api.GET("/presets/args/:name", s.handleGetPreset)

		api.GET("/history", s.handleHistory)
		api.GET("/browse", s.handleBrowse)

		api.GET("/favorites", s.handleGetFavorites)
		api.POST("/favorites", s.handlePinFavorite)
		api.DELETE("/favorites", s.handleUnpinFavorite)
	}

	s.router = r
	return s
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run binds the first free port at or above the configured one and
// serves until the listener fails.
func (s *Server) Run() error {
	port, err := probePort(s.cfg.Host, s.cfg.Port, s.cfg.PortProbes)
	if err != nil {
		return err
	}
	if port != s.cfg.Port {
		s.logger.Warn("configured port in use, using fallback",
			zap.Int("configured", s.cfg.Port),
			zap.Int("bound", port),
		)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(port))
	s.logger.Info("server listening", zap.String("addr", "http://"+addr))
	return s.router.Run(addr)
}

// probePort finds a bindable port in [start, start+attempts).
func probePort(host string, start, attempts int) (int, error) {
	if attempts < 1 {
		attempts = 1
	}
	for port := start; port < start+attempts; port++ {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err != nil {
			continue
		}
		_ = ln.Close()
		return port, nil
	}
	return 0, fmt.Errorf("no available port in range %d-%d", start, start+attempts-1)
}

// requestLogger records one structured line per request.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}
