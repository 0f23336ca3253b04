package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/chrisryanouellette/tv-automation-server-core/internal/config"
	database "github.com/chrisryanouellette/tv-automation-server-core/internal/db"
	"github.com/chrisryanouellette/tv-automation-server-core/internal/playout"
)

type Server struct {
	cfg     *config.Config
	db      *database.Client
	playout *playout.Playout
	updater *playout.Updater
	router  *gin.Engine
}

func New(cfg *config.Config, db *database.Client, po *playout.Playout, updater *playout.Updater) *Server {
	if cfg.Server.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:     cfg,
		db:      db,
		playout: po,
		updater: updater,
		router:  gin.Default(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	// CORS Configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}

	s.router.Use(cors.New(corsConfig))
}

func (s *Server) setupRoutes() {
	// Health Check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "playout-core"})
	})

	// API Group
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/rundowns", s.GetRundowns)
		v1.GET("/rundowns/:id", s.GetRundown)

		// Playout actions
		v1.POST("/rundowns/:id/activate", s.ActivateRundown)
		v1.POST("/rundowns/:id/deactivate", s.DeactivateRundown)
		v1.POST("/rundowns/:id/take", s.TakeRundown)
		v1.POST("/rundowns/:id/next", s.SetNextPart)
		v1.POST("/rundowns/:id/hold", s.ActivateHold)
		v1.POST("/rundowns/:id/reset", s.ResetRundown)

		// UI-facing resolved view
		v1.GET("/segments/:id/resolved", s.GetResolvedSegment)

		// Device-facing timeline
		v1.GET("/studios/:id/timeline", s.GetTimeline)
		v1.GET("/studios/:id/timeline/stat", s.GetTimelineStat)
		v1.POST("/studios/:id/timeline/update", s.TriggerTimelineUpdate)
	}
}

// Start runs the server on the configured port
func (s *Server) Start(addr string) error {
	return s.router.Run(addr)
}
