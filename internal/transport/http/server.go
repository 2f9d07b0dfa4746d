package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/anochat/anochat-server/internal/config"
	"github.com/anochat/anochat-server/internal/core"
	"github.com/anochat/anochat-server/internal/store"
)

// NewServer builds the HTTP server: lounge REST endpoints, the /chat
// WebSocket upgrade, health and metrics.
func NewServer(coord *core.Coordinator, statsStore store.StatsStore, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(logger))
	router.Use(CORS(cfg.AllowedOrigins))

	router.GET("/health", healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	lounge := NewLoungeHandlers(coord, statsStore, logger)
	v1 := router.Group("/api/v1")
	{
		v1.GET("/loungeInfo/getRooms", lounge.GetRooms)
		v1.GET("/loungeInfo/getSiteDetails", lounge.GetSiteDetails)
	}

	router.GET("/chat", gin.WrapH(NewWSHandler(coord, cfg, logger)))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
