package router

import (
	"time"

	"inmopresence/config"
	"inmopresence/internal/handler"
	"inmopresence/internal/metrics"
	"inmopresence/internal/middleware"
	"inmopresence/internal/repository"
	"inmopresence/internal/service"
	"inmopresence/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Setup wires repositories, services and handlers onto a gin engine and
// returns the engine plus the channel relay so main can manage its
// lifecycle.
func Setup(cfg *config.Config, db *gorm.DB, rdb *redis.Client, m *metrics.Metrics, logger *zap.Logger) (*gin.Engine, *ws.Relay) {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Metrics(m))
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(120, 60*time.Second)))

	// Repositories
	presenceRepo := repository.NewPresenceRepository(db)
	profileRepo := repository.NewProfileRepository(db)

	// Services
	presenceSvc := service.NewPresenceService(&cfg.Presence, presenceRepo, profileRepo, rdb, m, logger)
	authSvc := service.NewAuthService(cfg, profileRepo)

	// Broadcast channel
	hub := ws.NewHub(m)
	relay := ws.NewRelay(hub, rdb, logger)

	// Handlers
	presenceHandler := handler.NewPresenceHandler(presenceSvc, logger)
	authHandler := handler.NewAuthHandler(authSvc, presenceSvc, logger)
	healthHandler := handler.NewHealthHandler(db)

	authMw := middleware.AuthRequired(&cfg.JWT)
	authOpt := middleware.AuthOptional(&cfg.JWT)

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws/agents-online", ws.ServeAgentsChannel(&cfg.JWT, hub))

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authMw, authHandler.Logout)
		}

		api.GET("/agents/online", presenceHandler.OnlineAgents)

		presence := api.Group("/presence")
		presence.Use(authOpt)
		{
			presence.POST("/heartbeat", presenceHandler.Heartbeat)
			presence.POST("/offline", presenceHandler.Offline)
		}
	}

	return r, relay
}
