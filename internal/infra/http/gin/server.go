package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"stationbeds/internal/infra/config"
	"stationbeds/internal/infra/obs"
)

type VisitHTTP interface {
	Request(c *gin.Context)
	List(c *gin.Context)
	Get(c *gin.Context)
	Decide(c *gin.Context)
	Cancel(c *gin.Context)
	AssignOccupant(c *gin.Context)
}

type StayHTTP interface {
	Book(c *gin.Context)
	Release(c *gin.Context)
	List(c *gin.Context)
}

type AvailabilityHTTP interface {
	Feed(c *gin.Context)
	Reconcile(c *gin.Context)
}

type Handlers struct {
	Visits         VisitHTTP
	Stays          StayHTTP
	Availability   AvailabilityHTTP
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg, obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the gin engine without binding it to an address.
func NewRouter(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.AccessLog())
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			obs.RequestIDHeader,
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Visits != nil {
		visits := api.Group("/visits")
		visits.POST("", h.Visits.Request)
		visits.GET("", h.Visits.List)
		visits.GET("/:id", h.Visits.Get)
		visits.POST("/:id/decision", h.Visits.Decide)
		visits.POST("/:id/cancel", h.Visits.Cancel)
		visits.POST("/:id/occupants", h.Visits.AssignOccupant)
	}
	if h.Stays != nil {
		api.POST("/stays", h.Stays.Book)
		api.POST("/stays/release", h.Stays.Release)
		api.GET("/stays", h.Stays.List)
	}
	if h.Availability != nil {
		api.GET("/sites/:site/availability", h.Availability.Feed)
		api.GET("/sites/:site/reconcile", h.Availability.Reconcile)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug", "dev", "local":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
