package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwalitptl/scheduler-api/internal/middleware"
	"github.com/jwalitptl/scheduler-api/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine *gin.Engine
}

type RouterConfig struct {
	RequestTimeout time.Duration
	RateLimit      float64
	RateBurst      int
	// RateLimitEnabled turns on the per-client limiter.
	RateLimitEnabled bool
	AllowedOrigins   []string
	MetricsPath      string
	Mode             string
}

// Dependencies are the pieces the router mounts.
type Dependencies struct {
	Doctors      Handler
	Appointments Handler
	Health       Handler
	// Websocket serves the live event feed at /ws.
	Websocket gin.HandlerFunc
	Metrics   *metrics.Metrics
	// Gatherer backs the metrics endpoint. Nil disables it.
	Gatherer prometheus.Gatherer
}

func NewRouter(deps Dependencies, config RouterConfig) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	engine := gin.New()

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Metrics(deps.Metrics),
		middleware.Recovery(),
		middleware.ErrorHandler(),
		middleware.CORS(middleware.DefaultCORSConfig(config.AllowedOrigins)),
	)

	if config.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RPS:   config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	r := &Router{engine: engine}
	r.setup(deps, config)
	return r
}

func (r *Router) setup(deps Dependencies, config RouterConfig) {
	root := r.engine.Group("")
	deps.Health.RegisterRoutes(root)

	if deps.Gatherer != nil {
		path := config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.engine.GET(path, gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	if deps.Websocket != nil {
		r.engine.GET("/ws", deps.Websocket)
	}

	api := r.engine.Group("/api/v1")
	api.Use(
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
		middleware.SizeLimit(middleware.DefaultMaxBodySize),
	)
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	deps.Doctors.RegisterRoutes(api)
	deps.Appointments.RegisterRoutes(api)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
