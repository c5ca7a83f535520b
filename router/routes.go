package router

import (
	"log"
	"strings"
	"time"

	"objgate/controllers"
	"objgate/metrics"
	"objgate/middleware"
	"objgate/tracing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Options configures the engine's middleware stack
type Options struct {
	CorsOrigin      string
	UploadRateLimit int
	RequestTimeout  time.Duration
	// Metrics is optional; nil disables /metrics and request instrumentation.
	Metrics *metrics.Metrics
	Logger  *log.Logger
}

// Controllers groups the handlers the routes dispatch to
type Controllers struct {
	Home    *controllers.HomeController
	Objects *controllers.ObjectController
	Health  *controllers.HealthController
}

// NewEngine builds a gin engine with the shared middleware and templates
func NewEngine(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if opts.Logger != nil {
		r.Use(middleware.RequestLogger(opts.Logger))
	}
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware())
	}
	r.Use(tracing.Middleware())
	r.Use(cors.New(corsConfig(opts.CorsOrigin)))
	r.Use(middleware.Timeout(opts.RequestTimeout))

	r.SetHTMLTemplate(controllers.Templates())
	return r
}

// RegisterRoutes configures all the routes
func RegisterRoutes(r *gin.Engine, c Controllers, opts Options) {
	r.GET("/", c.Home.Home)

	rateLimiter := middleware.NewRateLimiter(opts.UploadRateLimit)
	r.POST("/upload", rateLimiter.Limit(), c.Objects.Upload)

	r.GET("/objects", c.Objects.List)
	r.GET("/objects/*name", c.Objects.Fetch)
	r.HEAD("/objects/*name", c.Objects.Check)

	r.GET("/health", c.Health.Live)
	r.GET("/ready", c.Health.Ready)

	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
}

func corsConfig(origin string) cors.Config {
	cfg := cors.DefaultConfig()
	origin = strings.TrimSpace(origin)
	if origin == "" || origin == "*" {
		cfg.AllowAllOrigins = true
	} else {
		for _, o := range strings.Split(origin, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowOrigins = append(cfg.AllowOrigins, o)
			}
		}
	}
	cfg.AllowMethods = []string{"GET", "HEAD", "POST", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type"}
	cfg.ExposeHeaders = []string{"Content-Length", "ETag", "Last-Modified"}
	return cfg
}
