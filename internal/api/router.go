package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/prasenjit/go-mockenv/internal/logging"
	"github.com/prasenjit/go-mockenv/internal/metrics"
	"github.com/prasenjit/go-mockenv/internal/ratelimit"
	"github.com/prasenjit/go-mockenv/internal/resolver"
	"github.com/prasenjit/go-mockenv/internal/stats"
	"github.com/prasenjit/go-mockenv/internal/storage"
	"github.com/prasenjit/go-mockenv/internal/tracing"
)

// Options configures the parts of the router that are optional
type Options struct {
	Logger      *zap.Logger
	RateLimiter *ratelimit.Registry // Applied to mock traffic only; nil disables limiting
	MetricsPath string              // Empty disables the Prometheus endpoint
	// TrustedProxies may set the client address through X-Forwarded-For.
	// Empty means the connection address always identifies the client.
	TrustedProxies []string
}

// Router handles HTTP routing
type Router struct {
	engine         *gin.Engine
	tracingService *tracing.Service
	handler        *Handler
	mock           http.Handler
	opts           Options
}

// NewRouter creates a new router. Requests that match no admin route are
// served by mock.
func NewRouter(store storage.Storage, statsCollector *stats.Collector, tracingService *tracing.Service, engine *resolver.Engine, mock http.Handler, opts Options) *Router {
	gin.SetMode(gin.ReleaseMode)

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := &Router{
		engine:         gin.New(),
		tracingService: tracingService,
		mock:           mock,
		opts:           opts,
	}

	// Mock paths are matched as received
	r.engine.RedirectTrailingSlash = false
	r.engine.RedirectFixedPath = false

	if err := r.engine.SetTrustedProxies(opts.TrustedProxies); err != nil {
		opts.Logger.Warn("Ignoring invalid trusted proxies", zap.Strings("proxies", opts.TrustedProxies), zap.Error(err))
		_ = r.engine.SetTrustedProxies(nil)
	}

	// Create handler
	r.handler = NewHandler(store, statsCollector, tracingService, engine)

	// Setup middleware
	r.engine.Use(gin.Recovery())
	r.engine.Use(logging.Middleware(opts.Logger))

	// Setup routes
	r.setupRoutes()

	return r
}

// setupRoutes configures all routes
func (r *Router) setupRoutes() {
	// Admin API routes
	api := r.engine.Group("/_api", cors.New(corsConfig()))
	{
		// Environments
		api.GET("/environments", r.handler.ListEnvironments)
		api.POST("/environments", r.handler.CreateEnvironment)
		api.GET("/environments/:id", r.handler.GetEnvironment)
		api.PUT("/environments/:id", r.handler.UpdateEnvironment)
		api.DELETE("/environments/:id", r.handler.DeleteEnvironment)

		// Routes
		api.GET("/environments/:id/routes", r.handler.ListRoutes)
		api.POST("/environments/:id/routes", r.handler.CreateRoute)
		api.GET("/routes", r.handler.ListAllRoutes)
		api.GET("/routes/:id", r.handler.GetRoute)
		api.PUT("/routes/:id", r.handler.UpdateRoute)
		api.DELETE("/routes/:id", r.handler.DeleteRoute)

		// Responses
		api.GET("/routes/:id/responses", r.handler.ListResponses)
		api.POST("/routes/:id/responses", r.handler.CreateResponse)
		api.GET("/responses/:id", r.handler.GetResponse)
		api.PUT("/responses/:id", r.handler.UpdateResponse)
		api.DELETE("/responses/:id", r.handler.DeleteResponse)

		// Rules
		api.GET("/responses/:id/rules", r.handler.ListRules)
		api.POST("/responses/:id/rules", r.handler.CreateRule)
		api.GET("/rules/:id", r.handler.GetRule)
		api.PUT("/rules/:id", r.handler.UpdateRule)
		api.DELETE("/rules/:id", r.handler.DeleteRule)

		// Import, export and dry-run resolution
		api.GET("/export", r.handler.Export)
		api.POST("/import", r.handler.Import)
		api.POST("/resolve", r.handler.Resolve)

		// Statistics
		api.GET("/stats", r.handler.GetGlobalStats)
		api.GET("/stats/environments/:id", r.handler.GetEnvironmentStats)
		api.GET("/stats/routes/:id", r.handler.GetRouteStats)
		api.POST("/stats/reset", r.handler.ResetStats)

		// Tracing
		api.GET("/traces", r.handler.ListTraces)
		api.GET("/traces/stats", r.handler.GetTracingStats)
		api.GET("/traces/:id", r.handler.GetTrace)
		api.DELETE("/traces", r.handler.ClearTraces)

		// Health
		api.GET("/health", r.handler.HealthCheck)
	}

	// WebSocket for live tracing
	wsHandler := tracing.NewWebSocketHandler(r.tracingService, r.opts.Logger)
	r.engine.GET("/_api/traces/stream", gin.WrapH(wsHandler))

	if r.opts.MetricsPath != "" {
		r.engine.GET(r.opts.MetricsPath, gin.WrapH(metrics.Handler()))
	}

	// Everything else is mock traffic
	r.engine.NoRoute(ratelimit.Middleware(r.opts.RateLimiter), gin.WrapH(r.mock))
}

// Handler returns the http.Handler
func (r *Router) Handler() http.Handler {
	return r.engine
}

func corsConfig() cors.Config {
	return cors.Config{
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}
