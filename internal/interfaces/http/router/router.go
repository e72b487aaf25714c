// Package router assembles the gin engine: the global middleware chain, the
// unauthenticated webhook and cron entry points, and the tenant-scoped query
// API under /api/<version>.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/infrastructure/logger"
	"github.com/storesync/backend/internal/interfaces/http/handler"
	"github.com/storesync/backend/internal/interfaces/http/middleware"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages versioned API route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	middleware []gin.HandlerFunc
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithGroupMiddleware adds middleware to the versioned API group
func WithGroupMiddleware(mw ...gin.HandlerFunc) RouterOption {
	return func(r *Router) {
		r.middleware = append(r.middleware, mw...)
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a RouteRegistrar to be registered by Setup
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	api := r.engine.Group("/api/"+r.apiVersion, r.middleware...)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// RouteGroup collects routes sharing a prefix and middleware
type RouteGroup struct {
	prefix     string
	middleware []gin.HandlerFunc
	routes     []routeDefinition
}

type routeDefinition struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewRouteGroup creates a group; an empty prefix mounts on the parent
func NewRouteGroup(prefix string) *RouteGroup {
	return &RouteGroup{prefix: prefix}
}

// Use adds middleware to this group
func (g *RouteGroup) Use(mw ...gin.HandlerFunc) *RouteGroup {
	g.middleware = append(g.middleware, mw...)
	return g
}

// GET registers a GET route
func (g *RouteGroup) GET(path string, handlers ...gin.HandlerFunc) *RouteGroup {
	g.routes = append(g.routes, routeDefinition{method: "GET", path: path, handlers: handlers})
	return g
}

// POST registers a POST route
func (g *RouteGroup) POST(path string, handlers ...gin.HandlerFunc) *RouteGroup {
	g.routes = append(g.routes, routeDefinition{method: "POST", path: path, handlers: handlers})
	return g
}

// RegisterRoutes implements RouteRegistrar
func (g *RouteGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(g.prefix, g.middleware...)
	for _, route := range g.routes {
		group.Handle(route.method, route.path, route.handlers...)
	}
}

// Handlers are the endpoint handlers mounted by New
type Handlers struct {
	Webhook *handler.WebhookHandler
	Sync    *handler.SyncHandler
	Query   *handler.QueryHandler
	Cron    *handler.CronHandler
	System  *handler.SystemHandler
}

// Config holds the HTTP surface settings
type Config struct {
	ServiceName    string
	TracingEnabled bool
	MaxBodySize    int64
	CronSecret     string
	// MetricsPath is where the Prometheus endpoint is mounted; empty disables it
	MetricsPath    string
	TrustedProxies []string
	CORS           middleware.CORSConfig
	Security       middleware.SecurityConfig
	Swagger        middleware.SwaggerConfig
}

// Dependencies are the collaborators of the middleware chain
type Dependencies struct {
	Logger   *zap.Logger
	Tokens   middleware.TokenVerifier
	Tenants  middleware.TenantResolver
	Gatherer prometheus.Gatherer
	// RateLimiter is optional; nil disables rate limiting
	RateLimiter *middleware.RateLimiter
	// ClientRateLimiter limits each client IP ahead of authentication; nil disables it
	ClientRateLimiter *middleware.RateLimiter
	// HTTPMetrics is optional; nil disables request metrics
	HTTPMetrics *middleware.HTTPMetrics
}

// New builds the engine with every route of the service
func New(cfg Config, deps Dependencies, h Handlers) (*gin.Engine, error) {
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	tracing := middleware.DefaultTracingConfig()
	if cfg.ServiceName != "" {
		tracing.ServiceName = cfg.ServiceName
	}
	tracing.Enabled = cfg.TracingEnabled

	engine.Use(
		logger.Recovery(deps.Logger),
		middleware.RequestID(),
		middleware.Tracing(tracing),
		middleware.SpanAttributes(),
		logger.GinMiddleware(deps.Logger),
		middleware.SecureWithConfig(cfg.Security),
		middleware.CORSWithConfig(cfg.CORS),
	)
	if deps.HTTPMetrics != nil {
		engine.Use(deps.HTTPMetrics.Middleware())
	}

	engine.GET("/health", h.System.Health)
	if cfg.MetricsPath != "" && deps.Gatherer != nil {
		engine.GET(cfg.MetricsPath, h.System.Metrics(deps.Gatherer))
	}

	webhooks := []gin.HandlerFunc{middleware.BodyLimit(cfg.MaxBodySize)}
	if deps.RateLimiter != nil {
		webhooks = append(webhooks, deps.RateLimiter.Middleware())
	}
	webhooks = append(webhooks, h.Webhook.Receive)
	engine.POST("/webhooks/:resource/:action", webhooks...)

	engine.POST("/internal/cron/sync", middleware.CronAuth(cfg.CronSecret), h.Cron.RunDue)

	engine.GET("/swagger/*any", middleware.SwaggerProtection(cfg.Swagger), ginSwagger.WrapHandler(swaggerFiles.Handler))

	// the tenant key is only known after BearerAuth, so token guessing is
	// bounded by the per-IP limiter in front of it
	var apiMiddleware []gin.HandlerFunc
	if deps.ClientRateLimiter != nil {
		apiMiddleware = append(apiMiddleware, deps.ClientRateLimiter.ClientMiddleware())
	}
	apiMiddleware = append(apiMiddleware, middleware.BearerAuth(deps.Tokens, deps.Tenants, deps.Logger))
	if deps.RateLimiter != nil {
		apiMiddleware = append(apiMiddleware, deps.RateLimiter.Middleware())
	}

	api := NewRouter(engine, WithAPIVersion("v1"), WithGroupMiddleware(apiMiddleware...))
	api.Register(NewRouteGroup("/sync").
		GET("/status", h.Sync.Status).
		GET("/errors", h.Sync.Errors).
		POST("/run", h.Sync.Run))
	api.Register(NewRouteGroup("").
		POST("/disconnect", h.Sync.Disconnect).
		GET("/webhook-events", h.Query.WebhookEvents))
	api.Register(NewRouteGroup("/products").
		GET("", h.Query.ListProducts).
		GET("/:id", h.Query.GetProduct))
	api.Register(NewRouteGroup("/orders").
		GET("", h.Query.ListOrders).
		GET("/:id", h.Query.GetOrder))
	api.Register(NewRouteGroup("/customers").
		GET("", h.Query.ListCustomers))
	api.Setup()

	engine.NoRoute(h.System.NoRoute)
	return engine, nil
}
