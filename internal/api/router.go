package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amacivic/engagement/internal/engagement"
	"github.com/amacivic/engagement/internal/feed"
	"github.com/amacivic/engagement/pkg/logging"
)

// HealthChecker is a dependency the health endpoint pings
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Dependencies are the services the router exposes
type Dependencies struct {
	Engagement  *engagement.Service
	Feed        *feed.Service
	Auth        *Authenticator
	Throttle    *VoteThrottle
	CORSOrigins []string // nil disables CORS; "*" allows any origin
	// Checks are pinged by /health, keyed by name
	Checks      map[string]HealthChecker
}

// Router sets up API routes
type Router struct {
	handler *JSONRPCHandler
	deps    Dependencies
	logger  *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(deps Dependencies) *Router {
	router := &Router{
		handler: NewJSONRPCHandler(),
		deps:    deps,
		logger:  logging.WithComponent("api-router"),
	}

	router.registerMethods()

	return router
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	if r.deps.CORSOrigins != nil {
		engine.Use(CORS(r.deps.CORSOrigins))
	}

	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	rpc := engine.Group("/")
	if r.deps.Auth != nil {
		rpc.Use(r.deps.Auth.Middleware())
	}
	rpc.POST("/", r.handler.Handle)
}

// registerMethods registers all API methods
func (r *Router) registerMethods() {
	if r.deps.Engagement != nil {
		engagementAPI := NewEngagementAPI(r.deps.Engagement, r.deps.Throttle)
		r.handler.RegisterMethod("engagement.vote", engagementAPI.Vote)
		r.handler.RegisterMethod("engagement.get_counts", engagementAPI.GetCounts)
		r.handler.RegisterMethod("engagement.get_karma", engagementAPI.GetKarma)
	}

	if r.deps.Feed != nil {
		feedAPI := NewFeedAPI(r.deps.Feed)
		r.handler.RegisterMethod("feed.get_ranked_posts", feedAPI.GetRankedPosts)
		r.handler.RegisterMethod("feed.get_home_feed", feedAPI.GetHomeFeed)
	}

	methods := r.handler.Methods()
	sort.Strings(methods)
	r.logger.Info("Registered JSON-RPC methods", zap.Strings("methods", methods))
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{}
	for name, checker := range r.deps.Checks {
		if err := checker.Health(ctx); err != nil {
			r.logger.Warn("Health check failed", zap.String("check", name), zap.Error(err))
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "OK"
	}

	state := "OK"
	if status != http.StatusOK {
		state = "DEGRADED"
	}
	c.JSON(status, gin.H{
		"status":  state,
		"service": "ama-engagement",
		"checks":  checks,
	})
}
