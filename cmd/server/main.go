package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/amacivic/engagement/internal/api"
	"github.com/amacivic/engagement/internal/cache"
	"github.com/amacivic/engagement/internal/db"
	"github.com/amacivic/engagement/internal/engagement"
	"github.com/amacivic/engagement/internal/events"
	"github.com/amacivic/engagement/internal/feed"
	"github.com/amacivic/engagement/pkg/config"
	"github.com/amacivic/engagement/pkg/logging"
	"github.com/amacivic/engagement/pkg/telemetry"
)

// storage is the set of backends the engines run on
type storage struct {
	votes      engagement.VoteStore
	voteReader engagement.VoteReader
	karma      engagement.KarmaReader
	sink       engagement.CounterSink
	feed       feed.Source
	health     api.HealthChecker
	close      func() error
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting engagement API server", zap.String("storage_driver", cfg.Database.Driver))

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	store, err := openStorage(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer store.close()

	checks := map[string]api.HealthChecker{}
	if store.health != nil {
		checks["database"] = store.health
	}

	var pageCache feed.PageCache
	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, serving feeds uncached", zap.Error(err))
	} else if redisCache != nil {
		defer redisCache.Close()
		pageCache = redisCache
		checks["redis"] = redisCache
	}

	var publisher engagement.EventPublisher
	natsConn, err := events.Connect(&cfg.Events)
	if err != nil {
		logger.Warn("NATS unavailable, vote events disabled", zap.Error(err))
	} else if natsConn != nil {
		defer natsConn.Drain()
		publisher = events.NewNatsPublisher(natsConn, cfg.Events.Subject)
		checks["nats"] = natsHealth{natsConn}
	}

	engagementService := engagement.NewService(
		engagement.NewLedger(store.votes),
		engagement.NewProjector(store.voteReader, store.karma),
		store.sink,
		publisher,
	)
	feedService := feed.NewService(store.feed, pageCache, cfg.Feed.PageSize, cfg.Feed.MaxPageSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	throttle := api.NewVoteThrottle(cfg.Engagement.APIVoteRate, cfg.Engagement.APIVoteBurst)
	go throttle.Run(ctx, time.Minute)

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("jwt_secret is not set, all requests are anonymous and votes will be rejected")
	}

	// Create Gin router
	if cfg.Logging.Level == "DEBUG" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	api.NewRouter(api.Dependencies{
		Engagement: engagementService,
		Feed:       feedService,
		Auth:       api.NewAuthenticator(&cfg.Auth),
		Throttle:   throttle,
		Checks:     checks,

		CORSOrigins: cfg.Server.CORSOrigins,
	}).SetupRoutes(engine)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: engine,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func openStorage(cfg *config.Config) (*storage, error) {
	if cfg.Database.Driver == "memory" {
		votes := engagement.NewMemoryStore()
		source := feed.NewMemorySource()
		logging.GetLogger().Warn("Using in-memory storage, data is lost on restart")
		return &storage{
			votes:      votes,
			voteReader: votes,
			karma:      source,
			sink:       source,
			feed:       source,
			close:      func() error { return nil },
		}, nil
	}

	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, err
		}
	}

	repo := db.NewRepository(database.DB)
	votes := db.NewVoteRepository(repo)
	counters := db.NewCounterRepository(repo)
	return &storage{
		votes:      votes,
		voteReader: votes,
		karma:      counters,
		sink:       counters,
		feed:       db.NewFeedRepository(repo),
		health:     database,
		close:      database.Close,
	}, nil
}

type natsHealth struct {
	conn *nats.Conn
}

func (n natsHealth) Health(ctx context.Context) error {
	if !n.conn.IsConnected() {
		return fmt.Errorf("nats connection is %s", n.conn.Status())
	}
	return nil
}
