package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/tripunite/gateway/internal/api"
	"github.com/tripunite/gateway/internal/auth"
	"github.com/tripunite/gateway/internal/config"
	"github.com/tripunite/gateway/internal/database"
	"github.com/tripunite/gateway/internal/messaging"
	"github.com/tripunite/gateway/internal/middleware"
	"github.com/tripunite/gateway/internal/mongodb"
	"github.com/tripunite/gateway/internal/pubsub"
	"github.com/tripunite/gateway/internal/realtime"
	"github.com/tripunite/gateway/internal/server"
	"github.com/tripunite/gateway/internal/webrtc"
	"github.com/tripunite/gateway/internal/websocket"
)

const rateLimitCleanupInterval = 10 * time.Minute

func main() {
	fs := pflag.NewFlagSet("tripunite-gateway", pflag.ContinueOnError)
	var (
		configPath = fs.StringP("config", "c", os.Getenv("CONFIG_FILE"), "path to YAML config file")
		addr       = fs.StringP("addr", "a", "", "listen address (overrides SERVER_ADDR)")
		logLevel   = fs.StringP("log-level", "l", "", "log level: debug, info, warn, error")
	)
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.ServerAddr = *addr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	// Structured logging from the start
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		slog.Error("invalid log level", "level", cfg.LogLevel, "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("gateway stopped with error", "error", err)
		os.Exit(1)
	}
}

// stores is the selected user directory and message store backend.
type stores struct {
	users    auth.UserDirectory
	messages messaging.MessageStore
	ping     server.Pinger
	close    func()
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		db, err := database.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		if err := database.EnsureSchema(ctx, db, database.Migrations()); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure database schema: %w", err)
		}
		logger.Info("connected to database", "backend", cfg.StoreBackend)
		return &stores{
			users:    database.NewUserRepository(db),
			messages: database.NewMessageRepository(db),
			ping:     db,
			close:    db.Close,
		}, nil

	case config.StoreMongo:
		client, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.MongoURI, Database: cfg.MongoDB})
		if err != nil {
			return nil, err
		}
		logger.Info("connected to database", "backend", cfg.StoreBackend, "database", cfg.MongoDB)
		return &stores{
			users:    mongodb.NewUserStore(client),
			messages: mongodb.NewMessageStore(client),
			ping:     client,
			close: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := client.Close(ctx); err != nil {
					logger.Warn("failed to disconnect mongo", "error", err)
				}
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// pubsubBackend is a PubSub that can also report its health.
type pubsubBackend interface {
	pubsub.PubSub
	pubsub.Pinger
}

func openPubSub(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pubsubBackend, error) {
	switch cfg.PubSubType {
	case config.PubSubRedis:
		return pubsub.NewRedisPubSub(ctx, cfg.RedisURL, logger)
	case config.PubSubNATS:
		return pubsub.NewNATSPubSub(cfg.NATSURL, "tripunite-gateway", logger)
	default:
		return pubsub.NewMemoryPubSub(logger), nil
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Create context for initialization
	initCtx, cancelInit := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInit()

	st, err := openStores(initCtx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer st.close()

	ps, err := openPubSub(initCtx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open pubsub: %w", err)
	}
	defer ps.Close()

	tokenService, err := auth.NewTokenService(cfg.JWTSigningKey)
	if err != nil {
		return fmt.Errorf("create token service: %w", err)
	}
	authService := auth.NewService(st.users, tokenService, cfg.CookieName)

	// Realtime core
	router := realtime.NewRouter(realtime.NewRegistry(), logger)
	presence := realtime.NewPresence(router, logger)

	persister := messaging.NewPersister(st.messages, logger,
		messaging.WithPersistTimeout(cfg.PersistTimeout),
		messaging.WithMaxInFlight(cfg.PersistMaxInFlight),
	)
	relay := messaging.NewRelay(router, persister, logger)

	iceConfig := cfg.WebRTC()
	calls := webrtc.NewCallHandler(router, iceConfig, logger, webrtc.WithSDPValidation(cfg.SDPValidation))

	eventLimiter := middleware.NewRateLimiter(cfg.EventRateRequests, cfg.EventRateWindow)
	hub := websocket.NewHub(router, presence, relay, calls, logger, websocket.WithEventRateLimit(eventLimiter))
	wsHandler := websocket.NewHandler(hub, authService, cfg.AllowedOrigins, logger)

	// Cross-process emits from the REST service
	emitter := websocket.NewEmitter(ps, router, logger)

	httpLimiter := middleware.NewRateLimiter(cfg.HTTPRateRequests, cfg.HTTPRateWindow)

	srv := server.New(cfg, &server.Dependencies{
		AuthService: authService,
		Realtime:    api.NewRealtimeHandler(presence, iceConfig, emitter, cfg.InternalAPIKey, logger),
		WSHandler:   wsHandler,
		RateLimiter: httpLimiter,
		Ready:       map[string]server.Pinger{"store": st.ping, "pubsub": ps},
		Logger:      logger,
	})

	// Graceful shutdown setup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	if err := emitter.Start(ctx); err != nil {
		return fmt.Errorf("start emitter: %w", err)
	}

	go httpLimiter.RunCleanup(ctx, rateLimitCleanupInterval)
	go eventLimiter.RunCleanup(ctx, rateLimitCleanupInterval)

	errc := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.ServerAddr, "store", cfg.StoreBackend, "pubsub", cfg.PubSubType)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// Wait for interrupt
	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down gracefully...")
	case serveErr = <-errc:
		logger.Error("server error, shutting down", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}

	// Websocket connections are hijacked, so the hub closes them itself.
	stopHub()
	<-hub.Done()

	if err := emitter.Stop(); err != nil {
		logger.Warn("failed to stop emitter", "error", err)
	}

	if err := persister.Close(shutdownCtx); err != nil {
		logger.Warn("pending message writes abandoned", "error", err)
	}

	logger.Info("server stopped", "persist_failures", persister.Failures())
	return serveErr
}
