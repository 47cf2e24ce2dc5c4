package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/centrifugal/centrifuge"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/crowdroom/internal/adapter/httpserver"
	"github.com/pscheid92/crowdroom/internal/adapter/memory"
	"github.com/pscheid92/crowdroom/internal/adapter/metrics"
	"github.com/pscheid92/crowdroom/internal/adapter/postgres"
	"github.com/pscheid92/crowdroom/internal/adapter/redis"
	"github.com/pscheid92/crowdroom/internal/adapter/websocket"
	"github.com/pscheid92/crowdroom/internal/app"
	"github.com/pscheid92/crowdroom/internal/domain"
	"github.com/pscheid92/crowdroom/internal/platform/config"
	"github.com/pscheid92/crowdroom/internal/platform/logging"
)

const (
	startupTimeout       = 30 * time.Second
	shutdownTimeout      = 10 * time.Second
	cacheEvictionPeriod  = time.Minute
	nodeShutdownDeadline = 5 * time.Second
)

// repositories is the durable store selected by STORE_BACKEND.
type repositories struct {
	rooms     domain.RoomRepository
	polls     domain.PollRepository
	questions domain.QuestionRepository
	checks    []httpserver.HealthCheck
	close     func()
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupStore(ctx context.Context, cfg *config.Config, dbMetrics *metrics.DatabaseMetrics) repositories {
	if cfg.StoreBackend == config.StoreBackendMemory {
		slog.Warn("Using in-memory store; room state is lost on restart")
		store := memory.NewStore()
		return repositories{
			rooms:     store.Rooms(),
			polls:     store.Polls(),
			questions: store.Questions(),
			close:     func() {},
		}
	}

	pool := setupDB(ctx, cfg, dbMetrics)
	return repositories{
		rooms:     postgres.NewRoomRepo(pool),
		polls:     postgres.NewPollRepo(pool),
		questions: postgres.NewQuestionRepo(pool),
		checks:    []httpserver.HealthCheck{{Name: "postgres", Check: pool.Ping}},
		close:     pool.Close,
	}
}

func setupDB(ctx context.Context, cfg *config.Config, dbMetrics *metrics.DatabaseMetrics) *pgxpool.Pool {
	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, postgres.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		Metrics:  dbMetrics,
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.Migrate(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

// setupRedis returns nil when no Redis is configured; the room cache then
// runs with its in-memory layer only.
func setupRedis(ctx context.Context, cfg *config.Config, breakerMetrics *metrics.BreakerMetrics) *goredis.Client {
	if cfg.RedisURL == "" {
		return nil
	}

	client, err := redis.NewClient(ctx, cfg.RedisURL, redis.NewCircuitBreakerHook(breakerMetrics))
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupNode(cfg *config.Config, node *centrifuge.Node, h websocket.Handlers) http.Handler {
	websocket.Attach(node, h)
	if err := node.Run(); err != nil {
		slog.Error("Failed to run centrifuge node", "error", err)
		os.Exit(1)
	}

	return centrifuge.NewWebsocketHandler(node, centrifuge.WebsocketConfig{
		CheckOrigin: websocket.NewCheckOrigin(cfg.AppURL, cfg.Origins(), !cfg.IsProduction()),
	})
}

func runGracefulShutdown(srv *httpserver.Server, node *centrifuge.Node) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		nodeCtx, cancelNode := context.WithTimeout(context.Background(), nodeShutdownDeadline)
		defer cancelNode()
		if err := node.Shutdown(nodeCtx); err != nil {
			slog.Error("Centrifuge node shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "store", cfg.StoreBackend)

	m := metrics.NewSet()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), startupTimeout)
	defer cancelStartup()

	repos := setupStore(startupCtx, cfg, m.Database)
	defer repos.close()
	healthChecks := repos.checks

	// A nil *goredis.Client must not reach the cache as a non-nil Cmdable.
	var roomCacheL2 goredis.Cmdable
	if redisClient := setupRedis(startupCtx, cfg, m.Breaker); redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		roomCacheL2 = redisClient
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	roomCache := redis.NewRoomCache(repos.rooms, roomCacheL2, clock, cfg.RoomCacheTTL, m.Cache)
	stopEviction := roomCache.StartEvictionTimer(cacheEvictionPeriod)
	defer stopEviction()

	node, err := websocket.NewNode(cfg.LogLevel)
	if err != nil {
		slog.Error("Failed to create centrifuge node", "error", err)
		os.Exit(1)
	}
	broker := websocket.NewPublisher(node, m.WebSocket)

	polls := app.NewPollEngine(repos.polls, broker, clock, cfg.PollChoices())
	questions := app.NewQuestionBoard(repos.questions, broker, clock)
	reactions := app.NewReactionBroadcaster(broker)
	replay := app.NewStateReplay(repos.polls, repos.questions)
	sessions := app.NewSessions(roomCache, polls, questions, reactions, replay)
	authorizer := app.NewConnectionAuthorizer(roomCache, app.SuffixPolicy{})

	limits := websocket.NewConnectionLimits(websocket.LimitsConfig{
		MaxConnections: int64(cfg.MaxWebSocketConnections),
		MaxPerIP:       cfg.MaxConnectionsPerIP,
		ConnectRate:    cfg.ConnectRate,
		ConnectBurst:   cfg.ConnectBurst,
	}, clock)

	wsHandler := setupNode(cfg, node, websocket.Handlers{
		Authorizer:   authorizer,
		Sessions:     sessions,
		Limits:       limits,
		WSMetrics:    m.WebSocket,
		EventMetrics: m.Events,
	})

	srv := httpserver.NewServer(cfg, httpserver.Deps{
		Rooms:            app.NewRoomService(repos.rooms, clock),
		WebsocketHandler: wsHandler,
		MetricsHandler:   m.Handler(),
		HTTPMetrics:      m.HTTP,
		HealthChecks:     healthChecks,
		Clock:            clock,
	})

	done := runGracefulShutdown(srv, node)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
