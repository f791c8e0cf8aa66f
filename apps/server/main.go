package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	gogithub "github.com/google/go-github/v75/github"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tilsley/repolens/apps/server/internal/config"
	platformgithub "github.com/tilsley/repolens/apps/server/internal/platform/github"
	pgplatform "github.com/tilsley/repolens/apps/server/internal/platform/postgres"
	"github.com/tilsley/repolens/apps/server/internal/platform/telemetry"
	"github.com/tilsley/repolens/apps/server/internal/platform/validation"
	"github.com/tilsley/repolens/apps/server/internal/repos"
	githubadapter "github.com/tilsley/repolens/apps/server/internal/repos/adapters/github"
	"github.com/tilsley/repolens/apps/server/internal/repos/assembler"
	"github.com/tilsley/repolens/apps/server/internal/repos/handler"
	"github.com/tilsley/repolens/apps/server/internal/repos/scanner"
	"github.com/tilsley/repolens/apps/server/internal/repos/store"
	"github.com/tilsley/repolens/apps/server/internal/repos/store/pgmigrations"
	"github.com/tilsley/repolens/apps/server/internal/workerpool"
	"github.com/tilsley/repolens/pkg/logging"
	"github.com/tilsley/repolens/schemas"
)

const serviceName = "repolens-server"

func main() {
	log := logging.New(serviceName)
	if err := run(log); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		return err
	}
	ctx := context.Background()

	// --- Observability ---

	tel, err := telemetry.New(ctx, telemetry.Config{Enabled: cfg.OTelEnabled, ServiceName: serviceName})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "error", err)
		}
	}()

	// --- Platform: GitHub ---

	var gh *gogithub.Client
	if cfg.GitHub.UsesApp() {
		gh, err = platformgithub.NewAppClient(cfg.GitHub.AppID, cfg.GitHub.InstallationID, cfg.GitHub.PrivateKeyPath, cfg.GitHub.APIURL)
		if err != nil {
			return err
		}
		log.Info("github app credentials loaded", "appID", cfg.GitHub.AppID)
	} else {
		gh = platformgithub.NewTokenClient(cfg.GitHub.Token, cfg.GitHub.APIURL)
	}
	clients := githubadapter.NewFactory(gh, cfg.GitHub.APIURL)

	// --- Platform: build storage ---

	var builds repos.BuildStore = store.NewMemoryBuildStore()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close() //nolint:errcheck
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		builds = store.NewRedisBuildStore(rdb, cfg.BuildTTL)
		log.Info("build records stored in redis", "addr", cfg.RedisAddr, "ttl", cfg.BuildTTL)
	}

	var events repos.EventStore
	if cfg.PostgresURL != "" {
		pool, err := pgplatform.Open(ctx, pgplatform.Config{URL: cfg.PostgresURL, Migrations: pgmigrations.FS})
		if err != nil {
			return err
		}
		defer pool.Close()
		events = store.NewPGEventStore(pool)
		log.Info("build events recorded in postgres")
	}

	// --- Assembly pipeline ---

	scan := scanner.New(
		scanner.WithStrategy(cfg.Scan.Strategy),
		scanner.WithBatchSize(cfg.Scan.BatchSize),
		scanner.WithConfigSuffixes(cfg.Scan.ConfigSuffixes...),
	)
	asm := assembler.New(scan, assembler.WithPageSize(cfg.WebhookPageSize))

	pool := workerpool.New[*repos.FullRepository](cfg.Pool, log)
	pool.Start(ctx)
	defer pool.Stop()
	log.Info("content scanner configured", "strategy", cfg.Scan.Strategy, "batchSize", cfg.Scan.BatchSize)

	svc := repos.NewService(clients, asm, pool, builds, events, log)

	// --- HTTP ---

	router := gin.New()
	validator, err := validation.New(schemas.OpenAPISpec)
	if err != nil {
		return err
	}
	router.Use(gin.Recovery(), otelgin.Middleware(serviceName), validator)
	if err := handler.RegisterRoutes(router, svc, log); err != nil {
		return err
	}

	log.Info("starting repolens", "port", cfg.Port)
	return router.Run(":" + cfg.Port)
}
