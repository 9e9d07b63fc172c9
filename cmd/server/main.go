// main wires process-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal slice packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	"patrol/internal/jwttoken"
	"patrol/internal/platform/config"
	"patrol/internal/platform/httpserver"
	"patrol/internal/platform/logger"
	platformmetrics "patrol/internal/platform/metrics"
	"patrol/internal/platform/middleware"
	platformredis "patrol/internal/platform/redis"
	"patrol/internal/template/cache"
	templatehandler "patrol/internal/template/handler"
	templatemetrics "patrol/internal/template/metrics"
	templateservice "patrol/internal/template/service"
	templatestore "patrol/internal/template/store"
	visithandler "patrol/internal/visit/handler"
	visitmetrics "patrol/internal/visit/metrics"
	visitservice "patrol/internal/visit/service"
	visitstore "patrol/internal/visit/store"
	audit "patrol/pkg/platform/audit"
	auditpublisher "patrol/pkg/platform/audit/publisher"
	kafkasink "patrol/pkg/platform/audit/sink/kafka"
	memorysink "patrol/pkg/platform/audit/sink/memory"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tmplStore, visStore, closeStores, err := buildStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	sink, err := buildAuditSink(cfg)
	if err != nil {
		return err
	}
	publisher := auditpublisher.New(sink,
		auditpublisher.WithAsyncBuffer(256),
		auditpublisher.WithLogger(log),
	)
	defer func() { _ = publisher.Close() }()

	templateOpts := []templateservice.Option{
		templateservice.WithLogger(log),
		templateservice.WithMetrics(templatemetrics.New()),
		templateservice.WithAuditPublisher(publisher),
	}
	if redisClient != nil {
		templateOpts = append(templateOpts,
			templateservice.WithResolverCache(cache.NewResolver(redisClient, cfg.ResolverCacheTTL, log)))
	}
	templateSvc, err := templateservice.New(tmplStore, templateOpts...)
	if err != nil {
		return fmt.Errorf("template service: %w", err)
	}

	visitSvc, err := visitservice.New(visStore, templateSvc,
		visitservice.WithLogger(log),
		visitservice.WithMetrics(visitmetrics.New()),
		visitservice.WithAuditPublisher(publisher),
	)
	if err != nil {
		return fmt.Errorf("visit service: %w", err)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))
	router.Use(platformmetrics.New().Middleware)
	router.Use(middleware.ContentTypeJSON)
	var tokenValidator middleware.TokenValidator
	if tokenSvc := jwttoken.New(cfg.JWTSigningKey, cfg.JWTIssuer); tokenSvc != nil {
		tokenValidator = tokenSvc
	}
	router.Use(middleware.Identity(tokenValidator, log))

	templatehandler.New(templateSvc, log).Register(router)
	visithandler.New(visitSvc, log).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting patrol server", "addr", cfg.Addr, "backend", string(cfg.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// buildStores selects the persistence backend for both slices.
func buildStores(ctx context.Context, cfg config.Config) (templateservice.Store, visitservice.Store, func(), error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return templatestore.NewMemory(), visitstore.NewMemory(), func() {}, nil

	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		tmpl := templatestore.NewPostgres(db)
		if err := tmpl.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		vis := visitstore.NewPostgres(db)
		if err := vis.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		return tmpl, vis, func() { _ = db.Close() }, nil

	case config.BackendMongo:
		client, err := mongo.Connect(ctx, mongooptions.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, nil, fmt.Errorf("ping mongo: %w", err)
		}
		tmpl := templatestore.NewMongo(client, cfg.MongoDatabase)
		if err := tmpl.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, nil, err
		}
		vis := visitstore.NewMongo(client, cfg.MongoDatabase)
		if err := vis.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, nil, err
		}
		return tmpl, vis, func() { _ = client.Disconnect(context.Background()) }, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// buildAuditSink uses Kafka when brokers are configured and an in-process
// sink otherwise.
func buildAuditSink(cfg config.Config) (audit.Sink, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return memorysink.New(), nil
	}
	sink, err := kafkasink.New(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		return nil, fmt.Errorf("kafka sink: %w", err)
	}
	return sink, nil
}
