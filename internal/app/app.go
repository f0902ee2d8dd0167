package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/qms-backend/internal/adapter/postgres"
	auditrepo "github.com/heartmarshall/qms-backend/internal/adapter/postgres/audit"
	processrepo "github.com/heartmarshall/qms-backend/internal/adapter/postgres/process"
	recordrepo "github.com/heartmarshall/qms-backend/internal/adapter/postgres/record"
	"github.com/heartmarshall/qms-backend/internal/auth"
	"github.com/heartmarshall/qms-backend/internal/config"
	"github.com/heartmarshall/qms-backend/internal/metrics"
	"github.com/heartmarshall/qms-backend/internal/notify"
	"github.com/heartmarshall/qms-backend/internal/service/process"
	"github.com/heartmarshall/qms-backend/internal/service/record"
	"github.com/heartmarshall/qms-backend/internal/service/workflow"
	"github.com/heartmarshall/qms-backend/internal/transport/dataloader"
	"github.com/heartmarshall/qms-backend/internal/transport/middleware"
	"github.com/heartmarshall/qms-backend/internal/transport/rest"
)

const (
	eventBuffer         = 64
	rateLimiterCleanup  = 5 * time.Minute
	startupPingDeadline = 10 * time.Second
)

// Run is the application entry point. It loads configuration, connects to
// the database, wires services and serves HTTP until ctx is cancelled.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Log)

	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
	)

	connectCtx, cancel := context.WithTimeout(ctx, startupPingDeadline)
	pool, err := postgres.NewPool(connectCtx, cfg.Database)
	cancel()
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, cfg.Database.DSN, logger); err != nil {
			return err
		}
	}

	srv, cleanup := newServer(cfg, logger, pool)
	defer cleanup()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}

// newServer wires repositories, services and transport into an http.Server.
// The returned cleanup stops background workers.
func newServer(cfg *config.Config, logger *slog.Logger, pool *pgxpool.Pool) (*http.Server, func()) {
	txm := postgres.NewTxManager(pool)
	processes := processrepo.New(pool)
	records := recordrepo.New(pool)
	audit := auditrepo.New(pool)

	m := metrics.New()
	hub := notify.NewHub(logger, m, eventBuffer)

	processSvc := process.NewService(logger, processes, records, audit, txm)
	recordSvc := record.NewService(logger, records, processSvc, audit, txm, cfg.Workflow)
	executor := workflow.NewExecutor(logger, records, processSvc, txm, m, hub, cfg.Workflow)

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTL)
	limiter := middleware.NewRateLimiter(rateLimiterCleanup)

	routes := rest.Routes{
		Health: rest.NewHealthHandler(BuildVersion(), map[string]rest.Check{
			"database": pool.Ping,
			"schema":   postgres.SchemaCheck(pool),
		}),
		Processes: rest.NewProcessHandler(processSvc, logger),
		Records:   rest.NewRecordHandler(recordSvc, executor, logger),
		Board:     rest.NewBoardHandler(processSvc, hub, logger),
		API: middleware.Chain(
			middleware.Tenant(cfg.Auth.TenantHeader),
			limiter.LimitMutations(cfg.RateLimit.MutationsPerMinute),
			dataloader.Middleware(&dataloader.Repos{Record: records, Process: processes}),
		),
	}
	if cfg.Metrics.Enabled {
		routes.Metrics = m.Handler()
		routes.MetricsPath = cfg.Metrics.Path
	}

	probes := middleware.PathIn("/live", "/ready")
	handler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.CORS(cfg.CORS),
		middleware.Auth(jwtManager),
		middleware.Unless(probes, middleware.Logger(logger)),
		middleware.Unless(probes, middleware.Metrics(m)),
	)(rest.NewRouter(routes))

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return srv, limiter.Stop
}
