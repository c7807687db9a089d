package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/serviapp/marketplace/internal/adapters/asynqnotify"
	"github.com/serviapp/marketplace/internal/adapters/httpapi"
	"github.com/serviapp/marketplace/internal/adapters/memlocation"
	"github.com/serviapp/marketplace/internal/adapters/memorybus"
	"github.com/serviapp/marketplace/internal/adapters/sqlite"
	"github.com/serviapp/marketplace/internal/app"
	"github.com/serviapp/marketplace/internal/buildinfo"
	"github.com/serviapp/marketplace/internal/config"
	"github.com/serviapp/marketplace/internal/ports"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	addr := flag.String("addr", cfg.Server.Addr, "listen address (e.g. 127.0.0.1:8080)")
	dbPath := flag.String("db", cfg.DB.Path, "sqlite path (e.g. marketplace.db)")
	flag.Parse()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("app", "marketplace-server").Logger()
	log.Logger = logger

	logger.Info().Interface("build", buildinfo.Current()).Str("db", *dbPath).Msg("starting")

	ctx := context.Background()
	db, err := sqlite.Open(ctx, *dbPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open db")
	}
	defer func() { _ = db.Close() }()

	var repoOpts []sqlite.Option
	if !cfg.Claim.AtomicAccept {
		repoOpts = append(repoOpts, sqlite.WithoutAtomicAccept())
	}
	store := sqlite.NewJobsRepository(db.SQL, repoOpts...)

	bus := memorybus.New()
	locations := memlocation.New()

	// Notifications are best-effort: without Redis there is simply no
	// dispatcher and claims proceed without notifying.
	var notifier ports.Notifier
	if cfg.Redis.Addr != "" {
		redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
		asynqNotifier := asynqnotify.New(redisOpt, logger.With().Str("component", "notifier").Logger())
		defer func() { _ = asynqNotifier.Close() }()
		notifier = asynqNotifier

		if cfg.Notifier.RunWorker {
			worker := asynqnotify.NewWorker(redisOpt, logger.With().Str("component", "notification-worker").Logger())
			go func() {
				if err := worker.Run(); err != nil {
					logger.Error().Err(err).Msg("notification worker stopped")
				}
			}()
			defer worker.Shutdown()
		}
	}

	jobsSvc := app.NewJobService(store, bus)
	claimSvc := app.NewClaimService(logger.With().Str("component", "claims").Logger(), store, locations, notifier, bus, app.ClaimConfig{
		MaxActiveJobs: cfg.Claim.MaxActiveJobs,
		MaxDistanceKm: cfg.Claim.MaxDistanceKm,
	})
	lifecycleSvc := app.NewLifecycleService(logger.With().Str("component", "lifecycle").Logger(), store, bus)
	earningsSvc := app.NewEarningsService(logger.With().Str("component", "earnings").Logger(), store)

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := httpapi.NewServer(logger, jobsSvc, claimSvc, lifecycleSvc, earningsSvc, locations, bus)
	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", *addr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server crashed")
			stop()
		}
	}()

	<-shutdownCtx.Done()
	logger.Info().Msg("shutting down")
	bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
	logger.Info().Msg("bye")
}
