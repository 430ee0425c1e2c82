package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	adminhandler "twinsale/internal/admin"
	"twinsale/internal/blob"
	listinghandler "twinsale/internal/listing/handler"
	listingmetrics "twinsale/internal/listing/metrics"
	listingservice "twinsale/internal/listing/service"
	listingstore "twinsale/internal/listing/store"
	"twinsale/internal/platform/config"
	"twinsale/internal/platform/httpserver"
	"twinsale/internal/platform/logger"
	"twinsale/internal/platform/metrics"
	"twinsale/internal/platform/middleware"
	"twinsale/internal/platform/postgres"
	"twinsale/internal/platform/redis"
	"twinsale/internal/retention"
	verificationhandler "twinsale/internal/verification/handler"
	verificationmetrics "twinsale/internal/verification/metrics"
	verificationservice "twinsale/internal/verification/service"
	verificationstore "twinsale/internal/verification/store"
)

// main wires dependencies and owns the process lifecycle: HTTP server plus
// the retention sweeper, shut down together. Business logic lives in the
// internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: Postgres when DATABASE_URL is set, in-memory for dev mode.
	var (
		listings listingservice.ListingStore
		sessions verificationservice.SessionStore
		sweepSrc retention.SessionStore
		storeTx  interface {
			RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
		}
		listingCounts adminhandler.ListingCounter
		sessionCounts adminhandler.SessionCounter
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
		lst := listingstore.NewPostgres(db)
		vst := verificationstore.NewPostgres(db)
		listings, sessions, sweepSrc = lst, vst, vst
		listingCounts, sessionCounts = lst, vst
		storeTx = postgres.NewStoreTx(db)
		log.Info("using postgres stores")
	} else {
		lst := listingstore.NewInMemory()
		vst := verificationstore.NewInMemory()
		listings, sessions, sweepSrc = lst, vst, vst
		listingCounts, sessionCounts = lst, vst
		storeTx = newMemoryTx()
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	// Blob store: Redis-backed when configured, always encrypted when a key
	// is present. The in-memory fallback is for dev mode only.
	var blobs blob.Store
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		blobs = blob.NewRedis(redisClient)
		log.Info("using redis blob store")
	} else {
		blobs = blob.NewMemory()
		log.Warn("REDIS_URL not set, using in-memory blob store")
	}
	if cfg.BlobKeyHex != "" {
		blobs, err = blob.NewCrypted(blobs, cfg.BlobKeyHex)
		if err != nil {
			log.Error("invalid blob encryption key", "error", err)
			os.Exit(1)
		}
	} else if redisClient != nil {
		log.Error("BLOB_ENCRYPTION_KEY is required with a persistent blob store")
		os.Exit(1)
	} else {
		log.Warn("BLOB_ENCRYPTION_KEY not set, selfies rest unencrypted in memory")
	}

	platformMetrics := metrics.New()
	listingSvc := listingservice.New(listings,
		listingservice.WithLogger(log),
		listingservice.WithMetrics(listingmetrics.New()),
		listingservice.WithTx(storeTx),
	)
	verificationSvc := verificationservice.New(sessions, listings, blobs,
		verificationservice.WithLogger(log),
		verificationservice.WithMetrics(verificationmetrics.New()),
		verificationservice.WithTx(storeTx),
		verificationservice.WithSessionTTL(cfg.SessionTTL),
	)
	sweeper := retention.NewSweeper(sweepSrc, blobs,
		retention.WithLogger(log),
		retention.WithMetrics(retention.NewMetrics()),
		retention.WithInterval(cfg.SweepInterval),
		retention.WithTx(storeTx),
	)

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())

	api := chi.NewRouter()
	api.Use(middleware.Recovery(log))
	api.Use(middleware.RequestID)
	api.Use(middleware.RequestTime)
	api.Use(middleware.Logger(log))
	api.Use(middleware.Timeout(30 * time.Second))
	api.Use(middleware.ContentTypeJSON)
	api.Use(middleware.Latency(platformMetrics))
	api.Use(middleware.RequireAuth(middleware.NewJWTResolver(cfg.JWTSigningKey), log))
	listinghandler.New(listingSvc, log).Register(api)
	verificationhandler.New(verificationSvc, log).Register(api)
	router.Mount("/api/v1", api)

	admin := chi.NewRouter()
	admin.Use(middleware.Recovery(log))
	admin.Use(middleware.RequestID)
	admin.Use(middleware.Logger(log))
	admin.Use(middleware.RequireAdminToken(cfg.AdminToken, log))
	adminhandler.New(listingCounts, sessionCounts, log).Register(admin)
	router.Mount("/", admin)

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting twinsale server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := sweeper.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
