package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/example/trip-sync/internal/config"
	"github.com/example/trip-sync/internal/geo"
	"github.com/example/trip-sync/internal/geocode"
	"github.com/example/trip-sync/internal/httpapi"
	"github.com/example/trip-sync/internal/identity"
	"github.com/example/trip-sync/internal/ingest"
	"github.com/example/trip-sync/internal/logging"
	"github.com/example/trip-sync/internal/route"
	"github.com/example/trip-sync/internal/store"
	"github.com/example/trip-sync/internal/syncer"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	if cfg.PGDSN != "" && cfg.RunMigrations {
		if err := migrate(cfg.PGDSN); err != nil {
			logger.Error("migration failed", "error", err)
		} else {
			logger.Info("migration applied", "file", "001_create_trips.sql")
		}
	}

	var trips store.TripStore
	if cfg.PGDSN != "" {
		ps, err := store.NewPostgresStore(cfg.PGDSN, logger)
		if err != nil {
			logger.Error("postgres store unavailable", "error", err)
			os.Exit(1)
		}
		defer ps.Close()
		trips = ps
	} else {
		trips = store.NewMemoryStore()
	}

	var pool geo.Pool
	if cfg.RedisAddr != "" {
		pool = geo.NewRedisPool(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
	} else {
		pool = geo.NewIndex()
	}

	var estimator route.Estimator
	if cfg.OSRMEndpoint != "" {
		c := route.NewOSRMClient(cfg.OSRMEndpoint)
		c.Cache = route.NewCache(cfg.RouteCacheTTL)
		estimator = c
	} else {
		estimator = &route.Fallback{SpeedMps: cfg.DefaultSpeedMps}
	}

	var geocoder geocode.ReverseGeocoder
	if cfg.NominatimEndpoint != "" {
		geocoder = geocode.NewNominatimClient(cfg.NominatimEndpoint)
	} else {
		geocoder = geocode.Static{}
	}

	var kp *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		kp = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
	}

	sy := syncer.New(trips, pool, estimator, geocoder, logger, cfg.DriverPoolLimit)
	srv := httpapi.NewServer(sy, pool, kp, identity.NewJWTProvider(cfg.JWTSecret), logger)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("trip-sync listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	logger.Info("shut down")
}

func migrate(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_trips.sql"))
	if err != nil {
		return err
	}
	_, err = db.Exec(string(b))
	return err
}
