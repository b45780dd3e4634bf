package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/scheduler-api/config"
	appointmentHandler "github.com/jwalitptl/scheduler-api/internal/handler/appointment"
	doctorHandler "github.com/jwalitptl/scheduler-api/internal/handler/doctor"
	"github.com/jwalitptl/scheduler-api/internal/handler/health"
	"github.com/jwalitptl/scheduler-api/internal/repository"
	"github.com/jwalitptl/scheduler-api/internal/repository/cache"
	"github.com/jwalitptl/scheduler-api/internal/repository/memory"
	"github.com/jwalitptl/scheduler-api/internal/repository/postgres"
	"github.com/jwalitptl/scheduler-api/internal/router"
	"github.com/jwalitptl/scheduler-api/internal/seed"
	appointmentService "github.com/jwalitptl/scheduler-api/internal/service/appointment"
	doctorService "github.com/jwalitptl/scheduler-api/internal/service/doctor"
	"github.com/jwalitptl/scheduler-api/pkg/event"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
	"github.com/jwalitptl/scheduler-api/pkg/messaging"
	"github.com/jwalitptl/scheduler-api/pkg/messaging/redis"
	"github.com/jwalitptl/scheduler-api/pkg/metrics"
	"github.com/jwalitptl/scheduler-api/pkg/validator"
	"github.com/jwalitptl/scheduler-api/pkg/websocket"
	"github.com/jwalitptl/scheduler-api/pkg/worker"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level := logger.ParseLevel(cfg.Log.Level)
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	appLogger := logger.NewLogger(&logger.Config{Level: level, TimeFormat: time.RFC3339})

	loc, err := cfg.Schedule.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid schedule timezone")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize store
	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to open store")
	}
	defer store.Close()

	// Initialize metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry, cfg.Metrics.Namespace)

	// Real-time fan-out: the hub serves this instance's viewers. With Redis
	// enabled, bookings go through the channel and every instance relays
	// them into its own hub.
	hub := websocket.NewHub(appLogger, m)
	defer hub.Close()

	var sink event.Publisher = hub
	if cfg.Redis.Enabled {
		broker, err := redis.NewRedisBroker(ctx, cfg.Redis.ToBrokerConfig(), appLogger, m)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer broker.Close()

		sink = messaging.NewEventPublisher(broker, cfg.Redis.Channel)
		relay := messaging.NewRelay(broker, cfg.Redis.Channel, hub, appLogger)
		go relay.Start(ctx)
	}

	// The dispatcher outlives the signal context so events from requests
	// still in flight during shutdown are delivered.
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()
	dispatcher := worker.NewDispatcher(sink, cfg.Events.ToDispatcherConfig(), appLogger, m)
	go dispatcher.Start(dispatchCtx)

	// Initialize repositories and services
	v := validator.New()
	var doctors repository.DoctorRepository = store.Doctors()
	if cfg.Cache.Enabled {
		doctors = cache.NewDoctorRepository(doctors, cfg.Cache.TTL, cfg.Cache.CleanupInterval)
	}

	doctorSvc := doctorService.NewService(doctors, store.Appointments(), v, doctorService.Config{
		Location:     loc,
		SlotDuration: time.Duration(cfg.Schedule.SlotMinutes) * time.Minute,
	}, appLogger, m)
	appointmentSvc := appointmentService.NewService(store.Appointments(), dispatcher, v, appLogger, m)

	// The in-memory store starts empty; give it the demo roster.
	if cfg.Database.Driver == "memory" {
		if _, err := seed.NewSeeder(store, doctorSvc, appLogger).Run(ctx, false); err != nil {
			log.Fatal().Err(err).Msg("failed to seed in-memory store")
		}
	}

	count, err := doctors.Count(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to query doctors")
	}
	log.Info().Int("doctors", count).Str("driver", cfg.Database.Driver).Msg("store ready")

	// Setup router
	deps := router.Dependencies{
		Doctors:      doctorHandler.NewHandler(doctorSvc),
		Appointments: appointmentHandler.NewHandler(appointmentSvc, loc),
		Health:       health.NewHandler(map[string]health.Pinger{"store": store}),
		Websocket:    hub.Handler(cfg.CORS.AllowedOrigins),
		Metrics:      m,
	}
	if cfg.Metrics.Enabled {
		deps.Gatherer = registry
	}

	r := router.NewRouter(deps, router.RouterConfig{
		RequestTimeout:   cfg.Server.RequestTimeout,
		RateLimit:        cfg.RateLimit.RequestsPerSecond,
		RateBurst:        cfg.RateLimit.Burst,
		RateLimitEnabled: cfg.RateLimit.Enabled,
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		MetricsPath:      cfg.Metrics.Path,
		Mode:             cfg.Server.Mode,
	})

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	stopDispatch()
	select {
	case <-dispatcher.Done():
	case <-shutdownCtx.Done():
		log.Warn().Msg("event dispatcher did not drain in time")
	}

	log.Info().Msg("server exited properly")
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.Database.Driver == "memory" {
		return memory.NewStore(), nil
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return postgres.NewStore(db), nil
}
