package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/scheduler-api/config"
	"github.com/jwalitptl/scheduler-api/internal/repository/postgres"
	"github.com/jwalitptl/scheduler-api/internal/seed"
	doctorService "github.com/jwalitptl/scheduler-api/internal/service/doctor"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
	"github.com/jwalitptl/scheduler-api/pkg/metrics"
	"github.com/jwalitptl/scheduler-api/pkg/validator"
)

func main() {
	reset := flag.Bool("reset", false, "delete all appointments and doctors before seeding")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.Database.Driver != "postgres" {
		log.Fatal().Str("driver", cfg.Database.Driver).Msg("seeding needs the postgres driver")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	store := postgres.NewStore(db)
	appLogger := logger.NewLogger(&logger.Config{Level: logger.ParseLevel(cfg.Log.Level)})
	svc := doctorService.NewService(store.Doctors(), store.Appointments(), validator.New(),
		doctorService.Config{}, appLogger, metrics.NewMetrics(prometheus.NewRegistry(), cfg.Metrics.Namespace))

	created, err := seed.NewSeeder(store, svc, appLogger).Run(ctx, *reset)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to seed doctors")
	}
	log.Info().Int("created", created).Bool("reset", *reset).Msg("seed complete")
}
