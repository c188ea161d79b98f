package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"expeval/adapters/cache"
	"expeval/adapters/postgres"
	"expeval/adapters/stats/bayes"
	"expeval/adapters/stats/legacy"
	"expeval/app"
	"expeval/domain/experiment"
	"expeval/domain/metric"
	"expeval/internal/config"
	"expeval/internal/errors"
	"expeval/internal/migration"
	"expeval/ui"
)

// initDatabase initializes the PostgreSQL database connection
func initDatabase(appConfig *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", appConfig.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := migration.NewRunner().Run(ctx, db); err != nil {
		return nil, errors.Wrap(err, "database migration failed")
	}

	return db, nil
}

// buildStrategyTable wires every supported (engine version, metric type)
// route. The legacy engine serves all v1 routes with one strategy.
func buildStrategyTable() app.StrategyTable {
	v1 := legacy.Strategy()
	return app.StrategyTable{
		{Version: experiment.StatsV1, Metric: metric.TypeCount}:      v1,
		{Version: experiment.StatsV1, Metric: metric.TypeContinuous}: v1,
		{Version: experiment.StatsV1, Metric: metric.TypeFunnel}:     v1,
		{Version: experiment.StatsV2, Metric: metric.TypeCount}:      bayes.CountStrategy(),
		{Version: experiment.StatsV2, Metric: metric.TypeContinuous}: bayes.ContinuousStrategy(),
		{Version: experiment.StatsV2, Metric: metric.TypeFunnel}:     bayes.FunnelStrategy(),
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := initDatabase(appConfig)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	service := app.NewEvaluationService(
		postgres.NewExperimentRepository(db),
		postgres.NewActionRepository(db),
		postgres.NewExecutor(db),
		cache.NewMemoryCache(),
		buildStrategyTable(),
		app.FreshnessWindow(appConfig.Cache.TTL),
		logger,
	)

	if appConfig.Profiling.Enabled {
		ops := ui.NewOpsServer(logger)
		go func() {
			if err := ops.Start(":" + appConfig.Profiling.Port); err != nil {
				logger.Error("ops endpoint stopped", "error", err)
			}
		}()
	}

	server := ui.NewServer(ui.Config{
		Port:    appConfig.Server.Port,
		GinMode: appConfig.Server.GinMode,
	}, service, logger)

	if err := server.Start(":" + appConfig.Server.Port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
