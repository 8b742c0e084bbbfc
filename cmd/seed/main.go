// Command seed loads catalog fixtures (categories, brands, products) into the
// configured database through the service layer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/boutique-admin/api/internal/di"
	"github.com/boutique-admin/api/internal/platform/config"
	"github.com/boutique-admin/api/internal/platform/observability"
)

func main() {
	var (
		fixturePath string
		envFile     string
		migrate     bool
		timeout     time.Duration
	)
	flag.StringVar(&fixturePath, "file", "cmd/seed/fixtures/catalog.yaml", "fixture file to load")
	flag.StringVar(&envFile, "env", ".env", "dotenv file with API_* settings")
	flag.BoolVar(&migrate, "migrate", true, "apply pending migrations before seeding")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "overall seed timeout")
	flag.Parse()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("seed")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ctx = observability.WithLogger(ctx, logger)

	fx, err := LoadFixture(fixturePath)
	if err != nil {
		logger.Fatal("failed to load fixture", zap.String("file", fixturePath), zap.Error(err))
	}

	cfg, err := config.Load(ctx, config.WithEnvFile(envFile))
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	if cfg.Database.Driver == config.DatabaseDriverMemory {
		logger.Warn("seeding the memory driver only lasts for this process")
	}
	// Order events are not emitted while seeding.
	cfg.Events.ProjectID = ""

	opts := []di.Option{di.WithLogger(logger)}
	if migrate {
		opts = append(opts, di.WithMigrations())
	}
	container, err := di.NewContainer(ctx, cfg, opts...)
	if err != nil {
		logger.Fatal("failed to initialise dependencies", zap.Error(err))
	}
	defer func() {
		if err := container.Close(context.Background()); err != nil {
			logger.Warn("dependency close error", zap.Error(err))
		}
	}()

	seeder, err := NewSeeder(container.Services.Categories, container.Services.Brands, container.Services.Products, logger)
	if err != nil {
		logger.Fatal("failed to initialise seeder", zap.Error(err))
	}
	summary, err := seeder.Run(ctx, fx)
	if err != nil {
		logger.Error("seed failed", zap.Error(err))
		return
	}
	logger.Info("seed complete",
		zap.Int("categories", summary.Categories),
		zap.Int("brands", summary.Brands),
		zap.Int("products", summary.Products),
		zap.Int("skipped", summary.Skipped),
	)
}
