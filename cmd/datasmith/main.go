package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/datasmith/internal/clock"
	"github.com/smallbiznis/datasmith/internal/config"
	"github.com/smallbiznis/datasmith/internal/ingest"
	"github.com/smallbiznis/datasmith/internal/logger"
	"github.com/smallbiznis/datasmith/internal/metrics"
	"github.com/smallbiznis/datasmith/internal/migration"
	"github.com/smallbiznis/datasmith/internal/pipeline"
	"github.com/smallbiznis/datasmith/internal/report"
	"github.com/smallbiznis/datasmith/internal/store"
	"github.com/smallbiznis/datasmith/internal/tracing"
	"github.com/smallbiznis/datasmith/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		metrics.Module,
		tracing.Module,
		migration.Module,

		// Generation pipeline
		store.Module,
		ingest.Module,
		report.Module,
		pipeline.Module,

		fx.Invoke(runOnce),
	)
	app.Run()
}

// runOnce executes a single generation run after startup and shuts the
// app down with the run's outcome.
func runOnce(lc fx.Lifecycle, p *pipeline.Pipeline, shutdowner fx.Shutdowner, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := p.Execute(context.Background()); err != nil {
					log.Error("generation run failed", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
					return
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
	})
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
