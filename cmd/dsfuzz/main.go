package main

import (
	"dsfuzz/config"
	"dsfuzz/internal/crash"
	"dsfuzz/internal/fuzz"
	"dsfuzz/internal/fuzz/libfuzzer"
	"dsfuzz/internal/seeds"
	"dsfuzz/internal/session"
	"dsfuzz/pkg/database"
	"dsfuzz/pkg/logger"
	"dsfuzz/pkg/mq"
	"dsfuzz/pkg/telemetry"
	"dsfuzz/pkg/watchdog"

	_ "go.uber.org/automaxprocs"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,          // inject config
			config.LoadFuzzJob,         // inject per-run job
			logger.NewLogger,           // inject logger
			database.NewDBConnection,   // inject db connection
			database.NewRedisClient,    // inject redis client
			mq.NewRabbitMQ,             // inject rabbitmq service
			telemetry.NewTelemetry,     // inject telemetry
			telemetry.NewTracerFactory, // inject tracer factory
			session.NewLayout,          // inject session layout
			crash.NewCrashManager,      // inject crash manager
			seeds.NewSeedManager,       // inject seed manager
			watchdog.NewFactory,        // inject watchdog factory
		),
		libfuzzer.Module, // inject libFuzzer engine adapter
		fx.Invoke(fuzz.NewRunner),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			zlogger := fxevent.ZapLogger{Logger: log}
			zlogger.UseLogLevel(zap.DebugLevel)
			return &zlogger
		}),
	)
	app.Run()
}
