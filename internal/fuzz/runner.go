package fuzz

import (
	"context"
	"encoding/json"
	"path"
	"reflect"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"dsfuzz/config"
	"dsfuzz/internal/crash"
	"dsfuzz/internal/seeds"
	"dsfuzz/internal/session"
	"dsfuzz/internal/types"
	"dsfuzz/pkg/database"
	"dsfuzz/pkg/mq"
	"dsfuzz/pkg/telemetry"
	"dsfuzz/pkg/watchdog"
)

const (
	StatsQueueName = "fuzz_stats"

	// window the engine gets to flush final stats after SIGINT
	engineGracePeriod = 10 * time.Second
	statsPublishEvery = 30 * time.Second
)

// Runner owns one fuzzing session end to end: it resolves the engine
// adapter, prepares the session directories, launches the engine and polls
// its diagnostic stream until the engine exits or the app is stopped.
type Runner struct {
	logger        *zap.Logger
	appConfig     *config.AppConfig
	job           *types.FuzzConfig
	frontends     map[string]Frontend
	crashManager  *crash.CrashManager
	seedManager   *seeds.SeedManager
	watchdogFac   *watchdog.Factory
	rabbitMQ      mq.RabbitMQ
	db            *gorm.DB
	tracerFactory *telemetry.TracerFactory
	shutdowner    fx.Shutdowner

	done chan struct{}
}

type RunnerParams struct {
	fx.In

	Lc            fx.Lifecycle
	Shutdowner    fx.Shutdowner
	Logger        *zap.Logger
	AppConfig     *config.AppConfig
	Job           *types.FuzzConfig
	Frontends     []Frontend `group:"frontends"`
	CrashManager  *crash.CrashManager
	SeedManager   *seeds.SeedManager
	WatchdogFac   *watchdog.Factory
	RabbitMQ      mq.RabbitMQ
	DB            *gorm.DB
	TracerFactory *telemetry.TracerFactory
}

func NewRunner(params RunnerParams) *Runner {
	frontends := make(map[string]Frontend)
	for _, frontend := range params.Frontends {
		frontendV := reflect.ValueOf(frontend)
		if frontendV.Kind() == reflect.Ptr && frontendV.IsNil() {
			continue // skip adapters that declined to construct
		}
		frontends[frontend.Name()] = frontend
		params.Logger.Debug("engine adapter registered", zap.String("engine", frontend.Name()))
	}

	r := &Runner{
		logger:        params.Logger.Named("runner"),
		appConfig:     params.AppConfig,
		job:           params.Job,
		frontends:     frontends,
		crashManager:  params.CrashManager,
		seedManager:   params.SeedManager,
		watchdogFac:   params.WatchdogFac,
		rabbitMQ:      params.RabbitMQ,
		db:            params.DB,
		tracerFactory: params.TracerFactory,
		shutdowner:    params.Shutdowner,
		done:          make(chan struct{}),
	}

	runCtx, cancel := context.WithCancel(context.Background())
	params.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go r.run(runCtx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			<-r.done
			return nil
		},
	})
	return r
}

func (r *Runner) run(ctx context.Context) {
	defer close(r.done)
	defer r.shutdowner.Shutdown()

	logger := r.logger.With(
		zap.String("task_id", r.job.TaskID),
		zap.String("harness", r.job.Harness),
		zap.String("engine", r.job.Engine),
	)

	tracer := r.tracerFactory.NewTracer(ctx, "fuzzing session")
	tracer.SetAttributes(
		telemetry.String("fuzz.task_id", r.job.TaskID),
		telemetry.String("fuzz.harness", r.job.Harness),
		telemetry.String("fuzz.engine", r.job.Engine),
	)
	tracer.Start()
	defer tracer.End()

	frontend, ok := r.frontends[r.job.Engine]
	if !ok {
		logger.Error("no adapter for requested engine")
		tracer.SetError("unknown engine")
		return
	}

	paths, err := frontend.PrepareSession(r.job)
	if err != nil {
		logger.Error("failed to prepare session", zap.Error(err))
		tracer.SetError(err.Error())
		return
	}
	tracer.AddEvent("session_prepared",
		telemetry.String("push_dir", paths.PushDir),
		telemetry.Bool("resuming", paths.Resuming))

	argv, err := frontend.BuildCommand(r.job, paths)
	if err != nil {
		logger.Error("failed to build engine command", zap.Error(err))
		tracer.SetError(err.Error())
		return
	}

	r.declareStatsQueue()
	r.watchArtifacts(ctx, paths, tracer)

	inst := NewInstance(r.job.Harness, argv, logger)
	engineErr := make(chan error, 1)
	startedAt := time.Now()
	go func() { engineErr <- inst.Run(ctx.Done(), engineGracePeriod) }()
	tracer.AddEvent("engine_started", telemetry.Int("args", len(argv)))

	ticker := time.NewTicker(r.appConfig.StatsInterval)
	defer ticker.Stop()
	publish := time.NewTicker(statsPublishEvery)
	defer publish.Stop()

	for {
		select {
		case <-ctx.Done():
			// Run sends SIGINT once ctx is done; the engine flushes its
			// final stats block before exiting, so drain what it buffered.
			err := <-engineErr
			r.drainRemaining(frontend, inst)
			r.finish(frontend, paths, startedAt, err, logger)
			return

		case err := <-engineErr:
			r.drainRemaining(frontend, inst)
			r.finish(frontend, paths, startedAt, err, logger)
			return

		case <-ticker.C:
			if batch := r.drainBatch(inst); len(batch) > 0 {
				frontend.UpdateStats(batch)
			}

		case <-publish.C:
			r.publishStats(frontend)
			logger.Debug("stats snapshot", zap.Any("stats", frontend.Stats()))
		}
	}
}

// watchArtifacts routes engine-written files to the crash and seed managers.
func (r *Runner) watchArtifacts(ctx context.Context, paths *session.Paths, tracer telemetry.Tracer) {
	crashFiles := make(chan string, 1024)
	crashDog := r.watchdogFac.New(ctx, crashFiles, isCrashArtifact)
	crashDog.AddDir(paths.CrashDir)

	crashChan := make(chan types.CrashMessage, 1024)
	go r.proxyCrashes(crashFiles, crashChan, tracer)
	r.crashManager.RegisterCrashChan(crashChan)

	seedFiles := make(chan string, 1024)
	queueDog := r.watchdogFac.New(ctx, seedFiles, nil)
	queueDog.AddDir(paths.PushDir)

	seedChan := make(chan types.SeedMessage, 1024)
	go r.proxySeeds(seedFiles, seedChan)
	r.seedManager.RegisterSeedChan(seedChan)
}

// proxyCrashes converts watchdog notifications into crash messages and
// records a span event for the first crash of the session.
func (r *Runner) proxyCrashes(files <-chan string, out chan<- types.CrashMessage, tracer telemetry.Tracer) {
	defer close(out)
	everFound := false
	for file := range files {
		out <- types.CrashMessage{CrashFile: file, Config: r.job}
		if !everFound {
			tracer.AddEvent("first_crash_found", telemetry.String("artifact", path.Base(file)))
			everFound = true
		}
	}
}

func (r *Runner) proxySeeds(files <-chan string, out chan<- types.SeedMessage) {
	defer close(out)
	for file := range files {
		out <- types.SeedMessage{SeedFile: file, Config: r.job}
	}
}

// isCrashArtifact keeps only libFuzzer artifact files out of everything the
// engine may drop into the crash directory.
func isCrashArtifact(name string) bool {
	base := path.Base(name)
	for _, prefix := range []string{"crash-", "oom-", "timeout-", "leak-"} {
		if strings.HasPrefix(base, prefix) {
			return true
		}
	}
	return false
}

// drainBatch pulls at most the configured number of buffered stderr lines
// without blocking.
func (r *Runner) drainBatch(inst *Instance) []string {
	batch := make([]string, 0, r.appConfig.StatsBatchLines)
	for len(batch) < r.appConfig.StatsBatchLines {
		select {
		case line, ok := <-inst.Lines():
			if !ok {
				return batch
			}
			batch = append(batch, line)
		default:
			return batch
		}
	}
	return batch
}

func (r *Runner) drainRemaining(frontend Frontend, inst *Instance) {
	for {
		batch := r.drainBatch(inst)
		if len(batch) == 0 {
			return
		}
		frontend.UpdateStats(batch)
	}
}

func (r *Runner) declareStatsQueue() {
	channel := r.rabbitMQ.GetChannel()
	if channel == nil {
		return
	}
	defer channel.Close()
	if _, err := channel.QueueDeclare(StatsQueueName, true, false, false, false, nil); err != nil {
		r.logger.Error("failed to declare stats queue", zap.Error(err))
	}
}

// publishStats pushes the current snapshot to the stats queue, best effort.
func (r *Runner) publishStats(frontend Frontend) {
	snapshot := frontend.Stats()
	if len(snapshot) == 0 {
		return
	}
	msg := types.StatsMessage{
		TaskId:  r.job.TaskID,
		Harness: r.job.Harness,
		Engine:  frontend.Name(),
		Stats:   snapshot,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("failed to marshal stats message", zap.Error(err))
		return
	}
	channel := r.rabbitMQ.GetChannel()
	if channel == nil {
		return
	}
	defer channel.Close()
	channel.Publish("", StatsQueueName, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

func (r *Runner) finish(frontend Frontend, paths *session.Paths, startedAt time.Time, runErr error, logger *zap.Logger) {
	if runErr != nil {
		logger.Warn("engine exited with error", zap.Error(runErr))
	}

	snapshot := frontend.Stats()
	logger.Info("fuzzing session finished",
		zap.Bool("resumed", paths.Resuming),
		zap.Any("stats", snapshot))

	metric := make(database.Metric, len(snapshot))
	for k, v := range snapshot {
		metric[k] = v
	}
	run := database.NewFuzzRun(r.job.TaskID, r.job.Harness, frontend.Name(), paths.Resuming, startedAt, metric)
	if err := database.AddFuzzRun(context.Background(), r.db, run); err != nil {
		logger.Error("failed to record fuzz run", zap.Error(err))
	}

	r.publishStats(frontend)
}
