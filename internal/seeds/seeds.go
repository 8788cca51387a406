package seeds

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"dsfuzz/internal/types"
	"dsfuzz/internal/utils"
	"dsfuzz/pkg/database"
	"dsfuzz/pkg/mq"
)

const (
	BundleQueueName = "corpus_bundles"

	seedStoreRoot = "/var/tmp/dsfuzz/seeds"
	batchSize     = 256
	flushEvery    = 1 * time.Minute
)

// SeedManager batches queue entries the engine discovers, bundles each
// batch into a tarball and announces it over RabbitMQ and Postgres so
// downstream tooling (minimizers, sibling fuzzers) can pick it up.
type SeedManager struct {
	rabbitMQ mq.RabbitMQ
	db       *gorm.DB
	logger   *zap.Logger

	seedFolder string
	seedChan   chan types.SeedMessage
	seedChanWg sync.WaitGroup
}

func NewSeedManager(rabbitMQ mq.RabbitMQ, db *gorm.DB, logger *zap.Logger, lifeCycle fx.Lifecycle) *SeedManager {
	if err := os.MkdirAll(seedStoreRoot, 0755); err != nil {
		logger.Fatal("failed to create seed store", zap.Error(err))
		return nil
	}

	s := &SeedManager{
		rabbitMQ:   rabbitMQ,
		db:         db,
		logger:     logger.Named("seeds"),
		seedFolder: seedStoreRoot,
		seedChan:   make(chan types.SeedMessage, 1024),
	}

	lifeCycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.logger.Debug("starting seed manager")
			if err := s.declareBundleQueue(); err != nil {
				s.logger.Fatal("failed to declare bundle queue", zap.Error(err))
				return err
			}
			go s.start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.logger.Debug("stopping seed manager")
			s.seedChanWg.Wait() // wait until all registered channels are closed
			close(s.seedChan)
			return nil
		},
	})

	return s
}

func (s *SeedManager) declareBundleQueue() error {
	channel := s.rabbitMQ.GetChannel()
	if channel == nil {
		return nil // publishing degrades to DB-only
	}
	defer channel.Close()
	_, err := channel.QueueDeclare(BundleQueueName, true, false, false, false, nil)
	return err
}

// RegisterSeedChan routes seed messages from rCh to the fan-in channel.
func (s *SeedManager) RegisterSeedChan(rCh <-chan types.SeedMessage) {
	s.seedChanWg.Add(1)
	go func() {
		defer s.seedChanWg.Done()
		for seed := range rCh {
			s.seedChan <- seed
		}
	}()
}

func (s *SeedManager) start() {
	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()

	batch := make([]types.SeedMessage, 0, batchSize)

	for {
		select {
		case seed, ok := <-s.seedChan:
			if !ok {
				// channel closed: flush what is left, then exit
				if len(batch) > 0 {
					s.shipBundle(batch)
				}
				return
			}
			batch = append(batch, seed)
			if len(batch) >= batchSize {
				s.shipBundle(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				s.shipBundle(batch)
				batch = batch[:0]
			}
		}
	}
}

// shipBundle collects the batch into a tar.gz, publishes the announcement
// and records the bundle. All seeds of one session share task and harness.
func (s *SeedManager) shipBundle(msgs []types.SeedMessage) {
	cfg := msgs[0].Config
	s.logger.Debug("bundling seeds",
		zap.String("task_id", cfg.TaskID),
		zap.String("harness", cfg.Harness),
		zap.Int("count", len(msgs)))

	tmpDir, err := os.MkdirTemp("", "seed-bundle-*")
	if err != nil {
		s.logger.Error("failed to create tmp dir for seed bundle", zap.Error(err))
		return
	}
	defer os.RemoveAll(tmpDir)

	// copy under fresh UUID names; queue entry names collide across runs
	for _, msg := range msgs {
		if err := utils.CopyFile(msg.SeedFile, filepath.Join(tmpDir, uuid.New().String())); err != nil {
			s.logger.Warn("failed to copy seed into bundle", zap.String("seed", msg.SeedFile), zap.Error(err))
		}
	}

	bundleName := filepath.Base(cfg.Harness) + "-" + uuid.New().String() + ".tar.gz"
	bundlePath := filepath.Join(s.seedFolder, bundleName)
	if err := utils.CompressTarGz(tmpDir, bundlePath); err != nil {
		s.logger.Error("failed to create seed bundle", zap.Error(err))
		return
	}

	s.publishBundle(cfg, bundlePath)

	hostname, _ := os.Hostname()
	record := database.NewCorpusBundle(cfg.TaskID, cfg.Harness, bundlePath, hostname, len(msgs))
	if err := database.AddCorpusBundle(context.Background(), s.db, record); err != nil {
		s.logger.Error("failed to record corpus bundle", zap.Error(err))
	}
}

func (s *SeedManager) publishBundle(cfg *types.FuzzConfig, bundlePath string) {
	msg := types.CorpusBundleMessage{
		TaskId:     cfg.TaskID,
		Harness:    cfg.Harness,
		BundlePath: bundlePath,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to marshal bundle message", zap.Error(err))
		return
	}

	channel := s.rabbitMQ.GetChannel()
	if channel == nil {
		return
	}
	defer channel.Close()
	channel.Publish("", BundleQueueName, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}
