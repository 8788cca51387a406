package crash

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"dsfuzz/internal/types"
	"dsfuzz/pkg/database"
)

const (
	crashStoreRoot = "/var/tmp/dsfuzz/crashes"
	dedupeKeyFmt   = "dsfuzz:crash:%s:%s" // task_id, digest
)

// CrashManager content-addresses crash artifacts into a local store,
// dedupes them across runs via Redis and records each new one in Postgres.
type CrashManager struct {
	db          *gorm.DB
	redisClient *redis.Client
	logger      *zap.Logger

	crashFolder string
	crashChan   chan types.CrashMessage
	wg          sync.WaitGroup
	done        chan struct{}
}

func NewCrashManager(db *gorm.DB, redisClient *redis.Client, logger *zap.Logger, lifeCycle fx.Lifecycle) *CrashManager {
	if err := os.MkdirAll(crashStoreRoot, 0755); err != nil {
		// without the store there is no point in continuing
		logger.Fatal("failed to create crash store", zap.Error(err))
		return nil
	}

	c := &CrashManager{
		db:          db,
		redisClient: redisClient,
		logger:      logger.Named("crash"),
		crashFolder: crashStoreRoot,
		crashChan:   make(chan types.CrashMessage, 1024),
		done:        make(chan struct{}),
	}

	lifeCycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			c.logger.Debug("starting crash manager")
			go c.start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			c.logger.Info("stopping crash manager")
			c.wg.Wait() // wait until all registered channels are closed
			close(c.crashChan)
			<-c.done // wait until the remaining crashes are processed
			return nil
		},
	})

	return c
}

// RegisterCrashChan routes crash messages from rCh to the fan-in channel.
func (c *CrashManager) RegisterCrashChan(rCh <-chan types.CrashMessage) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for crash := range rCh {
			c.logger.Debug("new crash message received", zap.String("file", crash.CrashFile))
			c.crashChan <- crash
		}
	}()
}

func (c *CrashManager) start() {
	defer close(c.done)
	for crash := range c.crashChan {
		if err := c.processCrashFile(crash); err != nil {
			c.logger.Error("failed to process crash file", zap.Error(err))
		}
	}
}

func (c *CrashManager) processCrashFile(msg types.CrashMessage) error {
	data, err := os.ReadFile(msg.CrashFile)
	if err != nil {
		return fmt.Errorf("failed to read crash file: %w", err)
	}
	sum := md5.Sum(data)
	digest := hex.EncodeToString(sum[:])

	if !c.firstSeen(msg.Config.TaskID, digest) {
		c.logger.Debug("duplicate crash, skipping", zap.String("digest", digest))
		return nil
	}

	store := filepath.Join(c.crashFolder, msg.Config.TaskID, filepath.Base(msg.Config.Harness))
	if err := os.MkdirAll(store, 0755); err != nil {
		return fmt.Errorf("failed to create crash store directory: %w", err)
	}
	artifact := filepath.Join(store, digest)
	if err := os.WriteFile(artifact, data, 0644); err != nil {
		return fmt.Errorf("failed to write crash artifact: %w", err)
	}

	record := database.NewCrash(msg.Config.TaskID, msg.Config.Harness, msg.Config.Engine, artifact, digest)
	if err := database.AddCrash(context.Background(), c.db, record); err != nil {
		return fmt.Errorf("failed to record crash: %w", err)
	}

	c.logger.Info("crash recorded",
		zap.String("artifact", artifact),
		zap.String("digest", digest))
	return nil
}

// firstSeen claims the digest in Redis. On Redis trouble the crash is
// treated as new; a duplicate row beats a lost crash.
func (c *CrashManager) firstSeen(taskID, digest string) bool {
	key := fmt.Sprintf(dedupeKeyFmt, taskID, digest)
	fresh, err := c.redisClient.SetNX(context.Background(), key, 1, 0).Result()
	if err != nil {
		c.logger.Warn("crash dedupe unavailable", zap.Error(err))
		return true
	}
	return fresh
}
