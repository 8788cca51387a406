package session

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"dsfuzz/internal/types"
)

const (
	syncDirName  = "sync_dir"
	queueDirName = "queue"
	mainDirName  = "the_fuzzer"
	crashDirName = "crashes"
)

// Paths is the on-disk topology of one fuzzing session. The push directory
// doubles as the pull source: the engine both writes new corpus entries to
// it and reloads from it.
type Paths struct {
	PushDir  string
	CrashDir string
	Resuming bool
}

type Layout struct {
	logger *zap.Logger
}

func NewLayout(logger *zap.Logger) *Layout {
	return &Layout{logger: logger.Named("session")}
}

// Prepare establishes the session directories under outputDir. An empty
// output directory starts a fresh session and creates the push and crash
// directories; a non-empty one is treated as a resume, in which case both
// directories must already exist and nothing is created or modified.
func (l *Layout) Prepare(outputDir string) (*Paths, error) {
	if outputDir == "" {
		return nil, &types.ConfigError{Reason: "output directory is not set"}
	}

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, types.Configf("output directory %s is not readable: %v", outputDir, err)
	}

	paths := &Paths{
		PushDir:  filepath.Join(outputDir, syncDirName, queueDirName),
		CrashDir: filepath.Join(outputDir, mainDirName, crashDirName),
	}

	if len(entries) > 0 {
		// resuming an earlier session: validate, never create
		for _, dir := range []string{paths.PushDir, paths.CrashDir} {
			info, err := os.Stat(dir)
			if err != nil || !info.IsDir() {
				return nil, types.Configf("missing required directory %s", dir)
			}
		}
		paths.Resuming = true
		l.logger.Info("resuming fuzzing from existing session",
			zap.String("push_dir", paths.PushDir),
			zap.String("crash_dir", paths.CrashDir))
		return paths, nil
	}

	for _, dir := range []string{paths.PushDir, paths.CrashDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, types.Configf("failed to create session directory %s: %v", dir, err)
		}
	}
	l.logger.Debug("created fresh session directories",
		zap.String("push_dir", paths.PushDir),
		zap.String("crash_dir", paths.CrashDir))
	return paths, nil
}
