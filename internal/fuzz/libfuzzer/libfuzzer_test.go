package libfuzzer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dsfuzz/internal/session"
	"dsfuzz/internal/types"
)

func newTestFrontendParams(t *testing.T) FrontendParams {
	t.Helper()
	return FrontendParams{
		Logger: zap.NewNop(),
		Layout: session.NewLayout(zap.NewNop()),
	}
}

func writeTestHarness(t *testing.T) string {
	t.Helper()
	harness := filepath.Join(t.TempDir(), "harness")
	require.NoError(t, os.WriteFile(harness, []byte("#!/bin/sh\n"), 0755))
	return harness
}

func TestPrepareSessionRejectsBlackbox(t *testing.T) {
	f := NewFrontend(newTestFrontendParams(t))

	_, err := f.PrepareSession(&types.FuzzConfig{
		Harness:   writeTestHarness(t),
		OutputDir: t.TempDir(),
		Blackbox:  true,
	})

	var modeErr *types.UnsupportedModeError
	require.ErrorAs(t, err, &modeErr)
	assert.Equal(t, "blackbox", modeErr.Mode)
}

func TestPrepareSessionMissingHarness(t *testing.T) {
	f := NewFrontend(newTestFrontendParams(t))

	_, err := f.PrepareSession(&types.FuzzConfig{
		Harness:   filepath.Join(t.TempDir(), "nope"),
		OutputDir: t.TempDir(),
	})

	var configErr *types.ConfigError
	require.ErrorAs(t, err, &configErr)
}

func TestPrepareSessionMissingDictionary(t *testing.T) {
	f := NewFrontend(newTestFrontendParams(t))

	_, err := f.PrepareSession(&types.FuzzConfig{
		Harness:    writeTestHarness(t),
		OutputDir:  t.TempDir(),
		Dictionary: filepath.Join(t.TempDir(), "missing.dict"),
	})

	var configErr *types.ConfigError
	require.ErrorAs(t, err, &configErr)
}

func TestPrepareSessionFreshStart(t *testing.T) {
	f := NewFrontend(newTestFrontendParams(t))
	outputDir := t.TempDir()

	paths, err := f.PrepareSession(&types.FuzzConfig{
		Harness:   writeTestHarness(t),
		OutputDir: outputDir,
	})
	require.NoError(t, err)

	assert.False(t, paths.Resuming)
	assert.DirExists(t, paths.PushDir)
	assert.DirExists(t, paths.CrashDir)
}

func TestPrepareSessionResumeIgnoresSeeds(t *testing.T) {
	f := NewFrontend(newTestFrontendParams(t))
	outputDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(outputDir, "sync_dir", "queue"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(outputDir, "the_fuzzer", "crashes"), 0755))

	cfg := &types.FuzzConfig{
		Harness:    writeTestHarness(t),
		OutputDir:  outputDir,
		InputSeeds: "/corpus/seeds",
	}
	paths, err := f.PrepareSession(cfg)
	require.NoError(t, err)
	require.True(t, paths.Resuming)

	// the resumed queue wins, seeds stay off the command line
	args, err := f.BuildCommand(cfg, paths)
	require.NoError(t, err)
	assert.NotContains(t, args, "/corpus/seeds")
}
