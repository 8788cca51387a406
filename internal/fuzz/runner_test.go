package fuzz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"dsfuzz/config"
	"dsfuzz/internal/session"
	"dsfuzz/internal/types"
)

// recordingFrontend captures every line handed to UpdateStats.
type recordingFrontend struct {
	lines []string
}

func (f *recordingFrontend) Name() string { return "recording" }

func (f *recordingFrontend) PrepareSession(cfg *types.FuzzConfig) (*session.Paths, error) {
	return nil, nil
}

func (f *recordingFrontend) BuildCommand(cfg *types.FuzzConfig, paths *session.Paths) ([]string, error) {
	return nil, nil
}

func (f *recordingFrontend) UpdateStats(lines []string) { f.lines = append(f.lines, lines...) }
func (f *recordingFrontend) Stats() types.StatsSnapshot { return nil }

func TestDrainRemainingFlushesBufferedLines(t *testing.T) {
	// small batch size forces multiple drain rounds
	r := &Runner{appConfig: &config.AppConfig{StatsBatchLines: 2}}
	inst := NewInstance("noop", nil, zap.NewNop())

	final := []string{"EXTERNAL: #7", "EXTERNAL: exec/s: 3", "EXTERNAL: "}
	for _, line := range final {
		inst.lines <- line
	}
	close(inst.lines)

	// the engine is gone; everything it flushed on the way out must still
	// reach the adapter
	f := &recordingFrontend{}
	r.drainRemaining(f, inst)
	assert.Equal(t, final, f.lines)
}

func TestDrainBatchBounded(t *testing.T) {
	r := &Runner{appConfig: &config.AppConfig{StatsBatchLines: 2}}
	inst := NewInstance("noop", nil, zap.NewNop())
	for i := 0; i < 5; i++ {
		inst.lines <- "EXTERNAL: #1"
	}

	batch := r.drainBatch(inst)
	assert.Len(t, batch, 2)
}

func TestDrainBatchEmptyWithoutBlocking(t *testing.T) {
	r := &Runner{appConfig: &config.AppConfig{StatsBatchLines: 2}}
	inst := NewInstance("noop", nil, zap.NewNop())

	assert.Empty(t, r.drainBatch(inst))
}
