package libfuzzer

import (
	"os"
	"path/filepath"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"dsfuzz/internal/fuzz"
	"dsfuzz/internal/session"
	"dsfuzz/internal/types"
)

// Frontend drives an in-process libFuzzer harness. The harness wraps
// libFuzzer's own diagnostics, so every stats line arrives prefixed with an
// "EXTERNAL:" marker and split across multiple lines.
type Frontend struct {
	logger *zap.Logger
	layout *session.Layout

	snapshot types.StatsSnapshot
	parser   *streamParser
}

type FrontendParams struct {
	fx.In

	Logger *zap.Logger
	Layout *session.Layout
}

func NewFrontend(p FrontendParams) *Frontend {
	snapshot := make(types.StatsSnapshot)
	return &Frontend{
		logger:   p.Logger.Named("libfuzzer"),
		layout:   p.Layout,
		snapshot: snapshot,
		parser:   newStreamParser(snapshot),
	}
}

func (f *Frontend) Name() string {
	return "libfuzzer"
}

// PrepareSession runs the pre-launch sanity checks and establishes the
// session directories. Blackbox mode is rejected here: libFuzzer only runs
// instrumented harnesses.
func (f *Frontend) PrepareSession(cfg *types.FuzzConfig) (*session.Paths, error) {
	if cfg.Blackbox {
		return nil, &types.UnsupportedModeError{Engine: f.Name(), Mode: "blackbox"}
	}

	harness, err := filepath.Abs(cfg.Harness)
	if err != nil {
		return nil, types.Configf("cannot resolve harness path %s: %v", cfg.Harness, err)
	}
	if _, err := os.Stat(harness); err != nil {
		return nil, types.Configf("harness binary %s is not usable: %v", harness, err)
	}

	if cfg.Dictionary != "" {
		if _, err := os.Stat(cfg.Dictionary); err != nil {
			return nil, types.Configf("dictionary %s is not usable: %v", cfg.Dictionary, err)
		}
	}

	paths, err := f.layout.Prepare(cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	if paths.Resuming && cfg.InputSeeds != "" {
		// seeds only bootstrap an empty queue, the resumed queue wins
		f.logger.Info("resuming with existing queue, skipping input seeds",
			zap.String("input_seeds", cfg.InputSeeds))
	}

	return paths, nil
}

// UpdateStats feeds freshly read stderr lines to the stream parser. At most
// one stats block is folded in per call.
func (f *Frontend) UpdateStats(lines []string) {
	f.parser.Feed(lines)
}

func (f *Frontend) Stats() types.StatsSnapshot {
	return f.snapshot.Clone()
}

var Module = fx.Options(
	fx.Provide(fx.Annotate(NewFrontend, fx.As(new(fuzz.Frontend)), fx.ResultTags(`group:"frontends"`))),
)
