package libfuzzer

import (
	"fmt"
	"path/filepath"

	"dsfuzz/internal/session"
	"dsfuzz/internal/types"
)

// Flags the builder owns. Passing one of these through fuzzer_args would
// silently double it on the command line, so collisions are rejected.
var reservedFlags = map[string]struct{}{
	"rss_limit_mb":    {},
	"max_len":         {},
	"artifact_prefix": {},
	"workers":         {},
	"jobs":            {},
	"reload":          {},
	"runs":            {},
}

// BuildCommand produces the argv for an in-process libFuzzer run that goes
// on indefinitely until an interrupt. libFuzzer is positional-argument
// sensitive, so the order is fixed: required flags, passthrough flags,
// optional flags, then the corpus directories.
func (f *Frontend) BuildCommand(cfg *types.FuzzConfig, paths *session.Paths) ([]string, error) {
	args := []string{
		fmt.Sprintf("-rss_limit_mb=%d", cfg.MemLimitMB),
		fmt.Sprintf("-max_len=%d", cfg.MaxInputSize),
		"-artifact_prefix=" + paths.CrashDir + "/",
		// the wrapped harness is not safe for multi-worker fan-out
		"-workers=1",
		"-reload=1",
		"-runs=-1",
	}

	for _, arg := range cfg.FuzzerArgs {
		if _, ok := reservedFlags[arg.Key]; ok {
			return nil, types.Configf("fuzzer arg %q collides with a reserved flag", arg.Key)
		}
		if arg.Value != nil {
			args = append(args, fmt.Sprintf("-%s=%s", arg.Key, *arg.Value))
		} else {
			args = append(args, "-"+arg.Key)
		}
	}

	if cfg.Dictionary != "" {
		args = append(args, "-dict="+cfg.Dictionary)
	}
	if cfg.ExecTimeoutMS > 0 {
		args = append(args, fmt.Sprintf("-timeout=%d", cfg.ExecTimeoutMS/1000))
	}
	if cfg.PostStats {
		args = append(args, "-print_final_stats=1")
	}

	// positional: the queue directory first, reused as-is across runs
	pushDir, err := filepath.Abs(paths.PushDir)
	if err != nil {
		return nil, types.Configf("cannot resolve queue directory %s: %v", paths.PushDir, err)
	}
	args = append(args, pushDir)

	// seeds are read-only extra inputs and only make sense on a fresh start
	if !paths.Resuming && cfg.InputSeeds != "" {
		seedDir, err := filepath.Abs(cfg.InputSeeds)
		if err != nil {
			return nil, types.Configf("cannot resolve seed directory %s: %v", cfg.InputSeeds, err)
		}
		args = append(args, seedDir)
	}

	return args, nil
}
