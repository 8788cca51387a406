package libfuzzer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dsfuzz/internal/session"
	"dsfuzz/internal/types"
)

func strPtr(s string) *string { return &s }

func testPaths(t *testing.T, resuming bool) *session.Paths {
	t.Helper()
	dir := t.TempDir()
	return &session.Paths{
		PushDir:  dir + "/sync_dir/queue",
		CrashDir: dir + "/the_fuzzer/crashes",
		Resuming: resuming,
	}
}

func TestBuildCommandOrdering(t *testing.T) {
	f := &Frontend{}
	paths := testPaths(t, false)
	cfg := &types.FuzzConfig{
		MemLimitMB:    50,
		MaxInputSize:  8192,
		ExecTimeoutMS: 5000,
		Dictionary:    "tokens.dict",
		PostStats:     true,
		InputSeeds:    "/corpus/seeds",
		FuzzerArgs: []types.FuzzerArg{
			{Key: "use_value_profile", Value: strPtr("1")},
			{Key: "print_pcs"},
		},
	}

	args, err := f.BuildCommand(cfg, paths)
	require.NoError(t, err)

	expected := []string{
		"-rss_limit_mb=50",
		"-max_len=8192",
		"-artifact_prefix=" + paths.CrashDir + "/",
		"-workers=1",
		"-reload=1",
		"-runs=-1",
		"-use_value_profile=1",
		"-print_pcs",
		"-dict=tokens.dict",
		"-timeout=5",
		"-print_final_stats=1",
		paths.PushDir,
		"/corpus/seeds",
	}
	assert.Equal(t, expected, args)
}

func TestBuildCommandDeterministic(t *testing.T) {
	f := &Frontend{}
	paths := testPaths(t, false)
	cfg := &types.FuzzConfig{
		MemLimitMB:   100,
		MaxInputSize: 4096,
		FuzzerArgs: []types.FuzzerArg{
			{Key: "detect_leaks", Value: strPtr("0")},
		},
	}

	first, err := f.BuildCommand(cfg, paths)
	require.NoError(t, err)
	second, err := f.BuildCommand(cfg, paths)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuildCommandTimeoutTruncation(t *testing.T) {
	f := &Frontend{}
	cfg := &types.FuzzConfig{ExecTimeoutMS: 1500}

	args, err := f.BuildCommand(cfg, testPaths(t, false))
	require.NoError(t, err)
	assert.Contains(t, args, "-timeout=1")
	assert.NotContains(t, args, "-timeout=2")
}

func TestBuildCommandWorkersAlwaysOne(t *testing.T) {
	f := &Frontend{}
	for _, cfg := range []*types.FuzzConfig{
		{},
		{MemLimitMB: 2048, MaxInputSize: 1 << 20},
		{FuzzerArgs: []types.FuzzerArg{{Key: "fork", Value: strPtr("4")}}},
	} {
		args, err := f.BuildCommand(cfg, testPaths(t, false))
		require.NoError(t, err)
		assert.Contains(t, args, "-workers=1")
	}
}

func TestBuildCommandSeedsOnlyOnFreshStart(t *testing.T) {
	f := &Frontend{}
	cfg := &types.FuzzConfig{InputSeeds: "/corpus/seeds"}

	fresh, err := f.BuildCommand(cfg, testPaths(t, false))
	require.NoError(t, err)
	assert.Equal(t, "/corpus/seeds", fresh[len(fresh)-1])

	resumed, err := f.BuildCommand(cfg, testPaths(t, true))
	require.NoError(t, err)
	assert.NotContains(t, resumed, "/corpus/seeds")
}

func TestBuildCommandNoSeedsConfigured(t *testing.T) {
	f := &Frontend{}
	paths := testPaths(t, false)

	args, err := f.BuildCommand(&types.FuzzConfig{}, paths)
	require.NoError(t, err)
	// queue directory is the last positional argument
	assert.Equal(t, paths.PushDir, args[len(args)-1])
}

func TestBuildCommandReservedFlagCollision(t *testing.T) {
	f := &Frontend{}
	for reserved := range reservedFlags {
		cfg := &types.FuzzConfig{
			FuzzerArgs: []types.FuzzerArg{{Key: reserved, Value: strPtr("7")}},
		}
		_, err := f.BuildCommand(cfg, testPaths(t, false))
		var configErr *types.ConfigError
		require.ErrorAs(t, err, &configErr, "flag %q must be rejected", reserved)
	}
}

func TestBuildCommandFlagSections(t *testing.T) {
	f := &Frontend{}
	paths := testPaths(t, false)
	cfg := &types.FuzzConfig{
		Dictionary: "d.dict",
		PostStats:  true,
		InputSeeds: "/seeds",
		FuzzerArgs: []types.FuzzerArg{{Key: "print_pcs"}},
	}

	args, err := f.BuildCommand(cfg, paths)
	require.NoError(t, err)

	index := func(want string) int {
		for i, a := range args {
			if a == want || strings.HasPrefix(a, want+"=") {
				return i
			}
		}
		return -1
	}

	// required < passthrough < optional < positional
	assert.Less(t, index("-runs"), index("-print_pcs"))
	assert.Less(t, index("-print_pcs"), index("-dict"))
	assert.Less(t, index("-dict"), index(paths.PushDir))
	assert.Less(t, index(paths.PushDir), index("/seeds"))
}

func TestBuildCommandArtifactPrefixTrailingSlash(t *testing.T) {
	f := &Frontend{}
	paths := testPaths(t, false)

	args, err := f.BuildCommand(&types.FuzzConfig{}, paths)
	require.NoError(t, err)
	assert.Contains(t, args, fmt.Sprintf("-artifact_prefix=%s/", paths.CrashDir))
}
