package libfuzzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dsfuzz/internal/types"
)

func TestStatsParserBlock(t *testing.T) {
	snapshot := make(types.StatsSnapshot)
	parser := newStreamParser(snapshot)

	parser.Feed([]string{
		"EXTERNAL: #42",
		"EXTERNAL: exec/s: 1000",
		"EXTERNAL: ",
	})

	assert.Equal(t, "42", snapshot[types.StatExecsDone])
	assert.Equal(t, "1000", snapshot[types.StatExecsPerSec])

	// later unrelated input must not clear harvested values
	parser.Feed([]string{"INFO: seed corpus loaded", "EXTERNAL: something else"})
	assert.Equal(t, "42", snapshot[types.StatExecsDone])
	assert.Equal(t, "1000", snapshot[types.StatExecsPerSec])
}

func TestStatsParserAllMetrics(t *testing.T) {
	snapshot := make(types.StatsSnapshot)
	parser := newStreamParser(snapshot)

	parser.Feed([]string{
		"EXTERNAL: #1205",
		"EXTERNAL: cov: 37",
		"EXTERNAL: units: 12",
		"EXTERNAL: exec/s: 512",
		"EXTERNAL: rss: 47Mb", // not a tracked metric
		"EXTERNAL: ",
	})

	assert.Equal(t, types.StatsSnapshot{
		types.StatExecsDone:   "1205",
		types.StatExecsPerSec: "512",
		types.StatPathsTotal:  "12",
		types.StatBitmapCvg:   "37",
	}, snapshot)
}

func TestStatsParserOneBlockPerFeed(t *testing.T) {
	snapshot := make(types.StatsSnapshot)
	parser := newStreamParser(snapshot)

	parser.Feed([]string{
		"EXTERNAL: #42",
		"EXTERNAL: exec/s: 100",
		"EXTERNAL: ",
		"EXTERNAL: #99", // past the block terminator, must wait
		"EXTERNAL: exec/s: 7777",
	})
	assert.Equal(t, "42", snapshot[types.StatExecsDone])
	assert.Equal(t, "100", snapshot[types.StatExecsPerSec])

	// the next refresh picks up a new block from fresh lines
	parser.Feed([]string{"EXTERNAL: #99", "EXTERNAL: exec/s: 7777", "EXTERNAL: "})
	assert.Equal(t, "99", snapshot[types.StatExecsDone])
	assert.Equal(t, "7777", snapshot[types.StatExecsPerSec])
}

func TestStatsParserBlockSplitAcrossFeeds(t *testing.T) {
	snapshot := make(types.StatsSnapshot)
	parser := newStreamParser(snapshot)

	parser.Feed([]string{"EXTERNAL: #10"})
	parser.Feed([]string{"EXTERNAL: units: 3"})
	parser.Feed([]string{"EXTERNAL: "})

	assert.Equal(t, "10", snapshot[types.StatExecsDone])
	assert.Equal(t, "3", snapshot[types.StatPathsTotal])
}

func TestStatsParserIgnoresUnmarkedLines(t *testing.T) {
	snapshot := make(types.StatsSnapshot)
	parser := newStreamParser(snapshot)

	// stats-shaped but unmarked lines, plus plain engine chatter
	parser.Feed([]string{
		"#42",
		"exec/s: 1000",
		"INFO: loaded 12 files",
	})
	assert.Empty(t, snapshot)
}

func TestStatsParserNeverPanics(t *testing.T) {
	snapshot := make(types.StatsSnapshot)
	parser := newStreamParser(snapshot)

	junk := []string{
		"",
		"EXTERNAL:",
		"EXTERNAL: ",
		"EXTERNAL: #",
		"EXTERNAL: :::",
		"EXTERNAL: key without separator",
		"EXTERNAL: exec/s:1000", // missing space after colon
		"\x00\xff garbage",
		"EXTERNAL: #notanumber stray",
	}
	require.NotPanics(t, func() {
		for _, line := range junk {
			parser.Feed([]string{line})
		}
		parser.Feed(nil)
		parser.Feed(junk)
	})
}

func TestFrontendStatsReturnsCopy(t *testing.T) {
	f := NewFrontend(newTestFrontendParams(t))
	f.UpdateStats([]string{"EXTERNAL: #5", "EXTERNAL: "})

	snap := f.Stats()
	assert.Equal(t, "5", snap[types.StatExecsDone])

	snap[types.StatExecsDone] = "tampered"
	assert.Equal(t, "5", f.Stats()[types.StatExecsDone])
}
