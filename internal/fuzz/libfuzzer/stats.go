package libfuzzer

import (
	"strings"

	"dsfuzz/internal/types"
)

// externalMarker tags the stderr lines that carry stats. The harness
// re-emits libFuzzer's status output one token group per line under this
// prefix; everything without it is incidental output.
const externalMarker = "EXTERNAL:"

type parserState int

const (
	// scanning looks for the start of a new stats block
	scanning parserState = iota
	// inBlock consumes the key/value lines of an already-started block
	inBlock
)

// streamParser incrementally folds the engine's diagnostic stream into a
// stats snapshot. It is fed bounded batches of lines and consumes at most
// one stats block per batch; a block split across batches is picked up on
// the next refresh.
type streamParser struct {
	state    parserState
	snapshot types.StatsSnapshot
}

func newStreamParser(snapshot types.StatsSnapshot) *streamParser {
	return &streamParser{state: scanning, snapshot: snapshot}
}

// Feed processes a batch of raw stderr lines. Malformed or foreign lines
// are dropped; Feed never fails.
func (p *streamParser) Feed(lines []string) {
	for _, raw := range lines {
		body, ok := stripMarker(raw)
		if !ok {
			continue
		}

		switch p.state {
		case scanning:
			if strings.HasPrefix(body, "#") {
				if execs := strings.TrimPrefix(strings.Fields(body)[0], "#"); execs != "" {
					p.snapshot[types.StatExecsDone] = execs
				}
				p.state = inBlock
			}

		case inBlock:
			if body == "" {
				// block done; leave the rest of the batch for the next call
				p.state = scanning
				return
			}
			key, value, found := strings.Cut(body, ": ")
			if !found {
				continue
			}
			switch key {
			case "exec/s":
				p.snapshot[types.StatExecsPerSec] = strings.TrimSpace(value)
			case "units":
				p.snapshot[types.StatPathsTotal] = strings.TrimSpace(value)
			case "cov":
				p.snapshot[types.StatBitmapCvg] = strings.TrimSpace(value)
			}
		}
	}
}

func stripMarker(raw string) (string, bool) {
	if !strings.HasPrefix(raw, externalMarker) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(raw, externalMarker)), true
}
