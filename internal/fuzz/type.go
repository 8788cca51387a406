package fuzz

import (
	"dsfuzz/internal/session"
	"dsfuzz/internal/types"
)

// Frontend is the capability set one engine adapter must provide. The
// runner holds a Frontend value and never depends on a concrete engine.
type Frontend interface {
	// Name of the engine this adapter drives, used to match the job's
	// engine field.
	Name() string

	// PrepareSession validates the configuration for this engine and
	// establishes the session directories. Modes the engine cannot run in
	// are rejected here, before any process is launched.
	PrepareSession(cfg *types.FuzzConfig) (*session.Paths, error)

	// BuildCommand translates the configuration into the ordered argv for
	// the engine subprocess. Pure: identical inputs yield identical output.
	BuildCommand(cfg *types.FuzzConfig, paths *session.Paths) ([]string, error)

	// UpdateStats folds newly read diagnostic lines into the adapter's
	// statistics snapshot. Malformed input is dropped, never fatal.
	UpdateStats(lines []string)

	// Stats returns a copy of the current statistics snapshot.
	Stats() types.StatsSnapshot
}
