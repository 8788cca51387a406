package types

// Canonical metric names of a fuzzing run. Values are kept as the engine
// printed them; numeric interpretation is left to consumers.
const (
	StatExecsDone   = "execs_done"
	StatExecsPerSec = "execs_per_sec"
	StatPathsTotal  = "paths_total"
	StatBitmapCvg   = "bitmap_cvg"
)

// StatsSnapshot maps metric names to their latest textual value. It is
// created empty at run start and updated in place for the lifetime of the
// engine subprocess; later values overwrite earlier ones per key and absent
// keys keep their last known value.
type StatsSnapshot map[string]string

// Clone returns an independent copy for readers.
func (s StatsSnapshot) Clone() StatsSnapshot {
	out := make(StatsSnapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
