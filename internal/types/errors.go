package types

import "fmt"

// ConfigError is a fatal configuration or session-layout problem. It is
// raised before the engine subprocess is launched and stops the run.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Reason
}

func Configf(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// UnsupportedModeError rejects a requested mode the engine cannot run in,
// e.g. blackbox fuzzing on an instrumentation-only engine.
type UnsupportedModeError struct {
	Engine string
	Mode   string
}

func (e *UnsupportedModeError) Error() string {
	return fmt.Sprintf("%s fuzzing is not supported by %s", e.Mode, e.Engine)
}
