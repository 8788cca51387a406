package fuzz

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Instance is one engine subprocess. Its stderr is scanned line by line
// into a bounded channel that the runner drains between polls; the engine
// is expected to run until it is interrupted.
type Instance struct {
	binary string
	args   []string
	logger *zap.Logger

	lines chan string
}

func NewInstance(binary string, args []string, logger *zap.Logger) *Instance {
	return &Instance{
		binary: binary,
		args:   args,
		logger: logger,
		lines:  make(chan string, 4096),
	}
}

// Lines yields the engine's stderr output. The channel is closed once the
// stream ends.
func (m *Instance) Lines() <-chan string {
	return m.lines
}

// Run launches the engine and blocks until it exits. When stop is closed
// the engine is asked to shut down with SIGINT and killed if it has not
// exited within gracePeriod. The process is never left running once Run
// returns.
func (m *Instance) Run(stop <-chan struct{}, gracePeriod time.Duration) error {
	cmd := exec.Command(m.binary, m.args...)
	cmd.Stdout = io.Discard
	stderr, err := cmd.StderrPipe()
	if err != nil {
		close(m.lines)
		return fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	m.logger.Info("running engine", zap.String("command", cmd.String()))
	if err := cmd.Start(); err != nil {
		close(m.lines)
		return fmt.Errorf("failed to start engine: %w", err)
	}

	go m.pump(stderr)

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	select {
	case err := <-waitErr:
		return err
	case <-stop:
		// best-effort graceful shutdown, libFuzzer flushes final stats on SIGINT
		_ = cmd.Process.Signal(syscall.SIGINT)
		select {
		case err := <-waitErr:
			return err
		case <-time.After(gracePeriod):
			m.logger.Warn("engine ignored SIGINT, killing it")
			_ = cmd.Process.Kill()
			return <-waitErr
		}
	}
}

func (m *Instance) pump(r io.Reader) {
	defer close(m.lines)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case m.lines <- scanner.Text():
		default:
			// consumer is behind; stats are advisory, dropping is fine
		}
	}
}
