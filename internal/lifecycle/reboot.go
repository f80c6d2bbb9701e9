package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
)

// ErrRebootRequested is the cancellation cause set by Rebooter.
var ErrRebootRequested = errors.New("lifecycle: reboot requested")

// Rebooter restarts the node when the MQTT watchdog expires.
//
// If a command is configured it is started (not waited for) before the
// run context is cancelled with ErrRebootRequested. Without a command the
// process simply exits and its supervisor is expected to restart it.
type Rebooter struct {
	command []string
	cancel  context.CancelCauseFunc
	logger  Logger

	once  sync.Once
	start func(name string, args ...string) error
}

// NewRebooter creates a Rebooter that cancels the run context with cancel.
func NewRebooter(command []string, cancel context.CancelCauseFunc, logger Logger) *Rebooter {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Rebooter{
		command: command,
		cancel:  cancel,
		logger:  logger,
		start:   startCommand,
	}
}

// Reboot implements session.Rebooter. Only the first call has any effect.
func (r *Rebooter) Reboot(reason string) {
	r.once.Do(func() {
		r.logger.Error("rebooting node", "reason", reason)

		if len(r.command) > 0 {
			if err := r.start(r.command[0], r.command[1:]...); err != nil {
				r.logger.Error("reboot command failed", "command", r.command[0], "error", err)
			}
		}

		if r.cancel != nil {
			r.cancel(fmt.Errorf("%w: %s", ErrRebootRequested, reason))
		}
	})
}

func startCommand(name string, args ...string) error {
	cmd := exec.Command(name, args...) //nolint:gosec // command comes from the operator's config
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", name, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
