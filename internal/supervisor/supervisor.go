// Package supervisor guards a run with a wall-clock deadline. The only
// realistic cause of exceeding the deadline is a browsing session that
// ignores normal cancellation, and a clean shutdown attempt could
// itself hang, so the deadline escalates straight to process
// termination with no cleanup.
package supervisor

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State tracks the supervisor lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateKilled    State = "killed"
)

// KillExitCode is the forced-termination exit code.
const KillExitCode = 2

// Supervisor runs a function under a one-shot deadline timer.
type Supervisor struct {
	deadline time.Duration
	logger   *zap.Logger
	exit     func(code int)

	mu    sync.Mutex
	state State
}

// New builds a Supervisor that terminates the process via os.Exit.
func New(deadline time.Duration, logger *zap.Logger) *Supervisor {
	return &Supervisor{
		deadline: deadline,
		logger:   logger,
		exit:     os.Exit,
		state:    StateIdle,
	}
}

// NewWithExit builds a Supervisor with an injected exit function.
func NewWithExit(deadline time.Duration, logger *zap.Logger, exit func(code int)) *Supervisor {
	s := New(deadline, logger)
	s.exit = exit
	return s
}

// Run arms the deadline timer, executes fn, and disarms the timer on
// normal completion. When the timer fires first the process is
// terminated abruptly; fn's result never materializes in that case.
func (s *Supervisor) Run(ctx context.Context, fn func(context.Context) error) error {
	s.setState(StateRunning)
	timer := time.AfterFunc(s.deadline, s.kill)

	err := fn(ctx)

	timer.Stop()
	s.setState(StateCompleted)
	return err
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Supervisor) kill() {
	s.setState(StateKilled)
	s.logger.Error("run deadline exceeded, forcing process termination",
		zap.Duration("deadline", s.deadline))
	_ = s.logger.Sync()
	s.exit(KillExitCode)
}
