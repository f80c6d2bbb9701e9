// Package lifecycle runs a node's components on one cooperative loop.
//
// Components are set up once, in descending SetupPriority, and then ticked
// in that order every loop interval. A component that implements Proceeder
// can hold back the setup of lower-priority components until it is ready;
// components already set up keep ticking while it waits. Shutdown hooks run
// in reverse setup order when the loop ends.
//
// Nothing in a tick may block. Other goroutines hand work to the loop with
// Scheduler.Post or Scheduler.Call instead of touching component state.
package lifecycle

// Setup priorities. Higher values are set up first.
const (
	PriorityHardware        float64 = 800
	PriorityData            float64 = 600
	PriorityNetwork         float64 = 250
	PriorityAfterNetwork    float64 = 200
	PriorityAfterConnection float64 = 100
	PriorityLate            float64 = -100
)

// Component is a unit of work driven by the Scheduler.
type Component interface {
	Setup() error
	Loop()
	DumpConfig()
	SetupPriority() float64
}

// Proceeder is implemented by components that must become ready before
// lower-priority components are set up.
type Proceeder interface {
	CanProceed() bool
}

// Shutdowner is implemented by components with work to do at exit.
type Shutdowner interface {
	Shutdown()
}

// Logger is the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
