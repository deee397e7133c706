// Package engine defines the protocol spoken to a SPICE-like simulation
// engine and the adapter that owns one engine instance's lifecycle.
package engine

import (
	"errors"
	"fmt"
)

// Engine abstracts one simulation-engine instance. Control commands are
// free text passed through to the engine; the adapter only ever issues
// "remcirc", "reset", "listing", "bg_run" and "bg_halt".
//
// Log text is engine-defined free text. VectorInfo returns nil or an empty
// slice for vectors the engine never produced; it must not fail.
type Engine interface {
	Init() error
	Command(cmd string) error
	LoadCircuit(netlist string) error
	VectorInfo(name string) []float64
	ClearLog()
	Log(stderr bool) string
	ErrorOccurred() bool
	IsBGThreadRunning() bool
}

// ErrTimeout signals that a background run did not finish within the
// adapter's wait deadline. The engine has already been halted when the
// caller sees this error.
var ErrTimeout = errors.New("engine: background run timed out")

// InitError reports that the engine instance could not be initialized.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("engine: initialization failed: %v", e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// LoadError reports that the engine's diagnostics flagged the netlist at
// load time. It carries the raw diagnostic text and the netlist so the
// failure can be shown to the user verbatim.
type LoadError struct {
	Log     string
	Netlist string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("engine: netlist rejected at load time:\n%s", e.Log)
}

// FatalError reports that the engine flagged a fatal condition after a run,
// or that its diagnostics show nothing was actually simulated.
type FatalError struct {
	Log     string
	Netlist string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("engine: simulation failed:\n%s", e.Log)
}
