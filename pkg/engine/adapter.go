package engine

import (
	"context"
	"strings"
	"time"
)

// Adapter owns the lifecycle of one Engine: initialize, load a netlist with
// diagnostic checking, start and poll a background run, and read result
// vectors. The adapter itself is not goroutine-safe; the scheduler
// serializes runs so there is at most one logical owner at a time.
type Adapter struct {
	eng         Engine
	initialized bool
	lastNetlist string
}

// NewAdapter wraps the given engine handle. The handle is injected rather
// than obtained from a global so tests can substitute a scripted engine.
func NewAdapter(eng Engine) *Adapter {
	return &Adapter{eng: eng}
}

// Init initializes the engine instance. Calling it again after a successful
// initialization is a no-op.
func (a *Adapter) Init() error {
	if a.initialized {
		return nil
	}
	if err := a.eng.Init(); err != nil {
		return &InitError{Err: err}
	}
	a.initialized = true
	return nil
}

// ResetAndLoad removes any previously loaded circuit, resets the engine,
// clears its diagnostic buffers and loads the given netlist. The engine's
// logs are then inspected: any "error" in the standard log or "warning" in
// the diagnostic log fails the load. Engines signal bad netlists through
// their logs rather than through return codes, hence the substring scan.
func (a *Adapter) ResetAndLoad(netlist string) error {
	a.lastNetlist = netlist

	if err := a.eng.Command("remcirc"); err != nil {
		return &LoadError{Log: err.Error(), Netlist: netlist}
	}
	if err := a.eng.Command("reset"); err != nil {
		return &LoadError{Log: err.Error(), Netlist: netlist}
	}
	a.eng.ClearLog()

	if err := a.eng.LoadCircuit(netlist); err != nil {
		return &LoadError{Log: combinedLog(a.eng, err.Error()), Netlist: netlist}
	}

	stdout := a.eng.Log(false)
	stderr := a.eng.Log(true)
	if containsFold(stdout, "error") || containsFold(stderr, "warning") {
		return &LoadError{Log: stdout + stderr, Netlist: netlist}
	}
	return nil
}

// Run echoes the circuit listing into the log and starts the background
// analysis. It returns immediately; use Running or WaitDone to observe
// completion.
func (a *Adapter) Run() error {
	if err := a.eng.Command("listing"); err != nil {
		return err
	}
	return a.eng.Command("bg_run")
}

// Running polls the engine's background-run status.
func (a *Adapter) Running() bool {
	return a.eng.IsBGThreadRunning()
}

// Halt asks the engine to stop the background run.
func (a *Adapter) Halt() error {
	return a.eng.Command("bg_halt")
}

// WaitDone blocks until the background run finishes, polling at the given
// interval. When the timeout elapses first the engine is halted and
// ErrTimeout is returned. A cancelled context halts the engine as well and
// returns the context error.
func (a *Adapter) WaitDone(ctx context.Context, poll, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for a.eng.IsBGThreadRunning() {
		if time.Now().After(deadline) {
			a.Halt()
			return ErrTimeout
		}
		select {
		case <-ctx.Done():
			a.Halt()
			return ctx.Err()
		case <-time.After(poll):
		}
	}
	return nil
}

// VectorValue returns the first element of the named result vector, or 0.0
// when the vector is absent. Extraction is total: an unknown name is a
// defined default, never a failure.
func (a *Adapter) VectorValue(name string) float64 {
	vec := a.eng.VectorInfo(name)
	if len(vec) == 0 {
		return 0.0
	}
	return vec[0]
}

// Failed reports whether the finished run must be treated as fatal: the
// engine flagged an error, or its diagnostics admit that no circuit was
// actually simulated.
func (a *Adapter) Failed() bool {
	if a.eng.ErrorOccurred() {
		return true
	}
	return containsFold(a.eng.Log(true), "there aren't any circuits loaded")
}

// FatalError packages the current diagnostics and the last netlist for a
// user-visible report.
func (a *Adapter) FatalError() *FatalError {
	return &FatalError{
		Log:     a.eng.Log(false) + a.eng.Log(true),
		Netlist: a.lastNetlist,
	}
}

// ClearLog clears the engine's diagnostic buffers.
func (a *Adapter) ClearLog() {
	a.eng.ClearLog()
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func combinedLog(eng Engine, fallback string) string {
	log := eng.Log(false) + eng.Log(true)
	if strings.TrimSpace(log) == "" {
		return fallback
	}
	return log
}
