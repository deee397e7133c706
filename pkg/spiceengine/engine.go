// Package spiceengine is an in-process operating-point SPICE engine
// implementing the engine.Engine protocol, so the simulation core can run
// without external software. It supports the device set the part templates
// produce: R, C, L, V, I, D, Q, E and G, with .model cards for diodes and
// BJTs.
package spiceengine

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// Engine is one engine instance. It is safe for concurrent use; the
// background run executes on its own goroutine and is observed through
// IsBGThreadRunning.
type Engine struct {
	mu sync.Mutex

	ckt        *circuit
	rawNetlist string

	stdout strings.Builder
	stderr strings.Builder

	vectors map[string]float64

	errorFlag bool
	running   bool
	halted    atomic.Bool
	done      chan struct{}
}

// New returns an uninitialized engine instance.
func New() *Engine {
	return &Engine{vectors: make(map[string]float64)}
}

// Init prepares the instance. The in-process engine has no external state to
// acquire, so this never fails; it exists to satisfy the protocol.
func (e *Engine) Init() error { return nil }

// Command executes one control command: remcirc, reset, listing, bg_run or
// bg_halt. Unknown commands are ignored.
func (e *Engine) Command(cmd string) error {
	switch strings.TrimSpace(cmd) {
	case "remcirc":
		e.mu.Lock()
		e.ckt = nil
		e.rawNetlist = ""
		e.vectors = make(map[string]float64)
		e.mu.Unlock()

	case "reset":
		e.mu.Lock()
		e.vectors = make(map[string]float64)
		e.errorFlag = false
		e.mu.Unlock()

	case "listing":
		e.mu.Lock()
		if e.ckt == nil {
			e.stderr.WriteString("Error: there aren't any circuits loaded.\n")
		} else {
			e.stdout.WriteString(e.rawNetlist)
			if !strings.HasSuffix(e.rawNetlist, "\n") {
				e.stdout.WriteString("\n")
			}
		}
		e.mu.Unlock()

	case "bg_run":
		e.startRun()

	case "bg_halt":
		e.halted.Store(true)
		e.mu.Lock()
		done := e.done
		e.mu.Unlock()
		if done != nil {
			<-done
		}
	}
	return nil
}

// LoadCircuit parses the netlist and installs it as the current circuit.
// Parse failures are reported through the stdout log ("Error: ...") and
// leave no circuit loaded; the call itself still succeeds, since engines
// signal bad netlists through diagnostics rather than return codes.
func (e *Engine) LoadCircuit(netlist string) error {
	ckt, err := parseNetlist(netlist)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.ckt = nil
		e.stdout.WriteString(fmt.Sprintf("Error: %v\n", err))
		return nil
	}
	e.ckt = ckt
	e.rawNetlist = netlist
	e.vectors = make(map[string]float64)
	return nil
}

// VectorInfo returns the named result vector from the last completed run, or
// nil when the vector does not exist.
func (e *Engine) VectorInfo(name string) []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.vectors[name]
	if !ok {
		return nil
	}
	return []float64{v}
}

// ClearLog drops both diagnostic buffers.
func (e *Engine) ClearLog() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stdout.Reset()
	e.stderr.Reset()
}

// Log returns the stderr diagnostic buffer when stderr is true, the stdout
// buffer otherwise.
func (e *Engine) Log(stderr bool) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if stderr {
		return e.stderr.String()
	}
	return e.stdout.String()
}

// ErrorOccurred reports whether the last run failed.
func (e *Engine) ErrorOccurred() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errorFlag
}

// IsBGThreadRunning reports whether a background run is in flight.
func (e *Engine) IsBGThreadRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) startRun() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	if e.ckt == nil {
		e.stderr.WriteString("Error: there aren't any circuits loaded.\n")
		e.mu.Unlock()
		return
	}
	ckt := e.ckt
	e.running = true
	e.errorFlag = false
	e.halted.Store(false)
	done := make(chan struct{})
	e.done = done
	e.mu.Unlock()

	go func() {
		defer close(done)
		solution, err := ckt.solveOP(&e.halted)

		e.mu.Lock()
		defer e.mu.Unlock()
		e.running = false
		switch {
		case err == errHalted:
			// Deliberate halt, no diagnostics.
		case err != nil:
			e.errorFlag = true
			e.stderr.WriteString(fmt.Sprintf("Error: %v\n", err))
		default:
			e.vectors = ckt.resultVectors(solution)
		}
	}()
}
