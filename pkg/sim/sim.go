// Package sim coordinates interactive circuit simulation: it debounces
// editor changes into single runs, drives the engine adapter through one
// load-run-poll cycle per run, evaluates the constraint rules and pushes the
// outcome to the presenter.
package sim

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/opencircuitlab/circuitscope/pkg/engine"
	"github.com/opencircuitlab/circuitscope/pkg/netlist"
	"github.com/opencircuitlab/circuitscope/pkg/part"
	"github.com/opencircuitlab/circuitscope/pkg/rules"
)

// Reference timing of the interactive loop.
const (
	DefaultDebounce = 500 * time.Millisecond
	DefaultTimeout  = 3000 * time.Millisecond
	DefaultPoll     = 1 * time.Millisecond
)

// State is the scheduler's observable state.
type State int

const (
	// Disabled: the master switch is off; triggers are ignored.
	Disabled State = iota
	// Stopped: enabled but not simulating; circuit edits are ignored
	// until Start or a re-enable.
	Stopped
	// Idle: simulating, no pending timer, no run in flight.
	Idle
	// Armed: a change arrived and the debounce timer is counting down.
	Armed
	// Running: a simulation run is in flight.
	Running
)

func (s State) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case Stopped:
		return "stopped"
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Snapshot is one consistent picture of the circuit being edited. The
// scheduler asks for a fresh one at the start of every run, never caching
// across runs.
type Snapshot struct {
	Title string
	Parts []*part.Part
	Nets  []netlist.Net

	// Mirror lists the counterpart view's parts, used to bridge indicators
	// to the second view. Nil when the editor has a single view.
	Mirror []*part.Part
}

// CircuitSource hands out snapshots of the circuit under edit.
type CircuitSource interface {
	Snapshot() (*Snapshot, error)
}

// Presenter is the boundary to the editor's rendering layer. Every call
// carries the part in the simulated view and, when the bridge resolved one,
// its twin in the counterpart view (nil otherwise).
type Presenter interface {
	ShowFault(p, mirror *part.Part, reason string)
	ShowDisplay(p, mirror *part.Part, text string)
	SetBrightness(p, mirror *part.Part, ratio float64)
	ShowRotation(p, mirror *part.Part, rotation rules.Rotation)

	// Clear removes every simulation indicator from both views.
	Clear()
}

// Events are optional notifications. Nil callbacks are skipped.
type Events struct {
	EnabledChanged    func(bool)
	SimulatingChanged func(bool)

	// RunCompleted fires after every run finishes, successful or not.
	RunCompleted func()
}

// Options tune a Simulator. Zero durations fall back to the defaults above.
type Options struct {
	Debounce time.Duration
	Timeout  time.Duration
	Poll     time.Duration

	Events Events

	// Warning receives the engine's diagnostic text and the netlist when a
	// run fails (load rejection, timeout, fatal engine state). Nil drops
	// the report.
	Warning func(logText, netlistText string)

	// Logger receives progress lines; nil means silent.
	Logger *log.Logger
}

// Simulator owns the debounce timer, the single worker goroutine that
// serializes runs, and the engine adapter. All exported methods are safe for
// concurrent use.
type Simulator struct {
	adapter   *engine.Adapter
	source    CircuitSource
	presenter Presenter

	debounce time.Duration
	timeout  time.Duration
	poll     time.Duration
	events   Events
	warning  func(string, string)
	logger   *log.Logger

	mu         sync.Mutex
	enabled    bool
	simulating bool
	running    bool
	armed      bool
	timer      *time.Timer
	cancel     context.CancelFunc

	runCh chan struct{}
	quit  chan struct{}
	wg    sync.WaitGroup
}

// New builds a Simulator around an injected engine handle and starts its
// worker goroutine. The simulator begins disabled; call SetEnabled(true) to
// arm it. Call Close when done.
func New(eng engine.Engine, source CircuitSource, presenter Presenter, opts Options) *Simulator {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Poll <= 0 {
		opts.Poll = DefaultPoll
	}

	s := &Simulator{
		adapter:   engine.NewAdapter(eng),
		source:    source,
		presenter: presenter,
		debounce:  opts.Debounce,
		timeout:   opts.Timeout,
		poll:      opts.Poll,
		events:    opts.Events,
		warning:   opts.Warning,
		logger:    opts.Logger,
		runCh:     make(chan struct{}, 1),
		quit:      make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

// Close shuts the worker down and waits for any in-flight run to unwind.
func (s *Simulator) Close() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.armed = false
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	close(s.quit)
	s.wg.Wait()
}

// SetEnabled flips the master switch. Enabling starts simulating and kicks
// off an immediate run; disabling stops simulating, cancels any pending
// timer and in-flight run and clears all indicators from both views.
func (s *Simulator) SetEnabled(enabled bool) {
	s.mu.Lock()
	if s.enabled == enabled {
		s.mu.Unlock()
		return
	}
	s.enabled = enabled
	wasSimulating := s.simulating
	s.simulating = enabled
	if !enabled {
		s.stopLocked()
	}
	s.mu.Unlock()

	if s.events.EnabledChanged != nil {
		s.events.EnabledChanged(enabled)
	}
	if wasSimulating != enabled && s.events.SimulatingChanged != nil {
		s.events.SimulatingChanged(enabled)
	}
	if enabled {
		s.requestRun()
	} else {
		s.presenter.Clear()
	}
}

// Enabled reports the master switch.
func (s *Simulator) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Simulating reports the activity flag: whether circuit edits currently
// schedule runs. Set by Start and enable, cleared by Stop, disable and
// failed runs.
func (s *Simulator) Simulating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.simulating
}

// State derives the scheduler state from the internal flags.
func (s *Simulator) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case !s.enabled:
		return Disabled
	case s.running:
		return Running
	case !s.simulating:
		return Stopped
	case s.armed:
		return Armed
	default:
		return Idle
	}
}

// Trigger notes that the circuit changed. Repeated triggers inside the
// debounce window collapse into a single run timed from the last trigger.
// Ignored unless the simulation is active: a stopped simulator does not
// react to edits.
func (s *Simulator) Trigger() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled || !s.simulating {
		return
	}
	s.armed = true
	if s.timer == nil {
		s.timer = time.AfterFunc(s.debounce, s.timerFired)
		return
	}
	s.timer.Reset(s.debounce)
}

// Start resumes simulating after a Stop and requests an immediate run,
// bypassing the debounce window. Ignored while disabled.
func (s *Simulator) Start() {
	s.mu.Lock()
	if !s.enabled {
		s.mu.Unlock()
		return
	}
	wasSimulating := s.simulating
	s.simulating = true
	s.mu.Unlock()

	if !wasSimulating && s.events.SimulatingChanged != nil {
		s.events.SimulatingChanged(true)
	}
	s.requestRun()
}

// Stop halts the simulation: the pending timer is cancelled, an in-flight
// run is aborted and its results discarded, every indicator is removed,
// and circuit edits no longer schedule runs until Start or a re-enable.
// The master switch stays on.
func (s *Simulator) Stop() {
	s.mu.Lock()
	wasSimulating := s.simulating
	s.simulating = false
	s.stopLocked()
	s.mu.Unlock()

	if wasSimulating && s.events.SimulatingChanged != nil {
		s.events.SimulatingChanged(false)
	}
	s.presenter.Clear()
}

// stopSimulating drops the activity flag after a failed run, so edits stop
// retriggering a broken circuit until the user starts the simulation again.
func (s *Simulator) stopSimulating() {
	s.mu.Lock()
	wasSimulating := s.simulating
	s.simulating = false
	s.mu.Unlock()

	if wasSimulating && s.events.SimulatingChanged != nil {
		s.events.SimulatingChanged(false)
	}
}

func (s *Simulator) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.armed = false
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Simulator) timerFired() {
	s.mu.Lock()
	if !s.armed || !s.enabled || !s.simulating {
		s.mu.Unlock()
		return
	}
	s.armed = false
	s.mu.Unlock()
	s.requestRun()
}

// requestRun hands the worker a run request. The channel holds one pending
// request; if one is already queued the new request coalesces into it, since
// the worker snapshots the circuit only when the run actually starts.
func (s *Simulator) requestRun() {
	select {
	case s.runCh <- struct{}{}:
	default:
	}
}

func (s *Simulator) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.quit:
			return
		case <-s.runCh:
			s.runOnce()
		}
	}
}

func (s *Simulator) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

func (s *Simulator) warn(logText, netlistText string) {
	if s.warning != nil {
		s.warning(logText, netlistText)
	}
}
