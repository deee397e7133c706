package sim

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/opencircuitlab/circuitscope/pkg/engine"
	"github.com/opencircuitlab/circuitscope/pkg/netlist"
	"github.com/opencircuitlab/circuitscope/pkg/part"
	"github.com/opencircuitlab/circuitscope/pkg/rules"
)

type recordingPresenter struct {
	mu         sync.Mutex
	faults     []string
	mirrors    []*part.Part
	displays   []string
	brightness []float64
	rotations  []rules.Rotation
	clears     int
}

func (r *recordingPresenter) ShowFault(p, mirror *part.Part, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faults = append(r.faults, p.Title+": "+reason)
	r.mirrors = append(r.mirrors, mirror)
}

func (r *recordingPresenter) ShowDisplay(p, mirror *part.Part, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.displays = append(r.displays, text)
}

func (r *recordingPresenter) SetBrightness(p, mirror *part.Part, ratio float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.brightness = append(r.brightness, ratio)
}

func (r *recordingPresenter) ShowRotation(p, mirror *part.Part, rotation rules.Rotation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rotations = append(r.rotations, rotation)
}

func (r *recordingPresenter) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
}

func (r *recordingPresenter) faultCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.faults)
}

func (r *recordingPresenter) brightnessCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.brightness)
}

func (r *recordingPresenter) clearCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clears
}

type staticSource struct {
	snap *Snapshot
	err  error
}

func (s *staticSource) Snapshot() (*Snapshot, error) { return s.snap, s.err }

type warningLog struct {
	mu       sync.Mutex
	logs     []string
	netlists []string
}

func (w *warningLog) record(logText, netlistText string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.logs = append(w.logs, logText)
	w.netlists = append(w.netlists, netlistText)
}

func (w *warningLog) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.logs)
}

func (w *warningLog) last() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.logs) == 0 {
		return ""
	}
	return w.logs[len(w.logs)-1]
}

// ledSnapshot builds a one-LED circuit: anode on net 1, cathode grounded.
func ledSnapshot(withMirror bool) *Snapshot {
	p := &part.Part{
		Title:         "LED1",
		Family:        part.FamilyLED,
		RawFamily:     "LED",
		SpiceTemplate: "D{instanceTitle} {net0} {net1} LED",
		Properties:    map[string]string{"current": "20mA"},
		PropertyDefs:  []part.PropertyDef{{Name: "current", Symbol: "A"}},
	}
	anode := &part.Connector{Name: "anode", Part: p, Connected: true}
	cathode := &part.Connector{Name: "cathode", Part: p, Connected: true}
	p.Connectors = []*part.Connector{anode, cathode}

	snap := &Snapshot{
		Title: "led test",
		Parts: []*part.Part{p},
		Nets:  []netlist.Net{{cathode}, {anode}},
	}
	if withMirror {
		snap.Mirror = []*part.Part{{Title: "LED1"}}
	}
	return snap
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestEnableRunsOnceAndPresentsFault(t *testing.T) {
	eng := engine.NewFakeEngine()
	eng.Vectors["@dled1[id]"] = 0.025 // above the 20mA rating

	pres := &recordingPresenter{}
	s := New(eng, &staticSource{snap: ledSnapshot(true)}, pres, Options{
		Debounce: 10 * time.Millisecond,
	})
	defer s.Close()

	s.SetEnabled(true)
	waitFor(t, "fault", func() bool { return pres.faultCount() == 1 })

	pres.mu.Lock()
	defer pres.mu.Unlock()
	if !strings.Contains(pres.faults[0], "current above rating") {
		t.Errorf("fault = %q, want current above rating", pres.faults[0])
	}
	if pres.mirrors[0] == nil || pres.mirrors[0].Title != "LED1" {
		t.Errorf("fault not bridged to the counterpart view")
	}
	if len(pres.brightness) != 1 || pres.brightness[0] != 0 {
		t.Errorf("brightness = %v, want single forced 0", pres.brightness)
	}
}

func TestDebounceCoalescesTriggers(t *testing.T) {
	eng := engine.NewFakeEngine()
	pres := &recordingPresenter{}
	s := New(eng, &staticSource{snap: ledSnapshot(false)}, pres, Options{
		Debounce: 50 * time.Millisecond,
	})
	defer s.Close()

	s.SetEnabled(true)
	waitFor(t, "initial run", func() bool {
		return eng.CommandCount("bg_run") == 1 && s.State() == Idle
	})

	var lastTrigger time.Time
	for i := 0; i < 5; i++ {
		s.Trigger()
		lastTrigger = time.Now()
		time.Sleep(10 * time.Millisecond)
	}

	waitFor(t, "debounced run", func() bool { return eng.CommandCount("bg_run") == 2 })
	if elapsed := time.Since(lastTrigger); elapsed < 50*time.Millisecond {
		t.Errorf("run fired %v after the last trigger, want >= 50ms", elapsed)
	}

	// No further runs may surface from the collapsed triggers.
	time.Sleep(150 * time.Millisecond)
	if n := eng.CommandCount("bg_run"); n != 2 {
		t.Errorf("bg_run issued %d times, want 2", n)
	}
}

func TestTimeoutHaltsOnceAndSkipsRules(t *testing.T) {
	eng := engine.NewFakeEngine()
	eng.RunningPolls = -1 // never finishes
	eng.Vectors["@dled1[id]"] = 0.01

	pres := &recordingPresenter{}
	warns := &warningLog{}
	s := New(eng, &staticSource{snap: ledSnapshot(false)}, pres, Options{
		Debounce: 10 * time.Millisecond,
		Timeout:  20 * time.Millisecond,
		Warning:  warns.record,
	})
	defer s.Close()

	s.SetEnabled(true)
	waitFor(t, "timeout warning", func() bool { return warns.count() == 1 })
	waitFor(t, "run teardown", func() bool { return s.State() == Stopped })

	if n := eng.CommandCount("bg_halt"); n != 1 {
		t.Errorf("bg_halt issued %d times, want exactly 1", n)
	}
	if pres.brightnessCount() != 0 || pres.faultCount() != 0 {
		t.Errorf("rules were evaluated after a timed-out run")
	}
	if pres.clearCount() == 0 {
		t.Errorf("indicators were not cleared after the timeout")
	}

	// The failed run stopped the simulation; edits must not rerun it.
	s.Trigger()
	time.Sleep(50 * time.Millisecond)
	if n := eng.CommandCount("bg_run"); n != 1 {
		t.Errorf("bg_run issued %d times, want no reruns after the failure", n)
	}
}

func TestLoadRejectionSurfacesWarning(t *testing.T) {
	eng := engine.NewFakeEngine()
	eng.LoadStdout = "Error: unknown device on line 2\n"

	pres := &recordingPresenter{}
	warns := &warningLog{}
	s := New(eng, &staticSource{snap: ledSnapshot(false)}, pres, Options{
		Warning: warns.record,
	})
	defer s.Close()

	s.SetEnabled(true)
	waitFor(t, "load warning", func() bool { return warns.count() == 1 })

	if !strings.Contains(warns.last(), "unknown device") {
		t.Errorf("warning = %q, want the engine's diagnostic text", warns.last())
	}
	if n := eng.CommandCount("bg_run"); n != 0 {
		t.Errorf("bg_run issued %d times after a rejected load, want 0", n)
	}
}

func TestAmbiguousMirrorTitleAbortsRun(t *testing.T) {
	eng := engine.NewFakeEngine()
	eng.RunningPolls = 3

	snap := ledSnapshot(false)
	snap.Mirror = []*part.Part{{Title: "LED1"}, {Title: "LED1"}}

	pres := &recordingPresenter{}
	warns := &warningLog{}
	s := New(eng, &staticSource{snap: snap}, pres, Options{Warning: warns.record})
	defer s.Close()

	s.SetEnabled(true)
	waitFor(t, "ambiguity warning", func() bool { return warns.count() == 1 })

	if !strings.Contains(warns.last(), "duplicate part title") {
		t.Errorf("warning = %q, want duplicate title report", warns.last())
	}
	if n := eng.CommandCount("bg_halt"); n != 1 {
		t.Errorf("bg_halt issued %d times, want 1", n)
	}
	if pres.faultCount() != 0 || pres.brightnessCount() != 0 {
		t.Errorf("results presented despite the aborted run")
	}
}

func TestDisableClearsBothViews(t *testing.T) {
	eng := engine.NewFakeEngine()
	pres := &recordingPresenter{}
	s := New(eng, &staticSource{snap: ledSnapshot(false)}, pres, Options{})
	defer s.Close()

	s.SetEnabled(true)
	waitFor(t, "initial run", func() bool {
		return eng.CommandCount("bg_run") == 1 && s.State() == Idle
	})

	before := pres.clearCount()
	s.SetEnabled(false)
	if s.State() != Disabled {
		t.Errorf("state = %v, want disabled", s.State())
	}
	if pres.clearCount() != before+1 {
		t.Errorf("disable did not clear the indicators")
	}

	s.Trigger()
	time.Sleep(30 * time.Millisecond)
	if n := eng.CommandCount("bg_run"); n != 1 {
		t.Errorf("trigger while disabled started a run")
	}
}

func TestStopDiscardsInFlightRun(t *testing.T) {
	eng := engine.NewFakeEngine()
	eng.RunningPolls = -1

	pres := &recordingPresenter{}
	warns := &warningLog{}
	s := New(eng, &staticSource{snap: ledSnapshot(false)}, pres, Options{
		Timeout: 5 * time.Second,
		Warning: warns.record,
	})
	defer s.Close()

	s.SetEnabled(true)
	waitFor(t, "run start", func() bool { return s.State() == Running })

	s.Stop()
	waitFor(t, "run teardown", func() bool { return s.State() == Stopped })

	if n := eng.CommandCount("bg_halt"); n != 1 {
		t.Errorf("bg_halt issued %d times, want 1", n)
	}
	if warns.count() != 0 {
		t.Errorf("warning raised for a deliberate stop")
	}
	if pres.faultCount() != 0 || pres.brightnessCount() != 0 {
		t.Errorf("results presented after the run was stopped")
	}
}

func TestStateTransitions(t *testing.T) {
	eng := engine.NewFakeEngine()
	pres := &recordingPresenter{}
	s := New(eng, &staticSource{snap: ledSnapshot(false)}, pres, Options{
		Debounce: time.Hour, // keep the timer pending
	})
	defer s.Close()

	if s.State() != Disabled {
		t.Fatalf("initial state = %v, want disabled", s.State())
	}

	s.SetEnabled(true)
	waitFor(t, "idle", func() bool { return s.State() == Idle })

	s.Trigger()
	if s.State() != Armed {
		t.Errorf("state after trigger = %v, want armed", s.State())
	}

	s.Stop()
	if s.State() != Stopped {
		t.Errorf("state after stop = %v, want stopped", s.State())
	}

	s.Start()
	waitFor(t, "idle after start", func() bool { return s.State() == Idle })
}

func TestTriggerAfterStopDoesNotRun(t *testing.T) {
	eng := engine.NewFakeEngine()
	pres := &recordingPresenter{}
	s := New(eng, &staticSource{snap: ledSnapshot(false)}, pres, Options{
		Debounce: 10 * time.Millisecond,
	})
	defer s.Close()

	s.SetEnabled(true)
	waitFor(t, "initial run", func() bool {
		return eng.CommandCount("bg_run") == 1 && s.State() == Idle
	})

	s.Stop()
	s.Trigger()
	time.Sleep(50 * time.Millisecond)
	if n := eng.CommandCount("bg_run"); n != 1 {
		t.Fatalf("bg_run issued %d times: a trigger after Stop started a run", n)
	}
	if s.Simulating() {
		t.Errorf("simulation reported active after Stop")
	}

	// Start resumes, and edits schedule runs again.
	s.Start()
	waitFor(t, "restarted run", func() bool { return eng.CommandCount("bg_run") == 2 })
	s.Trigger()
	waitFor(t, "triggered run", func() bool { return eng.CommandCount("bg_run") == 3 })
}

func TestSimulatingEventFollowsStartStop(t *testing.T) {
	eng := engine.NewFakeEngine()
	pres := &recordingPresenter{}

	var mu sync.Mutex
	var changes []bool
	s := New(eng, &staticSource{snap: ledSnapshot(false)}, pres, Options{
		Events: Events{
			SimulatingChanged: func(on bool) {
				mu.Lock()
				changes = append(changes, on)
				mu.Unlock()
			},
		},
	})
	defer s.Close()

	s.SetEnabled(true)
	waitFor(t, "initial run", func() bool {
		return eng.CommandCount("bg_run") == 1 && s.State() == Idle
	})
	s.Stop()
	s.Start()
	waitFor(t, "second run", func() bool {
		return eng.CommandCount("bg_run") == 2 && s.State() == Idle
	})

	mu.Lock()
	defer mu.Unlock()
	want := []bool{true, false, true}
	if len(changes) != len(want) {
		t.Fatalf("SimulatingChanged fired %d times (%v), want %v", len(changes), changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("change %d = %v, want %v", i, changes[i], want[i])
		}
	}
}
