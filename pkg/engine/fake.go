package engine

import "sync"

// FakeEngine is an in-memory Engine useful for unit tests. It records every
// command and netlist it receives and serves vectors from a scripted map.
// Behavior knobs (InitErr, RunningPolls, Fatal, log text) let tests drive
// the adapter through each lifecycle branch deterministically.
type FakeEngine struct {
	mu sync.Mutex

	// Scripted behavior.
	InitErr      error
	Vectors      map[string]float64
	StdoutText   string
	StderrText   string
	LoadStdout   string // log text produced by LoadCircuit
	LoadStderr   string
	Fatal        bool
	RunningPolls int // IsBGThreadRunning calls reporting true after bg_run; -1 = forever

	// Recorded activity.
	Commands  []string
	Netlists  []string
	InitCalls int
	LogClears int

	running int
}

// NewFakeEngine returns a fake with an empty vector table.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{Vectors: make(map[string]float64)}
}

func (f *FakeEngine) Init() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InitCalls++
	return f.InitErr
}

func (f *FakeEngine) Command(cmd string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Commands = append(f.Commands, cmd)
	switch cmd {
	case "bg_run":
		f.running = f.RunningPolls
	case "bg_halt":
		f.running = 0
	}
	return nil
}

func (f *FakeEngine) LoadCircuit(netlist string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Netlists = append(f.Netlists, netlist)
	f.StdoutText += f.LoadStdout
	f.StderrText += f.LoadStderr
	return nil
}

func (f *FakeEngine) VectorInfo(name string) []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.Vectors[name]
	if !ok {
		return nil
	}
	return []float64{v}
}

func (f *FakeEngine) ClearLog() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LogClears++
	f.StdoutText = ""
	f.StderrText = ""
}

func (f *FakeEngine) Log(stderr bool) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stderr {
		return f.StderrText
	}
	return f.StdoutText
}

func (f *FakeEngine) ErrorOccurred() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Fatal
}

func (f *FakeEngine) IsBGThreadRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running < 0 {
		return true
	}
	if f.running > 0 {
		f.running--
		return true
	}
	return false
}

// CommandCount returns how many times the given command was issued.
func (f *FakeEngine) CommandCount(cmd string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Commands {
		if c == cmd {
			n++
		}
	}
	return n
}

// SetLog overwrites the scripted log buffers.
func (f *FakeEngine) SetLog(stdout, stderr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StdoutText = stdout
	f.StderrText = stderr
}
