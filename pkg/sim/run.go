package sim

import (
	"context"
	"errors"

	"github.com/opencircuitlab/circuitscope/pkg/engine"
	"github.com/opencircuitlab/circuitscope/pkg/netlist"
	"github.com/opencircuitlab/circuitscope/pkg/rules"
)

// runOnce performs one complete simulation cycle on the worker goroutine.
// Requests queued before a Stop or disable are discarded.
func (s *Simulator) runOnce() {
	s.mu.Lock()
	if !s.enabled || !s.simulating {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	s.simulate(ctx)

	s.mu.Lock()
	s.running = false
	s.cancel = nil
	s.mu.Unlock()
	cancel()

	if s.events.RunCompleted != nil {
		s.events.RunCompleted()
	}
}

// simulate drives one run. Every failure path stops the simulation as well,
// so edits do not keep rerunning a circuit that cannot simulate.
func (s *Simulator) simulate(ctx context.Context) {
	if err := s.adapter.Init(); err != nil {
		s.logf("sim: engine init failed: %v", err)
		s.warn(err.Error(), "")
		s.stopSimulating()
		return
	}

	snap, err := s.source.Snapshot()
	if err != nil {
		s.logf("sim: snapshot failed: %v", err)
		s.warn(err.Error(), "")
		s.stopSimulating()
		return
	}

	text, err := netlist.Generate(snap.Title, snap.Parts, snap.Nets)
	if err != nil {
		s.logf("sim: netlist generation failed: %v", err)
		s.warn(err.Error(), "")
		s.stopSimulating()
		return
	}

	if err := s.adapter.ResetAndLoad(text); err != nil {
		var lerr *engine.LoadError
		if errors.As(err, &lerr) {
			s.warn(lerr.Log, lerr.Netlist)
		} else {
			s.warn(err.Error(), text)
		}
		s.stopSimulating()
		s.presenter.Clear()
		return
	}
	if err := s.adapter.Run(); err != nil {
		s.warn(err.Error(), text)
		s.stopSimulating()
		s.presenter.Clear()
		return
	}

	// The engine solves in the background; the net map and the view bridge
	// are built in the meantime.
	nets := netlist.BuildNetMap(snap.Nets)
	bridge, err := NewViewBridge(snap.Mirror)
	if err != nil {
		s.adapter.Halt()
		s.warn(err.Error(), text)
		s.stopSimulating()
		s.presenter.Clear()
		return
	}

	if err := s.adapter.WaitDone(ctx, s.poll, s.timeout); err != nil {
		if errors.Is(err, engine.ErrTimeout) {
			ferr := s.adapter.FatalError()
			s.warn(ferr.Log, ferr.Netlist)
			s.stopSimulating()
			s.presenter.Clear()
			return
		}
		// Stopped or disabled mid-run: discard silently.
		s.logf("sim: run aborted: %v", err)
		return
	}

	if s.adapter.Failed() {
		ferr := s.adapter.FatalError()
		s.warn(ferr.Log, ferr.Netlist)
		s.stopSimulating()
		s.presenter.Clear()
		return
	}

	s.present(snap, nets, bridge)
}

// present evaluates every simulable part and pushes the results out.
// Previous indicators are wiped first so stale faults never survive a
// clean run.
func (s *Simulator) present(snap *Snapshot, nets netlist.NetMap, bridge *ViewBridge) {
	s.presenter.Clear()

	env := rules.Env{Reader: s.adapter, Nets: nets}
	for _, p := range snap.Parts {
		if !p.Simulable() {
			continue
		}
		res := rules.Evaluate(env, p)
		if res.Verdict == rules.Skipped {
			if res.Reason != "" {
				s.logf("sim: %s skipped: %s", p.Title, res.Reason)
			}
			continue
		}

		mirror, _ := bridge.Mirror(p)
		if res.Verdict == rules.OutOfSpec {
			s.presenter.ShowFault(p, mirror, res.Reason)
		}
		if res.HasBrightness {
			s.presenter.SetBrightness(p, mirror, res.Brightness)
		}
		if res.HasDisplay {
			s.presenter.ShowDisplay(p, mirror, res.Display)
		}
		if res.Rotation != rules.RotationNone {
			s.presenter.ShowRotation(p, mirror, res.Rotation)
		}
	}
}
