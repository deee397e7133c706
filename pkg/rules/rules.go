// Package rules decides, per simulated part, whether the part operates
// within its declared ratings, and derives the display values the editor
// renders (multimeter readings, LED brightness, motor rotation).
package rules

import (
	"math"
	"strings"

	"github.com/opencircuitlab/circuitscope/pkg/netlist"
	"github.com/opencircuitlab/circuitscope/pkg/part"
	"github.com/opencircuitlab/circuitscope/pkg/probe"
)

// Verdict classifies one part after a simulation run.
type Verdict int

const (
	// Skipped: the part has no rule, a required connector role could not be
	// resolved, or quantity extraction failed. Silent, never a fault.
	Skipped Verdict = iota
	WithinSpec
	OutOfSpec
)

func (v Verdict) String() string {
	switch v {
	case WithinSpec:
		return "within spec"
	case OutOfSpec:
		return "out of spec"
	default:
		return "skipped"
	}
}

// Rotation is the motor activity indicator derived for DC motors.
type Rotation int

const (
	RotationNone Rotation = iota
	RotationCW
	RotationCCW
)

func (r Rotation) String() string {
	switch r {
	case RotationCW:
		return "cw"
	case RotationCCW:
		return "ccw"
	default:
		return "none"
	}
}

// Result is the outcome of evaluating one part. It is transient: the
// presenter consumes it immediately and nothing retains it across runs.
type Result struct {
	Part    *part.Part
	Verdict Verdict
	Reason  string // set when OutOfSpec or Skipped-with-cause

	Display    string // multimeter screen text
	HasDisplay bool

	Brightness    float64 // LED brightness ratio in [0,1]
	HasBrightness bool

	Rotation Rotation
}

// Env carries the per-run context a rule needs: the vector reader and the
// connector-to-net mapping. Both are rebuilt for every run.
type Env struct {
	Reader probe.Reader
	Nets   netlist.NetMap
}

// batterySafetyMargin derates the theoretical short-circuit current of a
// voltage source; delivering more than this fraction counts as a fault.
const batterySafetyMargin = 0.1

type ruleFunc func(Env, *part.Part) Result

// ruleTable is the closed family dispatch. Families without an entry are
// skipped silently; unknown parts are not an error.
var ruleTable = map[part.Family]ruleFunc{
	part.FamilyCapacitor:      evalCapacitor,
	part.FamilyDiode:          evalDiode,
	part.FamilyLED:            evalLED,
	part.FamilyResistor:       evalResistor,
	part.FamilyPotentiometer:  evalPotentiometer,
	part.FamilyBattery:        evalBattery,
	part.FamilyLineSensor:     evalSensor,
	part.FamilyDistanceSensor: evalSensor,
	part.FamilyMotor:          evalMotor,
	part.FamilyMultimeter:     evalMultimeter,
}

// Evaluate runs the family rule for the part. Extraction failures are
// isolated: they yield a Skipped result carrying the cause instead of
// aborting the caller's loop over the remaining parts.
func Evaluate(env Env, p *part.Part) Result {
	rule, ok := ruleTable[p.Family]
	if !ok {
		return Result{Part: p, Verdict: Skipped}
	}
	return rule(env, p)
}

func skip(p *part.Part, reason string) Result {
	return Result{Part: p, Verdict: Skipped, Reason: reason}
}

func evalCapacitor(env Env, p *part.Part) Result {
	pos := p.ConnectorByRole("+")
	neg := p.ConnectorByRole("-")
	if pos == nil || neg == nil {
		return skip(p, "")
	}

	maxV := part.MaxPropertyValue(p, "voltage")
	v := probe.VoltageBetween(env.Reader, env.Nets, pos, neg)

	if strings.Contains(strings.ToLower(p.RawFamily), "bidirectional") {
		// Ceramic or otherwise non-polarized capacitor.
		if math.Abs(v) > maxV {
			return Result{Part: p, Verdict: OutOfSpec, Reason: "voltage above rating"}
		}
		return Result{Part: p, Verdict: WithinSpec}
	}

	// Electrolytic or tantalum: derated to half the rating, no reverse bias.
	if v > maxV/2 {
		return Result{Part: p, Verdict: OutOfSpec, Reason: "voltage above derated rating"}
	}
	if v < 0 {
		return Result{Part: p, Verdict: OutOfSpec, Reason: "reverse polarity"}
	}
	return Result{Part: p, Verdict: WithinSpec}
}

func evalDiode(env Env, p *part.Part) Result {
	maxPower := part.MaxPropertyValue(p, "power")
	power := probe.Power(env.Reader, p, "")
	if power > maxPower {
		return Result{Part: p, Verdict: OutOfSpec, Reason: "power above rating"}
	}
	return Result{Part: p, Verdict: WithinSpec}
}

func evalResistor(env Env, p *part.Part) Result {
	maxPower := part.MaxPropertyValue(p, "power")
	power := probe.Power(env.Reader, p, "")
	if power > maxPower {
		return Result{Part: p, Verdict: OutOfSpec, Reason: "power above rating"}
	}
	return Result{Part: p, Verdict: WithinSpec}
}

func evalLED(env Env, p *part.Part) Result {
	curr, err := probe.Current(env.Reader, p, "")
	if err != nil {
		return skip(p, err.Error())
	}
	maxCurr := part.MaxPropertyValue(p, "current")

	brightness := curr / maxCurr
	if brightness < 0 {
		brightness = 0
	}
	if brightness > 1 {
		brightness = 1
	}

	if curr > maxCurr {
		return Result{
			Part:          p,
			Verdict:       OutOfSpec,
			Reason:        "current above rating",
			Brightness:    0,
			HasBrightness: true,
		}
	}
	return Result{Part: p, Verdict: WithinSpec, Brightness: brightness, HasBrightness: true}
}

func evalPotentiometer(env Env, p *part.Part) Result {
	// Two spice lines, one per half of the track.
	maxPower := part.MaxPropertyValue(p, "power")
	power := probe.Power(env.Reader, p, "A") + probe.Power(env.Reader, p, "B")
	if power > maxPower {
		return Result{Part: p, Verdict: OutOfSpec, Reason: "power above rating"}
	}
	return Result{Part: p, Verdict: WithinSpec}
}

func evalBattery(env Env, p *part.Part) Result {
	voltage := part.MaxPropertyValue(p, "voltage")
	resistance := part.MaxPropertyValue(p, "internal resistance")
	maxCurrent := voltage / resistance * batterySafetyMargin

	current, err := probe.Current(env.Reader, p, "")
	if err != nil {
		return skip(p, err.Error())
	}
	if math.Abs(current) > maxCurrent {
		return Result{Part: p, Verdict: OutOfSpec, Reason: "short circuit"}
	}
	return Result{Part: p, Verdict: WithinSpec}
}

func evalSensor(env Env, p *part.Part) Result {
	vcc := p.ConnectorByRole("vcc", "supply voltage")
	gnd := p.ConnectorByRole("gnd", "ground")
	out := p.ConnectorByRole("out", "output voltage")
	if vcc == nil || gnd == nil || out == nil {
		return skip(p, "")
	}

	maxV := part.MaxPropertyValue(p, "voltage (max)")
	maxIout := part.MaxPropertyValue(p, "max output current")

	v := probe.VoltageBetween(env.Reader, env.Nets, vcc, gnd)

	var i float64
	var err error
	if p.Family == part.FamilyLineSensor {
		// Digital sensor: push-pull output modelled by a transistor.
		i, err = probe.TransistorCurrent(env.Reader, "q"+strings.ToLower(p.Title), probe.Collector)
	} else {
		// Analogue sensor: a voltage source and a series resistor.
		i, err = probe.Current(env.Reader, p, "a")
	}
	if err != nil {
		return skip(p, err.Error())
	}

	if v > maxV || v < 0 {
		return Result{Part: p, Verdict: OutOfSpec, Reason: "supply voltage out of range"}
	}
	if math.Abs(i) > maxIout {
		return Result{Part: p, Verdict: OutOfSpec, Reason: "output current above rating"}
	}
	return Result{Part: p, Verdict: WithinSpec}
}

func evalMotor(env Env, p *part.Part) Result {
	t1 := p.ConnectorByRole("pin 1")
	t2 := p.ConnectorByRole("pin 2")
	if t1 == nil || t2 == nil {
		return skip(p, "")
	}

	maxV := part.MaxPropertyValue(p, "voltage (max)")
	minV := part.MaxPropertyValue(p, "voltage (min)")

	v := probe.VoltageBetween(env.Reader, env.Nets, t1, t2)
	if math.Abs(v) > maxV {
		return Result{Part: p, Verdict: OutOfSpec, Reason: "voltage above rating"}
	}

	res := Result{Part: p, Verdict: WithinSpec}
	if math.Abs(v) >= minV {
		if v > 0 {
			res.Rotation = RotationCW
		} else {
			res.Rotation = RotationCCW
		}
	}
	return res
}
