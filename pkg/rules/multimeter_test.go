package rules

import (
	"testing"

	"github.com/opencircuitlab/circuitscope/pkg/netlist"
	"github.com/opencircuitlab/circuitscope/pkg/part"
)

func multimeterFixture(variant string, comWired, vWired, aWired bool) (*part.Part, netlist.NetMap) {
	p := &part.Part{
		Title:         "MM1",
		Family:        part.FamilyMultimeter,
		RawFamily:     "multimeter",
		SpiceTemplate: "V{instanceTitle} {net0} {net1} DC 0",
		Properties:    map[string]string{"variant": variant},
	}
	com := &part.Connector{Name: "COM probe", Part: p, Connected: comWired}
	v := &part.Connector{Name: "V probe", Part: p, Connected: vWired}
	a := &part.Connector{Name: "A probe", Part: p, Connected: aWired}
	p.Connectors = []*part.Connector{com, v, a}
	return p, netlist.NetMap{com: 1, v: 2, a: 3}
}

func TestMultimeterAllProbesWiredShowsErr(t *testing.T) {
	for _, variant := range []string{variantVoltmeter, variantAmmeter, variantOhmmeter} {
		p, nets := multimeterFixture(variant, true, true, true)
		res := Evaluate(Env{Reader: vectorMap{}, Nets: nets}, p)
		if !res.HasDisplay || res.Display != "ERR" {
			t.Errorf("%s: display = %q (has=%v), want ERR", variant, res.Display, res.HasDisplay)
		}
	}
}

func TestVoltmeterReadsProbeDifference(t *testing.T) {
	p, nets := multimeterFixture(variantVoltmeter, true, true, false)
	env := Env{Reader: vectorMap{"v(2)": 4.5, "v(1)": 0}, Nets: nets}

	res := Evaluate(env, p)
	if !res.HasDisplay || res.Display != " 4.500" {
		t.Errorf("display = %q, want %q", res.Display, " 4.500")
	}
}

func TestVoltmeterRejectsCurrentProbe(t *testing.T) {
	p, nets := multimeterFixture(variantVoltmeter, true, false, true)
	res := Evaluate(Env{Reader: vectorMap{}, Nets: nets}, p)
	if !res.HasDisplay || res.Display != "ERR" {
		t.Errorf("display = %q, want ERR when the A probe is wired on a voltmeter", res.Display)
	}
}

func TestVoltmeterIdleWithoutProbesShowsNothing(t *testing.T) {
	p, nets := multimeterFixture(variantVoltmeter, false, false, false)
	res := Evaluate(Env{Reader: vectorMap{}, Nets: nets}, p)
	if res.HasDisplay {
		t.Errorf("display = %q, want no display while unwired", res.Display)
	}
	if res.Verdict != WithinSpec {
		t.Errorf("verdict = %v, want within spec", res.Verdict)
	}
}

func TestAmmeterReadsSourceCurrent(t *testing.T) {
	p, nets := multimeterFixture(variantAmmeter, true, false, true)
	env := Env{Reader: vectorMap{"@vmm1[i]": 0.02}, Nets: nets}

	res := Evaluate(env, p)
	if !res.HasDisplay || res.Display != "20.00m" {
		t.Errorf("display = %q, want %q", res.Display, "20.00m")
	}
}

func TestAmmeterRejectsVoltageProbe(t *testing.T) {
	p, nets := multimeterFixture(variantAmmeter, true, true, false)
	res := Evaluate(Env{Reader: vectorMap{}, Nets: nets}, p)
	if !res.HasDisplay || res.Display != "ERR" {
		t.Errorf("display = %q, want ERR when the V probe is wired on an ammeter", res.Display)
	}
}

func TestOhmmeterDividesVoltageByCurrent(t *testing.T) {
	p, nets := multimeterFixture(variantOhmmeter, true, true, false)
	env := Env{Reader: vectorMap{"v(2)": 5.0, "v(1)": 0, "@vmm1[i]": 0.001}, Nets: nets}

	res := Evaluate(env, p)
	if !res.HasDisplay || res.Display != "5.000K" {
		t.Errorf("display = %q, want %q", res.Display, "5.000K")
	}
}

func TestMultimeterUnknownVariantSkips(t *testing.T) {
	p, nets := multimeterFixture("frequency counter", true, true, false)
	res := Evaluate(Env{Reader: vectorMap{}, Nets: nets}, p)
	if res.Verdict != Skipped {
		t.Errorf("verdict = %v, want skipped", res.Verdict)
	}
}
