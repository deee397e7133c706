package rules

import (
	"math"
	"strings"

	"github.com/opencircuitlab/circuitscope/pkg/part"
	"github.com/opencircuitlab/circuitscope/pkg/probe"
)

// Multimeter variants, matched against the part's "variant" property.
const (
	variantVoltmeter = "voltmeter (dc)"
	variantAmmeter   = "ammeter (dc)"
	variantOhmmeter  = "ohmmeter"
)

// evalMultimeter implements the three-probe protocol: a common probe, a
// voltage probe and a current probe. Wiring all three at once is always an
// error, as is wiring the probe the selected variant does not use.
func evalMultimeter(env Env, p *part.Part) Result {
	com := p.ConnectorByRole("com probe")
	vProbe := p.ConnectorByRole("v probe")
	aProbe := p.ConnectorByRole("a probe")
	if com == nil || vProbe == nil || aProbe == nil {
		return skip(p, "")
	}

	display := func(text string) Result {
		return Result{Part: p, Verdict: WithinSpec, Display: text, HasDisplay: true}
	}

	if com.Connected && vProbe.Connected && aProbe.Connected {
		return display("ERR")
	}

	switch strings.ToLower(p.Property("variant")) {
	case variantVoltmeter:
		if aProbe.Connected {
			return display("ERR")
		}
		if com.Connected && vProbe.Connected {
			v := probe.VoltageBetween(env.Reader, env.Nets, vProbe, com)
			return display(FormatReading(v))
		}
		return Result{Part: p, Verdict: WithinSpec}

	case variantAmmeter:
		if vProbe.Connected {
			return display("ERR")
		}
		a, err := probe.Current(env.Reader, p, "")
		if err != nil {
			return skip(p, err.Error())
		}
		return display(FormatReading(a))

	case variantOhmmeter:
		if aProbe.Connected {
			return display("ERR")
		}
		v := probe.VoltageBetween(env.Reader, env.Nets, vProbe, com)
		a, err := probe.Current(env.Reader, p, "")
		if err != nil {
			return skip(p, err.Error())
		}
		return display(FormatReading(math.Abs(v / a)))

	default:
		return skip(p, "")
	}
}
