// Package probe derives physical quantities (voltage, current, power) for
// circuit parts by composing engine result-vector names and reading them
// through a vector reader. Absent vectors read as 0.0; extraction never
// fails the run, only the malformed part.
package probe

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/opencircuitlab/circuitscope/pkg/netlist"
	"github.com/opencircuitlab/circuitscope/pkg/part"
)

// Reader reads the first element of a named engine result vector, returning
// 0.0 for vectors the engine never produced. *engine.Adapter satisfies it.
type Reader interface {
	VectorValue(name string) float64
}

// TemplateError reports a part whose spice template does not yield a device
// type: the {instanceTitle} placeholder is missing or is not preceded by a
// device letter.
type TemplateError struct {
	Part     string
	Template string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("probe: cannot derive device type of part %s from template %q", e.Part, e.Template)
}

// UnknownDeviceError reports a device-type code with no known current
// vector suffix.
type UnknownDeviceError struct {
	Part string
	Code byte
}

func (e *UnknownDeviceError) Error() string {
	return fmt.Sprintf("probe: unrecognized device type %q of part %s", e.Code, e.Part)
}

// InvalidDeviceError reports a device that cannot answer the requested
// quantity, e.g. a transistor-leg current asked of a non-transistor.
type InvalidDeviceError struct {
	Name   string
	Reason string
}

func (e *InvalidDeviceError) Error() string {
	return fmt.Sprintf("probe: %s: %s", e.Name, e.Reason)
}

// VoltageBetween returns V(net(c0)) − V(net(c1)). Net 0 is the ground
// reference and reads as exactly 0; other nets read from the "v(n)" vector,
// 0.0 when absent.
func VoltageBetween(r Reader, nets netlist.NetMap, c0, c1 *part.Connector) float64 {
	return nodeVoltage(r, nets.Index(c0)) - nodeVoltage(r, nets.Index(c1))
}

func nodeVoltage(r Reader, net int) float64 {
	if net == 0 {
		return 0.0
	}
	return r.VectorValue(fmt.Sprintf("v(%d)", net))
}

// Power returns the power dissipated by the part, read from the
// "@<title><subpart>[p]" vector. The subpart suffix selects one spice line
// of a multi-line part (a potentiometer's "A" or "B" half); leave it empty
// for single-line parts.
func Power(r Reader, p *part.Part, subpart string) float64 {
	name := "@" + strings.ToLower(p.Title+subpart) + "[p]"
	return r.VectorValue(name)
}

// Current returns the current flowing through the part. The vector name is
// composed from the device-type code and the instance title: self-naming
// devices (title already starting with the code letter, like "R1" for a
// resistor) keep their title; others get the code prepended, the way the
// engine names them (an LED titled "LED1" becomes "DLED1").
func Current(r Reader, p *part.Part, subpart string) (float64, error) {
	code, err := DeviceTypeCode(p)
	if err != nil {
		return 0, err
	}

	ref := strings.ToLower(p.Title + subpart)
	if ref != "" && ref[0] == code {
		ref = "@" + ref
	} else {
		ref = "@" + string(code) + ref
	}

	switch code {
	case 'd':
		ref += "[id]"
	case 'r', 'c', 'l', 'v', 'e', 'f', 'g', 'h', 'i':
		ref += "[i]"
	default:
		return 0, &UnknownDeviceError{Part: p.Title, Code: code}
	}
	return r.VectorValue(ref), nil
}

// Leg selects a transistor terminal for TransistorCurrent.
type Leg int

const (
	Base Leg = iota
	Collector
	Emitter
)

// TransistorCurrent returns the current into one leg of the named engine
// transistor. The name must be the engine-side device name and therefore
// start with 'q'.
func TransistorCurrent(r Reader, name string, leg Leg) (float64, error) {
	if name == "" || unicode.ToLower(rune(name[0])) != 'q' {
		return 0, &InvalidDeviceError{Name: name, Reason: "not a transistor, name does not start with q"}
	}

	ref := "@" + strings.ToLower(name)
	switch leg {
	case Base:
		ref += "[ib]"
	case Collector:
		ref += "[ic]"
	case Emitter:
		ref += "[ie]"
	default:
		return 0, &InvalidDeviceError{Name: name, Reason: fmt.Sprintf("unrecognized transistor leg %d", leg)}
	}
	return r.VectorValue(ref), nil
}

// DeviceTypeCode derives the part's single-letter SPICE device class from
// its template: the character immediately preceding the {instanceTitle}
// placeholder, lower-cased. A part may carry several spice lines; the first
// placeholder decides, which is why rule dispatch uses Family instead.
func DeviceTypeCode(p *part.Part) (byte, error) {
	idx := strings.Index(p.SpiceTemplate, netlist.InstanceTitlePlaceholder)
	if idx <= 0 {
		return 0, &TemplateError{Part: p.Title, Template: p.SpiceTemplate}
	}
	return byte(unicode.ToLower(rune(p.SpiceTemplate[idx-1]))), nil
}
