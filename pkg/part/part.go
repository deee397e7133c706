package part

import "strings"

// PropertyDef declares a named part property together with the unit symbol
// its values are written in (e.g. name "power", symbol "W").
type PropertyDef struct {
	Name   string
	Symbol string
}

// Connector is one terminal of a Part. Name and Description are the shared
// semantic labels from the parts library ("+", "pin 1", "V probe", "VCC");
// Connected reports whether the terminal is wired to anything.
type Connector struct {
	Name        string
	Description string
	Connected   bool
	Part        *Part
}

// Part is a transient reference to one circuit component instance. The part
// editor owns the instance; this package never mutates it.
//
// Title is the stable instance title, unique within one simulation run.
// RawFamily keeps the editor's free-text classification because some rules
// need qualifiers the enum drops (e.g. "bidirectional" capacitors).
// SpiceTemplate is the device's netlist template; it contains the
// {instanceTitle} placeholder and {netN} placeholders for its terminals.
type Part struct {
	Title         string
	Family        Family
	RawFamily     string
	Properties    map[string]string
	PropertyDefs  []PropertyDef
	SpiceTemplate string
	Connectors    []*Connector
}

// Property returns the part's value for the named property, matching the
// property name case-insensitively. Returns "" when undeclared.
func (p *Part) Property(name string) string {
	for k, v := range p.Properties {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// PropertySymbol returns the unit symbol declared for the named property, or
// "" when the property has no definition.
func (p *Part) PropertySymbol(name string) string {
	for _, def := range p.PropertyDefs {
		if strings.EqualFold(def.Name, name) {
			return def.Symbol
		}
	}
	return ""
}

// ConnectorByRole resolves a connector by matching its shared name or shared
// description, case-insensitively, against the given role labels. Returns nil
// when no connector matches; callers treat an unresolved required role as
// "skip this part", not as an error.
func (p *Part) ConnectorByRole(labels ...string) *Connector {
	for _, c := range p.Connectors {
		for _, label := range labels {
			if strings.EqualFold(c.Name, label) || strings.EqualFold(c.Description, label) {
				return c
			}
		}
	}
	return nil
}

// Simulable reports whether the part takes part in simulation: it must carry
// a spice template and have at least one wired connector. Scene items like
// wires, labels and boards fail this predicate.
func (p *Part) Simulable() bool {
	if strings.TrimSpace(p.SpiceTemplate) == "" {
		return false
	}
	for _, c := range p.Connectors {
		if c.Connected {
			return true
		}
	}
	return false
}
