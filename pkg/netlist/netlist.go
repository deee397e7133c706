// Package netlist builds the net mapping and the SPICE netlist text for one
// simulation run. Nets are rebuilt from scratch every run; nothing here is
// shared across runs.
package netlist

import (
	"fmt"
	"strings"

	"github.com/opencircuitlab/circuitscope/pkg/part"
)

// Net is an equivalence class of connectors held at the same electrical
// potential. Net 0 is by convention the ground/reference net.
type Net []*part.Connector

// NetMap maps each connector to the index of the net it belongs to within
// one simulation run.
type NetMap map[*part.Connector]int

// BuildNetMap indexes every connector of the given nets by net position.
// The net slice order defines the indexes; callers put the ground net first.
func BuildNetMap(nets []Net) NetMap {
	m := make(NetMap)
	for i, net := range nets {
		for _, c := range net {
			m[c] = i
		}
	}
	return m
}

// Index returns the net index for a connector. A connector that was never
// seen in any net reads as net 0 (ground). This is a documented
// simplification, not a verified invariant: callers that care must check
// membership themselves.
func (m NetMap) Index(c *part.Connector) int {
	return m[c]
}

// InstanceTitlePlaceholder is the token inside a spice template that is
// replaced by the part's instance title. The character immediately before it
// is the SPICE device-type code.
const InstanceTitlePlaceholder = "{instanceTitle}"

// Generate renders the SPICE netlist for the given parts and nets: a title
// line, one template expansion per simulable part, the operating-point
// directive and the .end terminator. Parts without a spice template or with
// no wired connector are left out.
func Generate(title string, parts []*part.Part, nets []Net) (string, error) {
	netMap := BuildNetMap(nets)

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")

	for _, p := range parts {
		if !p.Simulable() {
			continue
		}
		line, err := expandTemplate(p, netMap)
		if err != nil {
			return "", err
		}
		b.WriteString(line)
		if !strings.HasSuffix(line, "\n") {
			b.WriteString("\n")
		}
	}

	b.WriteString(".op\n")
	b.WriteString(".end\n")
	return b.String(), nil
}

// expandTemplate substitutes {instanceTitle} and the per-terminal {netN}
// tokens in the part's spice template.
//
// When the title already starts with the template's device letter the letter
// is not doubled: "R{instanceTitle}" with title "R1" yields the device "R1",
// not "RR1". This keeps the generated device names exactly those the
// quantity-extraction vector grammar composes, for self-named and prefixed
// parts alike.
func expandTemplate(p *part.Part, netMap NetMap) (string, error) {
	line := expandTitle(p.SpiceTemplate, p.Title)
	// Highest ordinal first so {net1} cannot eat the prefix of {net10}.
	for i := len(p.Connectors) - 1; i >= 0; i-- {
		token := fmt.Sprintf("{net%d}", i)
		line = strings.ReplaceAll(line, token, fmt.Sprintf("%d", netMap.Index(p.Connectors[i])))
	}
	if strings.Contains(line, "{net") {
		return "", fmt.Errorf("netlist: part %s: template references a terminal the part does not have: %s", p.Title, p.SpiceTemplate)
	}
	return line, nil
}

func expandTitle(template, title string) string {
	var b strings.Builder
	rest := template
	for {
		idx := strings.Index(rest, InstanceTitlePlaceholder)
		if idx < 0 {
			b.WriteString(rest)
			return b.String()
		}
		head := rest[:idx]
		if title != "" && idx > 0 && strings.EqualFold(head[idx-1:], title[:1]) {
			head = head[:idx-1]
		}
		b.WriteString(head)
		b.WriteString(title)
		rest = rest[idx+len(InstanceTitlePlaceholder):]
	}
}
