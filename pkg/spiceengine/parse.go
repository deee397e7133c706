package spiceengine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/opencircuitlab/circuitscope/pkg/part"
)

// sourceLine is one logical netlist line after continuation joining.
type sourceLine struct {
	text string
	num  int // 1-based line number of the first physical line
}

// parseNetlist turns SPICE netlist text into a resolved circuit. The first
// line is the title; "*" starts a comment; "+" continues the previous line.
// Numeric node labels keep their number (0 is ground), named labels are
// assigned indexes above the numeric range.
func parseNetlist(text string) (*circuit, error) {
	physical := strings.Split(text, "\n")
	if len(physical) == 0 {
		return nil, fmt.Errorf("empty netlist")
	}

	var lines []sourceLine
	for i, raw := range physical {
		if i == 0 {
			continue // title
		}
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "*") {
			continue
		}
		if strings.HasPrefix(trimmed, "+") {
			if len(lines) == 0 {
				return nil, fmt.Errorf("continuation on line %d without a previous line", i+1)
			}
			last := &lines[len(lines)-1]
			last.text += " " + strings.TrimSpace(trimmed[1:])
			continue
		}
		lines = append(lines, sourceLine{text: strings.ToLower(trimmed), num: i + 1})
	}

	p := &netlistParser{
		ckt:    &circuit{title: strings.TrimSpace(physical[0])},
		models: map[string]*model{},
	}

	// Models first, so device lines can reference cards written below them.
	for _, ln := range lines {
		if strings.HasPrefix(ln.text, ".model") {
			if err := p.parseModel(ln); err != nil {
				return nil, err
			}
		}
	}
	for _, ln := range lines {
		if strings.HasPrefix(ln.text, ".") {
			continue // .model handled above; .op/.end and other cards ignored
		}
		if err := p.parseDevice(ln); err != nil {
			return nil, err
		}
	}

	if len(p.ckt.devices) == 0 {
		return nil, fmt.Errorf("netlist contains no devices")
	}
	p.resolveNodes()
	return p.ckt, nil
}

type netlistParser struct {
	ckt    *circuit
	labels [][]string // node labels per device, resolved after parsing
	models map[string]*model
}

// resolveNodes assigns matrix indexes to node labels. Numeric labels keep
// their number with 0 as ground; named labels are placed above the highest
// numeric label seen anywhere in the netlist. Resolution runs after every
// line has been read, so a named label can never collide with a numeric
// label appearing further down.
func (p *netlistParser) resolveNodes() {
	nodes := map[string]int{"0": 0, "gnd": 0}
	maxNode := 0
	for _, labels := range p.labels {
		for _, label := range labels {
			if _, ok := nodes[label]; ok {
				continue
			}
			if n, err := strconv.Atoi(label); err == nil && n >= 0 {
				nodes[label] = n
				if n > maxNode {
					maxNode = n
				}
			}
		}
	}

	for i, d := range p.ckt.devices {
		d.nodes = make([]int, len(p.labels[i]))
		for j, label := range p.labels[i] {
			idx, ok := nodes[label]
			if !ok {
				maxNode++
				idx = maxNode
				nodes[label] = idx
			}
			d.nodes[j] = idx
		}
	}
	p.ckt.maxNode = maxNode
}

func errLine(ln sourceLine, format string, args ...interface{}) error {
	return fmt.Errorf("on line %d: %s", ln.num, fmt.Sprintf(format, args...))
}

// parseModel handles ".model NAME TYPE (key=value ...)"; parentheses are
// optional.
func (p *netlistParser) parseModel(ln sourceLine) error {
	body := strings.NewReplacer("(", " ", ")", " ", "=", " = ").Replace(ln.text)
	fields := strings.Fields(body)
	if len(fields) < 3 {
		return errLine(ln, "malformed .model card")
	}

	m := defaultDiodeModel(fields[1])
	switch fields[2] {
	case "d":
	case "npn":
	case "pnp":
		m.pnp = true
	default:
		return errLine(ln, "unsupported model type %q", fields[2])
	}

	params := fields[3:]
	if len(params)%3 != 0 {
		return errLine(ln, "malformed parameter list on .model %s", m.name)
	}
	for i := 0; i+2 < len(params); i += 3 {
		key, eq, val := params[i], params[i+1], params[i+2]
		if eq != "=" {
			return errLine(ln, "malformed parameter near %q", key)
		}
		f, err := part.ParseValue(val)
		if err != nil {
			return errLine(ln, "bad value for %s: %v", key, err)
		}
		switch key {
		case "is":
			m.is = f
		case "n", "nf":
			m.n = f
		case "bf":
			m.bf = f
		case "br":
			m.br = f
		}
	}

	p.models[m.name] = m
	return nil
}

func (p *netlistParser) parseDevice(ln sourceLine) error {
	fields := strings.Fields(ln.text)
	name := fields[0]
	ckt := p.ckt

	d := &device{name: name}
	var labels []string
	switch name[0] {
	case 'r', 'c', 'l':
		if len(fields) != 4 {
			return errLine(ln, "%s: want NAME N+ N- VALUE", name)
		}
		switch name[0] {
		case 'r':
			d.kind = kindResistor
		case 'c':
			d.kind = kindCapacitor
		case 'l':
			d.kind = kindInductor
		}
		labels = []string{fields[1], fields[2]}
		v, err := part.ParseValue(fields[3])
		if err != nil {
			return errLine(ln, "%s: bad value %q", name, fields[3])
		}
		if d.kind == kindResistor && v == 0 {
			return errLine(ln, "%s: zero resistance", name)
		}
		d.value = v

	case 'v', 'i':
		if name[0] == 'v' {
			d.kind = kindVSource
		} else {
			d.kind = kindISource
		}
		rest := fields[1:]
		if len(rest) == 3 && rest[2] == "dc" {
			return errLine(ln, "%s: missing dc value", name)
		}
		if len(rest) == 4 && rest[2] == "dc" {
			rest = []string{rest[0], rest[1], rest[3]}
		}
		if len(rest) != 3 {
			return errLine(ln, "%s: want NAME N+ N- [DC] VALUE", name)
		}
		labels = []string{rest[0], rest[1]}
		v, err := part.ParseValue(rest[2])
		if err != nil {
			return errLine(ln, "%s: bad value %q", name, rest[2])
		}
		d.value = v

	case 'd':
		if len(fields) != 4 {
			return errLine(ln, "%s: want NAME N+ N- MODEL", name)
		}
		d.kind = kindDiode
		labels = []string{fields[1], fields[2]}
		d.model = p.lookupModel(fields[3])

	case 'q':
		if len(fields) != 5 {
			return errLine(ln, "%s: want NAME NC NB NE MODEL", name)
		}
		d.kind = kindBJT
		labels = []string{fields[1], fields[2], fields[3]}
		d.model = p.lookupModel(fields[4])

	case 'e', 'g':
		if len(fields) != 6 {
			return errLine(ln, "%s: want NAME N+ N- NC+ NC- GAIN", name)
		}
		if name[0] == 'e' {
			d.kind = kindVCVS
		} else {
			d.kind = kindVCCS
		}
		labels = []string{fields[1], fields[2], fields[3], fields[4]}
		v, err := part.ParseValue(fields[5])
		if err != nil {
			return errLine(ln, "%s: bad gain %q", name, fields[5])
		}
		d.value = v

	default:
		return errLine(ln, "unknown device %q", name)
	}

	if d.kind == kindVSource || d.kind == kindVCVS || d.kind == kindInductor {
		d.branch = ckt.branches
		ckt.branches++
	}
	ckt.devices = append(ckt.devices, d)
	p.labels = append(p.labels, labels)
	return nil
}

// lookupModel returns the named card or, for unmodelled diodes and BJTs the
// part templates emit, a default card.
func (p *netlistParser) lookupModel(name string) *model {
	if m, ok := p.models[name]; ok {
		return m
	}
	return defaultDiodeModel(name)
}
