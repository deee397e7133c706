package netlist

import (
	"strings"
	"testing"

	"github.com/opencircuitlab/circuitscope/pkg/part"
)

func twoTerminal(title, template string) *part.Part {
	p := &part.Part{Title: title, SpiceTemplate: template}
	p.Connectors = []*part.Connector{
		{Name: "+", Part: p, Connected: true},
		{Name: "-", Part: p, Connected: true},
	}
	return p
}

func TestBuildNetMapTotal(t *testing.T) {
	r1 := twoTerminal("R1", "R{instanceTitle} {net0} {net1} 1k")
	v1 := twoTerminal("V1", "V{instanceTitle} {net0} {net1} DC 5")

	nets := []Net{
		{r1.Connectors[1], v1.Connectors[1]}, // ground
		{r1.Connectors[0], v1.Connectors[0]},
	}
	m := BuildNetMap(nets)

	// Every connector present in the input maps to exactly one index.
	seen := map[*part.Connector]bool{}
	for _, net := range nets {
		for _, c := range net {
			if seen[c] {
				t.Fatalf("connector %s appears in more than one net", c.Name)
			}
			seen[c] = true
		}
	}
	if len(m) != 4 {
		t.Errorf("net map has %d entries, want 4", len(m))
	}
	if m.Index(r1.Connectors[0]) != 1 || m.Index(v1.Connectors[0]) != 1 {
		t.Errorf("positive terminals should map to net 1")
	}
	if m.Index(r1.Connectors[1]) != 0 {
		t.Errorf("ground terminal maps to %d, want 0", m.Index(r1.Connectors[1]))
	}
}

func TestNetMapUnknownConnectorReadsAsGround(t *testing.T) {
	m := BuildNetMap(nil)
	stray := &part.Connector{Name: "stray"}
	if got := m.Index(stray); got != 0 {
		t.Errorf("unknown connector maps to %d, want 0", got)
	}
}

func TestGenerate(t *testing.T) {
	r1 := twoTerminal("R1", "R{instanceTitle} {net1} {net0} 1k")
	v1 := twoTerminal("V1", "V{instanceTitle} {net0} {net1} DC 5")
	nets := []Net{
		{r1.Connectors[1], v1.Connectors[1]},
		{r1.Connectors[0], v1.Connectors[0]},
	}

	text, err := Generate("divider", []*part.Part{r1, v1}, nets)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(text), "\n")
	// The device letter is not doubled when the title already carries it.
	want := []string{"divider", "R1 0 1 1k", "V1 1 0 DC 5", ".op", ".end"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), text)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestGenerateKeepsPrefixForForeignTitles(t *testing.T) {
	led := twoTerminal("LED1", "D{instanceTitle} {net1} {net0} LED")
	nets := []Net{{led.Connectors[1]}, {led.Connectors[0]}}

	text, err := Generate("led", []*part.Part{led}, nets)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(text, "DLED1 1 0 LED") {
		t.Errorf("led device line wrong:\n%s", text)
	}
}

func TestGenerateSkipsNonSimulable(t *testing.T) {
	wire := &part.Part{Title: "W1"} // no template: a plain wire
	r1 := twoTerminal("R1", "R{instanceTitle} {net0} {net1} 1k")
	nets := []Net{{r1.Connectors[0], r1.Connectors[1]}}

	text, err := Generate("x", []*part.Part{wire, r1}, nets)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if strings.Contains(text, "W1") {
		t.Errorf("non-simulable part leaked into the netlist:\n%s", text)
	}
}

func TestGenerateRejectsDanglingNetToken(t *testing.T) {
	p := &part.Part{Title: "X1", SpiceTemplate: "R{instanceTitle} {net0} {net5} 1k"}
	p.Connectors = []*part.Connector{{Name: "a", Part: p, Connected: true}}

	if _, err := Generate("x", []*part.Part{p}, nil); err == nil {
		t.Errorf("expected error for template with unresolved net token")
	}
}
