// Package circuitfile parses .ckt circuit description files into the part
// and net model the simulation core consumes. The format is a small
// keyword-oriented DSL: one circuit title, part declarations carrying the
// spice template, properties and pins, and net declarations wiring pins
// together.
package circuitfile

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/participle/v2"

	"github.com/opencircuitlab/circuitscope/pkg/netlist"
	"github.com/opencircuitlab/circuitscope/pkg/part"
)

// Circuit is a fully resolved circuit description: parts with their
// connectors marked as wired, and nets ordered so that ground is index 0.
type Circuit struct {
	Title string
	Parts []*part.Part
	Nets  []netlist.Net
}

// Parser parses .ckt files.
type Parser struct {
	parser *participle.Parser[cktFile]
}

// NewParser builds a parser instance. Building compiles the grammar once;
// the instance is reusable and safe for concurrent parses.
func NewParser() (*Parser, error) {
	parser, err := participle.Build[cktFile](
		participle.Lexer(cktLexer),
		participle.Elide("Comment", "Whitespace"),
		participle.Unquote("String"),
		participle.UseLookahead(2),
	)
	if err != nil {
		return nil, fmt.Errorf("circuitfile: failed to build parser: %w", err)
	}
	return &Parser{parser: parser}, nil
}

// Parse parses a circuit description from a reader.
func (p *Parser) Parse(r io.Reader) (*Circuit, error) {
	file, err := p.parser.Parse("", r)
	if err != nil {
		return nil, fmt.Errorf("circuitfile: parse error: %w", err)
	}
	return resolve(file)
}

// ParseString parses a circuit description from a string.
func (p *Parser) ParseString(input string) (*Circuit, error) {
	file, err := p.parser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("circuitfile: parse error: %w", err)
	}
	return resolve(file)
}

// ParseFile parses a circuit description from a file path.
func (p *Parser) ParseFile(filename string) (*Circuit, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("circuitfile: failed to open file: %w", err)
	}
	defer file.Close()

	return p.Parse(file)
}

// resolve turns the parse tree into the part/net model: parts are built
// first, then net references are bound to connectors and the connectors
// marked as wired. The net named "0" or "gnd" becomes index 0; when no
// ground net is declared an empty one is synthesized so callers can keep
// treating index 0 as ground.
func resolve(file *cktFile) (*Circuit, error) {
	c := &Circuit{Title: file.Title}
	byName := map[string]*part.Part{}

	for _, decl := range file.Decls {
		if decl.Part == nil {
			continue
		}
		if _, dup := byName[decl.Part.Name]; dup {
			return nil, fmt.Errorf("circuitfile: duplicate part %q", decl.Part.Name)
		}
		p := buildPart(decl.Part)
		byName[decl.Part.Name] = p
		c.Parts = append(c.Parts, p)
	}

	ground := netlist.Net{}
	var others []netlist.Net
	claimed := map[*part.Connector]string{}

	for _, decl := range file.Decls {
		if decl.Net == nil {
			continue
		}
		net := netlist.Net{}
		for _, ref := range decl.Net.Refs {
			p, ok := byName[ref.Part]
			if !ok {
				return nil, fmt.Errorf("circuitfile: net %s references unknown part %q", decl.Net.Name, ref.Part)
			}
			conn := p.ConnectorByRole(ref.Pin)
			if conn == nil {
				return nil, fmt.Errorf("circuitfile: net %s references unknown pin %q of part %q", decl.Net.Name, ref.Pin, ref.Part)
			}
			if prev, dup := claimed[conn]; dup {
				return nil, fmt.Errorf("circuitfile: pin %s.%s appears in nets %s and %s", ref.Part, ref.Pin, prev, decl.Net.Name)
			}
			claimed[conn] = decl.Net.Name
			conn.Connected = true
			net = append(net, conn)
		}

		if isGroundName(decl.Net.Name) {
			if len(ground) > 0 {
				return nil, fmt.Errorf("circuitfile: multiple ground nets")
			}
			ground = net
			continue
		}
		others = append(others, net)
	}

	c.Nets = append([]netlist.Net{ground}, others...)
	return c, nil
}

func buildPart(decl *cktPart) *part.Part {
	p := &part.Part{
		Title:         decl.Name,
		Family:        part.FamilyFromString(decl.Family),
		RawFamily:     decl.Family,
		SpiceTemplate: decl.Spice,
		Properties:    map[string]string{},
	}
	for _, item := range decl.Items {
		switch {
		case item.Prop != nil:
			p.Properties[item.Prop.Name] = item.Prop.Value
			if item.Prop.Symbol != "" {
				p.PropertyDefs = append(p.PropertyDefs, part.PropertyDef{
					Name:   item.Prop.Name,
					Symbol: item.Prop.Symbol,
				})
			}
		case item.Pin != nil:
			p.Connectors = append(p.Connectors, &part.Connector{
				Name:        item.Pin.Name,
				Description: item.Pin.Desc,
				Part:        p,
			})
		}
	}
	return p
}

func isGroundName(name string) bool {
	return name == "0" || strings.EqualFold(name, "gnd")
}
