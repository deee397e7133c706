package circuitfile

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// cktLexer defines the lexical structure of .ckt circuit description files:
// lowercase keywords, quoted strings for free text, and bare identifiers for
// part and net names.
var cktLexer = lexer.MustSimple([]lexer.SimpleRule{
	// Comments run from # to end of line.
	{Name: "Comment", Pattern: `#[^\n]*`},

	{Name: "Whitespace", Pattern: `[\s\t\n\r]+`},

	// Keywords (must precede Ident).
	{Name: "KwCircuit", Pattern: `\bcircuit\b`},
	{Name: "KwPart", Pattern: `\bpart\b`},
	{Name: "KwFamily", Pattern: `\bfamily\b`},
	{Name: "KwSpice", Pattern: `\bspice\b`},
	{Name: "KwProp", Pattern: `\bprop\b`},
	{Name: "KwSymbol", Pattern: `\bsymbol\b`},
	{Name: "KwPin", Pattern: `\bpin\b`},
	{Name: "KwDesc", Pattern: `\bdesc\b`},
	{Name: "KwNet", Pattern: `\bnet\b`},

	// String literals with escape sequences.
	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},

	{Name: "Dot", Pattern: `\.`},

	// Part and net names: LED1, n3, 0.
	{Name: "Ident", Pattern: `[a-zA-Z0-9_+-]+`},
})
