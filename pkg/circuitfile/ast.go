package circuitfile

// cktFile is the raw parse tree of one .ckt file.
type cktFile struct {
	Title string     `parser:"KwCircuit @String"`
	Decls []*cktDecl `parser:"@@*"`
}

type cktDecl struct {
	Part *cktPart `parser:"@@"`
	Net  *cktNet  `parser:"| @@"`
}

type cktPart struct {
	Name   string     `parser:"KwPart @Ident"`
	Family string     `parser:"KwFamily @String"`
	Spice  string     `parser:"KwSpice @String"`
	Items  []*cktItem `parser:"@@*"`
}

type cktItem struct {
	Prop *cktProp `parser:"@@"`
	Pin  *cktPin  `parser:"| @@"`
}

type cktProp struct {
	Name   string `parser:"KwProp @String"`
	Value  string `parser:"@String"`
	Symbol string `parser:"(KwSymbol @String)?"`
}

type cktPin struct {
	Name string `parser:"KwPin @String"`
	Desc string `parser:"(KwDesc @String)?"`
}

type cktNet struct {
	Name string    `parser:"KwNet @Ident"`
	Refs []*cktRef `parser:"@@+"`
}

type cktRef struct {
	Part string `parser:"@Ident Dot"`
	Pin  string `parser:"(@Ident | @String)"`
}
