package pongo3

// Template is a compiled, render-ready program: a root instruction stream
// plus the block table an {% extends %} chain links against and the debug
// metadata (source + per-pc spans) needed for error snippets.
type Template struct {
	name   string
	source string

	root   *Instructions
	blocks map[string]*Instructions
	parent Expr // the ExtendsStmt's target expression, nil if none

	undefinedBehavior UndefinedBehavior
}

// DumpInstructions returns a human-readable instruction listing, used by
// debug tooling; see debug_dump.go for the YAML-backed implementation.
func (t *Template) DumpInstructions() (string, error) {
	return dumpTemplateYAML(t)
}

// Name returns the template's registered name.
func (t *Template) Name() string { return t.name }
