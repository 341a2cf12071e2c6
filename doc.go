// Package pongo3 implements a Jinja2-compatible template engine: a lexer,
// parser, bytecode compiler and stack-based virtual machine that render
// textual templates against a dynamic Value model.
//
// pongo3 is the bytecode-VM successor to pongo2 (github.com/flosch/pongo2):
// instead of walking an interpreter tree at render time, templates are
// compiled once into a linear instruction stream plus a per-template block
// table, and rendering interprets that bytecode on a stack machine. The
// external surface is intentionally narrow:
//
//	env := pongo3.NewEnvironment()
//	env.AddTemplate("hello", `Hello {{ user.name }}!`)
//	out, err := env.Render("hello", pongo3.Context{"user": pongo3.Context{"name": "John"}})
//
// Template inheritance (extends/block/super), include, import, macros,
// auto-escaping and a configurable undefined-variable policy are all
// supported. The command-line front-end, filesystem auto-reloader, foreign
// function bindings, the contrib filter library (date/time, pluralize,
// wordwrap) and build-time template bundling are explicitly out of scope for
// this package; they are expected to be built as separate consumers of the
// facade documented on Environment and Template.
package pongo3
