package pongo3

import (
	"log"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// FilterFunc implements a `|name` filter: value is the piped-in operand,
// args/kwargs are its call arguments.
type FilterFunc func(state *State, value Value, args []Value, kwargs *OrderedMap) (Value, error)

// TestFunc implements an `is name` test.
type TestFunc func(state *State, value Value, args []Value) (bool, error)

// GlobalFunc implements a free function reachable from any expression
// (range(), dict(), ...).
type GlobalFunc func(state *State, args []Value, kwargs *OrderedMap) (Value, error)

// Environment owns template registration/compilation/caching, the
// filter/test/function/global registries, and every render-time policy
// knob (§6): syntax, whitespace control, undefined behavior, auto-escape,
// fuel and recursion limits, debug mode and pycompat rendering.
//
// A configured Environment is safe for concurrent use: GetTemplate
// deduplicates concurrent compiles of the same name via singleflight, and
// the compiled-template cache is a concurrency-safe LRU.
type Environment struct {
	loader TemplateLoader

	cache    *lru.Cache[string, *Template]
	inflight singleflight.Group

	filters   map[string]FilterFunc
	tests     map[string]TestFunc
	functions map[string]GlobalFunc
	globals   *OrderedMap

	syntax SyntaxConfig
	ws     WhitespaceConfig

	undefinedBehavior  UndefinedBehavior
	autoEscapeCallback AutoEscapeCallback
	formatter          Formatter
	pycompat           bool

	fuel           int64
	recursionLimit int

	Debug bool
	logger *log.Logger
}

// NewEnvironment returns a ready-to-use Environment with the built-in
// filters/tests/functions registered and a reasonably sized compiled-
// template cache.
func NewEnvironment() *Environment {
	cache, _ := lru.New[string, *Template](256)
	env := &Environment{
		cache:              cache,
		filters:            make(map[string]FilterFunc),
		tests:              make(map[string]TestFunc),
		functions:          make(map[string]GlobalFunc),
		globals:            NewOrderedMap(),
		syntax:             DefaultSyntax(),
		undefinedBehavior:  UndefinedLenient,
		autoEscapeCallback: defaultAutoEscapeCallback,
		formatter:          defaultFormatter,
		recursionLimit:     500,
		logger:             log.New(os.Stderr, "pongo3: ", log.LstdFlags),
	}
	registerBuiltinFilters(env)
	registerBuiltinTests(env)
	registerBuiltinFunctions(env)
	return env
}

func (env *Environment) SetLoader(l TemplateLoader)              { env.loader = l }
func (env *Environment) SetSyntax(s SyntaxConfig)                 { env.syntax = s }
func (env *Environment) SetTrimBlocks(v bool)                     { env.ws.TrimBlocks = v }
func (env *Environment) SetLstripBlocks(v bool)                   { env.ws.LstripBlocks = v }
func (env *Environment) SetKeepTrailingNewline(v bool)            { env.ws.KeepTrailingNewline = v }
func (env *Environment) SetUndefinedBehavior(b UndefinedBehavior) { env.undefinedBehavior = b }
func (env *Environment) SetAutoEscapeCallback(cb AutoEscapeCallback) { env.autoEscapeCallback = cb }
func (env *Environment) SetFormatter(f Formatter)                 { env.formatter = f }
func (env *Environment) SetPycompatRendering(v bool)              { env.pycompat = v }
func (env *Environment) SetRecursionLimit(n int)                  { env.recursionLimit = n }
func (env *Environment) SetFuel(n int64)                          { env.fuel = n }
func (env *Environment) SetDebug(v bool)                          { env.Debug = v }

func (env *Environment) AddFilter(name string, f FilterFunc)     { env.filters[name] = f }
func (env *Environment) AddTest(name string, f TestFunc)         { env.tests[name] = f }
func (env *Environment) AddFunction(name string, f GlobalFunc)   { env.functions[name] = f }
func (env *Environment) AddGlobal(name string, v Value)          { env.globals.Set(String(name), v) }

func (env *Environment) autoEscapeFor(name string) AutoEscape {
	if env.autoEscapeCallback == nil {
		return AutoEscapeNone
	}
	mode := env.autoEscapeCallback(name)
	if mode == AutoEscapeAuto {
		return AutoEscapeHTML
	}
	return mode
}

func (env *Environment) logf(format string, args ...any) {
	if env.Debug && env.logger != nil {
		env.logger.Printf(format, args...)
	}
}

// AddTemplate registers source directly under name, bypassing the loader.
// This is also how callers pre-seed templates that don't live on disk.
func (env *Environment) AddTemplate(name, source string) (*Template, error) {
	t, err := env.compile(name, source)
	if err != nil {
		return nil, err
	}
	env.cache.Add(name, t)
	return t, nil
}

// RemoveTemplate evicts a single cached template, forcing the next
// GetTemplate to recompile (or reload) it.
func (env *Environment) RemoveTemplate(name string) { env.cache.Remove(name) }

// ClearTemplates evicts every cached template.
func (env *Environment) ClearTemplates() { env.cache.Purge() }

// GetTemplate returns the compiled Template for name, compiling (and
// caching) it on first use. Concurrent calls for the same uncached name are
// deduplicated through singleflight so a cache stampede never compiles the
// same source twice.
func (env *Environment) GetTemplate(name string) (*Template, error) {
	if t, ok := env.cache.Get(name); ok {
		return t, nil
	}
	v, err, _ := env.inflight.Do(name, func() (any, error) {
		if t, ok := env.cache.Get(name); ok {
			return t, nil
		}
		if env.loader == nil {
			return nil, newErr(KindTemplateNotFound, "no loader configured for template: "+name)
		}
		source, err := env.loader.Load(name)
		if err != nil {
			return nil, err
		}
		t, err := env.compile(name, source)
		if err != nil {
			return nil, err
		}
		env.cache.Add(name, t)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Template), nil
}

func (env *Environment) compile(name, source string) (*Template, error) {
	toks, err := lexTemplate(name, source, env.syntax, env.ws)
	if err != nil {
		return nil, err
	}
	ast, err := ParseTemplate(name, source, toks)
	if err != nil {
		return nil, err
	}
	for i, s := range ast.Body {
		ast.Body[i] = foldStmtConsts(s)
	}
	t, err := compileTemplate(name, source, ast, env.undefinedBehavior)
	if err != nil {
		if e, ok := err.(*Error); ok {
			e.WithLocation(name, e.Span)
			if env.Debug {
				e.attachSnippet(source)
			}
		}
		return nil, err
	}
	env.logf("compiled template %q (%d bytes source)", name, len(source))
	return t, nil
}

// Render compiles (if needed) and renders the named template against ctx.
func (env *Environment) Render(name string, ctx map[string]any) (string, error) {
	t, err := env.GetTemplate(name)
	if err != nil {
		return "", err
	}
	return env.RenderTemplate(t, ctx)
}

// RenderTemplate renders an already-compiled Template, resolving its full
// {% extends %} chain first.
func (env *Environment) RenderTemplate(t *Template, ctx map[string]any) (string, error) {
	root := newFrame(nil)
	for k, v := range ctx {
		root.set(k, FromGo(v))
	}
	return env.renderLinked(t, root)
}

func (env *Environment) renderLinked(t *Template, root *frame) (string, error) {
	chain, err := env.resolveChain(t)
	if err != nil {
		return "", err
	}
	leaf := chain[len(chain)-1]
	state := newState(env, leaf, root)
	state.buildBlockChain(chain)
	// The base template's root supplies the page text; each CallBlock in it
	// dispatches to the most-derived override of that block.
	state.tmpl = chain[0]
	if err := state.run(chain[0].root); err != nil {
		if e, ok := err.(*Error); ok {
			e.WithLocation(leaf.name, e.Span)
			if env.Debug {
				e.attachSnippet(leaf.source)
			}
		}
		return "", err
	}
	return state.out.result(), nil
}

// resolveChain walks {% extends %} from t up to its root ancestor,
// returning the chain ordered [base, ..., t].
func (env *Environment) resolveChain(t *Template) ([]*Template, error) {
	chain := []*Template{t}
	cur := t
	seen := map[string]bool{t.name: true}
	for cur.parent != nil {
		ce, ok := cur.parent.(*ConstExpr)
		if !ok || !ce.Value.IsString() {
			return nil, newErr(KindEvalBlock, "extends target must be a constant string").WithLocation(cur.name, cur.parent.NodeSpan())
		}
		parentName := ce.Value.String()
		if seen[parentName] {
			return nil, newErr(KindEvalBlock, "circular template inheritance involving "+parentName)
		}
		seen[parentName] = true
		parent, err := env.GetTemplate(parentName)
		if err != nil {
			return nil, err
		}
		chain = append([]*Template{parent}, chain...)
		cur = parent
	}
	return chain, nil
}
