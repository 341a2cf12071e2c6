package pongo3

import (
	"strings"

	"github.com/google/uuid"
)

// frame is one lexical scope in the frame chain VarExpr resolves against:
// for-loop bodies, macro calls and {% with %} blocks push a frame, while
// {% set %} binds into the current one; lookups walk outward to the
// enclosing frame and finally to the Environment's globals.
type frame struct {
	locals map[string]Value
	parent *frame
}

func newFrame(parent *frame) *frame {
	return &frame{locals: make(map[string]Value), parent: parent}
}

func (f *frame) get(name string) (Value, bool) {
	for fr := f; fr != nil; fr = fr.parent {
		if v, ok := fr.locals[name]; ok {
			return v, true
		}
	}
	return Value{}, false
}

func (f *frame) set(name string, v Value) {
	f.locals[name] = v
}

// blockChain is the list of a block's implementations across an inheritance
// chain, ordered from the most-derived template to the base template that
// first declared the block. State.callBlock walks this list; super()
// advances the per-call cursor so a second invocation runs the next entry.
type blockChain struct {
	impls []*Instructions
	tmpl  []*Template // parallel to impls, the template that owns each body
}

// loopController backs the `loop` meta-object exposed inside a {% for %}
// body (§4.4's index/revindex/first/last/previtem/nextitem/cycle/changed).
type loopController struct {
	items      []Value
	index      int // 0-based
	depth      int // 1-based nesting depth, for recursive loops
	cycleCalls int
	lastValues []Value // for changed()
	recurseFn  func(items []Value, depth int) (string, error)
}

func newLoopController(items []Value, depth int, recurse func([]Value, int) (string, error)) *loopController {
	return &loopController{items: items, index: -1, depth: depth, recurseFn: recurse}
}

func (lc *loopController) advance() (Value, bool) {
	lc.index++
	if lc.index >= len(lc.items) {
		return Value{}, false
	}
	return lc.items[lc.index], true
}

func (lc *loopController) asObject() Value {
	return FromObject(&loopMetaObject{lc: lc})
}

// loopMetaObject exposes the `loop` variable's attributes and methods.
type loopMetaObject struct {
	BaseObject
	lc *loopController
}

func (l *loopMetaObject) GetItem(key Value) (Value, bool) {
	if !key.IsString() {
		return Value{}, false
	}
	lc := l.lc
	n := len(lc.items)
	switch key.String() {
	case "index":
		return Int(int64(lc.index + 1)), true
	case "index0":
		return Int(int64(lc.index)), true
	case "revindex":
		return Int(int64(n - lc.index)), true
	case "revindex0":
		return Int(int64(n - lc.index - 1)), true
	case "first":
		return Bool(lc.index == 0), true
	case "last":
		return Bool(lc.index == n-1), true
	case "length":
		return Int(int64(n)), true
	case "depth":
		return Int(int64(lc.depth)), true
	case "depth0":
		return Int(int64(lc.depth - 1)), true
	case "previtem":
		if lc.index > 0 {
			return lc.items[lc.index-1], true
		}
		return Undefined(), true
	case "nextitem":
		if lc.index+1 < n {
			return lc.items[lc.index+1], true
		}
		return Undefined(), true
	}
	return Value{}, false
}

func (l *loopMetaObject) CallMethod(name string, args []Value, kwargs *OrderedMap) (Value, error) {
	switch name {
	case "cycle":
		if len(args) == 0 {
			return Value{}, newErr(KindMissingArgument, "loop.cycle() requires at least one argument")
		}
		v := args[l.lc.cycleCalls%len(args)]
		l.lc.cycleCalls++
		return v, nil
	case "changed":
		changed := len(l.lc.lastValues) != len(args)
		if !changed {
			for i, a := range args {
				if !a.EqualValueTo(l.lc.lastValues[i]) {
					changed = true
					break
				}
			}
		}
		l.lc.lastValues = append([]Value{}, args...)
		return Bool(changed), nil
	}
	return Value{}, newErr(KindUnknownMethod, "loop has no method "+name)
}

func (l *loopMetaObject) Kind() ReprKind { return ReprPlain }
func (l *loopMetaObject) Render() string { return "<loop>" }

// Call implements `loop(newSeq)`, the recursive re-entry mechanism a
// `{% for ... recursive %}` body uses to descend into a nested collection.
func (l *loopMetaObject) Call(args []Value, kwargs *OrderedMap) (Value, error) {
	if l.lc.recurseFn == nil {
		return Value{}, newErr(KindInvalidOperation, "loop is not recursive; add the recursive modifier to the for tag")
	}
	if len(args) != 1 {
		return Value{}, newErr(KindMissingArgument, "loop(...) expects exactly one argument")
	}
	items, err := args[0].AsSlice()
	if err != nil {
		return Value{}, err
	}
	out, err := l.lc.recurseFn(items, l.lc.depth)
	if err != nil {
		return Value{}, err
	}
	return SafeString(out), nil
}

// outputSink is the escaping-aware write target the VM emits text into. A
// stack of sinks backs {% set x %}...{% endset %} and {% filter %}
// capture: pushCapture starts redirecting to a fresh strings.Builder, and
// popCapture returns what was written while it was active.
type outputSink struct {
	stack []*strings.Builder
}

func newOutputSink() *outputSink {
	var sb strings.Builder
	return &outputSink{stack: []*strings.Builder{&sb}}
}

func (o *outputSink) writeString(s string) {
	o.stack[len(o.stack)-1].WriteString(s)
}

func (o *outputSink) pushCapture() {
	o.stack = append(o.stack, &strings.Builder{})
}

func (o *outputSink) popCapture() string {
	n := len(o.stack)
	s := o.stack[n-1].String()
	o.stack = o.stack[:n-1]
	return s
}

func (o *outputSink) result() string { return o.stack[0].String() }

// State is the per-render VM context: evaluation stack, frame chain, loop
// and block stacks, output sink, auto-escape mode stack and the fuel /
// recursion accounting §4.7 and §5 describe.
type State struct {
	env   *Environment
	tmpl  *Template
	frame *frame
	stack []Value

	out         *outputSink
	autoescape  []AutoEscape
	loops       []*loopController
	blocks      map[string]*blockChain
	blockCursor map[string]int
	blockNames  []string

	fuel           int64
	unlimitedFuel  bool
	recursionDepth int

	traceID uuid.UUID
}

func newState(env *Environment, tmpl *Template, root *frame) *State {
	s := &State{
		env:         env,
		tmpl:        tmpl,
		frame:       root,
		out:         newOutputSink(),
		blocks:      make(map[string]*blockChain),
		blockCursor: make(map[string]int),
		traceID:     uuid.New(),
	}
	if env.fuel > 0 {
		s.fuel = env.fuel
	} else {
		s.unlimitedFuel = true
	}
	s.autoescape = []AutoEscape{env.autoEscapeFor(tmpl.name)}
	return s
}

func (s *State) push(v Value) { s.stack = append(s.stack, v) }

func (s *State) pop() Value {
	n := len(s.stack)
	v := s.stack[n-1]
	s.stack = s.stack[:n-1]
	return v
}

func (s *State) popN(n int) []Value {
	out := make([]Value, n)
	copy(out, s.stack[len(s.stack)-n:])
	s.stack = s.stack[:len(s.stack)-n]
	return out
}

func (s *State) top() Value { return s.stack[len(s.stack)-1] }

func (s *State) currentAutoEscape() AutoEscape { return s.autoescape[len(s.autoescape)-1] }

// consumeFuel implements §5's cost-bounded execution; a fuel-exhausted
// render returns a KindOutOfFuel error rather than spinning forever on a
// template with unbounded recursion or hostile input.
func (s *State) consumeFuel(cost int64) error {
	if s.unlimitedFuel {
		return nil
	}
	s.fuel -= cost
	if s.fuel <= 0 {
		return newErr(KindOutOfFuel, "template exceeded its fuel budget")
	}
	return nil
}

// buildBlockChain links block overrides across an inheritance chain
// (ordered [base, ..., leaf]) into per-name chains ordered leaf-first, so
// CallBlock runs the most-derived override and super() walks toward the
// base template that first declared the block.
func (s *State) buildBlockChain(chain []*Template) {
	for i := len(chain) - 1; i >= 0; i-- {
		t := chain[i]
		for name, body := range t.blocks {
			bc, ok := s.blocks[name]
			if !ok {
				bc = &blockChain{}
				s.blocks[name] = bc
			}
			bc.impls = append(bc.impls, body)
			bc.tmpl = append(bc.tmpl, t)
		}
	}
}

func (s *State) enterRecursion() error {
	s.recursionDepth++
	if s.env.recursionLimit > 0 && s.recursionDepth > s.env.recursionLimit {
		return newErr(KindInvalidOperation, "recursion limit exceeded")
	}
	return nil
}

func (s *State) leaveRecursion() { s.recursionDepth-- }
