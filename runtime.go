package pongo3

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// superCaller implements the zero-argument `super()` call available inside
// a block body: it renders the next-most-base override of the block
// currently executing and returns it as a safe string, the same way a
// macro's `caller()` renders the call-block's body.
type superCaller struct {
	BaseObject
	state     *State
	blockName string
}

func (sc *superCaller) Call(args []Value, kwargs *OrderedMap) (Value, error) {
	s := sc.state
	s.out.pushCapture()
	err := s.callBlock(sc.blockName)
	captured := s.out.popCapture()
	if err != nil {
		return Value{}, err
	}
	return SafeString(captured), nil
}

// namespaceObject exposes an imported template's top-level bindings
// (macros, {% set %} globals) as attributes on the `import ... as alias`
// target.
type namespaceObject struct {
	BaseObject
	fr *frame
}

func (n *namespaceObject) GetItem(key Value) (Value, bool) {
	if !key.IsString() {
		return Value{}, false
	}
	return n.fr.get(key.String())
}

// CallMethod makes `alias.name(args)` call the imported binding of that name.
func (n *namespaceObject) CallMethod(name string, args []Value, kwargs *OrderedMap) (Value, error) {
	if v, ok := n.fr.get(name); ok && v.IsObject() {
		return v.obj.Call(args, kwargs)
	}
	return n.BaseObject.CallMethod(name, args, kwargs)
}

func (n *namespaceObject) Render() string { return "<namespace>" }

// callBlock executes the next not-yet-rendered implementation of the named
// block in the inheritance chain. Calling it again (via super()) while
// already inside that block's body advances to the next ancestor.
func (s *State) callBlock(name string) error {
	bc, ok := s.blocks[name]
	if !ok {
		return nil
	}
	idx := s.blockCursor[name]
	if idx >= len(bc.impls) {
		return nil
	}
	s.blockCursor[name] = idx + 1
	s.blockNames = append(s.blockNames, name)
	savedTmpl := s.tmpl
	s.tmpl = bc.tmpl[idx]
	err := s.run(bc.impls[idx])
	s.tmpl = savedTmpl
	s.blockNames = s.blockNames[:len(s.blockNames)-1]
	s.blockCursor[name] = idx
	return err
}

// runIncluded executes a template's root instructions inline, writing
// directly into the current output sink (unlike import, include is not
// captured-and-discarded).
func (s *State) runIncluded(name string, withContext, ignoreMissing bool) error {
	t, err := s.env.GetTemplate(name)
	if err != nil {
		if ignoreMissing {
			return nil
		}
		return err
	}
	chain, err := s.env.resolveChain(t)
	if err != nil {
		return err
	}
	savedTmpl, savedFrame, savedBlocks, savedCursor := s.tmpl, s.frame, s.blocks, s.blockCursor
	var parent *frame
	if withContext {
		parent = savedFrame
	}
	s.frame = newFrame(parent)
	s.tmpl = chain[len(chain)-1]
	s.blocks = make(map[string]*blockChain)
	s.blockCursor = make(map[string]int)
	s.buildBlockChain(chain)
	err = s.run(s.tmpl.root)
	s.tmpl, s.frame, s.blocks, s.blockCursor = savedTmpl, savedFrame, savedBlocks, savedCursor
	return err
}

// runImport executes a template purely to harvest its bindings (macros,
// top-level set values): output is captured and discarded, and the
// resulting frame is returned for the caller to bind as a namespace or to
// pull individual names from (from ... import).
func (s *State) runImport(name string, withContext bool) (*frame, error) {
	t, err := s.env.GetTemplate(name)
	if err != nil {
		return nil, err
	}
	chain, err := s.env.resolveChain(t)
	if err != nil {
		return nil, err
	}
	savedTmpl, savedFrame, savedBlocks, savedCursor := s.tmpl, s.frame, s.blocks, s.blockCursor
	var parent *frame
	if withContext {
		parent = savedFrame
	}
	newFr := newFrame(parent)
	s.frame = newFr
	s.tmpl = chain[len(chain)-1]
	s.blocks = make(map[string]*blockChain)
	s.blockCursor = make(map[string]int)
	s.buildBlockChain(chain)
	s.out.pushCapture()
	err = s.run(s.tmpl.root)
	s.out.popCapture()
	s.tmpl, s.frame, s.blocks, s.blockCursor = savedTmpl, savedFrame, savedBlocks, savedCursor
	if err != nil {
		return nil, err
	}
	return newFr, nil
}

// lookupName resolves a VarExpr: `super` first (synthesized fresh on every
// lookup, since it must capture the block currently executing), then the
// frame chain (where `loop` is an ordinary local bound by the loop), then
// Environment globals, then the registered global functions.
func (s *State) lookupName(name string) (Value, error) {
	if name == "super" {
		if len(s.blockNames) == 0 {
			return Value{}, newErr(KindInvalidOperation, "super() called outside of a block")
		}
		return FromObject(&superCaller{state: s, blockName: s.blockNames[len(s.blockNames)-1]}), nil
	}
	if v, ok := s.frame.get(name); ok {
		return v, nil
	}
	if v, ok := s.env.globals.GetStr(name); ok {
		return v, nil
	}
	if fn, ok := s.env.functions[name]; ok {
		return FromObject(&globalFuncObject{name: name, fn: fn, state: s}), nil
	}
	return resolveUndefined(s.env.undefinedBehavior, name, false)
}

type globalFuncObject struct {
	BaseObject
	name  string
	fn    GlobalFunc
	state *State
}

func (g *globalFuncObject) Call(args []Value, kwargs *OrderedMap) (Value, error) {
	return g.fn(g.state, args, kwargs)
}
func (g *globalFuncObject) Render() string { return "<function " + g.name + ">" }

// getAttr implements `x.name` (§4.5.1): maps resolve by string key,
// objects delegate to GetItem, everything else yields Undefined (or raises,
// per the active UndefinedBehavior).
func getAttr(s *State, x Value, name string) (Value, error) {
	switch x.kind {
	case KindMap:
		if v, ok := x.mapv.m.GetStr(name); ok {
			return v, nil
		}
	case KindObject:
		if v, ok := x.obj.GetItem(String(name)); ok {
			return v, nil
		}
	}
	return resolveUndefined(s.env.undefinedBehavior, name, true)
}

// getItem implements `x[y]`, supporting negative sequence/string indices
// the way Python (and thus Jinja) does.
func getItem(s *State, x, idx Value) (Value, error) {
	switch x.kind {
	case KindSeq:
		items := x.seq.items
		i := normalizeIndex(idx.Int64(), len(items))
		if i < 0 || i >= len(items) {
			return resolveUndefined(s.env.undefinedBehavior, "index", true)
		}
		return items[i], nil
	case KindString:
		rs := []rune(x.String())
		i := normalizeIndex(idx.Int64(), len(rs))
		if i < 0 || i >= len(rs) {
			return resolveUndefined(s.env.undefinedBehavior, "index", true)
		}
		return String(string(rs[i])), nil
	case KindMap:
		if v, ok := x.mapv.m.Get(idx); ok {
			return v, nil
		}
		return resolveUndefined(s.env.undefinedBehavior, "key", true)
	case KindObject:
		if v, ok := x.obj.GetItem(idx); ok {
			return v, nil
		}
		return resolveUndefined(s.env.undefinedBehavior, "key", true)
	default:
		return resolveUndefined(s.env.undefinedBehavior, "item", true)
	}
}

// callMethod implements `x.method(args)` (OpCallMethod): Object receivers
// delegate to their own CallMethod, and a handful of built-in methods cover
// the string/map method calls real Jinja templates lean on even though
// pongo3 exposes most of this functionality as filters instead.
func callMethod(s *State, recv Value, name string, args []Value, kwargs *OrderedMap) (Value, error) {
	if recv.kind == KindObject {
		return recv.obj.CallMethod(name, args, kwargs)
	}
	switch recv.kind {
	case KindString:
		return callStringMethod(recv, name, args)
	case KindMap:
		return callMapMethod(recv, name, args)
	}
	return Value{}, newErr(KindUnknownMethod, "value of type "+recv.TypeName()+" has no method "+name)
}

func callStringMethod(recv Value, name string, args []Value) (Value, error) {
	str := recv.String()
	switch name {
	case "upper":
		return String(strings.ToUpper(str)), nil
	case "lower":
		return String(strings.ToLower(str)), nil
	case "strip":
		return String(strings.TrimSpace(str)), nil
	case "lstrip":
		return String(strings.TrimLeft(str, " \t\r\n")), nil
	case "rstrip":
		return String(strings.TrimRight(str, " \t\r\n")), nil
	case "title":
		return String(cases.Title(language.Und).String(str)), nil
	case "startswith":
		return Bool(len(args) > 0 && strings.HasPrefix(str, args[0].String())), nil
	case "endswith":
		return Bool(len(args) > 0 && strings.HasSuffix(str, args[0].String())), nil
	case "replace":
		if len(args) < 2 {
			return Value{}, newErr(KindMissingArgument, "replace() requires two arguments")
		}
		return String(strings.ReplaceAll(str, args[0].String(), args[1].String())), nil
	case "split":
		sep := " "
		if len(args) > 0 {
			sep = args[0].String()
		}
		parts := strings.Fields(str)
		if len(args) > 0 {
			parts = strings.Split(str, sep)
		}
		items := make([]Value, len(parts))
		for i, p := range parts {
			items[i] = String(p)
		}
		return Seq(items), nil
	default:
		return Value{}, newErr(KindUnknownMethod, "string has no method "+name)
	}
}

func callMapMethod(recv Value, name string, args []Value) (Value, error) {
	m := recv.mapv.m
	switch name {
	case "get":
		if len(args) == 0 {
			return Value{}, newErr(KindMissingArgument, "get() requires at least one argument")
		}
		if v, ok := m.Get(args[0]); ok {
			return v, nil
		}
		if len(args) > 1 {
			return args[1], nil
		}
		return None, nil
	case "keys":
		return Seq(append([]Value{}, m.Keys()...)), nil
	case "values":
		out := make([]Value, 0, m.Len())
		for _, k := range m.Keys() {
			v, _ := m.Get(k)
			out = append(out, v)
		}
		return Seq(out), nil
	case "items":
		out := make([]Value, 0, m.Len())
		for _, k := range m.Keys() {
			v, _ := m.Get(k)
			out = append(out, Seq([]Value{k, v}))
		}
		return Seq(out), nil
	default:
		return Value{}, newErr(KindUnknownMethod, "map has no method "+name)
	}
}

func normalizeIndex(i int64, n int) int {
	if i < 0 {
		i += int64(n)
	}
	return int(i)
}

// sliceValue implements `x[lo:hi:step]` for sequences and strings.
func sliceValue(x, lo, hi, step Value) (Value, error) {
	stepN := 1
	if !step.IsNone() && !step.IsUndefined() {
		stepN = int(step.Int64())
	}
	if stepN == 0 {
		return Value{}, newErr(KindInvalidOperation, "slice step cannot be zero")
	}
	switch x.kind {
	case KindSeq:
		items := x.seq.items
		idxs := resolveSliceBounds(lo, hi, stepN, len(items))
		out := make([]Value, 0, len(idxs))
		for _, i := range idxs {
			out = append(out, items[i])
		}
		return Seq(out), nil
	case KindString:
		rs := []rune(x.String())
		idxs := resolveSliceBounds(lo, hi, stepN, len(rs))
		var sb strings.Builder
		for _, i := range idxs {
			sb.WriteRune(rs[i])
		}
		return String(sb.String()), nil
	default:
		return Value{}, newErr(KindInvalidOperation, "cannot slice a value of type "+x.TypeName())
	}
}

func resolveSliceBounds(loV, hiV Value, step, n int) []int {
	var lo, hi int
	if step > 0 {
		lo, hi = 0, n
	} else {
		lo, hi = n-1, -1
	}
	if !loV.IsNone() && !loV.IsUndefined() {
		lo = clampIndex(normalizeIndex(loV.Int64(), n), n, step > 0)
	}
	if !hiV.IsNone() && !hiV.IsUndefined() {
		hi = clampIndex(normalizeIndex(hiV.Int64(), n), n, step > 0)
	}
	var out []int
	if step > 0 {
		for i := lo; i < hi; i += step {
			if i >= 0 && i < n {
				out = append(out, i)
			}
		}
	} else {
		for i := lo; i > hi; i += step {
			if i >= 0 && i < n {
				out = append(out, i)
			}
		}
	}
	return out
}

func clampIndex(i, n int, forward bool) int {
	if forward {
		if i < 0 {
			return 0
		}
		if i > n {
			return n
		}
	} else {
		if i >= n {
			return n - 1
		}
		if i < -1 {
			return -1
		}
	}
	return i
}
