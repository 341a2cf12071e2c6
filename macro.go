package pongo3

// compiledMacro is the static, compiled body of a {% macro %} declaration
// (or the synthetic zero-argument macro a {% call %} block's body compiles
// to, bound to the implicit `caller` parameter). Only defaults that are
// constants after folding are stored in defaults; a parameter whose default
// is any other expression binds Undefined when omitted, and that expression
// is not evaluated (see DESIGN.md).
type compiledMacro struct {
	name     string
	params   []string
	defaults map[string]Value
	body     *Instructions
	tmpl     *Template
}

// macroValue is the runtime Object wrapping a compiledMacro together with
// the frame it closed over, making it callable from {{ name(args) }} and
// storable in a variable/passed as an argument.
type macroValue struct {
	BaseObject
	def     *compiledMacro
	closure *frame
	state   *State
}

func newMacroValue(state *State, def *compiledMacro, closure *frame) Value {
	return FromObject(&macroValue{def: def, closure: closure, state: state})
}

func (m *macroValue) Render() string { return "" }
func (m *macroValue) Kind() ReprKind { return ReprPlain }

// Call passes a `caller` keyword argument (as a {% call %} block supplies)
// through to invoke as the implicit caller local.
func (m *macroValue) Call(args []Value, kwargs *OrderedMap) (Value, error) {
	caller := Value{}
	if kwargs != nil {
		if v, ok := kwargs.GetStr("caller"); ok {
			caller = v
		}
	}
	return m.invoke(args, kwargs, caller)
}

// invoke binds positional/keyword arguments (falling back to the stored
// defaults, then Undefined) into a fresh frame parented on the macro's
// closure, pushes an implicit `caller` local when one is supplied, and
// executes the compiled body through the owning VM.
func (m *macroValue) invoke(args []Value, kwargs *OrderedMap, caller Value) (Value, error) {
	fr := newFrame(m.closure)
	for i, name := range m.def.params {
		switch {
		case i < len(args):
			fr.set(name, args[i])
		case kwargs != nil:
			if v, ok := kwargs.GetStr(name); ok {
				fr.set(name, v)
				continue
			}
			fallthrough
		default:
			if dv, ok := m.def.defaults[name]; ok {
				fr.set(name, dv)
			} else {
				fr.set(name, Undefined())
			}
		}
	}
	if !caller.IsUndefined() {
		fr.set("caller", caller)
	}
	return m.state.runMacroBody(m.def, fr)
}
