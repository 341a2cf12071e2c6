package pongo3

// Global functions grounded on pongo2's globals.go (which exposes a small
// set of constants/helpers through Context rather than a function
// registry); range/dict/namespace are the free functions §6.2's
// "functions (args -> value)" surface commits to supporting.

func registerBuiltinFunctions(env *Environment) {
	env.AddFunction("range", fnRange)
	env.AddFunction("dict", fnDict)
	env.AddFunction("namespace", fnNamespace)
}

func fnRange(state *State, args []Value, kwargs *OrderedMap) (Value, error) {
	var start, stop, step int64 = 0, 0, 1
	switch len(args) {
	case 1:
		stop = args[0].Int64()
	case 2:
		start, stop = args[0].Int64(), args[1].Int64()
	case 3:
		start, stop, step = args[0].Int64(), args[1].Int64(), args[2].Int64()
	default:
		return Value{}, newErr(KindMissingArgument, "range expects 1 to 3 arguments")
	}
	if step == 0 {
		return Value{}, newErr(KindInvalidOperation, "range() step must not be zero")
	}
	var items []Value
	if step > 0 {
		for i := start; i < stop; i += step {
			items = append(items, Int(i))
		}
	} else {
		for i := start; i > stop; i += step {
			items = append(items, Int(i))
		}
	}
	return Seq(items), nil
}

func fnDict(state *State, args []Value, kwargs *OrderedMap) (Value, error) {
	m := NewOrderedMap()
	if kwargs != nil {
		for _, k := range kwargs.Keys() {
			v, _ := kwargs.Get(k)
			m.Set(k, v)
		}
	}
	return Map(m), nil
}

// namespaceValues is the Object backing `namespace(a=1, b=2)`, a read-only
// attribute bag exposing the keyword arguments namespace() was called with.
type namespaceValues struct {
	BaseObject
	m *OrderedMap
}

func (n *namespaceValues) GetItem(key Value) (Value, bool) {
	if !key.IsString() {
		return Value{}, false
	}
	return n.m.Get(key)
}

func (n *namespaceValues) Enumerate() []Value { return n.m.Keys() }
func (n *namespaceValues) Render() string     { return "<namespace>" }
func (n *namespaceValues) Kind() ReprKind      { return ReprMap }

func fnNamespace(state *State, args []Value, kwargs *OrderedMap) (Value, error) {
	m := NewOrderedMap()
	if kwargs != nil {
		for _, k := range kwargs.Keys() {
			v, _ := kwargs.Get(k)
			m.Set(k, v)
		}
	}
	return FromObject(&namespaceValues{m: m}), nil
}
