package pongo3

// ReprKind hints how an Object should be treated by generic code (iteration,
// display) when it doesn't expose a more specific capability.
type ReprKind int

const (
	ReprPlain ReprKind = iota
	ReprSeq
	ReprMap
	ReprIterable
)

// Object is the capability set the VM may invoke on a user-supplied value.
// Hosts implement this to expose native types to templates without the VM
// needing to know anything about them beyond this interface. Any capability
// a particular Object doesn't support should return the documented sentinel
// (false / Undefined / an UnknownMethod error) rather than panicking.
type Object interface {
	// GetItem looks up a key (attribute or index) on the object.
	GetItem(key Value) (Value, bool)

	// Enumerate returns this object's items for iteration/the `list` filter.
	// For ReprMap objects this returns keys; for ReprSeq/ReprIterable it
	// returns elements.
	Enumerate() []Value

	// Call invokes the object itself as a callable (CallObject).
	Call(args []Value, kwargs *OrderedMap) (Value, error)

	// CallMethod invokes a named method on the object (CallMethod).
	CallMethod(name string, args []Value, kwargs *OrderedMap) (Value, error)

	// Render returns the object's display form for {{ obj }}.
	Render() string

	// Kind hints how the object should be treated generically.
	Kind() ReprKind

	// IsTruthy reports the object's boolean value.
	IsTruthy() bool

	// EqualValueTo compares against another object. Objects compare by
	// identity unless they opt into structural comparison here.
	EqualValueTo(other Object) bool

	// Contains implements the 'in' operator against this object.
	Contains(item Value) bool
}

// BaseObject provides no-op implementations of every Object capability so
// host types can embed it and only override what they need.
type BaseObject struct{}

func (BaseObject) GetItem(Value) (Value, bool)                        { return Value{}, false }
func (BaseObject) Enumerate() []Value                                 { return nil }
func (BaseObject) Call([]Value, *OrderedMap) (Value, error)           { return Value{}, newErr(KindUnknownMethod, "object is not callable") }
func (BaseObject) CallMethod(n string, a []Value, k *OrderedMap) (Value, error) {
	return Value{}, newErr(KindUnknownMethod, "unknown method: "+n)
}
func (BaseObject) Render() string             { return "<object>" }
func (BaseObject) Kind() ReprKind             { return ReprPlain }
func (BaseObject) IsTruthy() bool             { return true }
func (BaseObject) EqualValueTo(o Object) bool { return false }
func (BaseObject) Contains(Value) bool        { return false }

// Iterable is a single-shot or restartable producer of values. Objects that
// want lazy/streaming iteration (instead of materializing via Enumerate)
// implement this and advertise ReprIterable from Kind.
type Iterable interface {
	// TryIter returns a fresh iterator. A one-shot Iterable must fail the
	// second call (consumed); a restartable one may always succeed.
	TryIter() (ValueIterator, error)
}

// ValueIterator yields successive Values. Next returns ok=false once
// exhausted.
type ValueIterator interface {
	Next() (v Value, ok bool)
}

// sliceIterator adapts a plain []Value into a ValueIterator.
type sliceIterator struct {
	items []Value
	pos   int
}

func (it *sliceIterator) Next() (Value, bool) {
	if it.pos >= len(it.items) {
		return Value{}, false
	}
	v := it.items[it.pos]
	it.pos++
	return v, true
}

func newSliceIterator(items []Value) ValueIterator {
	return &sliceIterator{items: items}
}
