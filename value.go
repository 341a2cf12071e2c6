package pongo3

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindUndefined Kind = iota
	KindNone
	KindBool
	KindI64
	KindU64
	KindBigInt // I128/U128 fallback, backed by math/big
	KindF64
	KindString
	KindBytes
	KindSeq
	KindMap
	KindObject
)

// Value is a shared, cheap-to-copy handle to one of the variants in Kind. It is
// immutable once constructed (aside from interior mutability inside a user
// Object) and cheap to clone: the struct itself is copied by value but the
// payload it points to is shared, so cloning a Value is O(1) regardless of
// the size of the underlying sequence/map/string.
//
// Go's garbage collector already gives us safe sharing of that payload; we
// do not hand-roll an atomic refcount the way a non-GC'd host language would
// need to (see DESIGN.md's note on the spec's Open Question about this).
type Value struct {
	kind Kind

	b       bool
	i       int64
	u       uint64
	f       float64
	bigInt  *big.Int
	bigUns  bool
	str     *stringData
	bytes   []byte
	seq     *seqData
	mapv    *mapData
	obj     Object
	strict  bool // Undefined("strict") marker
}

type stringData struct {
	s    string
	safe bool
}

// None is the singleton null value.
var None = Value{kind: KindNone}

// Undefined returns a lenient-mode undefined value.
func Undefined() Value { return Value{kind: KindUndefined} }

// StrictUndefined returns an undefined value carrying the "strict" marker,
// used by Chainable mode to remember that a chained access must eventually
// raise if consumed.
func StrictUndefined() Value { return Value{kind: KindUndefined, strict: true} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func Int(i int64) Value { return Value{kind: KindI64, i: i} }

func Uint(u uint64) Value { return Value{kind: KindU64, u: u} }

func BigInt(b *big.Int) Value {
	return Value{kind: KindBigInt, bigInt: b, bigUns: b.Sign() >= 0}
}

func Float(f float64) Value { return Value{kind: KindF64, f: f} }

// String constructs an unsafe (escapable) string value.
func String(s string) Value { return Value{kind: KindString, str: &stringData{s: s}} }

// SafeString constructs a string value pre-marked as not requiring escaping.
func SafeString(s string) Value { return Value{kind: KindString, str: &stringData{s: s, safe: true}} }

func Bytes(b []byte) Value { return Value{kind: KindBytes, bytes: b} }

func Seq(items []Value) Value { return Value{kind: KindSeq, seq: &seqData{items: items}} }

func Map(m *OrderedMap) Value { return Value{kind: KindMap, mapv: &mapData{m: m}} }

func FromObject(o Object) Value { return Value{kind: KindObject, obj: o} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsUndefined() bool { return v.kind == KindUndefined }
func (v Value) IsNone() bool      { return v.kind == KindNone }
func (v Value) IsBool() bool      { return v.kind == KindBool }
func (v Value) IsString() bool    { return v.kind == KindString }
func (v Value) IsBytes() bool     { return v.kind == KindBytes }
func (v Value) IsSeq() bool       { return v.kind == KindSeq }
func (v Value) IsMap() bool       { return v.kind == KindMap }
func (v Value) IsObject() bool    { return v.kind == KindObject }

func (v Value) IsInteger() bool {
	return v.kind == KindI64 || v.kind == KindU64 || v.kind == KindBigInt
}

func (v Value) IsFloat() bool { return v.kind == KindF64 }

func (v Value) IsNumber() bool { return v.IsInteger() || v.IsFloat() }

// IsSafe reports whether a string value is marked as pre-escaped.
func (v Value) IsSafe() bool { return v.kind == KindString && v.str != nil && v.str.safe }

// Float64 widens any numeric Value to a float64. Non-numbers yield 0.
func (v Value) Float64() float64 {
	switch v.kind {
	case KindI64:
		return float64(v.i)
	case KindU64:
		return float64(v.u)
	case KindBigInt:
		f, _ := new(big.Float).SetInt(v.bigInt).Float64()
		return f
	case KindF64:
		return v.f
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// Int64 narrows any numeric Value to an int64 (truncating floats).
func (v Value) Int64() int64 {
	switch v.kind {
	case KindI64:
		return v.i
	case KindU64:
		return int64(v.u)
	case KindBigInt:
		return v.bigInt.Int64()
	case KindF64:
		return int64(v.f)
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func (v Value) Bool() bool {
	if v.kind == KindBool {
		return v.b
	}
	return v.IsTruthy()
}

// IsTruthy implements §4.5.2's truthiness rule.
func (v Value) IsTruthy() bool {
	switch v.kind {
	case KindUndefined, KindNone:
		return false
	case KindBool:
		return v.b
	case KindI64:
		return v.i != 0
	case KindU64:
		return v.u != 0
	case KindBigInt:
		return v.bigInt.Sign() != 0
	case KindF64:
		return v.f != 0
	case KindString:
		return v.str.s != ""
	case KindBytes:
		return len(v.bytes) > 0
	case KindSeq:
		return len(v.seq.items) > 0
	case KindMap:
		return v.mapv.m.Len() > 0
	case KindObject:
		return v.obj.IsTruthy()
	default:
		return false
	}
}

// String renders the display form of the value (what {{ value }} emits
// before any escaping is applied).
func (v Value) String() string {
	switch v.kind {
	case KindUndefined:
		return ""
	case KindNone:
		return "None"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindI64:
		return strconv.FormatInt(v.i, 10)
	case KindU64:
		return strconv.FormatUint(v.u, 10)
	case KindBigInt:
		return v.bigInt.String()
	case KindF64:
		return formatFloat(v.f)
	case KindString:
		return v.str.s
	case KindBytes:
		return string(v.bytes)
	case KindSeq:
		parts := make([]string, len(v.seq.items))
		for i, it := range v.seq.items {
			parts[i] = it.ReprString()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		var sb strings.Builder
		sb.WriteByte('{')
		for i, k := range v.mapv.m.Keys() {
			if i > 0 {
				sb.WriteString(", ")
			}
			val, _ := v.mapv.m.Get(k)
			sb.WriteString(k.ReprString())
			sb.WriteString(": ")
			sb.WriteString(val.ReprString())
		}
		sb.WriteByte('}')
		return sb.String()
	case KindObject:
		return v.obj.Render()
	default:
		return ""
	}
}

func formatFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	if math.IsNaN(f) {
		return "NaN"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// ReprString renders a value the way it would appear as a literal nested
// inside a composite (list/map) display -- strings get quoted.
func (v Value) ReprString() string {
	if v.kind == KindString {
		return pyQuote(v.str.s)
	}
	return v.String()
}

// PyString renders the value using Python literal syntax: None, True/False,
// and lists/maps whose string items are quoted (PyRepr); any other value,
// a top-level string included, renders as String does. The default
// formatter uses it when Environment.SetPycompatRendering is on.
func (v Value) PyString() string {
	switch v.kind {
	case KindNone:
		return "None"
	case KindBool:
		if v.b {
			return "True"
		}
		return "False"
	case KindSeq:
		parts := make([]string, len(v.seq.items))
		for i, it := range v.seq.items {
			parts[i] = it.PyRepr()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		var sb strings.Builder
		sb.WriteByte('{')
		for i, k := range v.mapv.m.Keys() {
			if i > 0 {
				sb.WriteString(", ")
			}
			val, _ := v.mapv.m.Get(k)
			sb.WriteString(k.PyRepr())
			sb.WriteString(": ")
			sb.WriteString(val.PyRepr())
		}
		sb.WriteByte('}')
		return sb.String()
	default:
		return v.String()
	}
}

// PyRepr is PyString's quoted form for strings, used recursively inside
// composites.
func (v Value) PyRepr() string {
	if v.kind == KindString {
		return pyQuote(v.str.s)
	}
	return v.PyString()
}

func pyQuote(s string) string {
	if strings.Contains(s, "'") && !strings.Contains(s, "\"") {
		return "\"" + s + "\""
	}
	var sb strings.Builder
	sb.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'':
			sb.WriteString("\\'")
		case '\\':
			sb.WriteString("\\\\")
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}

// Len returns the length of a string/bytes/seq/map, or the enumerate count
// of an Object; 0 for anything else.
func (v Value) Len() int {
	switch v.kind {
	case KindString:
		return len([]rune(v.str.s))
	case KindBytes:
		return len(v.bytes)
	case KindSeq:
		return len(v.seq.items)
	case KindMap:
		return v.mapv.m.Len()
	case KindObject:
		return len(v.obj.Enumerate())
	default:
		return 0
	}
}

// TypeName names the Value's variant for error messages.
func (v Value) TypeName() string {
	switch v.kind {
	case KindUndefined:
		return "undefined"
	case KindNone:
		return "none"
	case KindBool:
		return "bool"
	case KindI64, KindU64, KindBigInt:
		return "int"
	case KindF64:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindSeq:
		return "sequence"
	case KindMap:
		return "map"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Concat implements the '~' operator: coerce both sides to display form,
// concatenate, and propagate the "safe" flag only if both sides were safe.
func Concat(a, b Value) Value {
	if a.kind == KindString && b.kind == KindString && a.str.safe && b.str.safe {
		return SafeString(a.str.s + b.str.s)
	}
	return String(a.String() + b.String())
}

// EqualValueTo implements §4.5.2 structural equality.
func (v Value) EqualValueTo(o Value) bool {
	if v.IsNumber() && o.IsNumber() {
		if v.IsFloat() || o.IsFloat() {
			return v.Float64() == o.Float64()
		}
		return v.Int64() == o.Int64() && sameSign(v, o)
	}
	if v.kind != o.kind {
		if (v.kind == KindUndefined && o.kind == KindNone) || (v.kind == KindNone && o.kind == KindUndefined) {
			return true
		}
		return false
	}
	switch v.kind {
	case KindUndefined, KindNone:
		return true
	case KindBool:
		return v.b == o.b
	case KindString:
		return v.str.s == o.str.s
	case KindBytes:
		return string(v.bytes) == string(o.bytes)
	case KindSeq:
		if len(v.seq.items) != len(o.seq.items) {
			return false
		}
		for i := range v.seq.items {
			if !v.seq.items[i].EqualValueTo(o.seq.items[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if v.mapv.m.Len() != o.mapv.m.Len() {
			return false
		}
		for _, k := range v.mapv.m.Keys() {
			ov, ok := o.mapv.m.Get(k)
			if !ok {
				return false
			}
			vv, _ := v.mapv.m.Get(k)
			if !vv.EqualValueTo(ov) {
				return false
			}
		}
		return true
	case KindObject:
		return v.obj.EqualValueTo(o.obj)
	default:
		return false
	}
}

func sameSign(a, b Value) bool {
	// -1 vs the u64 max-as-int64 bit pattern shouldn't compare equal; this
	// only matters at the extreme edges of the unsigned range.
	if a.kind == KindU64 && a.u > math.MaxInt64 {
		return b.kind == KindU64 && a.u == b.u
	}
	if b.kind == KindU64 && b.u > math.MaxInt64 {
		return false
	}
	return true
}

// Compare implements §4.5.2 ordering; ok is false for incomparable kinds.
func (v Value) Compare(o Value) (cmp int, ok bool) {
	if v.IsNumber() && o.IsNumber() {
		af, bf := v.Float64(), o.Float64()
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	if v.kind == KindString && o.kind == KindString {
		return strings.Compare(v.str.s, o.str.s), true
	}
	if v.kind == KindSeq && o.kind == KindSeq {
		for i := 0; i < len(v.seq.items) && i < len(o.seq.items); i++ {
			if c, ok := v.seq.items[i].Compare(o.seq.items[i]); ok && c != 0 {
				return c, true
			}
		}
		return len(v.seq.items) - len(o.seq.items), true
	}
	return 0, false
}

// Contains implements the 'in' operator (right-hand side containment test).
func (v Value) Contains(item Value) (bool, error) {
	switch v.kind {
	case KindSeq:
		for _, it := range v.seq.items {
			if it.EqualValueTo(item) {
				return true, nil
			}
		}
		return false, nil
	case KindMap:
		_, ok := v.mapv.m.Get(item)
		return ok, nil
	case KindString:
		if item.kind != KindString {
			return false, newErr(KindInvalidOperation, "'in' requires a string operand against a string")
		}
		return strings.Contains(v.str.s, item.str.s), nil
	case KindObject:
		return v.obj.Contains(item), nil
	default:
		return false, newErr(KindInvalidOperation, fmt.Sprintf("value of type %s is not iterable for 'in'", v.TypeName()))
	}
}

// AsSlice returns the elements of a Seq/Map(keys)/string(as runes)/Object
// for generic iteration contexts such as for-loops and filters like `list`.
func (v Value) AsSlice() ([]Value, error) {
	switch v.kind {
	case KindSeq:
		return v.seq.items, nil
	case KindMap:
		out := make([]Value, 0, v.mapv.m.Len())
		for _, k := range v.mapv.m.Keys() {
			out = append(out, k)
		}
		return out, nil
	case KindString:
		rs := []rune(v.str.s)
		out := make([]Value, len(rs))
		for i, r := range rs {
			out[i] = String(string(r))
		}
		return out, nil
	case KindObject:
		return v.obj.Enumerate(), nil
	case KindUndefined, KindNone:
		return nil, nil
	default:
		return nil, newErr(KindNonPrimitive, fmt.Sprintf("value of type %s is not iterable", v.TypeName()))
	}
}

// sortValues returns a stably-sorted copy using Compare, falling back to
// string comparison when operands are not ordered relative to each other.
func sortValues(items []Value) []Value {
	out := make([]Value, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		if c, ok := out[i].Compare(out[j]); ok {
			return c < 0
		}
		return out[i].String() < out[j].String()
	})
	return out
}
