package pongo3

import (
	"math/big"
	"reflect"
)

// FromGo lifts a plain Go value into the Value model, the way Environment
// context maps (map[string]any) and filter/function arguments from host
// code enter templates. Other types are converted through reflection
// (fromGoReflect), never with a panic.
func FromGo(v any) Value {
	switch x := v.(type) {
	case nil:
		return None
	case Value:
		return x
	case bool:
		return Bool(x)
	case string:
		return String(x)
	case int:
		return Int(int64(x))
	case int8:
		return Int(int64(x))
	case int16:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int64:
		return Int(x)
	case uint:
		return Uint(uint64(x))
	case uint8:
		return Uint(uint64(x))
	case uint16:
		return Uint(uint64(x))
	case uint32:
		return Uint(uint64(x))
	case uint64:
		return Uint(x)
	case float32:
		return Float(float64(x))
	case float64:
		return Float(x)
	case *big.Int:
		return BigInt(x)
	case []byte:
		return Bytes(x)
	case Object:
		return FromObject(x)
	case []any:
		items := make([]Value, len(x))
		for i, it := range x {
			items[i] = FromGo(it)
		}
		return Seq(items)
	case map[string]any:
		m := NewOrderedMap()
		for k, val := range x {
			m.Set(String(k), FromGo(val))
		}
		return Map(m)
	}
	return fromGoReflect(reflect.ValueOf(v))
}

func fromGoReflect(rv reflect.Value) Value {
	if !rv.IsValid() {
		return None
	}
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return None
		}
		return fromGoReflect(rv.Elem())
	case reflect.Slice, reflect.Array:
		n := rv.Len()
		items := make([]Value, n)
		for i := 0; i < n; i++ {
			items[i] = fromGoReflect(rv.Index(i))
		}
		return Seq(items)
	case reflect.Map:
		m := NewOrderedMap()
		for _, k := range rv.MapKeys() {
			m.Set(fromGoReflect(k), fromGoReflect(rv.MapIndex(k)))
		}
		return Map(m)
	case reflect.Struct:
		m := NewOrderedMap()
		rt := rv.Type()
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			if !f.IsExported() {
				continue
			}
			m.Set(String(f.Name), fromGoReflect(rv.Field(i)))
		}
		return Map(m)
	case reflect.String:
		return String(rv.String())
	case reflect.Bool:
		return Bool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Uint(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float())
	default:
		return Undefined()
	}
}

// Context is a convenience alias for the map pongo2 users pass to Execute;
// pongo3's Environment.Render takes it by value rather than requiring a
// dedicated named type, but the alias keeps call sites readable.
type Context = map[string]any
