package pongo3

import "math"

// valueAdd implements §4.5.3: integer addition auto-widens, falling back to
// f64 only on overflow; float if either operand is float.
func valueAdd(a, b Value) (Value, error) {
	if a.IsFloat() || b.IsFloat() {
		return Float(a.Float64() + b.Float64()), nil
	}
	if a.IsInteger() && b.IsInteger() {
		ai, bi := a.Int64(), b.Int64()
		sum := ai + bi
		if (sum > ai) == (bi > 0) || bi == 0 {
			return Int(sum), nil
		}
		return Float(a.Float64() + b.Float64()), nil
	}
	return Value{}, newErr(KindInvalidOperation, "cannot add "+a.TypeName()+" and "+b.TypeName())
}

func valueSub(a, b Value) (Value, error) {
	if a.IsFloat() || b.IsFloat() {
		return Float(a.Float64() - b.Float64()), nil
	}
	if a.IsInteger() && b.IsInteger() {
		return Int(a.Int64() - b.Int64()), nil
	}
	return Value{}, newErr(KindInvalidOperation, "cannot subtract "+b.TypeName()+" from "+a.TypeName())
}

func valueMul(a, b Value) (Value, error) {
	if a.IsFloat() || b.IsFloat() {
		return Float(a.Float64() * b.Float64()), nil
	}
	if a.IsInteger() && b.IsInteger() {
		return Int(a.Int64() * b.Int64()), nil
	}
	if a.IsString() && b.IsInteger() {
		n := b.Int64()
		out := ""
		for i := int64(0); i < n; i++ {
			out += a.String()
		}
		return String(out), nil
	}
	return Value{}, newErr(KindInvalidOperation, "cannot multiply "+a.TypeName()+" and "+b.TypeName())
}

// valueDiv is "true division": always produces f64, per the spec's Open
// Question resolution pinning division semantics.
func valueDiv(a, b Value) (Value, error) {
	if !a.IsNumber() || !b.IsNumber() {
		return Value{}, newErr(KindInvalidOperation, "cannot divide "+a.TypeName()+" by "+b.TypeName())
	}
	if b.Float64() == 0 {
		return Value{}, newErr(KindInvalidOperation, "division by zero")
	}
	return Float(a.Float64() / b.Float64()), nil
}

// valueFloorDiv yields the narrowest integer that fits when both operands
// are integers, else f64.
func valueFloorDiv(a, b Value) (Value, error) {
	if !a.IsNumber() || !b.IsNumber() {
		return Value{}, newErr(KindInvalidOperation, "cannot floor-divide "+a.TypeName()+" by "+b.TypeName())
	}
	if a.IsInteger() && b.IsInteger() {
		bi := b.Int64()
		if bi == 0 {
			return Value{}, newErr(KindInvalidOperation, "division by zero")
		}
		ai := a.Int64()
		q := ai / bi
		if (ai%bi != 0) && ((ai < 0) != (bi < 0)) {
			q--
		}
		return Int(q), nil
	}
	return Float(math.Floor(a.Float64() / b.Float64())), nil
}

func valueMod(a, b Value) (Value, error) {
	if a.IsInteger() && b.IsInteger() {
		bi := b.Int64()
		if bi == 0 {
			return Value{}, newErr(KindInvalidOperation, "modulo by zero")
		}
		ai := a.Int64()
		m := ai % bi
		if m != 0 && ((m < 0) != (bi < 0)) {
			m += bi
		}
		return Int(m), nil
	}
	if a.IsNumber() && b.IsNumber() {
		return Float(math.Mod(a.Float64(), b.Float64())), nil
	}
	return Value{}, newErr(KindInvalidOperation, "cannot modulo "+a.TypeName()+" by "+b.TypeName())
}

func valuePow(a, b Value) (Value, error) {
	if !a.IsNumber() || !b.IsNumber() {
		return Value{}, newErr(KindInvalidOperation, "cannot raise "+a.TypeName()+" to a power")
	}
	if a.IsInteger() && b.IsInteger() && b.Int64() >= 0 {
		result := math.Pow(a.Float64(), b.Float64())
		if result == math.Trunc(result) && math.Abs(result) < 1<<62 {
			return Int(int64(result)), nil
		}
	}
	return Float(math.Pow(a.Float64(), b.Float64())), nil
}

func valueNeg(a Value) (Value, error) {
	switch {
	case a.IsFloat():
		return Float(-a.Float64()), nil
	case a.IsInteger():
		return Int(-a.Int64()), nil
	default:
		return Value{}, newErr(KindInvalidOperation, "cannot negate "+a.TypeName())
	}
}

func compareOp(op BinOp, a, b Value) (bool, error) {
	switch op {
	case BinEq:
		return a.EqualValueTo(b), nil
	case BinNe:
		return !a.EqualValueTo(b), nil
	}
	c, ok := a.Compare(b)
	if !ok {
		return false, newErr(KindInvalidOperation, "cannot compare "+a.TypeName()+" and "+b.TypeName())
	}
	switch op {
	case BinLt:
		return c < 0, nil
	case BinLe:
		return c <= 0, nil
	case BinGt:
		return c > 0, nil
	case BinGe:
		return c >= 0, nil
	default:
		return false, newErr(KindInvalidOperation, "unsupported comparison")
	}
}
