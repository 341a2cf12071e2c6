package pongo3

// Tests grounded on the `is` expressions pongo2's tags_if.go and
// expression.go recognize as comparison operators/keywords, generalized
// into the standalone is-test registry §4.4 describes.

func registerBuiltinTests(env *Environment) {
	env.AddTest("defined", testDefined)
	env.AddTest("undefined", testUndefined)
	env.AddTest("none", testNone)
	env.AddTest("boolean", testBoolean)
	env.AddTest("string", testString)
	env.AddTest("number", testNumber)
	env.AddTest("integer", testInteger)
	env.AddTest("float", testFloat)
	env.AddTest("mapping", testMapping)
	env.AddTest("sequence", testSequence)
	env.AddTest("iterable", testIterable)
	env.AddTest("callable", testCallable)
	env.AddTest("odd", testOdd)
	env.AddTest("even", testEven)
	env.AddTest("divisibleby", testDivisibleby)
	env.AddTest("sameas", testSameas)
	env.AddTest("eq", testEq)
	env.AddTest("equalto", testEq)
	env.AddTest("ne", testNe)
	env.AddTest("lt", testLt)
	env.AddTest("lessthan", testLt)
	env.AddTest("gt", testGt)
	env.AddTest("greaterthan", testGt)
	env.AddTest("le", testLe)
	env.AddTest("ge", testGe)
	env.AddTest("in", testIn)
}

func testDefined(state *State, value Value, args []Value) (bool, error) {
	return !value.IsUndefined(), nil
}

func testUndefined(state *State, value Value, args []Value) (bool, error) {
	return value.IsUndefined(), nil
}

func testNone(state *State, value Value, args []Value) (bool, error) {
	return value.IsNone(), nil
}

func testBoolean(state *State, value Value, args []Value) (bool, error) {
	return value.IsBool(), nil
}

func testString(state *State, value Value, args []Value) (bool, error) {
	return value.IsString(), nil
}

func testNumber(state *State, value Value, args []Value) (bool, error) {
	return value.IsNumber(), nil
}

func testInteger(state *State, value Value, args []Value) (bool, error) {
	return value.IsInteger(), nil
}

func testFloat(state *State, value Value, args []Value) (bool, error) {
	return value.IsFloat(), nil
}

func testMapping(state *State, value Value, args []Value) (bool, error) {
	return value.IsMap(), nil
}

func testSequence(state *State, value Value, args []Value) (bool, error) {
	return value.IsSeq() || value.IsString(), nil
}

func testIterable(state *State, value Value, args []Value) (bool, error) {
	switch value.Kind() {
	case KindSeq, KindMap, KindString, KindBytes:
		return true, nil
	case KindObject:
		return true, nil
	default:
		return false, nil
	}
}

func testCallable(state *State, value Value, args []Value) (bool, error) {
	return value.IsObject(), nil
}

func testOdd(state *State, value Value, args []Value) (bool, error) {
	return value.Int64()%2 != 0, nil
}

func testEven(state *State, value Value, args []Value) (bool, error) {
	return value.Int64()%2 == 0, nil
}

func testDivisibleby(state *State, value Value, args []Value) (bool, error) {
	if len(args) < 1 || args[0].Int64() == 0 {
		return false, nil
	}
	return value.Int64()%args[0].Int64() == 0, nil
}

func testSameas(state *State, value Value, args []Value) (bool, error) {
	if len(args) < 1 {
		return false, nil
	}
	if value.IsObject() && args[0].IsObject() {
		return value.obj == args[0].obj, nil
	}
	return value.EqualValueTo(args[0]) && value.Kind() == args[0].Kind(), nil
}

func testEq(state *State, value Value, args []Value) (bool, error) {
	if len(args) < 1 {
		return false, nil
	}
	return value.EqualValueTo(args[0]), nil
}

func testNe(state *State, value Value, args []Value) (bool, error) {
	if len(args) < 1 {
		return false, nil
	}
	return !value.EqualValueTo(args[0]), nil
}

func testLt(state *State, value Value, args []Value) (bool, error) {
	if len(args) < 1 {
		return false, nil
	}
	c, ok := value.Compare(args[0])
	return ok && c < 0, nil
}

func testGt(state *State, value Value, args []Value) (bool, error) {
	if len(args) < 1 {
		return false, nil
	}
	c, ok := value.Compare(args[0])
	return ok && c > 0, nil
}

func testLe(state *State, value Value, args []Value) (bool, error) {
	if len(args) < 1 {
		return false, nil
	}
	c, ok := value.Compare(args[0])
	return ok && c <= 0, nil
}

func testGe(state *State, value Value, args []Value) (bool, error) {
	if len(args) < 1 {
		return false, nil
	}
	c, ok := value.Compare(args[0])
	return ok && c >= 0, nil
}

func testIn(state *State, value Value, args []Value) (bool, error) {
	if len(args) < 1 {
		return false, nil
	}
	return args[0].Contains(value)
}
