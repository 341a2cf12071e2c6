package pongo3

// UndefinedBehavior selects how the VM reacts when a lookup resolves to no
// value (§4.5.4): whether that's silently tolerated, propagated as a
// chainable sentinel, or raised immediately.
type UndefinedBehavior int

const (
	// UndefinedLenient renders missing values as empty output and treats
	// them as falsy/empty everywhere; the Jinja2-compatible default.
	UndefinedLenient UndefinedBehavior = iota
	// UndefinedChainable lets a missing value pass through a chain of
	// attribute/item accesses without error, raising only if the chain
	// result is ultimately printed or otherwise forced to a concrete value.
	UndefinedChainable
	// UndefinedStrict raises KindUndefinedError the moment a name fails to
	// resolve, even before it's used.
	UndefinedStrict
	// UndefinedSemiStrict is Strict for top-level name lookups but Lenient
	// once inside an attribute/item chain, matching minijinja's
	// `SemiStrict` mode.
	UndefinedSemiStrict
)

// resolveUndefined produces the Value a failed lookup should yield under
// the given behavior, or an error if that behavior demands one raise
// immediately.
func resolveUndefined(behavior UndefinedBehavior, name string, chained bool) (Value, error) {
	switch behavior {
	case UndefinedStrict:
		return Value{}, newErr(KindUndefinedError, "undefined value: "+name)
	case UndefinedSemiStrict:
		if !chained {
			return Value{}, newErr(KindUndefinedError, "undefined value: "+name)
		}
		return Undefined(), nil
	case UndefinedChainable:
		return StrictUndefined(), nil
	default:
		return Undefined(), nil
	}
}

// forceConcrete is called where an undefined value must finally become a
// concrete result (emitting it, converting to string/number, iterating it).
// A Chainable-mode sentinel that survives this long raises here.
func forceConcrete(v Value) (Value, error) {
	if v.IsUndefined() && v.strict {
		return Value{}, newErr(KindUndefinedError, "undefined value used in a context requiring a concrete value")
	}
	return v, nil
}
