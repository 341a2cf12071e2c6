package pongo3

// Formatter renders a Value to its final output form for a given
// auto-escape mode. Environment.SetFormatter lets a host replace the
// default behavior entirely (e.g. to emit a custom serialization format);
// AutoEscapeCustom always goes through the registered Formatter instead of
// the built-in HTML/JSON logic.
type Formatter func(mode AutoEscape, v Value, pycompat bool) (string, error)

// defaultFormatter is the formatter pongo3 installs unless the host
// overrides it: pycompat, when enabled, renders booleans/None/sequences and
// maps using Python literal syntax (§6's "pycompat_rendering" expansion)
// before any escaping is applied; everything else defers to escapeValue.
func defaultFormatter(mode AutoEscape, v Value, pycompat bool) (string, error) {
	if pycompat && !v.IsSafe() {
		switch v.Kind() {
		case KindNone, KindBool, KindSeq, KindMap:
			s := v.PyString()
			if mode == AutoEscapeHTML {
				return escapeHTML(s), nil
			}
			return s, nil
		}
	}
	return escapeValue(mode, v)
}
