package pongo3

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ErrorKind classifies an Error the way §4.6 enumerates.
type ErrorKind int

const (
	KindNonPrimitive ErrorKind = iota
	KindNonKey
	KindInvalidOperation
	KindSyntaxError
	KindTemplateNotFound
	KindTooManyArguments
	KindMissingArgument
	KindUnknownFilter
	KindUnknownFunction
	KindUnknownTest
	KindUnknownMethod
	KindBadEscape
	KindUndefinedError
	KindBadSerialization
	KindBadInclude
	KindEvalBlock
	KindCannotUnpack
	KindWriteFailure
	KindOutOfFuel
)

func (k ErrorKind) String() string {
	names := [...]string{
		"NonPrimitive", "NonKey", "InvalidOperation", "SyntaxError", "TemplateNotFound",
		"TooManyArguments", "MissingArgument", "UnknownFilter", "UnknownFunction",
		"UnknownTest", "UnknownMethod", "BadEscape", "UndefinedError", "BadSerialization",
		"BadInclude", "EvalBlock", "CannotUnpack", "WriteFailure", "OutOfFuel",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// Error is the error value surfaced by every template operation: lexing,
// parsing, compiling and rendering all report failures through this type,
// never through a panic (aside from programmer errors in host-supplied
// callbacks, which the VM does not attempt to recover from).
type Error struct {
	Kind     ErrorKind
	Detail   string
	Name     string // filter/test/function/block name, when relevant
	Filename string
	Line     int
	Column   int
	Span     Span
	ErrorMsg string
	cause    error
	snippet  string // populated in debug mode
}

func newErr(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, ErrorMsg: msg}
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(e.Kind.String())
	if e.Name != "" {
		sb.WriteString(" ")
		sb.WriteString(e.Name)
	}
	if e.Filename != "" {
		sb.WriteString(" in ")
		sb.WriteString(e.Filename)
	}
	if e.Line > 0 {
		sb.WriteString(fmt.Sprintf(" | line %d col %d", e.Line, e.Column))
	}
	sb.WriteString("] ")
	sb.WriteString(e.ErrorMsg)
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if e.snippet != "" {
		sb.WriteString("\n")
		sb.WriteString(e.snippet)
	}
	if e.cause != nil {
		sb.WriteString(" (caused by: ")
		sb.WriteString(e.cause.Error())
		sb.WriteString(")")
	}
	return sb.String()
}

// Unwrap exposes the wrapped cause so errors.Is/errors.As compose across
// filter/function/object-method failures the way pongo2's Error does.
func (e *Error) Unwrap() error { return e.cause }

// WithCause attaches an underlying error (e.g. from a host filter/function)
// and returns the receiver for chaining.
func (e *Error) WithCause(cause error) *Error {
	e.cause = cause
	return e
}

// WithLocation fills in (template_name, line, span) if not already set, the
// way §7 describes the VM augmenting the first error it encounters.
func (e *Error) WithLocation(filename string, span Span) *Error {
	if e.Filename == "" {
		e.Filename = filename
	}
	if e.Line == 0 {
		e.Line = span.StartLine
		e.Column = span.StartCol
		e.Span = span
	}
	return e
}

// attachSnippet renders the surrounding template lines around e.Span into
// e.snippet, for debug=true.
func (e *Error) attachSnippet(source string) {
	if e.Line <= 0 {
		return
	}
	lines := strings.Split(source, "\n")
	lo, hi := e.Line-3, e.Line+2
	if lo < 0 {
		lo = 0
	}
	if hi > len(lines) {
		hi = len(lines)
	}
	var sb strings.Builder
	for i := lo; i < hi; i++ {
		marker := "   "
		if i+1 == e.Line {
			marker = ">> "
		}
		sb.WriteString(fmt.Sprintf("%s%4d | %s\n", marker, i+1, lines[i]))
	}
	e.snippet = sb.String()
}

// RawLine returns the affected source line read back from disk, mirroring
// pongo2's Error.RawLine helper for host-side error rendering.
func (e *Error) RawLine() (line string, available bool) {
	if e.Line <= 0 || e.Filename == "" {
		return "", false
	}
	file, err := os.Open(e.Filename)
	if err != nil {
		return "", false
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	l := 0
	for scanner.Scan() {
		l++
		if l == e.Line {
			return scanner.Text(), true
		}
	}
	return "", false
}
