package pongo3

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorUnwrapComposesWithErrorsIs(t *testing.T) {
	sentinel := errors.New("boom")
	e := newErr(KindInvalidOperation, "filter failed").WithCause(sentinel)
	assert.True(t, errors.Is(e, sentinel))
}

func TestErrorWithLocationOnlySetsOnce(t *testing.T) {
	e := newErr(KindUndefinedError, "no such name")
	e.WithLocation("first.txt", Span{StartLine: 3, StartCol: 5})
	e.WithLocation("second.txt", Span{StartLine: 9, StartCol: 1})

	assert.Equal(t, "first.txt", e.Filename)
	assert.Equal(t, 3, e.Line)
	assert.Equal(t, 5, e.Column)
}

func TestErrorStringIncludesKindAndLocation(t *testing.T) {
	e := newErr(KindUnknownFilter, "unknown filter: nope").WithLocation("tmpl.txt", Span{StartLine: 4, StartCol: 2})
	msg := e.Error()
	assert.Contains(t, msg, "UnknownFilter")
	assert.Contains(t, msg, "tmpl.txt")
	assert.Contains(t, msg, "line 4")
}

func TestRenderUnknownFilterReportsKind(t *testing.T) {
	env := NewEnvironment()
	_, err := env.AddTemplate("main.txt", `{{ value|nosuchfilter }}`)
	require.NoError(t, err)
	_, err = env.Render("main.txt", Context{"value": 1})
	require.Error(t, err)
	perr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindUnknownFilter, perr.Kind)
}

func TestRenderMissingTemplateReportsKind(t *testing.T) {
	env := NewEnvironment()
	_, err := env.Render("does-not-exist.txt", nil)
	require.Error(t, err)
	perr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindTemplateNotFound, perr.Kind)
}
