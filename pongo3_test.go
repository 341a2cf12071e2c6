package pongo3

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAdd(t *testing.T, env *Environment, name, src string) *Template {
	t.Helper()
	tmpl, err := env.AddTemplate(name, src)
	require.NoError(t, err)
	return tmpl
}

func TestRenderBasicVariables(t *testing.T) {
	env := NewEnvironment()
	mustAdd(t, env, "hello", "Hello {{ user.name }}, you are {{ user.age }}!")
	out, err := env.Render("hello", Context{"user": Context{"name": "Ada", "age": 36}})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada, you are 36!", out)
}

func TestRenderInheritanceAndSuper(t *testing.T) {
	env := NewEnvironment()
	mustAdd(t, env, "base.txt", `{% block greeting %}Hello{% endblock %}, base!`)
	mustAdd(t, env, "child.txt", `{% extends "base.txt" %}{% block greeting %}{{ super() }} there{% endblock %}`)

	out, err := env.Render("child.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello there, base!", out)
}

func TestRenderMultiLevelSuper(t *testing.T) {
	env := NewEnvironment()
	mustAdd(t, env, "a.txt", `{% block x %}A{% endblock %}`)
	mustAdd(t, env, "b.txt", `{% extends "a.txt" %}{% block x %}{{ super() }}B{% endblock %}`)
	mustAdd(t, env, "c.txt", `{% extends "b.txt" %}{% block x %}{{ super() }}C{% endblock %}`)

	out, err := env.Render("c.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, "ABC", out)
}

func TestRenderIncludeWithAndWithoutContext(t *testing.T) {
	env := NewEnvironment()
	mustAdd(t, env, "partial.txt", `name={{ name }}`)
	mustAdd(t, env, "withctx.txt", `{% include "partial.txt" %}`)
	mustAdd(t, env, "withoutctx.txt", `{% include "partial.txt" without context %}`)

	out, err := env.Render("withctx.txt", Context{"name": "Grace"})
	require.NoError(t, err)
	assert.Equal(t, "name=Grace", out)

	out, err = env.Render("withoutctx.txt", Context{"name": "Grace"})
	require.NoError(t, err)
	assert.Equal(t, "name=", out)
}

func TestRenderIncludeIgnoreMissing(t *testing.T) {
	env := NewEnvironment()
	mustAdd(t, env, "main.txt", `before{% include "nope.txt" ignore missing %}after`)
	out, err := env.Render("main.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, "beforeafter", out)
}

func TestRenderImportMacros(t *testing.T) {
	env := NewEnvironment()
	mustAdd(t, env, "lib.txt", `{% macro greet(name) %}Hi {{ name }}{% endmacro %}`)
	mustAdd(t, env, "main.txt", `{% import "lib.txt" as lib %}{{ lib.greet("Lin") }}`)

	out, err := env.Render("main.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi Lin", out)
}

func TestRenderFromImport(t *testing.T) {
	env := NewEnvironment()
	mustAdd(t, env, "lib.txt", `{% macro greet(name) %}Hi {{ name }}{% endmacro %}`)
	mustAdd(t, env, "main.txt", `{% from "lib.txt" import greet as hail %}{{ hail("Lin") }}`)

	out, err := env.Render("main.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi Lin", out)
}

func TestRenderMacroDefaultsAndCall(t *testing.T) {
	env := NewEnvironment()
	mustAdd(t, env, "main.txt", `{% macro wrap(tag, extra="plain") %}<{{ tag }} {{ extra }}>{{ caller() }}</{{ tag }}>{% endmacro %}`+
		`{% call wrap("div") %}inner{% endcall %}`)

	out, err := env.Render("main.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, "<div plain>inner</div>", out)
}

func TestRenderForLoopMeta(t *testing.T) {
	env := NewEnvironment()
	mustAdd(t, env, "main.txt", `{% for x in items %}{{ loop.index }}:{{ x }}{% if not loop.last %},{% endif %}{% endfor %}`)
	out, err := env.Render("main.txt", Context{"items": []any{"a", "b", "c"}})
	require.NoError(t, err)
	assert.Equal(t, "1:a,2:b,3:c", out)
}

func TestRenderForElseOnEmpty(t *testing.T) {
	env := NewEnvironment()
	mustAdd(t, env, "main.txt", `{% for x in items %}{{ x }}{% else %}empty{% endfor %}`)
	out, err := env.Render("main.txt", Context{"items": []any{}})
	require.NoError(t, err)
	assert.Equal(t, "empty", out)
}

func TestRenderRecursiveLoop(t *testing.T) {
	env := NewEnvironment()
	mustAdd(t, env, "tree.txt", `{% for node in nodes recursive %}[{{ node.name }}{% if node.children %}{{ loop(node.children) }}{% endif %}]{% endfor %}`)

	nodes := []any{
		map[string]any{
			"name": "root",
			"children": []any{
				map[string]any{"name": "a", "children": []any{}},
				map[string]any{"name": "b", "children": []any{}},
			},
		},
	}
	out, err := env.Render("tree.txt", Context{"nodes": nodes})
	require.NoError(t, err)
	assert.Equal(t, "[root[a][b]]", out)
}

func TestRenderAutoEscapeHTML(t *testing.T) {
	env := NewEnvironment()
	mustAdd(t, env, "page.html", `{{ value }}`)
	out, err := env.Render("page.html", Context{"value": "<script>"})
	require.NoError(t, err)
	assert.Equal(t, "&lt;script&gt;", out)
}

func TestRenderSafeFilterBypassesEscaping(t *testing.T) {
	env := NewEnvironment()
	mustAdd(t, env, "page.html", `{{ value|safe }}`)
	out, err := env.Render("page.html", Context{"value": "<b>x</b>"})
	require.NoError(t, err)
	assert.Equal(t, "<b>x</b>", out)
}

func TestRenderSetBlockCaptureNotDoubleEscaped(t *testing.T) {
	env := NewEnvironment()
	mustAdd(t, env, "page.html", `{% set greeting %}<b>{{ name }}</b>{% endset %}{{ greeting }}`)
	out, err := env.Render("page.html", Context{"name": "<script>"})
	require.NoError(t, err)
	assert.Equal(t, "<b>&lt;script&gt;</b>", out)
}

func TestUndefinedBehaviorLenient(t *testing.T) {
	env := NewEnvironment()
	mustAdd(t, env, "main.txt", `[{{ missing }}]`)
	out, err := env.Render("main.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}

func TestUndefinedBehaviorStrict(t *testing.T) {
	env := NewEnvironment()
	env.SetUndefinedBehavior(UndefinedStrict)
	mustAdd(t, env, "main.txt", `[{{ missing }}]`)
	_, err := env.Render("main.txt", nil)
	require.Error(t, err)
	perr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindUndefinedError, perr.Kind)
}

func TestUndefinedBehaviorChainablePropagatesThroughChain(t *testing.T) {
	env := NewEnvironment()
	env.SetUndefinedBehavior(UndefinedChainable)
	mustAdd(t, env, "main.txt", `[{{ missing.a.b.c }}]`)
	_, err := env.Render("main.txt", nil)
	require.Error(t, err)
	perr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindUndefinedError, perr.Kind)
}

func TestFuelBudgetExhausts(t *testing.T) {
	env := NewEnvironment()
	env.SetFuel(5)
	mustAdd(t, env, "main.txt", `{% for x in items %}{{ x }}{% endfor %}`)
	_, err := env.Render("main.txt", Context{"items": []any{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}})
	require.Error(t, err)
	perr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindOutOfFuel, perr.Kind)
}

func TestRecursionLimitExceeded(t *testing.T) {
	env := NewEnvironment()
	env.SetRecursionLimit(3)
	mustAdd(t, env, "main.txt", `{% macro rec(n) %}{% if n > 0 %}{{ rec(n - 1) }}{% endif %}x{% endmacro %}{{ rec(10) }}`)
	_, err := env.Render("main.txt", nil)
	require.Error(t, err)
}

func TestErrorCarriesTemplateLocation(t *testing.T) {
	env := NewEnvironment()
	env.SetUndefinedBehavior(UndefinedStrict)
	mustAdd(t, env, "broken.txt", "line one\n{{ missing }}")
	_, err := env.Render("broken.txt", nil)
	require.Error(t, err)
	perr := err.(*Error)
	assert.Equal(t, "broken.txt", perr.Filename)
	assert.Equal(t, 2, perr.Line)
}

func TestConcurrentGetTemplateDedupesCompiles(t *testing.T) {
	loader := NewStringLoader()
	loader.Set("shared.txt", `{{ 1 + 1 }}`)
	env := NewEnvironment()
	env.SetLoader(loader)

	var wg sync.WaitGroup
	results := make([]string, 20)
	errs := make([]error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = env.Render("shared.txt", nil)
		}(i)
	}
	wg.Wait()
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, "2", results[i])
	}
}

func TestExpressionCompileAndEval(t *testing.T) {
	env := NewEnvironment()
	expr, err := env.CompileExpression("value * 2 + 1")
	require.NoError(t, err)
	out, err := expr.Eval(Int(20))
	require.NoError(t, err)
	assert.Equal(t, int64(41), out.Int64())
}

func TestExpressionEvalWithMapRoot(t *testing.T) {
	env := NewEnvironment()
	expr, err := env.CompileExpression("a + b")
	require.NoError(t, err)
	m := NewOrderedMap()
	m.Set(String("a"), Int(3))
	m.Set(String("b"), Int(4))
	out, err := expr.Eval(Map(m))
	require.NoError(t, err)
	assert.Equal(t, int64(7), out.Int64())
}

func TestDumpInstructionsProducesYAML(t *testing.T) {
	env := NewEnvironment()
	tmpl := mustAdd(t, env, "main.txt", `{{ 1 + 2 }}`)
	out, err := tmpl.DumpInstructions()
	require.NoError(t, err)
	assert.Contains(t, out, "name: main.txt")
}
