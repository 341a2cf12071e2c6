package pongo3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderExpr(t *testing.T, env *Environment, expr string, ctx Context) string {
	t.Helper()
	_, err := env.AddTemplate("expr.txt", "{{ "+expr+" }}")
	require.NoError(t, err)
	out, err := env.Render("expr.txt", ctx)
	require.NoError(t, err)
	return out
}

func TestFilterDefault(t *testing.T) {
	env := NewEnvironment()
	assert.Equal(t, "n/a", renderExpr(t, env, `missing|default("n/a")`, nil))
	assert.Equal(t, "set", renderExpr(t, env, `value|default("n/a")`, Context{"value": "set"}))
	assert.Equal(t, "n/a", renderExpr(t, env, `value|default("n/a", boolean=true)`, Context{"value": ""}))
}

func TestFilterJoinAndSort(t *testing.T) {
	env := NewEnvironment()
	assert.Equal(t, "a, b, c", renderExpr(t, env, `items|join(", ")`, Context{"items": []any{"a", "b", "c"}}))
	assert.Equal(t, "1, 2, 3", renderExpr(t, env, `items|sort|join(", ")`, Context{"items": []any{3, 1, 2}}))
}

func TestFilterSortByAttribute(t *testing.T) {
	env := NewEnvironment()
	people := []any{
		map[string]any{"name": "Zoe", "age": 40},
		map[string]any{"name": "Amy", "age": 20},
	}
	out := renderExpr(t, env, `people|sort(attribute="age")|map(attribute="name")|join(",")`, Context{"people": people})
	assert.Equal(t, "Amy,Zoe", out)
}

func TestFilterSelectReject(t *testing.T) {
	env := NewEnvironment()
	nums := []any{1, 2, 3, 4, 5, 6}
	assert.Equal(t, "2,4,6", renderExpr(t, env, `nums|select("even")|join(",")`, Context{"nums": nums}))
	assert.Equal(t, "1,3,5", renderExpr(t, env, `nums|reject("even")|join(",")`, Context{"nums": nums}))
}

func TestFilterBatch(t *testing.T) {
	env := NewEnvironment()
	env.AddTemplate("b.txt", `{% for row in items|batch(2) %}({{ row|join(",") }}){% endfor %}`)
	out, err := env.Render("b.txt", Context{"items": []any{1, 2, 3, 4, 5}})
	require.NoError(t, err)
	assert.Equal(t, "(1,2)(3,4)(5)", out)
}

func TestFilterSlice(t *testing.T) {
	env := NewEnvironment()
	assert.Equal(t, "b,c", renderExpr(t, env, `items[1:3]|join(",")`, Context{"items": []any{"a", "b", "c", "d"}}))
}

func TestFilterTojson(t *testing.T) {
	env := NewEnvironment()
	out := renderExpr(t, env, `value|tojson`, Context{"value": Context{"a": 1}})
	assert.Equal(t, `{"a":1}`, out)
}

func TestFilterTitleIsUnicodeAware(t *testing.T) {
	env := NewEnvironment()
	assert.Equal(t, "Hello World", renderExpr(t, env, `value|title`, Context{"value": "hello world"}))
}

func TestFilterTruncate(t *testing.T) {
	env := NewEnvironment()
	out := renderExpr(t, env, `value|truncate(5)`, Context{"value": "hello world"})
	assert.True(t, len(out) <= 8) // 5 chars, the ellipsis included
}

func TestFilterMapWithoutAttribute(t *testing.T) {
	env := NewEnvironment()
	out := renderExpr(t, env, `items|map("upper")|join(",")`, Context{"items": []any{"a", "b"}})
	assert.Equal(t, "A,B", out)
}

func TestTestsInTemplate(t *testing.T) {
	env := NewEnvironment()
	env.AddTemplate("t.txt", `{% if value is defined and value is number %}yes{% else %}no{% endif %}`)
	out, err := env.Render("t.txt", Context{"value": 3})
	require.NoError(t, err)
	assert.Equal(t, "yes", out)

	out, err = env.Render("t.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, "no", out)
}

func TestTestDivisibleby(t *testing.T) {
	env := NewEnvironment()
	env.AddTemplate("d.txt", `{% for n in nums %}{% if n is divisibleby(3) %}{{ n }} {% endif %}{% endfor %}`)
	out, err := env.Render("d.txt", Context{"nums": []any{1, 2, 3, 4, 5, 6}})
	require.NoError(t, err)
	assert.Equal(t, "3 6 ", out)
}

func TestFunctionRange(t *testing.T) {
	env := NewEnvironment()
	env.AddTemplate("r.txt", `{% for i in range(3) %}{{ i }}{% endfor %}`)
	out, err := env.Render("r.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, "012", out)
}

func TestFunctionNamespace(t *testing.T) {
	env := NewEnvironment()
	env.AddTemplate("ns.txt", `{% set ns = namespace(count=1) %}{{ ns.count }}`)
	out, err := env.Render("ns.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, "1", out)
}
