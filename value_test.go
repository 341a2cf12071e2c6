package pongo3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueTruthiness(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want bool
	}{
		{"undefined", Undefined(), false},
		{"none", None, false},
		{"zero int", Int(0), false},
		{"nonzero int", Int(1), true},
		{"empty string", String(""), false},
		{"nonempty string", String("x"), true},
		{"empty seq", Seq(nil), false},
		{"nonempty seq", Seq([]Value{Int(1)}), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.v.IsTruthy())
		})
	}
}

func TestValueEqualValueTo(t *testing.T) {
	assert.True(t, Int(1).EqualValueTo(Float(1.0)))
	assert.True(t, Undefined().EqualValueTo(None))
	assert.False(t, String("a").EqualValueTo(String("b")))

	m1 := NewOrderedMap()
	m1.Set(String("a"), Int(1))
	m2 := NewOrderedMap()
	m2.Set(String("a"), Int(1))
	assert.True(t, Map(m1).EqualValueTo(Map(m2)))
}

func TestValueCompare(t *testing.T) {
	c, ok := Int(1).Compare(Int(2))
	require.True(t, ok)
	assert.Equal(t, -1, c)

	_, ok = Int(1).Compare(String("x"))
	assert.False(t, ok)
}

func TestConcatSafety(t *testing.T) {
	v := Concat(SafeString("<a>"), SafeString("<b>"))
	assert.True(t, v.IsSafe())
	assert.Equal(t, "<a><b>", v.String())

	v2 := Concat(SafeString("<a>"), String("<b>"))
	assert.False(t, v2.IsSafe())
}

func TestAsSlice(t *testing.T) {
	items, err := String("abc").AsSlice()
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "a", items[0].String())

	_, err = Int(1).AsSlice()
	assert.Error(t, err)
}

func TestOrderedMapInsertionOrder(t *testing.T) {
	m := NewOrderedMap()
	m.Set(String("z"), Int(1))
	m.Set(String("a"), Int(2))
	m.Set(String("z"), Int(3)) // update, not re-insert

	keys := m.Keys()
	require.Len(t, keys, 2)
	assert.Equal(t, "z", keys[0].String())
	assert.Equal(t, "a", keys[1].String())

	v, ok := m.GetStr("z")
	require.True(t, ok)
	assert.Equal(t, int64(3), v.Int64())
}
