package templating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToInt(t *testing.T) {
	tests := []struct {
		in      any
		want    int
		wantErr bool
	}{
		{nil, 0, false},
		{7, 7, false},
		{int64(-3), -3, false},
		{uint8(200), 200, false},
		{2.9, 2, false},
		{"42", 42, false},
		{"forty", 0, true},
		{[]int{1}, 0, true},
	}
	for _, tt := range tests {
		got, err := toInt(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "toInt(%v)", tt.in)
			continue
		}
		require.NoError(t, err, "toInt(%v)", tt.in)
		assert.Equal(t, tt.want, got, "toInt(%v)", tt.in)
	}
}

func TestMathFuncsDivideByZero(t *testing.T) {
	got, err := div(10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, got)

	got, err = mod(10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, got)

	got, err = div("9", 2.0)
	require.NoError(t, err)
	assert.Equal(t, 4, got)

	_, err = add("x", 1)
	assert.Error(t, err)
}

func TestDict(t *testing.T) {
	m, err := dict("a", 1, "b", "two")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": "two"}, m)

	_, err = dict("a")
	assert.EqualError(t, err, "dict expects an even number of arguments")

	_, err = dict(1, "a")
	assert.EqualError(t, err, "dict keys must be strings, got int")
}

func TestRepeat(t *testing.T) {
	got, err := repeat(3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, got)

	got, err = repeat(-1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDefaultValue(t *testing.T) {
	assert.Equal(t, "fallback", defaultValue("fallback", ""))
	assert.Equal(t, "fallback", defaultValue("fallback", nil))
	assert.Equal(t, "set", defaultValue("fallback", "set"))
	assert.Equal(t, 0, defaultValue(0, 0))
}

func TestBuiltinFuncNames(t *testing.T) {
	names := builtinFuncNames()
	for _, name := range []string{"add", "include", "hook", "namespaceInputs", "printf", "len"} {
		assert.Contains(t, names, name)
	}
	assert.NotContains(t, names, "shout")
}
