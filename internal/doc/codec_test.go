package doc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_PreservesKeyOrder(t *testing.T) {
	n, err := Parse([]byte(`{"zeta":1,"alpha":{"y":"a","x":"b"},"mid":[3,2,1]}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, n.Keys())
	assert.Equal(t, []string{"y", "x"}, n.Get("alpha").Keys())

	out, err := Marshal(n)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":{"y":"a","x":"b"},"mid":[3,2,1]}`, string(out))
}

func TestParse_NestedObjects(t *testing.T) {
	inputs := []string{
		`{"a":"b"}`,
		`{"a":1}`,
		`{"a":{"b":1}}`,
		`[{"a":1}]`,
		`{"scores":{"pillars":{"ip_strength":{"score":4,"citation":"PMID: 1"}}},"bibliography":[{"category":"x","citation":"y"}]}`,
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			n, err := Parse([]byte(input))
			require.NoError(t, err)
			out, err := Marshal(n)
			require.NoError(t, err)
			assert.Equal(t, input, string(out))
		})
	}
}

func TestParse_Scalars(t *testing.T) {
	n, err := Parse([]byte(`{"s":"x","i":42,"f":2.50,"t":true,"n":null}`))
	require.NoError(t, err)

	assert.Equal(t, String, n.Get("s").Kind)
	assert.Equal(t, Number, n.Get("i").Kind)
	assert.Equal(t, "42", n.Get("i").Num)
	assert.Equal(t, "2.50", n.Get("f").Num, "number text is kept verbatim")
	assert.Equal(t, Bool, n.Get("t").Kind)
	assert.True(t, n.Get("t").Bool)
	assert.True(t, n.Get("n").IsNull())
	assert.True(t, n.Has("n"))
	assert.False(t, n.Has("missing"))
}

func TestParse_DuplicateKeysKeepFirstPosition(t *testing.T) {
	n, err := Parse([]byte(`{"a":1,"b":2,"a":3}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, n.Keys())
	assert.Equal(t, "3", n.Get("a").Num)
}

func TestParse_Errors(t *testing.T) {
	tests := []string{
		``,
		`{`,
		`{"a":}`,
		`{"a":1} trailing`,
		`[1,2`,
	}
	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := Parse([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestMarshalIndent_NonASCII(t *testing.T) {
	n := NewMapping()
	n.Set("gap", NewString("a → b"))

	out, err := MarshalIndent(n)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"gap\": \"a → b\"\n}\n", string(out))
}

func TestNewFloat_KeepsFraction(t *testing.T) {
	assert.Equal(t, "80.0", NewFloat(80).Num)
	assert.Equal(t, "62.5", NewFloat(62.5).Num)
	assert.Equal(t, "0.0", NewFloat(0).Num)
}

func TestFromValue(t *testing.T) {
	v := struct {
		Score float64 `json:"score"`
		Band  string  `json:"band"`
	}{Score: 71.5, Band: "Amber"}

	n, err := FromValue(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"score", "band"}, n.Keys())
	assert.Equal(t, "Amber", n.Get("band").Str)
}
