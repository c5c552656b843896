package jsonio

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ashgrove/regowalk/internal/ast"
)

func TestReadPreservesObjectOrder(t *testing.T) {
	n, err := Read("test", `{"b":1,"a":2,"c":3}`)
	require.NoError(t, err)
	require.Equal(t, ast.KindObject, n.Kind())
	var keys []string
	for _, item := range n.Children() {
		k, _ := item.Child(0).Lit.(string)
		keys = append(keys, k)
	}
	require.Equal(t, []string{"b", "a", "c"}, keys)
}

func TestReadScalars(t *testing.T) {
	cases := map[string]any{
		`42`:      int64(42),
		`-7`:      int64(-7),
		`2.5`:     2.5,
		`"hello"`: "hello",
	}
	for text, want := range cases {
		n, err := Read("test", text)
		require.NoError(t, err, text)
		require.Equal(t, want, n.Lit, text)
	}

	n, err := Read("test", `true`)
	require.NoError(t, err)
	require.Equal(t, ast.KindJSONTrue, n.Kind())

	n, err = Read("test", `null`)
	require.NoError(t, err)
	require.Equal(t, ast.KindJSONNull, n.Kind())
}

func TestReadRejectsMalformed(t *testing.T) {
	for _, text := range []string{`{`, `[1,]`, `{"a"}`, `1 2`} {
		_, err := Read("test", text)
		require.Error(t, err, text)
	}
}

func TestEmitRoundTripIsCanonical(t *testing.T) {
	docs := []string{
		`{"user":"alice","groups":["dev","ops"],"age":34}`,
		`[1,2.5,"x",true,false,null]`,
		`{"nested":{"deep":[{"k":1}]}}`,
		`{}`,
		`[]`,
	}
	for _, doc := range docs {
		n, err := Read("test", doc)
		require.NoError(t, err)
		first := Emit(n)
		again, err := Read("test", first)
		require.NoError(t, err)
		if diff := cmp.Diff(first, Emit(again)); diff != "" {
			t.Fatalf("round trip not canonical for %s:\n%s", doc, diff)
		}
	}
}

func TestEmitFloatPrecision(t *testing.T) {
	require.Equal(t, "2.5", FormatFloat(2.5))
	require.Equal(t, "0.33333333", FormatFloat(1.0/3.0))
	require.Equal(t, "10", FormatFloat(10.0))
}

func TestEmitStringEscapes(t *testing.T) {
	n, err := Read("test", `"a\"b\n"`)
	require.NoError(t, err)
	require.Equal(t, `"a\"b\n"`, Emit(n))
}
