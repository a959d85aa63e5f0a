package miniscript

import (
	"encoding/hex"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	keyA = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	keyB = "02c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5"
	keyC = "02f9308a019258c31049344f85f89d5229b531c845836f99b08601f113bce036f9"

	keyAUncompressed = "0479be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798" +
		"483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8"
)

// hexKey is a concrete key given by its hex serialization.
type hexKey string

func (k hexKey) String() string { return string(k) }

func (k hexKey) Bytes() []byte {
	b, _ := hex.DecodeString(string(k))
	return b
}

func parseHexKey(s string) (Key, error) {
	if _, err := hex.DecodeString(s); err != nil {
		return nil, fmt.Errorf("%w: bad key %q", ErrParse, s)
	}
	return hexKey(s), nil
}

func mustParse(t *testing.T, s string) *Node {
	t.Helper()
	n, err := Parse(s, parseHexKey)
	require.NoError(t, err)
	return n
}

func scriptHex(t *testing.T, n *Node, ctx Context) string {
	t.Helper()
	script, err := n.Script(ctx)
	require.NoError(t, err)
	return hex.EncodeToString(script)
}

func TestParseRoundTrip(t *testing.T) {
	for _, s := range []string{
		"pk(A)",
		"pkh(A)",
		"multi(2,A,B,C)",
		"and_v(v:pk(A),pk(B))",
		"and_v(v:pk(A),older(144))",
		"or_d(pk(A),and_v(v:pk(B),older(1000)))",
		"or_i(pk(A),pk(B))",
		"andor(pk(A),pk(B),pk(C))",
		"thresh(2,pk(A),s:pk(B),s:pk(C))",
		"and_b(pk(A),s:pk(B))",
		"or_b(pk(A),s:pk(B))",
		"and_v(or_c(pk(A),v:pk(B)),pk(C))",
		"and_v(v:sha256(" + hex.EncodeToString(make([]byte, 32)) + "),pk(A))",
		"j:multi(1,A,B)",
		"n:pk(A)",
		"dv:older(1)",
		"0",
		"1",
	} {
		n, err := Parse(s, nil)
		require.NoError(t, err, s)
		assert.Equal(t, s, n.String())
		assert.Equal(t, TypeB, n.Type().Base, s)
	}
}

func TestParseShorthands(t *testing.T) {
	n, err := Parse("t:v:pk(A)", nil)
	require.NoError(t, err)
	assert.Equal(t, "and_v(v:pk(A),1)", n.String())

	n, err = Parse("l:pk(A)", nil)
	require.NoError(t, err)
	assert.Equal(t, "or_i(0,pk(A))", n.String())

	n, err = Parse("u:pk(A)", nil)
	require.NoError(t, err)
	assert.Equal(t, "or_i(pk(A),0)", n.String())

	n, err = Parse("and_n(pk(A),pk(B))", nil)
	require.NoError(t, err)
	assert.Equal(t, "andor(pk(A),pk(B),0)", n.String())

	n, err = Parse("c:pk_k(A)", nil)
	require.NoError(t, err)
	assert.Equal(t, "pk(A)", n.String())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		in  string
		err error
	}{
		{"pk(A", ErrParse},
		{"pk(A))", ErrParse},
		{"foo(A)", ErrParse},
		{"x:pk(A)", ErrParse},
		{"older(a)", ErrParse},
		{"older(1,2)", ErrParse},
		{"and_v(pk(A))", ErrParse},
		{"sha256(zz)", ErrParse},
		{"pk_k(A)", ErrTypeCheck},
		{"v:pk(A)", ErrTypeCheck},
		{"and_v(pk(A),pk(B))", ErrTypeCheck},
		{"older(0)", ErrTypeCheck},
		{"multi(3,A,B)", ErrTypeCheck},
		{"thresh(2,pk(A),pk(B))", ErrTypeCheck},
		{"sha256(00)", ErrTypeCheck},
		{"s:older(1)", ErrTypeCheck},
	}

	for _, test := range tests {
		_, err := Parse(test.in, nil)
		assert.True(t, errors.Is(err, test.err), "%s: %v", test.in, err)
	}

	// pk_k(A) alone is K typed, but fine below c:.
	_, err := Parse("c:pk_k(A)", nil)
	assert.NoError(t, err)
}

func TestTypes(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"pk(A)", "Bondu"},
		{"pkh(A)", "Bndu"},
		{"older(1)", "Bz"},
		{"multi(1,A,B)", "Bndu"},
		{"or_d(pk(A),pk(B))", "Bdu"},
		{"and_v(v:pk(A),pk(B))", "Bnu"},
		{"thresh(2,pk(A),s:pk(B),s:pk(C))", "Bdu"},
	}
	for _, test := range tests {
		n, err := Parse(test.in, nil)
		require.NoError(t, err, test.in)
		assert.Equal(t, test.want, n.Type().String(), test.in)
	}
}

func TestScript(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"pk(" + keyA + ")", "21" + keyA + "ac"},
		{
			"pkh(" + keyA + ")",
			"76a914751e76e8199196d454941c45d1b3a323f1433bd688ac",
		},
		{
			"multi(2," + keyA + "," + keyB + ")",
			"5221" + keyA + "21" + keyB + "52ae",
		},
		{
			"and_v(v:pk(" + keyA + "),older(144))",
			"21" + keyA + "ad029000b2",
		},
		{
			"or_d(pk(" + keyA + "),pk(" + keyB + "))",
			"21" + keyA + "ac736421" + keyB + "ac68",
		},
		{
			"or_i(pk(" + keyA + "),pk(" + keyB + "))",
			"6321" + keyA + "ac6721" + keyB + "ac68",
		},
		{
			"thresh(2,pk(" + keyA + "),s:pk(" + keyB + "),s:pk(" + keyC + "))",
			"21" + keyA + "ac7c21" + keyB + "ac937c21" + keyC + "ac935287",
		},
		{
			"and_v(v:multi(1," + keyA + "," + keyB + "),pk(" + keyC + "))",
			"5121" + keyA + "21" + keyB + "52af21" + keyC + "ac",
		},
		{
			"and_v(v:sha256(" + hex.EncodeToString(make([]byte, 32)) + "),pk(" + keyA + "))",
			"82012088a820" + hex.EncodeToString(make([]byte, 32)) + "8821" + keyA + "ac",
		},
	}

	for _, test := range tests {
		n := mustParse(t, test.in)
		assert.Equal(t, test.want, scriptHex(t, n, ContextWitnessV0), test.in)
	}
}

func TestScriptUncompressedKey(t *testing.T) {
	n := mustParse(t, "pk("+keyAUncompressed+")")

	assert.Equal(t, "41"+keyAUncompressed+"ac", scriptHex(t, n, ContextLegacy))

	_, err := n.Script(ContextWitnessV0)
	assert.ErrorIs(t, err, ErrUncompressedKey)
}

func TestScriptAbstractKey(t *testing.T) {
	n, err := Parse("pk(A)", nil)
	require.NoError(t, err)

	_, err = n.Script(ContextLegacy)
	assert.ErrorIs(t, err, ErrAbstractKey)
}

func TestTranslate(t *testing.T) {
	n, err := Parse("and_v(v:pk(A),pk(B))", nil)
	require.NoError(t, err)

	keys := map[string]string{"A": keyA, "B": keyB}
	concrete, err := n.Translate(func(k Key) (Key, error) {
		return hexKey(keys[k.String()]), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "21"+keyA+"ad21"+keyB+"ac", scriptHex(t, concrete, ContextWitnessV0))

	// The source tree is left untouched.
	assert.Equal(t, "and_v(v:pk(A),pk(B))", n.String())
	assert.Equal(t, []Key{StringKey("A"), StringKey("B")}, n.AllKeys())

	_, err = n.Translate(func(k Key) (Key, error) {
		return nil, errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
}

func TestClassification(t *testing.T) {
	key, ok := mustParse(t, "pk("+keyA+")").IsSingleKey()
	require.True(t, ok)
	assert.Equal(t, keyA, key.String())

	_, ok = mustParse(t, "pkh("+keyA+")").IsSingleKey()
	assert.False(t, ok)

	k, keys, ok := mustParse(t, "multi(1,"+keyA+","+keyB+")").IsMultisig()
	require.True(t, ok)
	assert.Equal(t, uint32(1), k)
	assert.Len(t, keys, 2)

	_, _, ok = mustParse(t, "pk("+keyA+")").IsMultisig()
	assert.False(t, ok)
}
