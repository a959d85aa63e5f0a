package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedKeys(t *testing.T, hexKeys ...string) []KeySource {
	t.Helper()
	keys := make([]KeySource, len(hexKeys))
	for i, s := range hexKeys {
		key, err := ParseFixedKey(s, ParseOptions{})
		require.NoError(t, err)
		keys[i] = key
	}
	return keys
}

func keyStrings(keys []PublicKey) []string {
	out := make([]string, len(keys))
	for i, key := range keys {
		out[i] = key.String()
	}
	return out
}

func TestMultiSigDeriveKeys(t *testing.T) {
	members := fixedKeys(t, key3G, keyG, key2G)

	sorted, err := NewMultiSig(nil, members, true)
	require.NoError(t, err)
	keys, err := sorted.DeriveKeys(0)
	require.NoError(t, err)
	assert.Equal(t, []string{keyG, key2G, key3G}, keyStrings(keys))

	unsorted, err := NewMultiSig(nil, members, false)
	require.NoError(t, err)
	keys, err = unsorted.DeriveKeys(0)
	require.NoError(t, err)
	assert.Equal(t, []string{key3G, keyG, key2G}, keyStrings(keys))

	assert.Equal(t, uint8(3), unsorted.Threshold())
	assert.False(t, unsorted.HasExplicitThreshold())
}

func TestNewMultiSigValidation(t *testing.T) {
	members := fixedKeys(t, keyG, key2G)

	for _, k := range []uint8{0, 3} {
		k := k
		_, err := NewMultiSig(&k, members, false)
		assert.True(t, IsError(err, ErrInvalidTemplate), "k=%d", k)
	}

	_, err := NewMultiSig(nil, nil, false)
	assert.True(t, IsError(err, ErrInvalidTemplate))

	var many []KeySource
	for i := 0; i < 21; i++ {
		many = append(many, members[0])
	}
	_, err = NewMultiSig(nil, many, false)
	assert.True(t, IsError(err, ErrInvalidTemplate))

	k := uint8(1)
	m, err := NewMultiSig(&k, members, false)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), m.Threshold())
	assert.True(t, m.HasExplicitThreshold())
}

func TestParseMultiSig(t *testing.T) {
	hd := "[" + tv1Child + "]/1/0,5-9"
	s := "sortedmulti(2," + keyG + "," + hd + "," + key2G + ")"

	m, err := ParseMultiSig(s, ParseOptions{})
	require.NoError(t, err)
	assert.True(t, m.Sorted())
	assert.Equal(t, uint8(2), m.Threshold())
	require.Len(t, m.Members(), 3)
	assert.Equal(t, hd, m.Members()[1].String())
	assert.Equal(t, uint32(6), m.Count())
	assert.Equal(t, s, m.String())

	m, err = ParseMultiSig("multi("+keyG+","+key2G+")", ParseOptions{})
	require.NoError(t, err)
	assert.False(t, m.Sorted())
	assert.False(t, m.HasExplicitThreshold())
	assert.Equal(t, "multi("+keyG+","+key2G+")", m.String())

	for _, bad := range []string{
		"multi()",
		"multi(2)",
		"multi(3," + keyG + "," + key2G + ")",
		"multi(2," + keyG + "," + key2G,
		"multi(300," + keyG + ")",
	} {
		_, err := ParseMultiSig(bad, ParseOptions{})
		assert.Error(t, err, bad)
	}
}
