package descriptor

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFixedKey(t *testing.T) {
	key, err := ParseFixedKey("pk("+keyG+"))", ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, keyG, key.PublicKey().String())
	assert.True(t, key.PublicKey().Compressed)
	assert.Nil(t, key.Origin())
	assert.Equal(t, uint32(1), key.Count())

	key, err = ParseFixedKey("pkh([d34db33f/44'/0'/0']"+key2G+")", ParseOptions{})
	require.NoError(t, err)
	require.NotNil(t, key.Origin())
	assert.Equal(t, uint32(0xd34db33f), key.Origin().Fingerprint)
	h := uint32(hdkeychain.HardenedKeyStart)
	assert.Equal(t, Path{44 + h, h, h}, key.Origin().Path)
	assert.Equal(t, "[d34db33f/44'/0'/0']"+key2G, key.String())

	// Fixed keys ignore the index.
	a, err := key.DerivePublicKey(0)
	require.NoError(t, err)
	b, err := key.DerivePublicKey(1000)
	require.NoError(t, err)
	assert.True(t, a.IsEqual(b))

	key, err = ParseFixedKey(keyGUncompressed, ParseOptions{})
	require.NoError(t, err)
	assert.False(t, key.PublicKey().Compressed)
	assert.Equal(t, keyGUncompressed, key.String())
}

func TestParseFixedKeyOriginLeniency(t *testing.T) {
	s := "pkh([qwer/44'/0'/0']" + key2G + ")"

	key, err := ParseFixedKey(s, ParseOptions{})
	require.NoError(t, err)
	assert.Nil(t, key.Origin())
	assert.Equal(t, key2G, key.String())

	_, err = ParseFixedKey(s, ParseOptions{StrictOrigin: true})
	require.Error(t, err)
	assert.True(t, IsError(err, ErrGrammar))

	// A well formed origin is accepted in strict mode too.
	_, err = ParseFixedKey("[d34db33f/44'/0'/0']"+key2G, ParseOptions{StrictOrigin: true})
	assert.NoError(t, err)
}

func TestParseFixedKeyErrors(t *testing.T) {
	_, err := ParseFixedKey("pk(0279be667ef9dcbbac55a06295ce870b07INVALID))", ParseOptions{})
	assert.True(t, IsError(err, ErrGrammar))

	// Right length and prefix, but not a point on the curve.
	bad := "02" + "0000000000000000000000000000000000000000000000000000000000000005"
	_, err = ParseFixedKey(bad, ParseOptions{})
	assert.True(t, IsError(err, ErrKeyDerivation))
}

func TestFixedKeyRoundTrip(t *testing.T) {
	for _, s := range []string{keyG, "[d34db33f/44'/0'/0']" + key2G, keyGUncompressed} {
		key, err := ParseFixedKey(s, ParseOptions{StrictOrigin: true})
		require.NoError(t, err)
		assert.Equal(t, s, key.String())
	}
}

func TestParseKeySource(t *testing.T) {
	source, err := ParseKeySource(keyG, ParseOptions{})
	require.NoError(t, err)
	assert.IsType(t, &FixedKey{}, source)

	source, err = ParseKeySource("["+tv1Child+"]/1/*", ParseOptions{})
	require.NoError(t, err)
	assert.IsType(t, &DerivationComponents{}, source)

	key, err := source.DerivePublicKey(2)
	require.NoError(t, err)
	assert.Equal(t, tv1ChildKey12, key.String())

	_, err = ParseKeySource("not a key", ParseOptions{})
	assert.True(t, IsError(err, ErrGrammar))
}
