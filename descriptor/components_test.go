package descriptor

import (
	"math"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	// tv1Child derived at 1/0, 1/1 and 1/2.
	tv1ChildKey10 = "03e10f4f003b36e87c070fcda5201bb5f3f8a4a9537f853e3aaca53a44f166b630"
	tv1ChildKey11 = "03a01d90298db7316ee4ef41296157069ee2292028daf068818bb991aac60c578d"
	tv1ChildKey12 = "026a5857b29f2b0529c907a3ad9dc9c964df0be4682432af3ba8747800dd13a902"

	tv1MasterZpub = "zpub6jftahH18ngZxUuv6oSniLNrBCSSE1B4EEU59bwTCEt8x6aS6b2mdfLxbS4QS53g85SWWP6wexqeer516433gYpZQoJie2tcMYdJ1SYYYAL"
	tv1MasterYpub = "ypub6QqdH2c5z7967BioGSfAWFHM1EHzHPBZK7wrND3ZpEWFtzmCqvsD1bgpaE6pSAPkiSKhkuWPCJV6mZTSNMd2tK8xYTcJ48585pZecmSUzWp"
	tv1MasterXprv = "xprv9s21ZrQH143K3QTDL4LXw2F7HEK3wJUD2nW2nRk4stbPy6cq3jPPqjiChkVvvNKmPGJxWUtg6LnF5kejMRNNU3TGtRBeJgk33yuGBxrMPHi"
)

func mustComponents(t *testing.T, s string) *DerivationComponents {
	t.Helper()
	c, err := ParseDerivationComponents(s)
	require.NoError(t, err)
	return c
}

func TestParseDerivationComponents(t *testing.T) {
	c := mustComponents(t, "["+tv1Child+"]/1/*")

	assert.Equal(t, tv1Child, c.MasterKey().String())
	assert.Equal(t, tv1Child, c.BranchKey().String())
	assert.Empty(t, c.BranchPath())
	assert.Equal(t, Path{1}, c.TerminalPath())
	assert.True(t, c.IndexRanges().IsUnbounded())
	assert.Equal(t, uint32(math.MaxUint32), c.Count())

	assert.Equal(t, tv1ChildKey10, c.Child(0).String())
	assert.Equal(t, tv1ChildKey11, c.Child(1).String())
	assert.Equal(t, tv1ChildKey12, c.Child(2).String())
	assert.Equal(t, c.Child(1), c.Child(1))
	assert.NotEqual(t, c.Child(1).String(), c.Child(2).String())
}

func TestParseDerivationComponentsBranch(t *testing.T) {
	s := "[" + tv1Master + "]/0'=[" + tv1Child + "]/1/0-9,20"
	c := mustComponents(t, s)

	assert.Equal(t, tv1Master, c.MasterKey().String())
	assert.Equal(t, tv1Child, c.BranchKey().String())
	assert.Equal(t, Path{hdkeychain.HardenedKeyStart}, c.BranchPath())
	assert.Equal(t, Path{hdkeychain.HardenedKeyStart, 1}, c.DerivationPath())
	assert.Equal(t, uint32(11), c.Count())
	assert.Equal(t, uint32(0x3442193e), c.MasterFingerprint())

	// Children come from the branch key.
	assert.Equal(t, tv1ChildKey10, c.Child(0).String())

	assert.Equal(t, s, c.String())
	assert.Equal(t, "[3442193e]/0'/1/0-9,20", c.CompactString())
}

func TestParseDerivationComponentsErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		code ErrorCode
	}{
		{
			name: "hardened terminal path",
			in:   "[" + tv1Child + "]/1/878'/1971h/420",
			code: ErrKeyDerivation,
		},
		{
			name: "malformed branch clause",
			in:   "[" + tv1Master + "]0'=[" + tv1Child + "]/1/*",
			code: ErrGrammar,
		},
		{
			name: "ranges in branch clause",
			in:   "[" + tv1Master + "]/0/*=[" + tv1Child + "]/1/*",
			code: ErrGrammar,
		},
		{
			name: "two branch separators",
			in:   "[" + tv1Master + "]/0=[" + tv1Child + "]/1=[" + tv1Child + "]/2",
			code: ErrGrammar,
		},
		{
			name: "illegal range separator",
			in:   "[" + tv1Child + "]/1/0#1000",
			code: ErrGrammar,
		},
		{
			name: "empty",
			in:   "",
			code: ErrGrammar,
		},
		{
			name: "checksum failure",
			in:   "[" + tv1Child[:110] + "x]/1/*",
			code: ErrKeyDerivation,
		},
		{
			name: "private key",
			in:   "[" + tv1MasterXprv + "]/1/*",
			code: ErrKeyDerivation,
		},
		{
			name: "branch key without branch path",
			in:   "[" + tv1Master + "]/=[" + tv1Child + "]/1/*",
			code: ErrGrammar,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			_, err := ParseDerivationComponents(test.in)
			require.Error(t, err)
			assert.True(t, IsError(err, test.code), err.Error())
		})
	}
}

func TestDerivationComponentsRoundTrip(t *testing.T) {
	master, err := DecodeExtendedPublicKey(tv1Master)
	require.NoError(t, err)
	branch, err := DecodeExtendedPublicKey(tv1Child)
	require.NoError(t, err)

	h := uint32(hdkeychain.HardenedKeyStart)
	tests := []struct {
		name     string
		branch   Path
		key      *hdkeychain.ExtendedKey
		terminal Path
		ranges   IndexRangeSet
	}{
		{
			name: "master only",
		},
		{
			name:     "terminal path",
			terminal: Path{0, 5},
			ranges:   IndexRangeSet{{0, 100}},
		},
		{
			name:     "branch",
			branch:   Path{h},
			key:      branch,
			terminal: Path{1},
			ranges:   IndexRangeSet{{0, 0}, {7, 9}},
		},
		{
			name:   "branch without terminal path",
			branch: Path{h, h + 1},
			key:    branch,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			c, err := NewDerivationComponents(
				master, test.branch, test.key, test.terminal, test.ranges,
			)
			require.NoError(t, err)

			parsed, err := ParseDerivationComponents(c.String())
			require.NoError(t, err)
			assert.True(t, c.Equal(parsed), "%s != %s", c, parsed)
			assert.Equal(t, c.String(), parsed.String())
		})
	}
}

func TestNewDerivationComponentsInvariants(t *testing.T) {
	master, err := DecodeExtendedPublicKey(tv1Master)
	require.NoError(t, err)
	branch, err := DecodeExtendedPublicKey(tv1Child)
	require.NoError(t, err)
	h := uint32(hdkeychain.HardenedKeyStart)

	_, err = NewDerivationComponents(master, Path{h}, nil, nil, nil)
	assert.True(t, IsError(err, ErrInvalidTemplate))

	_, err = NewDerivationComponents(master, nil, branch, nil, nil)
	assert.True(t, IsError(err, ErrInvalidTemplate))

	_, err = NewDerivationComponents(master, nil, nil, Path{h}, nil)
	assert.True(t, IsError(err, ErrKeyDerivation))

	_, err = NewDerivationComponents(master, nil, nil, nil, IndexRangeSet{})
	assert.True(t, IsError(err, ErrGrammar))

	_, err = NewDerivationComponents(master, nil, nil, nil, IndexRangeSet{{5, 1}})
	assert.True(t, IsError(err, ErrGrammar))

	_, err = NewDerivationComponents(nil, nil, nil, nil, nil)
	assert.True(t, IsError(err, ErrKeyDerivation))
}

func TestDerivePublicKeyHardened(t *testing.T) {
	c := mustComponents(t, "["+tv1Child+"]/1/*")

	_, err := c.DerivePublicKey(hdkeychain.HardenedKeyStart)
	require.Error(t, err)
	assert.True(t, IsError(err, ErrKeyDerivation))
	assert.ErrorIs(t, err, hdkeychain.ErrDeriveHardFromPublic)

	key, err := c.DerivePublicKey(0)
	require.NoError(t, err)
	assert.True(t, key.Compressed)
	assert.Equal(t, tv1ChildKey10, key.String())
}

func TestSLIP132(t *testing.T) {
	for _, s := range []string{tv1MasterZpub, tv1MasterYpub} {
		key, err := DecodeExtendedPublicKey(s)
		require.NoError(t, err)
		assert.Equal(t, tv1Master, key.String())
	}

	c := mustComponents(t, "["+tv1MasterZpub+"]/0/*")
	assert.Equal(t, "["+tv1Master+"]/0/*", c.String())

	_, err := DecodeExtendedPublicKey(tv1MasterXprv)
	require.Error(t, err)
	assert.True(t, IsError(err, ErrKeyDerivation))
	assert.Contains(t, err.Error(), "private key material is not accepted")
}
