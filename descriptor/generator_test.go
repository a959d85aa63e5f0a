package descriptor

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hash160G = "751e76e8199196d454941c45d1b3a323f1433bd6"

	multiGWsh   = "00209b984c7bae3efddc3a3f0a20ff81bfe89ed1fe07ff13e562149ee654bed845db"
	multiGSh    = "a91412fcac201d73f5b5dba0f1f22c40f02da17bb4a487"
	multiGShWsh = "a91495fba530d7c9dec108765ba657559f2fc3dd263787"
)

func mustGenerator(t *testing.T, s string) *Generator {
	t.Helper()
	g, err := ParseGenerator(s, ParseOptions{})
	require.NoError(t, err)
	return g
}

func hexScripts(scripts map[Category][]byte) map[Category]string {
	out := make(map[Category]string, len(scripts))
	for cat, script := range scripts {
		out[cat] = hex.EncodeToString(script)
	}
	return out
}

func TestGeneratorSingleKey(t *testing.T) {
	g := mustGenerator(t, "bare|hashed|nested|segwit<"+keyG+">")

	scripts, err := g.PkScripts(0)
	require.NoError(t, err)
	assert.Equal(t, map[Category]string{
		Bare:   "21" + keyG + "ac",
		Hashed: "76a914" + hash160G + "88ac",
		Nested: "a914bcfeb728b584253d5f3f70bcb780e9ef218a68f487",
		SegWit: "0014" + hash160G,
	}, hexScripts(scripts))

	assert.Equal(t, 4, g.PkScriptCount())
	assert.True(t, g.HasMatch(SegWit))
	assert.False(t, g.HasMatch(Taproot))
	assert.Equal(t, "Single-sig.", g.TypeName())
	assert.Equal(t, "pk|pkh|sh_wpkh|wpkh("+keyG+")", g.Descriptor())
	assert.Equal(t, "bare|hashed|nested|segwit<"+keyG+">", g.String())
}

func TestGeneratorCovers(t *testing.T) {
	g := mustGenerator(t, "segwit<multi(1,"+keyG+",["+tv1Child+"]/1/2-3)>")
	require.Len(t, g.Template.Keys(), 2)
	assert.False(t, g.Covers(0))
	assert.True(t, g.Covers(2))
	assert.True(t, g.Covers(3))
	assert.False(t, g.Covers(4))

	fixed := mustGenerator(t, "segwit<"+keyG+">")
	assert.True(t, fixed.Covers(0))
	assert.True(t, fixed.Covers(1<<20))
}

func TestGeneratorAddresses(t *testing.T) {
	g := mustGenerator(t, "hashed|nested|segwit<"+keyG+">")
	outputs, err := g.Outputs(0)
	require.NoError(t, err)

	want := map[Category]string{
		Hashed: "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH",
		Nested: "3JvL6Ymt8MVWiCNHC7oWU6nLeHNJKLZGLN",
		SegWit: "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4",
	}
	for cat, addr := range want {
		got, err := outputs[cat].Address(&chaincfg.MainNetParams)
		require.NoError(t, err)
		assert.Equal(t, addr, got.EncodeAddress(), cat.String())
	}

	nested := outputs[Nested]
	assert.Equal(t, "0014"+hash160G, hex.EncodeToString(nested.RedeemScript()))
	assert.Nil(t, nested.WitnessScript())
}

func TestGeneratorMultiSig(t *testing.T) {
	g := mustGenerator(t, "bare|hashed|nested|segwit<multi(2,"+keyG+","+key2G+")>")
	lock := "5221" + keyG + "21" + key2G + "52ae"

	scripts, err := g.PkScripts(0)
	require.NoError(t, err)
	assert.Equal(t, map[Category]string{
		Bare:   lock,
		Hashed: multiGSh,
		Nested: multiGShWsh,
		SegWit: multiGWsh,
	}, hexScripts(scripts))

	outputs, err := g.Outputs(0)
	require.NoError(t, err)
	assert.Equal(t, lock, hex.EncodeToString(outputs[SegWit].WitnessScript()))
	assert.Equal(t, lock, hex.EncodeToString(outputs[Hashed].RedeemScript()))

	_, err = outputs[Bare].Address(&chaincfg.MainNetParams)
	assert.True(t, IsError(err, ErrCategoryUnavailable))

	assert.Equal(t, "Multi-sig.", g.TypeName())
	assert.Equal(t, "bare|sh|sh_wsh|wsh(thresh_m(2,"+keyG+","+key2G+"))", g.Descriptor())
}

func TestGeneratorSortedMulti(t *testing.T) {
	g := mustGenerator(t, "bare|segwit<sortedmulti(1,"+key3G+","+keyG+")>")

	scripts, err := g.PkScripts(0)
	require.NoError(t, err)
	assert.Equal(t, "5121"+key3G+"21"+keyG+"52ae", hex.EncodeToString(scripts[Bare]))
	assert.Equal(t, "00207cf04d0c270327fe405147262d9cb1688b1ef138298362d0ec9bb6e937f2e515",
		hex.EncodeToString(scripts[SegWit]))
}

func TestGeneratorTaprootUnavailable(t *testing.T) {
	g := mustGenerator(t, "hashed|segwit|taproot<"+keyG+">")

	outputs, err := g.Outputs(0)
	require.Error(t, err)
	assert.True(t, IsError(err, ErrCategoryUnavailable))

	var catErrs CategoryErrors
	require.True(t, errors.As(err, &catErrs))
	assert.Len(t, catErrs, 1)
	assert.Contains(t, catErrs, Taproot)

	// The other categories are still produced.
	assert.Len(t, outputs, 2)
	assert.Contains(t, outputs, Hashed)
	assert.Contains(t, outputs, SegWit)

	g = mustGenerator(t, "taproot<multi(1,"+keyG+")>")
	outputs, err = g.Outputs(0)
	assert.True(t, IsError(err, ErrCategoryUnavailable))
	assert.Empty(t, outputs)
}

func TestGeneratorPartialSuccess(t *testing.T) {
	g := mustGenerator(t, "bare|hashed|nested|segwit<"+keyGUncompressed+">")

	outputs, err := g.Outputs(0)
	require.Error(t, err)

	var catErrs CategoryErrors
	require.True(t, errors.As(err, &catErrs))
	assert.Len(t, catErrs, 2)
	assert.True(t, IsError(catErrs[Nested], ErrUncompressedKeyInWitnessContext))
	assert.True(t, IsError(catErrs[SegWit], ErrUncompressedKeyInWitnessContext))

	require.Len(t, outputs, 2)
	assert.Equal(t, "76a91491b24bf9f5288532960ac687abb035127b1d28a588ac",
		hex.EncodeToString(outputs[Hashed].PkScript()))
	assert.Equal(t, "41"+keyGUncompressed+"ac",
		hex.EncodeToString(outputs[Bare].PkScript()))
}

func TestGeneratorHDKey(t *testing.T) {
	g := mustGenerator(t, "segwit<["+tv1Child+"]/1/0-1>")
	assert.Equal(t, uint32(2), g.Count())

	for i, key := range []string{tv1ChildKey10, tv1ChildKey11} {
		outputs, err := g.Outputs(uint32(i))
		require.NoError(t, err)
		assert.Equal(t, key, outputs[SegWit].PubKey.String())
	}
}

func TestParseGeneratorErrors(t *testing.T) {
	for _, s := range []string{
		"",
		"segwit",
		"<" + keyG + ">",
		"segwit<" + keyG,
		"bogus<" + keyG + ">",
		"segwit<nokey>",
	} {
		_, err := ParseGenerator(s, ParseOptions{})
		assert.Error(t, err, s)
	}

	_, err := NewGenerator(VariantSet{}, NewSingleKeyTemplate(fixedKeys(t, keyG)[0]))
	assert.True(t, IsError(err, ErrInvalidTemplate))
}

func TestGeneratorRoundTrip(t *testing.T) {
	for _, s := range []string{
		"hashed|segwit<[" + tv1Child + "]/1/*>",
		"bare<multi(2," + keyG + "," + key2G + ")>",
		"nested|segwit<sortedmulti(1," + keyG + ",[" + tv1Child + "]/1/0,5-9)>",
		"segwit<policy(or(pk(" + keyG + "),pk(" + key2G + ")))>",
		"hashed<script({" + keyG + "} OP_CHECKSIG)>",
	} {
		g := mustGenerator(t, s)
		assert.Equal(t, s, g.String())
		assert.Equal(t, s, mustGenerator(t, g.String()).String())
	}
}

func TestCategoryErrorsMessage(t *testing.T) {
	err := CategoryErrors{
		SegWit: descError(ErrCategoryUnavailable, "b", nil),
		Hashed: descError(ErrScriptBuild, "a", nil),
	}
	assert.Equal(t, "unable to build outputs: hashed: a; segwit: b", err.Error())
	assert.Len(t, err.Unwrap(), 2)
}
