package resolver

import (
	"encoding/hex"
	"errors"
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pandora-prime/bitcoin-pro/descriptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tv1Child = "xpub68Gmy5EdvgibQVfPdqkBBCHxA5htiqg55crXYuXoQRKfDBFA1WEjWgP6LHhwBZeNK1VTsfTFUHCdrfp1bgwQ9xv5ski8PX9rL2dZXvgGDnw"

	keyGUncompressed = "0479be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798" +
		"483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8"
)

// stubIndex serves unspent outputs from a map keyed by hex script.
type stubIndex struct {
	funds   map[string][]Unspent
	calls   int
	queried int
	failAt  int
}

func (s *stubIndex) BatchQueryUnspent(scripts [][]byte) ([][]Unspent, error) {
	s.calls++
	if s.failAt != 0 && s.calls == s.failAt {
		return nil, errors.New("connection reset")
	}
	s.queried += len(scripts)

	results := make([][]Unspent, len(scripts))
	for i, script := range scripts {
		results[i] = s.funds[hex.EncodeToString(script)]
	}
	return results, nil
}

// fund pays one output to every enabled script of g at each index.
func (s *stubIndex) fund(t *testing.T, g *descriptor.Generator,
	indices ...uint32) {

	t.Helper()
	if s.funds == nil {
		s.funds = make(map[string][]Unspent)
	}
	for _, index := range indices {
		scripts, err := g.PkScripts(index)
		if err != nil {
			require.True(t, descriptor.IsError(err,
				descriptor.ErrCategoryUnavailable), err)
		}
		for cat, script := range scripts {
			key := hex.EncodeToString(script)
			s.funds[key] = append(s.funds[key], Unspent{
				OutPoint: wire.OutPoint{
					Hash:  chainhash.Hash{byte(index), byte(cat)},
					Index: index,
				},
				Height: 100 + index,
				Amount: btcutil.Amount(1000 * (index + 1)),
			})
		}
	}
}

func mustGenerator(t *testing.T, s string) *descriptor.Generator {
	t.Helper()
	g, err := descriptor.ParseGenerator(s, descriptor.ParseOptions{})
	require.NoError(t, err)
	return g
}

func mustScanner(t *testing.T, index Index, batchSize uint32) *Scanner {
	t.Helper()
	s, err := NewScanner(Config{
		Index:     index,
		BatchSize: batchSize,
		Rand:      rand.New(rand.NewSource(7)),
	})
	require.NoError(t, err)
	return s
}

func TestScanWhileStopsAtGap(t *testing.T) {
	g := mustGenerator(t, "segwit<["+tv1Child+"]/1/*>")
	index := &stubIndex{}
	index.fund(t, g, 0, 1, 2, 3, 4)

	set := NewSet()
	n, err := mustScanner(t, index, 2).Scan(set, []*descriptor.Generator{g},
		Mode{Type: While})
	require.NoError(t, err)

	// [0,2) [2,4) [4,6) find outputs, [6,8) is the empty batch.
	assert.Equal(t, 5, n)
	assert.Equal(t, 4, index.calls)
	require.Equal(t, 5, set.Len())
	for i, r := range set.Records() {
		assert.Equal(t, uint32(i), r.Index)
		assert.Equal(t, descriptor.SegWit, r.Category)
		assert.Equal(t, g.String(), r.Descriptor)
		assert.Equal(t, uint32(100+i), r.Height)
	}
	assert.Equal(t, btcutil.Amount(15000), set.Balance())
}

func TestScanSkipsIndicesOutsideRanges(t *testing.T) {
	g := mustGenerator(t, "segwit<["+tv1Child+"]/1/2-3>")
	unbounded := mustGenerator(t, "segwit<["+tv1Child+"]/1/*>")
	index := &stubIndex{}
	index.fund(t, unbounded, 0, 1, 2, 3, 4)

	set := NewSet()
	n, err := mustScanner(t, index, 8).Scan(set, []*descriptor.Generator{g},
		Mode{Type: First, Count: 8})
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Equal(t, 2, index.queried)
	for _, r := range set.Records() {
		assert.True(t, r.Index == 2 || r.Index == 3, r.Index)
	}
}

func TestScanIsIdempotent(t *testing.T) {
	g := mustGenerator(t, "hashed|segwit<["+tv1Child+"]/1/*>")
	index := &stubIndex{}
	index.fund(t, g, 0, 3)

	set := NewSet()
	scanner := mustScanner(t, index, 5)
	gens := []*descriptor.Generator{g}

	n, err := scanner.Scan(set, gens, Mode{Type: While})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// Everything is known already, so the first batch finds nothing new
	// and the scan ends.
	index.calls = 0
	n, err = scanner.Scan(set, gens, Mode{Type: While})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, index.calls)
	assert.Equal(t, 4, set.Len())
}

func TestScanFirst(t *testing.T) {
	g := mustGenerator(t, "segwit<["+tv1Child+"]/1/*>")
	index := &stubIndex{}
	index.fund(t, g, 1, 5)

	set := NewSet()
	n, err := mustScanner(t, index, 0).Scan(set, []*descriptor.Generator{g},
		Mode{Type: First, Count: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, index.calls)
	assert.Equal(t, 3, index.queried)
	assert.Equal(t, uint32(1), set.Records()[0].Index)
}

func TestScanRandom(t *testing.T) {
	g := mustGenerator(t, "segwit<["+tv1Child+"]/1/*>")
	index := &stubIndex{}

	set := NewSet()
	n, err := mustScanner(t, index, 50).Scan(set, []*descriptor.Generator{g},
		Mode{Type: Random, Count: 4})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, index.calls)
	assert.Equal(t, 4, index.queried)
}

func TestScanSkipsTaproot(t *testing.T) {
	g := mustGenerator(t, "segwit|taproot<["+tv1Child+"]/1/*>")
	index := &stubIndex{}
	index.fund(t, g, 0)

	set := NewSet()
	n, err := mustScanner(t, index, 0).Scan(set, []*descriptor.Generator{g},
		Mode{Type: First, Count: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, index.queried)
}

func TestScanDerivationFailureAbortsBatch(t *testing.T) {
	good := mustGenerator(t, "segwit<["+tv1Child+"]/1/*>")
	bad := mustGenerator(t, "segwit<"+keyGUncompressed+">")
	index := &stubIndex{}
	index.fund(t, good, 0)

	set := NewSet()
	n, err := mustScanner(t, index, 0).Scan(set,
		[]*descriptor.Generator{good, bad}, Mode{Type: First, Count: 2})
	require.Error(t, err)
	assert.Equal(t, 0, n)

	var lerr *LookupError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, uint32(0), lerr.Offset)
	assert.Equal(t, bad.String(), lerr.Descriptor)
	assert.True(t, descriptor.IsError(err,
		descriptor.ErrUncompressedKeyInWitnessContext))
	assert.Contains(t, err.Error(), "unable to generate key with index 0 "+
		"for descriptor "+bad.String())

	// Nothing from the failed batch reaches the index or the set.
	assert.Equal(t, 0, index.calls)
	assert.Equal(t, 0, set.Len())
}

func TestScanQueryFailureKeepsEarlierBatches(t *testing.T) {
	g := mustGenerator(t, "segwit<["+tv1Child+"]/1/*>")
	index := &stubIndex{failAt: 2}
	index.fund(t, g, 0, 1, 2, 3)

	set := NewSet()
	n, err := mustScanner(t, index, 2).Scan(set, []*descriptor.Generator{g},
		Mode{Type: While})
	require.Error(t, err)

	var lerr *LookupError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, uint32(2), lerr.Offset)
	assert.Empty(t, lerr.Descriptor)
	assert.EqualError(t, lerr.Err, "connection reset")

	assert.Equal(t, 2, n)
	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Contains(wire.OutPoint{
		Hash: chainhash.Hash{1, byte(descriptor.SegWit)}, Index: 1,
	}))
}

func TestNewScannerRequiresIndex(t *testing.T) {
	_, err := NewScanner(Config{})
	assert.Error(t, err)
}
