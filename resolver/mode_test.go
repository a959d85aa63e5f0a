package resolver

import (
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		err  error
	}{
		{in: "while", want: Mode{Type: While}},
		{in: "first", want: Mode{Type: First, Count: 1}},
		{in: "first20", want: Mode{Type: First, Count: 20}},
		{in: "random", want: Mode{Type: Random, Count: 1}},
		{in: "random7", want: Mode{Type: Random, Count: 7}},
		{in: "firstx", err: ErrInvalidInteger},
		{in: "first-1", err: ErrInvalidInteger},
		{in: "first4294967296", err: ErrInvalidInteger},
		{in: "random2147483648", err: ErrHardenedIndex},
		{in: "sometimes", err: ErrUnrecognizedMode},
		{in: "While", err: ErrUnrecognizedMode},
	}

	for _, test := range tests {
		got, err := ParseMode(test.in)
		if test.err != nil {
			assert.ErrorIs(t, err, test.err, test.in)
			continue
		}
		require.NoError(t, err, test.in)
		assert.Equal(t, test.want, got, test.in)
	}
}

func TestModeString(t *testing.T) {
	for _, s := range []string{"while", "first1", "first20", "random3"} {
		m, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, s, m.String())
	}
}

func TestModeBatchSize(t *testing.T) {
	assert.Equal(t, uint32(DefaultBatchSize), Mode{Type: While}.BatchSize(0))
	assert.Equal(t, uint32(5), Mode{Type: While}.BatchSize(5))
	assert.Equal(t, uint32(3), Mode{Type: First, Count: 3}.BatchSize(5))
}

func TestBatchIteratorWhile(t *testing.T) {
	it := Mode{Type: While}.Batches(3, nil)

	batch, ok := it.Next(0)
	require.True(t, ok)
	assert.Equal(t, []uint32{0, 1, 2}, batch)

	batch, ok = it.Next(2)
	require.True(t, ok)
	assert.Equal(t, []uint32{3, 4, 5}, batch)

	_, ok = it.Next(0)
	assert.False(t, ok)

	// Exhausted iterators stay exhausted.
	_, ok = it.Next(10)
	assert.False(t, ok)
}

func TestBatchIteratorFirst(t *testing.T) {
	it := Mode{Type: First, Count: 4}.Batches(DefaultBatchSize, nil)

	batch, ok := it.Next(0)
	require.True(t, ok)
	assert.Equal(t, []uint32{0, 1, 2, 3}, batch)

	_, ok = it.Next(4)
	assert.False(t, ok)
}

func TestBatchIteratorRandom(t *testing.T) {
	it := Mode{Type: Random, Count: 50}.Batches(0, rand.New(rand.NewSource(1)))

	batch, ok := it.Next(0)
	require.True(t, ok)
	require.Len(t, batch, 50)
	for _, index := range batch {
		assert.Less(t, index, uint32(hdkeychain.HardenedKeyStart))
	}

	_, ok = it.Next(1)
	assert.False(t, ok)
}

func TestBatchIteratorStopsBeforeHardened(t *testing.T) {
	it := &BatchIterator{
		mode:   Mode{Type: While},
		size:   10,
		offset: hdkeychain.HardenedKeyStart - 4,
	}

	batch, ok := it.Next(0)
	require.True(t, ok)
	assert.Len(t, batch, 4)
	assert.Equal(t, uint32(hdkeychain.HardenedKeyStart-1), batch[3])

	_, ok = it.Next(4)
	assert.False(t, ok)
}

func TestBatchIteratorEmptyFirst(t *testing.T) {
	_, ok := Mode{Type: First, Count: 0}.Batches(0, nil).Next(0)
	assert.False(t, ok)
}
