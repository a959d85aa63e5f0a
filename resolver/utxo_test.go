package resolver

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pandora-prime/bitcoin-pro/descriptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outPoint(b byte, index uint32) wire.OutPoint {
	return wire.OutPoint{Hash: chainhash.Hash{b}, Index: index}
}

func TestSetInsertDeduplicates(t *testing.T) {
	s := NewSet()
	r := Record{OutPoint: outPoint(1, 0), Amount: 1000, Descriptor: "a"}

	assert.True(t, s.Insert(r))
	assert.False(t, s.Insert(r))

	// A different origin for the same outpoint is still a duplicate.
	dup := r
	dup.Descriptor = "b"
	assert.False(t, s.Insert(dup))

	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Contains(r.OutPoint))
	assert.False(t, s.Contains(outPoint(1, 1)))
	assert.Equal(t, "a", s.Records()[0].Descriptor)
}

func TestSetRecordsOrder(t *testing.T) {
	s := NewSet(
		Record{OutPoint: outPoint(3, 0), Descriptor: "b", Index: 0},
		Record{OutPoint: outPoint(2, 1), Descriptor: "a", Index: 1},
		Record{OutPoint: outPoint(2, 0), Descriptor: "a", Index: 1},
		Record{OutPoint: outPoint(9, 0), Descriptor: "a", Index: 0,
			Category: descriptor.SegWit},
		Record{OutPoint: outPoint(8, 0), Descriptor: "a", Index: 0,
			Category: descriptor.Hashed},
	)

	var got []wire.OutPoint
	for _, r := range s.Records() {
		got = append(got, r.OutPoint)
	}
	assert.Equal(t, []wire.OutPoint{
		outPoint(8, 0), outPoint(9, 0), outPoint(2, 0), outPoint(2, 1),
		outPoint(3, 0),
	}, got)
}

func TestSetBalance(t *testing.T) {
	var s Set
	assert.Equal(t, btcutil.Amount(0), s.Balance())

	s.Insert(Record{OutPoint: outPoint(1, 0), Amount: 1500})
	s.Insert(Record{OutPoint: outPoint(1, 1), Amount: 2500})
	assert.Equal(t, btcutil.Amount(4000), s.Balance())
}

func TestRecordString(t *testing.T) {
	r := Record{OutPoint: outPoint(0, 3), Amount: 12345}
	require.Equal(t, "12345@"+chainhash.Hash{}.String()+":3", r.String())
}
