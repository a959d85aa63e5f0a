package resolver

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// Unspent is an unspent output reported by a blockchain index.
type Unspent struct {
	OutPoint wire.OutPoint
	Height   uint32
	Amount   btcutil.Amount
}

// Index answers unspent output queries for scriptPubKeys.
type Index interface {
	// BatchQueryUnspent returns, for every script in order, the unspent
	// outputs paying to it. Ordering is only meaningful within the list
	// of a single script. An error fails the whole batch.
	BatchQueryUnspent(scripts [][]byte) ([][]Unspent, error)
}
