// Package netparams holds the per-network defaults of the index backends.
package netparams

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
)

// Params extends chaincfg.Params with the default endpoints of each
// supported index backend.
type Params struct {
	*chaincfg.Params

	// RPCPort is the bitcoind RPC port used for scantxoutset.
	RPCPort string

	// ElectrumPort is the TCP port of an Electrum server.
	ElectrumPort string

	// EsploraURL is the public Esplora API of the network, if any.
	EsploraURL string
}

// MainNetParams contains parameters specific to the main network.
var MainNetParams = Params{
	Params:       &chaincfg.MainNetParams,
	RPCPort:      "8332",
	ElectrumPort: "50001",
	EsploraURL:   "https://blockstream.info/api",
}

// TestNetParams contains parameters specific to the test network (version 3).
var TestNetParams = Params{
	Params:       &chaincfg.TestNet3Params,
	RPCPort:      "18332",
	ElectrumPort: "60001",
	EsploraURL:   "https://blockstream.info/testnet/api",
}

// SigNetParams contains parameters specific to the default signet.
var SigNetParams = Params{
	Params:       &chaincfg.SigNetParams,
	RPCPort:      "38332",
	ElectrumPort: "60601",
	EsploraURL:   "https://mempool.space/signet/api",
}

// RegressionNetParams contains parameters specific to the regression test
// network. It has no public Esplora instance.
var RegressionNetParams = Params{
	Params:       &chaincfg.RegressionNetParams,
	RPCPort:      "18443",
	ElectrumPort: "60401",
}

// ByName returns the parameters of a network by its chaincfg name.
func ByName(name string) (*Params, error) {
	for _, p := range []*Params{&MainNetParams, &TestNetParams,
		&SigNetParams, &RegressionNetParams} {

		if p.Name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("unknown network %q", name)
}
