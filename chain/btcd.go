package chain

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/pandora-prime/bitcoin-pro/resolver"
)

// RPCClient looks up unspent outputs with the scantxoutset call of a
// bitcoind node.
type RPCClient struct {
	*rpcclient.Client
	connConfig  *rpcclient.ConnConfig
	chainParams *chaincfg.Params
}

var _ resolver.Index = (*RPCClient)(nil)

func NewRPCClient(chainParams *chaincfg.Params, connect, user, pass string, certs []byte,
	disableTLS bool) (*RPCClient, error) {

	if connect == "" {
		return nil, errors.New("missing rpc server address")
	}

	client := &RPCClient{
		connConfig: &rpcclient.ConnConfig{
			Host:         connect,
			User:         user,
			Pass:         pass,
			Certificates: certs,
			HTTPPostMode: true,
			DisableTLS:   disableTLS,
		},
		chainParams: chainParams,
	}
	rpcClient, err := rpcclient.New(client.connConfig, nil)
	if err != nil {
		return nil, err
	}
	client.Client = rpcClient
	return client, nil
}

type scanObject struct {
	Desc string `json:"desc"`
}

type scanUnspent struct {
	TxID         string  `json:"txid"`
	Vout         uint32  `json:"vout"`
	ScriptPubKey string  `json:"scriptPubKey"`
	Amount       float64 `json:"amount"`
	Height       uint32  `json:"height"`
}

type scanResult struct {
	Success  bool          `json:"success"`
	Unspents []scanUnspent `json:"unspents"`
}

// BatchQueryUnspent scans the node's UTXO set once for all scripts, given
// as raw() descriptors.
func (c *RPCClient) BatchQueryUnspent(
	scripts [][]byte) ([][]resolver.Unspent, error) {

	if len(scripts) == 0 {
		return nil, nil
	}

	objects := make([]scanObject, len(scripts))
	positions := make(map[string][]int, len(scripts))
	for i, script := range scripts {
		h := hex.EncodeToString(script)
		objects[i] = scanObject{Desc: "raw(" + h + ")"}
		positions[h] = append(positions[h], i)
	}

	action, err := json.Marshal("start")
	if err != nil {
		return nil, err
	}
	scanObjects, err := json.Marshal(objects)
	if err != nil {
		return nil, err
	}
	raw, err := c.RawRequest("scantxoutset",
		[]json.RawMessage{action, scanObjects})
	if err != nil {
		return nil, fmt.Errorf("scantxoutset: %w", err)
	}

	var res scanResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("malformed scantxoutset result: %w", err)
	}
	if !res.Success {
		return nil, errors.New("scantxoutset did not complete")
	}

	results := make([][]resolver.Unspent, len(scripts))
	for _, u := range res.Unspents {
		hash, err := chainhash.NewHashFromStr(u.TxID)
		if err != nil {
			return nil, fmt.Errorf("malformed txid %q: %w", u.TxID, err)
		}
		amount, err := btcutil.NewAmount(u.Amount)
		if err != nil {
			return nil, err
		}
		unspent := resolver.Unspent{
			OutPoint: *wire.NewOutPoint(hash, u.Vout),
			Height:   u.Height,
			Amount:   amount,
		}
		for _, i := range positions[u.ScriptPubKey] {
			results[i] = append(results[i], unspent)
		}
	}

	log.Debugf("scantxoutset matched %d outputs for %d scripts",
		len(res.Unspents), len(scripts))
	return results, nil
}
