package chain

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	p2pkhScript   = "76a91462e907b15cbf27d5425399ebf6f0fb50ebb88f1888ac"
	p2pkhElectrum = "8b01df4e368ea28f8dc0423bcf7a4923e3a12d307c875e47a0cfbf90b5c39161"
	p2pkhEsplora  = "6191c3b590bfcfa0475e877c302da1e323497acf3b42c08d8fa28e364edf018b"

	txA = "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"
	txB = "0e3e2357e806b6cdb1f70b54c3a3a17b6714ee1f0e68bebb44a74b1efd512098"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestScriptHashes(t *testing.T) {
	script := mustHex(t, p2pkhScript)
	assert.Equal(t, p2pkhElectrum, ElectrumScriptHash(script))
	assert.Equal(t, p2pkhEsplora, EsploraScriptHash(script))
}

// fakeElectrum answers server.version and listunspent requests, replying to
// batches in reverse order. The first stall listunspent requests are
// answered only after the delay.
func fakeElectrum(t *testing.T, unspents map[string][]electrumUnspent,
	stall int, delay time.Duration) string {

	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	var stalled int32
	serve := func(conn net.Conn) {
		defer conn.Close()

		reader := bufio.NewReader(conn)
		for {
			line, err := reader.ReadBytes('\n')
			if err != nil {
				return
			}

			var reqs []rpcRequest
			single := line[0] == '{'
			if single {
				reqs = make([]rpcRequest, 1)
				err = json.Unmarshal(line, &reqs[0])
			} else {
				err = json.Unmarshal(line, &reqs)
			}
			if err != nil {
				return
			}

			resps := make([]map[string]interface{}, 0, len(reqs))
			for i := len(reqs) - 1; i >= 0; i-- {
				req := reqs[i]
				resp := map[string]interface{}{"id": req.ID}
				switch req.Method {
				case "server.version":
					resp["result"] = []string{"fake 1.0", "1.4"}
				case "blockchain.scripthash.listunspent":
					list := unspents[req.Params[0].(string)]
					if list == nil {
						list = []electrumUnspent{}
					}
					resp["result"] = list
				default:
					resp["error"] = map[string]interface{}{
						"code": -32601, "message": "unknown method",
					}
				}
				resps = append(resps, resp)
			}

			if !single && atomic.AddInt32(&stalled, 1) <= int32(stall) {
				time.Sleep(delay)
			}

			var out []byte
			if single {
				out, _ = json.Marshal(resps[0])
			} else {
				out, _ = json.Marshal(resps)
			}
			conn.Write(append(out, '\n'))
		}
	}

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go serve(conn)
		}
	}()

	return l.Addr().String()
}

func TestElectrumBatchQueryUnspent(t *testing.T) {
	addr := fakeElectrum(t, map[string][]electrumUnspent{
		p2pkhElectrum: {
			{TxHash: txA, TxPos: 0, Height: 1, Value: 5000000000},
			{TxHash: txB, TxPos: 3, Height: 0, Value: 1200},
		},
	}, 0, 0)

	c, err := NewElectrumClient(ElectrumConfig{Addr: addr, Timeout: 5 * time.Second})
	require.NoError(t, err)
	defer c.Close()

	results, err := c.BatchQueryUnspent([][]byte{
		mustHex(t, "0014751e76e8199196d454941c45d1b3a323f1433bd6"),
		mustHex(t, p2pkhScript),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Empty(t, results[0])
	require.Len(t, results[1], 2)

	first := results[1][0]
	assert.Equal(t, txA, first.OutPoint.Hash.String())
	assert.Equal(t, uint32(0), first.OutPoint.Index)
	assert.Equal(t, uint32(1), first.Height)
	assert.Equal(t, btcutil.Amount(5000000000), first.Amount)

	mempool := results[1][1]
	hash, err := chainhash.NewHashFromStr(txB)
	require.NoError(t, err)
	assert.Equal(t, *hash, mempool.OutPoint.Hash)
	assert.Equal(t, uint32(3), mempool.OutPoint.Index)
	assert.Equal(t, uint32(0), mempool.Height)

	empty, err := c.BatchQueryUnspent(nil)
	assert.NoError(t, err)
	assert.Empty(t, empty)
}

func TestElectrumRedialsAfterTimeout(t *testing.T) {
	addr := fakeElectrum(t, map[string][]electrumUnspent{
		p2pkhElectrum: {{TxHash: txA, TxPos: 1, Height: 7, Value: 600}},
	}, 1, 600*time.Millisecond)

	c, err := NewElectrumClient(ElectrumConfig{
		Addr:    addr,
		Timeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	defer c.Close()

	script := mustHex(t, p2pkhScript)
	_, err = c.BatchQueryUnspent([][]byte{script, script})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "electrum read")

	// The late reply of the timed out request must not be read as the
	// answer to this one.
	time.Sleep(500 * time.Millisecond)
	results, err := c.BatchQueryUnspent([][]byte{script, script})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Len(t, results[0], 1)
	assert.Equal(t, uint32(1), results[0][0].OutPoint.Index)
	assert.Equal(t, btcutil.Amount(600), results[1][0].Amount)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestNewElectrumClientErrors(t *testing.T) {
	_, err := NewElectrumClient(ElectrumConfig{})
	assert.Error(t, err)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()

	_, err = NewElectrumClient(ElectrumConfig{Addr: addr, Timeout: time.Second})
	assert.Error(t, err)
}
