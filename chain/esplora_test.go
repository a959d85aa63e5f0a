package chain

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEsploraServer(t *testing.T, handler http.HandlerFunc) *EsploraClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewEsploraClient(EsploraConfig{
		URL:               srv.URL + "/",
		RequestsPerSecond: 1000,
	})
	require.NoError(t, err)
	return c
}

func TestEsploraBatchQueryUnspent(t *testing.T) {
	c := newEsploraServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/scripthash/" + p2pkhEsplora + "/utxo":
			w.Write([]byte(`[
				{"txid":"` + txA + `","vout":1,"value":2500,
				 "status":{"confirmed":true,"block_height":700000}},
				{"txid":"` + txB + `","vout":0,"value":10,
				 "status":{"confirmed":false}}
			]`))
		case "/blocks/tip/height":
			w.Write([]byte("800000"))
		default:
			w.Write([]byte("[]"))
		}
	})

	results, err := c.BatchQueryUnspent([][]byte{
		mustHex(t, "0014751e76e8199196d454941c45d1b3a323f1433bd6"),
		mustHex(t, p2pkhScript),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Empty(t, results[0])
	require.Len(t, results[1], 2)

	assert.Equal(t, txA, results[1][0].OutPoint.Hash.String())
	assert.Equal(t, uint32(1), results[1][0].OutPoint.Index)
	assert.Equal(t, uint32(700000), results[1][0].Height)
	assert.Equal(t, btcutil.Amount(2500), results[1][0].Amount)
	assert.Equal(t, uint32(0), results[1][1].Height)

	height, err := c.TipHeight()
	require.NoError(t, err)
	assert.Equal(t, uint32(800000), height)
}

func TestEsploraFailureFailsBatch(t *testing.T) {
	c := newEsploraServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, p2pkhEsplora) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("[]"))
	})

	_, err := c.BatchQueryUnspent([][]byte{
		mustHex(t, "00"), mustHex(t, p2pkhScript),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestEsploraMalformedResponse(t *testing.T) {
	c := newEsploraServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"txid":"nothex","vout":0,"value":1}]`))
	})

	_, err := c.BatchQueryUnspent([][]byte{mustHex(t, p2pkhScript)})
	assert.Error(t, err)
}

func TestEsploraCircuitBreakerTrips(t *testing.T) {
	var hits int32
	c := newEsploraServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "down", http.StatusInternalServerError)
	})

	script := [][]byte{mustHex(t, p2pkhScript)}
	for i := 0; i < MaxNumOfFailingRequests+5; i++ {
		_, err := c.BatchQueryUnspent(script)
		require.Error(t, err)
	}

	// Once open, the breaker stops requests from reaching the server.
	assert.Equal(t, int32(MaxNumOfFailingRequests+1), atomic.LoadInt32(&hits))
}

func TestNewEsploraClientRequiresURL(t *testing.T) {
	_, err := NewEsploraClient(EsploraConfig{})
	assert.Error(t, err)
}
