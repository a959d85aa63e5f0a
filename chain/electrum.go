package chain

import (
	"bufio"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pandora-prime/bitcoin-pro/resolver"
)

const (
	defaultElectrumTimeout = 30 * time.Second

	// electrumProtocol is the protocol version negotiated with
	// server.version.
	electrumProtocol = "1.4"

	clientName = "bpro"
)

// ElectrumConfig configures an ElectrumClient.
type ElectrumConfig struct {
	// Addr is the host:port of the server.
	Addr string

	// TLS enables a TLS connection.
	TLS bool

	// SkipVerify disables certificate verification, as most Electrum
	// servers use self signed certificates.
	SkipVerify bool

	// Timeout bounds every request round trip.
	Timeout time.Duration
}

// ElectrumClient speaks the Electrum JSON-RPC protocol over one
// connection. Requests are serialized. A connection which failed mid
// request is dropped and redialed by the next request.
type ElectrumClient struct {
	cfg ElectrumConfig

	mtx    sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	nextID uint64
}

var _ resolver.Index = (*ElectrumClient)(nil)

// NewElectrumClient connects to the server and negotiates the protocol
// version.
func NewElectrumClient(cfg ElectrumConfig) (*ElectrumClient, error) {
	if cfg.Addr == "" {
		return nil, errors.New("missing electrum server address")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultElectrumTimeout
	}

	c := &ElectrumClient{cfg: cfg}
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// connect dials the server and runs the version handshake. The caller
// must hold mtx.
func (c *ElectrumClient) connect() error {
	dialer := &net.Dialer{Timeout: c.cfg.Timeout}
	var (
		conn net.Conn
		err  error
	)
	if c.cfg.TLS {
		conn, err = tls.DialWithDialer(dialer, "tcp", c.cfg.Addr,
			&tls.Config{InsecureSkipVerify: c.cfg.SkipVerify})
	} else {
		conn, err = dialer.Dial("tcp", c.cfg.Addr)
	}
	if err != nil {
		return fmt.Errorf("unable to connect to electrum server "+
			"%s: %w", c.cfg.Addr, err)
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)

	results, err := c.roundTrip(versionRequest(), false)
	if err != nil {
		c.disconnect()
		return err
	}
	version, err := parseVersion(results[0])
	if err != nil {
		c.disconnect()
		return err
	}
	log.Infof("Connected to electrum server %s (%v)", c.cfg.Addr, version)
	return nil
}

// disconnect drops the connection. The caller must hold mtx.
func (c *ElectrumClient) disconnect() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil {
		log.Debugf("Closing electrum connection: %v", err)
	}
	c.conn = nil
	c.reader = nil
}

// Close closes the connection.
func (c *ElectrumClient) Close() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("electrum error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// ServerVersion runs the server.version handshake and returns the server
// software and protocol version.
func (c *ElectrumClient) ServerVersion() ([]string, error) {
	results, err := c.call(versionRequest(), false)
	if err != nil {
		return nil, err
	}
	return parseVersion(results[0])
}

func versionRequest() []rpcRequest {
	return []rpcRequest{{
		Method: "server.version",
		Params: []interface{}{clientName, electrumProtocol},
	}}
}

func parseVersion(raw json.RawMessage) ([]string, error) {
	var version []string
	if err := json.Unmarshal(raw, &version); err != nil {
		return nil, fmt.Errorf("malformed server.version result: %w", err)
	}
	return version, nil
}

// ElectrumScriptHash returns the script identifier of the Electrum
// protocol: the sha256 of the script, byte reversed, in hex.
func ElectrumScriptHash(script []byte) string {
	h := sha256.Sum256(script)
	for i, j := 0, len(h)-1; i < j; i, j = i+1, j-1 {
		h[i], h[j] = h[j], h[i]
	}
	return hex.EncodeToString(h[:])
}

type electrumUnspent struct {
	TxHash string `json:"tx_hash"`
	TxPos  uint32 `json:"tx_pos"`
	Height int64  `json:"height"`
	Value  int64  `json:"value"`
}

// BatchQueryUnspent sends one batched blockchain.scripthash.listunspent
// request for all scripts.
func (c *ElectrumClient) BatchQueryUnspent(
	scripts [][]byte) ([][]resolver.Unspent, error) {

	if len(scripts) == 0 {
		return nil, nil
	}

	reqs := make([]rpcRequest, len(scripts))
	for i, script := range scripts {
		reqs[i] = rpcRequest{
			Method: "blockchain.scripthash.listunspent",
			Params: []interface{}{ElectrumScriptHash(script)},
		}
	}
	raw, err := c.call(reqs, true)
	if err != nil {
		return nil, err
	}

	results := make([][]resolver.Unspent, len(scripts))
	for i, r := range raw {
		var list []electrumUnspent
		if err := json.Unmarshal(r, &list); err != nil {
			return nil, fmt.Errorf("malformed listunspent result: %w",
				err)
		}
		for _, u := range list {
			hash, err := chainhash.NewHashFromStr(u.TxHash)
			if err != nil {
				return nil, fmt.Errorf("malformed tx hash %q: %w",
					u.TxHash, err)
			}
			// Mempool outputs report a height of 0 or -1.
			var height uint32
			if u.Height > 0 {
				height = uint32(u.Height)
			}
			results[i] = append(results[i], resolver.Unspent{
				OutPoint: *wire.NewOutPoint(hash, u.TxPos),
				Height:   height,
				Amount:   btcutil.Amount(u.Value),
			})
		}
	}
	return results, nil
}

// call sends the requests, as a JSON array when batch is set, and returns
// the results in request order.
func (c *ElectrumClient) call(reqs []rpcRequest,
	batch bool) ([]json.RawMessage, error) {

	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.conn == nil {
		log.Debugf("Reconnecting to electrum server %s", c.cfg.Addr)
		if err := c.connect(); err != nil {
			return nil, err
		}
	}
	return c.roundTrip(reqs, batch)
}

// roundTrip writes one request line and reads one reply line. Any failure
// other than an error result leaves the stream in an unknown state, so the
// connection is dropped. The caller must hold mtx.
func (c *ElectrumClient) roundTrip(reqs []rpcRequest,
	batch bool) ([]json.RawMessage, error) {

	index := make(map[uint64]int, len(reqs))
	for i := range reqs {
		c.nextID++
		reqs[i].JSONRPC = "2.0"
		reqs[i].ID = c.nextID
		index[c.nextID] = i
	}

	var (
		payload []byte
		err     error
	)
	if batch {
		payload, err = json.Marshal(reqs)
	} else {
		payload, err = json.Marshal(reqs[0])
	}
	if err != nil {
		return nil, err
	}

	resps, err := c.exchange(payload, batch)
	if err != nil {
		c.disconnect()
		return nil, err
	}

	results := make([]json.RawMessage, len(reqs))
	seen := 0
	for _, resp := range resps {
		i, ok := index[resp.ID]
		if !ok || results[i] != nil {
			c.disconnect()
			return nil, fmt.Errorf("unexpected electrum response id %d",
				resp.ID)
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("%s: %w", reqs[i].Method, resp.Error)
		}
		results[i] = resp.Result
		seen++
	}
	if seen != len(reqs) {
		c.disconnect()
		return nil, fmt.Errorf("electrum answered %d of %d requests",
			seen, len(reqs))
	}
	return results, nil
}

func (c *ElectrumClient) exchange(payload []byte,
	batch bool) ([]rpcResponse, error) {

	deadline := time.Now().Add(c.cfg.Timeout)
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	if _, err := c.conn.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("electrum write: %w", err)
	}
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("electrum read: %w", err)
	}

	var resps []rpcResponse
	if batch {
		err = json.Unmarshal(line, &resps)
	} else {
		resps = make([]rpcResponse, 1)
		err = json.Unmarshal(line, &resps[0])
	}
	if err != nil {
		return nil, fmt.Errorf("malformed electrum response: %w", err)
	}
	return resps, nil
}
