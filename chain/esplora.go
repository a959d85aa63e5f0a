package chain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pandora-prime/bitcoin-pro/resolver"
	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/errgroup"
)

var (
	// MaxNumOfFailingRequests is the number of requests after which the
	// esplora circuit breaker may trip.
	MaxNumOfFailingRequests = 10

	// FailingRatio is the failure ratio tripping the breaker.
	FailingRatio = 0.6
)

const (
	defaultEsploraTimeout  = 15 * time.Second
	defaultEsploraRate     = 10
	defaultEsploraParallel = 4
)

// EsploraConfig configures an EsploraClient.
type EsploraConfig struct {
	// URL is the API root, e.g. https://blockstream.info/api.
	URL string

	// Timeout bounds every single HTTP request.
	Timeout time.Duration

	// RequestsPerSecond paces requests to the server.
	RequestsPerSecond int

	// Parallel is the number of requests in flight.
	Parallel int

	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
}

// EsploraClient queries unspent outputs through the Esplora REST API.
type EsploraClient struct {
	cfg     EsploraConfig
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
	limiter ratelimit.Limiter
}

var _ resolver.Index = (*EsploraClient)(nil)

// NewEsploraClient returns a client for the API at cfg.URL.
func NewEsploraClient(cfg EsploraConfig) (*EsploraClient, error) {
	if cfg.URL == "" {
		return nil, errors.New("missing esplora url")
	}
	cfg.URL = strings.TrimSuffix(cfg.URL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultEsploraTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultEsploraRate
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = defaultEsploraParallel
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &EsploraClient{
		cfg:     cfg,
		client:  client,
		cb:      newCircuitBreaker("esplora"),
		limiter: ratelimit.New(cfg.RequestsPerSecond),
	}, nil
}

// newCircuitBreaker returns a breaker opening once more than
// MaxNumOfFailingRequests requests were made and at least FailingRatio of
// them failed.
func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: name,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return int(counts.Requests) > MaxNumOfFailingRequests &&
				ratio >= FailingRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("Circuit breaker %s changed from %v to %v",
				name, from, to)
		},
	})
}

// esploraUtxo is an element of the /scripthash/:hash/utxo response.
type esploraUtxo struct {
	TxID   string `json:"txid"`
	Vout   uint32 `json:"vout"`
	Value  int64  `json:"value"`
	Status struct {
		Confirmed   bool   `json:"confirmed"`
		BlockHeight uint32 `json:"block_height"`
	} `json:"status"`
}

// EsploraScriptHash returns the script identifier used by the Esplora
// API, the hex sha256 of the script.
func EsploraScriptHash(script []byte) string {
	h := sha256.Sum256(script)
	return hex.EncodeToString(h[:])
}

// BatchQueryUnspent looks up each script with its own request. Results are
// returned in script order and the first failure fails the batch.
func (c *EsploraClient) BatchQueryUnspent(
	scripts [][]byte) ([][]resolver.Unspent, error) {

	results := make([][]resolver.Unspent, len(scripts))

	eg, ctx := errgroup.WithContext(context.Background())
	eg.SetLimit(c.cfg.Parallel)
	for i := range scripts {
		i := i
		eg.Go(func() error {
			c.limiter.Take()
			unspents, err := c.scriptUnspents(ctx, scripts[i])
			if err != nil {
				return err
			}
			results[i] = unspents
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *EsploraClient) scriptUnspents(ctx context.Context,
	script []byte) ([]resolver.Unspent, error) {

	url := fmt.Sprintf("%s/scripthash/%s/utxo", c.cfg.URL,
		EsploraScriptHash(script))

	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.get(ctx, url)
	})
	if err != nil {
		return nil, fmt.Errorf("esplora request %s: %w", url, err)
	}

	var utxos []esploraUtxo
	if err := json.Unmarshal(resp.([]byte), &utxos); err != nil {
		return nil, fmt.Errorf("malformed esplora response: %w", err)
	}

	unspents := make([]resolver.Unspent, 0, len(utxos))
	for _, u := range utxos {
		hash, err := chainhash.NewHashFromStr(u.TxID)
		if err != nil {
			return nil, fmt.Errorf("malformed esplora txid %q: %w",
				u.TxID, err)
		}
		unspents = append(unspents, resolver.Unspent{
			OutPoint: *wire.NewOutPoint(hash, u.Vout),
			Height:   u.Status.BlockHeight,
			Amount:   btcutil.Amount(u.Value),
		})
	}
	return unspents, nil
}

func (c *EsploraClient) get(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode,
			strings.TrimSpace(string(body)))
	}
	return body, nil
}

// TipHeight returns the height of the best block known to the server.
func (c *EsploraClient) TipHeight() (uint32, error) {
	body, err := c.get(context.Background(), c.cfg.URL+"/blocks/tip/height")
	if err != nil {
		return 0, err
	}
	var height uint32
	if err := json.Unmarshal(body, &height); err != nil {
		return 0, fmt.Errorf("malformed tip height: %w", err)
	}
	return height, nil
}
