package entropy

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	randomOrgURL = "https://api.random.org/json-rpc/4/invoke"
	poolLow      = 10
	batchSize    = 100
)

// Client provides true random numbers from random.org with a local pool.
// Float never waits on the network: when the pool runs low a background
// refill is started and crypto/rand covers the gap.
type Client struct {
	apiKey   string
	endpoint string
	client   *http.Client

	mu        sync.Mutex
	pool      []float64
	refilling bool
}

// NewClient creates a random.org client. Returns nil if apiKey is empty.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey:   apiKey,
		endpoint: randomOrgURL,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Float returns a random float64 in [0, 1).
func (c *Client) Float() float64 {
	if !c.Enabled() {
		return cryptoRandFloat()
	}

	c.mu.Lock()
	if len(c.pool) < poolLow && !c.refilling {
		c.refilling = true
		go c.refill(context.Background())
	}
	if len(c.pool) == 0 {
		c.mu.Unlock()
		return cryptoRandFloat()
	}
	val := c.pool[0]
	c.pool = c.pool[1:]
	c.mu.Unlock()
	return val
}

// Pooled reports how many remote values are buffered.
func (c *Client) Pooled() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pool)
}

// Refill fetches a batch synchronously. Used to warm the pool at startup.
func (c *Client) Refill(ctx context.Context) {
	if !c.Enabled() {
		return
	}
	c.mu.Lock()
	c.refilling = true
	c.mu.Unlock()
	c.refill(ctx)
}

func (c *Client) refill(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		c.refilling = false
		c.mu.Unlock()
	}()

	data, err := c.fetch(ctx)
	if err != nil {
		slog.Debug("random.org refill failed", "error", err)
		return
	}

	c.mu.Lock()
	c.pool = append(c.pool, data...)
	c.mu.Unlock()
	slog.Debug("random.org pool refilled", "count", len(data))
}

type rpcResult struct {
	Result struct {
		Random struct {
			Data []float64 `json:"data"`
		} `json:"random"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) fetch(ctx context.Context) ([]float64, error) {
	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "generateDecimalFractions",
		"params": map[string]any{
			"apiKey":        c.apiKey,
			"n":             batchSize,
			"decimalPlaces": 6,
		},
		"id": 1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result rpcResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, err
	}
	if result.Error != nil {
		return nil, &apiError{msg: result.Error.Message}
	}
	return result.Result.Random.Data, nil
}

type apiError struct{ msg string }

func (e *apiError) Error() string { return "random.org: " + e.msg }

// cryptoRandFloat generates a random float64 using crypto/rand.
func cryptoRandFloat() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0.5
	}
	// 53 bits for a uniform float64 in [0, 1).
	n := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(1<<53)
}

// FromConfig picks the remote client when a key is set, a seeded source when
// seed is non-zero, and crypto/rand otherwise.
func FromConfig(apiKey string, seed int64) Source {
	if c := NewClient(apiKey); c != nil {
		return c
	}
	if seed != 0 {
		return NewSeeded(seed)
	}
	return Crypto{}
}
