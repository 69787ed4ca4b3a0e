// Package entropy draws run seeds from true randomness via random.org.
// Falls back to crypto/rand when the API is unavailable.
package entropy

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultEndpoint is the random.org JSON-RPC endpoint.
const DefaultEndpoint = "https://api.random.org/json-rpc/4/invoke"

// Each random.org draw is an integer in [0, intSpan); two draws make a seed.
const intSpan = 1_000_000_000

// Source names where a seed came from.
type Source string

const (
	SourceRandomOrg Source = "random.org"
	SourceCrypto    Source = "crypto/rand"
)

// Client fetches true random numbers from random.org.
type Client struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewClient creates a random.org client. Returns nil if apiKey is empty.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey:   apiKey,
		endpoint: DefaultEndpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// WithEndpoint points the client at another JSON-RPC endpoint.
func (c *Client) WithEndpoint(url string) *Client {
	c.endpoint = url
	return c
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Seed returns a positive seed and where it came from. Without a client, or
// when random.org fails, the seed comes from crypto/rand.
func (c *Client) Seed(ctx context.Context) (int64, Source) {
	if c.Enabled() {
		ints, err := c.integers(ctx, 2)
		if err == nil {
			return positive(ints[0]*intSpan + ints[1]), SourceRandomOrg
		}
		slog.Warn("random.org unavailable, using crypto/rand", "error", err)
	}
	return CryptoSeed(), SourceCrypto
}

func (c *Client) integers(ctx context.Context, n int) ([]int64, error) {
	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "generateIntegers",
		"params": map[string]any{
			"apiKey": c.apiKey,
			"n":      n,
			"min":    0,
			"max":    intSpan - 1,
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
		return nil, fmt.Errorf("random.org fetch: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("random.org read: %w", err)
	}

	var result struct {
		Result struct {
			Random struct {
				Data []int64 `json:"data"`
			} `json:"random"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("random.org parse: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("random.org API error: %s", result.Error.Message)
	}
	if len(result.Result.Random.Data) < n {
		return nil, fmt.Errorf("random.org returned %d of %d integers", len(result.Result.Random.Data), n)
	}

	slog.Debug("random.org integers drawn", "count", n)
	return result.Result.Random.Data, nil
}

// CryptoSeed returns a positive seed from crypto/rand (no API needed).
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen; fall back to the clock.
		return positive(time.Now().UnixNano())
	}
	return positive(int64(binary.LittleEndian.Uint64(buf[:]) >> 1))
}

// positive maps v onto a non-zero, non-negative seed. Zero is reserved for
// "draw a seed".
func positive(v int64) int64 {
	if v < 0 {
		v = -v
	}
	if v <= 0 {
		return 1
	}
	return v
}
