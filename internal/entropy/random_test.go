package entropy

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNilClientUsesCrypto(t *testing.T) {
	var c *Client
	assert.Nil(t, NewClient(""))
	assert.False(t, c.Enabled())

	seed, src := c.Seed(context.Background())
	assert.Equal(t, SourceCrypto, src)
	assert.Positive(t, seed)
}

func TestSeedFromRandomOrg(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string         `json:"method"`
			Params map[string]any `json:"params"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "generateIntegers", req.Method)
		assert.Equal(t, "key", req.Params["apiKey"])
		assert.Equal(t, float64(2), req.Params["n"])

		w.Write([]byte(`{"jsonrpc":"2.0","result":{"random":{"data":[12,345]}},"id":1}`))
	}))
	defer srv.Close()

	seed, src := NewClient("key").WithEndpoint(srv.URL).Seed(context.Background())
	assert.Equal(t, SourceRandomOrg, src)
	assert.Equal(t, int64(12*intSpan+345), seed)
}

func TestSeedFallsBackOnAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","error":{"message":"quota exceeded"},"id":1}`))
	}))
	defer srv.Close()

	seed, src := NewClient("key").WithEndpoint(srv.URL).Seed(context.Background())
	assert.Equal(t, SourceCrypto, src)
	assert.Positive(t, seed)
}

func TestPositive(t *testing.T) {
	assert.Equal(t, int64(1), positive(0))
	assert.Equal(t, int64(7), positive(-7))
	assert.Equal(t, int64(1), positive(math.MinInt64))
	assert.Equal(t, int64(math.MaxInt64), positive(math.MaxInt64))
}
