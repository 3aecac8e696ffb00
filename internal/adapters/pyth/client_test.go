package pyth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const btcFeed = "e62df6c8b4a85fe1a67db44dc12de5db330f7ac66b72dc658afedf0f4a415b43"

const latestBody = `{
  "binary": {"encoding": "hex", "data": ["504e4155"]},
  "parsed": [{
    "id": "e62df6c8b4a85fe1a67db44dc12de5db330f7ac66b72dc658afedf0f4a415b43",
    "price": {"price": "6423517000000", "conf": "3260000000", "expo": -8, "publish_time": 1719830400},
    "ema_price": {"price": "6420000000000", "conf": "3000000000", "expo": -8, "publish_time": 1719830400},
    "metadata": {"slot": 1, "proof_available_time": 1719830401, "prev_publish_time": 1719830399}
  }]
}`

func newTestClient(url string) *Client {
	c := NewClient(url, map[string]string{"BTC": "0x" + btcFeed}, time.Minute)
	c.now = func() time.Time { return time.Unix(1719830410, 0) }
	return c
}

func TestClient_GetPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/updates/price/latest", r.URL.Path)
		assert.Equal(t, "0x"+btcFeed, r.URL.Query().Get("ids[]"))
		w.Write([]byte(latestBody))
	}))
	defer srv.Close()

	p, err := newTestClient(srv.URL).GetPrice(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, "64235.17", p.Value.String())
	assert.Equal(t, "32.6", p.Confidence.String())
	assert.Equal(t, time.Unix(1719830400, 0).UTC(), p.PublishTime)
}

func TestClient_UnknownSymbol(t *testing.T) {
	_, err := newTestClient("http://unused").GetPrice(context.Background(), "DOGE")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClient_RejectsStalePrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(latestBody))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.now = func() time.Time { return time.Unix(1719830400, 0).Add(time.Hour) }
	_, err := c.GetPrice(context.Background(), "BTC")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stale")
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(latestBody))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetPrice(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"price ids not found"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetPrice(context.Background(), "BTC")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
