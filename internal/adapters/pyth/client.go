// Package pyth reads prices from a Pyth Hermes endpoint.
package pyth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	defaultBase = "https://hermes.pyth.network"

	// Hermes permite ~30 req/10s por IP; nos quedamos al 60%.
	ratePerSec = 2
	rateBurst  = 3

	maxRetries    = 3
	baseRetryWait = 300 * time.Millisecond
)

// Client es el HTTP client de Hermes con rate limiting y retries.
type Client struct {
	http    *http.Client
	base    string
	feeds   map[string]string
	maxAge  time.Duration
	limiter *rate.Limiter
	now     func() time.Time
}

// NewClient creates a Client. feeds maps symbols to Pyth feed ids; a
// positive maxAge rejects prices published longer ago than that.
func NewClient(base string, feeds map[string]string, maxAge time.Duration) *Client {
	if base == "" {
		base = defaultBase
	}
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		base:    strings.TrimRight(base, "/"),
		feeds:   feeds,
		maxAge:  maxAge,
		limiter: rate.NewLimiter(ratePerSec, rateBurst),
		now:     time.Now,
	}
}

type latestResponse struct {
	Parsed []parsedUpdate `json:"parsed"`
}

type parsedUpdate struct {
	ID    string    `json:"id"`
	Price priceData `json:"price"`
}

type priceData struct {
	Price       string `json:"price"`
	Conf        string `json:"conf"`
	Expo        int32  `json:"expo"`
	PublishTime int64  `json:"publish_time"`
}

// GetPrice implements ports.PriceOracle.
func (c *Client) GetPrice(ctx context.Context, symbol string) (domain.Price, error) {
	id, ok := c.feeds[symbol]
	if !ok {
		return domain.Price{}, fmt.Errorf("pyth.GetPrice: no feed for %s: %w", symbol, domain.ErrNotFound)
	}

	q := url.Values{}
	q.Add("ids[]", id)
	q.Set("parsed", "true")
	endpoint := c.base + "/v2/updates/price/latest?" + q.Encode()

	var resp latestResponse
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return domain.Price{}, fmt.Errorf("pyth.GetPrice %s: %w", symbol, err)
	}
	for _, u := range resp.Parsed {
		if strings.TrimPrefix(u.ID, "0x") != strings.TrimPrefix(id, "0x") {
			continue
		}
		p, err := toPrice(symbol, u.Price)
		if err != nil {
			return domain.Price{}, fmt.Errorf("pyth.GetPrice %s: %w", symbol, err)
		}
		if c.maxAge > 0 && c.now().Sub(p.PublishTime) > c.maxAge {
			return domain.Price{}, fmt.Errorf("pyth.GetPrice %s: stale since %s", symbol, p.PublishTime.Format(time.RFC3339))
		}
		return p, nil
	}
	return domain.Price{}, fmt.Errorf("pyth.GetPrice %s: feed %s missing in response: %w", symbol, id, domain.ErrNotFound)
}

func toPrice(symbol string, d priceData) (domain.Price, error) {
	raw, err := strconv.ParseInt(d.Price, 10, 64)
	if err != nil {
		return domain.Price{}, fmt.Errorf("price %q: %w", d.Price, err)
	}
	conf, err := strconv.ParseInt(d.Conf, 10, 64)
	if err != nil {
		return domain.Price{}, fmt.Errorf("conf %q: %w", d.Conf, err)
	}
	return domain.Price{
		Symbol:      symbol,
		Value:       decimal.New(raw, d.Expo),
		Confidence:  decimal.New(conf, d.Expo),
		PublishTime: time.Unix(d.PublishTime, 0).UTC(),
	}, nil
}

// get hace un GET con rate limiting y backoff exponencial.
func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("status %d after %d retries", resp.StatusCode, maxRetries)
			}
			slog.Warn("pyth: retrying", "status", resp.StatusCode, "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted retries")
}

func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(float64(baseRetryWait) * math.Pow(2, float64(attempt)))
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
