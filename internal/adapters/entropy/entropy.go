// Package entropy provides the randomness used to open bundles.
package entropy

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/arenabet/internal/ports"
	"golang.org/x/sync/errgroup"
)

// Crypto draws from the operating system CSPRNG.
type Crypto struct{}

// Draw implements ports.EntropySource.
func (Crypto) Draw(_ context.Context, n int) ([]uint64, error) {
	buf := make([]byte, 8*n)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("entropy.Crypto: %w", err)
	}
	out := make([]uint64, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(buf[8*i:])
	}
	return out, nil
}

// PriceFeed derives values from several independent oracle feeds. Every feed
// is read exactly once per Draw, concurrently; the observations are hashed
// with a counter to expand them into n values.
//
// Feed prices are public before the draw, so this source is predictable.
// It is kept for parity with price-seeded deployments; prefer Crypto.
type PriceFeed struct {
	oracle  ports.PriceOracle
	symbols []string
	now     func() time.Time
}

// NewPriceFeed returns a PriceFeed over symbols. A nil clock uses time.Now.
func NewPriceFeed(oracle ports.PriceOracle, symbols []string, now func() time.Time) *PriceFeed {
	if now == nil {
		now = time.Now
	}
	return &PriceFeed{oracle: oracle, symbols: symbols, now: now}
}

// Draw implements ports.EntropySource.
func (p *PriceFeed) Draw(ctx context.Context, n int) ([]uint64, error) {
	if len(p.symbols) == 0 {
		return nil, fmt.Errorf("entropy.PriceFeed: no feeds configured")
	}

	seeds := make([][]byte, len(p.symbols))
	g, gctx := errgroup.WithContext(ctx)
	for i, sym := range p.symbols {
		g.Go(func() error {
			price, err := p.oracle.GetPrice(gctx, sym)
			if err != nil {
				return fmt.Errorf("feed %s: %w", sym, err)
			}
			seeds[i] = []byte(price.Value.String() + "|" + price.PublishTime.Format(time.RFC3339Nano))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("entropy.PriceFeed: %w", err)
	}

	h := sha256.New()
	for _, s := range seeds {
		h.Write(s)
	}
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(p.now().UnixNano()))
	h.Write(ts[:])
	root := h.Sum(nil)

	out := make([]uint64, n)
	for i := range out {
		var ctr [8]byte
		binary.BigEndian.PutUint64(ctr[:], uint64(i))
		sum := sha256.Sum256(append(root, ctr[:]...))
		out[i] = binary.BigEndian.Uint64(sum[:8])
	}
	return out, nil
}

// Sequence replays a fixed list of values in order, wrapping around.
type Sequence struct {
	mu     sync.Mutex
	values []uint64
	next   int
}

// NewSequence returns a Sequence over values.
func NewSequence(values ...uint64) *Sequence {
	return &Sequence{values: values}
}

// Draw implements ports.EntropySource.
func (s *Sequence) Draw(_ context.Context, n int) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return nil, fmt.Errorf("entropy.Sequence: empty")
	}
	out := make([]uint64, n)
	for i := range out {
		out[i] = s.values[s.next%len(s.values)]
		s.next++
	}
	return out, nil
}
