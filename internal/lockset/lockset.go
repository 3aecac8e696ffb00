// Package lockset serializes operations over named keys.
//
// Every operation names the records it touches up front. Acquire takes all
// of them in sorted order without blocking; if any is held it releases what
// it took and retries with exponential backoff until the keys free up, the
// context ends or the wait budget runs out.
package lockset

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrContended is returned when the keys stayed busy for the whole wait budget.
var ErrContended = errors.New("lockset: keys contended")

const (
	defaultMaxWait  = 30 * time.Second
	initialInterval = 2 * time.Millisecond
	maxInterval     = 100 * time.Millisecond
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// Set is a table of per-key mutexes created on demand.
type Set struct {
	mu      sync.Mutex
	entries map[string]*entry
	maxWait time.Duration
}

// New returns a Set whose Acquire gives up after maxWait.
// A non-positive maxWait uses 30s.
func New(maxWait time.Duration) *Set {
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}
	return &Set{entries: make(map[string]*entry), maxWait: maxWait}
}

// Acquire locks every key and returns the function that releases them.
func (s *Set) Acquire(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)
	if len(keys) == 0 {
		return func() {}, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialInterval
	b.MaxInterval = maxInterval

	release, err := backoff.Retry(ctx, func() (func(), error) {
		return s.tryAcquire(keys)
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(s.maxWait))
	if err != nil {
		return nil, fmt.Errorf("lockset.Acquire %v: %w", keys, err)
	}
	return release, nil
}

// Len returns how many keys are currently referenced.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Set) tryAcquire(keys []string) (func(), error) {
	held := make([]string, 0, len(keys))
	for _, k := range keys {
		e := s.ref(k)
		if !e.mu.TryLock() {
			s.unref(k)
			s.unlockAll(held)
			return nil, ErrContended
		}
		held = append(held, k)
	}

	var once sync.Once
	return func() {
		once.Do(func() { s.unlockAll(held) })
	}, nil
}

func (s *Set) unlockAll(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		s.mu.Lock()
		e := s.entries[keys[i]]
		s.mu.Unlock()
		e.mu.Unlock()
		s.unref(keys[i])
	}
}

func (s *Set) ref(k string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[k]
	if !ok {
		e = &entry{}
		s.entries[k] = e
	}
	e.refs++
	return e
}

func (s *Set) unref(k string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[k]
	e.refs--
	if e.refs == 0 {
		delete(s.entries, k)
	}
}

func normalize(keys []string) []string {
	out := slices.Clone(keys)
	slices.Sort(out)
	return slices.Compact(out)
}
