// Package engine holds the runtime shared by every arena service.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/alejandrodnm/arenabet/internal/lockset"
	"github.com/alejandrodnm/arenabet/internal/ports"
)

// Runtime is what every service shares: store, locks and clock.
// Every mutating operation goes through Atomic.
type Runtime struct {
	store ports.Store
	locks *lockset.Set
	now   func() time.Time
}

// NewRuntime builds a Runtime. A nil clock uses time.Now.
func NewRuntime(store ports.Store, locks *lockset.Set, now func() time.Time) *Runtime {
	if now == nil {
		now = time.Now
	}
	if locks == nil {
		locks = lockset.New(0)
	}
	return &Runtime{store: store, locks: locks, now: now}
}

// Now returns the current time in UTC, truncated to the second.
func (r *Runtime) Now() time.Time {
	return r.now().UTC().Truncate(time.Second)
}

// Locked holds keys while fn runs.
func (r *Runtime) Locked(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	release, err := r.locks.Acquire(ctx, keys...)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// Tx runs fn in a transaction without taking any key.
func (r *Runtime) Tx(ctx context.Context, fn func(tx ports.Tx) error) error {
	return r.store.WithTx(ctx, fn)
}

// Atomic holds keys and runs fn in one transaction.
func (r *Runtime) Atomic(ctx context.Context, keys []string, fn func(tx ports.Tx) error) error {
	return r.Locked(ctx, keys, func(ctx context.Context) error {
		return r.store.WithTx(ctx, fn)
	})
}

// RequireAdmin loads the global config and checks caller against its admin.
func RequireAdmin(ctx context.Context, tx ports.Tx, caller string) (domain.GlobalConfig, error) {
	cfg, err := LoadConfig(ctx, tx)
	if err != nil {
		return domain.GlobalConfig{}, err
	}
	if caller != cfg.Admin {
		return domain.GlobalConfig{}, fmt.Errorf("caller %q is not admin: %w", caller, domain.ErrUnauthorized)
	}
	return cfg, nil
}

// LoadConfig reads the global config, reporting a missing one as not initialized.
func LoadConfig(ctx context.Context, tx ports.Tx) (domain.GlobalConfig, error) {
	cfg, err := tx.Config(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.GlobalConfig{}, fmt.Errorf("platform not initialized: %w", domain.ErrInvalidStateTransition)
	}
	return cfg, err
}
