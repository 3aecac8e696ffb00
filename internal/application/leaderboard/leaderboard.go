// Package leaderboard accrues stake into fixed hour, day, week and
// eight-hour windows and settles the ranked ones into tiered rewards.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/alejandrodnm/arenabet/internal/application/crafting"
	"github.com/alejandrodnm/arenabet/internal/application/engine"
	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/alejandrodnm/arenabet/internal/ports"
)

// DefaultPageSize is how many standings a close reads per transaction.
const DefaultPageSize = 256

// Engine owns window accumulators and results.
type Engine struct {
	rt       *engine.Runtime
	tiers    map[domain.WindowKind]domain.TierTable
	minter   *crafting.Minter
	pageSize int
}

// New builds the leaderboard engine. A non-positive pageSize uses DefaultPageSize.
func New(rt *engine.Runtime, params domain.Economy, minter *crafting.Minter, pageSize int) *Engine {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Engine{rt: rt, tiers: params.Tiers, minter: minter, pageSize: pageSize}
}

// AccrualKeys lists the lock keys Accrue touches for a bet at `at`: the
// bucket of every window kind and the one after it.
func AccrualKeys(user string, at time.Time) []string {
	keys := make([]string, 0, 4*len(domain.AccrualKinds))
	for _, k := range domain.AccrualKinds {
		b := domain.BucketID(k, at)
		keys = append(keys,
			engine.WindowKey(k, b), engine.AccumulatorKey(k, b, user),
			engine.WindowKey(k, b+1), engine.AccumulatorKey(k, b+1, user),
		)
	}
	return keys
}

// Accrue adds amount to the user's accumulator of every window kind.
// A bucket whose close has begun takes no more stake; the bet counts toward
// the next bucket instead. If that one is closing too the bet is rejected.
func Accrue(ctx context.Context, tx ports.Tx, user string, at time.Time, amount int64) error {
	for _, k := range domain.AccrualKinds {
		b := domain.BucketID(k, at)
		closed, err := tx.BucketClosed(ctx, k, b)
		if err != nil {
			return fmt.Errorf("leaderboard.Accrue: %w", err)
		}
		if closed {
			b++
			if closed, err = tx.BucketClosed(ctx, k, b); err != nil {
				return fmt.Errorf("leaderboard.Accrue: %w", err)
			}
			if closed {
				return fmt.Errorf("leaderboard.Accrue: %s/%d already closing: %w", k, b, domain.ErrInvalidStateTransition)
			}
		}
		if _, err := tx.AddStake(ctx, k, b, user, amount); err != nil {
			return fmt.Errorf("leaderboard.Accrue: %w", err)
		}
	}
	return nil
}

// EndWindow freezes a ranked bucket. With nil thresholds and rewards the
// result uses the computed thresholds and the configured rewards; tables
// supplied by the admin must match what the engine computes.
//
// The close is restartable: the bucket is marked closed first, standings are
// read page by page with progress persisted, and the result is written last.
func (e *Engine) EndWindow(ctx context.Context, caller string, kind domain.WindowKind, bucket uint64, thresholds, rewards []int64) (domain.WindowResult, error) {
	table, err := e.table(kind)
	if err != nil {
		return domain.WindowResult{}, fmt.Errorf("leaderboard.EndWindow: %w", err)
	}
	if (thresholds != nil || rewards != nil) && len(thresholds) != len(rewards) {
		return domain.WindowResult{}, fmt.Errorf("leaderboard.EndWindow: %d thresholds for %d rewards: %w",
			len(thresholds), len(rewards), domain.ErrConfigMismatch)
	}

	var result domain.WindowResult
	err = e.rt.Locked(ctx, []string{engine.WindowKey(kind, bucket)}, func(ctx context.Context) error {
		scan, err := e.beginClose(ctx, caller, kind, bucket)
		if err != nil {
			return err
		}
		for !scan.Done {
			if scan, err = e.scanPage(ctx, scan, table.Winners()); err != nil {
				return err
			}
		}
		result, err = e.finishClose(ctx, scan, table, thresholds, rewards)
		return err
	})
	if err != nil {
		return domain.WindowResult{}, err
	}
	slog.Info("leaderboard: window closed",
		"kind", kind, "bucket", bucket,
		"participants", result.Participants,
		"thresholds", result.Thresholds,
	)
	return result, nil
}

// beginClose checks the caller and the window, then marks the bucket closed.
// An existing scan is resumed as is.
func (e *Engine) beginClose(ctx context.Context, caller string, kind domain.WindowKind, bucket uint64) (domain.WindowScan, error) {
	var scan domain.WindowScan
	err := e.rt.Tx(ctx, func(tx ports.Tx) error {
		if _, err := engine.RequireAdmin(ctx, tx, caller); err != nil {
			return fmt.Errorf("leaderboard.EndWindow: %w", err)
		}
		if end := domain.BucketEnd(kind, bucket); e.rt.Now().Before(end) {
			return fmt.Errorf("leaderboard.EndWindow: %s/%d runs until %s: %w",
				kind, bucket, end.Format("2006-01-02 15:04:05"), domain.ErrInvalidStateTransition)
		}
		if _, err := tx.WindowResult(ctx, kind, bucket); err == nil {
			return fmt.Errorf("leaderboard.EndWindow: %s/%d: %w", kind, bucket, domain.ErrDuplicateEntry)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("leaderboard.EndWindow: %w", err)
		}

		s, err := tx.WindowScan(ctx, kind, bucket)
		if err == nil {
			slog.Info("leaderboard: resuming window close", "kind", kind, "bucket", bucket, "read", len(s.Stakes))
			scan = s
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("leaderboard.EndWindow: %w", err)
		}
		scan = domain.WindowScan{
			Kind:        kind,
			BucketID:    bucket,
			Stakes:      []int64{},
			CursorStake: math.MaxInt64,
			StartedAt:   e.rt.Now(),
		}
		return tx.SaveWindowScan(ctx, scan)
	})
	return scan, err
}

// scanPage reads the next page of standings and persists the cursor.
func (e *Engine) scanPage(ctx context.Context, scan domain.WindowScan, winners int) (domain.WindowScan, error) {
	err := e.rt.Tx(ctx, func(tx ports.Tx) error {
		page, err := tx.ScanAccumulators(ctx, scan.Kind, scan.BucketID, scan.CursorStake, scan.CursorSeq, e.pageSize)
		if err != nil {
			return fmt.Errorf("leaderboard.EndWindow: %w", err)
		}
		for _, acc := range page {
			if len(scan.Stakes) >= winners {
				break
			}
			scan.Stakes = append(scan.Stakes, acc.Stake)
			scan.CursorStake, scan.CursorSeq = acc.Stake, acc.Seq
		}
		scan.Done = len(page) < e.pageSize || len(scan.Stakes) >= winners
		return tx.SaveWindowScan(ctx, scan)
	})
	return scan, err
}

func (e *Engine) finishClose(ctx context.Context, scan domain.WindowScan, table domain.TierTable, thresholds, rewards []int64) (domain.WindowResult, error) {
	var result domain.WindowResult
	err := e.rt.Tx(ctx, func(tx ports.Tx) error {
		participants, err := tx.CountAccumulators(ctx, scan.Kind, scan.BucketID)
		if err != nil {
			return fmt.Errorf("leaderboard.EndWindow: %w", err)
		}

		computed := domain.ComputeThresholds(scan.Stakes, table.Boundaries)
		configured := table.Rewards
		if len(computed) == 0 {
			configured = []int64{}
		}
		if thresholds != nil || rewards != nil {
			if !slices.Equal(thresholds, computed) || !slices.Equal(rewards, configured) {
				return fmt.Errorf("leaderboard.EndWindow: %s/%d: supplied tiers %v/%v, computed %v/%v: %w",
					scan.Kind, scan.BucketID, thresholds, rewards, computed, configured, domain.ErrConfigMismatch)
			}
		}

		result = domain.WindowResult{
			Kind:         scan.Kind,
			BucketID:     scan.BucketID,
			Thresholds:   computed,
			Rewards:      slices.Clone(configured),
			Participants: participants,
			ClosedAt:     e.rt.Now(),
		}
		if err := result.Validate(); err != nil {
			return fmt.Errorf("leaderboard.EndWindow: %w", err)
		}
		if err := tx.CreateWindowResult(ctx, result); err != nil {
			return fmt.Errorf("leaderboard.EndWindow: %w", err)
		}
		return tx.DeleteWindowScan(ctx, scan.Kind, scan.BucketID)
	})
	return result, err
}

// Rank returns the tier the user reached in a closed bucket.
func (e *Engine) Rank(ctx context.Context, kind domain.WindowKind, bucket uint64, user string) (int, error) {
	var rank int
	err := e.rt.Tx(ctx, func(tx ports.Tx) error {
		r, acc, err := lookup(ctx, tx, kind, bucket, user)
		if err != nil {
			return fmt.Errorf("leaderboard.Rank: %w", err)
		}
		var ok bool
		if rank, ok = r.RankOf(acc.Stake); !ok {
			return fmt.Errorf("leaderboard.Rank: %s in %s/%d: %w", user, kind, bucket, domain.ErrUnranked)
		}
		return nil
	})
	return rank, err
}

// ClaimWindowReward pays the user's tier reward in reward tokens, plus the
// bonus bundle for the top tier. Each accumulator claims once.
func (e *Engine) ClaimWindowReward(ctx context.Context, kind domain.WindowKind, bucket uint64, user string) (domain.WindowClaim, error) {
	table, err := e.table(kind)
	if err != nil {
		return domain.WindowClaim{}, fmt.Errorf("leaderboard.ClaimWindowReward: %w", err)
	}
	keys := []string{engine.WindowKey(kind, bucket), engine.AccumulatorKey(kind, bucket, user), engine.AccountKey(user)}

	var claim domain.WindowClaim
	err = e.rt.Atomic(ctx, keys, func(tx ports.Tx) error {
		cfg, err := engine.LoadConfig(ctx, tx)
		if err != nil {
			return fmt.Errorf("leaderboard.ClaimWindowReward: %w", err)
		}
		r, acc, err := lookup(ctx, tx, kind, bucket, user)
		if err != nil {
			return fmt.Errorf("leaderboard.ClaimWindowReward: %w", err)
		}
		if acc.Claimed {
			return fmt.Errorf("leaderboard.ClaimWindowReward: %s in %s/%d: %w", user, kind, bucket, domain.ErrDuplicateEntry)
		}
		rank, ok := r.RankOf(acc.Stake)
		if !ok {
			return fmt.Errorf("leaderboard.ClaimWindowReward: %s in %s/%d: %w", user, kind, bucket, domain.ErrUnranked)
		}

		claim = domain.WindowClaim{Kind: kind, BucketID: bucket, Rank: rank, Reward: r.Rewards[rank]}
		if err := tx.Ledger().Mint(ctx, cfg.RewardToken, user, claim.Reward); err != nil {
			return fmt.Errorf("leaderboard.ClaimWindowReward: %w", err)
		}
		if rank == 0 {
			md, err := e.minter.Bundle(ctx, tx, user, table.BonusBundle)
			if err != nil {
				return fmt.Errorf("leaderboard.ClaimWindowReward: bonus: %w", err)
			}
			claim.BonusBundle = &md
		}
		return tx.MarkClaimed(ctx, kind, bucket, user)
	})
	if err != nil {
		return domain.WindowClaim{}, err
	}
	slog.Info("leaderboard: reward claimed", "kind", kind, "bucket", bucket, "user", user, "rank", claim.Rank, "reward", claim.Reward)
	return claim, nil
}

// CloseWindowResult drops a result and its accumulators once the claim
// period is over or every ranked user has claimed.
func (e *Engine) CloseWindowResult(ctx context.Context, caller string, kind domain.WindowKind, bucket uint64) error {
	table, err := e.table(kind)
	if err != nil {
		return fmt.Errorf("leaderboard.CloseWindowResult: %w", err)
	}
	err = e.rt.Atomic(ctx, []string{engine.WindowKey(kind, bucket)}, func(tx ports.Tx) error {
		if _, err := engine.RequireAdmin(ctx, tx, caller); err != nil {
			return fmt.Errorf("leaderboard.CloseWindowResult: %w", err)
		}
		r, err := tx.WindowResult(ctx, kind, bucket)
		if err != nil {
			return fmt.Errorf("leaderboard.CloseWindowResult: %w", err)
		}
		deadline := domain.BucketEnd(kind, bucket).Add(table.ClaimPeriod)
		if e.rt.Now().Before(deadline) {
			pending := 0
			if floor, ok := r.MinRankedStake(); ok {
				if pending, err = tx.CountUnclaimedRanked(ctx, kind, bucket, floor); err != nil {
					return fmt.Errorf("leaderboard.CloseWindowResult: %w", err)
				}
			}
			if pending > 0 {
				return fmt.Errorf("leaderboard.CloseWindowResult: %s/%d has %d unclaimed until %s: %w",
					kind, bucket, pending, deadline.Format("2006-01-02 15:04:05"), domain.ErrInvalidStateTransition)
			}
		}
		if err := tx.DeleteAccumulators(ctx, kind, bucket); err != nil {
			return fmt.Errorf("leaderboard.CloseWindowResult: %w", err)
		}
		return tx.DeleteWindowResult(ctx, kind, bucket)
	})
	if err == nil {
		slog.Info("leaderboard: result closed", "kind", kind, "bucket", bucket)
	}
	return err
}

// CloseEightBoxState drops a user's eight-hour box record after the box ended.
func (e *Engine) CloseEightBoxState(ctx context.Context, caller, user string, box uint64) error {
	keys := []string{engine.AccumulatorKey(domain.WindowEightBox, box, user)}
	return e.rt.Atomic(ctx, keys, func(tx ports.Tx) error {
		if _, err := engine.RequireAdmin(ctx, tx, caller); err != nil {
			return fmt.Errorf("leaderboard.CloseEightBoxState: %w", err)
		}
		if _, err := tx.Accumulator(ctx, domain.WindowEightBox, box, user); err != nil {
			return fmt.Errorf("leaderboard.CloseEightBoxState: %w", err)
		}
		if end := domain.BucketEnd(domain.WindowEightBox, box); e.rt.Now().Before(end) {
			return fmt.Errorf("leaderboard.CloseEightBoxState: box %d open until %s: %w",
				box, end.Format("2006-01-02 15:04:05"), domain.ErrInvalidStateTransition)
		}
		return tx.DeleteAccumulator(ctx, domain.WindowEightBox, box, user)
	})
}

// PendingBuckets lists ended buckets of kind that hold stake but have no result yet.
func (e *Engine) PendingBuckets(ctx context.Context, kind domain.WindowKind) ([]uint64, error) {
	current := domain.BucketID(kind, e.rt.Now())
	var out []uint64
	err := e.rt.Tx(ctx, func(tx ports.Tx) error {
		var err error
		out, err = tx.PendingBuckets(ctx, kind, current)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("leaderboard.PendingBuckets: %w", err)
	}
	return out, nil
}

// Standings returns the top limit accumulators of a bucket in rank order.
func (e *Engine) Standings(ctx context.Context, kind domain.WindowKind, bucket uint64, limit int) ([]domain.Accumulator, error) {
	var out []domain.Accumulator
	err := e.rt.Tx(ctx, func(tx ports.Tx) error {
		var err error
		out, err = tx.ScanAccumulators(ctx, kind, bucket, math.MaxInt64, 0, limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("leaderboard.Standings: %w", err)
	}
	return out, nil
}

// Result returns the frozen result of a closed bucket.
func (e *Engine) Result(ctx context.Context, kind domain.WindowKind, bucket uint64) (domain.WindowResult, error) {
	var r domain.WindowResult
	err := e.rt.Tx(ctx, func(tx ports.Tx) error {
		var err error
		r, err = tx.WindowResult(ctx, kind, bucket)
		return err
	})
	return r, err
}

func (e *Engine) table(kind domain.WindowKind) (domain.TierTable, error) {
	t, ok := e.tiers[kind]
	if !ok || !kind.Ranked() {
		return domain.TierTable{}, fmt.Errorf("window kind %q has no leaderboard: %w", kind, domain.ErrInvalidParameter)
	}
	return t, nil
}

func lookup(ctx context.Context, tx ports.Tx, kind domain.WindowKind, bucket uint64, user string) (domain.WindowResult, domain.Accumulator, error) {
	r, err := tx.WindowResult(ctx, kind, bucket)
	if err != nil {
		return domain.WindowResult{}, domain.Accumulator{}, err
	}
	acc, err := tx.Accumulator(ctx, kind, bucket, user)
	if err != nil {
		return domain.WindowResult{}, domain.Accumulator{}, err
	}
	return r, acc, nil
}
