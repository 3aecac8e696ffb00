package scheduler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alejandrodnm/arenabet/internal/application/apptest"
	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/alejandrodnm/arenabet/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockWindows struct {
	pending map[domain.WindowKind][]uint64
	endErr  map[uint64]error
	ended   []uint64
	caller  string
}

func (m *mockWindows) PendingBuckets(_ context.Context, kind domain.WindowKind) ([]uint64, error) {
	return m.pending[kind], nil
}

func (m *mockWindows) EndWindow(_ context.Context, caller string, kind domain.WindowKind, bucket uint64, _, _ []int64) (domain.WindowResult, error) {
	m.caller = caller
	if err := m.endErr[bucket]; err != nil {
		return domain.WindowResult{}, err
	}
	m.ended = append(m.ended, bucket)
	return domain.WindowResult{Kind: kind, BucketID: bucket, Thresholds: []int64{}, Rewards: []int64{}}, nil
}

func (m *mockWindows) Standings(_ context.Context, _ domain.WindowKind, _ uint64, _ int) ([]domain.Accumulator, error) {
	return nil, nil
}

type mockNotifier struct {
	closed []domain.WindowResult
}

func (m *mockNotifier) ArenaSettled(_ context.Context, _ domain.Arena) error { return nil }

func (m *mockNotifier) WindowClosed(_ context.Context, r domain.WindowResult, _ []domain.Accumulator) error {
	m.closed = append(m.closed, r)
	return nil
}

// --- tests ---

func TestRunOnceClosesEveryPendingBucket(t *testing.T) {
	w := &mockWindows{pending: map[domain.WindowKind][]uint64{
		domain.WindowHour: {10, 11},
		domain.WindowWeek: {3},
	}}
	s := scheduler.New(scheduler.Config{Admin: "ops"}, w, &mockNotifier{})

	results, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, []uint64{10, 11, 3}, w.ended)
	assert.Equal(t, "ops", w.caller)
}

func TestCycleSkipsClosedAndKeepsGoing(t *testing.T) {
	boom := errors.New("boom")
	w := &mockWindows{
		pending: map[domain.WindowKind][]uint64{domain.WindowHour: {1, 2, 3}},
		endErr:  map[uint64]error{1: domain.ErrDuplicateEntry, 2: boom},
	}
	s := scheduler.New(scheduler.DefaultConfig(), w, &mockNotifier{})

	results, err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(3), results[0].BucketID)
}

func TestRunOnceModeNotifies(t *testing.T) {
	w := &mockWindows{pending: map[domain.WindowKind][]uint64{domain.WindowDay: {7}}}
	n := &mockNotifier{}
	cfg := scheduler.DefaultConfig()
	cfg.Once = true

	require.NoError(t, scheduler.New(cfg, w, n).Run(context.Background()))
	require.Len(t, n.closed, 1)
	assert.Equal(t, domain.WindowDay, n.closed[0].Kind)
}

func TestRunStopsOnCancel(t *testing.T) {
	w := &mockWindows{}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	s := scheduler.New(scheduler.Config{Interval: 10 * time.Millisecond}, w, &mockNotifier{})
	assert.NoError(t, s.Run(ctx))
}

func TestSchedulerAgainstLeaderboard(t *testing.T) {
	h := apptest.New(t)
	h.OpenArena(t, 1, false)
	h.Bet(t, 1, "alice", domain.SideUp, 50)
	h.Bet(t, 1, "bob", domain.SideDown, 30)
	h.Clock.Advance(time.Hour)

	n := &mockNotifier{}
	cfg := scheduler.DefaultConfig()
	cfg.Admin = apptest.Admin
	cfg.Once = true
	require.NoError(t, scheduler.New(cfg, h.App.Leaderboard, n).Run(context.Background()))

	require.Len(t, n.closed, 1)
	assert.Equal(t, domain.WindowHour, n.closed[0].Kind)
	assert.Equal(t, []int64{50, 30, 30, 30, 30}, n.closed[0].Thresholds)

	results, err := scheduler.New(cfg, h.App.Leaderboard, n).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}
