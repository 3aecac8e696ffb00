package domain

import (
	"fmt"
	"slices"
	"time"
)

// WindowKind identifies a fixed-length accrual window.
type WindowKind string

const (
	WindowHour     WindowKind = "hour"
	WindowDay      WindowKind = "day"
	WindowWeek     WindowKind = "week"
	WindowEightBox WindowKind = "eightbox"
)

// RankedKinds are the windows settled through a tiered leaderboard.
var RankedKinds = []WindowKind{WindowHour, WindowDay, WindowWeek}

// AccrualKinds are all windows a bet accrues stake into.
var AccrualKinds = []WindowKind{WindowHour, WindowDay, WindowWeek, WindowEightBox}

// Length returns the fixed duration of the window kind.
func (k WindowKind) Length() time.Duration {
	switch k {
	case WindowHour:
		return time.Hour
	case WindowDay:
		return 24 * time.Hour
	case WindowWeek:
		return 7 * 24 * time.Hour
	case WindowEightBox:
		return 8 * time.Hour
	}
	return 0
}

// Ranked reports whether the kind is settled through a leaderboard.
func (k WindowKind) Ranked() bool { return slices.Contains(RankedKinds, k) }

// Valid reports whether the kind is known.
func (k WindowKind) Valid() bool { return k.Length() > 0 }

// ParseWindowKind validates a window name coming from the outside.
func ParseWindowKind(s string) (WindowKind, error) {
	k := WindowKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("window kind %q: %w", s, ErrInvalidParameter)
	}
	return k, nil
}

// BucketID is floor(unix seconds / window length).
func BucketID(k WindowKind, at time.Time) uint64 {
	secs := int64(k.Length() / time.Second)
	return uint64(at.Unix() / secs)
}

// BucketStart is the first instant covered by the bucket.
func BucketStart(k WindowKind, bucket uint64) time.Time {
	secs := int64(k.Length() / time.Second)
	return time.Unix(int64(bucket)*secs, 0).UTC()
}

// BucketEnd is the first instant after the bucket.
func BucketEnd(k WindowKind, bucket uint64) time.Time {
	return BucketStart(k, bucket+1)
}

// Accumulator is a user's summed stake inside one window bucket.
type Accumulator struct {
	Kind     WindowKind
	BucketID uint64
	UserID   string
	Stake    int64
	Claimed  bool
	// Seq orders first entry into the bucket; earlier wins stake ties.
	Seq int64
}

// SortStandings orders accumulators by stake descending, first entry first on ties.
func SortStandings(accs []Accumulator) {
	slices.SortStableFunc(accs, func(a, b Accumulator) int {
		if a.Stake != b.Stake {
			if a.Stake > b.Stake {
				return -1
			}
			return 1
		}
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
}

// TierTable configures how a ranked window pays out.
// Boundaries are cumulative rank cut-offs, e.g. [1 2 3 5 10] means rank 0 is
// the single top spot and rank 4 covers positions 6 to 10.
type TierTable struct {
	Boundaries  []int
	Rewards     []int64
	BonusBundle int
	ClaimPeriod time.Duration
}

// Winners is how many top positions receive a tier.
func (t TierTable) Winners() int {
	if len(t.Boundaries) == 0 {
		return 0
	}
	return t.Boundaries[len(t.Boundaries)-1]
}

// Validate checks the table shape.
func (t TierTable) Validate() error {
	if len(t.Boundaries) == 0 || len(t.Boundaries) != len(t.Rewards) {
		return fmt.Errorf("tier table: %d boundaries for %d rewards: %w",
			len(t.Boundaries), len(t.Rewards), ErrInvalidParameter)
	}
	prev := 0
	for i, b := range t.Boundaries {
		if b <= prev {
			return fmt.Errorf("tier table: boundary %d not increasing: %w", i, ErrInvalidParameter)
		}
		prev = b
	}
	for i, r := range t.Rewards {
		if r < 0 {
			return fmt.Errorf("tier table: reward %d negative: %w", i, ErrInvalidParameter)
		}
	}
	return nil
}

// ComputeThresholds derives the minimum stake of each tier from stakes already
// sorted descending. Tiers deeper than the participant count take the stake of
// the last participant. No participants yields no tiers.
func ComputeThresholds(sorted []int64, boundaries []int) []int64 {
	if len(sorted) == 0 {
		return []int64{}
	}
	out := make([]int64, len(boundaries))
	last := sorted[len(sorted)-1]
	for i, b := range boundaries {
		if b <= len(sorted) {
			out[i] = sorted[b-1]
		} else {
			out[i] = last
		}
	}
	return out
}

// WindowResult is the frozen outcome of a closed ranked window.
type WindowResult struct {
	Kind         WindowKind
	BucketID     uint64
	Thresholds   []int64
	Rewards      []int64
	Participants int
	ClosedAt     time.Time
}

// Validate checks that thresholds pair with rewards and never increase.
func (r WindowResult) Validate() error {
	if len(r.Thresholds) != len(r.Rewards) {
		return fmt.Errorf("window %s/%d: %d thresholds for %d rewards: %w",
			r.Kind, r.BucketID, len(r.Thresholds), len(r.Rewards), ErrConfigMismatch)
	}
	for i := 1; i < len(r.Thresholds); i++ {
		if r.Thresholds[i] > r.Thresholds[i-1] {
			return fmt.Errorf("window %s/%d: threshold %d increases: %w", r.Kind, r.BucketID, i, ErrConfigMismatch)
		}
	}
	return nil
}

// RankOf returns the first tier whose threshold the stake reaches.
func (r WindowResult) RankOf(stake int64) (int, bool) {
	for i, th := range r.Thresholds {
		if stake >= th {
			return i, true
		}
	}
	return 0, false
}

// MinRankedStake is the smallest stake that still earns a tier.
func (r WindowResult) MinRankedStake() (int64, bool) {
	if len(r.Thresholds) == 0 {
		return 0, false
	}
	return r.Thresholds[len(r.Thresholds)-1], true
}

// WindowScan is the persisted progress of a window close in flight.
// While it exists the bucket is closed to new stake.
type WindowScan struct {
	Kind        WindowKind
	BucketID    uint64
	Stakes      []int64
	CursorStake int64
	CursorSeq   int64
	Done        bool
	StartedAt   time.Time
}

// WindowClaim is what a ranked user received.
type WindowClaim struct {
	Kind        WindowKind
	BucketID    uint64
	Rank        int
	Reward      int64
	BonusBundle *Metadata
}

// Prize is one row of the eight-hour box prize table.
type Prize struct {
	MinStake int64
	Reward   int64
	BundleID int
}

// EightBoxClaim is what an eight-hour box claim granted.
type EightBoxClaim struct {
	BoxID   uint64
	PrizeID int
	Reward  int64
	Bundle  Metadata
}
