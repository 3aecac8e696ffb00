package ports

import (
	"context"

	"github.com/alejandrodnm/arenabet/internal/domain"
)

// Store opens atomic units of work over all persistent records.
type Store interface {
	// WithTx runs fn inside one transaction. Any error from fn rolls back
	// every write, ledger movements included.
	WithTx(ctx context.Context, fn func(Tx) error) error

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}

// Tx is the set of repositories visible inside one transaction.
type Tx interface {
	ConfigRepository
	ArenaRepository
	UserRepository
	WindowRepository
	CraftingRepository

	Ledger() TokenLedger
	Registry() MetadataRegistry
}

// ConfigRepository guarda la configuración global.
type ConfigRepository interface {
	// CreateConfig fails with domain.ErrDuplicateEntry once a config exists.
	CreateConfig(ctx context.Context, cfg domain.GlobalConfig) error
	SaveConfig(ctx context.Context, cfg domain.GlobalConfig) error
	Config(ctx context.Context) (domain.GlobalConfig, error)
}

// ArenaRepository persists arenas and their bets.
type ArenaRepository interface {
	CreateArena(ctx context.Context, a domain.Arena) error
	Arena(ctx context.Context, id uint64) (domain.Arena, error)
	SaveArena(ctx context.Context, a domain.Arena) error
	DeleteArena(ctx context.Context, id uint64) error
	Arenas(ctx context.Context, states ...domain.ArenaState) ([]domain.Arena, error)

	// CreateBet fails with domain.ErrDuplicateEntry if the user already bet.
	CreateBet(ctx context.Context, b domain.Bet) error
	Bet(ctx context.Context, arenaID uint64, userID string) (domain.Bet, error)
	SaveBet(ctx context.Context, b domain.Bet) error
	// CountUnclaimedBets counts bets not yet claimed; an empty side counts both.
	CountUnclaimedBets(ctx context.Context, arenaID uint64, side domain.Side) (int, error)
	DeleteBets(ctx context.Context, arenaID uint64) error
}

// UserRepository persists referral state.
type UserRepository interface {
	User(ctx context.Context, id string) (domain.User, error)
	SaveUser(ctx context.Context, u domain.User) error
}

// WindowRepository persists accumulators, close progress and results.
type WindowRepository interface {
	// AddStake creates or grows the accumulator, keeping its first-entry sequence.
	AddStake(ctx context.Context, kind domain.WindowKind, bucket uint64, userID string, amount int64) (domain.Accumulator, error)
	Accumulator(ctx context.Context, kind domain.WindowKind, bucket uint64, userID string) (domain.Accumulator, error)
	MarkClaimed(ctx context.Context, kind domain.WindowKind, bucket uint64, userID string) error
	DeleteAccumulator(ctx context.Context, kind domain.WindowKind, bucket uint64, userID string) error
	DeleteAccumulators(ctx context.Context, kind domain.WindowKind, bucket uint64) error
	CountAccumulators(ctx context.Context, kind domain.WindowKind, bucket uint64) (int, error)
	// CountUnclaimedRanked counts unclaimed accumulators with stake >= minStake.
	CountUnclaimedRanked(ctx context.Context, kind domain.WindowKind, bucket uint64, minStake int64) (int, error)
	// ScanAccumulators pages standings strictly after (stake, seq) in
	// stake-descending, seq-ascending order.
	ScanAccumulators(ctx context.Context, kind domain.WindowKind, bucket uint64, afterStake, afterSeq int64, limit int) ([]domain.Accumulator, error)
	// PendingBuckets lists buckets before `before` that hold stake but no result.
	PendingBuckets(ctx context.Context, kind domain.WindowKind, before uint64) ([]uint64, error)

	// BucketClosed reports whether a close has begun or finished for the bucket.
	BucketClosed(ctx context.Context, kind domain.WindowKind, bucket uint64) (bool, error)
	WindowScan(ctx context.Context, kind domain.WindowKind, bucket uint64) (domain.WindowScan, error)
	SaveWindowScan(ctx context.Context, s domain.WindowScan) error
	DeleteWindowScan(ctx context.Context, kind domain.WindowKind, bucket uint64) error

	// CreateWindowResult fails with domain.ErrDuplicateEntry if the bucket already has one.
	CreateWindowResult(ctx context.Context, r domain.WindowResult) error
	WindowResult(ctx context.Context, kind domain.WindowKind, bucket uint64) (domain.WindowResult, error)
	DeleteWindowResult(ctx context.Context, kind domain.WindowKind, bucket uint64) error
}

// CraftingRepository persists pending NFT builds.
type CraftingRepository interface {
	NftBuild(ctx context.Context, userID string) (domain.NftBuild, error)
	SaveNftBuild(ctx context.Context, b domain.NftBuild) error
	DeleteNftBuild(ctx context.Context, userID string) error
}
