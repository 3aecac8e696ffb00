package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alejandrodnm/arenabet/config"
	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadShippedConfig(t *testing.T) {
	cfg, err := config.Load("config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "walk", cfg.Oracle.Provider)
	assert.Equal(t, time.Minute, cfg.SchedulerInterval())
	assert.Equal(t, time.Minute, cfg.OracleMaxAge())
	assert.Equal(t, 30*time.Second, cfg.LockWait())

	g := cfg.GlobalConfig()
	assert.Equal(t, "BTC", g.ArenaSymbol)
	assert.Equal(t, int64(1000), g.PlatformFeeBps)
	assert.Equal(t, []string{"BTC", "ETH"}, g.EntropyFeeds)
}

func TestDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, "fixed", cfg.Oracle.Provider)
	assert.Equal(t, "crypto", cfg.Entropy.Source)
	assert.Equal(t, "arena.db", cfg.Storage.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "admin", cfg.Ledger.Admin)

	e, err := cfg.Economy()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultEconomy(), e)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ARENA_DSN", ":memory:")
	t.Setenv("ARENA_ADMIN", "ops")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := config.Parse([]byte("storage:\n  dsn: other.db\n"))
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.Storage.DSN)
	assert.Equal(t, "ops", cfg.Ledger.Admin)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestEconomyOverrides(t *testing.T) {
	yml := `
leaderboard:
  day:
    boundaries: [1, 3]
    rewards: [100, 10]
    bonus_bundle: 2
    claim_period_hours: 48
eight_box:
  - {min_stake: 5, reward: 1, bundle: 0}
crafting:
  nft_cost: 10
  burn_bps: 5000
  bundles:
    - name: ONLY
      cost: 7
      reward_count: 1
      rates: [1000, 2000, 3000, 4000, 5000, 6000, 7000, 8000, 10000]
`
	cfg, err := config.Parse([]byte(yml))
	require.Error(t, err, "day bonus bundle 2 does not exist")

	yml = `
leaderboard:
  day:
    boundaries: [1, 3]
    rewards: [100, 10]
    claim_period_hours: 48
eight_box:
  - {min_stake: 5, reward: 1, bundle: 0}
crafting:
  nft_cost: 10
  burn_bps: 5000
  bundles:
    - name: ONLY
      cost: 7
      reward_count: 1
      rates: [1000, 2000, 3000, 4000, 5000, 6000, 7000, 8000, 10000]
`
	cfg, err = config.Parse([]byte(yml))
	require.NoError(t, err)
	e, err := cfg.Economy()
	require.NoError(t, err)

	day := e.Tiers[domain.WindowDay]
	assert.Equal(t, []int{1, 3}, day.Boundaries)
	assert.Equal(t, 48*time.Hour, day.ClaimPeriod)
	assert.Equal(t, domain.DefaultEconomy().Tiers[domain.WindowHour], e.Tiers[domain.WindowHour])
	require.Len(t, e.Bundles, 1)
	assert.Equal(t, uint32(10000), e.Bundles[0].Rates[8])
	assert.Equal(t, int64(10), e.NftCost)
	assert.Equal(t, int64(5000), e.BurnBps)
	require.Len(t, e.EightBoxPrizes, 1)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		yml  string
		want error
	}{
		{"tier lengths", "leaderboard:\n  hour:\n    boundaries: [1, 2]\n    rewards: [5]\n", domain.ErrConfigMismatch},
		{"rate count", "crafting:\n  bundles:\n    - {name: X, cost: 1, reward_count: 1, rates: [10000]}\n", domain.ErrConfigMismatch},
		{"pyth without feed", "oracle:\n  provider: pyth\n", domain.ErrConfigMismatch},
		{"unknown oracle", "oracle:\n  provider: chainlink\n", domain.ErrInvalidParameter},
		{"pricefeed without feeds", "entropy:\n  source: pricefeed\n", domain.ErrInvalidParameter},
		{"fees over 100%", "ledger:\n  platform_fee_bps: 9000\n  referral_fee_bps: 2000\n", domain.ErrInvalidParameter},
		{"escrow is treasury", "ledger:\n  escrow: treasury\n", domain.ErrInvalidParameter},
		{"telegram without chat", "notify:\n  telegram_token: abc\n", domain.ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.yml))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
