package domain_test

import (
	"testing"

	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestPickFragment(t *testing.T) {
	rates := domain.DefaultEconomy().Bundles[0].Rates

	assert.Equal(t, 1, domain.PickFragment(rates, 0))
	assert.Equal(t, 1, domain.PickFragment(rates, 2250))
	assert.Equal(t, 2, domain.PickFragment(rates, 2251))
	assert.Equal(t, 9, domain.PickFragment(rates, 10000))
	// wraps modulo the divider
	assert.Equal(t, 1, domain.PickFragment(rates, domain.RateDivider+5))
}

func TestFragmentToken(t *testing.T) {
	assert.Equal(t, "FRAGMENT1", domain.FragmentToken(1))
	assert.True(t, domain.ValidFragment(9))
	assert.False(t, domain.ValidFragment(0))
	assert.False(t, domain.ValidFragment(10))
}

func TestReferralCommitment(t *testing.T) {
	a := domain.ReferralCommitment("alice", "bob")
	assert.Equal(t, a, domain.ReferralCommitment("alice", "bob"))
	assert.NotEqual(t, a, domain.ReferralCommitment("bob", "alice"))
}
