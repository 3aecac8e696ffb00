package engine

import (
	"fmt"

	"github.com/alejandrodnm/arenabet/internal/domain"
)

// Lock keys. Vault keys name the role, not the account, so they can be
// computed before the config is read.
const (
	ConfigKey        = "config"
	EscrowKey        = "vault/escrow"
	TreasuryKey      = "vault/treasury"
	ReferralVaultKey = "vault/referral"
)

func ArenaKey(id uint64) string { return fmt.Sprintf("arena/%d", id) }

func BetKey(arenaID uint64, user string) string { return fmt.Sprintf("bet/%d/%s", arenaID, user) }

func UserKey(user string) string { return "user/" + user }

func AccountKey(account string) string { return "account/" + account }

func BuildKey(user string) string { return "build/" + user }

func WindowKey(kind domain.WindowKind, bucket uint64) string {
	return fmt.Sprintf("window/%s/%d", kind, bucket)
}

func AccumulatorKey(kind domain.WindowKind, bucket uint64, user string) string {
	return fmt.Sprintf("acc/%s/%d/%s", kind, bucket, user)
}
