package domain

import "crypto/sha256"

const referralSalt = "R3fareur"

// ReferralCommitment binds a bettor to a referrer.
func ReferralCommitment(userID, referrerID string) [32]byte {
	return sha256.Sum256([]byte(userID + referrerID + referralSalt))
}

// User holds per-user referral state.
type User struct {
	ID              string
	Referrer        string
	ReferralBalance int64
}
