package core

import (
	"strings"
	"time"
)

// NonceState is the lifecycle stage of a challenge nonce
type NonceState string

const (
	NonceActive NonceState = "active"
	NonceUsed   NonceState = "used"
	NonceGone   NonceState = "gone"
)

// NonceRecord is a single-use challenge bound to a wallet
type NonceRecord struct {
	Nonce         string    // Opaque random token
	WalletAddress string    // Lowercase wallet address the nonce was issued for
	IssuedAt      time.Time // When the nonce was created
	ExpiresAt     time.Time // After this instant the nonce can never authenticate
	Used          bool      // Set exactly once, on successful consumption
	GraceUntil    time.Time // Used records are kept until this instant, then swept
}

// State reports where the record sits in Active -> Used -> Gone at the given instant.
func (r NonceRecord) State(now time.Time) NonceState {
	if now.After(r.ExpiresAt) {
		return NonceGone
	}
	if r.Used {
		if !now.Before(r.GraceUntil) {
			return NonceGone
		}
		return NonceUsed
	}
	return NonceActive
}

// Check applies the consumption rules without mutating the record.
func (r NonceRecord) Check(wallet string, now time.Time) error {
	if r.Used {
		return ErrNonceAlreadyUsed
	}
	if now.After(r.ExpiresAt) {
		return ErrNonceExpired
	}
	if r.WalletAddress != NormalizeAddress(wallet) {
		return ErrNonceWalletMismatch
	}
	return nil
}

// Session represents an authenticated wallet session
type Session struct {
	ID         string    // Unique session identifier, carried as jti
	Address    string    // Lowercase wallet address
	IssuedAt   time.Time // When the credential was minted
	ExpiresAt  time.Time // When the credential stops being accepted
	Persistent bool      // Long-lived variant signed with its own secret
}

// NormalizeAddress lowercases and trims a wallet address so comparisons are case-insensitive.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Challenge is what a client receives to sign
type Challenge struct {
	Nonce     string    // Nonce registered for the wallet
	Message   string    // Text the wallet must sign
	ExpiresAt time.Time // Last instant the nonce can be consumed
}
