package authmsg

import (
	"fmt"
	"strings"
	"time"

	"github.com/cura-labs/cura/core"
)

// Reason names the first check a message failed
type Reason string

const (
	ReasonWalletMismatch     Reason = "wallet_mismatch"
	ReasonNonceMismatch      Reason = "nonce_mismatch"
	ReasonMalformedTimestamp Reason = "malformed_timestamp"
	ReasonTooOld             Reason = "too_old"
	ReasonFromFuture         Reason = "from_future"
)

// ValidationResult is the outcome of Validate. Reason is empty when Valid.
type ValidationResult struct {
	Valid  bool
	Reason Reason
}

// Err converts a failed result into an error wrapping core.ErrMessageRejected.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("%w: %s", core.ErrMessageRejected, r.Reason)
}

func reject(reason Reason) ValidationResult {
	return ValidationResult{Reason: reason}
}

// Validate checks wallet, nonce, timestamp, age and future skew, in that order.
// The first failing check is reported.
func (c *Codec) Validate(msg Message, expectedWallet, expectedNonce string, maxAge time.Duration) ValidationResult {
	if !strings.EqualFold(strings.TrimSpace(msg.WalletAddress), strings.TrimSpace(expectedWallet)) {
		return reject(ReasonWalletMismatch)
	}
	if msg.Nonce != expectedNonce {
		return reject(ReasonNonceMismatch)
	}

	issuedAt, err := time.Parse(time.RFC3339Nano, msg.IssuedAt)
	if err != nil {
		return reject(ReasonMalformedTimestamp)
	}

	age := c.clock.Now().Sub(issuedAt)
	if age > maxAge {
		return reject(ReasonTooOld)
	}
	if -age > c.skew {
		return reject(ReasonFromFuture)
	}
	return ValidationResult{Valid: true}
}
