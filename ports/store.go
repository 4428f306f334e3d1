package ports

import (
	"context"

	"github.com/cura-labs/cura/core"
)

// NonceStore issues and consumes single-use wallet challenges.
// Consume must be atomic: concurrent consumptions of one nonce yield exactly one success.
type NonceStore interface {
	Issue(ctx context.Context, walletAddress string) (core.NonceRecord, error)
	Consume(ctx context.Context, nonce, walletAddress string) error
	Peek(ctx context.Context, nonce, walletAddress string) error
	// Sweep drops expired records and used records past their grace window.
	Sweep(ctx context.Context) (int, error)
}
