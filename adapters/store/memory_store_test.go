package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cura-labs/cura/core"
	"github.com/cura-labs/cura/internal/testutil"
)

const (
	walletMixed = "0xAbC0000000000000000000000000000000000001"
	walletOther = "0x0000000000000000000000000000000000000002"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMemoryStore_IssueRecord(t *testing.T) {
	clk := testutil.NewFakeClock(epoch)
	s := NewMemoryStore(clk)

	rec, err := s.Issue(context.Background(), walletMixed)
	require.NoError(t, err)

	assert.Len(t, rec.Nonce, 64)
	assert.Equal(t, core.NormalizeAddress(walletMixed), rec.WalletAddress)
	assert.Equal(t, epoch, rec.IssuedAt)
	assert.Equal(t, epoch.Add(DefaultNonceTTL), rec.ExpiresAt)
	assert.False(t, rec.Used)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_ConsumeExactlyOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(testutil.NewFakeClock(epoch))

	rec, err := s.Issue(ctx, walletMixed)
	require.NoError(t, err)

	require.NoError(t, s.Consume(ctx, rec.Nonce, walletMixed))
	assert.ErrorIs(t, s.Consume(ctx, rec.Nonce, walletMixed), core.ErrNonceAlreadyUsed)
	assert.ErrorIs(t, s.Consume(ctx, rec.Nonce, walletOther), core.ErrNonceAlreadyUsed)
}

func TestMemoryStore_ConsumeCaseInsensitiveWallet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(testutil.NewFakeClock(epoch))

	rec, err := s.Issue(ctx, walletMixed)
	require.NoError(t, err)

	assert.NoError(t, s.Consume(ctx, rec.Nonce, "0xabc0000000000000000000000000000000000001"))
}

func TestMemoryStore_ConsumeRejections(t *testing.T) {
	ctx := context.Background()
	clk := testutil.NewFakeClock(epoch)
	s := NewMemoryStore(clk)

	t.Run("unknown nonce", func(t *testing.T) {
		assert.ErrorIs(t, s.Consume(ctx, "deadbeef", walletMixed), core.ErrNonceNotFound)
	})

	t.Run("different wallet", func(t *testing.T) {
		rec, err := s.Issue(ctx, walletMixed)
		require.NoError(t, err)
		assert.ErrorIs(t, s.Consume(ctx, rec.Nonce, walletOther), core.ErrNonceWalletMismatch)
		// a failed attempt must not burn the nonce
		assert.NoError(t, s.Consume(ctx, rec.Nonce, walletMixed))
	})

	t.Run("expired", func(t *testing.T) {
		rec, err := s.Issue(ctx, walletMixed)
		require.NoError(t, err)
		clk.Advance(DefaultNonceTTL + time.Millisecond)
		assert.ErrorIs(t, s.Consume(ctx, rec.Nonce, walletMixed), core.ErrNonceExpired)
	})
}

func TestMemoryStore_ConsumeAtExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	clk := testutil.NewFakeClock(epoch)
	s := NewMemoryStore(clk, WithNonceTTL(time.Minute))

	rec, err := s.Issue(ctx, walletMixed)
	require.NoError(t, err)

	clk.Advance(time.Minute)
	assert.NoError(t, s.Consume(ctx, rec.Nonce, walletMixed))
}

func TestMemoryStore_PeekDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(testutil.NewFakeClock(epoch))

	rec, err := s.Issue(ctx, walletMixed)
	require.NoError(t, err)

	assert.NoError(t, s.Peek(ctx, rec.Nonce, walletMixed))
	assert.NoError(t, s.Peek(ctx, rec.Nonce, walletMixed))
	assert.ErrorIs(t, s.Peek(ctx, rec.Nonce, walletOther), core.ErrNonceWalletMismatch)
	require.NoError(t, s.Consume(ctx, rec.Nonce, walletMixed))
	assert.ErrorIs(t, s.Peek(ctx, rec.Nonce, walletMixed), core.ErrNonceAlreadyUsed)
}

func TestMemoryStore_SweepStateMachine(t *testing.T) {
	ctx := context.Background()
	clk := testutil.NewFakeClock(epoch)
	s := NewMemoryStore(clk, WithNonceTTL(time.Minute), WithConsumedGrace(10*time.Second))

	used, err := s.Issue(ctx, walletMixed)
	require.NoError(t, err)
	active, err := s.Issue(ctx, walletMixed)
	require.NoError(t, err)

	require.NoError(t, s.Consume(ctx, used.Nonce, walletMixed))

	removed, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	// grace window over: the used record goes, the active one stays
	clk.Advance(10 * time.Second)
	removed, err = s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.ErrorIs(t, s.Consume(ctx, used.Nonce, walletMixed), core.ErrNonceNotFound)

	clk.Advance(time.Minute)
	removed, err = s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, s.Len())
	assert.ErrorIs(t, s.Peek(ctx, active.Nonce, walletMixed), core.ErrNonceNotFound)
}

func TestMemoryStore_ConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(testutil.NewFakeClock(epoch))

	rec, err := s.Issue(ctx, walletMixed)
	require.NoError(t, err)

	var successes atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Consume(ctx, rec.Nonce, walletMixed) == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
}
