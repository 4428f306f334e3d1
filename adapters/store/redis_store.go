package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cura-labs/cura/core"
	"github.com/cura-labs/cura/ports"
)

const (
	fieldWallet    = "wallet"
	fieldIssuedAt  = "issued_at"
	fieldExpiresAt = "expires_at"
	fieldUsed      = "used"
)

// consumeScript performs the check-then-mark sequence server side so that
// concurrent consumers across instances see exactly one success.
var consumeScript = redis.NewScript(`
local rec = redis.call('HMGET', KEYS[1], 'wallet', 'expires_at', 'used')
if not rec[1] then
	return 'not_found'
end
if rec[3] == '1' then
	return 'already_used'
end
if tonumber(ARGV[2]) > tonumber(rec[2]) then
	return 'expired'
end
if rec[1] ~= ARGV[1] then
	return 'wallet_mismatch'
end
redis.call('HSET', KEYS[1], 'used', '1')
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 'ok'
`)

// RedisStore is a nonce registry shared between instances through Redis.
// Key expiry replaces the periodic sweep. Keys outlive the nonce by the grace
// window so a late consume is reported as expired rather than unknown.
type RedisStore struct {
	client *redis.Client
	prefix string
	clock  ports.Clock
	opts   options
}

// NewRedisStore creates a Redis-backed nonce registry
func NewRedisStore(client *redis.Client, clock ports.Clock, opts ...Option) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "cura:nonce:",
		clock:  clock,
		opts:   buildOptions(opts),
	}
}

// Issue stores a fresh nonce hash with an absolute expiry
func (s *RedisStore) Issue(ctx context.Context, walletAddress string) (core.NonceRecord, error) {
	nonce, err := generateNonce()
	if err != nil {
		return core.NonceRecord{}, err
	}

	now := s.clock.Now()
	record := core.NonceRecord{
		Nonce:         nonce,
		WalletAddress: core.NormalizeAddress(walletAddress),
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.opts.ttl),
	}

	key := s.prefix + nonce
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldWallet, record.WalletAddress,
			fieldIssuedAt, record.IssuedAt.UnixMilli(),
			fieldExpiresAt, record.ExpiresAt.UnixMilli(),
			fieldUsed, "0",
		)
		pipe.PExpire(ctx, key, s.opts.ttl+s.opts.grace)
		return nil
	})
	if err != nil {
		return core.NonceRecord{}, fmt.Errorf("failed to store nonce: %w", err)
	}

	return record, nil
}

// Consume marks the nonce used if it is valid for walletAddress
func (s *RedisStore) Consume(ctx context.Context, nonce, walletAddress string) error {
	result, err := consumeScript.Run(ctx, s.client,
		[]string{s.prefix + nonce},
		core.NormalizeAddress(walletAddress),
		s.clock.Now().UnixMilli(),
		s.opts.grace.Milliseconds(),
	).Text()
	if err != nil {
		return fmt.Errorf("failed to consume nonce: %w", err)
	}

	switch result {
	case "ok":
		return nil
	case "not_found":
		return core.ErrNonceNotFound
	case "already_used":
		return core.ErrNonceAlreadyUsed
	case "expired":
		return core.ErrNonceExpired
	case "wallet_mismatch":
		return core.ErrNonceWalletMismatch
	default:
		return fmt.Errorf("unexpected consume result %q", result)
	}
}

// Peek applies the Consume rules without marking anything
func (s *RedisStore) Peek(ctx context.Context, nonce, walletAddress string) error {
	record, err := s.load(ctx, nonce)
	if err != nil {
		return err
	}
	return record.Check(walletAddress, s.clock.Now())
}

// Sweep is a no-op: Redis expires keys on its own
func (s *RedisStore) Sweep(ctx context.Context) (int, error) {
	return 0, nil
}

func (s *RedisStore) load(ctx context.Context, nonce string) (core.NonceRecord, error) {
	values, err := s.client.HMGet(ctx, s.prefix+nonce, fieldWallet, fieldIssuedAt, fieldExpiresAt, fieldUsed).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return core.NonceRecord{}, core.ErrNonceNotFound
		}
		return core.NonceRecord{}, fmt.Errorf("failed to load nonce: %w", err)
	}

	wallet, ok := values[0].(string)
	if !ok {
		return core.NonceRecord{}, core.ErrNonceNotFound
	}

	issuedAt, err := parseMillis(values[1])
	if err != nil {
		return core.NonceRecord{}, err
	}
	expiresAt, err := parseMillis(values[2])
	if err != nil {
		return core.NonceRecord{}, err
	}

	return core.NonceRecord{
		Nonce:         nonce,
		WalletAddress: wallet,
		IssuedAt:      issuedAt,
		ExpiresAt:     expiresAt,
		Used:          values[3] == "1",
	}, nil
}

func parseMillis(v interface{}) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("missing timestamp field")
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp field: %w", err)
	}
	return time.UnixMilli(ms).UTC(), nil
}
