package store

import (
	"context"
	"sync"

	"github.com/cura-labs/cura/core"
	"github.com/cura-labs/cura/ports"
)

// MemoryStore is the in-process nonce registry.
// Every read-check-write sequence runs under one mutex, so Consume is linearizable.
type MemoryStore struct {
	records map[string]*core.NonceRecord
	mu      sync.Mutex
	clock   ports.Clock
	opts    options
}

// NewMemoryStore creates an in-memory nonce registry
func NewMemoryStore(clock ports.Clock, opts ...Option) *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*core.NonceRecord),
		clock:   clock,
		opts:    buildOptions(opts),
	}
}

// Issue creates a fresh nonce bound to walletAddress
func (s *MemoryStore) Issue(ctx context.Context, walletAddress string) (core.NonceRecord, error) {
	nonce, err := generateNonce()
	if err != nil {
		return core.NonceRecord{}, err
	}

	now := s.clock.Now()
	record := &core.NonceRecord{
		Nonce:         nonce,
		WalletAddress: core.NormalizeAddress(walletAddress),
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.opts.ttl),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[nonce] = record

	return *record, nil
}

// Consume marks the nonce used if it is valid for walletAddress
func (s *MemoryStore) Consume(ctx context.Context, nonce, walletAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[nonce]
	if !ok {
		return core.ErrNonceNotFound
	}

	now := s.clock.Now()
	if err := record.Check(walletAddress, now); err != nil {
		return err
	}

	record.Used = true
	record.GraceUntil = now.Add(s.opts.grace)
	return nil
}

// Peek applies the Consume rules without marking anything
func (s *MemoryStore) Peek(ctx context.Context, nonce, walletAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[nonce]
	if !ok {
		return core.ErrNonceNotFound
	}
	return record.Check(walletAddress, s.clock.Now())
}

// Sweep removes every record that has reached the Gone state
func (s *MemoryStore) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0
	for nonce, record := range s.records {
		if record.State(now) == core.NonceGone {
			delete(s.records, nonce)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of tracked records
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
