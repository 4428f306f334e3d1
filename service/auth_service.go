package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cura-labs/cura/authmsg"
	"github.com/cura-labs/cura/core"
	"github.com/cura-labs/cura/internal/eth"
	"github.com/cura-labs/cura/internal/metrics"
	"github.com/cura-labs/cura/ports"
)

// Verification outcomes reported to metrics and logs
const (
	outcomeSuccess          = "success"
	outcomeInvalidAddress   = "invalid_address"
	outcomeMalformedMessage = "malformed_message"
	outcomeMessageRejected  = "message_rejected"
	outcomeBadSignature     = "bad_signature"
	outcomeNonceRejected    = "nonce_rejected"
	outcomeError            = "error"
)

// AuthConfig holds the message and session parameters of the auth flow
type AuthConfig struct {
	AppName       string
	Domain        string
	URI           string
	MessageMaxAge time.Duration
	SessionTTL    time.Duration
	PersistentTTL time.Duration
}

// LoginResult carries the credentials minted by a successful verification
type LoginResult struct {
	Session         *core.Session
	AccessToken     string
	ExpiresIn       time.Duration
	PersistentToken string
}

// AuthService handles authentication business logic
type AuthService struct {
	nonces    ports.NonceStore
	codec     *authmsg.Codec
	verifier  ports.SignatureVerifier
	tokenizer ports.Tokenizer
	eventPub  ports.EventPublisher
	clock     ports.Clock

	cfg     AuthConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// AuthOption configures optional AuthService collaborators
type AuthOption func(*AuthService)

// WithAuthMetrics records outcomes on m
func WithAuthMetrics(m *metrics.Metrics) AuthOption {
	return func(s *AuthService) {
		s.metrics = m
	}
}

// WithAuthLogger sets the service logger
func WithAuthLogger(logger *slog.Logger) AuthOption {
	return func(s *AuthService) {
		s.logger = logger
	}
}

// NewAuthService creates a new authentication service
func NewAuthService(
	nonces ports.NonceStore,
	codec *authmsg.Codec,
	verifier ports.SignatureVerifier,
	tokenizer ports.Tokenizer,
	eventPub ports.EventPublisher,
	clock ports.Clock,
	cfg AuthConfig,
	opts ...AuthOption,
) *AuthService {
	s := &AuthService{
		nonces:    nonces,
		codec:     codec,
		verifier:  verifier,
		tokenizer: tokenizer,
		eventPub:  eventPub,
		clock:     clock,
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(prometheus.NewRegistry())
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// CreateChallenge registers a nonce for wallet and returns the message the wallet must sign.
// structured selects the JSON encoding instead of the human-readable block.
func (s *AuthService) CreateChallenge(ctx context.Context, wallet string, structured bool) (*core.Challenge, error) {
	if !eth.IsAddress(wallet) {
		return nil, core.ErrInvalidAddress
	}

	record, err := s.nonces.Issue(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to issue nonce: %w", err)
	}
	s.metrics.NoncesIssued.Inc()

	msg := authmsg.Message{
		AppName:       s.cfg.AppName,
		WalletAddress: wallet,
		Nonce:         record.Nonce,
		IssuedAt:      authmsg.FormatTimestamp(record.IssuedAt),
		Domain:        s.cfg.Domain,
		URI:           s.cfg.URI,
	}

	text := s.codec.Build(msg)
	if structured {
		text = s.codec.BuildStructured(msg)
	}

	s.logger.DebugContext(ctx, "challenge issued", "wallet", record.WalletAddress, "expires_at", record.ExpiresAt)
	return &core.Challenge{
		Nonce:     record.Nonce,
		Message:   text,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// CheckNonce reports whether nonce would currently be accepted for wallet.
// The answer is advisory; only Login consumes.
func (s *AuthService) CheckNonce(ctx context.Context, nonce, wallet string) bool {
	return s.nonces.Peek(ctx, nonce, wallet) == nil
}

// Login verifies a signed challenge and mints a session.
// expectedNonce may be empty, in which case the nonce embedded in the message is used.
// The nonce is consumed only after every other check has passed.
func (s *AuthService) Login(ctx context.Context, wallet, signature, message, expectedNonce string, persistent bool) (*LoginResult, error) {
	result, outcome, err := s.login(ctx, wallet, signature, message, expectedNonce, persistent)
	s.metrics.ObserveVerification(outcome)
	if err != nil {
		level := slog.LevelInfo
		if outcome == outcomeError {
			level = slog.LevelError
		}
		s.logger.Log(ctx, level, "wallet verification failed",
			"wallet", core.NormalizeAddress(wallet), "outcome", outcome, "error", err)
		return nil, err
	}
	s.logger.InfoContext(ctx, "wallet verified",
		"wallet", result.Session.Address, "session_id", result.Session.ID, "persistent", persistent)
	return result, nil
}

func (s *AuthService) login(ctx context.Context, wallet, signature, message, expectedNonce string, persistent bool) (*LoginResult, string, error) {
	if !eth.IsAddress(wallet) {
		return nil, outcomeInvalidAddress, core.ErrInvalidAddress
	}

	msg, err := s.codec.Decode(message)
	if err != nil {
		return nil, outcomeMalformedMessage, err
	}

	if expectedNonce == "" {
		expectedNonce = msg.Nonce
	}
	if res := s.codec.Validate(msg, wallet, expectedNonce, s.cfg.MessageMaxAge); !res.Valid {
		return nil, outcomeMessageRejected, res.Err()
	}

	if err := s.verifier.Verify(message, signature, wallet); err != nil {
		if errors.Is(err, core.ErrInvalidSignature) || errors.Is(err, core.ErrInvalidAddress) {
			return nil, outcomeBadSignature, err
		}
		return nil, outcomeError, fmt.Errorf("signature verification failed: %w", err)
	}

	if err := s.nonces.Consume(ctx, msg.Nonce, wallet); err != nil {
		s.metrics.ObserveConsume(consumeResult(err))
		if core.IsNonceError(err) {
			return nil, outcomeNonceRejected, err
		}
		return nil, outcomeError, fmt.Errorf("failed to consume nonce: %w", err)
	}
	s.metrics.ObserveConsume("ok")

	result, err := s.mint(core.NormalizeAddress(wallet), persistent)
	if err != nil {
		return nil, outcomeError, err
	}

	if err := s.eventPub.PublishLogin(ctx, result.Session.Address, result.Session.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to publish login event", "error", err)
	}
	return result, outcomeSuccess, nil
}

// Renew exchanges a persistent token for a fresh access token
func (s *AuthService) Renew(ctx context.Context, persistentToken string) (*LoginResult, error) {
	session, err := s.tokenizer.PersistentTokenToSession(persistentToken)
	if err != nil {
		s.logger.InfoContext(ctx, "persistent token rejected", "error", err)
		return nil, err
	}

	now := s.clock.Now()
	renewed := &core.Session{
		ID:        session.ID,
		Address:   session.Address,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}
	accessToken, err := s.tokenizer.SessionToAccessToken(renewed)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	return &LoginResult{
		Session:     renewed,
		AccessToken: accessToken,
		ExpiresIn:   s.cfg.SessionTTL,
	}, nil
}

// Logout is advisory: credentials are stateless, so it only announces the logout.
// Unparseable tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, token string) {
	session, err := s.tokenizer.AccessTokenToSession(token)
	if err != nil {
		session, err = s.tokenizer.PersistentTokenToSession(token)
	}
	if err != nil {
		s.logger.DebugContext(ctx, "logout with unusable token", "error", err)
		return
	}

	if err := s.eventPub.PublishLogout(ctx, session.Address, session.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to publish logout event", "error", err)
	}
	s.logger.InfoContext(ctx, "wallet logged out", "wallet", session.Address, "session_id", session.ID)
}

// ValidateAccessToken parses a bearer token into its session
func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*core.Session, error) {
	session, err := s.tokenizer.AccessTokenToSession(accessToken)
	if err != nil {
		s.logger.DebugContext(ctx, "access token rejected", "expired", errors.Is(err, core.ErrTokenExpired), "error", err)
		return nil, err
	}
	return session, nil
}

func (s *AuthService) mint(address string, persistent bool) (*LoginResult, error) {
	now := s.clock.Now()
	session := &core.Session{
		ID:        uuid.New().String(),
		Address:   address,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}

	accessToken, err := s.tokenizer.SessionToAccessToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	result := &LoginResult{
		Session:     session,
		AccessToken: accessToken,
		ExpiresIn:   s.cfg.SessionTTL,
	}
	if !persistent {
		return result, nil
	}

	long := *session
	long.ExpiresAt = now.Add(s.cfg.PersistentTTL)
	long.Persistent = true
	persistentToken, err := s.tokenizer.SessionToPersistentToken(&long)
	if err != nil {
		return nil, fmt.Errorf("failed to create persistent token: %w", err)
	}
	result.PersistentToken = persistentToken
	return result, nil
}

func consumeResult(err error) string {
	switch {
	case errors.Is(err, core.ErrNonceNotFound):
		return "not_found"
	case errors.Is(err, core.ErrNonceAlreadyUsed):
		return "already_used"
	case errors.Is(err, core.ErrNonceExpired):
		return "expired"
	case errors.Is(err, core.ErrNonceWalletMismatch):
		return "wallet_mismatch"
	default:
		return "error"
	}
}
