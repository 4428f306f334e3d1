// Package cura is a Go client for the wallet sign-in and eligibility API.
package cura

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/cura-labs/cura/service"
)

// ErrUnauthenticated is matched by errors.Is for any 401 response.
var ErrUnauthenticated = errors.New("unauthenticated")

// Signer produces personal_sign signatures for one wallet
type Signer interface {
	Address() string
	SignText(message string) (string, error)
}

// KeySigner signs with an in-memory secp256k1 key
type KeySigner struct {
	key *ecdsa.PrivateKey
}

// NewKeySigner creates a signer for key
func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{key: key}
}

// Address returns the checksummed wallet address
func (s *KeySigner) Address() string {
	return crypto.PubkeyToAddress(s.key.PublicKey).Hex()
}

// SignText signs message the way wallets implement personal_sign
func (s *KeySigner) SignText(message string) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// APIError is a non-2xx response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cura: %d %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrUnauthenticated) match 401 responses
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthenticated && e.StatusCode == http.StatusUnauthorized
}

// Credentials are the tokens returned by a sign-in
type Credentials struct {
	SessionToken    string
	ExpiresAt       time.Time
	PersistentToken string
}

// Client talks to a Cura server on behalf of one wallet
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     Signer
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, signer Signer, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		signer:     signer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type nonceResponse struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type sessionResponse struct {
	SessionToken     string `json:"sessionToken"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
	PersistentToken  string `json:"persistentToken"`
}

// Login requests a challenge, signs it and exchanges it for a session
func (c *Client) Login(ctx context.Context, persistent bool) (*Credentials, error) {
	wallet := c.signer.Address()

	var challenge nonceResponse
	if err := c.do(ctx, http.MethodPost, "/auth/nonce", "", map[string]string{"walletAddress": wallet}, &challenge); err != nil {
		return nil, fmt.Errorf("failed to request challenge: %w", err)
	}

	signature, err := c.signer.SignText(challenge.Message)
	if err != nil {
		return nil, err
	}

	var session sessionResponse
	err = c.do(ctx, http.MethodPost, "/auth/verify", "", map[string]interface{}{
		"walletAddress": wallet,
		"signature":     signature,
		"message":       challenge.Message,
		"nonce":         challenge.Nonce,
		"persistent":    persistent,
	}, &session)
	if err != nil {
		return nil, fmt.Errorf("failed to verify challenge: %w", err)
	}
	return session.credentials(), nil
}

// Renew exchanges a persistent token for a new session token
func (c *Client) Renew(ctx context.Context, persistentToken string) (*Credentials, error) {
	var session sessionResponse
	if err := c.do(ctx, http.MethodPost, "/auth/renew", "", map[string]string{"persistentToken": persistentToken}, &session); err != nil {
		return nil, fmt.Errorf("failed to renew session: %w", err)
	}
	creds := session.credentials()
	creds.PersistentToken = persistentToken
	return creds, nil
}

// Logout ends the session server-side
func (c *Client) Logout(ctx context.Context, sessionToken string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", sessionToken, nil, nil)
}

// NonceValid asks whether a challenge nonce is still usable. The answer is advisory.
func (c *Client) NonceValid(ctx context.Context, nonce string) (bool, error) {
	var resp struct {
		Valid bool `json:"valid"`
	}
	path := "/auth/nonce/" + url.PathEscape(nonce) + "?walletAddress=" + url.QueryEscape(c.signer.Address())
	if err := c.do(ctx, http.MethodGet, path, "", nil, &resp); err != nil {
		return false, err
	}
	return resp.Valid, nil
}

// Me returns the wallet address bound to sessionToken
func (c *Client) Me(ctx context.Context, sessionToken string) (string, error) {
	var resp struct {
		Address string `json:"address"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/me", sessionToken, nil, &resp); err != nil {
		return "", err
	}
	return resp.Address, nil
}

// Membership evaluates the wallet's attributes against a bin schema
func (c *Client) Membership(ctx context.Context, sessionToken string, req service.EligibilityRequest) (*service.EligibilityReport, error) {
	var report service.EligibilityReport
	if err := c.do(ctx, http.MethodPost, "/api/eligibility/membership", sessionToken, req, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (r sessionResponse) credentials() *Credentials {
	return &Credentials{
		SessionToken:    r.SessionToken,
		ExpiresAt:       time.Now().Add(time.Duration(r.ExpiresInSeconds) * time.Second),
		PersistentToken: r.PersistentToken,
	}
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
