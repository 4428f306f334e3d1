package http

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cura-labs/cura/adapters/events"
	"github.com/cura-labs/cura/adapters/store"
	"github.com/cura-labs/cura/adapters/tokenizer"
	"github.com/cura-labs/cura/authmsg"
	"github.com/cura-labs/cura/internal/eth"
	"github.com/cura-labs/cura/internal/metrics"
	"github.com/cura-labs/cura/internal/testutil"
	"github.com/cura-labs/cura/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	clock  *testutil.FakeClock
	key    *ecdsa.PrivateKey
	wallet string
}

func newTestServer(t *testing.T, checks map[string]ReadinessCheck) *testServer {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := testutil.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	authService := service.NewAuthService(
		store.NewMemoryStore(clk),
		authmsg.NewCodec(clk),
		eth.NewVerifier(),
		tokenizer.NewJWTTokenizer("access-secret", "persistent-secret", clk),
		events.NewWatermillPublisher(pubSub),
		clk,
		service.AuthConfig{
			AppName:       "Cura",
			MessageMaxAge: store.DefaultNonceTTL,
			SessionTTL:    15 * time.Minute,
			PersistentTTL: 7 * 24 * time.Hour,
		},
		service.WithAuthMetrics(m),
		service.WithAuthLogger(logger),
	)

	router := SetupRouter(RouterConfig{
		AuthService:        authService,
		EligibilityService: service.NewEligibilityService(m, logger),
		Metrics:            m,
		Gatherer:           reg,
		Logger:             logger,
		Checks:             checks,
	})

	return &testServer{
		router: router,
		clock:  clk,
		key:    key,
		wallet: crypto.PubkeyToAddress(key.PublicKey).Hex(),
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) sign(t *testing.T, message string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), s.key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

type nonceResponse struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type verifyResponse struct {
	SessionToken     string `json:"sessionToken"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
	PersistentToken  string `json:"persistentToken"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func (s *testServer) login(t *testing.T, persistent bool) verifyResponse {
	t.Helper()

	w := s.do(t, http.MethodPost, "/auth/nonce", "", gin.H{"walletAddress": s.wallet})
	require.Equal(t, http.StatusOK, w.Code)
	challenge := decode[nonceResponse](t, w)

	w = s.do(t, http.MethodPost, "/auth/verify", "", gin.H{
		"walletAddress": s.wallet,
		"signature":     s.sign(t, challenge.Message),
		"message":       challenge.Message,
		"persistent":    persistent,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[verifyResponse](t, w)
}

func TestRouter_LoginFlow(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/auth/nonce", "", gin.H{"walletAddress": s.wallet})
	require.Equal(t, http.StatusOK, w.Code)
	challenge := decode[nonceResponse](t, w)
	assert.Len(t, challenge.Nonce, 64)
	assert.Contains(t, challenge.Message, challenge.Nonce)

	w = s.do(t, http.MethodGet, "/auth/nonce/"+challenge.Nonce+"?walletAddress="+s.wallet, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"valid":true}`, w.Body.String())

	verify := gin.H{
		"walletAddress": strings.ToLower(s.wallet),
		"signature":     s.sign(t, challenge.Message),
		"message":       challenge.Message,
	}
	w = s.do(t, http.MethodPost, "/auth/verify", "", verify)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	session := decode[verifyResponse](t, w)
	assert.NotEmpty(t, session.SessionToken)
	assert.Equal(t, int64(900), session.ExpiresInSeconds)
	assert.Empty(t, session.PersistentToken)

	w = s.do(t, http.MethodPost, "/auth/verify", "", verify)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"authentication failed"}`, w.Body.String())

	w = s.do(t, http.MethodGet, "/auth/nonce/"+challenge.Nonce+"?walletAddress="+s.wallet, "", nil)
	assert.JSONEq(t, `{"valid":false}`, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/me", session.SessionToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[map[string]string](t, w)
	assert.Equal(t, strings.ToLower(s.wallet), me["address"])
	assert.NotEmpty(t, me["sessionId"])

	w = s.do(t, http.MethodGet, "/api/authorize", session.SessionToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"authorized":true`)
}

func TestRouter_StructuredChallenge(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/auth/nonce?format=structured", "", gin.H{"walletAddress": s.wallet})
	require.Equal(t, http.StatusOK, w.Code)
	challenge := decode[nonceResponse](t, w)
	assert.True(t, strings.HasPrefix(challenge.Message, "{"))

	w = s.do(t, http.MethodPost, "/auth/verify", "", gin.H{
		"walletAddress": s.wallet,
		"signature":     s.sign(t, challenge.Message),
		"message":       challenge.Message,
		"nonce":         challenge.Nonce,
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRouter_VerifyFailuresAreGeneric(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/auth/nonce", "", gin.H{"walletAddress": s.wallet})
	challenge := decode[nonceResponse](t, w)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	otherSig, err := crypto.Sign(accounts.TextHash([]byte(challenge.Message)), other)
	require.NoError(t, err)

	bodies := map[string]gin.H{
		"bad signature":     {"walletAddress": s.wallet, "signature": hexutil.Encode(otherSig), "message": challenge.Message},
		"malformed message": {"walletAddress": s.wallet, "signature": s.sign(t, "hi"), "message": "hi"},
		"wallet mismatch":   {"walletAddress": "0x0000000000000000000000000000000000000002", "signature": s.sign(t, challenge.Message), "message": challenge.Message},
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/auth/verify", "", body)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.JSONEq(t, `{"error":"authentication failed"}`, w.Body.String())
		})
	}

	s.clock.Advance(store.DefaultNonceTTL + time.Second)
	w = s.do(t, http.MethodPost, "/auth/verify", "", gin.H{
		"walletAddress": s.wallet,
		"signature":     s.sign(t, challenge.Message),
		"message":       challenge.Message,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_BadRequests(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/auth/nonce", "", gin.H{"walletAddress": "0x123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/auth/nonce", "", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/auth/verify", "", gin.H{"walletAddress": s.wallet})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/auth/nonce/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"unauthenticated"}`, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"unauthenticated"}`, w.Body.String())
}

func TestRouter_ExpiredAndForgedSessionsLookAlike(t *testing.T) {
	s := newTestServer(t, nil)

	session := s.login(t, false)
	forged := s.do(t, http.MethodGet, "/api/me", session.SessionToken+"x", nil)

	s.clock.Advance(16 * time.Minute)
	expired := s.do(t, http.MethodGet, "/api/me", session.SessionToken, nil)

	assert.Equal(t, http.StatusUnauthorized, forged.Code)
	assert.Equal(t, http.StatusUnauthorized, expired.Code)
	assert.Equal(t, forged.Body.String(), expired.Body.String())
	assert.JSONEq(t, `{"error":"unauthenticated"}`, expired.Body.String())
}

func TestRouter_RenewAndLogout(t *testing.T) {
	s := newTestServer(t, nil)

	session := s.login(t, true)
	require.NotEmpty(t, session.PersistentToken)

	s.clock.Advance(time.Hour)
	w := s.do(t, http.MethodPost, "/auth/renew", "", gin.H{"persistentToken": session.PersistentToken})
	require.Equal(t, http.StatusOK, w.Code)
	renewed := decode[verifyResponse](t, w)

	w = s.do(t, http.MethodGet, "/api/me", renewed.SessionToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/auth/renew", "", gin.H{"persistentToken": renewed.SessionToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/auth/logout", renewed.SessionToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodPost, "/auth/logout", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodPost, "/auth/logout", "garbage", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRouter_EligibilityMembership(t *testing.T) {
	s := newTestServer(t, nil)
	session := s.login(t, false)

	body := json.RawMessage(`{
		"attributes": {"age": 34, "gender": 2},
		"bins": [
			{"id": "age-18-30", "numericId": 1, "type": "RANGE", "criteriaField": "age", "minValue": 18, "maxValue": 30},
			{"id": "age-30-65", "numericId": 2, "type": "RANGE", "criteriaField": "age", "minValue": 30, "maxValue": 65},
			{"id": "gender-2", "numericId": 3, "type": "CATEGORICAL", "criteriaField": "gender", "categories": [2]}
		],
		"requiredFields": ["age", "gender"]
	}`)

	w := s.do(t, http.MethodPost, "/api/eligibility/membership", session.SessionToken, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report struct {
		Result struct {
			MatchedBinIDs []string        `json:"matchedBinIds"`
			FieldCoverage map[string]bool `json:"fieldCoverage"`
		} `json:"result"`
		Bitmap      []int  `json:"bitmap"`
		PublicInput string `json:"publicInput"`
		Coverage    struct {
			Valid bool `json:"valid"`
		} `json:"coverage"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, []string{"age-30-65", "gender-2"}, report.Result.MatchedBinIDs)
	assert.Equal(t, map[string]bool{"age": true, "gender": true}, report.Result.FieldCoverage)
	assert.Equal(t, []int{0, 1, 1}, report.Bitmap)
	assert.Equal(t, "0x6", report.PublicInput)
	assert.True(t, report.Coverage.Valid)

	w = s.do(t, http.MethodPost, "/api/eligibility/membership", session.SessionToken, json.RawMessage(`{
		"attributes": {},
		"bins": [{"id": "x", "numericId": 1, "type": "RANGE", "criteriaField": "age"}]
	}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/eligibility/membership", session.SessionToken, json.RawMessage(`{
		"attributes": {"shoeSize": 42},
		"bins": []
	}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/eligibility/membership", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	healthy := newTestServer(t, map[string]ReadinessCheck{
		"redis": func(context.Context) error { return nil },
	})
	w := healthy.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","dependencies":{"redis":"ok"}}`, w.Body.String())

	healthy.login(t, false)
	w = healthy.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cura_nonces_issued_total 1")
	assert.Contains(t, w.Body.String(), `cura_auth_verifications_total{outcome="success"} 1`)
	assert.Contains(t, w.Body.String(), `cura_http_requests_total{method="POST",route="/auth/verify",status="200"} 1`)

	degraded := newTestServer(t, map[string]ReadinessCheck{
		"redis": func(context.Context) error { return errors.New("dial tcp: connection refused") },
	})
	w = degraded.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestRouter_RequestID(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(requestIDHeader))

	w = s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}
