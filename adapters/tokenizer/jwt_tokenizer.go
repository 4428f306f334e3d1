package tokenizer

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cura-labs/cura/core"
	"github.com/cura-labs/cura/ports"
)

const (
	Issuer   = "cura-api"
	Audience = "cura-client"

	persistentType = "persistent"
)

// JWTTokenizer implements the Tokenizer interface with HS256 JWTs
type JWTTokenizer struct {
	accessKey     []byte
	persistentKey []byte
	parser        *jwt.Parser
}

// NewJWTTokenizer creates a new JWT tokenizer. Access and persistent tokens use distinct secrets.
func NewJWTTokenizer(accessSecret, persistentSecret string, clock ports.Clock) *JWTTokenizer {
	return &JWTTokenizer{
		accessKey:     []byte(accessSecret),
		persistentKey: []byte(persistentSecret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(Issuer),
			jwt.WithAudience(Audience),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(clock.Now),
		),
	}
}

func registeredClaims(session *core.Session) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   core.NormalizeAddress(session.Address),
		Audience:  jwt.ClaimStrings{Audience},
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
		ID:        session.ID,
	}
}

// SessionToAccessToken converts a Session to a signed access token
func (j *JWTTokenizer) SessionToAccessToken(session *core.Session) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: registeredClaims(session),
		WalletAddress:    core.NormalizeAddress(session.Address),
	}

	signedToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.accessKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signedToken, nil
}

// AccessTokenToSession verifies an access token and returns its session
func (j *JWTTokenizer) AccessTokenToSession(tokenStr string) (*core.Session, error) {
	claims := &SessionClaims{}
	if err := j.parse(tokenStr, claims, j.accessKey); err != nil {
		return nil, err
	}

	return &core.Session{
		ID:        claims.ID,
		Address:   claims.WalletAddress,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// SessionToPersistentToken converts a Session to a signed long-lived token
func (j *JWTTokenizer) SessionToPersistentToken(session *core.Session) (string, error) {
	claims := PersistentClaims{
		RegisteredClaims: registeredClaims(session),
		WalletAddress:    core.NormalizeAddress(session.Address),
		Type:             persistentType,
	}

	signedToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.persistentKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign persistent token: %w", err)
	}
	return signedToken, nil
}

// PersistentTokenToSession verifies a persistent token and returns its session
func (j *JWTTokenizer) PersistentTokenToSession(tokenStr string) (*core.Session, error) {
	claims := &PersistentClaims{}
	if err := j.parse(tokenStr, claims, j.persistentKey); err != nil {
		return nil, err
	}
	if claims.Type != persistentType {
		return nil, core.ErrInvalidToken
	}

	return &core.Session{
		ID:         claims.ID,
		Address:    claims.WalletAddress,
		IssuedAt:   claims.IssuedAt.Time,
		ExpiresAt:  claims.ExpiresAt.Time,
		Persistent: true,
	}, nil
}

func (j *JWTTokenizer) parse(tokenStr string, claims jwt.Claims, key []byte) error {
	token, err := j.parser.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return key, nil
	})
	if err != nil {
		return fmt.Errorf("failed to parse token: %w", classify(err))
	}
	if !token.Valid {
		return core.ErrInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return core.ErrInvalidToken
	}
	return nil
}

// classify maps jwt errors onto the session error taxonomy
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return core.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return core.ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return core.ErrIssuerOrAudienceMismatch
	default:
		return core.ErrInvalidToken
	}
}
