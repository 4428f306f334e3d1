package core

import "errors"

// Nonce outcomes. All of them surface to clients as one generic authentication failure.
var (
	ErrNonceNotFound       = errors.New("nonce not found")
	ErrNonceAlreadyUsed    = errors.New("nonce already used")
	ErrNonceExpired        = errors.New("nonce expired")
	ErrNonceWalletMismatch = errors.New("nonce bound to a different wallet")
)

// Session credential outcomes.
var (
	ErrTokenExpired             = errors.New("token has expired")
	ErrInvalidToken             = errors.New("invalid token")
	ErrInvalidSignature         = errors.New("invalid signature")
	ErrIssuerOrAudienceMismatch = errors.New("issuer or audience mismatch")
)

var (
	ErrInvalidAddress   = errors.New("invalid wallet address")
	ErrMalformedMessage = errors.New("malformed auth message")
	ErrMessageRejected  = errors.New("auth message rejected")
)

// IsNonceError reports whether err is one of the nonce rejection outcomes.
func IsNonceError(err error) bool {
	return errors.Is(err, ErrNonceNotFound) ||
		errors.Is(err, ErrNonceAlreadyUsed) ||
		errors.Is(err, ErrNonceExpired) ||
		errors.Is(err, ErrNonceWalletMismatch)
}
