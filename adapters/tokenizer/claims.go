package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims are carried by short-lived access tokens
type SessionClaims struct {
	jwt.RegisteredClaims
	WalletAddress string `json:"walletAddress"`
}

// PersistentClaims are carried by long-lived tokens and signed with a separate secret
type PersistentClaims struct {
	jwt.RegisteredClaims
	WalletAddress string `json:"walletAddress"`
	Type          string `json:"typ"`
}
