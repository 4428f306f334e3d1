package ports

import "github.com/cura-labs/cura/core"

// Tokenizer converts between sessions and signed bearer credentials
type Tokenizer interface {
	// Short-lived access credential
	SessionToAccessToken(session *core.Session) (string, error)
	AccessTokenToSession(token string) (*core.Session, error)

	// Long-lived credential for persistent sessions
	SessionToPersistentToken(session *core.Session) (string, error)
	PersistentTokenToSession(token string) (*core.Session, error)
}

// SignatureVerifier checks that signature over message was produced by address.
type SignatureVerifier interface {
	Verify(message, signature, address string) error
}
