// Package eth verifies wallet signatures produced by personal_sign (EIP-191).
package eth

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/cura-labs/cura/core"
)

// IsAddress reports whether s is a 20-byte hex address with 0x prefix.
func IsAddress(s string) bool {
	return len(s) == 2+2*common.AddressLength && common.IsHexAddress(s)
}

// Verifier recovers the signer of a personal_sign signature and compares it to the claimed address.
type Verifier struct{}

// NewVerifier creates a personal_sign verifier
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Verify checks that signature over message was produced by address
func (v *Verifier) Verify(message, signature, address string) error {
	if !IsAddress(address) {
		return core.ErrInvalidAddress
	}

	decoded, err := hexutil.Decode(signature)
	if err != nil {
		return fmt.Errorf("failed to decode signature: %w", core.ErrInvalidSignature)
	}
	if len(decoded) != crypto.SignatureLength {
		return fmt.Errorf("signature must be %d bytes: %w", crypto.SignatureLength, core.ErrInvalidSignature)
	}

	sig := make([]byte, len(decoded))
	copy(sig, decoded)
	// wallets emit V as 27/28
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return fmt.Errorf("failed to recover signer: %w", core.ErrInvalidSignature)
	}

	if crypto.PubkeyToAddress(*pub) != common.HexToAddress(address) {
		return core.ErrInvalidSignature
	}
	return nil
}
