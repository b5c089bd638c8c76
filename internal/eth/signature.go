// Package eth wraps the go-ethereum primitives used for personal_sign challenges.
package eth

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the size of an [R || S || V] signature
const SignatureLength = crypto.SignatureLength

var ErrMalformedSignature = errors.New("malformed signature")

// ParseAddress validates a hex address and returns it
func ParseAddress(address string) (common.Address, bool) {
	if !common.IsHexAddress(address) {
		return common.Address{}, false
	}
	return common.HexToAddress(address), true
}

// RecoverAddress returns the address that produced sig over the EIP-191 hash of message
func RecoverAddress(message string, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes: %w", SignatureLength, ErrMalformedSignature)
	}

	// Wallets emit V as 27/28, SigToPub expects 0/1
	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyPersonalSignature decodes a hex signature, recovers its signer and
// compares it case-insensitively to claimed
func VerifyPersonalSignature(message, signatureHex, claimed string) (common.Address, error) {
	sig, err := hexutil.Decode(signatureHex)
	if err != nil {
		return common.Address{}, fmt.Errorf("decode signature: %w", ErrMalformedSignature)
	}

	recovered, err := RecoverAddress(message, sig)
	if err != nil {
		return common.Address{}, err
	}

	if !strings.EqualFold(recovered.Hex(), claimed) {
		return common.Address{}, fmt.Errorf("recovered %s, expected %s", recovered.Hex(), claimed)
	}
	return recovered, nil
}

// SignText produces a personal_sign style signature with V in 27/28 form
func SignText(key *ecdsa.PrivateKey, message string) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}
