package service

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/internal/eth"
)

// SignatureVerifier checks personal_sign signatures. It holds no state.
type SignatureVerifier struct{}

// Verify recovers the signer of message and compares it to claimedAddress.
// Every failure is reported as core.ErrInvalidSignature.
func (SignatureVerifier) Verify(message, signature, claimedAddress string) (common.Address, error) {
	addr, err := eth.VerifyPersonalSignature(message, signature, claimedAddress)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", core.ErrInvalidSignature, err)
	}
	return addr, nil
}
