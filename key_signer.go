package warden

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/internal/eth"
)

// KeySigner is a Signer backed by a local private key. It approves every
// request and knows the chains it was created with or taught through AddChain.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address

	mu     sync.Mutex
	active uint64
	known  map[uint64]core.Chain
}

// NewKeySigner creates a signer for key, active on chain
func NewKeySigner(key *ecdsa.PrivateKey, chain core.Chain) *KeySigner {
	return &KeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		active:  chain.ID,
		known:   map[uint64]core.Chain{chain.ID: chain},
	}
}

// NewKeySignerFromHex parses a hex encoded secp256k1 private key
func NewKeySignerFromHex(hexKey string, chain core.Chain) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewKeySigner(key, chain), nil
}

// LoadKeystoreSigner decrypts a go-ethereum keystore file
func LoadKeystoreSigner(path, passphrase string, chain core.Chain) (*KeySigner, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}

	key, err := keystore.DecryptKey(raw, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt keystore: %w", err)
	}
	return NewKeySigner(key.PrivateKey, chain), nil
}

var _ Signer = (*KeySigner)(nil)

// Address returns the signer's account
func (s *KeySigner) Address() common.Address {
	return s.address
}

// Accounts returns the single account of the key
func (s *KeySigner) Accounts(ctx context.Context) ([]string, error) {
	return []string{s.address.Hex()}, nil
}

// ChainID returns the active chain
func (s *KeySigner) ChainID(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, nil
}

// SwitchChain activates a known chain
func (s *KeySigner) SwitchChain(ctx context.Context, chainID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.known[chainID]; !ok {
		return ErrUnrecognizedChain
	}
	s.active = chainID
	return nil
}

// AddChain remembers a chain
func (s *KeySigner) AddChain(ctx context.Context, chain core.Chain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.known[chain.ID] = chain
	return nil
}

// SignPersonal signs message with the EIP-191 prefix
func (s *KeySigner) SignPersonal(ctx context.Context, message, address string) (string, error) {
	if !strings.EqualFold(address, s.address.Hex()) {
		return "", fmt.Errorf("unknown account %s", address)
	}

	sig, err := eth.SignText(s.key, message)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}
