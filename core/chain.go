package core

import "github.com/ethereum/go-ethereum/common/hexutil"

// Chain describes the network wallets must be connected to
type Chain struct {
	ID             uint64
	Name           string
	RPCURLs        []string
	CurrencyName   string
	CurrencySymbol string
	Decimals       int
	ExplorerURLs   []string
}

// HexID returns the chain id in the 0x-prefixed form wallets use
func (c Chain) HexID() string {
	return hexutil.EncodeUint64(c.ID)
}
