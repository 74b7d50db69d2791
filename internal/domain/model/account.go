package model

import "github.com/ethereum/go-ethereum/common"

// Account is an externally owned account known to the chain or held by a wallet.
type Account struct {
	Address common.Address
}

func (a Account) String() string {
	return a.Address.Hex()
}
