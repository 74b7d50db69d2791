package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TransactionRequest holds the fields of a transaction before signing.
// A nil GasFeeCap selects a legacy EIP-155 transaction priced by GasPrice,
// otherwise a dynamic fee transaction is built from GasTipCap and GasFeeCap.
type TransactionRequest struct {
	To        *common.Address // nil means contract creation
	Value     *big.Int        // wei amount
	GasLimit  uint64
	GasPrice  *big.Int
	GasTipCap *big.Int // a.k.a. maxPriorityFeePerGas
	GasFeeCap *big.Int // a.k.a. maxFeePerGas
	Data      []byte   // init code for creations, calldata otherwise
	Nonce     uint64
	ChainID   *big.Int
}

func (r TransactionRequest) IsCreation() bool {
	return r.To == nil
}

func (r TransactionRequest) IsDynamicFee() bool {
	return r.GasFeeCap != nil
}

// SignedTransaction is the canonical binary encoding of a signed transaction.
type SignedTransaction struct {
	From  common.Address
	Nonce uint64
	Raw   []byte
	Hash  common.Hash
}

// Receipt is the chain's record of a mined transaction.
type Receipt struct {
	TxHash          common.Hash
	Status          uint64
	ContractAddress *common.Address
	BlockNumber     *big.Int
	GasUsed         uint64
}

const (
	ReceiptStatusFailed     = uint64(0)
	ReceiptStatusSuccessful = uint64(1)
)

func (r *Receipt) Succeeded() bool {
	return r.Status == ReceiptStatusSuccessful
}

// Deployment is the outcome of a confirmed contract creation.
type Deployment struct {
	Address common.Address
	Nonce   uint64
	Receipt *Receipt
}
