package wallet

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/yukia3e/evm-contract-deployer/internal/domain/model"
	"github.com/yukia3e/evm-contract-deployer/internal/util"
)

const packageName = "wallet"

// newUnsignedTransaction builds the transaction and the signer whose hash must be signed.
func newUnsignedTransaction(req model.TransactionRequest) (*types.Transaction, types.Signer, error) {
	funcName := util.FuncName()

	if req.ChainID == nil || req.ChainID.Sign() <= 0 {
		return nil, nil, util.WrapErrorForLog(packageName, funcName, errors.New("chain id is required"))
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	if req.IsDynamicFee() {
		if req.GasTipCap == nil {
			return nil, nil, util.WrapErrorForLog(packageName, funcName, errors.New("gas tip cap is required with a gas fee cap"))
		}
		uTx := types.NewTx(&types.DynamicFeeTx{
			ChainID:   req.ChainID,
			Nonce:     req.Nonce,
			GasTipCap: req.GasTipCap,
			GasFeeCap: req.GasFeeCap,
			Gas:       req.GasLimit,
			To:        req.To,
			Value:     value,
			Data:      req.Data,
		})
		return uTx, types.NewLondonSigner(req.ChainID), nil
	}

	if req.GasPrice == nil {
		return nil, nil, util.WrapErrorForLog(packageName, funcName, errors.New("gas price is required"))
	}
	uTx := types.NewTx(&types.LegacyTx{
		Nonce:    req.Nonce,
		GasPrice: req.GasPrice,
		Gas:      req.GasLimit,
		To:       req.To,
		Value:    value,
		Data:     req.Data,
	})
	return uTx, types.NewEIP155Signer(req.ChainID), nil
}

// attachSignature applies a 65 byte [R || S || V] signature and serializes the result.
func attachSignature(uTx *types.Transaction, signer types.Signer, signature []byte, from common.Address) (*model.SignedTransaction, error) {
	funcName := util.FuncName()

	signedTx, err := uTx.WithSignature(signer, signature)
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("failed to attach signature: %w", err))
	}

	sender, err := types.Sender(signer, signedTx)
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("failed to recover sender: %w", err))
	}
	if sender != from {
		return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("signature recovers to %s, expected %s", sender.Hex(), from.Hex()))
	}

	raw, err := signedTx.MarshalBinary()
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("failed to encode transaction: %w", err))
	}

	return &model.SignedTransaction{
		From:  from,
		Nonce: signedTx.Nonce(),
		Raw:   raw,
		Hash:  signedTx.Hash(),
	}, nil
}
