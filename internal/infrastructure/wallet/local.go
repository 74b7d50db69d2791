package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog/log"

	"github.com/yukia3e/evm-contract-deployer/internal/domain/model"
	"github.com/yukia3e/evm-contract-deployer/internal/domain/repository"
	"github.com/yukia3e/evm-contract-deployer/internal/util"
)

type localWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewLocalWallet holds a hex encoded secp256k1 private key in process memory.
// The key is validated here and is read-only afterwards.
func NewLocalWallet(hexKey string) (repository.WalletRepository, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, util.FuncName(), &model.KeyFormatError{Err: err})
	}

	address := crypto.PubkeyToAddress(key.PublicKey)
	log.Debug().Str("address", address.Hex()).Msg(util.WrapLogMessage(packageName, util.FuncName(), "loaded key"))

	return &localWallet{
		key:     key,
		address: address,
	}, nil
}

func (w *localWallet) Address() common.Address {
	return w.address
}

// SignTransaction signs with RFC 6979 nonces, so identical requests produce identical bytes.
func (w *localWallet) SignTransaction(_ context.Context, req model.TransactionRequest) (*model.SignedTransaction, error) {
	funcName := util.FuncName()

	uTx, signer, err := newUnsignedTransaction(req)
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, funcName, &model.SigningError{Err: err})
	}
	txHash := signer.Hash(uTx)

	signature, err := crypto.Sign(txHash[:], w.key)
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, funcName, &model.SigningError{Err: fmt.Errorf("failed to sign: %w", err)})
	}

	signedTx, err := attachSignature(uTx, signer, signature, w.address)
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, funcName, &model.SigningError{Err: err})
	}
	return signedTx, nil
}
