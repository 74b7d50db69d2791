package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"

	"github.com/yukia3e/evm-contract-deployer/internal/domain/model"
	"github.com/yukia3e/evm-contract-deployer/internal/domain/repository"
	"github.com/yukia3e/evm-contract-deployer/internal/util"
)

const packageName = "chain"

// Backend is the typed part of the node API used here. *ethclient.Client and
// the go-ethereum simulated backend client both satisfy it.
type Backend interface {
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// RPCCaller issues raw JSON-RPC calls. *rpc.Client satisfies it.
type RPCCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

type client struct {
	backend Backend
	caller  RPCCaller
}

// Client serves both chain state reads and transaction broadcast over one connection.
type Client interface {
	repository.ChainStateRepository
	repository.BroadcastRepository
}

func New(backend Backend, caller RPCCaller) Client {
	return &client{
		backend: backend,
		caller:  caller,
	}
}

// CurrentNonce reads the transaction count at the latest block. It is never cached.
func (c *client) CurrentNonce(ctx context.Context, address common.Address) (uint64, error) {
	nonce, err := c.backend.NonceAt(ctx, address, nil)
	if err != nil {
		return 0, util.WrapErrorForLog(packageName, util.FuncName(), &model.RPCError{Method: "eth_getTransactionCount", Err: err})
	}
	log.Debug().Str("address", address.Hex()).Uint64("nonce", nonce).Msg(util.WrapLogMessage(packageName, util.FuncName(), "read nonce"))
	return nonce, nil
}

func (c *client) ChainID(ctx context.Context) (*big.Int, error) {
	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, util.FuncName(), &model.RPCError{Method: "eth_chainId", Err: err})
	}
	return chainID, nil
}

func (c *client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, util.FuncName(), &model.RPCError{Method: "eth_gasPrice", Err: err})
	}
	return gasPrice, nil
}

func (c *client) ListAccounts(ctx context.Context) ([]model.Account, error) {
	funcName := util.FuncName()

	if c.caller == nil {
		return nil, util.WrapErrorForLog(packageName, funcName, &model.RPCError{Method: "eth_accounts", Err: errors.New("no rpc connection")})
	}

	var addresses []common.Address
	if err := c.caller.CallContext(ctx, &addresses, "eth_accounts"); err != nil {
		return nil, util.WrapErrorForLog(packageName, funcName, &model.RPCError{Method: "eth_accounts", Err: err})
	}

	accounts := make([]model.Account, 0, len(addresses))
	for _, address := range addresses {
		accounts = append(accounts, model.Account{Address: address})
	}
	return accounts, nil
}

// Submit sends the signed transaction once. A rejected submission is returned
// as an RPCError carrying the node's reason; it is never resent.
func (c *client) Submit(ctx context.Context, signed *model.SignedTransaction) (common.Hash, error) {
	funcName := util.FuncName()

	var tx types.Transaction
	if err := tx.UnmarshalBinary(signed.Raw); err != nil {
		return common.Hash{}, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("failed to decode signed transaction: %w", err))
	}
	if tx.Hash() != signed.Hash {
		return common.Hash{}, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("signed transaction hash mismatch: %s != %s", tx.Hash().Hex(), signed.Hash.Hex()))
	}

	if err := c.backend.SendTransaction(ctx, &tx); err != nil {
		return common.Hash{}, util.WrapErrorForLog(packageName, funcName, &model.RPCError{
			Method: "eth_sendRawTransaction",
			Reason: classifyRejection(err),
			Err:    err,
		})
	}

	log.Info().Str("txHash", signed.Hash.Hex()).Uint64("nonce", signed.Nonce).Msg(util.WrapLogMessage(packageName, funcName, "transaction submitted"))
	return signed.Hash, nil
}

// AwaitReceipt asks for the receipt right away and then once per pollInterval
// until it appears or timeout elapses.
func (c *client) AwaitReceipt(ctx context.Context, txHash common.Hash, pollInterval, timeout time.Duration) (*model.Receipt, error) {
	funcName := util.FuncName()

	if pollInterval <= 0 || timeout <= 0 {
		return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("poll interval and timeout must be positive"))
	}

	// Every receipt call shares the deadline, so a stalled node cannot hold the wait past it.
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	stopped := func() error {
		if err := ctx.Err(); err != nil {
			return util.WrapErrorForLog(packageName, funcName, err)
		}
		return util.WrapErrorForLog(packageName, funcName, &model.TimeoutError{TxHash: txHash, Timeout: timeout})
	}

	for {
		receipt, err := c.backend.TransactionReceipt(waitCtx, txHash)
		switch {
		case err == nil && receipt != nil:
			return toModelReceipt(receipt), nil
		case err != nil && waitCtx.Err() != nil:
			return nil, stopped()
		case err != nil && !receiptPending(err):
			return nil, util.WrapErrorForLog(packageName, funcName, &model.RPCError{Method: "eth_getTransactionReceipt", Err: err})
		}
		log.Debug().Str("txHash", txHash.Hex()).Msg(util.WrapLogMessage(packageName, funcName, "receipt not available yet"))

		select {
		case <-waitCtx.Done():
			return nil, stopped()
		case <-ticker.C:
		}
	}
}

func toModelReceipt(receipt *types.Receipt) *model.Receipt {
	var contractAddress *common.Address
	if receipt.ContractAddress != (common.Address{}) {
		contractAddress = util.Pointer(receipt.ContractAddress)
	}

	return &model.Receipt{
		TxHash:          receipt.TxHash,
		Status:          receipt.Status,
		ContractAddress: contractAddress,
		BlockNumber:     receipt.BlockNumber,
		GasUsed:         receipt.GasUsed,
	}
}
