package repository

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yukia3e/evm-contract-deployer/internal/domain/model"
)

// WalletRepository holds one signing key and the account derived from it.
type WalletRepository interface {
	// Address returns the account derived from the key.
	Address() common.Address
	// SignTransaction signs req and returns the encoded transaction.
	SignTransaction(ctx context.Context, req model.TransactionRequest) (*model.SignedTransaction, error)
}

// ChainStateRepository reads account and network state from the ledger.
type ChainStateRepository interface {
	// CurrentNonce returns the nonce of address at the latest block.
	CurrentNonce(ctx context.Context, address common.Address) (uint64, error)
	// ChainID returns the chain id reported by the node.
	ChainID(ctx context.Context) (*big.Int, error)
	// SuggestGasPrice returns the node's suggested legacy gas price.
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	// ListAccounts returns the accounts the node manages.
	ListAccounts(ctx context.Context) ([]model.Account, error)
}

// BroadcastRepository submits signed transactions and waits for their receipts.
type BroadcastRepository interface {
	// Submit sends tx and returns its hash once the node accepts it.
	Submit(ctx context.Context, tx *model.SignedTransaction) (common.Hash, error)
	// AwaitReceipt polls for the receipt of txHash until timeout elapses.
	AwaitReceipt(ctx context.Context, txHash common.Hash, pollInterval, timeout time.Duration) (*model.Receipt, error)
}

// ArtifactRepository loads compiled contract artifacts.
type ArtifactRepository interface {
	Load(ctx context.Context, source string) (*model.Artifact, error)
}

// DeploymentMetrics records deployment outcomes.
type DeploymentMetrics interface {
	ObserveDeployment(outcome string, duration time.Duration)
	ObserveReceiptWait(duration time.Duration)
	ObserveNonce(nonce uint64)
}
