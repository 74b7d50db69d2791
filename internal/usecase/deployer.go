package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/yukia3e/evm-contract-deployer/internal/config"
	"github.com/yukia3e/evm-contract-deployer/internal/domain/model"
	"github.com/yukia3e/evm-contract-deployer/internal/domain/repository"
	"github.com/yukia3e/evm-contract-deployer/internal/domain/service"
	"github.com/yukia3e/evm-contract-deployer/internal/infrastructure/metrics"
	"github.com/yukia3e/evm-contract-deployer/internal/util"
)

const packageName = "usecase"

// Deployer deploys raw contract bytecode from the single account held by its wallet.
// Deployments through one Deployer are serialized from nonce read to receipt.
type Deployer struct {
	wallet      repository.WalletRepository
	chain       repository.ChainStateRepository
	broadcaster repository.BroadcastRepository
	metrics     repository.DeploymentMetrics

	gasLimit     uint64
	gasPrice     *big.Int
	chainID      *big.Int
	pollInterval time.Duration
	timeout      time.Duration

	mu sync.Mutex
}

func NewDeployer(
	wallet repository.WalletRepository,
	chain repository.ChainStateRepository,
	broadcaster repository.BroadcastRepository,
	opts ...Option,
) *Deployer {
	d := &Deployer{
		wallet:       wallet,
		chain:        chain,
		broadcaster:  broadcaster,
		metrics:      noopMetrics{},
		gasLimit:     config.DefaultGasLimit,
		pollInterval: config.DefaultReceiptPollInterval,
		timeout:      config.DefaultReceiptTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Account is the deploying account.
func (d *Deployer) Account() model.Account {
	return model.Account{Address: d.wallet.Address()}
}

// DeployArtifact decodes the artifact bytecode and deploys it.
func (d *Deployer) DeployArtifact(ctx context.Context, artifact model.Artifact) (*model.Deployment, error) {
	bytecode, err := artifact.DecodeBytecode()
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, util.FuncName(), err)
	}

	deployment, err := d.serializedDeploy(ctx, bytecode)
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, util.FuncName(), err)
	}
	log.Info().
		Str("contract", artifact.ContractName).
		Str("address", deployment.Address.Hex()).
		Msg(util.WrapLogMessage(packageName, util.FuncName(), "artifact deployed"))

	return deployment, nil
}

// DeployContract sends a creation transaction carrying bytecode and returns the
// contract address once the receipt confirms the locally derived address.
func (d *Deployer) DeployContract(ctx context.Context, bytecode []byte) (common.Address, *model.Receipt, error) {
	deployment, err := d.serializedDeploy(ctx, bytecode)
	if err != nil {
		return common.Address{}, nil, util.WrapErrorForLog(packageName, util.FuncName(), err)
	}
	return deployment.Address, deployment.Receipt, nil
}

func (d *Deployer) serializedDeploy(ctx context.Context, bytecode []byte) (*model.Deployment, error) {
	if len(bytecode) == 0 {
		return nil, errors.New("bytecode is empty")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	started := time.Now()
	deployment, err := d.deploy(ctx, bytecode)
	d.metrics.ObserveDeployment(outcomeOf(err), time.Since(started))
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("address", deployment.Address.Hex()).
		Str("txHash", deployment.Receipt.TxHash.Hex()).
		Uint64("nonce", deployment.Nonce).
		Msg(util.WrapLogMessage(packageName, util.FuncName(), "contract deployed"))

	return deployment, nil
}

func (d *Deployer) deploy(ctx context.Context, bytecode []byte) (*model.Deployment, error) {
	funcName := util.FuncName()
	sender := d.wallet.Address()

	chainID, gasPrice, err := d.networkParams(ctx)
	if err != nil {
		return nil, err
	}

	nonce, err := d.chain.CurrentNonce(ctx, sender)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	d.metrics.ObserveNonce(nonce)

	req := model.TransactionRequest{
		To:       nil,
		Value:    new(big.Int),
		GasLimit: d.gasLimit,
		GasPrice: gasPrice,
		Data:     bytecode,
		Nonce:    nonce,
		ChainID:  chainID,
	}
	signedTx, err := d.wallet.SignTransaction(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	expected := service.DeriveContractAddress(sender, nonce)
	log.Debug().
		Str("from", sender.Hex()).
		Uint64("nonce", nonce).
		Str("expectedAddress", expected.Hex()).
		Msg(util.WrapLogMessage(packageName, funcName, "signed creation transaction"))

	txHash, err := d.broadcaster.Submit(ctx, signedTx)
	if err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	waitStarted := time.Now()
	receipt, err := d.broadcaster.AwaitReceipt(ctx, txHash, d.pollInterval, d.timeout)
	d.metrics.ObserveReceiptWait(time.Since(waitStarted))
	if err != nil {
		var timeoutErr *model.TimeoutError
		if errors.As(err, &timeoutErr) {
			return nil, &model.PendingDeploymentError{TxHash: txHash, Nonce: nonce, ExpectedAddress: expected, Err: err}
		}
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}

	if !receipt.Succeeded() {
		return nil, &model.ExecutionRevertedError{Receipt: receipt}
	}
	if receipt.ContractAddress == nil || *receipt.ContractAddress != expected {
		return nil, &model.AddressMismatchError{Sender: sender, Nonce: nonce, Expected: expected, Reported: receipt.ContractAddress}
	}

	return &model.Deployment{Address: expected, Nonce: nonce, Receipt: receipt}, nil
}

func (d *Deployer) networkParams(ctx context.Context) (chainID *big.Int, gasPrice *big.Int, err error) {
	chainID = d.chainID
	if chainID == nil {
		if chainID, err = d.chain.ChainID(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to get chain id: %w", err)
		}
	}
	gasPrice = d.gasPrice
	if gasPrice == nil {
		if gasPrice, err = d.chain.SuggestGasPrice(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to get gas price: %w", err)
		}
	}
	return chainID, gasPrice, nil
}

// ListAccounts returns the accounts the node itself manages.
func (d *Deployer) ListAccounts(ctx context.Context) ([]model.Account, error) {
	accounts, err := d.chain.ListAccounts(ctx)
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, util.FuncName(), err)
	}
	return accounts, nil
}

func outcomeOf(err error) string {
	var (
		pendingErr  *model.PendingDeploymentError
		mismatchErr *model.AddressMismatchError
		revertedErr *model.ExecutionRevertedError
	)
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.As(err, &pendingErr):
		return metrics.OutcomePending
	case errors.As(err, &mismatchErr):
		return metrics.OutcomeMismatch
	case errors.As(err, &revertedErr):
		return metrics.OutcomeReverted
	default:
		return metrics.OutcomeFailed
	}
}

type noopMetrics struct{}

func (noopMetrics) ObserveDeployment(string, time.Duration) {}
func (noopMetrics) ObserveReceiptWait(time.Duration)        {}
func (noopMetrics) ObserveNonce(uint64)                     {}
