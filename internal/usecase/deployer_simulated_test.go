package usecase

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukia3e/evm-contract-deployer/internal/domain/model"
	"github.com/yukia3e/evm-contract-deployer/internal/domain/repository"
	"github.com/yukia3e/evm-contract-deployer/internal/domain/service"
	"github.com/yukia3e/evm-contract-deployer/internal/infrastructure/chain"
	"github.com/yukia3e/evm-contract-deployer/internal/infrastructure/wallet"
)

// miningBroadcaster seals a block right after every accepted submission,
// standing in for a dev node with automine.
type miningBroadcaster struct {
	repository.BroadcastRepository
	backend *simulated.Backend
}

func (m *miningBroadcaster) Submit(ctx context.Context, tx *model.SignedTransaction) (common.Hash, error) {
	txHash, err := m.BroadcastRepository.Submit(ctx, tx)
	if err != nil {
		return common.Hash{}, err
	}
	m.backend.Commit()
	return txHash, nil
}

type simulatedChain struct {
	backend  *simulated.Backend
	client   chain.Client
	wallet   repository.WalletRepository
	deployer *Deployer
}

func newSimulatedChain(t *testing.T) *simulatedChain {
	t.Helper()

	w, err := wallet.NewLocalWallet(testPrivateKey)
	require.NoError(t, err)

	backend := simulated.NewBackend(types.GenesisAlloc{
		w.Address(): {Balance: new(big.Int).Mul(big.NewInt(1000), big.NewInt(params.Ether))},
	})
	t.Cleanup(func() {
		_ = backend.Close()
	})

	client := chain.New(backend.Client(), nil)
	deployer := NewDeployer(w, client, &miningBroadcaster{BroadcastRepository: client, backend: backend},
		WithReceiptPolling(10*time.Millisecond, 5*time.Second),
	)

	return &simulatedChain{backend: backend, client: client, wallet: w, deployer: deployer}
}

func TestDeployer_Simulated_DeploysAtDerivedAddress(t *testing.T) {
	t.Parallel()

	sc := newSimulatedChain(t)
	ctx := context.Background()

	address, receipt, err := sc.deployer.DeployContract(ctx, common.FromHex(testInitCode))
	require.NoError(t, err)

	assert.Equal(t, service.DeriveContractAddress(sc.wallet.Address(), 0), address)
	assert.Equal(t, &address, receipt.ContractAddress)
	assert.True(t, receipt.Succeeded())

	code, err := sc.backend.Client().CodeAt(ctx, address, nil)
	require.NoError(t, err)
	assert.Equal(t, common.FromHex(testRuntimeCode), code)
}

func TestDeployer_Simulated_NonceAdvancesAcrossDeployments(t *testing.T) {
	t.Parallel()

	sc := newSimulatedChain(t)
	ctx := context.Background()
	sender := sc.wallet.Address()

	first, _, err := sc.deployer.DeployContract(ctx, common.FromHex(testInitCode))
	require.NoError(t, err)
	second, _, err := sc.deployer.DeployContract(ctx, common.FromHex(testInitCode))
	require.NoError(t, err)

	assert.Equal(t, crypto.CreateAddress(sender, 0), first)
	assert.Equal(t, crypto.CreateAddress(sender, 1), second)
	assert.NotEqual(t, first, second)

	nonce, err := sc.client.CurrentNonce(ctx, sender)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), nonce)
}

func TestDeployer_Simulated_StaleNonceIsRejected(t *testing.T) {
	t.Parallel()

	sc := newSimulatedChain(t)
	ctx := context.Background()

	_, _, err := sc.deployer.DeployContract(ctx, common.FromHex(testInitCode))
	require.NoError(t, err)

	chainID, err := sc.client.ChainID(ctx)
	require.NoError(t, err)
	gasPrice, err := sc.client.SuggestGasPrice(ctx)
	require.NoError(t, err)

	stale, err := sc.wallet.SignTransaction(ctx, model.TransactionRequest{
		Value:    new(big.Int),
		GasLimit: 9_000_000,
		GasPrice: gasPrice,
		Data:     common.FromHex(testInitCode),
		Nonce:    0,
		ChainID:  chainID,
	})
	require.NoError(t, err)

	_, err = sc.client.Submit(ctx, stale)
	require.Error(t, err)

	var rpcErr *model.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, model.ReasonNonceTooLow, rpcErr.Reason)
	assert.ErrorIs(t, err, model.ErrNonceTooLow)
}

func TestDeployer_Simulated_UnminedDeploymentIsPending(t *testing.T) {
	t.Parallel()

	sc := newSimulatedChain(t)
	// No block is sealed after submission.
	deployer := NewDeployer(sc.wallet, sc.client, sc.client,
		WithReceiptPolling(10*time.Millisecond, 100*time.Millisecond),
	)

	_, _, err := deployer.DeployContract(context.Background(), common.FromHex(testInitCode))

	var pendingErr *model.PendingDeploymentError
	require.ErrorAs(t, err, &pendingErr)
	assert.Equal(t, uint64(0), pendingErr.Nonce)
	assert.Equal(t, crypto.CreateAddress(sc.wallet.Address(), 0), pendingErr.ExpectedAddress)

	sc.backend.Commit()
	receipt, err := sc.client.AwaitReceipt(context.Background(), pendingErr.TxHash, 10*time.Millisecond, time.Second)
	require.NoError(t, err)
	assert.Equal(t, &pendingErr.ExpectedAddress, receipt.ContractAddress)
}
