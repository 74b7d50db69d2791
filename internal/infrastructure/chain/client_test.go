package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/yukia3e/evm-contract-deployer/internal/domain/model"
)

const (
	testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

	transactionReceiptMethod = "TransactionReceipt"
	sendTransactionMethod    = "SendTransaction"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	args := m.Called(ctx, account, blockNumber)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	args := m.Called(ctx, txHash)
	return args.Get(0).(*types.Receipt), args.Error(1)
}

func (m *MockBackend) ChainID(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *MockBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	return args.Get(0).(*big.Int), args.Error(1)
}

type MockCaller struct {
	mock.Mock
}

func (m *MockCaller) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	called := m.Called(ctx, result, method)
	return called.Error(0)
}

type ClientTestSuite struct {
	*require.Assertions
	suite.Suite
	backend  *MockBackend
	caller   *MockCaller
	client   Client
	signed   *model.SignedTransaction
	sender   common.Address
	receipt  *types.Receipt
	notFound *types.Receipt
}

func (s *ClientTestSuite) SetupSuite() {
	s.Assertions = require.New(s.T())
}

func (s *ClientTestSuite) SetupTest() {
	s.backend = new(MockBackend)
	s.caller = new(MockCaller)
	s.client = New(s.backend, s.caller)

	key, err := crypto.HexToECDSA(testPrivateKey)
	s.NoError(err)
	s.sender = crypto.PubkeyToAddress(key.PublicKey)

	tx := types.MustSignNewTx(key, types.NewEIP155Signer(big.NewInt(1337)), &types.LegacyTx{
		Nonce:    0,
		GasPrice: big.NewInt(1_000_000_000),
		Gas:      100_000,
		Data:     []byte{0x60, 0x00},
	})
	raw, err := tx.MarshalBinary()
	s.NoError(err)
	s.signed = &model.SignedTransaction{From: s.sender, Nonce: 0, Raw: raw, Hash: tx.Hash()}

	s.receipt = &types.Receipt{
		TxHash:          tx.Hash(),
		Status:          types.ReceiptStatusSuccessful,
		ContractAddress: crypto.CreateAddress(s.sender, 0),
		BlockNumber:     big.NewInt(1234),
		GasUsed:         53_000,
	}
}

func (s *ClientTestSuite) TestCurrentNonce_ReadsLatestBlock() {
	s.backend.On("NonceAt", mock.Anything, s.sender, (*big.Int)(nil)).Return(uint64(5), nil).Once()

	nonce, err := s.client.CurrentNonce(context.Background(), s.sender)
	s.NoError(err)
	s.Equal(uint64(5), nonce)
	s.backend.AssertExpectations(s.T())
}

func (s *ClientTestSuite) TestCurrentNonce_IsNotCached() {
	s.backend.On("NonceAt", mock.Anything, s.sender, (*big.Int)(nil)).Return(uint64(1), nil).Once()
	s.backend.On("NonceAt", mock.Anything, s.sender, (*big.Int)(nil)).Return(uint64(2), nil).Once()

	first, err := s.client.CurrentNonce(context.Background(), s.sender)
	s.NoError(err)
	second, err := s.client.CurrentNonce(context.Background(), s.sender)
	s.NoError(err)

	s.Equal(uint64(1), first)
	s.Equal(uint64(2), second)
	s.backend.AssertNumberOfCalls(s.T(), "NonceAt", 2)
}

func (s *ClientTestSuite) TestCurrentNonce_TransportError() {
	s.backend.On("NonceAt", mock.Anything, s.sender, (*big.Int)(nil)).Return(uint64(0), errors.New("dial tcp 127.0.0.1:8545: connect: connection refused"))

	_, err := s.client.CurrentNonce(context.Background(), s.sender)
	s.EqualError(err, "chain.CurrentNonce: rpc eth_getTransactionCount failed: dial tcp 127.0.0.1:8545: connect: connection refused")

	var rpcErr *model.RPCError
	s.ErrorAs(err, &rpcErr)
	s.Equal(model.ReasonUnknown, rpcErr.Reason)
}

func (s *ClientTestSuite) TestSubmit_ReturnsHash() {
	s.backend.On(sendTransactionMethod, mock.Anything, mock.MatchedBy(func(tx *types.Transaction) bool {
		return tx.Hash() == s.signed.Hash
	})).Return(nil).Once()

	hash, err := s.client.Submit(context.Background(), s.signed)
	s.NoError(err)
	s.Equal(s.signed.Hash, hash)
	s.backend.AssertExpectations(s.T())
}

func (s *ClientTestSuite) TestSubmit_Rejections() {
	tests := []struct {
		name     string
		nodeErr  string
		reason   model.RejectionReason
		sentinel error
	}{
		{"stale nonce", "nonce too low: address 0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266, tx: 0 state: 1", model.ReasonNonceTooLow, model.ErrNonceTooLow},
		{"no balance", "insufficient funds for gas * price + value: address 0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266 have 0 want 100000000000000", model.ReasonInsufficientFunds, model.ErrInsufficientFunds},
		{"gas limit", "intrinsic gas too low: gas 21000, minimum needed 53016", model.ReasonGasTooLow, model.ErrGasTooLow},
		{"duplicate", "already known", model.ReasonAlreadyKnown, model.ErrAlreadyKnown},
		{"replacement", "replacement transaction underpriced", model.ReasonUnderpriced, model.ErrUnderpriced},
		{"other", "connection reset by peer", model.ReasonUnknown, nil},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			backend := new(MockBackend)
			backend.On(sendTransactionMethod, mock.Anything, mock.Anything).Return(errors.New(tt.nodeErr)).Once()

			_, err := New(backend, nil).Submit(context.Background(), s.signed)
			s.Error(err)

			var rpcErr *model.RPCError
			s.ErrorAs(err, &rpcErr)
			s.Equal("eth_sendRawTransaction", rpcErr.Method)
			s.Equal(tt.reason, rpcErr.Reason)
			if tt.sentinel != nil {
				s.ErrorIs(err, tt.sentinel)
			}
		})
	}
}

func (s *ClientTestSuite) TestSubmit_RejectsCorruptPayload() {
	corrupt := *s.signed
	corrupt.Hash = common.HexToHash("0x01")

	_, err := s.client.Submit(context.Background(), &corrupt)
	s.ErrorContains(err, "signed transaction hash mismatch")
	s.backend.AssertNotCalled(s.T(), sendTransactionMethod, mock.Anything, mock.Anything)
}

func (s *ClientTestSuite) TestAwaitReceipt_CallsTransactionReceiptImmediately() {
	var callTime time.Time
	s.backend.On(transactionReceiptMethod, mock.Anything, s.signed.Hash).
		Return(s.receipt, nil).
		Run(func(args mock.Arguments) { callTime = time.Now() })

	now := time.Now()
	receipt, err := s.client.AwaitReceipt(context.Background(), s.signed.Hash, time.Second, time.Minute)
	s.NoError(err)
	s.WithinDuration(now, callTime, 20*time.Millisecond)

	s.Equal(s.signed.Hash, receipt.TxHash)
	s.True(receipt.Succeeded())
	s.Equal(crypto.CreateAddress(s.sender, 0), *receipt.ContractAddress)
	s.Equal(big.NewInt(1234), receipt.BlockNumber)
}

func (s *ClientTestSuite) TestAwaitReceipt_MakesTheSecondCallAfterInterval() {
	var secondCallTime time.Time

	s.backend.On(transactionReceiptMethod, mock.Anything, mock.Anything).
		Return(s.notFound, ethereum.NotFound).
		Once()
	s.backend.On(transactionReceiptMethod, mock.Anything, mock.Anything).
		Return(s.receipt, nil).
		Run(func(args mock.Arguments) { secondCallTime = time.Now() }).
		Once()

	testPollInterval := 50 * time.Millisecond
	expected := time.Now().Add(testPollInterval)

	_, err := s.client.AwaitReceipt(context.Background(), s.signed.Hash, testPollInterval, time.Minute)
	s.NoError(err)
	s.WithinDuration(expected, secondCallTime, 20*time.Millisecond)
}

func (s *ClientTestSuite) TestAwaitReceipt_EventuallyTimesOut() {
	s.backend.On(transactionReceiptMethod, mock.Anything, mock.Anything).
		Return(s.notFound, ethereum.NotFound)

	testTimeout := 50 * time.Millisecond
	expected := time.Now().Add(testTimeout)

	_, err := s.client.AwaitReceipt(context.Background(), s.signed.Hash, 10*time.Millisecond, testTimeout)

	var timeoutErr *model.TimeoutError
	s.ErrorAs(err, &timeoutErr)
	s.Equal(s.signed.Hash, timeoutErr.TxHash)
	s.WithinDuration(expected, time.Now(), 20*time.Millisecond)
}

func (s *ClientTestSuite) TestAwaitReceipt_StalledCallEndsAtTimeout() {
	s.backend.On(transactionReceiptMethod, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(s.notFound, context.DeadlineExceeded)

	testTimeout := 100 * time.Millisecond
	started := time.Now()

	_, err := s.client.AwaitReceipt(context.Background(), s.signed.Hash, 10*time.Millisecond, testTimeout)

	var timeoutErr *model.TimeoutError
	s.ErrorAs(err, &timeoutErr)
	s.Equal(testTimeout, timeoutErr.Timeout)
	var rpcErr *model.RPCError
	s.False(errors.As(err, &rpcErr))
	s.WithinDuration(started.Add(testTimeout), time.Now(), 50*time.Millisecond)
	s.backend.AssertNumberOfCalls(s.T(), transactionReceiptMethod, 1)
}

func (s *ClientTestSuite) TestAwaitReceipt_DoesNotRetryTransportErrors() {
	s.backend.On(transactionReceiptMethod, mock.Anything, mock.Anything).
		Return(s.notFound, errors.New("503 Service Unavailable"))

	_, err := s.client.AwaitReceipt(context.Background(), s.signed.Hash, 10*time.Millisecond, time.Minute)

	var rpcErr *model.RPCError
	s.ErrorAs(err, &rpcErr)
	s.Equal("eth_getTransactionReceipt", rpcErr.Method)
	s.backend.AssertNumberOfCalls(s.T(), transactionReceiptMethod, 1)
}

func (s *ClientTestSuite) TestAwaitReceipt_WaitsWhileIndexing() {
	s.backend.On(transactionReceiptMethod, mock.Anything, mock.Anything).
		Return(s.notFound, errors.New("transaction indexing is in progress")).
		Once()
	s.backend.On(transactionReceiptMethod, mock.Anything, mock.Anything).
		Return(s.receipt, nil).
		Once()

	receipt, err := s.client.AwaitReceipt(context.Background(), s.signed.Hash, 10*time.Millisecond, time.Minute)
	s.NoError(err)
	s.Equal(s.signed.Hash, receipt.TxHash)
	s.backend.AssertNumberOfCalls(s.T(), transactionReceiptMethod, 2)
}

func (s *ClientTestSuite) TestAwaitReceipt_StopsOnContextCancel() {
	s.backend.On(transactionReceiptMethod, mock.Anything, mock.Anything).
		Return(s.notFound, ethereum.NotFound)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := s.client.AwaitReceipt(ctx, s.signed.Hash, 10*time.Millisecond, time.Minute)
	s.ErrorIs(err, context.DeadlineExceeded)
}

func (s *ClientTestSuite) TestAwaitReceipt_RejectsNonPositiveBounds() {
	_, err := s.client.AwaitReceipt(context.Background(), s.signed.Hash, 0, time.Minute)
	s.EqualError(err, "chain.AwaitReceipt: poll interval and timeout must be positive")
}

func (s *ClientTestSuite) TestListAccounts() {
	accounts := []common.Address{
		common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
		common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"),
	}
	s.caller.On("CallContext", mock.Anything, mock.Anything, "eth_accounts").
		Return(nil).
		Run(func(args mock.Arguments) {
			*args.Get(1).(*[]common.Address) = accounts
		})

	got, err := s.client.ListAccounts(context.Background())
	s.NoError(err)
	s.Equal([]model.Account{{Address: accounts[0]}, {Address: accounts[1]}}, got)
}

func (s *ClientTestSuite) TestListAccounts_Error() {
	s.caller.On("CallContext", mock.Anything, mock.Anything, "eth_accounts").
		Return(errors.New("method not found"))

	_, err := s.client.ListAccounts(context.Background())
	s.EqualError(err, "chain.ListAccounts: rpc eth_accounts failed: method not found")
}

func (s *ClientTestSuite) TestChainIDAndGasPrice() {
	s.backend.On("ChainID", mock.Anything).Return(big.NewInt(31337), nil)
	s.backend.On("SuggestGasPrice", mock.Anything).Return((*big.Int)(nil), errors.New("timeout"))

	chainID, err := s.client.ChainID(context.Background())
	s.NoError(err)
	s.Equal(big.NewInt(31337), chainID)

	_, err = s.client.SuggestGasPrice(context.Background())
	s.EqualError(err, "chain.SuggestGasPrice: rpc eth_gasPrice failed: timeout")
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}
