package txsender

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	args := m.Called(ctx, account, blockNumber)
	if balance := args.Get(0); balance != nil {
		return balance.(*big.Int), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	args := m.Called(ctx, txHash)
	if receipt := args.Get(0); receipt != nil {
		return receipt.(*types.Receipt), args.Error(1)
	}
	return nil, args.Error(1)
}

// recordingWallet never touches a node; it records what it was asked to send.
type recordingWallet struct {
	mu      sync.Mutex
	address common.Address
	sendErr error
	sent    []*types.Transaction
}

func (w *recordingWallet) Address() common.Address {
	return w.address
}

func (w *recordingWallet) NetworkID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1337), nil
}

func (w *recordingWallet) SendTransaction(ctx context.Context, to common.Address, value *big.Int, data []byte) (*types.Transaction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.sendErr != nil {
		return nil, w.sendErr
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    uint64(len(w.sent)),
		To:       &to,
		Value:    value,
		Gas:      400_000,
		GasPrice: big.NewInt(1),
		Data:     data,
	})
	w.sent = append(w.sent, tx)
	return tx, nil
}

func (w *recordingWallet) sentCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sent)
}
