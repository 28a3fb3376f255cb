package wallet

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Wallet is the signing capability the sale client depends on. Key custody and
// signing policy belong to the implementation, not to this module.
type Wallet interface {
	Address() common.Address
	NetworkID(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, to common.Address, value *big.Int, data []byte) (*types.Transaction, error)
}

// Session holds the currently connected wallet, if any.
type Session struct {
	mu     sync.RWMutex
	wallet Wallet
}

func NewSession() *Session {
	return &Session{}
}

func (s *Session) Connect(w Wallet) common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wallet = w
	return w.Address()
}

func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wallet = nil
}

func (s *Session) Current() (Wallet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wallet, s.wallet != nil
}
