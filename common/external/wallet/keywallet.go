package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
)

// Backend is what a key wallet needs from the node. *ethclient.Client satisfies it.
type Backend interface {
	ethereum.ChainIDReader
	ethereum.GasPricer
	ethereum.GasEstimator
	ethereum.TransactionSender
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

type KeyWalletConfig struct {
	PrivateKeyHex string
}

func (c *KeyWalletConfig) validate() error {
	if c.PrivateKeyHex == "" {
		return errors.New("key wallet config PrivateKeyHex cannot be empty")
	}

	return nil
}

type KeyWalletDependencies struct {
	Backend Backend
	Logger  zerolog.Logger
}

func (d *KeyWalletDependencies) validate() error {
	if d.Backend == nil {
		return errors.New("key wallet dependencies Backend cannot be nil")
	}

	return nil
}

type keyWallet struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	backend    Backend
	logger     zerolog.Logger

	//serializes nonce assignment
	sendMu sync.Mutex
}

// NewKeyWallet signs locally with a raw secp256k1 key and broadcasts through backend.
func NewKeyWallet(config KeyWalletConfig, dependencies KeyWalletDependencies) (Wallet, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if err := dependencies.validate(); err != nil {
		return nil, err
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(config.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	return &keyWallet{
		privateKey: privateKey,
		address:    address,
		backend:    dependencies.Backend,
		logger:     dependencies.Logger.With().Str("component", "key_wallet").Str("address", address.Hex()).Logger(),
	}, nil
}

func (w *keyWallet) Address() common.Address {
	return w.address
}

func (w *keyWallet) NetworkID(ctx context.Context) (*big.Int, error) {
	return w.backend.ChainID(ctx)
}

func (w *keyWallet) SendTransaction(ctx context.Context, to common.Address, value *big.Int, data []byte) (*types.Transaction, error) {
	w.sendMu.Lock()
	defer w.sendMu.Unlock()

	chainID, err := w.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}

	nonce, err := w.backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return nil, fmt.Errorf("get pending nonce: %w", err)
	}

	gasPrice, err := w.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	gasLimit, err := w.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  w.address,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), w.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	if err := w.backend.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}

	w.logger.Info().
		Str("tx_hash", signedTx.Hash().Hex()).
		Uint64("nonce", nonce).
		Str("value", value.String()).
		Msg("transaction sent")

	return signedTx, nil
}
