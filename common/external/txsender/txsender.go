package txsender

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/alexkalak/presale_sync/common/external/rpcclient"
	"github.com/alexkalak/presale_sync/common/external/txsender/txsendererrors"
	"github.com/alexkalak/presale_sync/common/external/wallet"
	"github.com/alexkalak/presale_sync/common/helpers"
	"github.com/alexkalak/presale_sync/common/models"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
)

const defaultPollInterval = 2 * time.Second

// TxSender submits purchases to the sale contract.
type TxSender interface {
	// SubmitPurchase checks preconditions locally, then signs and sends
	// buyWithReferral with the intent's amount as value.
	SubmitPurchase(ctx context.Context, intent models.PurchaseIntent) (*types.Transaction, error)
	// AwaitConfirmation blocks until the transaction is mined, reverted or ctx is done.
	AwaitConfirmation(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type TxSenderConfig struct {
	SaleContract string
	PollInterval time.Duration
}

func (c *TxSenderConfig) validate() error {
	if !common.IsHexAddress(c.SaleContract) {
		return errors.New("tx sender config SaleContract is not a valid address")
	}
	if c.PollInterval < 0 {
		return errors.New("tx sender config PollInterval cannot be negative")
	}

	return nil
}

type TxSenderDependencies struct {
	Session *wallet.Session
	Backend Backend
	Logger  zerolog.Logger
}

func (d *TxSenderDependencies) validate() error {
	if d.Session == nil {
		return errors.New("tx sender dependencies Session cannot be nil")
	}
	if d.Backend == nil {
		return errors.New("tx sender dependencies Backend cannot be nil")
	}

	return nil
}

type txSender struct {
	saleAddress  common.Address
	pollInterval time.Duration
	saleABI      abi.ABI

	session *wallet.Session
	backend Backend
	logger  zerolog.Logger
}

func New(config TxSenderConfig, dependencies TxSenderDependencies) (TxSender, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if err := dependencies.validate(); err != nil {
		return nil, err
	}

	saleABI, err := abi.JSON(strings.NewReader(rpcclient.SaleABIStr))
	if err != nil {
		return nil, err
	}

	pollInterval := config.PollInterval
	if pollInterval == 0 {
		pollInterval = defaultPollInterval
	}

	return &txSender{
		saleAddress:  common.HexToAddress(config.SaleContract),
		pollInterval: pollInterval,
		saleABI:      saleABI,
		session:      dependencies.Session,
		backend:      dependencies.Backend,
		logger:       dependencies.Logger.With().Str("component", "tx_sender").Logger(),
	}, nil
}

func (s *txSender) SubmitPurchase(ctx context.Context, intent models.PurchaseIntent) (*types.Transaction, error) {
	w, ok := s.session.Current()
	if !ok {
		return nil, txsendererrors.ErrWalletNotConnected
	}

	if !intent.NativeAmount.IsPositive() {
		return nil, txsendererrors.ErrInvalidAmount
	}
	value, err := helpers.ToBaseUnits(intent.NativeAmount, helpers.NATIVE_DECIMALS)
	if err != nil || value.Sign() <= 0 {
		return nil, txsendererrors.ErrInvalidAmount
	}

	sender := w.Address()
	balance, err := s.backend.BalanceAt(ctx, sender, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", txsendererrors.ErrBalanceUnavailable, err)
	}
	if balance.Cmp(value) < 0 {
		return nil, txsendererrors.ErrInsufficientBalance
	}

	referrer := common.HexToAddress(models.NULL_ADDRESS)
	if common.IsHexAddress(intent.Referrer) {
		referrer = intent.ReferrerAddress()
	}
	if referrer == sender {
		referrer = common.HexToAddress(models.NULL_ADDRESS)
	}

	data, err := s.saleABI.Pack("buyWithReferral", referrer)
	if err != nil {
		return nil, fmt.Errorf("pack buyWithReferral: %w", err)
	}

	tx, err := w.SendTransaction(ctx, s.saleAddress, value, data)
	if err != nil {
		s.logger.Warn().Err(err).Str("buyer", sender.Hex()).Msg("purchase submission failed")
		return nil, fmt.Errorf("%w: %v", txsendererrors.ErrSubmissionFailed, err)
	}

	s.logger.Info().
		Str("tx_hash", tx.Hash().Hex()).
		Str("buyer", sender.Hex()).
		Str("referrer", referrer.Hex()).
		Str("value_wei", value.String()).
		Msg("purchase submitted")

	return tx, nil
}

func (s *txSender) AwaitConfirmation(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if tx == nil {
		return nil, errors.New("nil transaction")
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	hash := tx.Hash()
	for {
		receipt, err := s.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("%w: %s", txsendererrors.ErrTransactionReverted, hash.Hex())
			}
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			s.logger.Debug().Err(err).Str("tx_hash", hash.Hex()).Msg("receipt lookup failed, retrying")
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", txsendererrors.ErrConfirmationTimeout, hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
