package salesyncservice

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alexkalak/presale_sync/common/core/referral"
	"github.com/alexkalak/presale_sync/common/external/txsender/txsendererrors"
	"github.com/alexkalak/presale_sync/common/helpers"
	"github.com/alexkalak/presale_sync/common/models"
	"github.com/alexkalak/presale_sync/services/salesyncservice/src/salesyncservice/salesyncerrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
)

// Purchase buys with nativeAmount, attributing the ref parameter of rawQuery.
// The referrer is resolved on every call. After a confirmed receipt price,
// user stats and leaderboard are refreshed exactly once.
func (s *saleSyncService) Purchase(ctx context.Context, nativeAmount decimal.Decimal, rawQuery string) (models.PurchaseResult, error) {
	address, gen, err := s.beginPurchase(nativeAmount)
	if err != nil {
		s.metrics.purchases.WithLabelValues("rejected").Inc()
		return models.PurchaseResult{}, err
	}
	defer s.endPurchase()

	intent := models.PurchaseIntent{
		NativeAmount: nativeAmount,
		Referrer:     referral.Resolve(address, rawQuery),
	}

	tx, err := s.txSender.SubmitPurchase(ctx, intent)
	if err != nil {
		if isPrecondition(err) {
			s.metrics.purchases.WithLabelValues("rejected").Inc()
		} else {
			s.metrics.purchases.WithLabelValues("failed").Inc()
		}
		s.logger.Warn().Err(err).Str("buyer", address.Hex()).Msg("purchase not submitted")
		return models.PurchaseResult{}, err
	}

	record := &models.PurchaseRecord{
		TxHash:    tx.Hash().Hex(),
		ChainID:   s.config.ChainID,
		Buyer:     address.Hex(),
		Referrer:  intent.Referrer,
		ValueWei:  tx.Value(),
		Status:    models.PURCHASE_STATUS_PENDING,
		CreatedAt: time.Now().UTC(),
	}
	s.journal(ctx, record, true)

	// the transaction is out; its outcome is tracked even if the caller leaves
	confirmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ConfirmTimeout)
	receipt, err := s.txSender.AwaitConfirmation(confirmCtx, tx)
	cancel()
	if err != nil {
		record.Status = models.PURCHASE_STATUS_FAILED
		record.FailureReason = err.Error()
		record.BlockNumber = blockNumberOf(receipt)
		s.journal(ctx, record, false)

		s.metrics.purchases.WithLabelValues("failed").Inc()
		s.logger.Warn().Err(err).Str("tx_hash", record.TxHash).Msg("purchase not confirmed")
		return models.PurchaseResult{TxHash: record.TxHash, Referrer: intent.Referrer}, err
	}

	record.Status = models.PURCHASE_STATUS_CONFIRMED
	record.BlockNumber = blockNumberOf(receipt)
	s.journal(ctx, record, false)

	s.metrics.purchases.WithLabelValues("confirmed").Inc()
	s.logger.Info().
		Str("tx_hash", record.TxHash).
		Uint64("block", record.BlockNumber).
		Str("referrer", intent.Referrer).
		Msg("purchase confirmed")

	s.refreshAfterPurchase(ctx, address, gen)

	return models.PurchaseResult{
		TxHash:      record.TxHash,
		BlockNumber: record.BlockNumber,
		Referrer:    intent.Referrer,
	}, nil
}

// beginPurchase runs the checks that need no network and marks the purchase
// in flight.
func (s *saleSyncService) beginPurchase(nativeAmount decimal.Decimal) (common.Address, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Connected {
		return common.Address{}, 0, txsendererrors.ErrWalletNotConnected
	}
	if !s.state.Ready {
		return common.Address{}, 0, salesyncerrors.ErrNotReady
	}
	if s.state.PurchaseInFlight {
		return common.Address{}, 0, salesyncerrors.ErrPurchaseInFlight
	}
	if !nativeAmount.IsPositive() {
		return common.Address{}, 0, txsendererrors.ErrInvalidAmount
	}

	value, err := helpers.ToBaseUnits(nativeAmount, helpers.NATIVE_DECIMALS)
	if err != nil || value.Sign() <= 0 {
		return common.Address{}, 0, txsendererrors.ErrInvalidAmount
	}
	if s.state.NativeBalance != nil && s.state.NativeBalance.Cmp(value) < 0 {
		return common.Address{}, 0, txsendererrors.ErrInsufficientBalance
	}

	s.state.PurchaseInFlight = true
	s.publishLocked()

	return s.address, s.sessionGen, nil
}

func (s *saleSyncService) endPurchase() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.PurchaseInFlight = false
	s.publishLocked()
}

func (s *saleSyncService) refreshAfterPurchase(ctx context.Context, address common.Address, gen uint64) {
	ctx, cancel := s.passContext(context.WithoutCancel(ctx))
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		s.refreshPrice(ctx)
	}()
	go func() {
		defer wg.Done()
		stats, err := s.rpcClient.GetUserStats(ctx, address)
		s.metrics.read("user_stats", err)
		if err != nil {
			s.logger.Warn().Err(err).Msg("user stats refresh after purchase failed")
			return
		}
		s.applyForSession(gen, func() { s.state.UserStats = &stats })
	}()
	go func() {
		defer wg.Done()
		balance, err := s.rpcClient.GetNativeBalance(ctx, address)
		s.metrics.read("native_balance", err)
		if err != nil {
			return
		}
		s.applyForSession(gen, func() { s.state.NativeBalance = balance })
	}()
	go func() {
		defer wg.Done()
		_, _ = s.RefreshLeaderboard(ctx)
	}()
	wg.Wait()

	s.saveSnapshot(ctx)
}

func (s *saleSyncService) journal(ctx context.Context, record *models.PurchaseRecord, create bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotWriteTimeout)
	defer cancel()

	if s.purchaseDBRepo != nil {
		var err error
		if create {
			err = s.purchaseDBRepo.CreatePurchase(ctx, record)
		} else {
			record.UpdatedAt = time.Now().UTC()
			err = s.purchaseDBRepo.UpdatePurchaseStatus(ctx, record)
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("tx_hash", record.TxHash).Msg("unable to journal purchase")
		}
	}

	if s.purchaseStream != nil {
		if err := s.purchaseStream.PublishPurchase(ctx, record); err != nil {
			s.logger.Warn().Err(err).Str("tx_hash", record.TxHash).Msg("unable to stream purchase")
		}
	}
}

func isPrecondition(err error) bool {
	return errors.Is(err, txsendererrors.ErrWalletNotConnected) ||
		errors.Is(err, txsendererrors.ErrInvalidAmount) ||
		errors.Is(err, txsendererrors.ErrInsufficientBalance)
}

func blockNumberOf(receipt *types.Receipt) uint64 {
	if receipt == nil || receipt.BlockNumber == nil {
		return 0
	}
	return receipt.BlockNumber.Uint64()
}
