package salesyncservice

import (
	"context"
	"fmt"
	"math/big"

	"github.com/alexkalak/presale_sync/common/external/txsender/txsendererrors"
	"github.com/alexkalak/presale_sync/common/helpers"
	"github.com/alexkalak/presale_sync/common/models"
	"github.com/alexkalak/presale_sync/services/salesyncservice/src/salesyncservice/salesyncerrors"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

// connectBatch is everything loaded on connect. It is applied in one step so
// the purchase action never sees half of it.
type connectBatch struct {
	price         models.PriceQuote
	gas           *models.GasEstimate
	nativeBalance *big.Int
	userStats     *models.UserStats
	referralStats *models.ReferralStats
	rank          *models.ReferrerRank
}

func (s *saleSyncService) Connect(ctx context.Context) (models.SaleState, error) {
	w, ok := s.session.Current()
	if !ok {
		return s.Snapshot(), txsendererrors.ErrWalletNotConnected
	}

	networkID, err := w.NetworkID(ctx)
	if err != nil {
		return s.Snapshot(), fmt.Errorf("read wallet network: %w", err)
	}
	if networkID.Cmp(new(big.Int).SetUint64(uint64(s.config.ChainID))) != 0 {
		return s.Snapshot(), fmt.Errorf("%w: wallet on %s, sale on %d", salesyncerrors.ErrWrongNetwork, networkID, s.config.ChainID)
	}

	address := w.Address()

	s.mu.Lock()
	s.sessionGen++
	gen := s.sessionGen
	s.address = address
	s.clearAddressStateLocked()
	s.state.Address = address.Hex()
	s.state.Connected = true
	s.publishLocked()
	s.mu.Unlock()

	s.logger.Info().Str("address", address.Hex()).Msg("wallet connected, loading sale state")

	batch := s.loadConnectBatch(ctx, address)
	if err := ctx.Err(); err != nil {
		// an abandoned connect must not leave a connected state that never
		// becomes ready
		s.mu.Lock()
		if gen == s.sessionGen {
			s.sessionGen++
			s.address = common.Address{}
			s.clearAddressStateLocked()
			s.publishLocked()
		}
		state := s.state.Clone()
		s.mu.Unlock()

		s.logger.Warn().Err(err).Str("address", address.Hex()).Msg("connect abandoned, wallet state rolled back")
		return state, err
	}

	s.mu.Lock()
	if gen != s.sessionGen {
		s.mu.Unlock()
		return s.Snapshot(), nil
	}
	s.state.Price = batch.price
	if batch.gas != nil {
		s.state.Gas = batch.gas
	}
	s.state.NativeBalance = batch.nativeBalance
	s.state.UserStats = batch.userStats
	s.state.ReferralStats = batch.referralStats
	s.state.ReferrerRank = batch.rank
	s.state.Ready = true
	s.publishLocked()
	state := s.state.Clone()
	s.mu.Unlock()

	s.saveSnapshot(ctx)

	return state, nil
}

// loadConnectBatch never fails: a read that errors leaves its field empty and
// the rest of the batch still lands.
func (s *saleSyncService) loadConnectBatch(ctx context.Context, address common.Address) connectBatch {
	batch := connectBatch{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		batch.price = s.rpcClient.GetPriceQuote(gctx, oneUnit)
		s.metrics.read("price", nil)
		return nil
	})
	g.Go(func() error {
		gas, err := s.rpcClient.GetGasEstimate(gctx)
		s.metrics.read("gas", err)
		if err != nil {
			s.logger.Warn().Err(err).Msg("gas estimate unavailable")
			return nil
		}
		batch.gas = &gas
		return nil
	})
	g.Go(func() error {
		balance, err := s.rpcClient.GetNativeBalance(gctx, address)
		s.metrics.read("native_balance", err)
		if err != nil {
			s.logger.Warn().Err(err).Msg("native balance unavailable")
			return nil
		}
		batch.nativeBalance = balance
		return nil
	})
	g.Go(func() error {
		stats, err := s.rpcClient.GetUserStats(gctx, address)
		s.metrics.read("user_stats", err)
		if err != nil {
			s.logger.Warn().Err(err).Msg("user stats unavailable")
			return nil
		}
		batch.userStats = &stats
		return nil
	})
	g.Go(func() error {
		stats, rank := s.loadReferral(gctx, address)
		batch.referralStats = stats
		batch.rank = rank
		return nil
	})
	_ = g.Wait()

	return batch
}

func (s *saleSyncService) loadReferral(ctx context.Context, address common.Address) (*models.ReferralStats, *models.ReferrerRank) {
	var referralStats *models.ReferralStats
	stats, err := s.rpcClient.GetReferralData(ctx, address)
	s.metrics.read("referral_data", err)
	if err != nil {
		s.logger.Warn().Err(err).Msg("referral data unavailable")
	} else {
		referralStats = &stats
	}

	rank, err := s.rpcClient.GetReferrerRank(ctx, address)
	s.metrics.read("referrer_rank", err)
	if err != nil {
		s.logger.Warn().Err(err).Msg("referrer rank unavailable")
		return referralStats, nil
	}

	if !rank.IsRanked() && referralStats != nil {
		volume := helpers.FromBaseUnits(referralStats.TotalVolume, helpers.NATIVE_DECIMALS)
		rank.EstimatedRank = models.EstimateRank(volume)
	}

	return referralStats, &rank
}

func (s *saleSyncService) Disconnect() models.SaleState {
	s.session.Disconnect()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessionGen++
	s.address = common.Address{}
	s.clearAddressStateLocked()
	s.publishLocked()

	return s.state.Clone()
}

func (s *saleSyncService) clearAddressStateLocked() {
	s.state.Address = ""
	s.state.Connected = false
	s.state.Ready = false
	s.state.NativeBalance = nil
	s.state.UserStats = nil
	s.state.ReferralStats = nil
	s.state.ReferrerRank = nil
}

// currentSession returns the connected address with its generation.
func (s *saleSyncService) currentSession() (common.Address, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.address, s.sessionGen, s.state.Connected
}
