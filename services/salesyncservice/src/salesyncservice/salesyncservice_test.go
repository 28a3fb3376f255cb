package salesyncservice

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/alexkalak/presale_sync/common/external/txsender/txsendererrors"
	"github.com/alexkalak/presale_sync/common/external/wallet"
	"github.com/alexkalak/presale_sync/common/models"
	"github.com/alexkalak/presale_sync/services/salesyncservice/src/salesyncservice/salesyncerrors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNewValidates(t *testing.T) {
	reader := newFakeReader()

	_, err := New(SaleSyncServiceConfig{}, SaleSyncServiceDependencies{})
	require.Error(t, err)

	_, err = New(SaleSyncServiceConfig{ChainID: 1}, SaleSyncServiceDependencies{RpcClient: reader})
	require.Error(t, err)

	svc, err := New(SaleSyncServiceConfig{ChainID: 1}, SaleSyncServiceDependencies{
		RpcClient: reader,
		TxSender:  &fakeSender{},
		Session:   wallet.NewSession(),
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)

	state := svc.Snapshot()
	require.True(t, state.Price.IsEstimate())
	require.True(t, state.Price.TokensPerUnit.Equal(decimal.NewFromInt(models.FALLBACK_TOKENS_PER_UNIT)))
	require.Equal(t, models.LEADERBOARD_BY_VOLUME, state.Leaderboard.Dimension)
	require.Equal(t, defaultLeaderboardSize, state.Leaderboard.Limit)
	require.False(t, state.Ready)
}

func TestConnectRequiresWallet(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Connect(t.Context())
	require.ErrorIs(t, err, txsendererrors.ErrWalletNotConnected)
	require.Zero(t, env.reader.count("price"))
}

func TestConnectRejectsWrongNetwork(t *testing.T) {
	env := newTestEnv(t)
	env.session.Connect(&fakeWallet{address: buyerAddress, networkID: 56})

	state, err := env.svc.Connect(t.Context())
	require.ErrorIs(t, err, salesyncerrors.ErrWrongNetwork)
	require.False(t, state.Connected)
}

func TestConnectAppliesBatchAtOnce(t *testing.T) {
	env := newTestEnv(t)

	var midBatch models.SaleState
	env.reader.set(func(f *fakeReader) {
		f.userStatsHook = func() {
			// give the other reads of the batch time to resolve
			time.Sleep(30 * time.Millisecond)
			midBatch = env.svc.Snapshot()
		}
	})

	state := env.connect(t)

	require.True(t, midBatch.Connected)
	require.False(t, midBatch.Ready)
	require.Nil(t, midBatch.NativeBalance)
	require.Nil(t, midBatch.Gas)
	require.True(t, midBatch.Price.IsEstimate())

	require.True(t, state.Ready)
	require.Equal(t, buyerAddress.Hex(), state.Address)
	require.Equal(t, models.QUOTE_SOURCE_ROUTER, state.Price.Source)
	require.Equal(t, ether(5), state.NativeBalance)
	require.NotNil(t, state.Gas)
	require.Equal(t, ether(100), state.UserStats.TotalPurchased)
	require.NotNil(t, state.ReferralStats)
	require.False(t, state.ReferrerRank.IsRanked())
	// 2 native units of referred volume
	require.Equal(t, uint64(500), state.ReferrerRank.EstimatedRank)
}

func TestConnectReadFailuresStillEnablePurchase(t *testing.T) {
	env := newTestEnv(t)
	env.reader.set(func(f *fakeReader) {
		f.gasErr = errRPC
		f.userStatsErr = errRPC
		f.balanceErr = errRPC
		f.balance = nil
	})

	state := env.connect(t)
	require.True(t, state.Ready)
	require.Nil(t, state.Gas)
	require.Nil(t, state.UserStats)
	require.Nil(t, state.NativeBalance)
}

func TestAbandonedConnectRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(t.Context())
	env.reader.set(func(f *fakeReader) { f.userStatsHook = cancel })
	env.session.Connect(&fakeWallet{address: buyerAddress, networkID: testChainID})

	state, err := env.svc.Connect(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, state.Connected)
	require.False(t, state.Ready)
	require.Empty(t, state.Address)
	require.Nil(t, state.UserStats)

	_, err = env.svc.Purchase(t.Context(), decimal.NewFromInt(1), "")
	require.ErrorIs(t, err, txsendererrors.ErrWalletNotConnected)
	require.Empty(t, env.sender.submitted())

	env.reader.set(func(f *fakeReader) { f.userStatsHook = nil })
	retried, err := env.svc.Connect(t.Context())
	require.NoError(t, err)
	require.True(t, retried.Ready)

	_, err = env.svc.Purchase(t.Context(), decimal.NewFromInt(1), "")
	require.NoError(t, err)
}

func TestDisconnectClearsAddressState(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)

	state := env.svc.Disconnect()
	require.False(t, state.Connected)
	require.False(t, state.Ready)
	require.Empty(t, state.Address)
	require.Nil(t, state.UserStats)
	require.Nil(t, state.NativeBalance)
	require.Equal(t, models.QUOTE_SOURCE_ROUTER, state.Price.Source)

	_, ok := env.session.Current()
	require.False(t, ok)
}

func TestReferralLink(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.ReferralLink("https://sale.example.com")
	require.ErrorIs(t, err, txsendererrors.ErrWalletNotConnected)

	env.connect(t)
	link, err := env.svc.ReferralLink("https://sale.example.com")
	require.NoError(t, err)
	require.Equal(t, "https://sale.example.com?ref="+buyerAddress.Hex(), link)
}

func TestSubscribeDeliversLatestState(t *testing.T) {
	env := newTestEnv(t)

	ch, cancel := env.svc.Subscribe()
	initial := <-ch
	require.False(t, initial.Connected)

	env.connect(t)

	latest := <-ch
	require.True(t, latest.Ready)

	cancel()
	cancel()
	_, open := <-ch
	require.False(t, open)
}

func TestSnapshotIsACopy(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.RefreshLeaderboard(t.Context())
	require.NoError(t, err)

	snapshot := env.svc.Snapshot()
	snapshot.Leaderboard.Rows[0].MetricValue = big.NewInt(-1)

	require.Equal(t, big.NewInt(100), env.svc.Snapshot().Leaderboard.Rows[0].MetricValue)
}
