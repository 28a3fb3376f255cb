package rpcclient

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/alexkalak/presale_sync/common/external/rpcclient/rpcclienterrors"
	"github.com/alexkalak/presale_sync/common/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNewRpcClientValidation(t *testing.T) {
	_, err := NewRpcClient(RpcClientConfig{
		SaleContract:   "not-an-address",
		RouterContract: testRouter.Hex(),
		TokenContract:  testToken.Hex(),
		NativeFiatRate: decimal.NewFromInt(3000),
	}, RpcClientDependencies{Backend: newFakeBackend(t), Logger: zerolog.Nop()})
	require.Error(t, err)

	_, err = NewRpcClient(RpcClientConfig{
		SaleContract:   testSale.Hex(),
		RouterContract: testRouter.Hex(),
		TokenContract:  testToken.Hex(),
		NativeFiatRate: decimal.NewFromInt(3000),
	}, RpcClientDependencies{})
	require.Error(t, err)
}

func TestGetPriceQuoteFromRouter(t *testing.T) {
	backend := newFakeBackend(t)
	backend.returns("WETH", testWETH)
	backend.returns("decimals", uint8(18))
	backend.handle("getAmountsOut", func(args []any) ([]byte, error) {
		amountIn := args[0].(*big.Int)
		path := args[1].([]common.Address)
		require.Equal(t, []common.Address{testWETH, testToken}, path)

		out := new(big.Int).Mul(amountIn, big.NewInt(2500))
		return backend.method("getAmountsOut").Outputs.Pack([]*big.Int{amountIn, out})
	})
	client := newTestClient(t, backend)

	quote := client.GetPriceQuote(t.Context(), decimal.NewFromInt(1))
	require.Equal(t, models.QUOTE_SOURCE_ROUTER, quote.Source)
	require.False(t, quote.IsEstimate())
	require.True(t, quote.TokensPerUnit.Equal(decimal.NewFromInt(2500)), quote.TokensPerUnit.String())

	half := client.GetPriceQuote(t.Context(), decimal.RequireFromString("0.5"))
	require.True(t, half.TokensPerUnit.Equal(decimal.NewFromInt(2500)), half.TokensPerUnit.String())

	require.Equal(t, 1, backend.callCount("decimals"))
}

func TestGetPriceQuoteScalesTokenDecimals(t *testing.T) {
	backend := newFakeBackend(t)
	backend.returns("WETH", testWETH)
	backend.returns("decimals", uint8(9))
	backend.returns("getAmountsOut", []*big.Int{ether(1), big.NewInt(2500_000_000_000)})
	client := newTestClient(t, backend)

	quote := client.GetPriceQuote(t.Context(), decimal.NewFromInt(1))
	require.True(t, quote.TokensPerUnit.Equal(decimal.NewFromInt(2500)), quote.TokensPerUnit.String())
}

func TestGetPriceQuoteFallsBack(t *testing.T) {
	cases := []struct {
		name  string
		setup func(b *fakeBackend)
	}{
		{
			name: "router call reverts",
			setup: func(b *fakeBackend) {
				b.returns("WETH", testWETH)
				b.fails("getAmountsOut", errors.New("execution reverted"))
			},
		},
		{
			name: "weth lookup fails",
			setup: func(b *fakeBackend) {
				b.fails("WETH", errors.New("dial tcp: connection refused"))
			},
		},
		{
			name: "zero output",
			setup: func(b *fakeBackend) {
				b.returns("WETH", testWETH)
				b.returns("getAmountsOut", []*big.Int{ether(1), big.NewInt(0)})
			},
		},
		{
			name: "empty return data",
			setup: func(b *fakeBackend) {
				b.returns("WETH", testWETH)
				b.handle("getAmountsOut", func([]any) ([]byte, error) { return nil, nil })
			},
		},
		{
			name: "short amounts array",
			setup: func(b *fakeBackend) {
				b.returns("WETH", testWETH)
				b.returns("getAmountsOut", []*big.Int{ether(1)})
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := newFakeBackend(t)
			backend.returns("decimals", uint8(18))
			tc.setup(backend)
			client := newTestClient(t, backend)

			quote := client.GetPriceQuote(t.Context(), decimal.NewFromInt(1))
			require.True(t, quote.TokensPerUnit.Equal(decimal.NewFromInt(models.FALLBACK_TOKENS_PER_UNIT)))
			require.Equal(t, models.QUOTE_SOURCE_FALLBACK, quote.Source)
			require.True(t, quote.IsEstimate())
		})
	}
}

func TestGetTokenDecimalsDefaultsWithoutCaching(t *testing.T) {
	backend := newFakeBackend(t)
	backend.fails("decimals", errors.New("timeout"))
	client := newTestClient(t, backend)

	require.Equal(t, int32(18), client.GetTokenDecimals(t.Context()))

	backend.returns("decimals", uint8(6))
	require.Equal(t, int32(6), client.GetTokenDecimals(t.Context()))
	require.Equal(t, int32(6), client.GetTokenDecimals(t.Context()))
	require.Equal(t, 2, backend.callCount("decimals"))
}

func TestGetTokenDecimalsDoesNotSerializeReads(t *testing.T) {
	backend := newFakeBackend(t)
	release := make(chan struct{})
	outputs := backend.method("decimals").Outputs
	backend.handle("decimals", func([]any) ([]byte, error) {
		<-release
		return outputs.Pack(uint8(6))
	})
	client := newTestClient(t, backend)

	results := make(chan int32, 2)
	for range 2 {
		go func() {
			results <- client.GetTokenDecimals(t.Context())
		}()
	}

	// both reads reach the node while the first is still pending
	require.Eventually(t, func() bool {
		return backend.callCount("decimals") == 2
	}, time.Second, 5*time.Millisecond)

	close(release)
	require.Equal(t, int32(6), <-results)
	require.Equal(t, int32(6), <-results)

	require.Equal(t, int32(6), client.GetTokenDecimals(t.Context()))
	require.Equal(t, 2, backend.callCount("decimals"))
}

func TestGetGasEstimate(t *testing.T) {
	backend := newFakeBackend(t)
	backend.gasPrice = big.NewInt(5_000_000_000)
	client := newTestClient(t, backend)

	estimate, err := client.GetGasEstimate(t.Context())
	require.NoError(t, err)
	require.Equal(t, uint64(models.PURCHASE_GAS_UNITS), estimate.GasUnits)
	require.True(t, estimate.NativeCost.Equal(decimal.RequireFromString("0.002")), estimate.NativeCost.String())
	require.True(t, estimate.FiatCost.Equal(decimal.NewFromInt(6)), estimate.FiatCost.String())

	backend.gasErr = errors.New("rpc unavailable")
	_, err = client.GetGasEstimate(t.Context())
	require.Error(t, err)
}

func TestGetUserStats(t *testing.T) {
	backend := newFakeBackend(t)
	backend.returns("getUserStats", ether(2500), ether(1), big.NewInt(1700000000), big.NewInt(1700000500))
	client := newTestClient(t, backend)

	stats, err := client.GetUserStats(t.Context(), common.HexToAddress("0xabc"))
	require.NoError(t, err)
	require.Equal(t, ether(2500), stats.TotalPurchased)
	require.Equal(t, ether(1), stats.TotalSpent)
	require.Equal(t, uint64(1700000000), stats.FirstPurchaseTime)
	require.Equal(t, uint64(1700000500), stats.LastPurchaseTime)
	require.True(t, stats.HasPurchased())
}

func TestGetReferralData(t *testing.T) {
	referrer := common.HexToAddress("0x4444444444444444444444444444444444444444")
	backend := newFakeBackend(t)
	backend.returns("getReferralData", referrer, ether(3), ether(1), big.NewInt(4), big.NewInt(7), big.NewInt(1700000900))
	client := newTestClient(t, backend)

	stats, err := client.GetReferralData(t.Context(), common.HexToAddress("0xabc"))
	require.NoError(t, err)
	require.Equal(t, referrer, stats.Referrer)
	require.Equal(t, ether(3), stats.TotalVolume)
	require.Equal(t, ether(1), stats.TotalBonus)
	require.Equal(t, uint64(4), stats.ReferralCount)
	require.Equal(t, uint64(7), stats.TotalPurchases)
	require.Equal(t, uint64(1700000900), stats.LastActivity)
}

func TestGetAllTimeStatsAndBalances(t *testing.T) {
	backend := newFakeBackend(t)
	backend.returns("getAllTimeStats", ether(40), ether(2), big.NewInt(12), big.NewInt(95), big.NewInt(1690000000))
	backend.returns("getContractBalances", ether(40), ether(1_000_000))
	client := newTestClient(t, backend)

	stats, err := client.GetAllTimeStats(t.Context())
	require.NoError(t, err)
	require.Equal(t, ether(40), stats.Volume)
	require.Equal(t, uint64(12), stats.ReferralCount)
	require.Equal(t, uint64(95), stats.TransactionCount)

	balances, err := client.GetContractBalances(t.Context())
	require.NoError(t, err)
	require.Equal(t, ether(1_000_000), balances.TokenBalance)
}

func TestReadFailurePropagates(t *testing.T) {
	backend := newFakeBackend(t)
	client := newTestClient(t, backend)

	_, err := client.GetAllTimeStats(t.Context())
	require.Error(t, err)

	backend.handle("getUserStats", func([]any) ([]byte, error) { return nil, nil })
	_, err = client.GetUserStats(t.Context(), common.Address{})
	require.ErrorIs(t, err, rpcclienterrors.ErrEmptyReturnData)
}
