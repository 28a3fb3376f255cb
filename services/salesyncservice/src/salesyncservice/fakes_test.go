package salesyncservice

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/alexkalak/presale_sync/common/external/wallet"
	"github.com/alexkalak/presale_sync/common/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testChainID = 1337

var (
	buyerAddress    = common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	referrerAddress = common.HexToAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	errRPC          = errors.New("rpc unavailable")
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func rowsOf(addresses ...string) []models.LeaderboardRow {
	rows := make([]models.LeaderboardRow, len(addresses))
	for i, address := range addresses {
		rows[i] = models.LeaderboardRow{
			Position:    i + 1,
			Address:     common.HexToAddress(address),
			MetricValue: big.NewInt(int64(100 - i)),
		}
	}
	return rows
}

type fakeReader struct {
	mu    sync.Mutex
	calls map[string]int

	price        models.PriceQuote
	gasErr       error
	balance      *big.Int
	balanceErr   error
	userStats    models.UserStats
	userStatsErr error
	allTimeErr   error
	rows         map[models.LeaderboardDimension][]models.LeaderboardRow

	// optional, run outside the lock before the call returns
	userStatsHook    func()
	topReferrersHook func(dimension models.LeaderboardDimension, count int)
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		calls: map[string]int{},
		price: models.PriceQuote{
			TokensPerUnit: decimal.NewFromInt(2500),
			Source:        models.QUOTE_SOURCE_ROUTER,
		},
		balance: ether(5),
		userStats: models.UserStats{
			TotalPurchased: ether(100),
			TotalSpent:     ether(1),
		},
		rows: map[models.LeaderboardDimension][]models.LeaderboardRow{
			models.LEADERBOARD_BY_VOLUME: rowsOf("0x01", "0x02", "0x03"),
			models.LEADERBOARD_BY_BONUS:  rowsOf("0x0b"),
			models.LEADERBOARD_BY_COUNT:  rowsOf("0x0c", "0x0a"),
		},
	}
}

func (f *fakeReader) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeReader) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeReader) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = map[string]int{}
}

func (f *fakeReader) set(apply func(f *fakeReader)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	apply(f)
}

func (f *fakeReader) GetPriceQuote(ctx context.Context, nativeAmount decimal.Decimal) models.PriceQuote {
	f.record("price")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.price
}

func (f *fakeReader) GetGasEstimate(ctx context.Context) (models.GasEstimate, error) {
	f.record("gas")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gasErr != nil {
		return models.GasEstimate{}, f.gasErr
	}
	return models.GasEstimate{
		GasPrice:   big.NewInt(5e9),
		GasUnits:   models.PURCHASE_GAS_UNITS,
		NativeCost: decimal.RequireFromString("0.002"),
		FiatCost:   decimal.NewFromInt(6),
	}, nil
}

func (f *fakeReader) GetUserStats(ctx context.Context, user common.Address) (models.UserStats, error) {
	f.record("user_stats")
	f.mu.Lock()
	hook := f.userStatsHook
	stats, err := f.userStats, f.userStatsErr
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return stats, err
}

func (f *fakeReader) GetReferralData(ctx context.Context, user common.Address) (models.ReferralStats, error) {
	f.record("referral_data")
	return models.ReferralStats{TotalVolume: ether(2), TotalBonus: big.NewInt(0)}, nil
}

func (f *fakeReader) GetAllTimeStats(ctx context.Context) (models.GlobalStats, error) {
	f.record("all_time_stats")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.allTimeErr != nil {
		return models.GlobalStats{}, f.allTimeErr
	}
	return models.GlobalStats{Volume: ether(10), Bonuses: ether(1), TransactionCount: 12}, nil
}

func (f *fakeReader) GetContractBalances(ctx context.Context) (models.ContractBalances, error) {
	f.record("contract_balances")
	return models.ContractBalances{EthBalance: ether(10), TokenBalance: ether(1_000_000)}, nil
}

func (f *fakeReader) GetTopReferrers(ctx context.Context, dimension models.LeaderboardDimension, count int) ([]models.LeaderboardRow, error) {
	f.record("top_referrers")
	f.mu.Lock()
	hook := f.topReferrersHook
	rows := f.rows[dimension]
	f.mu.Unlock()

	if hook != nil {
		hook(dimension, count)
	}
	if len(rows) > count {
		rows = rows[:count]
	}
	return rows, nil
}

func (f *fakeReader) GetReferrerRank(ctx context.Context, referrer common.Address) (models.ReferrerRank, error) {
	f.record("referrer_rank")
	return models.ReferrerRank{TotalReferrers: 40}, nil
}

func (f *fakeReader) GetNativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	f.record("native_balance")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, f.balanceErr
}

func (f *fakeReader) GetTokenDecimals(ctx context.Context) int32 {
	return 18
}

type fakeSender struct {
	mu        sync.Mutex
	intents   []models.PurchaseIntent
	submitErr error
	awaitErr  error
	receipt   *types.Receipt

	// optional, runs once the transaction is handed out
	submitHook func()
}

func (f *fakeSender) SubmitPurchase(ctx context.Context, intent models.PurchaseIntent) (*types.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.intents = append(f.intents, intent)
	if f.submitErr != nil {
		return nil, f.submitErr
	}

	if f.submitHook != nil {
		f.submitHook()
	}

	to := common.HexToAddress("0x1111111111111111111111111111111111111111")
	return types.NewTx(&types.LegacyTx{
		Nonce:    uint64(len(f.intents)),
		To:       &to,
		Value:    big.NewInt(1),
		Gas:      models.PURCHASE_GAS_UNITS,
		GasPrice: big.NewInt(1),
	}), nil
}

func (f *fakeSender) AwaitConfirmation(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.awaitErr != nil {
		return f.receipt, f.awaitErr
	}
	if f.receipt != nil {
		return f.receipt, nil
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(42), TxHash: tx.Hash()}, nil
}

func (f *fakeSender) submitted() []models.PurchaseIntent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PurchaseIntent(nil), f.intents...)
}

type fakeWallet struct {
	address   common.Address
	networkID int64
}

func (w *fakeWallet) Address() common.Address {
	return w.address
}

func (w *fakeWallet) NetworkID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(w.networkID), nil
}

func (w *fakeWallet) SendTransaction(ctx context.Context, to common.Address, value *big.Int, data []byte) (*types.Transaction, error) {
	return nil, errors.New("not used")
}

type testEnv struct {
	svc     *saleSyncService
	reader  *fakeReader
	sender  *fakeSender
	session *wallet.Session
}

func newTestEnv(t *testing.T, configure ...func(*SaleSyncServiceConfig, *SaleSyncServiceDependencies)) *testEnv {
	t.Helper()

	env := &testEnv{
		reader:  newFakeReader(),
		sender:  &fakeSender{},
		session: wallet.NewSession(),
	}

	config := SaleSyncServiceConfig{
		ChainID:        testChainID,
		SyncInterval:   time.Hour,
		PerSyncTimeout: time.Second,
		ConfirmTimeout: time.Second,
	}
	dependencies := SaleSyncServiceDependencies{
		RpcClient:  env.reader,
		TxSender:   env.sender,
		Session:    env.session,
		Logger:     zerolog.Nop(),
		Registerer: prometheus.NewRegistry(),
	}
	for _, c := range configure {
		c(&config, &dependencies)
	}

	svc, err := New(config, dependencies)
	require.NoError(t, err)
	env.svc = svc.(*saleSyncService)
	t.Cleanup(env.svc.Stop)

	return env
}

func (e *testEnv) connect(t *testing.T) models.SaleState {
	t.Helper()

	e.session.Connect(&fakeWallet{address: buyerAddress, networkID: testChainID})
	state, err := e.svc.Connect(t.Context())
	require.NoError(t, err)
	return state
}
