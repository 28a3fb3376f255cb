package salesyncservice

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alexkalak/presale_sync/common/core/referral"
	"github.com/alexkalak/presale_sync/common/external/rpcclient"
	"github.com/alexkalak/presale_sync/common/external/txsender"
	"github.com/alexkalak/presale_sync/common/external/txsender/txsendererrors"
	"github.com/alexkalak/presale_sync/common/external/wallet"
	"github.com/alexkalak/presale_sync/common/models"
	"github.com/alexkalak/presale_sync/common/repo/purchaserepo"
	"github.com/alexkalak/presale_sync/common/repo/snapshotrepo"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultSyncInterval    = 30 * time.Second
	defaultPerSyncTimeout  = 20 * time.Second
	defaultConfirmTimeout  = 5 * time.Minute
	defaultLeaderboardSize = 10
	snapshotWriteTimeout   = 2 * time.Second
)

var oneUnit = decimal.NewFromInt(1)

// SaleSyncService owns the sale state shown to a user: it loads it on connect,
// refreshes it on a timer and after purchases, and runs purchases.
type SaleSyncService interface {
	Start(ctx context.Context) error
	Stop()
	ForceRefresh()

	Connect(ctx context.Context) (models.SaleState, error)
	Disconnect() models.SaleState

	Purchase(ctx context.Context, nativeAmount decimal.Decimal, rawQuery string) (models.PurchaseResult, error)

	SelectDimension(ctx context.Context, dimension models.LeaderboardDimension) (models.LeaderboardView, error)
	ExpandLeaderboard(ctx context.Context, count int) (models.LeaderboardView, error)
	RefreshLeaderboard(ctx context.Context) (models.LeaderboardView, error)

	Snapshot() models.SaleState
	Subscribe() (<-chan models.SaleState, func())
	ReferralLink(origin string) (string, error)
}

type SaleSyncServiceConfig struct {
	ChainID             uint
	SyncInterval        time.Duration
	PerSyncTimeout      time.Duration
	ConfirmTimeout      time.Duration
	LeaderboardPageSize int
}

func (c *SaleSyncServiceConfig) validate() error {
	if c.ChainID == 0 {
		return errors.New("SaleSyncServiceConfig.ChainID cannot be empty")
	}
	if c.SyncInterval < 0 || c.PerSyncTimeout < 0 || c.ConfirmTimeout < 0 {
		return errors.New("SaleSyncServiceConfig durations cannot be negative")
	}
	if c.LeaderboardPageSize < 0 {
		return errors.New("SaleSyncServiceConfig.LeaderboardPageSize cannot be negative")
	}

	return nil
}

type SaleSyncServiceDependencies struct {
	RpcClient rpcclient.RpcClient
	TxSender  txsender.TxSender
	Session   *wallet.Session
	Logger    zerolog.Logger

	// optional
	PurchaseDBRepo     purchaserepo.PurchaseDBRepo
	PurchaseStreamRepo purchaserepo.PurchaseStreamRepo
	SnapshotCacheRepo  snapshotrepo.SnapshotCacheRepo
	Registerer         prometheus.Registerer
}

func (d *SaleSyncServiceDependencies) validate() error {
	if d.RpcClient == nil {
		return errors.New("SaleSyncServiceDependencies.RpcClient cannot be nil")
	}
	if d.TxSender == nil {
		return errors.New("SaleSyncServiceDependencies.TxSender cannot be nil")
	}
	if d.Session == nil {
		return errors.New("SaleSyncServiceDependencies.Session cannot be nil")
	}

	return nil
}

type saleSyncService struct {
	config SaleSyncServiceConfig

	rpcClient      rpcclient.RpcClient
	txSender       txsender.TxSender
	session        *wallet.Session
	purchaseDBRepo purchaserepo.PurchaseDBRepo
	purchaseStream purchaserepo.PurchaseStreamRepo
	snapshotRepo   snapshotrepo.SnapshotCacheRepo
	metrics        *syncMetrics
	logger         zerolog.Logger

	mu    sync.Mutex
	state models.SaleState
	// bumped on every connect/disconnect; per-address results from an older
	// session are dropped
	sessionGen     uint64
	address        common.Address
	leaderboardSeq uint64
	rowsByDim      map[models.LeaderboardDimension][]models.LeaderboardRow

	subscribers map[int]chan models.SaleState
	nextSubID   int

	loopMu  sync.Mutex
	running bool
	stopCh  chan struct{}
	forceCh chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(config SaleSyncServiceConfig, dependencies SaleSyncServiceDependencies) (SaleSyncService, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if err := dependencies.validate(); err != nil {
		return nil, err
	}

	if config.SyncInterval == 0 {
		config.SyncInterval = defaultSyncInterval
	}
	if config.PerSyncTimeout == 0 {
		config.PerSyncTimeout = defaultPerSyncTimeout
	}
	if config.ConfirmTimeout == 0 {
		config.ConfirmTimeout = defaultConfirmTimeout
	}
	if config.LeaderboardPageSize == 0 {
		config.LeaderboardPageSize = defaultLeaderboardSize
	}

	metrics, err := newSyncMetrics(dependencies.Registerer)
	if err != nil {
		return nil, err
	}

	return &saleSyncService{
		config:         config,
		rpcClient:      dependencies.RpcClient,
		txSender:       dependencies.TxSender,
		session:        dependencies.Session,
		purchaseDBRepo: dependencies.PurchaseDBRepo,
		purchaseStream: dependencies.PurchaseStreamRepo,
		snapshotRepo:   dependencies.SnapshotCacheRepo,
		metrics:        metrics,
		logger:         dependencies.Logger.With().Str("component", "sale_sync_service").Logger(),
		state: models.SaleState{
			ChainID: config.ChainID,
			Price:   models.FallbackPriceQuote(),
			Leaderboard: models.LeaderboardView{
				Dimension: models.LEADERBOARD_BY_VOLUME,
				Limit:     config.LeaderboardPageSize,
			},
		},
		rowsByDim:   map[models.LeaderboardDimension][]models.LeaderboardRow{},
		subscribers: map[int]chan models.SaleState{},
	}, nil
}

func (s *saleSyncService) Snapshot() models.SaleState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.Clone()
}

// Subscribe returns a channel holding at most the latest state. Slow readers
// skip intermediate states, they never block the writer.
func (s *saleSyncService) Subscribe() (<-chan models.SaleState, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++

	ch := make(chan models.SaleState, 1)
	ch <- s.state.Clone()
	s.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(sub)
			}
		})
	}
}

func (s *saleSyncService) ReferralLink(origin string) (string, error) {
	s.mu.Lock()
	address, connected := s.address, s.state.Connected
	s.mu.Unlock()

	if !connected {
		return "", txsendererrors.ErrWalletNotConnected
	}

	return referral.Link(origin, address)
}

// publishLocked stamps the state and fans it out. Callers hold s.mu.
func (s *saleSyncService) publishLocked() {
	s.state.UpdatedAt = time.Now().Unix()

	for _, ch := range s.subscribers {
		snapshot := s.state.Clone()
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

func (s *saleSyncService) saveSnapshot(ctx context.Context) {
	if s.snapshotRepo == nil {
		return
	}

	state := s.Snapshot()
	state.PurchaseInFlight = false

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotWriteTimeout)
	defer cancel()

	// the global entry is written on every save, it is what a restart seeds from
	if err := s.snapshotRepo.SetSnapshot(ctx, state.WithoutAccount()); err != nil {
		s.logger.Warn().Err(err).Msg("unable to cache sale state")
		return
	}
	if state.Address == "" {
		return
	}
	if err := s.snapshotRepo.SetSnapshot(ctx, state); err != nil {
		s.logger.Warn().Err(err).Str("address", state.Address).Msg("unable to cache account sale state")
	}
}

// seedFromSnapshot shows the last cached state until the first pass lands.
func (s *saleSyncService) seedFromSnapshot(ctx context.Context) {
	if s.snapshotRepo == nil {
		return
	}

	cached, err := s.snapshotRepo.GetSnapshot(ctx, s.config.ChainID, "")
	if err != nil {
		if !errors.Is(err, snapshotrepo.ErrSnapshotNotFound) {
			s.logger.Warn().Err(err).Msg("unable to load cached sale state")
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.GlobalStats == nil {
		s.state.GlobalStats = cached.GlobalStats
	}
	if s.state.Balances == nil {
		s.state.Balances = cached.Balances
	}
	if s.state.Price.IsEstimate() && cached.Price.TokensPerUnit.IsPositive() {
		s.state.Price = cached.Price
	}
	if s.state.Gas == nil {
		s.state.Gas = cached.Gas
	}
	if len(cached.Leaderboard.Rows) > 0 {
		dim := cached.Leaderboard.Dimension
		if _, ok := s.rowsByDim[dim]; !ok {
			s.rowsByDim[dim] = cached.Leaderboard.Rows
		}
		if s.state.Leaderboard.Dimension == dim && len(s.state.Leaderboard.Rows) == 0 {
			s.state.Leaderboard.Rows = cached.Leaderboard.Rows
		}
	}
	s.publishLocked()
}
