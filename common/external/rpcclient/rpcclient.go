package rpcclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/alexkalak/presale_sync/common/external/rpcclient/rpcclienterrors"
	"github.com/alexkalak/presale_sync/common/helpers"
	"github.com/alexkalak/presale_sync/common/models"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

//go:embed rpcclientassets/saleABI.json
var SaleABIStr string

//go:embed rpcclientassets/routerABI.json
var routerABIStr string

//go:embed rpcclientassets/erc20ABI.json
var erc20ABIStr string

// Backend is the read side of a node connection. *ethclient.Client satisfies it.
type Backend interface {
	ethereum.ContractCaller
	ethereum.GasPricer
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// RpcClient reads sale, router and token state. Every method is safe for
// concurrent use and has no side effects beyond network I/O.
type RpcClient interface {
	GetPriceQuote(ctx context.Context, nativeAmount decimal.Decimal) models.PriceQuote
	GetGasEstimate(ctx context.Context) (models.GasEstimate, error)

	GetUserStats(ctx context.Context, user common.Address) (models.UserStats, error)
	GetReferralData(ctx context.Context, user common.Address) (models.ReferralStats, error)
	GetAllTimeStats(ctx context.Context) (models.GlobalStats, error)
	GetContractBalances(ctx context.Context) (models.ContractBalances, error)

	GetTopReferrers(ctx context.Context, dimension models.LeaderboardDimension, count int) ([]models.LeaderboardRow, error)
	GetReferrerRank(ctx context.Context, referrer common.Address) (models.ReferrerRank, error)

	GetNativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
	GetTokenDecimals(ctx context.Context) int32
}

type RpcClientConfig struct {
	SaleContract   string
	RouterContract string
	TokenContract  string
	NativeFiatRate decimal.Decimal
}

func (c *RpcClientConfig) validate() error {
	if !common.IsHexAddress(c.SaleContract) {
		return errors.New("rpc client config SaleContract is not a valid address")
	}
	if !common.IsHexAddress(c.RouterContract) {
		return errors.New("rpc client config RouterContract is not a valid address")
	}
	if !common.IsHexAddress(c.TokenContract) {
		return errors.New("rpc client config TokenContract is not a valid address")
	}
	if !c.NativeFiatRate.IsPositive() {
		return errors.New("rpc client config NativeFiatRate must be positive")
	}

	return nil
}

type RpcClientDependencies struct {
	Backend Backend
	Logger  zerolog.Logger
}

func (d *RpcClientDependencies) validate() error {
	if d.Backend == nil {
		return errors.New("rpc client dependencies Backend cannot be nil")
	}

	return nil
}

type rpcClient struct {
	config  RpcClientConfig
	backend Backend
	logger  zerolog.Logger

	saleAddress   common.Address
	routerAddress common.Address
	tokenAddress  common.Address

	saleABI   abi.ABI
	routerABI abi.ABI
	erc20ABI  abi.ABI

	decimalsMu     sync.Mutex
	tokenDecimals  int32
	decimalsLoaded bool
}

func NewRpcClient(config RpcClientConfig, dependencies RpcClientDependencies) (RpcClient, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if err := dependencies.validate(); err != nil {
		return nil, err
	}

	saleABI, err := abi.JSON(strings.NewReader(SaleABIStr))
	if err != nil {
		return nil, err
	}
	routerABI, err := abi.JSON(strings.NewReader(routerABIStr))
	if err != nil {
		return nil, err
	}
	erc20ABI, err := abi.JSON(strings.NewReader(erc20ABIStr))
	if err != nil {
		return nil, err
	}

	return &rpcClient{
		config:        config,
		backend:       dependencies.Backend,
		logger:        dependencies.Logger.With().Str("component", "rpc_client").Logger(),
		saleAddress:   common.HexToAddress(config.SaleContract),
		routerAddress: common.HexToAddress(config.RouterContract),
		tokenAddress:  common.HexToAddress(config.TokenContract),
		saleABI:       saleABI,
		routerABI:     routerABI,
		erc20ABI:      erc20ABI,
	}, nil
}

func (c *rpcClient) call(ctx context.Context, contractABI abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	returnBytes, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	if len(returnBytes) == 0 {
		return nil, fmt.Errorf("call %s: %w", method, rpcclienterrors.ErrEmptyReturnData)
	}

	out, err := contractABI.Unpack(method, returnBytes)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}

	return out, nil
}

func (c *rpcClient) GetNativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	return c.backend.BalanceAt(ctx, account, nil)
}

// GetTokenDecimals reads decimals() once and caches it. Until the first
// successful read the chain-native default is returned. The read runs outside
// the lock so concurrent quotes never queue behind it.
func (c *rpcClient) GetTokenDecimals(ctx context.Context) int32 {
	c.decimalsMu.Lock()
	if c.decimalsLoaded {
		defer c.decimalsMu.Unlock()
		return c.tokenDecimals
	}
	c.decimalsMu.Unlock()

	out, err := c.call(ctx, c.erc20ABI, c.tokenAddress, "decimals")
	if err != nil {
		c.logger.Warn().Err(err).Msg("token decimals unavailable, assuming 18")
		return helpers.NATIVE_DECIMALS
	}

	decimals, ok := out[0].(uint8)
	if !ok {
		c.logger.Warn().Msg("token decimals has unexpected type, assuming 18")
		return helpers.NATIVE_DECIMALS
	}

	c.decimalsMu.Lock()
	defer c.decimalsMu.Unlock()
	c.tokenDecimals = int32(decimals)
	c.decimalsLoaded = true

	return c.tokenDecimals
}

func bigIntAt(out []any, index int, field string) (*big.Int, error) {
	if index >= len(out) {
		return nil, fmt.Errorf("%s: %w", field, rpcclienterrors.ErrUnexpectedReturnType)
	}

	value, ok := out[index].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: %w", field, rpcclienterrors.ErrUnexpectedReturnType)
	}

	return value, nil
}

func uint64At(out []any, index int, field string) (uint64, error) {
	value, err := bigIntAt(out, index, field)
	if err != nil {
		return 0, err
	}
	if !value.IsUint64() {
		return 0, fmt.Errorf("%s overflows uint64: %s", field, value)
	}

	return value.Uint64(), nil
}

func addressAt(out []any, index int, field string) (common.Address, error) {
	if index >= len(out) {
		return common.Address{}, fmt.Errorf("%s: %w", field, rpcclienterrors.ErrUnexpectedReturnType)
	}

	value, ok := out[index].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s: %w", field, rpcclienterrors.ErrUnexpectedReturnType)
	}

	return value, nil
}
