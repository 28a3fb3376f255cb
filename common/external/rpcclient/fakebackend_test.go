package rpcclient

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type callHandler func(args []any) ([]byte, error)

// fakeBackend answers eth_call by decoding the selector against the known
// ABIs and packing canned outputs, so the client's real Pack/Unpack path runs.
type fakeBackend struct {
	mu       sync.Mutex
	abis     []abi.ABI
	handlers map[string]callHandler
	calls    map[string]int

	gasPrice *big.Int
	gasErr   error
	balances map[common.Address]*big.Int
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	abis := make([]abi.ABI, 0, 3)
	for _, s := range []string{SaleABIStr, routerABIStr, erc20ABIStr} {
		parsed, err := abi.JSON(strings.NewReader(s))
		require.NoError(t, err)
		abis = append(abis, parsed)
	}

	return &fakeBackend{
		abis:     abis,
		handlers: map[string]callHandler{},
		calls:    map[string]int{},
		balances: map[common.Address]*big.Int{},
	}
}

func (b *fakeBackend) method(name string) abi.Method {
	for _, a := range b.abis {
		if m, ok := a.Methods[name]; ok {
			return m
		}
	}
	panic("unknown method " + name)
}

func (b *fakeBackend) returns(name string, values ...any) {
	method := b.method(name)
	b.handle(name, func([]any) ([]byte, error) {
		return method.Outputs.Pack(values...)
	})
}

func (b *fakeBackend) fails(name string, err error) {
	b.handle(name, func([]any) ([]byte, error) {
		return nil, err
	})
}

func (b *fakeBackend) handle(name string, h callHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = h
}

func (b *fakeBackend) callCount(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[name]
}

func (b *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if len(msg.Data) < 4 {
		return nil, errors.New("short call data")
	}

	for _, a := range b.abis {
		method, err := a.MethodById(msg.Data[:4])
		if err != nil {
			continue
		}
		args, err := method.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		b.calls[method.Name]++
		h, ok := b.handlers[method.Name]
		b.mu.Unlock()

		if !ok {
			return nil, fmt.Errorf("execution reverted: no handler for %s", method.Name)
		}
		return h(args)
	}

	return nil, errors.New("unknown selector")
}

func (b *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if b.gasErr != nil {
		return nil, b.gasErr
	}
	return b.gasPrice, nil
}

func (b *fakeBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if balance, ok := b.balances[account]; ok {
		return balance, nil
	}
	return new(big.Int), nil
}

var (
	testSale   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testRouter = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testToken  = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testWETH   = common.HexToAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2")
)

func newTestClient(t *testing.T, backend *fakeBackend) *rpcClient {
	t.Helper()

	client, err := NewRpcClient(RpcClientConfig{
		SaleContract:   testSale.Hex(),
		RouterContract: testRouter.Hex(),
		TokenContract:  testToken.Hex(),
		NativeFiatRate: decimal.NewFromInt(3000),
	}, RpcClientDependencies{
		Backend: backend,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)

	return client.(*rpcClient)
}

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}
