package rpcclient

import (
	"context"
	"fmt"
	"math/big"

	"github.com/alexkalak/presale_sync/common/external/rpcclient/rpcclienterrors"
	"github.com/alexkalak/presale_sync/common/helpers"
	"github.com/alexkalak/presale_sync/common/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// GetPriceQuote asks the router how many sale tokens nativeAmount buys along
// WETH -> token. It never fails: any error or non-positive output yields the
// fallback quote. A non-positive nativeAmount quotes one native unit.
func (c *rpcClient) GetPriceQuote(ctx context.Context, nativeAmount decimal.Decimal) models.PriceQuote {
	if !nativeAmount.IsPositive() {
		nativeAmount = decimal.NewFromInt(1)
	}

	quote, err := c.getRouterQuote(ctx, nativeAmount)
	if err != nil {
		c.logger.Warn().Err(err).Msg("router quote unavailable, using fallback price")
		return models.FallbackPriceQuote()
	}

	return quote
}

func (c *rpcClient) getRouterQuote(ctx context.Context, nativeAmount decimal.Decimal) (models.PriceQuote, error) {
	wethOut, err := c.call(ctx, c.routerABI, c.routerAddress, "WETH")
	if err != nil {
		return models.PriceQuote{}, err
	}
	weth, err := addressAt(wethOut, 0, "WETH")
	if err != nil {
		return models.PriceQuote{}, err
	}

	amountIn, err := helpers.ToBaseUnits(nativeAmount, helpers.NATIVE_DECIMALS)
	if err != nil {
		return models.PriceQuote{}, err
	}
	if amountIn.Sign() <= 0 {
		return models.PriceQuote{}, fmt.Errorf("amount %s rounds to zero wei", nativeAmount)
	}

	path := []common.Address{weth, c.tokenAddress}
	amountsOut, err := c.call(ctx, c.routerABI, c.routerAddress, "getAmountsOut", amountIn, path)
	if err != nil {
		return models.PriceQuote{}, err
	}

	amounts, ok := amountsOut[0].([]*big.Int)
	if !ok || len(amounts) < len(path) {
		return models.PriceQuote{}, fmt.Errorf("getAmountsOut: %w", rpcclienterrors.ErrUnexpectedReturnType)
	}

	tokensOut := amounts[len(amounts)-1]
	if tokensOut == nil || tokensOut.Sign() <= 0 {
		return models.PriceQuote{}, rpcclienterrors.ErrNonPositiveQuote
	}

	tokensPerUnit := helpers.FromBaseUnits(tokensOut, c.GetTokenDecimals(ctx)).Div(nativeAmount)
	if !tokensPerUnit.IsPositive() {
		return models.PriceQuote{}, rpcclienterrors.ErrNonPositiveQuote
	}

	return models.PriceQuote{
		TokensPerUnit: tokensPerUnit,
		Source:        models.QUOTE_SOURCE_ROUTER,
	}, nil
}

// GetGasEstimate is a cost ceiling for one purchase: current gas price times
// a fixed gas budget, converted to fiat at the configured fixed rate.
func (c *rpcClient) GetGasEstimate(ctx context.Context) (models.GasEstimate, error) {
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return models.GasEstimate{}, fmt.Errorf("suggest gas price: %w", err)
	}
	if gasPrice == nil || gasPrice.Sign() < 0 {
		return models.GasEstimate{}, fmt.Errorf("suggest gas price: %w", rpcclienterrors.ErrUnexpectedReturnType)
	}

	costWei := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(models.PURCHASE_GAS_UNITS))
	nativeCost := helpers.FromBaseUnits(costWei, helpers.NATIVE_DECIMALS)

	return models.GasEstimate{
		GasPrice:   gasPrice,
		GasUnits:   models.PURCHASE_GAS_UNITS,
		NativeCost: nativeCost,
		FiatCost:   nativeCost.Mul(c.config.NativeFiatRate).Round(2),
	}, nil
}
