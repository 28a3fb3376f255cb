package models

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FALLBACK_TOKENS_PER_UNIT is used whenever the router quote is unavailable or non-positive.
const FALLBACK_TOKENS_PER_UNIT = 1000

const PURCHASE_GAS_UNITS = 400_000

type QuoteSource string

const (
	QUOTE_SOURCE_ROUTER   QuoteSource = "router"
	QUOTE_SOURCE_FALLBACK QuoteSource = "fallback"
)

type PriceQuote struct {
	TokensPerUnit decimal.Decimal `json:"tokens_per_unit"`
	Source        QuoteSource     `json:"source"`
}

func FallbackPriceQuote() PriceQuote {
	return PriceQuote{
		TokensPerUnit: decimal.NewFromInt(FALLBACK_TOKENS_PER_UNIT),
		Source:        QUOTE_SOURCE_FALLBACK,
	}
}

// IsEstimate reports whether the quote is the fallback rate rather than a live router quote.
func (q PriceQuote) IsEstimate() bool {
	return q.Source != QUOTE_SOURCE_ROUTER
}

// TokensFor returns how many sale tokens nativeAmount buys at this quote.
func (q PriceQuote) TokensFor(nativeAmount decimal.Decimal) decimal.Decimal {
	return nativeAmount.Mul(q.TokensPerUnit)
}

type GasEstimate struct {
	GasPrice   *big.Int        `json:"gas_price"`
	GasUnits   uint64          `json:"gas_units"`
	NativeCost decimal.Decimal `json:"native_cost"`
	FiatCost   decimal.Decimal `json:"fiat_cost"`
}
