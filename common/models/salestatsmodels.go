package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type UserStats struct {
	TotalPurchased    *big.Int `json:"total_purchased"`
	TotalSpent        *big.Int `json:"total_spent"`
	FirstPurchaseTime uint64   `json:"first_purchase_time"`
	LastPurchaseTime  uint64   `json:"last_purchase_time"`
}

func (s *UserStats) HasPurchased() bool {
	return s != nil && s.TotalPurchased != nil && s.TotalPurchased.Sign() > 0
}

type ReferralStats struct {
	Referrer       common.Address `json:"referrer"`
	TotalVolume    *big.Int       `json:"total_volume"`
	TotalBonus     *big.Int       `json:"total_bonus"`
	ReferralCount  uint64         `json:"referral_count"`
	TotalPurchases uint64         `json:"total_purchases"`
	LastActivity   uint64         `json:"last_activity"`
}

type GlobalStats struct {
	Volume           *big.Int `json:"volume"`
	Bonuses          *big.Int `json:"bonuses"`
	ReferralCount    uint64   `json:"referral_count"`
	TransactionCount uint64   `json:"transaction_count"`
	CreatedTime      uint64   `json:"created_time"`
}

type ContractBalances struct {
	EthBalance   *big.Int `json:"eth_balance"`
	TokenBalance *big.Int `json:"token_balance"`
}

type ReferrerRank struct {
	VolumeRank     uint64 `json:"volume_rank"`
	BonusRank      uint64 `json:"bonus_rank"`
	CountRank      uint64 `json:"count_rank"`
	TotalReferrers uint64 `json:"total_referrers"`

	//Display only, never authoritative
	EstimatedRank uint64 `json:"estimated_rank,omitempty"`
}

func (r *ReferrerRank) IsRanked() bool {
	return r != nil && (r.VolumeRank > 0 || r.BonusRank > 0 || r.CountRank > 0)
}

// EstimateRank is the floor(1000/volume) placeholder shown when the contract reports no rank.
// volume is in native units. Zero means no estimate.
func EstimateRank(volume decimal.Decimal) uint64 {
	if !volume.IsPositive() {
		return 0
	}

	estimate := decimal.NewFromInt(1000).Div(volume).Floor()
	if estimate.LessThan(decimal.NewFromInt(1)) {
		return 1
	}
	if !estimate.BigInt().IsUint64() {
		return 0
	}

	return estimate.BigInt().Uint64()
}
