package models

import (
	"encoding/json"
	"math/big"
)

// SaleState is the last known projection of on-chain data for one session.
// Nothing in it is guaranteed live.
type SaleState struct {
	ChainID   uint   `json:"chain_id"`
	Address   string `json:"address,omitempty"`
	Connected bool   `json:"connected"`
	//purchase action enabled
	Ready bool `json:"ready"`

	Price         PriceQuote        `json:"price"`
	Gas           *GasEstimate      `json:"gas,omitempty"`
	NativeBalance *big.Int          `json:"native_balance,omitempty"`
	UserStats     *UserStats        `json:"user_stats,omitempty"`
	ReferralStats *ReferralStats    `json:"referral_stats,omitempty"`
	ReferrerRank  *ReferrerRank     `json:"referrer_rank,omitempty"`
	GlobalStats   *GlobalStats      `json:"global_stats,omitempty"`
	Balances      *ContractBalances `json:"contract_balances,omitempty"`
	Leaderboard   LeaderboardView   `json:"leaderboard"`

	PurchaseInFlight bool  `json:"purchase_in_flight"`
	UpdatedAt        int64 `json:"updated_at"`
}

func (s *SaleState) GetJSON() ([]byte, error) {
	return json.Marshal(s)
}

func (s *SaleState) FillFromJSON(data []byte) error {
	return json.Unmarshal(data, s)
}

// Clone copies the leaderboard rows so callers cannot alias the owner's slice.
// Everything else is replaced, never mutated in place.
func (s SaleState) Clone() SaleState {
	if s.Leaderboard.Rows != nil {
		rows := make([]LeaderboardRow, len(s.Leaderboard.Rows))
		copy(rows, s.Leaderboard.Rows)
		s.Leaderboard.Rows = rows
	}

	return s
}

// WithoutAccount keeps only the chain-wide parts of the state.
func (s SaleState) WithoutAccount() SaleState {
	s = s.Clone()
	s.Address = ""
	s.Connected = false
	s.Ready = false
	s.NativeBalance = nil
	s.UserStats = nil
	s.ReferralStats = nil
	s.ReferrerRank = nil
	s.PurchaseInFlight = false

	return s
}
