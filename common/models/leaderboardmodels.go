package models

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

type LeaderboardDimension string

const (
	LEADERBOARD_BY_VOLUME LeaderboardDimension = "volume"
	LEADERBOARD_BY_BONUS  LeaderboardDimension = "bonus"
	LEADERBOARD_BY_COUNT  LeaderboardDimension = "count"
)

func ParseLeaderboardDimension(s string) (LeaderboardDimension, error) {
	switch LeaderboardDimension(strings.ToLower(strings.TrimSpace(s))) {
	case LEADERBOARD_BY_VOLUME:
		return LEADERBOARD_BY_VOLUME, nil
	case LEADERBOARD_BY_BONUS:
		return LEADERBOARD_BY_BONUS, nil
	case LEADERBOARD_BY_COUNT:
		return LEADERBOARD_BY_COUNT, nil
	}

	return "", fmt.Errorf("unknown leaderboard dimension: %q", s)
}

type LeaderboardRow struct {
	//1-based, as returned by the contract
	Position    int            `json:"position"`
	Address     common.Address `json:"address"`
	MetricValue *big.Int       `json:"metric_value"`
}

type LeaderboardView struct {
	Dimension LeaderboardDimension `json:"dimension"`
	Limit     int                  `json:"limit"`
	Rows      []LeaderboardRow     `json:"rows"`
	Loading   bool                 `json:"loading"`
	UpdatedAt int64                `json:"updated_at"`
}
