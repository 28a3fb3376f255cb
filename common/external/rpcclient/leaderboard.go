package rpcclient

import (
	"context"
	"fmt"
	"math/big"

	"github.com/alexkalak/presale_sync/common/external/rpcclient/rpcclienterrors"
	"github.com/alexkalak/presale_sync/common/models"
	"github.com/ethereum/go-ethereum/common"
)

var topReferrersMethods = map[models.LeaderboardDimension]string{
	models.LEADERBOARD_BY_VOLUME: "getTopReferrersByVolume",
	models.LEADERBOARD_BY_BONUS:  "getTopReferrersByBonus",
	models.LEADERBOARD_BY_COUNT:  "getTopReferrersByCount",
}

// GetTopReferrers returns at most count rows in the order the contract
// returned them. The contract owns the ranking; rows are never re-sorted here.
func (c *rpcClient) GetTopReferrers(ctx context.Context, dimension models.LeaderboardDimension, count int) ([]models.LeaderboardRow, error) {
	if count <= 0 {
		return nil, rpcclienterrors.ErrInvalidLeaderboardCount
	}

	method, ok := topReferrersMethods[dimension]
	if !ok {
		return nil, fmt.Errorf("%w: %q", rpcclienterrors.ErrUnknownDimension, dimension)
	}

	out, err := c.call(ctx, c.saleABI, c.saleAddress, method, big.NewInt(int64(count)))
	if err != nil {
		return nil, err
	}
	if len(out) < 2 {
		return nil, fmt.Errorf("%s: %w", method, rpcclienterrors.ErrUnexpectedReturnType)
	}

	addresses, ok := out[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("%s referrers: %w", method, rpcclienterrors.ErrUnexpectedReturnType)
	}
	values, ok := out[1].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s values: %w", method, rpcclienterrors.ErrUnexpectedReturnType)
	}
	if len(addresses) != len(values) {
		return nil, fmt.Errorf("%s: %w", method, rpcclienterrors.ErrMismatchedLeaderboard)
	}

	rowsLen := min(len(addresses), count)
	rows := make([]models.LeaderboardRow, 0, rowsLen)
	for i := range rowsLen {
		rows = append(rows, models.LeaderboardRow{
			Position:    i + 1,
			Address:     addresses[i],
			MetricValue: values[i],
		})
	}

	return rows, nil
}

func (c *rpcClient) GetReferrerRank(ctx context.Context, referrer common.Address) (models.ReferrerRank, error) {
	out, err := c.call(ctx, c.saleABI, c.saleAddress, "getReferrerRank", referrer)
	if err != nil {
		return models.ReferrerRank{}, err
	}

	volumeRank, err := uint64At(out, 0, "volumeRank")
	if err != nil {
		return models.ReferrerRank{}, err
	}
	bonusRank, err := uint64At(out, 1, "bonusRank")
	if err != nil {
		return models.ReferrerRank{}, err
	}
	countRank, err := uint64At(out, 2, "countRank")
	if err != nil {
		return models.ReferrerRank{}, err
	}
	totalReferrers, err := uint64At(out, 3, "totalReferrers")
	if err != nil {
		return models.ReferrerRank{}, err
	}

	return models.ReferrerRank{
		VolumeRank:     volumeRank,
		BonusRank:      bonusRank,
		CountRank:      countRank,
		TotalReferrers: totalReferrers,
	}, nil
}
