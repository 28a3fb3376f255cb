package rpcclient

import (
	"context"

	"github.com/alexkalak/presale_sync/common/models"
	"github.com/ethereum/go-ethereum/common"
)

func (c *rpcClient) GetUserStats(ctx context.Context, user common.Address) (models.UserStats, error) {
	out, err := c.call(ctx, c.saleABI, c.saleAddress, "getUserStats", user)
	if err != nil {
		return models.UserStats{}, err
	}

	totalPurchased, err := bigIntAt(out, 0, "totalPurchased")
	if err != nil {
		return models.UserStats{}, err
	}
	totalSpent, err := bigIntAt(out, 1, "totalSpent")
	if err != nil {
		return models.UserStats{}, err
	}
	firstPurchaseTime, err := uint64At(out, 2, "firstPurchaseTime")
	if err != nil {
		return models.UserStats{}, err
	}
	lastPurchaseTime, err := uint64At(out, 3, "lastPurchaseTime")
	if err != nil {
		return models.UserStats{}, err
	}

	return models.UserStats{
		TotalPurchased:    totalPurchased,
		TotalSpent:        totalSpent,
		FirstPurchaseTime: firstPurchaseTime,
		LastPurchaseTime:  lastPurchaseTime,
	}, nil
}

func (c *rpcClient) GetReferralData(ctx context.Context, user common.Address) (models.ReferralStats, error) {
	out, err := c.call(ctx, c.saleABI, c.saleAddress, "getReferralData", user)
	if err != nil {
		return models.ReferralStats{}, err
	}

	referrer, err := addressAt(out, 0, "referrer")
	if err != nil {
		return models.ReferralStats{}, err
	}
	totalVolume, err := bigIntAt(out, 1, "totalVolume")
	if err != nil {
		return models.ReferralStats{}, err
	}
	totalBonus, err := bigIntAt(out, 2, "totalBonus")
	if err != nil {
		return models.ReferralStats{}, err
	}
	referralCount, err := uint64At(out, 3, "referralCount")
	if err != nil {
		return models.ReferralStats{}, err
	}
	totalPurchases, err := uint64At(out, 4, "totalPurchases")
	if err != nil {
		return models.ReferralStats{}, err
	}
	lastActivity, err := uint64At(out, 5, "lastActivity")
	if err != nil {
		return models.ReferralStats{}, err
	}

	return models.ReferralStats{
		Referrer:       referrer,
		TotalVolume:    totalVolume,
		TotalBonus:     totalBonus,
		ReferralCount:  referralCount,
		TotalPurchases: totalPurchases,
		LastActivity:   lastActivity,
	}, nil
}

func (c *rpcClient) GetAllTimeStats(ctx context.Context) (models.GlobalStats, error) {
	out, err := c.call(ctx, c.saleABI, c.saleAddress, "getAllTimeStats")
	if err != nil {
		return models.GlobalStats{}, err
	}

	volume, err := bigIntAt(out, 0, "volume")
	if err != nil {
		return models.GlobalStats{}, err
	}
	bonuses, err := bigIntAt(out, 1, "bonuses")
	if err != nil {
		return models.GlobalStats{}, err
	}
	referrals, err := uint64At(out, 2, "referrals")
	if err != nil {
		return models.GlobalStats{}, err
	}
	transactions, err := uint64At(out, 3, "transactions")
	if err != nil {
		return models.GlobalStats{}, err
	}
	createdTime, err := uint64At(out, 4, "createdTime")
	if err != nil {
		return models.GlobalStats{}, err
	}

	return models.GlobalStats{
		Volume:           volume,
		Bonuses:          bonuses,
		ReferralCount:    referrals,
		TransactionCount: transactions,
		CreatedTime:      createdTime,
	}, nil
}

func (c *rpcClient) GetContractBalances(ctx context.Context) (models.ContractBalances, error) {
	out, err := c.call(ctx, c.saleABI, c.saleAddress, "getContractBalances")
	if err != nil {
		return models.ContractBalances{}, err
	}

	ethBalance, err := bigIntAt(out, 0, "ethBalance")
	if err != nil {
		return models.ContractBalances{}, err
	}
	tokenBalance, err := bigIntAt(out, 1, "tokenBalance")
	if err != nil {
		return models.ContractBalances{}, err
	}

	return models.ContractBalances{
		EthBalance:   ethBalance,
		TokenBalance: tokenBalance,
	}, nil
}
