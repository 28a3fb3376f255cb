package purchaserepo

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/alexkalak/presale_sync/common/models"
	"github.com/alexkalak/presale_sync/common/periphery/pgdatabase"
	"github.com/alexkalak/presale_sync/common/repo/purchaserepo/purchaserepoerrors"
	"github.com/rs/zerolog"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PurchaseDBRepo journals submitted purchases and their outcome.
type PurchaseDBRepo interface {
	CreatePurchase(ctx context.Context, purchase *models.PurchaseRecord) error
	UpdatePurchaseStatus(ctx context.Context, purchase *models.PurchaseRecord) error
	GetPurchasesByBuyer(ctx context.Context, chainID uint, buyer string, limit uint64) ([]models.PurchaseRecord, error)
}

type PurchaseDBRepoDependencies struct {
	Database *pgdatabase.PgDatabase
	Logger   zerolog.Logger
}

func (d *PurchaseDBRepoDependencies) validate() error {
	if d.Database == nil {
		return errors.New("purchase repo dependencies database cannot be nil")
	}

	return nil
}

type purchaseDBRepo struct {
	pgDatabase *pgdatabase.PgDatabase
	logger     zerolog.Logger
}

func NewDBRepo(dependencies PurchaseDBRepoDependencies) (PurchaseDBRepo, error) {
	if err := dependencies.validate(); err != nil {
		return nil, err
	}

	return &purchaseDBRepo{
		pgDatabase: dependencies.Database,
		logger:     dependencies.Logger.With().Str("component", "purchase_db_repo").Logger(),
	}, nil
}

func (r *purchaseDBRepo) CreatePurchase(ctx context.Context, purchase *models.PurchaseRecord) error {
	db, err := r.pgDatabase.GetDB()
	if err != nil {
		return err
	}

	query := insertPurchaseQuery(purchase)
	if _, err = query.RunWith(db).ExecContext(ctx); err != nil {
		r.logger.Error().Err(err).Str("tx_hash", purchase.TxHash).Msg("insert purchase")
		return purchaserepoerrors.ErrUnableToCreatePurchase
	}

	return nil
}

func (r *purchaseDBRepo) UpdatePurchaseStatus(ctx context.Context, purchase *models.PurchaseRecord) error {
	db, err := r.pgDatabase.GetDB()
	if err != nil {
		return err
	}

	res, err := updatePurchaseStatusQuery(purchase).RunWith(db).ExecContext(ctx)
	if err != nil {
		r.logger.Error().Err(err).Str("tx_hash", purchase.TxHash).Msg("update purchase status")
		return purchaserepoerrors.ErrUnableToUpdatePurchase
	}

	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return purchaserepoerrors.ErrPurchaseNotFound
	}

	return nil
}

func (r *purchaseDBRepo) GetPurchasesByBuyer(ctx context.Context, chainID uint, buyer string, limit uint64) ([]models.PurchaseRecord, error) {
	db, err := r.pgDatabase.GetDB()
	if err != nil {
		return nil, err
	}

	rows, err := purchasesByBuyerQuery(chainID, buyer, limit).RunWith(db).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := []models.PurchaseRecord{}
	for rows.Next() {
		var purchase models.PurchaseRecord
		valueWeiStr := ""
		err := rows.Scan(
			&purchase.TxHash,
			&purchase.ChainID,
			&purchase.Buyer,
			&purchase.Referrer,
			&valueWeiStr,
			&purchase.Status,
			&purchase.BlockNumber,
			&purchase.FailureReason,
			&purchase.CreatedAt,
			&purchase.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		valueWei, ok := new(big.Int).SetString(valueWeiStr, 10)
		if !ok {
			return nil, errors.New("unable to parse purchase value")
		}
		purchase.ValueWei = valueWei

		purchases = append(purchases, purchase)
	}

	return purchases, rows.Err()
}

func insertPurchaseQuery(purchase *models.PurchaseRecord) sq.InsertBuilder {
	valueWei := "0"
	if purchase.ValueWei != nil {
		valueWei = purchase.ValueWei.String()
	}

	now := purchase.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	return psql.
		Insert(models.PURCHASES_TABLE).
		Columns(
			models.PURCHASE_TX_HASH,
			models.PURCHASE_CHAIN_ID,
			models.PURCHASE_BUYER,
			models.PURCHASE_REFERRER,
			models.PURCHASE_VALUE_WEI,
			models.PURCHASE_STATUS,
			models.PURCHASE_BLOCK_NUMBER,
			models.PURCHASE_FAILURE_REASON,
			models.PURCHASE_CREATED_AT,
			models.PURCHASE_UPDATED_AT,
		).Values(
		strings.ToLower(purchase.TxHash),
		purchase.ChainID,
		strings.ToLower(purchase.Buyer),
		strings.ToLower(purchase.Referrer),
		valueWei,
		string(purchase.Status),
		purchase.BlockNumber,
		purchase.FailureReason,
		now,
		now,
	).
		Suffix("ON CONFLICT (" + models.PURCHASE_TX_HASH + ", " + models.PURCHASE_CHAIN_ID + ") DO NOTHING")
}

func updatePurchaseStatusQuery(purchase *models.PurchaseRecord) sq.UpdateBuilder {
	updatedAt := purchase.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	return psql.
		Update(models.PURCHASES_TABLE).
		Set(models.PURCHASE_STATUS, string(purchase.Status)).
		Set(models.PURCHASE_BLOCK_NUMBER, purchase.BlockNumber).
		Set(models.PURCHASE_FAILURE_REASON, purchase.FailureReason).
		Set(models.PURCHASE_UPDATED_AT, updatedAt).
		Where(sq.Eq{
			models.PURCHASE_TX_HASH:  strings.ToLower(purchase.TxHash),
			models.PURCHASE_CHAIN_ID: purchase.ChainID,
		})
}

func purchasesByBuyerQuery(chainID uint, buyer string, limit uint64) sq.SelectBuilder {
	query := psql.
		Select(
			models.PURCHASE_TX_HASH,
			models.PURCHASE_CHAIN_ID,
			models.PURCHASE_BUYER,
			models.PURCHASE_REFERRER,
			models.PURCHASE_VALUE_WEI,
			models.PURCHASE_STATUS,
			models.PURCHASE_BLOCK_NUMBER,
			models.PURCHASE_FAILURE_REASON,
			models.PURCHASE_CREATED_AT,
			models.PURCHASE_UPDATED_AT,
		).
		From(models.PURCHASES_TABLE).
		Where(sq.Eq{
			models.PURCHASE_CHAIN_ID: chainID,
			models.PURCHASE_BUYER:    strings.ToLower(buyer),
		}).
		OrderBy(models.PURCHASE_CREATED_AT + " DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	return query
}
