package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// NULL_ADDRESS is attached to purchases that carry no referrer.
const NULL_ADDRESS = "0x0000000000000000000000000000000000000000"

type PurchaseIntent struct {
	NativeAmount decimal.Decimal
	Referrer     string
}

func (p PurchaseIntent) ReferrerAddress() common.Address {
	return common.HexToAddress(p.Referrer)
}

const (
	PURCHASES_TABLE         = "sale_purchases"
	PURCHASE_TX_HASH        = "tx_hash"
	PURCHASE_CHAIN_ID       = "chain_id"
	PURCHASE_BUYER          = "buyer"
	PURCHASE_REFERRER       = "referrer"
	PURCHASE_VALUE_WEI      = "value_wei"
	PURCHASE_STATUS         = "status"
	PURCHASE_BLOCK_NUMBER   = "block_number"
	PURCHASE_FAILURE_REASON = "failure_reason"
	PURCHASE_CREATED_AT     = "created_at"
	PURCHASE_UPDATED_AT     = "updated_at"
)

type PurchaseStatus string

const (
	PURCHASE_STATUS_PENDING   PurchaseStatus = "pending"
	PURCHASE_STATUS_CONFIRMED PurchaseStatus = "confirmed"
	PURCHASE_STATUS_FAILED    PurchaseStatus = "failed"
)

type PurchaseRecord struct {
	TxHash        string         `json:"tx_hash"`
	ChainID       uint           `json:"chain_id"`
	Buyer         string         `json:"buyer"`
	Referrer      string         `json:"referrer"`
	ValueWei      *big.Int       `json:"value_wei"`
	Status        PurchaseStatus `json:"status"`
	BlockNumber   uint64         `json:"block_number"`
	FailureReason string         `json:"failure_reason,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type PurchaseResult struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	Referrer    string `json:"referrer"`
}
