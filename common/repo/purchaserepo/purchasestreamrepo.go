package purchaserepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alexkalak/presale_sync/common/models"
	"github.com/alexkalak/presale_sync/common/repo/purchaserepo/purchaserepoerrors"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const (
	PURCHASE_SUBMITTED_EVENT = "PurchaseSubmitted"
	PURCHASE_CONFIRMED_EVENT = "PurchaseConfirmed"
	PURCHASE_FAILED_EVENT    = "PurchaseFailed"
)

type purchaseEvent struct {
	Type        string                `json:"type"`
	Data        models.PurchaseRecord `json:"data"`
	BlockNumber uint64                `json:"block_number"`
	Buyer       string                `json:"buyer"`
	TxHash      string                `json:"tx_hash"`
}

// PurchaseStreamRepo publishes purchase lifecycle events to kafka.
type PurchaseStreamRepo interface {
	PublishPurchase(ctx context.Context, purchase *models.PurchaseRecord) error
	Close() error
}

type PurchaseStreamRepoConfig struct {
	KafkaServer string
	KafkaTopic  string
}

func (c *PurchaseStreamRepoConfig) validate() error {
	if c.KafkaServer == "" {
		return errors.New("purchase stream config KafkaServer cannot be empty")
	}
	if c.KafkaTopic == "" {
		return errors.New("purchase stream config KafkaTopic cannot be empty")
	}

	return nil
}

type PurchaseStreamRepoDependencies struct {
	Logger zerolog.Logger
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type purchaseStreamRepo struct {
	writer messageWriter
	logger zerolog.Logger
}

func NewStreamRepo(config PurchaseStreamRepoConfig, dependencies PurchaseStreamRepoDependencies) (PurchaseStreamRepo, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.KafkaServer),
		Topic:        config.KafkaTopic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 1 * time.Millisecond,
		Async:        false,
	}

	return &purchaseStreamRepo{
		writer: writer,
		logger: dependencies.Logger.With().Str("component", "purchase_stream_repo").Logger(),
	}, nil
}

func (r *purchaseStreamRepo) PublishPurchase(ctx context.Context, purchase *models.PurchaseRecord) error {
	message, err := buildPurchaseMessage(purchase)
	if err != nil {
		return err
	}

	if err := r.writer.WriteMessages(ctx, message); err != nil {
		r.logger.Error().Err(err).Str("tx_hash", purchase.TxHash).Msg("publish purchase event")
		return fmt.Errorf("%w: %v", purchaserepoerrors.ErrUnableToPublish, err)
	}

	return nil
}

func (r *purchaseStreamRepo) Close() error {
	return r.writer.Close()
}

func eventTypeFor(status models.PurchaseStatus) string {
	switch status {
	case models.PURCHASE_STATUS_CONFIRMED:
		return PURCHASE_CONFIRMED_EVENT
	case models.PURCHASE_STATUS_FAILED:
		return PURCHASE_FAILED_EVENT
	default:
		return PURCHASE_SUBMITTED_EVENT
	}
}

// Messages are keyed by buyer so one buyer's events stay ordered on a partition.
func buildPurchaseMessage(purchase *models.PurchaseRecord) (kafka.Message, error) {
	event := purchaseEvent{
		Type:        eventTypeFor(purchase.Status),
		Data:        *purchase,
		BlockNumber: purchase.BlockNumber,
		Buyer:       purchase.Buyer,
		TxHash:      purchase.TxHash,
	}

	eventJSON, err := json.Marshal(&event)
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Key:   []byte(purchase.Buyer),
		Value: eventJSON,
	}, nil
}
