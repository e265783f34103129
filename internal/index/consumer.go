package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	pkgkafka "github.com/slimsayari/woocommerce-typesense-search/pkg/kafka"
)

// Kafka topics for catalog change events consumed by the indexer.
const (
	TopicProductCreated = "catalog.product.created"
	TopicProductUpdated = "catalog.product.updated"
	TopicProductDeleted = "catalog.product.deleted"
)

// Topics returns every topic the indexing consumer subscribes to.
func Topics() []string {
	return []string{TopicProductCreated, TopicProductUpdated, TopicProductDeleted}
}

// productChangedData is the payload of created and updated events. Only the
// ID matters; the indexer re-reads the product from the content store.
type productChangedData struct {
	ID string `json:"id"`
}

// Consumer handles catalog change events and keeps the index in sync.
type Consumer struct {
	indexer *Indexer
	logger  *slog.Logger
}

// NewConsumer creates an event consumer bound to the indexer.
func NewConsumer(indexer *Indexer, logger *slog.Logger) *Consumer {
	return &Consumer{
		indexer: indexer,
		logger:  logger,
	}
}

// Handle processes a Kafka event based on its type.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicProductCreated, TopicProductUpdated:
		return c.handleProductChanged(ctx, event)
	case TopicProductDeleted:
		return c.handleProductDeleted(ctx, event)
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

func (c *Consumer) handleProductChanged(ctx context.Context, event *pkgkafka.Event) error {
	var data productChangedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal %s data: %w", event.EventType, err)
	}

	id := data.ID
	if id == "" {
		id = event.AggregateID
	}

	if err := c.indexer.UpsertProduct(ctx, id); err != nil {
		return fmt.Errorf("index product from %s event: %w", event.EventType, err)
	}
	return nil
}

func (c *Consumer) handleProductDeleted(ctx context.Context, event *pkgkafka.Event) error {
	var data productChangedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal product.deleted data: %w", err)
	}

	id := data.ID
	if id == "" {
		id = event.AggregateID
	}

	if err := c.indexer.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("delete product from deleted event: %w", err)
	}
	return nil
}
