package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slimsayari/woocommerce-typesense-search/internal/domain"
	"github.com/slimsayari/woocommerce-typesense-search/internal/gateway"
)

// reindexBatchSize is how many products a full reindex walk moves per batch.
const reindexBatchSize = 200

// CatalogSource provides catalog products for indexing. The content store
// repository implements it.
type CatalogSource interface {
	GetProduct(ctx context.Context, id string) (*domain.Document, error)
	ListForIndex(ctx context.Context, offset, limit int) ([]domain.Document, error)
}

// Indexer mirrors catalog entities into the search engine. The search core
// never calls it; it only consumes the resulting indexed collections.
type Indexer struct {
	gw      gateway.Gateway
	catalog CatalogSource
	logger  *slog.Logger
}

// NewIndexer creates an indexer.
func NewIndexer(gw gateway.Gateway, catalog CatalogSource, logger *slog.Logger) *Indexer {
	return &Indexer{
		gw:      gw,
		catalog: catalog,
		logger:  logger,
	}
}

// UpsertProduct re-reads the product from the content store and writes the
// fresh document to the engine. Reading back instead of trusting the event
// payload keeps the index consistent with the canonical store.
func (i *Indexer) UpsertProduct(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("upsert product: id is required")
	}

	doc, err := i.catalog.GetProduct(ctx, id)
	if err != nil {
		return fmt.Errorf("load product %s for indexing: %w", id, err)
	}

	if err := i.gw.Upsert(ctx, domain.CollectionProducts, doc); err != nil {
		return fmt.Errorf("upsert product %s: %w", id, err)
	}

	i.logger.InfoContext(ctx, "product indexed",
		slog.String("product_id", id),
		slog.String("name", doc.Name),
	)
	return nil
}

// DeleteProduct removes a product document from the engine.
func (i *Indexer) DeleteProduct(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("delete product: id is required")
	}

	if err := i.gw.Delete(ctx, domain.CollectionProducts, id); err != nil {
		return fmt.Errorf("delete product %s from index: %w", id, err)
	}

	i.logger.InfoContext(ctx, "product removed from index",
		slog.String("product_id", id),
	)
	return nil
}

// BulkImport writes a caller-supplied batch of documents to the engine.
// Documents without an ID are skipped.
func (i *Indexer) BulkImport(ctx context.Context, docs []domain.Document) (int, error) {
	valid := make([]domain.Document, 0, len(docs))
	for _, d := range docs {
		if d.ID == "" {
			continue
		}
		valid = append(valid, d)
	}

	if err := i.gw.BulkUpsert(ctx, domain.CollectionProducts, valid); err != nil {
		return 0, fmt.Errorf("bulk import: %w", err)
	}

	i.logger.InfoContext(ctx, "bulk import completed",
		slog.Int("count", len(valid)),
	)
	return len(valid), nil
}

// Reindex walks the whole catalog in batches and upserts every product. It is
// idempotent; running it twice leaves the index in the same state.
func (i *Indexer) Reindex(ctx context.Context) (int, error) {
	total := 0
	for offset := 0; ; offset += reindexBatchSize {
		docs, err := i.catalog.ListForIndex(ctx, offset, reindexBatchSize)
		if err != nil {
			return total, fmt.Errorf("reindex: list products at offset %d: %w", offset, err)
		}
		if len(docs) == 0 {
			break
		}

		if err := i.gw.BulkUpsert(ctx, domain.CollectionProducts, docs); err != nil {
			return total, fmt.Errorf("reindex: upsert batch at offset %d: %w", offset, err)
		}
		total += len(docs)

		if len(docs) < reindexBatchSize {
			break
		}
	}

	i.logger.InfoContext(ctx, "full reindex completed",
		slog.Int("count", total),
	)
	return total, nil
}
