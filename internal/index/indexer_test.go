package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slimsayari/woocommerce-typesense-search/internal/domain"
	"github.com/slimsayari/woocommerce-typesense-search/internal/gateway/memory"
)

// fakeCatalog serves a fixed product list as the content store would.
type fakeCatalog struct {
	products []domain.Document
	getErr   error
	listErr  error
}

func (f *fakeCatalog) GetProduct(_ context.Context, id string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for i := range f.products {
		if f.products[i].ID == id {
			return &f.products[i], nil
		}
	}
	return nil, errors.New("product not found")
}

func (f *fakeCatalog) ListForIndex(_ context.Context, offset, limit int) ([]domain.Document, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if offset >= len(f.products) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.products) {
		end = len(f.products)
	}
	return f.products[offset:end], nil
}

func newTestIndexer(catalog *fakeCatalog) (*Indexer, *memory.Gateway) {
	g := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewIndexer(g, catalog, logger), g
}

func generateCatalog(n int) []domain.Document {
	docs := make([]domain.Document, 0, n)
	for i := 0; i < n; i++ {
		docs = append(docs, domain.Document{ID: fmt.Sprintf("p%04d", i), Name: "Produit"})
	}
	return docs
}

func TestUpsertProduct_ReReadsFromCatalog(t *testing.T) {
	catalog := &fakeCatalog{products: []domain.Document{{ID: "1", Name: "Basket fraîche"}}}
	idx, g := newTestIndexer(catalog)

	require.NoError(t, idx.UpsertProduct(context.Background(), "1"))

	assert.Equal(t, 1, g.Count(domain.CollectionProducts))
}

func TestUpsertProduct_EmptyIDIsRejected(t *testing.T) {
	idx, _ := newTestIndexer(&fakeCatalog{})

	assert.Error(t, idx.UpsertProduct(context.Background(), ""))
}

func TestUpsertProduct_CatalogFailureSurfaces(t *testing.T) {
	idx, _ := newTestIndexer(&fakeCatalog{getErr: errors.New("database down")})

	err := idx.UpsertProduct(context.Background(), "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load product")
}

func TestDeleteProduct(t *testing.T) {
	catalog := &fakeCatalog{products: []domain.Document{{ID: "1", Name: "Basket"}}}
	idx, g := newTestIndexer(catalog)
	require.NoError(t, idx.UpsertProduct(context.Background(), "1"))

	require.NoError(t, idx.DeleteProduct(context.Background(), "1"))

	assert.Zero(t, g.Count(domain.CollectionProducts))
}

func TestBulkImport_SkipsDocumentsWithoutID(t *testing.T) {
	idx, g := newTestIndexer(&fakeCatalog{})

	imported, err := idx.BulkImport(context.Background(), []domain.Document{
		{ID: "1", Name: "Basket"},
		{Name: "Sans identifiant"},
		{ID: "2", Name: "Sac"},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, imported)
	assert.Equal(t, 2, g.Count(domain.CollectionProducts))
}

func TestReindex_WalksWholeCatalogInBatches(t *testing.T) {
	catalog := &fakeCatalog{products: generateCatalog(450)}
	idx, g := newTestIndexer(catalog)

	total, err := idx.Reindex(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 450, total)
	assert.Equal(t, 450, g.Count(domain.CollectionProducts))
}

func TestReindex_IsIdempotent(t *testing.T) {
	catalog := &fakeCatalog{products: generateCatalog(30)}
	idx, g := newTestIndexer(catalog)

	_, err := idx.Reindex(context.Background())
	require.NoError(t, err)
	again, err := idx.Reindex(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 30, again)
	assert.Equal(t, 30, g.Count(domain.CollectionProducts))
}

func TestReindex_ListFailureSurfaces(t *testing.T) {
	idx, _ := newTestIndexer(&fakeCatalog{listErr: errors.New("database down")})

	_, err := idx.Reindex(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reindex")
}
