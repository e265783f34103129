package listing

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slimsayari/woocommerce-typesense-search/internal/domain"
	"github.com/slimsayari/woocommerce-typesense-search/internal/facet"
	"github.com/slimsayari/woocommerce-typesense-search/internal/filter"
	"github.com/slimsayari/woocommerce-typesense-search/internal/gateway"
	"github.com/slimsayari/woocommerce-typesense-search/internal/gateway/memory"
	"github.com/slimsayari/woocommerce-typesense-search/internal/gateway/typesense"
	"github.com/slimsayari/woocommerce-typesense-search/internal/query"
	"github.com/slimsayari/woocommerce-typesense-search/internal/search"
)

// downGateway simulates an unreachable engine for every operation.
type downGateway struct{}

func (downGateway) Search(context.Context, *domain.CompiledQuery, string) (*gateway.SearchResponse, error) {
	return nil, gateway.ErrEngineUnavailable
}

func (downGateway) MultiSearch(context.Context, []gateway.SearchRequest) ([]gateway.MultiSearchResult, error) {
	return nil, gateway.ErrEngineUnavailable
}

func (downGateway) Upsert(context.Context, string, *domain.Document) error {
	return gateway.ErrEngineUnavailable
}

func (downGateway) Delete(context.Context, string, string) error {
	return gateway.ErrEngineUnavailable
}

func (downGateway) BulkUpsert(context.Context, string, []domain.Document) error {
	return gateway.ErrEngineUnavailable
}

func (downGateway) Ping(context.Context) error { return gateway.ErrEngineUnavailable }

// staticFallback serves a fixed page from the content store.
type staticFallback struct {
	page *domain.ResultPage
}

func (s *staticFallback) ListProducts(context.Context, *domain.FilterState) (*domain.ResultPage, error) {
	return s.page, nil
}

func newTestOverrider(t *testing.T, gw gateway.Gateway, fallback search.FallbackLister) *Overrider {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	builder := filter.NewBuilder(nil, nil, logger)
	compiler := query.NewCompiler(&typesense.Serializer{})
	reconciler := facet.NewReconciler(logger)
	svc := search.NewService(gw, builder, compiler, reconciler, nil, fallback, nil, nil, logger)
	return NewOverrider(svc)
}

func seededGateway(t *testing.T) *memory.Gateway {
	t.Helper()
	g := memory.New()
	docs := []domain.Document{
		{ID: "1", Name: "Basket en cuir", Price: 75, Categories: []string{"Chaussures"}, StockStatus: "instock"},
		{ID: "2", Name: "Basket running", Price: 45, Categories: []string{"Chaussures"}, StockStatus: "instock"},
		{ID: "3", Name: "Ceinture", Price: 25, Categories: []string{"Accessoires"}, StockStatus: "instock"},
	}
	require.NoError(t, g.BulkUpsert(context.Background(), domain.CollectionProducts, docs))
	return g
}

func TestApply_ReturnsOrderedPostIDs(t *testing.T) {
	overrider := newTestOverrider(t, seededGateway(t), nil)

	override, err := overrider.Apply(context.Background(), url.Values{
		VarSearch: {"basket"},
		VarSort:   {"price_asc"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1"}, override.PostIDs)
	assert.Equal(t, 2, override.Total)
	assert.Equal(t, 1, override.MaxPages)
	assert.False(t, override.Fallback)
}

func TestApply_CategoryFilterNarrowsListing(t *testing.T) {
	overrider := newTestOverrider(t, seededGateway(t), nil)

	override, err := overrider.Apply(context.Background(), url.Values{
		VarCategories: {"Accessoires"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, override.PostIDs)
}

func TestApply_EngineDownUsesFallbackListing(t *testing.T) {
	fallback := &staticFallback{page: &domain.ResultPage{
		DocumentRefs: []domain.DocumentRef{{ID: "9", Rank: 1}},
		TotalFound:   1,
		MaxPages:     1,
		Fallback:     true,
	}}
	overrider := newTestOverrider(t, downGateway{}, fallback)

	override, err := overrider.Apply(context.Background(), url.Values{VarSearch: {"basket"}})

	require.NoError(t, err)
	assert.Equal(t, []string{"9"}, override.PostIDs)
	assert.True(t, override.Fallback)
}

func TestApply_EngineDownWithoutFallbackIsAnError(t *testing.T) {
	overrider := newTestOverrider(t, downGateway{}, nil)

	_, err := overrider.Apply(context.Background(), url.Values{VarSearch: {"basket"}})

	assert.ErrorIs(t, err, gateway.ErrEngineUnavailable)
}

func TestStateFromQueryVars_PopulatesAllFields(t *testing.T) {
	state := StateFromQueryVars(url.Values{
		VarSearch:     {"basket"},
		VarCategories: {"chaussures,sacs"},
		VarMinPrice:   {"20"},
		VarMaxPrice:   {"80"},
		VarInStock:    {"1"},
		VarOnSale:     {"true"},
		VarMinRating:  {"4"},
		VarSort:       {"rating_desc"},
		VarPaged:      {"3"},
		VarPerPage:    {"24"},
		VarAttributes: {"Couleur:rouge|bleu"},
	})

	assert.Equal(t, "basket", state.FreeText)
	assert.Equal(t, []string{"chaussures", "sacs"}, state.Categories)
	require.NotNil(t, state.PriceMin)
	assert.Equal(t, 20.0, *state.PriceMin)
	require.NotNil(t, state.PriceMax)
	assert.Equal(t, 80.0, *state.PriceMax)
	assert.True(t, state.InStockOnly)
	assert.True(t, state.OnSaleOnly)
	require.NotNil(t, state.MinRating)
	assert.Equal(t, 4.0, *state.MinRating)
	assert.Equal(t, domain.SortRatingDesc, state.Sort)
	assert.Equal(t, 3, state.Page)
	assert.Equal(t, 24, state.PerPage)
	assert.Equal(t, map[string][]string{"Couleur": {"rouge", "bleu"}}, state.AttributeSelections)
}
