package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
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
)

// downGateway simulates an unreachable engine.
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

// flakyPostsGateway answers product legs but fails the posts leg.
type flakyPostsGateway struct {
	*memory.Gateway
}

func (g *flakyPostsGateway) MultiSearch(ctx context.Context, reqs []gateway.SearchRequest) ([]gateway.MultiSearchResult, error) {
	results := make([]gateway.MultiSearchResult, 0, len(reqs))
	for _, r := range reqs {
		if r.Collection == domain.CollectionPosts {
			results = append(results, gateway.MultiSearchResult{Err: errors.New("posts collection missing")})
			continue
		}
		resp, err := g.Gateway.Search(ctx, r.Query, r.Collection)
		results = append(results, gateway.MultiSearchResult{Response: resp, Err: err})
	}
	return results, nil
}

// stubFallback records calls and returns a canned listing.
type stubFallback struct {
	calls int
	page  *domain.ResultPage
	err   error
}

func (s *stubFallback) ListProducts(_ context.Context, _ *domain.FilterState) (*domain.ResultPage, error) {
	s.calls++
	return s.page, s.err
}

// mapCache is an in-memory QueryCache for asserting cache interaction.
type mapCache struct {
	entries map[string]*domain.ResultPage
}

func (c *mapCache) key(q *domain.CompiledQuery, collection string) string {
	return collection + "|" + q.QueryText + "|" + q.FilterExpression
}

func (c *mapCache) Get(_ context.Context, q *domain.CompiledQuery, collection string) (*domain.ResultPage, bool) {
	page, ok := c.entries[c.key(q, collection)]
	return page, ok
}

func (c *mapCache) Set(_ context.Context, q *domain.CompiledQuery, collection string, page *domain.ResultPage) {
	c.entries[c.key(q, collection)] = page
}

// stubExtractor returns fixed text for both modalities.
type stubExtractor struct {
	text string
	err  error
}

func (s *stubExtractor) DescribeImage(context.Context, string) (string, error) { return s.text, s.err }
func (s *stubExtractor) ExtractIntent(context.Context, string) (string, error) { return s.text, s.err }

type serviceOptions struct {
	gw       gateway.Gateway
	fallback FallbackLister
	cache    QueryCache
	vision   QueryExtractor
}

func newTestService(opts serviceOptions) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	builder := filter.NewBuilder(nil, nil, logger)
	compiler := query.NewCompiler(&typesense.Serializer{})
	reconciler := facet.NewReconciler(logger)
	return NewService(opts.gw, builder, compiler, reconciler, nil, opts.fallback, opts.cache, opts.vision, logger)
}

func seededGateway(t *testing.T) *memory.Gateway {
	t.Helper()
	g := memory.New()
	docs := []domain.Document{
		{ID: "1", Name: "Basket en cuir", Price: 75, Categories: []string{"Chaussures"}, StockStatus: "instock"},
		{ID: "2", Name: "Basket running", Price: 45, Categories: []string{"Chaussures"}, StockStatus: "instock"},
		{ID: "3", Name: "Basket montante", Price: 95, Categories: []string{"Chaussures"}, StockStatus: "instock"},
		{ID: "4", Name: "Ceinture", Price: 25, Categories: []string{"Accessoires"}, StockStatus: "instock"},
	}
	require.NoError(t, g.BulkUpsert(context.Background(), domain.CollectionProducts, docs))
	return g
}

func TestBuildQuery_EquivalentStatesCompileIdentically(t *testing.T) {
	svc := newTestService(serviceOptions{gw: memory.New()})

	minP, maxP := 20.0, 80.0
	state := &domain.FilterState{
		Categories: []string{"Chaussures"},
		PriceMin:   &minP,
		PriceMax:   &maxP,
		Sort:       domain.SortPriceAsc,
		Page:       2,
		PerPage:    16,
	}

	first, _ := svc.BuildQuery(context.Background(), state)
	second, _ := svc.BuildQuery(context.Background(), state)

	require.Equal(t, first, second)
	assert.Equal(t, "price:>=20 && price:<=80 && categories:=[`Chaussures`]", first.FilterExpression)
}

func TestSearch_HappyPath(t *testing.T) {
	svc := newTestService(serviceOptions{gw: seededGateway(t)})

	page, err := svc.Search(context.Background(), &domain.FilterState{
		FreeText: "basket",
		Sort:     domain.SortPriceAsc,
		Page:     1,
		PerPage:  16,
	})

	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalFound)
	assert.Equal(t, 1, page.MaxPages)
	assert.False(t, page.Fallback)
	require.Len(t, page.Documents, 3)
	assert.Equal(t, "2", page.Documents[0].ID)
	assert.Equal(t, "basket", page.AppliedFilters.FreeText)
}

func TestSearch_FacetsAreReconciled(t *testing.T) {
	svc := newTestService(serviceOptions{gw: seededGateway(t)})

	page, err := svc.Search(context.Background(), &domain.FilterState{Page: 1, PerPage: 16})

	require.NoError(t, err)
	cats, ok := page.Facets["categories"]
	require.True(t, ok)
	require.Len(t, cats.Counts, 2)
	assert.Equal(t, "Chaussures", cats.Counts[0].Value)
	assert.Equal(t, 3, cats.Counts[0].Count)
}

func TestSearch_EngineDownFallsBackToContentStore(t *testing.T) {
	fallback := &stubFallback{page: &domain.ResultPage{
		Documents:  []domain.Document{{ID: "1"}},
		TotalFound: 1,
		MaxPages:   1,
		Page:       1,
		PerPage:    16,
	}}
	svc := newTestService(serviceOptions{gw: downGateway{}, fallback: fallback})

	page, err := svc.Search(context.Background(), &domain.FilterState{Page: 1, PerPage: 16})

	require.NoError(t, err, "engine downtime with a fallback wired is not an error")
	assert.True(t, page.Fallback)
	assert.Equal(t, 1, fallback.calls)
	assert.Equal(t, 1, page.TotalFound)
}

func TestSearch_EngineDownWithoutFallbackReturnsTypedError(t *testing.T) {
	svc := newTestService(serviceOptions{gw: downGateway{}})

	_, err := svc.Search(context.Background(), &domain.FilterState{Page: 1, PerPage: 16})

	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrEngineUnavailable)
}

func TestSearch_FallbackFailureSurfaces(t *testing.T) {
	fallback := &stubFallback{err: errors.New("database down")}
	svc := newTestService(serviceOptions{gw: downGateway{}, fallback: fallback})

	_, err := svc.Search(context.Background(), &domain.FilterState{Page: 1, PerPage: 16})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "fallback listing")
}

func TestSearch_CacheHitSkipsEngine(t *testing.T) {
	cache := &mapCache{entries: make(map[string]*domain.ResultPage)}
	svc := newTestService(serviceOptions{gw: seededGateway(t), cache: cache})

	state := &domain.FilterState{FreeText: "basket", Page: 1, PerPage: 16}

	first, err := svc.Search(context.Background(), state)
	require.NoError(t, err)
	require.Len(t, cache.entries, 1)

	// Second identical search hits the cache even if the engine dies.
	svc.gw = downGateway{}
	second, err := svc.Search(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, first.TotalFound, second.TotalFound)
}

func TestAutocomplete_ReturnsBothLegs(t *testing.T) {
	g := seededGateway(t)
	require.NoError(t, g.Upsert(context.Background(), domain.CollectionPosts, &domain.Document{
		ID: "p1", Name: "Entretenir ses baskets",
	}))
	svc := newTestService(serviceOptions{gw: g})

	got, err := svc.Autocomplete(context.Background(), "basket", 5)

	require.NoError(t, err)
	assert.Len(t, got.Products, 3)
	assert.Len(t, got.Posts, 1)
}

func TestAutocomplete_FailedLegYieldsEmptyLegNotError(t *testing.T) {
	svc := newTestService(serviceOptions{gw: &flakyPostsGateway{Gateway: seededGateway(t)}})

	got, err := svc.Autocomplete(context.Background(), "basket", 5)

	require.NoError(t, err)
	assert.Len(t, got.Products, 3)
	assert.Empty(t, got.Posts)
}

func TestAutocomplete_EngineDownIsTypedError(t *testing.T) {
	svc := newTestService(serviceOptions{gw: downGateway{}})

	_, err := svc.Autocomplete(context.Background(), "basket", 5)

	assert.ErrorIs(t, err, gateway.ErrEngineUnavailable)
}

func TestSearchByImage(t *testing.T) {
	svc := newTestService(serviceOptions{
		gw:     seededGateway(t),
		vision: &stubExtractor{text: "basket"},
	})

	page, err := svc.SearchByImage(context.Background(), "https://example.com/shoe.jpg", &domain.FilterState{
		Page: 1, PerPage: 16,
	})

	require.NoError(t, err)
	assert.Equal(t, "basket", page.AppliedFilters.FreeText)
	assert.Positive(t, page.TotalFound)
}

func TestSearchByImage_NotConfigured(t *testing.T) {
	svc := newTestService(serviceOptions{gw: seededGateway(t)})

	_, err := svc.SearchByImage(context.Background(), "https://example.com/shoe.jpg", &domain.FilterState{})

	require.Error(t, err)
}

func TestSearchByIntent_ExtractionFailureSurfaces(t *testing.T) {
	svc := newTestService(serviceOptions{
		gw:     seededGateway(t),
		vision: &stubExtractor{err: errors.New("model overloaded")},
	})

	_, err := svc.SearchByIntent(context.Background(), "je cherche des baskets rouges", &domain.FilterState{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "extract intent")
}
