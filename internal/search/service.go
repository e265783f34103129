package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/slimsayari/woocommerce-typesense-search/internal/domain"
	"github.com/slimsayari/woocommerce-typesense-search/internal/facet"
	"github.com/slimsayari/woocommerce-typesense-search/internal/filter"
	"github.com/slimsayari/woocommerce-typesense-search/internal/gateway"
	"github.com/slimsayari/woocommerce-typesense-search/internal/query"
	"github.com/slimsayari/woocommerce-typesense-search/internal/result"
)

// FallbackLister lists products from the content store when the search engine
// is unavailable. The listing honors as much of the filter state as the store
// can express natively.
type FallbackLister interface {
	ListProducts(ctx context.Context, state *domain.FilterState) (*domain.ResultPage, error)
}

// QueryCache caches result pages keyed by the compiled query. A nil cache is
// valid; lookups simply always miss.
type QueryCache interface {
	Get(ctx context.Context, q *domain.CompiledQuery, collection string) (*domain.ResultPage, bool)
	Set(ctx context.Context, q *domain.CompiledQuery, collection string, page *domain.ResultPage)
}

// QueryExtractor turns alternative input modalities into a plain text query.
type QueryExtractor interface {
	DescribeImage(ctx context.Context, imageURL string) (string, error)
	ExtractIntent(ctx context.Context, phrase string) (string, error)
}

// Suggestions is the autocomplete payload: one leg per collection. A failed
// leg is an empty slice, never an error for the whole lookup.
type Suggestions struct {
	Products []domain.Document `json:"products"`
	Posts    []domain.Document `json:"posts"`
}

// Service drives the full search pipeline: clause building, query
// compilation, the gateway call, result mapping and facet reconciliation.
// Every entry point goes through this one service so filter semantics cannot
// drift between transports.
type Service struct {
	gw         gateway.Gateway
	builder    *filter.Builder
	compiler   *query.Compiler
	mapper     *result.Mapper
	reconciler *facet.Reconciler
	options    facet.OptionSource
	fallback   FallbackLister
	cache      QueryCache
	vision     QueryExtractor
	logger     *slog.Logger
}

// NewService creates the search service. options, fallback, cache and vision
// are optional collaborators; pass nil to disable the corresponding behavior.
func NewService(
	gw gateway.Gateway,
	builder *filter.Builder,
	compiler *query.Compiler,
	reconciler *facet.Reconciler,
	options facet.OptionSource,
	fallback FallbackLister,
	cache QueryCache,
	vision QueryExtractor,
	logger *slog.Logger,
) *Service {
	return &Service{
		gw:         gw,
		builder:    builder,
		compiler:   compiler,
		mapper:     result.NewMapper(),
		reconciler: reconciler,
		options:    options,
		fallback:   fallback,
		cache:      cache,
		vision:     vision,
		logger:     logger,
	}
}

// BuildQuery runs the shared build and compile steps for a filter state. It
// returns the compiled query and the normalized state (selections resolved to
// display names). Deterministic: equal states give byte-identical queries.
func (s *Service) BuildQuery(ctx context.Context, state *domain.FilterState) (*domain.CompiledQuery, *domain.FilterState) {
	groups, normalized := s.builder.Build(ctx, state)
	compiled := s.compiler.Compile(groups, state.FreeText, state.Sort, state.Page, state.PerPage)
	return compiled, normalized
}

// Search executes one faceted product search. Engine downtime degrades to the
// content store listing instead of failing the request; only when no fallback
// is wired does the typed engine error reach the caller.
func (s *Service) Search(ctx context.Context, state *domain.FilterState) (*domain.ResultPage, error) {
	compiled, normalized := s.BuildQuery(ctx, state)

	if s.cache != nil {
		if page, ok := s.cache.Get(ctx, compiled, domain.CollectionProducts); ok {
			s.logger.DebugContext(ctx, "search served from cache",
				slog.String("query", compiled.QueryText),
			)
			return page, nil
		}
	}

	resp, err := s.gw.Search(ctx, compiled, domain.CollectionProducts)
	if err != nil {
		if errors.Is(err, gateway.ErrEngineUnavailable) && s.fallback != nil {
			s.logger.WarnContext(ctx, "search engine unavailable, serving content store listing",
				slog.String("error", err.Error()),
			)
			page, fbErr := s.fallback.ListProducts(ctx, normalized)
			if fbErr != nil {
				return nil, fmt.Errorf("fallback listing: %w", fbErr)
			}
			page.Fallback = true
			return page, nil
		}
		return nil, s.mapper.MapError(err)
	}

	page := s.mapper.Map(resp, compiled.Page, compiled.PerPage)
	page.AppliedFilters = *normalized
	page.Facets = s.reconciler.Reconcile(ctx, resp.FacetCounts, s.knownOptions(ctx), normalized)

	if s.cache != nil {
		s.cache.Set(ctx, compiled, domain.CollectionProducts, page)
	}

	s.logger.DebugContext(ctx, "search executed",
		slog.String("query", compiled.QueryText),
		slog.String("filter", compiled.FilterExpression),
		slog.Int("total", page.TotalFound),
		slog.Int64("took_ms", resp.SearchTimeMs),
	)

	return page, nil
}

// Autocomplete issues one batched multi-search over the products and posts
// collections. A failed leg yields an empty leg; only a batch-level failure
// (engine unreachable) is an error.
func (s *Service) Autocomplete(ctx context.Context, term string, limit int) (*Suggestions, error) {
	reqs := []gateway.SearchRequest{
		{Collection: domain.CollectionProducts, Query: s.compiler.CompileSuggest(term, domain.CollectionProducts, limit)},
		{Collection: domain.CollectionPosts, Query: s.compiler.CompileSuggest(term, domain.CollectionPosts, limit)},
	}

	results, err := s.gw.MultiSearch(ctx, reqs)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}

	out := &Suggestions{Products: []domain.Document{}, Posts: []domain.Document{}}
	for i, leg := range results {
		if leg.Err != nil || leg.Response == nil {
			s.logger.WarnContext(ctx, "autocomplete leg failed, returning empty leg",
				slog.String("collection", reqs[i].Collection),
				slog.Any("error", leg.Err),
			)
			continue
		}
		docs := make([]domain.Document, 0, len(leg.Response.Hits))
		for _, hit := range leg.Response.Hits {
			docs = append(docs, hit.Document)
		}
		switch reqs[i].Collection {
		case domain.CollectionProducts:
			out.Products = docs
		case domain.CollectionPosts:
			out.Posts = docs
		}
	}

	return out, nil
}

// SearchByImage describes the given image through the vision collaborator and
// searches with the description as the free text term.
func (s *Service) SearchByImage(ctx context.Context, imageURL string, state *domain.FilterState) (*domain.ResultPage, error) {
	if s.vision == nil {
		return nil, errors.New("image search is not configured")
	}

	text, err := s.vision.DescribeImage(ctx, imageURL)
	if err != nil {
		return nil, fmt.Errorf("describe image: %w", err)
	}

	withText := *state
	withText.FreeText = text

	s.logger.InfoContext(ctx, "image resolved to search term",
		slog.String("term", text),
	)
	return s.Search(ctx, &withText)
}

// SearchByIntent extracts a search phrase from spoken or typed natural
// language and runs a normal search with it.
func (s *Service) SearchByIntent(ctx context.Context, phrase string, state *domain.FilterState) (*domain.ResultPage, error) {
	if s.vision == nil {
		return nil, errors.New("intent search is not configured")
	}

	text, err := s.vision.ExtractIntent(ctx, phrase)
	if err != nil {
		return nil, fmt.Errorf("extract intent: %w", err)
	}

	withText := *state
	withText.FreeText = text
	return s.Search(ctx, &withText)
}

// knownOptions fetches the full filter option universe. Lookup failures
// degrade to reconciling against engine counts only.
func (s *Service) knownOptions(ctx context.Context) map[string][]string {
	if s.options == nil {
		return nil
	}
	known, err := s.options.KnownOptions(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "known filter options unavailable",
			slog.String("error", err.Error()),
		)
		return nil
	}
	return known
}
