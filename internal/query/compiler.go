package query

import (
	"strings"

	"github.com/slimsayari/woocommerce-typesense-search/internal/domain"
)

// ClauseSerializer renders clause groups, the match-all sentinel and sort
// expressions in one engine's dialect. Keeping the dialect behind this
// interface leaves the clause tree and compilation logic backend-agnostic.
type ClauseSerializer interface {
	// Serialize renders the AND-joined groups as a filter expression string.
	// Groups with more than one clause render as a parenthesized OR.
	Serialize(groups []domain.ClauseGroup) string

	// MatchAll returns the engine's "match everything" query sentinel.
	MatchAll() string

	// SortExpression maps a sort key to the engine's sort syntax. hasFreeText
	// lets relevance sorting pick text-match ordering only when there is a
	// real term to rank by. Empty means engine default.
	SortExpression(sort string, hasFreeText bool) string
}

// Per-collection searchable fields. Fixed, never user-controlled.
var (
	productQueryFields = []string{"name", "description", "short_description", "sku"}
	postQueryFields    = []string{"name", "description"}
)

// productFacetFields is the full set of facetable fields the UI can display.
// All of them are requested on every search regardless of active filters, so
// facet counts exist for fields the user has not touched yet.
var productFacetFields = []string{"categories", "stock_status", "on_sale", "rating", "attributes"}

// maxFacetValues bounds per-field facet breadth on the engine side.
const maxFacetValues = 100

// Compiler turns clause groups plus free text, sort and paging into a
// CompiledQuery. It is stateless and deterministic: identical inputs yield a
// byte-identical CompiledQuery, which cache keys rely on.
type Compiler struct {
	serializer ClauseSerializer
}

// NewCompiler creates a compiler bound to one engine dialect.
func NewCompiler(serializer ClauseSerializer) *Compiler {
	return &Compiler{serializer: serializer}
}

// Compile produces the engine-facing request for the products collection.
func (c *Compiler) Compile(groups []domain.ClauseGroup, freeText, sort string, page, perPage int) *domain.CompiledQuery {
	text := strings.TrimSpace(freeText)
	hasFreeText := text != "" && text != c.serializer.MatchAll()
	if !hasFreeText {
		text = c.serializer.MatchAll()
	}

	if !domain.IsValidSort(sort) {
		sort = domain.SortRelevance
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 1
	}
	if perPage > 100 {
		perPage = 100
	}

	return &domain.CompiledQuery{
		QueryText:        text,
		QueryFields:      productQueryFields,
		FilterExpression: c.serializer.Serialize(groups),
		Groups:           groups,
		FacetFields:      productFacetFields,
		SortExpression:   c.serializer.SortExpression(sort, hasFreeText),
		Page:             page,
		PerPage:          perPage,
		MaxFacetValues:   maxFacetValues,
	}
}

// CompileSuggest produces a lightweight query for autocomplete legs. No
// filters, no facets, small page.
func (c *Compiler) CompileSuggest(freeText, collection string, limit int) *domain.CompiledQuery {
	text := strings.TrimSpace(freeText)
	if text == "" {
		text = c.serializer.MatchAll()
	}
	if limit < 1 || limit > 20 {
		limit = 5
	}

	fields := productQueryFields
	if collection == domain.CollectionPosts {
		fields = postQueryFields
	}

	return &domain.CompiledQuery{
		QueryText:   text,
		QueryFields: fields,
		Page:        1,
		PerPage:     limit,
	}
}
