package domain

// Collection names in the search engine.
const (
	CollectionProducts = "products"
	CollectionPosts    = "posts"
)

// Sort options accepted by every entry point.
const (
	SortRelevance  = "relevance"
	SortPriceAsc   = "price_asc"
	SortPriceDesc  = "price_desc"
	SortNewest     = "newest"
	SortRatingDesc = "rating_desc"
)

// ValidSortOptions returns the list of valid sort options.
func ValidSortOptions() []string {
	return []string{SortRelevance, SortPriceAsc, SortPriceDesc, SortNewest, SortRatingDesc}
}

// IsValidSort checks whether the given sort string is a valid sort option.
func IsValidSort(sort string) bool {
	for _, s := range ValidSortOptions() {
		if s == sort {
			return true
		}
	}
	return false
}

// FilterState is the transport-agnostic representation of what the user
// currently wants. It is assembled once per request from raw transport input
// and never mutated afterwards; equivalent raw inputs from any entry point
// must produce an equal FilterState.
type FilterState struct {
	FreeText            string              `json:"free_text"`
	Categories          []string            `json:"categories,omitempty"`
	AttributeSelections map[string][]string `json:"attribute_selections,omitempty"`
	PriceMin            *float64            `json:"price_min,omitempty"`
	PriceMax            *float64            `json:"price_max,omitempty"`
	InStockOnly         bool                `json:"in_stock_only"`
	OnSaleOnly          bool                `json:"on_sale_only"`
	MinRating           *float64            `json:"min_rating,omitempty"`
	Sort                string              `json:"sort"`
	Page                int                 `json:"page"`
	PerPage             int                 `json:"per_page"`
}

// IsSelectedCategory reports whether the given category value (display name or
// raw slug) is part of the current selection.
func (s *FilterState) IsSelectedCategory(value string) bool {
	for _, c := range s.Categories {
		if c == value {
			return true
		}
	}
	return false
}

// IsSelectedAttribute reports whether the given term is selected within the
// given attribute group.
func (s *FilterState) IsSelectedAttribute(label, value string) bool {
	for _, v := range s.AttributeSelections[label] {
		if v == value {
			return true
		}
	}
	return false
}

// ClauseOperator identifies how a FilterClause compares its field to its values.
type ClauseOperator string

const (
	OpEqualsAny  ClauseOperator = "equals_any"
	OpRangeGte   ClauseOperator = "range_gte"
	OpRangeLte   ClauseOperator = "range_lte"
	OpEqualsBool ClauseOperator = "equals_bool"
)

// FilterClause is one normalized predicate against a single engine field.
// Values are OR'd together for OpEqualsAny; the other operators carry exactly
// one value.
type FilterClause struct {
	Field    string         `json:"field"`
	Operator ClauseOperator `json:"operator"`
	Values   []string       `json:"values"`
}

// ClauseGroup is a disjunction of clauses. Groups are AND-joined by the
// compiler; clauses inside one group are OR-joined. Most groups hold a single
// clause, since OR within one filter type is expressed through OpEqualsAny
// values. Multi-clause groups exist for selections that target the same field
// through different clauses.
type ClauseGroup struct {
	Clauses []FilterClause `json:"clauses"`
}

// CompiledQuery is the engine-facing request. FilterExpression is the
// serialized form of Groups in the active engine's dialect; backends that
// build structured queries instead of strings read Groups directly.
type CompiledQuery struct {
	QueryText        string        `json:"query_text"`
	QueryFields      []string      `json:"query_fields"`
	FilterExpression string        `json:"filter_expression"`
	Groups           []ClauseGroup `json:"groups,omitempty"`
	FacetFields      []string      `json:"facet_fields"`
	SortExpression   string        `json:"sort_expression,omitempty"`
	Page             int           `json:"page"`
	PerPage          int           `json:"per_page"`
	MaxFacetValues   int           `json:"max_facet_values"`
}

// Document is a catalog entity as stored in the search index. Products use
// every field; posts populate only ID, Name, Description, Permalink, ImageURL
// and CreatedAt.
type Document struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	ShortDescription string   `json:"short_description,omitempty"`
	SKU              string   `json:"sku,omitempty"`
	Price            float64  `json:"price"`
	RegularPrice     float64  `json:"regular_price,omitempty"`
	SalePrice        float64  `json:"sale_price,omitempty"`
	OnSale           bool     `json:"on_sale"`
	StockStatus      string   `json:"stock_status,omitempty"`
	Rating           float64  `json:"rating"`
	Categories       []string `json:"categories,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	Attributes       []string `json:"attributes,omitempty"`
	Permalink        string   `json:"permalink,omitempty"`
	ImageURL         string   `json:"image_url,omitempty"`
	CreatedAt        int64    `json:"created_at"`
}

// DocumentRef is an ordered reference to a hit. Rank is the 1-based position
// within the full result set for the current page.
type DocumentRef struct {
	ID   string `json:"id"`
	Rank int    `json:"rank"`
}

// FacetValueCount is one option of a filterable field after reconciliation.
// Hidden is a UI hint only; hidden options are still returned.
type FacetValueCount struct {
	Value    string `json:"value"`
	Count    int    `json:"count"`
	Selected bool   `json:"selected"`
	Hidden   bool   `json:"hidden"`
}

// FacetResult is the reconciled breakdown for one filterable field. Attribute
// groups use the attribute label as Field.
type FacetResult struct {
	Field  string            `json:"field"`
	Counts []FacetValueCount `json:"counts"`
}

// ResultPage is the UI-ready result of one search request. It is constructed
// fresh per request and never mutated after construction.
type ResultPage struct {
	DocumentRefs   []DocumentRef          `json:"document_refs"`
	Documents      []Document             `json:"documents"`
	TotalFound     int                    `json:"total_found"`
	Page           int                    `json:"page"`
	PerPage        int                    `json:"per_page"`
	MaxPages       int                    `json:"max_pages"`
	Facets         map[string]FacetResult `json:"facets,omitempty"`
	AppliedFilters FilterState            `json:"applied_filters"`
	Fallback       bool                   `json:"fallback"`
}

// Empty reports whether the page is a valid zero-hit result. An empty page is
// never an error state.
func (p *ResultPage) Empty() bool {
	return p.TotalFound == 0
}
