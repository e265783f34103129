package listing

import (
	"context"
	"net/url"

	"github.com/slimsayari/woocommerce-typesense-search/internal/domain"
	"github.com/slimsayari/woocommerce-typesense-search/internal/filter"
	"github.com/slimsayari/woocommerce-typesense-search/internal/search"
)

// Query variable names recognized by the listing override.
const (
	VarSearch     = "wts_search"
	VarMinPrice   = "wts_min_price"
	VarMaxPrice   = "wts_max_price"
	VarCategories = "wts_categories"
	VarAttributes = "wts_attributes"
	VarInStock    = "wts_in_stock"
	VarOnSale     = "wts_on_sale"
	VarMinRating  = "wts_min_rating"
	VarSort       = "wts_sort"
	VarPaged      = "wts_paged"
	VarPerPage    = "wts_per_page"
)

// Override is the explicit result the content layer applies to its native
// listing: which post IDs to show in which order, plus pagination metadata.
// Returning this instead of mutating the host query object keeps the
// orchestrator free of ambient state.
type Override struct {
	PostIDs  []string                      `json:"post_ids"`
	Total    int                           `json:"total"`
	MaxPages int                           `json:"max_pages"`
	Facets   map[string]domain.FacetResult `json:"facets,omitempty"`
	Fallback bool                          `json:"fallback"`
}

// Overrider adapts content listing query variables into the shared search
// pipeline. It is one of the three entry points and must produce the same
// compiled query as the others for equivalent input.
type Overrider struct {
	service *search.Service
}

// NewOverrider creates a listing overrider.
func NewOverrider(service *search.Service) *Overrider {
	return &Overrider{service: service}
}

// StateFromQueryVars assembles the FilterState from listing query variables.
// Attribute selections arrive as "Label:term1|term2" entries in the
// wts_attributes list.
func StateFromQueryVars(vars url.Values) *domain.FilterState {
	state := &domain.FilterState{
		FreeText:    vars.Get(VarSearch),
		Categories:  filter.CSVParam(vars.Get(VarCategories)),
		PriceMin:    filter.DecimalParam(vars.Get(VarMinPrice)),
		PriceMax:    filter.DecimalParam(vars.Get(VarMaxPrice)),
		InStockOnly: filter.BoolParam(vars.Get(VarInStock)),
		OnSaleOnly:  filter.BoolParam(vars.Get(VarOnSale)),
		MinRating:   filter.DecimalParam(vars.Get(VarMinRating)),
		Sort:        filter.SortParam(vars.Get(VarSort)),
		Page:        filter.PageParam(vars.Get(VarPaged)),
		PerPage:     filter.PerPageParam(vars.Get(VarPerPage)),
	}

	if attrs := filter.AttributeSelectionsParam(vars[VarAttributes]); len(attrs) > 0 {
		state.AttributeSelections = attrs
	}

	return state
}

// Apply runs the shared pipeline for the given query variables and returns
// the listing override. Engine downtime surfaces as a fallback-flagged
// override, never an error the host listing has to handle.
func (o *Overrider) Apply(ctx context.Context, vars url.Values) (*Override, error) {
	state := StateFromQueryVars(vars)

	page, err := o.service.Search(ctx, state)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(page.DocumentRefs))
	for _, ref := range page.DocumentRefs {
		ids = append(ids, ref.ID)
	}

	return &Override{
		PostIDs:  ids,
		Total:    page.TotalFound,
		MaxPages: page.MaxPages,
		Facets:   page.Facets,
		Fallback: page.Fallback,
	}, nil
}

