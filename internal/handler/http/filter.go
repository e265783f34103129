package http

import (
	"log/slog"
	"net/http"

	"github.com/slimsayari/woocommerce-typesense-search/internal/domain"
	"github.com/slimsayari/woocommerce-typesense-search/internal/filter"
	"github.com/slimsayari/woocommerce-typesense-search/internal/search"
	"github.com/slimsayari/woocommerce-typesense-search/pkg/httputil"
)

// FilterHandler handles the AJAX-style filter endpoint used by the storefront
// filter widgets. It accepts form posts and answers with the widget payload.
type FilterHandler struct {
	service *search.Service
	logger  *slog.Logger
}

// NewFilterHandler creates a new filter HTTP handler.
func NewFilterHandler(svc *search.Service, logger *slog.Logger) *FilterHandler {
	return &FilterHandler{
		service: svc,
		logger:  logger,
	}
}

// filterResponse is the widget-facing JSON payload.
type filterResponse struct {
	Products       []domain.Document             `json:"products"`
	Count          int                           `json:"count"`
	Facets         map[string]domain.FacetResult `json:"facets,omitempty"`
	MaxNumPages    int                           `json:"max_num_pages"`
	SearchTerm     string                        `json:"search_term"`
	FiltersApplied domain.FilterState            `json:"filters_applied"`
	Fallback       bool                          `json:"fallback"`
}

// Filter handles POST /api/v1/search/filter.
func (h *FilterHandler) Filter(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid form body: " + err.Error()},
		})
		return
	}

	state := stateFromForm(r)

	page, err := h.service.Search(r.Context(), state)
	if err != nil {
		// Same degradation contract as the REST endpoint.
		writeSearchError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: filterResponse{
		Products:       page.Documents,
		Count:          page.TotalFound,
		Facets:         page.Facets,
		MaxNumPages:    page.MaxPages,
		SearchTerm:     state.FreeText,
		FiltersApplied: page.AppliedFilters,
		Fallback:       page.Fallback,
	}})
}

// stateFromForm assembles a FilterState from the widget's form fields,
// reusing the shared filter helpers so this entry point stays equivalent to
// the REST and listing ones.
func stateFromForm(r *http.Request) *domain.FilterState {
	form := r.PostForm

	state := &domain.FilterState{
		FreeText:    form.Get("s"),
		PriceMin:    filter.DecimalParam(form.Get("price_min")),
		PriceMax:    filter.DecimalParam(form.Get("price_max")),
		InStockOnly: form.Get("stock_status") == "instock",
		OnSaleOnly:  filter.BoolParam(form.Get("on_sale")),
		MinRating:   filter.DecimalParam(form.Get("min_rating")),
		Sort:        filter.SortParam(mapOrderby(form.Get("orderby"))),
		Page:        filter.PageParam(form.Get("paged")),
		PerPage:     filter.PerPageParam(form.Get("per_page")),
	}

	if cats := cleanValues(form["product_cat[]"]); len(cats) > 0 {
		state.Categories = cats
	} else if cats := filter.CSVParam(form.Get("product_cat")); len(cats) > 0 {
		state.Categories = cats
	}

	entries := form["attr[]"]
	if len(entries) == 0 {
		entries = form["attr"]
	}
	if attrs := filter.AttributeSelectionsParam(entries); len(attrs) > 0 {
		state.AttributeSelections = attrs
	}

	return state
}

// mapOrderby translates the storefront's orderby vocabulary to the canonical
// sort keys. Canonical keys pass through; anything unknown later falls back
// to relevance in SortParam.
func mapOrderby(orderby string) string {
	switch orderby {
	case "price":
		return domain.SortPriceAsc
	case "price-desc":
		return domain.SortPriceDesc
	case "date":
		return domain.SortNewest
	case "rating":
		return domain.SortRatingDesc
	default:
		return orderby
	}
}

func cleanValues(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
